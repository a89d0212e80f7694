package extract

import (
	"strings"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/models"
)

type bucket int

const (
	stateBucket bucket = iota
	defendantBucket
	bondsmanBucket
)

// partyScanner sorts party table rows into state, defendant and bondsman
// groups. Rows are pushed bottom-up; a row whose first cell is "State"
// moves the scanner to the defendant group, "Defendant" moves it to the
// bondsman group, and "Bondsman" ends the scan.
type partyScanner struct {
	buckets [3][][]string
	current bucket
	done    bool
}

// push files row into the current group and reports whether scanning should continue
func (s *partyScanner) push(row []string) bool {
	if s.done {
		return false
	}
	s.buckets[s.current] = append(s.buckets[s.current], row)

	switch row[0] {
	case "State":
		s.current = defendantBucket
	case "Defendant":
		s.current = bondsmanBucket
	case "Bondsman":
		s.done = true
	}
	return !s.done
}

// groups returns each group in table order. The bondsman group is dropped
// unless its first row is the "Bondsman" row itself.
func (s *partyScanner) groups() (state, defendant, bondsman [][]string) {
	state = reversed(s.buckets[stateBucket])
	defendant = reversed(s.buckets[defendantBucket])
	bondsman = reversed(s.buckets[bondsmanBucket])
	if len(bondsman) > 0 && bondsman[0][0] != "Bondsman" {
		bondsman = nil
	}
	return state, defendant, bondsman
}

func scanParty(rows [][]string) (state, defendant, bondsman [][]string) {
	var s partyScanner
	for i := len(rows) - 1; i >= 0; i-- {
		if !s.push(rows[i]) {
			break
		}
	}
	return s.groups()
}

func reversed(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row
	}
	return out
}

// rowShape tells whether a defendant row carries the "height, weight" cell
type rowShape int

const (
	shapePlain rowShape = iota
	shapeHeightWeight
)

const heightWeightCell = 4

func classifyDefendantRow(row []string) rowShape {
	if len(row) > heightWeightCell && strings.Contains(row[heightWeightCell], ",") {
		return shapeHeightWeight
	}
	return shapePlain
}

// attorneyCells locates the defense attorney fields in a defendant row
type attorneyCells struct {
	attorney  int
	appointed int
	phone     int
}

var defendantLayouts = map[rowShape]attorneyCells{
	shapePlain:        {attorney: 4, appointed: 5, phone: 6},
	shapeHeightWeight: {attorney: 5, appointed: 6, phone: 7},
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

func word(s string, i int) string {
	return cell(strings.Fields(s), i)
}

// decodeDefendantRow fills the defendant fields from the row that starts
// with the "Defendant" cell.
func decodeDefendantRow(row []string, p *models.PartyInformation) {
	p.Defendant = cell(row, 1)

	demographics := strings.Fields(cell(row, 2))
	if len(demographics) > 0 {
		p.Sex = demographics[0]
		p.Race = strings.Join(demographics[1:], " ")
	}
	p.DateOfBirth = word(cell(row, 3), 1)

	shape := classifyDefendantRow(row)
	if shape == shapeHeightWeight {
		parts := strings.Split(row[heightWeightCell], ",")
		p.Height = parts[0]
		if len(parts[1]) > 0 {
			p.Weight = parts[1][1:]
		}
	}

	cells := defendantLayouts[shape]
	p.DefenseAttorney = cell(row, cells.attorney)
	p.AppointedOrRetained = cell(row, cells.appointed)
	p.DefenseAttorneyPhone = cell(row, cells.phone)
}

// parseParty decodes the party table from its rows of text nodes
func parseParty(rows [][]string) (models.PartyInformation, error) {
	var p models.PartyInformation

	state, defendant, bondsman := scanParty(rows)
	if len(defendant) == 0 || defendant[0][0] != "Defendant" {
		return p, &errs.ParseError{Table: TableParty, Reason: "no defendant row"}
	}

	decodeDefendantRow(defendant[0], &p)
	if p.Defendant == "" {
		return p, &errs.ParseError{Table: TableParty, Reason: "defendant row has no name"}
	}

	if len(defendant) < 2 {
		return p, &errs.ParseError{Table: TableParty, Reason: "no address row after the defendant row"}
	}
	// address lines, then the "SID:" label and the SID itself
	address := defendant[1]
	if len(address) < 3 {
		return p, &errs.ParseError{Table: TableParty, Reason: "defendant address or SID missing"}
	}
	p.DefendantAddress = strings.Join(address[:len(address)-2], "\n")
	p.SID = address[len(address)-1]

	if len(state) > 0 {
		p.ProsecutingAttorney = cell(state[0], 2)
		p.ProsecutingAttorneyPhone = cell(state[0], 3)
	}
	if len(state) > 1 {
		p.ProsecutingAttorneyAddress = strings.Join(state[1], "\n")
	}

	if len(bondsman) > 0 {
		p.Bondsman = cell(bondsman[0], 1)
	}
	if len(bondsman) > 1 {
		p.BondsmanAddress = strings.Join(bondsman[1], "\n")
	}
	return p, nil
}
