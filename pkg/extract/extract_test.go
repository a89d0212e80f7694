package extract

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odysseyscraper/internal/portaltest"
	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
)

var captured = models.NewCaptureDate(time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC))

func rawPage(c portaltest.Case) *models.RawCasePage {
	return rawHTML(c, c.HTML())
}

func rawHTML(c portaltest.Case, html string) *models.RawCasePage {
	return &models.RawCasePage{
		CaseNumber:  c.Number,
		SourceID:    c.ID,
		CaptureDate: captured,
		HTML:        []byte(html),
	}
}

// dropTable removes the top-level table whose header cell reads title
func dropTable(t *testing.T, html, title string) string {
	t.Helper()
	title = ">" + title + "</th>"
	at := strings.Index(html, title)
	require.GreaterOrEqual(t, at, 0, "table %q not rendered", title)
	start := strings.LastIndex(html[:at], "<table>")
	require.GreaterOrEqual(t, start, 0)
	end := strings.Index(html[start:], "</table>\n")
	require.GreaterOrEqual(t, end, 0)
	return html[:start] + html[start+end+len("</table>\n"):]
}

func requireParseError(t *testing.T, err error, table string) {
	t.Helper()
	require.Error(t, err)
	var perr *errs.ParseError
	require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
	assert.Equal(t, table, perr.Table)
	assert.Equal(t, errs.KindStructuralParse, errs.KindOf(err))
}

func TestExtractDefaultCase(t *testing.T) {
	got, err := New(logger.NewNopLogger()).Extract(rawPage(portaltest.DefaultCase()))
	require.NoError(t, err)

	want := &models.StructuredCase{
		Code:        "CR-16-0002-A",
		SourceID:    "12947592",
		CaptureDate: captured,
		Name:        "The State of Texas vs. John Smith",
		Fields: map[string]string{
			"case type":        "Adult Felony",
			"date filed":       "01/05/2016",
			"location":         "22nd District Court",
			"judicial officer": "Boyer, Bruce",
		},
		RelatedCases: []string{"CR-15-0999-A (Previous Case)"},
		Party: models.PartyInformation{
			Defendant:                  "Smith, John",
			Sex:                        "Male",
			Race:                       "White",
			DateOfBirth:                "01/01/1990",
			Height:                     `5'10"`,
			Weight:                     "180 lbs",
			DefenseAttorney:            "Jane Lawyer",
			AppointedOrRetained:        "Retained",
			DefenseAttorneyPhone:       "512-555-1234",
			DefendantAddress:           "123 Main St\nSan Marcos, TX 78666",
			SID:                        "TX04567890",
			ProsecutingAttorney:        "Wes Mau",
			ProsecutingAttorneyPhone:   "512-393-7600",
			ProsecutingAttorneyAddress: "712 S. Stagecoach Trail\nSan Marcos, TX 78666",
			Bondsman:                   "Freedom Bail Bonds",
			BondsmanAddress:            "200 Hopkins St\nSan Marcos, TX 78666",
		},
		Charges: []models.Charge{
			{Charges: "THEFT PROP>=$2,500<$30K", Statute: "31.03(e)(4)", Level: "State Jail Felony", Date: "12/01/2015"},
			{Charges: "EVADING ARREST DETENTION", Statute: "38.04(b)", Level: "Class A Misdemeanor", Date: "12/01/2015"},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractCaseCode(t *testing.T) {
	c := portaltest.DefaultCase()
	c.Fields = [][2]string{
		{"Case Type:", "Adult Misdemeanor"},
		{"Date Filed:", "01-05-2016"},
	}
	c.WithEvents = false
	c.WithFinancial = false

	got, err := New(logger.NewNopLogger()).Extract(rawPage(c))
	require.NoError(t, err)
	assert.Equal(t, "CR-16-0002-A", got.Code)
	assert.Equal(t, "01-05-2016", got.Fields["date filed"])
}

func TestExtractWithoutBondsman(t *testing.T) {
	c := portaltest.DefaultCase()
	c.Bondsman = ""
	c.BondsmanAddress = nil

	got, err := New(logger.NewNopLogger()).Extract(rawPage(c))
	require.NoError(t, err)
	assert.Equal(t, "", got.Party.Bondsman)
	assert.Equal(t, "", got.Party.BondsmanAddress)
	assert.Equal(t, "Smith, John", got.Party.Defendant)
	assert.Equal(t, "Wes Mau", got.Party.ProsecutingAttorney)
}

func TestExtractWithoutHeightWeight(t *testing.T) {
	c := portaltest.DefaultCase()
	c.DefendantRow = []string{"Doe, Jane", "Female Hispanic", "DOB: 03/14/1985", "Court Appointed Counsel", "Appointed", "512-555-0000"}

	got, err := New(logger.NewNopLogger()).Extract(rawPage(c))
	require.NoError(t, err)
	assert.Equal(t, "", got.Party.Height)
	assert.Equal(t, "", got.Party.Weight)
	assert.Equal(t, "Court Appointed Counsel", got.Party.DefenseAttorney)
	assert.Equal(t, "Appointed", got.Party.AppointedOrRetained)
	assert.Equal(t, "512-555-0000", got.Party.DefenseAttorneyPhone)
	assert.Equal(t, "Hispanic", got.Party.Race)
}

func TestExtractHeaderContinuation(t *testing.T) {
	c := portaltest.DefaultCase()
	c.Fields = [][2]string{
		{"Case Type:", "Adult Felony"},
		{"Date Filed:", "01/05/2016"},
		{"Offense:", "THEFT"},
		{"", "EVADING ARREST"},
		{"", "RESISTING ARREST"},
	}

	got, err := New(logger.NewNopLogger()).Extract(rawPage(c))
	require.NoError(t, err)
	assert.Equal(t, "THEFT\nEVADING ARREST\nRESISTING ARREST", got.Fields["offense"])
	assert.Len(t, got.Fields, 3)

	c.Fields = [][2]string{{"", "orphan"}, {"Case Type:", "x"}, {"Date Filed:", "y"}}
	_, err = New(logger.NewNopLogger()).Extract(rawPage(c))
	requireParseError(t, err, TableHeader)
}

func TestExtractStructuralErrors(t *testing.T) {
	tests := []struct {
		name  string
		page  func(t *testing.T) *models.RawCasePage
		table string
	}{
		{
			name: "no case number",
			page: func(t *testing.T) *models.RawCasePage {
				c := portaltest.DefaultCase()
				return rawHTML(c, strings.Replace(c.HTML(), "ssCaseDetailCaseNbr", "ssCaseDetail", 1))
			},
			table: TableCaseNumber,
		},
		{
			name: "no charge table",
			page: func(t *testing.T) *models.RawCasePage {
				c := portaltest.DefaultCase()
				return rawHTML(c, dropTable(t, c.HTML(), "Charge Information"))
			},
			table: TableCharges,
		},
		{
			name: "no party table",
			page: func(t *testing.T) *models.RawCasePage {
				c := portaltest.DefaultCase()
				return rawHTML(c, dropTable(t, c.HTML(), "Party Information"))
			},
			table: TableParty,
		},
		{
			name: "no defendant address row",
			page: func(t *testing.T) *models.RawCasePage {
				c := portaltest.DefaultCase()
				c.DefendantAddress = nil
				c.SID = ""
				return rawPage(c)
			},
			table: TableParty,
		},
		{
			name: "charge row missing a cell",
			page: func(t *testing.T) *models.RawCasePage {
				c := portaltest.DefaultCase()
				c.Charges[1].Statute = ""
				return rawPage(c)
			},
			table: TableCharges,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(logger.NewNopLogger()).Extract(tt.page(t))
			requireParseError(t, err, tt.table)
		})
	}
}

func TestExtractWithoutOptionalTables(t *testing.T) {
	c := portaltest.DefaultCase()
	c.Related = nil
	c.WithEvents = false
	c.WithFinancial = false

	got, err := New(logger.NewNopLogger()).Extract(rawPage(c))
	require.NoError(t, err)
	assert.Nil(t, got.RelatedCases)
	assert.Len(t, got.Charges, 2)
}

func TestExtractWarnsOnListingMismatch(t *testing.T) {
	log := logger.NewTestLogger()
	c := portaltest.DefaultCase()
	page := rawPage(c)
	page.CaseNumber = "CR-16-9999-A"

	_, err := New(log).Extract(page)
	require.NoError(t, err)
	assert.Len(t, log.GetMessagesByLevel("WARN"), 1)
}

func TestDecodeDefendantRowShapes(t *testing.T) {
	var withHW models.PartyInformation
	decodeDefendantRow([]string{"State", "John Smith", "M White", "DOB: 01/01/1990", `5'10", 180 lbs`, "Jane Lawyer", "Retained", "555-1234"}, &withHW)
	assert.Equal(t, `5'10"`, withHW.Height)
	assert.Equal(t, "180 lbs", withHW.Weight)
	assert.Equal(t, "Jane Lawyer", withHW.DefenseAttorney)
	assert.Equal(t, "Retained", withHW.AppointedOrRetained)
	assert.Equal(t, "555-1234", withHW.DefenseAttorneyPhone)
	assert.Equal(t, "M", withHW.Sex)
	assert.Equal(t, "01/01/1990", withHW.DateOfBirth)

	var plain models.PartyInformation
	decodeDefendantRow([]string{"State", "John Smith", "M White", "DOB: 01/01/1990", "Jane Lawyer", "Retained", "555-1234"}, &plain)
	assert.Equal(t, "", plain.Height)
	assert.Equal(t, "Jane Lawyer", plain.DefenseAttorney)
	assert.Equal(t, "555-1234", plain.DefenseAttorneyPhone)

	var short models.PartyInformation
	decodeDefendantRow([]string{"Defendant", "John Smith", "M White", "DOB: 01/01/1990", `5'10", 180 lbs`}, &short)
	assert.Equal(t, "180 lbs", short.Weight)
	assert.Equal(t, "", short.DefenseAttorney)
	assert.Equal(t, "", short.DefenseAttorneyPhone)
}

func TestScanPartyKeepsRowOrder(t *testing.T) {
	rows := [][]string{
		{"Party Information"},
		{"Bondsman", "Freedom Bail Bonds"},
		{"200 Hopkins St"},
		{"Defendant", "Smith, John"},
		{"123 Main St", "SID:", "TX1"},
		{"State", "State of Texas"},
		{"712 S. Stagecoach Trail"},
		{"Austin, TX"},
	}

	state, defendant, bondsman := scanParty(rows)
	assert.Equal(t, rows[5:], state)
	assert.Equal(t, rows[3:5], defendant)
	assert.Equal(t, rows[1:3], bondsman)

	state, defendant, bondsman = scanParty(append([][]string{{"Party Information"}}, rows[3:]...))
	assert.Equal(t, rows[5:], state)
	assert.Equal(t, rows[3:5], defendant)
	assert.Empty(t, bondsman)
}

func TestParseChargesStride(t *testing.T) {
	header := []string{"Charge Information", "Charges: Smith, John", "Statute", "Level", "Date"}

	for k := 0; k <= 5; k++ {
		tokens := append([]string(nil), header...)
		for i := 0; i < k; i++ {
			tokens = append(tokens, fmt.Sprintf("%d.", i+1), fmt.Sprintf("CHARGE %d", i), "1.01", "Felony", "01/01/2020")
		}

		charges, err := parseCharges(tokens)
		require.NoError(t, err, "k=%d", k)
		assert.Len(t, charges, k)
		for i, ch := range charges {
			assert.Equal(t, fmt.Sprintf("CHARGE %d", i), ch.Charges)
			assert.Equal(t, "1.01", ch.Statute)
			assert.Equal(t, "Felony", ch.Level)
			assert.Equal(t, "01/01/2020", ch.Date)
		}

		_, err = parseCharges(append(tokens, "stray"))
		requireParseError(t, err, TableCharges)
	}

	_, err := parseCharges(header[:3])
	requireParseError(t, err, TableCharges)
}

func TestClassify(t *testing.T) {
	tests := map[string]tableKind{
		"Case Type: Adult Felony Date Filed: 01/05/2016": tableHeader,
		"Case Type: only":                                tableUnknown,
		"Related Case Information CR-1":                  tableRelated,
		"Party Information Defendant":                    tableParty,
		"Charge Information Charges":                     tableCharges,
		"Events & Orders of the Court DISPOSITIONS":      tableEvents,
		"Financial Information":                          tableFinancial,
		"REGISTER OF ACTIONS":                            tableUnknown,
	}
	for text, want := range tests {
		assert.Equal(t, want, classify(text), text)
	}
}

func TestNormalize(t *testing.T) {
	tests := map[string]string{
		" CR-15-0999-A (Previous Case) ": "CR-15-0999-A (Previous Case)",
		"  Smith, John\n":                "Smith, John",
		"Adult Felony":                   "Adult Felony",
		" ":                              "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalize(in), "%q", in)
	}
}

func TestExtractRelatedCasesJoinedWithNbsp(t *testing.T) {
	c := portaltest.DefaultCase()
	c.Related = []string{"CR-15-0999-A (Previous Case)", "CR-14-0100-B (Co-Defendant)"}

	page := c.HTML()
	require.Contains(t, page, "CR-15-0999-A&nbsp;(Previous&nbsp;Case)")

	got, err := New(logger.NewNopLogger()).Extract(rawHTML(c, page))
	require.NoError(t, err)
	assert.Equal(t, []string{"CR-15-0999-A (Previous Case)", "CR-14-0100-B (Co-Defendant)"}, got.RelatedCases)
}
