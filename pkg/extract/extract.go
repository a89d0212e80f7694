// Package extract turns a fetched Odyssey case page into a StructuredCase.
//
// The page's top-level tables are classified by their text and decoded
// independently. The header, party and charge tables are required; the
// events and financial tables are recognised and skipped.
package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
)

// Table names used in parse errors
const (
	TableCaseNumber = "case number"
	TableHeader     = "header"
	TableRelated    = "related cases"
	TableParty      = "party"
	TableCharges    = "charges"
)

const caseNumberSelector = "div.ssCaseDetailCaseNbr > span"

type tableKind int

const (
	tableUnknown tableKind = iota
	tableHeader
	tableRelated
	tableParty
	tableCharges
	tableEvents
	tableFinancial
)

var requiredTables = []struct {
	kind tableKind
	name string
}{
	{tableHeader, TableHeader},
	{tableParty, TableParty},
	{tableCharges, TableCharges},
}

// classify picks a table's kind from the distinctive text it contains
func classify(text string) tableKind {
	switch {
	case strings.Contains(text, "Case Type:") && strings.Contains(text, "Date Filed:"):
		return tableHeader
	case strings.Contains(text, "Related Case Information"):
		return tableRelated
	case strings.Contains(text, "Party Information"):
		return tableParty
	case strings.Contains(text, "Charge Information"):
		return tableCharges
	case strings.Contains(text, "Events & Orders of the Court"):
		return tableEvents
	case strings.Contains(text, "Financial Information"):
		return tableFinancial
	default:
		return tableUnknown
	}
}

// Extractor decodes case pages. It holds no per-page state and is safe
// for concurrent use.
type Extractor struct {
	log logger.Logger
}

// New creates an Extractor
func New(log logger.Logger) *Extractor {
	return &Extractor{log: logger.OrDefault(log).WithField("component", "extract")}
}

// Extract decodes page. Structural problems are returned as *errors.ParseError.
func (e *Extractor) Extract(page *models.RawCasePage) (*models.StructuredCase, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.HTML))
	if err != nil {
		return nil, fmt.Errorf("failed to parse case page %s: %w", page.SourceID, err)
	}

	code := normalize(doc.Find(caseNumberSelector).First().Text())
	if code == "" {
		return nil, &errs.ParseError{Table: TableCaseNumber, Reason: "case number header not found"}
	}

	c := &models.StructuredCase{
		Code:        code,
		SourceID:    page.SourceID,
		CaptureDate: page.CaptureDate,
	}

	var (
		seen     = make(map[tableKind]bool)
		parseErr error
	)
	doc.Find("body > table").EachWithBreak(func(_ int, table *goquery.Selection) bool {
		kind := classify(table.Text())
		seen[kind] = true

		switch kind {
		case tableHeader:
			h, err := parseHeader(table)
			if err != nil {
				parseErr = err
				return false
			}
			c.Name = h.name
			c.Fields = h.fields
		case tableRelated:
			c.RelatedCases = parseRelated(table)
		case tableParty:
			p, err := parseParty(rowTexts(table))
			if err != nil {
				parseErr = err
				return false
			}
			c.Party = p
		case tableCharges:
			charges, err := parseCharges(selectionText(table))
			if err != nil {
				parseErr = err
				return false
			}
			c.Charges = charges
		case tableEvents, tableFinancial:
			e.log.Debug("skipping unparsed case table")
		}
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	for _, required := range requiredTables {
		if !seen[required.kind] {
			return nil, &errs.ParseError{Table: required.name, Reason: "table not found"}
		}
	}

	if page.CaseNumber != "" && page.CaseNumber != code {
		e.log.WithFields(map[string]interface{}{
			"listed": page.CaseNumber,
			"code":   code,
		}).Warn("case page number differs from results listing")
	}

	e.log.WithFields(map[string]interface{}{
		"code":    c.Code,
		"charges": len(c.Charges),
		"fields":  len(c.Fields),
	}).Debug("case extracted")
	return c, nil
}
