package portaltest

import (
	"fmt"
	"html"
	"strings"
)

// Charge is one row of a case page's charge table
type Charge struct {
	Charges string
	Statute string
	Level   string
	Date    string
}

// Case describes a case detail page. HTML renders it in pre-2017 markup.
type Case struct {
	ID     string
	Number string
	Name   string
	// Fields are header label/value pairs; an empty label continues the previous value
	Fields [][2]string

	Related []string

	// DefendantRow holds the cells after the "Defendant" cell
	DefendantRow     []string
	DefendantAddress []string
	SID              string
	// StateRow holds the cells after the "State" cell
	StateRow     []string
	StateAddress []string
	// Bondsman is omitted from the party table when empty
	Bondsman        string
	BondsmanAddress []string

	Charges []Charge

	WithEvents    bool
	WithFinancial bool
}

// DefaultCase is a felony theft case with every party present
func DefaultCase() Case {
	return Case{
		ID:     "12947592",
		Number: "CR-16-0002-A",
		Name:   "The State of Texas vs. John Smith",
		Fields: [][2]string{
			{"Case Type:", "Adult Felony"},
			{"Date Filed:", "01/05/2016"},
			{"Location:", "22nd District Court"},
			{"Judicial Officer:", "Boyer, Bruce"},
		},
		Related: []string{"CR-15-0999-A (Previous Case)"},
		DefendantRow: []string{
			"Smith, John", "Male White", "DOB: 01/01/1990", `5'10", 180 lbs`,
			"Jane Lawyer", "Retained", "512-555-1234",
		},
		DefendantAddress: []string{"123 Main St", "San Marcos, TX 78666"},
		SID:              "TX04567890",
		StateRow:         []string{"State of Texas", "Wes Mau", "512-393-7600"},
		StateAddress:     []string{"712 S. Stagecoach Trail", "San Marcos, TX 78666"},
		Bondsman:         "Freedom Bail Bonds",
		BondsmanAddress:  []string{"200 Hopkins St", "San Marcos, TX 78666"},
		Charges: []Charge{
			{Charges: "THEFT PROP>=$2,500<$30K", Statute: "31.03(e)(4)", Level: "State Jail Felony", Date: "12/01/2015"},
			{Charges: "EVADING ARREST DETENTION", Statute: "38.04(b)", Level: "Class A Misdemeanor", Date: "12/01/2015"},
		},
		WithEvents:    true,
		WithFinancial: true,
	}
}

func esc(s string) string { return html.EscapeString(s) }

func cells(tag string, values []string) string {
	var b strings.Builder
	for _, v := range values {
		fmt.Fprintf(&b, "<%s>%s</%s>", tag, esc(v), tag)
	}
	return b.String()
}

func lines(values []string) string {
	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = esc(v)
	}
	return strings.Join(escaped, "<br>")
}

// HTML renders the case detail page
func (c Case) HTML() string {
	var b strings.Builder

	b.WriteString("<html><head><title>Register of Actions</title></head><body>\n")
	b.WriteString(`<table class="ssPageTitle"><tr><td>REGISTER OF ACTIONS</td></tr></table>` + "\n")
	fmt.Fprintf(&b, `<div class="ssCaseDetailCaseNbr">Case No. <span>%s</span></div>`+"\n", esc(c.Number))

	// header
	b.WriteString(`<table cellpadding="0" cellspacing="0" width="100%"><tr>`)
	fmt.Fprintf(&b, `<td valign="top"><b>%s</b></td><td><table>`, esc(c.Name))
	for _, f := range c.Fields {
		fmt.Fprintf(&b, "<tr><th>%s</th><td><b>%s</b></td></tr>", esc(f[0]), esc(f[1]))
	}
	b.WriteString("</table></td></tr></table>\n")

	if len(c.Related) > 0 {
		b.WriteString(`<table><tr><th class="ssTableHeader">Related Case Information</th></tr>`)
		for _, r := range c.Related {
			// the portal pads and joins related case text with &nbsp;
			fmt.Fprintf(&b, "<tr><td>&nbsp;%s&nbsp;</td></tr>", strings.ReplaceAll(esc(r), " ", "&nbsp;"))
		}
		b.WriteString("</table>\n")
	}

	// party
	b.WriteString(`<table><tr><th colspan="4" class="ssTableHeader">Party Information</th></tr>`)
	b.WriteString(`<tr><th></th><th></th><th>Lead Attorneys</th></tr>`)
	if c.Bondsman != "" {
		fmt.Fprintf(&b, "<tr><th>Bondsman</th><th>%s</th></tr>", esc(c.Bondsman))
		fmt.Fprintf(&b, "<tr><td></td><td>%s</td></tr>", lines(c.BondsmanAddress))
	}
	fmt.Fprintf(&b, "<tr><th>Defendant</th>%s</tr>", cells("td", c.DefendantRow))
	if len(c.DefendantAddress) > 0 || c.SID != "" {
		fmt.Fprintf(&b, "<tr><td></td><td>%s</td><td>SID: </td><td>%s</td></tr>", lines(c.DefendantAddress), esc(c.SID))
	}
	fmt.Fprintf(&b, "<tr><th>State</th>%s</tr>", cells("td", c.StateRow))
	fmt.Fprintf(&b, "<tr><td></td><td>%s</td></tr>", lines(c.StateAddress))
	b.WriteString("</table>\n")

	// charges
	b.WriteString(`<table><tr><th class="ssTableHeader">Charge Information</th></tr>`)
	fmt.Fprintf(&b, "<tr><th>Charges: %s</th><th>Statute</th><th>Level</th><th>Date</th></tr>", esc(firstOr(c.DefendantRow, "")))
	for i, ch := range c.Charges {
		fmt.Fprintf(&b, "<tr><td>%d.</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>",
			i+1, esc(ch.Charges), esc(ch.Statute), esc(ch.Level), esc(ch.Date))
	}
	b.WriteString("</table>\n")

	if c.WithEvents {
		b.WriteString(`<table><tr><th class="ssTableHeader">Events &amp; Orders of the Court</th></tr>`)
		b.WriteString(`<tr><td>DISPOSITIONS</td></tr><tr><td>02/10/2016</td><td>Plea</td></tr></table>` + "\n")
	}
	if c.WithFinancial {
		b.WriteString(`<table><tr><th class="ssTableHeader">Financial Information</th></tr>`)
		b.WriteString(`<tr><td>Defendant Smith, John</td><td>Total Financial Assessment</td><td>290.00</td></tr></table>` + "\n")
	}

	b.WriteString("</body></html>\n")
	return b.String()
}

func firstOr(values []string, fallback string) string {
	if len(values) == 0 {
		return fallback
	}
	return values[0]
}
