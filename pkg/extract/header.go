package extract

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	errs "odysseyscraper/pkg/errors"
)

// header is the decoded case header: the case name and its labelled fields
type header struct {
	name   string
	fields map[string]string
}

// fieldKey turns a header label such as "Date Filed:" into "date filed"
func fieldKey(label string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimSuffix(label, ":")))
}

// parseHeader zips the table's <th> labels with its <b> values. The first
// value has no label and is the case name. A blank label continues the
// previous field on a new line.
func parseHeader(table *goquery.Selection) (*header, error) {
	var values, labels []string
	table.Find("b").Each(func(_ int, b *goquery.Selection) {
		values = append(values, normalize(b.Text()))
	})
	table.Find("th").Each(func(_ int, th *goquery.Selection) {
		labels = append(labels, normalize(th.Text()))
	})

	if len(values) == 0 || values[0] == "" {
		return nil, &errs.ParseError{Table: TableHeader, Reason: "case name missing"}
	}
	if len(values) < len(labels)+1 {
		return nil, &errs.ParseError{
			Table:  TableHeader,
			Reason: fmt.Sprintf("%d labels but only %d values", len(labels), len(values)-1),
		}
	}

	h := &header{name: values[0], fields: make(map[string]string, len(labels))}
	key := ""
	for i, label := range labels {
		value := values[i+1]
		if label == "" {
			if key == "" {
				return nil, &errs.ParseError{Table: TableHeader, Reason: "continuation value with no preceding label"}
			}
			h.fields[key] += "\n" + value
			continue
		}
		key = fieldKey(label)
		h.fields[key] = value
	}
	return h, nil
}

// parseRelated returns the text of every cell of the related cases table
func parseRelated(table *goquery.Selection) []string {
	var related []string
	table.Find("td").Each(func(_ int, td *goquery.Selection) {
		related = append(related, normalize(td.Text()))
	})
	return related
}
