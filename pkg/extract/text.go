package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// normalize trims s and turns non-breaking spaces into plain ones
func normalize(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), "\u00a0", " ")
}

// textNodes returns every non-empty text node under n, in document order
func textNodes(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if t := normalize(n.Data); t != "" {
				out = append(out, t)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

// selectionText flattens the text nodes of every node in sel
func selectionText(sel *goquery.Selection) []string {
	var out []string
	for _, n := range sel.Nodes {
		out = append(out, textNodes(n)...)
	}
	return out
}

// rowTexts returns the text nodes of each row of table, dropping empty rows
func rowTexts(table *goquery.Selection) [][]string {
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if cells := selectionText(tr); len(cells) > 0 {
			rows = append(rows, cells)
		}
	})
	return rows
}
