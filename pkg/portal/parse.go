package portal

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antzucaro/matchr"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/models"
)

// ResultsPage is one parsed search results page
type ResultsPage struct {
	Query models.SearchQuery
	// RecordCount is the portal's own row count, -1 when it is not shown
	RecordCount int
	References  []models.CaseReference
}

var recordCountPattern = regexp.MustCompile(`Record Count:?\s*(\d+)`)

func parseDocument(body []byte) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}
	return doc, nil
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(s, "\u00a0", " ")), " ")
}

// findSearchEntry returns the href of the first anchor matching label
func findSearchEntry(doc *goquery.Document, layout Layout, label string) (string, bool) {
	var href string
	doc.Find(layout.SearchEntryLinks).EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if !strings.EqualFold(cleanText(a.Text()), cleanText(label)) {
			return true
		}
		if h, ok := a.Attr("href"); ok && h != "" {
			href = h
			return false
		}
		return true
	})
	return href, href != ""
}

// parseLocation picks the option whose text matches want, else the first one
func parseLocation(doc *goquery.Document, layout Layout, want string) (Location, bool) {
	var (
		first Location
		found bool
		match Location
		hit   bool
	)
	doc.Find(layout.LocationOptions).Each(func(_ int, opt *goquery.Selection) {
		loc := Location{Desc: cleanText(opt.Text()), ID: opt.AttrOr("value", "")}
		if !found {
			first, found = loc, true
		}
		if !hit && strings.EqualFold(loc.Desc, cleanText(want)) {
			match, hit = loc, true
		}
	})
	if hit {
		return match, true
	}
	return first, found
}

func parseHidden(doc *goquery.Document, layout Layout) map[string]string {
	hidden := make(map[string]string)
	doc.Find(layout.HiddenInputs).Each(func(_ int, in *goquery.Selection) {
		name, ok := in.Attr("name")
		if !ok || name == "" {
			return
		}
		hidden[name] = in.AttrOr("value", "")
	})
	return hidden
}

// parseOfficers maps officer display names to portal ids
func parseOfficers(doc *goquery.Document, layout Layout) (map[string]string, error) {
	sel := doc.Find(layout.OfficerSelect)
	if sel.Length() == 0 {
		return nil, fmt.Errorf("judicial officer selector %q not found", layout.OfficerSelect)
	}

	roster := make(map[string]string)
	sel.Find("option").Each(func(_ int, opt *goquery.Selection) {
		id := strings.TrimSpace(opt.AttrOr("value", ""))
		name := cleanText(opt.Text())
		if id == "" || name == "" {
			return
		}
		roster[name] = id
	})
	return roster, nil
}

func parseResults(doc *goquery.Document, pageURL string, layout Layout, captured models.CaptureDate) (*ResultsPage, error) {
	page := &ResultsPage{RecordCount: -1}
	if m := recordCountPattern.FindStringSubmatch(cleanText(doc.Text())); m != nil {
		page.RecordCount, _ = strconv.Atoi(m[1])
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid results url %q: %w", pageURL, err)
	}

	seen := make(map[string]bool)
	doc.Find(layout.ResultLinks).Each(func(_ int, a *goquery.Selection) {
		raw, ok := a.Attr(layout.ResultAttr)
		if !ok {
			return
		}
		ref, err := url.Parse(strings.TrimSpace(raw))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		id := abs.Query().Get(layout.CaseIDParam)
		if id == "" || seen[id] {
			return
		}
		seen[id] = true

		page.References = append(page.References, models.CaseReference{
			CaseNumber:  cleanText(a.Text()),
			InternalID:  id,
			Href:        abs.String(),
			CaptureDate: captured,
		})
	})
	return page, nil
}

// suggestThreshold is the Jaro-Winkler similarity above which a roster name
// is offered for a misspelt officer
const suggestThreshold = 0.85

// ResolveOfficers maps operator-supplied names to roster entries.
// With no names, the whole roster is returned sorted by name. Names are
// matched exactly first, then ignoring case and spacing. A name that still
// does not match is reported unknown, with the most similar roster name as
// a suggestion. Near misses are never searched.
func ResolveOfficers(roster map[string]string, names []string) ([]models.JudicialOfficer, []*errs.UnknownOfficerError) {
	if len(names) == 0 {
		all := make([]models.JudicialOfficer, 0, len(roster))
		for name, id := range roster {
			all = append(all, models.JudicialOfficer{Name: name, ID: id})
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
		return all, nil
	}

	folded := make(map[string]string, len(roster))
	for name := range roster {
		folded[strings.ToLower(cleanText(name))] = name
	}

	var (
		officers []models.JudicialOfficer
		unknown  []*errs.UnknownOfficerError
		seen     = make(map[string]bool)
	)
	for _, want := range names {
		name := want
		_, ok := roster[name]
		if !ok {
			name, ok = folded[strings.ToLower(cleanText(want))]
		}
		if !ok {
			unknown = append(unknown, &errs.UnknownOfficerError{Name: want, Suggestion: closestOfficer(folded, want)})
			continue
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		officers = append(officers, models.JudicialOfficer{Name: name, ID: roster[name]})
	}
	return officers, unknown
}

// closestOfficer returns the roster name most similar to want, or "" when
// none reaches suggestThreshold. folded maps folded names to roster names.
func closestOfficer(folded map[string]string, want string) string {
	target := strings.ToLower(cleanText(want))
	var (
		best      string
		bestScore float64
	)
	for key, name := range folded {
		score := matchr.JaroWinkler(target, key, false)
		if score > bestScore || (score == bestScore && name < best) {
			best, bestScore = name, score
		}
	}
	if bestScore < suggestThreshold {
		return ""
	}
	return best
}
