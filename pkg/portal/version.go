package portal

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"odysseyscraper/pkg/models"
)

// Version is the Odyssey markup family a portal renders
type Version int

const (
	VersionUnknown Version = iota
	// Version2003 is the ASP.NET WebForms portal (Search.aspx, CaseDetail.aspx)
	Version2003
	// VersionPost2017 is the MVC "Portal" application
	VersionPost2017
)

func (v Version) String() string {
	switch v {
	case Version2003:
		return "pre-2017"
	case VersionPost2017:
		return "post-2017"
	default:
		return "unknown"
	}
}

// ParseVersion accepts a release year ("2003", "2017") or a family tag
// ("pre-2017", "post-2017").
func ParseVersion(s string) (Version, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "pre-2017", "2003":
		return Version2003, nil
	case "post-2017":
		return VersionPost2017, nil
	}
	year, err := strconv.Atoi(s)
	if err != nil {
		return VersionUnknown, fmt.Errorf("unknown portal version %q", s)
	}
	if year < 2017 {
		return Version2003, nil
	}
	return VersionPost2017, nil
}

func (v *Version) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseVersion(value.Value)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

func (v Version) MarshalYAML() (interface{}, error) {
	return v.String(), nil
}

// Layout is every version-dependent selector and form field name.
// Nothing else in the package branches on Version.
type Layout struct {
	// SearchEntryLinks selects candidate anchors on the landing page
	SearchEntryLinks string
	// LocationOptions selects the court location choices on the landing page
	LocationOptions string
	// OfficerSelect is the judicial officer <select> on the search page
	OfficerSelect string
	HiddenInputs  string
	// RequiredHidden must be present for a search postback to be accepted
	RequiredHidden []string
	// ResultLinks selects case links on a results page
	ResultLinks string
	ResultAttr  string
	// CaseIDParam is the query parameter holding the internal case id
	CaseIDParam string
	// CaseDetailPath is the case page path, relative to the portal root
	CaseDetailPath string
	// DateLayout is the date format the search form expects
	DateLayout string

	searchForm func(hidden map[string]string, loc Location, q models.SearchQuery, dateLayout string) url.Values
}

// Layout returns the markup description for v
func (v Version) Layout() Layout {
	switch v {
	case VersionPost2017:
		return Layout{
			SearchEntryLinks: "a.portlet-buttons",
			LocationOptions:  "select#Settings_DefaultLocation option, select[name='Settings.DefaultLocation'] option",
			OfficerSelect:    "#selHSJudicialOfficer",
			HiddenInputs:     "input[type=hidden]",
			RequiredHidden:   []string{"__RequestVerificationToken"},
			ResultLinks:      "a.caseLink",
			ResultAttr:       "data-url",
			CaseIDParam:      "eid",
			CaseDetailPath:   "Case/CaseDetail?eid=",
			DateLayout:       "01/02/2006",
			searchForm:       post2017SearchForm,
		}
	default:
		return Layout{
			SearchEntryLinks: "a.ssSearchHyperlink",
			LocationOptions:  "select#sbxControlID2 option",
			OfficerSelect:    "#cboJudOffc",
			HiddenInputs:     "input[type=hidden]",
			RequiredHidden:   []string{"__VIEWSTATE"},
			ResultLinks:      `a[href^="CaseDetail"]`,
			ResultAttr:       "href",
			CaseIDParam:      "CaseID",
			CaseDetailPath:   "CaseDetail.aspx?CaseID=",
			DateLayout:       "01/02/2006",
			searchForm:       pre2017SearchForm,
		}
	}
}

// SearchForm builds the postback body for q
func (l Layout) SearchForm(hidden map[string]string, loc Location, q models.SearchQuery) url.Values {
	return l.searchForm(hidden, loc, q, l.DateLayout)
}

func withHidden(hidden map[string]string) url.Values {
	form := url.Values{}
	for k, v := range hidden {
		form.Set(k, v)
	}
	return form
}

// pre2017SearchForm mirrors the WebForms judicial officer calendar search
func pre2017SearchForm(hidden map[string]string, loc Location, q models.SearchQuery, dateLayout string) url.Values {
	date := q.Date.Format(dateLayout)

	form := withHidden(hidden)
	form.Set("__EVENTTARGET", "")
	form.Set("__EVENTARGUMENT", "")
	form.Set("NodeID", loc.ID)
	form.Set("NodeDesc", loc.Desc)
	form.Set("SearchBy", "3")
	form.Set("ExactName", "on")
	form.Set("PartySearchMode", "Name")
	form.Set("AttorneySearchMode", "Name")
	form.Set("cboState", "AA")
	form.Set("CaseStatusType", "0")
	form.Set("cboJudOffc", q.Officer.ID)
	form.Set("chkCriminal", "on")
	form.Set("chkDtRangeCriminal", "on")
	form.Set("chkCriminalMagist", "on")
	form.Set("DateSettingOnAfter", date)
	form.Set("DateSettingOnBefore", date)
	form.Set("SortBy", "fileddate")
	form.Set("SearchSubmit", "Search")
	form.Set("SearchType", "JUDOFFC")
	form.Set("SearchMode", "JUDOFFC")
	form.Set("StatusType", "true")
	form.Set("AllStatusTypes", "true")
	form.Set("CaseCategories", "CR")
	form.Set("SearchParams", fmt.Sprintf(
		"SearchBy~~Search By:~~Judicial Officer~~Judicial Officer||chkExactName~~Exact Name:~~on~~on||"+
			"cboJudOffc~~Judicial Officer:~~%s~~%s||DateSettingOnAfter~~Date On or After:~~%s~~%s||"+
			"DateSettingOnBefore~~Date On or Before:~~%s~~%s||selectSortBy~~Sort By:~~Filed Date~~Filed Date",
		q.Officer.ID, q.Officer.Name, date, date, date, date))
	return form
}

// post2017SearchForm mirrors the MVC portal hearing search by judicial officer
func post2017SearchForm(hidden map[string]string, loc Location, q models.SearchQuery, dateLayout string) url.Values {
	date := q.Date.Format(dateLayout)

	form := withHidden(hidden)
	form.Set("SearchCriteria.SelectedCourt", loc.ID)
	form.Set("SearchCriteria.SelectedHearingType", "All Hearing Types")
	form.Set("SearchCriteria.SearchByType", "JudicialOfficer")
	form.Set("SearchCriteria.SelectedJudicialOfficer", q.Officer.ID)
	form.Set("SearchCriteria.DateFrom", date)
	form.Set("SearchCriteria.DateTo", date)
	return form
}
