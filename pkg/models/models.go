package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// CaptureDateLayout is the on-disk format of capture dates (MM-DD-YYYY)
const CaptureDateLayout = "01-02-2006"

// CaptureDate is the calendar day a page was fetched
type CaptureDate struct {
	time.Time
}

// NewCaptureDate truncates t to its calendar day
func NewCaptureDate(t time.Time) CaptureDate {
	y, m, d := t.Date()
	return CaptureDate{Time: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseCaptureDate parses an MM-DD-YYYY date
func ParseCaptureDate(s string) (CaptureDate, error) {
	t, err := time.Parse(CaptureDateLayout, strings.TrimSpace(s))
	if err != nil {
		return CaptureDate{}, fmt.Errorf("invalid capture date %q: %w", s, err)
	}
	return NewCaptureDate(t), nil
}

func (d CaptureDate) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(CaptureDateLayout)
}

// Before reports whether d is a strictly earlier day than o
func (d CaptureDate) Before(o CaptureDate) bool {
	return d.Time.Before(o.Time)
}

// Equal reports whether both dates fall on the same day
func (d CaptureDate) Equal(o CaptureDate) bool {
	return d.Time.Equal(o.Time)
}

func (d CaptureDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *CaptureDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*d = CaptureDate{}
		return nil
	}
	parsed, err := ParseCaptureDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DateRange is an inclusive range of calendar days
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days enumerates every day in the range, oldest first
func (r DateRange) Days() []time.Time {
	start := NewCaptureDate(r.Start).Time
	end := NewCaptureDate(r.End).Time

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

func (r DateRange) String() string {
	return fmt.Sprintf("%s..%s", r.Start.Format(time.DateOnly), r.End.Format(time.DateOnly))
}

// JudicialOfficer is one entry of a portal's officer roster
type JudicialOfficer struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// SearchQuery is a single (officer, day) search
type SearchQuery struct {
	Officer JudicialOfficer
	Date    time.Time
}

// DateString formats the query date the way portals expect it
func (q SearchQuery) DateString() string {
	return q.Date.Format(CaptureDateLayout)
}

// Key identifies the query across runs
func (q SearchQuery) Key() string {
	return q.Officer.ID + "@" + q.Date.Format(time.DateOnly)
}

func (q SearchQuery) String() string {
	return fmt.Sprintf("%s (%s) on %s", q.Officer.Name, q.Officer.ID, q.DateString())
}

// CaseReference is one row of a search results page
type CaseReference struct {
	CaseNumber  string
	InternalID  string
	Href        string
	CaptureDate CaptureDate
}

// RawCasePage is a fetched, unparsed case detail page
type RawCasePage struct {
	CaseNumber  string
	SourceID    string
	CaptureDate CaptureDate
	HTML        []byte
}
