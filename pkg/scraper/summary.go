package scraper

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/models"
)

// RunSummary counts what a run did. It is safe for concurrent use.
type RunSummary struct {
	mu sync.Mutex

	County    string
	DateRange models.DateRange
	Officers  int
	Started   time.Time
	Finished  time.Time

	Queries        int
	QueriesSkipped int
	Truncated      int
	References     int
	Fetched        int
	Archived       int
	Stored         int
	Unchanged      int
	Cached         int

	failures map[errs.Kind]int
	// TruncatedQueries lists the keys of queries that hit the record cap
	TruncatedQueries []string
}

func newRunSummary(county string, dates models.DateRange) *RunSummary {
	return &RunSummary{
		County:    county,
		DateRange: dates,
		Started:   time.Now(),
		failures:  make(map[errs.Kind]int),
	}
}

func (s *RunSummary) add(f func(s *RunSummary)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f(s)
}

// RecordFailure counts err under its Kind
func (s *RunSummary) RecordFailure(err error) {
	if err == nil {
		return
	}
	kind := errs.KindOf(err)
	s.add(func(s *RunSummary) { s.failures[kind]++ })
}

// Failures returns the count for kind
func (s *RunSummary) Failures(kind errs.Kind) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failures[kind]
}

// FailureCounts returns a copy of the failure counts
func (s *RunSummary) FailureCounts() map[errs.Kind]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[errs.Kind]int, len(s.failures))
	for k, v := range s.failures {
		out[k] = v
	}
	return out
}

// Stale returns the number of candidates skipped for being older than the stored record
func (s *RunSummary) Stale() int {
	return s.Failures(errs.KindStaleCandidate)
}

// Failed returns every counted failure except stale candidates
func (s *RunSummary) Failed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for kind, n := range s.failures {
		if kind != errs.KindStaleCandidate {
			total += n
		}
	}
	return total
}

// Duration returns how long the run took
func (s *RunSummary) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Finished.IsZero() {
		return time.Since(s.Started)
	}
	return s.Finished.Sub(s.Started)
}

func (s *RunSummary) finish() {
	s.add(func(s *RunSummary) { s.Finished = time.Now() })
}

// Render writes the summary as a table
func (s *RunSummary) Render(w io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	if s.DateRange.Start.IsZero() {
		t.SetTitle(s.County)
	} else {
		t.SetTitle(fmt.Sprintf("%s  %s", s.County, s.DateRange))
	}
	t.AppendHeader(table.Row{"Item", "Count"})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})

	t.AppendRows([]table.Row{
		{"officers", s.Officers},
		{"queries", s.Queries},
		{"queries resumed", s.QueriesSkipped},
		{"truncated", s.Truncated},
		{"case references", s.References},
		{"cases fetched", s.Fetched},
		{"pages archived", s.Archived},
		{"cases stored", s.Stored},
		{"unchanged", s.Unchanged},
		{"already cached", s.Cached},
	})

	t.AppendSeparator()
	for _, kind := range errs.Kinds {
		if n := s.failures[kind]; n > 0 {
			t.AppendRow(table.Row{string(kind), n})
		}
	}

	end := s.Finished
	if end.IsZero() {
		end = time.Now()
	}
	t.AppendFooter(table.Row{"duration", end.Sub(s.Started).Round(time.Millisecond).String()})
	t.Render()
}
