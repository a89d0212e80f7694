// Package paginate turns an officer roster and a date range into one search
// per (officer, day) and drives those searches through a Searcher.
//
// The day is the smallest unit a portal can filter on. A day whose result
// set reaches the portal's record cap cannot be split further, so it is
// reported as truncated instead.
package paginate

import (
	"context"
	stderrors "errors"
	"fmt"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
	"odysseyscraper/pkg/portal"
)

// Searcher runs one search. Implementations own their session state.
type Searcher interface {
	Search(ctx context.Context, query models.SearchQuery) (*portal.ResultsPage, error)
}

// Matrix returns one query per officer per day, day-major and oldest first
func Matrix(officers []models.JudicialOfficer, dates models.DateRange) []models.SearchQuery {
	days := dates.Days()
	queries := make([]models.SearchQuery, 0, len(days)*len(officers))
	for _, day := range days {
		for _, officer := range officers {
			queries = append(queries, models.SearchQuery{Officer: officer, Date: day})
		}
	}
	return queries
}

// Outcome describes one finished query
type Outcome struct {
	Query models.SearchQuery
	// Cases is the number of references forwarded
	Cases int
	// Truncated is set when the result set reached the record cap
	Truncated bool
	Err       error
}

// Stats summarizes a Run
type Stats struct {
	Queries    int
	Skipped    int
	Failed     int
	Truncated  int
	References int
}

// Options configures a Paginator
type Options struct {
	// RecordCap is the portal's per-query row limit; 0 means unknown
	RecordCap int
	// Skip reports queries that already completed in an earlier run
	Skip func(models.SearchQuery) bool
	// Report receives every outcome, successful or not
	Report func(Outcome)
	Logger logger.Logger
}

// Paginator runs a query list through a single Searcher, in order
type Paginator struct {
	searcher  Searcher
	recordCap int
	skip      func(models.SearchQuery) bool
	report    func(Outcome)
	log       logger.Logger
}

// New creates a Paginator over searcher
func New(searcher Searcher, opts Options) *Paginator {
	p := &Paginator{
		searcher:  searcher,
		recordCap: opts.RecordCap,
		skip:      opts.Skip,
		report:    opts.Report,
		log:       logger.OrDefault(opts.Logger).WithField("component", "paginate"),
	}
	if p.skip == nil {
		p.skip = func(models.SearchQuery) bool { return false }
	}
	if p.report == nil {
		p.report = func(Outcome) {}
	}
	return p
}

// truncated reports whether page hit the record cap
func (p *Paginator) truncated(page *portal.ResultsPage) bool {
	if p.recordCap <= 0 {
		return false
	}
	return page.RecordCount >= p.recordCap || len(page.References) >= p.recordCap
}

// Run searches every query and hands each case reference to emit, along
// with the query that listed it.
//
// A failing query is logged, reported and skipped. Run stops early only
// when ctx is done, when emit fails, or when the searcher returns a fatal
// error such as a session that can no longer be established.
func (p *Paginator) Run(ctx context.Context, queries []models.SearchQuery, emit func(models.SearchQuery, models.CaseReference) error) (Stats, error) {
	var stats Stats

	for _, query := range queries {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("%w: %w", errs.ErrCanceled, err)
		}

		if p.skip(query) {
			stats.Skipped++
			continue
		}
		stats.Queries++

		log := p.log.WithFields(map[string]interface{}{
			"officer": query.Officer.Name,
			"date":    query.DateString(),
		})

		page, err := p.searcher.Search(ctx, query)
		if err != nil {
			if errs.IsFatal(err) {
				return stats, err
			}
			if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
				return stats, fmt.Errorf("%w: %w", errs.ErrCanceled, err)
			}
			stats.Failed++
			log.WithError(err).WithField("kind", string(errs.KindOf(err))).Warn("search failed, skipping query")
			p.report(Outcome{Query: query, Err: err})
			continue
		}

		outcome := Outcome{Query: query, Truncated: p.truncated(page)}
		if outcome.Truncated {
			stats.Truncated++
			log.WithFields(map[string]interface{}{
				"record_count": page.RecordCount,
				"record_cap":   p.recordCap,
			}).Warn("result set reached the record cap, results may be incomplete")
		}

		for _, ref := range page.References {
			if err := emit(query, ref); err != nil {
				outcome.Err = err
				p.report(outcome)
				return stats, err
			}
			outcome.Cases++
			stats.References++
		}

		log.WithField("cases", outcome.Cases).Debug("query completed")
		p.report(outcome)
	}

	return stats, nil
}
