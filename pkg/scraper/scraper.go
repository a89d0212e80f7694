package scraper

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"odysseyscraper/internal/worker"
	"odysseyscraper/pkg/cachegate"
	"odysseyscraper/pkg/checkpoint"
	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/extract"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
	"odysseyscraper/pkg/paginate"
	"odysseyscraper/pkg/portal"
	"odysseyscraper/pkg/ratelimit"
	"odysseyscraper/pkg/storage"
	"odysseyscraper/pkg/transport"
)

// ErrCheckpointExists is returned when an unfinished run for the same
// county and dates exists and neither resume nor restart was requested
var ErrCheckpointExists = stderrors.New("checkpoint exists - use --resume to continue or --force-restart to start fresh")

// progressEvery is how many finished queries pass between progress logs
const progressEvery = 25

// Scraper runs the officer x day search matrix of one county and turns the
// listed cases into stored records
type Scraper struct {
	rc          *RunConfig
	store       storage.Store
	ownStore    bool
	archive     *storage.Archive
	gate        *cachegate.Gate
	extractor   *extract.Extractor
	limiter     *ratelimit.MinDelay
	checkpoints *checkpoint.Manager
	clock       func() time.Time
	log         logger.Logger
}

// Option customizes a Scraper
type Option func(*Scraper)

// WithClock sets the clock used for capture dates
func WithClock(now func() time.Time) Option {
	return func(s *Scraper) { s.clock = now }
}

// WithStore uses store instead of opening the configured backend. The
// caller keeps ownership of store.
func WithStore(store storage.Store) Option {
	return func(s *Scraper) { s.store = store }
}

// New creates a Scraper for rc, opening its storage and checkpoint directory
func New(rc *RunConfig, log logger.Logger, opts ...Option) (*Scraper, error) {
	log = logger.OrDefault(log).WithField("county", rc.County())

	s := &Scraper{
		rc:        rc,
		extractor: extract.New(log),
		limiter:   ratelimit.NewMinDelay(rc.MinDelay),
		clock:     time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.store == nil {
		store, err := storage.Open(rc.Storage, rc.County())
		if err != nil {
			return nil, fmt.Errorf("failed to open case store: %w", err)
		}
		s.store = store
		s.ownStore = true
	}
	s.gate = cachegate.New(s.store, log)

	if rc.Storage.ArchiveHTML {
		archive, err := storage.OpenArchive(rc.Storage, rc.County())
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to open page archive: %w", err)
		}
		s.archive = archive
	}

	checkpoints, err := checkpoint.NewManager(rc.County(), rc.CheckpointDir, log)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create checkpoint manager: %w", err)
	}
	s.checkpoints = checkpoints

	return s, nil
}

// Close releases the store when the Scraper opened it
func (s *Scraper) Close() error {
	if s.ownStore && s.store != nil {
		return s.store.Close()
	}
	return nil
}

// Limiter returns the run's shared rate limiter
func (s *Scraper) Limiter() *ratelimit.MinDelay { return s.limiter }

// shardJob is one session worker's share of the query matrix
type shardJob struct {
	session *session
	queries []models.SearchQuery
}

// caseJob carries the navigator of the session that listed the case, so
// the fetch rides on that session's cookies
type caseJob struct {
	query string
	ref   models.CaseReference
	nav   *portal.Navigator
}

type caseResult struct {
	query    string
	ref      models.CaseReference
	cached   bool
	fetched  bool
	archived bool
	decision cachegate.Decision
	err      error
}

// Run scrapes the configured county and date range.
//
// Per-query and per-case failures are counted in the summary and do not
// stop the run. A session that cannot be established is fatal and is
// returned as a *errors.NavigationError. Cancelling ctx stops the run
// between queries and between case fetches.
func (s *Scraper) Run(ctx context.Context) (*RunSummary, error) {
	summary := newRunSummary(s.rc.County(), s.rc.DateRange)
	defer summary.finish()

	logger.LogComponentStart(s.log, "scraper", map[string]interface{}{
		"dates":           s.rc.DateRange.String(),
		"session_workers": s.rc.SessionWorkers,
		"case_workers":    s.rc.CaseWorkers,
		"min_delay":       s.rc.MinDelay.String(),
		"overwrite":       s.rc.Overwrite,
	})

	runCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	first := s.newSession(0)
	if err := first.connect(); err != nil {
		return summary, err
	}
	if s.rc.RespectRobots {
		s.applyRobots(runCtx, first)
	}
	if err := first.establish(runCtx); err != nil {
		summary.RecordFailure(err)
		logger.LogComponentStop(s.log, "scraper", "session bootstrap failed")
		return summary, err
	}

	officers, err := s.resolveOfficers(first, summary)
	if err != nil {
		return summary, err
	}

	queries := paginate.Matrix(officers, s.rc.DateRange)
	cp, err := s.prepareCheckpoint(len(queries))
	if err != nil {
		return summary, err
	}

	tracker := newQueryTracker(func(key string, n int) {
		if cp == nil {
			return
		}
		if err := s.checkpoints.MarkCompleted(cp, key, n); err != nil {
			s.log.WithError(err).Warn("Failed to save checkpoint")
		}
	})

	cases := worker.New(runCtx, "cases", s.rc.CaseWorkers, s.processCase, s.log)
	cases.Start()
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for res := range cases.Results() {
			s.recordCase(summary, tracker, res)
		}
	}()

	var (
		progressMu sync.Mutex
		finished   int
	)
	report := func(o paginate.Outcome) {
		s.recordQuery(summary, tracker, o)
		progressMu.Lock()
		finished++
		if finished%progressEvery == 0 || finished == len(queries) {
			logger.LogProgress(s.log, finished, len(queries))
		}
		progressMu.Unlock()
	}
	skip := func(q models.SearchQuery) bool {
		return cp != nil && cp.IsCompleted(q.Key())
	}

	jobs := s.shardJobs(first, queries)
	worker.Map(runCtx, "sessions", len(jobs), jobs, func(ctx context.Context, _ int, job shardJob) error {
		p := paginate.New(job.session, paginate.Options{
			RecordCap: s.rc.RecordCap,
			Skip:      skip,
			Report:    report,
			Logger:    job.session.log,
		})
		stats, err := p.Run(ctx, job.queries, func(q models.SearchQuery, ref models.CaseReference) error {
			key := q.Key()
			tracker.submitted(key)
			if err := cases.Submit(caseJob{query: key, ref: ref, nav: job.session.nav}); err != nil {
				tracker.finished(key, false)
				return err
			}
			return nil
		})
		summary.add(func(s *RunSummary) { s.QueriesSkipped += stats.Skipped })

		if err != nil && errs.IsFatal(err) {
			summary.RecordFailure(err)
			cancel(err)
		}
		return err
	}, s.log)

	cases.Stop()
	<-collected

	if cause := context.Cause(runCtx); cause != nil && errs.IsFatal(cause) {
		logger.LogComponentStop(s.log, "scraper", "session lost")
		return summary, cause
	}
	if err := ctx.Err(); err != nil {
		if n := tracker.open(); n > 0 {
			s.log.WithField("queries", n).Info("Queries with unfinished cases stay open for resume")
		}
		logger.LogComponentStop(s.log, "scraper", "canceled")
		return summary, fmt.Errorf("%w: %w", errs.ErrCanceled, err)
	}

	if cp != nil && cp.CompletedCount() >= cp.TotalQueries {
		if err := s.checkpoints.Delete(); err != nil {
			s.log.WithError(err).Warn("Failed to delete finished checkpoint")
		}
	}

	logger.LogComponentStop(s.log, "scraper", "completed")
	return summary, nil
}

// applyRobots raises the shared delay to the portal's Crawl-delay
func (s *Scraper) applyRobots(ctx context.Context, ss *session) {
	policy, err := ss.tr.FetchRobots(ctx, s.rc.UserAgent, s.robotsPaths(ss.tr)...)
	if err != nil {
		s.log.WithError(err).Warn("Failed to read robots.txt")
		return
	}
	for _, path := range policy.Disallowed {
		s.log.WithField("path", path).Warn("robots.txt disallows a portal path used by the scraper")
	}
	if policy.CrawlDelay > 0 && s.limiter.EnsureAtLeast(policy.CrawlDelay) {
		s.log.WithField("crawl_delay", policy.CrawlDelay.String()).Info("Raised minimum delay to robots.txt crawl delay")
	}
}

// robotsPaths returns the portal root and case page paths
func (s *Scraper) robotsPaths(tr *transport.Transport) []string {
	detail, _, _ := strings.Cut(s.rc.Profile.Version.Layout().CaseDetailPath, "?")
	var paths []string
	for _, ref := range []string{"", detail} {
		abs, err := tr.Resolve("", ref)
		if err != nil {
			continue
		}
		u, err := url.Parse(abs)
		if err != nil || u.Path == "" {
			paths = append(paths, "/")
			continue
		}
		paths = append(paths, u.Path)
	}
	return paths
}

// resolveOfficers maps the officer filter onto the portal roster. Unknown
// names are reported and skipped.
func (s *Scraper) resolveOfficers(first *session, summary *RunSummary) ([]models.JudicialOfficer, error) {
	roster, err := first.nav.ListJudicialOfficers(first.state)
	if err != nil {
		return nil, fmt.Errorf("failed to read officer roster: %w", err)
	}

	officers, unknown := portal.ResolveOfficers(roster, s.rc.OfficerFilter)
	for _, u := range unknown {
		s.log.WithFields(map[string]interface{}{
			"officer":    u.Name,
			"suggestion": u.Suggestion,
		}).Warn("Judicial officer not on the portal roster, skipping")
		summary.RecordFailure(u)
	}
	if len(officers) == 0 {
		return nil, fmt.Errorf("no judicial officers to search (roster has %d entries)", len(roster))
	}

	summary.add(func(s *RunSummary) { s.Officers = len(officers) })
	s.log.WithField("officers", len(officers)).Info("Resolved judicial officers")
	return officers, nil
}

// shardJobs deals the queries round-robin over the session workers. The
// bootstrap session takes the first share; the others start unestablished.
func (s *Scraper) shardJobs(first *session, queries []models.SearchQuery) []shardJob {
	n := s.rc.SessionWorkers
	if n > len(queries) {
		n = len(queries)
	}
	if n < 1 {
		n = 1
	}

	jobs := make([]shardJob, n)
	for i := range jobs {
		if i == 0 {
			jobs[i].session = first
		} else {
			jobs[i].session = s.newSession(i)
		}
	}
	for i, q := range queries {
		jobs[i%n].queries = append(jobs[i%n].queries, q)
	}
	return jobs
}

// prepareCheckpoint loads, replaces or creates the run's checkpoint
func (s *Scraper) prepareCheckpoint(total int) (*checkpoint.Checkpoint, error) {
	mgr := s.checkpoints
	county, dates := s.rc.County(), s.rc.DateRange

	if s.rc.ForceRestart && mgr.Exists() {
		if err := mgr.Delete(); err != nil {
			s.log.WithError(err).Warn("Failed to delete existing checkpoint")
		}
	} else if mgr.Exists() {
		cp, err := mgr.Load()
		if err != nil {
			return nil, fmt.Errorf("failed to load checkpoint: %w", err)
		}
		if cp != nil && cp.Covers(county, dates) {
			if !s.rc.Resume {
				return nil, ErrCheckpointExists
			}
			s.log.InfoWithFields("Resuming from checkpoint", map[string]interface{}{
				"completed": cp.CompletedCount(),
				"total":     cp.TotalQueries,
			})
			return cp, nil
		}
		// A checkpoint for other dates is kept aside, not resumed
		if err := mgr.BackupCheckpoint(); err != nil {
			s.log.WithError(err).Warn("Failed to back up checkpoint")
		}
	}

	cp, err := mgr.Create(county, dates, total)
	if err != nil {
		// Continue without checkpoint
		s.log.WithError(err).Warn("Failed to create checkpoint")
		return nil, nil
	}
	return cp, nil
}

// recordQuery counts a finished search. Its checkpoint entry is written by
// tracker once the cases it listed are settled.
func (s *Scraper) recordQuery(summary *RunSummary, tracker *queryTracker, o paginate.Outcome) {
	tracker.listed(o.Query.Key(), o.Cases, o.Err == nil)
	if o.Err != nil {
		summary.RecordFailure(o.Err)
		return
	}

	summary.add(func(s *RunSummary) {
		s.Queries++
		s.References += o.Cases
		if o.Truncated {
			s.Truncated++
			s.TruncatedQueries = append(s.TruncatedQueries, o.Query.Key())
		}
	})
}

// processCase fetches, archives, extracts and offers one case. Storage
// work for a started case is not interrupted by cancellation.
func (s *Scraper) processCase(ctx context.Context, workerID int, job caseJob) caseResult {
	res := caseResult{query: job.query, ref: job.ref}
	storeCtx := context.WithoutCancel(ctx)
	log := s.log.WithFields(map[string]interface{}{
		"worker_id": workerID,
		"case":      job.ref.CaseNumber,
	})

	if !s.rc.Overwrite && job.ref.CaseNumber != "" {
		_, ok, err := s.store.Load(storeCtx, job.ref.CaseNumber)
		if err != nil {
			res.err = err
			return res
		}
		if ok {
			log.Debug("case already stored, skipping fetch")
			res.cached = true
			return res
		}
	}

	page, err := job.nav.FetchCase(ctx, job.ref)
	if err != nil {
		if ctx.Err() != nil {
			err = fmt.Errorf("%w: %w", errs.ErrCanceled, err)
		}
		log.WithError(err).Warn("case fetch failed")
		res.err = err
		return res
	}
	res.fetched = true

	if s.archive != nil {
		_, written, err := s.archive.Save(page)
		if err != nil {
			log.WithError(err).Warn("failed to archive case page")
		}
		res.archived = written
	}

	record, err := s.extractor.Extract(page)
	if err != nil {
		log.WithError(err).Warn("case page could not be parsed")
		res.err = err
		return res
	}

	res.decision, res.err = s.gate.Offer(storeCtx, record)
	return res
}

func (s *Scraper) recordCase(summary *RunSummary, tracker *queryTracker, res caseResult) {
	tracker.finished(res.query, !stderrors.Is(res.err, errs.ErrCanceled))
	summary.add(func(s *RunSummary) {
		if res.fetched {
			s.Fetched++
		}
		if res.archived {
			s.Archived++
		}
		switch {
		case res.cached:
			s.Cached++
		case res.err != nil:
		case res.decision == cachegate.Persist:
			s.Stored++
		case res.decision == cachegate.Unchanged:
			s.Unchanged++
		}
	})
	summary.RecordFailure(res.err)
}
