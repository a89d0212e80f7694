package scraper

import (
	"context"
	"fmt"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
	"odysseyscraper/pkg/portal"
	"odysseyscraper/pkg/transport"
)

// session is one session worker's portal session. It serializes its own
// searches and re-establishes itself with a fresh cookie jar once broken.
type session struct {
	id      int
	scraper *Scraper
	log     logger.Logger

	tr    *transport.Transport
	nav   *portal.Navigator
	state *portal.SessionState

	establishments int
}

func (s *Scraper) newSession(id int) *session {
	return &session{
		id:      id,
		scraper: s,
		log:     s.log.WithField("session", id),
	}
}

// connect replaces the transport and navigator, dropping any cookies held
func (ss *session) connect() error {
	rc := ss.scraper.rc
	tr, err := transport.New(transport.Options{
		BaseURL:   rc.Profile.BaseURL,
		Limiter:   ss.scraper.limiter,
		Retry:     rc.Retry,
		Timeout:   rc.Timeout,
		UserAgent: rc.UserAgent,
		Logger:    ss.log,
	})
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	ss.tr = tr
	ss.nav = portal.NewNavigator(rc.Profile, tr, portal.Options{
		Location: rc.Location,
		Retry:    rc.Retry,
		Clock:    ss.scraper.clock,
		Logger:   ss.log,
	})
	ss.state = nil
	return nil
}

// establish walks the portal to a ready session. A failure is fatal to the
// run unless it was caused by cancellation.
func (ss *session) establish(ctx context.Context) error {
	if ss.nav == nil || ss.establishments > 0 {
		if err := ss.connect(); err != nil {
			return err
		}
	}
	ss.establishments++

	state, err := ss.nav.Establish(ctx)
	ss.state = state
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("%w: %w", errs.ErrCanceled, ctx.Err())
		}
		return err
	}
	return nil
}

// Search runs one query, re-establishing a broken session first
func (ss *session) Search(ctx context.Context, query models.SearchQuery) (*portal.ResultsPage, error) {
	if !ss.state.Ready() {
		if ss.state != nil {
			ss.log.WithField("stage", ss.state.Stage.String()).Info("re-establishing portal session")
		}
		if err := ss.establish(ctx); err != nil {
			return nil, err
		}
	}

	page, next, err := ss.nav.Search(ctx, ss.state, query)
	ss.state = next
	if err != nil {
		return nil, err
	}
	return page, nil
}
