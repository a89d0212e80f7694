package portal

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/url"
	"time"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
	"odysseyscraper/pkg/retry"
	"odysseyscraper/pkg/transport"
	"odysseyscraper/pkg/verify"
)

// Options configures a Navigator
type Options struct {
	// Location overrides the profile's default court location
	Location string
	// Retry bounds verification attempts; nil uses retry defaults
	Retry  *retry.Config
	Clock  func() time.Time
	Logger logger.Logger
}

// Navigator walks one portal session: landing page, search entry, hidden
// tokens, then searches and case fetches. A Navigator owns its transport's
// cookie jar and must not be shared between session workers.
type Navigator struct {
	profile  *Profile
	layout   Layout
	tr       *transport.Transport
	verifier *verify.Verifier
	location string
	now      func() time.Time
	log      logger.Logger
}

// NewNavigator creates a Navigator over tr for profile
func NewNavigator(profile *Profile, tr *transport.Transport, opts Options) *Navigator {
	log := logger.OrDefault(opts.Logger).WithField("county", profile.County)

	location := opts.Location
	if location == "" {
		location = profile.Location
	}
	now := opts.Clock
	if now == nil {
		now = time.Now
	}

	return &Navigator{
		profile:  profile,
		layout:   profile.Version.Layout(),
		tr:       tr,
		verifier: verify.New(tr, opts.Retry, log),
		location: location,
		now:      now,
		log:      log,
	}
}

// Profile returns the portal profile
func (n *Navigator) Profile() *Profile { return n.profile }

func (n *Navigator) fail(state *SessionState, stage Stage, err error) (*SessionState, error) {
	n.log.WithFields(map[string]interface{}{
		"stage": stage.String(),
		"from":  state.Stage.String(),
	}).WithError(err).Error("session navigation failed")
	return state.withStage(StageBroken), &errs.NavigationError{Stage: stage.String(), Err: err}
}

// Establish performs the portal walk up to StageReady. On failure the
// returned state is Broken and the error is a *errors.NavigationError
// naming the stage that could not be reached.
func (n *Navigator) Establish(ctx context.Context) (*SessionState, error) {
	state := &SessionState{
		Stage:  StageFresh,
		Jar:    n.tr.Jar(),
		Hidden: make(map[string]string),
	}

	landing, err := n.verifier.Fetch(ctx, transport.Get(n.profile.BaseURL), verify.Text(n.profile.Banner))
	if err != nil {
		return n.fail(state, StageHasLandingPage, err)
	}
	state = state.withStage(StageHasLandingPage)

	landingDoc, err := parseDocument(landing.Body)
	if err != nil {
		return n.fail(state, StageHasSearchEntry, err)
	}
	href, ok := findSearchEntry(landingDoc, n.layout, n.profile.CalendarLabel)
	if !ok {
		return n.fail(state, StageHasSearchEntry, fmt.Errorf("no %q link on landing page", n.profile.CalendarLabel))
	}
	searchURL, err := n.tr.Resolve(landing.URL, href)
	if err != nil {
		return n.fail(state, StageHasSearchEntry, err)
	}
	location, haveLocation := parseLocation(landingDoc, n.layout, n.location)

	state = state.withStage(StageHasSearchEntry)
	state.SearchURL = searchURL

	searchPage, err := n.verifier.Fetch(ctx, transport.Get(searchURL), verify.Selector(n.layout.OfficerSelect))
	if err != nil {
		return n.fail(state, StageHasHiddenTokens, err)
	}
	searchDoc, err := parseDocument(searchPage.Body)
	if err != nil {
		return n.fail(state, StageHasHiddenTokens, err)
	}

	hidden := parseHidden(searchDoc, n.layout)
	for _, name := range n.layout.RequiredHidden {
		if _, ok := hidden[name]; !ok {
			return n.fail(state, StageHasHiddenTokens, fmt.Errorf("hidden field %s missing from search page", name))
		}
	}
	if !haveLocation {
		location, haveLocation = parseLocation(searchDoc, n.layout, n.location)
	}
	if !haveLocation {
		location = Location{Desc: n.location}
	}

	state = state.withStage(StageHasHiddenTokens)
	state.Hidden = hidden
	state.SearchURL = searchPage.URL
	state.Location = location
	state.searchPage = searchPage.Body

	ready := state.withStage(StageReady)
	n.log.WithFields(map[string]interface{}{
		"search_url":    ready.SearchURL,
		"hidden_fields": len(ready.Hidden),
		"location":      ready.Location.Desc,
	}).Info("portal session established")
	return ready, nil
}

// Search posts query through the held hidden tokens and parses the results.
// The returned state carries rotated tokens; on exhaustion it is Broken.
func (n *Navigator) Search(ctx context.Context, state *SessionState, query models.SearchQuery) (*ResultsPage, *SessionState, error) {
	if !state.Ready() {
		stage := StageFresh
		if state != nil {
			stage = state.Stage
		}
		return nil, state, fmt.Errorf("session not ready (stage %s)", stage)
	}

	form := n.layout.SearchForm(state.Hidden, state.Location, query)
	resp, err := n.verifier.Fetch(ctx, transport.Post(state.SearchURL, form), verify.ResultsMarker)
	if err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			return nil, state, err
		}
		return nil, state.withStage(StageBroken), err
	}

	doc, err := parseDocument(resp.Body)
	if err != nil {
		return nil, state, err
	}
	page, err := parseResults(doc, resp.URL, n.layout, models.NewCaptureDate(n.now()))
	if err != nil {
		return nil, state, err
	}
	page.Query = query

	n.log.WithFields(map[string]interface{}{
		"officer":      query.Officer.Name,
		"date":         query.DateString(),
		"record_count": page.RecordCount,
		"cases":        len(page.References),
	}).Debug("search completed")

	return page, state.rotate(parseHidden(doc, n.layout)), nil
}

// FetchCase fetches one case page. It needs the session cookies but not the
// hidden tokens, so it is safe to call from several goroutines.
func (n *Navigator) FetchCase(ctx context.Context, ref models.CaseReference) (*models.RawCasePage, error) {
	target := ref.Href
	if target == "" {
		target = n.layout.CaseDetailPath + url.QueryEscape(ref.InternalID)
	}

	resp, err := n.verifier.Fetch(ctx, transport.Get(target), verify.CaseDetailMarker)
	if err != nil {
		return nil, err
	}

	captured := ref.CaptureDate
	if captured.IsZero() {
		captured = models.NewCaptureDate(n.now())
	}
	return &models.RawCasePage{
		CaseNumber:  ref.CaseNumber,
		SourceID:    ref.InternalID,
		CaptureDate: captured,
		HTML:        resp.Body,
	}, nil
}

// ListJudicialOfficers parses the officer roster from the search page held
// by state, as display name to portal id.
func (n *Navigator) ListJudicialOfficers(state *SessionState) (map[string]string, error) {
	if state == nil || len(state.searchPage) == 0 {
		return nil, fmt.Errorf("session has no search page")
	}
	doc, err := parseDocument(state.searchPage)
	if err != nil {
		return nil, err
	}
	return parseOfficers(doc, n.layout)
}
