package portal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"odysseyscraper/internal/portaltest"
	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
	"odysseyscraper/pkg/retry"
	"odysseyscraper/pkg/transport"
)

var (
	searchDay = time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC)
	fixedNow  = time.Date(2024, 7, 2, 9, 30, 0, 0, time.UTC)
	boyer     = models.JudicialOfficer{Name: "Boyer, Bruce", ID: "39607"}
)

func fastRetry() *retry.Config {
	return &retry.Config{MaxAttempts: 3, Backoff: &retry.ConstantBackoff{Delay: time.Millisecond}}
}

func testProfile(srv *portaltest.Server) *Profile {
	return &Profile{
		County:        "hays",
		BaseURL:       srv.URL(),
		Version:       Version2003,
		Banner:        portaltest.Banner,
		CalendarLabel: portaltest.CalendarLabel,
		Location:      "All Courts",
	}
}

func newTestNavigator(t *testing.T, profile *Profile) *Navigator {
	t.Helper()
	tr, err := transport.New(transport.Options{
		BaseURL: profile.BaseURL,
		Retry:   fastRetry(),
		Logger:  logger.NewNopLogger(),
	})
	require.NoError(t, err)
	return NewNavigator(profile, tr, Options{
		Retry:  fastRetry(),
		Clock:  func() time.Time { return fixedNow },
		Logger: logger.NewNopLogger(),
	})
}

func newPortal(t *testing.T) *portaltest.Server {
	t.Helper()
	srv := portaltest.New()
	t.Cleanup(srv.Close)
	srv.AddOfficer("39607", "Boyer, Bruce")
	srv.AddOfficer("40112", "Henry, Jack")
	srv.AddCase("39607", searchDay, portaltest.DefaultCase())
	return srv
}

func TestParseVersion(t *testing.T) {
	tests := []struct {
		in   string
		want Version
	}{
		{"2003", Version2003},
		{"2011", Version2003},
		{"pre-2017", Version2003},
		{"2017", VersionPost2017},
		{"post-2017", VersionPost2017},
	}
	for _, tt := range tests {
		got, err := ParseVersion(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseVersion("odyssey")
	assert.Error(t, err)
}

func TestLayoutSearchForm(t *testing.T) {
	q := models.SearchQuery{Officer: boyer, Date: searchDay}
	hidden := map[string]string{"__VIEWSTATE": "vs"}

	pre := Version2003.Layout().SearchForm(hidden, Location{Desc: "All Courts", ID: "100"}, q)
	assert.Equal(t, "vs", pre.Get("__VIEWSTATE"))
	assert.Equal(t, "39607", pre.Get("cboJudOffc"))
	assert.Equal(t, "07/01/2024", pre.Get("DateSettingOnAfter"))
	assert.Equal(t, "07/01/2024", pre.Get("DateSettingOnBefore"))
	assert.Equal(t, "All Courts", pre.Get("NodeDesc"))
	assert.Equal(t, "100", pre.Get("NodeID"))
	assert.Contains(t, pre.Get("SearchParams"), "Boyer, Bruce")

	post := VersionPost2017.Layout().SearchForm(hidden, Location{ID: "HAYS"}, q)
	assert.Equal(t, "HAYS", post.Get("SearchCriteria.SelectedCourt"))
	assert.Equal(t, "39607", post.Get("SearchCriteria.SelectedJudicialOfficer"))
	assert.Empty(t, post.Get("cboJudOffc"))
}

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry("")
	require.NoError(t, err)

	hays, err := r.Lookup("Hays County")
	require.NoError(t, err)
	assert.Equal(t, "http://public.co.hays.tx.us/", hays.BaseURL)
	assert.Equal(t, Version2003, hays.Version)
	assert.Equal(t, "Court Calendar", hays.CalendarLabel)

	_, err = r.Lookup("nowhere")
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`profiles:
  - county: Comal
    base_url: https://odyssey.example.org/Portal/
    version: post-2017
    banner: Comal County Portal
    calendar_label: Search Hearings
`), 0644))

	r, err = LoadRegistry(path)
	require.NoError(t, err)
	comal, err := r.Lookup("comal")
	require.NoError(t, err)
	assert.Equal(t, VersionPost2017, comal.Version)
	assert.Len(t, r.Profiles(), 2)
	assert.Equal(t, "comal", r.Profiles()[0].County)
}

func TestLoadRegistryRejectsBadProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profiles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("profiles:\n  - county: x\n    base_url: not-a-url\n    version: 2003\n"), 0644))

	_, err := LoadRegistry(path)
	assert.Error(t, err)
}

func TestEstablishSearchAndFetch(t *testing.T) {
	srv := newPortal(t)
	nav := newTestNavigator(t, testProfile(srv))
	ctx := context.Background()

	state, err := nav.Establish(ctx)
	require.NoError(t, err)
	assert.Equal(t, StageReady, state.Stage)
	assert.True(t, strings.HasSuffix(state.SearchURL, "/Search.aspx?ID=900"))
	assert.Contains(t, state.Hidden, "__VIEWSTATE")
	assert.Contains(t, state.Hidden, "__VIEWSTATEGENERATOR")
	assert.Equal(t, Location{Desc: "All Courts", ID: "100,101,102"}, state.Location)

	roster, err := nav.ListJudicialOfficers(state)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"Boyer, Bruce": "39607", "Henry, Jack": "40112"}, roster)

	page, next, err := nav.Search(ctx, state, models.SearchQuery{Officer: boyer, Date: searchDay})
	require.NoError(t, err)
	assert.Equal(t, 1, page.RecordCount)
	require.Len(t, page.References, 1)

	ref := page.References[0]
	assert.Equal(t, "CR-16-0002-A", ref.CaseNumber)
	assert.Equal(t, "12947592", ref.InternalID)
	assert.Equal(t, "07-02-2024", ref.CaptureDate.String())

	// tokens rotate and the original state is left untouched
	assert.NotEqual(t, state.Hidden["__VIEWSTATE"], next.Hidden["__VIEWSTATE"])
	assert.Equal(t, state.Hidden["__VIEWSTATEGENERATOR"], next.Hidden["__VIEWSTATEGENERATOR"])

	empty, _, err := nav.Search(ctx, next, models.SearchQuery{Officer: boyer, Date: searchDay.AddDate(0, 0, 1)})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.RecordCount)
	assert.Empty(t, empty.References)

	forms := srv.SearchForms()
	require.Len(t, forms, 2)
	assert.Equal(t, "39607", forms[0].Get("cboJudOffc"))
	assert.Equal(t, "07/01/2024", forms[0].Get("DateSettingOnAfter"))
	assert.Equal(t, "All Courts", forms[0].Get("NodeDesc"))

	raw, err := nav.FetchCase(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, "12947592", raw.SourceID)
	assert.Equal(t, "CR-16-0002-A", raw.CaseNumber)
	assert.Contains(t, string(raw.HTML), "ssCaseDetailCaseNbr")
}

func TestSearchFailedVerificationBreaksSession(t *testing.T) {
	srv := newPortal(t)
	nav := newTestNavigator(t, testProfile(srv))
	ctx := context.Background()

	state, err := nav.Establish(ctx)
	require.NoError(t, err)

	srv.BlankNext(portaltest.SearchPath, 3)
	_, broken, err := nav.Search(ctx, state, models.SearchQuery{Officer: boyer, Date: searchDay})
	require.Error(t, err)

	var verr *errs.VerificationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 3, verr.Attempts)
	assert.Equal(t, errs.KindFailedVerification, errs.KindOf(err))
	assert.Equal(t, StageBroken, broken.Stage)
	assert.Equal(t, StageReady, state.Stage)

	_, _, err = nav.Search(ctx, broken, models.SearchQuery{Officer: boyer, Date: searchDay})
	assert.Error(t, err)
}

func TestSearchRecoversWithinAttemptBudget(t *testing.T) {
	srv := newPortal(t)
	nav := newTestNavigator(t, testProfile(srv))
	ctx := context.Background()

	state, err := nav.Establish(ctx)
	require.NoError(t, err)

	srv.BlankNext(portaltest.SearchPath, 2)
	page, _, err := nav.Search(ctx, state, models.SearchQuery{Officer: boyer, Date: searchDay})
	require.NoError(t, err)
	assert.Len(t, page.References, 1)
}

func TestEstablishFailures(t *testing.T) {
	t.Run("banner missing", func(t *testing.T) {
		srv := newPortal(t)
		profile := testProfile(srv)
		profile.Banner = "Travis County Odyssey"

		state, err := newTestNavigator(t, profile).Establish(context.Background())
		require.Error(t, err)

		var navErr *errs.NavigationError
		require.True(t, errors.As(err, &navErr))
		assert.Equal(t, "landing_page", navErr.Stage)
		assert.True(t, errs.IsFatal(err))
		assert.Equal(t, StageBroken, state.Stage)
	})

	t.Run("calendar link missing", func(t *testing.T) {
		srv := newPortal(t)
		profile := testProfile(srv)
		profile.CalendarLabel = "Hearing Calendar"

		_, err := newTestNavigator(t, profile).Establish(context.Background())
		var navErr *errs.NavigationError
		require.True(t, errors.As(err, &navErr))
		assert.Equal(t, "search_entry", navErr.Stage)
	})

	t.Run("search page down", func(t *testing.T) {
		srv := newPortal(t)
		srv.FailNext(portaltest.SearchPath, 503, 503, 503)

		_, err := newTestNavigator(t, testProfile(srv)).Establish(context.Background())
		var navErr *errs.NavigationError
		require.True(t, errors.As(err, &navErr))
		assert.Equal(t, "hidden_tokens", navErr.Stage)

		var exhausted *errs.TransportExhaustedError
		assert.True(t, errors.As(err, &exhausted))
	})
}

func TestFetchCaseWithoutHref(t *testing.T) {
	srv := newPortal(t)
	nav := newTestNavigator(t, testProfile(srv))
	ctx := context.Background()

	_, err := nav.Establish(ctx)
	require.NoError(t, err)

	raw, err := nav.FetchCase(ctx, models.CaseReference{CaseNumber: "CR-16-0002-A", InternalID: "12947592"})
	require.NoError(t, err)
	assert.Equal(t, "07-02-2024", raw.CaptureDate.String())
}

func TestResolveOfficers(t *testing.T) {
	roster := map[string]string{"Boyer, Bruce": "39607", "Henry, Jack": "40112"}

	all, unknown := ResolveOfficers(roster, nil)
	assert.Empty(t, unknown)
	assert.Equal(t, []models.JudicialOfficer{boyer, {Name: "Henry, Jack", ID: "40112"}}, all)

	some, unknown := ResolveOfficers(roster, []string{"boyer,  bruce", "Doe, Jane", "Boyer, Bruce"})
	assert.Equal(t, []models.JudicialOfficer{boyer}, some)
	require.Len(t, unknown, 1)
	assert.Equal(t, "Doe, Jane", unknown[0].Name)
	assert.Empty(t, unknown[0].Suggestion)
	assert.Equal(t, errs.KindUnknownOfficer, errs.KindOf(unknown[0]))

	some, unknown = ResolveOfficers(roster, []string{"Boyer, Brice"})
	assert.Empty(t, some)
	require.Len(t, unknown, 1)
	assert.Equal(t, "Boyer, Bruce", unknown[0].Suggestion)
	assert.Contains(t, unknown[0].Error(), `did you mean "Boyer, Bruce"`)
}
