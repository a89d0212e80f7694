package scraper

import (
	"fmt"
	"time"

	"odysseyscraper/pkg/config"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/models"
	"odysseyscraper/pkg/portal"
	"odysseyscraper/pkg/retry"
)

// RunConfig is everything one county run needs, resolved once from the
// loaded configuration
type RunConfig struct {
	Profile  *portal.Profile
	Location string
	// OfficerFilter lists officer names to search; empty means the whole roster
	OfficerFilter []string
	DateRange     models.DateRange
	MinDelay      time.Duration
	RespectRobots bool
	// Overwrite refetches cases that are already stored
	Overwrite      bool
	SessionWorkers int
	CaseWorkers    int
	RecordCap      int
	Retry          *retry.Config
	Timeout        time.Duration
	UserAgent      string
	Storage        config.StorageConfig

	// CheckpointDir holds resume checkpoints; empty uses the data directory
	CheckpointDir string
	Resume        bool
	ForceRestart  bool
}

// NewRunConfig resolves cfg against the portal registry and the current time
func NewRunConfig(cfg *config.Config, registry *portal.Registry, now time.Time) (*RunConfig, error) {
	profile, err := registry.Lookup(cfg.Portal.County)
	if err != nil {
		return nil, err
	}

	start, end, err := cfg.DateRange(now)
	if err != nil {
		return nil, err
	}

	sessions := cfg.Workers.Sessions
	if sessions < 1 {
		sessions = 1
	}
	cases := cfg.Workers.Cases
	if cases < 1 {
		cases = 1
	}
	if cfg.Retry.MaxAttempts < 1 {
		return nil, fmt.Errorf("max attempts must be at least 1, got %d", cfg.Retry.MaxAttempts)
	}

	return &RunConfig{
		Profile:        profile,
		Location:       cfg.Portal.Location,
		OfficerFilter:  append([]string(nil), cfg.Search.Officers...),
		DateRange:      models.DateRange{Start: start, End: end},
		MinDelay:       cfg.RateLimit.MinDelay,
		RespectRobots:  cfg.RateLimit.RespectRobots,
		Overwrite:      cfg.Search.Overwrite,
		SessionWorkers: sessions,
		CaseWorkers:    cases,
		RecordCap:      cfg.Search.RecordCap,
		Retry:          retry.FromConfig(cfg.Retry, logger.GetLogger()),
		Timeout:        cfg.HTTP.Timeout,
		UserAgent:      cfg.HTTP.UserAgent,
		Storage:        cfg.Storage,
	}, nil
}

// County returns the profile's county key
func (rc *RunConfig) County() string {
	return rc.Profile.County
}
