package transport

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/temoto/robotstxt"
)

// RobotsPolicy is what the portal's robots.txt says about our agent
type RobotsPolicy struct {
	CrawlDelay time.Duration
	// Disallowed lists probed paths the portal asks crawlers to avoid
	Disallowed []string
}

// FetchRobots reads robots.txt from the portal root in one attempt.
// A missing or unreadable file yields an empty policy.
func (t *Transport) FetchRobots(ctx context.Context, userAgent string, paths ...string) (RobotsPolicy, error) {
	robotsURL, err := t.Resolve("", "/robots.txt")
	if err != nil {
		return RobotsPolicy{}, err
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return RobotsPolicy{}, err
	}

	res, err := t.client.R().SetContext(ctx).Get(robotsURL)
	if err != nil {
		t.log.WithError(err).Debug("robots.txt unavailable")
		return RobotsPolicy{}, nil
	}

	data, err := robotstxt.FromStatusAndBytes(res.StatusCode(), res.Body())
	if err != nil {
		return RobotsPolicy{}, fmt.Errorf("parse robots.txt: %w", err)
	}

	agent := normalizeUserAgent(userAgent)
	var policy RobotsPolicy
	if group := data.FindGroup(agent); group != nil {
		policy.CrawlDelay = group.CrawlDelay
	}
	for _, p := range paths {
		if !data.TestAgent(p, agent) {
			policy.Disallowed = append(policy.Disallowed, p)
		}
	}
	return policy, nil
}

// normalizeUserAgent reduces "Name/1.0 (details)" to "Name"
func normalizeUserAgent(ua string) string {
	parts := strings.Fields(ua)
	if len(parts) == 0 {
		return "*"
	}
	return strings.Split(parts[0], "/")[0]
}
