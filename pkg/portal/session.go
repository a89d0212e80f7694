package portal

import (
	"net/http"
)

// Stage is a step of the portal walk
type Stage int

const (
	StageFresh Stage = iota
	StageHasLandingPage
	StageHasSearchEntry
	StageHasHiddenTokens
	StageReady
	// StageBroken is entered on exhaustion from any stage
	StageBroken
)

var stageNames = map[Stage]string{
	StageFresh:           "fresh",
	StageHasLandingPage:  "landing_page",
	StageHasSearchEntry:  "search_entry",
	StageHasHiddenTokens: "hidden_tokens",
	StageReady:           "ready",
	StageBroken:          "broken",
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Location is the court location a search is scoped to
type Location struct {
	Desc string
	ID   string
}

// SessionState is the per-session portal state. Values are replaced, not
// mutated, so a state handed to a caller never changes underneath it.
type SessionState struct {
	Stage     Stage
	Jar       http.CookieJar
	Hidden    map[string]string
	SearchURL string
	Location  Location

	searchPage []byte
}

// Ready reports whether the state can issue searches
func (s *SessionState) Ready() bool {
	return s != nil && s.Stage == StageReady
}

func (s *SessionState) clone() *SessionState {
	c := *s
	c.Hidden = make(map[string]string, len(s.Hidden))
	for k, v := range s.Hidden {
		c.Hidden[k] = v
	}
	return &c
}

// withStage returns a copy of s at stage
func (s *SessionState) withStage(stage Stage) *SessionState {
	c := s.clone()
	c.Stage = stage
	return c
}

// rotate returns a copy of s whose held hidden tokens take their values
// from fresh. Tokens absent from fresh keep their previous value and new
// names in fresh are ignored.
func (s *SessionState) rotate(fresh map[string]string) *SessionState {
	c := s.clone()
	for k := range c.Hidden {
		if v, ok := fresh[k]; ok {
			c.Hidden[k] = v
		}
	}
	return c
}
