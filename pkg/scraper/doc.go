// Package scraper runs a county scrape end to end.
//
// A run establishes one portal session, resolves the judicial officer
// filter against the portal roster, and deals the officer x day query
// matrix over a pool of session workers. Each session worker owns its own
// cookie jar and re-establishes itself when its session breaks. Case
// references flow into a second pool that fetches, archives and extracts
// each case page and offers the result to the cache gate. Every worker
// shares one rate limiter, so the portal sees a single request stream.
//
//	rc, err := scraper.NewRunConfig(cfg, registry, time.Now())
//	s, err := scraper.New(rc, log)
//	defer s.Close()
//	summary, err := s.Run(ctx)
//	summary.Render(os.Stdout)
//
// Failures of a single query or case are counted in the RunSummary by
// kind and never stop the run. Only a session that cannot be established
// ends it early.
package scraper
