// Package ratelimit enforces the minimum spacing between portal requests.
//
// A single MinDelay is created per run and shared by every session and
// case worker, so the configured delay bounds the aggregate request rate
// against the county server rather than the rate of any one goroutine.
//
//	limiter := ratelimit.NewMinDelay(200 * time.Millisecond)
//	if err := limiter.Wait(ctx); err != nil {
//	    return err
//	}
//
// EnsureAtLeast lets the robots.txt crawl-delay raise the spacing at
// startup. The limiter is backed by golang.org/x/time/rate with burst 1.
package ratelimit
