// Package transport is the HTTP layer shared by every portal request.
//
// Each portal session owns one Transport (and so one cookie jar) while all
// sessions share a single rate limiter. Every attempt, including retries,
// waits on the limiter first. Failed attempts (network errors or any
// non-2xx status) are retried per the retry configuration and, once
// exhausted, surface as errors.TransportExhaustedError.
package transport
