// Package retry runs an operation a bounded number of times with a pause
// between failures.
//
// Both the page transport and the page verifier are built on Do: the
// transport retries network failures and non-2xx responses, the verifier
// retries responses that are missing their expected marker.
//
//	err := retry.Do(ctx, func(attempt int) error {
//		return fetch()
//	}, retry.FromConfig(cfg.Retry, log))
//
// When every attempt fails Do returns *ExhaustedError carrying the attempt
// count and the last error. Errors rejected by RetryIf are returned as is,
// and no wait happens after the final attempt.
package retry
