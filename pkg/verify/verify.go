package verify

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"

	"github.com/PuerkitoBio/goquery"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/retry"
	"odysseyscraper/pkg/transport"
)

// Marker is a predicate a correctly rendered page must satisfy
type Marker interface {
	Found(body []byte) bool
	String() string
}

// Text matches when the literal appears anywhere in the body
type Text string

func (t Text) Found(body []byte) bool {
	return bytes.Contains(body, []byte(t))
}

func (t Text) String() string { return fmt.Sprintf("text %q", string(t)) }

// Selector matches when the CSS selector selects at least one element
type Selector string

func (s Selector) Found(body []byte) bool {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return false
	}
	return doc.Find(string(s)).Length() > 0
}

func (s Selector) String() string { return fmt.Sprintf("selector %q", string(s)) }

// Markers used across the portal
var (
	// ResultsMarker appears on every search results page, including empty ones
	ResultsMarker Marker = Text("Record Count")
	// CaseDetailMarker is the case number header on a detail page
	CaseDetailMarker Marker = Selector("div.ssCaseDetailCaseNbr > span")
)

// Check returns a *errors.VerificationError when body does not satisfy m.
// The HTTP status plays no part.
func Check(body []byte, m Marker) error {
	if m.Found(body) {
		return nil
	}
	return &errs.VerificationError{Marker: m.String()}
}

// Doer performs a single transport request
type Doer interface {
	Do(ctx context.Context, req transport.Request) (*transport.Response, error)
}

// Verifier re-issues a request until its response carries the expected marker
type Verifier struct {
	doer  Doer
	retry *retry.Config
	log   logger.Logger
}

// New creates a Verifier. cfg controls the attempt count and pause between
// attempts; its RetryIf is replaced.
func New(doer Doer, cfg *retry.Config, log logger.Logger) *Verifier {
	if cfg == nil {
		cfg = retry.DefaultConfig()
	}
	c := *cfg
	c.RetryIf = isVerificationFailure
	c.Logger = nil

	return &Verifier{doer: doer, retry: &c, log: logger.OrDefault(log)}
}

func isVerificationFailure(err error) bool {
	var verr *errs.VerificationError
	return stderrors.As(err, &verr)
}

// Fetch performs req and returns the first response containing marker.
// Transport failures are returned unchanged. If no attempt yields the
// marker a *errors.VerificationError is returned.
func (v *Verifier) Fetch(ctx context.Context, req transport.Request, marker Marker) (*transport.Response, error) {
	resp, err := retry.DoWithResult(ctx, func(attempt int) (*transport.Response, error) {
		resp, err := v.doer.Do(ctx, req)
		if err != nil {
			return nil, err
		}
		if err := Check(resp.Body, marker); err != nil {
			v.log.WithFields(map[string]interface{}{
				"url":     resp.URL,
				"marker":  marker.String(),
				"attempt": attempt,
			}).Warn("page missing expected marker")
			return nil, &errs.VerificationError{URL: resp.URL, Marker: marker.String()}
		}
		return resp, nil
	}, v.retry)
	if err == nil {
		return resp, nil
	}

	var exhausted *retry.ExhaustedError
	if stderrors.As(err, &exhausted) {
		verr := &errs.VerificationError{URL: req.URL, Marker: marker.String(), Attempts: exhausted.Attempts}
		var last *errs.VerificationError
		if stderrors.As(exhausted.Err, &last) && last.URL != "" {
			verr.URL = last.URL
		}
		return nil, verr
	}
	return nil, err
}
