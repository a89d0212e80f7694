package transport

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/net/publicsuffix"

	errs "odysseyscraper/pkg/errors"
	"odysseyscraper/pkg/logger"
	"odysseyscraper/pkg/ratelimit"
	"odysseyscraper/pkg/retry"
)

// Request is one page request against the portal
type Request struct {
	Method string
	// URL may be absolute or relative to the transport's base URL
	URL  string
	Form url.Values
}

// Get builds a GET request
func Get(rawURL string) Request {
	return Request{Method: http.MethodGet, URL: rawURL}
}

// Post builds a form POST request
func Post(rawURL string, form url.Values) Request {
	return Request{Method: http.MethodPost, URL: rawURL, Form: form}
}

// Response is a successful (2xx) page
type Response struct {
	// URL is the final URL after redirects
	URL        string
	StatusCode int
	Body       []byte
	Elapsed    time.Duration
}

// Options configures a Transport
type Options struct {
	BaseURL   string
	Limiter   ratelimit.Limiter
	Retry     *retry.Config
	Timeout   time.Duration
	UserAgent string
	Logger    logger.Logger
}

// Transport is a cookie-holding HTTP client that waits on the shared rate
// limiter before every attempt and retries failed attempts.
// A Transport belongs to one portal session; the limiter is shared.
type Transport struct {
	base    *url.URL
	client  *resty.Client
	limiter ratelimit.Limiter
	retry   *retry.Config
	log     logger.Logger
	jar     *cookiejar.Jar
}

// New creates a Transport with an empty cookie jar
func New(opts Options) (*Transport, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url %q: %w", opts.BaseURL, err)
	}
	if !base.IsAbs() {
		return nil, fmt.Errorf("base url %q must be absolute", opts.BaseURL)
	}

	limiter := opts.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited()
	}
	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	jar, err := newJar()
	if err != nil {
		return nil, err
	}

	client := resty.New()
	client.SetCookieJar(jar)
	client.SetTimeout(timeout)
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if opts.UserAgent != "" {
		client.SetHeader("User-Agent", opts.UserAgent)
	}

	return &Transport{
		base:    base,
		client:  client,
		limiter: limiter,
		retry:   retryCfg,
		log:     logger.OrDefault(opts.Logger),
		jar:     jar,
	}, nil
}

func newJar() (*cookiejar.Jar, error) {
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	return jar, nil
}

// BaseURL returns the portal root
func (t *Transport) BaseURL() *url.URL {
	u := *t.base
	return &u
}

// Jar returns the session's cookie jar
func (t *Transport) Jar() http.CookieJar {
	return t.jar
}

// Resolve turns ref into an absolute URL. Relative refs resolve against from,
// or against the base URL when from is empty.
func (t *Transport) Resolve(from, ref string) (string, error) {
	origin := t.base
	if from != "" {
		u, err := url.Parse(from)
		if err != nil {
			return "", fmt.Errorf("invalid url %q: %w", from, err)
		}
		origin = t.base.ResolveReference(u)
	}
	r, err := url.Parse(ref)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", ref, err)
	}
	return origin.ResolveReference(r).String(), nil
}

// Do performs req, waiting on the limiter before every attempt.
// Non-2xx responses and network failures are retried; once attempts run
// out a *errors.TransportExhaustedError is returned.
//
// Cancelling ctx stops waits between attempts but lets an in-flight
// exchange finish.
func (t *Transport) Do(ctx context.Context, req Request) (*Response, error) {
	target, err := t.Resolve("", req.URL)
	if err != nil {
		return nil, err
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	resp, err := retry.DoWithResult(ctx, func(attempt int) (*Response, error) {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		return t.attempt(ctx, method, target, req.Form, attempt)
	}, t.retry)
	if err == nil {
		return resp, nil
	}

	var exhausted *retry.ExhaustedError
	if stderrors.As(err, &exhausted) {
		return nil, &errs.TransportExhaustedError{
			URL:      target,
			Attempts: exhausted.Attempts,
			Err:      exhausted.Err,
		}
	}
	return nil, err
}

// Get fetches rawURL
func (t *Transport) Get(ctx context.Context, rawURL string) (*Response, error) {
	return t.Do(ctx, Get(rawURL))
}

// PostForm submits form to rawURL
func (t *Transport) PostForm(ctx context.Context, rawURL string, form url.Values) (*Response, error) {
	return t.Do(ctx, Post(rawURL, form))
}

func (t *Transport) attempt(ctx context.Context, method, target string, form url.Values, attempt int) (*Response, error) {
	r := t.client.R().SetContext(context.WithoutCancel(ctx))
	if form != nil {
		r.SetFormDataFromValues(form)
	}

	start := time.Now()
	res, err := r.Execute(method, target)
	elapsed := time.Since(start)
	if err != nil {
		t.log.WithFields(map[string]interface{}{
			"method":  method,
			"url":     target,
			"attempt": attempt,
		}).WithError(err).Warn("portal request failed")
		return nil, &errs.Error{Type: errs.ErrorTypeNetwork, Message: err.Error()}
	}

	logger.LogRequest(t.log, method, target, res.StatusCode(), elapsed)

	if !res.IsSuccess() {
		return nil, &errs.Error{
			Type:    errs.TypeForStatus(res.StatusCode()),
			Message: fmt.Sprintf("%s %s returned %s", method, target, res.Status()),
			Code:    res.StatusCode(),
		}
	}

	final := target
	if raw := res.RawResponse; raw != nil && raw.Request != nil && raw.Request.URL != nil {
		final = raw.Request.URL.String()
	}

	return &Response{
		URL:        final,
		StatusCode: res.StatusCode(),
		Body:       res.Body(),
		Elapsed:    elapsed,
	}, nil
}
