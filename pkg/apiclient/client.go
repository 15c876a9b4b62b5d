// Package apiclient is the shared outbound HTTP transport for paid lookup
// providers: a process-wide minimum-delay rate limiter, per-call timeouts,
// typed status errors, and optional retry and circuit breaking.
package apiclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/resilience"
)

// DefaultTimeout bounds a single provider call, body read included.
const DefaultTimeout = 30 * time.Second

const maxBodyBytes = 4 << 20

// ErrTimeout is returned when a call exceeds its per-call timeout.
var ErrTimeout = eris.New("apiclient: request timed out")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Service    string
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	body := string(e.Body)
	if len(body) > 200 {
		body = body[:200]
	}
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Service, e.StatusCode, body)
}

// RateLimited reports whether the provider answered 429.
func (e *StatusError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

// Request describes one provider call.
type Request struct {
	// Service names the provider for logs, breakers and errors.
	Service string
	Method  string
	URL     string
	Query   url.Values
	Header  http.Header
	Body    []byte
}

// Response is a fully read provider response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRetry enables retries of transient failures. 429 is never retried.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Client) {
		c.retry = cfg
	}
}

// WithBreakers routes calls through one circuit breaker per service.
func WithBreakers(b *resilience.Breakers) Option {
	return func(c *Client) {
		c.breakers = b
	}
}

// Client performs rate-limited provider calls.
type Client struct {
	limiter  *RateLimiter
	http     *http.Client
	timeout  time.Duration
	retry    resilience.RetryConfig
	breakers *resilience.Breakers
}

// New returns a Client that waits on limiter before every attempt. A nil
// limiter disables throttling.
func New(limiter *RateLimiter, opts ...Option) *Client {
	if limiter == nil {
		limiter = NewRateLimiter(0)
	}
	c := &Client{
		limiter: limiter,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		timeout: DefaultTimeout,
		retry:   resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Limiter returns the shared rate limiter.
func (c *Client) Limiter() *RateLimiter {
	return c.limiter
}

// Do performs req. Non-2xx responses come back as *StatusError, timeouts as
// ErrTimeout; both can be matched with errors.As / errors.Is.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	call := func(ctx context.Context) (*Response, error) {
		return c.attempt(ctx, req)
	}
	if c.breakers != nil && req.Service != "" {
		b := c.breakers.For(req.Service)
		inner := call
		call = func(ctx context.Context) (*Response, error) {
			return resilience.ExecuteVal(ctx, b, inner)
		}
	}
	retry := c.retry
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger(req.Service)
	}
	return resilience.DoVal(ctx, retry, call)
}

func (c *Client) attempt(ctx context.Context, req Request) (*Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	target := req.URL
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(callCtx, method, target, body)
	if err != nil {
		return nil, eris.Wrapf(err, "%s: create request", req.Service)
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, c.transportErr(ctx, callCtx, req.Service, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, c.transportErr(ctx, callCtx, req.Service, err)
	}

	zap.L().Debug("apiclient: call complete",
		zap.String("service", req.Service),
		zap.String("method", method),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	out := &Response{StatusCode: resp.StatusCode, Header: resp.Header, Body: data}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{Service: req.Service, StatusCode: resp.StatusCode, Body: data}
		if se.RateLimited() {
			c.limiter.OnRateLimit()
		}
		if resilience.RetryableStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(se, resp.StatusCode)
		}
		return nil, se
	}
	c.limiter.OnSuccess()
	return out, nil
}

// transportErr maps a failed round trip. A deadline on the per-call context
// that the parent did not impose becomes ErrTimeout.
func (c *Client) transportErr(parent, callCtx context.Context, service string, err error) error {
	if parent.Err() != nil {
		return eris.Wrapf(parent.Err(), "%s: request", service)
	}
	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		return resilience.NewTransientError(eris.Wrapf(ErrTimeout, "%s: after %s", service, c.timeout), 0)
	}
	return eris.Wrapf(err, "%s: request", service)
}
