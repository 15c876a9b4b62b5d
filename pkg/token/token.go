// Package token supplies bearer tokens for authenticated providers, with
// expiry-aware caching and de-duplicated refreshes.
package token

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/singleflight"
)

// ErrNoToken is returned when no credential is configured.
var ErrNoToken = eris.New("token: no credential configured")

// Provider returns a bearer token. forceRefresh bypasses any cache, e.g.
// after the provider rejected the current token.
type Provider interface {
	Token(ctx context.Context, forceRefresh bool) (string, error)
}

// Refresher obtains a fresh token from an identity provider.
type Refresher interface {
	Refresh(ctx context.Context) (string, error)
}

// RefresherFunc adapts a function to Refresher.
type RefresherFunc func(ctx context.Context) (string, error)

// Refresh calls f.
func (f RefresherFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

// Static is a fixed token. It cannot be refreshed.
type Static string

// Token returns the static token.
func (s Static) Token(_ context.Context, _ bool) (string, error) {
	if s == "" {
		return "", ErrNoToken
	}
	return string(s), nil
}

// Expiry reads the exp claim of a JWT without verifying its signature.
func Expiry(tok string) (time.Time, bool) {
	t, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := t.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// CachedOption configures a Cached provider.
type CachedOption func(*Cached)

// WithSkew refreshes this long before the token expires.
func WithSkew(d time.Duration) CachedOption {
	return func(c *Cached) {
		c.skew = d
	}
}

// WithFallbackTTL sets the lifetime assumed for tokens without an exp claim.
func WithFallbackTTL(d time.Duration) CachedOption {
	return func(c *Cached) {
		c.fallbackTTL = d
	}
}

// WithNow replaces the clock, for tests.
func WithNow(now func() time.Time) CachedOption {
	return func(c *Cached) {
		c.now = now
	}
}

// Cached serves a token until shortly before it expires, then refreshes.
// Concurrent refreshes collapse into one call.
type Cached struct {
	refresher   Refresher
	skew        time.Duration
	fallbackTTL time.Duration
	now         func() time.Time
	group       singleflight.Group

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewCached wraps r with caching.
func NewCached(r Refresher, opts ...CachedOption) *Cached {
	c := &Cached{
		refresher:   r,
		skew:        time.Minute,
		fallbackTTL: 50 * time.Minute,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Token returns the cached token or refreshes it.
func (c *Cached) Token(ctx context.Context, forceRefresh bool) (string, error) {
	if !forceRefresh {
		if tok, ok := c.current(); ok {
			return tok, nil
		}
	}

	v, err, _ := c.group.Do("refresh", func() (any, error) {
		if !forceRefresh {
			if tok, ok := c.current(); ok {
				return tok, nil
			}
		}
		tok, err := c.refresher.Refresh(ctx)
		if err != nil {
			return "", err
		}
		if tok == "" {
			return "", ErrNoToken
		}
		exp, ok := Expiry(tok)
		if !ok {
			exp = c.now().Add(c.fallbackTTL)
		}
		c.mu.Lock()
		c.token, c.expires = tok, exp
		c.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", eris.Wrap(err, "token: refresh")
	}
	return v.(string), nil
}

func (c *Cached) current() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token == "" || !c.now().Add(c.skew).Before(c.expires) {
		return "", false
	}
	return c.token, true
}
