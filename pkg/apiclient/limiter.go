package apiclient

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	// rateLimitFloor is the spacing adopted after a 429 when throttling is off.
	rateLimitFloor = time.Second
	// maxSpacingFactor caps how far 429s can widen the spacing.
	maxSpacingFactor = 8
)

// RateLimiter enforces a minimum wall-clock delay between consecutive
// outbound calls. One limiter is shared by every provider client in a run
// and by the batch driver between leads. A 429 doubles the spacing; each
// success afterwards narrows it by a sixth until it is back at minDelay.
type RateLimiter struct {
	minDelay time.Duration
	lim      *rate.Limiter

	mu    sync.Mutex
	delay time.Duration
	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithClock replaces the wall clock and sleeper, for tests.
func WithClock(now func() time.Time, sleep func(ctx context.Context, d time.Duration) error) LimiterOption {
	return func(r *RateLimiter) {
		r.now = now
		r.sleep = sleep
	}
}

// NewRateLimiter returns a limiter that spaces calls at least minDelay apart.
// A non-positive minDelay disables throttling.
func NewRateLimiter(minDelay time.Duration, opts ...LimiterOption) *RateLimiter {
	limit := rate.Inf
	if minDelay > 0 {
		limit = rate.Every(minDelay)
	}
	r := &RateLimiter{
		minDelay: minDelay,
		delay:    minDelay,
		lim:      rate.NewLimiter(limit, 1),
		now:      time.Now,
		sleep:    sleepCtx,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MinDelay returns the configured spacing.
func (r *RateLimiter) MinDelay() time.Duration {
	return r.minDelay
}

// Delay returns the current spacing, which is at least MinDelay.
func (r *RateLimiter) Delay() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.delay
}

// OnRateLimit doubles the spacing after a 429, up to maxSpacingFactor times
// the base spacing.
func (r *RateLimiter) OnRateLimit() {
	r.mu.Lock()
	defer r.mu.Unlock()
	base := max(r.minDelay, rateLimitFloor)
	next := min(max(r.delay*2, base), base*maxSpacingFactor)
	if next == r.delay {
		return
	}
	r.setDelay(next)
	zap.L().Warn("apiclient: provider rate limited, widening spacing", zap.Duration("delay", next))
}

// OnSuccess narrows a widened spacing back toward MinDelay.
func (r *RateLimiter) OnSuccess() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.delay <= r.minDelay {
		return
	}
	next := time.Duration(float64(r.delay) / 1.2)
	if next-r.minDelay < time.Millisecond {
		next = r.minDelay
	}
	r.setDelay(next)
}

func (r *RateLimiter) setDelay(d time.Duration) {
	r.delay = d
	limit := rate.Inf
	if d > 0 {
		limit = rate.Every(d)
	}
	r.lim.SetLimitAt(r.now(), limit)
}

// Wait blocks until the next call is allowed or ctx is done. The slot is
// claimed before sleeping, so concurrent callers queue behind each other.
func (r *RateLimiter) Wait(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return eris.Wrap(err, "apiclient: rate limiter wait")
	}
	now := r.now()
	res := r.lim.ReserveN(now, 1)
	if !res.OK() {
		return eris.New("apiclient: rate limiter cannot reserve")
	}
	d := res.DelayFrom(now)
	if d <= 0 {
		return nil
	}
	if err := r.sleep(ctx, d); err != nil {
		res.CancelAt(r.now())
		return eris.Wrap(err, "apiclient: rate limiter wait")
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
