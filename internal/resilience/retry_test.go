package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func TestDo_DefaultMakesOneAttempt(t *testing.T) {
	t.Parallel()

	var calls int
	err := Do(context.Background(), DefaultRetryConfig(), func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("unavailable"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	t.Parallel()

	var calls, hooks int
	cfg := RetryConfig{
		MaxAttempts: 3,
		Sleep:       noSleep,
		OnRetry:     func(int, error) { hooks++ },
	}
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		if calls < 3 {
			return NewTransientError(errors.New("unavailable"), 503)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, hooks)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	t.Parallel()

	var calls int
	cfg := RetryConfig{MaxAttempts: 5, Sleep: noSleep}
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return errors.New("bad request")
	})
	require.EqualError(t, err, "bad request")
	assert.Equal(t, 1, calls)
}

func TestDo_NeverRetriesRateLimit(t *testing.T) {
	t.Parallel()

	var calls int
	cfg := RetryConfig{MaxAttempts: 5, Sleep: noSleep}
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("too many requests"), 429)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	t.Parallel()

	var calls int
	cfg := RetryConfig{MaxAttempts: 4, Sleep: noSleep}
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("unavailable"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls)
}

func TestDo_ContextCancelledDuringBackoff(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	var calls int
	cfg := RetryConfig{
		MaxAttempts: 5,
		Sleep: func(ctx context.Context, _ time.Duration) error {
			cancel()
			return ctx.Err()
		},
	}
	err := Do(ctx, cfg, func(_ context.Context) error {
		calls++
		return NewTransientError(errors.New("unavailable"), 503)
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoVal_ReturnsValue(t *testing.T) {
	t.Parallel()

	var calls int
	cfg := RetryConfig{MaxAttempts: 2, Sleep: noSleep}
	v, err := DoVal(context.Background(), cfg, func(_ context.Context) (string, error) {
		calls++
		if calls == 1 {
			return "", NewTransientError(errors.New("gateway"), 502)
		}
		return "mobile", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "mobile", v)
}

func TestDoVal_ZeroValueOnFailure(t *testing.T) {
	t.Parallel()

	v, err := DoVal(context.Background(), RetryConfig{}, func(_ context.Context) (int, error) {
		return 42, errors.New("boom")
	})
	require.Error(t, err)
	assert.Zero(t, v)
}

func TestRetryConfig_Backoff(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     350 * time.Millisecond,
		Multiplier:     2,
	}
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(1))
	assert.Equal(t, 200*time.Millisecond, cfg.Backoff(2))
	assert.Equal(t, 350*time.Millisecond, cfg.Backoff(3), "capped")
	assert.Equal(t, 100*time.Millisecond, cfg.Backoff(0))
}

func TestRetryConfig_BackoffJitterBounds(t *testing.T) {
	t.Parallel()

	cfg := RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		Multiplier:     2,
		JitterFraction: 0.5,
	}
	for i := 0; i < 50; i++ {
		d := cfg.Backoff(1)
		assert.GreaterOrEqual(t, d, 50*time.Millisecond)
		assert.LessOrEqual(t, d, 150*time.Millisecond)
	}
}

func TestFromRetryConfig(t *testing.T) {
	t.Parallel()

	cfg := FromRetryConfig(3, 250, 5000, 1.5, 0)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, cfg.InitialBackoff)
	assert.Equal(t, 5*time.Second, cfg.MaxBackoff)
	assert.InDelta(t, 1.5, cfg.Multiplier, 0.0001)
	assert.Zero(t, cfg.JitterFraction)

	def := FromRetryConfig(0, 0, 0, 0, -1)
	assert.Equal(t, DefaultRetryConfig().MaxAttempts, def.MaxAttempts)
	assert.Equal(t, DefaultRetryConfig().JitterFraction, def.JitterFraction)
}

func TestRetryLogger(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	cfg := RetryConfig{MaxAttempts: 2, Sleep: noSleep, OnRetry: RetryLogger("telnyx")}
	err := Do(context.Background(), cfg, func(_ context.Context) error {
		return NewTransientError(errors.New("unavailable"), 503)
	})
	require.Error(t, err)

	entries := logs.FilterMessage("resilience: retrying provider call").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "telnyx", fields["service"])
	assert.Equal(t, int64(1), fields["attempt"])
}
