package batch

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/resilience"
)

// DLQStore is the subset of store.Store used to replay dead letters.
type DLQStore interface {
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	SaveResults(ctx context.Context, runID string, offset int, results []model.EnrichmentResult) error
}

// ReplaySummary counts the outcome of a replay pass.
type ReplaySummary struct {
	Due      int `json:"due"`
	Replayed int `json:"replayed"`
	Failed   int `json:"failed"`
}

// Replayer re-enriches due dead-letter entries and stores the results at
// their original run position.
type Replayer struct {
	Store    DLQStore
	Enricher Enricher
	Limiter  Limiter
	// Backoff returns the delay before the next replay after retry failures.
	Backoff func(retry int) time.Duration
	Now     func() time.Time
}

// DefaultBackoff doubles from one minute per retry, capped at a day.
func DefaultBackoff(retry int) time.Duration {
	d := time.Minute
	for i := 0; i < retry && d < 24*time.Hour; i++ {
		d *= 2
	}
	return min(d, 24*time.Hour)
}

// Replay processes entries matching filter that are due. An entry that fails
// again has its retry count bumped; one that succeeds is removed.
func (r *Replayer) Replay(ctx context.Context, filter resilience.DLQFilter) (ReplaySummary, error) {
	now := r.Now
	if now == nil {
		now = time.Now
	}
	backoff := r.Backoff
	if backoff == nil {
		backoff = DefaultBackoff
	}

	entries, err := r.Store.DequeueDLQ(ctx, filter)
	if err != nil {
		return ReplaySummary{}, eris.Wrap(err, "batch: dequeue dead letters")
	}
	sum := ReplaySummary{Due: len(entries)}

	for _, e := range entries {
		if r.Limiter != nil {
			if err := r.Limiter.Wait(ctx); err != nil {
				return sum, err
			}
		}
		log := zap.L().With(zap.String("dlq_id", e.ID), zap.String("run_id", e.RunID), zap.Int("position", e.Position))

		res, err := SafeEnrich(ctx, r.Enricher, e.Lead)
		if err != nil {
			sum.Failed++
			next := now().UTC().Add(backoff(e.RetryCount + 1))
			if ierr := r.Store.IncrementDLQRetry(ctx, e.ID, next, err.Error()); ierr != nil {
				return sum, eris.Wrapf(ierr, "batch: reschedule dead letter %s", e.ID)
			}
			log.Warn("batch: replay failed", zap.Time("next_retry_at", next), zap.Error(err))
			continue
		}

		if err := r.Store.SaveResults(ctx, e.RunID, e.Position, []model.EnrichmentResult{*res}); err != nil {
			return sum, eris.Wrapf(err, "batch: save replayed result %s", e.ID)
		}
		if err := r.Store.RemoveDLQ(ctx, e.ID); err != nil {
			return sum, eris.Wrapf(err, "batch: remove dead letter %s", e.ID)
		}
		sum.Replayed++
		log.Info("batch: replayed dead letter", zap.Bool("errored", res.Error != ""))
	}
	return sum, nil
}
