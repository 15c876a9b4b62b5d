package batch

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/resilience"
)

// mockStore is a testify mock for ResultStore.
type mockStore struct {
	mock.Mock
}

func (m *mockStore) SaveResults(ctx context.Context, runID string, offset int, results []model.EnrichmentResult) error {
	args := m.Called(ctx, runID, offset, results)
	return args.Error(0)
}

func (m *mockStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

// memCheckpoint records every checkpoint written.
type memCheckpoint struct {
	mu    sync.Mutex
	saves [][]model.EnrichmentResult
	err   error
}

func (c *memCheckpoint) Save(results []model.EnrichmentResult) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.saves = append(c.saves, append([]model.EnrichmentResult(nil), results...))
	return nil
}

func (c *memCheckpoint) last() []model.EnrichmentResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.saves) == 0 {
		return nil
	}
	return c.saves[len(c.saves)-1]
}

// countingLimiter counts waits and optionally panics on the nth one.
type countingLimiter struct {
	waits   int
	panicOn int
}

func (l *countingLimiter) Wait(ctx context.Context) error {
	l.waits++
	if l.panicOn > 0 && l.waits == l.panicOn {
		panic("process killed")
	}
	return ctx.Err()
}
