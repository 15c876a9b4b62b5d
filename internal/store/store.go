// Package store persists batch runs, per-lead results, provider lookup
// caches and the dead-letter queue in SQLite or Postgres.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/resilience"
)

// Drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverNone     = "none"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// ResultFilter specifies criteria for listing stored results.
type ResultFilter struct {
	RunID string `json:"run_id,omitempty"`
	// MissingDNC selects results with a phone that were never DNC checked.
	MissingDNC bool `json:"missing_dnc,omitempty"`
	Limit      int  `json:"limit,omitempty"`
}

// Store defines the persistence interface for batch enrichment.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, inputPath, outputPath string) (*model.Run, error)
	FinishRun(ctx context.Context, runID string, status model.RunStatus, stats model.BatchStats) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Results
	SaveResults(ctx context.Context, runID string, offset int, results []model.EnrichmentResult) error
	ListResults(ctx context.Context, filter ResultFilter) ([]model.StoredResult, error)
	UpdateResultDNC(ctx context.Context, resultID string, result model.EnrichmentResult, checkedAt time.Time) error

	// Lookup cache
	GetLookup(ctx context.Context, key string) ([]byte, bool, error)
	PutLookup(ctx context.Context, key, kind string, body []byte, ttl time.Duration) error
	DeleteExpiredLookups(ctx context.Context) (int, error)

	// Dead-letter queue
	EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error
	DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error)
	IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error
	RemoveDLQ(ctx context.Context, id string) error
	CountDLQ(ctx context.Context) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the store selected by driver and migrates it. It returns
// nil, nil for DriverNone.
func Open(ctx context.Context, driver, dsn string) (Store, error) {
	var (
		st  Store
		err error
	)
	switch driver {
	case DriverNone, "":
		return nil, nil
	case DriverSQLite:
		if dsn == "" {
			dsn = "leads.db"
		}
		st, err = NewSQLite(dsn)
	case DriverPostgres:
		st, err = NewPostgres(ctx, dsn, nil)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck,gosec
		return nil, err
	}
	return st, nil
}

func limitOrDefault(n int) int {
	if n <= 0 {
		return 100
	}
	return n
}
