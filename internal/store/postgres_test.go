package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	s := &PostgresStore{pool: mock, now: func() time.Time { return now }}
	return s, mock
}

var _ Store = (*PostgresStore)(nil)
var _ Store = (*SQLiteStore)(nil)

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS runs`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO runs`).
		WithArgs(pgxmock.AnyArg(), "in.json", "out.json", "running", pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	run, err := s.CreateRun(context.Background(), "in.json", "out.json")
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.Equal(t, model.RunStatusRunning, run.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	created := time.Date(2026, 3, 1, 11, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, input_path, output_path, status, stats, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("run-1").
		WillReturnRows(mock.NewRows([]string{"id", "input_path", "output_path", "status", "stats", "created_at", "updated_at"}).
			AddRow("run-1", "in.json", "out.json", "complete", []byte(`{"total":10,"processed":10,"succeeded":10}`), created, created))

	run, err := s.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	require.NotNil(t, run.Stats)
	assert.Equal(t, 10, run.Stats.Succeeded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, input_path, output_path, status, stats, created_at, updated_at FROM runs WHERE id = \$1`).
		WithArgs("nonexistent-run").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetRun(context.Background(), "nonexistent-run")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get run")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_FinishRun_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE runs SET status`).
		WithArgs("failed", pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.FinishRun(context.Background(), "missing", model.RunStatusFailed, model.BatchStats{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults_Transaction(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO lead_results`).
		WithArgs(pgxmock.AnyArg(), "run-1", 5, "5125551234", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`ON CONFLICT \(run_id, position\)`).
		WithArgs(pgxmock.AnyArg(), "run-1", 6, "", pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	err := s.SaveResults(context.Background(), "run-1", 5, []model.EnrichmentResult{
		{Name: "Jane Doe", Phone: "5125551234"},
		{Name: "John Smith"},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_SaveResults_RollsBack(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO lead_results`).
		WillReturnError(errors.New("connection lost"))
	mock.ExpectRollback()

	err := s.SaveResults(context.Background(), "run-1", 0, []model.EnrichmentResult{{Name: "Jane Doe"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save result 0 of run run-1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLookup_Miss(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT body FROM lookup_cache`).
		WithArgs("name|unknown", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	body, ok, err := s.GetLookup(context.Background(), "name|unknown")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, body)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetLookup_Hit(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT body FROM lookup_cache WHERE key = \$1 AND expires_at > \$2`).
		WithArgs("age|jane doe", pgxmock.AnyArg()).
		WillReturnRows(mock.NewRows([]string{"body"}).AddRow([]byte(`{"age":"45"}`)))

	body, ok, err := s.GetLookup(context.Background(), "age|jane doe")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"age":"45"}`, string(body))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PutLookup_Upsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`ON CONFLICT \(key\)`).
		WithArgs("age|jane doe", "age", []byte(`{}`), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	require.NoError(t, s.PutLookup(context.Background(), "age|jane doe", "age", []byte(`{}`), time.Hour))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_DeleteExpiredLookups(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM lookup_cache WHERE expires_at <= \$1`).
		WithArgs(pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("DELETE", 4))

	n, err := s.DeleteExpiredLookups(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateResultDNC_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE lead_results SET result`).
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateResultDNC(context.Background(), "missing", model.EnrichmentResult{}, time.Now())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "result not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountDLQ(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM dead_letter_queue`).
		WillReturnRows(mock.NewRows([]string{"count"}).AddRow(3))

	n, err := s.CountDLQ(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RemoveDLQ(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM dead_letter_queue WHERE id = \$1`).
		WithArgs("dlq-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.RemoveDLQ(context.Background(), "dlq-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
