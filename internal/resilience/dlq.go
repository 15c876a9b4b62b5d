package resilience

import (
	"time"

	"github.com/sells-group/lead-enricher/internal/model"
)

// Error classes stored on dead-letter entries.
const (
	ErrorTransient = "transient"
	ErrorPermanent = "permanent"
)

// DLQEntry is a lead whose enrichment failed outright and can be replayed.
type DLQEntry struct {
	ID           string     `json:"id"`
	RunID        string     `json:"run_id"`
	Position     int        `json:"position"`
	Lead         model.Lead `json:"lead"`
	Error        string     `json:"error"`
	ErrorType    string     `json:"error_type"`
	FailedStage  string     `json:"failed_stage,omitempty"`
	RetryCount   int        `json:"retry_count"`
	MaxRetries   int        `json:"max_retries"`
	NextRetryAt  time.Time  `json:"next_retry_at"`
	CreatedAt    time.Time  `json:"created_at"`
	LastFailedAt time.Time  `json:"last_failed_at"`
}

// DLQFilter narrows a dead-letter query.
type DLQFilter struct {
	RunID     string `json:"run_id,omitempty"`
	ErrorType string `json:"error_type,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// CanRetry reports whether the entry still has replays left.
func (e *DLQEntry) CanRetry() bool {
	return e.RetryCount < e.MaxRetries
}

// ClassifyError labels err as ErrorTransient or ErrorPermanent.
func ClassifyError(err error) string {
	if IsTransient(err) {
		return ErrorTransient
	}
	return ErrorPermanent
}

// NewDLQEntry builds an entry for a lead that failed at stage with err.
// Permanent failures get no replays.
func NewDLQEntry(runID string, position int, lead model.Lead, stage string, err error, maxRetries int, now time.Time) DLQEntry {
	e := DLQEntry{
		RunID:        runID,
		Position:     position,
		Lead:         lead,
		Error:        err.Error(),
		ErrorType:    ClassifyError(err),
		FailedStage:  stage,
		MaxRetries:   maxRetries,
		CreatedAt:    now,
		LastFailedAt: now,
		NextRetryAt:  now,
	}
	if e.ErrorType == ErrorPermanent {
		e.MaxRetries = 0
	}
	return e
}
