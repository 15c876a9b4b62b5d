package model

import (
	"time"
)

// RunStatus represents the current state of a batch run.
type RunStatus string

const (
	RunStatusRunning     RunStatus = "running"
	RunStatusComplete    RunStatus = "complete"
	RunStatusInterrupted RunStatus = "interrupted"
	RunStatusFailed      RunStatus = "failed"
)

// Run represents one batch enrichment run over an input file.
type Run struct {
	ID         string      `json:"id"`
	InputPath  string      `json:"input_path"`
	OutputPath string      `json:"output_path"`
	Status     RunStatus   `json:"status"`
	Stats      *BatchStats `json:"stats,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	UpdatedAt  time.Time   `json:"updated_at"`
}

// StoredResult is an enrichment result persisted in the result store.
type StoredResult struct {
	ID           string           `json:"id"`
	RunID        string           `json:"run_id"`
	Position     int              `json:"position"`
	Phone        string           `json:"phone"`
	Result       EnrichmentResult `json:"result"`
	DNCCheckedAt *time.Time       `json:"dnc_checked_at,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}
