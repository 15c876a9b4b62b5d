package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunStatusValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status RunStatus
		want   string
	}{
		{RunStatusRunning, "running"},
		{RunStatusComplete, "complete"},
		{RunStatusInterrupted, "interrupted"},
		{RunStatusFailed, "failed"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, string(tt.status))
		})
	}
}

func TestStageStatusValues(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "complete", string(StageStatusComplete))
	assert.Equal(t, "failed", string(StageStatusFailed))
	assert.Equal(t, "skipped", string(StageStatusSkipped))
}
