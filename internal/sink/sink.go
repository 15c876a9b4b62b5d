// Package sink writes enriched batches to their destinations: the output
// file (JSON or CSV), object storage and a message bus.
package sink

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/model"
)

// Sink receives a finished batch.
type Sink interface {
	Name() string
	Write(ctx context.Context, runID string, batch *model.EnrichedBatch) error
}

// Multi writes to every sink in order. All sinks are attempted; the error
// names each one that failed.
type Multi []Sink

// Name implements Sink.
func (m Multi) Name() string {
	names := make([]string, len(m))
	for i, s := range m {
		names[i] = s.Name()
	}
	return strings.Join(names, ",")
}

// Write implements Sink.
func (m Multi) Write(ctx context.Context, runID string, batch *model.EnrichedBatch) error {
	var failed []string
	for _, s := range m {
		if err := s.Write(ctx, runID, batch); err != nil {
			zap.L().Error("sink: write failed", zap.String("sink", s.Name()), zap.Error(err))
			failed = append(failed, s.Name()+": "+err.Error())
			continue
		}
		zap.L().Info("sink: batch written", zap.String("sink", s.Name()), zap.Int("results", len(batch.Results)))
	}
	if len(failed) > 0 {
		return eris.Errorf("sink: %d of %d sinks failed: %s", len(failed), len(m), strings.Join(failed, "; "))
	}
	return nil
}

// WriteFileAtomic writes data to a temp file beside path and renames it into
// place, so readers never see a partial file.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return eris.Wrapf(err, "sink: create dir %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return eris.Wrapf(err, "sink: create temp for %s", path)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return eris.Wrapf(err, "sink: write %s", tmpName)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck,gosec
		return eris.Wrapf(err, "sink: sync %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrapf(err, "sink: close %s", tmpName)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "sink: rename to %s", path)
	}
	return nil
}
