package sink

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/model"
)

// Checkpoint persists the completed prefix of a run so a crash loses at most
// one checkpoint interval of work.
type Checkpoint struct {
	Path string
}

// PartialPath derives the checkpoint path for an output path:
// out.json becomes out.partial.json.
func PartialPath(output string) string {
	ext := filepath.Ext(output)
	return strings.TrimSuffix(output, ext) + ".partial.json"
}

// NewCheckpoint returns the checkpoint for output.
func NewCheckpoint(output string) *Checkpoint {
	return &Checkpoint{Path: PartialPath(output)}
}

// Save atomically replaces the checkpoint with results.
func (c *Checkpoint) Save(results []model.EnrichmentResult) error {
	data, err := EncodeJSON(results)
	if err != nil {
		return err
	}
	return WriteFileAtomic(c.Path, data)
}

// Load returns the checkpointed results, or nil when there is no checkpoint.
func (c *Checkpoint) Load() ([]model.EnrichmentResult, error) {
	data, err := os.ReadFile(c.Path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sink: read checkpoint %s", c.Path)
	}
	var results []model.EnrichmentResult
	if err := json.Unmarshal(data, &results); err != nil {
		return nil, eris.Wrapf(err, "sink: decode checkpoint %s", c.Path)
	}
	return results, nil
}

// Remove deletes the checkpoint. A missing file is not an error.
func (c *Checkpoint) Remove() error {
	if err := os.Remove(c.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return eris.Wrapf(err, "sink: remove checkpoint %s", c.Path)
	}
	return nil
}
