// Package leadio loads lead files. Inputs are JSON, either a top-level array
// of records or an object holding the array at one of a few known paths.
package leadio

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enricher/internal/model"
)

// Kind tells where the records live in an input document.
type Kind string

// Shape kinds.
const (
	KindArray  Kind = "array"
	KindNested Kind = "nested"
)

// Shape is the detected layout of an input document. Path is set only for
// KindNested.
type Shape struct {
	Kind Kind
	Path string
}

func (s Shape) String() string {
	if s.Kind == KindNested {
		return string(s.Kind) + ":" + s.Path
	}
	return string(s.Kind)
}

// NestedPaths are tried in order when the document is an object.
var NestedPaths = []string{
	"processedResults",
	"rawResponse.response.data",
	"response.data",
	"data",
	"results",
	"leads",
}

// ErrUnknownShape is returned when no record array can be found.
var ErrUnknownShape = eris.New("leadio: no record array found")

// DetectShape resolves the layout of data once, before any record is read.
func DetectShape(data []byte) (Shape, error) {
	if !gjson.ValidBytes(data) {
		return Shape{}, eris.New("leadio: invalid JSON")
	}
	root := gjson.ParseBytes(data)
	if root.IsArray() {
		return Shape{Kind: KindArray}, nil
	}
	if root.IsObject() {
		for _, p := range NestedPaths {
			if root.Get(p).IsArray() {
				return Shape{Kind: KindNested, Path: p}, nil
			}
		}
	}
	return Shape{}, ErrUnknownShape
}

// array returns the record array for s within data.
func (s Shape) array(data []byte) gjson.Result {
	root := gjson.ParseBytes(data)
	if s.Kind == KindNested {
		return root.Get(s.Path)
	}
	return root
}

// Records extracts the object records of data. Non-object entries are
// dropped.
func (s Shape) Records(data []byte) []map[string]any {
	items := s.array(data).Array()
	recs := make([]map[string]any, 0, len(items))
	dropped := 0
	for _, item := range items {
		m, ok := item.Value().(map[string]any)
		if !ok {
			dropped++
			continue
		}
		recs = append(recs, m)
	}
	if dropped > 0 {
		zap.L().Warn("leadio: dropped non-object records", zap.Int("dropped", dropped))
	}
	return recs
}

// ParseLeads detects the shape of data and resolves every record into a
// Lead.
func ParseLeads(data []byte) ([]model.Lead, Shape, error) {
	shape, err := DetectShape(data)
	if err != nil {
		return nil, Shape{}, err
	}
	recs := shape.Records(data)
	leads := make([]model.Lead, 0, len(recs))
	for _, rec := range recs {
		leads = append(leads, model.LeadFromRecord(rec))
	}
	if missing := MissingIdentity(leads); len(missing) > 0 {
		zap.L().Warn("leadio: leads without name and location or phone",
			zap.Int("count", len(missing)),
			zap.Ints("positions", missing[:min(len(missing), 20)]),
		)
	}
	return leads, shape, nil
}

// MissingIdentity returns the positions of leads that fail Lead.HasIdentity.
// They are kept so output stays aligned with input.
func MissingIdentity(leads []model.Lead) []int {
	var out []int
	for i, l := range leads {
		if !l.HasIdentity() {
			out = append(out, i)
		}
	}
	return out
}

// LoadLeads reads and parses a lead file.
func LoadLeads(path string) ([]model.Lead, Shape, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, Shape{}, eris.Wrapf(err, "leadio: read %s", path)
	}
	leads, shape, err := ParseLeads(data)
	if err != nil {
		return nil, Shape{}, eris.Wrapf(err, "leadio: parse %s", path)
	}
	zap.L().Info("leadio: loaded leads",
		zap.String("path", path),
		zap.String("shape", shape.String()),
		zap.Int("count", len(leads)),
	)
	return leads, shape, nil
}

// LoadResults reads a previously written output file: either an enriched
// batch document or any shape DetectShape accepts.
func LoadResults(path string) ([]model.EnrichmentResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "leadio: read %s", path)
	}
	shape, err := DetectShape(data)
	if err != nil {
		return nil, eris.Wrapf(err, "leadio: parse %s", path)
	}
	var results []model.EnrichmentResult
	if err := json.Unmarshal([]byte(shape.array(data).Raw), &results); err != nil {
		return nil, eris.Wrapf(err, "leadio: decode results %s", path)
	}
	return results, nil
}
