package sink

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-enricher/internal/model"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
)

// FileSink writes the batch to a local file atomically.
type FileSink struct {
	Path   string
	Format string
}

// NewFileSink creates a FileSink. An empty format is inferred from the
// extension.
func NewFileSink(path, format string) *FileSink {
	if format == "" {
		format = FormatJSON
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = FormatCSV
		}
	}
	return &FileSink{Path: path, Format: format}
}

// Name implements Sink.
func (f *FileSink) Name() string { return "file:" + f.Path }

// Write implements Sink.
func (f *FileSink) Write(_ context.Context, _ string, batch *model.EnrichedBatch) error {
	var (
		data []byte
		err  error
	)
	switch f.Format {
	case FormatCSV:
		data, err = EncodeCSV(batch.Results)
	case FormatJSON:
		data, err = EncodeJSON(batch.Results)
	default:
		return eris.Errorf("sink: unknown format %q", f.Format)
	}
	if err != nil {
		return err
	}
	return WriteFileAtomic(f.Path, data)
}

// EncodeJSON renders results as an indented JSON array. Output files and
// checkpoints share this shape.
func EncodeJSON(results []model.EnrichmentResult) ([]byte, error) {
	if results == nil {
		results = []model.EnrichmentResult{}
	}
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "sink: marshal results")
	}
	return append(data, '\n'), nil
}

// csvRow is the flat CSV form of a result. Raw provider payloads and stage
// details are JSON-only.
type csvRow struct {
	Name           string  `csv:"name"`
	FirstName      string  `csv:"first_name"`
	LastName       string  `csv:"last_name"`
	City           string  `csv:"city"`
	State          string  `csv:"state"`
	ZipCode        string  `csv:"zip_code"`
	Phone          string  `csv:"phone"`
	Email          string  `csv:"email"`
	LineType       string  `csv:"line_type"`
	CarrierName    string  `csv:"carrier_name"`
	Age            string  `csv:"age"`
	DOB            string  `csv:"dob"`
	LinkedInURL    string  `csv:"linkedin_url"`
	Title          string  `csv:"title"`
	Company        string  `csv:"company"`
	GatekeepPassed *bool   `csv:"gatekeep_passed,omitempty"`
	GatekeepReason string  `csv:"gatekeep_reason"`
	IsDoNotCall    *bool   `csv:"is_dnc,omitempty"`
	CanContact     *bool   `csv:"can_contact,omitempty"`
	DNCReason      string  `csv:"dnc_reason"`
	CostUSD        float64 `csv:"cost_usd"`
	Error          string  `csv:"error"`
}

func toCSVRow(r model.EnrichmentResult) csvRow {
	row := csvRow{
		Name:        r.Name,
		FirstName:   r.FirstName,
		LastName:    r.LastName,
		City:        r.City,
		State:       r.State,
		ZipCode:     r.ZipCode,
		Phone:       r.Phone,
		Email:       r.Email,
		LineType:    r.LineType,
		CarrierName: r.CarrierName,
		Age:         r.Age,
		DOB:         r.DOB,
		LinkedInURL: r.LinkedInURL,
		Title:       r.Title,
		Company:     r.Company,
		CostUSD:     r.CostUSD,
		Error:       r.Error,
	}
	if g := r.Gatekeep; g != nil {
		passed := g.Passed
		row.GatekeepPassed = &passed
		row.GatekeepReason = string(g.Reason)
	}
	if d := r.DNC; d != nil {
		dnc, can := d.IsDoNotCall, d.CanContact
		row.IsDoNotCall = &dnc
		row.CanContact = &can
		row.DNCReason = d.Reason
	}
	return row
}

// EncodeCSV renders results as CSV with a header row.
func EncodeCSV(results []model.EnrichmentResult) ([]byte, error) {
	rows := make([]csvRow, len(results))
	for i, r := range results {
		rows[i] = toCSVRow(r)
	}
	if len(rows) == 0 {
		header, err := csvutil.Header(csvRow{}, "csv")
		if err != nil {
			return nil, eris.Wrap(err, "sink: csv header")
		}
		return []byte(strings.Join(header, ",") + "\n"), nil
	}
	data, err := csvutil.Marshal(rows)
	if err != nil {
		return nil, eris.Wrap(err, "sink: marshal csv")
	}
	return data, nil
}
