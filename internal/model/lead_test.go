package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadFromRecord_AliasPriority(t *testing.T) {
	t.Parallel()

	rec := map[string]any{
		"Phone":       "",
		"phoneNumber": "(512) 555-1234",
		"mobile":      "5125559999",
		"fullName":    "Jane Doe",
		"City":        "Austin",
		"state":       "Texas",
	}

	l := LeadFromRecord(rec)
	assert.Equal(t, "(512) 555-1234", l.Phone, "empty higher-priority alias is skipped")
	assert.Equal(t, "Jane Doe", l.Name)
	assert.Equal(t, "Austin", l.City)
	assert.Equal(t, "Texas", l.State)
	assert.Equal(t, rec, l.Raw)
}

func TestLeadFromRecord_NumericFields(t *testing.T) {
	t.Parallel()

	l := LeadFromRecord(map[string]any{
		"name": "John Smith",
		"zip":  float64(78701),
		"age":  float64(52),
	})
	assert.Equal(t, "78701", l.ZipCode)
	assert.Equal(t, "52", l.Age)
}

func TestLeadFromRecord_NameFromParts(t *testing.T) {
	t.Parallel()

	l := LeadFromRecord(map[string]any{"firstName": "Jane", "lastName": "Doe"})
	assert.Equal(t, "Jane Doe", l.Name)
	assert.Equal(t, "Jane", l.FirstName)
	assert.Equal(t, "Doe", l.LastName)
}

func TestLeadFromRecord_IgnoresNestedValues(t *testing.T) {
	t.Parallel()

	l := LeadFromRecord(map[string]any{
		"location": map[string]any{"city": "Austin"},
		"Location": "Austin, Texas, United States",
	})
	assert.Equal(t, "Austin, Texas, United States", l.Location)
}

func TestLead_HasIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		lead Lead
		want bool
	}{
		{"name and city", Lead{Name: "Jane Doe", City: "Austin"}, true},
		{"name and phone", Lead{Name: "Jane Doe", Phone: "5125551234"}, true},
		{"split name and location", Lead{FirstName: "Jane", LastName: "Doe", Location: "Austin, TX"}, true},
		{"name only", Lead{Name: "Jane Doe"}, false},
		{"location only", Lead{City: "Austin", State: "TX"}, false},
		{"empty", Lead{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.lead.HasIdentity())
		})
	}
}

func TestEnrichmentResult_RecordErrorKeepsFirst(t *testing.T) {
	t.Parallel()

	var r EnrichmentResult
	r.RecordError("skiptrace: timeout")
	r.RecordError("telnyx: status 500")
	assert.Equal(t, "skiptrace: timeout", r.Error)
}

func TestEnrichmentResult_Stage(t *testing.T) {
	t.Parallel()

	r := EnrichmentResult{Stages: []StageOutcome{
		{Name: StageDiscovery, Status: StageStatusSkipped},
		{Name: StagePhoneIntel, Status: StageStatusComplete},
	}}

	s, ok := r.Stage(StagePhoneIntel)
	assert.True(t, ok)
	assert.Equal(t, StageStatusComplete, s.Status)

	_, ok = r.Stage(StageAge)
	assert.False(t, ok)
}

func TestEnrichedBatch_Completion(t *testing.T) {
	t.Parallel()

	b := EnrichedBatch{Results: []EnrichmentResult{
		{Phone: "5125551234", Age: "45", ZipCode: "78701", LineType: "mobile", DNC: &DNCStatus{CanContact: true}},
		{Phone: "5125550000", Email: "a@b.com"},
		{},
		{DOB: "1979-03-01"},
	}}

	c := b.Completion()
	assert.InDelta(t, 50.0, c.Phone, 0.001)
	assert.InDelta(t, 25.0, c.Email, 0.001)
	assert.InDelta(t, 50.0, c.Age, 0.001)
	assert.InDelta(t, 25.0, c.ZipCode, 0.001)
	assert.InDelta(t, 25.0, c.LineType, 0.001)
	assert.InDelta(t, 25.0, c.DNC, 0.001)
}

func TestEnrichedBatch_CompletionEmpty(t *testing.T) {
	t.Parallel()

	var b EnrichedBatch
	assert.Equal(t, Completion{}, b.Completion())
}
