package model

// BatchStats holds run-level counters for a batch.
type BatchStats struct {
	Total     int     `json:"total"`
	Processed int     `json:"processed"`
	Succeeded int     `json:"succeeded"`
	Errored   int     `json:"errored"`
	Skipped   int     `json:"skipped"`
	SpendUSD  float64 `json:"spend_usd"`
}

// Completion holds field-completion percentages across a batch.
type Completion struct {
	Phone    float64 `json:"phone_pct"`
	Email    float64 `json:"email_pct"`
	Age      float64 `json:"age_pct"`
	ZipCode  float64 `json:"zip_pct"`
	LineType float64 `json:"line_type_pct"`
	DNC      float64 `json:"dnc_pct"`
}

// EnrichedBatch is the ordered output of a batch run plus its counters.
type EnrichedBatch struct {
	Results []EnrichmentResult `json:"results"`
	Stats   BatchStats         `json:"stats"`
}

// Completion computes field-completion percentages over the results.
func (b *EnrichedBatch) Completion() Completion {
	n := len(b.Results)
	if n == 0 {
		return Completion{}
	}
	var c Completion
	for _, r := range b.Results {
		if r.Phone != "" {
			c.Phone++
		}
		if r.Email != "" {
			c.Email++
		}
		if r.Age != "" || r.DOB != "" {
			c.Age++
		}
		if r.ZipCode != "" {
			c.ZipCode++
		}
		if r.LineType != "" {
			c.LineType++
		}
		if r.DNC != nil {
			c.DNC++
		}
	}
	pct := func(v float64) float64 { return v * 100 / float64(n) }
	return Completion{
		Phone:    pct(c.Phone),
		Email:    pct(c.Email),
		Age:      pct(c.Age),
		ZipCode:  pct(c.ZipCode),
		LineType: pct(c.LineType),
		DNC:      pct(c.DNC),
	}
}
