package cost

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func testRates() Rates {
	return Rates{
		SkipTrace: SkipTraceRate{PerSearch: 0.02, PerReverse: 0.015, PerAge: 0.01},
		Telnyx:    TelnyxRate{PerLookup: 0.005},
		DNC:       DNCRate{PerCheck: 0.001},
	}
}

func TestPrice(t *testing.T) {
	t.Parallel()
	calc := NewCalculator(testRates())

	tests := []struct {
		kind string
		want float64
	}{
		{NameSearch, 0.02},
		{ReverseLookup, 0.015},
		{AgeLookup, 0.01},
		{CarrierLookup, 0.005},
		{DNCCheck, 0.001},
		{"unknown", 0},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			t.Parallel()
			assert.InDelta(t, tt.want, calc.Price(tt.kind), 1e-9)
		})
	}
}

func TestPrice_NilCalculator(t *testing.T) {
	t.Parallel()
	var calc *Calculator
	assert.Zero(t, calc.Price(NameSearch))
}

func TestDefaultRates(t *testing.T) {
	t.Parallel()
	r := DefaultRates()
	assert.Positive(t, r.SkipTrace.PerSearch)
	assert.Positive(t, r.Telnyx.PerLookup)
}

func TestTally(t *testing.T) {
	t.Parallel()
	tally := NewTally(NewCalculator(testRates()))

	assert.InDelta(t, 0.02, tally.Add(NameSearch), 1e-9)
	tally.Add(CarrierLookup)
	tally.Add(CarrierLookup)
	tally.Add(AgeLookup)

	assert.InDelta(t, 0.04, tally.Spend(), 1e-9)
	assert.Equal(t, 2, tally.Count(CarrierLookup))
	assert.Equal(t, 0, tally.Count(DNCCheck))
	assert.Equal(t, []string{AgeLookup, NameSearch, CarrierLookup}, tally.Kinds())
}

func TestTally_Concurrent(t *testing.T) {
	t.Parallel()
	tally := NewTally(NewCalculator(testRates()))

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tally.Add(DNCCheck)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, tally.Count(DNCCheck))
	assert.InDelta(t, 0.05, tally.Spend(), 1e-9)
}
