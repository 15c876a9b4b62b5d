// Package cost prices paid provider lookups and tallies spend per run.
package cost

import (
	"sort"
	"sync"
)

// Lookup kinds priced by the Calculator.
const (
	NameSearch    = "skiptrace.search"
	ReverseLookup = "skiptrace.reverse"
	AgeLookup     = "skiptrace.age"
	CarrierLookup = "telnyx.lookup"
	DNCCheck      = "dnc.check"
)

// Rates holds per-call pricing in USD.
type Rates struct {
	SkipTrace SkipTraceRate `yaml:"skiptrace" mapstructure:"skiptrace"`
	Telnyx    TelnyxRate    `yaml:"telnyx" mapstructure:"telnyx"`
	DNC       DNCRate       `yaml:"dnc" mapstructure:"dnc"`
}

// SkipTraceRate holds skip-tracing pricing.
type SkipTraceRate struct {
	PerSearch  float64 `yaml:"per_search" mapstructure:"per_search"`
	PerReverse float64 `yaml:"per_reverse" mapstructure:"per_reverse"`
	PerAge     float64 `yaml:"per_age" mapstructure:"per_age"`
}

// TelnyxRate holds number-lookup pricing.
type TelnyxRate struct {
	PerLookup float64 `yaml:"per_lookup" mapstructure:"per_lookup"`
}

// DNCRate holds DNC check pricing.
type DNCRate struct {
	PerCheck float64 `yaml:"per_check" mapstructure:"per_check"`
}

// Calculator computes costs for provider calls.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Price returns the cost of one call of the given kind. Unknown kinds are free.
func (c *Calculator) Price(kind string) float64 {
	if c == nil {
		return 0
	}
	switch kind {
	case NameSearch:
		return c.rates.SkipTrace.PerSearch
	case ReverseLookup:
		return c.rates.SkipTrace.PerReverse
	case AgeLookup:
		return c.rates.SkipTrace.PerAge
	case CarrierLookup:
		return c.rates.Telnyx.PerLookup
	case DNCCheck:
		return c.rates.DNC.PerCheck
	default:
		return 0
	}
}

// DefaultRates returns list pricing for the supported providers.
func DefaultRates() Rates {
	return Rates{
		SkipTrace: SkipTraceRate{PerSearch: 0.01, PerReverse: 0.01, PerAge: 0.01},
		Telnyx:    TelnyxRate{PerLookup: 0.005},
		DNC:       DNCRate{PerCheck: 0},
	}
}

// Tally accumulates spend by lookup kind. Safe for concurrent use.
type Tally struct {
	calc *Calculator

	mu     sync.Mutex
	counts map[string]int
	spend  float64
}

// NewTally returns an empty tally priced by calc.
func NewTally(calc *Calculator) *Tally {
	return &Tally{calc: calc, counts: make(map[string]int)}
}

// Add records one billable call and returns its price.
func (t *Tally) Add(kind string) float64 {
	p := t.calc.Price(kind)
	t.mu.Lock()
	t.counts[kind]++
	t.spend += p
	t.mu.Unlock()
	return p
}

// Spend returns the total so far.
func (t *Tally) Spend() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.spend
}

// Count returns how many calls of kind were recorded.
func (t *Tally) Count(kind string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.counts[kind]
}

// Kinds returns the recorded kinds in sorted order.
func (t *Tally) Kinds() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]string, 0, len(t.counts))
	for k := range t.counts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
