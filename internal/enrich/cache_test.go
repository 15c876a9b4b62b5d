package enrich

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/pkg/skiptrace"
)

func TestCachedSkipTracer_ServesRepeatQueries(t *testing.T) {
	inner := &mockSkipTracer{}
	inner.On("SearchByName", mock.Anything, "Jane Doe", "Austin, TX").Return(&skiptrace.Person{
		Name:  "Jane Doe",
		Phone: "5125550100",
		Raw:   []byte(`{"PeopleDetails":[]}`),
	}, nil).Once()

	cache := newMemCache()
	c := NewCachedSkipTracer(inner, cache, time.Hour)

	first, err := c.SearchByName(context.Background(), "Jane Doe", "Austin, TX")
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := c.SearchByName(context.Background(), "  jane   DOE ", "austin, tx")
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, "5125550100", second.Phone)
	assert.JSONEq(t, `{"PeopleDetails":[]}`, string(second.Raw))

	inner.AssertNumberOfCalls(t, "SearchByName", 1)
	assert.Equal(t, 1, cache.puts)
}

func TestCachedSkipTracer_ErrorsAreNotCached(t *testing.T) {
	inner := &mockSkipTracer{}
	inner.On("LookupAge", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("skiptrace: unexpected status 500")).Once()
	inner.On("LookupAge", mock.Anything, mock.Anything, mock.Anything).Return(&skiptrace.AgeRecord{Age: "40"}, nil).Once()

	cache := newMemCache()
	c := NewCachedSkipTracer(inner, cache, time.Hour)

	_, err := c.LookupAge(context.Background(), "Jane Doe", "")
	require.Error(t, err)
	assert.Equal(t, 0, cache.puts)

	rec, err := c.LookupAge(context.Background(), "Jane Doe", "")
	require.NoError(t, err)
	assert.Equal(t, "40", rec.Age)
	assert.False(t, rec.Cached)
}

func TestCachedSkipTracer_ReadErrorFallsThrough(t *testing.T) {
	inner := &mockSkipTracer{}
	inner.On("SearchByPhone", mock.Anything, "5125550100").Return(&skiptrace.Person{Name: "John Smith"}, nil)

	cache := newMemCache()
	cache.getErr = errors.New("store: database is locked")
	c := NewCachedSkipTracer(inner, cache, time.Hour)

	p, err := c.SearchByPhone(context.Background(), "5125550100")
	require.NoError(t, err)
	assert.Equal(t, "John Smith", p.Name)
	inner.AssertNumberOfCalls(t, "SearchByPhone", 1)
}

func TestEnrich_CachedLookupsAreFree(t *testing.T) {
	calc := cost.NewCalculator(cost.Rates{
		SkipTrace: cost.SkipTraceRate{PerSearch: 0.01, PerAge: 0.01},
		Telnyx:    cost.TelnyxRate{PerLookup: 0.005},
	})
	p := New(NewCachedSkipTracer(&StubSkipTracer{}, newMemCache(), time.Hour), &StubTelnyx{}, WithCost(calc, nil))
	lead := model.Lead{Name: "Jane Doe", City: "Austin", State: "TX"}

	first := p.Enrich(context.Background(), lead)
	assert.InDelta(t, 0.025, first.CostUSD, 1e-9)

	second := p.Enrich(context.Background(), lead)
	assert.InDelta(t, 0.005, second.CostUSD, 1e-9, "only the carrier lookup is paid again")
	assert.Equal(t, first.Phone, second.Phone)
	assert.Equal(t, first.Age, second.Age)
}

func TestLookupKey(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "byname|jane doe|austin, tx", lookupKey(CacheKindName, " Jane  Doe", "Austin, TX "))
	assert.NotEqual(t, lookupKey(CacheKindName, "a", "b"), lookupKey(CacheKindAge, "a", "b"))
}
