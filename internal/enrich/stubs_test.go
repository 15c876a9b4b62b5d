package enrich

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStubSkipTracer_Deterministic(t *testing.T) {
	t.Parallel()

	s := &StubSkipTracer{}
	a, err := s.SearchByName(context.Background(), "Jane Doe", "Austin, TX")
	require.NoError(t, err)
	b, err := s.SearchByName(context.Background(), "JANE DOE", "Austin, TX")
	require.NoError(t, err)

	assert.Equal(t, a.Phone, b.Phone)
	assert.Len(t, NormalizePhone(a.Phone), 10)
	assert.Equal(t, "jane.doe@example.com", a.Email)
	assert.NotEmpty(t, a.Raw)

	age, err := s.LookupAge(context.Background(), "Jane Doe", "")
	require.NoError(t, err)
	assert.Equal(t, a.Age, age.Age)
}

func TestStubTelnyx_Defaults(t *testing.T) {
	t.Parallel()

	l, err := (&StubTelnyx{}).Lookup(context.Background(), "+15125550100")
	require.NoError(t, err)
	assert.Equal(t, "mobile", l.LineType)
	assert.Equal(t, "AT&T Wireless", l.CarrierName)

	l, err = (&StubTelnyx{LineType: "voip", CarrierName: "Google Voice"}).Lookup(context.Background(), "+15125550100")
	require.NoError(t, err)
	assert.False(t, ShouldContinue("5125550100", l.LineType, l.CarrierName))
}
