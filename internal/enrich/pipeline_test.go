package enrich

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/pkg/apiclient"
	"github.com/sells-group/lead-enricher/pkg/dnc"
	"github.com/sells-group/lead-enricher/pkg/skiptrace"
	"github.com/sells-group/lead-enricher/pkg/telnyx"
	"github.com/sells-group/lead-enricher/pkg/token"
)

func stageStatus(t *testing.T, r *model.EnrichmentResult, name string) model.StageOutcome {
	t.Helper()
	s, ok := r.Stage(name)
	require.True(t, ok, "stage %s missing", name)
	return s
}

func TestEnrich_JaneDoe(t *testing.T) {
	st := &mockSkipTracer{}
	tx := &mockTelnyx{}

	tx.On("Lookup", mock.Anything, "+15125550100").Return(&telnyx.Lookup{
		PhoneNumber: "+15125550100",
		LineType:    "Wireless",
		CarrierName: " AT&T ",
	}, nil).Once()
	st.On("LookupAge", mock.Anything, "Jane Doe", "Austin, TX").Return(&skiptrace.AgeRecord{Age: "45"}, nil).Once()

	p := New(st, tx)
	r := p.Enrich(context.Background(), model.Lead{
		Name:  "Jane Doe",
		Phone: "(512) 555-0100",
		City:  "Austin",
		State: "Texas",
	})

	assert.Empty(t, r.Error)
	assert.Equal(t, "Jane", r.FirstName)
	assert.Equal(t, "Doe", r.LastName)
	assert.Equal(t, "5125550100", r.Phone)
	assert.Equal(t, "mobile", r.LineType)
	assert.Equal(t, "AT&T", r.CarrierName)
	assert.Equal(t, "45", r.Age)
	require.NotNil(t, r.Gatekeep)
	assert.True(t, r.Gatekeep.Passed)

	disc := stageStatus(t, r, model.StageDiscovery)
	assert.Equal(t, model.StageStatusSkipped, disc.Status)
	assert.Equal(t, "phone supplied", disc.Reason)
	assert.Equal(t, model.StageStatusComplete, stageStatus(t, r, model.StagePhoneIntel).Status)
	assert.Equal(t, model.StageStatusComplete, stageStatus(t, r, model.StageAge).Status)
	_, hasDNC := r.Stage(model.StageDNC)
	assert.False(t, hasDNC)

	st.AssertNotCalled(t, "SearchByName", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNumberOfCalls(t, "LookupAge", 1)
	tx.AssertNumberOfCalls(t, "Lookup", 1)
}

func TestEnrich_NoNameMakesNoDiscoveryCall(t *testing.T) {
	st := &mockSkipTracer{}
	tx := &mockTelnyx{}

	r := New(st, tx).Enrich(context.Background(), model.Lead{
		FirstName: "Jane",
		Location:  "Austin, Texas, United States",
	})

	assert.Empty(t, r.Error)
	assert.Equal(t, "missing first or last name", stageStatus(t, r, model.StageDiscovery).Reason)
	assert.Equal(t, model.StageStatusSkipped, stageStatus(t, r, model.StagePhoneIntel).Status)
	assert.Equal(t, model.GateReasonNoPhone, r.Gatekeep.Reason)
	assert.Equal(t, model.StageStatusSkipped, stageStatus(t, r, model.StageAge).Status)

	st.AssertNotCalled(t, "SearchByName", mock.Anything, mock.Anything, mock.Anything)
	st.AssertNotCalled(t, "LookupAge", mock.Anything, mock.Anything, mock.Anything)
	tx.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestEnrich_GatekeepBlocksAge(t *testing.T) {
	tests := []struct {
		name     string
		lineType string
		carrier  string
		reason   model.GateReason
	}{
		{"voip lower", "voip", "Level 3", model.GateReasonVOIPLine},
		{"voip upper", "VOIP", "Level 3", model.GateReasonVOIPLine},
		{"non-fixed voip", "non-fixed voip", "", model.GateReasonVOIPLine},
		{"google voice", "mobile", "Google Voice", model.GateReasonVOIPCarrier},
		{"twilio", "landline", "Twilio Inc", model.GateReasonVOIPCarrier},
		{"bandwidth", "mobile", "BANDWIDTH.COM CLEC, LLC", model.GateReasonVOIPCarrier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := &mockSkipTracer{}
			tx := &mockTelnyx{}
			tx.On("Lookup", mock.Anything, mock.Anything).Return(&telnyx.Lookup{
				LineType:    tt.lineType,
				CarrierName: tt.carrier,
			}, nil)

			r := New(st, tx).Enrich(context.Background(), model.Lead{Name: "John Smith", Phone: "5125550123"})

			require.NotNil(t, r.Gatekeep)
			assert.False(t, r.Gatekeep.Passed)
			assert.Equal(t, tt.reason, r.Gatekeep.Reason)
			age := stageStatus(t, r, model.StageAge)
			assert.Equal(t, model.StageStatusSkipped, age.Status)
			assert.Equal(t, "gatekeep: "+string(tt.reason), age.Reason)
			st.AssertNotCalled(t, "LookupAge", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestEnrich_DiscoveryFeedsIntelAndAge(t *testing.T) {
	st := &mockSkipTracer{}
	tx := &mockTelnyx{}

	st.On("SearchByName", mock.Anything, "John Smith", "Austin, TX").Return(&skiptrace.Person{
		Name:  "John Smith",
		Phone: "1-512-555-0199",
		Email: "john@example.com",
		Age:   "51",
		Raw:   []byte(`{"PeopleDetails":[{"Name":"John Smith"}]}`),
	}, nil).Once()
	tx.On("Lookup", mock.Anything, "+15125550199").Return(&telnyx.Lookup{CarrierType: "mobile", CarrierName: "Verizon"}, nil).Once()
	st.On("LookupAge", mock.Anything, "John Smith", "Austin, TX").Return(&skiptrace.AgeRecord{DOB: "1973-02-11"}, nil).Once()

	r := New(st, tx).Enrich(context.Background(), model.Lead{Name: "John A. Smith Jr.", Location: "Austin, TX"})

	assert.Empty(t, r.Error)
	assert.Equal(t, "John A. Smith Jr.", r.Name)
	assert.Equal(t, "5125550199", r.Phone)
	assert.Equal(t, "john@example.com", r.Email)
	assert.Equal(t, "mobile", r.LineType)
	assert.Equal(t, "51", r.Age, "discovery age kept when the age stage has none")
	assert.Equal(t, "1973-02-11", r.DOB)
	assert.JSONEq(t, `{"PeopleDetails":[{"Name":"John Smith"}]}`, string(r.SkipTracingData))
	st.AssertExpectations(t)
	tx.AssertExpectations(t)
}

func TestEnrich_AgeStageWinsOverDiscoveryAndInput(t *testing.T) {
	st := &mockSkipTracer{}
	tx := &mockTelnyx{}

	st.On("SearchByName", mock.Anything, mock.Anything, mock.Anything).Return(&skiptrace.Person{Phone: "5125550199", Age: "51"}, nil)
	tx.On("Lookup", mock.Anything, mock.Anything).Return(&telnyx.Lookup{LineType: "mobile"}, nil)
	st.On("LookupAge", mock.Anything, mock.Anything, mock.Anything).Return(&skiptrace.AgeRecord{Age: "52"}, nil)

	r := New(st, tx).Enrich(context.Background(), model.Lead{Name: "John Smith", Age: "30"})
	assert.Equal(t, "52", r.Age)
}

func TestEnrich_InputAgeKeptWhenNoLookupAge(t *testing.T) {
	st := &mockSkipTracer{}
	tx := &mockTelnyx{}

	r := New(st, tx).Enrich(context.Background(), model.Lead{Name: "Cher", Age: "30"})
	assert.Equal(t, "30", r.Age)
}

func TestEnrich_DiscoveryFailure(t *testing.T) {
	st := &mockSkipTracer{}
	tx := &mockTelnyx{}
	st.On("SearchByName", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("skiptrace: unexpected status 500"))

	r := New(st, tx).Enrich(context.Background(), model.Lead{Name: "Jane Doe", City: "Austin", State: "TX"})

	disc := stageStatus(t, r, model.StageDiscovery)
	assert.Equal(t, model.StageStatusFailed, disc.Status)
	assert.Contains(t, r.Error, "phone discovery")
	assert.Empty(t, r.Phone)
	assert.Empty(t, r.Email)
	assert.Empty(t, r.SkipTracingData)
	assert.Equal(t, model.StageStatusSkipped, stageStatus(t, r, model.StagePhoneIntel).Status)
	assert.Equal(t, "Austin", r.City, "partial enrichment is kept")
	tx.AssertNotCalled(t, "Lookup", mock.Anything, mock.Anything)
}

func TestEnrich_FirstErrorKept(t *testing.T) {
	st := &mockSkipTracer{}
	tx := &mockTelnyx{}
	tx.On("Lookup", mock.Anything, mock.Anything).Return(nil, errors.New("telnyx: unexpected status 503"))
	st.On("LookupAge", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("skiptrace: request timed out"))

	r := New(st, tx).Enrich(context.Background(), model.Lead{Name: "Jane Doe", Phone: "5125550100"})

	assert.Contains(t, r.Error, "phone intel")
	assert.NotContains(t, r.Error, "age lookup")
	assert.Empty(t, r.LineType)
	assert.Empty(t, r.CarrierName)
	assert.True(t, r.Gatekeep.Passed, "missing line type never blocks")
	assert.Equal(t, model.StageStatusFailed, stageStatus(t, r, model.StageAge).Status)
}

func TestEnrich_Idempotent(t *testing.T) {
	p := New(&StubSkipTracer{}, &StubTelnyx{},
		WithDNC(NewDNCChecker(&StubDNC{}, token.Static("tok"))),
		WithCost(cost.NewCalculator(cost.DefaultRates()), nil),
	)
	lead := model.Lead{Name: "Maria Garcia", Location: "Houston, Texas, United States"}

	first := p.Enrich(context.Background(), lead)
	second := p.Enrich(context.Background(), lead)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first.Phone)
	assert.NotNil(t, first.DNC)
}

func TestEnrich_CostTally(t *testing.T) {
	tally := cost.NewTally(cost.NewCalculator(cost.Rates{
		SkipTrace: cost.SkipTraceRate{PerSearch: 0.02, PerAge: 0.03},
		Telnyx:    cost.TelnyxRate{PerLookup: 0.005},
	}))
	p := New(&StubSkipTracer{}, &StubTelnyx{}, WithCost(nil, tally))

	r := p.Enrich(context.Background(), model.Lead{Name: "Jane Doe", City: "Austin", State: "TX"})
	assert.InDelta(t, 0.055, r.CostUSD, 1e-9)

	p.Enrich(context.Background(), model.Lead{Name: "John Smith", City: "Dallas", State: "TX"})
	assert.InDelta(t, 0.11, tally.Spend(), 1e-9)
	assert.Equal(t, 2, tally.Count(cost.NameSearch))
}

func TestEnrich_ReverseLookupFillsName(t *testing.T) {
	st := &mockSkipTracer{}
	tx := &mockTelnyx{}
	st.On("SearchByPhone", mock.Anything, "5125550100").Return(&skiptrace.Person{
		Name:     "John A. Smith Jr.",
		Location: "Austin, TX 78701",
	}, nil).Once()
	tx.On("Lookup", mock.Anything, mock.Anything).Return(&telnyx.Lookup{LineType: "mobile"}, nil)
	st.On("LookupAge", mock.Anything, "John Smith", "Austin, TX 78701").Return(&skiptrace.AgeRecord{Age: "60"}, nil).Once()

	r := New(st, tx).Enrich(context.Background(), model.Lead{Phone: "512-555-0100"})

	assert.Equal(t, model.StageStatusComplete, stageStatus(t, r, model.StageReverseLookup).Status)
	assert.Equal(t, "John", r.FirstName)
	assert.Equal(t, "Smith", r.LastName)
	assert.Equal(t, "John Smith", r.Name)
	assert.Equal(t, "78701", r.ZipCode)
	assert.Equal(t, "60", r.Age)
	st.AssertExpectations(t)
}

func TestEnrich_DNCInline(t *testing.T) {
	d := &mockDNC{}
	d.On("Check", mock.Anything, "5125550100", "tok").Return(&dnc.Status{
		IsDoNotCall:   true,
		ContactStatus: dnc.ContactStatus{CanContact: false, Reason: "National DNC"},
	}, nil).Once()

	p := New(&StubSkipTracer{}, &StubTelnyx{}, WithDNC(NewDNCChecker(d, token.Static("tok"))))
	assert.True(t, p.DNCEnabled())

	r := p.Enrich(context.Background(), model.Lead{Name: "Jane Doe", Phone: "5125550100"})
	require.NotNil(t, r.DNC)
	assert.True(t, r.DNC.IsDoNotCall)
	assert.False(t, r.DNC.CanContact)
	assert.Equal(t, "National DNC", r.DNC.Reason)
	d.AssertExpectations(t)
}

func TestEnrich_DNCFailureIsNotALeadError(t *testing.T) {
	d := &mockDNC{}
	d.On("Check", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("dnc: connection refused"))

	p := New(&StubSkipTracer{}, &StubTelnyx{}, WithDNC(NewDNCChecker(d, token.Static("tok"))))
	r := p.Enrich(context.Background(), model.Lead{Name: "Jane Doe", Phone: "5125550100"})

	assert.Empty(t, r.Error)
	require.NotNil(t, r.DNC)
	assert.Equal(t, FailOpen(), *r.DNC)
}

func TestEnrich_DNCSkippedWithoutPhoneOrToken(t *testing.T) {
	d := &mockDNC{}
	tokens := &mockTokens{}
	tokens.On("Token", mock.Anything, false).Return("", errors.New("token: refresh failed"))

	p := New(&StubSkipTracer{}, &StubTelnyx{}, WithDNC(NewDNCChecker(d, tokens)))

	r := p.Enrich(context.Background(), model.Lead{Name: "Cher"})
	assert.Equal(t, "no phone", stageStatus(t, r, model.StageDNC).Reason)

	r = p.Enrich(context.Background(), model.Lead{Name: "Jane Doe", Phone: "5125550100"})
	assert.Equal(t, "no token", stageStatus(t, r, model.StageDNC).Reason)
	assert.Nil(t, r.DNC)
	d.AssertNotCalled(t, "Check", mock.Anything, mock.Anything, mock.Anything)
}

func TestDNCChecker_RefreshesRejectedToken(t *testing.T) {
	d := &mockDNC{}
	tokens := &mockTokens{}
	tokens.On("Token", mock.Anything, false).Return("stale", nil).Once()
	tokens.On("Token", mock.Anything, true).Return("fresh", nil).Once()
	d.On("Check", mock.Anything, "5125550100", "stale").Return(nil, &apiclient.StatusError{Service: dnc.Service, StatusCode: 401}).Once()
	d.On("Check", mock.Anything, "5125550100", "fresh").Return(&dnc.Status{ContactStatus: dnc.ContactStatus{CanContact: true}}, nil).Once()

	status, out := NewDNCChecker(d, tokens).Check(context.Background(), "5125550100")
	require.NotNil(t, status)
	assert.True(t, status.CanContact)
	assert.Empty(t, status.Reason)
	assert.Equal(t, model.StageStatusComplete, out.Status)
	d.AssertExpectations(t)
	tokens.AssertExpectations(t)
}
