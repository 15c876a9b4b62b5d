package main

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/lead-enricher/internal/cost"
	"github.com/sells-group/lead-enricher/internal/model"
	"github.com/sells-group/lead-enricher/internal/store"
)

type fakeChecker struct {
	phones []string
	status *model.DNCStatus
	reason string
}

func (f *fakeChecker) Check(_ context.Context, phone string) (*model.DNCStatus, model.StageOutcome) {
	f.phones = append(f.phones, phone)
	if f.status == nil {
		return nil, model.StageOutcome{Status: model.StageStatusSkipped, Reason: f.reason}
	}
	s := *f.status
	return &s, model.StageOutcome{Status: model.StageStatusComplete}
}

type fakeWaiter struct {
	waits int
	err   error
}

func (f *fakeWaiter) Wait(context.Context) error {
	f.waits++
	return f.err
}

type mockResultStore struct{ mock.Mock }

func (m *mockResultStore) ListResults(ctx context.Context, filter store.ResultFilter) ([]model.StoredResult, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.StoredResult), args.Error(1)
}

func (m *mockResultStore) UpdateResultDNC(ctx context.Context, resultID string, result model.EnrichmentResult, checkedAt time.Time) error {
	args := m.Called(ctx, resultID, result, checkedAt)
	return args.Error(0)
}

func testTally() *cost.Tally {
	return cost.NewTally(cost.NewCalculator(cost.DefaultRates()))
}

func TestCheckResults_OnlyPhones(t *testing.T) {
	checker := &fakeChecker{status: &model.DNCStatus{CanContact: true}}
	lim := &fakeWaiter{}
	tally := testTally()

	results := []model.EnrichmentResult{
		{Name: "Jane Doe", Phone: "(512) 555-1234"},
		{Name: "No Phone"},
		{Name: "Bad Phone", Phone: "555"},
		{Name: "John Smith", Phone: "+1 214 555 0000"},
	}

	n, err := checkResults(context.Background(), checker, lim, tally, results)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"5125551234", "2145550000"}, checker.phones)
	assert.Equal(t, 2, lim.waits)
	assert.Equal(t, 2, tally.Count(cost.DNCCheck))

	require.NotNil(t, results[0].DNC)
	assert.True(t, results[0].DNC.CanContact)
	assert.Nil(t, results[1].DNC)
	assert.Nil(t, results[2].DNC)

	st, ok := results[3].Stage(model.StageDNC)
	require.True(t, ok)
	assert.Equal(t, model.StageStatusComplete, st.Status)
}

func TestCheckResults_SkippedIsNotCounted(t *testing.T) {
	checker := &fakeChecker{reason: "no token"}
	results := []model.EnrichmentResult{{Phone: "5125551234"}}

	n, err := checkResults(context.Background(), checker, nil, nil, results)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Nil(t, results[0].DNC)

	st, ok := results[0].Stage(model.StageDNC)
	require.True(t, ok)
	assert.Equal(t, model.StageStatusSkipped, st.Status)
	assert.Equal(t, "no token", st.Reason)
}

func TestCheckResults_StopsWhenLimiterFails(t *testing.T) {
	checker := &fakeChecker{status: &model.DNCStatus{CanContact: true}}
	lim := &fakeWaiter{err: context.Canceled}

	n, err := checkResults(context.Background(), checker, lim, nil, []model.EnrichmentResult{{Phone: "5125551234"}})
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, n)
	assert.Empty(t, checker.phones)
}

func TestCheckStoredResults(t *testing.T) {
	ctx := context.Background()
	st := &mockResultStore{}
	checker := &fakeChecker{status: &model.DNCStatus{IsDoNotCall: true, Reason: "federal"}}
	tally := testTally()

	pending := []model.StoredResult{
		{ID: "r1", Phone: "5125551234", Result: model.EnrichmentResult{Name: "Jane Doe", Phone: "5125551234"}},
		{ID: "r2", Phone: "2145550000", Result: model.EnrichmentResult{Name: "John Smith", Phone: "2145550000"}},
	}
	st.On("ListResults", ctx, store.ResultFilter{MissingDNC: true, Limit: 10}).Return(pending, nil)
	st.On("UpdateResultDNC", ctx, "r1", mock.MatchedBy(func(r model.EnrichmentResult) bool {
		return r.DNC != nil && r.DNC.IsDoNotCall && r.Name == "Jane Doe"
	}), mock.AnythingOfType("time.Time")).Return(nil)
	st.On("UpdateResultDNC", ctx, "r2", mock.Anything, mock.AnythingOfType("time.Time")).Return(nil)

	n, err := checkStoredResults(ctx, st, checker, nil, tally, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 2, tally.Count(cost.DNCCheck))
	st.AssertExpectations(t)
}

func TestCheckStoredResults_SkippedIsNotWritten(t *testing.T) {
	ctx := context.Background()
	st := &mockResultStore{}
	checker := &fakeChecker{reason: "no token"}

	st.On("ListResults", ctx, mock.Anything).Return([]model.StoredResult{{ID: "r1", Phone: "5125551234"}}, nil)

	n, err := checkStoredResults(ctx, st, checker, nil, nil, 0)
	require.NoError(t, err)
	assert.Zero(t, n)
	st.AssertNotCalled(t, "UpdateResultDNC", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckStoredResults_UpdateError(t *testing.T) {
	ctx := context.Background()
	st := &mockResultStore{}
	checker := &fakeChecker{status: &model.DNCStatus{CanContact: true}}

	st.On("ListResults", ctx, mock.Anything).Return([]model.StoredResult{{ID: "r1", Phone: "5125551234"}}, nil)
	st.On("UpdateResultDNC", ctx, "r1", mock.Anything, mock.Anything).Return(assert.AnError)

	n, err := checkStoredResults(ctx, st, checker, nil, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dnc: update result r1")
	assert.Zero(t, n)
}

func TestCheckStoredResults_ListError(t *testing.T) {
	ctx := context.Background()
	st := &mockResultStore{}
	st.On("ListResults", ctx, mock.Anything).Return(nil, assert.AnError)

	_, err := checkStoredResults(ctx, st, &fakeChecker{}, nil, nil, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dnc: list pending results")
}

func TestApplyDNC_ReplacesStage(t *testing.T) {
	r := model.EnrichmentResult{Stages: []model.StageOutcome{
		{Name: model.StageGatekeep, Status: model.StageStatusComplete},
		{Name: model.StageDNC, Status: model.StageStatusFailed, Error: "Error checking DNC"},
	}}

	applyDNC(&r, &model.DNCStatus{CanContact: true}, model.StageOutcome{Status: model.StageStatusComplete})

	require.Len(t, r.Stages, 2)
	assert.Equal(t, model.StageStatusComplete, r.Stages[1].Status)
	assert.Empty(t, r.Stages[1].Error)
	require.NotNil(t, r.DNC)
	assert.True(t, r.DNC.CanContact)
}

func TestApplyDNC_KeepsPriorStatusOnSkip(t *testing.T) {
	prior := &model.DNCStatus{IsDoNotCall: true}
	r := model.EnrichmentResult{DNC: prior}

	applyDNC(&r, nil, model.StageOutcome{Status: model.StageStatusSkipped, Reason: "no token"})

	assert.Same(t, prior, r.DNC)
	require.Len(t, r.Stages, 1)
	assert.Equal(t, model.StageDNC, r.Stages[0].Name)
}
