package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
	"carbon-scribe/mrv/mrv-backend/internal/credits"
)

// MockFarmSource is a mock implementation of FarmSource
type MockFarmSource struct {
	mock.Mock
}

func (m *MockFarmSource) List(ctx context.Context) ([]*calculation.FarmRecord, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*calculation.FarmRecord), args.Error(1)
}

func ptr[T any](v T) *T { return &v }

var pinnedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func newTestManager(t *testing.T, farms FarmSource) *Manager {
	t.Helper()
	service := credits.NewService(calculation.NewEngine(), nil, nil, zap.NewNop())
	m, err := NewManager(farms, service, zap.NewNop(), DefaultConfig())
	require.NoError(t, err)
	m.now = func() time.Time { return pinnedNow }
	return m
}

func TestRunOnce(t *testing.T) {
	farms := new(MockFarmSource)
	farms.On("List", mock.Anything).Return([]*calculation.FarmRecord{
		{FarmID: "A", CropType: "agroforestry", AreaHa: ptr(10.0), EstablishmentDate: ptr("2016-03-01"), TreeCount: 100},
		{FarmID: "B", CropType: "rice"},
		{FarmID: "C", CropType: "cocoa", AreaHa: ptr(1.0), EstablishmentDate: ptr("2020-01-01")},
	}, nil)

	m := newTestManager(t, farms)
	assert.Nil(t, m.LastRun())

	result, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, pinnedNow, result.AsOf)
	assert.Equal(t, credits.BatchSummary{Total: 3, Ready: 1, Pending: 1, Failed: 1}, result.Summary)
	require.Len(t, result.Failures, 1)
	assert.Equal(t, "C", result.Failures[0].FarmID)
	assert.Same(t, result, m.LastRun())
	farms.AssertExpectations(t)
}

func TestRunOnceNoFarms(t *testing.T) {
	farms := new(MockFarmSource)
	farms.On("List", mock.Anything).Return([]*calculation.FarmRecord{}, nil)

	result, err := newTestManager(t, farms).RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Summary.Total)
}

func TestRunOnceListFailure(t *testing.T) {
	farms := new(MockFarmSource)
	farms.On("List", mock.Anything).Return(nil, errors.New("connection refused"))

	m := newTestManager(t, farms)
	_, err := m.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Nil(t, m.LastRun())
}

func TestStartStop(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	m := newTestManager(t, new(MockFarmSource))

	_, ok := m.NextRun()
	assert.False(t, ok)

	require.NoError(t, m.Start(context.Background()))
	assert.Error(t, m.Start(context.Background()))

	next, ok := m.NextRun()
	require.True(t, ok)
	assert.True(t, next.After(time.Now()))

	m.Stop()
	_, ok = m.NextRun()
	assert.False(t, ok)
	m.Stop()
}

func TestNewManagerRejectsBadConfig(t *testing.T) {
	service := credits.NewService(calculation.NewEngine(), nil, nil, zap.NewNop())

	cfg := DefaultConfig()
	cfg.Schedule = "every tuesday"
	_, err := NewManager(new(MockFarmSource), service, zap.NewNop(), cfg)
	assert.Error(t, err)

	cfg = DefaultConfig()
	cfg.Timezone = "Mars/Olympus"
	_, err = NewManager(new(MockFarmSource), service, zap.NewNop(), cfg)
	assert.Error(t, err)
}

func TestValidateSchedule(t *testing.T) {
	assert.NoError(t, ValidateSchedule("@daily"))
	assert.NoError(t, ValidateSchedule("0 */6 * * *"))
	assert.NoError(t, ValidateSchedule("@every 90m"))
	assert.Error(t, ValidateSchedule(""))
	assert.Error(t, ValidateSchedule("0 0 * *"))
}
