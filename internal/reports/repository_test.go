package reports

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

func newTestRepository(t *testing.T) *GormRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "reports.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	repo := NewGormRepository(db)
	require.NoError(t, repo.AutoMigrate())
	return repo
}

func TestGormRepositoryLatestAndHistory(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	older := pendingReport(t, "farm-1")
	older.CalculationDate = testAsOf.Add(-48 * time.Hour)
	newer := readyReport(t, "farm-1")
	other := readyReport(t, "farm-2")

	require.NoError(t, repo.Store(ctx, older))
	require.NoError(t, repo.Store(ctx, newer))
	require.NoError(t, repo.Save(ctx, other))

	latest, err := repo.Latest(ctx, "farm-1")
	require.NoError(t, err)
	assert.Equal(t, newer.ReportID, latest.ReportID)
	assert.True(t, latest.IsReady())
	require.NotNil(t, latest.CalculationResults)
	assert.InDelta(t, newer.CalculationResults.TotalCredits, latest.CalculationResults.TotalCredits, 1e-9)

	history, err := repo.History(ctx, "farm-1", 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, newer.ReportID, history[0].ReportID)
	assert.Equal(t, older.ReportID, history[1].ReportID)
	assert.Nil(t, history[1].CalculationResults)
	assert.Equal(t, older.ValidationErrors, history[1].ValidationErrors)

	limited, err := repo.History(ctx, "farm-1", 1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGormRepositoryNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Latest(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	history, err := repo.History(context.Background(), "missing", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestReportRecordColumns(t *testing.T) {
	record, err := newReportRecord(readyReport(t, "farm-5"))
	require.NoError(t, err)
	assert.Equal(t, "farm-5", record.FarmID)
	assert.Equal(t, "agroforestry", record.ModelType)
	assert.Equal(t, "ready_for_verification", record.VerificationStatus)
	require.NotNil(t, record.TotalCredits)
	assert.JSONEq(t, `[]`, string(record.ValidationErrors))

	record, err = newReportRecord(pendingReport(t, "farm-6"))
	require.NoError(t, err)
	assert.Nil(t, record.TotalCredits)
	assert.Equal(t, "pending", record.VerificationStatus)
}

func TestGormRepositoryLatestPerFarm(t *testing.T) {
	ctx := context.Background()
	repo := newTestRepository(t)

	older := readyReport(t, "farm-1")
	older.CalculationDate = testAsOf.Add(-72 * time.Hour)
	newer := pendingReport(t, "farm-1")
	other := readyReport(t, "farm-2")
	for _, r := range []*calculation.VerificationReport{older, newer, other} {
		require.NoError(t, repo.Save(ctx, r))
	}

	summaries, err := repo.LatestPerFarm(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 2)

	assert.Equal(t, "farm-1", summaries[0].FarmID)
	assert.Equal(t, newer.ReportID.String(), summaries[0].ReportID)
	assert.Equal(t, "pending", summaries[0].VerificationStatus)
	assert.Nil(t, summaries[0].TotalCredits)
	assert.Equal(t, newer.ValidationErrors, summaries[0].ValidationErrors)

	assert.Equal(t, "farm-2", summaries[1].FarmID)
	require.NotNil(t, summaries[1].TotalCredits)
	assert.InDelta(t, other.CalculationResults.TotalCredits, *summaries[1].TotalCredits, 1e-9)
}
