package reports

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// ErrNotFound is returned when no report exists for a farm
var ErrNotFound = errors.New("report not found")

// Repository defines the interface for report history access
type Repository interface {
	Save(ctx context.Context, report *calculation.VerificationReport) error
	Latest(ctx context.Context, farmID string) (*calculation.VerificationReport, error)
	History(ctx context.Context, farmID string, limit int) ([]*calculation.VerificationReport, error)
}

// GormRepository stores report history in a relational database
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a new gorm-backed report repository
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// AutoMigrate creates or updates the report table
func (r *GormRepository) AutoMigrate() error {
	if err := r.db.AutoMigrate(&ReportRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Name returns the sink name
func (r *GormRepository) Name() string {
	return "database"
}

// Store saves the report, satisfying Sink
func (r *GormRepository) Store(ctx context.Context, report *calculation.VerificationReport) error {
	return r.Save(ctx, report)
}

// Save inserts a report row
func (r *GormRepository) Save(ctx context.Context, report *calculation.VerificationReport) error {
	record, err := newReportRecord(report)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return fmt.Errorf("failed to save report: %w", err)
	}
	return nil
}

// Latest returns the most recent report for a farm
func (r *GormRepository) Latest(ctx context.Context, farmID string) (*calculation.VerificationReport, error) {
	var record ReportRecord
	err := r.db.WithContext(ctx).
		Where("farm_id = ?", farmID).
		Order("calculation_date DESC").
		Order("created_at DESC").
		Take(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return record.Report()
}

// History returns a farm's reports, newest first
func (r *GormRepository) History(ctx context.Context, farmID string, limit int) ([]*calculation.VerificationReport, error) {
	var records []ReportRecord
	query := r.db.WithContext(ctx).
		Where("farm_id = ?", farmID).
		Order("calculation_date DESC").
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	reports := make([]*calculation.VerificationReport, 0, len(records))
	for i := range records {
		report, err := records[i].Report()
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}
	return reports, nil
}

// LatestPerFarm returns the summary of each farm's most recent report
func (r *GormRepository) LatestPerFarm(ctx context.Context) ([]ReportSummary, error) {
	latest := r.db.Model(&ReportRecord{}).
		Select("farm_id, MAX(calculation_date) AS calculation_date").
		Group("farm_id")

	var records []ReportRecord
	err := r.db.WithContext(ctx).
		Table("verification_reports AS r").
		Select("r.id, r.farm_id, r.model_type, r.verification_status, r.calculation_date, r.total_credits, r.credits_per_year, r.validation_errors, r.created_at").
		Joins("JOIN (?) AS latest ON r.farm_id = latest.farm_id AND r.calculation_date = latest.calculation_date", latest).
		Order("r.farm_id").
		Order("r.created_at DESC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list latest reports: %w", err)
	}

	summaries := make([]ReportSummary, 0, len(records))
	seen := make(map[string]bool, len(records))
	for i := range records {
		if seen[records[i].FarmID] {
			continue
		}
		seen[records[i].FarmID] = true

		summary, err := records[i].Summary()
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}
