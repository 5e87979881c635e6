package reports

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
	"carbon-scribe/mrv/mrv-backend/pkg/security"
)

// ReportRecord is one stored verification report. The full report document
// is kept in Document; the other columns exist for querying.
type ReportRecord struct {
	ID                 uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	FarmID             string         `gorm:"not null;index:idx_reports_farm_date,priority:1" json:"farm_id"`
	ModelType          string         `gorm:"not null" json:"model_type"`
	VerificationStatus string         `gorm:"not null;index" json:"verification_status"`
	CalculationDate    time.Time      `gorm:"not null;index:idx_reports_farm_date,priority:2" json:"calculation_date"`
	TotalCredits       *float64       `json:"total_credits,omitempty"`
	CreditsPerYear     *float64       `json:"credits_per_year,omitempty"`
	ValidationErrors   datatypes.JSON `json:"validation_errors"`
	Document           datatypes.JSON `gorm:"not null" json:"document"`
	CreatedAt          time.Time      `json:"created_at"`
}

// TableName overrides the gorm default
func (ReportRecord) TableName() string {
	return "verification_reports"
}

// newReportRecord flattens a report into its storage row
func newReportRecord(report *calculation.VerificationReport) (*ReportRecord, error) {
	document, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	validationErrors, err := json.Marshal(report.ValidationErrors)
	if err != nil {
		return nil, fmt.Errorf("failed to encode validation errors: %w", err)
	}

	record := &ReportRecord{
		ID:                 report.ReportID,
		FarmID:             report.FarmID,
		ModelType:          string(report.ModelType),
		VerificationStatus: string(report.VerificationStatus),
		CalculationDate:    report.CalculationDate,
		ValidationErrors:   datatypes.JSON(validationErrors),
		Document:           datatypes.JSON(document),
	}
	if result := report.CalculationResults; result != nil {
		total, perYear := result.TotalCredits, result.CreditsPerYear
		record.TotalCredits = &total
		record.CreditsPerYear = &perYear
	}
	return record, nil
}

// Report decodes the stored report document
func (r *ReportRecord) Report() (*calculation.VerificationReport, error) {
	var report calculation.VerificationReport
	if err := json.Unmarshal(r.Document, &report); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", r.ID, err)
	}
	return &report, nil
}

// Summary projects the stored columns without decoding the document
func (r *ReportRecord) Summary() (ReportSummary, error) {
	summary := ReportSummary{
		ReportID:           r.ID.String(),
		FarmID:             r.FarmID,
		ModelType:          r.ModelType,
		VerificationStatus: r.VerificationStatus,
		CalculationDate:    r.CalculationDate,
		TotalCredits:       r.TotalCredits,
		CreditsPerYear:     r.CreditsPerYear,
		ValidationErrors:   []string{},
	}
	if len(r.ValidationErrors) > 0 {
		if err := json.Unmarshal(r.ValidationErrors, &summary.ValidationErrors); err != nil {
			return ReportSummary{}, fmt.Errorf("failed to decode validation errors of report %s: %w", r.ID, err)
		}
	}
	return summary, nil
}

// ReportSummary is the searchable projection of a report
type ReportSummary struct {
	ReportID           string    `json:"report_id"`
	FarmID             string    `json:"farm_id"`
	ModelType          string    `json:"model_type"`
	VerificationStatus string    `json:"verification_status"`
	CalculationDate    time.Time `json:"calculation_date"`
	TotalCredits       *float64  `json:"total_credits,omitempty"`
	CreditsPerYear     *float64  `json:"credits_per_year,omitempty"`
	ValidationErrors   []string  `json:"validation_errors"`
	DocumentSHA256     string    `json:"document_sha256,omitempty"`
}

// EncodeReport returns the archived JSON form of a report
func EncodeReport(report *calculation.VerificationReport) ([]byte, error) {
	data, err := json.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

// Summarize projects a report to its searchable fields. DocumentSHA256 is the
// digest of the archived document.
func Summarize(report *calculation.VerificationReport) ReportSummary {
	summary := ReportSummary{
		ReportID:           report.ReportID.String(),
		FarmID:             report.FarmID,
		ModelType:          string(report.ModelType),
		VerificationStatus: string(report.VerificationStatus),
		CalculationDate:    report.CalculationDate,
		ValidationErrors:   report.ValidationErrors,
	}
	if result := report.CalculationResults; result != nil {
		total, perYear := result.TotalCredits, result.CreditsPerYear
		summary.TotalCredits = &total
		summary.CreditsPerYear = &perYear
	}
	if data, err := EncodeReport(report); err == nil {
		summary.DocumentSHA256 = security.Digest(data)
	}
	return summary
}
