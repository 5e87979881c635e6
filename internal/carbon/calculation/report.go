package calculation

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// UnknownFarmID labels reports for records without an identifier
const UnknownFarmID = "unknown"

// BuildReport assembles a verification report for a record as of the given instant
func BuildReport(record *FarmRecord, result *CalculationResult, asOf time.Time) *VerificationReport {
	return assembleReport(NewValidator(), record, result, asOf)
}

// BuildReport assembles a verification report using the engine's validator
func (e *Engine) BuildReport(record *FarmRecord, result *CalculationResult, asOf time.Time) *VerificationReport {
	return assembleReport(e.validator, record, result, asOf)
}

func assembleReport(v *Validator, record *FarmRecord, result *CalculationResult, asOf time.Time) *VerificationReport {
	validationErrors := v.Validate(record, asOf)

	farmID := record.FarmID
	if farmID == "" {
		farmID = UnknownFarmID
	}

	report := &VerificationReport{
		ReportID:           uuid.New(),
		FarmID:             farmID,
		CalculationDate:    asOf,
		ModelType:          reportModelType(record, result),
		ValidationErrors:   validationErrors,
		VerificationStatus: VerificationStatusPending,
		Recommendations:    []string{},
	}

	// A result is only ever embedded next to a clean record
	if len(validationErrors) == 0 {
		report.VerificationStatus = VerificationStatusReadyForVerification
		report.CalculationResults = result
	}

	return report
}

func reportModelType(record *FarmRecord, result *CalculationResult) ProjectType {
	if result != nil {
		return result.ModelType
	}
	if strings.TrimSpace(record.CropType) == "" {
		return DefaultProjectType
	}
	return ProjectType(strings.ToLower(strings.TrimSpace(record.CropType)))
}
