package credits

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
	"carbon-scribe/mrv/mrv-backend/internal/reports"
)

// ValidationError carries every rule violation of a rejected record
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	return "invalid farm record: " + strings.Join(e.Errors, "; ")
}

// ReadyNotifier announces reports that are ready for verification
type ReadyNotifier interface {
	NotifyReady(ctx context.Context, report *calculation.VerificationReport) error
}

// Service runs assessments and hands the reports to storage and notification
type Service struct {
	engine   *calculation.Engine
	sink     reports.Sink
	notifier ReadyNotifier
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a credits service. sink and notifier may be nil.
func NewService(engine *calculation.Engine, sink reports.Sink, notifier ReadyNotifier, logger *zap.Logger) *Service {
	return &Service{
		engine:   engine,
		sink:     sink,
		notifier: notifier,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Now returns the service clock reading used when no instant is pinned
func (s *Service) Now() time.Time {
	return s.now()
}

// Parameters returns the catalog coefficients for a project type
func (s *Service) Parameters(projectType string) (calculation.ProjectParameters, error) {
	return calculation.ParametersFor(projectType)
}

// Methodologies returns the metadata of every supported model
func (s *Service) Methodologies() []calculation.MethodologyMetadata {
	return s.engine.GetSupportedMethodologies()
}

// Validate returns the rule violations of a record as of asOf
func (s *Service) Validate(record *calculation.FarmRecord, asOf time.Time) []string {
	return s.engine.Validate(record, asOf)
}

// Calculate validates and then calculates credits. An invalid record yields
// a *ValidationError.
func (s *Service) Calculate(record *calculation.FarmRecord, asOf time.Time) (*calculation.CalculationResult, error) {
	if errs := s.engine.Validate(record, asOf); len(errs) > 0 {
		return nil, &ValidationError{Errors: errs}
	}
	return s.engine.CalculateCredits(record, asOf)
}

// Assess builds the verification report for a record, stores it through the
// configured sink and announces it when it is ready for verification
func (s *Service) Assess(ctx context.Context, record *calculation.FarmRecord, asOf time.Time) (*calculation.VerificationReport, error) {
	report, err := s.engine.Assess(record, asOf)
	if err != nil {
		return nil, err
	}

	s.logger.Info("Assessed farm",
		zap.String("farm_id", report.FarmID),
		zap.String("model_type", string(report.ModelType)),
		zap.String("verification_status", string(report.VerificationStatus)),
		zap.Int("validation_errors", len(report.ValidationErrors)))

	if s.sink != nil {
		if err := s.sink.Store(ctx, report); err != nil {
			s.logger.Error("Failed to store report",
				zap.String("farm_id", report.FarmID),
				zap.String("report_id", report.ReportID.String()),
				zap.Error(err))
			return report, fmt.Errorf("failed to store report for farm %q: %w", report.FarmID, err)
		}
	}

	if s.notifier != nil {
		if err := s.notifier.NotifyReady(ctx, report); err != nil {
			s.logger.Warn("Failed to send verification notification",
				zap.String("farm_id", report.FarmID),
				zap.Error(err))
		}
	}

	return report, nil
}
