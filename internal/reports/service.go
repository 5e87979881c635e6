package reports

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// DefaultHistoryLimit bounds history queries that do not ask for a limit
const DefaultHistoryLimit = 50

// MaxHistoryLimit is the largest history page served
const MaxHistoryLimit = 500

// Service provides read access to report history
type Service struct {
	repo   Repository
	logger *zap.Logger
}

// NewService creates a new reports service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// LatestReport returns the newest report for a farm
func (s *Service) LatestReport(ctx context.Context, farmID string) (*calculation.VerificationReport, error) {
	report, err := s.repo.Latest(ctx, farmID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Error("Failed to load latest report", zap.String("farm_id", farmID), zap.Error(err))
		}
		return nil, err
	}
	return report, nil
}

// ReportHistory returns up to limit reports for a farm, newest first
func (s *Service) ReportHistory(ctx context.Context, farmID string, limit int) ([]*calculation.VerificationReport, error) {
	switch {
	case limit <= 0:
		limit = DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		limit = MaxHistoryLimit
	}

	history, err := s.repo.History(ctx, farmID, limit)
	if err != nil {
		s.logger.Error("Failed to load report history", zap.String("farm_id", farmID), zap.Error(err))
		return nil, fmt.Errorf("failed to load report history: %w", err)
	}
	return history, nil
}
