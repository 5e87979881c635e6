package credits

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// DefaultBatchWorkers is used when a batch does not ask for a worker count
const DefaultBatchWorkers = 4

var (
	// ErrMissingFarmID rejects a record that cannot be told apart from others
	ErrMissingFarmID = errors.New("farm_id is required")
	// ErrDuplicateFarmID rejects a repeated farm ID
	ErrDuplicateFarmID = errors.New("duplicate farm_id")
)

// BatchOutcome is the result of assessing one record of a batch
type BatchOutcome struct {
	Index  int                             `json:"index"`
	FarmID string                          `json:"farm_id"`
	Report *calculation.VerificationReport `json:"report,omitempty"`
	Error  string                          `json:"error,omitempty"`
}

// BatchSummary counts batch outcomes by verification status
type BatchSummary struct {
	Total   int `json:"total"`
	Ready   int `json:"ready_for_verification"`
	Pending int `json:"pending"`
	Failed  int `json:"failed"`
}

// AssessBatch assesses records concurrently on up to workers goroutines.
// Outcomes keep input order; a failing record does not stop the others.
// Only context cancellation aborts the batch.
func (s *Service) AssessBatch(ctx context.Context, records []*calculation.FarmRecord, asOf time.Time, workers int) ([]BatchOutcome, error) {
	if workers <= 0 {
		workers = DefaultBatchWorkers
	}

	outcomes := make([]BatchOutcome, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, record := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			if record == nil {
				outcomes[i] = BatchOutcome{Index: i, Error: "farm record is null"}
				return nil
			}

			outcome := BatchOutcome{Index: i, FarmID: record.FarmID}
			report, err := s.Assess(gctx, record, asOf)
			if report != nil {
				outcome.FarmID = report.FarmID
				outcome.Report = report
			}
			if err != nil {
				outcome.Error = err.Error()
			}
			outcomes[i] = outcome
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := Summarize(outcomes)
	s.logger.Info("Batch assessment complete",
		zap.Int("total", summary.Total),
		zap.Int("ready", summary.Ready),
		zap.Int("pending", summary.Pending),
		zap.Int("failed", summary.Failed))

	return outcomes, nil
}

// CheckFarmIDs returns the records that cannot be keyed by farm ID: those
// without one, and every repeat of an ID after its first occurrence.
// Null records are left to AssessBatch.
func CheckFarmIDs(records []*calculation.FarmRecord) map[int]error {
	rejected := make(map[int]error)
	first := make(map[string]int, len(records))
	for i, record := range records {
		if record == nil {
			continue
		}
		if record.FarmID == "" {
			rejected[i] = ErrMissingFarmID
			continue
		}
		if j, seen := first[record.FarmID]; seen {
			rejected[i] = fmt.Errorf("%w %q (first at record %d)", ErrDuplicateFarmID, record.FarmID, j)
			continue
		}
		first[record.FarmID] = i
	}
	return rejected
}

// AssessBatchDistinct is AssessBatch for outputs keyed by farm ID. Records
// rejected by CheckFarmIDs fail without being assessed, so no two stored
// reports share a key.
func (s *Service) AssessBatchDistinct(ctx context.Context, records []*calculation.FarmRecord, asOf time.Time, workers int) ([]BatchOutcome, error) {
	rejected := CheckFarmIDs(records)
	if len(rejected) == 0 {
		return s.AssessBatch(ctx, records, asOf, workers)
	}

	accepted := make([]*calculation.FarmRecord, 0, len(records)-len(rejected))
	positions := make([]int, 0, cap(accepted))
	for i, record := range records {
		if _, ok := rejected[i]; !ok {
			accepted = append(accepted, record)
			positions = append(positions, i)
		}
	}

	assessed, err := s.AssessBatch(ctx, accepted, asOf, workers)
	if err != nil {
		return nil, err
	}

	outcomes := make([]BatchOutcome, len(records))
	for i, err := range rejected {
		outcomes[i] = BatchOutcome{Index: i, FarmID: records[i].FarmID, Error: err.Error()}
	}
	for k, outcome := range assessed {
		outcome.Index = positions[k]
		outcomes[positions[k]] = outcome
	}
	return outcomes, nil
}

// Summarize counts outcomes by status
func Summarize(outcomes []BatchOutcome) BatchSummary {
	summary := BatchSummary{Total: len(outcomes)}
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			summary.Failed++
		case o.Report != nil && o.Report.IsReady():
			summary.Ready++
		default:
			summary.Pending++
		}
	}
	return summary
}
