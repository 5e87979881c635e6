package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
	"carbon-scribe/mrv/mrv-backend/internal/credits"
)

// FarmSource lists the farms to recalculate
type FarmSource interface {
	List(ctx context.Context) ([]*calculation.FarmRecord, error)
}

// BatchAssessor assesses a batch of farm records
type BatchAssessor interface {
	AssessBatch(ctx context.Context, records []*calculation.FarmRecord, asOf time.Time, workers int) ([]credits.BatchOutcome, error)
}

// Config configures the recalculation manager
type Config struct {
	Schedule   string        `json:"schedule"`
	Timezone   string        `json:"timezone"`
	Workers    int           `json:"workers"`
	RunTimeout time.Duration `json:"run_timeout"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Schedule:   "@hourly",
		Timezone:   "UTC",
		Workers:    credits.DefaultBatchWorkers,
		RunTimeout: 30 * time.Minute,
	}
}

// RunResult describes one recalculation pass
type RunResult struct {
	StartedAt  time.Time              `json:"started_at"`
	FinishedAt time.Time              `json:"finished_at"`
	AsOf       time.Time              `json:"as_of"`
	Summary    credits.BatchSummary   `json:"summary"`
	Failures   []credits.BatchOutcome `json:"failures,omitempty"`
}

// Manager periodically reassesses every stored farm so that project age
// and maturity stay current in the published reports
type Manager struct {
	cron     *cron.Cron
	entry    cron.EntryID
	farms    FarmSource
	assessor BatchAssessor
	config   Config
	logger   *zap.Logger
	now      func() time.Time

	mu      sync.RWMutex
	running bool
	lastRun *RunResult
}

// NewManager creates a recalculation manager
func NewManager(farms FarmSource, assessor BatchAssessor, logger *zap.Logger, config Config) (*Manager, error) {
	if err := ValidateSchedule(config.Schedule); err != nil {
		return nil, err
	}

	loc := time.UTC
	if config.Timezone != "" {
		l, err := time.LoadLocation(config.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", config.Timezone, err)
		}
		loc = l
	}
	if config.RunTimeout <= 0 {
		config.RunTimeout = DefaultConfig().RunTimeout
	}

	cronLogger := cronLogger{logger.Sugar()}
	return &Manager{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		farms:    farms,
		assessor: assessor,
		config:   config,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

// Start registers the recalculation job and starts the scheduler
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return fmt.Errorf("recalculation manager already running")
	}

	entry, err := m.cron.AddFunc(m.config.Schedule, func() {
		runCtx, cancel := context.WithTimeout(ctx, m.config.RunTimeout)
		defer cancel()
		if _, err := m.RunOnce(runCtx); err != nil {
			m.logger.Error("Recalculation run failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	m.entry = entry
	m.running = true
	m.cron.Start()

	m.logger.Info("Started recalculation manager",
		zap.String("schedule", m.config.Schedule),
		zap.Time("next_run", m.cron.Entry(entry).Next))
	return nil
}

// Stop stops the scheduler and waits for a running pass to finish
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	m.cron.Remove(m.entry)
	m.mu.Unlock()

	m.logger.Info("Stopping recalculation manager")
	<-m.cron.Stop().Done()
}

// RunOnce reassesses every farm as of the current instant
func (m *Manager) RunOnce(ctx context.Context) (*RunResult, error) {
	started := m.now()

	records, err := m.farms.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list farms: %w", err)
	}

	result := &RunResult{StartedAt: started, AsOf: started}
	if len(records) > 0 {
		outcomes, err := m.assessor.AssessBatch(ctx, records, started, m.config.Workers)
		if err != nil {
			return nil, fmt.Errorf("failed to assess farms: %w", err)
		}
		result.Summary = credits.Summarize(outcomes)
		for _, o := range outcomes {
			if o.Error != "" {
				result.Failures = append(result.Failures, o)
			}
		}
	}
	result.FinishedAt = m.now()

	m.mu.Lock()
	m.lastRun = result
	m.mu.Unlock()

	m.logger.Info("Recalculation run completed",
		zap.Int("farms", result.Summary.Total),
		zap.Int("ready", result.Summary.Ready),
		zap.Int("pending", result.Summary.Pending),
		zap.Int("failed", result.Summary.Failed),
		zap.Duration("duration", result.FinishedAt.Sub(result.StartedAt)))

	return result, nil
}

// LastRun returns the most recent pass, or nil before the first one
func (m *Manager) LastRun() *RunResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastRun
}

// NextRun returns the next scheduled pass. ok is false when not started.
func (m *Manager) NextRun() (next time.Time, ok bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.running {
		return time.Time{}, false
	}
	return m.cron.Entry(m.entry).Next, true
}

// ValidateSchedule validates a standard cron expression or descriptor
func ValidateSchedule(expr string) error {
	if expr == "" {
		return errors.New("empty schedule")
	}
	if _, err := cron.ParseStandard(expr); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return nil
}

// cronLogger routes scheduler logs through zap
type cronLogger struct {
	sugar *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.sugar.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.sugar.Errorw(msg, append(keysAndValues, "error", err)...)
}
