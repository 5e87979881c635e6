package dashboard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
	"carbon-scribe/mrv/mrv-backend/internal/reports"
)

const portfolioKey = "portfolio"

// LatestSource returns the latest report summary of every farm
type LatestSource interface {
	LatestPerFarm(ctx context.Context) ([]reports.ReportSummary, error)
}

// PortfolioSummary aggregates the latest report of every farm
type PortfolioSummary struct {
	Farms                int                     `json:"farms"`
	ReadyForVerification int                     `json:"ready_for_verification"`
	Pending              int                     `json:"pending"`
	TotalCredits         float64                 `json:"total_credits"`
	CreditsPerYear       float64                 `json:"credits_per_year"`
	ByModel              map[string]ModelSummary `json:"by_model"`
	TopFarms             []FarmCredits           `json:"top_farms"`
	ComputedAt           time.Time               `json:"computed_at"`
}

// ModelSummary aggregates the farms assessed under one model
type ModelSummary struct {
	Farms                int     `json:"farms"`
	ReadyForVerification int     `json:"ready_for_verification"`
	TotalCredits         float64 `json:"total_credits"`
	MeanCredits          float64 `json:"mean_credits"`
}

// FarmCredits ranks one farm by credits
type FarmCredits struct {
	FarmID       string  `json:"farm_id"`
	ModelType    string  `json:"model_type"`
	TotalCredits float64 `json:"total_credits"`
}

// Config configures the aggregator
type Config struct {
	CacheTTL time.Duration `json:"cache_ttl"`
	TopFarms int           `json:"top_farms"`
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		CacheTTL: 5 * time.Minute,
		TopFarms: 10,
	}
}

// Aggregator computes and caches the portfolio summary. It is also a report
// sink: storing a report drops the cached summary.
type Aggregator struct {
	source LatestSource
	cache  *Cache[*PortfolioSummary]
	logger *zap.Logger
	config Config
	now    func() time.Time
}

// NewAggregator creates a new aggregator
func NewAggregator(source LatestSource, logger *zap.Logger, config Config) *Aggregator {
	return &Aggregator{
		source: source,
		cache:  NewCache[*PortfolioSummary](config.CacheTTL, time.Minute),
		logger: logger,
		config: config,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// PortfolioSummary returns the cached summary, computing it on a miss
func (a *Aggregator) PortfolioSummary(ctx context.Context) (*PortfolioSummary, error) {
	return a.cache.GetOrSet(portfolioKey, func() (*PortfolioSummary, error) {
		latest, err := a.source.LatestPerFarm(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load latest reports: %w", err)
		}
		summary := Aggregate(latest, a.config.TopFarms, a.now())
		a.logger.Debug("Computed portfolio summary", zap.Int("farms", summary.Farms))
		return summary, nil
	})
}

// CacheStats returns the summary cache counters
func (a *Aggregator) CacheStats() CacheStats {
	return a.cache.Stats()
}

// Name returns the sink name
func (a *Aggregator) Name() string {
	return "dashboard"
}

// Store invalidates the cached summary
func (a *Aggregator) Store(ctx context.Context, report *calculation.VerificationReport) error {
	a.cache.Delete(portfolioKey)
	return nil
}

// Close stops the cache sweeper
func (a *Aggregator) Close() {
	a.cache.Stop()
}

// Aggregate folds latest report summaries into a portfolio summary. Only
// reports ready for verification contribute credits. Totals are summed as
// decimals so the result does not depend on report order.
func Aggregate(latest []reports.ReportSummary, topN int, computedAt time.Time) *PortfolioSummary {
	summary := &PortfolioSummary{
		Farms:      len(latest),
		ByModel:    make(map[string]ModelSummary),
		TopFarms:   []FarmCredits{},
		ComputedAt: computedAt,
	}

	total, perYear := decimal.Zero, decimal.Zero
	modelTotals := make(map[string]decimal.Decimal)

	for _, r := range latest {
		model := summary.ByModel[r.ModelType]
		model.Farms++

		if r.VerificationStatus != string(calculation.VerificationStatusReadyForVerification) || r.TotalCredits == nil {
			summary.Pending++
			summary.ByModel[r.ModelType] = model
			continue
		}

		credits := decimal.NewFromFloat(*r.TotalCredits)
		summary.ReadyForVerification++
		model.ReadyForVerification++
		modelTotals[r.ModelType] = modelTotals[r.ModelType].Add(credits)
		total = total.Add(credits)
		if r.CreditsPerYear != nil {
			perYear = perYear.Add(decimal.NewFromFloat(*r.CreditsPerYear))
		}
		summary.ByModel[r.ModelType] = model

		summary.TopFarms = append(summary.TopFarms, FarmCredits{
			FarmID:       r.FarmID,
			ModelType:    r.ModelType,
			TotalCredits: *r.TotalCredits,
		})
	}

	summary.TotalCredits = total.InexactFloat64()
	summary.CreditsPerYear = perYear.InexactFloat64()
	for name, modelTotal := range modelTotals {
		model := summary.ByModel[name]
		model.TotalCredits = modelTotal.InexactFloat64()
		model.MeanCredits = modelTotal.Div(decimal.NewFromInt(int64(model.ReadyForVerification))).InexactFloat64()
		summary.ByModel[name] = model
	}

	sort.SliceStable(summary.TopFarms, func(i, j int) bool {
		if summary.TopFarms[i].TotalCredits != summary.TopFarms[j].TotalCredits {
			return summary.TopFarms[i].TotalCredits > summary.TopFarms[j].TotalCredits
		}
		return summary.TopFarms[i].FarmID < summary.TopFarms[j].FarmID
	})
	if topN >= 0 && len(summary.TopFarms) > topN {
		summary.TopFarms = summary.TopFarms[:topN]
	}

	return summary
}
