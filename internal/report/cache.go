// Package report memoizes strategy output per (strategy, calendar day) so
// that the expensive target-portfolio computation runs at most once per
// trading day, no matter how many times the rebalance job is re-run.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"portfolio-rebalancer/internal/model"
	"portfolio-rebalancer/internal/tradingday"
)

// DailyCache wraps a strategy engine with per-day memoization backed by a
// ReportCacheStore.
type DailyCache struct {
	store model.ReportCacheStore
	log   *slog.Logger
}

// NewDailyCache creates a daily report cache over the given store.
func NewDailyCache(store model.ReportCacheStore, log *slog.Logger) *DailyCache {
	return &DailyCache{store: store, log: log}
}

// GetOrCompute returns the target portfolio for (engine, asOf's calendar
// day). On a cache hit the stored portfolio is returned with fresh=false.
// On a miss the engine is invoked and the result is persisted BEFORE it is
// returned; a persistence failure is returned as an error rather than
// handing the caller an uncached plan, so retries cannot diff against a
// divergent plan.
func (c *DailyCache) GetOrCompute(ctx context.Context, engine model.StrategyEngine, asOf time.Time) (model.TargetPosition, bool, error) {
	day := tradingday.DayKey(asOf)

	cached, ok, err := c.store.GetReport(ctx, engine.Name(), day)
	if err != nil {
		return nil, false, fmt.Errorf("report cache lookup %s/%s: %w", engine.Name(), day, err)
	}
	if ok {
		c.log.Info("report cache hit", "strategy", engine.Name(), "day", day, "stocks", len(cached))
		return cached, false, nil
	}

	c.log.Info("report cache miss, computing target portfolio", "strategy", engine.Name(), "day", day)
	target, err := engine.ComputeTargetPortfolio(ctx, asOf)
	if err != nil {
		return nil, false, fmt.Errorf("compute target portfolio %s/%s: %w", engine.Name(), day, err)
	}

	if err := c.store.PutReport(ctx, engine.Name(), day, target); err != nil {
		return nil, false, fmt.Errorf("persist report %s/%s: %w", engine.Name(), day, err)
	}
	return target, true, nil
}
