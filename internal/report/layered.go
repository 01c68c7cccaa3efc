package report

import (
	"context"
	"log/slog"

	"portfolio-rebalancer/internal/model"
)

// LayeredStore is a write-through pair of cache stores: a fast layer
// (Redis) in front of a durable one (SQLite). The durable layer is
// authoritative; fast-layer failures are logged and tolerated, never fatal.
type LayeredStore struct {
	fast    model.ReportCacheStore
	durable model.ReportCacheStore
	log     *slog.Logger
}

// NewLayeredStore wraps durable with fast. fast may be nil, in which case
// all calls pass straight through to durable.
func NewLayeredStore(fast, durable model.ReportCacheStore, log *slog.Logger) *LayeredStore {
	return &LayeredStore{fast: fast, durable: durable, log: log}
}

// GetReport tries the fast layer first and falls back to the durable store.
// A durable hit is backfilled into the fast layer best-effort.
func (l *LayeredStore) GetReport(ctx context.Context, strategyID, day string) (model.TargetPosition, bool, error) {
	if l.fast != nil {
		target, ok, err := l.fast.GetReport(ctx, strategyID, day)
		if err != nil {
			l.log.Warn("fast report cache read failed, falling back", "strategy", strategyID, "day", day, "err", err)
		} else if ok {
			return target, true, nil
		}
	}

	target, ok, err := l.durable.GetReport(ctx, strategyID, day)
	if err != nil || !ok {
		return target, ok, err
	}

	if l.fast != nil {
		if err := l.fast.PutReport(ctx, strategyID, day, target); err != nil {
			l.log.Warn("fast report cache backfill failed", "strategy", strategyID, "day", day, "err", err)
		}
	}
	return target, true, nil
}

// PutReport writes to the durable store first; a durable failure is the
// caller's failure. The fast layer is updated best-effort afterwards.
func (l *LayeredStore) PutReport(ctx context.Context, strategyID, day string, target model.TargetPosition) error {
	if err := l.durable.PutReport(ctx, strategyID, day, target); err != nil {
		return err
	}
	if l.fast != nil {
		if err := l.fast.PutReport(ctx, strategyID, day, target); err != nil {
			l.log.Warn("fast report cache write failed", "strategy", strategyID, "day", day, "err", err)
		}
	}
	return nil
}
