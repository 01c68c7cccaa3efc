package model

import (
	"context"
	"time"
)

// ── Port Interfaces ──
// These interfaces decouple the rebalance pipeline from concrete
// collaborators (broker APIs, strategy engines, Redis, SQLite). Each
// implementation satisfies one or more of these interfaces.

// BrokerGateway is the surface of a brokerage account used by one run.
type BrokerGateway interface {
	// GetPosition fetches the live holdings snapshot.
	GetPosition(ctx context.Context) (CurrentPosition, error)

	// GetQuote fetches quotes for the given stock ids. Missing stocks are
	// simply absent from the returned map.
	GetQuote(ctx context.Context, stockIDs []string) (map[string]PriceQuote, error)

	// GetPriceLimits fetches the daily price-limit bands for the given ids.
	GetPriceLimits(ctx context.Context, stockIDs []string) (map[string]PriceLimit, error)

	// SubmitOrder places one order. A broker-side rejection is reported via
	// OrderResult.Accepted == false with a nil error; err is reserved for
	// transport failures.
	SubmitOrder(ctx context.Context, intent OrderIntent) (OrderResult, error)

	// CancelAllOpenOrders cancels every open order on the account. This is
	// the only supported abort mechanism; never invoked mid-run.
	CancelAllOpenOrders(ctx context.Context) error
}

// StrategyEngine computes the desired holdings for a date. May be slow
// (minutes); callers must route through the daily report cache so it runs
// at most once per calendar day per strategy.
type StrategyEngine interface {
	// Name returns the unique strategy identifier.
	Name() string

	// ComputeTargetPortfolio produces the target holdings as of a date.
	ComputeTargetPortfolio(ctx context.Context, asOf time.Time) (TargetPosition, error)
}

// ReportCacheStore persists one target portfolio per (strategy, calendar
// day). Day keys are "YYYY-MM-DD" in the exchange time zone.
type ReportCacheStore interface {
	// GetReport loads the cached portfolio for (strategyID, day).
	// Returns ok == false when no entry exists.
	GetReport(ctx context.Context, strategyID, day string) (TargetPosition, bool, error)

	// PutReport stores the portfolio for (strategyID, day). Implementations
	// must not overwrite an existing same-day entry.
	PutReport(ctx context.Context, strategyID, day string, target TargetPosition) error
}

// OrderAuditor appends durable audit records for submitted orders.
type OrderAuditor interface {
	// AppendOrders writes one record per intent in a single atomic batch:
	// either every record for the submission event is recorded or none is.
	AppendOrders(ctx context.Context, accountID string, orderTS time.Time, intents []OrderIntent) error
}
