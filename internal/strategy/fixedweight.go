package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/model"
)

// FixedWeight is a deterministic engine holding a static target book. It
// serves as the wiring demo and as a stand-in where the real signal
// pipeline runs out of process and drops its plan into the report cache.
type FixedWeight struct {
	name    string
	targets map[string]decimal.Decimal
}

// NewFixedWeight creates a fixed-weight engine named name.
func NewFixedWeight(name string, targets map[string]decimal.Decimal) *FixedWeight {
	copied := make(map[string]decimal.Decimal, len(targets))
	for id, q := range targets {
		copied[id] = q
	}
	return &FixedWeight{name: name, targets: copied}
}

func (f *FixedWeight) Name() string { return f.name }

// ComputeTargetPortfolio returns a fresh copy of the static book; callers
// own the returned map.
func (f *FixedWeight) ComputeTargetPortfolio(_ context.Context, _ time.Time) (model.TargetPosition, error) {
	target := make(model.TargetPosition, len(f.targets))
	for id, q := range f.targets {
		target[id] = q
	}
	return target, nil
}
