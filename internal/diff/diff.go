// Package diff computes the minimal set of quantity deltas needed to
// converge current broker holdings toward a target portfolio.
package diff

import (
	"sort"

	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/model"
)

// Engine diffs positions. Pure: no side effects, inputs never mutated.
type Engine struct {
	epsilon decimal.Decimal // |delta| below this is a no-op
}

// New creates a diff engine. A negative epsilon is treated as zero.
func New(epsilon decimal.Decimal) *Engine {
	if epsilon.IsNegative() {
		epsilon = decimal.Zero
	}
	return &Engine{epsilon: epsilon}
}

// Diff returns one delta per stock in target ∪ current where the holding
// must change: delta = target qty (default 0) − current qty (default 0).
//
// A stock held in current but absent from target yields an explicit full
// liquidation delta, never a silent skip. Deltas with |delta| < epsilon are
// dropped. Output is sorted ascending by stock id so that downstream
// submission and audit order is reproducible.
func (e *Engine) Diff(current model.CurrentPosition, target model.TargetPosition) []model.OrderDelta {
	ids := make(map[string]struct{}, len(current)+len(target))
	for id := range current {
		ids[id] = struct{}{}
	}
	for id := range target {
		ids[id] = struct{}{}
	}

	deltas := make([]model.OrderDelta, 0, len(ids))
	for id := range ids {
		d := target.Quantity(id).Sub(current.Quantity(id))
		if d.Abs().Cmp(e.epsilon) < 0 {
			continue
		}
		if d.IsZero() {
			continue
		}
		deltas = append(deltas, model.OrderDelta{StockID: id, Qty: d})
	}

	sort.Slice(deltas, func(i, j int) bool { return deltas[i].StockID < deltas[j].StockID })
	return deltas
}
