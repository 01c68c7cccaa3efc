package model

import "github.com/shopspring/decimal"

// TargetPosition maps stock id to desired quantity in round-lot units.
// The fractional part denotes odd lots. Immutable after creation.
type TargetPosition map[string]decimal.Decimal

// CurrentPosition maps stock id to the quantity currently held at the
// broker, in round-lot units. Read-only snapshot taken at run time.
type CurrentPosition map[string]decimal.Decimal

// Quantity returns the desired quantity for id, zero if absent.
func (t TargetPosition) Quantity(id string) decimal.Decimal {
	return t[id]
}

// Quantity returns the held quantity for id, zero if absent.
func (c CurrentPosition) Quantity(id string) decimal.Decimal {
	return c[id]
}

// OrderDelta is one quantity adjustment needed to converge a holding
// toward the target. Positive = buy, negative = sell.
type OrderDelta struct {
	StockID string          `json:"stock_id"`
	Qty     decimal.Decimal `json:"qty"` // round-lot units
}
