package model

import "github.com/shopspring/decimal"

// PriceQuote is a snapshot of market data for one stock. Any field may be
// unavailable (Valid == false); callers must handle partial quotes.
// Invariant when all present: LimitDown <= Last <= LimitUp.
type PriceQuote struct {
	StockID   string              `json:"stock_id"`
	Last      decimal.NullDecimal `json:"last"`
	Bid       decimal.NullDecimal `json:"bid"`
	Ask       decimal.NullDecimal `json:"ask"`
	LimitUp   decimal.NullDecimal `json:"limit_up"`
	LimitDown decimal.NullDecimal `json:"limit_down"`
}

// HasBand reports whether both daily price limits are known.
func (q PriceQuote) HasBand() bool {
	return q.LimitUp.Valid && q.LimitDown.Valid
}

// PriceLimit is the daily price-limit band for one stock.
type PriceLimit struct {
	Up   decimal.Decimal `json:"up"`
	Down decimal.Decimal `json:"down"`
}
