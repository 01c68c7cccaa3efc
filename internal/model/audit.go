package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account identifies one brokerage account under management.
type Account struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Broker string `json:"broker"`
	Owner  string `json:"owner"`
}

// OrderAuditRecord is one durable row written per constructed order.
// Append-only: never mutated or deleted once written.
type OrderAuditRecord struct {
	ID          int64           `json:"id"`
	AccountID   string          `json:"account_id"`
	OrderTS     time.Time       `json:"order_ts"`
	Action      Action          `json:"action"`
	StockID     string          `json:"stock_id"`
	Qty         decimal.Decimal `json:"qty"` // shares
	Price       decimal.Decimal `json:"price"`
	ExtraBidPct decimal.Decimal `json:"extra_bid_pct"`
	Condition   OrderCondition  `json:"condition"`
	CreatedAt   time.Time       `json:"created_at"` // server-assigned
}
