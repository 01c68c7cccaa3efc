package model

import "github.com/shopspring/decimal"

// Action represents the side of an order.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
)

// OrderCondition is the broker-side trade condition for an order.
type OrderCondition string

const (
	ConditionCash          OrderCondition = "CASH"
	ConditionMarginTrading OrderCondition = "MARGIN_TRADING"
	ConditionShortSelling  OrderCondition = "SHORT_SELLING"
	ConditionDayTradeLong  OrderCondition = "DAY_TRADING_LONG"
	ConditionDayTradeShort OrderCondition = "DAY_TRADING_SHORT"
)

// PriceMode selects how the submitted price is expressed.
// Exactly one mode is active per order.
type PriceMode string

const (
	PriceModeFixed      PriceMode = "FIXED"
	PriceModeMarketHigh PriceMode = "MARKET_HIGH"
	PriceModeMarketLow  PriceMode = "MARKET_LOW"
)

// OrderIntent is a fully constructed broker order, ready for submission.
// Qty is in shares, already lot-split; OddLot marks orders routed to the
// odd-lot book.
type OrderIntent struct {
	StockID     string          `json:"stock_id"`
	Action      Action          `json:"action"`
	Qty         decimal.Decimal `json:"qty"` // shares, > 0
	Price       decimal.Decimal `json:"price"`
	PriceMode   PriceMode       `json:"price_mode"`
	PriceLabel  string          `json:"price_label"` // human-readable, for audit
	OddLot      bool            `json:"odd_lot"`
	Condition   OrderCondition  `json:"condition"`
	ExtraBidPct decimal.Decimal `json:"extra_bid_pct"`
}

// OrderResult is the broker's answer to a submission.
type OrderResult struct {
	Accepted      bool   `json:"accepted"`
	BrokerOrderID string `json:"broker_order_id"`
	Message       string `json:"message"`
}
