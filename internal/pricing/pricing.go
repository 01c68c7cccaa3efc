// Package pricing turns order deltas into priced, lot-correct order
// intents: limit-price selection, extra-bid slippage adjustment,
// price-limit clamping, and round/odd lot decomposition.
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/model"
)

// ExecutionStyle selects how the limit price is derived from the quote.
type ExecutionStyle string

const (
	// StyleMarketAggressive submits at the limit that guarantees queue
	// priority: limit-up for BUY, limit-down for SELL.
	StyleMarketAggressive ExecutionStyle = "MARKET_AGGRESSIVE"

	// StyleMarketPassive is the inverse: limit-down for BUY, limit-up
	// for SELL.
	StyleMarketPassive ExecutionStyle = "MARKET_PASSIVE"

	// StyleLimit prices off the last trade (or bid/ask fallback), with an
	// optional extra-bid adjustment.
	StyleLimit ExecutionStyle = "LIMIT"
)

var (
	// ErrNoQuote means the quote lacks every field needed to price the order.
	ErrNoQuote = errors.New("pricing: no usable quote")

	// ErrExtraBidRange means extraBidPct is outside [-0.10, 0.10].
	ErrExtraBidRange = errors.New("pricing: extra bid pct out of range")

	// ErrStyleConflict means a market style was combined with a non-zero
	// extra bid. The combination is ambiguous, so it is rejected outright
	// instead of picking a precedence.
	ErrStyleConflict = errors.New("pricing: market style conflicts with extra bid")

	maxExtraBid = decimal.RequireFromString("0.1")
	one         = decimal.NewFromInt(1)
)

// PricedOrder is the outcome of pricing one delta.
type PricedOrder struct {
	Price decimal.Decimal // numeric price used for clamping and limit checks
	Mode  model.PriceMode
	Label string // human-readable price for audit
}

// Price computes the limit price to submit for one order.
//
// Base price is the last trade when present, else bid (BUY) or ask (SELL).
// With a non-zero extraBidPct buyers chase price up and sellers chase it
// down by the same magnitude. The result is clamped into the daily
// [limitDown, limitUp] band whenever the band is known.
func Price(action model.Action, quote model.PriceQuote, style ExecutionStyle, extraBidPct decimal.Decimal) (PricedOrder, error) {
	if extraBidPct.Abs().Cmp(maxExtraBid) > 0 {
		return PricedOrder{}, fmt.Errorf("%w: %s", ErrExtraBidRange, extraBidPct)
	}
	if style != StyleLimit && !extraBidPct.IsZero() {
		return PricedOrder{}, fmt.Errorf("%w: style=%s extra_bid=%s", ErrStyleConflict, style, extraBidPct)
	}

	switch style {
	case StyleMarketAggressive, StyleMarketPassive:
		return marketPrice(action, quote, style)
	case StyleLimit:
		return limitPrice(action, quote, extraBidPct)
	default:
		return PricedOrder{}, fmt.Errorf("pricing: unknown execution style %q", style)
	}
}

func marketPrice(action model.Action, quote model.PriceQuote, style ExecutionStyle) (PricedOrder, error) {
	if !quote.HasBand() {
		return PricedOrder{}, fmt.Errorf("%w: %s has no price-limit band", ErrNoQuote, quote.StockID)
	}
	atUp := action == model.ActionBuy
	if style == StyleMarketPassive {
		atUp = !atUp
	}
	if atUp {
		return PricedOrder{Price: quote.LimitUp.Decimal, Mode: model.PriceModeMarketHigh, Label: "MARKET_HIGH"}, nil
	}
	return PricedOrder{Price: quote.LimitDown.Decimal, Mode: model.PriceModeMarketLow, Label: "MARKET_LOW"}, nil
}

func limitPrice(action model.Action, quote model.PriceQuote, extraBidPct decimal.Decimal) (PricedOrder, error) {
	base, err := basePrice(action, quote)
	if err != nil {
		return PricedOrder{}, err
	}

	price := base
	if !extraBidPct.IsZero() {
		if action == model.ActionBuy {
			price = base.Mul(one.Add(extraBidPct))
		} else {
			price = base.Mul(one.Sub(extraBidPct))
		}
	}
	price = clamp(price, quote)

	return PricedOrder{Price: price, Mode: model.PriceModeFixed, Label: price.String()}, nil
}

func basePrice(action model.Action, quote model.PriceQuote) (decimal.Decimal, error) {
	if quote.Last.Valid {
		return quote.Last.Decimal, nil
	}
	if action == model.ActionBuy && quote.Bid.Valid {
		return quote.Bid.Decimal, nil
	}
	if action == model.ActionSell && quote.Ask.Valid {
		return quote.Ask.Decimal, nil
	}
	return decimal.Decimal{}, fmt.Errorf("%w: %s has no last/bid/ask", ErrNoQuote, quote.StockID)
}

// clamp keeps price inside the daily band; partial bands clamp one side only.
func clamp(price decimal.Decimal, quote model.PriceQuote) decimal.Decimal {
	if quote.LimitUp.Valid && price.Cmp(quote.LimitUp.Decimal) > 0 {
		price = quote.LimitUp.Decimal
	}
	if quote.LimitDown.Valid && price.Cmp(quote.LimitDown.Decimal) < 0 {
		price = quote.LimitDown.Decimal
	}
	return price
}
