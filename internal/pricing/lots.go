package pricing

import (
	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/model"
)

// SplitLots decomposes an unsigned quantity (in round-lot units) into whole
// round lots and odd-lot shares: roundLots = floor(|q|), oddLotShares =
// round(lotSize × frac(|q|)). The buy/sell sign is carried by the caller.
//
// An odd-lot part that rounds up to a full lot is folded into roundLots, so
// oddLotShares is always in [0, lotSize).
func SplitLots(quantity decimal.Decimal, lotSize int) (roundLots, oddLotShares int64) {
	abs := quantity.Abs()
	whole := abs.Floor()
	roundLots = whole.IntPart()

	frac := abs.Sub(whole)
	oddLotShares = frac.Mul(decimal.NewFromInt(int64(lotSize))).Round(0).IntPart()
	if oddLotShares >= int64(lotSize) {
		roundLots++
		oddLotShares -= int64(lotSize)
	}
	return roundLots, oddLotShares
}

// BuildIntents converts one priced delta into one or two order intents with
// share quantities. Venues with a separate odd-lot book get a round-lot
// order plus an odd-lot order; otherwise a single combined order carries the
// full share magnitude. Returns nil when the delta rounds to zero shares.
func BuildIntents(delta model.OrderDelta, priced PricedOrder, lotSize int, oddLotBook bool, condition model.OrderCondition, extraBidPct decimal.Decimal) []model.OrderIntent {
	action := model.ActionBuy
	if delta.Qty.IsNegative() {
		action = model.ActionSell
	}

	roundLots, oddShares := SplitLots(delta.Qty, lotSize)
	base := model.OrderIntent{
		StockID:     delta.StockID,
		Action:      action,
		Price:       priced.Price,
		PriceMode:   priced.Mode,
		PriceLabel:  priced.Label,
		Condition:   condition,
		ExtraBidPct: extraBidPct,
	}

	if !oddLotBook {
		total := roundLots*int64(lotSize) + oddShares
		if total == 0 {
			return nil
		}
		intent := base
		intent.Qty = decimal.NewFromInt(total)
		return []model.OrderIntent{intent}
	}

	var intents []model.OrderIntent
	if roundLots > 0 {
		intent := base
		intent.Qty = decimal.NewFromInt(roundLots * int64(lotSize))
		intents = append(intents, intent)
	}
	if oddShares > 0 {
		intent := base
		intent.Qty = decimal.NewFromInt(oddShares)
		intent.OddLot = true
		intents = append(intents, intent)
	}
	return intents
}
