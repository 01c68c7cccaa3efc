// Package portfolio values holdings against market quotes and summarizes
// planned rebalance trades for operator-facing output.
package portfolio

import (
	"sort"

	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/model"
)

// Line is one valued holding. Quantity is in round-lot units; MarketValue
// is Quantity * lotSize * price.
type Line struct {
	StockID     string
	Quantity    decimal.Decimal
	Price       decimal.Decimal
	MarketValue decimal.Decimal
	Weight      decimal.Decimal // fraction of Total, 0 when Total is 0
}

// Valuation is a priced snapshot of a position. Holdings without a usable
// quote are listed in Unpriced and excluded from Total.
type Valuation struct {
	Lines    []Line
	Total    decimal.Decimal
	Unpriced []string
}

// Value prices each holding at the quote's last price, falling back to the
// bid. Lines are sorted by stock id.
func Value(position model.CurrentPosition, quotes map[string]model.PriceQuote, lotSize int) Valuation {
	v := Valuation{Total: decimal.Zero}
	lot := decimal.NewFromInt(int64(lotSize))

	for id, qty := range position {
		price, ok := markPrice(quotes[id])
		if !ok {
			v.Unpriced = append(v.Unpriced, id)
			continue
		}
		mv := qty.Mul(lot).Mul(price)
		v.Lines = append(v.Lines, Line{StockID: id, Quantity: qty, Price: price, MarketValue: mv})
		v.Total = v.Total.Add(mv)
	}

	sort.Slice(v.Lines, func(i, j int) bool { return v.Lines[i].StockID < v.Lines[j].StockID })
	sort.Strings(v.Unpriced)

	if v.Total.IsPositive() {
		for i := range v.Lines {
			v.Lines[i].Weight = v.Lines[i].MarketValue.Div(v.Total)
		}
	}
	return v
}

func markPrice(q model.PriceQuote) (decimal.Decimal, bool) {
	if q.Last.Valid && q.Last.Decimal.IsPositive() {
		return q.Last.Decimal, true
	}
	if q.Bid.Valid && q.Bid.Decimal.IsPositive() {
		return q.Bid.Decimal, true
	}
	return decimal.Decimal{}, false
}

// TradeSummary aggregates a planned order batch. Notionals use each
// intent's submission price; market-priced intents contribute zero since
// their fill price is unknown until execution.
type TradeSummary struct {
	Orders       int
	BuyNotional  decimal.Decimal
	SellNotional decimal.Decimal
}

// Turnover is the total notional crossing the market.
func (s TradeSummary) Turnover() decimal.Decimal {
	return s.BuyNotional.Add(s.SellNotional)
}

// Summarize totals a batch of order intents.
func Summarize(intents []model.OrderIntent) TradeSummary {
	s := TradeSummary{
		Orders:       len(intents),
		BuyNotional:  decimal.Zero,
		SellNotional: decimal.Zero,
	}
	for _, in := range intents {
		if in.PriceMode != model.PriceModeFixed {
			continue
		}
		notional := in.Qty.Mul(in.Price)
		if in.Action == model.ActionBuy {
			s.BuyNotional = s.BuyNotional.Add(notional)
		} else {
			s.SellNotional = s.SellNotional.Add(notional)
		}
	}
	return s
}
