package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-rebalancer/internal/model"
)

func TestSplitLots(t *testing.T) {
	cases := []struct {
		qty       string
		lotSize   int
		roundLots int64
		oddShares int64
	}{
		{"2.35", 1000, 2, 350},
		{"0", 1000, 0, 0},
		{"3", 1000, 3, 0},
		{"0.5", 1000, 0, 500},
		{"-2.35", 1000, 2, 350}, // sign carried by caller
		{"1.2505", 1000, 1, 251}, // rounds half up
		{"0.9999999", 1000, 1, 0}, // odd part rounds to a full lot
		{"2.35", 100, 2, 35},
	}
	for _, c := range cases {
		lots, odd := SplitLots(d(c.qty), c.lotSize)
		assert.Equal(t, c.roundLots, lots, "qty=%s round lots", c.qty)
		assert.Equal(t, c.oddShares, odd, "qty=%s odd shares", c.qty)
	}
}

func TestSplitLotsReconstruction(t *testing.T) {
	// roundLots + oddShares/lotSize must be within 1/lotSize of |q|.
	lotSize := 1000
	tolerance := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(lotSize)))
	for _, qty := range []string{"0", "0.001", "0.35", "1", "2.35", "7.9996", "12.3456"} {
		q := d(qty)
		lots, odd := SplitLots(q, lotSize)
		rebuilt := decimal.NewFromInt(lots).Add(decimal.NewFromInt(odd).Div(decimal.NewFromInt(int64(lotSize))))
		diff := rebuilt.Sub(q.Abs()).Abs()
		assert.True(t, diff.Cmp(tolerance) <= 0, "qty=%s rebuilt=%s diff=%s", qty, rebuilt, diff)
	}
}

func TestBuildIntentsSplitsAcrossBooks(t *testing.T) {
	delta := model.OrderDelta{StockID: "2330", Qty: d("2.35")}
	priced := PricedOrder{Price: d("590"), Mode: model.PriceModeFixed, Label: "590"}

	intents := BuildIntents(delta, priced, 1000, true, model.ConditionCash, decimal.Zero)
	require.Len(t, intents, 2)

	assert.Equal(t, model.ActionBuy, intents[0].Action)
	assert.True(t, intents[0].Qty.Equal(d("2000")))
	assert.False(t, intents[0].OddLot)

	assert.True(t, intents[1].Qty.Equal(d("350")))
	assert.True(t, intents[1].OddLot)
	assert.Equal(t, "590", intents[1].PriceLabel)
}

func TestBuildIntentsSingleBookCombines(t *testing.T) {
	delta := model.OrderDelta{StockID: "2330", Qty: d("-2.35")}
	priced := PricedOrder{Price: d("590"), Mode: model.PriceModeFixed, Label: "590"}

	intents := BuildIntents(delta, priced, 1000, false, model.ConditionCash, decimal.Zero)
	require.Len(t, intents, 1)
	assert.Equal(t, model.ActionSell, intents[0].Action)
	assert.True(t, intents[0].Qty.Equal(d("2350")))
	assert.False(t, intents[0].OddLot)
}

func TestBuildIntentsDropsZero(t *testing.T) {
	delta := model.OrderDelta{StockID: "2330", Qty: d("0.0001")}
	priced := PricedOrder{Price: d("590"), Mode: model.PriceModeFixed, Label: "590"}

	assert.Empty(t, BuildIntents(delta, priced, 1000, true, model.ConditionCash, decimal.Zero))
	assert.Empty(t, BuildIntents(delta, priced, 1000, false, model.ConditionCash, decimal.Zero))
}

func TestBuildIntentsOddOnly(t *testing.T) {
	delta := model.OrderDelta{StockID: "0050", Qty: d("0.4")}
	priced := PricedOrder{Price: d("150"), Mode: model.PriceModeFixed, Label: "150"}

	intents := BuildIntents(delta, priced, 1000, true, model.ConditionCash, decimal.Zero)
	require.Len(t, intents, 1)
	assert.True(t, intents[0].OddLot)
	assert.True(t, intents[0].Qty.Equal(d("400")))
}
