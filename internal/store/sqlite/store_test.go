package sqlite

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portfolio-rebalancer/internal/model"
	"portfolio-rebalancer/internal/tradingday"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := New(Config{DBPath: path}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func intent(stock string, action model.Action, qty, price string) model.OrderIntent {
	return model.OrderIntent{
		StockID:     stock,
		Action:      action,
		Qty:         d(qty),
		Price:       d(price),
		PriceMode:   model.PriceModeFixed,
		PriceLabel:  price,
		Condition:   model.ConditionCash,
		ExtraBidPct: decimal.Zero,
	}
}

func TestAccountRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	acct := model.Account{ID: "acc-1", Name: "main", Broker: "sinotrade", Owner: "ops"}
	require.NoError(t, s.UpsertAccount(ctx, acct))

	got, err := s.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, acct, got)

	// Upsert overwrites mutable fields.
	acct.Owner = "ops2"
	require.NoError(t, s.UpsertAccount(ctx, acct))
	got, err = s.GetAccount(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, "ops2", got.Owner)
}

func TestReportCacheRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	target := model.TargetPosition{"2330": d("2.35"), "0050": d("-1")}
	require.NoError(t, s.PutReport(ctx, "S1", "2025-01-10", target))

	got, ok, err := s.GetReport(ctx, "S1", "2025-01-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Quantity("2330").Equal(d("2.35")))
	assert.True(t, got.Quantity("0050").Equal(d("-1")))

	_, ok, err = s.GetReport(ctx, "S1", "2025-01-11")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReportCacheFirstWriteWins(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.PutReport(ctx, "S1", "2025-01-10", model.TargetPosition{"2330": d("1")}))
	require.NoError(t, s.PutReport(ctx, "S1", "2025-01-10", model.TargetPosition{"2330": d("9")}))

	got, ok, err := s.GetReport(ctx, "S1", "2025-01-10")
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.Quantity("2330").Equal(d("1")), "same-day entry must never be overwritten")
}

func TestAppendOrdersAndQuery(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2025, 1, 10, 9, 5, 0, 0, tradingday.TST)
	intents := []model.OrderIntent{
		intent("1101", model.ActionBuy, "2000", "35.5"),
		intent("2330", model.ActionSell, "350", "590"),
	}
	require.NoError(t, s.AppendOrders(ctx, "acc-1", ts, intents))

	records, err := s.OrdersOn(ctx, "acc-1", "2025-01-10")
	require.NoError(t, err)
	require.Len(t, records, 2)

	// Insertion order preserved.
	assert.Equal(t, "1101", records[0].StockID)
	assert.Equal(t, model.ActionBuy, records[0].Action)
	assert.True(t, records[0].Qty.Equal(d("2000")))
	assert.True(t, records[1].Price.Equal(d("590")))
	assert.Equal(t, ts.Unix(), records[0].OrderTS.Unix())

	// Other days and accounts stay empty.
	empty, err := s.OrdersOn(ctx, "acc-1", "2025-01-11")
	require.NoError(t, err)
	assert.Empty(t, empty)
	empty, err = s.OrdersOn(ctx, "acc-2", "2025-01-10")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAppendOrdersAtomicity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	// Simulate a mid-batch failure with a trigger on the third row.
	_, err := s.DB().Exec(`
		CREATE TRIGGER fail_boom BEFORE INSERT ON order_audit
		WHEN NEW.stock_id = 'BOOM'
		BEGIN SELECT RAISE(ABORT, 'boom'); END
	`)
	require.NoError(t, err)

	ts := time.Date(2025, 1, 10, 9, 5, 0, 0, tradingday.TST)
	err = s.AppendOrders(ctx, "acc-1", ts, []model.OrderIntent{
		intent("1101", model.ActionBuy, "1000", "35.5"),
		intent("2330", model.ActionBuy, "1000", "590"),
		intent("BOOM", model.ActionBuy, "1000", "1"),
	})
	require.Error(t, err)

	records, qerr := s.OrdersOn(ctx, "acc-1", "2025-01-10")
	require.NoError(t, qerr)
	assert.Empty(t, records, "no partial subset of an interrupted batch may be visible")
}

func TestDistinctDateParts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, day := range []time.Time{
		time.Date(2024, 12, 30, 10, 0, 0, 0, tradingday.TST),
		time.Date(2025, 1, 10, 10, 0, 0, 0, tradingday.TST),
		time.Date(2025, 1, 13, 10, 0, 0, 0, tradingday.TST),
		time.Date(2025, 2, 3, 10, 0, 0, 0, tradingday.TST),
	} {
		require.NoError(t, s.AppendOrders(ctx, "acc-1", day, []model.OrderIntent{
			intent("2330", model.ActionBuy, "1000", "590"),
		}))
	}

	years, err := s.DistinctYears(ctx, "acc-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024", "2025"}, years)

	months, err := s.DistinctMonths(ctx, "acc-1", "2025")
	require.NoError(t, err)
	assert.Equal(t, []string{"01", "02"}, months)

	days, err := s.DistinctDays(ctx, "acc-1", "2025-01")
	require.NoError(t, err)
	assert.Equal(t, []string{"10", "13"}, days)
}
