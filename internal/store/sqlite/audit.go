package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"portfolio-rebalancer/internal/model"
	"portfolio-rebalancer/internal/tradingday"
)

// AppendOrders writes one audit row per intent in a single transaction.
// Partial writes are not acceptable: either the whole submission batch is
// recorded or none of it is.
func (s *Store) AppendOrders(ctx context.Context, accountID string, orderTS time.Time, intents []model.OrderIntent) error {
	if len(intents) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite audit begin: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_audit (account_id, order_ts, day, action, stock_id, qty, price, price_label, extra_bid_pct, condition, odd_lot)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return fmt.Errorf("sqlite audit prepare: %w", err)
	}
	defer stmt.Close()

	day := tradingday.DayKey(orderTS)
	for _, in := range intents {
		oddLot := 0
		if in.OddLot {
			oddLot = 1
		}
		_, err := stmt.ExecContext(ctx,
			accountID, orderTS.Unix(), day,
			string(in.Action), in.StockID,
			in.Qty.String(), in.Price.String(), in.PriceLabel,
			in.ExtraBidPct.String(), string(in.Condition), oddLot,
		)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("sqlite audit insert %s: %w", in.StockID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite audit commit: %w", err)
	}
	s.log.Info("audit batch committed", "account", accountID, "orders", len(intents))
	return nil
}

// OrdersOn returns the audit records for an account on one calendar day
// ("YYYY-MM-DD"), in insertion order.
func (s *Store) OrdersOn(ctx context.Context, accountID, day string) ([]model.OrderAuditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, account_id, order_ts, action, stock_id, qty, price, extra_bid_pct, condition, created_at
		FROM order_audit
		WHERE account_id = ? AND day = ?
		ORDER BY id ASC
	`, accountID, day)
	if err != nil {
		return nil, fmt.Errorf("sqlite audit query: %w", err)
	}
	defer rows.Close()

	var records []model.OrderAuditRecord
	for rows.Next() {
		var (
			r                 model.OrderAuditRecord
			tsUnix            int64
			qty, price, pct   string
			action, cond, cAt string
		)
		if err := rows.Scan(&r.ID, &r.AccountID, &tsUnix, &action, &r.StockID, &qty, &price, &pct, &cond, &cAt); err != nil {
			return nil, fmt.Errorf("sqlite audit scan: %w", err)
		}
		r.OrderTS = time.Unix(tsUnix, 0).In(tradingday.TST)
		r.Action = model.Action(action)
		r.Condition = model.OrderCondition(cond)
		if r.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("sqlite audit qty %q: %w", qty, err)
		}
		if r.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("sqlite audit price %q: %w", price, err)
		}
		if r.ExtraBidPct, err = decimal.NewFromString(pct); err != nil {
			return nil, fmt.Errorf("sqlite audit extra_bid_pct %q: %w", pct, err)
		}
		if t, perr := time.Parse("2006-01-02 15:04:05", cAt); perr == nil {
			r.CreatedAt = t
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// DistinctYears lists the years with audit records for an account,
// ascending. Used by external reporting to drive date pickers.
func (s *Store) DistinctYears(ctx context.Context, accountID string) ([]string, error) {
	return s.distinctDayPrefix(ctx, accountID, 4, "")
}

// DistinctMonths lists the months ("MM") with audit records for an account
// in a year.
func (s *Store) DistinctMonths(ctx context.Context, accountID, year string) ([]string, error) {
	return s.distinctDayPrefix(ctx, accountID, 7, year+"-")
}

// DistinctDays lists the days ("DD") with audit records for an account in a
// year-month ("YYYY-MM").
func (s *Store) DistinctDays(ctx context.Context, accountID, yearMonth string) ([]string, error) {
	return s.distinctDayPrefix(ctx, accountID, 10, yearMonth+"-")
}

func (s *Store) distinctDayPrefix(ctx context.Context, accountID string, width int, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT DISTINCT substr(day, 1, ?) FROM order_audit
		WHERE account_id = ? AND day LIKE ?
		ORDER BY 1 ASC
	`, width, accountID, prefix+"%")
	if err != nil {
		return nil, fmt.Errorf("sqlite audit distinct: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("sqlite audit distinct scan: %w", err)
		}
		// Trim back to the last component (month or day) for callers.
		if idx := len(prefix); idx > 0 && len(v) > idx {
			v = v[idx:]
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
