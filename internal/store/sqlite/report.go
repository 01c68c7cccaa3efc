package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"portfolio-rebalancer/internal/model"
)

// GetReport loads the cached target portfolio for (strategyID, day).
func (s *Store) GetReport(ctx context.Context, strategyID, day string) (model.TargetPosition, bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM report_cache WHERE strategy_id = ? AND day = ?`,
		strategyID, day,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("sqlite get report: %w", err)
	}

	var target model.TargetPosition
	if err := json.Unmarshal([]byte(payload), &target); err != nil {
		return nil, false, fmt.Errorf("sqlite decode report %s/%s: %w", strategyID, day, err)
	}
	return target, true, nil
}

// PutReport stores the target portfolio for (strategyID, day). An existing
// same-day entry is left untouched: the first computation of the day wins.
func (s *Store) PutReport(ctx context.Context, strategyID, day string, target model.TargetPosition) error {
	payload, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("sqlite encode report %s/%s: %w", strategyID, day, err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO report_cache (strategy_id, day, payload) VALUES (?, ?, ?)
		ON CONFLICT(strategy_id, day) DO NOTHING
	`, strategyID, day, string(payload))
	if err != nil {
		return fmt.Errorf("sqlite put report %s/%s: %w", strategyID, day, err)
	}
	return nil
}
