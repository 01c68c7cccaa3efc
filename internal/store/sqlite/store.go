// Package sqlite is the persistent store for accounts, daily report cache
// entries, and the order audit log.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/mattn/go-sqlite3"

	"portfolio-rebalancer/internal/model"
)

// Config configures the SQLite store.
type Config struct {
	DBPath string // path to the database file, e.g. "data/rebalancer.db"
}

// Store wraps a single SQLite database holding all durable state.
type Store struct {
	db  *sql.DB
	log *slog.Logger
}

// DB returns the underlying sql.DB for health checks.
func (s *Store) DB() *sql.DB { return s.db }

// New opens the database in WAL mode and creates the schema if needed.
func New(cfg Config, log *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer: concurrent runs are independent processes, each run
	// holds one connection at a time.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Info("sqlite store opened", "path", cfg.DBPath)
	return &Store{db: db, log: log}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS accounts (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			broker     TEXT NOT NULL,
			owner      TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS report_cache (
			strategy_id TEXT NOT NULL,
			day         TEXT NOT NULL,
			payload     TEXT NOT NULL,
			created_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (strategy_id, day)
		);

		CREATE TABLE IF NOT EXISTS order_audit (
			id            INTEGER PRIMARY KEY AUTOINCREMENT,
			account_id    TEXT NOT NULL,
			order_ts      INTEGER NOT NULL,
			day           TEXT NOT NULL,
			action        TEXT NOT NULL,
			stock_id      TEXT NOT NULL,
			qty           TEXT NOT NULL,
			price         TEXT NOT NULL,
			price_label   TEXT NOT NULL,
			extra_bid_pct TEXT NOT NULL,
			condition     TEXT NOT NULL,
			odd_lot       INTEGER NOT NULL DEFAULT 0,
			created_at    DATETIME DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_order_audit_account_ts ON order_audit(account_id, order_ts);
		CREATE INDEX IF NOT EXISTS idx_order_audit_account_day ON order_audit(account_id, day);
	`)
	return err
}

// UpsertAccount inserts or updates an account row.
func (s *Store) UpsertAccount(ctx context.Context, a model.Account) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, name, broker, owner) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, broker = excluded.broker, owner = excluded.owner
	`, a.ID, a.Name, a.Broker, a.Owner)
	if err != nil {
		return fmt.Errorf("sqlite upsert account %s: %w", a.ID, err)
	}
	return nil
}

// GetAccount loads one account. Returns sql.ErrNoRows when absent.
func (s *Store) GetAccount(ctx context.Context, id string) (model.Account, error) {
	var a model.Account
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, broker, owner FROM accounts WHERE id = ?`, id,
	).Scan(&a.ID, &a.Name, &a.Broker, &a.Owner)
	if err != nil {
		return model.Account{}, fmt.Errorf("sqlite get account %s: %w", id, err)
	}
	return a, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
