// Package redis provides a Redis-backed report cache store. It fronts the
// authoritative SQLite store so that repeated same-day runs skip the
// database entirely.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"portfolio-rebalancer/internal/model"
)

// Entries outlive the trading day they belong to, then expire on their own.
const reportTTL = 48 * time.Hour

// Config configures the Redis cache.
type Config struct {
	Addr     string // e.g. "localhost:6379"
	Password string
	DB       int
}

// Cache is a model.ReportCacheStore backed by Redis.
type Cache struct {
	client *goredis.Client
	log    *slog.Logger
}

// Client returns the underlying Redis client for health checks.
func (c *Cache) Client() *goredis.Client { return c.client }

// New connects to Redis and pings the server.
func New(cfg Config, log *slog.Logger) (*Cache, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Info("redis cache connected", "addr", cfg.Addr)
	return &Cache{client: client, log: log}, nil
}

func reportKey(strategyID, day string) string {
	return "report:" + strategyID + ":" + day
}

// GetReport loads a cached portfolio from Redis.
func (c *Cache) GetReport(ctx context.Context, strategyID, day string) (model.TargetPosition, bool, error) {
	payload, err := c.client.Get(ctx, reportKey(strategyID, day)).Result()
	if err == goredis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get report: %w", err)
	}

	var target model.TargetPosition
	if err := json.Unmarshal([]byte(payload), &target); err != nil {
		return nil, false, fmt.Errorf("redis decode report %s/%s: %w", strategyID, day, err)
	}
	return target, true, nil
}

// PutReport stores a portfolio with SETNX semantics: the first write of the
// day wins, later writes are no-ops.
func (c *Cache) PutReport(ctx context.Context, strategyID, day string, target model.TargetPosition) error {
	payload, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("redis encode report %s/%s: %w", strategyID, day, err)
	}
	if err := c.client.SetNX(ctx, reportKey(strategyID, day), payload, reportTTL).Err(); err != nil {
		return fmt.Errorf("redis put report %s/%s: %w", strategyID, day, err)
	}
	return nil
}

// Close releases the client.
func (c *Cache) Close() error {
	return c.client.Close()
}
