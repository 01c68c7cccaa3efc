// Package metrics exposes Prometheus metrics and a /metrics + /healthz
// HTTP server for the rebalance engine.
package metrics

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the rebalance engine.
type Metrics struct {
	RunsTotal       *prometheus.CounterVec // labels: outcome=done|failed|view_only
	RunDuration     prometheus.Histogram
	PlanCacheHits   prometheus.Counter
	PlanCacheMisses prometheus.Counter

	OrdersSubmitted prometheus.Counter
	OrdersRejected  prometheus.Counter
	OrdersSkipped   *prometheus.CounterVec // labels: reason=no_quote|rejected
	DeltasTotal     prometheus.Counter

	BrokerCallDur  *prometheus.HistogramVec // labels: call
	AuditCommitDur prometheus.Histogram
}

// New registers and returns all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_runs_total",
			Help: "Total rebalance runs by outcome",
		}, []string{"outcome"}),
		RunDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rebalancer_run_duration_seconds",
			Help:    "End-to-end rebalance run duration",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		PlanCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_plan_cache_hits_total",
			Help: "Daily report cache hits",
		}),
		PlanCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_plan_cache_misses_total",
			Help: "Daily report cache misses (strategy engine invocations)",
		}),
		OrdersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_orders_submitted_total",
			Help: "Orders accepted by the broker",
		}),
		OrdersRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_orders_rejected_total",
			Help: "Orders rejected by the broker",
		}),
		OrdersSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rebalancer_orders_skipped_total",
			Help: "Deltas skipped before submission, by reason",
		}, []string{"reason"}),
		DeltasTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rebalancer_deltas_total",
			Help: "Order deltas produced by the diff engine",
		}),
		BrokerCallDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rebalancer_broker_call_duration_seconds",
			Help:    "Broker gateway call latency by call name",
			Buckets: prometheus.DefBuckets,
		}, []string{"call"}),
		AuditCommitDur: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "rebalancer_audit_commit_duration_seconds",
			Help:    "Audit log batch commit latency",
			Buckets: prometheus.DefBuckets,
		}),
	}

	prometheus.MustRegister(
		m.RunsTotal,
		m.RunDuration,
		m.PlanCacheHits,
		m.PlanCacheMisses,
		m.OrdersSubmitted,
		m.OrdersRejected,
		m.OrdersSkipped,
		m.DeltasTotal,
		m.BrokerCallDur,
		m.AuditCommitDur,
	)

	return m
}

// HealthStatus represents dependency health for /healthz.
type HealthStatus struct {
	mu sync.RWMutex

	RedisConnected bool `json:"redis_connected"`
	RedisEnabled   bool `json:"redis_enabled"`
	SQLiteOK       bool `json:"sqlite_ok"`

	RedisLatencyMs  float64   `json:"redis_latency_ms"`
	SQLiteLatencyMs float64   `json:"sqlite_latency_ms"`
	LastCheckAt     time.Time `json:"last_check_at"`
	StartedAt       time.Time `json:"started_at"`
}

// NewHealthStatus returns a default health status.
func NewHealthStatus() *HealthStatus {
	return &HealthStatus{StartedAt: time.Now()}
}

func (h *HealthStatus) SetRedisEnabled(v bool) {
	h.mu.Lock()
	h.RedisEnabled = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetRedisConnected(v bool) {
	h.mu.Lock()
	h.RedisConnected = v
	h.mu.Unlock()
}

func (h *HealthStatus) SetSQLiteOK(v bool) {
	h.mu.Lock()
	h.SQLiteOK = v
	h.mu.Unlock()
}

// CheckRedis pings Redis and records latency + connectivity.
func (h *HealthStatus) CheckRedis(ctx context.Context, rdb *goredis.Client) {
	start := time.Now()
	err := rdb.Ping(ctx).Err()
	latency := time.Since(start)

	h.mu.Lock()
	h.RedisConnected = err == nil
	h.RedisLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// CheckSQLite pings the database and records latency + health.
func (h *HealthStatus) CheckSQLite(ctx context.Context, db *sql.DB) {
	start := time.Now()
	err := db.PingContext(ctx)
	latency := time.Since(start)

	h.mu.Lock()
	h.SQLiteOK = err == nil
	h.SQLiteLatencyMs = float64(latency.Microseconds()) / 1000.0
	h.LastCheckAt = time.Now()
	h.mu.Unlock()
}

// ServeHTTP handles the /healthz endpoint.
func (h *HealthStatus) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	overallStatus := "healthy"
	httpCode := http.StatusOK
	if !h.SQLiteOK || (h.RedisEnabled && !h.RedisConnected) {
		overallStatus = "degraded"
		httpCode = http.StatusServiceUnavailable
	}

	status := struct {
		Status          string  `json:"status"`
		Uptime          string  `json:"uptime"`
		RedisEnabled    bool    `json:"redis_enabled"`
		RedisConnected  bool    `json:"redis_connected"`
		RedisLatencyMs  float64 `json:"redis_latency_ms"`
		SQLiteOK        bool    `json:"sqlite_ok"`
		SQLiteLatencyMs float64 `json:"sqlite_latency_ms"`
		LastCheckAt     string  `json:"last_check_at"`
	}{
		Status:          overallStatus,
		Uptime:          time.Since(h.StartedAt).Round(time.Second).String(),
		RedisEnabled:    h.RedisEnabled,
		RedisConnected:  h.RedisConnected,
		RedisLatencyMs:  h.RedisLatencyMs,
		SQLiteOK:        h.SQLiteOK,
		SQLiteLatencyMs: h.SQLiteLatencyMs,
		LastCheckAt:     h.LastCheckAt.Format(time.RFC3339),
	}

	w.Header().Set("Content-Type", "application/json")
	if httpCode != http.StatusOK {
		w.WriteHeader(httpCode)
	}
	json.NewEncoder(w).Encode(status)
}

// Server runs an HTTP server exposing /metrics and /healthz.
type Server struct {
	addr string
	srv  *http.Server
	log  *slog.Logger
}

// NewServer creates a metrics and health server.
func NewServer(addr string, health *HealthStatus, log *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", health.ServeHTTP)

	return &Server{
		addr: addr,
		srv:  &http.Server{Addr: addr, Handler: mux},
		log:  log,
	}
}

// Start launches the HTTP server in a goroutine.
func (s *Server) Start() {
	go func() {
		s.log.Info("metrics server listening", "addr", s.addr)
		if err := s.srv.ListenAndServe(); err != http.ErrServerClosed {
			s.log.Error("metrics server error", "err", err)
		}
	}()
}

// Stop gracefully shuts down the metrics server.
func (s *Server) Stop(ctx context.Context) {
	s.srv.Shutdown(ctx)
}
