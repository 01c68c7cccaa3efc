package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"portfolio-rebalancer/config"
	"portfolio-rebalancer/internal/logger"
	"portfolio-rebalancer/internal/metrics"
	"portfolio-rebalancer/internal/model"
	"portfolio-rebalancer/internal/notification"
	"portfolio-rebalancer/internal/report"
	redisstore "portfolio-rebalancer/internal/store/redis"
	sqlitestore "portfolio-rebalancer/internal/store/sqlite"
	"portfolio-rebalancer/internal/strategy"
	"portfolio-rebalancer/pkg/brokerclient"
	"portfolio-rebalancer/pkg/brokerclient/sim"
)

// app holds every dependency of one command invocation.
type app struct {
	cfg      config.RunConfig
	log      *slog.Logger
	store    *sqlitestore.Store
	redis    *redisstore.Cache // nil when disabled
	cache    *report.DailyCache
	broker   model.BrokerGateway
	notifier notification.Notifier
	registry *strategy.Registry
	health   *metrics.HealthStatus
}

// newApp loads config and connects the stores and the broker gateway.
// withBroker commands pay for a broker session; audit-only commands skip it.
func newApp(ctx context.Context, flags *rootFlags, withBroker bool) (*app, error) {
	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return nil, err
	}
	if flags.account != "" {
		cfg.AccountID = flags.account
	}
	log := logger.Init("rebalancer", parseLevel(flags.logLevel))

	store, err := sqlitestore.New(sqlitestore.Config{DBPath: cfg.SQLitePath}, log)
	if err != nil {
		return nil, err
	}
	if err := store.UpsertAccount(ctx, cfg.Account()); err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		log:    log,
		store:  store,
		health: metrics.NewHealthStatus(),
	}
	a.health.SetSQLiteOK(true)
	a.health.SetRedisEnabled(cfg.Redis.Enabled)

	var cacheStore model.ReportCacheStore = store
	if cfg.Redis.Enabled {
		rc, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		}, log)
		if err != nil {
			// The durable store still works; run degraded rather than abort.
			log.Warn("redis unavailable, using sqlite cache only", "err", err)
		} else {
			a.redis = rc
			a.health.SetRedisConnected(true)
			cacheStore = report.NewLayeredStore(rc, store, log)
		}
	}
	a.cache = report.NewDailyCache(cacheStore, log)

	a.notifier = buildNotifier(cfg, log)
	a.registry = buildRegistry(cfg)

	if withBroker {
		broker, err := buildBroker(cfg, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.broker = broker
	}
	return a, nil
}

func (a *app) Close() {
	if a.redis != nil {
		a.redis.Close()
	}
	a.store.Close()
}

// serveMetrics starts the /metrics + /healthz endpoint for the lifetime
// of the command. Disabled when metrics_addr is empty.
func (a *app) serveMetrics(ctx context.Context) func() {
	if a.cfg.MetricsAddr == "" {
		return func() {}
	}
	a.health.CheckSQLite(ctx, a.store.DB())
	if a.redis != nil {
		a.health.CheckRedis(ctx, a.redis.Client())
	}
	srv := metrics.NewServer(a.cfg.MetricsAddr, a.health, a.log)
	srv.Start()
	return func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		srv.Stop(shutCtx)
	}
}

func buildNotifier(cfg config.RunConfig, log *slog.Logger) notification.Notifier {
	switch {
	case cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "":
		return notification.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID)
	case cfg.Notify.WebhookURL != "":
		return notification.NewWebhookNotifier(cfg.Notify.WebhookURL)
	default:
		return notification.NewLogNotifier(log)
	}
}

func buildRegistry(cfg config.RunConfig) *strategy.Registry {
	reg := strategy.NewRegistry()
	book, _ := cfg.TargetBook() // validated at load
	reg.Register(strategy.NewFixedWeight(cfg.Strategy.ID, book))
	return reg
}

func buildBroker(cfg config.RunConfig, log *slog.Logger) (model.BrokerGateway, error) {
	if cfg.Broker.Simulated {
		log.Info("using simulated broker")
		return sim.New(cfg.Trading.LotSize, sim.WithLogger(log)), nil
	}
	client, err := brokerclient.New(brokerclient.Config{
		BaseURL:    cfg.Broker.BaseURL,
		WSURL:      cfg.Broker.WSURL,
		ClientID:   cfg.Broker.ClientID,
		APIKey:     cfg.Broker.APIKey,
		Password:   cfg.Broker.Password,
		TOTPSecret: cfg.Broker.TOTPSecret,
		Log:        log,
	})
	if err != nil {
		return nil, fmt.Errorf("build broker client: %w", err)
	}
	return client, nil
}
