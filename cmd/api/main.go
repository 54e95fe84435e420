package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/farxc/licitacoes_analytics/internal/analysis/anomaly"
	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/farxc/licitacoes_analytics/internal/analysis/prices"
	"github.com/farxc/licitacoes_analytics/internal/cache"
	"github.com/farxc/licitacoes_analytics/internal/config"
	"github.com/farxc/licitacoes_analytics/internal/db"
	"github.com/farxc/licitacoes_analytics/internal/env"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/farxc/licitacoes_analytics/internal/retry"
	"github.com/farxc/licitacoes_analytics/internal/sanctions"
	"github.com/farxc/licitacoes_analytics/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	if err := env.LoadDotEnv(); err != nil {
		logger.New(logger.LevelInfo).Fatal(component, "Failed to load .env: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.LevelInfo).Fatal(component, "Invalid configuration: %v", err)
	}
	log := logger.New(logger.ParseLevel(cfg.Log.Level))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.New(cfg.DB.Addr, cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns, cfg.DB.MaxIdleTime)
	if err != nil {
		log.Fatal(component, "Failed to connect to database: %v", err)
	}
	defer conn.Close()
	log.Info(component, "Database connection pool established")

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	checks := map[string]healthChecker{"postgres": conn.PingContext}

	rdb, err := cache.NewClient(ctx, cfg.Redis.URL)
	if err != nil {
		log.Warn(component, "Redis unavailable, caching disabled: %v", err)
	}
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = rdb.Health
	}
	c := cache.New(rdb.Cmdable(), log, m)

	storage := store.NewStorage(conn)
	policy := retry.DefaultPolicy()
	policy.MaxAttempts = cfg.PNCP.MaxRetries

	app := &application{
		config: cfg,
		store:  storage,
		prices: prices.NewService(storage.PriceHistory(), log, prices.Options{
			WindowMonths: cfg.Analysis.PriceWindowMonths,
			TrendMonths:  cfg.Analysis.TrendMonths,
		}),
		anomalies: anomaly.NewDetector(storage.AnomalySource(), log, m, anomaly.Options{
			LookbackDays: cfg.Analysis.AnomalyLookbackDays,
		}),
		governance: governance.NewScorer(storage.GovernanceSource(), log, m, governance.Options{
			Concurrency: cfg.Analysis.GovernanceConcurrency,
		}),
		sanctions: sanctions.NewService(sanctions.NewClient(sanctions.ClientOptions{
			BaseURL: cfg.Sanctions.BaseURL,
			APIKey:  cfg.Sanctions.APIKey,
			Retry:   policy,
		}, log, m), storage, c, log),
		cache:    c,
		log:      log,
		registry: reg,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		checks:   checks,
	}

	if err := app.run(ctx, app.mount()); err != nil {
		log.Fatal(component, "Server error: %v", err)
	}
}
