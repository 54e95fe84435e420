package main

import (
	"fmt"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/anomaly"
	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/farxc/licitacoes_analytics/internal/cache"
	"github.com/farxc/licitacoes_analytics/internal/config"
	"github.com/farxc/licitacoes_analytics/internal/db"
	"github.com/farxc/licitacoes_analytics/internal/env"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/farxc/licitacoes_analytics/internal/pncp"
	"github.com/farxc/licitacoes_analytics/internal/retry"
	"github.com/farxc/licitacoes_analytics/internal/sanctions"
	"github.com/farxc/licitacoes_analytics/internal/store"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const component = "Worker"

const version = "0.1.0"

// worker holds the dependencies shared by every subcommand. They are built
// once in the root PersistentPreRunE.
type worker struct {
	envFile  string
	logLevel string

	cfg     *config.Config
	log     *logger.Logger
	conn    *sqlx.DB
	rdb     *cache.Client
	cache   *cache.Cache
	storage *store.Storage
	metrics *metrics.Metrics
	monitor *MemoryMonitor
}

func newRootCmd() *cobra.Command {
	w := &worker{}

	root := &cobra.Command{
		Use:           "worker",
		Short:         "Collects and analyses public procurement data",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if !needsBootstrap(cmd) {
				return nil
			}
			return w.bootstrap(cmd)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			w.close()
		},
	}
	root.SetVersionTemplate(`{{printf "licitacoes worker %s\n" .Version}}`)

	root.PersistentFlags().StringVar(&w.envFile, "env-file", ".env", "Dotenv file loaded before reading LAP_* variables")
	root.PersistentFlags().StringVarP(&w.logLevel, "log-level", "l", "", "Log level: debug, info, warn, error (overrides LAP_LOG_LEVEL)")

	root.AddCommand(
		w.migrateCmd(),
		w.seedCmd(),
		w.collectCmd(),
		w.collectBiddingCmd(),
		w.analyzeCmd(),
		w.recurringCmd(),
		w.governanceCmd(),
		w.sanctionsCmd(),
		w.scheduleCmd(),
	)
	return root
}

// needsBootstrap is false for cobra's built-in help and completion commands.
func needsBootstrap(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Name() == "help" || c.Name() == "completion" {
			return false
		}
	}
	return true
}

func (w *worker) bootstrap(cmd *cobra.Command) error {
	if err := env.LoadDotEnv(w.envFile); err != nil {
		return fmt.Errorf("failed to load %s: %w", w.envFile, err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	w.cfg = cfg

	level := cfg.Log.Level
	if w.logLevel != "" {
		level = w.logLevel
	}
	w.log = logger.New(logger.ParseLevel(level))

	w.monitor = NewMonitor()
	w.monitor.Start(400*time.Millisecond, w.log)

	w.conn, err = db.New(cfg.DB.Addr, cfg.DB.MaxOpenConns, cfg.DB.MaxIdleConns, cfg.DB.MaxIdleTime)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	w.log.Info(component, "Database connection pool established: command=%s", cmd.Name())

	// The worker has no scrape endpoint; the registry only backs the counters
	// shared with the API code paths.
	w.metrics = metrics.New(prometheus.NewRegistry())

	w.rdb, err = cache.NewClient(cmd.Context(), cfg.Redis.URL)
	if err != nil {
		w.log.Warn(component, "Redis unavailable, caching disabled: %v", err)
	}
	w.cache = cache.New(w.rdb.Cmdable(), w.log, w.metrics)
	w.storage = store.NewStorage(w.conn)
	return nil
}

func (w *worker) close() {
	if w.rdb != nil {
		w.rdb.Close()
	}
	if w.conn != nil {
		w.conn.Close()
	}
	if w.monitor != nil {
		stats := w.monitor.Stop()
		w.log.Info(component, "Command finished: duration=%.2fs peakGoroutines=%d peakMemoryMB=%d", stats.Duration.Seconds(), stats.PeakGoroutines, stats.PeakMemoryMB)
	}
}

func (w *worker) retryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.MaxAttempts = w.cfg.PNCP.MaxRetries
	return p
}

func (w *worker) collector() *pncp.Collector {
	client := pncp.NewClient(pncp.ClientOptions{
		BaseURL:  w.cfg.PNCP.BaseURL,
		UF:       w.cfg.PNCP.UF,
		PageSize: w.cfg.PNCP.PageSize,
		RPS:      w.cfg.PNCP.RPS,
		Timeout:  w.cfg.PNCP.Timeout,
		Retry:    w.retryPolicy(),
	}, w.log, w.metrics)
	return pncp.NewCollector(client, w.storage, w.log, w.metrics, pncp.CollectorOptions{
		Concurrency: w.cfg.PNCP.Workers,
		RetryLimit:  w.cfg.PNCP.MaxRetries,
	})
}

func (w *worker) detector() *anomaly.Detector {
	return anomaly.NewDetector(w.storage.AnomalySource(), w.log, w.metrics, anomaly.Options{
		LookbackDays: w.cfg.Analysis.AnomalyLookbackDays,
	})
}

func (w *worker) scorer() *governance.Scorer {
	return governance.NewScorer(w.storage.GovernanceSource(), w.log, w.metrics, governance.Options{
		Concurrency: w.cfg.Analysis.GovernanceConcurrency,
	})
}

func (w *worker) sanctionsService() *sanctions.Service {
	client := sanctions.NewClient(sanctions.ClientOptions{
		BaseURL: w.cfg.Sanctions.BaseURL,
		APIKey:  w.cfg.Sanctions.APIKey,
		Retry:   w.retryPolicy(),
	}, w.log, w.metrics)
	return sanctions.NewService(client, w.storage, w.cache, w.log)
}

func (w *worker) importer() *sanctions.Importer {
	return sanctions.NewImporter(sanctions.ImporterOptions{
		DatasetURL: w.cfg.Sanctions.DatasetURL,
		Retry:      w.retryPolicy(),
	}, w.storage, w.log)
}

// render prints a table with a header row.
func render(data pterm.TableData) error {
	return pterm.DefaultTable.WithHasHeader().WithBoxed().WithData(data).Render()
}
