package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/anomaly"
	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/farxc/licitacoes_analytics/internal/analysis/prices"
	"github.com/farxc/licitacoes_analytics/internal/cache"
	"github.com/farxc/licitacoes_analytics/internal/config"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/sanctions"
	"github.com/farxc/licitacoes_analytics/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const component = "API"

type priceAnalyzer interface {
	ComputeItemStatistics(ctx context.Context, description string, months int) (prices.ItemStatistics, error)
	CompareToHistory(ctx context.Context, itemID int64) (prices.ItemComparison, error)
	RegionalBenchmark(ctx context.Context, description string) (prices.RegionalBenchmark, error)
	DetectOutliers(ctx context.Context, description string) ([]prices.Outlier, error)
	SuggestReferencePrice(ctx context.Context, description string) (prices.ReferencePrice, error)
	AnalyzeTrend(ctx context.Context, description string, months int) (prices.TrendAnalysis, error)
	Timeline(ctx context.Context, description string, months int, municipalityID *int64) ([]prices.TimelinePoint, error)
}

type anomalyDetector interface {
	RunFullAnalysis(ctx context.Context, scope anomaly.Scope) (anomaly.Run, error)
	DetectRecurringSupplier(ctx context.Context, organizationID int64, periodDays int) ([]domain.Anomaly, error)
	AggregateRiskScore(ctx context.Context, biddingID int64) (float64, error)
}

type governanceScorer interface {
	ComputeGovernanceKPIs(ctx context.Context, municipalityID int64, period *governance.Period) (governance.Indicators, error)
	RankMunicipalities(ctx context.Context) ([]governance.RankingEntry, error)
	UpsertGovernancePeriod(ctx context.Context, municipalityID int64, period *governance.Period) (domain.GovernanceRecord, error)
	Report(ctx context.Context, municipalityID int64, period *governance.Period) (governance.Report, error)
}

type sanctionChecker interface {
	Check(ctx context.Context, document string) (sanctions.Check, error)
	ActiveLocal(ctx context.Context, document string) ([]domain.Sanction, error)
	ScreenBidding(ctx context.Context, biddingID int64) ([]sanctions.Alert, error)
}

type healthChecker func(ctx context.Context) error

type application struct {
	config     *config.Config
	store      *store.Storage
	prices     priceAnalyzer
	anomalies  anomalyDetector
	governance governanceScorer
	sanctions  sanctionChecker
	cache      *cache.Cache
	log        *logger.Logger
	registry   *prometheus.Registry
	validate   *validator.Validate
	checks     map[string]healthChecker
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(middleware.Logger)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	// Set a timeout value on the request context (ctx), that will signal
	// through ctx.Done() that the request has timed out and further
	// processing should be stopped.
	r.Use(middleware.Timeout(60 * time.Second))

	r.Route("/v1", func(r chi.Router) {
		r.Get("/health", app.healthCheckHandler)
		if app.registry != nil {
			r.Handle("/metrics", promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{}))
		}

		r.Route("/prices", func(r chi.Router) {
			r.Get("/statistics", app.handleGetPriceStatistics)
			r.Get("/items/{id}/comparison", app.handleGetItemComparison)
			r.Get("/benchmark", app.handleGetRegionalBenchmark)
			r.Get("/outliers", app.handleGetOutliers)
			r.Get("/reference", app.handleGetReferencePrice)
			r.Get("/trend", app.handleGetTrend)
			r.Get("/timeline", app.handleGetTimeline)
		})
		r.Route("/anomalies", func(r chi.Router) {
			r.Get("/", app.handleListAnomalies)
			r.Post("/analysis", app.handleRunAnalysis)
			r.Post("/recurring-suppliers", app.handleRecurringSuppliers)
			r.Get("/biddings/{id}/risk-score", app.handleGetRiskScore)
		})
		r.Route("/governance", func(r chi.Router) {
			r.Get("/ranking", app.handleGetRanking)
			r.Route("/municipalities/{id}", func(r chi.Router) {
				r.Get("/kpis", app.handleGetKPIs)
				r.Get("/report", app.handleGetReport)
				r.Get("/history", app.handleGetGovernanceHistory)
				r.Put("/periods/{periodo}", app.handleUpsertPeriod)
			})
		})
		r.Route("/sanctions", func(r chi.Router) {
			r.Get("/biddings/{id}", app.handleScreenBidding)
			r.Get("/{document}", app.handleCheckSanctions)
			r.Get("/{document}/local", app.handleLocalSanctions)
		})
		r.Route("/ingestion", func(r chi.Router) {
			r.Get("/history", app.handleGetIngestionHistory)
		})
	})

	return r
}

// run serves until ctx is cancelled, then drains in-flight requests.
func (app *application) run(ctx context.Context, mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.HTTP.Addr,
		Handler:      mux,
		WriteTimeout: app.config.HTTP.WriteTimeout,
		ReadTimeout:  app.config.HTTP.ReadTimeout,
		IdleTimeout:  app.config.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		app.log.Info(component, "Server started on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	app.log.Info(component, "Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), app.config.HTTP.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
