package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/anomaly"
	"github.com/farxc/licitacoes_analytics/internal/analysis/governance"
	"github.com/farxc/licitacoes_analytics/internal/analysis/prices"
	"github.com/farxc/licitacoes_analytics/internal/config"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/farxc/licitacoes_analytics/internal/sanctions"
	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"github.com/farxc/licitacoes_analytics/internal/store"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePrices struct {
	priceAnalyzer
	lastDescription string
	lastMonths      int
	lastMunicipio   *int64
}

func (f *fakePrices) ComputeItemStatistics(_ context.Context, description string, months int) (prices.ItemStatistics, error) {
	f.lastDescription, f.lastMonths = description, months
	return prices.ItemStatistics{Description: description}, nil
}

func (f *fakePrices) CompareToHistory(_ context.Context, itemID int64) (prices.ItemComparison, error) {
	if itemID == 404 {
		return prices.ItemComparison{}, fmt.Errorf("item %d: %w", itemID, sentinel.ErrInvalidScope)
	}
	return prices.ItemComparison{ItemID: itemID}, nil
}

func (f *fakePrices) Timeline(_ context.Context, description string, months int, municipalityID *int64) ([]prices.TimelinePoint, error) {
	f.lastDescription, f.lastMonths, f.lastMunicipio = description, months, municipalityID
	return []prices.TimelinePoint{}, nil
}

type fakeAnomalies struct {
	anomalyDetector
	scope anomaly.Scope
	org   int64
	days  int
}

func (f *fakeAnomalies) RunFullAnalysis(_ context.Context, scope anomaly.Scope) (anomaly.Run, error) {
	f.scope = scope
	return anomaly.Run{ID: "run", Biddings: 1, Anomalies: []domain.Anomaly{}}, nil
}

func (f *fakeAnomalies) DetectRecurringSupplier(_ context.Context, organizationID int64, periodDays int) ([]domain.Anomaly, error) {
	f.org, f.days = organizationID, periodDays
	return []domain.Anomaly{}, nil
}

func (f *fakeAnomalies) AggregateRiskScore(_ context.Context, biddingID int64) (float64, error) {
	if biddingID == 2 {
		return 0, errors.New("connection reset")
	}
	return 55, nil
}

type fakeGovernance struct {
	governanceScorer
	rankCalls int
	period    *governance.Period
}

func (f *fakeGovernance) ComputeGovernanceKPIs(_ context.Context, id int64, period *governance.Period) (governance.Indicators, error) {
	f.period = period
	return governance.Indicators{MunicipalityID: id}, nil
}

func (f *fakeGovernance) RankMunicipalities(context.Context) ([]governance.RankingEntry, error) {
	f.rankCalls++
	return []governance.RankingEntry{{MunicipalityID: 1, Score: 80}}, nil
}

func (f *fakeGovernance) UpsertGovernancePeriod(_ context.Context, id int64, period *governance.Period) (domain.GovernanceRecord, error) {
	return domain.GovernanceRecord{MunicipalityID: id, Period: period.String()}, nil
}

type fakeSanctions struct {
	sanctionChecker
}

func (fakeSanctions) Check(_ context.Context, document string) (sanctions.Check, error) {
	doc := domain.CleanDocument(document)
	if len(doc) != 14 && len(doc) != 11 {
		return sanctions.Check{}, sentinel.ErrInvalidDocument
	}
	return sanctions.Check{Document: doc, Details: []sanctions.Detail{}}, nil
}

func (fakeSanctions) ScreenBidding(_ context.Context, biddingID int64) ([]sanctions.Alert, error) {
	return []sanctions.Alert{{SupplierID: 9, Document: "11222333000181"}}, nil
}

type fakeHistory struct {
	store.IngestionHistoryRepository
	limit int
}

func (f *fakeHistory) GetLatest(_ context.Context, limit int) ([]store.IngestionHistory, error) {
	f.limit = limit
	return []store.IngestionHistory{{ID: 1, Source: store.SourcePNCP}}, nil
}

type testApp struct {
	*application
	prices     *fakePrices
	anomalies  *fakeAnomalies
	governance *fakeGovernance
	history    *fakeHistory
}

func newTestApp() testApp {
	ta := testApp{
		prices:     &fakePrices{},
		anomalies:  &fakeAnomalies{},
		governance: &fakeGovernance{},
		history:    &fakeHistory{},
	}
	reg := prometheus.NewRegistry()
	metrics.New(reg)
	ta.application = &application{
		config:     &config.Config{},
		store:      &store.Storage{IngestionHistory: ta.history},
		prices:     ta.prices,
		anomalies:  ta.anomalies,
		governance: ta.governance,
		sanctions:  fakeSanctions{},
		registry:   reg,
		validate:   validator.New(validator.WithRequiredStructEnabled()),
		checks:     map[string]healthChecker{"postgres": func(context.Context) error { return nil }},
	}
	return ta
}

func (ta testApp) do(t *testing.T, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	ta.mount().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealth(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	ta.checks["redis"] = func(context.Context) error { return errors.New("refused") }
	rec = ta.do(t, http.MethodGet, "/v1/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "degraded", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newTestApp().do(t, http.MethodGet, "/v1/metrics", "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPriceStatistics(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodGet, "/v1/prices/statistics?descricao=papel+a4&meses=6", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "papel a4", ta.prices.lastDescription)
	assert.Equal(t, 6, ta.prices.lastMonths)

	body := decode[PriceStatisticsResponse](t, rec)
	assert.True(t, body.Success)
	assert.Equal(t, "papel a4", body.Data.Description)
}

func TestPriceStatisticsDefaultWindow(t *testing.T) {
	ta := newTestApp()
	ta.config.Analysis.PriceWindowMonths = 24

	rec := ta.do(t, http.MethodGet, "/v1/prices/statistics?descricao=Papel+A4", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 24, ta.prices.lastMonths)
}

func TestPriceQueryValidation(t *testing.T) {
	ta := newTestApp()
	for _, target := range []string{
		"/v1/prices/statistics",
		"/v1/prices/statistics?descricao=ab",
		"/v1/prices/statistics?descricao=papel&meses=x",
		"/v1/prices/timeline?descricao=papel&municipio_id=abc",
	} {
		rec := ta.do(t, http.MethodGet, target, "")
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestTimelineMunicipalityFilter(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodGet, "/v1/prices/timeline?descricao=papel&municipio_id=7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ta.prices.lastMunicipio)
	assert.Equal(t, int64(7), *ta.prices.lastMunicipio)
}

func TestItemComparisonUnknownItem(t *testing.T) {
	ta := newTestApp()
	assert.Equal(t, http.StatusNotFound, ta.do(t, http.MethodGet, "/v1/prices/items/404/comparison", "").Code)
	assert.Equal(t, http.StatusBadRequest, ta.do(t, http.MethodGet, "/v1/prices/items/abc/comparison", "").Code)
	assert.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/v1/prices/items/5/comparison", "").Code)
}

func TestRunAnalysis(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodPost, "/v1/anomalies/analysis", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, ta.anomalies.scope.BiddingID)

	rec = ta.do(t, http.MethodPost, "/v1/anomalies/analysis", `{"licitacao_id": 12}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ta.anomalies.scope.BiddingID)
	assert.Equal(t, int64(12), *ta.anomalies.scope.BiddingID)

	rec = ta.do(t, http.MethodPost, "/v1/anomalies/analysis", `{"licitacao_id": -1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = ta.do(t, http.MethodPost, "/v1/anomalies/analysis", `{"unknown": 1}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecurringSuppliers(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodPost, "/v1/anomalies/recurring-suppliers", `{"orgao_id": 3, "periodo_dias": 180}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(3), ta.anomalies.org)
	assert.Equal(t, 180, ta.anomalies.days)

	rec = ta.do(t, http.MethodPost, "/v1/anomalies/recurring-suppliers", `{"periodo_dias": 180}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRiskScore(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodGet, "/v1/anomalies/biddings/1/risk-score", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[RiskScoreResponse](t, rec)
	assert.Equal(t, 55.0, body.Data.Score)

	rec = ta.do(t, http.MethodGet, "/v1/anomalies/biddings/2/risk-score", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
}

func TestGovernanceKPIsPeriod(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodGet, "/v1/governance/municipalities/1/kpis?periodo=2025-03", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ta.governance.period)
	assert.Equal(t, governance.Period{Year: 2025, Month: time.March}, *ta.governance.period)

	rec = ta.do(t, http.MethodGet, "/v1/governance/municipalities/1/kpis?periodo=2025-13", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestUpsertPeriod(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodPut, "/v1/governance/municipalities/4/periods/2025-01", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, "2025-01", body["data"].(map[string]any)["periodo"])

	rec = ta.do(t, http.MethodPut, "/v1/governance/municipalities/4/periods/janeiro", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRankingWithoutCacheAlwaysLoads(t *testing.T) {
	ta := newTestApp()
	ta.do(t, http.MethodGet, "/v1/governance/ranking", "")
	rec := ta.do(t, http.MethodGet, "/v1/governance/ranking", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, ta.governance.rankCalls)
	body := decode[RankingResponse](t, rec)
	require.Len(t, body.Data, 1)
	assert.Equal(t, 80.0, body.Data[0].Score)
}

func TestSanctionRoutes(t *testing.T) {
	ta := newTestApp()
	assert.Equal(t, http.StatusOK, ta.do(t, http.MethodGet, "/v1/sanctions/11222333000181", "").Code)
	assert.Equal(t, http.StatusBadRequest, ta.do(t, http.MethodGet, "/v1/sanctions/123", "").Code)

	rec := ta.do(t, http.MethodGet, "/v1/sanctions/biddings/7", "")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[map[string]any](t, rec)
	assert.Equal(t, 1.0, body["data"].(map[string]any)["total_impedimentos"])
}

func TestIngestionHistory(t *testing.T) {
	ta := newTestApp()
	rec := ta.do(t, http.MethodGet, "/v1/ingestion/history?limit=5", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 5, ta.history.limit)

	ta.do(t, http.MethodGet, "/v1/ingestion/history?limit=abc", "")
	assert.Equal(t, 10, ta.history.limit)
}
