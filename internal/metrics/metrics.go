package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of the analysis, collection and screening
// paths. A nil *Metrics is valid and records nothing.
type Metrics struct {
	AnomaliesDetected *prometheus.CounterVec
	AnalysisDuration  *prometheus.HistogramVec
	GovernanceScore   *prometheus.GaugeVec
	CollectorRequests *prometheus.CounterVec
	CollectedBiddings prometheus.Counter
	CacheLookups      *prometheus.CounterVec
	SanctionLookups   *prometheus.CounterVec
}

// New registers every collector on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnomaliesDetected: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lap_anomalies_detected_total",
			Help: "Anomalies recorded by the detector, by type",
		}, []string{"type"}),
		AnalysisDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lap_analysis_duration_seconds",
			Help:    "Duration of analysis runs",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 15, 60},
		}, []string{"analysis"}),
		GovernanceScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "lap_governance_score",
			Help: "Latest composite governance score per municipality",
		}, []string{"municipality"}),
		CollectorRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lap_collector_requests_total",
			Help: "Requests sent to the PNCP API, by endpoint and outcome",
		}, []string{"endpoint", "outcome"}),
		CollectedBiddings: f.NewCounter(prometheus.CounterOpts{
			Name: "lap_collected_biddings_total",
			Help: "Biddings stored by the collector",
		}),
		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lap_cache_lookups_total",
			Help: "Cache lookups, by result",
		}, []string{"result"}),
		SanctionLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "lap_sanction_lookups_total",
			Help: "Restricted company lookups, by registry and outcome",
		}, []string{"source", "outcome"}),
	}
}

func (m *Metrics) IncAnomaly(anomalyType string) {
	if m == nil {
		return
	}
	m.AnomaliesDetected.WithLabelValues(anomalyType).Inc()
}

// ObserveAnalysis records the duration of an analysis started at start.
func (m *Metrics) ObserveAnalysis(analysis string, start time.Time) {
	if m == nil {
		return
	}
	m.AnalysisDuration.WithLabelValues(analysis).Observe(time.Since(start).Seconds())
}

func (m *Metrics) SetGovernanceScore(municipality string, score float64) {
	if m == nil {
		return
	}
	m.GovernanceScore.WithLabelValues(municipality).Set(score)
}

func (m *Metrics) IncCollectorRequest(endpoint, outcome string) {
	if m == nil {
		return
	}
	m.CollectorRequests.WithLabelValues(endpoint, outcome).Inc()
}

func (m *Metrics) AddCollectedBiddings(n int) {
	if m == nil {
		return
	}
	m.CollectedBiddings.Add(float64(n))
}

func (m *Metrics) IncCacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}

func (m *Metrics) IncSanctionLookup(source, outcome string) {
	if m == nil {
		return
	}
	m.SanctionLookups.WithLabelValues(source, outcome).Inc()
}
