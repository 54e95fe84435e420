package governance

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"golang.org/x/sync/errgroup"
)

const component = "GOVERNANCE"

// Reader supplies the per-municipality inputs of the indicators.
type Reader interface {
	GetMunicipality(ctx context.Context, id int64) (domain.Municipality, error)
	ListMunicipalities(ctx context.Context) ([]domain.Municipality, error)
	ListMunicipalityBiddings(ctx context.Context, municipalityID int64) ([]domain.Bidding, error)
	// SupplierHomologatedTotals sums the homologated value won by each
	// supplier in the municipality.
	SupplierHomologatedTotals(ctx context.Context, municipalityID int64) ([]float64, error)
	CountWins(ctx context.Context, municipalityID int64) (WinCounts, error)
}

// Sink upserts governance records keyed by (municipality, period).
type Sink interface {
	UpsertGovernance(ctx context.Context, rec *domain.GovernanceRecord) error
}

type Store interface {
	Reader
	Sink
}

type Options struct {
	// Concurrency bounds the municipalities scored in parallel.
	Concurrency int
	Now         func() time.Time
}

type Scorer struct {
	store       Store
	log         *logger.Logger
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
}

func NewScorer(store Store, log *logger.Logger, m *metrics.Metrics, opts Options) *Scorer {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Scorer{store: store, log: log, metrics: m, concurrency: opts.Concurrency, now: opts.Now}
}

// Indicators is the result of ComputeGovernanceKPIs.
type Indicators struct {
	MunicipalityID int64   `json:"municipio_id"`
	Period         string  `json:"periodo,omitempty"`
	KPIs           KPIs    `json:"kpis"`
	Score          float64 `json:"score_governanca"`
}

// facts bundles the raw inputs of one municipality.
type facts struct {
	biddings []domain.Bidding
	totals   []float64
	wins     WinCounts
}

func (s *Scorer) ComputeGovernanceKPIs(ctx context.Context, municipalityID int64, period *Period) (Indicators, error) {
	if _, err := s.municipality(ctx, municipalityID); err != nil {
		return Indicators{}, err
	}
	f, err := s.load(ctx, municipalityID)
	if err != nil {
		return Indicators{}, err
	}
	return s.indicators(municipalityID, f, period), nil
}

func (s *Scorer) indicators(municipalityID int64, f facts, period *Period) Indicators {
	k := KPIs{
		TransparencyIndex: TransparencyIndex(f.biddings),
		SuccessRate:       SuccessRate(f.biddings, period),
		AverageCycleDays:  AverageCycleDays(f.biddings),
		HHI:               ConcentrationHHI(f.totals),
		MEEPPShare:        MEEPPShare(f.wins),
		AverageSavings:    AverageSavings(f.biddings),
	}
	out := Indicators{MunicipalityID: municipalityID, KPIs: k, Score: CompositeScore(k)}
	if period != nil {
		out.Period = period.String()
	}
	return out
}

// RankingEntry is one row of RankMunicipalities.
type RankingEntry struct {
	MunicipalityID    int64   `json:"municipio_id"`
	Name              string  `json:"municipio"`
	UF                string  `json:"uf"`
	Score             float64 `json:"score_governanca"`
	TransparencyIndex float64 `json:"indice_transparencia"`
	SuccessRate       float64 `json:"taxa_sucesso"`
	MEEPPShare        float64 `json:"participacao_meepp"`
	AverageSavings    float64 `json:"economia_media"`
}

// RankMunicipalities scores every municipality over its full history and
// orders them by descending score. Ties keep the store's order.
func (s *Scorer) RankMunicipalities(ctx context.Context) ([]RankingEntry, error) {
	start := time.Now()
	defer s.metrics.ObserveAnalysis("governance_ranking", start)

	munis, err := s.store.ListMunicipalities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list municipalities: %w", err)
	}

	ranking := make([]RankingEntry, len(munis))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, m := range munis {
		g.Go(func() error {
			f, err := s.load(gctx, m.ID)
			if err != nil {
				return err
			}
			ind := s.indicators(m.ID, f, nil)
			ranking[i] = RankingEntry{
				MunicipalityID:    m.ID,
				Name:              m.Name,
				UF:                m.UF,
				Score:             ind.Score,
				TransparencyIndex: ind.KPIs.TransparencyIndex,
				SuccessRate:       ind.KPIs.SuccessRate,
				MEEPPShare:        ind.KPIs.MEEPPShare,
				AverageSavings:    ind.KPIs.AverageSavings,
			}
			s.metrics.SetGovernanceScore(m.IBGECode, ind.Score)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(ranking, func(i, j int) bool { return ranking[i].Score > ranking[j].Score })
	return ranking, nil
}

// UpsertGovernancePeriod recomputes and stores the record of one
// municipality for period, defaulting to the current month. The success
// rate, bidding count and total value are restricted to the period; the
// other indicators cover the municipality's full history.
func (s *Scorer) UpsertGovernancePeriod(ctx context.Context, municipalityID int64, period *Period) (domain.GovernanceRecord, error) {
	if _, err := s.municipality(ctx, municipalityID); err != nil {
		return domain.GovernanceRecord{}, err
	}
	return s.upsert(ctx, municipalityID, s.period(period))
}

// UpsertAllPeriods refreshes the period record of every municipality.
func (s *Scorer) UpsertAllPeriods(ctx context.Context, period *Period) ([]domain.GovernanceRecord, error) {
	p := s.period(period)
	munis, err := s.store.ListMunicipalities(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list municipalities: %w", err)
	}
	out := make([]domain.GovernanceRecord, 0, len(munis))
	for _, m := range munis {
		rec, err := s.upsert(ctx, m.ID, p)
		if err != nil {
			return out, err
		}
		out = append(out, rec)
	}
	s.log.Info(component, "Governance refreshed: period=%s municipalities=%d", p, len(out))
	return out, nil
}

func (s *Scorer) upsert(ctx context.Context, municipalityID int64, p Period) (domain.GovernanceRecord, error) {
	f, err := s.load(ctx, municipalityID)
	if err != nil {
		return domain.GovernanceRecord{}, err
	}
	ind := s.indicators(municipalityID, f, &p)

	rec := domain.GovernanceRecord{
		MunicipalityID:    municipalityID,
		Period:            p.String(),
		TransparencyIndex: ind.KPIs.TransparencyIndex,
		SuccessRate:       ind.KPIs.SuccessRate,
		AverageCycleDays:  ind.KPIs.AverageCycleDays,
		HHI:               ind.KPIs.HHI,
		MEEPPShare:        ind.KPIs.MEEPPShare,
		AverageSavings:    ind.KPIs.AverageSavings,
	}
	for _, b := range f.biddings {
		if b.PublishedAt == nil || !p.Contains(*b.PublishedAt) {
			continue
		}
		rec.TotalBiddings++
		if b.EstimatedTotal != nil {
			rec.TotalValue += *b.EstimatedTotal
		}
	}

	if err := s.store.UpsertGovernance(ctx, &rec); err != nil {
		return domain.GovernanceRecord{}, fmt.Errorf("failed to upsert governance record: %w", err)
	}
	s.log.Debug(component, "Governance upserted: municipality=%d period=%s score=%.2f", municipalityID, p, ind.Score)
	return rec, nil
}

// Report is the full governance report of one municipality.
type Report struct {
	Municipality domain.Municipality `json:"municipio"`
	Period       string              `json:"periodo,omitempty"`
	KPIs         KPIs                `json:"kpis"`
	Score        float64             `json:"score_governanca"`
	GeneratedAt  time.Time           `json:"gerado_em"`
}

func (s *Scorer) Report(ctx context.Context, municipalityID int64, period *Period) (Report, error) {
	m, err := s.municipality(ctx, municipalityID)
	if err != nil {
		return Report{}, err
	}
	f, err := s.load(ctx, municipalityID)
	if err != nil {
		return Report{}, err
	}
	// the composite score always uses the unfiltered success rate
	overall := s.indicators(municipalityID, f, nil)
	windowed := s.indicators(municipalityID, f, period)
	return Report{
		Municipality: m,
		Period:       windowed.Period,
		KPIs:         windowed.KPIs,
		Score:        overall.Score,
		GeneratedAt:  s.now(),
	}, nil
}

func (s *Scorer) municipality(ctx context.Context, id int64) (domain.Municipality, error) {
	m, err := s.store.GetMunicipality(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return domain.Municipality{}, fmt.Errorf("municipality %d: %w", id, sentinel.ErrInvalidScope)
		}
		return domain.Municipality{}, fmt.Errorf("failed to load municipality: %w", err)
	}
	return m, nil
}

func (s *Scorer) load(ctx context.Context, municipalityID int64) (facts, error) {
	biddings, err := s.store.ListMunicipalityBiddings(ctx, municipalityID)
	if err != nil {
		return facts{}, fmt.Errorf("failed to list biddings: %w", err)
	}
	totals, err := s.store.SupplierHomologatedTotals(ctx, municipalityID)
	if err != nil {
		return facts{}, fmt.Errorf("failed to sum supplier totals: %w", err)
	}
	wins, err := s.store.CountWins(ctx, municipalityID)
	if err != nil {
		return facts{}, fmt.Errorf("failed to count wins: %w", err)
	}
	return facts{biddings: biddings, totals: totals, wins: wins}, nil
}

func (s *Scorer) period(p *Period) Period {
	if p != nil {
		return *p
	}
	return CurrentPeriod(s.now())
}
