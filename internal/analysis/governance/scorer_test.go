package governance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/logger"
	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	munis    []domain.Municipality
	biddings map[int64][]domain.Bidding
	totals   map[int64][]float64
	wins     map[int64]WinCounts
	records  map[string]domain.GovernanceRecord
	failList error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		biddings: map[int64][]domain.Bidding{},
		totals:   map[int64][]float64{},
		wins:     map[int64]WinCounts{},
		records:  map[string]domain.GovernanceRecord{},
	}
}

func (f *fakeStore) GetMunicipality(_ context.Context, id int64) (domain.Municipality, error) {
	for _, m := range f.munis {
		if m.ID == id {
			return m, nil
		}
	}
	return domain.Municipality{}, sentinel.ErrNotFound
}

func (f *fakeStore) ListMunicipalities(context.Context) ([]domain.Municipality, error) {
	return f.munis, nil
}

func (f *fakeStore) ListMunicipalityBiddings(_ context.Context, id int64) ([]domain.Bidding, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	return f.biddings[id], nil
}

func (f *fakeStore) SupplierHomologatedTotals(_ context.Context, id int64) ([]float64, error) {
	return f.totals[id], nil
}

func (f *fakeStore) CountWins(_ context.Context, id int64) (WinCounts, error) {
	return f.wins[id], nil
}

func (f *fakeStore) UpsertGovernance(_ context.Context, rec *domain.GovernanceRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[fmt.Sprintf("%s/%d", rec.Period, rec.MunicipalityID)] = *rec
	return nil
}

var now = time.Date(2024, 3, 20, 9, 0, 0, 0, time.UTC)

func newScorer(store Store) *Scorer {
	return NewScorer(store, logger.New(logger.LevelError), nil, Options{Now: func() time.Time { return now }})
}

func seeded() *fakeStore {
	f := newFakeStore()
	f.munis = []domain.Municipality{
		{ID: 1, Name: "Anápolis", UF: "GO", IBGECode: "5201108"},
		{ID: 2, Name: "Goianésia", UF: "GO", IBGECode: "5208608"},
		{ID: 3, Name: "Abadiânia", UF: "GO", IBGECode: "5200050"},
	}
	full := completeBidding()
	full.HasResult = true
	full.HomologatedTotal = num(900)
	full.LastUpdatedAt = at(day(2024, 3, 21))

	feb := completeBidding()
	feb.PublishedAt = at(day(2024, 2, 10))

	f.biddings[1] = []domain.Bidding{full, feb}
	f.totals[1] = []float64{500, 500}
	f.wins[1] = WinCounts{Total: 4, MEEPP: 2}
	return f
}

func TestComputeGovernanceKPIs(t *testing.T) {
	s := newScorer(seeded())

	ind, err := s.ComputeGovernanceKPIs(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, 100.0, ind.KPIs.TransparencyIndex)
	assert.Equal(t, 50.0, ind.KPIs.SuccessRate)
	assert.Equal(t, 20, ind.KPIs.AverageCycleDays)
	assert.Equal(t, 5000.0, ind.KPIs.HHI)
	assert.Equal(t, 50.0, ind.KPIs.MEEPPShare)
	assert.InDelta(t, 10.0, ind.KPIs.AverageSavings, 1e-9)
	// 30 + 12.5 + 10 + 7.5 + 1
	assert.Equal(t, 61.0, ind.Score)
	assert.Empty(t, ind.Period)

	march := Period{Year: 2024, Month: time.March}
	ind, err = s.ComputeGovernanceKPIs(context.Background(), 1, &march)
	require.NoError(t, err)
	assert.Equal(t, 100.0, ind.KPIs.SuccessRate)
	assert.Equal(t, "2024-03", ind.Period)
}

func TestComputeGovernanceKPIsWithoutBiddings(t *testing.T) {
	ind, err := newScorer(seeded()).ComputeGovernanceKPIs(context.Background(), 3, nil)
	require.NoError(t, err)
	assert.Equal(t, KPIs{}, ind.KPIs)
	assert.Equal(t, 20.0, ind.Score)
}

func TestComputeGovernanceKPIsUnknownMunicipality(t *testing.T) {
	_, err := newScorer(seeded()).ComputeGovernanceKPIs(context.Background(), 99, nil)
	assert.ErrorIs(t, err, sentinel.ErrInvalidScope)
}

func TestRankMunicipalities(t *testing.T) {
	ranking, err := newScorer(seeded()).RankMunicipalities(context.Background())
	require.NoError(t, err)
	require.Len(t, ranking, 3)

	assert.Equal(t, int64(1), ranking[0].MunicipalityID)
	assert.Equal(t, 61.0, ranking[0].Score)
	// tied municipalities keep the store's order
	assert.Equal(t, int64(2), ranking[1].MunicipalityID)
	assert.Equal(t, int64(3), ranking[2].MunicipalityID)
	assert.Equal(t, 20.0, ranking[2].Score)
	assert.Equal(t, "Goianésia", ranking[1].Name)
}

func TestRankMunicipalitiesPropagatesErrors(t *testing.T) {
	f := seeded()
	boom := errors.New("timeout")
	f.failList = boom
	_, err := newScorer(f).RankMunicipalities(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestUpsertGovernancePeriod(t *testing.T) {
	f := seeded()
	s := newScorer(f)

	rec, err := s.UpsertGovernancePeriod(context.Background(), 1, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-03", rec.Period)
	assert.Equal(t, 1, rec.TotalBiddings)
	assert.Equal(t, 1000.0, rec.TotalValue)
	assert.Equal(t, 100.0, rec.SuccessRate)
	assert.Equal(t, 5000.0, rec.HHI)

	feb := Period{Year: 2024, Month: time.February}
	rec, err = s.UpsertGovernancePeriod(context.Background(), 1, &feb)
	require.NoError(t, err)
	assert.Equal(t, 0.0, rec.SuccessRate)
	assert.Equal(t, 1, rec.TotalBiddings)

	// upserting again overwrites the same key
	_, err = s.UpsertGovernancePeriod(context.Background(), 1, &feb)
	require.NoError(t, err)
	assert.Len(t, f.records, 2)

	_, err = s.UpsertGovernancePeriod(context.Background(), 42, nil)
	assert.ErrorIs(t, err, sentinel.ErrInvalidScope)
}

func TestUpsertAllPeriods(t *testing.T) {
	f := seeded()
	recs, err := newScorer(f).UpsertAllPeriods(context.Background(), nil)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Len(t, f.records, 3)
	for _, r := range recs {
		assert.Equal(t, "2024-03", r.Period)
	}
}

func TestReport(t *testing.T) {
	feb := Period{Year: 2024, Month: time.February}
	rep, err := newScorer(seeded()).Report(context.Background(), 1, &feb)
	require.NoError(t, err)
	assert.Equal(t, "Anápolis", rep.Municipality.Name)
	assert.Equal(t, "2024-02", rep.Period)
	assert.Equal(t, 0.0, rep.KPIs.SuccessRate)
	assert.Equal(t, 61.0, rep.Score)
	assert.Equal(t, now, rep.GeneratedAt)
}
