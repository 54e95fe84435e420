package governance

import (
	"testing"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func str(s string) *string      { return &s }
func num(v float64) *float64    { return &v }
func at(t time.Time) *time.Time { return &t }

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func completeBidding() domain.Bidding {
	return domain.Bidding{
		Object:            str("Aquisição de papel"),
		EstimatedTotal:    num(1000),
		PublishedAt:       at(day(2024, 3, 1)),
		ProposalOpeningAt: at(day(2024, 3, 10)),
		ModalityName:      str("Pregão"),
		LegalBasisName:    str("Lei 14.133/2021"),
		OriginSystemLink:  str("https://example.gov.br/1"),
	}
}

func TestTransparencyIndex(t *testing.T) {
	assert.Equal(t, 0.0, TransparencyIndex(nil))

	full := completeBidding()
	half := domain.Bidding{Object: str("x"), ModalityName: str(""), PublishedAt: at(day(2024, 1, 1))}
	// 7 + 2 filled fields out of 14
	assert.InDelta(t, 9.0/14*100, TransparencyIndex([]domain.Bidding{full, half}), 1e-9)
	assert.Equal(t, 100.0, TransparencyIndex([]domain.Bidding{full}))
}

func TestSuccessRate(t *testing.T) {
	march := Period{Year: 2024, Month: time.March}
	bs := []domain.Bidding{
		{HasResult: true, PublishedAt: at(day(2024, 3, 5))},
		{HasResult: false, PublishedAt: at(day(2024, 3, 31))},
		{HasResult: true, PublishedAt: at(day(2024, 4, 1))},
		{HasResult: true},
	}
	assert.Equal(t, 75.0, SuccessRate(bs, nil))
	assert.Equal(t, 50.0, SuccessRate(bs, &march))
	assert.Equal(t, 0.0, SuccessRate(nil, nil))

	empty := Period{Year: 2020, Month: time.January}
	assert.Equal(t, 0.0, SuccessRate(bs, &empty))
}

func TestAverageCycleDays(t *testing.T) {
	pub := day(2024, 1, 1)
	bs := []domain.Bidding{
		{HasResult: true, PublishedAt: at(pub), LastUpdatedAt: at(pub.AddDate(0, 0, 10))},
		{HasResult: true, PublishedAt: at(pub), LastUpdatedAt: at(pub.AddDate(0, 0, 15).Add(12 * time.Hour))},
		{HasResult: true, PublishedAt: at(pub), LastUpdatedAt: at(pub.Add(5 * time.Hour))},
		{HasResult: false, PublishedAt: at(pub), LastUpdatedAt: at(pub.AddDate(0, 0, 90))},
		{HasResult: true, PublishedAt: at(pub)},
	}
	// (10 + 15) / 2 floored
	assert.Equal(t, 12, AverageCycleDays(bs))
	assert.Equal(t, 0, AverageCycleDays(nil))
}

func TestMEEPPShare(t *testing.T) {
	assert.Equal(t, 0.0, MEEPPShare(WinCounts{}))
	assert.Equal(t, 25.0, MEEPPShare(WinCounts{Total: 8, MEEPP: 2}))
}

func TestAverageSavings(t *testing.T) {
	bs := []domain.Bidding{
		{EstimatedTotal: num(100), HomologatedTotal: num(80)},
		{EstimatedTotal: num(200), HomologatedTotal: num(220)},
		{EstimatedTotal: num(0), HomologatedTotal: num(10)},
		{EstimatedTotal: num(50)},
	}
	// (20 + -10) / 2
	assert.InDelta(t, 5.0, AverageSavings(bs), 1e-9)
	assert.Equal(t, 0.0, AverageSavings(nil))
}

func TestCompositeScore(t *testing.T) {
	k := KPIs{
		TransparencyIndex: 80,
		SuccessRate:       60,
		HHI:               2500,
		MEEPPShare:        40,
		AverageSavings:    150,
	}
	// 24 + 15 + 15 + 6 + 10
	assert.Equal(t, 70.0, CompositeScore(k))

	k.AverageSavings = -20
	k.HHI = 12000
	// savings and hhi terms clamp to zero
	assert.Equal(t, 45.0, CompositeScore(k))
}

func TestCompositeScoreWithoutBiddings(t *testing.T) {
	k := KPIs{
		TransparencyIndex: TransparencyIndex(nil),
		SuccessRate:       SuccessRate(nil, nil),
		HHI:               ConcentrationHHI(nil),
		MEEPPShare:        MEEPPShare(WinCounts{}),
		AverageSavings:    AverageSavings(nil),
	}
	assert.Equal(t, 0.0, k.TransparencyIndex)
	assert.Equal(t, 0.0, k.SuccessRate)
	assert.Equal(t, 0.0, k.MEEPPShare)
	assert.Equal(t, 20.0, CompositeScore(k))
}

func TestParsePeriod(t *testing.T) {
	p, err := ParsePeriod("2024-12")
	require.NoError(t, err)
	assert.Equal(t, "2024-12", p.String())

	start, end := p.Bounds()
	assert.Equal(t, day(2024, 12, 1), start)
	assert.Equal(t, day(2025, 1, 1), end)
	assert.True(t, p.Contains(day(2024, 12, 31)))
	assert.False(t, p.Contains(end))

	_, err = ParsePeriod("2024-13")
	assert.ErrorIs(t, err, sentinel.ErrInvalidPeriod)
	_, err = ParsePeriod("março")
	assert.ErrorIs(t, err, sentinel.ErrInvalidPeriod)
}

func TestCurrentPeriod(t *testing.T) {
	p := CurrentPeriod(time.Date(2024, 2, 29, 23, 0, 0, 0, time.UTC))
	assert.Equal(t, "2024-02", p.String())
}
