package prices

import (
	"testing"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/stats"
	"github.com/farxc/licitacoes_analytics/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func points(values ...float64) []domain.PricePoint {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]domain.PricePoint, len(values))
	for i, v := range values {
		out[i] = domain.PricePoint{
			ItemID:         int64(i + 1),
			Description:    "PAPEL A4",
			UnitPrice:      v,
			PublishedAt:    base.AddDate(0, 0, i),
			MunicipalityID: 1,
		}
	}
	return out
}

func TestSummarizeEmpty(t *testing.T) {
	assert.Nil(t, Summarize(nil))
}

func TestSummarize(t *testing.T) {
	s := Summarize(points(10, 20, 30, 40))
	require.NotNil(t, s)
	assert.Equal(t, 25.0, s.Mean)
	assert.Equal(t, 25.0, s.Median)
	assert.Equal(t, 12.91, s.StdDev)
	assert.Equal(t, 12.5, s.Q1)
	assert.Equal(t, 37.5, s.Q3)
	assert.Equal(t, 25.0, s.IQR)
}

func TestCompareBands(t *testing.T) {
	s := PriceStats{Mean: 100, StdDev: 10}
	tests := []struct {
		value float64
		band  Band
	}{
		{125, BandFarAbove},
		{120, BandAbove},
		{115, BandAbove},
		{110, BandNormal},
		{100, BandNormal},
		{90, BandNormal},
		{85, BandBelow},
		{80, BandBelow},
		{75, BandFarBelow},
	}
	for _, tt := range tests {
		c := Compare(tt.value, s, 5)
		assert.Equal(t, tt.band, c.Band, "value=%v", tt.value)
	}
}

func TestCompareZeroMeanAndDeviation(t *testing.T) {
	c := Compare(50, PriceStats{}, 1)
	assert.Equal(t, 0.0, c.ZScore)
	assert.Equal(t, 0.0, c.DiffPercent)
	assert.Equal(t, BandNormal, c.Band)

	c = Compare(150, PriceStats{Mean: 100, StdDev: 0}, 3)
	assert.Equal(t, 50.0, c.DiffPercent)
	assert.Equal(t, BandNormal, c.Band)
}

func TestBenchmark(t *testing.T) {
	window := []domain.PricePoint{
		{MunicipalityID: 7, UnitPrice: 30},
		{MunicipalityID: 7, UnitPrice: 50},
		{MunicipalityID: 3, UnitPrice: 10},
		{MunicipalityID: 9, UnitPrice: 40},
	}
	overall, rows := Benchmark(window)

	// group means 40, 10, 40 -> mean of means 30
	assert.Equal(t, 30.0, overall)
	require.Len(t, rows, 3)
	assert.Equal(t, int64(3), rows[0].MunicipalityID)
	assert.Equal(t, -66.67, rows[0].DiffPercent)
	// equal means keep encounter order
	assert.Equal(t, int64(7), rows[1].MunicipalityID)
	assert.Equal(t, 2, rows[1].ItemCount)
	assert.Equal(t, int64(9), rows[2].MunicipalityID)
	assert.Equal(t, 33.33, rows[2].DiffPercent)
}

func TestBenchmarkEmpty(t *testing.T) {
	overall, rows := Benchmark(nil)
	assert.Equal(t, 0.0, overall)
	assert.Empty(t, rows)
}

func TestOutliers(t *testing.T) {
	window := points(10, 11, 12, 13, 14, 15, 100, 0.5)
	out := Outliers(window)

	s := Summarize(window)
	require.NotNil(t, s)
	lower, upper := stats.IQRBounds(s.Q1, s.Q3)

	require.Len(t, out, 2)
	for _, o := range out {
		assert.True(t, o.Value < lower || o.Value > upper)
	}
	assert.Equal(t, OutlierAbove, out[0].Kind)
	assert.Equal(t, 100.0, out[0].Value)
	assert.Equal(t, OutlierBelow, out[1].Kind)
}

func TestOutliersNeverFlagInsideFences(t *testing.T) {
	window := points(5, 7, 9, 11, 13, 15, 17, 19, 21, 90)
	s := Summarize(window)
	require.NotNil(t, s)
	lower, upper := stats.IQRBounds(s.Q1, s.Q3)

	flagged := map[int64]bool{}
	for _, o := range Outliers(window) {
		flagged[o.ItemID] = true
	}
	for _, p := range window {
		if p.UnitPrice > lower && p.UnitPrice < upper {
			assert.False(t, flagged[p.ItemID], "value %v flagged", p.UnitPrice)
		}
	}
}

func TestOutliersSmallWindowFallback(t *testing.T) {
	// with fewer than four points the fences enclose min and max
	assert.Empty(t, Outliers(points(1, 500, 1000)))
}

func TestReference(t *testing.T) {
	price, interval := Reference(PriceStats{Median: 50, StdDev: 20})
	assert.Equal(t, 50.0, price)
	assert.Equal(t, Interval{Min: 30, Max: 70}, interval)

	_, interval = Reference(PriceStats{Median: 10, StdDev: 25})
	assert.Equal(t, 0.0, interval.Min)
	assert.Equal(t, 35.0, interval.Max)
}

func TestTrendOrdersByDate(t *testing.T) {
	window := points(20, 20, 20, 10, 10, 10)
	// reverse the dates so ordering by date yields a rising series
	for i := range window {
		window[i].PublishedAt = window[i].PublishedAt.AddDate(0, 0, -2*i)
	}
	tr := Trend(window)
	require.NotNil(t, tr)
	assert.Equal(t, 100.0, tr.ChangePercent)
	assert.Equal(t, stats.Rising, tr.Direction)

	assert.Nil(t, Trend(points(10)))
}

func TestTimeline(t *testing.T) {
	window := points(3, 1, 2)
	window[0].PublishedAt = window[2].PublishedAt.AddDate(0, 0, 1)

	tl := Timeline(window)
	require.Len(t, tl, 3)
	assert.Equal(t, []float64{1, 2, 3}, []float64{tl[0].Value, tl[1].Value, tl[2].Value})
}

func TestTruncateRunes(t *testing.T) {
	assert.Equal(t, "ção", truncate("ção123", 3))
	assert.Equal(t, "abc", truncate("abc", 10))
}
