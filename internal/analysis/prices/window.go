// Package prices turns windows of historical unit prices into statistics,
// comparisons, regional benchmarks, outlier lists and reference prices.
package prices

import (
	"sort"
	"time"

	"github.com/farxc/licitacoes_analytics/internal/analysis/stats"
	"github.com/farxc/licitacoes_analytics/internal/domain"
)

// PriceStats is the rounded statistical summary of a price window.
type PriceStats struct {
	Mean   float64 `json:"media"`
	Median float64 `json:"mediana"`
	StdDev float64 `json:"desvio_padrao"`
	Min    float64 `json:"minimo"`
	Max    float64 `json:"maximo"`
	Q1     float64 `json:"q1"`
	Q3     float64 `json:"q3"`
	IQR    float64 `json:"iqr"`
}

// Summarize returns nil for an empty window.
func Summarize(window []domain.PricePoint) *PriceStats {
	values := unitPrices(window)
	s, err := stats.Describe(values)
	if err != nil {
		return nil
	}
	q1, q3, err := stats.Quartiles(values)
	if err != nil {
		return nil
	}
	return &PriceStats{
		Mean:   stats.Round(s.Mean),
		Median: stats.Round(s.Median),
		StdDev: stats.Round(s.StdDev),
		Min:    stats.Round(s.Min),
		Max:    stats.Round(s.Max),
		Q1:     stats.Round(q1),
		Q3:     stats.Round(q3),
		IQR:    stats.Round(q3 - q1),
	}
}

type Band string

const (
	BandFarAbove Band = "muito_acima"
	BandAbove    Band = "acima"
	BandNormal   Band = "normal"
	BandBelow    Band = "abaixo"
	BandFarBelow Band = "muito_abaixo"
)

// Comparison places a single price against a window summary.
type Comparison struct {
	ZScore      float64 `json:"z_score"`
	DiffPercent float64 `json:"diferenca_percentual"`
	Band        Band    `json:"classificacao"`
	Count       int     `json:"total_registros"`
}

// Compare scores value against the summary of a window with count entries.
func Compare(value float64, s PriceStats, count int) Comparison {
	z := stats.ZScore(value, s.Mean, s.StdDev)
	var diff float64
	if s.Mean > 0 {
		diff = (value - s.Mean) / s.Mean * 100
	}
	return Comparison{
		ZScore:      stats.Round(z),
		DiffPercent: stats.Round(diff),
		Band:        classify(z),
		Count:       count,
	}
}

func classify(z float64) Band {
	switch {
	case z > 2:
		return BandFarAbove
	case z > 1:
		return BandAbove
	case z < -2:
		return BandFarBelow
	case z < -1:
		return BandBelow
	default:
		return BandNormal
	}
}

// MunicipalityPrice is one row of a regional benchmark.
type MunicipalityPrice struct {
	MunicipalityID int64   `json:"municipio_id"`
	MeanPrice      float64 `json:"preco_medio"`
	ItemCount      int     `json:"total_itens"`
	DiffPercent    float64 `json:"diferenca_media_geral"`
}

// Benchmark groups the window by municipality and compares each group mean
// with the mean of all group means. Rows are ordered by ascending price.
func Benchmark(window []domain.PricePoint) (overall float64, rows []MunicipalityPrice) {
	type acc struct {
		sum   float64
		count int
	}
	var order []int64
	groups := make(map[int64]*acc)
	for _, p := range window {
		g, ok := groups[p.MunicipalityID]
		if !ok {
			g = &acc{}
			groups[p.MunicipalityID] = g
			order = append(order, p.MunicipalityID)
		}
		g.sum += p.UnitPrice
		g.count++
	}
	if len(order) == 0 {
		return 0, []MunicipalityPrice{}
	}

	means := make([]float64, len(order))
	for i, id := range order {
		means[i] = groups[id].sum / float64(groups[id].count)
	}
	s, _ := stats.Describe(means)
	overall = s.Mean

	rows = make([]MunicipalityPrice, len(order))
	for i, id := range order {
		var diff float64
		if overall != 0 {
			diff = (means[i] - overall) / overall * 100
		}
		rows[i] = MunicipalityPrice{
			MunicipalityID: id,
			MeanPrice:      stats.Round(means[i]),
			ItemCount:      groups[id].count,
			DiffPercent:    stats.Round(diff),
		}
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].MeanPrice < rows[j].MeanPrice })
	return stats.Round(overall), rows
}

const (
	OutlierAbove = "acima"
	OutlierBelow = "abaixo"
)

// Outlier is a price that falls outside the window's IQR fences.
type Outlier struct {
	ItemID         int64   `json:"item_id"`
	Description    string  `json:"descricao"`
	Value          float64 `json:"valor"`
	ControlNumber  string  `json:"numero_controle_pncp"`
	MunicipalityID int64   `json:"municipio_id"`
	Kind           string  `json:"tipo_outlier"`
	Lower          float64 `json:"limite_inferior"`
	Upper          float64 `json:"limite_superior"`
}

// Outliers lists every point strictly outside the fences computed from the
// window's own quartiles.
func Outliers(window []domain.PricePoint) []Outlier {
	s := Summarize(window)
	if s == nil {
		return []Outlier{}
	}
	lower, upper := stats.IQRBounds(s.Q1, s.Q3)

	out := []Outlier{}
	for _, p := range window {
		if p.UnitPrice >= lower && p.UnitPrice <= upper {
			continue
		}
		kind := OutlierBelow
		if p.UnitPrice > upper {
			kind = OutlierAbove
		}
		out = append(out, Outlier{
			ItemID:         p.ItemID,
			Description:    truncate(p.Description, 100),
			Value:          p.UnitPrice,
			ControlNumber:  p.BiddingControlNo,
			MunicipalityID: p.MunicipalityID,
			Kind:           kind,
			Lower:          stats.Round(lower),
			Upper:          stats.Round(upper),
		})
	}
	return out
}

// Interval is a closed price range.
type Interval struct {
	Min float64 `json:"minimo"`
	Max float64 `json:"maximo"`
}

// Reference suggests the window median as the reference price, bounded by
// one standard deviation on each side and never below zero.
func Reference(s PriceStats) (float64, Interval) {
	lo := s.Median - s.StdDev
	if lo < 0 {
		lo = 0
	}
	return s.Median, Interval{Min: stats.Round(lo), Max: stats.Round(s.Median + s.StdDev)}
}

// Trend classifies the window ordered by publication date. It returns nil
// when the window holds fewer than two points.
func Trend(window []domain.PricePoint) *stats.Trend {
	ordered := byDate(window)
	values := unitPrices(ordered)
	tr, err := stats.TrendSplit(values)
	if err != nil {
		return nil
	}
	tr.FirstHalfMean = stats.Round(tr.FirstHalfMean)
	tr.SecondHalfMean = stats.Round(tr.SecondHalfMean)
	tr.ChangePercent = stats.Round(tr.ChangePercent)
	return &tr
}

// TimelinePoint is a single dated price for charting.
type TimelinePoint struct {
	ItemID         int64     `json:"item_id"`
	Value          float64   `json:"valor"`
	Date           time.Time `json:"data"`
	ControlNumber  string    `json:"numero_controle_pncp"`
	MunicipalityID int64     `json:"municipio_id"`
}

// Timeline returns the window ordered by publication date.
func Timeline(window []domain.PricePoint) []TimelinePoint {
	ordered := byDate(window)
	out := make([]TimelinePoint, len(ordered))
	for i, p := range ordered {
		out[i] = TimelinePoint{
			ItemID:         p.ItemID,
			Value:          p.UnitPrice,
			Date:           p.PublishedAt,
			ControlNumber:  p.BiddingControlNo,
			MunicipalityID: p.MunicipalityID,
		}
	}
	return out
}

func unitPrices(window []domain.PricePoint) []float64 {
	out := make([]float64, len(window))
	for i, p := range window {
		out[i] = p.UnitPrice
	}
	return out
}

func byDate(window []domain.PricePoint) []domain.PricePoint {
	out := make([]domain.PricePoint, len(window))
	copy(out, window)
	sort.SliceStable(out, func(i, j int) bool { return out[i].PublishedAt.Before(out[j].PublishedAt) })
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
