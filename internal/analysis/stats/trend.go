package stats

import (
	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"gonum.org/v1/gonum/stat"
)

type Direction string

const (
	Rising  Direction = "subindo"
	Falling Direction = "descendo"
	Stable  Direction = "estavel"
)

// trendThreshold is the percent change beyond which a series stops being
// stable.
const trendThreshold = 10.0

// Trend compares the mean of the first half of a series with the second.
type Trend struct {
	FirstHalfMean  float64   `json:"preco_medio_inicio"`
	SecondHalfMean float64   `json:"preco_medio_fim"`
	ChangePercent  float64   `json:"variacao_percentual"`
	Direction      Direction `json:"direcao"`
}

// TrendSplit splits a time ordered series at len/2 and reports the percent
// change between the means of both halves.
func TrendSplit(xs []float64) (Trend, error) {
	if len(xs) < 2 {
		return Trend{}, sentinel.ErrInsufficientData
	}
	mid := len(xs) / 2
	first := stat.Mean(xs[:mid], nil)
	second := stat.Mean(xs[mid:], nil)

	var change float64
	if first != 0 {
		change = (second - first) / first * 100
	}
	return Trend{
		FirstHalfMean:  first,
		SecondHalfMean: second,
		ChangePercent:  change,
		Direction:      Classify(change),
	}, nil
}

// Classify maps a percent change to a trend direction.
func Classify(changePercent float64) Direction {
	switch {
	case changePercent > trendThreshold:
		return Rising
	case changePercent < -trendThreshold:
		return Falling
	default:
		return Stable
	}
}
