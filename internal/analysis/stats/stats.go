// Package stats holds the numeric kernel shared by the price, anomaly and
// governance analyses. Every function is pure.
package stats

import (
	"math"
	"sort"

	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary holds the descriptive statistics of a sample.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	StdDev float64 `json:"std_dev"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// Describe computes mean, median, sample standard deviation and extrema.
// The standard deviation of a single observation is 0.
func Describe(xs []float64) (Summary, error) {
	if len(xs) == 0 {
		return Summary{}, sentinel.ErrInsufficientData
	}

	s := Summary{
		Count:  len(xs),
		Mean:   stat.Mean(xs, nil),
		Median: median(sorted(xs)),
		Min:    floats.Min(xs),
		Max:    floats.Max(xs),
	}
	if len(xs) > 1 {
		s.StdDev = stat.StdDev(xs, nil)
	}
	return s, nil
}

// Median returns the middle value, averaging the two central values for an
// even sample.
func Median(xs []float64) (float64, error) {
	if len(xs) == 0 {
		return 0, sentinel.ErrInsufficientData
	}
	return median(sorted(xs)), nil
}

// Quartiles returns Q1 and Q3 using the exclusive method with four cut
// points. Samples smaller than four fall back to min and max.
func Quartiles(xs []float64) (q1, q3 float64, err error) {
	if len(xs) == 0 {
		return 0, 0, sentinel.ErrInsufficientData
	}
	data := sorted(xs)
	if len(data) < 4 {
		return data[0], data[len(data)-1], nil
	}
	return exclusiveCut(data, 1), exclusiveCut(data, 3), nil
}

// exclusiveCut interpolates the i-th of four cut points over sorted data,
// with positions taken from (n+1)*i/4.
func exclusiveCut(data []float64, i int) float64 {
	const parts = 4
	n := len(data)
	m := n + 1
	j := i * m / parts
	if j < 1 {
		j = 1
	} else if j > n-1 {
		j = n - 1
	}
	delta := i*m - j*parts
	return (data[j-1]*float64(parts-delta) + data[j]*float64(delta)) / parts
}

// IQRBounds returns the Tukey fences for the given quartiles.
func IQRBounds(q1, q3 float64) (lower, upper float64) {
	iqr := q3 - q1
	return q1 - 1.5*iqr, q3 + 1.5*iqr
}

// ZScore returns how many standard deviations v lies from mean, or 0 when
// the deviation is zero.
func ZScore(v, mean, stdDev float64) float64 {
	if stdDev == 0 {
		return 0
	}
	return (v - mean) / stdDev
}

// HHI is the Herfindahl-Hirschman index of the given market values, in the
// range 0-10000.
func HHI(values []float64) float64 {
	total := floats.Sum(values)
	if total == 0 {
		return 0
	}
	var hhi float64
	for _, v := range values {
		share := v / total * 100
		hhi += share * share
	}
	return hhi
}

// Round rounds v to two decimal places.
func Round(v float64) float64 {
	return math.Round(v*100) / 100
}

func sorted(xs []float64) []float64 {
	out := make([]float64, len(xs))
	copy(out, xs)
	sort.Float64s(out)
	return out
}

func median(data []float64) float64 {
	n := len(data)
	if n%2 == 1 {
		return data[n/2]
	}
	return (data[n/2-1] + data[n/2]) / 2
}
