package stats

import (
	"math/rand"
	"testing"

	"github.com/farxc/licitacoes_analytics/internal/sentinel"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	s, err := Describe([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	require.NoError(t, err)

	assert.Equal(t, 8, s.Count)
	assert.InDelta(t, 5.0, s.Mean, 1e-9)
	assert.InDelta(t, 4.5, s.Median, 1e-9)
	// sample stdev: sqrt(32/7)
	assert.InDelta(t, 2.138089935, s.StdDev, 1e-6)
	assert.Equal(t, 2.0, s.Min)
	assert.Equal(t, 9.0, s.Max)
}

func TestDescribeSingleSample(t *testing.T) {
	s, err := Describe([]float64{42})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.StdDev)
	assert.Equal(t, 42.0, s.Median)
}

func TestDescribeEmpty(t *testing.T) {
	_, err := Describe(nil)
	assert.ErrorIs(t, err, sentinel.ErrInsufficientData)

	_, err = Median([]float64{})
	assert.ErrorIs(t, err, sentinel.ErrInsufficientData)
}

func TestDescribeDoesNotReorderInput(t *testing.T) {
	xs := []float64{3, 1, 2}
	_, err := Describe(xs)
	require.NoError(t, err)
	assert.Equal(t, []float64{3, 1, 2}, xs)
}

func TestQuartiles(t *testing.T) {
	tests := []struct {
		name   string
		input  []float64
		q1, q3 float64
	}{
		{"four values", []float64{1, 2, 3, 4}, 1.25, 3.75},
		{"odd count", []float64{1, 2, 3, 4, 5, 6, 7}, 2, 6},
		{"unsorted", []float64{10, 1, 7, 3, 5, 9}, 2.5, 9.25},
		{"fallback below four", []float64{5, 1, 3}, 1, 5},
		{"single value", []float64{8}, 8, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q1, q3, err := Quartiles(tt.input)
			require.NoError(t, err)
			assert.InDelta(t, tt.q1, q1, 1e-9)
			assert.InDelta(t, tt.q3, q3, 1e-9)
		})
	}
}

func TestQuartilesEmpty(t *testing.T) {
	_, _, err := Quartiles(nil)
	assert.ErrorIs(t, err, sentinel.ErrInsufficientData)
}

func TestQuartilesBracketMedian(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for n := 1; n <= 40; n++ {
		xs := make([]float64, n)
		for i := range xs {
			xs[i] = rng.Float64()*1000 + 1
		}
		q1, q3, err := Quartiles(xs)
		require.NoError(t, err)
		m, err := Median(xs)
		require.NoError(t, err)

		assert.LessOrEqual(t, q1, m, "n=%d", n)
		assert.LessOrEqual(t, m, q3, "n=%d", n)

		lower, upper := IQRBounds(q1, q3)
		assert.LessOrEqual(t, lower, q1)
		assert.GreaterOrEqual(t, upper, q3)
	}
}

func TestIQRBounds(t *testing.T) {
	lower, upper := IQRBounds(10, 20)
	assert.Equal(t, -5.0, lower)
	assert.Equal(t, 35.0, upper)
}

func TestZScore(t *testing.T) {
	assert.Equal(t, 0.0, ZScore(10, 10, 3))
	assert.Equal(t, 0.0, ZScore(10, 10, 0))
	assert.Equal(t, 0.0, ZScore(50, 10, 0))
	assert.InDelta(t, 2.0, ZScore(16, 10, 3), 1e-9)
	assert.InDelta(t, -1.5, ZScore(5.5, 10, 3), 1e-9)
}

func TestHHI(t *testing.T) {
	assert.Equal(t, 10000.0, HHI([]float64{1234.5}))
	assert.Equal(t, 5000.0, HHI([]float64{50, 50}))
	assert.Equal(t, 0.0, HHI(nil))
	assert.Equal(t, 0.0, HHI([]float64{0, 0}))
	assert.InDelta(t, 3800.0, HHI([]float64{20, 30, 50}), 1e-9)
}

func TestRound(t *testing.T) {
	assert.Equal(t, 66.67, Round(66.6666))
	assert.Equal(t, 1.5, Round(1.499999))
	assert.Equal(t, -3.14, Round(-3.14159))
}
