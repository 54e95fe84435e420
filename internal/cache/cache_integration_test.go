//go:build integration

package cache

import (
	"context"
	"testing"

	"github.com/farxc/licitacoes_analytics/internal/metrics"
	"github.com/farxc/licitacoes_analytics/internal/testutil/containers"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheAgainstRedis(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	m := metrics.New(prometheus.NewRegistry())
	c := New(rc.Client, nil, m)

	calls := 0
	load := func(context.Context) (map[string]float64, error) {
		calls++
		return map[string]float64{"score": 71.5}, nil
	}

	for range 3 {
		got, err := GetOrLoad(ctx, c, "governanca:ranking", TTLMedium, load)
		require.NoError(t, err)
		assert.Equal(t, 71.5, got["score"])
	}
	assert.Equal(t, 1, calls)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))

	ttl, err := rc.Client.TTL(ctx, "lap:governanca:ranking").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl.Seconds(), 0.0)

	c.Set(ctx, PriceStatisticsKey("papel a4", 24), 1, TTLShort)
	c.Set(ctx, PriceStatisticsKey("toner", 6), 2, TTLShort)
	c.ClearPattern(ctx, PatternPriceStatistics)

	var v int
	assert.False(t, c.Get(ctx, PriceStatisticsKey("papel a4", 24), &v))
	assert.False(t, c.Get(ctx, PriceStatisticsKey("toner", 6), &v))
	assert.True(t, c.Get(ctx, "governanca:ranking", &map[string]float64{}))
}
