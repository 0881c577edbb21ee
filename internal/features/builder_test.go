package features

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/advisoryengine/internal/normalize"
	"github.com/sawpanic/advisoryengine/internal/tickcache"
)

func decimalRaw(fields map[string]interface{}) map[string]interface{} {
	fields["_metadata"] = map[string]interface{}{"percentage_format": "decimal"}
	return fields
}

func TestBuildColdStartAllAbsent(t *testing.T) {
	cache := tickcache.New(0)
	now := time.Now()

	raw := decimalRaw(map[string]interface{}{
		"price":        50000.0,
		"volume_24h":   1e5,
		"funding_rate": 1e-4,
		"timestamp":    now,
	})

	snap, err := Build("BTCUSDT", raw, cache, normalize.PolicyWarn, now)
	require.NoError(t, err)

	assert.Nil(t, snap.Price.Change5m)
	assert.Nil(t, snap.Price.Change15m)
	assert.Nil(t, snap.Price.Change1h)
	assert.Nil(t, snap.Price.Change6h)
	assert.True(t, snap.Coverage.MissingWindows[tickcache.Window5m])
	assert.True(t, snap.Coverage.MissingWindows[tickcache.Window15m])
	assert.True(t, snap.Coverage.MissingWindows[tickcache.Window1h])
	assert.True(t, snap.Coverage.MissingWindows[tickcache.Window6h])
	assert.False(t, snap.Coverage.ShortEvaluable)
	assert.False(t, snap.Coverage.MediumEvaluable)
	assert.True(t, snap.HasCoreFields())
}

func TestBuildNeverZeroImpersonates(t *testing.T) {
	cache := tickcache.New(0)
	now := time.Now()
	raw := decimalRaw(map[string]interface{}{
		"price":        50000.0,
		"volume_24h":   1e5,
		"funding_rate": 1e-4,
		"timestamp":    now,
	})
	snap, err := Build("BTCUSDT", raw, cache, normalize.PolicyWarn, now)
	require.NoError(t, err)
	assert.Nil(t, snap.Price.Change1h, "absent field must stay nil, never 0")
}

func TestBuildDirectFieldsPassThrough(t *testing.T) {
	cache := tickcache.New(0)
	now := time.Now()
	raw := decimalRaw(map[string]interface{}{
		"price":              50000.0,
		"volume_24h":         1e5,
		"funding_rate":       1e-4,
		"price_change_1h":    0.025,
		"oi_change_1h":       0.06,
		"taker_imbalance_1h": 0.75,
		"timestamp":          now,
	})
	snap, err := Build("BTCUSDT", raw, cache, normalize.PolicyWarn, now)
	require.NoError(t, err)
	require.NotNil(t, snap.Price.Change1h)
	assert.InDelta(t, 0.025, *snap.Price.Change1h, 1e-9)
	require.NotNil(t, snap.OpenInterest.Change1h)
	assert.InDelta(t, 0.06, *snap.OpenInterest.Change1h, 1e-9)
	assert.True(t, snap.Coverage.MediumEvaluable)
	assert.Nil(t, snap.Price.Change6h)
	assert.True(t, snap.Coverage.MissingWindows[tickcache.Window6h])
}

func TestBuildDerivesFromCacheWhenFieldAbsent(t *testing.T) {
	cache := tickcache.New(0)
	base := time.Now().Add(-time.Hour)
	cache.Insert("ETHUSDT", base, map[string]interface{}{"price": 2000.0, "open_interest": 1000.0})

	now := base.Add(time.Hour)
	raw := decimalRaw(map[string]interface{}{
		"price":        2200.0,
		"volume_24h":   1e5,
		"funding_rate": 1e-4,
		"timestamp":    now,
	})
	snap, err := Build("ETHUSDT", raw, cache, normalize.PolicyWarn, now)
	require.NoError(t, err)
	require.NotNil(t, snap.Price.Change1h)
	assert.InDelta(t, 0.10, *snap.Price.Change1h, 1e-9)
}

func TestBuildAttachesNormalizeTrace(t *testing.T) {
	cache := tickcache.New(0)
	now := time.Now()
	raw := decimalRaw(map[string]interface{}{
		"price":           50000.0,
		"volume_24h":      1e5,
		"funding_rate":    1e-4,
		"price_change_1h": 0.025,
		"timestamp":       now,
	})
	snap, err := Build("BTCUSDT", raw, cache, normalize.PolicyWarn, now)
	require.NoError(t, err)
	require.NotNil(t, snap.Metadata.NormalizeTrace, "the normalizer's trace must reach the snapshot, not be discarded")
	assert.Contains(t, snap.Metadata.NormalizeTrace.Converted, "price_change_1h")
	assert.Equal(t, normalize.FormatDecimal, snap.Metadata.NormalizeTrace.InputFormat)
}

func TestBuildShortEvaluableRequiresAllThreeAxes(t *testing.T) {
	cache := tickcache.New(0)
	now := time.Now()
	base15 := now.Add(-15 * time.Minute)
	cache.Insert("BTCUSDT", base15, map[string]interface{}{"price": 100.0})
	cache.Insert("BTCUSDT", now.Add(-5*time.Minute), map[string]interface{}{"price": 101.0})

	raw := decimalRaw(map[string]interface{}{
		"price":               105.0,
		"volume_24h":          1e5,
		"funding_rate":        1e-4,
		"taker_imbalance_15m": 0.4,
		"volume_ratio_15m":    1.2,
		"timestamp":           now,
	})
	snap, err := Build("BTCUSDT", raw, cache, normalize.PolicyWarn, now)
	require.NoError(t, err)
	assert.True(t, snap.Coverage.ShortEvaluable)
}
