package gate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/advisoryengine/internal/decision"
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/state"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

func testThresholds(t *testing.T) *thresholds.Thresholds {
	t.Helper()
	th, err := thresholds.CompileBytes([]byte(`
market_regime:
  extreme_price_change_1h: 0.05
  trend_price_change_6h: 0.02
risk_exposure:
  liquidation: {price_change: 0.03, oi_drop: 0.02}
  crowding: {funding_abs: 0.01, oi_growth: 0.05}
  extreme_volume: {volume_ratio: 5.0}
trade_quality:
  absorption: {imbalance: 0.6, volume_ratio: 0.5}
  noise: {funding_volatility: 0.0005, funding_abs: 0.0005}
  rotation: {volume_ratio: 0.8, price_change: 0.01}
  range_weak: {volume_ratio: 0.8, price_change: 0.01}
direction:
  trend: {long_imbalance: 0.3, short_imbalance: -0.3, oi_growth: 0.02, price_change: 0.01}
  range:
    short_term_opportunity: {imbalance: 0.4, price_change: 0.01, volume_ratio: 1.5}
confidence_scoring:
  caps: {uncertain_quality_hybrid: high, uncertain_quality_legacy: medium, hybrid_mode: true}
dual_timeframe:
  short_term: {required_signals: 2}
  conflict_resolution: FOLLOW_MEDIUM_TERM
  frequency_control:
    short_cooldown_seconds: 1800
    medium_cooldown_seconds: 7200
    short_min_interval_seconds: 600
    medium_min_interval_seconds: 1800
`))
	require.NoError(t, err)
	return th
}

func longDraft() decision.Draft {
	return decision.Draft{
		Decision:            decision.Long,
		Confidence:          thresholds.High,
		ExecutionPermission: decision.Allow,
	}
}

func shortDraft() decision.Draft {
	return decision.Draft{
		Decision:            decision.Short,
		Confidence:          thresholds.High,
		ExecutionPermission: decision.Allow,
	}
}

// TestGateFirstTickExecutable covers the first half of S3: the opening
// tick for a fresh (symbol, timeframe) key is always executable.
func TestGateFirstTickExecutable(t *testing.T) {
	th := testThresholds(t)
	store := state.NewMemoryStore()
	t0 := time.Now()

	final := Apply(longDraft(), "BTCUSDT", decision.ShortTerm, t0, th, store)
	assert.True(t, final.Executable)
	assert.False(t, final.FrequencyControl.IsCooling)

	gotDir, ok := store.GetLastDirection("BTCUSDT", decision.ShortTerm)
	require.True(t, ok)
	assert.Equal(t, decision.Long, gotDir)
}

// TestGateCooldownBlocksRepeatedDirection implements S3.
func TestGateCooldownBlocksRepeatedDirection(t *testing.T) {
	th := testThresholds(t)
	store := state.NewMemoryStore()
	t0 := time.Now()

	first := Apply(longDraft(), "BTCUSDT", decision.ShortTerm, t0, th, store)
	require.True(t, first.Executable)

	t1 := t0.Add(60 * time.Second)
	second := Apply(longDraft(), "BTCUSDT", decision.ShortTerm, t1, th, store)

	assert.Equal(t, decision.Long, second.Decision, "signal direction must be preserved under blocking")
	assert.False(t, second.Executable)
	assert.True(t, second.FrequencyControl.IsCooling)
	assert.Contains(t, second.FrequencyControl.AddedTags, reasontag.FrequencyCooling)

	gotTime, _ := store.GetLastTime("BTCUSDT", decision.ShortTerm)
	assert.Equal(t, t0, gotTime, "store must be unchanged by a blocked tick")
}

// TestGateDirectionFlipAllowedAfterMinInterval implements S4.
func TestGateDirectionFlipAllowedAfterMinInterval(t *testing.T) {
	th := testThresholds(t)
	store := state.NewMemoryStore()
	t0 := time.Now()

	Apply(longDraft(), "BTCUSDT", decision.ShortTerm, t0, th, store)

	t1 := t0.Add(700 * time.Second)
	flipped := Apply(shortDraft(), "BTCUSDT", decision.ShortTerm, t1, th, store)

	assert.Equal(t, decision.Short, flipped.Decision)
	assert.True(t, flipped.Executable)
	assert.Contains(t, flipped.FrequencyControl.AddedTags, reasontag.DirectionFlip)
	assert.False(t, flipped.FrequencyControl.MinIntervalViolated)

	gotDir, _ := store.GetLastDirection("BTCUSDT", decision.ShortTerm)
	assert.Equal(t, decision.Short, gotDir, "store must be updated after an allowed flip")
}

// TestGateDirectionFlipBlockedWithinMinInterval covers the blocking half
// of the min-interval rule: a flip attempted too soon is denied and
// tagged, but the signal itself is preserved.
func TestGateDirectionFlipBlockedWithinMinInterval(t *testing.T) {
	th := testThresholds(t)
	store := state.NewMemoryStore()
	t0 := time.Now()

	Apply(longDraft(), "BTCUSDT", decision.ShortTerm, t0, th, store)

	t1 := t0.Add(120 * time.Second)
	flipped := Apply(shortDraft(), "BTCUSDT", decision.ShortTerm, t1, th, store)

	assert.Equal(t, decision.Short, flipped.Decision)
	assert.False(t, flipped.Executable)
	assert.True(t, flipped.FrequencyControl.MinIntervalViolated)
	assert.Contains(t, flipped.FrequencyControl.AddedTags, reasontag.MinIntervalViolated)

	gotDir, _ := store.GetLastDirection("BTCUSDT", decision.ShortTerm)
	assert.Equal(t, decision.Long, gotDir, "a blocked flip must not overwrite the store")
}

func TestGateNoTradeAlwaysExecutableUnlessDenied(t *testing.T) {
	th := testThresholds(t)
	store := state.NewMemoryStore()
	now := time.Now()

	allowed := decision.Draft{Decision: decision.NoTrade, ExecutionPermission: decision.Allow}
	final := Apply(allowed, "BTCUSDT", decision.ShortTerm, now, th, store)
	assert.True(t, final.Executable)

	denied := decision.Draft{Decision: decision.NoTrade, ExecutionPermission: decision.Deny, ReasonTags: []reasontag.Tag{reasontag.InvalidData}}
	final = Apply(denied, "ETHUSDT", decision.ShortTerm, now, th, store)
	assert.False(t, final.Executable, "a DENY-permission NO_TRADE must never be executable")
}

func TestGateNoTradeNeverWritesStore(t *testing.T) {
	th := testThresholds(t)
	store := state.NewMemoryStore()
	now := time.Now()

	Apply(decision.Draft{Decision: decision.NoTrade, ExecutionPermission: decision.Allow}, "BTCUSDT", decision.ShortTerm, now, th, store)

	_, ok := store.GetLastDirection("BTCUSDT", decision.ShortTerm)
	assert.False(t, ok)
}

func TestGateNeverMutatesDraftFields(t *testing.T) {
	th := testThresholds(t)
	store := state.NewMemoryStore()
	t0 := time.Now()

	draft := decision.Draft{
		Decision:            decision.Long,
		Confidence:          thresholds.Ultra,
		MarketRegime:        decision.Trend,
		TradeQuality:        decision.Good,
		ExecutionPermission: decision.Allow,
	}
	Apply(draft, "BTCUSDT", decision.ShortTerm, t0, th, store)
	blocked := Apply(draft, "BTCUSDT", decision.ShortTerm, t0.Add(60*time.Second), th, store)

	assert.Equal(t, draft.Decision, blocked.Decision)
	assert.Equal(t, draft.Confidence, blocked.Confidence)
	assert.Equal(t, draft.ExecutionPermission, blocked.ExecutionPermission)
	assert.Equal(t, draft.TradeQuality, blocked.TradeQuality)
	assert.Equal(t, draft.MarketRegime, blocked.MarketRegime)
}
