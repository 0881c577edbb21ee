package alignment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sawpanic/advisoryengine/internal/decision"
	"github.com/sawpanic/advisoryengine/internal/gate"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

func finalWith(d decision.Decision, c thresholds.Confidence) gate.Final {
	return gate.Final{Draft: decision.Draft{Decision: d, Confidence: c}, Executable: true}
}

func withResolution(t *testing.T, resolution string) *thresholds.Thresholds {
	t.Helper()
	th, err := thresholds.CompileBytes([]byte(`
market_regime: {extreme_price_change_1h: 0.05, trend_price_change_6h: 0.02}
risk_exposure: {}
trade_quality: {}
direction: {}
confidence_scoring: {caps: {}}
dual_timeframe:
  short_term: {required_signals: 1}
  conflict_resolution: ` + resolution + `
`))
	require.NoError(t, err)
	return th
}

func TestAnalyzeBothLong(t *testing.T) {
	th := withResolution(t, "NO_TRADE")
	a := Analyze(finalWith(decision.Long, thresholds.High), finalWith(decision.Long, thresholds.Medium), th)
	assert.Equal(t, BothLong, a.AlignmentType)
	assert.True(t, a.IsAligned)
	assert.False(t, a.HasConflict)
	assert.Equal(t, decision.Long, a.RecommendedAction)
	assert.Equal(t, thresholds.High, a.RecommendedConfidence)
}

func TestAnalyzeBothNoTrade(t *testing.T) {
	th := withResolution(t, "NO_TRADE")
	a := Analyze(finalWith(decision.NoTrade, thresholds.Low), finalWith(decision.NoTrade, thresholds.Low), th)
	assert.Equal(t, BothNoTrade, a.AlignmentType)
	assert.True(t, a.IsAligned)
}

func TestAnalyzeConflictResolvesToNoTrade(t *testing.T) {
	th := withResolution(t, "NO_TRADE")
	short := finalWith(decision.Long, thresholds.High)
	medium := finalWith(decision.Short, thresholds.Medium)

	a := Analyze(short, medium, th)
	assert.Equal(t, ConflictLongShort, a.AlignmentType)
	assert.True(t, a.HasConflict)
	assert.Equal(t, ResolutionNoTrade, a.ConflictResolution)
	assert.Equal(t, decision.NoTrade, a.RecommendedAction)

	// Neither final's own decision or executability is altered by analysis.
	assert.Equal(t, decision.Long, short.Decision)
	assert.Equal(t, decision.Short, medium.Decision)
	assert.True(t, short.Executable)
	assert.True(t, medium.Executable)
}

func TestAnalyzeConflictFollowsMediumTerm(t *testing.T) {
	th := withResolution(t, "FOLLOW_MEDIUM_TERM")
	short := finalWith(decision.Long, thresholds.High)
	medium := finalWith(decision.Short, thresholds.Medium)

	a := Analyze(short, medium, th)
	assert.Equal(t, decision.Short, a.RecommendedAction)
}

func TestAnalyzeConflictFollowsHigherConfidence(t *testing.T) {
	th := withResolution(t, "FOLLOW_HIGHER_CONFIDENCE")
	short := finalWith(decision.Long, thresholds.Ultra)
	medium := finalWith(decision.Short, thresholds.Medium)

	a := Analyze(short, medium, th)
	assert.Equal(t, decision.Long, a.RecommendedAction)
}

func TestAnalyzePartialLong(t *testing.T) {
	th := withResolution(t, "NO_TRADE")
	a := Analyze(finalWith(decision.Long, thresholds.Medium), finalWith(decision.NoTrade, thresholds.Low), th)
	assert.Equal(t, PartialLong, a.AlignmentType)
	assert.False(t, a.IsAligned)
	assert.False(t, a.HasConflict)
	assert.Equal(t, decision.Long, a.RecommendedAction)
}

func TestAnalyzePartialShortFromMediumOnly(t *testing.T) {
	th := withResolution(t, "NO_TRADE")
	a := Analyze(finalWith(decision.NoTrade, thresholds.Low), finalWith(decision.Short, thresholds.High), th)
	assert.Equal(t, PartialShort, a.AlignmentType)
	assert.Equal(t, decision.Short, a.RecommendedAction)
}
