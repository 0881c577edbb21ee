// Package engine assembles TickCache, MetricsNormalizer, ThresholdCompiler,
// FeatureBuilder, StateStore, DecisionCore, DecisionGate, and
// AlignmentAnalyzer into the single per-tick entry point (spec §4.9): feed
// it a raw snapshot, get back a dual-horizon advisory result. The façade
// owns the hot-reloadable threshold pointer and never lets an internal
// panic escape to the caller — any failure degrades to an advisory
// NO_TRADE rather than an error (spec §7).
package engine

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/sawpanic/advisoryengine/internal/alignment"
	"github.com/sawpanic/advisoryengine/internal/decision"
	"github.com/sawpanic/advisoryengine/internal/features"
	"github.com/sawpanic/advisoryengine/internal/gate"
	"github.com/sawpanic/advisoryengine/internal/normalize"
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/state"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
	"github.com/sawpanic/advisoryengine/internal/tickcache"
)

// DefaultRetention is how long TickCache keeps history per symbol; it must
// comfortably exceed the longest lookback window (6h).
const DefaultRetention = 24 * time.Hour

// HorizonResult is the gated, annotated advisory for one horizon (spec §6).
// Enum fields marshal through their own MarshalJSON methods, so no
// intermediate string conversion happens here.
type HorizonResult struct {
	Decision            decision.Decision            `json:"decision"`
	Confidence          thresholds.Confidence        `json:"confidence"`
	MarketRegime        decision.MarketRegime        `json:"market_regime"`
	TradeQuality        decision.TradeQuality        `json:"trade_quality"`
	ExecutionPermission decision.ExecutionPermission `json:"execution_permission"`
	Executable          bool                         `json:"executable"`
	ReasonTags          []reasontag.Tag              `json:"reason_tags"`
	KeyMetrics          map[string]float64           `json:"key_metrics"`
	FrequencyControl    gate.FrequencyControl         `json:"frequency_control"`
}

// AlignmentResult is the cross-horizon analysis (spec §6).
type AlignmentResult struct {
	AlignmentType         alignment.Type        `json:"alignment_type"`
	IsAligned             bool                  `json:"is_aligned"`
	HasConflict           bool                  `json:"has_conflict"`
	ConflictResolution    alignment.Resolution  `json:"conflict_resolution,omitempty"`
	RecommendedAction     decision.Decision     `json:"recommended_action"`
	RecommendedConfidence thresholds.Confidence `json:"recommended_confidence"`
	RecommendationNotes   string                `json:"recommendation_notes,omitempty"`
}

// DualTimeframeResult is the engine's per-tick output (spec §6).
type DualTimeframeResult struct {
	Symbol              string          `json:"symbol"`
	Timestamp           time.Time       `json:"timestamp"`
	ThresholdsVersion   string          `json:"thresholds_version"`
	ShortTerm           HorizonResult   `json:"short_term"`
	MediumTerm          HorizonResult   `json:"medium_term"`
	Alignment           AlignmentResult `json:"alignment"`
	GlobalRiskTags      []reasontag.Tag `json:"global_risk_tags"`
	RiskExposureAllowed bool            `json:"risk_exposure_allowed"`
}

// Engine is the façade a caller drives one tick at a time. It is safe for
// concurrent use across distinct symbols; threshold reloads are safe
// concurrent with evaluation.
type Engine struct {
	cache   *tickcache.Cache
	store   state.Store
	policy  normalize.Policy
	limiter *rate.Limiter

	th atomic.Pointer[thresholds.Thresholds]
}

// Option allows functional configuration of a new Engine.
type Option func(*Engine)

// WithIngestionLimiter shares one rate.Limiter across every symbol an
// embedding fetcher feeds through this Engine. Ingestion rate is the
// fetcher's concern (spec §5); this hook exists only so several symbols
// fed by one fetcher can share a single token bucket instead of each
// constructing its own.
func WithIngestionLimiter(l *rate.Limiter) Option {
	return func(e *Engine) {
		e.limiter = l
	}
}

// New builds an Engine from an already-compiled threshold set. policy
// controls the MetricsNormalizer's behavior when percentage_format
// metadata is absent from a raw snapshot.
func New(th *thresholds.Thresholds, policy normalize.Policy, opts ...Option) *Engine {
	e := &Engine{
		cache:  tickcache.New(DefaultRetention),
		store:  state.NewMemoryStore(),
		policy: policy,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.th.Store(th)
	return e
}

// ReloadThresholds recompiles the threshold document at path and swaps it
// in atomically; in-flight OnNewTickDual calls finish against whichever
// snapshot they already loaded (spec §4.3 hot reload).
func (e *Engine) ReloadThresholds(path string) error {
	th, err := thresholds.Compile(path)
	if err != nil {
		return fmt.Errorf("reload thresholds: %w", err)
	}
	e.th.Store(th)
	log.Info().Str("version", th.Version).Msg("thresholds reloaded")
	return nil
}

// ThresholdsVersion returns the currently active threshold hash.
func (e *Engine) ThresholdsVersion() string {
	return e.th.Load().Version
}

// OnNewTickDual runs the full per-tick pipeline (spec §4.9): cache insert,
// feature build, dual decision, dual gate, alignment analysis. It never
// panics or returns an error to the caller — any internal failure is
// surfaced as an advisory NO_TRADE result carrying an invalid_data tag, so
// a single bad tick degrades the signal instead of taking the engine down
// (spec §7).
func (e *Engine) OnNewTickDual(ctx context.Context, symbol string, raw map[string]interface{}, now time.Time) (result DualTimeframeResult) {
	th := e.th.Load()

	defer func() {
		if r := recover(); r != nil {
			log.Error().Str("symbol", symbol).Interface("panic", r).Msg("recovered from panic while evaluating tick")
			result = failClosed(symbol, now, th.Version)
		}
	}()

	if e.limiter != nil {
		if err := e.limiter.Wait(ctx); err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("ingestion limiter wait failed; degrading to no_trade")
			return failClosed(symbol, now, th.Version)
		}
	}

	e.cache.Insert(symbol, extractTimestamp(raw, now), raw)

	snap, err := features.Build(symbol, raw, e.cache, e.policy, now)
	if err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("feature build failed; degrading to no_trade")
		return failClosed(symbol, now, th.Version)
	}

	dual := decision.EvaluateDual(snap, th)
	gated := gate.ApplyDual(dual, symbol, now, th, e.store)
	align := alignment.Analyze(gated.Short, gated.Medium, th)

	return DualTimeframeResult{
		Symbol:              symbol,
		Timestamp:           now,
		ThresholdsVersion:   th.Version,
		ShortTerm:           toHorizonResult(gated.Short),
		MediumTerm:          toHorizonResult(gated.Medium),
		Alignment:           toAlignmentResult(align),
		GlobalRiskTags:      dual.GlobalRiskTags,
		RiskExposureAllowed: dual.RiskExposureAllowed,
	}
}

// failClosed is the engine's answer to anything it cannot make sense of:
// a dual NO_TRADE with execution_permission=DENY on both horizons, never
// executable, so a caller can never mistake silence for a signal.
func failClosed(symbol string, now time.Time, version string) DualTimeframeResult {
	h := HorizonResult{
		Decision:            decision.NoTrade,
		Confidence:          thresholds.Low,
		MarketRegime:        decision.Range,
		TradeQuality:        decision.Good,
		ExecutionPermission: decision.Deny,
		Executable:          false,
		ReasonTags:          []reasontag.Tag{reasontag.InvalidData},
		KeyMetrics:          map[string]float64{},
	}
	return DualTimeframeResult{
		Symbol:            symbol,
		Timestamp:         now,
		ThresholdsVersion: version,
		ShortTerm:         h,
		MediumTerm:        h,
		Alignment: AlignmentResult{
			AlignmentType:         alignment.BothNoTrade,
			IsAligned:             true,
			RecommendedAction:     decision.NoTrade,
			RecommendedConfidence: thresholds.Low,
		},
		GlobalRiskTags:      []reasontag.Tag{reasontag.InvalidData},
		RiskExposureAllowed: false,
	}
}

func toHorizonResult(f gate.Final) HorizonResult {
	return HorizonResult{
		Decision:            f.Decision,
		Confidence:          f.Confidence,
		MarketRegime:        f.MarketRegime,
		TradeQuality:        f.TradeQuality,
		ExecutionPermission: f.ExecutionPermission,
		Executable:          f.Executable,
		ReasonTags:          f.ReasonTags,
		KeyMetrics:          f.KeyMetrics,
		FrequencyControl:    f.FrequencyControl,
	}
}

func toAlignmentResult(a alignment.Analysis) AlignmentResult {
	return AlignmentResult{
		AlignmentType:         a.AlignmentType,
		IsAligned:             a.IsAligned,
		HasConflict:           a.HasConflict,
		ConflictResolution:    a.ConflictResolution,
		RecommendedAction:     a.RecommendedAction,
		RecommendedConfidence: a.RecommendedConfidence,
		RecommendationNotes:   a.RecommendationNotes,
	}
}

func extractTimestamp(raw map[string]interface{}, fallback time.Time) time.Time {
	if v, ok := raw["timestamp"].(time.Time); ok {
		return v
	}
	return fallback
}
