// Package thresholds compiles the YAML threshold document into a frozen,
// versioned, strongly-typed Thresholds object (spec §4.3).
package thresholds

import (
	"time"

	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"gopkg.in/yaml.v3"
)

// Confidence mirrors the ordered confidence scale (spec §3).
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
	Ultra
)

func (c Confidence) String() string {
	switch c {
	case Medium:
		return "medium"
	case High:
		return "high"
	case Ultra:
		return "ultra"
	default:
		return "low"
	}
}

// MarshalJSON renders the lower-case string form required by the result
// schema (spec §6).
func (c Confidence) MarshalJSON() ([]byte, error) {
	s := c.String()
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')
	b = append(b, s...)
	b = append(b, '"')
	return b, nil
}

// ParseConfidence parses a lower-case confidence name.
func ParseConfidence(s string) (Confidence, bool) {
	switch s {
	case "low":
		return Low, true
	case "medium":
		return Medium, true
	case "high":
		return High, true
	case "ultra":
		return Ultra, true
	default:
		return Low, false
	}
}

// UnmarshalYAML lets Confidence be written as a lower-case name in config.
func (c *Confidence) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	v, ok := ParseConfidence(s)
	if !ok {
		return &invalidConfidenceError{value: s}
	}
	*c = v
	return nil
}

type invalidConfidenceError struct{ value string }

func (e *invalidConfidenceError) Error() string {
	return "invalid confidence level: " + e.value
}

// MarketRegimeThresholds holds Stage A regime-detection cutoffs.
type MarketRegimeThresholds struct {
	ExtremePriceChange1h float64 `yaml:"extreme_price_change_1h"`
	TrendPriceChange6h   float64 `yaml:"trend_price_change_6h"`
}

// LiquidationThresholds holds Stage B liquidation-phase predicates.
type LiquidationThresholds struct {
	PriceChange float64 `yaml:"price_change"`
	OIDrop      float64 `yaml:"oi_drop"`
}

// CrowdingThresholds holds Stage B crowding-risk predicates.
type CrowdingThresholds struct {
	FundingAbs float64 `yaml:"funding_abs"`
	OIGrowth   float64 `yaml:"oi_growth"`
}

// ExtremeVolumeThresholds holds Stage B extreme-volume predicates.
type ExtremeVolumeThresholds struct {
	VolumeRatio float64 `yaml:"volume_ratio"`
}

// RiskExposureThresholds groups Stage B veto predicates.
type RiskExposureThresholds struct {
	Liquidation   LiquidationThresholds   `yaml:"liquidation"`
	Crowding      CrowdingThresholds      `yaml:"crowding"`
	ExtremeVolume ExtremeVolumeThresholds `yaml:"extreme_volume"`
}

// AbsorptionThresholds holds Stage C absorption-risk predicates.
type AbsorptionThresholds struct {
	Imbalance   float64 `yaml:"imbalance"`
	VolumeRatio float64 `yaml:"volume_ratio"`
}

// NoiseThresholds holds Stage C noisy-market predicates.
type NoiseThresholds struct {
	FundingVolatility float64 `yaml:"funding_volatility"`
	FundingAbs        float64 `yaml:"funding_abs"`
}

// RotationThresholds and RangeWeakThresholds are kept as distinct config
// sections (per spec §9 Open Question 2, they express the same predicate
// shape: a volume-ratio/price-change mismatch) parameterized independently.
type RotationThresholds struct {
	VolumeRatio float64 `yaml:"volume_ratio"`
	PriceChange float64 `yaml:"price_change"`
}

type RangeWeakThresholds struct {
	VolumeRatio float64 `yaml:"volume_ratio"`
	PriceChange float64 `yaml:"price_change"`
}

// TradeQualityThresholds groups Stage C classification predicates.
type TradeQualityThresholds struct {
	Absorption AbsorptionThresholds `yaml:"absorption"`
	Noise      NoiseThresholds      `yaml:"noise"`
	Rotation   RotationThresholds   `yaml:"rotation"`
	RangeWeak  RangeWeakThresholds  `yaml:"range_weak"`
}

// TrendDirectionThresholds holds Stage D TREND-regime predicates.
type TrendDirectionThresholds struct {
	LongImbalance  float64 `yaml:"long_imbalance"`
	ShortImbalance float64 `yaml:"short_imbalance"`
	OIGrowth       float64 `yaml:"oi_growth"`
	PriceChange    float64 `yaml:"price_change"`
}

// ShortTermOpportunityThresholds holds Stage D RANGE-regime 5m/15m predicates.
type ShortTermOpportunityThresholds struct {
	Imbalance   float64 `yaml:"imbalance"`
	PriceChange float64 `yaml:"price_change"`
	VolumeRatio float64 `yaml:"volume_ratio"`
}

// RangeDirectionThresholds holds Stage D RANGE-regime predicates.
type RangeDirectionThresholds struct {
	ShortTermOpportunity ShortTermOpportunityThresholds `yaml:"short_term_opportunity"`
}

// DirectionThresholds groups Stage D direction predicates.
type DirectionThresholds struct {
	Trend TrendDirectionThresholds `yaml:"trend"`
	Range RangeDirectionThresholds `yaml:"range"`
}

// ConfidenceCaps holds the global caps applied in Stage F. Two modes are
// retained from the source system (spec §9 Open Question 1): "hybrid"
// caps UNCERTAIN trade quality at a higher ceiling than legacy mode.
type ConfidenceCaps struct {
	UncertainQualityHybrid Confidence `yaml:"uncertain_quality_hybrid"`
	UncertainQualityLegacy Confidence `yaml:"uncertain_quality_legacy"`
	HybridMode             bool       `yaml:"hybrid_mode"`
}

// ConfidenceScoringThresholds groups Stage F confidence caps.
type ConfidenceScoringThresholds struct {
	Caps    ConfidenceCaps               `yaml:"caps"`
	TagCaps map[reasontag.Tag]Confidence `yaml:"tag_caps"`
}

// FrequencyControlThresholds holds DecisionGate timing rules (spec §4.7).
type FrequencyControlThresholds struct {
	ShortCooldown     DurationSeconds `yaml:"short_cooldown_seconds"`
	MediumCooldown    DurationSeconds `yaml:"medium_cooldown_seconds"`
	ShortMinInterval  DurationSeconds `yaml:"short_min_interval_seconds"`
	MediumMinInterval DurationSeconds `yaml:"medium_min_interval_seconds"`
}

// DurationSeconds is a plain-seconds duration decoded from YAML integers.
type DurationSeconds float64

// Duration converts the configured seconds figure into a time.Duration.
func (d DurationSeconds) Duration() time.Duration {
	return time.Duration(d * DurationSeconds(time.Second))
}

// ShortTermThresholds holds the K-of-N axis-voting configuration used by
// the short-horizon dual-evaluation rule set.
type ShortTermThresholds struct {
	RequiredSignals int `yaml:"required_signals"` // K in "K of N"
}

// DualTimeframeThresholds groups the two-horizon-specific configuration.
type DualTimeframeThresholds struct {
	ShortTerm          ShortTermThresholds        `yaml:"short_term"`
	ConflictResolution string                     `yaml:"conflict_resolution"`
	FrequencyControl   FrequencyControlThresholds `yaml:"frequency_control"`
}

// Thresholds is the frozen, versioned configuration object every
// DecisionCore/DecisionGate call receives (spec §3).
type Thresholds struct {
	MarketRegime      MarketRegimeThresholds      `yaml:"market_regime"`
	RiskExposure      RiskExposureThresholds      `yaml:"risk_exposure"`
	TradeQuality      TradeQualityThresholds      `yaml:"trade_quality"`
	Direction         DirectionThresholds         `yaml:"direction"`
	ConfidenceScoring ConfidenceScoringThresholds `yaml:"confidence_scoring"`
	DualTimeframe     DualTimeframeThresholds     `yaml:"dual_timeframe"`

	// Version is SHA256(canonical_yaml(source)); set by Compile, never by
	// the YAML document itself.
	Version string `yaml:"-"`
}
