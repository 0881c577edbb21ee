package decision

import (
	"github.com/sawpanic/advisoryengine/internal/features"
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
	"github.com/sawpanic/advisoryengine/internal/tickcache"
)

// DualDraft is the output of EvaluateDual: one draft per horizon, plus
// the globally-computed risk/regime information the engine façade lifts
// into DualTimeframeResult's top-level fields (spec §3).
type DualDraft struct {
	Short               Draft
	Medium              Draft
	MarketRegime        MarketRegime
	GlobalRiskTags      []reasontag.Tag
	RiskExposureAllowed bool
}

// EvaluateDual runs the short-term and medium-term evaluations
// independently over the same feature snapshot (spec §4.6). It is pure:
// given the same (features, thresholds) it returns a byte-identical
// result every time.
func EvaluateDual(snap *features.Snapshot, th *thresholds.Thresholds) DualDraft {
	if !snap.HasCoreFields() {
		invalid := Draft{
			Decision:            NoTrade,
			Confidence:          thresholds.Low,
			ExecutionPermission: Deny,
			ReasonTags:          []reasontag.Tag{reasontag.InvalidData},
		}
		return DualDraft{Short: invalid, Medium: invalid, GlobalRiskTags: invalid.ReasonTags}
	}

	regime, regimeTags := detectRegime(snap, th)
	riskTags, vetoed := evaluateRisk(snap, th, regime)
	globalTags := append(append([]reasontag.Tag(nil), regimeTags...), riskTags...)

	if vetoed {
		vetoedDraft := Draft{
			Decision:            NoTrade,
			Confidence:          thresholds.Low,
			MarketRegime:        regime,
			ExecutionPermission: Deny,
			ReasonTags:          globalTags,
			KeyMetrics:          keyMetrics(snap),
		}
		return DualDraft{Short: vetoedDraft, Medium: vetoedDraft, MarketRegime: regime, GlobalRiskTags: globalTags, RiskExposureAllowed: false}
	}

	short := evaluateShort(snap, th, regime, globalTags)
	medium := evaluateMedium(snap, th, regime, globalTags)

	return DualDraft{Short: short, Medium: medium, MarketRegime: regime, GlobalRiskTags: globalTags, RiskExposureAllowed: true}
}

// evaluateShort runs Stages C, D (K-of-N), E, F, G for the short-term
// horizon, subject to the data completeness policy's short-term clause
// (spec §4.6).
func evaluateShort(snap *features.Snapshot, th *thresholds.Thresholds, regime MarketRegime, globalTags []reasontag.Tag) Draft {
	tags := append([]reasontag.Tag(nil), globalTags...)
	if snap.Coverage.MissingWindows[tickcache.Window5m] {
		tags = append(tags, reasontag.DataGap5m)
	}
	if snap.Coverage.MissingWindows[tickcache.Window15m] {
		tags = append(tags, reasontag.DataGap15m)
	}

	if !snap.Coverage.ShortEvaluable {
		tags = append(tags, reasontag.DataIncompleteLTF)
		return Draft{
			Decision:            NoTrade,
			Confidence:          thresholds.Low,
			MarketRegime:        regime,
			ExecutionPermission: Deny,
			ReasonTags:          tags,
			KeyMetrics:          keyMetrics(snap),
		}
	}

	quality, qualityTags := evaluateQuality(snap, th)
	tags = append(tags, qualityTags...)

	dir := evaluateDirectionShort(snap, th)
	tags = append(tags, dir.tags...)

	dec := decisionFromPair(dir, regime, snap)
	confidence := computeConfidence(regime, quality, dec, tags, dir.downgrade, th)
	permission := derivePermission(tags)

	return Draft{
		Decision:            dec,
		Confidence:          confidence,
		MarketRegime:        regime,
		TradeQuality:        quality,
		ExecutionPermission: permission,
		ReasonTags:          tags,
		KeyMetrics:          keyMetrics(snap),
	}
}

// evaluateMedium runs Stages C-G for the medium-term horizon, subject to
// the data completeness policy's medium-term clauses (spec §4.6),
// including 1h-only degraded mode when 6h is absent.
func evaluateMedium(snap *features.Snapshot, th *thresholds.Thresholds, regime MarketRegime, globalTags []reasontag.Tag) Draft {
	tags := append([]reasontag.Tag(nil), globalTags...)
	if snap.Coverage.MissingWindows[tickcache.Window1h] {
		tags = append(tags, reasontag.DataGap1h)
	}
	if snap.Coverage.MissingWindows[tickcache.Window6h] {
		tags = append(tags, reasontag.DataGap6h)
	}

	if !snap.Coverage.MediumEvaluable {
		tags = append(tags, reasontag.DataIncompleteMTF)
		return Draft{
			Decision:            NoTrade,
			Confidence:          thresholds.Low,
			MarketRegime:        regime,
			ExecutionPermission: Deny,
			ReasonTags:          tags,
			KeyMetrics:          keyMetrics(snap),
		}
	}

	degraded := snap.Coverage.MissingWindows[tickcache.Window6h]
	if degraded && !hasTag(tags, reasontag.MTFDegradedTo1h) {
		tags = append(tags, reasontag.MTFDegradedTo1h)
	}

	quality, qualityTags := evaluateQuality(snap, th)
	tags = append(tags, qualityTags...)

	dir := evaluateDirectionMedium(snap, th, regime)
	tags = append(tags, dir.tags...)

	dec := decisionFromPair(dir, regime, snap)
	confidence := computeConfidence(regime, quality, dec, tags, dir.downgrade, th)
	permission := derivePermission(tags)

	if degraded {
		confidence = minConfidence(confidence, thresholds.High)
		permission = atLeastAsRestrictiveAs(permission, AllowReduced)
	}

	return Draft{
		Decision:            dec,
		Confidence:          confidence,
		MarketRegime:        regime,
		TradeQuality:        quality,
		ExecutionPermission: permission,
		ReasonTags:          tags,
		KeyMetrics:          keyMetrics(snap),
	}
}

func hasTag(tags []reasontag.Tag, tag reasontag.Tag) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}

// keyMetrics surfaces the subset of the snapshot most relevant to
// explaining a decision; absent fields are simply omitted, never zeroed.
func keyMetrics(snap *features.Snapshot) map[string]float64 {
	m := make(map[string]float64, 8)
	put := func(key string, v *float64) {
		if v != nil {
			m[key] = *v
		}
	}
	put("price_change_1h", snap.Price.Change1h)
	put("price_change_15m", snap.Price.Change15m)
	put("oi_change_1h", snap.OpenInterest.Change1h)
	put("oi_change_6h", snap.OpenInterest.Change6h)
	put("taker_imbalance_1h", snap.TakerImbalance.Imbalance1h)
	put("taker_imbalance_15m", snap.TakerImbalance.Imbalance15m)
	put("funding_rate", snap.Funding.Rate)
	return m
}
