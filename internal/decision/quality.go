package decision

import (
	"math"

	"github.com/sawpanic/advisoryengine/internal/features"
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

// evaluateQuality implements Stage C (spec §4.6), shared by both
// horizons. Rotation and range-weak are treated as the same predicate
// shape parameterized by distinct thresholds (spec §9 Open Question 2);
// both are evaluated against the 15m volume-ratio/price-change pair
// since that is the finest-grained pair the snapshot carries for both
// horizons to share.
func evaluateQuality(snap *features.Snapshot, th *thresholds.Thresholds) (TradeQuality, []reasontag.Tag) {
	if isAbsorptionRisk(snap, th) {
		return Poor, []reasontag.Tag{reasontag.AbsorptionRisk}
	}

	var tags []reasontag.Tag
	quality := Good

	if isNoisyMarket(snap, th) {
		tags = append(tags, reasontag.NoisyMarket)
		quality = Uncertain
	}
	if isRotation(snap, th) {
		tags = append(tags, reasontag.RotationRisk)
		quality = Uncertain
	}
	if isRangeWeak(snap, th) {
		tags = append(tags, reasontag.RangeWeak)
		quality = Uncertain
	}

	return quality, tags
}

func isAbsorptionRisk(snap *features.Snapshot, th *thresholds.Thresholds) bool {
	imbalance := snap.TakerImbalance.Imbalance1h
	v1h := snap.Volume.Volume1h
	v24h := snap.Volume.Volume24h
	if imbalance == nil || v1h == nil || v24h == nil {
		return false
	}
	avg24h := *v24h / 24
	return math.Abs(*imbalance) > th.TradeQuality.Absorption.Imbalance && *v1h < th.TradeQuality.Absorption.VolumeRatio*avg24h
}

func isNoisyMarket(snap *features.Snapshot, th *thresholds.Thresholds) bool {
	rate := snap.Funding.Rate
	prev := snap.Funding.RatePrev
	if rate == nil || prev == nil {
		return false
	}
	volatility := math.Abs(*rate - *prev)
	return volatility > th.TradeQuality.Noise.FundingVolatility && math.Abs(*rate) < th.TradeQuality.Noise.FundingAbs
}

func isRotation(snap *features.Snapshot, th *thresholds.Thresholds) bool {
	return rotationShapePredicate(snap, th.TradeQuality.Rotation.VolumeRatio, th.TradeQuality.Rotation.PriceChange)
}

func isRangeWeak(snap *features.Snapshot, th *thresholds.Thresholds) bool {
	return rotationShapePredicate(snap, th.TradeQuality.RangeWeak.VolumeRatio, th.TradeQuality.RangeWeak.PriceChange)
}

// rotationShapePredicate fires when volume activity is below the
// configured ratio while price is still moving beyond its threshold —
// volume isn't confirming the move.
func rotationShapePredicate(snap *features.Snapshot, volumeRatio, priceChange float64) bool {
	ratio := snap.Volume.Ratio15m
	price := snap.Price.Change15m
	if ratio == nil || price == nil {
		return false
	}
	return *ratio < volumeRatio && math.Abs(*price) > priceChange
}
