package decision

import (
	"math"

	"github.com/sawpanic/advisoryengine/internal/features"
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

// evaluateRisk implements Stage B (spec §4.6): a veto check shared by
// both horizons. It returns the accumulated tags and whether a veto
// fired; on veto the caller skips Stages C-G entirely.
func evaluateRisk(snap *features.Snapshot, th *thresholds.Thresholds, regime MarketRegime) ([]reasontag.Tag, bool) {
	var tags []reasontag.Tag
	vetoed := false

	if regime == Extreme {
		tags = append(tags, reasontag.ExtremeRegime)
		vetoed = true
	}

	if isLiquidationPhase(snap, th) {
		tags = append(tags, reasontag.LiquidationPhase)
		vetoed = true
	}

	if isCrowdingRisk(snap, th) {
		tags = append(tags, reasontag.CrowdingRisk)
		vetoed = true
	}

	if isExtremeVolume(snap, th) {
		tags = append(tags, reasontag.ExtremeVolume)
		vetoed = true
	}

	return tags, vetoed
}

func isLiquidationPhase(snap *features.Snapshot, th *thresholds.Thresholds) bool {
	price := snap.Price.Change1h
	oi := snap.OpenInterest.Change1h
	if price == nil || oi == nil {
		return false
	}
	return *price <= -th.RiskExposure.Liquidation.PriceChange && *oi <= -th.RiskExposure.Liquidation.OIDrop
}

func isCrowdingRisk(snap *features.Snapshot, th *thresholds.Thresholds) bool {
	funding := snap.Funding.Rate
	oi6h := snap.OpenInterest.Change6h
	if funding == nil || oi6h == nil {
		return false
	}
	return math.Abs(*funding) > th.RiskExposure.Crowding.FundingAbs && *oi6h > th.RiskExposure.Crowding.OIGrowth
}

// isExtremeVolume compares the realized 1h volume against its trailing
// 24h hourly average; a ratio beyond the configured threshold signals an
// abnormal volume spike (the same avg24h baseline absorption uses).
func isExtremeVolume(snap *features.Snapshot, th *thresholds.Thresholds) bool {
	v1h := snap.Volume.Volume1h
	v24h := snap.Volume.Volume24h
	if v1h == nil || v24h == nil || *v24h == 0 {
		return false
	}
	avg24h := *v24h / 24
	if avg24h == 0 {
		return false
	}
	return *v1h/avg24h > th.RiskExposure.ExtremeVolume.VolumeRatio
}
