package decision

import (
	"github.com/sawpanic/advisoryengine/internal/features"
)

// decisionFromPair implements Stage E (spec §4.6): given an allow-long /
// allow-short pair, pick the final decision, applying a fixed tie-break
// when both sides are allowed. The tie-break is not read from thresholds;
// no config key selects a different policy.
func decisionFromPair(res directionResult, regime MarketRegime, snap *features.Snapshot) Decision {
	switch {
	case !res.allowLong && !res.allowShort:
		return NoTrade
	case res.allowLong && !res.allowShort:
		return Long
	case res.allowShort && !res.allowLong:
		return Short
	}

	// Both sides allowed: tie-break. TREND follows price direction,
	// everything else (RANGE, and the short horizon's own K-of-N vote)
	// follows taker imbalance.
	if regime == Trend {
		if price := snap.Price.Change1h; price != nil && *price < 0 {
			return Short
		}
		return Long
	}

	imbalance := snap.TakerImbalance.Imbalance15m
	if imbalance == nil {
		imbalance = snap.TakerImbalance.Imbalance1h
	}
	if imbalance != nil && *imbalance < 0 {
		return Short
	}
	return Long
}
