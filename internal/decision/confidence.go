package decision

import (
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

// computeConfidence implements Stage F (spec §4.6): a base level derived
// from regime x quality x direction strength, then capped by trade
// quality, per-tag caps, and a one-step funding downgrade.
func computeConfidence(regime MarketRegime, quality TradeQuality, decision Decision, tags []reasontag.Tag, fundingDowngrade bool, th *thresholds.Thresholds) thresholds.Confidence {
	if decision == NoTrade {
		return thresholds.Low
	}

	base := baseConfidence(regime, quality)

	if quality == Uncertain {
		cap := th.ConfidenceScoring.Caps.UncertainQualityLegacy
		if th.ConfidenceScoring.Caps.HybridMode {
			cap = th.ConfidenceScoring.Caps.UncertainQualityHybrid
		}
		base = minConfidence(base, cap)
	}

	for _, t := range tags {
		if cap, ok := th.ConfidenceScoring.TagCaps[t]; ok {
			base = minConfidence(base, cap)
		}
	}

	if fundingDowngrade {
		base = stepDown(base)
	}

	return base
}

func baseConfidence(regime MarketRegime, quality TradeQuality) thresholds.Confidence {
	switch {
	case regime == Trend && quality == Good:
		return thresholds.Ultra
	case regime == Trend:
		return thresholds.High
	case quality == Good:
		return thresholds.High
	default:
		return thresholds.Medium
	}
}

func minConfidence(a, b thresholds.Confidence) thresholds.Confidence {
	if a < b {
		return a
	}
	return b
}

func stepDown(c thresholds.Confidence) thresholds.Confidence {
	if c == thresholds.Low {
		return thresholds.Low
	}
	return c - 1
}
