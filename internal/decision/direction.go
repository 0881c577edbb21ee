package decision

import (
	"github.com/sawpanic/advisoryengine/internal/features"
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

// directionResult is the allow-long/allow-short pair Stage D produces,
// plus any supporting or downgrading tags.
type directionResult struct {
	allowLong  bool
	allowShort bool
	tags       []reasontag.Tag
	downgrade  bool
}

// evaluateDirectionMedium implements Stage D for the medium-term
// horizon: TREND regime consults 1h trend thresholds, RANGE regime
// falls back to a short-term-opportunity predicate that requires the 15m
// volume ratio, 15m imbalance and 15m price change all to clear their
// short_term_opportunity thresholds. The short horizon reads the same
// thresholds but through its own K-of-N vote (evaluateDirectionShort).
func evaluateDirectionMedium(snap *features.Snapshot, th *thresholds.Thresholds, regime MarketRegime) directionResult {
	var res directionResult
	switch regime {
	case Trend:
		res = trendDirection(snap, th)
	default:
		res = shortTermOpportunityDirection(snap, th)
	}
	applyFundingDowngrade(snap, th, &res)
	return res
}

// evaluateDirectionShort implements the short horizon's K-of-N axis
// vote in place of the TREND/RANGE branch (spec §4.6 dual evaluation
// paragraph): 15m price change, 15m imbalance, 15m volume ratio, and 5m
// confirmation are each one axis; a side needs at least K supporting
// axes (required_signals) to be allowed, and must out-vote the
// opposite side.
func evaluateDirectionShort(snap *features.Snapshot, th *thresholds.Thresholds) directionResult {
	opp := th.Direction.Range.ShortTermOpportunity
	longVotes, shortVotes := 0, 0

	if v := snap.Price.Change15m; v != nil {
		if *v > opp.PriceChange {
			longVotes++
		} else if *v < -opp.PriceChange {
			shortVotes++
		}
	}
	if v := snap.TakerImbalance.Imbalance15m; v != nil {
		if *v > opp.Imbalance {
			longVotes++
		} else if *v < -opp.Imbalance {
			shortVotes++
		}
	}
	if v := snap.Volume.Ratio15m; v != nil && *v > opp.VolumeRatio {
		// Volume confirmation backs whichever side already has more
		// votes; with no other axis yet decided it backs neither.
		if longVotes > shortVotes {
			longVotes++
		} else if shortVotes > longVotes {
			shortVotes++
		}
	}
	if v := snap.Price.Change5m; v != nil {
		if *v > 0 {
			longVotes++
		} else if *v < 0 {
			shortVotes++
		}
	}

	k := th.DualTimeframe.ShortTerm.RequiredSignals
	res := directionResult{
		allowLong:  longVotes >= k && longVotes > shortVotes,
		allowShort: shortVotes >= k && shortVotes > longVotes,
	}
	applyFundingDowngrade(snap, th, &res)
	return res
}

func trendDirection(snap *features.Snapshot, th *thresholds.Thresholds) directionResult {
	t := th.Direction.Trend
	imbalance := snap.TakerImbalance.Imbalance1h
	oiGrowth := snap.OpenInterest.Change1h
	price := snap.Price.Change1h
	if imbalance == nil || oiGrowth == nil || price == nil {
		return directionResult{}
	}

	allowLong := *imbalance > t.LongImbalance && *oiGrowth > t.OIGrowth && *price > t.PriceChange
	allowShort := *imbalance < t.ShortImbalance && *oiGrowth > t.OIGrowth && *price < -t.PriceChange

	var tags []reasontag.Tag
	if allowLong {
		tags = append(tags, reasontag.StrongBuyPressure)
	}
	if allowShort {
		tags = append(tags, reasontag.StrongSellPressure)
	}
	return directionResult{allowLong: allowLong, allowShort: allowShort, tags: tags}
}

func shortTermOpportunityDirection(snap *features.Snapshot, th *thresholds.Thresholds) directionResult {
	opp := th.Direction.Range.ShortTermOpportunity
	imbalance := snap.TakerImbalance.Imbalance15m
	price := snap.Price.Change15m
	ratio := snap.Volume.Ratio15m
	if imbalance == nil || price == nil || ratio == nil {
		return directionResult{}
	}

	confirmed := *ratio > opp.VolumeRatio
	allowLong := confirmed && *imbalance > opp.Imbalance && *price > opp.PriceChange
	allowShort := confirmed && *imbalance < -opp.Imbalance && *price < -opp.PriceChange
	return directionResult{allowLong: allowLong, allowShort: allowShort}
}

// applyFundingDowngrade appends FundingDowngrade when funding is extreme
// in the direction the draft is about to allow (spec §4.6, §9 Open
// Question 1: boundary treated as inclusive).
func applyFundingDowngrade(snap *features.Snapshot, th *thresholds.Thresholds, res *directionResult) {
	rate := snap.Funding.Rate
	if rate == nil {
		return
	}
	cap := th.RiskExposure.Crowding.FundingAbs
	if res.allowLong && *rate >= cap {
		res.downgrade = true
		res.tags = append(res.tags, reasontag.FundingDowngrade)
	} else if res.allowShort && *rate <= -cap {
		res.downgrade = true
		res.tags = append(res.tags, reasontag.FundingDowngrade)
	}
}
