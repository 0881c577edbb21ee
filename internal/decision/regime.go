package decision

import (
	"math"

	"github.com/sawpanic/advisoryengine/internal/features"
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

// detectRegime implements Stage A (spec §4.6). It is computed once per
// tick and shared by both horizons, since regime is a property of the
// market, not of the evaluation window.
func detectRegime(snap *features.Snapshot, th *thresholds.Thresholds) (MarketRegime, []reasontag.Tag) {
	var tags []reasontag.Tag

	change1h := snap.Price.Change1h
	change6h := snap.Price.Change6h

	if change6h == nil {
		// Fallback: use 1h, then 15m, in place of the absent 6h figure.
		// Only record the degradation if a fallback value actually exists
		// — with nothing to fall back to (e.g. a cold-start tick with no
		// change fields at all), this is a hard data gap, not a degraded
		// mode, and is left for the completeness policy to tag instead.
		switch {
		case change1h != nil:
			tags = append(tags, reasontag.MTFDegradedTo1h)
			change6h = change1h
		case snap.Price.Change15m != nil:
			tags = append(tags, reasontag.MTFDegradedTo1h)
			change6h = snap.Price.Change15m
		}
	}

	if change1h != nil && math.Abs(*change1h) > th.MarketRegime.ExtremePriceChange1h {
		return Extreme, tags
	}
	if change6h != nil && math.Abs(*change6h) > th.MarketRegime.TrendPriceChange6h {
		return Trend, tags
	}
	return Range, tags
}
