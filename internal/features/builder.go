package features

import (
	"time"

	"github.com/sawpanic/advisoryengine/internal/normalize"
	"github.com/sawpanic/advisoryengine/internal/tickcache"
)

// windowSpecs pairs each lookback window with its tolerance and the
// (price-change, oi-change) field names a raw snapshot may carry directly.
var windowSpecs = []struct {
	window         tickcache.Window
	priceChangeKey string
	oiChangeKey    string
}{
	{tickcache.Window5m, "price_change_5m", "oi_change_5m"},
	{tickcache.Window15m, "price_change_15m", "oi_change_15m"},
	{tickcache.Window1h, "price_change_1h", "oi_change_1h"},
	{tickcache.Window6h, "price_change_6h", "oi_change_6h"},
}

// requiredShortFields and requiredMediumFields gate short_evaluable /
// medium_evaluable (spec §4.4 step 4).
var requiredShortFields = []string{"price_change_15m", "taker_imbalance_15m", "volume_ratio_15m"}
var requiredMediumFields = []string{"price_change_1h"}

// Build combines raw, a floor lookback against cache, and normalization
// into an immutable Snapshot (spec §4.4).
func Build(symbol string, raw map[string]interface{}, cache *tickcache.Cache, policy normalize.Policy, now time.Time) (*Snapshot, error) {
	normalized, trace, err := normalize.Normalize(symbol, raw, policy)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		Metadata: Metadata{
			FeatureVersion:  FeatureVersion,
			GeneratedAt:     now,
			SourceTimestamp: extractTimestamp(normalized, now),
			Symbol:          symbol,
			NormalizeTrace:  trace,
		},
		Coverage: Coverage{
			MissingWindows:     map[tickcache.Window]bool{},
			LookbackGapSeconds: map[tickcache.Window]float64{},
		},
	}

	snap.Price.CurrentPrice = getFloat(normalized, "price")
	snap.Volume.Volume1h = getFloat(normalized, "volume_1h")
	snap.Volume.Volume24h = getFloat(normalized, "volume_24h")
	snap.Volume.Ratio5m = getFloat(normalized, "volume_ratio_5m")
	snap.Volume.Ratio15m = getFloat(normalized, "volume_ratio_15m")
	snap.Funding.Rate = getFloat(normalized, "funding_rate")
	snap.Funding.RatePrev = getFloat(normalized, "funding_rate_prev")
	snap.TakerImbalance.Imbalance5m = getFloat(normalized, "taker_imbalance_5m")
	snap.TakerImbalance.Imbalance15m = getFloat(normalized, "taker_imbalance_15m")
	snap.TakerImbalance.Imbalance1h = getFloat(normalized, "taker_imbalance_1h")

	currentOI := getFloat(normalized, "open_interest")

	changeFields := map[tickcache.Window]*float64{}
	for _, spec := range windowSpecs {
		lb := cache.FloorLookup(symbol, now.Add(-windowDuration(spec.window)), tickcache.DefaultToleranceSeconds[spec.window])
		if lb.Valid {
			snap.Coverage.LookbackGapSeconds[spec.window] = lb.GapSeconds
		}

		priceChange := getFloat(normalized, spec.priceChangeKey)
		if priceChange == nil && lb.Valid && snap.Price.CurrentPrice != nil {
			if pastPrice := getFloat(lb.Entry.Snapshot, "price"); pastPrice != nil && *pastPrice != 0 {
				v := (*snap.Price.CurrentPrice - *pastPrice) / *pastPrice
				priceChange = &v
			}
		}
		changeFields[spec.window] = priceChange
		if priceChange != nil {
			normalized[spec.priceChangeKey] = *priceChange
		} else {
			// The window's defining metric is unavailable from both the
			// raw snapshot and the cache lookback: this window is missing,
			// regardless of whether the floor lookup itself was valid.
			snap.Coverage.MissingWindows[spec.window] = true
		}

		oiChange := getFloat(normalized, spec.oiChangeKey)
		if oiChange == nil && lb.Valid && currentOI != nil {
			if pastOI := getFloat(lb.Entry.Snapshot, "open_interest"); pastOI != nil && *pastOI != 0 {
				v := (*currentOI - *pastOI) / *pastOI
				oiChange = &v
			}
		}
		assignOIChange(snap, spec.window, oiChange)
		if oiChange != nil {
			normalized[spec.oiChangeKey] = *oiChange
		}
	}

	snap.Price.Change5m = changeFields[tickcache.Window5m]
	snap.Price.Change15m = changeFields[tickcache.Window15m]
	snap.Price.Change1h = changeFields[tickcache.Window1h]
	snap.Price.Change6h = changeFields[tickcache.Window6h]

	snap.Coverage.ShortEvaluable = evaluable(snap.Coverage.MissingWindows, requiredShortFields, normalized, tickcache.Window5m, tickcache.Window15m)
	snap.Coverage.MediumEvaluable = evaluable(snap.Coverage.MissingWindows, requiredMediumFields, normalized, tickcache.Window1h)

	return snap, nil
}

func assignOIChange(snap *Snapshot, w tickcache.Window, v *float64) {
	switch w {
	case tickcache.Window5m:
		snap.OpenInterest.Change5m = v
	case tickcache.Window15m:
		snap.OpenInterest.Change15m = v
	case tickcache.Window1h:
		snap.OpenInterest.Change1h = v
	case tickcache.Window6h:
		snap.OpenInterest.Change6h = v
	}
}

func evaluable(missing map[tickcache.Window]bool, requiredFields []string, normalized map[string]interface{}, windows ...tickcache.Window) bool {
	for _, w := range windows {
		if missing[w] {
			return false
		}
	}
	for _, f := range requiredFields {
		if getFloat(normalized, f) == nil {
			return false
		}
	}
	return true
}

func windowDuration(w tickcache.Window) time.Duration {
	switch w {
	case tickcache.Window5m:
		return 5 * time.Minute
	case tickcache.Window15m:
		return 15 * time.Minute
	case tickcache.Window1h:
		return time.Hour
	case tickcache.Window6h:
		return 6 * time.Hour
	default:
		return 0
	}
}

func extractTimestamp(raw map[string]interface{}, fallback time.Time) time.Time {
	switch v := raw["timestamp"].(type) {
	case time.Time:
		return v
	default:
		return fallback
	}
}

func getFloat(m map[string]interface{}, key string) *float64 {
	if m == nil {
		return nil
	}
	v, ok := m[key]
	if !ok || v == nil {
		return nil
	}
	switch n := v.(type) {
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	default:
		return nil
	}
}

// HasCoreFields reports whether the hard-required core fields (price,
// 24h volume, funding rate) are all present — used by DecisionCore's data
// completeness policy (spec §4.6) to force a whole-dual NO_TRADE.
func (s *Snapshot) HasCoreFields() bool {
	return s.Price.CurrentPrice != nil && s.Volume.Volume24h != nil && s.Funding.Rate != nil
}
