// Package features combines a raw snapshot, a cache lookback, and scale
// normalization into a strongly-typed FeatureSnapshot with explicit
// coverage information (spec §3, §4.4). Any field absent from the raw
// input stays absent here — it is never observed as 0 downstream.
package features

import (
	"time"

	"github.com/sawpanic/advisoryengine/internal/normalize"
	"github.com/sawpanic/advisoryengine/internal/tickcache"
)

// Price groups current-price and lookback price-change fields.
type Price struct {
	CurrentPrice   *float64
	Change5m       *float64
	Change15m      *float64
	Change1h       *float64
	Change6h       *float64
}

// OpenInterest groups open-interest change fields.
type OpenInterest struct {
	Change5m  *float64
	Change15m *float64
	Change1h  *float64
	Change6h  *float64
}

// TakerImbalance groups taker buy/sell imbalance fields, each in [-1, 1].
type TakerImbalance struct {
	Imbalance5m  *float64
	Imbalance15m *float64
	Imbalance1h  *float64
}

// Volume groups raw and ratio volume fields.
type Volume struct {
	Volume1h    *float64
	Volume24h   *float64
	Ratio5m     *float64
	Ratio15m    *float64
}

// Funding groups the current and previous funding rate, used to measure
// the volatility of the funding series.
type Funding struct {
	Rate     *float64
	RatePrev *float64
}

// Coverage records per-window lookback validity and gap.
type Coverage struct {
	ShortEvaluable     bool
	MediumEvaluable    bool
	MissingWindows     map[tickcache.Window]bool
	LookbackGapSeconds map[tickcache.Window]float64
}

// Metadata carries provenance for one snapshot.
type Metadata struct {
	FeatureVersion  string
	GeneratedAt     time.Time
	SourceTimestamp time.Time
	Symbol          string
	// NormalizeTrace is the only permissible source of truth for scale
	// diagnostics on this snapshot (spec §4.2): what the MetricsNormalizer
	// converted, skipped, or failed to convert before features were built.
	NormalizeTrace *normalize.Trace
}

// Snapshot is the immutable, per-tick feature value object (spec §3).
// It is created fresh on every tick and discarded after one decision.
type Snapshot struct {
	Price          Price
	OpenInterest   OpenInterest
	TakerImbalance TakerImbalance
	Volume         Volume
	Funding        Funding
	Coverage       Coverage
	Metadata       Metadata
}

// FeatureVersion is stamped on every snapshot this builder produces.
const FeatureVersion = "v1"
