// Package decision implements the pure DecisionCore (spec §4.6): a
// stateless pipeline that turns a feature snapshot and a thresholds
// object into a draft decision for one horizon. No clock, no I/O, no
// mutable state — the same inputs always produce the same draft.
package decision

import (
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

// Decision is the three-way advisory verdict (spec §3).
type Decision int

const (
	NoTrade Decision = iota
	Long
	Short
)

func (d Decision) String() string {
	switch d {
	case Long:
		return "long"
	case Short:
		return "short"
	default:
		return "no_trade"
	}
}

// MarshalJSON renders the lower-case string form required by the result
// schema (spec §6).
func (d Decision) MarshalJSON() ([]byte, error) {
	return quoteJSON(d.String()), nil
}

// MarketRegime is the Stage A coarse classification.
type MarketRegime int

const (
	Range MarketRegime = iota
	Trend
	Extreme
)

func (r MarketRegime) String() string {
	switch r {
	case Trend:
		return "trend"
	case Extreme:
		return "extreme"
	default:
		return "range"
	}
}

func (r MarketRegime) MarshalJSON() ([]byte, error) {
	return quoteJSON(r.String()), nil
}

// TradeQuality is the Stage C classification tier.
type TradeQuality int

const (
	Good TradeQuality = iota
	Uncertain
	Poor
)

func (q TradeQuality) String() string {
	switch q {
	case Uncertain:
		return "uncertain"
	case Poor:
		return "poor"
	default:
		return "good"
	}
}

func (q TradeQuality) MarshalJSON() ([]byte, error) {
	return quoteJSON(q.String()), nil
}

// ExecutionPermission is the Stage G policy-level permission, distinct
// from the gate's final executable flag.
type ExecutionPermission int

const (
	Allow ExecutionPermission = iota
	AllowReduced
	Deny
)

func (p ExecutionPermission) String() string {
	switch p {
	case AllowReduced:
		return "allow_reduced"
	case Deny:
		return "deny"
	default:
		return "allow"
	}
}

func (p ExecutionPermission) MarshalJSON() ([]byte, error) {
	return quoteJSON(p.String()), nil
}

// Timeframe names one of the two independent evaluation horizons.
type Timeframe string

const (
	ShortTerm  Timeframe = "short_term"
	MediumTerm Timeframe = "medium_term"
)

// Draft is the DecisionCore output for one horizon (spec §3). It
// contains no time- or state-derived field — everything downstream of
// here that needs "now" belongs to DecisionGate.
type Draft struct {
	Decision            Decision
	Confidence          thresholds.Confidence
	MarketRegime        MarketRegime
	TradeQuality        TradeQuality
	ExecutionPermission ExecutionPermission
	ReasonTags          []reasontag.Tag
	KeyMetrics          map[string]float64
}

// HasTag reports whether tag is present in the draft's reason tags.
func (d Draft) HasTag(tag reasontag.Tag) bool {
	for _, t := range d.ReasonTags {
		if t == tag {
			return true
		}
	}
	return false
}

func quoteJSON(s string) []byte {
	b := make([]byte, 0, len(s)+2)
	b = append(b, '"')
	b = append(b, s...)
	b = append(b, '"')
	return b
}
