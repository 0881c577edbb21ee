// Package gate implements DecisionGate (spec §4.7): per-horizon
// frequency control applied against a minimal state store, turning a
// pure DecisionCore draft into an executable final decision without
// ever rewriting its signal.
package gate

import (
	"time"

	"github.com/sawpanic/advisoryengine/internal/decision"
	"github.com/sawpanic/advisoryengine/internal/metrics"
	"github.com/sawpanic/advisoryengine/internal/reasontag"
	"github.com/sawpanic/advisoryengine/internal/state"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

// FrequencyControl is the gate's audit log for one horizon (spec §3).
type FrequencyControl struct {
	IsBlocked           bool            `json:"is_blocked"`
	BlockReason         string          `json:"block_reason,omitempty"`
	IsCooling           bool            `json:"is_cooling"`
	MinIntervalViolated bool            `json:"min_interval_violated"`
	AddedTags           []reasontag.Tag `json:"added_tags,omitempty"`
}

// Final is a draft plus the gate's timing verdict (spec §3).
type Final struct {
	decision.Draft
	Timeframe        decision.Timeframe
	Executable       bool
	FrequencyControl FrequencyControl
}

// Apply implements the gate contract for one horizon (spec §4.7).
func Apply(draft decision.Draft, symbol string, timeframe decision.Timeframe, now time.Time, th *thresholds.Thresholds, store state.Store) Final {
	fc := FrequencyControl{}

	if draft.Decision == decision.NoTrade {
		return Final{
			Draft:            draft,
			Timeframe:        timeframe,
			Executable:       gateExecutable(draft, fc),
			FrequencyControl: fc,
		}
	}

	cooldown, minInterval := frequencyBounds(timeframe, th)

	store.WithLock(symbol, timeframe, func(last state.Record, hasLast bool) (state.Record, bool) {
		if hasLast {
			elapsed := now.Sub(last.LastDecisionTime)
			sameDirection := last.LastDirection == draft.Decision

			if sameDirection && elapsed < cooldown {
				fc.IsCooling = true
				fc.IsBlocked = true
				fc.BlockReason = "frequency_cooling"
				fc.AddedTags = append(fc.AddedTags, reasontag.FrequencyCooling)
			} else if !sameDirection && elapsed < minInterval {
				fc.MinIntervalViolated = true
				fc.IsBlocked = true
				fc.BlockReason = "min_interval_violated"
				fc.AddedTags = append(fc.AddedTags, reasontag.MinIntervalViolated, reasontag.DirectionFlip)
			} else if !sameDirection {
				fc.AddedTags = append(fc.AddedTags, reasontag.DirectionFlip)
			}
		}

		if !gateExecutable(draft, fc) {
			return state.Record{}, false
		}
		return state.Record{LastDecisionTime: now, LastDirection: draft.Decision}, true
	})

	executable := gateExecutable(draft, fc)
	if fc.IsBlocked {
		metrics.GateBlocksTotal.WithLabelValues(string(timeframe), fc.BlockReason).Inc()
	}

	return Final{
		Draft:            draft,
		Timeframe:        timeframe,
		Executable:       executable,
		FrequencyControl: fc,
	}
}

// gateExecutable implements the executable rule (spec §4.7), refined so
// that a permission-DENY draft (Stage B veto, invalid/incomplete data)
// is never executable even though its decision is NO_TRADE — required
// for scenario S1 and the "degradation without silence" property
// (spec §8) to hold simultaneously with "NO_TRADE is always
// executable=true" for the ordinary no-signal case.
func gateExecutable(draft decision.Draft, fc FrequencyControl) bool {
	if draft.ExecutionPermission == decision.Deny {
		return false
	}
	if draft.Decision == decision.NoTrade {
		return true
	}
	return !fc.IsCooling && !fc.MinIntervalViolated
}

func frequencyBounds(timeframe decision.Timeframe, th *thresholds.Thresholds) (cooldown, minInterval time.Duration) {
	fc := th.DualTimeframe.FrequencyControl
	if timeframe == decision.ShortTerm {
		return fc.ShortCooldown.Duration(), fc.ShortMinInterval.Duration()
	}
	return fc.MediumCooldown.Duration(), fc.MediumMinInterval.Duration()
}

// DualFinal bundles both horizons' gated output (spec §4.9 step 4).
type DualFinal struct {
	Short  Final
	Medium Final
}

// ApplyDual gates both horizons of a DualDraft independently; each
// horizon has its own (symbol, timeframe) key in store, so blocking one
// horizon never affects the other.
func ApplyDual(dual decision.DualDraft, symbol string, now time.Time, th *thresholds.Thresholds, store state.Store) DualFinal {
	return DualFinal{
		Short:  Apply(dual.Short, symbol, decision.ShortTerm, now, th, store),
		Medium: Apply(dual.Medium, symbol, decision.MediumTerm, now, th, store),
	}
}
