// Package alignment implements AlignmentAnalyzer (spec §4.8): it
// classifies the relationship between the short-term and medium-term
// finals and, when they disagree, proposes a recommended action.
package alignment

import (
	"fmt"
	"strings"

	"github.com/sawpanic/advisoryengine/internal/decision"
	"github.com/sawpanic/advisoryengine/internal/gate"
	"github.com/sawpanic/advisoryengine/internal/thresholds"
)

// Type is the classification of how the two horizons relate.
type Type string

const (
	BothLong           Type = "BOTH_LONG"
	BothShort          Type = "BOTH_SHORT"
	BothNoTrade        Type = "BOTH_NO_TRADE"
	ConflictLongShort  Type = "CONFLICT_LONG_SHORT"
	ConflictShortLong  Type = "CONFLICT_SHORT_LONG"
	PartialLong        Type = "PARTIAL_LONG"
	PartialShort       Type = "PARTIAL_SHORT"
)

// MarshalJSON renders the lower-case string form required by the result
// schema (spec §6).
func (t Type) MarshalJSON() ([]byte, error) {
	b := make([]byte, 0, len(t)+2)
	b = append(b, '"')
	b = append(b, strings.ToLower(string(t))...)
	b = append(b, '"')
	return b, nil
}

// Resolution is the configured conflict-resolution policy (spec §4.8).
type Resolution string

const (
	ResolutionNoTrade               Resolution = "NO_TRADE"
	ResolutionFollowMediumTerm      Resolution = "FOLLOW_MEDIUM_TERM"
	ResolutionFollowShortTerm       Resolution = "FOLLOW_SHORT_TERM"
	ResolutionFollowHigherConfidence Resolution = "FOLLOW_HIGHER_CONFIDENCE"
)

// Analysis is the AlignmentAnalyzer output attached to DualTimeframeResult.
type Analysis struct {
	AlignmentType         Type
	IsAligned             bool
	HasConflict           bool
	ConflictResolution    Resolution
	RecommendedAction     decision.Decision
	RecommendedConfidence thresholds.Confidence
	RecommendationNotes   string
}

// Analyze classifies short and medium finals and proposes a recommended
// action (spec §4.8).
func Analyze(short, medium gate.Final, th *thresholds.Thresholds) Analysis {
	t := classify(short.Decision, medium.Decision)

	a := Analysis{
		AlignmentType: t,
		IsAligned:     t == BothLong || t == BothShort || t == BothNoTrade,
		HasConflict:   t == ConflictLongShort || t == ConflictShortLong,
	}

	switch {
	case a.IsAligned:
		a.RecommendedAction = short.Decision
		a.RecommendedConfidence = maxConfidence(short.Confidence, medium.Confidence)
		a.RecommendationNotes = fmt.Sprintf("both horizons agree on %s", short.Decision)

	case a.HasConflict:
		resolution := Resolution(th.DualTimeframe.ConflictResolution)
		if resolution == "" {
			resolution = ResolutionNoTrade
		}
		a.ConflictResolution = resolution
		a.RecommendedAction, a.RecommendedConfidence, a.RecommendationNotes = resolveConflict(resolution, short, medium)

	default: // PARTIAL_LONG / PARTIAL_SHORT
		var active gate.Final
		if short.Decision != decision.NoTrade {
			active = short
		} else {
			active = medium
		}
		a.RecommendedAction = active.Decision
		a.RecommendedConfidence = active.Confidence
		a.RecommendationNotes = fmt.Sprintf("only one horizon has a signal: %s", active.Decision)
	}

	return a
}

func classify(short, medium decision.Decision) Type {
	switch {
	case short == decision.Long && medium == decision.Long:
		return BothLong
	case short == decision.Short && medium == decision.Short:
		return BothShort
	case short == decision.NoTrade && medium == decision.NoTrade:
		return BothNoTrade
	case short == decision.Long && medium == decision.Short:
		return ConflictLongShort
	case short == decision.Short && medium == decision.Long:
		return ConflictShortLong
	case short == decision.NoTrade:
		if medium == decision.Long {
			return PartialLong
		}
		return PartialShort
	default:
		if short == decision.Long {
			return PartialLong
		}
		return PartialShort
	}
}

// resolveConflict applies the configured policy, never altering either
// final's own decision or executability — only the recommendation.
func resolveConflict(resolution Resolution, short, medium gate.Final) (decision.Decision, thresholds.Confidence, string) {
	switch resolution {
	case ResolutionFollowMediumTerm:
		return medium.Decision, stepDownIfDisagreeing(medium, short), "medium-term horizon takes priority on conflict"
	case ResolutionFollowShortTerm:
		return short.Decision, stepDownIfDisagreeing(short, medium), "short-term horizon takes priority on conflict"
	case ResolutionFollowHigherConfidence:
		if short.Confidence >= medium.Confidence {
			return short.Decision, stepDownIfDisagreeing(short, medium), "short-term horizon has the higher confidence"
		}
		return medium.Decision, stepDownIfDisagreeing(medium, short), "medium-term horizon has the higher confidence"
	default:
		return decision.NoTrade, thresholds.Low, "conflicting horizons resolved to no_trade per configured policy"
	}
}

// stepDownIfDisagreeing lowers the chosen side's confidence by one step
// when the non-chosen side disagrees strongly (confidence >= HIGH),
// since a strong opposing signal should temper the recommendation.
func stepDownIfDisagreeing(chosen, other gate.Final) thresholds.Confidence {
	if other.Confidence >= thresholds.High && chosen.Confidence > thresholds.Low {
		return chosen.Confidence - 1
	}
	return chosen.Confidence
}

func maxConfidence(a, b thresholds.Confidence) thresholds.Confidence {
	if a > b {
		return a
	}
	return b
}
