// Package normalize converts percent-point fields to decimal scale on a
// field-family regex basis and records a trace of what it did, so scale
// diagnostics always have a single source of truth (spec §4.2).
package normalize

import (
	"regexp"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/advisoryengine/internal/metrics"
)

// Policy controls behavior when _metadata.percentage_format is missing.
type Policy string

const (
	PolicyWarn               Policy = "WARN"
	PolicyFailFast           Policy = "FAIL_FAST"
	PolicyAssumePercentPoint Policy = "ASSUME_PERCENT_POINT"
)

// Format is the declared scale of percentage-bearing fields in a snapshot.
type Format string

const (
	FormatPercentPoint Format = "percent_point"
	FormatDecimal      Format = "decimal"
)

// families lists the regexes that identify percentage-bearing fields.
var families = []*regexp.Regexp{
	regexp.MustCompile(`^price_change_\w+$`),
	regexp.MustCompile(`^oi_change_\w+$`),
}

// rangeCheckLimit is the absolute bound a converted percentage field must
// satisfy; |price_change| > 1.0 after conversion is a range-check failure.
const rangeCheckLimit = 1.0

// Trace records everything the normalizer did to one snapshot.
type Trace struct {
	InputFormat Format
	Converted   []string
	// Skipped lists fields that did not match any percentage-bearing
	// family (spec §4.2) — left untouched, not a failure.
	Skipped []string
	// ConversionFailed lists fields that matched a family but carried a
	// non-numeric value, so no conversion could be applied.
	ConversionFailed []string
	RangeCheckFailed []string
	PolicyFired      Policy
	AssumedFormat    bool
}

// ErrInvalidData is returned under FAIL_FAST when format metadata is
// missing.
type ErrInvalidData struct{ Symbol string }

func (e *ErrInvalidData) Error() string {
	return "missing percentage_format metadata for symbol " + e.Symbol
}

// warnedOnce guards the one-time-per-symbol warning under WARN policy.
var warnedOnce sync.Map

// Normalize converts matched fields in place on a shallow copy of raw and
// returns the normalized snapshot plus a trace. percentage_format is read
// from raw["_metadata"]["percentage_format"]; when it is absent, policy
// decides the outcome.
func Normalize(symbol string, raw map[string]interface{}, policy Policy) (map[string]interface{}, *Trace, error) {
	format, assumed, err := resolveFormat(symbol, raw, policy)
	if err != nil {
		return nil, nil, err
	}

	trace := &Trace{InputFormat: format, PolicyFired: policy, AssumedFormat: assumed}
	out := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		out[k] = v
	}

	for field, v := range raw {
		if field == "_metadata" {
			continue
		}
		if !matchesFamily(field) {
			trace.Skipped = append(trace.Skipped, field)
			continue
		}

		f, ok := asFloat(v)
		if !ok {
			trace.ConversionFailed = append(trace.ConversionFailed, field)
			continue
		}

		if format == FormatPercentPoint {
			f = f / 100.0
		}

		if abs(f) > rangeCheckLimit {
			trace.RangeCheckFailed = append(trace.RangeCheckFailed, field)
		}

		out[field] = f
		trace.Converted = append(trace.Converted, field)
	}

	return out, trace, nil
}

func resolveFormat(symbol string, raw map[string]interface{}, policy Policy) (Format, bool, error) {
	meta, _ := raw["_metadata"].(map[string]interface{})
	if meta != nil {
		if v, ok := meta["percentage_format"].(string); ok && v != "" {
			return Format(v), false, nil
		}
	}

	switch policy {
	case PolicyFailFast:
		metrics.NormalizerWarningsTotal.WithLabelValues(symbol, "invalid_data").Inc()
		return "", false, &ErrInvalidData{Symbol: symbol}
	case PolicyAssumePercentPoint:
		return FormatPercentPoint, true, nil
	default: // PolicyWarn
		metrics.NormalizerWarningsTotal.WithLabelValues(symbol, "missing_percentage_format").Inc()
		if _, loaded := warnedOnce.LoadOrStore(symbol, true); !loaded {
			log.Warn().Str("symbol", symbol).Msg("missing percentage_format metadata; assuming percent_point")
		}
		return FormatPercentPoint, true, nil
	}
}

func matchesFamily(field string) bool {
	for _, re := range families {
		if re.MatchString(field) {
			return true
		}
	}
	return false
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
