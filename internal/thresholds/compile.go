package thresholds

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"

	"github.com/sawpanic/advisoryengine/internal/metrics"
	"github.com/sawpanic/advisoryengine/internal/reasontag"
)

// ConfigError is returned by Compile on any validation failure; it names
// the offending key and value so startup diagnostics are actionable.
type ConfigError struct {
	Key   string
	Value interface{}
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("threshold config error at %q (value=%v): %s", e.Key, e.Value, e.Msg)
}

// migrations maps deprecated top-level-dotted keys to their replacement.
// Applied to the raw document before strict decoding.
var migrations = map[string]string{
	"direction.trend.buy_sell_imbalance":                        "direction.trend.long_imbalance",
	"direction.trend.min_buy_sell_imbalance":                    "direction.trend.long_imbalance",
	"trade_quality.absorption.buy_sell_imbalance":               "trade_quality.absorption.imbalance",
	"direction.range.short_term_opportunity.buy_sell_imbalance": "direction.range.short_term_opportunity.imbalance",
}

var migrationWarnedOnce sync.Map

// Compile loads, migrates, validates, hashes, and freezes the threshold
// document at path (spec §4.3).
func Compile(path string) (*Thresholds, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read threshold config %s: %w", path, err)
	}
	return compileBytes(data)
}

// CompileBytes runs the same pipeline as Compile directly over an
// in-memory document, for callers (tests, embedded defaults) that don't
// have a file on disk.
func CompileBytes(data []byte) (*Thresholds, error) {
	return compileBytes(data)
}

func compileBytes(data []byte) (*Thresholds, error) {
	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse threshold YAML: %w", err)
	}

	migrated := migrate(raw)

	// Re-marshal the migrated document so the typed decode below sees the
	// new key names regardless of nesting.
	migratedBytes, err := yaml.Marshal(migrated)
	if err != nil {
		return nil, fmt.Errorf("re-marshal migrated config: %w", err)
	}

	warnUnknownTopLevelKeys(migrated)

	var cfg Thresholds
	dec := yaml.NewDecoder(bytes.NewReader(migratedBytes))
	if err := dec.Decode(&cfg); err != nil {
		return nil, &ConfigError{Key: "<root>", Msg: err.Error()}
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	cfg.Version = canonicalHash(migrated)

	return &cfg, nil
}

// migrate walks known deprecated dotted keys and renames them in place on
// a copy of raw. Each distinct migration logs at most one warning per
// process lifetime.
func migrate(raw map[string]interface{}) map[string]interface{} {
	out := deepCopyMap(raw)
	for oldKey, newKey := range migrations {
		v, ok := popDotted(out, oldKey)
		if !ok {
			continue
		}
		setDotted(out, newKey, v)
		metrics.ThresholdMigrationsTotal.WithLabelValues(oldKey).Inc()
		if _, loaded := migrationWarnedOnce.LoadOrStore(oldKey, true); !loaded {
			log.Warn().Str("deprecated_key", oldKey).Str("new_key", newKey).Msg("threshold config uses a deprecated key; migrating")
		}
	}
	return out
}

func validate(cfg *Thresholds) error {
	if cfg.MarketRegime.ExtremePriceChange1h <= 0 {
		return &ConfigError{Key: "market_regime.extreme_price_change_1h", Value: cfg.MarketRegime.ExtremePriceChange1h, Msg: "must be > 0"}
	}
	if cfg.MarketRegime.TrendPriceChange6h <= 0 {
		return &ConfigError{Key: "market_regime.trend_price_change_6h", Value: cfg.MarketRegime.TrendPriceChange6h, Msg: "must be > 0"}
	}
	if cfg.RiskExposure.Crowding.FundingAbs < 0 || cfg.RiskExposure.Crowding.FundingAbs > 1 {
		return &ConfigError{Key: "risk_exposure.crowding.funding_abs", Value: cfg.RiskExposure.Crowding.FundingAbs, Msg: "must lie in [0,1]"}
	}

	n := shortTermAxisCount
	if cfg.DualTimeframe.ShortTerm.RequiredSignals < 1 || cfg.DualTimeframe.ShortTerm.RequiredSignals > n {
		return &ConfigError{
			Key:   "dual_timeframe.short_term.required_signals",
			Value: cfg.DualTimeframe.ShortTerm.RequiredSignals,
			Msg:   fmt.Sprintf("must lie in [1,%d]", n),
		}
	}

	for tag, conf := range cfg.ConfidenceScoring.TagCaps {
		if _, ok := reasontag.Catalog[tag]; !ok {
			return &ConfigError{Key: "confidence_scoring.tag_caps", Value: tag, Msg: "references an unknown reason tag"}
		}
		if conf < Low || conf > Ultra {
			return &ConfigError{Key: "confidence_scoring.tag_caps." + string(tag), Value: conf, Msg: "not a valid confidence level"}
		}
	}

	switch cfg.DualTimeframe.ConflictResolution {
	case "", "NO_TRADE", "FOLLOW_MEDIUM_TERM", "FOLLOW_SHORT_TERM", "FOLLOW_HIGHER_CONFIDENCE":
	default:
		return &ConfigError{Key: "dual_timeframe.conflict_resolution", Value: cfg.DualTimeframe.ConflictResolution, Msg: "not a recognized resolution policy"}
	}

	return nil
}

// knownTopLevelSections are the section names §4.3 enumerates. Anything
// else at the document root is ignored, with a warning, rather than
// failing compilation.
var knownTopLevelSections = map[string]bool{
	"market_regime":      true,
	"risk_exposure":       true,
	"trade_quality":       true,
	"direction":           true,
	"confidence_scoring":  true,
	"dual_timeframe":      true,
}

func warnUnknownTopLevelKeys(doc map[string]interface{}) {
	for k := range doc {
		if !knownTopLevelSections[k] {
			log.Warn().Str("unknown_key", k).Msg("ignoring unrecognized top-level threshold config key")
		}
	}
}

// shortTermAxisCount is N in "K of N" short-term signal voting: 15m price
// change, 15m imbalance, 15m volume ratio, 5m confirmation (spec §4.6).
const shortTermAxisCount = 4

// canonicalHash computes SHA256 over a canonical YAML re-encoding of the
// (already migrated) source document, so the version is stable across key
// reordering in the source file.
func canonicalHash(doc map[string]interface{}) string {
	canon := canonicalize(doc)
	b, err := yaml.Marshal(canon)
	if err != nil {
		// yaml.Marshal over a map built entirely from decoded YAML cannot
		// fail in practice; treat as a fatal encoding bug if it ever does.
		panic(fmt.Sprintf("canonical hash marshal: %v", err))
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// canonicalize recursively copies the document's maps and slices. It does
// not impose an order itself (a Go map has none); the stable key order of
// the hash input comes from yaml.v3, which marshals map[string]interface{}
// keys in sorted order. TestCompileDeterministicVersionAcrossKeyOrder
// checks the resulting hash stability.
func canonicalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			out[k] = canonicalize(t[k])
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = canonicalize(e)
		}
		return out
	default:
		return v
	}
}
