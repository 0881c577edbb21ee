// Package metrics exposes the prometheus counters the core publishes for
// its internal invariants (spec §7: "Internal invariants... counted via
// metrics; never raised to the caller"). None of these counters gate
// behavior; they are purely observational.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// StaleTicksTotal counts out-of-order TickCache inserts, per symbol.
	StaleTicksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_engine_stale_ticks_total",
			Help: "Out-of-order ticks discarded by the tick cache, per symbol.",
		},
		[]string{"symbol"},
	)

	// NormalizerWarningsTotal counts MetricsNormalizer policy firings on
	// missing percentage_format metadata (under WARN and FAIL_FAST), per
	// symbol and reason. Range-check failures are recorded only in the
	// normalization trace, not here.
	NormalizerWarningsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_engine_normalizer_warnings_total",
			Help: "MetricsNormalizer warnings emitted, per symbol and reason.",
		},
		[]string{"symbol", "reason"},
	)

	// ThresholdMigrationsTotal counts deprecated-key migrations applied
	// by ThresholdCompiler, per deprecated key.
	ThresholdMigrationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_engine_threshold_migrations_total",
			Help: "Deprecated threshold config keys migrated, per key.",
		},
		[]string{"deprecated_key"},
	)

	// GateBlocksTotal counts DecisionGate blocks, per horizon and reason.
	GateBlocksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_engine_gate_blocks_total",
			Help: "DecisionGate blocks, per timeframe and reason.",
		},
		[]string{"timeframe", "reason"},
	)
)

// MustRegister registers every counter in this package against reg. Call
// once at startup; panics on duplicate registration, matching
// prometheus's own MustRegister convention.
func MustRegister(reg prometheus.Registerer) {
	reg.MustRegister(StaleTicksTotal, NormalizerWarningsTotal, ThresholdMigrationsTotal, GateBlocksTotal)
}
