// Package tickcache holds an ordered per-symbol buffer of raw snapshots and
// answers floor-lookups against it. Entries are kept in strictly
// non-decreasing timestamp order; floor lookup never returns a future
// entry, which keeps backtest and live evaluation numerically identical.
package tickcache

import (
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/sawpanic/advisoryengine/internal/metrics"
)

// Reason explains why a floor lookup did not produce a valid result.
type Reason string

const (
	ReasonNone             Reason = ""
	ReasonGapTooLarge      Reason = "GAP_TOO_LARGE"
	ReasonNoHistoricalData Reason = "NO_HISTORICAL_DATA"
)

// Entry is one raw snapshot stored at a timestamp.
type Entry struct {
	Timestamp time.Time
	Snapshot  map[string]interface{}
}

// LookbackResult is the outcome of a floor_lookup call.
type LookbackResult struct {
	Valid        bool
	Entry        Entry
	GapSeconds   float64
	Reason       Reason
}

// Window names the fixed set of lookback windows the engine evaluates.
type Window string

const (
	Window5m  Window = "5m"
	Window15m Window = "15m"
	Window1h  Window = "1h"
	Window6h  Window = "6h"
)

// defaultDurations maps each window name to its lookback duration.
var defaultDurations = map[Window]time.Duration{
	Window5m:  5 * time.Minute,
	Window15m: 15 * time.Minute,
	Window1h:  time.Hour,
	Window6h:  6 * time.Hour,
}

// DefaultToleranceSeconds is the gap tolerance table from spec §4.1.
var DefaultToleranceSeconds = map[Window]float64{
	Window5m:  90,
	Window15m: 300,
	Window1h:  600,
	Window6h:  1800,
}

type shard struct {
	mu      sync.RWMutex
	entries []Entry
}

// Cache is a sharded, symbol-keyed tick buffer.
type Cache struct {
	shardsMu sync.RWMutex
	shards   map[string]*shard

	retention   time.Duration
	staleTicks  uint64
	staleTicksM sync.Mutex
}

// New creates a cache that evicts entries older than retention relative to
// the most recently inserted timestamp for a symbol.
func New(retention time.Duration) *Cache {
	return &Cache{
		shards:    make(map[string]*shard),
		retention: retention,
	}
}

func (c *Cache) shardFor(symbol string) *shard {
	c.shardsMu.RLock()
	s, ok := c.shards[symbol]
	c.shardsMu.RUnlock()
	if ok {
		return s
	}

	c.shardsMu.Lock()
	defer c.shardsMu.Unlock()
	if s, ok = c.shards[symbol]; ok {
		return s
	}
	s = &shard{}
	c.shards[symbol] = s
	return s
}

// Insert appends a snapshot if its timestamp is strictly after the latest
// stored timestamp for the symbol. Out-of-order inserts are discarded and
// counted, never merged or reordered.
func (c *Cache) Insert(symbol string, timestamp time.Time, snapshot map[string]interface{}) bool {
	s := c.shardFor(symbol)

	s.mu.Lock()
	defer s.mu.Unlock()

	if n := len(s.entries); n > 0 && !timestamp.After(s.entries[n-1].Timestamp) {
		c.staleTicksM.Lock()
		c.staleTicks++
		c.staleTicksM.Unlock()
		metrics.StaleTicksTotal.WithLabelValues(symbol).Inc()
		log.Debug().Str("symbol", symbol).Time("timestamp", timestamp).Msg("stale tick discarded")
		return false
	}

	s.entries = append(s.entries, Entry{Timestamp: timestamp, Snapshot: snapshot})
	c.evictLocked(s, timestamp)
	return true
}

// evictLocked drops entries older than retention relative to the latest
// timestamp. Caller must hold s.mu for writing.
func (c *Cache) evictLocked(s *shard, latest time.Time) {
	if c.retention <= 0 {
		return
	}
	cutoff := latest.Add(-c.retention)
	i := 0
	for ; i < len(s.entries); i++ {
		if s.entries[i].Timestamp.After(cutoff) {
			break
		}
	}
	if i > 0 {
		s.entries = append([]Entry(nil), s.entries[i:]...)
	}
}

// StaleTicks returns the number of out-of-order inserts discarded so far.
func (c *Cache) StaleTicks() uint64 {
	c.staleTicksM.Lock()
	defer c.staleTicksM.Unlock()
	return c.staleTicks
}

// FloorLookup returns the entry with the largest timestamp satisfying
// ts <= target, subject to a gap tolerance.
func (c *Cache) FloorLookup(symbol string, target time.Time, toleranceSeconds float64) LookbackResult {
	s := c.shardFor(symbol)

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.entries) == 0 {
		return LookbackResult{Valid: false, Reason: ReasonNoHistoricalData}
	}

	// sort.Search finds the first index whose timestamp is After target;
	// the floor entry, if any, is the one immediately before it.
	idx := sort.Search(len(s.entries), func(i int) bool {
		return s.entries[i].Timestamp.After(target)
	})
	if idx == 0 {
		return LookbackResult{Valid: false, Reason: ReasonNoHistoricalData}
	}

	entry := s.entries[idx-1]
	gap := target.Sub(entry.Timestamp).Seconds()
	if gap > toleranceSeconds {
		return LookbackResult{Valid: false, GapSeconds: gap, Reason: ReasonGapTooLarge, Entry: entry}
	}

	return LookbackResult{Valid: true, Entry: entry, GapSeconds: gap}
}

// Coverage computes a floor lookup for each of the four standard windows
// relative to now, using the default gap tolerances.
func (c *Cache) Coverage(symbol string, now time.Time) map[Window]LookbackResult {
	out := make(map[Window]LookbackResult, len(defaultDurations))
	for w, d := range defaultDurations {
		target := now.Add(-d)
		out[w] = c.FloorLookup(symbol, target, DefaultToleranceSeconds[w])
	}
	return out
}
