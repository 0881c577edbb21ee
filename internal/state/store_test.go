package state

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sawpanic/advisoryengine/internal/decision"
)

func TestMemoryStoreSaveAndGet(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	_, ok := s.GetLastTime("BTCUSDT", decision.ShortTerm)
	assert.False(t, ok)

	s.Save("BTCUSDT", decision.ShortTerm, now, decision.Long)

	gotTime, ok := s.GetLastTime("BTCUSDT", decision.ShortTerm)
	assert.True(t, ok)
	assert.Equal(t, now, gotTime)

	gotDir, ok := s.GetLastDirection("BTCUSDT", decision.ShortTerm)
	assert.True(t, ok)
	assert.Equal(t, decision.Long, gotDir)
}

func TestMemoryStoreKeysAreIndependent(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.Save("BTCUSDT", decision.ShortTerm, now, decision.Long)

	_, ok := s.GetLastDirection("BTCUSDT", decision.MediumTerm)
	assert.False(t, ok, "medium_term key must be untouched by a short_term save")

	_, ok = s.GetLastDirection("ETHUSDT", decision.ShortTerm)
	assert.False(t, ok, "a different symbol must be untouched")
}

func TestMemoryStoreOverwrites(t *testing.T) {
	s := NewMemoryStore()
	t0 := time.Now()
	t1 := t0.Add(time.Hour)

	s.Save("BTCUSDT", decision.ShortTerm, t0, decision.Long)
	s.Save("BTCUSDT", decision.ShortTerm, t1, decision.Short)

	gotTime, _ := s.GetLastTime("BTCUSDT", decision.ShortTerm)
	gotDir, _ := s.GetLastDirection("BTCUSDT", decision.ShortTerm)
	assert.Equal(t, t1, gotTime)
	assert.Equal(t, decision.Short, gotDir)
}

func TestMemoryStoreClearScopedToSymbol(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.Save("BTCUSDT", decision.ShortTerm, now, decision.Long)
	s.Save("ETHUSDT", decision.ShortTerm, now, decision.Short)

	s.Clear("BTCUSDT")

	_, ok := s.GetLastDirection("BTCUSDT", decision.ShortTerm)
	assert.False(t, ok)
	_, ok = s.GetLastDirection("ETHUSDT", decision.ShortTerm)
	assert.True(t, ok, "clearing one symbol must not affect another")
}

func TestMemoryStoreClearAll(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.Save("BTCUSDT", decision.ShortTerm, now, decision.Long)
	s.Save("ETHUSDT", decision.ShortTerm, now, decision.Short)

	s.Clear("")

	_, ok := s.GetLastDirection("BTCUSDT", decision.ShortTerm)
	assert.False(t, ok)
	_, ok = s.GetLastDirection("ETHUSDT", decision.ShortTerm)
	assert.False(t, ok)
}

func TestMemoryStoreWithLockAtomicWriteBack(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()

	s.WithLock("BTCUSDT", decision.ShortTerm, func(last Record, hasLast bool) (Record, bool) {
		assert.False(t, hasLast)
		return Record{LastDecisionTime: now, LastDirection: decision.Long}, true
	})

	gotDir, ok := s.GetLastDirection("BTCUSDT", decision.ShortTerm)
	assert.True(t, ok)
	assert.Equal(t, decision.Long, gotDir)
}

func TestMemoryStoreWithLockNoWriteLeavesEntryUnchanged(t *testing.T) {
	s := NewMemoryStore()
	now := time.Now()
	s.Save("BTCUSDT", decision.ShortTerm, now, decision.Long)

	s.WithLock("BTCUSDT", decision.ShortTerm, func(last Record, hasLast bool) (Record, bool) {
		return Record{}, false
	})

	gotDir, ok := s.GetLastDirection("BTCUSDT", decision.ShortTerm)
	assert.True(t, ok)
	assert.Equal(t, decision.Long, gotDir)
}

func TestMemoryStoreConcurrentDistinctKeysDoNotContend(t *testing.T) {
	s := NewMemoryStore()
	var wg sync.WaitGroup
	symbols := []string{"BTCUSDT", "ETHUSDT", "SOLUSDT", "XRPUSDT"}
	for _, sym := range symbols {
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				s.Save(symbol, decision.ShortTerm, time.Now(), decision.Long)
			}
		}(sym)
	}
	wg.Wait()

	for _, sym := range symbols {
		_, ok := s.GetLastDirection(sym, decision.ShortTerm)
		assert.True(t, ok)
	}
}
