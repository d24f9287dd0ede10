// Package cache provides the in-memory memoization layer for computed
// analysis artifacts.
package cache

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/bobmcallan/tally/internal/common"
	"github.com/bobmcallan/tally/internal/interfaces"
)

// entry is one immutable cached result. Entries are replaced, never
// mutated, so a value handed out stays safe to read while a newer
// computation replaces it.
type entry struct {
	value     any
	err       error
	expiresAt time.Time
}

func (e *entry) live(now time.Time) bool {
	return now.Before(e.expiresAt)
}

// Memory is the in-process cache behind every computed artifact. A
// singleflight group collapses concurrent computations of the same key
// into one call.
type Memory struct {
	logger *common.Logger

	mu      sync.RWMutex
	entries map[string]*entry

	group singleflight.Group

	hits        atomic.Int64
	misses      atomic.Int64
	evictions   atomic.Int64
	coalesced   atomic.Int64
	errorsSaved atomic.Int64

	stop      chan struct{}
	closeOnce sync.Once
}

var _ interfaces.Cache = (*Memory)(nil)

// NewMemory creates a cache whose janitor sweeps expired entries on the
// given interval.
func NewMemory(logger *common.Logger, janitorInterval time.Duration) *Memory {
	m := &Memory{
		logger:  logger,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	if janitorInterval <= 0 {
		janitorInterval = 5 * time.Minute
	}
	go m.janitor(janitorInterval)
	return m
}

// GetOrCompute returns the live cached value for key, or computes it.
// Concurrent callers for the same key share one computation. Failed
// computations are cached for errTTL so a broken upstream is retried on
// its own schedule instead of per request.
func (m *Memory) GetOrCompute(ctx context.Context, key string, ttl, errTTL time.Duration, fn func(ctx context.Context) (any, error)) (any, error) {
	if v, err, ok := m.lookup(key); ok {
		return v, err
	}
	m.misses.Add(1)

	v, err, shared := m.group.Do(key, func() (any, error) {
		// A concurrent flight may have filled the entry between the
		// lookup above and acquiring the flight.
		if v, err, ok := m.lookup(key); ok {
			return v, err
		}

		value, err := fn(ctx)
		now := time.Now()
		if err != nil {
			if errTTL > 0 {
				m.store(key, &entry{err: err, expiresAt: now.Add(errTTL)})
				m.errorsSaved.Add(1)
			}
			return nil, err
		}
		m.store(key, &entry{value: value, expiresAt: now.Add(ttl)})
		return value, nil
	})
	if shared {
		m.coalesced.Add(1)
	}
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Get returns a live cached value without computing. Entries holding a
// cached error report absent.
func (m *Memory) Get(key string) (any, bool) {
	v, err, ok := m.lookup(key)
	if !ok || err != nil {
		return nil, false
	}
	return v, true
}

func (m *Memory) lookup(key string) (any, error, bool) {
	m.mu.RLock()
	e, ok := m.entries[key]
	m.mu.RUnlock()
	if !ok || !e.live(time.Now()) {
		return nil, nil, false
	}
	m.hits.Add(1)
	return e.value, e.err, true
}

func (m *Memory) store(key string, e *entry) {
	m.mu.Lock()
	m.entries[key] = e
	m.mu.Unlock()
}

// Invalidate drops a single entry.
func (m *Memory) Invalidate(key string) {
	m.mu.Lock()
	if _, ok := m.entries[key]; ok {
		delete(m.entries, key)
		m.evictions.Add(1)
	}
	m.mu.Unlock()
}

// InvalidatePrefix drops every entry whose key starts with prefix.
func (m *Memory) InvalidatePrefix(prefix string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key := range m.entries {
		if strings.HasPrefix(key, prefix) {
			delete(m.entries, key)
			removed++
		}
	}
	m.evictions.Add(int64(removed))
	return removed
}

// Stats reports activity counters and the current entry count.
func (m *Memory) Stats() interfaces.CacheStats {
	m.mu.RLock()
	entries := len(m.entries)
	m.mu.RUnlock()
	return interfaces.CacheStats{
		Entries:     entries,
		Hits:        m.hits.Load(),
		Misses:      m.misses.Load(),
		Evictions:   m.evictions.Load(),
		Coalesced:   m.coalesced.Load(),
		ErrorsSaved: m.errorsSaved.Load(),
	}
}

// Close stops the expiry janitor.
func (m *Memory) Close() {
	m.closeOnce.Do(func() { close(m.stop) })
}

func (m *Memory) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case now := <-ticker.C:
			m.sweep(now)
		}
	}
}

func (m *Memory) sweep(now time.Time) {
	m.mu.Lock()
	removed := 0
	for key, e := range m.entries {
		if !e.live(now) {
			delete(m.entries, key)
			removed++
		}
	}
	m.mu.Unlock()
	if removed > 0 {
		m.evictions.Add(int64(removed))
		m.logger.Debug().Int("removed", removed).Msg("Cache janitor sweep")
	}
}

// Typed narrows a cache result to its concrete type, passing errors
// through.
func Typed[T any](v any, err error) (T, error) {
	var zero T
	if err != nil {
		return zero, err
	}
	t, ok := v.(T)
	if !ok {
		return zero, nil
	}
	return t, nil
}
