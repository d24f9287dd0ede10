package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/tally/internal/common"
)

func newTestCache(t *testing.T) *Memory {
	t.Helper()
	m := NewMemory(common.NewSilentLogger(), time.Minute)
	t.Cleanup(m.Close)
	return m
}

func TestGetOrComputeCachesValue(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()
	calls := 0

	compute := func(ctx context.Context) (any, error) {
		calls++
		return "artifact", nil
	}

	v, err := m.GetOrCompute(ctx, "scorecard:TQNT", time.Minute, 0, compute)
	require.NoError(t, err)
	assert.Equal(t, "artifact", v)

	v, err = m.GetOrCompute(ctx, "scorecard:TQNT", time.Minute, 0, compute)
	require.NoError(t, err)
	assert.Equal(t, "artifact", v)
	assert.Equal(t, 1, calls, "second call is served from cache")

	stats := m.Stats()
	assert.Equal(t, 1, stats.Entries)
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
}

func TestGetOrComputeExpiry(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()
	calls := 0

	compute := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	v, err := m.GetOrCompute(ctx, "k", 10*time.Millisecond, 0, compute)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	time.Sleep(20 * time.Millisecond)

	v, err = m.GetOrCompute(ctx, "k", time.Minute, 0, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, v, "expired entry recomputes")
}

func TestGetOrComputeCoalescesConcurrentCallers(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()

	var calls atomic.Int64
	gate := make(chan struct{})
	compute := func(ctx context.Context) (any, error) {
		calls.Add(1)
		<-gate
		return "shared", nil
	}

	const workers = 16
	var wg sync.WaitGroup
	results := make([]any, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := m.GetOrCompute(ctx, "slow", time.Minute, 0, compute)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}

	// Let the workers pile onto the flight before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(gate)
	wg.Wait()

	assert.Equal(t, int64(1), calls.Load(), "one computation serves all callers")
	for _, r := range results {
		assert.Equal(t, "shared", r)
	}
}

func TestGetOrComputeCachesErrors(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()
	boom := errors.New("upstream down")
	calls := 0

	compute := func(ctx context.Context) (any, error) {
		calls++
		return nil, boom
	}

	_, err := m.GetOrCompute(ctx, "k", time.Minute, 50*time.Millisecond, compute)
	assert.ErrorIs(t, err, boom)

	_, err = m.GetOrCompute(ctx, "k", time.Minute, 50*time.Millisecond, compute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls, "the cached error absorbs the retry")

	_, ok := m.Get("k")
	assert.False(t, ok, "cached errors are not visible as values")

	time.Sleep(60 * time.Millisecond)
	_, err = m.GetOrCompute(ctx, "k", time.Minute, 50*time.Millisecond, compute)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, calls, "the error entry expires on its own TTL")
}

func TestGetOrComputeZeroErrTTLSkipsErrorCaching(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()
	calls := 0

	compute := func(ctx context.Context) (any, error) {
		calls++
		return nil, errors.New("nope")
	}

	_, _ = m.GetOrCompute(ctx, "k", time.Minute, 0, compute)
	_, _ = m.GetOrCompute(ctx, "k", time.Minute, 0, compute)
	assert.Equal(t, 2, calls)
	assert.Equal(t, int64(0), m.Stats().ErrorsSaved)
}

func TestInvalidatePrefix(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()

	keys := []string{"analysis:TQNT:daily", "analysis:TQNT:weekly", "analysis:OTHER:daily"}
	for _, k := range keys {
		_, err := m.GetOrCompute(ctx, k, time.Minute, 0, func(ctx context.Context) (any, error) {
			return k, nil
		})
		require.NoError(t, err)
	}

	removed := m.InvalidatePrefix("analysis:TQNT:")
	assert.Equal(t, 2, removed)

	_, ok := m.Get("analysis:TQNT:daily")
	assert.False(t, ok)
	_, ok = m.Get("analysis:OTHER:daily")
	assert.True(t, ok, "other tickers stay cached")
	assert.Equal(t, int64(2), m.Stats().Evictions)
}

func TestInvalidateSingle(t *testing.T) {
	m := newTestCache(t)
	ctx := context.Background()

	_, err := m.GetOrCompute(ctx, "k", time.Minute, 0, func(ctx context.Context) (any, error) {
		return 1, nil
	})
	require.NoError(t, err)

	m.Invalidate("k")
	_, ok := m.Get("k")
	assert.False(t, ok)

	m.Invalidate("missing")
	assert.Equal(t, int64(1), m.Stats().Evictions, "missing keys do not count as evictions")
}

func TestJanitorSweepsExpiredEntries(t *testing.T) {
	m := NewMemory(common.NewSilentLogger(), 15*time.Millisecond)
	defer m.Close()
	ctx := context.Background()

	_, err := m.GetOrCompute(ctx, "brief", 5*time.Millisecond, 0, func(ctx context.Context) (any, error) {
		return 1, nil
	})
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return m.Stats().Entries == 0
	}, time.Second, 10*time.Millisecond, "janitor removes the expired entry")
}

func TestTyped(t *testing.T) {
	v, err := Typed[string]("hello", nil)
	require.NoError(t, err)
	assert.Equal(t, "hello", v)

	boom := errors.New("boom")
	_, err = Typed[string](nil, boom)
	assert.ErrorIs(t, err, boom)
}
