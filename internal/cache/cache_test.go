package cache

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nyaadere/animatch/internal/domain"
)

// memStore is an in-memory KVStore with injectable faults.
type memStore struct {
	mu     sync.Mutex
	data   map[string]string
	getErr error
	setErr error
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.data[key]
	return v, ok, nil
}

func (m *memStore) Set(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.data[key] = value
	return nil
}

func (m *memStore) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *memStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	var keys []string
	for k := range m.data {
		if len(k) >= len(prefix) && k[:len(prefix)] == prefix {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (m *memStore) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data)
}

// fakeLimiter scripts the decision and counts what the cache does with it.
type fakeLimiter struct {
	mu       sync.Mutex
	decision domain.RateLimitDecision
	checks   int
	records  int
}

func (f *fakeLimiter) Check(apiKey string, cfg domain.RateLimitConfig) domain.RateLimitDecision {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checks++
	return f.decision
}

func (f *fakeLimiter) Record(apiKey string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records++
}

func (f *fakeLimiter) recorded() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.records
}

func newTestCache(store domain.KVStore, limiter Limiter) (*Cache, *time.Time) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c := New(zerolog.Nop(), store, limiter, nil)
	c.now = func() time.Time { return now }
	return c, &now
}

func TestSetGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, _ := newTestCache(store, nil)

	c.Set(ctx, "k", map[string]int{"v": 42}, time.Hour)

	entry := c.Get(ctx, "k")
	require.NotNil(t, entry)
	assert.False(t, entry.IsFailure())
	assert.JSONEq(t, `{"v":42}`, string(entry.Data))

	// Entries live under the namespace prefix.
	_, ok := store.data[KeyPrefix+"k"]
	assert.True(t, ok)
}

func TestGetMissOnAbsent(t *testing.T) {
	c, _ := newTestCache(newMemStore(), nil)
	assert.Nil(t, c.Get(context.Background(), "nope"))
}

func TestEntryExpires(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, now := newTestCache(store, nil)

	c.Set(ctx, "k", "v", time.Hour)
	require.NotNil(t, c.Get(ctx, "k"))

	// Valid strictly before the deadline, stale from it on.
	*now = now.Add(time.Hour)
	assert.Nil(t, c.Get(ctx, "k"))

	// The stale entry was deleted, not left behind.
	assert.Equal(t, 0, store.len())
}

func TestStorageErrorsDegradeToMiss(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, _ := newTestCache(store, nil)

	store.getErr = errors.New("disk on fire")
	assert.Nil(t, c.Get(ctx, "k"))

	// Write errors are swallowed too; Set never panics or returns.
	store.setErr = errors.New("disk still on fire")
	c.Set(ctx, "k", "v", time.Hour)
}

func TestCorruptEntryIsMiss(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, _ := newTestCache(store, nil)

	store.data[KeyPrefix+"k"] = "{not json"
	assert.Nil(t, c.Get(ctx, "k"))
}

func TestWriteRefusesNonPositiveTTL(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, _ := newTestCache(store, nil)

	c.Set(ctx, "k", "v", 0)
	c.Set(ctx, "k2", "v", -time.Minute)
	assert.Equal(t, 0, store.len())
}

func TestDisabledCacheIsPassThrough(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, _ := newTestCache(store, nil)
	disabled := true
	c.disabled = func() bool { return disabled }

	var calls int32
	opts := DefaultOptions()
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`"fresh"`), nil
	}

	// Every call goes through; nothing is stored or read.
	for i := 0; i < 3; i++ {
		data, err := c.CachedCall(ctx, "k", opts, fn)
		require.NoError(t, err)
		assert.Equal(t, json.RawMessage(`"fresh"`), data)
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, store.len())

	// Re-enabling starts caching without a new Cache.
	disabled = false
	_, err := c.CachedCall(ctx, "k", opts, fn)
	require.NoError(t, err)
	_, err = c.CachedCall(ctx, "k", opts, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(4), atomic.LoadInt32(&calls))
}

func TestCachedCallCachesSuccess(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(newMemStore(), nil)

	var calls int32
	opts := DefaultOptions()
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`{"id":1}`), nil
	}

	for i := 0; i < 5; i++ {
		data, err := c.CachedCall(ctx, "k", opts, fn)
		require.NoError(t, err)
		assert.JSONEq(t, `{"id":1}`, string(data))
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFailureCachedWithShorterTTL(t *testing.T) {
	ctx := context.Background()
	c, now := newTestCache(newMemStore(), nil)

	var calls int32
	opts := DefaultOptions()
	opts.TTL = 24 * time.Hour
	opts.FailureTTL = 30 * time.Minute
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("upstream exploded")
	}

	_, err := c.CachedCall(ctx, "k", opts, fn)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRecentFailure))

	// Within the failure TTL the error is served from cache.
	_, err = c.CachedCall(ctx, "k", opts, fn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecentFailure))
	assert.Contains(t, err.Error(), "upstream exploded")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Past the failure TTL the call is retried, well before the success
	// TTL would have elapsed.
	*now = now.Add(31 * time.Minute)
	_, err = c.CachedCall(ctx, "k", opts, fn)
	require.Error(t, err)
	assert.False(t, errors.Is(err, ErrRecentFailure))
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestFailureCachingCanBeDisabled(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(newMemStore(), nil)

	var calls int32
	opts := DefaultOptions()
	opts.CacheFailures = false
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return nil, errors.New("nope")
	}

	for i := 0; i < 3; i++ {
		_, err := c.CachedCall(ctx, "k", opts, fn)
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrRecentFailure))
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCachedCallCoalescesConcurrentCallers(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(newMemStore(), nil)

	var calls int32
	release := make(chan struct{})
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return []byte(`"once"`), nil
	}

	const workers = 8
	var wg sync.WaitGroup
	results := make([]json.RawMessage, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.CachedCall(ctx, "k", DefaultOptions(), fn)
		}(i)
	}

	// Give the workers a moment to pile up behind the in-flight call.
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, json.RawMessage(`"once"`), results[i])
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDifferentKeysDoNotCoalesce(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(newMemStore(), nil)

	var calls int32
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`"v"`), nil
	}

	_, err := c.CachedCall(ctx, "a", DefaultOptions(), fn)
	require.NoError(t, err)
	_, err = c.CachedCall(ctx, "b", DefaultOptions(), fn)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestRateLimitDenialShortCircuits(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	limiter := &fakeLimiter{
		decision: domain.RateLimitDecision{
			Allowed:    false,
			Reason:     "budget exhausted",
			RetryAfter: 42 * time.Second,
		},
	}
	c, now := newTestCache(store, limiter)

	var calls int32
	opts := DefaultOptions()
	opts.APIKey = "anilist"
	opts.RateLimit = domain.RateLimitConfig{Limit: 1, Window: time.Minute}
	fn := func(ctx context.Context) ([]byte, error) {
		atomic.AddInt32(&calls, 1)
		return []byte(`"v"`), nil
	}

	_, err := c.CachedCall(ctx, "k", opts, fn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRateLimited))
	assert.Contains(t, err.Error(), "budget exhausted")

	// The underlying call never ran and was never recorded.
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
	assert.Equal(t, 0, limiter.recorded())

	// The denial was cached as a failure marker scoped to RetryAfter:
	// still cached just before, retried just after.
	*now = now.Add(41 * time.Second)
	_, err = c.CachedCall(ctx, "k", opts, fn)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRecentFailure))

	limiter.decision = domain.RateLimitDecision{Allowed: true}
	*now = now.Add(2 * time.Second)
	_, err = c.CachedCall(ctx, "k", opts, fn)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestEveryRealAttemptIsRecorded(t *testing.T) {
	ctx := context.Background()
	limiter := &fakeLimiter{decision: domain.RateLimitDecision{Allowed: true}}
	c, _ := newTestCache(newMemStore(), limiter)

	opts := DefaultOptions()
	opts.APIKey = "mal"
	opts.CacheFailures = false

	// A failed attempt still consumes budget.
	_, err := c.CachedCall(ctx, "k", opts, func(ctx context.Context) ([]byte, error) {
		return nil, errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, limiter.recorded())

	// A successful attempt consumes budget once.
	_, err = c.CachedCall(ctx, "k", opts, func(ctx context.Context) ([]byte, error) {
		return []byte(`"v"`), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, limiter.recorded())

	// Cache hits never do.
	for i := 0; i < 5; i++ {
		_, err = c.CachedCall(ctx, "k", opts, func(ctx context.Context) ([]byte, error) {
			return []byte(`"v"`), nil
		})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, limiter.recorded())
}

func TestCallGeneric(t *testing.T) {
	ctx := context.Background()
	c, _ := newTestCache(newMemStore(), nil)

	type payload struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}

	var calls int32
	fn := func(ctx context.Context) (payload, error) {
		atomic.AddInt32(&calls, 1)
		return payload{ID: 7, Name: "edward"}, nil
	}

	first, err := Call(ctx, c, "k", DefaultOptions(), fn)
	require.NoError(t, err)
	assert.Equal(t, payload{ID: 7, Name: "edward"}, first)

	second, err := Call(ctx, c, "k", DefaultOptions(), fn)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestClearOnlyTouchesNamespace(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	c, _ := newTestCache(store, nil)

	c.Set(ctx, "a", "v", time.Hour)
	c.Set(ctx, "b", "v", time.Hour)
	store.data["unrelated"] = "keep me"

	removed, err := c.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.Equal(t, 1, store.len())
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	c, now := newTestCache(newMemStore(), nil)

	c.Set(ctx, "live", "v", time.Hour)
	c.SetFailure(ctx, "broken", errors.New("boom"), DefaultOptions())
	c.Set(ctx, "shortlived", "v", time.Minute)

	*now = now.Add(10 * time.Minute)

	stats, err := c.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, domain.CacheStats{Entries: 3, Failures: 1, Expired: 1}, stats)
}
