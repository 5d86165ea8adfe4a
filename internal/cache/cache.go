package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/nyaadere/animatch/internal/domain"
)

// KeyPrefix namespaces every persisted entry so the cache can enumerate
// and clear its own keys without touching unrelated stored data.
const KeyPrefix = "animatch:"

var (
	// ErrRecentFailure means a failure for this key is still cached and
	// the call was not retried.
	ErrRecentFailure = errors.New("recent failure cached, not retrying yet")

	// ErrRateLimited means the rate limiter denied the call before it was
	// attempted.
	ErrRateLimited = errors.New("rate limited")
)

// Options controls one cached call site.
type Options struct {
	// TTL for successful results.
	TTL time.Duration

	// FailureTTL for cached failures. Kept shorter than TTL so a broken
	// endpoint is not hammered but recovers faster than a success entry.
	FailureTTL time.Duration

	// CacheFailures can be disabled for call sites where failures are
	// cheap and retrying immediately is preferable.
	CacheFailures bool

	// APIKey identifies the upstream API for rate accounting. Empty means
	// no accounting for this call site.
	APIKey string

	// RateLimit is the budget applied when APIKey is set.
	RateLimit domain.RateLimitConfig
}

// DefaultOptions returns the standing policy: day-long success entries,
// half-hour failure entries, failures cached.
func DefaultOptions() Options {
	return Options{
		TTL:           24 * time.Hour,
		FailureTTL:    30 * time.Minute,
		CacheFailures: true,
	}
}

// Limiter is the rate-limit surface the cache consults around real call
// attempts.
type Limiter interface {
	Check(apiKey string, cfg domain.RateLimitConfig) domain.RateLimitDecision
	Record(apiKey string)
}

// Cache wraps expensive asynchronous fetches with a persisted TTL cache,
// failure caching, in-flight coalescing, and per-API rate limiting.
//
// Storage problems never propagate: a read error is a miss, a write error
// is a logged no-op. Failures of the wrapped call surface as errors, with
// ErrRecentFailure and ErrRateLimited distinguishable via errors.Is.
type Cache struct {
	log      zerolog.Logger
	store    domain.KVStore
	limiter  Limiter
	disabled func() bool
	group    singleflight.Group
	now      func() time.Time
}

// New creates a new Cache. disabled is read before every cache access;
// when it returns true the cache acts as a pure pass-through. A nil
// limiter disables rate accounting entirely.
func New(log zerolog.Logger, store domain.KVStore, limiter Limiter, disabled func() bool) *Cache {
	return &Cache{
		log:      log.With().Str("module", "cache").Logger(),
		store:    store,
		limiter:  limiter,
		disabled: disabled,
		now:      time.Now,
	}
}

// Get reads the entry stored under key. It returns nil on absence, on
// expiry (deleting the stale entry), when caching is disabled, and on any
// storage or decode problem.
func (c *Cache) Get(ctx context.Context, key string) *domain.CacheEntry {
	if c.isDisabled() {
		return nil
	}

	raw, found, err := c.store.Get(ctx, KeyPrefix+key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed, treating as miss")
		return nil
	}
	if !found {
		return nil
	}

	entry := &domain.CacheEntry{}
	if err := json.Unmarshal([]byte(raw), entry); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("corrupt cache entry, treating as miss")
		return nil
	}

	if entry.Expired(c.now()) {
		if err := c.store.Delete(ctx, KeyPrefix+key); err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("failed to delete expired entry")
		}
		return nil
	}

	return entry
}

// Set stores data under key with the given ttl. Best-effort: marshaling
// or storage errors are logged, never returned.
func (c *Cache) Set(ctx context.Context, key string, data any, ttl time.Duration) {
	raw, err := json.Marshal(data)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to marshal cache payload")
		return
	}
	c.write(ctx, key, &domain.CacheEntry{Data: raw}, ttl)
}

// SetFailure stores a failure marker under key so lookups within
// opts.FailureTTL short-circuit instead of retrying. No-op when the call
// site opted out of failure caching.
func (c *Cache) SetFailure(ctx context.Context, key string, cause error, opts Options) {
	if !opts.CacheFailures {
		return
	}
	entry := &domain.CacheEntry{Failure: &domain.CacheFailure{Message: cause.Error()}}
	c.write(ctx, key, entry, opts.FailureTTL)
}

// IsFailure reports whether an entry returned by Get is a cached failure
// marker.
func IsFailure(entry *domain.CacheEntry) bool {
	return entry.IsFailure()
}

// write is the single path every cache write goes through, so reader and
// writer can never disagree on the entry shape.
func (c *Cache) write(ctx context.Context, key string, entry *domain.CacheEntry, ttl time.Duration) {
	if c.isDisabled() {
		return
	}
	if ttl <= 0 {
		c.log.Warn().Str("key", key).Dur("ttl", ttl).Msg("refusing cache write without a positive ttl")
		return
	}

	now := c.now()
	entry.CachedAt = now
	entry.ExpiresAt = now.Add(ttl)

	raw, err := json.Marshal(entry)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to marshal cache entry")
		return
	}

	if err := c.store.Set(ctx, KeyPrefix+key, string(raw)); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// CachedCall returns the cached payload for key, or runs fn exactly once
// to produce it. Concurrent callers for the same key share one underlying
// call and observe its outcome; callers for different keys proceed
// independently. Real attempts are recorded against the rate limiter
// whether they succeed or not; cache hits are not.
func (c *Cache) CachedCall(ctx context.Context, key string, opts Options, fn func(context.Context) ([]byte, error)) (json.RawMessage, error) {
	if entry := c.Get(ctx, key); entry != nil {
		if entry.IsFailure() {
			c.log.Debug().Str("key", key).Str("failure", entry.Failure.Message).Msg("returning cached failure")
			return nil, errors.Wrap(ErrRecentFailure, entry.Failure.Message)
		}
		return entry.Data, nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		if opts.APIKey != "" && c.limiter != nil {
			decision := c.limiter.Check(opts.APIKey, opts.RateLimit)
			if !decision.Allowed {
				failureOpts := opts
				if decision.RetryAfter > 0 {
					failureOpts.FailureTTL = decision.RetryAfter
				}
				c.SetFailure(ctx, key, errors.Wrap(ErrRateLimited, decision.Reason), failureOpts)
				return nil, errors.Wrap(ErrRateLimited, decision.Reason)
			}
		}

		data, fnErr := fn(ctx)

		// Every real attempt counts against the budget, even a failed
		// one: a failing endpoint must not be hammered for failing fast.
		if opts.APIKey != "" && c.limiter != nil {
			c.limiter.Record(opts.APIKey)
		}

		if fnErr != nil {
			c.SetFailure(ctx, key, fnErr, opts)
			return nil, fnErr
		}

		c.write(ctx, key, &domain.CacheEntry{Data: data}, opts.TTL)
		return data, nil
	})
	if err != nil {
		return nil, err
	}

	if shared {
		c.log.Debug().Str("key", key).Msg("call coalesced with in-flight request")
	}

	return json.RawMessage(v.([]byte)), nil
}

// Call runs fn through the cache, marshaling its result for storage and
// decoding the cached payload back into T.
func Call[T any](ctx context.Context, c *Cache, key string, opts Options, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	raw, err := c.CachedCall(ctx, key, opts, func(ctx context.Context) ([]byte, error) {
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		b, err := json.Marshal(v)
		if err != nil {
			return nil, errors.Wrap(err, "failed to marshal payload")
		}
		return b, nil
	})
	if err != nil {
		return zero, err
	}

	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, errors.Wrap(err, "failed to unmarshal cached payload")
	}
	return out, nil
}

// Clear deletes every entry in the cache namespace and returns how many
// were removed.
func (c *Cache) Clear(ctx context.Context) (int, error) {
	keys, err := c.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return 0, errors.Wrap(err, "failed to enumerate cache keys")
	}

	removed := 0
	for _, key := range keys {
		if err := c.store.Delete(ctx, key); err != nil {
			return removed, errors.Wrapf(err, "failed to delete %s", key)
		}
		removed++
	}

	c.log.Info().Int("removed", removed).Msg("cache cleared")
	return removed, nil
}

// Stats summarizes the persisted namespace: live entries, cached
// failures, and entries already past expiry.
func (c *Cache) Stats(ctx context.Context) (domain.CacheStats, error) {
	stats := domain.CacheStats{}

	keys, err := c.store.Keys(ctx, KeyPrefix)
	if err != nil {
		return stats, errors.Wrap(err, "failed to enumerate cache keys")
	}

	now := c.now()
	for _, key := range keys {
		raw, found, err := c.store.Get(ctx, key)
		if err != nil || !found {
			continue
		}
		entry := &domain.CacheEntry{}
		if err := json.Unmarshal([]byte(raw), entry); err != nil {
			continue
		}
		stats.Entries++
		if entry.IsFailure() {
			stats.Failures++
		}
		if entry.Expired(now) {
			stats.Expired++
		}
	}

	return stats, nil
}

func (c *Cache) isDisabled() bool {
	return c.disabled != nil && c.disabled()
}
