package domain

import (
	"context"
	"encoding/json"
	"time"
)

// KVStore is the durable key/value storage backing the cache. Entries
// survive across runs; keys are opaque strings owned by the caller.
type KVStore interface {
	// Get returns the stored value and whether the key was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// Keys returns all stored keys starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// CacheEntry is the single persisted shape for every cache write. Either
// Data or Failure is set, never both.
type CacheEntry struct {
	Data      json.RawMessage `json:"data,omitempty"`
	Failure   *CacheFailure   `json:"failure,omitempty"`
	CachedAt  time.Time       `json:"cachedAt"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

// CacheFailure marks an entry as a cached failure so repeated lookups
// within the failure TTL do not retry a known-broken call.
type CacheFailure struct {
	Message string `json:"message"`
}

// IsFailure reports whether the entry is a cached failure marker.
func (e *CacheEntry) IsFailure() bool {
	return e != nil && e.Failure != nil
}

// Expired reports whether the entry is stale at the given instant. An
// entry is valid strictly before ExpiresAt and stale from ExpiresAt on.
func (e *CacheEntry) Expired(now time.Time) bool {
	return !now.Before(e.ExpiresAt)
}

// CacheStats summarizes the persisted cache contents.
type CacheStats struct {
	Entries  int
	Failures int
	Expired  int
}
