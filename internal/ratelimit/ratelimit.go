package ratelimit

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/nyaadere/animatch/internal/domain"
)

// retention bounds how long recorded attempts are kept. Windows larger
// than this are not supported.
const retention = time.Hour

// Limiter answers "may a call to this API be made now" against a sliding
// window of recorded attempts. Check is a pure read; Record mutates.
// Budgets are supplied by the caller per call site, not stored here.
type Limiter struct {
	log   zerolog.Logger
	mu    sync.Mutex
	calls map[string][]time.Time
	now   func() time.Time
}

// New creates a new Limiter
func New(log zerolog.Logger) *Limiter {
	return &Limiter{
		log:   log.With().Str("module", "ratelimit").Logger(),
		calls: make(map[string][]time.Time),
		now:   time.Now,
	}
}

// Check reports whether a call against apiKey fits within the supplied
// budget. It never mutates the recorded history, so repeated checks are
// free. A zero Limit or Window means no budget applies.
func (l *Limiter) Check(apiKey string, cfg domain.RateLimitConfig) domain.RateLimitDecision {
	if cfg.Limit <= 0 || cfg.Window <= 0 {
		return domain.RateLimitDecision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-cfg.Window)

	var inWindow []time.Time
	for _, t := range l.calls[apiKey] {
		if t.After(cutoff) {
			inWindow = append(inWindow, t)
		}
	}

	if len(inWindow) < cfg.Limit {
		return domain.RateLimitDecision{Allowed: true}
	}

	// The window frees a slot once its oldest relevant attempt ages out.
	oldest := inWindow[len(inWindow)-cfg.Limit]
	retryAfter := oldest.Add(cfg.Window).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}

	return domain.RateLimitDecision{
		Allowed:    false,
		Reason:     fmt.Sprintf("%d calls within %s exceeds limit of %d", len(inWindow), cfg.Window, cfg.Limit),
		RetryAfter: retryAfter,
	}
}

// Record registers that a call attempt against apiKey happened now. It is
// called after every real attempt, success or failure; cache hits never
// reach it.
func (l *Limiter) Record(apiKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-retention)

	kept := l.calls[apiKey][:0]
	for _, t := range l.calls[apiKey] {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.calls[apiKey] = append(kept, now)

	l.log.Trace().Str("api", apiKey).Int("recorded", len(l.calls[apiKey])).Msg("recorded call attempt")
}
