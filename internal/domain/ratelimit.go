package domain

import "time"

// RateLimitConfig is the caller-supplied budget for one API identity.
// A zero Limit or Window disables accounting for that call site.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
}

// RateLimitDecision is the answer to "may a call be made now". RetryAfter
// is only meaningful when Allowed is false.
type RateLimitDecision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
}
