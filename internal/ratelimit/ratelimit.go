// Package ratelimit implements the per-process, fixed-window request limiter
// that guards the API.
//
// FIXED WINDOW:
// Every (identity, route class) pair owns one counter. The first request
// opens a window; requests inside it increment the counter; once the window
// length has elapsed the next request starts a fresh window at count 1.
// Bursts straddling a window boundary can briefly exceed the nominal rate.
// That is accepted behaviour, not a bug.
//
// State lives in memory and is lost on restart. Rate limiting here is
// best-effort shaping, not a security boundary.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Class groups routes that share a tier.
type Class string

const (
	ClassAuth       Class = "auth"
	ClassPassword   Class = "password"
	ClassGeneralAPI Class = "generalApi"
)

// UnknownIdentity is used when the caller's address can't be determined.
// Such callers share one coarse counter instead of being rejected.
const UnknownIdentity = "unknown"

// Tier is the limit applied to one Class.
type Tier struct {
	Limit  int
	Window time.Duration
}

// DefaultTiers returns the production tier table.
func DefaultTiers() map[Class]Tier {
	return map[Class]Tier{
		ClassAuth:       {Limit: 10, Window: 15 * time.Minute},
		ClassPassword:   {Limit: 5, Window: 60 * time.Minute},
		ClassGeneralAPI: {Limit: 60, Window: 60 * time.Second},
	}
}

// Decision is the outcome of one Check.
type Decision struct {
	Allowed bool
	// RetryAfter is the whole number of seconds until the window resets.
	// Only set when Allowed is false; always within (0, window].
	RetryAfter int
	Limit      int
	Remaining  int
}

type key struct {
	identity string
	class    Class
}

type counter struct {
	count           int
	windowStartedAt time.Time
}

// Limiter holds the counter table. One mutex guards the whole table.
type Limiter struct {
	mu       sync.Mutex
	tiers    map[Class]Tier
	counters map[key]*counter
	now      func() time.Time
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a Limiter for the given tiers. A nil map means DefaultTiers.
func New(tiers map[Class]Tier, opts ...Option) *Limiter {
	if tiers == nil {
		tiers = DefaultTiers()
	}
	l := &Limiter{
		tiers:    tiers,
		counters: make(map[key]*counter),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check counts one request for identity on class and reports whether it may
// proceed. An empty identity is treated as UnknownIdentity. A class with no
// configured tier falls back to ClassGeneralAPI.
func (l *Limiter) Check(identity string, class Class) Decision {
	if identity == "" {
		identity = UnknownIdentity
	}
	tier := l.tierFor(class)
	k := key{identity: identity, class: class}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	c, ok := l.counters[k]
	if !ok || now.Sub(c.windowStartedAt) >= tier.Window {
		l.counters[k] = &counter{count: 1, windowStartedAt: now}
		return Decision{Allowed: true, Limit: tier.Limit, Remaining: tier.Limit - 1}
	}

	c.count++
	if c.count > tier.Limit {
		return Decision{
			Allowed:    false,
			RetryAfter: retryAfter(c.windowStartedAt.Add(tier.Window).Sub(now), tier.Window),
			Limit:      tier.Limit,
		}
	}
	return Decision{Allowed: true, Limit: tier.Limit, Remaining: tier.Limit - c.count}
}

// Sweep drops every counter whose window has elapsed and returns how many
// were removed. Expired counters would be reset on their next Check anyway,
// so sweeping never changes a decision.
func (l *Limiter) Sweep() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	removed := 0
	for k, c := range l.counters {
		if now.Sub(c.windowStartedAt) >= l.tierFor(k.class).Window {
			delete(l.counters, k)
			removed++
		}
	}
	return removed
}

// Len returns the number of live counters.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.counters)
}

func (l *Limiter) tierFor(class Class) Tier {
	if t, ok := l.tiers[class]; ok {
		return t
	}
	if t, ok := l.tiers[ClassGeneralAPI]; ok {
		return t
	}
	return DefaultTiers()[ClassGeneralAPI]
}

// retryAfter rounds remaining up to whole seconds, clamped to (0, window].
func retryAfter(remaining, window time.Duration) int {
	secs := int(math.Ceil(float64(remaining.Milliseconds()) / 1000))
	maxSecs := int(math.Ceil(window.Seconds()))
	if secs < 1 {
		secs = 1
	}
	if secs > maxSecs {
		secs = maxSecs
	}
	return secs
}
