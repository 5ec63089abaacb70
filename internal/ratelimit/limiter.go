// Package ratelimit implements fixed-window request limiting keyed by
// client identity and route class.
//
// A fixed window lets a client burst up to twice the limit across a window
// boundary. Callers only depend on Allow, so a sliding-window Counter can be
// swapped in without touching them.
package ratelimit

import (
	"context"
	"time"

	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/logger"
	"github.com/Rahulengineer-spec/RK-INSTITUTION-sub001/internal/utils"
)

// Rule is the budget of one route class.
type Rule struct {
	Limit  int
	Window time.Duration
}

// RouteClass groups path prefixes that share a Rule.
type RouteClass struct {
	Name     string
	Prefixes []string
	Rule     Rule
}

// Decision is the outcome of one Allow call. Limit and Remaining are zero for
// classes without a rule.
type Decision struct {
	Permitted  bool
	RetryAfter time.Duration
	Limit      int
	Remaining  int
}

type Limiter struct {
	counter  Counter
	fallback *MemoryCounter
	classes  []RouteClass
	rules    map[string]Rule
}

type Option func(*Limiter)

// WithFallback replaces the in-memory counter used when the primary counter
// errors.
func WithFallback(c *MemoryCounter) Option {
	return func(l *Limiter) {
		l.fallback = c
	}
}

// NewLimiter builds a limiter over counter. A nil counter means in-memory only.
func NewLimiter(counter Counter, classes []RouteClass, opts ...Option) *Limiter {
	l := &Limiter{
		counter: counter,
		classes: classes,
		rules:   make(map[string]Rule, len(classes)),
	}
	for _, c := range classes {
		if c.Rule.Limit > 0 && c.Rule.Window > 0 {
			l.rules[c.Name] = c.Rule
		}
	}

	for _, opt := range opts {
		opt(l)
	}

	if l.fallback == nil {
		l.fallback = NewMemoryCounter()
	}
	if l.counter == nil {
		l.counter = l.fallback
	}

	return l
}

// Classify returns the first route class whose prefixes cover path, or "".
func (l *Limiter) Classify(path string) string {
	for _, c := range l.classes {
		if utils.MatchAnyPrefix(path, c.Prefixes) {
			return c.Name
		}
	}
	return ""
}

// Allow counts one request from clientKey against routeClass. It never fails:
// classes without a rule pass through, and a broken shared counter degrades
// to the per-process fallback rather than to an unlimited allow.
func (l *Limiter) Allow(ctx context.Context, clientKey, routeClass string) Decision {
	rule, ok := l.rules[routeClass]
	if !ok {
		return Decision{Permitted: true}
	}

	key := routeClass + ":" + clientKey

	count, resetIn, err := l.counter.Increment(ctx, key, rule.Window)
	if err != nil {
		logger.Warn("rate limit counter unavailable, using in-memory fallback", map[string]any{
			"class": routeClass,
			"error": err.Error(),
		})
		count, resetIn, _ = l.fallback.Increment(ctx, key, rule.Window)
	}

	remaining := rule.Limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	if count > int64(rule.Limit) {
		return Decision{
			Permitted:  false,
			RetryAfter: resetIn,
			Limit:      rule.Limit,
			Remaining:  0,
		}
	}

	return Decision{
		Permitted: true,
		Limit:     rule.Limit,
		Remaining: remaining,
	}
}
