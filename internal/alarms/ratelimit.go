package alarms

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiter enforces a minimum interval between notifications per event
// type. Inter-connector event types and sources (matched by substring) are
// allowlisted and always bypass the limiter: they represent cross-system
// signals that must not be dropped.
type RateLimiter struct {
	window        time.Duration
	bypassTypes   []string
	bypassSources []string

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewRateLimiter creates a rate limiter. window <= 0 disables limiting.
func NewRateLimiter(window time.Duration, bypassTypes, bypassSources []string) *RateLimiter {
	return &RateLimiter{
		window:        window,
		bypassTypes:   bypassTypes,
		bypassSources: bypassSources,
		limiters:      make(map[string]*rate.Limiter),
	}
}

// Bypassed reports whether the event type/source pair is allowlisted.
func (l *RateLimiter) Bypassed(eventType, source string) bool {
	for _, sub := range l.bypassTypes {
		if sub != "" && strings.Contains(eventType, sub) {
			return true
		}
	}
	for _, sub := range l.bypassSources {
		if sub != "" && strings.Contains(source, sub) {
			return true
		}
	}
	return false
}

// Allow reports whether a notification for the event type may be sent now.
// Allowlisted events never consume or check the budget.
func (l *RateLimiter) Allow(eventType, source string) bool {
	if l.window <= 0 {
		return true
	}
	if l.Bypassed(eventType, source) {
		return true
	}

	l.mu.Lock()
	lim, ok := l.limiters[eventType]
	if !ok {
		// Burst of one token refilled once per window: at most one
		// notification per event type per window.
		lim = rate.NewLimiter(rate.Every(l.window), 1)
		l.limiters[eventType] = lim
	}
	l.mu.Unlock()

	return lim.Allow()
}

// Window returns the configured window.
func (l *RateLimiter) Window() time.Duration {
	return l.window
}
