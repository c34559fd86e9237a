package alarms

import (
	"sync"
	"time"
)

// DefaultEscalationDelays are the level delays used when none are
// configured: three tiers at 5, 15, and 30 minutes after alarm creation.
var DefaultEscalationDelays = []time.Duration{
	5 * time.Minute,
	15 * time.Minute,
	30 * time.Minute,
}

// escalationKey identifies one pending escalation timer.
type escalationKey struct {
	alarmID string
	level   int
}

// escalator owns the deferred escalation triggers. Each scheduled alarm gets
// one timer per level; cancelling removes all of an alarm's pending timers
// at once. Cancellation is idempotent: cancelling an already-fired or
// already-cancelled timer is a no-op.
type escalator struct {
	delays []time.Duration
	fire   func(alarmID string, level int)

	mu     sync.Mutex
	timers map[escalationKey]*time.Timer
}

// newEscalator creates an escalator that calls fire for each level that
// elapses before cancellation. Levels are 1-based in the callback.
func newEscalator(delays []time.Duration, fire func(alarmID string, level int)) *escalator {
	if len(delays) == 0 {
		delays = DefaultEscalationDelays
	}
	return &escalator{
		delays: delays,
		fire:   fire,
		timers: make(map[escalationKey]*time.Timer),
	}
}

// schedule registers all escalation levels for an alarm.
func (e *escalator) schedule(alarmID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, delay := range e.delays {
		level := i + 1
		key := escalationKey{alarmID: alarmID, level: level}
		e.timers[key] = time.AfterFunc(delay, func() {
			// Drop our own bookkeeping entry before firing, so a
			// cancellation racing with the callback stays a no-op.
			e.mu.Lock()
			_, pending := e.timers[key]
			delete(e.timers, key)
			e.mu.Unlock()

			if pending {
				e.fire(alarmID, level)
			}
		})
	}
}

// cancel removes all pending timers for an alarm. Safe to call repeatedly
// and for unknown alarm IDs.
func (e *escalator) cancel(alarmID string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, timer := range e.timers {
		if key.alarmID == alarmID {
			timer.Stop()
			delete(e.timers, key)
		}
	}
}

// cancelAll removes every pending timer.
func (e *escalator) cancelAll() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for key, timer := range e.timers {
		timer.Stop()
		delete(e.timers, key)
	}
}

// pending returns the number of pending levels for an alarm.
func (e *escalator) pending(alarmID string) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := 0
	for key := range e.timers {
		if key.alarmID == alarmID {
			n++
		}
	}
	return n
}
