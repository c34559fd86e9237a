package alarms

import (
	"sync"
	"testing"
	"time"
)

func TestEscalatorScheduleAndCancel(t *testing.T) {
	e := newEscalator([]time.Duration{time.Hour, 2 * time.Hour}, func(string, int) {
		t.Error("no timer should fire")
	})

	e.schedule("a1")
	e.schedule("a2")
	if got := e.pending("a1"); got != 2 {
		t.Errorf("pending(a1) = %d, want 2", got)
	}

	e.cancel("a1")
	if got := e.pending("a1"); got != 0 {
		t.Errorf("pending(a1) after cancel = %d, want 0", got)
	}
	if got := e.pending("a2"); got != 2 {
		t.Errorf("cancel(a1) must not touch a2, pending = %d", got)
	}

	// Cancelling again, or an unknown alarm, is a no-op.
	e.cancel("a1")
	e.cancel("unknown")

	e.cancelAll()
	if got := e.pending("a2"); got != 0 {
		t.Errorf("pending(a2) after cancelAll = %d, want 0", got)
	}
}

func TestEscalatorFiresLevelsInOrder(t *testing.T) {
	var mu sync.Mutex
	var fired []int
	done := make(chan struct{}, 2)

	e := newEscalator([]time.Duration{10 * time.Millisecond, 30 * time.Millisecond}, func(id string, level int) {
		mu.Lock()
		fired = append(fired, level)
		mu.Unlock()
		done <- struct{}{}
	})

	e.schedule("a1")
	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for escalation levels")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	if len(fired) != 2 || fired[0] != 1 || fired[1] != 2 {
		t.Errorf("fired = %v, want [1 2]", fired)
	}
	if e.pending("a1") != 0 {
		t.Error("fired timers should be removed from the pending set")
	}
}

func TestEscalatorDefaultDelays(t *testing.T) {
	e := newEscalator(nil, func(string, int) {})
	if len(e.delays) != len(DefaultEscalationDelays) {
		t.Errorf("expected default delays, got %v", e.delays)
	}
	e.cancelAll()
}
