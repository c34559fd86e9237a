package alarms

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/opswatch/internal/models"
	"github.com/good-yellow-bee/opswatch/internal/notifier"
	"github.com/good-yellow-bee/opswatch/internal/rules"
)

type fakeChannel struct {
	name string
	fail bool

	mu       sync.Mutex
	messages []string
}

func (f *fakeChannel) Name() string { return f.name }

func (f *fakeChannel) Send(ctx context.Context, message string, opts map[string]any) error {
	if f.fail {
		return fmt.Errorf("%s unreachable", f.name)
	}
	f.mu.Lock()
	f.messages = append(f.messages, message)
	f.mu.Unlock()
	return nil
}

func (f *fakeChannel) Close() error { return nil }

func (f *fakeChannel) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.messages...)
}

func newTestManager(t *testing.T, opts Options, extra ...notifier.Notifier) (*Manager, *fakeChannel) {
	t.Helper()
	telegram := &fakeChannel{name: "telegram"}
	registry := notifier.NewRegistry()
	registry.Register(telegram)
	for _, n := range extra {
		registry.Register(n)
	}
	m := NewManager(registry, opts)
	t.Cleanup(m.Close)
	return m, telegram
}

func doorbellRule() *models.Rule {
	return &models.Rule{ID: "rule-1", Name: "Front Door"}
}

func doorbellEvent() *models.Event {
	return &models.Event{
		ID:        "evt-1",
		Type:      "doorbell:pressed",
		Source:    "frontdoor",
		Timestamp: time.Now(),
		Data:      map[string]any{"camera": "entry"},
	}
}

func notifyAction(params map[string]any) models.Action {
	return models.Action{Type: "notify", Params: params}
}

func TestExecuteCreatesAlarm(t *testing.T) {
	m, telegram := newTestManager(t, Options{RateLimitWindow: -1})

	out, err := m.Execute(context.Background(), doorbellRule(), notifyAction(map[string]any{
		"severity": "high",
		"message":  "{rule.name}: visitor at {event.source}",
	}), doorbellEvent(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.HasPrefix(out, "alarm ") {
		t.Errorf("unexpected output %q", out)
	}

	active := m.Active()
	if len(active) != 1 {
		t.Fatalf("expected 1 active alarm, got %d", len(active))
	}
	alarm := active[0]
	if alarm.Status != models.AlarmActive {
		t.Errorf("status = %s, want active", alarm.Status)
	}
	if alarm.Severity != models.SeverityHigh {
		t.Errorf("severity = %s, want high", alarm.Severity)
	}
	if alarm.RuleID != "rule-1" || alarm.RuleName != "Front Door" {
		t.Errorf("rule attribution wrong: %s/%s", alarm.RuleID, alarm.RuleName)
	}
	if alarm.Message != "Front Door: visitor at frontdoor" {
		t.Errorf("message = %q", alarm.Message)
	}

	msgs := telegram.sent()
	if len(msgs) != 1 || msgs[0] != alarm.Message {
		t.Errorf("expected one delivery of the alarm message, got %v", msgs)
	}
}

func TestExecuteChannelsParam(t *testing.T) {
	slack := &fakeChannel{name: "slack"}
	m, telegram := newTestManager(t, Options{RateLimitWindow: -1}, slack)

	// YAML decoding yields []any for the channels list.
	_, err := m.Execute(context.Background(), doorbellRule(), notifyAction(map[string]any{
		"channels": []any{"slack"},
	}), doorbellEvent(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if len(slack.sent()) != 1 {
		t.Error("slack should have received the notification")
	}
	if len(telegram.sent()) != 0 {
		t.Error("telegram should not have been used when channels are explicit")
	}
}

func TestExecutePartialDeliveryFailure(t *testing.T) {
	broken := &fakeChannel{name: "broken", fail: true}
	m, telegram := newTestManager(t, Options{RateLimitWindow: -1}, broken)

	out, err := m.Execute(context.Background(), doorbellRule(), notifyAction(map[string]any{
		"channels": []any{"broken", "telegram", "missing"},
	}), doorbellEvent(), nil)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(out, "delivered 1/3") {
		t.Errorf("expected 1/3 delivered, got %q", out)
	}
	if len(telegram.sent()) != 1 {
		t.Error("healthy channel should still deliver when a sibling fails")
	}
	if len(m.Active()) != 1 {
		t.Error("alarm should exist regardless of delivery failures")
	}
}

func TestExecuteRateLimited(t *testing.T) {
	m, telegram := newTestManager(t, Options{RateLimitWindow: 30 * time.Second})

	if _, err := m.Execute(context.Background(), doorbellRule(), notifyAction(nil), doorbellEvent(), nil); err != nil {
		t.Fatalf("first Execute failed: %v", err)
	}
	out, err := m.Execute(context.Background(), doorbellRule(), notifyAction(nil), doorbellEvent(), nil)
	if err != nil {
		t.Fatalf("second Execute failed: %v", err)
	}
	if !strings.HasPrefix(out, "suppressed") {
		t.Errorf("expected suppression, got %q", out)
	}

	// Suppression means no alarm, no delivery.
	if len(m.Active()) != 1 {
		t.Errorf("expected 1 active alarm, got %d", len(m.Active()))
	}
	if len(telegram.sent()) != 1 {
		t.Errorf("expected 1 delivery, got %d", len(telegram.sent()))
	}
	if stats := m.GetStats(); stats.Suppressed != 1 {
		t.Errorf("suppressed = %d, want 1", stats.Suppressed)
	}
}

func TestExecuteAircraftBypassesRateLimit(t *testing.T) {
	m, telegram := newTestManager(t, Options{RateLimitWindow: 30 * time.Second})

	evt := &models.Event{Type: "aircraft:approach", Source: "tracker", Timestamp: time.Now()}
	for i := 0; i < 2; i++ {
		if _, err := m.Execute(context.Background(), doorbellRule(), notifyAction(nil), evt, nil); err != nil {
			t.Fatalf("Execute %d failed: %v", i, err)
		}
	}

	if len(m.Active()) != 2 {
		t.Errorf("expected 2 alarms for allowlisted type, got %d", len(m.Active()))
	}
	if len(telegram.sent()) != 2 {
		t.Errorf("expected 2 deliveries, got %d", len(telegram.sent()))
	}
}

func TestExecutePriorOutput(t *testing.T) {
	m, telegram := newTestManager(t, Options{RateLimitWindow: -1})

	prior := []rules.ActionResult{{ActionType: "snapshot", Output: "snap/42.jpg"}}
	_, err := m.Execute(context.Background(), doorbellRule(), notifyAction(map[string]any{
		"message": "visitor, see {prior.last}",
	}), doorbellEvent(), prior)
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	msgs := telegram.sent()
	if len(msgs) != 1 || msgs[0] != "visitor, see snap/42.jpg" {
		t.Errorf("expected prior output in message, got %v", msgs)
	}
}

func TestAcknowledge(t *testing.T) {
	m, _ := newTestManager(t, Options{RateLimitWindow: -1})
	m.Execute(context.Background(), doorbellRule(), notifyAction(nil), doorbellEvent(), nil)
	id := m.Active()[0].ID

	alarm, err := m.Acknowledge(id, "operator", "looking into it")
	if err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	if alarm.Status != models.AlarmAcknowledged {
		t.Errorf("status = %s, want acknowledged", alarm.Status)
	}
	if alarm.AckBy != "operator" || alarm.AckNote != "looking into it" {
		t.Errorf("ack attribution wrong: %q/%q", alarm.AckBy, alarm.AckNote)
	}
	if alarm.AcknowledgedAt == nil {
		t.Error("AcknowledgedAt should be set")
	}

	// Acknowledged alarms remain in the active set until resolved.
	if got, err := m.Get(id); err != nil || got.Status != models.AlarmAcknowledged {
		t.Errorf("Get after ack: %v, %v", got, err)
	}

	if _, err := m.Acknowledge("nope", "operator", ""); !errors.Is(err, ErrAlarmNotFound) {
		t.Errorf("expected ErrAlarmNotFound, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	m, _ := newTestManager(t, Options{RateLimitWindow: -1})
	m.Execute(context.Background(), doorbellRule(), notifyAction(nil), doorbellEvent(), nil)
	id := m.Active()[0].ID

	alarm, err := m.Resolve(id, "operator")
	if err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if alarm.Status != models.AlarmResolved || alarm.ResolvedBy != "operator" || alarm.ResolvedAt == nil {
		t.Errorf("resolved alarm wrong: %+v", alarm)
	}

	if _, err := m.Get(id); !errors.Is(err, ErrAlarmNotFound) {
		t.Error("resolved alarm should leave the active set")
	}
	if _, err := m.Resolve(id, "operator"); !errors.Is(err, ErrAlarmNotFound) {
		t.Errorf("expected ErrAlarmNotFound on double resolve, got %v", err)
	}
}

func TestClearOperations(t *testing.T) {
	m, _ := newTestManager(t, Options{RateLimitWindow: -1})

	raise := func(ruleID, eventType string) {
		rule := &models.Rule{ID: ruleID, Name: ruleID}
		evt := &models.Event{Type: eventType, Source: "test", Timestamp: time.Now()}
		if _, err := m.Execute(context.Background(), rule, notifyAction(nil), evt, nil); err != nil {
			t.Fatalf("raise failed: %v", err)
		}
	}

	raise("rule-a", "type:a")
	raise("rule-a", "type:b")
	raise("rule-b", "type:c")

	if n := m.ClearByRule("rule-a"); n != 2 {
		t.Errorf("ClearByRule cleared %d, want 2", n)
	}
	if len(m.Active()) != 1 {
		t.Fatalf("expected 1 remaining, got %d", len(m.Active()))
	}

	id := m.Active()[0].ID
	alarm, err := m.ClearByID(id)
	if err != nil {
		t.Fatalf("ClearByID failed: %v", err)
	}
	if alarm.Status != models.AlarmCleared || alarm.ClearedAt == nil {
		t.Errorf("cleared alarm wrong: %+v", alarm)
	}

	raise("rule-c", "type:d")
	raise("rule-c", "type:e")
	if n := m.ClearAll(); n != 2 {
		t.Errorf("ClearAll cleared %d, want 2", n)
	}
	if len(m.Active()) != 0 {
		t.Error("active set should be empty after ClearAll")
	}
}

func TestHistoryBoundedAndFiltered(t *testing.T) {
	m, _ := newTestManager(t, Options{RateLimitWindow: -1, HistorySize: 5})

	for i := 0; i < 4; i++ {
		evt := &models.Event{Type: fmt.Sprintf("type:%d", i), Source: "test", Timestamp: time.Now()}
		m.Execute(context.Background(), doorbellRule(), notifyAction(nil), evt, nil)
		time.Sleep(time.Millisecond)
	}
	id := m.Active()[0].ID
	m.Acknowledge(id, "op", "")
	m.Resolve(id, "op")

	// 4 creations + ack + resolve = 6 snapshots, ring keeps the last 5.
	all := m.History(HistoryQuery{})
	if len(all) != 5 {
		t.Fatalf("history size = %d, want 5", len(all))
	}
	for i := 1; i < len(all); i++ {
		if all[i].TriggeredAt.After(all[i-1].TriggeredAt) {
			// Lifecycle snapshots share TriggeredAt with their creation, so
			// only strict inversions are ordering bugs.
			t.Errorf("history not newest-first at index %d", i)
		}
	}

	resolved := m.History(HistoryQuery{Status: models.AlarmResolved})
	if len(resolved) != 1 || resolved[0].ID != id {
		t.Errorf("status filter returned %v", resolved)
	}

	// The type:3 alarm was created, acknowledged, and resolved; each status
	// change appended its own snapshot.
	byType := m.History(HistoryQuery{EventType: "type:3"})
	if len(byType) != 3 {
		t.Fatalf("event type filter returned %d entries, want 3", len(byType))
	}
	wantStatuses := []models.AlarmStatus{models.AlarmResolved, models.AlarmAcknowledged, models.AlarmActive}
	for i, want := range wantStatuses {
		if byType[i].Status != want {
			t.Errorf("byType[%d].Status = %s, want %s", i, byType[i].Status, want)
		}
	}

	// Snapshots of the same alarm share an ID, so the offset check compares
	// (ID, Status) pairs: offset 1 skips the resolve snapshot and the window
	// starts at the acknowledge snapshot.
	limited := m.History(HistoryQuery{Limit: 2, Offset: 1})
	if len(limited) != 2 {
		t.Fatalf("limit/offset returned %d entries, want 2", len(limited))
	}
	if limited[0].ID != id || limited[0].Status != models.AlarmAcknowledged {
		t.Errorf("limited[0] = (%s, %s), want (%s, acknowledged)", limited[0].ID, limited[0].Status, id)
	}
	if limited[1].ID != id || limited[1].Status != models.AlarmActive {
		t.Errorf("limited[1] = (%s, %s), want (%s, active)", limited[1].ID, limited[1].Status, id)
	}
}

func TestGetStats(t *testing.T) {
	m, _ := newTestManager(t, Options{RateLimitWindow: -1})

	m.Execute(context.Background(), doorbellRule(), notifyAction(map[string]any{"severity": "high"}), doorbellEvent(), nil)
	m.Execute(context.Background(), doorbellRule(), notifyAction(map[string]any{"severity": "high"}),
		&models.Event{Type: "motion:detected", Source: "backyard", Timestamp: time.Now()}, nil)
	m.Execute(context.Background(), doorbellRule(), notifyAction(nil),
		&models.Event{Type: "sensor:open", Source: "backyard", Timestamp: time.Now()}, nil)

	stats := m.GetStats()
	if stats.ActiveCount != 3 {
		t.Errorf("ActiveCount = %d, want 3", stats.ActiveCount)
	}
	if stats.BySeverity["high"] != 2 || stats.BySeverity["medium"] != 1 {
		t.Errorf("BySeverity = %v", stats.BySeverity)
	}
	if stats.BySource["backyard"] != 2 {
		t.Errorf("BySource = %v", stats.BySource)
	}
	if stats.Created != 3 {
		t.Errorf("Created = %d, want 3", stats.Created)
	}
}

func TestEscalationFires(t *testing.T) {
	m, telegram := newTestManager(t, Options{
		RateLimitWindow:   -1,
		EscalationEnabled: true,
		EscalationDelays:  []time.Duration{20 * time.Millisecond, 40 * time.Millisecond},
	})

	m.Execute(context.Background(), doorbellRule(), notifyAction(nil), doorbellEvent(), nil)

	deadline := time.After(2 * time.Second)
	for {
		msgs := telegram.sent()
		if len(msgs) >= 3 {
			if !strings.Contains(msgs[1], "ESCALATION level 1") {
				t.Errorf("msgs[1] = %q", msgs[1])
			}
			if !strings.Contains(msgs[2], "ESCALATION level 2") {
				t.Errorf("msgs[2] = %q", msgs[2])
			}
			return
		}
		select {
		case <-deadline:
			t.Fatalf("expected creation + 2 escalations, got %v", msgs)
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestEscalationCancelledOnAcknowledge(t *testing.T) {
	m, telegram := newTestManager(t, Options{
		RateLimitWindow:   -1,
		EscalationEnabled: true,
		EscalationDelays:  []time.Duration{40 * time.Millisecond},
	})

	m.Execute(context.Background(), doorbellRule(), notifyAction(nil), doorbellEvent(), nil)
	id := m.Active()[0].ID
	if _, err := m.Acknowledge(id, "op", ""); err != nil {
		t.Fatalf("Acknowledge failed: %v", err)
	}
	if m.esc.pending(id) != 0 {
		t.Error("acknowledge should cancel all pending escalation timers")
	}

	time.Sleep(80 * time.Millisecond)
	if msgs := telegram.sent(); len(msgs) != 1 {
		t.Errorf("expected only the creation message, got %v", msgs)
	}
}

func TestEscalationCancelledOnClearAll(t *testing.T) {
	m, telegram := newTestManager(t, Options{
		RateLimitWindow:   -1,
		EscalationEnabled: true,
		EscalationDelays:  []time.Duration{40 * time.Millisecond},
	})

	m.Execute(context.Background(), doorbellRule(), notifyAction(nil), doorbellEvent(), nil)
	m.Execute(context.Background(), doorbellRule(), notifyAction(nil),
		&models.Event{Type: "motion:detected", Source: "backyard", Timestamp: time.Now()}, nil)
	m.ClearAll()

	time.Sleep(80 * time.Millisecond)
	if msgs := telegram.sent(); len(msgs) != 2 {
		t.Errorf("expected only the 2 creation messages, got %v", msgs)
	}
}

type recordingArchiver struct {
	mu       sync.Mutex
	statuses []models.AlarmStatus
}

func (a *recordingArchiver) ArchiveAlarm(ctx context.Context, alarm *models.Alarm) error {
	a.mu.Lock()
	a.statuses = append(a.statuses, alarm.Status)
	a.mu.Unlock()
	return nil
}

func TestArchiverReceivesLifecycle(t *testing.T) {
	archive := &recordingArchiver{}
	m, _ := newTestManager(t, Options{RateLimitWindow: -1, Archive: archive})

	m.Execute(context.Background(), doorbellRule(), notifyAction(nil), doorbellEvent(), nil)
	id := m.Active()[0].ID
	m.Acknowledge(id, "op", "")
	m.Resolve(id, "op")

	archive.mu.Lock()
	defer archive.mu.Unlock()
	want := []models.AlarmStatus{models.AlarmActive, models.AlarmAcknowledged, models.AlarmResolved}
	if len(archive.statuses) != len(want) {
		t.Fatalf("archived %d snapshots, want %d", len(archive.statuses), len(want))
	}
	for i, status := range want {
		if archive.statuses[i] != status {
			t.Errorf("archive[%d] = %s, want %s", i, archive.statuses[i], status)
		}
	}
}
