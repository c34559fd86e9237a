package rules

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e := NewEngine(nil)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	e.Start(ctx)
	return e
}

// recordingHandler records executed actions and can be told to fail.
type recordingHandler struct {
	actionType string
	output     string
	fail       bool

	mu    sync.Mutex
	calls []models.Action
}

func (h *recordingHandler) Name() string { return h.actionType }

func (h *recordingHandler) Execute(ctx context.Context, rule *models.Rule, action models.Action, evt *models.Event, prior []ActionResult) (string, error) {
	h.mu.Lock()
	h.calls = append(h.calls, action)
	h.mu.Unlock()
	if h.fail {
		return "", fmt.Errorf("handler %s failed", h.actionType)
	}
	return h.output, nil
}

func notifyRule(name, eventType string) *models.Rule {
	return &models.Rule{
		Name:       name,
		Conditions: models.Conditions{EventType: eventType},
		Actions:    []models.Action{{Type: "notify"}},
	}
}

func waitExecution(t *testing.T, e *Engine) *Execution {
	t.Helper()
	select {
	case exec := <-e.Executions():
		return exec
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for execution notification")
		return nil
	}
}

func TestRegisterRule(t *testing.T) {
	e := newTestEngine(t)

	r := notifyRule("motion-alert", "motion")
	if err := e.RegisterRule(r); err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}

	if r.ID == "" {
		t.Error("expected rule ID to be assigned")
	}
	if r.Metadata.CreatedAt.IsZero() || r.Metadata.UpdatedAt.IsZero() {
		t.Error("expected metadata timestamps to be stamped")
	}

	if err := e.RegisterRule(&models.Rule{Name: ""}); err == nil {
		t.Error("expected validation error for empty rule")
	}
	if got := len(e.Rules()); got != 1 {
		t.Errorf("expected 1 rule after failed registration, got %d", got)
	}

	if err := e.RegisterRule(r); err == nil {
		t.Error("expected error registering duplicate rule id")
	}
}

func TestUpdateRule(t *testing.T) {
	e := newTestEngine(t)

	r := notifyRule("motion-alert", "motion")
	if err := e.RegisterRule(r); err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}
	created := r.Metadata.CreatedAt

	updated := notifyRule("motion-alert-renamed", "motion")
	updated.ID = r.ID
	if err := e.UpdateRule(updated); err != nil {
		t.Fatalf("UpdateRule: %v", err)
	}

	got, ok := e.GetRule(r.ID)
	if !ok || got.Name != "motion-alert-renamed" {
		t.Errorf("expected updated rule, got %+v", got)
	}
	if !got.Metadata.CreatedAt.Equal(created) {
		t.Error("expected creation timestamp preserved on update")
	}
	if !got.Metadata.UpdatedAt.After(created) && !got.Metadata.UpdatedAt.Equal(created) {
		t.Error("expected updated timestamp bumped")
	}

	missing := notifyRule("ghost", "motion")
	missing.ID = "no-such-rule"
	if err := e.UpdateRule(missing); err == nil {
		t.Error("expected not-found error updating unknown rule")
	}
}

func TestRemoveRule(t *testing.T) {
	e := newTestEngine(t)

	r := notifyRule("motion-alert", "motion")
	if err := e.RegisterRule(r); err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}

	if !e.RemoveRule(r.ID) {
		t.Error("expected RemoveRule to return true")
	}
	if e.RemoveRule(r.ID) {
		t.Error("expected RemoveRule to return false for removed rule")
	}
	if got := len(e.Rules()); got != 0 {
		t.Errorf("expected empty table, got %d rules", got)
	}
}

func TestProcessEventMatching(t *testing.T) {
	e := newTestEngine(t)
	e.RegisterHandler(&recordingHandler{actionType: "notify"})

	disabled := false
	rules := []*models.Rule{
		notifyRule("motion-any", "motion"),
		{
			Name:       "motion-cam1",
			Conditions: models.Conditions{EventType: "motion", Source: "cam-1"},
			Actions:    []models.Action{{Type: "notify"}},
		},
		{
			Name:       "disabled",
			Enabled:    &disabled,
			Conditions: models.Conditions{EventType: "motion"},
			Actions:    []models.Action{{Type: "notify"}},
		},
	}
	for _, r := range rules {
		if err := e.RegisterRule(r); err != nil {
			t.Fatalf("RegisterRule(%s): %v", r.Name, err)
		}
	}

	if got := e.ProcessEvent(&models.Event{Type: "motion", Source: "cam-1"}); got != 2 {
		t.Errorf("cam-1 event matched %d rules, want 2", got)
	}
	if got := e.ProcessEvent(&models.Event{Type: "motion", Source: "cam-2"}); got != 1 {
		t.Errorf("cam-2 event matched %d rules, want 1", got)
	}
	if got := e.ProcessEvent(&models.Event{Type: "doorbell"}); got != 0 {
		t.Errorf("doorbell event matched %d rules, want 0", got)
	}
}

func TestActionsRunInOrderWithPriorResults(t *testing.T) {
	e := newTestEngine(t)

	var order []string
	var mu sync.Mutex

	e.RegisterHandler(HandlerFunc{
		ActionType: "snapshot",
		Fn: func(ctx context.Context, rule *models.Rule, action models.Action, evt *models.Event, prior []ActionResult) (string, error) {
			mu.Lock()
			order = append(order, "snapshot")
			mu.Unlock()
			return "https://vms/snap/42.jpg", nil
		},
	})
	e.RegisterHandler(HandlerFunc{
		ActionType: "notify",
		Fn: func(ctx context.Context, rule *models.Rule, action models.Action, evt *models.Event, prior []ActionResult) (string, error) {
			mu.Lock()
			order = append(order, "notify")
			mu.Unlock()
			if len(prior) != 1 || prior[0].Output == "" {
				return "", fmt.Errorf("expected snapshot output available, got %+v", prior)
			}
			return "sent with " + prior[0].Output, nil
		},
	})

	r := &models.Rule{
		Name:       "snapshot-then-notify",
		Conditions: models.Conditions{EventType: "motion"},
		Actions: []models.Action{
			{Type: "snapshot"},
			{Type: "notify"},
		},
	}
	if err := e.RegisterRule(r); err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}

	e.ProcessEvent(&models.Event{Type: "motion"})
	exec := waitExecution(t, e)

	mu.Lock()
	defer mu.Unlock()
	if len(order) != 2 || order[0] != "snapshot" || order[1] != "notify" {
		t.Errorf("actions ran out of order: %v", order)
	}
	if len(exec.Results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(exec.Results))
	}
	if !exec.Results[1].OK() {
		t.Errorf("notify action failed: %s", exec.Results[1].Error)
	}
	if !strings.Contains(exec.Results[1].Output, "snap/42.jpg") {
		t.Errorf("notify output missing snapshot reference: %q", exec.Results[1].Output)
	}
}

func TestActionFailureIsolated(t *testing.T) {
	e := newTestEngine(t)

	e.RegisterHandler(&recordingHandler{actionType: "broken", fail: true})
	after := &recordingHandler{actionType: "notify", output: "ok"}
	e.RegisterHandler(after)

	r := &models.Rule{
		Name:       "broken-then-notify",
		Conditions: models.Conditions{EventType: "motion"},
		Actions: []models.Action{
			{Type: "broken"},
			{Type: "unknown-type"},
			{Type: "notify"},
		},
	}
	if err := e.RegisterRule(r); err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}

	e.ProcessEvent(&models.Event{Type: "motion"})
	exec := waitExecution(t, e)

	if len(exec.Results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(exec.Results))
	}
	if exec.Results[0].OK() {
		t.Error("expected first action to report failure")
	}
	if exec.Results[1].OK() || !strings.Contains(exec.Results[1].Error, "unknown action type") {
		t.Errorf("expected unknown-type error, got %+v", exec.Results[1])
	}
	if !exec.Results[2].OK() {
		t.Errorf("expected final action to succeed, got %+v", exec.Results[2])
	}

	after.mu.Lock()
	defer after.mu.Unlock()
	if len(after.calls) != 1 {
		t.Errorf("final action executed %d times, want 1", len(after.calls))
	}
}

func TestPanickingActionIsolated(t *testing.T) {
	e := newTestEngine(t)

	e.RegisterHandler(HandlerFunc{
		ActionType: "panic",
		Fn: func(ctx context.Context, rule *models.Rule, action models.Action, evt *models.Event, prior []ActionResult) (string, error) {
			panic("boom")
		},
	})
	e.RegisterHandler(&recordingHandler{actionType: "notify", output: "ok"})

	r := &models.Rule{
		Name:       "panic-then-notify",
		Conditions: models.Conditions{EventType: "motion"},
		Actions:    []models.Action{{Type: "panic"}, {Type: "notify"}},
	}
	if err := e.RegisterRule(r); err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}

	e.ProcessEvent(&models.Event{Type: "motion"})
	exec := waitExecution(t, e)

	if exec.Results[0].OK() || !strings.Contains(exec.Results[0].Error, "panic") {
		t.Errorf("expected panic recorded as error, got %+v", exec.Results[0])
	}
	if !exec.Results[1].OK() {
		t.Errorf("expected sibling action to run, got %+v", exec.Results[1])
	}
}

func TestReplaceRules(t *testing.T) {
	e := newTestEngine(t)

	if err := e.RegisterRule(notifyRule("old-rule", "motion")); err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}

	// Replacement with an invalid rule keeps the current table.
	err := e.ReplaceRules([]*models.Rule{
		notifyRule("new-rule", "doorbell"),
		{Name: ""},
	})
	if err == nil {
		t.Fatal("expected validation error from ReplaceRules")
	}
	if rules := e.Rules(); len(rules) != 1 || rules[0].Name != "old-rule" {
		t.Errorf("table changed after failed replace: %+v", rules)
	}

	if err := e.ReplaceRules([]*models.Rule{notifyRule("new-rule", "doorbell")}); err != nil {
		t.Fatalf("ReplaceRules: %v", err)
	}
	if rules := e.Rules(); len(rules) != 1 || rules[0].Name != "new-rule" {
		t.Errorf("unexpected table after replace: %+v", rules)
	}
}

func TestTimeWindowMatching(t *testing.T) {
	e := newTestEngine(t)

	r := &models.Rule{
		Name: "night-motion",
		Conditions: models.Conditions{
			EventType:  "motion",
			TimeWindow: &models.TimeWindow{From: "22:00", To: "06:00"},
		},
		Actions: []models.Action{{Type: "notify"}},
	}
	if err := e.RegisterRule(r); err != nil {
		t.Fatalf("RegisterRule: %v", err)
	}

	night := time.Date(2025, 6, 1, 23, 30, 0, 0, time.Local)
	day := time.Date(2025, 6, 1, 14, 0, 0, 0, time.Local)

	if got := e.ProcessEventAt(&models.Event{Type: "motion"}, night); got != 1 {
		t.Errorf("night event matched %d rules, want 1", got)
	}
	if got := e.ProcessEventAt(&models.Event{Type: "motion"}, day); got != 0 {
		t.Errorf("day event matched %d rules, want 0", got)
	}
}
