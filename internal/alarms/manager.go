// Package alarms manages the alarm lifecycle: creation from rule matches,
// acknowledgement and resolution by operators, notification dispatch with
// per-type rate limiting, and timed escalation of unattended alarms.
package alarms

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/opswatch/internal/metrics"
	"github.com/good-yellow-bee/opswatch/internal/models"
	"github.com/good-yellow-bee/opswatch/internal/notifier"
	"github.com/good-yellow-bee/opswatch/internal/ring"
	"github.com/good-yellow-bee/opswatch/internal/rules"
)

// ErrAlarmNotFound is returned when an alarm ID does not exist in the
// active set.
var ErrAlarmNotFound = errors.New("alarm not found")

// Archiver persists alarm snapshots outside the in-memory history. The
// manager calls it on every status change; failures are logged, never fatal.
type Archiver interface {
	ArchiveAlarm(ctx context.Context, alarm *models.Alarm) error
}

// Options configures the alarm manager.
type Options struct {
	// HistorySize bounds the in-memory alarm history ring.
	HistorySize int

	// DefaultChannels receive notifications when a rule's notify action
	// does not name channels itself.
	DefaultChannels []string

	// RateLimitWindow is the minimum interval between notifications per
	// event type. Zero disables rate limiting.
	RateLimitWindow time.Duration

	// BypassTypeContains and BypassSourceContains allowlist events whose
	// type or source contains one of the substrings; such events are never
	// rate limited.
	BypassTypeContains   []string
	BypassSourceContains []string

	// EscalationEnabled turns on timed escalation of unattended alarms.
	EscalationEnabled bool

	// EscalationDelays are the per-level delays measured from alarm
	// creation. Empty means DefaultEscalationDelays.
	EscalationDelays []time.Duration

	// Archive, when set, receives every alarm snapshot for persistence.
	Archive Archiver
}

func (o *Options) setDefaults() {
	if o.HistorySize <= 0 {
		o.HistorySize = 500
	}
	if len(o.DefaultChannels) == 0 {
		o.DefaultChannels = []string{"telegram"}
	}
	if o.RateLimitWindow == 0 {
		o.RateLimitWindow = 30 * time.Second
	}
	if o.BypassTypeContains == nil {
		o.BypassTypeContains = []string{"aircraft"}
	}
	if o.BypassSourceContains == nil {
		o.BypassSourceContains = []string{"adsb"}
	}
}

// Manager owns the active alarm set and its bounded history. It doubles as
// the rule engine's "notify" action handler: a matching rule raises an
// alarm, dispatches it to the configured channels, and arms escalation.
type Manager struct {
	opts     Options
	registry *notifier.Registry
	limiter  *RateLimiter
	esc      *escalator

	mu      sync.RWMutex
	active  map[string]*models.Alarm
	history *ring.Buffer[*models.Alarm]

	created    uint64
	suppressed uint64
}

// NewManager creates an alarm manager dispatching through the given
// notifier registry.
func NewManager(registry *notifier.Registry, opts Options) *Manager {
	opts.setDefaults()
	m := &Manager{
		opts:     opts,
		registry: registry,
		limiter:  NewRateLimiter(opts.RateLimitWindow, opts.BypassTypeContains, opts.BypassSourceContains),
		active:   make(map[string]*models.Alarm),
		history:  ring.New[*models.Alarm](opts.HistorySize),
	}
	if opts.EscalationEnabled {
		m.esc = newEscalator(opts.EscalationDelays, m.fireEscalation)
	}
	return m
}

// Name returns the action type the manager handles.
func (m *Manager) Name() string { return "notify" }

// Execute implements rules.ActionHandler. It applies the rate limiter,
// raises an alarm for the matched rule, dispatches notifications, and
// schedules escalation. A rate-limited event is suppressed entirely: no
// alarm, no dispatch, no escalation.
func (m *Manager) Execute(ctx context.Context, rule *models.Rule, action models.Action, evt *models.Event, prior []rules.ActionResult) (string, error) {
	if !m.limiter.Allow(evt.Type, evt.Source) {
		m.mu.Lock()
		m.suppressed++
		m.mu.Unlock()
		metrics.RateLimitedTotal.WithLabelValues(evt.Type).Inc()
		return fmt.Sprintf("suppressed: rate limit for type %q", evt.Type), nil
	}

	severity := models.ParseSeverity(stringParam(action.Params, "severity"))
	template := stringParam(action.Params, "message")
	if template == "" {
		template = "{rule.name}: {event.type} from {event.source}"
	}

	env := templateEnv(rule, evt)
	if out := lastOutput(prior); out != "" {
		env["prior"] = map[string]any{"last": out}
	}
	message := Interpolate(template, env)

	alarm := &models.Alarm{
		ID:          uuid.New().String(),
		RuleID:      rule.ID,
		RuleName:    rule.Name,
		EventType:   evt.Type,
		Source:      evt.Source,
		Severity:    severity,
		Message:     message,
		Status:      models.AlarmActive,
		TriggeredAt: time.Now(),
		Data:        evt.Data,
	}

	m.mu.Lock()
	m.active[alarm.ID] = alarm
	m.history.Append(alarm.Snapshot())
	m.created++
	m.mu.Unlock()

	metrics.AlarmsCreatedTotal.WithLabelValues(string(severity)).Inc()
	metrics.AlarmsActive.Inc()
	m.archive(ctx, alarm)

	channels := channelsParam(action.Params)
	if len(channels) == 0 {
		channels = m.opts.DefaultChannels
	}
	results := m.registry.Dispatch(ctx, channels, message, map[string]any{
		"severity": string(severity),
		"alarm_id": alarm.ID,
	})
	delivered := 0
	for _, r := range results {
		if r.Success {
			delivered++
		}
	}

	if m.esc != nil {
		m.esc.schedule(alarm.ID)
	}

	return fmt.Sprintf("alarm %s: delivered %d/%d channels", alarm.ID, delivered, len(results)), nil
}

// fireEscalation notifies the default channels that an alarm is still
// unattended at the given level. Alarms that left the active state are
// skipped even if their timer slipped through cancellation.
func (m *Manager) fireEscalation(alarmID string, level int) {
	m.mu.RLock()
	alarm, ok := m.active[alarmID]
	var snapshot *models.Alarm
	if ok && alarm.Status == models.AlarmActive {
		snapshot = alarm.Snapshot()
	}
	m.mu.RUnlock()
	if snapshot == nil {
		return
	}

	metrics.EscalationsTotal.WithLabelValues(strconv.Itoa(level)).Inc()
	msg := fmt.Sprintf("ESCALATION level %d: %s (alarm %s, rule %s, unacknowledged since %s)",
		level, snapshot.Message, snapshot.ID, snapshot.RuleName, snapshot.TriggeredAt.Format(time.RFC3339))

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	m.registry.Dispatch(ctx, m.opts.DefaultChannels, msg, map[string]any{
		"severity":         string(snapshot.Severity),
		"alarm_id":         snapshot.ID,
		"escalation_level": level,
	})
}

// Acknowledge marks an active alarm as acknowledged and cancels its
// escalation. The alarm stays in the active set until resolved or cleared.
func (m *Manager) Acknowledge(id, actor, note string) (*models.Alarm, error) {
	m.mu.Lock()
	alarm, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("acknowledge %s: %w", id, ErrAlarmNotFound)
	}
	now := time.Now()
	alarm.Status = models.AlarmAcknowledged
	alarm.AcknowledgedAt = &now
	alarm.AckBy = actor
	alarm.AckNote = note
	snapshot := alarm.Snapshot()
	m.history.Append(snapshot)
	m.mu.Unlock()

	m.cancelEscalation(id)
	m.archive(context.Background(), snapshot)
	return snapshot, nil
}

// Resolve marks an alarm as resolved and removes it from the active set.
func (m *Manager) Resolve(id, actor string) (*models.Alarm, error) {
	m.mu.Lock()
	alarm, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("resolve %s: %w", id, ErrAlarmNotFound)
	}
	now := time.Now()
	alarm.Status = models.AlarmResolved
	alarm.ResolvedAt = &now
	alarm.ResolvedBy = actor
	snapshot := alarm.Snapshot()
	delete(m.active, id)
	m.history.Append(snapshot)
	m.mu.Unlock()

	metrics.AlarmsActive.Dec()
	m.cancelEscalation(id)
	m.archive(context.Background(), snapshot)
	return snapshot, nil
}

// ClearByID clears a single alarm without operator attribution.
func (m *Manager) ClearByID(id string) (*models.Alarm, error) {
	m.mu.Lock()
	alarm, ok := m.active[id]
	if !ok {
		m.mu.Unlock()
		return nil, fmt.Errorf("clear %s: %w", id, ErrAlarmNotFound)
	}
	snapshot := m.clearLocked(alarm)
	m.mu.Unlock()

	metrics.AlarmsActive.Dec()
	m.cancelEscalation(id)
	m.archive(context.Background(), snapshot)
	return snapshot, nil
}

// ClearByRule clears every active alarm raised by the given rule and
// returns how many were cleared.
func (m *Manager) ClearByRule(ruleID string) int {
	m.mu.Lock()
	var snapshots []*models.Alarm
	for _, alarm := range m.active {
		if alarm.RuleID == ruleID {
			snapshots = append(snapshots, m.clearLocked(alarm))
		}
	}
	m.mu.Unlock()

	for _, s := range snapshots {
		metrics.AlarmsActive.Dec()
		m.cancelEscalation(s.ID)
		m.archive(context.Background(), s)
	}
	return len(snapshots)
}

// ClearAll clears every active alarm and returns how many were cleared.
func (m *Manager) ClearAll() int {
	m.mu.Lock()
	var snapshots []*models.Alarm
	for _, alarm := range m.active {
		snapshots = append(snapshots, m.clearLocked(alarm))
	}
	m.mu.Unlock()

	if m.esc != nil {
		m.esc.cancelAll()
	}
	for _, s := range snapshots {
		metrics.AlarmsActive.Dec()
		m.archive(context.Background(), s)
	}
	return len(snapshots)
}

// clearLocked stamps the alarm cleared, removes it from the active set,
// and records the history snapshot. Callers hold m.mu.
func (m *Manager) clearLocked(alarm *models.Alarm) *models.Alarm {
	now := time.Now()
	alarm.Status = models.AlarmCleared
	alarm.ClearedAt = &now
	snapshot := alarm.Snapshot()
	delete(m.active, alarm.ID)
	m.history.Append(snapshot)
	return snapshot
}

// Get returns a snapshot of an active alarm.
func (m *Manager) Get(id string) (*models.Alarm, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	alarm, ok := m.active[id]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", id, ErrAlarmNotFound)
	}
	return alarm.Snapshot(), nil
}

// Active returns snapshots of all active-set alarms, newest first.
func (m *Manager) Active() []*models.Alarm {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*models.Alarm, 0, len(m.active))
	for _, alarm := range m.active {
		out = append(out, alarm.Snapshot())
	}
	sortAlarmsNewestFirst(out)
	return out
}

// HistoryQuery filters the alarm history.
type HistoryQuery struct {
	Status    models.AlarmStatus
	RuleID    string
	EventType string
	Limit     int
	Offset    int
}

// History returns matching history snapshots, newest first. Limit <= 0
// returns everything after the offset.
func (m *Manager) History(q HistoryQuery) []*models.Alarm {
	m.mu.RLock()
	entries := m.history.Recent(0)
	m.mu.RUnlock()

	var out []*models.Alarm
	skipped := 0
	for _, alarm := range entries {
		if q.Status != "" && alarm.Status != q.Status {
			continue
		}
		if q.RuleID != "" && alarm.RuleID != q.RuleID {
			continue
		}
		if q.EventType != "" && alarm.EventType != q.EventType {
			continue
		}
		if skipped < q.Offset {
			skipped++
			continue
		}
		out = append(out, alarm)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

// Stats summarizes the manager state.
type Stats struct {
	ActiveCount int            `json:"active_count"`
	BySeverity  map[string]int `json:"by_severity"`
	BySource    map[string]int `json:"by_source"`
	HistorySize int            `json:"history_size"`
	Created     uint64         `json:"created"`
	Suppressed  uint64         `json:"suppressed"`
}

// GetStats returns counts over the active set and history.
func (m *Manager) GetStats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s := Stats{
		ActiveCount: len(m.active),
		BySeverity:  make(map[string]int),
		BySource:    make(map[string]int),
		HistorySize: m.history.Len(),
		Created:     m.created,
		Suppressed:  m.suppressed,
	}
	for _, alarm := range m.active {
		s.BySeverity[string(alarm.Severity)]++
		s.BySource[alarm.Source]++
	}
	return s
}

// Close cancels all pending escalation timers.
func (m *Manager) Close() {
	if m.esc != nil {
		m.esc.cancelAll()
	}
}

func (m *Manager) cancelEscalation(alarmID string) {
	if m.esc != nil {
		m.esc.cancel(alarmID)
	}
}

func (m *Manager) archive(ctx context.Context, alarm *models.Alarm) {
	if m.opts.Archive == nil {
		return
	}
	if err := m.opts.Archive.ArchiveAlarm(ctx, alarm); err != nil {
		log.Printf("Failed to archive alarm %s: %v", alarm.ID, err)
	}
}

func sortAlarmsNewestFirst(alarms []*models.Alarm) {
	sort.Slice(alarms, func(i, j int) bool {
		return alarms[i].TriggeredAt.After(alarms[j].TriggeredAt)
	})
}

func stringParam(params map[string]any, key string) string {
	if params == nil {
		return ""
	}
	if s, ok := params[key].(string); ok {
		return s
	}
	return ""
}

// channelsParam coerces the "channels" action param, which arrives as
// []any from YAML or JSON decoding.
func channelsParam(params map[string]any) []string {
	if params == nil {
		return nil
	}
	switch v := params["channels"].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}

func lastOutput(prior []rules.ActionResult) string {
	for i := len(prior) - 1; i >= 0; i-- {
		if prior[i].OK() && prior[i].Output != "" {
			return prior[i].Output
		}
	}
	return ""
}
