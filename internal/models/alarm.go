package models

import "time"

// AlarmStatus represents the lifecycle state of an alarm.
type AlarmStatus string

const (
	// AlarmActive means the alarm has triggered and nobody has responded.
	AlarmActive AlarmStatus = "active"
	// AlarmAcknowledged means an operator has seen the alarm but it is not
	// yet resolved. Escalation stops at acknowledgement.
	AlarmAcknowledged AlarmStatus = "acknowledged"
	// AlarmResolved means an operator closed the alarm.
	AlarmResolved AlarmStatus = "resolved"
	// AlarmCleared means the alarm was cleared externally (connector
	// cleared its own condition, bulk clear, rule removal).
	AlarmCleared AlarmStatus = "cleared"
)

// Severity represents alarm severity.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ParseSeverity converts a string to Severity, defaulting to medium.
func ParseSeverity(s string) Severity {
	switch s {
	case "low", "LOW":
		return SeverityLow
	case "medium", "MEDIUM":
		return SeverityMedium
	case "high", "HIGH":
		return SeverityHigh
	case "critical", "CRITICAL":
		return SeverityCritical
	default:
		return SeverityMedium
	}
}

// Alarm is one triggered notification-worthy incident. An alarm is created
// exactly once per rule match; it never re-enters active after leaving it —
// a fresh match creates a new alarm with a new id.
type Alarm struct {
	ID        string      `json:"id"`
	RuleID    string      `json:"rule_id"`
	RuleName  string      `json:"rule_name"`
	EventType string      `json:"event_type"`
	Source    string      `json:"source,omitempty"`
	Severity  Severity    `json:"severity"`
	Message   string      `json:"message"`
	Status    AlarmStatus `json:"status"`

	TriggeredAt    time.Time  `json:"triggered_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
	ClearedAt      *time.Time `json:"cleared_at,omitempty"`

	// AckBy/AckNote record who acknowledged and why.
	AckBy   string `json:"ack_by,omitempty"`
	AckNote string `json:"ack_note,omitempty"`
	// ResolvedBy records who resolved the alarm.
	ResolvedBy string `json:"resolved_by,omitempty"`

	// Data is a snapshot of the triggering event payload.
	Data map[string]any `json:"data,omitempty"`
}

// IsOpen reports whether the alarm is still in the active set
// (active or acknowledged).
func (a *Alarm) IsOpen() bool {
	return a.Status == AlarmActive || a.Status == AlarmAcknowledged
}

// Snapshot returns a shallow copy of the alarm for history records, so later
// transitions do not mutate what history already recorded.
func (a *Alarm) Snapshot() *Alarm {
	copied := *a
	return &copied
}

// DeliveryResult is the outcome of one notification channel attempt. Every
// configured channel is attempted independently; a failed channel never
// blocks another's attempt.
type DeliveryResult struct {
	Channel   string    `json:"channel"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}
