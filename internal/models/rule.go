package models

import "time"

// Action is a single step executed when a rule matches. Actions run in list
// order; later actions may reference the output of earlier ones.
type Action struct {
	// Type names the registered action handler, e.g. "notify" or "snapshot".
	Type string `json:"type" yaml:"type"`

	// Params carries handler-specific parameters such as message templates,
	// severity, or notification channels.
	Params map[string]any `json:"params,omitempty" yaml:"params,omitempty"`
}

// TimeWindow restricts a rule to a daily time-of-day range. Times are
// "HH:MM" in the local timezone of the process. A window where From is later
// than To spans midnight (e.g. 22:00–06:00).
type TimeWindow struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Conditions defines when a rule matches an event. All set fields must match
// (conjunction); an unset field is a wildcard that always matches.
type Conditions struct {
	// EventType matches the event's type exactly.
	EventType string `json:"event_type,omitempty" yaml:"event_type,omitempty"`

	// Source matches the event's source exactly.
	Source string `json:"source,omitempty" yaml:"source,omitempty"`

	// TimeWindow restricts matching to a daily time-of-day range.
	TimeWindow *TimeWindow `json:"time_window,omitempty" yaml:"time_window,omitempty"`

	// Data requires equality on nested payload paths, e.g.
	// {"zone": "entrance", "meta.camera": "cam-1"}.
	Data map[string]any `json:"data,omitempty" yaml:"data,omitempty"`

	// Expression is an optional expr-lang predicate evaluated against the
	// event environment, e.g. `type startsWith "aircraft:" and data.alt < 1000`.
	Expression string `json:"expression,omitempty" yaml:"expression,omitempty"`
}

// RuleMetadata carries bookkeeping fields for a rule.
type RuleMetadata struct {
	// Category groups rules for operators, e.g. "security" or "aviation".
	Category string `json:"category,omitempty" yaml:"category,omitempty"`

	// Connector names the integration the rule belongs to, if any.
	Connector string `json:"connector,omitempty" yaml:"connector,omitempty"`

	CreatedAt time.Time `json:"created_at,omitempty" yaml:"-"`
	UpdatedAt time.Time `json:"updated_at,omitempty" yaml:"-"`
}

// Rule matches events against conditions and triggers an ordered action
// list. Rules live in the engine's in-memory table for the process lifetime.
type Rule struct {
	// ID uniquely identifies the rule. Assigned on registration if absent.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	// Name is the human-readable rule name. Required.
	Name string `json:"name" yaml:"name"`

	// Enabled controls whether the rule is evaluated. Defaults to true.
	Enabled *bool `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	// Conditions defines when the rule matches.
	Conditions Conditions `json:"conditions" yaml:"conditions"`

	// Actions is the ordered list of steps executed on match. Required,
	// at least one with a non-empty type.
	Actions []Action `json:"actions" yaml:"actions"`

	// Metadata carries category/connector/timestamps.
	Metadata RuleMetadata `json:"metadata,omitempty" yaml:"metadata,omitempty"`
}

// IsEnabled returns whether the rule is enabled. Unset means enabled.
func (r *Rule) IsEnabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}
