// Package models contains the core data structures for opswatch.
package models

import (
	"encoding/json"
	"strings"
	"time"
)

// Event represents a single normalized operational event flowing through the
// bus. Events are immutable after publish: the bus fills in missing fields
// once and every consumer sees the same value.
type Event struct {
	// ID uniquely identifies the event. Assigned on publish if absent.
	ID string `json:"id"`

	// Type is the event taxonomy string, e.g. "motion" or "aircraft:approach".
	Type string `json:"type"`

	// Source identifies the producer, e.g. "cam-1" or "adsb-feed".
	Source string `json:"source,omitempty"`

	// Timestamp is when the event occurred. Assigned on publish if zero.
	Timestamp time.Time `json:"timestamp"`

	// Data is the opaque key/value payload attached by the producer.
	Data map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event with an initialized payload map.
func NewEvent(eventType, source string) *Event {
	return &Event{
		Type:   eventType,
		Source: source,
		Data:   make(map[string]any),
	}
}

// SetData sets a payload value.
func (e *Event) SetData(key string, value any) {
	if e.Data == nil {
		e.Data = make(map[string]any)
	}
	e.Data[key] = value
}

// GetData retrieves a payload value by dotted path, descending into nested
// maps: "position.lat" looks up Data["position"]["lat"].
func (e *Event) GetData(path string) (any, bool) {
	if e.Data == nil {
		return nil, false
	}
	return lookupPath(e.Data, path)
}

// GetDataString retrieves a payload value as a string, or "" if absent or
// not a string.
func (e *Event) GetDataString(path string) string {
	val, ok := e.GetData(path)
	if !ok {
		return ""
	}
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// lookupPath walks a dotted path through nested map[string]any values.
func lookupPath(data map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var current any = data
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// JSON returns the event as JSON bytes.
func (e *Event) JSON() ([]byte, error) {
	return json.Marshal(e)
}

// String returns a compact string representation of the event.
func (e *Event) String() string {
	return e.Timestamp.Format(time.RFC3339) + " [" + e.Type + "] " + e.Source
}
