package rules

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

// Validate checks a rule for structural problems and returns a validation
// error describing the first one found. A rule must have a non-empty name
// and at least one action with a non-empty type; optional condition fields
// must parse. Nothing is registered when validation fails.
func Validate(r *models.Rule) error {
	if r.Name == "" {
		return fmt.Errorf("rule name is required")
	}

	if len(r.Actions) == 0 {
		return fmt.Errorf("rule %q must have at least one action", r.Name)
	}
	for i, action := range r.Actions {
		if action.Type == "" {
			return fmt.Errorf("action %d of rule %q has an empty type", i, r.Name)
		}
	}

	if tw := r.Conditions.TimeWindow; tw != nil {
		if _, err := parseClock(tw.From); err != nil {
			return fmt.Errorf("invalid time window start %q for rule %q: %w", tw.From, r.Name, err)
		}
		if _, err := parseClock(tw.To); err != nil {
			return fmt.Errorf("invalid time window end %q for rule %q: %w", tw.To, r.Name, err)
		}
	}

	if r.Conditions.Expression != "" {
		if _, err := compileExpression(r.Conditions.Expression); err != nil {
			return fmt.Errorf("invalid expression for rule %q: %w", r.Name, err)
		}
	}

	return nil
}

// compileExpression compiles an expr-lang predicate with the expected event
// environment and boolean result type.
func compileExpression(expression string) (*vm.Program, error) {
	program, err := expr.Compile(expression,
		expr.Env(sampleEnv()),
		expr.AsBool(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}
	return program, nil
}

// sampleEnv is the environment shape used for expression type checking.
func sampleEnv() map[string]any {
	return map[string]any{
		"id":        "",
		"type":      "",
		"source":    "",
		"timestamp": time.Time{},
		"data":      map[string]any{},
	}
}

// eventEnv builds the expression environment from an event.
func eventEnv(evt *models.Event) map[string]any {
	data := evt.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"id":        evt.ID,
		"type":      evt.Type,
		"source":    evt.Source,
		"timestamp": evt.Timestamp,
		"data":      data,
	}
}

// matchConditions reports whether every set condition field matches the
// event (conjunction). Unset fields are wildcards. The compiled expression
// program, if any, is supplied by the engine's program cache.
func matchConditions(cond *models.Conditions, program *vm.Program, evt *models.Event, now time.Time) bool {
	if cond.EventType != "" && evt.Type != cond.EventType {
		return false
	}
	if cond.Source != "" && evt.Source != cond.Source {
		return false
	}

	if cond.TimeWindow != nil && !inTimeWindow(cond.TimeWindow, now) {
		return false
	}

	for path, want := range cond.Data {
		got, ok := evt.GetData(path)
		if !ok || !looseEqual(got, want) {
			return false
		}
	}

	if program != nil {
		result, err := expr.Run(program, eventEnv(evt))
		if err != nil {
			return false
		}
		matched, ok := result.(bool)
		if !ok || !matched {
			return false
		}
	}

	return true
}

// parseClock parses an "HH:MM" time-of-day string into minutes since
// midnight.
func parseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

// inTimeWindow reports whether now falls inside the daily window. A window
// whose start is later than its end spans midnight.
func inTimeWindow(tw *models.TimeWindow, now time.Time) bool {
	from, err := parseClock(tw.From)
	if err != nil {
		return false
	}
	to, err := parseClock(tw.To)
	if err != nil {
		return false
	}

	minute := now.Hour()*60 + now.Minute()
	if from <= to {
		return minute >= from && minute <= to
	}
	// Spans midnight, e.g. 22:00-06:00.
	return minute >= from || minute <= to
}

// looseEqual compares a payload value against a condition value, tolerating
// the numeric type differences between YAML, JSON, and in-process payloads.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}

	an, aok := toFloat64(a)
	bn, bok := toFloat64(b)
	if aok && bok {
		return an == bn
	}

	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

// toFloat64 converts numeric values (and numeric strings) to float64.
func toFloat64(v any) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	case string:
		trimmed := strings.TrimSpace(val)
		if trimmed == "" {
			return 0, false
		}
		if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
			return f, true
		}
		return 0, false
	default:
		return 0, false
	}
}
