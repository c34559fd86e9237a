package alarms

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

// Interpolate substitutes {path} tokens in a message template against the
// given environment. Paths are dotted accessors such as {event.type},
// {rule.name}, or {data.position.lat}. Unresolved paths substitute the
// empty string; interpolation never fails.
func Interpolate(template string, env map[string]any) string {
	var b strings.Builder
	b.Grow(len(template))

	for {
		open := strings.IndexByte(template, '{')
		if open < 0 {
			b.WriteString(template)
			break
		}
		closing := strings.IndexByte(template[open:], '}')
		if closing < 0 {
			b.WriteString(template)
			break
		}
		closing += open

		b.WriteString(template[:open])
		path := template[open+1 : closing]
		if isPath(path) {
			b.WriteString(stringify(resolvePath(env, path)))
		} else {
			// Not a path token, keep the braces verbatim.
			b.WriteString(template[open : closing+1])
		}
		template = template[closing+1:]
	}

	return b.String()
}

// isPath reports whether the token looks like a dotted path accessor.
func isPath(token string) bool {
	if token == "" {
		return false
	}
	for _, r := range token {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.', r == '-':
		default:
			return false
		}
	}
	return true
}

// resolvePath walks a dotted path through nested map[string]any values.
func resolvePath(env map[string]any, path string) any {
	parts := strings.Split(path, ".")
	var current any = env
	for _, part := range parts {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		current, ok = m[part]
		if !ok {
			return nil
		}
	}
	return current
}

// stringify renders a resolved value for message text. nil renders empty.
func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// templateEnv builds the interpolation environment for a rule match.
func templateEnv(rule *models.Rule, evt *models.Event) map[string]any {
	data := evt.Data
	if data == nil {
		data = map[string]any{}
	}
	return map[string]any{
		"event": map[string]any{
			"id":        evt.ID,
			"type":      evt.Type,
			"source":    evt.Source,
			"timestamp": evt.Timestamp,
		},
		"rule": map[string]any{
			"id":   rule.ID,
			"name": rule.Name,
		},
		"data": data,
	}
}
