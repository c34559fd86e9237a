package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const validRulesYAML = `
rules:
  - name: front-door-motion
    conditions:
      event_type: motion
      source: cam-1
      data:
        zone: entrance
    actions:
      - type: snapshot
        params:
          camera: cam-1
      - type: notify
        params:
          message: "Motion at {event.source}"
          severity: high
          channels: [telegram, slack]
  - name: low-aircraft
    enabled: true
    conditions:
      expression: 'type startsWith "aircraft:" and data.altitude < 1000'
    actions:
      - type: notify
        params:
          message: "Low aircraft {data.icao24}"
    metadata:
      category: aviation
      connector: adsb
`

func TestLoadRules(t *testing.T) {
	rules, err := LoadRules(strings.NewReader(validRulesYAML))
	if err != nil {
		t.Fatalf("LoadRules: %v", err)
	}

	if len(rules) != 2 {
		t.Fatalf("expected 2 rules, got %d", len(rules))
	}

	first := rules[0]
	if first.Name != "front-door-motion" {
		t.Errorf("name = %q", first.Name)
	}
	if first.Conditions.EventType != "motion" || first.Conditions.Source != "cam-1" {
		t.Errorf("conditions not parsed: %+v", first.Conditions)
	}
	if got := first.Conditions.Data["zone"]; got != "entrance" {
		t.Errorf("data condition = %v", got)
	}
	if len(first.Actions) != 2 || first.Actions[0].Type != "snapshot" || first.Actions[1].Type != "notify" {
		t.Errorf("actions not parsed in order: %+v", first.Actions)
	}

	second := rules[1]
	if second.Conditions.Expression == "" {
		t.Error("expression not parsed")
	}
	if second.Metadata.Category != "aviation" {
		t.Errorf("metadata category = %q", second.Metadata.Category)
	}
}

func TestLoadRulesInvalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{
			name: "not yaml",
			yaml: `{{{`,
		},
		{
			name: "rule without name",
			yaml: "rules:\n  - conditions:\n      event_type: motion\n    actions:\n      - type: notify\n",
		},
		{
			name: "rule without actions",
			yaml: "rules:\n  - name: no-actions\n",
		},
		{
			name: "bad expression",
			yaml: "rules:\n  - name: bad\n    conditions:\n      expression: 'type =='\n    actions:\n      - type: notify\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadRules(strings.NewReader(tt.yaml)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadRulesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(validRulesYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	rules, err := LoadRulesFromFile(path)
	if err != nil {
		t.Fatalf("LoadRulesFromFile: %v", err)
	}
	if len(rules) != 2 {
		t.Errorf("expected 2 rules, got %d", len(rules))
	}

	if _, err := LoadRulesFromFile(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
