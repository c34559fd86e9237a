package rules

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

// RulesConfig represents the top-level rules YAML file.
type RulesConfig struct {
	Rules []*models.Rule `yaml:"rules"`
}

// LoadRulesFromFile loads rules from a YAML file.
func LoadRulesFromFile(path string) ([]*models.Rule, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open rules file: %w", err)
	}
	defer f.Close()

	return LoadRules(f)
}

// LoadRules loads rules from a reader.
func LoadRules(r io.Reader) ([]*models.Rule, error) {
	var config RulesConfig
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	for i, rule := range config.Rules {
		if err := Validate(rule); err != nil {
			return nil, fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
	}

	return config.Rules, nil
}

// LoadRulesFromBytes loads rules from YAML bytes.
func LoadRulesFromBytes(data []byte) ([]*models.Rule, error) {
	var config RulesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse rules YAML: %w", err)
	}

	for i, rule := range config.Rules {
		if err := Validate(rule); err != nil {
			return nil, fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
	}

	return config.Rules, nil
}
