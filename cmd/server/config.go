// Package main provides the opswatch server CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

// Config represents the server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Bus       BusConfig       `yaml:"bus"`
	Rules     RulesConfig     `yaml:"rules"`
	Alarms    AlarmsConfig    `yaml:"alarms"`
	Notifiers NotifiersConfig `yaml:"notifiers"`
	Tracker   TrackerConfig   `yaml:"tracker"`
	Verbose   bool            `yaml:"-"` // set via CLI flag
}

// ServerConfig contains listener settings.
type ServerConfig struct {
	HTTPAddress    string        `yaml:"http_address"`    // REST API listen address (default: :8080)
	MetricsAddress string        `yaml:"metrics_address"` // Prometheus listen address (default: :9090)
	JWTSecret      string        `yaml:"jwt_secret"`      // enables API auth when set; env OPSWATCH_JWT_SECRET overrides
	TokenTTL       time.Duration `yaml:"token_ttl"`       // issued token lifetime (default: 24h)
}

// BusConfig contains event bus settings.
type BusConfig struct {
	HistorySize       int           `yaml:"history_size"`       // bounded event history (default: 1000)
	SubscriberTimeout time.Duration `yaml:"subscriber_timeout"` // per-subscriber dispatch timeout (default: 30s)
}

// RulesConfig contains rule engine settings.
type RulesConfig struct {
	File  string `yaml:"file"`  // YAML rules file loaded at startup
	Watch bool   `yaml:"watch"` // hot-reload the rules file on change
}

// AlarmsConfig contains alarm manager settings.
type AlarmsConfig struct {
	HistorySize          int              `yaml:"history_size"`           // bounded alarm history (default: 500)
	DefaultChannels      []string         `yaml:"default_channels"`       // channels for rules without explicit ones
	RateLimitWindow      time.Duration    `yaml:"rate_limit_window"`      // per-type notification window (default: 30s)
	BypassTypeContains   []string         `yaml:"bypass_type_contains"`   // type substrings exempt from rate limiting
	BypassSourceContains []string         `yaml:"bypass_source_contains"` // source substrings exempt from rate limiting
	Escalation           EscalationConfig `yaml:"escalation"`
	ArchivePath          string           `yaml:"archive_path"` // SQLite alarm archive; empty disables
}

// EscalationConfig contains escalation timer settings.
type EscalationConfig struct {
	Enabled bool            `yaml:"enabled"`
	Delays  []time.Duration `yaml:"delays"` // per-level delays from alarm creation
}

// NotifiersConfig contains notification channel adapters.
type NotifiersConfig struct {
	Telegram TelegramConfig  `yaml:"telegram"`
	Slack    SlackConfig     `yaml:"slack"`
	Webhooks []WebhookConfig `yaml:"webhooks"`
}

// TelegramConfig configures the Telegram adapter.
type TelegramConfig struct {
	BotToken string `yaml:"bot_token"`
	ChatID   string `yaml:"chat_id"`
}

// SlackConfig configures the Slack adapter.
type SlackConfig struct {
	WebhookURL string `yaml:"webhook_url"`
}

// WebhookConfig configures one generic webhook adapter.
type WebhookConfig struct {
	Name    string            `yaml:"name"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// TrackerConfig contains aircraft tracker settings.
type TrackerConfig struct {
	Enabled         bool            `yaml:"enabled"`
	ReferenceLat    float64         `yaml:"reference_lat"`
	ReferenceLon    float64         `yaml:"reference_lon"`
	TrackingRadius  float64         `yaml:"tracking_radius"`  // meters (default: 100000)
	ApproachRadius  float64         `yaml:"approach_radius"`  // meters (default: 50000)
	RunwayThreshold float64         `yaml:"runway_threshold"` // meters (default: 5000)
	Runways         []models.Runway `yaml:"runways"`
	HistorySize     int             `yaml:"history_size"` // bounded report history (default: 500)
	Source          string          `yaml:"source"`       // event source name (default: adsb-tracker)
}

// LoadConfig loads configuration from a YAML file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Server.HTTPAddress == "" {
		c.Server.HTTPAddress = ":8080"
	}
	if c.Server.MetricsAddress == "" {
		c.Server.MetricsAddress = ":9090"
	}
	if c.Server.TokenTTL == 0 {
		c.Server.TokenTTL = 24 * time.Hour
	}
	if c.Bus.HistorySize == 0 {
		c.Bus.HistorySize = 1000
	}
	if c.Bus.SubscriberTimeout == 0 {
		c.Bus.SubscriberTimeout = 30 * time.Second
	}
	if c.Alarms.HistorySize == 0 {
		c.Alarms.HistorySize = 500
	}
	if len(c.Alarms.DefaultChannels) == 0 {
		c.Alarms.DefaultChannels = []string{"telegram"}
	}
	if c.Alarms.RateLimitWindow == 0 {
		c.Alarms.RateLimitWindow = 30 * time.Second
	}
	if c.Alarms.BypassTypeContains == nil {
		c.Alarms.BypassTypeContains = []string{"aircraft"}
	}
	if c.Alarms.BypassSourceContains == nil {
		c.Alarms.BypassSourceContains = []string{"adsb"}
	}
	if c.Tracker.TrackingRadius == 0 {
		c.Tracker.TrackingRadius = 100000
	}
	if c.Tracker.ApproachRadius == 0 {
		c.Tracker.ApproachRadius = 50000
	}
	if c.Tracker.RunwayThreshold == 0 {
		c.Tracker.RunwayThreshold = 5000
	}
	if c.Tracker.HistorySize == 0 {
		c.Tracker.HistorySize = 500
	}
	if c.Tracker.Source == "" {
		c.Tracker.Source = "adsb-tracker"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.HTTPAddress == "" {
		return fmt.Errorf("server.http_address is required")
	}
	if (c.Notifiers.Telegram.BotToken == "") != (c.Notifiers.Telegram.ChatID == "") {
		return fmt.Errorf("notifiers.telegram requires both bot_token and chat_id")
	}
	for i, wh := range c.Notifiers.Webhooks {
		if wh.Name == "" {
			return fmt.Errorf("notifiers.webhooks[%d].name is required", i)
		}
		if wh.URL == "" {
			return fmt.Errorf("notifiers.webhooks[%d].url is required", i)
		}
	}
	if c.Tracker.Enabled {
		for i, rw := range c.Tracker.Runways {
			if rw.Name == "" {
				return fmt.Errorf("tracker.runways[%d].name is required", i)
			}
		}
		if c.Tracker.TrackingRadius <= 0 {
			return fmt.Errorf("tracker.tracking_radius must be positive")
		}
	}
	return nil
}

// JWTSecret resolves the API token secret: the OPSWATCH_JWT_SECRET
// environment variable wins over the config file.
func (c *Config) JWTSecret() []byte {
	if env := os.Getenv("OPSWATCH_JWT_SECRET"); env != "" {
		return []byte(env)
	}
	if c.Server.JWTSecret != "" {
		return []byte(c.Server.JWTSecret)
	}
	return nil
}
