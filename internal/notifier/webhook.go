package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// WebhookConfig holds generic webhook configuration for integrations that
// accept a JSON POST (message brokers, home-automation bridges, pagers).
type WebhookConfig struct {
	// Name is the channel name the adapter registers under.
	Name string
	// URL is the webhook endpoint.
	URL string
	// Headers are added to every request, e.g. an Authorization header.
	Headers map[string]string
	// Timeout bounds one delivery attempt. Defaults to 15s.
	Timeout time.Duration
}

// Validate validates the webhook configuration.
func (c *WebhookConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("channel name is required")
	}
	if c.URL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	return nil
}

// WebhookNotifier posts notifications as JSON to an arbitrary endpoint.
type WebhookNotifier struct {
	config     WebhookConfig
	httpClient *http.Client
}

// NewWebhookNotifier creates a new generic webhook notifier.
func NewWebhookNotifier(config WebhookConfig) (*WebhookNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid webhook config: %w", err)
	}
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}

	return &WebhookNotifier{
		config:     config,
		httpClient: &http.Client{Timeout: config.Timeout},
	}, nil
}

// Name returns the configured channel name.
func (w *WebhookNotifier) Name() string {
	return w.config.Name
}

// webhookPayload is the JSON body posted to the endpoint.
type webhookPayload struct {
	Message   string         `json:"message"`
	Options   map[string]any `json:"options,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Send posts the message to the endpoint.
func (w *WebhookNotifier) Send(ctx context.Context, message string, opts map[string]any) error {
	jsonData, err := json.Marshal(webhookPayload{
		Message:   message,
		Options:   opts,
		Timestamp: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.config.URL, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range w.config.Headers {
		req.Header.Set(k, v)
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("webhook error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close is a no-op for the webhook notifier.
func (w *WebhookNotifier) Close() error {
	return nil
}
