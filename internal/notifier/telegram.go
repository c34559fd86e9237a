package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TelegramConfig holds Telegram bot API configuration.
type TelegramConfig struct {
	// BotToken is the bot API token from @BotFather.
	BotToken string
	// ChatID is the destination chat or channel.
	ChatID string
	// APIBase overrides the bot API base URL, used in tests.
	APIBase string
}

// Validate validates the Telegram configuration.
func (c *TelegramConfig) Validate() error {
	if c.BotToken == "" {
		return fmt.Errorf("bot token is required")
	}
	if c.ChatID == "" {
		return fmt.Errorf("chat id is required")
	}
	return nil
}

// TelegramNotifier sends messages via the Telegram bot API.
type TelegramNotifier struct {
	config     TelegramConfig
	httpClient *http.Client
}

// NewTelegramNotifier creates a new Telegram notifier.
func NewTelegramNotifier(config TelegramConfig) (*TelegramNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid telegram config: %w", err)
	}
	if config.APIBase == "" {
		config.APIBase = "https://api.telegram.org"
	}
	config.APIBase = strings.TrimRight(config.APIBase, "/")

	return &TelegramNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Name returns "telegram".
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// telegramSendMessage is the sendMessage request payload.
type telegramSendMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

// Send posts the message to the configured chat.
func (t *TelegramNotifier) Send(ctx context.Context, message string, opts map[string]any) error {
	payload := telegramSendMessage{
		ChatID: t.config.ChatID,
		Text:   message,
	}
	if mode, ok := opts["parse_mode"].(string); ok {
		payload.ParseMode = mode
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", t.config.APIBase, t.config.BotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("telegram API error: status %d, body: %s", resp.StatusCode, string(body))
	}

	return nil
}

// Close is a no-op for the Telegram notifier.
func (t *TelegramNotifier) Close() error {
	return nil
}
