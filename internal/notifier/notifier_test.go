package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
)

// fakeNotifier records sends and can be told to fail.
type fakeNotifier struct {
	name string
	fail bool

	mu   sync.Mutex
	sent []string
}

func (f *fakeNotifier) Name() string { return f.name }

func (f *fakeNotifier) Send(ctx context.Context, message string, opts map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return fmt.Errorf("send failed")
	}
	f.sent = append(f.sent, message)
	return nil
}

func (f *fakeNotifier) Close() error { return nil }

func TestDispatchPartialFailure(t *testing.T) {
	r := NewRegistry()
	healthy := &fakeNotifier{name: "B"}
	r.Register(healthy)

	// Channel A has no adapter; channel B succeeds.
	results := r.Dispatch(context.Background(), []string{"A", "B"}, "hello", nil)

	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	if results[0].Channel != "A" || results[0].Success {
		t.Errorf("expected channel A failure, got %+v", results[0])
	}
	if results[0].Error != "channel not configured" {
		t.Errorf("expected 'channel not configured', got %q", results[0].Error)
	}

	if results[1].Channel != "B" || !results[1].Success {
		t.Errorf("expected channel B success, got %+v", results[1])
	}
	if results[0].Timestamp.IsZero() || results[1].Timestamp.IsZero() {
		t.Error("expected timestamps on results")
	}

	healthy.mu.Lock()
	defer healthy.mu.Unlock()
	if len(healthy.sent) != 1 || healthy.sent[0] != "hello" {
		t.Errorf("healthy channel did not receive the message: %v", healthy.sent)
	}
}

func TestDispatchAdapterError(t *testing.T) {
	r := NewRegistry()
	r.Register(&fakeNotifier{name: "broken", fail: true})
	r.Register(&fakeNotifier{name: "ok"})

	results := r.Dispatch(context.Background(), []string{"broken", "ok"}, "msg", nil)

	if results[0].Success || results[0].Error == "" {
		t.Errorf("expected captured error for broken channel, got %+v", results[0])
	}
	if !results[1].Success {
		t.Errorf("broken channel blocked sibling: %+v", results[1])
	}
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody telegramSendMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewTelegramNotifier(TelegramConfig{
		BotToken: "123:abc",
		ChatID:   "-100200300",
		APIBase:  srv.URL,
	})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}

	if err := n.Send(context.Background(), "alarm: motion at entrance", nil); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/bot123:abc/sendMessage" {
		t.Errorf("path = %q", gotPath)
	}
	if gotBody.ChatID != "-100200300" || gotBody.Text != "alarm: motion at entrance" {
		t.Errorf("payload = %+v", gotBody)
	}
}

func TestTelegramSendAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	n, err := NewTelegramNotifier(TelegramConfig{BotToken: "t", ChatID: "c", APIBase: srv.URL})
	if err != nil {
		t.Fatalf("NewTelegramNotifier: %v", err)
	}

	if err := n.Send(context.Background(), "msg", nil); err == nil {
		t.Error("expected error for non-200 response")
	}
}

func TestTelegramConfigValidation(t *testing.T) {
	if _, err := NewTelegramNotifier(TelegramConfig{ChatID: "c"}); err == nil {
		t.Error("expected error for missing bot token")
	}
	if _, err := NewTelegramNotifier(TelegramConfig{BotToken: "t"}); err == nil {
		t.Error("expected error for missing chat id")
	}
}

func TestSlackSend(t *testing.T) {
	var gotBody slackMessage

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	n, err := NewSlackNotifier(SlackConfig{WebhookURL: srv.URL, AllowHTTP: true})
	if err != nil {
		t.Fatalf("NewSlackNotifier: %v", err)
	}

	if err := n.Send(context.Background(), "disk full", map[string]any{"severity": "critical"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if gotBody.Text != "🚨 disk full" {
		t.Errorf("text = %q", gotBody.Text)
	}
}

func TestSlackRequiresHTTPS(t *testing.T) {
	if _, err := NewSlackNotifier(SlackConfig{WebhookURL: "http://insecure.example.com"}); err == nil {
		t.Error("expected error for plain-HTTP webhook URL")
	}
}

func TestWebhookSend(t *testing.T) {
	var gotAuth string
	var gotBody webhookPayload

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n, err := NewWebhookNotifier(WebhookConfig{
		Name:    "pager",
		URL:     srv.URL,
		Headers: map[string]string{"Authorization": "Bearer token"},
	})
	if err != nil {
		t.Fatalf("NewWebhookNotifier: %v", err)
	}

	opts := map[string]any{"severity": "high"}
	if err := n.Send(context.Background(), "pipeline stalled", opts); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotAuth != "Bearer token" {
		t.Errorf("authorization header = %q", gotAuth)
	}
	if gotBody.Message != "pipeline stalled" {
		t.Errorf("message = %q", gotBody.Message)
	}
	if gotBody.Options["severity"] != "high" {
		t.Errorf("options = %v", gotBody.Options)
	}
}
