// Package notifier provides the notification channel adapters and the
// registry the alarm manager dispatches through. Adapters are thin webhook
// clients; the heavier integration connectors live outside this service.
package notifier

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/good-yellow-bee/opswatch/internal/metrics"
	"github.com/good-yellow-bee/opswatch/internal/models"
)

// Notifier is the notification channel adapter contract. Send failures are
// reported, never thrown past the dispatch boundary.
type Notifier interface {
	// Name returns the channel name, e.g. "telegram".
	Name() string

	// Send delivers one message. opts carries channel-specific options such
	// as severity or attachment references.
	Send(ctx context.Context, message string, opts map[string]any) error

	// Close releases adapter resources.
	Close() error
}

// Registry holds the configured channel adapters by name.
type Registry struct {
	mu        sync.RWMutex
	notifiers map[string]Notifier
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{notifiers: make(map[string]Notifier)}
}

// Register adds a channel adapter under its Name.
func (r *Registry) Register(n Notifier) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notifiers[n.Name()] = n
}

// Get returns a channel adapter by name.
func (r *Registry) Get(name string) (Notifier, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	n, ok := r.notifiers[name]
	return n, ok
}

// Channels returns the names of all registered adapters.
func (r *Registry) Channels() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.notifiers))
	for name := range r.notifiers {
		out = append(out, name)
	}
	return out
}

// Dispatch attempts delivery on every named channel independently and
// returns one result per channel, in the order given. A missing adapter
// yields a failed result with "channel not configured"; an adapter error is
// captured the same way. One channel's failure never prevents another's
// attempt.
func (r *Registry) Dispatch(ctx context.Context, channels []string, message string, opts map[string]any) []models.DeliveryResult {
	results := make([]models.DeliveryResult, 0, len(channels))

	for _, channel := range channels {
		result := models.DeliveryResult{
			Channel:   channel,
			Timestamp: time.Now(),
		}

		adapter, ok := r.Get(channel)
		if !ok {
			result.Error = "channel not configured"
		} else if err := adapter.Send(ctx, message, opts); err != nil {
			result.Error = err.Error()
			log.Printf("notification via %s failed: %v", channel, err)
		} else {
			result.Success = true
		}

		status := "ok"
		if !result.Success {
			status = "error"
		}
		metrics.NotificationsTotal.WithLabelValues(channel, status).Inc()

		results = append(results, result)
	}

	return results
}

// Close closes all registered adapters, returning the first error.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, n := range r.notifiers {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close %s: %w", name, err)
		}
	}
	return firstErr
}
