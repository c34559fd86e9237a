// Package bus implements the central event bus: the single ingestion,
// normalization, and fan-out point for all operational events.
//
// Publish never blocks on subscriber execution. A single dispatch goroutine
// drains the queue strictly one event at a time, so the dispatch order every
// subscriber observes equals the publish order. For each event all matching
// subscribers run concurrently and the loop joins on them (bounded by a
// per-subscriber timeout) before advancing.
package bus

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/good-yellow-bee/opswatch/internal/metrics"
	"github.com/good-yellow-bee/opswatch/internal/models"
	"github.com/good-yellow-bee/opswatch/internal/ring"
)

// Options configures the event bus.
type Options struct {
	// HistorySize is the capacity of the event ring buffer.
	HistorySize int

	// SubscriberTimeout bounds a single subscriber invocation. A subscriber
	// exceeding it is abandoned (its context is cancelled) so one hung
	// callback cannot stall the pipeline forever.
	SubscriberTimeout time.Duration
}

// DefaultOptions returns the default bus options.
func DefaultOptions() *Options {
	return &Options{
		HistorySize:       1000,
		SubscriberTimeout: 30 * time.Second,
	}
}

// Bus is the event bus. Create with New, then Start the dispatch loop.
type Bus struct {
	opts Options

	mu            sync.Mutex
	subs          map[string]*Subscription
	history       *ring.Buffer[*models.Event]
	queue         []*models.Event // intentionally unbounded, see package doc
	countsByType  map[string]int64
	countsBySrc   map[string]int64
	published     int64
	started       bool

	// wake signals the dispatch loop that the queue is non-empty.
	wake chan struct{}
}

// New creates an event bus.
func New(opts *Options) *Bus {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.HistorySize <= 0 {
		opts.HistorySize = DefaultOptions().HistorySize
	}
	if opts.SubscriberTimeout <= 0 {
		opts.SubscriberTimeout = DefaultOptions().SubscriberTimeout
	}

	return &Bus{
		opts:         *opts,
		subs:         make(map[string]*Subscription),
		history:      ring.New[*models.Event](opts.HistorySize),
		countsByType: make(map[string]int64),
		countsBySrc:  make(map[string]int64),
		wake:         make(chan struct{}, 1),
	}
}

// Start launches the dispatch loop. It returns immediately; the loop runs
// until ctx is cancelled. Calling Start twice is a no-op.
func (b *Bus) Start(ctx context.Context) {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	b.mu.Unlock()

	go b.run(ctx)
}

// Publish normalizes the event (fills a missing ID and timestamp), records
// it in the bounded history, updates counters, and enqueues it for dispatch.
// It returns the normalized event and never blocks on subscriber execution.
func (b *Bus) Publish(evt *models.Event) *models.Event {
	if evt.ID == "" {
		evt.ID = uuid.New().String()
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.history.Append(evt)
	b.countsByType[evt.Type]++
	if evt.Source != "" {
		b.countsBySrc[evt.Source]++
	}
	b.published++
	b.queue = append(b.queue, evt)
	depth := len(b.queue)
	b.mu.Unlock()

	metrics.EventsPublishedTotal.WithLabelValues(evt.Type).Inc()
	metrics.DispatchQueueDepth.Set(float64(depth))

	// Nudge the dispatch loop if it is idle.
	select {
	case b.wake <- struct{}{}:
	default:
	}

	return evt
}

// Subscribe registers a subscriber with the given matcher. The name is used
// in logs only.
func (b *Bus) Subscribe(name string, matcher Matcher, fn SubscriberFunc) *Subscription {
	sub := &Subscription{
		ID:      uuid.New().String(),
		Name:    name,
		matcher: matcher,
		fn:      fn,
	}

	b.mu.Lock()
	b.subs[sub.ID] = sub
	count := len(b.subs)
	b.mu.Unlock()

	metrics.SubscribersActive.Set(float64(count))
	return sub
}

// SubscribeType registers a subscriber for an exact event type.
func (b *Bus) SubscribeType(name, eventType string, fn SubscriberFunc) *Subscription {
	return b.Subscribe(name, Matcher{Type: eventType}, fn)
}

// SubscribePattern registers a subscriber whose regexp is matched against
// the event type and source.
func (b *Bus) SubscribePattern(name, pattern string, fn SubscriberFunc) (*Subscription, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("compile subscription pattern %q: %w", pattern, err)
	}
	return b.Subscribe(name, Matcher{Pattern: re}, fn), nil
}

// Unsubscribe removes a subscription by ID. It returns false if the
// subscription does not exist.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	_, ok := b.subs[id]
	if ok {
		delete(b.subs, id)
	}
	count := len(b.subs)
	b.mu.Unlock()

	metrics.SubscribersActive.Set(float64(count))
	return ok
}

// run is the dispatch loop: pop one event, fan out to all matching
// subscribers, join, advance. An unexpected failure inside one dispatch is
// recovered and logged; the loop keeps draining.
func (b *Bus) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		}

		for {
			evt := b.dequeue()
			if evt == nil {
				break
			}
			b.dispatch(ctx, evt)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

// dequeue pops the oldest queued event, or nil when the queue is empty.
func (b *Bus) dequeue() *models.Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.queue) == 0 {
		metrics.DispatchQueueDepth.Set(0)
		return nil
	}
	evt := b.queue[0]
	b.queue = b.queue[1:]
	metrics.DispatchQueueDepth.Set(float64(len(b.queue)))
	return evt
}

// dispatch fans one event out to all matching subscribers and waits for all
// of them before returning.
func (b *Bus) dispatch(ctx context.Context, evt *models.Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered dispatch panic for event %s (%s): %v", evt.ID, evt.Type, r)
		}
	}()

	start := time.Now()

	b.mu.Lock()
	matched := make([]*Subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		if sub.matcher.Matches(evt) {
			matched = append(matched, sub)
		}
	}
	b.mu.Unlock()

	if len(matched) == 0 {
		return
	}

	var wg sync.WaitGroup
	for _, sub := range matched {
		wg.Add(1)
		go func(sub *Subscription) {
			defer wg.Done()
			b.invoke(ctx, sub, evt)
		}(sub)
	}
	wg.Wait()

	metrics.DispatchDuration.Observe(time.Since(start).Seconds())
}

// invoke runs one subscriber with panic isolation and the configured
// timeout. A subscriber exceeding the timeout is abandoned: its context is
// cancelled, the join proceeds, and the overrun is logged.
func (b *Bus) invoke(ctx context.Context, sub *Subscription, evt *models.Event) {
	cctx, cancel := context.WithTimeout(ctx, b.opts.SubscriberTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("panic: %v", r)
			}
		}()
		done <- sub.fn(cctx, evt)
	}()

	select {
	case err := <-done:
		if err != nil {
			metrics.SubscriberErrorsTotal.Inc()
			log.Printf("subscriber %s failed for event %s (%s): %v", sub.Name, evt.ID, evt.Type, err)
		}
	case <-cctx.Done():
		metrics.SubscriberErrorsTotal.Inc()
		log.Printf("subscriber %s timed out after %v for event %s (%s)", sub.Name, b.opts.SubscriberTimeout, evt.ID, evt.Type)
	}
}

// Filter selects events for GetEvents.
type Filter struct {
	// Type filters by exact event type.
	Type string
	// Source filters by exact source.
	Source string
	// Since/Until bound the event timestamp (inclusive). Zero means open.
	Since time.Time
	Until time.Time
	// Limit caps the number of results. Zero means no cap.
	Limit int
}

// matches reports whether the filter accepts the event.
func (f *Filter) matches(evt *models.Event) bool {
	if f.Type != "" && evt.Type != f.Type {
		return false
	}
	if f.Source != "" && evt.Source != f.Source {
		return false
	}
	if !f.Since.IsZero() && evt.Timestamp.Before(f.Since) {
		return false
	}
	if !f.Until.IsZero() && evt.Timestamp.After(f.Until) {
		return false
	}
	return true
}

// GetEvents returns events from the bounded history, newest first, matching
// the filter. Intended for diagnostics.
func (b *Bus) GetEvents(filter Filter) []*models.Event {
	b.mu.Lock()
	recent := b.history.Recent(0)
	b.mu.Unlock()

	out := make([]*models.Event, 0)
	for _, evt := range recent {
		if !filter.matches(evt) {
			continue
		}
		out = append(out, evt)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out
}

// Stats is a snapshot of bus counters.
type Stats struct {
	Published   int64            `json:"published"`
	QueueDepth  int              `json:"queue_depth"`
	HistorySize int              `json:"history_size"`
	Subscribers int              `json:"subscribers"`
	ByType      map[string]int64 `json:"by_type"`
	BySource    map[string]int64 `json:"by_source"`
}

// Stats returns a snapshot of bus counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	byType := make(map[string]int64, len(b.countsByType))
	for k, v := range b.countsByType {
		byType[k] = v
	}
	bySource := make(map[string]int64, len(b.countsBySrc))
	for k, v := range b.countsBySrc {
		bySource[k] = v
	}

	return Stats{
		Published:   b.published,
		QueueDepth:  len(b.queue),
		HistorySize: b.history.Len(),
		Subscribers: len(b.subs),
		ByType:      byType,
		BySource:    bySource,
	}
}
