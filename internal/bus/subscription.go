package bus

import (
	"context"
	"regexp"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

// SubscriberFunc is invoked for every event a subscription matches. The
// context is cancelled when the per-subscriber timeout elapses or the bus
// shuts down. Returned errors are logged and isolated; they never affect
// sibling subscribers or the dispatch loop.
type SubscriberFunc func(ctx context.Context, evt *models.Event) error

// Matcher selects which events a subscription receives. All set fields must
// hold; an unset field is a wildcard. With no fields set the subscription
// receives every event.
type Matcher struct {
	// Type matches the event type exactly.
	Type string

	// Source matches the event source exactly.
	Source string

	// Pattern matches if the regexp matches the event type or source.
	Pattern *regexp.Regexp

	// Predicate is an arbitrary test over the event.
	Predicate func(evt *models.Event) bool
}

// Matches reports whether the matcher accepts the event.
func (m *Matcher) Matches(evt *models.Event) bool {
	if m.Type != "" && evt.Type != m.Type {
		return false
	}
	if m.Source != "" && evt.Source != m.Source {
		return false
	}
	if m.Pattern != nil && !m.Pattern.MatchString(evt.Type) && !m.Pattern.MatchString(evt.Source) {
		return false
	}
	if m.Predicate != nil && !m.Predicate(evt) {
		return false
	}
	return true
}

// Subscription is a registered subscriber handle. Pass its ID to
// Unsubscribe to remove it.
type Subscription struct {
	// ID uniquely identifies the subscription.
	ID string

	// Name is an optional label used in logs.
	Name string

	matcher Matcher
	fn      SubscriberFunc
}
