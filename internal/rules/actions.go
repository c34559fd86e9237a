package rules

import (
	"context"
	"sync"

	"github.com/good-yellow-bee/opswatch/internal/models"
)

// ActionResult is the outcome of one action execution. Actions within a
// rule run sequentially in list order, so a later action can reference the
// Output of an earlier one through the prior slice it receives.
type ActionResult struct {
	// ActionType is the type of the executed action.
	ActionType string `json:"action_type"`

	// Output is the handler's textual result, e.g. a snapshot URL that a
	// following "notify" action attaches to its message.
	Output string `json:"output,omitempty"`

	// Error is set when the handler failed or the type was unknown. A
	// failed action never aborts the remaining actions of the same rule.
	Error string `json:"error,omitempty"`
}

// OK reports whether the action succeeded.
func (r *ActionResult) OK() bool {
	return r.Error == ""
}

// ActionHandler executes one action type. Handlers are registered on the
// engine under their Name and looked up per action at execution time.
type ActionHandler interface {
	// Name returns the action type this handler serves, e.g. "notify".
	Name() string

	// Execute runs the action for a rule matched against an event. prior
	// holds the results of the actions that already ran for the same rule,
	// in order. The returned string becomes the action's Output.
	Execute(ctx context.Context, rule *models.Rule, action models.Action, evt *models.Event, prior []ActionResult) (string, error)
}

// HandlerFunc adapts a function to the ActionHandler interface.
type HandlerFunc struct {
	ActionType string
	Fn         func(ctx context.Context, rule *models.Rule, action models.Action, evt *models.Event, prior []ActionResult) (string, error)
}

// Name returns the action type.
func (h HandlerFunc) Name() string { return h.ActionType }

// Execute invokes the wrapped function.
func (h HandlerFunc) Execute(ctx context.Context, rule *models.Rule, action models.Action, evt *models.Event, prior []ActionResult) (string, error) {
	return h.Fn(ctx, rule, action, evt, prior)
}

// handlerTable is the registered action-handler table.
type handlerTable struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

func newHandlerTable() *handlerTable {
	return &handlerTable{handlers: make(map[string]ActionHandler)}
}

func (t *handlerTable) register(h ActionHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.handlers[h.Name()] = h
}

func (t *handlerTable) lookup(actionType string) (ActionHandler, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.handlers[actionType]
	return h, ok
}
