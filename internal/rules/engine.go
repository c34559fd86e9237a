// Package rules implements the rule engine: it matches events against
// enabled rules and executes each matched rule's ordered action list.
//
// Matching is synchronous and cheap; execution is handed to a single-flight
// queue so only one batch of rule executions runs at a time. Within a rule,
// actions run sequentially in list order because later actions may reference
// the output of earlier ones. A failing action is recorded and never aborts
// its siblings.
package rules

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"

	"github.com/good-yellow-bee/opswatch/internal/metrics"
	"github.com/good-yellow-bee/opswatch/internal/models"
)

// ErrRuleNotFound is returned by update/remove operations on unknown rules.
var ErrRuleNotFound = fmt.Errorf("rule not found")

// Execution is the observability record emitted after a rule finishes, with
// one result per action in execution order.
type Execution struct {
	RuleID   string         `json:"rule_id"`
	RuleName string         `json:"rule_name"`
	Event    *models.Event  `json:"event"`
	Results  []ActionResult `json:"results"`
	Time     time.Time      `json:"time"`
}

// EngineStats tracks engine statistics using atomics for lock-free access.
type EngineStats struct {
	EventsProcessed   atomic.Int64
	RulesMatched      atomic.Int64
	ActionsExecuted   atomic.Int64
	ActionErrors      atomic.Int64
	ExecutionsDropped atomic.Int64
}

// EngineOptions configures the rule engine.
type EngineOptions struct {
	// ExecutionBufferSize is the size of the executions channel buffer.
	ExecutionBufferSize int
}

// DefaultEngineOptions returns default engine options.
func DefaultEngineOptions() *EngineOptions {
	return &EngineOptions{
		ExecutionBufferSize: 100,
	}
}

// batch is one queued unit of work: an event plus the rules it matched.
type batch struct {
	evt     *models.Event
	matched []*models.Rule
}

// Engine is the rule engine. Create with NewEngine, register action
// handlers, then Start the execution loop.
type Engine struct {
	mu       sync.RWMutex
	rules    map[string]*models.Rule
	order    []string // registration order, also the execution order
	programs map[string]*vm.Program
	handlers *handlerTable

	queueMu sync.Mutex
	queue   []*batch
	started bool
	wake    chan struct{}

	executions chan *Execution
	closed     atomic.Bool

	stats *EngineStats
}

// NewEngine creates a rule engine.
func NewEngine(opts *EngineOptions) *Engine {
	if opts == nil {
		opts = DefaultEngineOptions()
	}
	return &Engine{
		rules:      make(map[string]*models.Rule),
		programs:   make(map[string]*vm.Program),
		handlers:   newHandlerTable(),
		wake:       make(chan struct{}, 1),
		executions: make(chan *Execution, opts.ExecutionBufferSize),
		stats:      &EngineStats{},
	}
}

// RegisterHandler registers an action handler under its Name. A later
// registration for the same name replaces the earlier one.
func (e *Engine) RegisterHandler(h ActionHandler) {
	e.handlers.register(h)
}

// Executions returns the channel where rule-executed notifications are sent.
func (e *Engine) Executions() <-chan *Execution {
	return e.executions
}

// RegisterRule validates and registers a rule. A missing ID is assigned and
// metadata timestamps are stamped. Validation failure leaves the table
// untouched.
func (e *Engine) RegisterRule(r *models.Rule) error {
	if err := Validate(r); err != nil {
		return err
	}

	program, err := e.compileRule(r)
	if err != nil {
		return err
	}

	if r.ID == "" {
		r.ID = uuid.New().String()
	}
	now := time.Now()
	if r.Metadata.CreatedAt.IsZero() {
		r.Metadata.CreatedAt = now
	}
	r.Metadata.UpdatedAt = now

	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[r.ID]; exists {
		return fmt.Errorf("rule %q is already registered", r.ID)
	}
	e.rules[r.ID] = r
	e.order = append(e.order, r.ID)
	if program != nil {
		e.programs[r.ID] = program
	}
	return nil
}

// UpdateRule validates and replaces an existing rule, bumping its updated
// timestamp and preserving its creation timestamp.
func (e *Engine) UpdateRule(r *models.Rule) error {
	if r.ID == "" {
		return fmt.Errorf("rule id is required for update")
	}
	if err := Validate(r); err != nil {
		return err
	}

	program, err := e.compileRule(r)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	old, exists := e.rules[r.ID]
	if !exists {
		return fmt.Errorf("update rule %q: %w", r.ID, ErrRuleNotFound)
	}

	r.Metadata.CreatedAt = old.Metadata.CreatedAt
	r.Metadata.UpdatedAt = time.Now()
	e.rules[r.ID] = r
	delete(e.programs, r.ID)
	if program != nil {
		e.programs[r.ID] = program
	}
	return nil
}

// RemoveRule removes a rule by ID. It returns false if the rule does not
// exist.
func (e *Engine) RemoveRule(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.rules[id]; !exists {
		return false
	}
	delete(e.rules, id)
	delete(e.programs, id)
	for i, rid := range e.order {
		if rid == id {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return true
}

// GetRule returns a rule by ID.
func (e *Engine) GetRule(id string) (*models.Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[id]
	return r, ok
}

// Rules returns all rules in registration order.
func (e *Engine) Rules() []*models.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*models.Rule, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.rules[id])
	}
	return out
}

// ReplaceRules swaps the whole rule table, used by the rules-file hot
// reload. All incoming rules are validated first; on any failure the
// current table is kept unchanged.
func (e *Engine) ReplaceRules(rules []*models.Rule) error {
	programs := make(map[string]*vm.Program)
	now := time.Now()

	for i, r := range rules {
		if err := Validate(r); err != nil {
			return fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
		if r.ID == "" {
			r.ID = uuid.New().String()
		}
		if r.Metadata.CreatedAt.IsZero() {
			r.Metadata.CreatedAt = now
		}
		r.Metadata.UpdatedAt = now

		program, err := e.compileRule(r)
		if err != nil {
			return fmt.Errorf("invalid rule at index %d: %w", i, err)
		}
		if program != nil {
			programs[r.ID] = program
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.rules = make(map[string]*models.Rule, len(rules))
	e.order = e.order[:0]
	for _, r := range rules {
		e.rules[r.ID] = r
		e.order = append(e.order, r.ID)
	}
	e.programs = programs
	return nil
}

// compileRule compiles the rule's expression predicate, if set.
func (e *Engine) compileRule(r *models.Rule) (*vm.Program, error) {
	if r.Conditions.Expression == "" {
		return nil, nil
	}
	program, err := compileExpression(r.Conditions.Expression)
	if err != nil {
		return nil, fmt.Errorf("invalid expression for rule %q: %w", r.Name, err)
	}
	return program, nil
}

// ProcessEvent matches the event against all enabled rules and enqueues the
// matched set for execution. It returns the number of matched rules and
// never blocks on action execution.
func (e *Engine) ProcessEvent(evt *models.Event) int {
	return e.ProcessEventAt(evt, time.Now())
}

// ProcessEventAt matches at a specific wall-clock time (useful for testing
// time-of-day windows).
func (e *Engine) ProcessEventAt(evt *models.Event, now time.Time) int {
	e.stats.EventsProcessed.Add(1)

	e.mu.RLock()
	var matched []*models.Rule
	for _, id := range e.order {
		r := e.rules[id]
		if !r.IsEnabled() {
			continue
		}
		if matchConditions(&r.Conditions, e.programs[id], evt, now) {
			matched = append(matched, r)
		}
	}
	e.mu.RUnlock()

	if len(matched) == 0 {
		return 0
	}

	e.stats.RulesMatched.Add(int64(len(matched)))
	for _, r := range matched {
		metrics.RuleMatchesTotal.WithLabelValues(r.Name).Inc()
	}

	e.queueMu.Lock()
	e.queue = append(e.queue, &batch{evt: evt, matched: matched})
	e.queueMu.Unlock()

	select {
	case e.wake <- struct{}{}:
	default:
	}

	return len(matched)
}

// Start launches the single-flight execution loop. Calling Start twice is a
// no-op.
func (e *Engine) Start(ctx context.Context) {
	e.queueMu.Lock()
	if e.started {
		e.queueMu.Unlock()
		return
	}
	e.started = true
	e.queueMu.Unlock()

	go e.run(ctx)
}

// run drains the execution queue one batch at a time.
func (e *Engine) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.wake:
		}

		for {
			b := e.dequeue()
			if b == nil {
				break
			}
			e.executeBatch(ctx, b)
			if ctx.Err() != nil {
				return
			}
		}
	}
}

func (e *Engine) dequeue() *batch {
	e.queueMu.Lock()
	defer e.queueMu.Unlock()

	if len(e.queue) == 0 {
		return nil
	}
	b := e.queue[0]
	e.queue = e.queue[1:]
	return b
}

// executeBatch executes every matched rule of one batch. An unexpected
// failure is recovered at the batch boundary so the loop keeps draining.
func (e *Engine) executeBatch(ctx context.Context, b *batch) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("recovered rule execution panic for event %s: %v", b.evt.ID, r)
		}
	}()

	for _, rule := range b.matched {
		results := e.executeRule(ctx, rule, b.evt)
		e.emit(&Execution{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Event:    b.evt,
			Results:  results,
			Time:     time.Now(),
		})
	}
}

// executeRule runs the rule's actions in list order, sequentially. Unknown
// action types and handler failures are recorded per action and do not stop
// the remaining actions.
func (e *Engine) executeRule(ctx context.Context, rule *models.Rule, evt *models.Event) []ActionResult {
	results := make([]ActionResult, 0, len(rule.Actions))

	for _, action := range rule.Actions {
		result := ActionResult{ActionType: action.Type}

		handler, ok := e.handlers.lookup(action.Type)
		if !ok {
			result.Error = fmt.Sprintf("unknown action type %q", action.Type)
		} else {
			output, err := e.safeExecute(ctx, handler, rule, action, evt, results)
			if err != nil {
				result.Error = err.Error()
			} else {
				result.Output = output
			}
		}

		e.stats.ActionsExecuted.Add(1)
		status := "ok"
		if result.Error != "" {
			status = "error"
			e.stats.ActionErrors.Add(1)
			log.Printf("action %s of rule %q failed for event %s: %s", action.Type, rule.Name, evt.ID, result.Error)
		}
		metrics.ActionsExecutedTotal.WithLabelValues(action.Type, status).Inc()

		results = append(results, result)
	}

	return results
}

// safeExecute invokes a handler with panic isolation.
func (e *Engine) safeExecute(ctx context.Context, handler ActionHandler, rule *models.Rule, action models.Action, evt *models.Event, prior []ActionResult) (output string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("action panic: %v", r)
		}
	}()
	return handler.Execute(ctx, rule, action, evt, prior)
}

// emit sends a rule-executed notification without blocking, guarded against
// a closed channel.
func (e *Engine) emit(exec *Execution) {
	if e.closed.Load() {
		return
	}
	select {
	case e.executions <- exec:
	default:
		dropped := e.stats.ExecutionsDropped.Add(1)
		if dropped == 1 || dropped%100 == 0 {
			log.Printf("warning: execution channel full, dropped %d notifications total", dropped)
		}
	}
}

// EngineStatsSnapshot is a snapshot of engine statistics for reporting.
type EngineStatsSnapshot struct {
	RulesRegistered   int   `json:"rules_registered"`
	EventsProcessed   int64 `json:"events_processed"`
	RulesMatched      int64 `json:"rules_matched"`
	ActionsExecuted   int64 `json:"actions_executed"`
	ActionErrors      int64 `json:"action_errors"`
	ExecutionsDropped int64 `json:"executions_dropped"`
}

// Stats returns a snapshot of engine statistics.
func (e *Engine) Stats() EngineStatsSnapshot {
	e.mu.RLock()
	registered := len(e.rules)
	e.mu.RUnlock()

	return EngineStatsSnapshot{
		RulesRegistered:   registered,
		EventsProcessed:   e.stats.EventsProcessed.Load(),
		RulesMatched:      e.stats.RulesMatched.Load(),
		ActionsExecuted:   e.stats.ActionsExecuted.Load(),
		ActionErrors:      e.stats.ActionErrors.Load(),
		ExecutionsDropped: e.stats.ExecutionsDropped.Load(),
	}
}

// Close closes the executions channel. Safe to call concurrently with
// ProcessEvent.
func (e *Engine) Close() {
	if e.closed.Swap(true) {
		return // already closed
	}
	close(e.executions)
}
