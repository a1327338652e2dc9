package automation

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/planovo/planovo-api/internal/bus"
	"github.com/planovo/planovo-api/internal/events"
	"github.com/planovo/planovo-api/internal/metrics"
)

// Subscriber is the slice of the event bus the engine needs to attach its
// handlers.
type Subscriber interface {
	Subscribe(name string, h bus.Handler)
}

// Status is reported on the automation admin endpoint and the health check.
type Status struct {
	Enabled   bool `json:"enabled"`
	RuleCount int  `json:"rule_count"`
}

// Engine dispatches delivered events to the registered rules. Per
// delivery, rules run sequentially in registration order so an earlier
// rule's write is visible to a later rule's condition. Deliveries for
// distinct events may interleave across bus workers.
type Engine struct {
	registry *Registry
	bus      Subscriber
	logger   zerolog.Logger
	enabled  atomic.Bool
}

func NewEngine(registry *Registry, b Subscriber, logger zerolog.Logger) *Engine {
	e := &Engine{
		registry: registry,
		bus:      b,
		logger:   logger.With().Str("component", "automation_engine").Logger(),
	}
	e.enabled.Store(true)
	return e
}

// Start subscribes the engine to every event name present in the registry.
// The subscription set is derived from the registered rules, so adding a
// rule is all it takes to receive its event.
func (e *Engine) Start() {
	names := e.registry.EventNames()
	for _, name := range names {
		e.bus.Subscribe(name, e.handleEvent)
	}
	e.logger.Info().
		Int("rules", e.registry.Len()).
		Int("events", len(names)).
		Msg("automation engine started")
}

// SetEnabled toggles the global kill switch. Disabling drops deliveries
// without executing rules; re-enabling resumes dispatch without any
// re-registration.
func (e *Engine) SetEnabled(enabled bool) {
	e.enabled.Store(enabled)
	e.logger.Info().Bool("enabled", enabled).Msg("automation engine toggled")
}

func (e *Engine) Enabled() bool {
	return e.enabled.Load()
}

func (e *Engine) Status() Status {
	return Status{Enabled: e.enabled.Load(), RuleCount: e.registry.Len()}
}

func (e *Engine) handleEvent(ctx context.Context, evt events.Event) error {
	if !e.enabled.Load() {
		return nil
	}

	for _, rule := range e.registry.RulesFor(evt.Name()) {
		e.runRule(ctx, rule, evt)
	}
	return nil
}

// runRule evaluates one rule. A condition error skips the rule, an action
// error is logged; neither outcome touches sibling rules.
func (e *Engine) runRule(ctx context.Context, rule Rule, evt events.Event) {
	if rule.Condition != nil {
		ok, err := rule.Condition(ctx, evt)
		if err != nil {
			metrics.RuleExecutions.WithLabelValues(evt.Name(), "condition_error").Inc()
			e.logger.Error().Err(err).
				Str("event", evt.Name()).
				Str("rule", rule.Description).
				Str("tenant_id", evt.Tenant()).
				Msg("rule condition failed")
			return
		}
		if !ok {
			return
		}
	}

	if err := rule.Action(ctx, evt); err != nil {
		metrics.RuleExecutions.WithLabelValues(evt.Name(), "error").Inc()
		e.logger.Error().Err(err).
			Str("event", evt.Name()).
			Str("rule", rule.Description).
			Str("tenant_id", evt.Tenant()).
			Msg("rule action failed")
		return
	}

	metrics.RuleExecutions.WithLabelValues(evt.Name(), "ok").Inc()
	e.logger.Debug().
		Str("event", evt.Name()).
		Str("rule", rule.Description).
		Str("tenant_id", evt.Tenant()).
		Msg("rule executed")
}
