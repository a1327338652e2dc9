// Package automation contains the rule engine that reacts to domain
// events with side-effecting business actions. Rules are best-effort: a
// failing condition or action is logged and never blocks sibling rules or
// the emitter.
package automation

import (
	"context"

	"github.com/pkg/errors"

	"github.com/planovo/planovo-api/internal/events"
)

// Rule binds an event name to an optional gating condition and an action.
// Condition and Action receive the raw event; use On to construct rules
// against a concrete payload type instead.
type Rule struct {
	Event       string
	Description string
	Condition   func(ctx context.Context, evt events.Event) (bool, error)
	Action      func(ctx context.Context, evt events.Event) error
}

// On builds a Rule bound to the concrete event type E. The event name is
// derived from E's zero value, so the rule can never be registered under a
// name its payload does not match. A nil condition means the rule always
// fires.
func On[E events.Event](
	description string,
	condition func(ctx context.Context, evt E) (bool, error),
	action func(ctx context.Context, evt E) error,
) Rule {
	var zero E
	rule := Rule{
		Event:       zero.Name(),
		Description: description,
		Action: func(ctx context.Context, evt events.Event) error {
			typed, ok := evt.(E)
			if !ok {
				return errors.Errorf("event %s carries unexpected payload %T", evt.Name(), evt)
			}
			return action(ctx, typed)
		},
	}
	if condition != nil {
		rule.Condition = func(ctx context.Context, evt events.Event) (bool, error) {
			typed, ok := evt.(E)
			if !ok {
				return false, errors.Errorf("event %s carries unexpected payload %T", evt.Name(), evt)
			}
			return condition(ctx, typed)
		}
	}
	return rule
}
