package automation

// Registry holds rules keyed by event name, in registration order. It is
// append-only and populated before the engine starts; no locking is needed
// because nothing mutates it afterwards.
type Registry struct {
	rules map[string][]Rule
	count int
}

func NewRegistry() *Registry {
	return &Registry{rules: make(map[string][]Rule)}
}

// Register appends the rule under its event name. Registering the same
// rule twice yields duplicate executions; callers own dedup.
func (r *Registry) Register(rule Rule) {
	r.rules[rule.Event] = append(r.rules[rule.Event], rule)
	r.count++
}

func (r *Registry) RegisterAll(rules []Rule) {
	for _, rule := range rules {
		r.Register(rule)
	}
}

// RulesFor returns the rules registered for the event name, in order.
func (r *Registry) RulesFor(event string) []Rule {
	return r.rules[event]
}

// EventNames returns every event name with at least one rule. The engine
// subscribes to exactly this set, so a registered rule can never be left
// without a subscription.
func (r *Registry) EventNames() []string {
	names := make([]string, 0, len(r.rules))
	for name := range r.rules {
		names = append(names, name)
	}
	return names
}

func (r *Registry) Len() int {
	return r.count
}
