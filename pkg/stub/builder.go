package stub

import (
	"time"

	"github.com/google/uuid"
)

// RuleOption customizes a rule built by NewRule or NewExcludeRule.
type RuleOption func(*Rule)

// WithDelay delays response delivery by d. Negative delays are clamped to zero.
func WithDelay(d time.Duration) RuleOption {
	return func(r *Rule) {
		if d < 0 {
			d = 0
		}
		r.Delay = d
	}
}

// WithConsumption sets the rule's consumption policy.
func WithConsumption(p ConsumptionPolicy) RuleOption {
	return func(r *Rule) { r.Consumption = p }
}

// WithID overrides the generated rule ID.
func WithID(id string) RuleOption {
	return func(r *Rule) { r.ID = id }
}

// NewRule builds a responding rule: when all predicates hold, serve spec.
// The rule gets a fresh UUID and an unlimited consumption policy unless
// options say otherwise.
func NewRule(predicates []Predicate, spec ResponseSpec, opts ...RuleOption) *Rule {
	r := &Rule{
		ID:         uuid.NewString(),
		Predicates: predicates,
		Outcome:    Respond(spec),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewExcludeRule builds an exclusion rule: when all predicates hold, the
// request is marked "do not serve a stub" and the adapter's caller decides
// what happens.
func NewExcludeRule(predicates []Predicate, opts ...RuleOption) *Rule {
	r := &Rule{
		ID:         uuid.NewString(),
		Predicates: predicates,
		Outcome:    Exclude(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}
