package registry

import (
	"sync"

	"github.com/getmockd/intercept/internal/matching"
	"github.com/getmockd/intercept/pkg/stub"
)

// Registry is the process-wide, thread-safe rule collection. The zero value
// is not usable; call New.
type Registry struct {
	mu      sync.Mutex
	entries []*entry
}

// entry pairs an immutable rule with its registry-owned mutable state.
type entry struct {
	rule        *stub.Rule
	consumption stub.ConsumptionPolicy
	matchCount  int
}

func (e *entry) eligible() bool {
	return !e.consumption.Exhausted()
}

// RuleStatus is a point-in-time view of one rule's usage accounting.
type RuleStatus struct {
	Rule        *stub.Rule
	Consumption stub.ConsumptionPolicy
	MatchCount  int
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{}
}

var defaultRegistry = New()

// Default returns the shared process-wide registry. Explicit injection of a
// New() registry is preferred; Default exists for ergonomic test usage where
// threading a registry through every call site is not worth it.
func Default() *Registry {
	return defaultRegistry
}

// Add prepends rules to the collection so they take precedence over existing
// ones. Order within the added group is preserved.
func (r *Registry) Add(rules ...*stub.Rule) {
	if len(rules) == 0 {
		return
	}
	added := make([]*entry, 0, len(rules))
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		added = append(added, &entry{rule: rule, consumption: rule.Consumption})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(added, r.entries...)
}

// Set atomically replaces the whole collection.
func (r *Registry) Set(rules ...*stub.Rule) {
	entries := make([]*entry, 0, len(rules))
	for _, rule := range rules {
		if rule == nil {
			continue
		}
		entries = append(entries, &entry{rule: rule, consumption: rule.Consumption})
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = entries
}

// Reset clears the collection and all usage accounting.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = nil
}

// Rules returns an ordered snapshot of the rules.
func (r *Registry) Rules() []*stub.Rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	rules := make([]*stub.Rule, len(r.entries))
	for i, e := range r.entries {
		rules[i] = e.rule
	}
	return rules
}

// Len returns the number of registered rules.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// ResolveEligible returns the first rule, in order, that is eligible and
// matches the request. It mutates nothing: callers that serve the returned
// rule must report it via Consume. Returns nil when no rule applies.
func (r *Registry) ResolveEligible(view stub.RequestView) *stub.Rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.resolveLocked(view, true); e != nil {
		return e.rule
	}
	return nil
}

// ResolveAny is ResolveEligible without the eligibility check, for
// diagnostics such as "is there a matching rule at all, even if exhausted".
func (r *Registry) ResolveAny(view stub.RequestView) *stub.Rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e := r.resolveLocked(view, false); e != nil {
		return e.rule
	}
	return nil
}

// Claim resolves and consumes in one critical section. Two concurrent
// requests matching the same single-use rule cannot both be served: the
// second claim sees the rule exhausted and falls through. This is the call
// the interception adapter uses.
func (r *Registry) Claim(view stub.RequestView) *stub.Rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	e := r.resolveLocked(view, true)
	if e == nil {
		return nil
	}
	e.consumption = e.consumption.Consume()
	e.matchCount++
	return e.rule
}

// Consume records one served request against the rule: the remaining-uses
// counter decrements (never below zero) and the match count increments.
// The rule is found by identity, or by ID when both IDs are non-empty, so
// two rules without IDs never collide on each other's accounting. Unknown
// rules are ignored.
func (r *Registry) Consume(rule *stub.Rule) {
	if rule == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.rule == rule || (rule.ID != "" && e.rule.ID == rule.ID) {
			e.consumption = e.consumption.Consume()
			e.matchCount++
			return
		}
	}
}

// resolveLocked scans in order for the first matching rule. Matching itself
// is pure; only the eligibility read depends on registry state.
func (r *Registry) resolveLocked(view stub.RequestView, requireEligible bool) *entry {
	for _, e := range r.entries {
		if requireEligible && !e.eligible() {
			continue
		}
		if matching.EvaluateAll(e.rule.Predicates, view) {
			return e
		}
	}
	return nil
}

// Status returns the usage accounting for the rule with the given ID.
func (r *Registry) Status(id string) (RuleStatus, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.rule.ID == id {
			return RuleStatus{Rule: e.rule, Consumption: e.consumption, MatchCount: e.matchCount}, true
		}
	}
	return RuleStatus{}, false
}

// Statuses returns the usage accounting for every rule, in order.
func (r *Registry) Statuses() []RuleStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	statuses := make([]RuleStatus, len(r.entries))
	for i, e := range r.entries {
		statuses[i] = RuleStatus{Rule: e.rule, Consumption: e.consumption, MatchCount: e.matchCount}
	}
	return statuses
}

// NeverMatched lists rules that have not served a single request, a common
// end-of-test diagnostic for dead fixtures.
func (r *Registry) NeverMatched() []*stub.Rule {
	r.mu.Lock()
	defer r.mu.Unlock()
	var rules []*stub.Rule
	for _, e := range r.entries {
		if e.matchCount == 0 {
			rules = append(rules, e.rule)
		}
	}
	return rules
}
