// Package registry holds the ordered collection of stub rules and implements
// the resolution/consumption protocol: scan rules in order, return the first
// one that is both eligible and matching, and account for each serve.
//
// Precedence is purely positional. Add prepends, so the most recently added
// rule wins ties; there is no scoring or specificity ranking. The registry
// owns all mutable rule state (remaining uses, match counts); rules
// themselves stay immutable values.
package registry
