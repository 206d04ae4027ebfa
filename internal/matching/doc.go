// Package matching implements the pure request-matching algorithms: the
// wildcard URL-pattern matcher, the per-kind predicate evaluator, and the
// structural JSON sub-matcher.
//
// Everything here is a pure function of (predicate, request view). Malformed
// inputs such as unparsable pattern URLs or non-JSON bodies evaluate to
// "does not match", never to an error, because both mean the same thing to a
// caller: the rule is not applicable.
package matching
