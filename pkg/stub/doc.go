// Package stub defines the rule, predicate, and response types used to
// describe canned responses for intercepted requests. A Rule pairs a set of
// predicates ("which requests") with an outcome ("what to serve") and a
// consumption policy ("how many times"). All types round-trip through JSON so
// rules can be shipped from a test driver into the application under test.
//
// Matching and resolution live in internal/matching and pkg/registry; this
// package is pure data.
package stub
