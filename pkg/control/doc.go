// Package control exposes a small HTTP API for managing a registry from
// outside the process under test: a test driver POSTs rules in, replaces or
// clears the set, and can dry-run a request description to see which rule
// would win. Payloads are validated against an embedded JSON Schema before
// they touch the registry, so a malformed driver payload is rejected with a
// useful message instead of half-applying.
package control
