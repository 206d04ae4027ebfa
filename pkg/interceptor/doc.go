// Package interceptor hooks the stub engine into a process's outgoing HTTP
// traffic. Transport implements http.RoundTripper: install it as a client's
// transport and every request the client issues is resolved against the rule
// registry instead of the network. Matched responding rules are rendered into
// real *http.Response values; unmatched (or excluded) requests either fall
// back to a real transport or fail with an UnmatchedError, depending on
// configuration.
package interceptor
