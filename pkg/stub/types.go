package stub

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// PredicateKind identifies which condition a Predicate expresses.
type PredicateKind string

const (
	PredicateMethod     PredicateKind = "method"
	PredicateURL        PredicateKind = "url"
	PredicateQuery      PredicateKind = "query"
	PredicateHeader     PredicateKind = "header"
	PredicatePathExt    PredicateKind = "pathExt"
	PredicateBodySubset PredicateKind = "bodySubset"
)

// Predicate is one matchable condition on a request. Only the fields relevant
// to its Kind are populated. Predicates are pure values; evaluating them never
// mutates them.
type Predicate struct {
	Kind PredicateKind `json:"kind"`

	// Method is the exact, case-sensitive HTTP method (kind "method").
	Method string `json:"method,omitempty"`

	// URL is a pattern URL that may contain * (one segment) and ** (rest)
	// wildcards in path segments, and * as the host (kind "url").
	URL string `json:"url,omitempty"`

	// Key names a query parameter (kind "query") or header (kind "header").
	Key string `json:"key,omitempty"`

	// Value is the required parameter or header value. For query predicates a
	// nil Value means "key present with any value"; an empty non-nil Value
	// requires the key to carry an explicitly empty value (?k= on the wire).
	Value *string `json:"value,omitempty"`

	// Extension is the file extension of the final path segment, without the
	// leading dot (kind "pathExt").
	Extension string `json:"extension,omitempty"`

	// BodySubset is a JSON value the request body must structurally contain
	// (kind "bodySubset"). Objects match on a subset of keys, arrays as an
	// index-aligned prefix, scalars exactly. A nil BodySubset means unset:
	// an expected null is only representable nested inside an object or
	// array, since a top-level null cannot be told apart from the field
	// being absent.
	BodySubset any `json:"bodySubset,omitempty"`
}

// MatchMethod matches requests with the exact method m.
func MatchMethod(m string) Predicate {
	return Predicate{Kind: PredicateMethod, Method: m}
}

// MatchURL matches requests whose URL matches the pattern URL p.
func MatchURL(p string) Predicate {
	return Predicate{Kind: PredicateURL, URL: p}
}

// MatchQueryParam matches requests carrying query parameter key with any value.
func MatchQueryParam(key string) Predicate {
	return Predicate{Kind: PredicateQuery, Key: key}
}

// MatchQueryParamValue matches requests carrying query parameter key with
// exactly the given value. An empty value requires "?key=" on the wire.
func MatchQueryParamValue(key, value string) Predicate {
	return Predicate{Kind: PredicateQuery, Key: key, Value: &value}
}

// MatchHeader matches requests whose header key equals value exactly.
// Keys are compared as given, case-sensitively.
func MatchHeader(key, value string) Predicate {
	return Predicate{Kind: PredicateHeader, Key: key, Value: &value}
}

// MatchPathExtension matches requests whose URL path ends in the given file
// extension (without the dot).
func MatchPathExtension(ext string) Predicate {
	return Predicate{Kind: PredicatePathExt, Extension: ext}
}

// MatchBodySubset matches requests whose JSON body structurally contains the
// expected value. The argument is normalized through a JSON round-trip so that
// rules built in code and rules decoded from the wire compare equal. Passing
// nil yields an invalid predicate; to expect a null, nest it inside an object
// or array value.
func MatchBodySubset(expected any) Predicate {
	return Predicate{Kind: PredicateBodySubset, BodySubset: normalizeJSON(expected)}
}

// normalizeJSON round-trips v through encoding/json so numeric and map types
// take their canonical decoded forms (float64, map[string]any, []any).
func normalizeJSON(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

// Validate reports whether the predicate is well formed. Malformed inputs at
// match time are simply non-matches; this is the stricter definition-time
// check used by loaders and the control API.
func (p Predicate) Validate() error {
	switch p.Kind {
	case PredicateMethod:
		if p.Method == "" {
			return errors.New("method predicate: empty method")
		}
	case PredicateURL:
		if p.URL == "" {
			return errors.New("url predicate: empty pattern")
		}
		if _, err := url.Parse(p.URL); err != nil {
			return fmt.Errorf("url predicate: invalid pattern %q: %w", p.URL, err)
		}
	case PredicateQuery:
		if p.Key == "" {
			return errors.New("query predicate: empty key")
		}
	case PredicateHeader:
		if p.Key == "" {
			return errors.New("header predicate: empty key")
		}
		if p.Value == nil {
			return errors.New("header predicate: missing value")
		}
	case PredicatePathExt:
		if p.Extension == "" {
			return errors.New("pathExt predicate: empty extension")
		}
	case PredicateBodySubset:
		if p.BodySubset == nil {
			// A top-level null is indistinguishable from an unset field,
			// both as Go nil and on the wire, so it is rejected here; null
			// expectations go nested inside an object or array.
			return errors.New("bodySubset predicate: missing expected value")
		}
	default:
		return fmt.Errorf("unknown predicate kind %q", p.Kind)
	}
	return nil
}

// RequestView is the read-only projection of an inbound request the matching
// engine needs. Header keys are kept exactly as provided.
type RequestView struct {
	Method string
	URL    *url.URL
	Header map[string]string
	Body   []byte
}

// ViewFromRequest builds a RequestView from an http.Request. Multi-valued
// headers are reduced to their first value. The body, if any, must already be
// buffered by the caller (see interceptor.Transport).
func ViewFromRequest(r *http.Request, body []byte) RequestView {
	header := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) > 0 {
			header[k] = vs[0]
		}
	}
	return RequestView{
		Method: r.Method,
		URL:    r.URL,
		Header: header,
		Body:   body,
	}
}

// OutcomeKind distinguishes responding rules from exclusion rules.
type OutcomeKind string

const (
	// OutcomeRespond serves the rule's ResponseSpec.
	OutcomeRespond OutcomeKind = "respond"
	// OutcomeExclude marks the request as "do not serve a stub"; the caller
	// of the adapter decides what happens next.
	OutcomeExclude OutcomeKind = "exclude"
)

// Outcome is what a matched rule does with the request.
type Outcome struct {
	Kind     OutcomeKind   `json:"kind"`
	Response *ResponseSpec `json:"response,omitempty"`
}

// Respond builds a responding outcome.
func Respond(spec ResponseSpec) Outcome {
	return Outcome{Kind: OutcomeRespond, Response: &spec}
}

// Exclude builds an exclusion outcome.
func Exclude() Outcome {
	return Outcome{Kind: OutcomeExclude}
}

// StorePolicy tells the adapter whether a served response may be cached.
// It is passed through; the core attaches no caching semantics to it.
type StorePolicy string

const (
	StoreAllowed    StorePolicy = "allowed"
	StoreMemoryOnly StorePolicy = "memoryOnly"
	StoreNotAllowed StorePolicy = "notAllowed"
)

// DefaultProtoVersion is used when a ResponseSpec does not name one.
const DefaultProtoVersion = "HTTP/1.1"

// ResponseSpec describes the response a rule serves.
type ResponseSpec struct {
	StatusCode int               `json:"statusCode"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       Body              `json:"body"`

	// BodyFile names a bundled file the adapter loads the body from. It takes
	// effect only when Body is empty.
	BodyFile string `json:"bodyFile,omitempty"`

	// StorePolicy defaults to StoreAllowed when empty.
	StorePolicy StorePolicy `json:"storePolicy,omitempty"`

	// ProtoVersion defaults to DefaultProtoVersion when empty.
	ProtoVersion string `json:"protoVersion,omitempty"`
}

// ProtocolVersion returns the effective protocol version string.
func (s ResponseSpec) ProtocolVersion() string {
	if s.ProtoVersion == "" {
		return DefaultProtoVersion
	}
	return s.ProtoVersion
}

// EffectiveStorePolicy returns the store policy, defaulting to StoreAllowed.
func (s ResponseSpec) EffectiveStorePolicy() StorePolicy {
	if s.StorePolicy == "" {
		return StoreAllowed
	}
	return s.StorePolicy
}

// ForcedError is an intentional error outcome: the rule says "deliver this
// error to the caller" instead of a response.
type ForcedError struct {
	Domain string `json:"domain"`
	Code   int    `json:"code"`
}

// Error implements error.
func (e *ForcedError) Error() string {
	return fmt.Sprintf("stub: forced error %s (code %d)", e.Domain, e.Code)
}

// BodyKind identifies the variant a Body carries.
type BodyKind string

const (
	BodyEmpty BodyKind = "empty"
	BodyBytes BodyKind = "bytes"
	BodyText  BodyKind = "text"
	BodyError BodyKind = "error"
)

// Body is the response payload variant. The zero value is the empty body.
type Body struct {
	kind  BodyKind
	bytes []byte
	text  string
	err   *ForcedError
}

// EmptyBody returns the empty payload.
func EmptyBody() Body { return Body{kind: BodyEmpty} }

// BytesBody returns a raw byte payload.
func BytesBody(b []byte) Body { return Body{kind: BodyBytes, bytes: b} }

// TextBody returns a UTF-8 string payload.
func TextBody(s string) Body { return Body{kind: BodyText, text: s} }

// ErrorBody returns a forced-error payload with the given domain and code.
func ErrorBody(domain string, code int) Body {
	return Body{kind: BodyError, err: &ForcedError{Domain: domain, Code: code}}
}

// Kind returns the body variant, treating the zero value as BodyEmpty.
func (b Body) Kind() BodyKind {
	if b.kind == "" {
		return BodyEmpty
	}
	return b.kind
}

// Bytes returns the payload bytes for BodyBytes and BodyText bodies, and nil
// otherwise.
func (b Body) Bytes() []byte {
	switch b.Kind() {
	case BodyBytes:
		return b.bytes
	case BodyText:
		return []byte(b.text)
	default:
		return nil
	}
}

// Text returns the string payload for a BodyText body.
func (b Body) Text() string { return b.text }

// ForcedError returns the forced error for a BodyError body, nil otherwise.
func (b Body) ForcedError() *ForcedError { return b.err }

// IsEmpty reports whether the body carries no payload and no forced error.
func (b Body) IsEmpty() bool { return b.Kind() == BodyEmpty }

// ConsumptionPolicy controls how many times a rule may be served. The zero
// value is Unlimited.
type ConsumptionPolicy struct {
	limited   bool
	remaining int
}

// Unlimited returns a policy that never exhausts.
func Unlimited() ConsumptionPolicy { return ConsumptionPolicy{} }

// RemainingUses returns a policy allowing n more uses. Negative n is clamped
// to zero.
func RemainingUses(n int) ConsumptionPolicy {
	if n < 0 {
		n = 0
	}
	return ConsumptionPolicy{limited: true, remaining: n}
}

// IsUnlimited reports whether the policy never exhausts.
func (p ConsumptionPolicy) IsUnlimited() bool { return !p.limited }

// Remaining returns the remaining use count for a limited policy. It is
// meaningless for unlimited policies.
func (p ConsumptionPolicy) Remaining() int { return p.remaining }

// Exhausted reports whether the rule is permanently out of uses.
func (p ConsumptionPolicy) Exhausted() bool { return p.limited && p.remaining == 0 }

// Consume returns the policy after one use. Unlimited policies are unchanged;
// limited policies decrement with a floor at zero.
func (p ConsumptionPolicy) Consume() ConsumptionPolicy {
	if !p.limited || p.remaining == 0 {
		return p
	}
	p.remaining--
	return p
}

// Rule pairs a predicate set with an outcome. All predicates must hold (AND)
// for the rule to match. Rules are immutable values; usage accounting lives in
// the registry that owns them.
type Rule struct {
	ID          string
	Predicates  []Predicate
	Outcome     Outcome
	Delay       time.Duration
	Consumption ConsumptionPolicy
}

// Validate reports whether the rule is well formed.
func (r *Rule) Validate() error {
	if len(r.Predicates) == 0 {
		return errors.New("rule has no predicates")
	}
	for i, p := range r.Predicates {
		if err := p.Validate(); err != nil {
			return fmt.Errorf("predicate %d: %w", i, err)
		}
	}
	switch r.Outcome.Kind {
	case OutcomeRespond:
		if r.Outcome.Response == nil {
			return errors.New("respond outcome has no response spec")
		}
		if sc := r.Outcome.Response.StatusCode; sc < 100 || sc > 599 {
			return fmt.Errorf("response status code %d out of range", sc)
		}
	case OutcomeExclude:
		if r.Outcome.Response != nil {
			return errors.New("exclude outcome must not carry a response spec")
		}
	default:
		return fmt.Errorf("unknown outcome kind %q", r.Outcome.Kind)
	}
	if r.Delay < 0 {
		return errors.New("negative delay")
	}
	return nil
}
