package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/getmockd/intercept/pkg/stub"
	"gopkg.in/yaml.v3"
)

// FileContent is the parsed shape of a rule file: either a top-level
// "rules:" list or a bare sequence of rules.
type FileContent struct {
	Rules []RuleDef `yaml:"rules"`
}

// UnmarshalYAML accepts both the mapping form ("rules: [...]") and a bare
// sequence at the document root.
func (f *FileContent) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		return node.Decode(&f.Rules)
	}
	type fileContentAlias FileContent
	alias := (*fileContentAlias)(f)
	return node.Decode(alias)
}

// RuleDef is one rule as authored in a file.
type RuleDef struct {
	ID      string       `yaml:"id,omitempty"`
	When    WhenDef      `yaml:"when"`
	Respond *ResponseDef `yaml:"respond,omitempty"`
	Exclude bool         `yaml:"exclude,omitempty"`
	Delay   string       `yaml:"delay,omitempty"`
	Times   *int         `yaml:"times,omitempty"`
}

// WhenDef collects the matching conditions of a rule. A query value of null
// means "parameter present with any value"; an empty string requires an
// explicitly empty value on the wire.
type WhenDef struct {
	Method     string             `yaml:"method,omitempty"`
	URL        string             `yaml:"url,omitempty"`
	Query      map[string]*string `yaml:"query,omitempty"`
	Headers    map[string]string  `yaml:"headers,omitempty"`
	PathExt    string             `yaml:"pathExt,omitempty"`
	BodySubset any                `yaml:"bodySubset,omitempty"`
}

// ResponseDef is the served response as authored in a file. Exactly one of
// text, data, bodyFile, or error may be set.
type ResponseDef struct {
	Status       int               `yaml:"status"`
	Headers      map[string]string `yaml:"headers,omitempty"`
	Text         string            `yaml:"text,omitempty"`
	Data         string            `yaml:"data,omitempty"` // base64
	BodyFile     string            `yaml:"bodyFile,omitempty"`
	Error        *ErrorDef         `yaml:"error,omitempty"`
	StorePolicy  string            `yaml:"storePolicy,omitempty"`
	ProtoVersion string            `yaml:"protoVersion,omitempty"`
}

// ErrorDef is a forced-error body.
type ErrorDef struct {
	Domain string `yaml:"domain"`
	Code   int    `yaml:"code"`
}

// ToRule converts the authored definition into a stub.Rule. Predicates are
// emitted in a fixed order (method, url, query, headers, pathExt, bodySubset)
// with map keys sorted, so conversion is deterministic.
func (d RuleDef) ToRule() (*stub.Rule, error) {
	predicates, err := d.When.predicates()
	if err != nil {
		return nil, err
	}

	var opts []stub.RuleOption
	if d.ID != "" {
		opts = append(opts, stub.WithID(d.ID))
	}
	if d.Delay != "" {
		delay, err := time.ParseDuration(d.Delay)
		if err != nil {
			return nil, fmt.Errorf("invalid delay %q: %w", d.Delay, err)
		}
		opts = append(opts, stub.WithDelay(delay))
	}
	if d.Times != nil {
		if *d.Times < 0 {
			return nil, fmt.Errorf("negative times %d", *d.Times)
		}
		opts = append(opts, stub.WithConsumption(stub.RemainingUses(*d.Times)))
	}

	var rule *stub.Rule
	switch {
	case d.Exclude && d.Respond != nil:
		return nil, errors.New("rule has both respond and exclude")
	case d.Exclude:
		rule = stub.NewExcludeRule(predicates, opts...)
	case d.Respond != nil:
		spec, err := d.Respond.toSpec()
		if err != nil {
			return nil, err
		}
		rule = stub.NewRule(predicates, spec, opts...)
	default:
		return nil, errors.New("rule has neither respond nor exclude")
	}

	if err := rule.Validate(); err != nil {
		return nil, err
	}
	return rule, nil
}

func (w WhenDef) predicates() ([]stub.Predicate, error) {
	var predicates []stub.Predicate
	if w.Method != "" {
		predicates = append(predicates, stub.MatchMethod(w.Method))
	}
	if w.URL != "" {
		predicates = append(predicates, stub.MatchURL(w.URL))
	}
	for _, key := range sortedKeys(w.Query) {
		if value := w.Query[key]; value != nil {
			predicates = append(predicates, stub.MatchQueryParamValue(key, *value))
		} else {
			predicates = append(predicates, stub.MatchQueryParam(key))
		}
	}
	for _, key := range sortedKeys(w.Headers) {
		predicates = append(predicates, stub.MatchHeader(key, w.Headers[key]))
	}
	if w.PathExt != "" {
		predicates = append(predicates, stub.MatchPathExtension(w.PathExt))
	}
	if w.BodySubset != nil {
		predicates = append(predicates, stub.MatchBodySubset(normalizeYAML(w.BodySubset)))
	}
	if len(predicates) == 0 {
		return nil, errors.New("rule matches nothing: empty when block")
	}
	return predicates, nil
}

func (d ResponseDef) toSpec() (stub.ResponseSpec, error) {
	spec := stub.ResponseSpec{
		StatusCode:   d.Status,
		Headers:      d.Headers,
		BodyFile:     d.BodyFile,
		StorePolicy:  stub.StorePolicy(d.StorePolicy),
		ProtoVersion: d.ProtoVersion,
	}

	set := 0
	if d.Text != "" {
		spec.Body = stub.TextBody(d.Text)
		set++
	}
	if d.Data != "" {
		raw, err := base64.StdEncoding.DecodeString(d.Data)
		if err != nil {
			return stub.ResponseSpec{}, fmt.Errorf("invalid base64 data: %w", err)
		}
		spec.Body = stub.BytesBody(raw)
		set++
	}
	if d.Error != nil {
		spec.Body = stub.ErrorBody(d.Error.Domain, d.Error.Code)
		set++
	}
	if d.BodyFile != "" {
		set++
	}
	if set > 1 {
		return stub.ResponseSpec{}, errors.New("response sets more than one of text, data, bodyFile, error")
	}

	switch spec.StorePolicy {
	case "", stub.StoreAllowed, stub.StoreMemoryOnly, stub.StoreNotAllowed:
	default:
		return stub.ResponseSpec{}, fmt.Errorf("unknown storePolicy %q", d.StorePolicy)
	}
	return spec, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalizeYAML converts yaml.v3's map[string]any/[]any trees into the same
// canonical forms the JSON decoders produce, so file-authored body subsets
// compare like wire-decoded ones.
func normalizeYAML(v any) any {
	switch val := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = normalizeYAML(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = normalizeYAML(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = normalizeYAML(item)
		}
		return out
	default:
		return v
	}
}
