package stub

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Wire format notes: Body, ConsumptionPolicy, and Rule carry custom JSON
// codecs so every variant round-trips. Delay is encoded as a Go duration
// string ("150ms"); bare numbers are accepted on decode and read as seconds,
// which is what non-Go test drivers tend to send.

type bodyJSON struct {
	Kind   BodyKind `json:"kind"`
	Data   []byte   `json:"data,omitempty"`
	Text   string   `json:"text,omitempty"`
	Domain string   `json:"domain,omitempty"`
	Code   int      `json:"code,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (b Body) MarshalJSON() ([]byte, error) {
	out := bodyJSON{Kind: b.Kind()}
	switch out.Kind {
	case BodyBytes:
		out.Data = b.bytes
	case BodyText:
		out.Text = b.text
	case BodyError:
		out.Domain = b.err.Domain
		out.Code = b.err.Code
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler.
func (b *Body) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*b = EmptyBody()
		return nil
	}
	var in bodyJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	switch in.Kind {
	case "", BodyEmpty:
		*b = EmptyBody()
	case BodyBytes:
		*b = BytesBody(in.Data)
	case BodyText:
		*b = TextBody(in.Text)
	case BodyError:
		*b = ErrorBody(in.Domain, in.Code)
	default:
		return fmt.Errorf("unknown body kind %q", in.Kind)
	}
	return nil
}

type consumptionJSON struct {
	Unlimited     bool `json:"unlimited,omitempty"`
	RemainingUses *int `json:"remainingUses,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (p ConsumptionPolicy) MarshalJSON() ([]byte, error) {
	if !p.limited {
		return json.Marshal(consumptionJSON{Unlimited: true})
	}
	n := p.remaining
	return json.Marshal(consumptionJSON{RemainingUses: &n})
}

// UnmarshalJSON implements json.Unmarshaler.
func (p *ConsumptionPolicy) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*p = Unlimited()
		return nil
	}
	var in consumptionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.RemainingUses != nil {
		*p = RemainingUses(*in.RemainingUses)
		return nil
	}
	*p = Unlimited()
	return nil
}

type ruleJSON struct {
	ID          string            `json:"id,omitempty"`
	Predicates  []Predicate       `json:"predicates"`
	Outcome     Outcome           `json:"outcome"`
	Delay       json.RawMessage   `json:"delay,omitempty"`
	Consumption ConsumptionPolicy `json:"consumption"`
}

// MarshalJSON implements json.Marshaler.
func (r *Rule) MarshalJSON() ([]byte, error) {
	out := ruleJSON{
		ID:          r.ID,
		Predicates:  r.Predicates,
		Outcome:     r.Outcome,
		Consumption: r.Consumption,
	}
	if r.Delay > 0 {
		delay, err := json.Marshal(r.Delay.String())
		if err != nil {
			return nil, err
		}
		out.Delay = delay
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler. Rules arriving without an id
// get a generated UUID, the same as rules built through NewRule, so per-rule
// accounting can always address them.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var in ruleJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	delay, err := parseDelay(in.Delay)
	if err != nil {
		return err
	}
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	r.ID = in.ID
	r.Predicates = in.Predicates
	r.Outcome = in.Outcome
	r.Delay = delay
	r.Consumption = in.Consumption
	return nil
}

// parseDelay accepts a duration string ("150ms") or a bare number of seconds.
func parseDelay(raw json.RawMessage) (time.Duration, error) {
	if len(raw) == 0 {
		return 0, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("invalid delay %q: %w", s, err)
		}
		return d, nil
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return 0, fmt.Errorf("invalid delay %s", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// EncodeRules serializes rules to the wire format used between a test driver
// and the application under test.
func EncodeRules(rules []*Rule) ([]byte, error) {
	return json.Marshal(rules)
}

// DecodeRules parses the wire format. Both a single rule object and an array
// of rules are accepted.
func DecodeRules(data []byte) ([]*Rule, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '{' {
		var r Rule
		if err := json.Unmarshal(trimmed, &r); err != nil {
			return nil, err
		}
		return []*Rule{&r}, nil
	}
	var rules []*Rule
	if err := json.Unmarshal(trimmed, &rules); err != nil {
		return nil, err
	}
	return rules, nil
}
