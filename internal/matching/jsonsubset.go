package matching

import (
	"github.com/ohler55/ojg/oj"
)

// MatchBodySubset parses body as JSON and checks that expected is structurally
// contained in it. A missing or unparsable body is a non-match.
func MatchBodySubset(expected any, body []byte) bool {
	if len(body) == 0 {
		return false
	}
	actual, err := oj.Parse(body)
	if err != nil {
		return false
	}
	return Subset(expected, actual)
}

// Subset reports whether expected is satisfied by actual:
//
//   - objects: every expected key must exist in actual with a recursively
//     matching value; extra keys in actual are ignored
//   - arrays: index-aligned prefix match; extra trailing elements in actual
//     are ignored
//   - strings and booleans: exact equality
//   - numbers: numeric equality, so 1 matches 1.0
//   - null matches null
//   - any other type pairing fails
func Subset(expected, actual any) bool {
	switch exp := expected.(type) {
	case nil:
		return actual == nil
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for key, want := range exp {
			got, present := act[key]
			if !present || !Subset(want, got) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok {
			return false
		}
		if len(exp) > len(act) {
			return false
		}
		for i, want := range exp {
			if !Subset(want, act[i]) {
				return false
			}
		}
		return true
	case string:
		got, ok := actual.(string)
		return ok && got == exp
	case bool:
		got, ok := actual.(bool)
		return ok && got == exp
	default:
		want, wantNum := toFloat64(expected)
		got, gotNum := toFloat64(actual)
		return wantNum && gotNum && want == got
	}
}

// toFloat64 widens the numeric types the JSON parsers produce. encoding/json
// yields float64; ojg yields int64 for integral values.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
