package matching

import (
	"net/url"
	"path"
	"strings"

	"github.com/getmockd/intercept/pkg/stub"
)

// Evaluate reports whether a single predicate holds for the request view.
// Evaluation is side-effect free and total: it always returns a boolean.
func Evaluate(p stub.Predicate, view stub.RequestView) bool {
	switch p.Kind {
	case stub.PredicateMethod:
		return view.Method == p.Method
	case stub.PredicateURL:
		return MatchURLPattern(p.URL, view.URL)
	case stub.PredicateQuery:
		return matchQueryParam(p.Key, p.Value, view.URL)
	case stub.PredicateHeader:
		return p.Value != nil && view.Header[p.Key] == *p.Value
	case stub.PredicatePathExt:
		return matchPathExtension(p.Extension, view.URL)
	case stub.PredicateBodySubset:
		return MatchBodySubset(p.BodySubset, view.Body)
	default:
		return false
	}
}

// EvaluateAll is the AND of Evaluate over the predicate set, short-circuiting
// on the first failure. An empty set matches every request.
func EvaluateAll(predicates []stub.Predicate, view stub.RequestView) bool {
	for _, p := range predicates {
		if !Evaluate(p, view) {
			return false
		}
	}
	return true
}

// queryItem is one raw query parameter. value is nil when the item appeared
// without "=" ("?flag"), which url.Values cannot represent.
type queryItem struct {
	name  string
	value *string
}

func parseQueryItems(rawQuery string) []queryItem {
	if rawQuery == "" {
		return nil
	}
	var items []queryItem
	for _, piece := range strings.Split(rawQuery, "&") {
		if piece == "" {
			continue
		}
		rawName, rawValue, hasValue := strings.Cut(piece, "=")
		name, err := url.QueryUnescape(rawName)
		if err != nil {
			continue
		}
		item := queryItem{name: name}
		if hasValue {
			value, err := url.QueryUnescape(rawValue)
			if err != nil {
				continue
			}
			item.value = &value
		}
		items = append(items, item)
	}
	return items
}

// matchQueryParam checks the query predicate. A nil want means "key present
// with any value". A non-nil want requires an item carrying exactly that
// value; "?k" (no value at all) does not satisfy want == "".
func matchQueryParam(key string, want *string, u *url.URL) bool {
	if u == nil {
		return false
	}
	for _, item := range parseQueryItems(u.RawQuery) {
		if item.name != key {
			continue
		}
		if want == nil {
			return true
		}
		if item.value != nil && *item.value == *want {
			return true
		}
	}
	return false
}

// matchPathExtension compares the extension of the final path segment,
// without the dot, exactly.
func matchPathExtension(ext string, u *url.URL) bool {
	if u == nil || ext == "" {
		return false
	}
	got := path.Ext(u.Path)
	return got != "" && got[1:] == ext
}
