package matching

import (
	"net/url"
	"strings"
)

const (
	segmentWildcard = "*"
	restWildcard    = "**"
)

// MatchURLPattern reports whether the request URL matches the pattern URL.
// The pattern's host must equal the request host or be the literal "*".
// Path segments are compared index by index: "**" matches the rest of the
// path immediately, "*" matches exactly one segment, anything else requires
// string equality. A pattern that is shorter than the request path (without a
// terminating "**") does not match; neither does a longer one. The scheme is
// not compared. An unparsable pattern is a non-match.
func MatchURLPattern(pattern string, request *url.URL) bool {
	if request == nil {
		return false
	}
	p, err := url.Parse(pattern)
	if err != nil {
		return false
	}
	if !hostMatches(p.Host, request.Host) {
		return false
	}
	return segmentsMatch(splitSegments(p.Path), splitSegments(request.Path))
}

func hostMatches(pattern, host string) bool {
	return pattern == segmentWildcard || pattern == host
}

// splitSegments breaks a URL path into its segments. "" and "/" have none.
func splitSegments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func segmentsMatch(pattern, request []string) bool {
	for i, seg := range pattern {
		if seg == restWildcard {
			return true
		}
		if i >= len(request) {
			return false
		}
		if seg == segmentWildcard {
			continue
		}
		if seg != request[i] {
			return false
		}
	}
	return len(pattern) == len(request)
}
