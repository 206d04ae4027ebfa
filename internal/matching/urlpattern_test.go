package matching

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchURLPattern(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		request string
		want    bool
	}{
		{
			name:    "exact match",
			pattern: "https://host.com/a/b",
			request: "https://host.com/a/b",
			want:    true,
		},
		{
			name:    "host wildcard matches any host",
			pattern: "https://*/a/b",
			request: "https://anything.example.com/a/b",
			want:    true,
		},
		{
			name:    "host mismatch",
			pattern: "https://host.com/a/b",
			request: "https://other.com/a/b",
			want:    false,
		},
		{
			name:    "scheme is not compared",
			pattern: "https://host.com/a/b",
			request: "http://host.com/a/b",
			want:    true,
		},
		{
			name:    "single segment wildcard",
			pattern: "https://host.com/a/*/c",
			request: "https://host.com/a/anything/c",
			want:    true,
		},
		{
			name:    "single wildcard covers exactly one segment",
			pattern: "https://host.com/a/*",
			request: "https://host.com/a/b/c",
			want:    false,
		},
		{
			name:    "rest wildcard matches the bare prefix",
			pattern: "https://host.com/a/**",
			request: "https://host.com/a",
			want:    true,
		},
		{
			name:    "rest wildcard matches one extra segment",
			pattern: "https://host.com/a/**",
			request: "https://host.com/a/b",
			want:    true,
		},
		{
			name:    "rest wildcard matches many extra segments",
			pattern: "https://host.com/a/**",
			request: "https://host.com/a/b/c",
			want:    true,
		},
		{
			name:    "rest wildcard does not rescue an earlier mismatch",
			pattern: "https://host.com/x/**",
			request: "https://host.com/a/b",
			want:    false,
		},
		{
			name:    "pattern longer than request",
			pattern: "https://host.com/a/b/c",
			request: "https://host.com/a/b",
			want:    false,
		},
		{
			name:    "request longer than pattern without rest wildcard",
			pattern: "https://host.com/a/b/c",
			request: "https://host.com/a/b/c/d",
			want:    false,
		},
		{
			name:    "literal segment mismatch",
			pattern: "https://host.com/a/b",
			request: "https://host.com/a/x",
			want:    false,
		},
		{
			name:    "empty paths match",
			pattern: "https://host.com",
			request: "https://host.com/",
			want:    true,
		},
		{
			name:    "host with port must match exactly",
			pattern: "https://host.com:8080/a",
			request: "https://host.com/a",
			want:    false,
		},
		{
			name:    "query strings are ignored",
			pattern: "https://host.com/a",
			request: "https://host.com/a?x=1",
			want:    true,
		},
		{
			name:    "wildcards combine",
			pattern: "https://*/*/path2/*",
			request: "https://host.com/path1/path2/path3",
			want:    true,
		},
		{
			name:    "malformed pattern is a non-match",
			pattern: "https://host.com/a/%zz",
			request: "https://host.com/a/b",
			want:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request, err := url.Parse(tt.request)
			require.NoError(t, err)
			assert.Equal(t, tt.want, MatchURLPattern(tt.pattern, request))
		})
	}
}

func TestMatchURLPatternNilRequest(t *testing.T) {
	assert.False(t, MatchURLPattern("https://host.com/a", nil))
}

func TestSplitSegments(t *testing.T) {
	assert.Nil(t, splitSegments(""))
	assert.Nil(t, splitSegments("/"))
	assert.Equal(t, []string{"a"}, splitSegments("/a"))
	assert.Equal(t, []string{"a", "b"}, splitSegments("/a/b/"))
}
