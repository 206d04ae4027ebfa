package interceptor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/getmockd/intercept/pkg/registry"
	"github.com/getmockd/intercept/pkg/stub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// roundTripFunc adapts a function to http.RoundTripper for fallback tests.
type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) { return f(req) }

func newRegistry(rules ...*stub.Rule) *registry.Registry {
	reg := registry.New()
	reg.Add(rules...)
	return reg
}

func TestRoundTripServesStub(t *testing.T) {
	rule := stub.NewRule(
		[]stub.Predicate{
			stub.MatchMethod("GET"),
			stub.MatchURL("https://api.example.com/items/*"),
		},
		stub.ResponseSpec{
			StatusCode: 200,
			Headers:    map[string]string{"Content-Type": "application/json"},
			Body:       stub.TextBody(`{"id":"7"}`),
		},
	)

	client := New(newRegistry(rule)).Client()
	resp, err := client.Get("https://api.example.com/items/7")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	assert.Equal(t, "HTTP/1.1", resp.Proto)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"id":"7"}`, string(body))
}

func TestRoundTripMatchesOnBody(t *testing.T) {
	rule := stub.NewRule(
		[]stub.Predicate{stub.MatchBodySubset(map[string]any{"sku": "a-1"})},
		stub.ResponseSpec{StatusCode: 201},
	)

	client := New(newRegistry(rule)).Client()

	resp, err := client.Post("https://api.example.com/orders", "application/json",
		strings.NewReader(`{"sku":"a-1","qty":2}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 201, resp.StatusCode)

	_, err = client.Post("https://api.example.com/orders", "application/json",
		strings.NewReader(`{"sku":"other"}`))
	var unmatched *UnmatchedError
	require.ErrorAs(t, err, &unmatched)
}

func TestRoundTripUnmatchedWithoutFallback(t *testing.T) {
	client := New(newRegistry()).Client()

	_, err := client.Get("https://api.example.com/nothing")
	var unmatched *UnmatchedError
	require.ErrorAs(t, err, &unmatched)
	assert.Equal(t, "GET", unmatched.Method)
	assert.Equal(t, "https://api.example.com/nothing", unmatched.URL)
}

func TestRoundTripFallback(t *testing.T) {
	var sawBody string
	fallback := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		data, err := io.ReadAll(req.Body)
		require.NoError(t, err)
		sawBody = string(data)
		return &http.Response{
			StatusCode: 200,
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     http.Header{},
		}, nil
	})

	client := New(newRegistry(), WithFallback(fallback)).Client()

	resp, err := client.Post("https://api.example.com/pass", "text/plain",
		strings.NewReader("payload"))
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "payload", sawBody, "buffered body is restored for the fallback")
}

func TestRoundTripExclusionGoesToFallback(t *testing.T) {
	exclude := stub.NewExcludeRule(
		[]stub.Predicate{stub.MatchURL("https://api.example.com/live/**")},
		stub.WithConsumption(stub.RemainingUses(1)),
	)
	catchAll := stub.NewRule(
		[]stub.Predicate{stub.MatchURL("https://*/**")},
		stub.ResponseSpec{StatusCode: 200},
	)

	reg := registry.New()
	reg.Add(catchAll)
	reg.Add(exclude)

	fallbackHits := 0
	fallback := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		fallbackHits++
		return &http.Response{
			StatusCode: 502,
			Body:       io.NopCloser(bytes.NewReader(nil)),
			Header:     http.Header{},
		}, nil
	})
	client := New(reg, WithFallback(fallback)).Client()

	// The exclusion outranks the catch-all and routes to the fallback.
	resp, err := client.Get("https://api.example.com/live/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 502, resp.StatusCode)
	assert.Equal(t, 1, fallbackHits)

	// The exclusion was consumed, so the catch-all serves the retry.
	resp, err = client.Get("https://api.example.com/live/ping")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 1, fallbackHits)
}

func TestRoundTripUnmatchedHook(t *testing.T) {
	var seen []string
	client := New(newRegistry(), WithUnmatchedHook(func(req *http.Request) {
		seen = append(seen, req.URL.String())
	})).Client()

	_, err := client.Get("https://api.example.com/miss")
	require.Error(t, err)
	assert.Equal(t, []string{"https://api.example.com/miss"}, seen)
}

func TestRoundTripSingleUseRule(t *testing.T) {
	rule := stub.NewRule(
		[]stub.Predicate{stub.MatchURL("https://api.example.com/once")},
		stub.ResponseSpec{StatusCode: 200},
		stub.WithConsumption(stub.RemainingUses(1)),
	)

	client := New(newRegistry(rule)).Client()

	resp, err := client.Get("https://api.example.com/once")
	require.NoError(t, err)
	resp.Body.Close()

	_, err = client.Get("https://api.example.com/once")
	var unmatched *UnmatchedError
	require.ErrorAs(t, err, &unmatched)
}

func TestRoundTripForcedError(t *testing.T) {
	rule := stub.NewRule(
		[]stub.Predicate{stub.MatchURL("https://api.example.com/down")},
		stub.ResponseSpec{Body: stub.ErrorBody("NSURLErrorDomain", -1009)},
	)

	client := New(newRegistry(rule)).Client()

	_, err := client.Get("https://api.example.com/down")
	var forced *stub.ForcedError
	require.ErrorAs(t, err, &forced)
	assert.Equal(t, "NSURLErrorDomain", forced.Domain)
	assert.Equal(t, -1009, forced.Code)
}

func TestRoundTripDelay(t *testing.T) {
	rule := stub.NewRule(
		[]stub.Predicate{stub.MatchURL("https://api.example.com/slow")},
		stub.ResponseSpec{StatusCode: 200},
		stub.WithDelay(50*time.Millisecond),
	)

	client := New(newRegistry(rule)).Client()

	start := time.Now()
	resp, err := client.Get("https://api.example.com/slow")
	require.NoError(t, err)
	resp.Body.Close()
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestRoundTripDelayHonorsContext(t *testing.T) {
	rule := stub.NewRule(
		[]stub.Predicate{stub.MatchURL("https://api.example.com/slow")},
		stub.ResponseSpec{StatusCode: 200},
		stub.WithDelay(10*time.Second),
	)

	transport := New(newRegistry(rule))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, "GET", "https://api.example.com/slow", nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = transport.RoundTrip(req)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRoundTripBodyFile(t *testing.T) {
	fixtures := fstest.MapFS{
		"fixtures/items.json": &fstest.MapFile{Data: []byte(`[{"id":1}]`)},
	}
	rule := stub.NewRule(
		[]stub.Predicate{stub.MatchURL("https://api.example.com/items")},
		stub.ResponseSpec{StatusCode: 200, BodyFile: "fixtures/items.json"},
	)

	client := New(newRegistry(rule), WithFiles(fixtures)).Client()

	resp, err := client.Get("https://api.example.com/items")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, `[{"id":1}]`, string(body))
}

func TestRoundTripBodyFileErrors(t *testing.T) {
	rule := stub.NewRule(
		[]stub.Predicate{stub.MatchURL("https://api.example.com/items")},
		stub.ResponseSpec{StatusCode: 200, BodyFile: "missing.json"},
	)

	t.Run("no filesystem configured", func(t *testing.T) {
		client := New(newRegistry(rule)).Client()
		_, err := client.Get("https://api.example.com/items")
		assert.ErrorIs(t, err, ErrResponseConstruction)
	})

	t.Run("file missing", func(t *testing.T) {
		client := New(newRegistry(rule), WithFiles(fstest.MapFS{})).Client()
		_, err := client.Get("https://api.example.com/items")
		assert.ErrorIs(t, err, ErrResponseConstruction)
	})
}

func TestRenderResponseStorePolicy(t *testing.T) {
	tests := []struct {
		name   string
		spec   stub.ResponseSpec
		header string
	}{
		{
			name:   "allowed leaves the header unset",
			spec:   stub.ResponseSpec{StatusCode: 200},
			header: "",
		},
		{
			name:   "memory only",
			spec:   stub.ResponseSpec{StatusCode: 200, StorePolicy: stub.StoreMemoryOnly},
			header: "no-cache",
		},
		{
			name:   "not allowed",
			spec:   stub.ResponseSpec{StatusCode: 200, StorePolicy: stub.StoreNotAllowed},
			header: "no-store",
		},
		{
			name: "explicit header wins",
			spec: stub.ResponseSpec{
				StatusCode:  200,
				Headers:     map[string]string{"Cache-Control": "max-age=60"},
				StorePolicy: stub.StoreNotAllowed,
			},
			header: "max-age=60",
		},
	}

	req, err := http.NewRequest("GET", "https://api.example.com/a", nil)
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := renderResponse(req, &tt.spec, nil)
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, tt.header, resp.Header.Get("Cache-Control"))
		})
	}
}

func TestRenderResponseProtoVersion(t *testing.T) {
	req, err := http.NewRequest("GET", "https://api.example.com/a", nil)
	require.NoError(t, err)

	resp, err := renderResponse(req, &stub.ResponseSpec{StatusCode: 200, ProtoVersion: "HTTP/2.0"}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "HTTP/2.0", resp.Proto)
	assert.Equal(t, 2, resp.ProtoMajor)
	assert.Equal(t, 0, resp.ProtoMinor)

	_, err = renderResponse(req, &stub.ResponseSpec{StatusCode: 200, ProtoVersion: "h2"}, nil)
	assert.ErrorIs(t, err, ErrResponseConstruction)
}

func TestRenderResponseNilSpec(t *testing.T) {
	req, err := http.NewRequest("GET", "https://api.example.com/a", nil)
	require.NoError(t, err)

	_, err = renderResponse(req, nil, nil)
	assert.ErrorIs(t, err, ErrResponseConstruction)
}

func TestRenderResponseContentLength(t *testing.T) {
	req, err := http.NewRequest("GET", "https://api.example.com/a", nil)
	require.NoError(t, err)

	resp, err := renderResponse(req, &stub.ResponseSpec{StatusCode: 200, Body: stub.TextBody("hello")}, nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, int64(5), resp.ContentLength)
	assert.Same(t, req, resp.Request)
}

func TestSleepReturnsContextError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.True(t, errors.Is(sleep(ctx, time.Minute), context.Canceled))
}
