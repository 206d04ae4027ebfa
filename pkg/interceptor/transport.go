package interceptor

import (
	"bytes"
	"context"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/getmockd/intercept/pkg/registry"
	"github.com/getmockd/intercept/pkg/stub"
)

// Transport resolves outgoing requests against a rule registry. It is safe
// for concurrent use by multiple goroutines.
type Transport struct {
	registry    *registry.Registry
	fallback    http.RoundTripper
	onUnmatched func(*http.Request)
	files       fs.FS
	log         *slog.Logger
}

// Option configures a Transport.
type Option func(*Transport)

// WithFallback sends unmatched and excluded requests to rt instead of
// failing them. Passing http.DefaultTransport restores real network
// behavior for whatever the rules don't cover.
func WithFallback(rt http.RoundTripper) Option {
	return func(t *Transport) { t.fallback = rt }
}

// WithUnmatchedHook calls fn for every request no responding rule served.
func WithUnmatchedHook(fn func(*http.Request)) Option {
	return func(t *Transport) { t.onUnmatched = fn }
}

// WithFiles provides the filesystem bodyFile response bodies are read from,
// typically an embed.FS of test fixtures.
func WithFiles(fsys fs.FS) Option {
	return func(t *Transport) { t.files = fsys }
}

// WithLogger sets the structured logger. Logging is off by default.
func WithLogger(log *slog.Logger) Option {
	return func(t *Transport) { t.log = log }
}

// New creates a Transport resolving against reg.
func New(reg *registry.Registry, opts ...Option) *Transport {
	t := &Transport{
		registry: reg,
		log:      slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Client returns an http.Client that routes through the transport.
func (t *Transport) Client() *http.Client {
	return &http.Client{Transport: t}
}

// RoundTrip implements http.RoundTripper. Resolution and consumption happen
// as one atomic step (registry.Claim); the optional artificial delay is
// applied afterwards, outside any lock, and aborts cleanly when the request
// context is canceled.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	body := bufferBody(req)
	view := stub.ViewFromRequest(req, body)

	rule := t.registry.Claim(view)
	if rule == nil || rule.Outcome.Kind == stub.OutcomeExclude {
		return t.serveUnmatched(req, rule)
	}

	if rule.Delay > 0 {
		if err := sleep(req.Context(), rule.Delay); err != nil {
			t.log.Debug("stub delivery abandoned", "rule", rule.ID, "err", err)
			return nil, err
		}
	}

	t.log.Debug("serving stub",
		"rule", rule.ID,
		"method", req.Method,
		"url", req.URL.String(),
	)
	return renderResponse(req, rule.Outcome.Response, t.files)
}

// serveUnmatched handles both "no rule matched" and "an exclusion rule
// matched": notify the hook, then pass through or fail.
func (t *Transport) serveUnmatched(req *http.Request, rule *stub.Rule) (*http.Response, error) {
	if rule != nil {
		t.log.Debug("request excluded from stubbing", "rule", rule.ID, "url", req.URL.String())
	} else {
		t.log.Debug("no stub rule matched", "method", req.Method, "url", req.URL.String())
	}
	if t.onUnmatched != nil {
		t.onUnmatched(req)
	}
	if t.fallback != nil {
		return t.fallback.RoundTrip(req)
	}
	return nil, &UnmatchedError{Method: req.Method, URL: req.URL.String()}
}

// bufferBody reads the request body so it can be matched against, and
// restores it so a fallback transport can still send the request.
func bufferBody(req *http.Request) []byte {
	if req.Body == nil {
		return nil
	}
	data, err := io.ReadAll(req.Body)
	req.Body.Close()
	if err != nil {
		data = nil
	}
	req.Body = io.NopCloser(bytes.NewReader(data))
	return data
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
