package interceptor

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"

	"github.com/getmockd/intercept/pkg/stub"
)

// ErrResponseConstruction marks failures to build a response from a matched
// rule's spec, as opposed to "no rule matched". Check with errors.Is.
var ErrResponseConstruction = errors.New("stub response construction failed")

// UnmatchedError is returned when no responding rule served the request and
// no fallback transport is configured.
type UnmatchedError struct {
	Method string
	URL    string
}

// Error implements error.
func (e *UnmatchedError) Error() string {
	return fmt.Sprintf("no stub rule matched %s %s", e.Method, e.URL)
}

// renderResponse turns a ResponseSpec into an *http.Response. Forced-error
// bodies are returned as the rule's *stub.ForcedError instead of a response.
func renderResponse(req *http.Request, spec *stub.ResponseSpec, files fs.FS) (*http.Response, error) {
	if spec == nil {
		return nil, fmt.Errorf("%w: rule has no response spec", ErrResponseConstruction)
	}
	if fe := spec.Body.ForcedError(); fe != nil {
		return nil, fe
	}

	payload := spec.Body.Bytes()
	if spec.Body.IsEmpty() && spec.BodyFile != "" {
		if files == nil {
			return nil, fmt.Errorf("%w: bodyFile %q but no filesystem configured", ErrResponseConstruction, spec.BodyFile)
		}
		data, err := fs.ReadFile(files, spec.BodyFile)
		if err != nil {
			return nil, fmt.Errorf("%w: bodyFile %q: %v", ErrResponseConstruction, spec.BodyFile, err)
		}
		payload = data
	}

	header := make(http.Header, len(spec.Headers)+1)
	for k, v := range spec.Headers {
		header.Set(k, v)
	}
	applyStorePolicy(header, spec.EffectiveStorePolicy())

	proto := spec.ProtocolVersion()
	major, minor, ok := http.ParseHTTPVersion(proto)
	if !ok {
		return nil, fmt.Errorf("%w: invalid protocol version %q", ErrResponseConstruction, proto)
	}

	return &http.Response{
		Status:        fmt.Sprintf("%d %s", spec.StatusCode, http.StatusText(spec.StatusCode)),
		StatusCode:    spec.StatusCode,
		Proto:         proto,
		ProtoMajor:    major,
		ProtoMinor:    minor,
		Header:        header,
		Body:          io.NopCloser(bytes.NewReader(payload)),
		ContentLength: int64(len(payload)),
		Request:       req,
	}, nil
}

// applyStorePolicy surfaces the rule's cache-storage directive as a
// Cache-Control header, unless the rule already set one explicitly.
func applyStorePolicy(header http.Header, policy stub.StorePolicy) {
	if header.Get("Cache-Control") != "" {
		return
	}
	switch policy {
	case stub.StoreNotAllowed:
		header.Set("Cache-Control", "no-store")
	case stub.StoreMemoryOnly:
		header.Set("Cache-Control", "no-cache")
	}
}
