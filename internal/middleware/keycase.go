package middleware

import (
	"bytes"
	"io"
	"net/http"
	"strconv"

	"github.com/mcncl/keycase/internal/client"
	"github.com/mcncl/keycase/internal/errors"
	"github.com/mcncl/keycase/internal/keycase"
	"github.com/mcncl/keycase/internal/parser"
	"github.com/mcncl/keycase/internal/transcoder"
)

// KeyCaseOptions configures the key-case middleware.
type KeyCaseOptions struct {
	Transcoder *transcoder.Transcoder
	Outbound   keycase.Convention
	Inbound    keycase.Convention
	Deep       bool
}

// DefaultKeyCaseOptions sends snake_case and receives camelCase at all depths.
func DefaultKeyCaseOptions() KeyCaseOptions {
	return KeyCaseOptions{
		Transcoder: transcoder.New(transcoder.Options{}),
		Outbound:   keycase.Snake,
		Inbound:    keycase.Camel,
		Deep:       true,
	}
}

// keyCaseDoer rewrites JSON body keys on the way out and on the way back.
type keyCaseDoer struct {
	next client.Doer
	opts KeyCaseOptions
}

// NewKeyCaseMiddleware returns a middleware that transcodes JSON request
// bodies to opts.Outbound and JSON response bodies to opts.Inbound. Bodies
// that are empty or not declared as JSON pass through untouched.
func NewKeyCaseMiddleware(opts KeyCaseOptions) client.Middleware {
	if opts.Transcoder == nil {
		opts.Transcoder = transcoder.New(transcoder.Options{})
	}
	return func(next client.Doer) client.Doer {
		return &keyCaseDoer{next: next, opts: opts}
	}
}

// Do transcodes the request body, forwards the request and transcodes the
// response body.
func (d *keyCaseDoer) Do(req *http.Request) (*http.Response, error) {
	if req.Body != nil && req.Body != http.NoBody && client.IsJSON(req.Header.Get("Content-Type")) {
		data, err := io.ReadAll(req.Body)
		_ = req.Body.Close()
		if err != nil {
			return nil, errors.NewTranscodeError("failed to read request body", err)
		}
		rewritten, err := d.rewrite(data, d.opts.Outbound)
		if err != nil {
			return nil, err
		}
		req = req.Clone(req.Context())
		setRequestBody(req, rewritten)
	}

	resp, err := d.next.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.Body == nil || !client.IsJSON(resp.Header.Get("Content-Type")) {
		return resp, nil
	}

	data, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, errors.NewTranscodeError("failed to read response body", err)
	}
	rewritten, err := d.rewrite(data, d.opts.Inbound)
	if err != nil {
		return nil, err
	}
	resp.Body = io.NopCloser(bytes.NewReader(rewritten))
	resp.ContentLength = int64(len(rewritten))
	resp.Header.Set("Content-Length", strconv.Itoa(len(rewritten)))
	return resp, nil
}

// rewrite parses a JSON body, transcodes its keys and encodes it again.
// Empty bodies are returned as they are.
func (d *keyCaseDoer) rewrite(data []byte, target keycase.Convention) ([]byte, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return data, nil
	}
	v, err := parser.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return parser.Encode(d.opts.Transcoder.Transcode(v, target, d.opts.Deep), false)
}

func setRequestBody(req *http.Request, body []byte) {
	req.Body = io.NopCloser(bytes.NewReader(body))
	req.ContentLength = int64(len(body))
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(body)), nil
	}
	if req.Header.Get("Content-Length") != "" {
		req.Header.Set("Content-Length", strconv.Itoa(len(body)))
	}
}
