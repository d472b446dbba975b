// Package client is a small JSON-over-HTTP client. Request and response
// transforms are not installed globally: each call receives the middleware it
// should run through.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/mcncl/keycase/internal/errors"
	"github.com/mcncl/keycase/internal/models"
	"github.com/mcncl/keycase/internal/parser"
)

// Doer performs a single HTTP round trip. *http.Client satisfies it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to Doer.
type DoerFunc func(req *http.Request) (*http.Response, error)

// Do calls f(req).
func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Middleware decorates a Doer.
type Middleware func(next Doer) Doer

// Chain wraps d with mws. The first middleware is the outermost: it sees the
// request first and the response last.
func Chain(d Doer, mws ...Middleware) Doer {
	for i := len(mws) - 1; i >= 0; i-- {
		if mws[i] != nil {
			d = mws[i](d)
		}
	}
	return d
}

// Client sends JSON requests relative to a base URL.
type Client struct {
	baseURL string
	doer    Doer
	logger  logger.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithDoer replaces the underlying transport.
func WithDoer(d Doer) Option {
	return func(c *Client) { c.doer = d }
}

// WithTimeout sets the timeout of the default *http.Client.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.doer = &http.Client{Timeout: timeout} }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New creates a Client for baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the URL requests are resolved against.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get issues a GET request and decodes the response into out.
func (c *Client) Get(ctx context.Context, path string, out any, mws ...Middleware) error {
	return c.Do(ctx, http.MethodGet, path, nil, out, mws...)
}

// Post sends body as JSON and decodes the response into out.
func (c *Client) Post(ctx context.Context, path string, body, out any, mws ...Middleware) error {
	return c.Do(ctx, http.MethodPost, path, body, out, mws...)
}

// Do sends a request through mws. A nil body sends no payload; a nil out
// discards the response body. out may be a *models.Value, a *string for raw
// text, or anything encoding/json can decode into.
func (c *Client) Do(ctx context.Context, method, path string, body, out any, mws ...Middleware) error {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")
	op := fmt.Sprintf("%s %s", method, path)

	var reader io.Reader
	if body != nil {
		payload, err := encodeBody(body)
		if err != nil {
			return errors.NewRequestError(fmt.Sprintf("%s: failed to encode request body", op), err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return errors.NewRequestError(fmt.Sprintf("%s: failed to build request", op), err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := Chain(c.doer, mws...).Do(req)
	if err != nil {
		return errors.NewRequestError(fmt.Sprintf("%s failed", op), err)
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil && c.logger != nil {
			c.logger.Error("Failed to close response body", logger.Field{Key: "error", Value: cerr.Error()})
		}
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.NewRequestError(fmt.Sprintf("%s: failed to read response body", op), err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.NewRequestError(fmt.Sprintf("%s failed", op), &errors.StatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		})
	}

	if out == nil {
		return nil
	}
	if err := decodeBody(data, out); err != nil {
		return errors.NewRequestError(fmt.Sprintf("%s: failed to decode response body", op), err)
	}
	return nil
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case models.Value:
		return b.MarshalJSON()
	case *models.Value:
		return b.MarshalJSON()
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(body)
	}
}

func decodeBody(data []byte, out any) error {
	switch o := out.(type) {
	case *string:
		*o = string(data)
		return nil
	case *[]byte:
		*o = append((*o)[:0], data...)
		return nil
	case *models.Value:
		if len(bytes.TrimSpace(data)) == 0 {
			*o = models.Null()
			return nil
		}
		v, err := parser.ParseBytes(data)
		if err != nil {
			return err
		}
		*o = v
		return nil
	default:
		if len(bytes.TrimSpace(data)) == 0 {
			return nil
		}
		return json.Unmarshal(data, out)
	}
}

// IsJSON reports whether a Content-Type header value denotes JSON:
// application/json or any +json media type.
func IsJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
