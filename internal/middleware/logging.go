package middleware

import (
	"net/http"
	"time"

	"github.com/MichaelAJay/go-logger"
	"github.com/mcncl/keycase/internal/client"
)

// loggingDoer wraps a Doer with logging capabilities
type loggingDoer struct {
	next   client.Doer
	logger logger.Logger
}

// NewLoggingMiddleware creates a new logging middleware
func NewLoggingMiddleware(logger logger.Logger) client.Middleware {
	return func(next client.Doer) client.Doer {
		return &loggingDoer{
			next:   next,
			logger: logger,
		}
	}
}

// Do performs the request with logging
func (d *loggingDoer) Do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := d.next.Do(req)
	duration := time.Since(start)

	if err != nil {
		d.logger.Error("Request error",
			logger.Field{Key: "method", Value: req.Method},
			logger.Field{Key: "url", Value: req.URL.String()},
			logger.Field{Key: "error", Value: err.Error()},
			logger.Field{Key: "duration", Value: duration})
		return nil, err
	}

	fields := []logger.Field{
		{Key: "method", Value: req.Method},
		{Key: "url", Value: req.URL.String()},
		{Key: "status", Value: resp.StatusCode},
		{Key: "duration", Value: duration},
	}
	if resp.StatusCode >= http.StatusBadRequest {
		d.logger.Error("Request failed", fields...)
	} else {
		d.logger.Debug("Request completed", fields...)
	}
	return resp, nil
}
