// Package middleware holds client.Middleware implementations: key-case
// transcoding and request logging.
package middleware

import (
	"github.com/mcncl/keycase/internal/client"
)

// Compose creates a single middleware from multiple middleware functions.
// This is useful when the same stack is passed to many requests.
func Compose(middlewares ...client.Middleware) client.Middleware {
	return func(next client.Doer) client.Doer {
		return client.Chain(next, middlewares...)
	}
}
