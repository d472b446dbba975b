// Package transcoder rewrites the object keys of a JSON value into a target
// naming convention while leaving every other part of the value untouched.
package transcoder

import (
	"github.com/MichaelAJay/go-logger"
	"github.com/mcncl/keycase/internal/keycase"
	"github.com/mcncl/keycase/internal/models"
)

// Options configures a Transcoder.
type Options struct {
	// KeyMappings holds explicit key overrides per target convention. A key
	// found here is used verbatim instead of the convention's rewrite rule.
	KeyMappings map[keycase.Convention]map[string]string

	// Logger receives a warning for every key that cannot be rewritten.
	// Nil disables logging.
	Logger logger.Logger
}

// Transcoder converts object keys between naming conventions. It holds no
// mutable state and is safe for concurrent use.
type Transcoder struct {
	opts Options
}

// New creates a Transcoder.
func New(opts Options) *Transcoder {
	return &Transcoder{opts: opts}
}

var defaultTranscoder = New(Options{})

// Transcode rewrites the keys of v into target using the default rules.
// With deep set, keys at every depth are rewritten; otherwise only the keys
// of a top-level object change.
func Transcode(v models.Value, target keycase.Convention, deep bool) models.Value {
	return defaultTranscoder.Transcode(v, target, deep)
}

// Transcode returns a new value with object keys rewritten into target.
// Values, array order and member order are preserved. v is not modified.
func (t *Transcoder) Transcode(v models.Value, target keycase.Convention, deep bool) models.Value {
	switch v.Kind() {
	case models.KindObject:
		members := v.Members()
		for i := range members {
			members[i].Key = t.rewriteKey(members[i].Key, target)
			if deep {
				members[i].Value = t.Transcode(members[i].Value, target, deep)
			}
		}
		return models.Object(members...)
	case models.KindArray:
		if !deep {
			return v
		}
		elems := v.Elements()
		for i := range elems {
			elems[i] = t.Transcode(elems[i], target, deep)
		}
		return models.Array(elems...)
	case models.KindNull, models.KindBool, models.KindNumber, models.KindString:
		return v
	default:
		return v
	}
}

// rewriteKey converts a single key. A key that cannot be converted is kept
// as is so the rest of the traversal still happens.
func (t *Transcoder) rewriteKey(key string, target keycase.Convention) string {
	if mapped, ok := t.opts.KeyMappings[target][key]; ok {
		return mapped
	}
	converted, err := keycase.Convert(key, target)
	if err != nil {
		if t.opts.Logger != nil {
			t.opts.Logger.Warn("Key left unchanged",
				logger.Field{Key: "key", Value: key},
				logger.Field{Key: "target", Value: target.String()},
				logger.Field{Key: "error", Value: err.Error()})
		}
		return key
	}
	return converted
}
