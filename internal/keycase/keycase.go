// Package keycase rewrites identifiers between naming conventions.
package keycase

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/iancoleman/strcase"
	"github.com/mcncl/keycase/internal/errors"
)

// Convention is a key naming convention.
type Convention int

const (
	Camel Convention = iota
	Snake
	Kebab
	Pascal
)

var conventionNames = map[Convention]string{
	Camel:  "camel",
	Snake:  "snake",
	Kebab:  "kebab",
	Pascal: "pascal",
}

// String returns the config/CLI name of the convention.
func (c Convention) String() string {
	if name, ok := conventionNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Convention(%d)", int(c))
}

// ParseConvention resolves a convention name. Names are matched after
// normalizing to snake case, so "camelCase", "CAMEL" and "camel_case" all
// resolve to Camel.
func ParseConvention(name string) (Convention, error) {
	normalized := strings.TrimSuffix(strcase.ToSnake(strings.TrimSpace(name)), "_case")
	for c, n := range conventionNames {
		if n == normalized {
			return c, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", errors.ErrUnknownConvention, name)
}

// MarshalText implements encoding.TextMarshaler.
func (c Convention) MarshalText() ([]byte, error) {
	if _, ok := conventionNames[c]; !ok {
		return nil, fmt.Errorf("%w: %d", errors.ErrUnknownConvention, int(c))
	}
	return []byte(c.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (c *Convention) UnmarshalText(text []byte) error {
	parsed, err := ParseConvention(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// Convert rewrites key into the target convention. Keys that are not valid
// UTF-8 are returned unchanged along with ErrMalformedKey.
func Convert(key string, target Convention) (string, error) {
	if !utf8.ValidString(key) {
		return key, errors.ErrMalformedKey
	}
	switch target {
	case Camel:
		return ToCamel(key), nil
	case Snake:
		return ToSnake(key), nil
	case Kebab:
		return strcase.ToKebab(key), nil
	case Pascal:
		return strcase.ToCamel(key), nil
	default:
		return key, fmt.Errorf("%w: %d", errors.ErrUnknownConvention, int(target))
	}
}

// ToSnake converts a camelCase key to snake_case.
//
// An underscore goes before an uppercase letter unless it starts the key or
// follows an underscore. A run of capitals gets a single underscore, and
// breaks again before its last capital when a lowercase letter follows, so
// "userID" becomes "user_id" and "HTTPServer" becomes "http_server".
func ToSnake(key string) string {
	runes := []rune(key)
	var b strings.Builder
	b.Grow(len(key) + 4)

	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 && runes[i-1] != '_' {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				b.WriteByte('_')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

// ToCamel converts a snake_case key to camelCase. Underscores are dropped and
// the rune after each one is uppercased. Leading and trailing underscores are
// ignored. A key that is nothing but underscores is returned as is.
func ToCamel(key string) string {
	trimmed := strings.Trim(key, "_")
	if trimmed == "" {
		return key
	}

	var b strings.Builder
	b.Grow(len(trimmed))

	upperNext := false
	for _, r := range trimmed {
		if r == '_' {
			upperNext = true
			continue
		}
		if upperNext {
			r = unicode.ToUpper(r)
			upperNext = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// IsSnake reports whether key is already in snake_case: no uppercase letters
// and no hyphens.
func IsSnake(key string) bool {
	for _, r := range key {
		if unicode.IsUpper(r) || r == '-' {
			return false
		}
	}
	return true
}
