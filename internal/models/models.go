package models

import (
	"bytes"
	"encoding/json"
)

// Kind identifies which variant a Value holds.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

// String returns the JSON name of the kind.
func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// Member is a single key/value pair of a JSON object.
type Member struct {
	Key   string
	Value Value
}

// Value is an immutable JSON value. The zero Value is JSON null.
// Object members keep the order they were added in.
type Value struct {
	kind    Kind
	boolean bool
	text    string // string contents or number literal
	array   []Value
	object  []Member
}

// Null returns the JSON null value.
func Null() Value { return Value{} }

// Bool wraps a boolean.
func Bool(b bool) Value { return Value{kind: KindBool, boolean: b} }

// Number wraps a number literal. The literal is kept verbatim.
func Number(n json.Number) Value { return Value{kind: KindNumber, text: string(n)} }

// String wraps a string.
func String(s string) Value { return Value{kind: KindString, text: s} }

// Array builds an array from elements, copying the slice.
func Array(elems ...Value) Value {
	arr := make([]Value, len(elems))
	copy(arr, elems)
	return Value{kind: KindArray, array: arr}
}

// Object builds an object from members, copying the slice.
func Object(members ...Member) Value {
	obj := make([]Member, len(members))
	copy(obj, members)
	return Value{kind: KindObject, object: obj}
}

// Kind returns the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsNull reports whether v is JSON null.
func (v Value) IsNull() bool { return v.kind == KindNull }

// Bool returns the boolean held by v, or false for other kinds.
func (v Value) Bool() bool { return v.kind == KindBool && v.boolean }

// Number returns the number literal held by v, or "" for other kinds.
func (v Value) Number() json.Number {
	if v.kind != KindNumber {
		return ""
	}
	return json.Number(v.text)
}

// Str returns the string held by v, or "" for other kinds.
func (v Value) Str() string {
	if v.kind != KindString {
		return ""
	}
	return v.text
}

// Len returns the number of elements or members; zero for scalars.
func (v Value) Len() int {
	switch v.kind {
	case KindArray:
		return len(v.array)
	case KindObject:
		return len(v.object)
	default:
		return 0
	}
}

// Elements returns a copy of the array elements.
func (v Value) Elements() []Value {
	if v.kind != KindArray {
		return nil
	}
	out := make([]Value, len(v.array))
	copy(out, v.array)
	return out
}

// Members returns a copy of the object members in order.
func (v Value) Members() []Member {
	if v.kind != KindObject {
		return nil
	}
	out := make([]Member, len(v.object))
	copy(out, v.object)
	return out
}

// Keys returns the object keys in order.
func (v Value) Keys() []string {
	if v.kind != KindObject {
		return nil
	}
	keys := make([]string, len(v.object))
	for i, m := range v.object {
		keys[i] = m.Key
	}
	return keys
}

// Get looks up key in an object. When a key repeats the last member wins,
// as it does when encoding/json decodes the same text.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	for i := len(v.object) - 1; i >= 0; i-- {
		if v.object[i].Key == key {
			return v.object[i].Value, true
		}
	}
	return Value{}, false
}

// With returns a copy of the object with member appended.
func (v Value) With(key string, val Value) Value {
	if v.kind != KindObject {
		return v
	}
	return Object(append(v.Members(), Member{Key: key, Value: val})...)
}

// Equal reports structural equality. Object members are compared in order.
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.boolean == other.boolean
	case KindNumber, KindString:
		return v.text == other.text
	case KindArray:
		if len(v.array) != len(other.array) {
			return false
		}
		for i := range v.array {
			if !v.array[i].Equal(other.array[i]) {
				return false
			}
		}
		return true
	case KindObject:
		if len(v.object) != len(other.object) {
			return false
		}
		for i := range v.object {
			if v.object[i].Key != other.object[i].Key || !v.object[i].Value.Equal(other.object[i].Value) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// MarshalJSON encodes v, keeping object member order.
func (v Value) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := v.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (v Value) encode(buf *bytes.Buffer) error {
	switch v.kind {
	case KindNull:
		buf.WriteString("null")
	case KindBool:
		if v.boolean {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case KindNumber:
		buf.WriteString(v.text)
	case KindString:
		return encodeString(buf, v.text)
	case KindArray:
		buf.WriteByte('[')
		for i, elem := range v.array {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := elem.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case KindObject:
		buf.WriteByte('{')
		for i, m := range v.object {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := m.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	// Encoder terminates every value with a newline.
	buf.Truncate(buf.Len() - 1)
	return nil
}
