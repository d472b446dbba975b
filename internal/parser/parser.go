package parser

import (
	"bytes"
	"encoding/json"
	stderrors "errors" // Standard errors package
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mcncl/keycase/internal/errors" // Custom errors package
	"github.com/mcncl/keycase/internal/models"
)

// MaxDepth is the deepest nesting of objects and arrays Parse accepts. It
// matches the limit encoding/json applies when unmarshalling.
const MaxDepth = 10000

var errTooDeep = stderrors.New("exceeded max depth")

// Parse reads exactly one JSON value from reader. Object member order is
// preserved and numbers keep their literal text.
func Parse(reader io.Reader) (models.Value, error) {
	decoder := json.NewDecoder(reader)
	decoder.UseNumber()

	tok, err := decoder.Token()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return models.Value{}, errors.NewParsingError("input is empty or contains only whitespace", errors.ErrEmptyInput)
		}
		return models.Value{}, classify(err)
	}

	root, err := decodeToken(decoder, tok, 0)
	if err != nil {
		return models.Value{}, classify(err)
	}

	// Anything other than EOF after the root value is either a second value
	// or trailing garbage.
	if _, err := decoder.Token(); err == nil {
		return models.Value{}, errors.NewParsingError("multiple JSON values found at the root", errors.ErrMultipleJSON)
	} else if !stderrors.Is(err, io.EOF) {
		return models.Value{}, errors.NewParsingError("invalid trailing data after first JSON value", err)
	}

	return root, nil
}

// decodeValue reads the next complete value. Running out of input here is
// always premature, so io.EOF is reported as io.ErrUnexpectedEOF.
func decodeValue(decoder *json.Decoder, depth int) (models.Value, error) {
	tok, err := decoder.Token()
	if err != nil {
		if stderrors.Is(err, io.EOF) {
			return models.Value{}, io.ErrUnexpectedEOF
		}
		return models.Value{}, err
	}
	return decodeToken(decoder, tok, depth)
}

// decodeToken builds the value starting at tok. depth counts the objects and
// arrays already open around it.
func decodeToken(decoder *json.Decoder, tok json.Token, depth int) (models.Value, error) {
	switch t := tok.(type) {
	case json.Delim:
		if (t == '{' || t == '[') && depth >= MaxDepth {
			return models.Value{}, errTooDeep
		}
		switch t {
		case '{':
			return decodeObject(decoder, depth+1)
		case '[':
			return decodeArray(decoder, depth+1)
		default:
			return models.Value{}, fmt.Errorf("unexpected delimiter %q", rune(t))
		}
	case string:
		return models.String(t), nil
	case json.Number:
		return models.Number(t), nil
	case bool:
		return models.Bool(t), nil
	case nil:
		return models.Null(), nil
	default:
		return models.Value{}, fmt.Errorf("unexpected token %T", tok)
	}
}

func decodeObject(decoder *json.Decoder, depth int) (models.Value, error) {
	var members []models.Member
	for decoder.More() {
		keyTok, err := decoder.Token()
		if err != nil {
			return models.Value{}, err
		}
		key, ok := keyTok.(string)
		if !ok {
			return models.Value{}, fmt.Errorf("object key must be a string, got %T", keyTok)
		}
		val, err := decodeValue(decoder, depth)
		if err != nil {
			return models.Value{}, err
		}
		members = append(members, models.Member{Key: key, Value: val})
	}
	if err := closeDelim(decoder); err != nil {
		return models.Value{}, err
	}
	return models.Object(members...), nil
}

func decodeArray(decoder *json.Decoder, depth int) (models.Value, error) {
	var elems []models.Value
	for decoder.More() {
		val, err := decodeValue(decoder, depth)
		if err != nil {
			return models.Value{}, err
		}
		elems = append(elems, val)
	}
	if err := closeDelim(decoder); err != nil {
		return models.Value{}, err
	}
	return models.Array(elems...), nil
}

func closeDelim(decoder *json.Decoder) error {
	if _, err := decoder.Token(); err != nil {
		if stderrors.Is(err, io.EOF) {
			return io.ErrUnexpectedEOF
		}
		return err
	}
	return nil
}

// classify maps decoder errors onto parsing errors.
func classify(err error) error {
	var syntaxError *json.SyntaxError
	if stderrors.As(err, &syntaxError) {
		return errors.NewParsingError(
			fmt.Sprintf("JSON syntax error at offset %d", syntaxError.Offset),
			errors.ErrInvalidJSON,
		)
	}
	if stderrors.Is(err, errTooDeep) {
		return errors.NewParsingError(
			fmt.Sprintf("JSON nesting exceeds maximum depth of %d", MaxDepth),
			errors.ErrInvalidJSON,
		)
	}
	if stderrors.Is(err, io.ErrUnexpectedEOF) {
		return errors.NewParsingError("unexpected end of JSON input", errors.ErrInvalidJSON)
	}
	return errors.NewParsingError("failed to decode JSON", err)
}

// ParseString parses JSON from a string
func ParseString(jsonString string) (models.Value, error) {
	if strings.TrimSpace(jsonString) == "" {
		return models.Value{}, errors.NewInputError("input string is empty", errors.ErrEmptyInput)
	}
	return Parse(strings.NewReader(jsonString))
}

// ParseBytes parses JSON from a byte slice
func ParseBytes(data []byte) (models.Value, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return models.Value{}, errors.NewInputError("input is empty", errors.ErrEmptyInput)
	}
	return Parse(bytes.NewReader(data))
}

// ParseFile parses JSON from a file path
func ParseFile(filePath string) (models.Value, error) {
	if strings.TrimSpace(filePath) == "" {
		return models.Value{}, errors.NewInputError("file path is empty", errors.ErrInvalidFilePath)
	}
	file, err := os.Open(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return models.Value{}, errors.NewInputError(
				fmt.Sprintf("file '%s' not found", filePath),
				errors.ErrFileNotFound,
			)
		}
		return models.Value{}, errors.NewInputError(
			fmt.Sprintf("failed to open file '%s'", filePath),
			err,
		)
	}
	defer func() {
		if err := file.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Error closing file: %v\n", err)
		}
	}()

	stat, err := file.Stat()
	if err != nil {
		return models.Value{}, errors.NewInputError(
			fmt.Sprintf("failed to get file stats for '%s'", filePath),
			err,
		)
	}
	if stat.Size() == 0 {
		return models.Value{}, errors.NewInputError(
			fmt.Sprintf("input file '%s' is empty", filePath),
			errors.ErrFileEmpty,
		)
	}

	return Parse(file)
}

// FromGo converts any value encoding/json can marshal into a models.Value.
// A models.Value is returned as is.
func FromGo(v any) (models.Value, error) {
	switch val := v.(type) {
	case models.Value:
		return val, nil
	case *models.Value:
		if val == nil {
			return models.Null(), nil
		}
		return *val, nil
	case json.RawMessage:
		return ParseBytes(val)
	}
	data, err := json.Marshal(v)
	if err != nil {
		return models.Value{}, errors.NewParsingError(fmt.Sprintf("failed to encode %T as JSON", v), err)
	}
	return Parse(bytes.NewReader(data))
}

// Encode renders v as JSON text, optionally indented with two spaces.
func Encode(v models.Value, indent bool) ([]byte, error) {
	data, err := v.MarshalJSON()
	if err != nil {
		return nil, errors.NewOutputError("failed to encode JSON", err)
	}
	if !indent {
		return data, nil
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return nil, errors.NewOutputError("failed to indent JSON", err)
	}
	return buf.Bytes(), nil
}
