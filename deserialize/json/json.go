// Code specific to deserializing JSON.
//
// JSON has no syntax for type annotations, so annotated entries are written
// externally tagged: `{"Vec3": {"x": 1.0}}` is a `Vec3` holding `{"x": 1.0}`.
// The root itself is never annotated.
package json

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/pasqal-io/dynprops/deserialize/shared"
)

// A streaming reader of a single JSON document.
type Stream struct {
	decoder  *json.Decoder
	hook     shared.TypeNameHook
	consumed bool
}

// Open a stream over `input`.
//
// Fails if `input` holds no JSON value at all.
func NewStream(input []byte) (*Stream, error) {
	if len(bytes.TrimSpace(input)) == 0 {
		return nil, errors.New("json: empty document")
	}
	decoder := json.NewDecoder(bytes.NewReader(input))
	decoder.UseNumber()
	return &Stream{
		decoder:  decoder,
		hook:     nil,
		consumed: false,
	}, nil
}

func (s *Stream) SetTypeNameHook(hook shared.TypeNameHook) {
	s.hook = hook
}

func (s *Stream) report(name []byte) error {
	if s.hook == nil {
		return nil
	}
	return s.hook(name)
}

var errConsumed = errors.New("json: stream already consumed")

func (s *Stream) DriveContainer(visitor shared.ContainerVisitor) error {
	if s.consumed {
		return errConsumed
	}
	s.consumed = true

	token, err := s.decoder.Token()
	if err != nil {
		return wrap(err)
	}
	delim, ok := token.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return fmt.Errorf("json: expected an object or an array at the root, got %s", describeToken(token))
	}
	if err = s.report(nil); err != nil {
		return err
	}
	kind := shared.KindMap
	if delim == '[' {
		kind = shared.KindSeq
	}
	if err = visitor.VisitContainer(kind); err != nil {
		return err
	}

	for index := 0; s.decoder.More(); index++ {
		key := strconv.Itoa(index)
		if kind == shared.KindMap {
			token, err = s.decoder.Token()
			if err != nil {
				return wrap(err)
			}
			key, _ = token.(string)
		}
		var raw any
		if err = s.decoder.Decode(&raw); err != nil {
			return wrap(err)
		}
		name, body := untag(normalize(raw))
		if err = s.report(name); err != nil {
			return err
		}
		if err = visitor.VisitEntry(key, shared.Wrap(body)); err != nil {
			return err
		}
	}
	// The closing delimiter.
	if _, err = s.decoder.Token(); err != nil {
		return wrap(err)
	}
	return s.finish()
}

// Decode the root as a single, externally tagged value.
func (s *Stream) DriveValue(callback func(shared.Value) error) error {
	if s.consumed {
		return errConsumed
	}
	s.consumed = true

	var raw any
	if err := s.decoder.Decode(&raw); err != nil {
		return wrap(err)
	}
	name, body := untag(normalize(raw))
	if err := s.report(name); err != nil {
		return err
	}
	if err := s.finish(); err != nil {
		return err
	}
	return callback(shared.Wrap(body))
}

// Ensure that nothing follows the root value.
func (s *Stream) finish() error {
	if _, err := s.decoder.Token(); !errors.Is(err, io.EOF) {
		if err != nil {
			return wrap(err)
		}
		return errors.New("json: trailing data after the root value")
	}
	return nil
}

// Split an externally tagged value into its annotation and its body.
//
// Anything but a single-key object carries no annotation.
func untag(value any) ([]byte, any) {
	object, ok := value.(map[string]any)
	if !ok || len(object) != 1 {
		return nil, value
	}
	for name, body := range object {
		return []byte(name), body
	}
	return nil, value
}

// Turn `json.Number`s into `int64` when they are integers, `uint64` when
// they are integers past MaxInt64 and `float64` otherwise, recursively.
func normalize(value any) any {
	switch v := value.(type) {
	case json.Number:
		if !strings.ContainsAny(string(v), ".eE") {
			if i, err := v.Int64(); err == nil {
				return i
			}
			if u, err := strconv.ParseUint(string(v), 10, 64); err == nil {
				return u
			}
		}
		if f, err := v.Float64(); err == nil {
			return f
		}
		return string(v)
	case map[string]any:
		for key, field := range v {
			v[key] = normalize(field)
		}
		return v
	case []any:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	default:
		return value
	}
}

func describeToken(token json.Token) string {
	switch t := token.(type) {
	case json.Delim:
		return strconv.QuoteRune(rune(t))
	case nil:
		return "null"
	case string:
		return "a string"
	case json.Number:
		return "a number"
	case bool:
		return "a boolean"
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Attempt to intercept errors that leak implementation details.
func wrap(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errors.New("json: unexpected end of input")
	}
	syntaxErr := new(json.SyntaxError)
	if errors.As(err, &syntaxErr) {
		return fmt.Errorf("json: %s at offset %d", syntaxErr.Error(), syntaxErr.Offset)
	}
	return fmt.Errorf("json: %w", err)
}

var _ shared.Stream = &Stream{} //nolint:exhaustruct
