// Contracts shared between the typed deserializer, the backing formats
// and the dynamic properties deserializer.
package shared

import (
	"reflect"
	"sort"
	"strconv"
)

// A value in a decoded tree.
//
// We use this type instead of raw type conversions to decrease the risk
// of confusion whenever manipulating `any` and to allow formats to expose
// their data without committing to a Go representation.
type Value interface {
	AsDict() (Dict, bool)
	AsSlice() ([]Value, bool)
	Interface() any
}

// A dictionary.
type Dict interface {
	Lookup(key string) (Value, bool)
	AsValue() Value
	Keys() []string
}

// A type that can decode itself from a `Value`.
//
// Implement it on pointers.
type UnmarshalValue interface {
	UnmarshalValue(Value) error
}

// The shape of the root of a stream.
type Kind int

const (
	// A container of named entries.
	KindMap Kind = iota
	// A container of positional entries.
	KindSeq
)

func (k Kind) String() string {
	switch k {
	case KindMap:
		return "map"
	case KindSeq:
		return "seq"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Invoked by a `Stream` whenever it crosses a value boundary.
//
// `name` is the raw annotation preceding the value, or `nil` if the value
// carries none. The bytes are only valid for the duration of the call.
//
// Returning an error aborts the stream.
type TypeNameHook func(name []byte) error

// Receives the contents of the root container of a stream.
type ContainerVisitor interface {
	// The root container was opened.
	VisitContainer(kind Kind) error

	// An entry of the root container was decoded.
	//
	// `key` is the entry name for maps and the decimal position for sequences.
	VisitEntry(key string, value Value) error
}

// An incremental parser over a single input.
//
// A stream reports each boundary to its hook before handing the value over:
// once for the root and once per entry of the root container. Annotations nested
// inside an entry stay inside the entry and are not reported.
//
// Streams are single-use and not safe for concurrent use.
type Stream interface {
	// Install the hook. Must be called before driving the stream.
	//
	// Passing `nil` uninstalls the hook.
	SetTypeNameHook(TypeNameHook)

	// Decode the root as a container, entry by entry.
	DriveContainer(ContainerVisitor) error

	// Decode the root as a single value.
	DriveValue(func(Value) error) error
}

// Wrap a native tree (`map[string]any`, `[]any`, scalars) as a `Value`.
func Wrap(native any) Value {
	return nativeValue{wrapped: native}
}

type nativeValue struct {
	wrapped any
}

func (v nativeValue) AsDict() (Dict, bool) {
	if dict, ok := v.wrapped.(map[string]any); ok {
		return nativeDict(dict), true
	}
	return nil, false
}

func (v nativeValue) AsSlice() ([]Value, bool) {
	if wrapped, ok := v.wrapped.([]any); ok {
		result := make([]Value, len(wrapped))
		for i, value := range wrapped {
			result[i] = nativeValue{wrapped: value}
		}
		return result, true
	}
	return nil, false
}

func (v nativeValue) Interface() any {
	return v.wrapped
}

var _ Value = nativeValue{} //nolint:exhaustruct

type nativeDict map[string]any

func (dict nativeDict) Lookup(key string) (Value, bool) {
	if val, ok := dict[key]; ok {
		return nativeValue{wrapped: val}, true
	}
	return nil, false
}

func (dict nativeDict) AsValue() Value {
	return nativeValue{wrapped: map[string]any(dict)}
}

// Keys, sorted, so that error reporting is deterministic.
func (dict nativeDict) Keys() []string {
	keys := make([]string, 0, len(dict))
	for k := range dict {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

var _ Dict = nativeDict{}

// A parser for strings into primitive values.
//
// Only used to interpret `default:"..."` tags.
type Parser func(source string) (any, error)

// Find a parser for a primitive kind, or nil if there is none.
func LookupParser(fieldType reflect.Type) *Parser {
	var p Parser
	switch fieldType.Kind() {
	case reflect.Bool:
		p = func(source string) (any, error) {
			return strconv.ParseBool(source) //nolint:wrapcheck
		}
	case reflect.Float32, reflect.Float64:
		bits := fieldType.Bits()
		p = func(source string) (any, error) {
			return strconv.ParseFloat(source, bits) //nolint:wrapcheck
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits := fieldType.Bits()
		p = func(source string) (any, error) {
			return strconv.ParseInt(source, 0, bits) //nolint:wrapcheck
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		bits := fieldType.Bits()
		p = func(source string) (any, error) {
			return strconv.ParseUint(source, 0, bits) //nolint:wrapcheck
		}
	case reflect.String:
		p = func(source string) (any, error) {
			return source, nil
		}
	default:
		return nil
	}
	return &p
}
