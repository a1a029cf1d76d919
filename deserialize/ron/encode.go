package ron

import (
	"bytes"
	"encoding"
	"fmt"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"

	"github.com/pasqal-io/dynprops/deserialize/shared"
	tagsPkg "github.com/pasqal-io/dynprops/deserialize/tags"
)

// The tag used to rename struct fields.
const fieldTag = "prop"

// A named entry of a `Bag`.
type Entry struct {
	Key string
	// The annotation written before the value, possibly empty.
	TypeName string
	Value    any
}

// A container of annotated entries, written as the root of a document
// (or nested, as the value of an entry).
type Bag struct {
	// The annotation of the container, possibly empty.
	Name    string
	Kind    shared.Kind
	Entries []Entry
}

// Write `value`, annotated with `name` unless `name` is empty.
//
// Structs are written `Name(field: value, ...)`, other values as newtypes
// `Name(value)`.
func Marshal(name string, value any) ([]byte, error) {
	return MarshalIndent(name, value, "")
}

// Like `Marshal`, with one entry per line, each level indented by `indent`.
func MarshalIndent(name string, value any, indent string) ([]byte, error) {
	enc := encoder{indent: indent}
	if err := enc.annotated(name, reflect.ValueOf(value), 0); err != nil {
		return nil, err
	}
	return enc.buf.Bytes(), nil
}

// Write a bag.
//
// Keyed bags use struct syntax when every key is an identifier and map syntax
// otherwise. Map syntax carries no annotation, so `Name` is lost.
func MarshalBag(bag Bag, indent string) ([]byte, error) {
	enc := encoder{indent: indent}
	if err := enc.bag(bag, 0); err != nil {
		return nil, err
	}
	return enc.buf.Bytes(), nil
}

type encoder struct {
	buf    bytes.Buffer
	indent string
}

var textMarshalerInterface = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
var bagType = reflect.TypeOf(Bag{}) //nolint:exhaustruct

func (e *encoder) newline(depth int) {
	e.buf.WriteByte('\n')
	for i := 0; i < depth; i++ {
		e.buf.WriteString(e.indent)
	}
}

// Write `n` items between `open` and `closing`.
func (e *encoder) list(open, closing byte, n int, depth int, item func(i int) error) error {
	e.buf.WriteByte(open)
	if n == 0 {
		e.buf.WriteByte(closing)
		return nil
	}
	for i := 0; i < n; i++ {
		if e.indent != "" {
			e.newline(depth + 1)
		} else if i > 0 {
			e.buf.WriteByte(' ')
		}
		if err := item(i); err != nil {
			return err
		}
		if e.indent != "" || i < n-1 {
			e.buf.WriteByte(',')
		}
	}
	if e.indent != "" {
		e.newline(depth)
	}
	e.buf.WriteByte(closing)
	return nil
}

func (e *encoder) bag(bag Bag, depth int) error {
	write := func(i int) error {
		entry := bag.Entries[i]
		return e.annotated(entry.TypeName, reflect.ValueOf(entry.Value), depth+1)
	}
	switch {
	case bag.Kind == shared.KindSeq:
		if bag.Name == "" {
			return e.list('[', ']', len(bag.Entries), depth, write)
		}
		e.buf.WriteString(bag.Name)
		return e.list('(', ')', len(bag.Entries), depth, write)
	case allIdentifiers(bag.Entries):
		e.buf.WriteString(bag.Name)
		return e.list('(', ')', len(bag.Entries), depth, func(i int) error {
			e.buf.WriteString(bag.Entries[i].Key)
			e.buf.WriteString(": ")
			return write(i)
		})
	default:
		return e.list('{', '}', len(bag.Entries), depth, func(i int) error {
			e.buf.WriteString(strconv.Quote(bag.Entries[i].Key))
			e.buf.WriteString(": ")
			return write(i)
		})
	}
}

func allIdentifiers(entries []Entry) bool {
	for _, entry := range entries {
		if !IsIdentifier(entry.Key) {
			return false
		}
	}
	return true
}

// `true` if `name` can be written unquoted, as a field name or annotation.
func IsIdentifier(name string) bool {
	if name == "" || isKeyword([]byte(name)) {
		return false
	}
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z'):
		case i > 0 && isDigit(c):
		default:
			return false
		}
	}
	return true
}

func (e *encoder) annotated(name string, value reflect.Value, depth int) error {
	for value.IsValid() && value.Kind() == reflect.Interface {
		value = value.Elem()
	}
	if name != "" && !IsIdentifier(name) {
		return fmt.Errorf("cannot write annotation %q", name)
	}
	if !value.IsValid() {
		if name == "" {
			e.buf.WriteString("None")
		} else {
			e.buf.WriteString(name)
		}
		return nil
	}
	if value.Type() == bagType {
		bag, _ := value.Interface().(Bag)
		if name != "" {
			bag.Name = name
		}
		return e.bag(bag, depth)
	}
	if value.Kind() == reflect.Struct && !value.Type().Implements(textMarshalerInterface) {
		fields := e.fields(value)
		if name != "" && len(fields) == 0 {
			// A unit struct.
			e.buf.WriteString(name)
			return nil
		}
		e.buf.WriteString(name)
		return e.structBody(fields, depth)
	}
	if name == "" {
		return e.value(value, depth)
	}
	e.buf.WriteString(name)
	e.buf.WriteByte('(')
	if err := e.value(value, depth); err != nil {
		return err
	}
	e.buf.WriteByte(')')
	return nil
}

type field struct {
	name  string
	value reflect.Value
}

// The public fields of a struct, flattened fields inlined.
func (e *encoder) fields(value reflect.Value) []field {
	typ := value.Type()
	result := make([]field, 0, typ.NumField())
	for i := 0; i < typ.NumField(); i++ {
		structField := typ.Field(i)
		if !structField.IsExported() {
			continue
		}
		tags, err := tagsPkg.Parse(structField.Tag)
		if err != nil {
			continue
		}
		name := structField.Name
		if renamed := tags.PublicFieldName(fieldTag); renamed != nil {
			name = *renamed
		}
		if name == "-" {
			continue
		}
		fieldValue := value.Field(i)
		if tags.IsFlattened() || structField.Anonymous {
			for fieldValue.Kind() == reflect.Pointer {
				if fieldValue.IsNil() {
					break
				}
				fieldValue = fieldValue.Elem()
			}
			if fieldValue.Kind() == reflect.Struct {
				result = append(result, e.fields(fieldValue)...)
			}
			continue
		}
		result = append(result, field{name: name, value: fieldValue})
	}
	return result
}

func (e *encoder) structBody(fields []field, depth int) error {
	return e.list('(', ')', len(fields), depth, func(i int) error {
		e.buf.WriteString(fields[i].name)
		e.buf.WriteString(": ")
		return e.value(fields[i].value, depth+1)
	})
}

// Write an unannotated value.
func (e *encoder) value(value reflect.Value, depth int) error {
	if !value.IsValid() {
		e.buf.WriteString("None")
		return nil
	}
	if value.Type() == bagType {
		bag, _ := value.Interface().(Bag)
		return e.bag(bag, depth)
	}
	if value.Type().Implements(textMarshalerInterface) && (value.Kind() != reflect.Pointer || !value.IsNil()) {
		text, err := value.Interface().(encoding.TextMarshaler).MarshalText()
		if err != nil {
			return fmt.Errorf("cannot write %s:\n\t * %w", value.Type(), err)
		}
		e.buf.WriteString(strconv.Quote(string(text)))
		return nil
	}
	switch value.Kind() {
	case reflect.Bool:
		e.buf.WriteString(strconv.FormatBool(value.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		e.buf.WriteString(strconv.FormatInt(value.Int(), 10))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		e.buf.WriteString(strconv.FormatUint(value.Uint(), 10))
	case reflect.Float32, reflect.Float64:
		e.buf.WriteString(formatFloat(value.Float(), value.Type().Bits()))
	case reflect.String:
		e.buf.WriteString(strconv.Quote(value.String()))
	case reflect.Pointer:
		if value.IsNil() {
			e.buf.WriteString("None")
			return nil
		}
		e.buf.WriteString("Some(")
		if err := e.value(value.Elem(), depth); err != nil {
			return err
		}
		e.buf.WriteByte(')')
	case reflect.Interface:
		if value.IsNil() {
			e.buf.WriteString("None")
			return nil
		}
		return e.value(value.Elem(), depth)
	case reflect.Slice, reflect.Array:
		return e.list('[', ']', value.Len(), depth, func(i int) error {
			return e.value(value.Index(i), depth+1)
		})
	case reflect.Map:
		if value.Type().Key().Kind() != reflect.String {
			return fmt.Errorf("cannot write %s, only maps with string keys are supported", value.Type())
		}
		keys := make([]string, 0, value.Len())
		for _, key := range value.MapKeys() {
			keys = append(keys, key.String())
		}
		sort.Strings(keys)
		return e.list('{', '}', len(keys), depth, func(i int) error {
			e.buf.WriteString(strconv.Quote(keys[i]))
			e.buf.WriteString(": ")
			return e.value(value.MapIndex(reflect.ValueOf(keys[i]).Convert(value.Type().Key())), depth+1)
		})
	case reflect.Struct:
		return e.structBody(e.fields(value), depth)
	default:
		return fmt.Errorf("cannot write a value of type %s", value.Type())
	}
	return nil
}

// Floats always carry a `.` or an exponent, so that they read back as floats.
func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	text := strconv.FormatFloat(f, 'g', -1, bits)
	if !strings.ContainsAny(text, ".e") {
		text += ".0"
	}
	return text
}
