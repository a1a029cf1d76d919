// Typed deserialization from format-agnostic `shared.Value` trees.
//
// This is the structured-decode routine behind each registry entry: for a
// Go type `T`, `MakeValueDeserializer[T]` inspects `T` once, using reflection,
// and produces a deserializer that can then be run on any number of values,
// whichever format they were read from.
//
// # Recommended use
//
// If you have a struct `Vec3` that you wish to deserialize:
//
//   - To define default values for fields (in particular private fields), implement `Initializer`
//
//     func (result *Vec3) Initialize() error {
//     result.W = 1
//     return nil
//     }
//
//   - To define a validator, implement `Validator`
//
//     func (result *Vec3) Validate() error {
//     if math.IsNaN(float64(result.X)) {
//     return errors.New("X is NaN") // The error will be visible to end users.
//     }
//     return nil
//     }
//
// (apologies for weird formatting, please blame gofmt)
//
// Same behavior as the standard library:
//   - lower-case field names never accept external data;
//   - `prop:"XXXX"` renames a field (the tag name is configurable);
//   - a field renamed to `prop:"-"` never accepts external data;
//   - types implementing `encoding.TextUnmarshaler` are read from strings.
//
// Different behavior:
//   - a missing field is an error, unless it has a `default:"XXX"` tag, an `orMethod:"XXX"`
//     tag, or its struct implements `Initializer`;
//   - numbers are never silently converted to strings or booleans, and a non-integral or
//     out-of-range number is rejected for an integer field;
//   - with `RejectUnknownFields`, an entry that no field consumes is an error;
//   - types implementing `shared.UnmarshalValue` read the value themselves;
//   - `Validator` runs during deserialization;
//   - we attempt to detect errors early and fail when setting up the deserializer, instead
//     of failing during deserialization.
package deserialize

import (
	"encoding"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"sort"
	"strings"

	"github.com/pasqal-io/dynprops/deserialize/internal"
	"github.com/pasqal-io/dynprops/deserialize/shared"
	tagsPkg "github.com/pasqal-io/dynprops/deserialize/tags"
	"github.com/pasqal-io/dynprops/validation"
)

// -------- Public API --------

// Options for building a deserializer.
//
// See also PropertyOptions for reasonable default values.
type Options struct {
	// The name of tags used for renamings (e.g. "prop").
	//
	// If you leave this blank, defaults to "prop".
	MainTagName string

	// Human-readable information on the nature of data
	// you'll be deserializing with this deserializer.
	//
	// Used for error messages. Optional.
	RootPath string

	// If `true`, a struct rejects dictionary entries that none of its
	// fields consume.
	RejectUnknownFields bool
}

// The tag used for renamings by default.
const PropertyTag = "prop"

// A preset fit for property types.
//
// Params:
//   - root A human-readable root (e.g. the short name of the type). Used only
//     for error reporting. `""` is a perfectly acceptable root.
func PropertyOptions(root string) Options {
	return Options{
		MainTagName:         PropertyTag,
		RootPath:            root,
		RejectUnknownFields: true,
	}
}

// A deserializer from values.
type ValueDeserializer[To any] interface {
	// Deserialize a single value.
	DeserializeValue(shared.Value) (*To, error)
	// Deserialize a list of values.
	DeserializeList([]shared.Value) ([]To, error)
}

// A deserializer from values, for types only known at runtime.
type ValueReflectDeserializer interface {
	// Deserialize a value into `out`, which must be settable and have the
	// type the deserializer was built for.
	DeserializeValueTo(shared.Value, *reflect.Value) error
}

// Create a deserializer for `T`.
func MakeValueDeserializer[T any](options Options) (ValueDeserializer[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	wrapped, err := makeOuterDeserializer(options, typ)
	if err != nil {
		return nil, err
	}
	return valueDeserializer[T]{
		deserializer: wrapped,
	}, nil
}

// Create a deserializer for `typ`.
func MakeValueDeserializerFromReflect(options Options, typ reflect.Type) (ValueReflectDeserializer, error) {
	if typ == nil {
		return nil, errors.New("cannot create a deserializer for a nil type")
	}
	wrapped, err := makeOuterDeserializer(options, typ)
	if err != nil {
		return nil, err
	}
	return valueReflectDeserializer{
		reflectDeserializer: wrapped,
		typ:                 typ,
	}, nil
}

// An error that arises because of a bug in a custom initializer or constructor.
type CustomDeserializerError struct {
	// The operation that failed, e.g. "initializer", "orMethod", "unmarshalValue".
	Operation string

	// The kind of value we were applying it to, e.g. "struct", "map", "ptr", "field".
	Structure string

	// The underlying error.
	Wrapped error
}

// Return the user-facing message.
func (e CustomDeserializerError) Error() string {
	return e.Wrapped.Error()
}

// Unwrap the error.
func (e CustomDeserializerError) Unwrap() error {
	return e.Wrapped
}

var _ error = CustomDeserializerError{} //nolint:exhaustruct

// ----------------- Private

type innerOptions struct {
	// The name of tag used for renamings (e.g. "prop").
	renamingTagName string

	// If `true`, reject entries that no field consumes.
	rejectUnknownFields bool

	// `true` while compiling the contents of a flattened field, whose
	// dictionary is shared with the enclosing struct.
	flattened bool
}

type valueDeserializer[T any] struct {
	deserializer reflectDeserializer
}

func (me valueDeserializer[T]) DeserializeValue(value shared.Value) (*T, error) {
	out := new(T)
	slot := reflect.ValueOf(out).Elem()
	if err := me.deserializer(&slot, value); err != nil {
		return nil, err
	}
	return out, nil
}

func (me valueDeserializer[T]) DeserializeList(list []shared.Value) ([]T, error) {
	result := make([]T, 0, len(list))
	for i, entry := range list {
		out, err := me.DeserializeValue(entry)
		if err != nil {
			return []T{}, fmt.Errorf("failed to deserialize entry %d: \n\t * %w", i, err)
		}
		result = append(result, *out)
	}
	return result, nil
}

type valueReflectDeserializer struct {
	reflectDeserializer reflectDeserializer
	typ                 reflect.Type
}

func (me valueReflectDeserializer) DeserializeValueTo(value shared.Value, out *reflect.Value) error {
	if !out.CanSet() || out.Type() != me.typ {
		return fmt.Errorf("cannot deserialize a %s into this slot", typeName(me.typ))
	}
	return me.reflectDeserializer(out, value)
}

// A type of deserializers using reflection to perform any conversions.
//
// `data` is `nil` if the value is absent.
type reflectDeserializer func(slot *reflect.Value, data shared.Value) error

var initializerInterface = reflect.TypeOf((*validation.Initializer)(nil)).Elem()
var validatorInterface = reflect.TypeOf((*validation.Validator)(nil)).Elem()
var unmarshalValueInterface = reflect.TypeOf((*shared.UnmarshalValue)(nil)).Elem()
var textUnmarshalerInterface = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()

// The interface `error`.
var errorInterface = reflect.TypeOf((*error)(nil)).Elem()

func makeOuterDeserializer(options Options, typ reflect.Type) (reflectDeserializer, error) {
	tagName := options.MainTagName
	if tagName == "" {
		tagName = PropertyTag
	}
	inner := innerOptions{
		renamingTagName:     tagName,
		rejectUnknownFields: options.RejectUnknownFields,
	}
	path := typeName(typ)
	if options.RootPath != "" && options.RootPath != path {
		path = fmt.Sprint(options.RootPath, ".", path)
	}

	// The outer value can't have any tags attached.
	noTags := tagsPkg.Empty()
	container := reflect.New(typ)
	return makeFieldDeserializerFromReflect(path, typ, inner, &noTags, container, false)
}

// A struct field, compiled.
type fieldDeserializer struct {
	name        string
	deserialize func(outPtr *reflect.Value, inMap shared.Dict) error
}

// Construct a dynamically-typed deserializer for structs.
//
//   - `path` the human-readable path into the data structure, used for error-reporting;
//   - `typ` the dynamic type for the struct being compiled;
//   - `tags` the table of tags for this field;
//   - `wasPreinitialized` if this value was preinitialized, typically through `Initializer`.
func makeStructDeserializerFromReflect(path string, typ reflect.Type, options innerOptions, tags *tagsPkg.Tags, container reflect.Value, wasPreInitialized bool) (reflectDeserializer, error) {
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("invalid call to StructDeserializer: %s is not a struct", path)
	}
	selfContainer := reflect.New(typ)
	fields := make([]fieldDeserializer, 0, typ.NumField())
	checkUnknown := options.rejectUnknownFields && !options.flattened
	options.flattened = false
	accepted := make(map[string]struct{})

	initializationData, err := initializationData(path, typ)
	if err != nil {
		return nil, err
	}

	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldType := field.Type
		fieldTags, err := tagsPkg.Parse(field.Tag)
		if err != nil {
			return nil, fmt.Errorf("failed to parse tags at %s.%s:\n\t * %w", path, field.Name, err)
		}
		fieldNativeName := field.Name

		// Extract the public field name (that's the content of `prop:"XXX"`).
		// We use it both for deserialization and for error messages, as we expect
		// error messages to be read by whoever wrote the data.
		publicFieldName := fieldTags.PublicFieldName(options.renamingTagName)
		if publicFieldName == nil {
			publicFieldName = &fieldNativeName
		}

		willPreinitialize := initializationData.willPreinitialize || wasPreInitialized || fieldTags.IsPreinitialized()

		// By Go convention, a field with lower-case name or with a publicFieldName of "-" is private and
		// does not accept external data. It keeps whatever value `Initialize()` gave it.
		isPublic := (*publicFieldName != "-") && field.IsExported()
		if !isPublic {
			if !willPreinitialize {
				return nil, fmt.Errorf("struct %s contains a field \"%s\" that is not public and not pre-initialized, you should either make it public or implement `Initializer`", path, fieldNativeName)
			}
			continue
		}

		fieldPath := fmt.Sprint(path, ".", *publicFieldName)

		var deserialize func(*reflect.Value, shared.Dict) error
		if fieldTags.IsFlattened() || field.Anonymous {
			// The contents of that struct are pulled from *the same* dictionary.
			flatOptions := options
			flatOptions.flattened = true
			fieldContentDeserializer, err := makeFieldDeserializerFromReflect(fieldPath, fieldType, flatOptions, &fieldTags, selfContainer, willPreinitialize)
			if err != nil {
				return nil, err
			}
			collectAcceptedKeys(fieldType, options, accepted)

			deserialize = func(outPtr *reflect.Value, inMap shared.Dict) error {
				outReflect := outPtr.FieldByName(fieldNativeName)
				return fieldContentDeserializer(&outReflect, inMap.AsValue())
			}
		} else {
			// The field is nested, so we move into the corresponding entry.
			fieldContentDeserializer, err := makeFieldDeserializerFromReflect(fieldPath, fieldType, options, &fieldTags, selfContainer, willPreinitialize)
			if err != nil {
				return nil, err
			}
			publicName := *publicFieldName
			accepted[publicName] = struct{}{}

			deserialize = func(outPtr *reflect.Value, inMap shared.Dict) error {
				outReflect := outPtr.FieldByName(fieldNativeName)
				fieldValue, ok := inMap.Lookup(publicName)
				if !ok {
					fieldValue = nil
				}
				return fieldContentDeserializer(&outReflect, fieldValue)
			}
		}
		fields = append(fields, fieldDeserializer{
			name:        fieldNativeName,
			deserialize: deserialize,
		})
	}

	// True if this struct has a default value of {}.
	isZeroDefault := false
	if defaultSource := tags.Default(); defaultSource != nil {
		if *defaultSource == "{}" {
			isZeroDefault = true
		} else {
			return nil, fmt.Errorf("at %s, invalid `default` value. The only supported `default` value for structs is \"{}\", got: %s", path, *defaultSource)
		}
	}
	orMethod, err := makeOrMethodConstructor(tags, typ, container)
	if err != nil {
		return nil, fmt.Errorf("at %s, failed to setup `orMethod`\n\t * %w", path, err)
	}

	result := func(outPtr *reflect.Value, inValue shared.Value) error {
		resultPtr := reflect.New(typ)
		result := resultPtr.Elem()

		switch {
		case inValue != nil:
			// We have all the data we need, proceed.
		case wasPreInitialized:
			// No value? That's ok, our container already holds one.
			return nil
		case orMethod != nil:
			constructed, err := (*orMethod)()
			if err != nil {
				err = fmt.Errorf("error in optional value at %s\n\t * %w", path, err)
				slog.Error("Internal error during deserialization", "error", err)
				return CustomDeserializerError{
					Wrapped:   err,
					Operation: "orMethod",
					Structure: "struct",
				}
			}
			outPtr.Set(reflect.ValueOf(constructed))
			return nil
		case isZeroDefault || initializationData.canInitializeSelf:
			// Fields fall back to their own defaults.
			inValue = internal.EmptyValue{}
		default:
			return fmt.Errorf("missing value at %s, expected %s", path, typeName(typ))
		}

		inMap, ok := inValue.AsDict()
		if !ok {
			return fmt.Errorf("invalid value at %s, expected an object of type %s, got %s", path, typeName(typ), describe(inValue))
		}

		// If possible, perform pre-initialization with default values.
		if initializationData.canInitializeSelf {
			if initializer, ok := resultPtr.Interface().(validation.Initializer); ok {
				if err := initializer.Initialize(); err != nil {
					err = fmt.Errorf("at %s, encountered an error while initializing optional fields:\n\t * %w", path, err)
					slog.Error("Internal error during deserialization", "error", err)
					return CustomDeserializerError{
						Wrapped:   err,
						Operation: "initializer",
						Structure: "struct",
					}
				}
			}
		}

		for _, field := range fields {
			if err := field.deserialize(&result, inMap); err != nil {
				return err
			}
		}
		if checkUnknown {
			if err := rejectUnknown(path, typ, inMap, accepted); err != nil {
				return err
			}
		}
		return finishStruct(path, outPtr, resultPtr)
	}
	return result, nil
}

// Run validation, then store the struct.
func finishStruct(path string, outPtr *reflect.Value, resultPtr reflect.Value) error {
	if validator, ok := resultPtr.Interface().(validation.Validator); ok {
		if err := validator.Validate(); err != nil {
			return validation.WrapError(path, err)
		}
	}
	outPtr.Set(resultPtr.Elem())
	return nil
}

func rejectUnknown(path string, typ reflect.Type, inMap shared.Dict, accepted map[string]struct{}) error {
	for _, key := range inMap.Keys() {
		if _, ok := accepted[key]; ok {
			continue
		}
		expected := make([]string, 0, len(accepted))
		for k := range accepted {
			expected = append(expected, k)
		}
		sort.Strings(expected)
		return fmt.Errorf("unknown field %q at %s, %s expects one of [%s]", key, path, typeName(typ), strings.Join(expected, ", "))
	}
	return nil
}

// Record the entries a flattened field consumes from the enclosing dictionary.
func collectAcceptedKeys(typ reflect.Type, options innerOptions, into map[string]struct{}) {
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		return
	}
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		fieldTags, err := tagsPkg.Parse(field.Tag)
		if err != nil {
			// We have already failed when compiling this field.
			continue
		}
		name := field.Name
		if renamed := fieldTags.PublicFieldName(options.renamingTagName); renamed != nil {
			name = *renamed
		}
		if name == "-" || !field.IsExported() {
			continue
		}
		if fieldTags.IsFlattened() || field.Anonymous {
			collectAcceptedKeys(field.Type, options, into)
			continue
		}
		into[name] = struct{}{}
	}
}

// Construct a dynamically-typed deserializer for maps.
//
//   - `path` the human-readable path into the data structure, used for error-reporting;
//   - `typ` the dynamic type for the map being compiled;
//   - `tags` the table of tags for this field;
//   - `wasPreinitialized` if this value was preinitialized, typically through `Initializer`.
func makeMapDeserializerFromReflect(path string, typ reflect.Type, options innerOptions, tags *tagsPkg.Tags, container reflect.Value, wasPreInitialized bool) (reflectDeserializer, error) {
	if typ.Kind() != reflect.Map {
		panic(fmt.Sprintf("invalid call: %s is not a map", path))
	}
	if typ.Key().Kind() != reflect.String {
		return nil, fmt.Errorf("invalid map type at %s, only map[string]T can be converted into a deserializer", path)
	}

	// From this point, we know that it's a `map[string]T` for some `T`.
	options.flattened = false
	selfContainer := reflect.New(typ)
	subPath := path + "[]"
	subTags := tagsPkg.Empty()
	subTyp := typ.Elem()
	contentDeserializer, err := makeFieldDeserializerFromReflect(subPath, subTyp, options, &subTags, selfContainer, false)
	if err != nil {
		return nil, err
	}

	// True if this map has a default value of {}.
	isZeroDefault := false
	if defaultSource := tags.Default(); defaultSource != nil {
		if *defaultSource == "{}" {
			isZeroDefault = true
		} else {
			return nil, fmt.Errorf("at %s, invalid `default` value. The only supported `default` value for maps is \"{}\", got: %s", path, *defaultSource)
		}
	}
	orMethod, err := makeOrMethodConstructor(tags, typ, container)
	if err != nil {
		return nil, fmt.Errorf("at %s, failed to setup `orMethod`\n\t * %w", path, err)
	}

	result := func(outPtr *reflect.Value, inValue shared.Value) error {
		// No validation, as we can't implement Validator on a map.
		switch {
		case inValue != nil:
			// We have all the data we need, proceed.
		case wasPreInitialized:
			return nil
		case isZeroDefault:
			inValue = internal.EmptyValue{}
		case orMethod != nil:
			constructed, err := (*orMethod)()
			if err != nil {
				err = fmt.Errorf("error in optional value at %s\n\t * %w", path, err)
				slog.Error("Internal error during deserialization", "error", err)
				return CustomDeserializerError{
					Wrapped:   err,
					Operation: "orMethod",
					Structure: "map",
				}
			}
			outPtr.Set(reflect.ValueOf(constructed))
			return nil
		default:
			return fmt.Errorf("missing value at %s, expected %s", path, typeName(typ))
		}

		inMap, ok := inValue.AsDict()
		if !ok {
			return fmt.Errorf("invalid value at %s, expected an object of type %s, got %s", path, typeName(typ), describe(inValue))
		}

		result := reflect.MakeMapWithSize(typ, len(inMap.Keys()))
		for _, k := range inMap.Keys() {
			subInValue, ok := inMap.Lookup(k)
			if !ok {
				slog.Error("Internal error while ranging over map: missing value", "path", path, "key", k)
				// Hobble on.
				continue
			}

			reflectedContent := reflect.New(subTyp).Elem()
			if err := contentDeserializer(&reflectedContent, subInValue); err != nil {
				return err
			}
			result.SetMapIndex(reflect.ValueOf(k).Convert(typ.Key()), reflectedContent)
		}

		outPtr.Set(result)
		return nil
	}
	return result, nil
}

// Construct a dynamically-typed deserializer for slices and arrays.
//
//   - `fieldPath` the human-readable path into the data structure, used for error-reporting;
//   - `fieldType` the dynamic type for the slice being compiled;
//   - `tags` the table of tags for this field.
func makeSliceDeserializer(fieldPath string, fieldType reflect.Type, options innerOptions, tags *tagsPkg.Tags, container reflect.Value, wasPreinitialized bool) (reflectDeserializer, error) {
	arrayPath := fmt.Sprint(fieldPath, "[]")
	isEmptyDefault := false
	if defaultSource := tags.Default(); defaultSource != nil {
		if *defaultSource == "[]" && fieldType.Kind() == reflect.Slice {
			isEmptyDefault = true
		} else {
			return nil, fmt.Errorf("at %s, invalid `default` value. The only supported `default` value for slices is \"[]\", got: %s", fieldPath, *defaultSource)
		}
	}
	orMethod, err := makeOrMethodConstructor(tags, fieldType, container)
	if err != nil {
		return nil, fmt.Errorf("at %s, failed to setup `orMethod`\n\t * %w", fieldPath, err)
	}

	// Early check that we're not misusing Validator.
	_, err = canInterface(fieldType, validatorInterface)
	if err != nil {
		return nil, err
	}

	subTags := tagsPkg.Empty()
	subContainer := reflect.New(fieldType)
	options.flattened = false

	// Prepare a deserializer for elements in this slice.
	elementDeserializer, err := makeFieldDeserializerFromReflect(arrayPath, fieldType.Elem(), options, &subTags, subContainer, false)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a deserializer for %s\n\t * %w", fieldPath, err)
	}
	result := func(outPtr *reflect.Value, inValue shared.Value) error {
		var input []shared.Value
		switch {
		case inValue != nil:
			var ok bool
			if input, ok = inValue.AsSlice(); !ok {
				return fmt.Errorf("invalid value at %s, expected an array of %s, got %s", fieldPath, typeName(fieldType.Elem()), describe(inValue))
			}
		case wasPreinitialized:
			// No value? That's ok, we got a value from preinitialization.
			return nil
		case isEmptyDefault:
			input = make([]shared.Value, 0)
		case orMethod != nil:
			orMethodResult, err := (*orMethod)()
			if err != nil {
				return fmt.Errorf("error in optional value at %s\n\t * %w", fieldPath, err)
			}
			reflectedOrMethodSlice := reflect.ValueOf(orMethodResult)
			outPtr.Set(reflectedOrMethodSlice.Convert(fieldType))
			return nil
		default:
			return fmt.Errorf("missing value at %s, expected an array of %s", fieldPath, typeName(fieldType.Elem()))
		}

		var reflectedResult reflect.Value
		switch fieldType.Kind() {
		case reflect.Slice:
			reflectedResult = reflect.MakeSlice(fieldType, len(input), len(input))
		case reflect.Array:
			if fieldType.Len() != len(input) {
				return fmt.Errorf("invalid array length at %s, expecting %d, got %d", fieldPath, fieldType.Len(), len(input))
			}
			reflectedResult = reflect.New(fieldType).Elem()
		default:
			panic("at this stage, we should have either an array or a slice")
		}

		// Recurse into entries.
		for i, inAtIndex := range input {
			outAtIndex := reflectedResult.Index(i)
			if err := elementDeserializer(&outAtIndex, inAtIndex); err != nil {
				return fmt.Errorf("error while deserializing %s[%d]:\n\t * %w", fieldPath, i, err)
			}
		}
		outPtr.Set(reflectedResult)
		return nil
	}
	return result, nil
}

// Construct a dynamically-typed deserializer for pointers.
//
// An explicit null (e.g. `None`) yields a nil pointer.
func makePointerDeserializer(fieldPath string, fieldType reflect.Type, options innerOptions, tags *tagsPkg.Tags, container reflect.Value, wasPreinitialized bool) (reflectDeserializer, error) {
	ptrPath := fmt.Sprint(fieldPath, "*")
	elemType := fieldType.Elem()
	subTags := tagsPkg.Empty()
	subContainer := reflect.New(fieldType)
	elementDeserializer, err := makeFieldDeserializerFromReflect(ptrPath, elemType, options, &subTags, subContainer, false)
	if err != nil {
		return nil, fmt.Errorf("failed to generate a deserializer for %s\n\t * %w", fieldPath, err)
	}

	// True if we support `nil` as default value.
	isNilDefault := false
	if defaultSource := tags.Default(); defaultSource != nil {
		if *defaultSource == "nil" {
			isNilDefault = true
		} else {
			return nil, fmt.Errorf("at %s, invalid `default` value. The only supported `default` value for pointers is \"nil\", got: %s", fieldPath, *defaultSource)
		}
	}
	orMethod, err := makeOrMethodConstructor(tags, fieldType, container)
	if err != nil {
		return nil, fmt.Errorf("at %s, failed to setup `orMethod`\n\t * %w", fieldPath, err)
	}

	result := func(outPtr *reflect.Value, inValue shared.Value) error {
		switch {
		case inValue != nil && inValue.Interface() == nil:
			outPtr.SetZero()
			return nil
		case inValue != nil:
			// We have all the data we need, proceed.
		case wasPreinitialized:
			return nil
		case isNilDefault:
			outPtr.SetZero()
			return nil
		case orMethod != nil:
			result, err := (*orMethod)()
			if err != nil {
				err = fmt.Errorf("error in optional value at %s\n\t * %w", fieldPath, err)
				slog.Error("Internal error during deserialization", "error", err)
				return CustomDeserializerError{
					Wrapped:   err,
					Operation: "orMethod",
					Structure: "ptr",
				}
			}
			outPtr.Set(reflect.ValueOf(result))
			return nil
		default:
			return fmt.Errorf("missing value at %s, expected %s", fieldPath, typeName(fieldType))
		}

		// Move into ptr.
		reflectedPtrResult := reflect.New(elemType)
		reflectedResult := reflectedPtrResult.Elem()
		if err := elementDeserializer(&reflectedResult, inValue); err != nil {
			return err
		}
		outPtr.Set(reflectedPtrResult)
		return nil
	}
	return result, nil
}

// Construct a dynamically-typed deserializer for interface fields.
//
// The field receives the value as provided by the format, e.g. `map[string]any`.
func makeInterfaceDeserializer(fieldPath string, fieldType reflect.Type, wasPreinitialized bool) (reflectDeserializer, error) {
	result := func(outPtr *reflect.Value, inValue shared.Value) error {
		switch {
		case inValue != nil:
		case wasPreinitialized:
			return nil
		default:
			return fmt.Errorf("missing value at %s, expected %s", fieldPath, typeName(fieldType))
		}
		native := inValue.Interface()
		if native == nil {
			outPtr.SetZero()
			return nil
		}
		reflected := reflect.ValueOf(native)
		if !reflected.Type().AssignableTo(fieldType) {
			return fmt.Errorf("invalid value at %s, expected %s, got %s", fieldPath, typeName(fieldType), describe(inValue))
		}
		outPtr.Set(reflected)
		return nil
	}
	return result, nil
}

// Construct a deserializer for types that implement `encoding.TextUnmarshaler`,
// read from strings.
func makeTextDeserializer(fieldPath string, fieldType reflect.Type, tags *tagsPkg.Tags, wasPreinitialized bool) (reflectDeserializer, error) {
	unmarshal := func(source string) (reflect.Value, error) {
		ptrResult := reflect.New(fieldType)
		unmarshaler, _ := ptrResult.Interface().(encoding.TextUnmarshaler)
		if err := unmarshaler.UnmarshalText([]byte(source)); err != nil {
			return reflect.Value{}, fmt.Errorf("invalid value at %s, expected to be able to parse a %s:\n\t * %w", fieldPath, typeName(fieldType), err)
		}
		return ptrResult.Elem(), nil
	}

	var defaultValue *reflect.Value
	if defaultSource := tags.Default(); defaultSource != nil {
		parsed, err := unmarshal(*defaultSource)
		if err != nil {
			return nil, fmt.Errorf("cannot parse default value at %s\n\t * %w", fieldPath, err)
		}
		defaultValue = &parsed
	}

	result := func(outPtr *reflect.Value, inValue shared.Value) error {
		switch {
		case inValue != nil:
		case wasPreinitialized:
			return nil
		case defaultValue != nil:
			outPtr.Set(*defaultValue)
			return nil
		default:
			return fmt.Errorf("missing value at %s, expected %s", fieldPath, typeName(fieldType))
		}
		var source string
		switch typed := inValue.Interface().(type) {
		case string:
			source = typed
		case []byte:
			source = string(typed)
		default:
			return fmt.Errorf("invalid value at %s, expected a string representing a %s, got %s", fieldPath, typeName(fieldType), describe(inValue))
		}
		parsed, err := unmarshal(source)
		if err != nil {
			return err
		}
		outPtr.Set(parsed)
		return nil
	}
	return result, nil
}

// Construct a deserializer for types that implement `shared.UnmarshalValue`.
func makeCustomDeserializer(fieldPath string, fieldType reflect.Type, wasPreinitialized bool) (reflectDeserializer, error) {
	// Early check that we're not misusing Validator.
	_, err := canInterface(fieldType, validatorInterface)
	if err != nil {
		return nil, err
	}
	result := func(outPtr *reflect.Value, inValue shared.Value) error {
		switch {
		case inValue != nil:
		case wasPreinitialized:
			return nil
		default:
			return fmt.Errorf("missing value at %s, expected %s", fieldPath, typeName(fieldType))
		}
		resultPtr := reflect.New(fieldType)
		unmarshaler, _ := resultPtr.Interface().(shared.UnmarshalValue)
		if err := unmarshaler.UnmarshalValue(inValue); err != nil {
			return fmt.Errorf("at %s, expected to be able to parse a %s:\n\t * %w", fieldPath, typeName(fieldType), err)
		}
		return finishStruct(fieldPath, outPtr, resultPtr)
	}
	return result, nil
}

// Construct a dynamically-typed deserializer for a flat field (string, int, etc.).
//
//   - `fieldPath` the human-readable path into the data structure, used for error-reporting;
//   - `fieldType` the dynamic type for the field being compiled;
//   - `tags` the table of tags for this field.
func makeFlatFieldDeserializer(fieldPath string, fieldType reflect.Type, tags *tagsPkg.Tags, container reflect.Value, wasPreinitialized bool) (reflectDeserializer, error) {
	typeName := typeName(fieldType)
	if typeName == "" {
		typeName = fieldPath
	}

	// Early check that we're not misusing Validator.
	_, err := canInterface(fieldType, validatorInterface)
	if err != nil {
		return nil, err
	}

	parser := shared.LookupParser(fieldType)
	if parser == nil {
		return nil, fmt.Errorf("at %s, type %s cannot be deserialized", fieldPath, typeName)
	}

	// If a `default` tag is provided, the parsed default value.
	var defaultValue any
	if defaultSource := tags.Default(); defaultSource != nil {
		defaultValue, err = (*parser)(*defaultSource)
		if err != nil {
			return nil, fmt.Errorf("cannot parse default value at %s\n\t * %w", fieldPath, err)
		}
	}

	// If a `orMethod` tag is provided, a closure to call this method.
	orMethod, err := makeOrMethodConstructor(tags, fieldType, container)
	if err != nil {
		return nil, fmt.Errorf("at %s, failed to setup `orMethod`\n\t * %w", fieldPath, err)
	}
	result := func(outPtr *reflect.Value, inValue shared.Value) error {
		// No validation here, as a flat value cannot implement `Validator`.
		var input any
		switch {
		case inValue != nil:
			input = inValue.Interface()
		case wasPreinitialized:
			return nil
		case defaultValue != nil:
			input = defaultValue
		case orMethod != nil:
			constructed, err := (*orMethod)()
			if err != nil {
				err = fmt.Errorf("error in optional value at %s\n\t * %w", fieldPath, err)
				slog.Error("Internal error during deserialization", "error", err)
				return CustomDeserializerError{
					Wrapped:   err,
					Operation: "orMethod",
					Structure: "field",
				}
			}
			input = constructed
		default:
			return fmt.Errorf("missing value at %s, expected %s", fieldPath, typeName)
		}

		if input == nil {
			return fmt.Errorf("invalid value at %s, expected %s, got <nil>", fieldPath, typeName)
		}
		converted, err := convertFlat(reflect.ValueOf(input), fieldType)
		if err != nil {
			return fmt.Errorf("invalid value at %s, expected %s, got %v (%T): %w", fieldPath, typeName, input, input, err)
		}
		outPtr.Set(converted)
		return nil
	}
	return result, nil
}

var errKindMismatch = errors.New("incompatible kind")
var errNotIntegral = errors.New("not an integer")
var errOverflow = errors.New("out of range")

// Convert a primitive to `typ`, refusing lossy or cross-kind conversions.
func convertFlat(input reflect.Value, typ reflect.Type) (reflect.Value, error) {
	out := reflect.New(typ).Elem()
	switch typ.Kind() {
	case reflect.Bool:
		if input.Kind() != reflect.Bool {
			return out, errKindMismatch
		}
		out.SetBool(input.Bool())
	case reflect.String:
		if input.Kind() != reflect.String {
			return out, errKindMismatch
		}
		out.SetString(input.String())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		var i int64
		switch {
		case input.CanInt():
			i = input.Int()
		case input.CanUint():
			u := input.Uint()
			if u > math.MaxInt64 {
				return out, errOverflow
			}
			i = int64(u)
		case input.CanFloat():
			f := input.Float()
			if f != math.Trunc(f) {
				return out, errNotIntegral
			}
			if f < math.MinInt64 || f >= math.MaxInt64 {
				return out, errOverflow
			}
			i = int64(f)
		default:
			return out, errKindMismatch
		}
		if out.OverflowInt(i) {
			return out, errOverflow
		}
		out.SetInt(i)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		var u uint64
		switch {
		case input.CanUint():
			u = input.Uint()
		case input.CanInt():
			i := input.Int()
			if i < 0 {
				return out, errOverflow
			}
			u = uint64(i)
		case input.CanFloat():
			f := input.Float()
			if f != math.Trunc(f) {
				return out, errNotIntegral
			}
			if f < 0 || f >= math.MaxUint64 {
				return out, errOverflow
			}
			u = uint64(f)
		default:
			return out, errKindMismatch
		}
		if out.OverflowUint(u) {
			return out, errOverflow
		}
		out.SetUint(u)
	case reflect.Float32, reflect.Float64:
		var f float64
		switch {
		case input.CanFloat():
			f = input.Float()
		case input.CanInt():
			f = float64(input.Int())
		case input.CanUint():
			f = float64(input.Uint())
		default:
			return out, errKindMismatch
		}
		if out.OverflowFloat(f) {
			return out, errOverflow
		}
		out.SetFloat(f)
	default:
		return out, errKindMismatch
	}
	return out, nil
}

// Construct a dynamically-typed deserializer for any field.
//
//   - `fieldPath` the human-readable path into the data structure, used for error-reporting;
//   - `fieldType` the dynamic type for the field being compiled;
//   - `tags` the table of tags for this field.
func makeFieldDeserializerFromReflect(fieldPath string, fieldType reflect.Type, options innerOptions, tags *tagsPkg.Tags, container reflect.Value, wasPreinitialized bool) (reflectDeserializer, error) {
	var err error
	var result reflectDeserializer

	canUnmarshalValue, err := canInterface(fieldType, unmarshalValueInterface)
	if err != nil {
		return nil, err
	}
	switch {
	case canUnmarshalValue:
		result, err = makeCustomDeserializer(fieldPath, fieldType, wasPreinitialized)
	case reflect.PointerTo(fieldType).Implements(textUnmarshalerInterface) && fieldType.Kind() != reflect.Pointer:
		result, err = makeTextDeserializer(fieldPath, fieldType, tags, wasPreinitialized)
	default:
		switch fieldType.Kind() {
		case reflect.Pointer:
			result, err = makePointerDeserializer(fieldPath, fieldType, options, tags, container, wasPreinitialized)
		case reflect.Array, reflect.Slice:
			result, err = makeSliceDeserializer(fieldPath, fieldType, options, tags, container, wasPreinitialized)
		case reflect.Struct:
			result, err = makeStructDeserializerFromReflect(fieldPath, fieldType, options, tags, container, wasPreinitialized)
		case reflect.Map:
			result, err = makeMapDeserializerFromReflect(fieldPath, fieldType, options, tags, container, wasPreinitialized)
		case reflect.Interface:
			result, err = makeInterfaceDeserializer(fieldPath, fieldType, wasPreinitialized)
		default:
			result, err = makeFlatFieldDeserializer(fieldPath, fieldType, tags, container, wasPreinitialized)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("could not generate a deserializer for %s with type %s:\n\t * %w", fieldPath, typeName(fieldType), err)
	}
	return result, nil
}

// Return a (mostly) human-readable type name for a Go type.
//
// This type name is used for user error messages.
func typeName(typ reflect.Type) string {
	fullName := typ.Name()
	if fullName == "" {
		return typ.String()
	}
	pkgName := fmt.Sprint(typ.PkgPath(), ".")
	return strings.ReplaceAll(fullName, pkgName, "")
}

// A short description of a value, for error messages.
func describe(value shared.Value) string {
	native := value.Interface()
	if native == nil {
		return "<nil>"
	}
	switch native.(type) {
	case map[string]any:
		return "an object"
	case []any:
		return "an array"
	}
	return fmt.Sprintf("%v (%T)", native, native)
}

// A custom constructor provided with tag `orMethod`.
type orMethodConstructor func() (any, error)

func makeOrMethodConstructor(tags *tagsPkg.Tags, fieldType reflect.Type, container reflect.Value) (*orMethodConstructor, error) {
	defaultMethodConstructorName := tags.MethodName()
	if defaultMethodConstructorName == nil {
		return nil, nil
	}
	method := container.MethodByName(*defaultMethodConstructorName)
	if !method.IsValid() {
		return nil, fmt.Errorf("method %s provided with `orMethod` doesn't seem to exist - note that the method must be public", *defaultMethodConstructorName)
	}
	typ := method.Type()
	switch {
	case typ.NumIn() != 0:
		return nil, fmt.Errorf("the method provided with `orMethod` MUST take no argument but takes %d arguments", typ.NumIn())
	case typ.NumOut() != 2: //nolint:mnd
		return nil, fmt.Errorf("the method provided with `orMethod` MUST return (%s, error) but it returns %d value(s)", typeName(fieldType), typ.NumOut())
	case !typ.Out(0).ConvertibleTo(fieldType):
		return nil, fmt.Errorf("the method provided with `orMethod` MUST return (%s, error) but it returns (%s, _) which is not convertible to `%s`", typeName(fieldType), typeName(typ.Out(0)), typeName(fieldType))
	case !typ.Out(1).ConvertibleTo(errorInterface):
		return nil, fmt.Errorf("the method provided with `orMethod` MUST return (%s, error) but it returns (_, %s) which is not convertible to `error`", typeName(fieldType), typeName(typ.Out(1)))
	}
	var methodConstructor orMethodConstructor = func() (any, error) {
		out := method.Call([]reflect.Value{})
		result := out[0].Convert(fieldType).Interface()
		err, ok := out[1].Interface().(error)
		if !ok {
			// Conversion failure? This means that `out[1]` is `nil`.
			return result, nil
		}
		return result, err
	}
	return &methodConstructor, nil
}

// Check that a type implements an interface *on pointers*.
func canInterface(typ reflect.Type, interfaceType reflect.Type) (bool, error) {
	if typ.Kind() == reflect.Interface || typ.Kind() == reflect.Pointer {
		return false, nil
	}
	if typ.Implements(interfaceType) {
		return false, fmt.Errorf("type %s implements %s - it should be implemented by pointer type *%s instead", typ, interfaceType, typ)
	}
	return reflect.PointerTo(typ).Implements(interfaceType), nil
}

// Some metadata on initialization for a type.
type initializationMetadata struct {
	canInitializeSelf bool
	willPreinitialize bool
}

func initializationData(path string, typ reflect.Type) (initializationMetadata, error) {
	canInitializeSelf, err := canInterface(typ, initializerInterface)
	if err != nil {
		return initializationMetadata{}, err
	}

	// Early check that we're not mis-using `Validator`.
	_, err = canInterface(typ, validatorInterface)
	if err != nil {
		return initializationMetadata{}, err
	}
	if canInitializeSelf {
		slog.Debug("Type will be pre-initialized", "path", path, "type", typ)
	}

	return initializationMetadata{
		canInitializeSelf: canInitializeSelf,
		willPreinitialize: canInitializeSelf,
	}, nil
}
