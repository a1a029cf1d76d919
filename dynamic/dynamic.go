/*
Package dynamic decodes bags of properties whose types are only known at
runtime, through their annotations.

Each entry of the root container must carry an annotation naming a type of
the registry:

	Transform(
		translation: Vec3(x: 1.0, y: 2.0, z: 0.0),
		scale: float32(2.0),
	)

The annotation of the root itself names the bag and is not resolved.

Every call owns its decode state, so concurrent calls may share a registry.
*/
package dynamic

import (
	"errors"
	"fmt"
	"strings"

	"github.com/pasqal-io/dynprops/deserialize/ddb"
	"github.com/pasqal-io/dynprops/deserialize/json"
	"github.com/pasqal-io/dynprops/deserialize/ron"
	"github.com/pasqal-io/dynprops/deserialize/shared"
	"github.com/pasqal-io/dynprops/deserialize/yaml"
	"github.com/pasqal-io/dynprops/property"
	"github.com/pasqal-io/dynprops/registry"
)

// An input format.
type Format string

const (
	FormatRON  Format = "ron"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"

	// DynamoDB items. Only reachable through streams, see `ddb.NewStream`.
	FormatDDB Format = "ddb"

	// A stream of unknown origin.
	formatStream Format = "stream"
)

// Parse the name of a format that can be opened from text.
func ParseFormat(name string) (Format, error) {
	switch format := Format(strings.ToLower(name)); format {
	case FormatRON, FormatJSON, FormatYAML:
		return format, nil
	default:
		return "", fmt.Errorf("unknown format %q, expected one of [ron, json, yaml]", name)
	}
}

// Open a stream over `raw`.
//
// Failures are `*MalformedInputError`s.
func OpenStream(format Format, raw []byte) (shared.Stream, error) {
	var stream shared.Stream
	var err error
	switch format {
	case FormatRON:
		stream, err = ron.NewParser(raw)
	case FormatJSON:
		stream, err = json.NewStream(raw)
	case FormatYAML:
		stream, err = yaml.NewStream(raw)
	default:
		err = fmt.Errorf("cannot open a stream of format %q", format)
	}
	if err != nil {
		return nil, &MalformedInputError{Format: format, Wrapped: err}
	}
	return stream, nil
}

func formatOf(stream shared.Stream) Format {
	switch stream.(type) {
	case *ron.Parser:
		return FormatRON
	case *json.Stream:
		return FormatJSON
	case *yaml.Stream:
		return FormatYAML
	case *ddb.Stream:
		return FormatDDB
	default:
		return formatStream
	}
}

// Decode a bag of properties from RON text.
//
// On error, no bag is returned. Errors are `*MalformedInputError`,
// `*UnknownTypeError` or `*FieldError`.
func DeserializeDynamicProperties(ronString string, reg *registry.Registry) (*property.DynamicProperties, error) {
	return DeserializeDynamicPropertiesWith(FormatRON, []byte(ronString), reg)
}

// Decode a bag of properties from `raw`, written in `format`.
func DeserializeDynamicPropertiesWith(format Format, raw []byte, reg *registry.Registry) (*property.DynamicProperties, error) {
	stream, err := OpenStream(format, raw)
	if err != nil {
		return nil, err
	}
	return decodeBag(format, stream, reg)
}

// Decode a bag of properties from an open stream. The stream is consumed.
func DeserializeDynamicPropertiesFromStream(stream shared.Stream, reg *registry.Registry) (*property.DynamicProperties, error) {
	return decodeBag(formatOf(stream), stream, reg)
}

func decodeBag(format Format, stream shared.Stream, reg *registry.Registry) (*property.DynamicProperties, error) {
	if reg == nil {
		return nil, fmt.Errorf("cannot decode without a registry")
	}
	state := newDecodeState(format, reg)
	detach := state.attach(stream)
	defer detach()

	visitor := &bagVisitor{state: state, bag: nil}
	if err := state.finish(stream.DriveContainer(visitor)); err != nil {
		return nil, err
	}
	if visitor.bag == nil {
		return nil, &MalformedInputError{Format: format, Wrapped: errors.New("stream reported no container")}
	}
	return visitor.bag, nil
}

// Decode a single property from `raw`, written in `format`.
//
// The root value must be annotated.
func DeserializeProperty(format Format, raw []byte, reg *registry.Registry) (property.Property, error) {
	stream, err := OpenStream(format, raw)
	if err != nil {
		return nil, err
	}
	return decodeProperty(format, stream, reg)
}

// Decode a single property from an open stream. The stream is consumed.
func DeserializePropertyFromStream(stream shared.Stream, reg *registry.Registry) (property.Property, error) {
	return decodeProperty(formatOf(stream), stream, reg)
}

func decodeProperty(format Format, stream shared.Stream, reg *registry.Registry) (property.Property, error) {
	if reg == nil {
		return nil, fmt.Errorf("cannot decode without a registry")
	}
	state := newDecodeState(format, reg)
	detach := state.attach(stream)
	defer detach()

	var result property.Property
	err := stream.DriveValue(func(value shared.Value) error {
		var err error
		result, err = state.dispatch("", value)
		return err
	})
	if err = state.finish(err); err != nil {
		return nil, err
	}
	return result, nil
}
