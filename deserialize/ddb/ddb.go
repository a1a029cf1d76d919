// Code specific to deserializing DynamoDB items.
//
// An item is a bag of properties: each attribute is an entry. Annotations
// are carried by an `EntityType` string attribute, on the item itself (the
// name of the bag) and on each `M` attribute that holds a property. A
// property holding a struct stores its fields next to `EntityType`, any
// other property stores its value under `Value`:
//
//	{
//	  "EntityType":  {"S": "Transform"},
//	  "translation": {"M": {"EntityType": {"S": "Vec3"}, "x": {"N": "1"}}},
//	  "scale":       {"M": {"EntityType": {"S": "float32"}, "Value": {"N": "2"}}}
//	}
//
// A map holding exactly `EntityType` and `Value` is always read as the
// second form. A registered struct whose only field is tagged `Value` cannot
// be stored this way: tag the field with another name.
package ddb

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pasqal-io/dynprops/deserialize/shared"
)

const (
	// The attribute holding the annotation.
	TypeAttribute = "EntityType"
	// The attribute holding the value of a non-struct property.
	ValueAttribute = "Value"
)

// A stream over a single item.
type Stream struct {
	item     map[string]types.AttributeValue
	skip     map[string]bool
	hook     shared.TypeNameHook
	consumed bool
}

// Open a stream over `item`, ignoring the attributes named in `skip`
// (typically the table keys).
func NewStream(item map[string]types.AttributeValue, skip ...string) (*Stream, error) {
	if item == nil {
		return nil, errors.New("ddb: no item")
	}
	skipped := make(map[string]bool, len(skip))
	for _, name := range skip {
		skipped[name] = true
	}
	return &Stream{
		item:     item,
		skip:     skipped,
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

var errConsumed = errors.New("ddb: stream already consumed")

// Items have no order: entries are visited by attribute name.
func (s *Stream) DriveContainer(visitor shared.ContainerVisitor) error {
	if s.consumed {
		return errConsumed
	}
	s.consumed = true

	name, err := entityType(s.item)
	if err != nil {
		return err
	}
	if err = s.report(name); err != nil {
		return err
	}
	if err = visitor.VisitContainer(shared.KindMap); err != nil {
		return err
	}
	for _, key := range s.keys() {
		name, body, err := property(s.item[key])
		if err != nil {
			return fmt.Errorf("ddb: at attribute %s:\n\t * %w", key, err)
		}
		if err = s.report(name); err != nil {
			return err
		}
		if err = visitor.VisitEntry(key, shared.Wrap(body)); err != nil {
			return err
		}
	}
	return nil
}

// Decode the whole item as a single property.
func (s *Stream) DriveValue(callback func(shared.Value) error) error {
	if s.consumed {
		return errConsumed
	}
	s.consumed = true

	fields := make(map[string]types.AttributeValue, len(s.item))
	for _, key := range s.keys() {
		fields[key] = s.item[key]
	}
	if typ, ok := s.item[TypeAttribute]; ok {
		fields[TypeAttribute] = typ
	}
	name, body, err := property(&types.AttributeValueMemberM{Value: fields})
	if err != nil {
		return fmt.Errorf("ddb: %w", err)
	}
	if err = s.report(name); err != nil {
		return err
	}
	return callback(shared.Wrap(body))
}

// Attribute names, sorted, without the annotation and skipped attributes.
func (s *Stream) keys() []string {
	keys := make([]string, 0, len(s.item))
	for key := range s.item {
		if key == TypeAttribute || s.skip[key] {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// The annotation of a map, or nil.
func entityType(fields map[string]types.AttributeValue) ([]byte, error) {
	attr, ok := fields[TypeAttribute]
	if !ok {
		return nil, nil
	}
	var name string
	if err := attributevalue.Unmarshal(attr, &name); err != nil {
		return nil, fmt.Errorf("ddb: failed to unmarshal %s:\n\t * %w", TypeAttribute, err)
	}
	return []byte(name), nil
}

// Split an attribute into its annotation and its body.
func property(attr types.AttributeValue) ([]byte, any, error) {
	object, ok := attr.(*types.AttributeValueMemberM)
	if !ok {
		body, err := convert(attr)
		return nil, body, err
	}
	name, err := entityType(object.Value)
	if err != nil || name == nil {
		body, convertErr := convert(attr)
		return nil, body, errors.Join(err, convertErr)
	}
	if value, ok := object.Value[ValueAttribute]; ok && len(object.Value) == 2 {
		body, err := convert(value)
		return name, body, err
	}
	fields := make(map[string]types.AttributeValue, len(object.Value))
	for key, value := range object.Value {
		if key != TypeAttribute {
			fields[key] = value
		}
	}
	body, err := convert(&types.AttributeValueMemberM{Value: fields})
	return name, body, err
}

// Convert an attribute into a native tree.
func convert(attr types.AttributeValue) (any, error) {
	var result any
	err := attributevalue.UnmarshalWithOptions(attr, &result, func(options *attributevalue.DecoderOptions) {
		options.UseNumber = true
	})
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal attribute:\n\t * %w", err)
	}
	return normalize(result), nil
}

// Numbers become `int64` when they are integers, `uint64` past MaxInt64
// and `float64` otherwise.
// Sets and lists become `[]any`.
func normalize(value any) any {
	switch v := value.(type) {
	case attributevalue.Number:
		return number(v)
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
	case []attributevalue.Number:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = number(item)
		}
		return result
	case []float64:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = item
		}
		return result
	case []string:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = item
		}
		return result
	case [][]byte:
		result := make([]any, len(v))
		for i, item := range v {
			result[i] = item
		}
		return result
	default:
		return value
	}
}

func number(n attributevalue.Number) any {
	if !strings.ContainsAny(string(n), ".eE") {
		if i, err := n.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(string(n), 10, 64); err == nil {
			return u
		}
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

var _ shared.Stream = &Stream{} //nolint:exhaustruct
