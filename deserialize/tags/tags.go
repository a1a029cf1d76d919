package tags

import (
	"errors"
	"reflect"
	"strings"

	"github.com/pasqal-io/dynprops/assertions/initialized"
)

// The tags attached to a struct field.
type Tags struct {
	tag     reflect.StructTag
	witness initialized.IsInitialized
}

func Empty() Tags {
	return Tags{
		tag:     "",
		witness: initialized.Make(),
	}
}

// Read the tags of a struct field.
//
// Fails if the tags contradict each other.
func Parse(tag reflect.StructTag) (Tags, error) {
	_, hasDefault := tag.Lookup("default")
	_, hasMethod := tag.Lookup("orMethod")
	if hasDefault && hasMethod {
		return Tags{}, errors.New("tags `default` and `orMethod` are mutually exclusive")
	}
	return Tags{
		tag:     tag,
		witness: initialized.Make(),
	}, nil
}

// The default value to use if no value is provided.
//
// This is tag `default`. Conflicts with `orMethod`.
func (tags Tags) Default() *string {
	tags.witness.Assert()
	result, ok := tags.tag.Lookup("default")
	if !ok {
		return nil
	}
	return &result
}

// The name of a method used to build the value if none is provided.
//
// This is tag `orMethod`. Conflicts with `default`.
func (tags Tags) MethodName() *string {
	tags.witness.Assert()
	result, ok := tags.tag.Lookup("orMethod")
	if !ok || result == "" {
		return nil
	}
	return &result
}

// The public name of a field for renaming tag `key`.
//
// e.g. with `prop:"speed"` and key "prop", the field reads entry `speed`.
func (tags Tags) PublicFieldName(key string) *string {
	tags.witness.Assert()
	raw, ok := tags.tag.Lookup(key)
	if !ok {
		return nil
	}
	name, _, _ := strings.Cut(raw, ",")
	name = strings.TrimSpace(name)
	if name == "" {
		return nil
	}
	return &name
}

// `true` if the parser should not complain about missing data immediately
// within this field.
//
// This is tag `initialized`.
func (tags Tags) IsPreinitialized() bool {
	tags.witness.Assert()
	_, ok := tags.tag.Lookup("initialized")
	return ok
}

// `true` if the contents of this struct field are read from the enclosing dictionary,
// e.g.
//
//	type Transform struct {
//	    Scale float32
//	    Translation Vec3 `flatten:""`
//	}
//
// reads from `(Scale: 1.0, X: 0.0, Y: 0.0, Z: 0.0)`.
func (tags Tags) IsFlattened() bool {
	tags.witness.Assert()
	_, ok := tags.tag.Lookup("flatten")
	return ok
}

// Lookup a key, as a comma-separated list of trimmed, non-empty items.
//
// A key with an empty value yields `[""]`.
func (tags Tags) Lookup(key string) ([]string, bool) {
	tags.witness.Assert()
	raw, ok := tags.tag.Lookup(key)
	if !ok {
		return nil, false
	}
	result := make([]string, 0)
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		result = append(result, "")
	}
	return result, true
}
