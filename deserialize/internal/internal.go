package internal

import "github.com/pasqal-io/dynprops/deserialize/shared"

// A dictionary with no entries.
//
// Used as input for structs and maps whose content was already provided
// by an initializer or that default to `{}`.
type EmptyDict struct{}

func (EmptyDict) Lookup(string) (shared.Value, bool) {
	return nil, false
}
func (EmptyDict) AsValue() shared.Value {
	return EmptyValue{}
}
func (EmptyDict) Keys() []string {
	return []string{}
}

var _ shared.Dict = EmptyDict{}

// A value that behaves as an empty dictionary.
type EmptyValue struct{}

func (EmptyValue) AsDict() (shared.Dict, bool) {
	return EmptyDict{}, true
}
func (EmptyValue) AsSlice() ([]shared.Value, bool) {
	return nil, false
}
func (EmptyValue) Interface() any {
	return map[string]any{}
}

var _ shared.Value = EmptyValue{}
