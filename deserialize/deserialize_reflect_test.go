package deserialize_test

import (
	"reflect"
	"testing"

	"github.com/pasqal-io/dynprops/deserialize"
	"github.com/pasqal-io/dynprops/deserialize/shared"
	"gotest.tools/v3/assert"
)

func decodeReflect[Output any](t *testing.T, native any) (*Output, error) {
	t.Helper()
	var placeholderOutput Output
	typeOutput := reflect.TypeOf(placeholderOutput)
	deserializer, err := deserialize.MakeValueDeserializerFromReflect(deserialize.PropertyOptions(""), typeOutput)
	if err != nil {
		t.Error(err)
		return nil, err //nolint:wrapcheck
	}
	deserialized := new(Output)
	reflectDeserialized := reflect.ValueOf(deserialized).Elem()
	err = deserializer.DeserializeValueTo(shared.Wrap(native), &reflectDeserialized)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return deserialized, nil
}

func TestReflectDeserializer(t *testing.T) {
	type Test struct {
		String string         `prop:"string"`
		Int    int            `prop:"int"`
		Map    map[string]int `prop:"map"`
	}
	result, err := decodeReflect[Test](t, map[string]any{
		"string": "text",
		"int":    int64(3),
		"map":    map[string]any{"a": int64(1)},
	})
	assert.NilError(t, err)
	assert.DeepEqual(t, *result, Test{String: "text", Int: 3, Map: map[string]int{"a": 1}})
}

func TestReflectDeserializerWrongSlot(t *testing.T) {
	deserializer, err := deserialize.MakeValueDeserializerFromReflect(deserialize.PropertyOptions(""), reflect.TypeOf(int64(0)))
	assert.NilError(t, err)

	wrong := reflect.ValueOf(new(string)).Elem()
	err = deserializer.DeserializeValueTo(shared.Wrap(int64(3)), &wrong)
	assert.ErrorContains(t, err, "cannot deserialize a int64 into this slot")

	_, err = deserialize.MakeValueDeserializerFromReflect(deserialize.PropertyOptions(""), nil)
	assert.ErrorContains(t, err, "nil type")
}
