package ddb_test

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pasqal-io/dynprops/deserialize/ddb"
	"github.com/pasqal-io/dynprops/deserialize/shared"
	"gotest.tools/v3/assert"
)

type recorder struct {
	events  []string
	entries map[string]any
}

func (r *recorder) VisitContainer(kind shared.Kind) error {
	r.events = append(r.events, "container:"+kind.String())
	return nil
}

func (r *recorder) VisitEntry(key string, value shared.Value) error {
	r.events = append(r.events, "entry:"+key)
	r.entries[key] = value.Interface()
	return nil
}

func (r *recorder) hook(name []byte) error {
	if name == nil {
		r.events = append(r.events, "hook:<none>")
	} else {
		r.events = append(r.events, "hook:"+string(name))
	}
	return nil
}

func s(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}

func n(value string) types.AttributeValue {
	return &types.AttributeValueMemberN{Value: value}
}

func m(fields map[string]types.AttributeValue) types.AttributeValue {
	return &types.AttributeValueMemberM{Value: fields}
}

func TestItem(t *testing.T) {
	item := map[string]types.AttributeValue{
		"PK":         s("SCENE#1"),
		"SK":         s("TRANSFORM"),
		"EntityType": s("Transform"),
		"translation": m(map[string]types.AttributeValue{
			"EntityType": s("Vec3"),
			"x":          n("1"),
			"y":          n("2.5"),
			"z":          n("-3"),
		}),
		"scale": m(map[string]types.AttributeValue{
			"EntityType": s("float32"),
			"Value":      n("2"),
		}),
		"tags":  &types.AttributeValueMemberSS{Value: []string{"a", "b"}},
		"plain": &types.AttributeValueMemberL{Value: []types.AttributeValue{n("1"), s("two"), &types.AttributeValueMemberNULL{Value: true}}},
	}
	stream, err := ddb.NewStream(item, "PK", "SK")
	assert.NilError(t, err)
	r := &recorder{entries: make(map[string]any)}
	stream.SetTypeNameHook(r.hook)
	assert.NilError(t, stream.DriveContainer(r))

	assert.DeepEqual(t, r.events, []string{
		"hook:Transform",
		"container:map",
		"hook:<none>", "entry:plain",
		"hook:float32", "entry:scale",
		"hook:<none>", "entry:tags",
		"hook:Vec3", "entry:translation",
	})
	assert.DeepEqual(t, r.entries["translation"], map[string]any{"x": int64(1), "y": 2.5, "z": int64(-3)})
	assert.Equal(t, r.entries["scale"], int64(2))
	assert.DeepEqual(t, r.entries["tags"], []any{"a", "b"})
	assert.DeepEqual(t, r.entries["plain"], []any{int64(1), "two", nil})
}

func TestUnannotatedMap(t *testing.T) {
	item := map[string]types.AttributeValue{
		"config": m(map[string]types.AttributeValue{"depth": n("3")}),
	}
	stream, err := ddb.NewStream(item)
	assert.NilError(t, err)
	r := &recorder{entries: make(map[string]any)}
	stream.SetTypeNameHook(r.hook)
	assert.NilError(t, stream.DriveContainer(r))
	assert.DeepEqual(t, r.events, []string{"hook:<none>", "container:map", "hook:<none>", "entry:config"})
	assert.DeepEqual(t, r.entries["config"], map[string]any{"depth": int64(3)})
}

func TestDriveValue(t *testing.T) {
	item := map[string]types.AttributeValue{
		"PK":         s("VEC#1"),
		"EntityType": s("Vec3"),
		"x":          n("1.5"),
	}
	stream, err := ddb.NewStream(item, "PK")
	assert.NilError(t, err)
	var names []string
	stream.SetTypeNameHook(func(name []byte) error {
		names = append(names, string(name))
		return nil
	})
	var received any
	assert.NilError(t, stream.DriveValue(func(value shared.Value) error {
		received = value.Interface()
		return nil
	}))
	assert.DeepEqual(t, names, []string{"Vec3"})
	assert.DeepEqual(t, received, map[string]any{"x": 1.5})

	err = stream.DriveValue(func(shared.Value) error { return nil })
	assert.ErrorContains(t, err, "stream already consumed")
}

func TestNewtypeValue(t *testing.T) {
	stream, err := ddb.NewStream(map[string]types.AttributeValue{
		"EntityType": s("string"),
		"Value":      s("hello"),
	})
	assert.NilError(t, err)
	var received any
	assert.NilError(t, stream.DriveValue(func(value shared.Value) error {
		received = value.Interface()
		return nil
	}))
	assert.Equal(t, received, "hello")
}

func TestUnsignedRange(t *testing.T) {
	stream, err := ddb.NewStream(map[string]types.AttributeValue{
		"above": m(map[string]types.AttributeValue{"EntityType": s("uint64"), "Value": n("9223372036854775809")}),
		"top":   n("18446744073709551615"),
		"low":   n("-9223372036854775809"),
	})
	assert.NilError(t, err)
	r := &recorder{entries: make(map[string]any)}
	stream.SetTypeNameHook(r.hook)
	assert.NilError(t, stream.DriveContainer(r))
	assert.Equal(t, r.entries["above"], uint64(9223372036854775809))
	assert.Equal(t, r.entries["top"], uint64(18446744073709551615))
	assert.Equal(t, r.entries["low"], -9223372036854775809.0)
}

// A map holding only `EntityType` and `Value` always unwraps.
func TestValueOnlyStruct(t *testing.T) {
	stream, err := ddb.NewStream(map[string]types.AttributeValue{
		"wrapped": m(map[string]types.AttributeValue{"EntityType": s("Holder"), "Value": n("3")}),
		"fields":  m(map[string]types.AttributeValue{"EntityType": s("Holder"), "Value": n("3"), "unit": s("m")}),
	})
	assert.NilError(t, err)
	r := &recorder{entries: make(map[string]any)}
	stream.SetTypeNameHook(r.hook)
	assert.NilError(t, stream.DriveContainer(r))
	assert.Equal(t, r.entries["wrapped"], int64(3))
	assert.DeepEqual(t, r.entries["fields"], map[string]any{"Value": int64(3), "unit": "m"})
}

func TestErrors(t *testing.T) {
	_, err := ddb.NewStream(nil)
	assert.ErrorContains(t, err, "no item")

	stream, err := ddb.NewStream(map[string]types.AttributeValue{
		"EntityType": &types.AttributeValueMemberBOOL{Value: true},
	})
	assert.NilError(t, err)
	err = stream.DriveContainer(&recorder{entries: make(map[string]any)})
	assert.ErrorContains(t, err, "failed to unmarshal EntityType")

	stream, err = ddb.NewStream(map[string]types.AttributeValue{
		"bad": m(map[string]types.AttributeValue{"EntityType": &types.AttributeValueMemberBOOL{Value: true}}),
	})
	assert.NilError(t, err)
	err = stream.DriveContainer(&recorder{entries: make(map[string]any)})
	assert.ErrorContains(t, err, "at attribute bad")
}
