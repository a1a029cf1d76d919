package json_test

import (
	"errors"
	"testing"

	"github.com/pasqal-io/dynprops/deserialize/json"
	"github.com/pasqal-io/dynprops/deserialize/shared"
	"gotest.tools/v3/assert"
)

type recorder struct {
	events  []string
	kind    shared.Kind
	entries map[string]any
}

func (r *recorder) VisitContainer(kind shared.Kind) error {
	r.kind = kind
	r.events = append(r.events, "container:"+kind.String())
	return nil
}

func (r *recorder) VisitEntry(key string, value shared.Value) error {
	r.events = append(r.events, "entry:"+key)
	r.entries[key] = value.Interface()
	return nil
}

func drive(t *testing.T, source string) (*recorder, error) {
	t.Helper()
	stream, err := json.NewStream([]byte(source))
	assert.NilError(t, err)
	r := &recorder{entries: make(map[string]any)}
	stream.SetTypeNameHook(func(name []byte) error {
		if name == nil {
			r.events = append(r.events, "hook:<none>")
		} else {
			r.events = append(r.events, "hook:"+string(name))
		}
		return nil
	})
	return r, stream.DriveContainer(r)
}

func TestObjectRoot(t *testing.T) {
	r, err := drive(t, `{
		"translation": {"Vec3": {"x": 1, "y": 2.5, "z": -3}},
		"scale": {"float32": 2},
		"plain": [1, "two", null],
		"object": {"a": 1, "b": 2}
	}`)
	assert.NilError(t, err)
	assert.Equal(t, r.kind, shared.KindMap)
	assert.DeepEqual(t, r.events, []string{
		"hook:<none>",
		"container:map",
		"hook:Vec3", "entry:translation",
		"hook:float32", "entry:scale",
		"hook:<none>", "entry:plain",
		"hook:<none>", "entry:object",
	})
	assert.DeepEqual(t, r.entries["translation"], map[string]any{"x": int64(1), "y": 2.5, "z": int64(-3)})
	assert.Equal(t, r.entries["scale"], int64(2))
	assert.DeepEqual(t, r.entries["plain"], []any{int64(1), "two", nil})
	assert.DeepEqual(t, r.entries["object"], map[string]any{"a": int64(1), "b": int64(2)})
}

func TestArrayRoot(t *testing.T) {
	r, err := drive(t, `[{"int": 1}, {"Vec3": {"x": 1e2}}]`)
	assert.NilError(t, err)
	assert.Equal(t, r.kind, shared.KindSeq)
	assert.DeepEqual(t, r.events, []string{
		"hook:<none>", "container:seq", "hook:int", "entry:0", "hook:Vec3", "entry:1",
	})
	assert.DeepEqual(t, r.entries["1"], map[string]any{"x": 100.0})
}

func TestUnsignedRange(t *testing.T) {
	r, err := drive(t, `{
		"above": {"uint64": 9223372036854775809},
		"top": {"uint64": 18446744073709551615},
		"past": 18446744073709551616,
		"low": -9223372036854775809
	}`)
	assert.NilError(t, err)
	assert.Equal(t, r.entries["above"], uint64(9223372036854775809))
	assert.Equal(t, r.entries["top"], uint64(18446744073709551615))
	assert.Equal(t, r.entries["past"], 18446744073709551616.0)
	assert.Equal(t, r.entries["low"], -9223372036854775809.0)
}

func TestDriveValue(t *testing.T) {
	stream, err := json.NewStream([]byte(`{"Vec3": {"x": 1.5}}`))
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

func TestHookErrorAborts(t *testing.T) {
	stream, err := json.NewStream([]byte(`{"a": {"Vec3": {}}, "b": {"Vec3": {}}}`))
	assert.NilError(t, err)
	stop := errors.New("stop")
	stream.SetTypeNameHook(func(name []byte) error {
		if name != nil {
			return stop
		}
		return nil
	})
	r := &recorder{entries: make(map[string]any)}
	assert.ErrorIs(t, stream.DriveContainer(r), stop)
	assert.Equal(t, len(r.entries), 0)
}

func TestErrors(t *testing.T) {
	_, err := json.NewStream([]byte("  \n"))
	assert.ErrorContains(t, err, "empty document")

	cases := []struct {
		source   string
		expected string
	}{
		{`5`, "expected an object or an array at the root, got a number"},
		{`"text"`, "expected an object or an array at the root, got a string"},
		{`{"a": 1`, "unexpected end of input"},
		{`{"a": 1} {}`, "trailing data"},
		{`{"a": }`, "invalid character"},
	}
	for _, c := range cases {
		_, err := drive(t, c.source)
		assert.ErrorContains(t, err, c.expected, c.source)
	}
}
