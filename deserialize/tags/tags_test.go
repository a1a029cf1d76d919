package tags_test

import (
	"reflect"
	"testing"

	"github.com/pasqal-io/dynprops/deserialize/tags"
	"gotest.tools/v3/assert"
)

type RandomStruct struct {
	ABC           string  `first:"1,2,3" second:"" third:"abc" fourth:"1,     2,3" fifth:"    abc  " `
	DefaultString string  `default:""`
	DefaultNil    *string `default:"nil"`
	Interesting   string  `default:"abc, def" prop:"interesting" initialized:"arbitrary content" flatten:""`
	Conflict      string  `default:"abc" orMethod:"SomeMethod"`
	Renamed       string  `prop:",flatten"`
}

func field(t *testing.T, name string) reflect.StructField {
	t.Helper()
	reflectField, ok := reflect.TypeOf(RandomStruct{}).FieldByName(name) //nolint:exhaustruct
	assert.Assert(t, ok)
	return reflectField
}

func TestReadTags(t *testing.T) {
	parsed, err := tags.Parse(field(t, "ABC").Tag)
	assert.NilError(t, err)

	for key, expected := range map[string][]string{
		"first":  {"1", "2", "3"},
		"second": {""},
		"third":  {"abc"},
		"fourth": {"1", "2", "3"},
		"fifth":  {"abc"},
	} {
		found, ok := parsed.Lookup(key)
		assert.Assert(t, ok, "Could not find key %s", key)
		assert.DeepEqual(t, found, expected)
	}

	_, ok := parsed.Lookup("sixth")
	assert.Assert(t, !ok)
	assert.Assert(t, parsed.Default() == nil)
	assert.Assert(t, parsed.MethodName() == nil)
	assert.Assert(t, !parsed.IsFlattened())
	assert.Assert(t, !parsed.IsPreinitialized())
}

func TestDefaultTags(t *testing.T) {
	parsed, err := tags.Parse(field(t, "DefaultString").Tag)
	assert.NilError(t, err)
	assert.Equal(t, *parsed.Default(), "")

	parsed, err = tags.Parse(field(t, "DefaultNil").Tag)
	assert.NilError(t, err)
	assert.Equal(t, *parsed.Default(), "nil")

	// The default value is not split on commas.
	parsed, err = tags.Parse(field(t, "Interesting").Tag)
	assert.NilError(t, err)
	assert.Equal(t, *parsed.Default(), "abc, def")
}

func TestSpecialTags(t *testing.T) {
	parsed, err := tags.Parse(field(t, "Interesting").Tag)
	assert.NilError(t, err)
	assert.Equal(t, *parsed.PublicFieldName("prop"), "interesting")
	assert.Assert(t, parsed.PublicFieldName("json") == nil)
	assert.Assert(t, parsed.IsPreinitialized())
	assert.Assert(t, parsed.IsFlattened())
}

func TestEmptyRenaming(t *testing.T) {
	parsed, err := tags.Parse(field(t, "Renamed").Tag)
	assert.NilError(t, err)
	assert.Assert(t, parsed.PublicFieldName("prop") == nil)
}

func TestConflictingTags(t *testing.T) {
	_, err := tags.Parse(field(t, "Conflict").Tag)
	assert.ErrorContains(t, err, "mutually exclusive")
}

func TestUninitializedTags(t *testing.T) {
	defer func() {
		assert.Equal(t, recover(), "Struct was not initialized")
	}()
	var zero tags.Tags
	zero.IsFlattened()
	t.Fatal("reading uninitialized tags should have panicked")
}
