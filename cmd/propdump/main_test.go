package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pasqal-io/dynprops/dynamic"
	"github.com/pasqal-io/dynprops/registry"
	"github.com/pasqal-io/dynprops/source/dynamodb"
	"gotest.tools/v3/assert"
)

const scene = `Transform(
	scale: float32(2.0),
	label: string("0x10"),
	id: UUID("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
	count: int(3),
)`

func write(t *testing.T, name string, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	assert.NilError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func defaults() *registry.Registry {
	reg := registry.New()
	registry.RegisterDefaults(reg)
	return reg
}

// The output reads back as the bag it was rendered from.
func TestDumpRON(t *testing.T) {
	path := write(t, "scene.ron", scene)
	var stdout bytes.Buffer
	status := run(context.Background(), []string{"-input", path}, strings.NewReader(""), &stdout)
	assert.Equal(t, status, 0)

	out := stdout.String()
	assert.Assert(t, strings.Contains(out, "!Transform"), out)
	assert.Assert(t, strings.Contains(out, "!float32"), out)
	assert.Assert(t, strings.Contains(out, `!string "0x10"`), out)

	expected, err := dynamic.DeserializeDynamicProperties(scene, defaults())
	assert.NilError(t, err)
	actual, err := dynamic.DeserializeDynamicPropertiesWith(dynamic.FormatYAML, stdout.Bytes(), defaults())
	assert.NilError(t, err, out)
	assert.Assert(t, expected.Equal(actual), out)
}

func TestDumpStdin(t *testing.T) {
	var stdout bytes.Buffer
	status := run(context.Background(), []string{"-format", "json"}, strings.NewReader(`[{"int": 1}, {"bool": true}]`), &stdout)
	assert.Equal(t, status, 0)

	bag, err := dynamic.DeserializeDynamicPropertiesWith(dynamic.FormatYAML, stdout.Bytes(), defaults())
	assert.NilError(t, err, stdout.String())
	assert.Equal(t, bag.Len(), 2)
}

func TestDumpSingle(t *testing.T) {
	var stdout bytes.Buffer
	status := run(context.Background(), []string{"-single"}, strings.NewReader(`Email("someone@example.com")`), &stdout)
	assert.Equal(t, status, 0)
	assert.Assert(t, strings.Contains(stdout.String(), `!Email "someone@example.com"`), stdout.String())
}

func TestEnvFile(t *testing.T) {
	t.Cleanup(func() {
		os.Unsetenv("PROPDUMP_FORMAT")
	})
	env := write(t, ".env", "PROPDUMP_FORMAT=yaml\n")
	var stdout bytes.Buffer
	status := run(context.Background(), []string{"-env", env}, strings.NewReader("a: !int 1\n"), &stdout)
	assert.Equal(t, status, 0)
	assert.Assert(t, strings.Contains(stdout.String(), "!int 1"), stdout.String())

	// Flags win.
	stdout.Reset()
	status = run(context.Background(), []string{"-env", env, "-format", "ron"}, strings.NewReader("(a: int(1))"), &stdout)
	assert.Equal(t, status, 0)

	status = run(context.Background(), []string{"-env", filepath.Join(t.TempDir(), "missing")}, strings.NewReader(""), &stdout)
	assert.Equal(t, status, 1)
}

func TestFailures(t *testing.T) {
	cases := [][]string{
		{"-format", "xml"},
		{"-input", "/does/not/exist"},
		{"-bogus"},
		{"extra"},
	}
	for _, args := range cases {
		var stdout bytes.Buffer
		status := run(context.Background(), args, strings.NewReader("(a: int(1))"), &stdout)
		assert.Equal(t, status, 1, args)
	}

	var stdout bytes.Buffer
	status := run(context.Background(), nil, strings.NewReader("(a: Teleporter(x: 1))"), &stdout)
	assert.Equal(t, status, 1)
	assert.Equal(t, stdout.Len(), 0)
}

func TestVersion(t *testing.T) {
	var stdout bytes.Buffer
	status := run(context.Background(), []string{"-version"}, strings.NewReader(""), &stdout)
	assert.Equal(t, status, 0)
	assert.Assert(t, strings.HasPrefix(stdout.String(), "propdump version "+Version))
}

type fakeTable map[string]types.AttributeValue

func (f fakeTable) GetItem(context.Context, *sdk.GetItemInput, ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	return &sdk.GetItemOutput{Item: f}, nil
}

func TestDumpDynamoDB(t *testing.T) {
	previous := newItemClient
	t.Cleanup(func() {
		newItemClient = previous
	})
	var received dynamodb.Config
	newItemClient = func(_ context.Context, cfg dynamodb.Config) (dynamodb.GetItemAPI, error) {
		received = cfg
		return fakeTable{
			"PK":         &types.AttributeValueMemberS{Value: "SCENE#1"},
			"EntityType": &types.AttributeValueMemberS{Value: "Transform"},
			"scale": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
				"EntityType": &types.AttributeValueMemberS{Value: "float64"},
				"Value":      &types.AttributeValueMemberN{Value: "0.5"},
			}},
		}, nil
	}

	var stdout bytes.Buffer
	status := run(context.Background(), []string{"-table", "props", "-pk", "SCENE#1"}, strings.NewReader(""), &stdout)
	assert.Equal(t, status, 0)
	assert.Equal(t, received.Table, "props")
	assert.Assert(t, strings.Contains(stdout.String(), "scale: !float64 0.5"), stdout.String())
}
