package dynamodb_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pasqal-io/dynprops/assertions/testutils"
	"github.com/pasqal-io/dynprops/dynamic"
	"github.com/pasqal-io/dynprops/registry"
	"github.com/pasqal-io/dynprops/source/dynamodb"
	"gotest.tools/v3/assert"
)

type Vec3 struct {
	X float32 `prop:"x"`
	Y float32 `prop:"y"`
	Z float32 `prop:"z"`
}

// An in-memory table, keyed by partition key.
type fakeTable struct {
	items    map[string]map[string]types.AttributeValue
	requests []*sdk.GetItemInput
	err      error
}

func (f *fakeTable) GetItem(_ context.Context, params *sdk.GetItemInput, _ ...func(*sdk.Options)) (*sdk.GetItemOutput, error) {
	f.requests = append(f.requests, params)
	if f.err != nil {
		return nil, f.err
	}
	pk, _ := params.Key["PK"].(*types.AttributeValueMemberS)
	if pk == nil {
		return &sdk.GetItemOutput{}, nil
	}
	return &sdk.GetItemOutput{Item: f.items[pk.Value]}, nil
}

func vec3(x, y, z string) types.AttributeValue {
	return &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
		"EntityType": &types.AttributeValueMemberS{Value: "Vec3"},
		"x":          &types.AttributeValueMemberN{Value: x},
		"y":          &types.AttributeValueMemberN{Value: y},
		"z":          &types.AttributeValueMemberN{Value: z},
	}}
}

func newTable() *fakeTable {
	return &fakeTable{
		items: map[string]map[string]types.AttributeValue{
			"SCENE#1": {
				"PK":          &types.AttributeValueMemberS{Value: "SCENE#1"},
				"SK":          &types.AttributeValueMemberS{Value: "TRANSFORM"},
				"EntityType":  &types.AttributeValueMemberS{Value: "Transform"},
				"translation": vec3("1", "2", "3"),
				"scale": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"EntityType": &types.AttributeValueMemberS{Value: "float32"},
					"Value":      &types.AttributeValueMemberN{Value: "0.5"},
				}},
			},
			"VEC#1": {
				"PK":         &types.AttributeValueMemberS{Value: "VEC#1"},
				"EntityType": &types.AttributeValueMemberS{Value: "Vec3"},
				"x":          &types.AttributeValueMemberN{Value: "4"},
				"y":          &types.AttributeValueMemberN{Value: "5"},
				"z":          &types.AttributeValueMemberN{Value: "6"},
			},
			"BROKEN#1": {
				"PK":          &types.AttributeValueMemberS{Value: "BROKEN#1"},
				"translation": &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
					"EntityType": &types.AttributeValueMemberS{Value: "Vec3"},
					"x":          &types.AttributeValueMemberS{Value: "left"},
				}},
			},
		},
		requests: nil,
		err:      nil,
	}
}

func newRegistry() *registry.Registry {
	reg := registry.New()
	registry.RegisterDefaults(reg)
	registry.Register[Vec3](reg)
	return reg
}

func TestLoadProperties(t *testing.T) {
	table := newTable()
	source, err := dynamodb.NewSource(table, dynamodb.Config{Table: "props"})
	assert.NilError(t, err)

	bag, err := source.LoadProperties(context.Background(), dynamodb.Key{Partition: "SCENE#1", Sort: "TRANSFORM"}, newRegistry())
	assert.NilError(t, err)
	assert.Equal(t, bag.Name, "Transform")
	assert.DeepEqual(t, bag.Names(), []string{"scale", "translation"})
	assert.Equal(t, testutils.Entry[Vec3](t, bag, "translation"), Vec3{X: 1, Y: 2, Z: 3})
	assert.Equal(t, testutils.Entry[float32](t, bag, "scale"), float32(0.5))

	assert.Equal(t, len(table.requests), 1)
	request := table.requests[0]
	assert.Equal(t, aws.ToString(request.TableName), "props")
	assert.Equal(t, aws.ToBool(request.ConsistentRead), true)
	sk, ok := request.Key["SK"].(*types.AttributeValueMemberS)
	assert.Assert(t, ok)
	assert.Equal(t, sk.Value, "TRANSFORM")
}

func TestLoadProperty(t *testing.T) {
	source, err := dynamodb.NewSource(newTable(), dynamodb.Config{Table: "props"})
	assert.NilError(t, err)

	p, err := source.LoadProperty(context.Background(), dynamodb.Key{Partition: "VEC#1"}, newRegistry())
	assert.NilError(t, err)
	assert.Equal(t, testutils.Decoded[Vec3](t, p), Vec3{X: 4, Y: 5, Z: 6})
}

func TestNotFound(t *testing.T) {
	source, err := dynamodb.NewSource(newTable(), dynamodb.Config{Table: "props"})
	assert.NilError(t, err)

	_, err = source.LoadProperties(context.Background(), dynamodb.Key{Partition: "NOPE"}, newRegistry())
	assert.ErrorIs(t, err, dynamodb.ErrItemNotFound)
	assert.ErrorContains(t, err, `no item with key "NOPE" in table props`)
}

func TestDecodeFailure(t *testing.T) {
	source, err := dynamodb.NewSource(newTable(), dynamodb.Config{Table: "props"})
	assert.NilError(t, err)

	_, err = source.LoadProperties(context.Background(), dynamodb.Key{Partition: "BROKEN#1"}, newRegistry())
	assert.Assert(t, dynamic.IsInvalidField(err), "%v", err)
	var field *dynamic.FieldError
	assert.Assert(t, errors.As(err, &field))
	assert.Equal(t, field.Key, "translation")
}

func TestClientFailure(t *testing.T) {
	table := newTable()
	table.err = errors.New("throttled")
	source, err := dynamodb.NewSource(table, dynamodb.Config{Table: "props"})
	assert.NilError(t, err)

	_, err = source.Fetch(context.Background(), dynamodb.Key{Partition: "SCENE#1"})
	assert.ErrorContains(t, err, "GetItem error: throttled")
}

func TestNewSource(t *testing.T) {
	_, err := dynamodb.NewSource(nil, dynamodb.Config{Table: "props"})
	assert.ErrorContains(t, err, "without a client")
	_, err = dynamodb.NewSource(newTable(), dynamodb.Config{})
	assert.ErrorContains(t, err, "without a table")
}
