// Package dynamodb loads property bags stored as DynamoDB items.
//
// Items are laid out as described in `deserialize/ddb`: one attribute per
// property, annotated with `EntityType`, next to the table keys.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	sdk "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pasqal-io/dynprops/deserialize/ddb"
	"github.com/pasqal-io/dynprops/dynamic"
	"github.com/pasqal-io/dynprops/property"
	"github.com/pasqal-io/dynprops/registry"
)

const (
	DefaultPartitionKey = "PK"
	DefaultSortKey      = "SK"
)

// ErrItemNotFound is returned when no item matches a key.
var ErrItemNotFound = errors.New("item not found")

// NotFoundError represents an error when no item matches a key.
type NotFoundError struct {
	Table string
	Key   Key
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no item with key %s in table %s", e.Key, e.Table)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrItemNotFound
}

// The subset of the DynamoDB client we need.
type GetItemAPI interface {
	GetItem(ctx context.Context, params *sdk.GetItemInput, optFns ...func(*sdk.Options)) (*sdk.GetItemOutput, error)
}

// Connection settings.
type Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Table     string

	// Overrides the service endpoint, e.g. for a local DynamoDB.
	Endpoint string

	// Key attribute names. Default to `PK` and `SK`.
	PartitionKey string
	SortKey      string
}

// NewClient initializes a DynamoDB client using static credentials.
func NewClient(ctx context.Context, cfg Config) (*sdk.Client, error) {
	awsConfig, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	client := sdk.NewFromConfig(awsConfig, func(options *sdk.Options) {
		if cfg.Endpoint != "" {
			options.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	slog.Debug("DynamoDB client initialized", "table", cfg.Table, "region", cfg.Region)
	return client, nil
}

// The key of an item. `Sort` may be empty for tables without a sort key.
type Key struct {
	Partition string
	Sort      string
}

func (k Key) String() string {
	if k.Sort == "" {
		return fmt.Sprintf("%q", k.Partition)
	}
	return fmt.Sprintf("%q/%q", k.Partition, k.Sort)
}

// Reads items of a single table.
type Source struct {
	client       GetItemAPI
	table        string
	partitionKey string
	sortKey      string
}

// A source reading `cfg.Table` through `client`.
func NewSource(client GetItemAPI, cfg Config) (*Source, error) {
	if client == nil {
		return nil, errors.New("cannot create a source without a client")
	}
	if cfg.Table == "" {
		return nil, errors.New("cannot create a source without a table")
	}
	source := &Source{
		client:       client,
		table:        cfg.Table,
		partitionKey: cfg.PartitionKey,
		sortKey:      cfg.SortKey,
	}
	if source.partitionKey == "" {
		source.partitionKey = DefaultPartitionKey
	}
	if source.sortKey == "" {
		source.sortKey = DefaultSortKey
	}
	return source, nil
}

// Fetch the raw item stored under `key`.
func (s *Source) Fetch(ctx context.Context, key Key) (map[string]types.AttributeValue, error) {
	input := map[string]string{s.partitionKey: key.Partition}
	if key.Sort != "" {
		input[s.sortKey] = key.Sort
	}
	keyMap, err := attributevalue.MarshalMap(input)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal key: %w", err)
	}
	out, err := s.client.GetItem(ctx, &sdk.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyMap,
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("GetItem error: %w", err)
	}
	if out.Item == nil {
		return nil, &NotFoundError{Table: s.table, Key: key}
	}
	return out.Item, nil
}

// Fetch the item stored under `key` and decode it as a bag of properties.
//
// The key attributes are not part of the bag.
func (s *Source) LoadProperties(ctx context.Context, key Key, reg *registry.Registry) (*property.DynamicProperties, error) {
	stream, err := s.open(ctx, key)
	if err != nil {
		return nil, err
	}
	bag, err := dynamic.DeserializeDynamicPropertiesFromStream(stream, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode item %s:\n\t * %w", key, err)
	}
	return bag, nil
}

// Fetch the item stored under `key` and decode it as a single property.
func (s *Source) LoadProperty(ctx context.Context, key Key, reg *registry.Registry) (property.Property, error) {
	stream, err := s.open(ctx, key)
	if err != nil {
		return nil, err
	}
	p, err := dynamic.DeserializePropertyFromStream(stream, reg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode item %s:\n\t * %w", key, err)
	}
	return p, nil
}

func (s *Source) open(ctx context.Context, key Key) (*ddb.Stream, error) {
	item, err := s.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	return ddb.NewStream(item, s.partitionKey, s.sortKey) //nolint:wrapcheck
}
