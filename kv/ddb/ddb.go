// Package ddb provides a DynamoDB implementation of the kv.Store contract.
//
// DynamoDB offers exactly what the strong contract needs: strongly consistent
// reads and conditional writes, which back PutIf's atomic compare-and-swap.
// This is the backend of choice for coordination state (reference tables,
// locks, manifests) sitting next to bulk object data in a WeakStore.
//
// # Table schema
//
// One item per key: partition key "k" (string), value attribute "v" (binary).
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name castore \
//	  --attribute-definitions AttributeName=k,AttributeType=S \
//	  --key-schema AttributeName=k,KeyType=HASH \
//	  --billing-mode PAY_PER_REQUEST
//
// DynamoDB limits items to 400 KB; values beyond that belong in a WeakStore
// with only their keys coordinated here.
package ddb

import (
	"context"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/hupe1980/castore/kv"
)

const (
	attrKey   = "k"
	attrValue = "v"
)

// Client is the subset of the DynamoDB API the store uses. *dynamodb.Client
// satisfies it; tests substitute an in-memory fake.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
}

// Store is a DynamoDB-backed kv.Store.
type Store struct {
	client Client
	table  string
}

type options struct {
	region string
	client Client
}

// Option configures New.
type Option func(*options)

// WithRegion overrides the region resolved from the environment.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithClient supplies a pre-built client, skipping AWS config resolution.
func WithClient(client Client) Option {
	return func(o *options) { o.client = client }
}

// New creates a Store over the given table. Unless WithClient is given,
// credentials and region are resolved the standard AWS way.
func New(ctx context.Context, table string, opts ...Option) (*Store, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	client := o.client
	if client == nil {
		var loadOpts []func(*config.LoadOptions) error
		if o.region != "" {
			loadOpts = append(loadOpts, config.WithRegion(o.region))
		}
		cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
		if err != nil {
			return nil, kv.NewPermanent("new_ddb_store", err)
		}
		client = dynamodb.NewFromConfig(cfg)
	}

	return &Store{client: client, table: table}, nil
}

func keyAttr(key kv.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrKey: &types.AttributeValueMemberS{Value: key.String()},
	}
}

// Get implements kv.Store using a strongly consistent read.
func (s *Store) Get(ctx context.Context, key kv.Key) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.table),
		Key:            keyAttr(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, classify("get", err)
	}
	if out.Item == nil {
		return nil, kv.ErrNotFound
	}
	v, ok := out.Item[attrValue].(*types.AttributeValueMemberB)
	if !ok {
		return nil, kv.NewPermanent("get", kv.ErrCorrupt)
	}
	return v.Value, nil
}

// Put implements kv.Store. DynamoDB acknowledges a write only after it is
// durable on multiple replicas, and item writes are atomic.
func (s *Store) Put(ctx context.Context, key kv.Key, value []byte) error {
	item := keyAttr(key)
	item[attrValue] = &types.AttributeValueMemberB{Value: value}

	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	})
	if err != nil {
		return classify("put", err)
	}
	return nil
}

// PutIf implements kv.Store via a conditional write. A nil expected means the
// key must be absent; a failed condition surfaces as kv.ErrCASConflict.
func (s *Store) PutIf(ctx context.Context, key kv.Key, expected, value []byte) error {
	item := keyAttr(key)
	item[attrValue] = &types.AttributeValueMemberB{Value: value}

	input := &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      item,
	}
	if expected == nil {
		input.ConditionExpression = aws.String("attribute_not_exists(#k)")
		input.ExpressionAttributeNames = map[string]string{"#k": attrKey}
	} else {
		input.ConditionExpression = aws.String("#v = :expected")
		input.ExpressionAttributeNames = map[string]string{"#v": attrValue}
		input.ExpressionAttributeValues = map[string]types.AttributeValue{
			":expected": &types.AttributeValueMemberB{Value: expected},
		}
	}

	if _, err := s.client.PutItem(ctx, input); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return kv.NewPermanent("put_if", kv.ErrCASConflict)
		}
		return classify("put_if", err)
	}
	return nil
}

// Exists implements kv.Store, consistent with the most recent Put or PutIf.
func (s *Store) Exists(ctx context.Context, key kv.Key) (bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(s.table),
		Key:                  keyAttr(key),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("#k"),
		ExpressionAttributeNames: map[string]string{
			"#k": attrKey,
		},
	})
	if err != nil {
		return false, classify("exists", err)
	}
	return out.Item != nil, nil
}

// throttleCodes are client-fault API codes that are nevertheless retryable.
var throttleCodes = map[string]struct{}{
	"ThrottlingException":                    {},
	"ProvisionedThroughputExceededException": {},
	"RequestLimitExceeded":                   {},
	"LimitExceededException":                 {},
	"TransactionConflictException":           {},
}

// classify maps a DynamoDB error onto the kv taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return kv.NewTransient(op, err)
	}

	var ae smithy.APIError
	if errors.As(err, &ae) {
		if _, ok := throttleCodes[ae.ErrorCode()]; ok {
			return kv.NewTransient(op, err)
		}
		if ae.ErrorFault() == smithy.FaultClient {
			return kv.NewPermanent(op, err)
		}
		return kv.NewTransient(op, err)
	}
	return kv.NewTransient(op, err)
}

var _ kv.Store = (*Store)(nil)
