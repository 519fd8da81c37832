package ddb

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/castore/kv"
	"github.com/hupe1980/castore/kv/kvtest"
)

// fakeClient is an in-memory DynamoDB fake honoring the condition
// expressions the store generates.
type fakeClient struct {
	mu    sync.Mutex
	items map[string][]byte
}

func newFakeClient() *fakeClient {
	return &fakeClient{items: make(map[string][]byte)}
}

func (f *fakeClient) GetItem(_ context.Context, params *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := params.Key[attrKey].(*types.AttributeValueMemberS).Value
	v, ok := f.items[k]
	if !ok {
		return &dynamodb.GetItemOutput{}, nil
	}
	return &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		attrKey:   &types.AttributeValueMemberS{Value: k},
		attrValue: &types.AttributeValueMemberB{Value: v},
	}}, nil
}

func (f *fakeClient) PutItem(_ context.Context, params *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	k := params.Item[attrKey].(*types.AttributeValueMemberS).Value
	v := params.Item[attrValue].(*types.AttributeValueMemberB).Value

	if params.ConditionExpression != nil {
		switch expr := *params.ConditionExpression; {
		case strings.Contains(expr, "attribute_not_exists"):
			if _, exists := f.items[k]; exists {
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
			}
		default:
			expected := params.ExpressionAttributeValues[":expected"].(*types.AttributeValueMemberB).Value
			current, exists := f.items[k]
			if !exists || !bytes.Equal(current, expected) {
				return nil, &types.ConditionalCheckFailedException{Message: aws.String("condition failed")}
			}
		}
	}

	copied := make([]byte, len(v))
	copy(copied, v)
	f.items[k] = copied
	return &dynamodb.PutItemOutput{}, nil
}

func TestStore_Conformance(t *testing.T) {
	kvtest.RunStoreTests(t, "DynamoDB", func(t *testing.T) kv.Store {
		store, err := New(context.Background(), "castore-test", WithClient(newFakeClient()))
		require.NoError(t, err)
		return store
	})
}

func TestStore_PutIf_ConcurrentCreators(t *testing.T) {
	ctx := context.Background()
	store, err := New(ctx, "castore-test", WithClient(newFakeClient()))
	require.NoError(t, err)

	key := kv.MustKey("10c")
	winners := 0
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if store.PutIf(ctx, key, nil, []byte{byte(i)}) == nil {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	// Exactly one creator may win the race for an absent key.
	assert.Equal(t, 1, winners)
}

func TestClassify(t *testing.T) {
	t.Run("Throttle", func(t *testing.T) {
		err := classify("put", &smithy.GenericAPIError{Code: "ProvisionedThroughputExceededException", Fault: smithy.FaultClient})
		assert.True(t, kv.IsTransient(err))
	})

	t.Run("ClientFault", func(t *testing.T) {
		err := classify("put", &smithy.GenericAPIError{Code: "ValidationException", Fault: smithy.FaultClient})
		assert.True(t, kv.IsPermanent(err))
	})

	t.Run("ServerFault", func(t *testing.T) {
		err := classify("put", &smithy.GenericAPIError{Code: "InternalServerError", Fault: smithy.FaultServer})
		assert.True(t, kv.IsTransient(err))
	})
}
