package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/castore/kv"
)

// MockClient is a testify mock for the Client interface.
type MockClient struct {
	mock.Mock
}

func (m *MockClient) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.GetObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.PutObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.HeadObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.DeleteObjectOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.ListObjectsV2Output), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.CreateMultipartUploadOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.UploadPartOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.CompleteMultipartUploadOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClient) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	args := m.Called(ctx, params)
	if out := args.Get(0); out != nil {
		return out.(*s3.AbortMultipartUploadOutput), args.Error(1)
	}
	return nil, args.Error(1)
}

func newTestStore(t *testing.T, client Client) *Store {
	t.Helper()
	store, err := New(context.Background(), "test-bucket", WithClient(client), WithPrefix("objects/"))
	require.NoError(t, err)
	return store
}

func TestStore_WeakGet(t *testing.T) {
	t.Run("Found", func(t *testing.T) {
		mockClient := new(MockClient)
		store := newTestStore(t, mockClient)

		mockClient.On("GetObject", mock.Anything, mock.MatchedBy(func(in *s3.GetObjectInput) bool {
			return *in.Bucket == "test-bucket" && *in.Key == "objects/abc123"
		})).Return(&s3.GetObjectOutput{
			Body: io.NopCloser(bytes.NewReader([]byte("payload"))),
		}, nil).Once()

		got, err := store.WeakGet(context.Background(), kv.MustKey("abc123"))
		require.NoError(t, err)
		assert.Equal(t, []byte("payload"), got)
	})

	t.Run("NoSuchKey", func(t *testing.T) {
		mockClient := new(MockClient)
		store := newTestStore(t, mockClient)

		mockClient.On("GetObject", mock.Anything, mock.Anything).Return(nil, &types.NoSuchKey{}).Once()

		_, err := store.WeakGet(context.Background(), kv.MustKey("abc123"))
		assert.ErrorIs(t, err, kv.ErrNotFound)
		assert.True(t, kv.IsPermanent(err))
	})
}

func TestStore_WeakPut(t *testing.T) {
	mockClient := new(MockClient)
	store := newTestStore(t, mockClient)

	mockClient.On("PutObject", mock.Anything, mock.MatchedBy(func(in *s3.PutObjectInput) bool {
		return *in.Bucket == "test-bucket" && *in.Key == "objects/feedface"
	})).Return(&s3.PutObjectOutput{}, nil).Once()

	err := store.WeakPut(context.Background(), kv.MustKey("feedface"), []byte("small payload"))
	require.NoError(t, err)
	mockClient.AssertExpectations(t)
}

func TestStore_WeakExists(t *testing.T) {
	t.Run("Present", func(t *testing.T) {
		mockClient := new(MockClient)
		store := newTestStore(t, mockClient)

		mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(&s3.HeadObjectOutput{}, nil).Once()

		ok, err := store.WeakExists(context.Background(), kv.MustKey("aa"))
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("Absent", func(t *testing.T) {
		mockClient := new(MockClient)
		store := newTestStore(t, mockClient)

		mockClient.On("HeadObject", mock.Anything, mock.Anything).Return(nil, &types.NotFound{}).Once()

		ok, err := store.WeakExists(context.Background(), kv.MustKey("aa"))
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestStore_WeakDelete_AbsentIsFine(t *testing.T) {
	mockClient := new(MockClient)
	store := newTestStore(t, mockClient)

	mockClient.On("DeleteObject", mock.Anything, mock.Anything).Return(&s3.DeleteObjectOutput{}, nil).Once()

	require.NoError(t, store.WeakDelete(context.Background(), kv.MustKey("bb")))
}

func TestStore_WeakIter_Pagination(t *testing.T) {
	mockClient := new(MockClient)
	store := newTestStore(t, mockClient)
	ctx := context.Background()

	// Page 1: truncated, hands back a continuation token.
	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken == nil && *in.Prefix == "objects/" && *in.MaxKeys == 2
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("objects/aa11")},
			{Key: aws.String("objects/bb22")},
		},
		IsTruncated:           aws.Bool(true),
		NextContinuationToken: aws.String("token-1"),
	}, nil).Once()

	res, err := store.WeakIter(ctx, kv.Cursor{}, 2)
	require.NoError(t, err)
	assert.Equal(t, []kv.Key{kv.MustKey("aa11"), kv.MustKey("bb22")}, res.Keys)
	require.False(t, res.Done())

	// Page 2: resumed from the serialized cursor, final page.
	mockClient.On("ListObjectsV2", mock.Anything, mock.MatchedBy(func(in *s3.ListObjectsV2Input) bool {
		return in.ContinuationToken != nil && *in.ContinuationToken == "token-1"
	})).Return(&s3.ListObjectsV2Output{
		Contents: []types.Object{
			{Key: aws.String("objects/cc33")},
			{Key: aws.String("objects/not-a-key.tmp")}, // foreign object, skipped
		},
		IsTruncated: aws.Bool(false),
	}, nil).Once()

	res, err = store.WeakIter(ctx, kv.ResumeCursor(res.Next.Token()), 2)
	require.NoError(t, err)
	assert.Equal(t, []kv.Key{kv.MustKey("cc33")}, res.Keys)
	assert.True(t, res.Done())
}

func TestClassify(t *testing.T) {
	t.Run("Throttle", func(t *testing.T) {
		err := classify("weak_put", &smithy.GenericAPIError{Code: "SlowDown", Fault: smithy.FaultClient})
		assert.True(t, kv.IsTransient(err))
	})

	t.Run("ServerFault", func(t *testing.T) {
		err := classify("weak_put", &smithy.GenericAPIError{Code: "InternalError", Fault: smithy.FaultServer})
		assert.True(t, kv.IsTransient(err))
	})

	t.Run("ClientFault", func(t *testing.T) {
		err := classify("weak_put", &smithy.GenericAPIError{Code: "AccessDenied", Fault: smithy.FaultClient})
		assert.True(t, kv.IsPermanent(err))
	})

	t.Run("Transport", func(t *testing.T) {
		err := classify("weak_get", errors.New("connection reset by peer"))
		assert.True(t, kv.IsTransient(err))
	})

	t.Run("ContextDeadline", func(t *testing.T) {
		err := classify("weak_get", context.DeadlineExceeded)
		assert.True(t, kv.IsTransient(err))
	})
}
