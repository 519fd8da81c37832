package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/castore/kv"
)

const defaultPageSize = 1000 // S3's own ListObjectsV2 ceiling

// Client is the subset of the S3 API the store uses. *s3.Client satisfies it;
// tests substitute a mock. The multipart operations are required by the
// upload manager.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
}

// Store is an S3-backed WeakStore.
//
// S3's semantics line up with the weak contract: a 200 on PUT means the
// object is durably stored across facilities, PUTs are atomic at object
// granularity (readers see a complete old or new object, never a blend), and
// listings after overwrites or deletes may briefly serve stale results.
// WeakIter maps directly onto ListObjectsV2 continuation tokens.
type Store struct {
	client   Client
	uploader *manager.Uploader
	bucket   string
	prefix   string
}

type options struct {
	prefix   string
	region   string
	client   Client
	partSize int64
}

// Option configures New.
type Option func(*options)

// WithPrefix scopes all keys under an S3 key prefix, e.g. "objects/".
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithRegion overrides the region resolved from the environment.
func WithRegion(region string) Option {
	return func(o *options) { o.region = region }
}

// WithClient supplies a pre-built client, skipping AWS config resolution.
func WithClient(client Client) Option {
	return func(o *options) { o.client = client }
}

// WithUploadPartSize sets the multipart threshold/part size in bytes for
// large WeakPut payloads. Defaults to the SDK's 5 MiB.
func WithUploadPartSize(n int64) Option {
	return func(o *options) { o.partSize = n }
}

// New creates an S3 store for bucket. Unless WithClient is given, credentials
// and region are resolved the standard AWS way (environment, shared config,
// instance metadata).
func New(ctx context.Context, bucket string, opts ...Option) (*Store, error) {
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
			return nil, kv.NewPermanent("new_s3_store", err)
		}
		client = s3.NewFromConfig(cfg)
	}

	uploader := manager.NewUploader(client, func(u *manager.Uploader) {
		if o.partSize > 0 {
			u.PartSize = o.partSize
		}
	})

	return &Store{client: client, uploader: uploader, bucket: bucket, prefix: o.prefix}, nil
}

func (s *Store) objectKey(key kv.Key) string {
	return path.Join(s.prefix, key.String())
}

// stripPrefix recovers the kv key text from a full S3 object key.
func (s *Store) stripPrefix(objectKey string) string {
	rel := strings.TrimPrefix(objectKey, s.prefix)
	return strings.TrimPrefix(rel, "/")
}

// WeakGet implements kv.WeakStore.
func (s *Store) WeakGet(ctx context.Context, key kv.Key) ([]byte, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		return nil, classify("weak_get", err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, kv.NewTransient("weak_get", err)
	}
	return data, nil
}

// WeakPut implements kv.WeakStore. Payloads above the configured part size
// are uploaded in parts; a failed multipart upload is aborted by the SDK, so
// readers never observe a partial object.
func (s *Store) WeakPut(ctx context.Context, key kv.Key, value []byte) error {
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
		Body:   bytes.NewReader(value),
	})
	if err != nil {
		return classify("weak_put", err)
	}
	return nil
}

// WeakExists implements kv.WeakStore.
func (s *Store) WeakExists(ctx context.Context, key kv.Key) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		err = classify("weak_exists", err)
		if errors.Is(err, kv.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// WeakDelete implements kv.WeakStore. Deleting an absent key succeeds.
func (s *Store) WeakDelete(ctx context.Context, key kv.Key) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.objectKey(key)),
	})
	if err != nil {
		err = classify("weak_delete", err)
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// s3Cursor wraps S3's continuation token.
type s3Cursor struct {
	Token string `cbor:"t"`
}

// WeakIter implements kv.WeakStore by paging ListObjectsV2. Keys arrive in
// S3's lexicographic listing order; objects under the prefix whose names are
// not valid keys are skipped.
func (s *Store) WeakIter(ctx context.Context, cursor kv.Cursor, maxItems int) (kv.IterationResult, error) {
	if maxItems <= 0 || maxItems > defaultPageSize {
		maxItems = defaultPageSize
	}

	input := &s3.ListObjectsV2Input{
		Bucket:  aws.String(s.bucket),
		MaxKeys: aws.Int32(int32(maxItems)),
	}
	if s.prefix != "" {
		input.Prefix = aws.String(s.prefix)
	}
	if !cursor.IsZero() {
		var state s3Cursor
		if err := kv.DecodeCursor(cursor, &state); err != nil {
			return kv.IterationResult{}, err
		}
		input.ContinuationToken = aws.String(state.Token)
	}

	page, err := s.client.ListObjectsV2(ctx, input)
	if err != nil {
		return kv.IterationResult{}, classify("weak_iter", err)
	}

	keys := make([]kv.Key, 0, len(page.Contents))
	for _, obj := range page.Contents {
		k, err := kv.NewKey(s.stripPrefix(aws.ToString(obj.Key)))
		if err != nil {
			continue
		}
		keys = append(keys, k)
	}

	res := kv.IterationResult{Keys: keys}
	if aws.ToBool(page.IsTruncated) {
		next, err := kv.EncodeCursor(s3Cursor{Token: aws.ToString(page.NextContinuationToken)})
		if err != nil {
			return kv.IterationResult{}, err
		}
		res.Next = next
	}
	return res, nil
}

// notFound reports whether err is S3's flavor of "no such object".
func notFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	return errors.As(err, &nf)
}

var _ kv.WeakStore = (*Store)(nil)
