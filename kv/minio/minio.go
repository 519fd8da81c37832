// Package minio provides a kv.WeakStore for MinIO and other S3-compatible
// object stores via the native MinIO client.
//
// Semantics match the s3 package: durable, atomic object PUTs with possibly
// lagging read and list visibility, which fits the weak contract. WeakIter
// resumes with the listing StartAfter marker, so cursors survive process
// restarts.
package minio

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/castore/kv"
)

const defaultPageSize = 1000

// Store is a MinIO-backed WeakStore.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

// New creates a store over bucket. rootPrefix (e.g. "objects/") scopes all
// keys; pass "" for none.
func New(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, prefix: rootPrefix}
}

func (s *Store) objectKey(key kv.Key) string {
	return path.Join(s.prefix, key.String())
}

func (s *Store) stripPrefix(objectKey string) string {
	rel := strings.TrimPrefix(objectKey, s.prefix)
	return strings.TrimPrefix(rel, "/")
}

// WeakGet implements kv.WeakStore.
func (s *Store) WeakGet(ctx context.Context, key kv.Key) ([]byte, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectKey(key), minio.GetObjectOptions{})
	if err != nil {
		return nil, classify("weak_get", err)
	}
	defer obj.Close()

	data, err := io.ReadAll(obj)
	if err != nil {
		return nil, classify("weak_get", err)
	}
	return data, nil
}

// WeakPut implements kv.WeakStore.
func (s *Store) WeakPut(ctx context.Context, key kv.Key, value []byte) error {
	_, err := s.client.PutObject(ctx, s.bucket, s.objectKey(key),
		bytes.NewReader(value), int64(len(value)), minio.PutObjectOptions{})
	if err != nil {
		return classify("weak_put", err)
	}
	return nil
}

// WeakExists implements kv.WeakStore.
func (s *Store) WeakExists(ctx context.Context, key kv.Key) (bool, error) {
	_, err := s.client.StatObject(ctx, s.bucket, s.objectKey(key), minio.StatObjectOptions{})
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
	err := s.client.RemoveObject(ctx, s.bucket, s.objectKey(key), minio.RemoveObjectOptions{})
	if err != nil {
		err = classify("weak_delete", err)
		if errors.Is(err, kv.ErrNotFound) {
			return nil
		}
		return err
	}
	return nil
}

// minioCursor resumes a listing after a full object key.
type minioCursor struct {
	After string `cbor:"a"`
}

// WeakIter implements kv.WeakStore by streaming one page of the bucket
// listing and recording the last object key as the resume marker.
func (s *Store) WeakIter(ctx context.Context, cursor kv.Cursor, maxItems int) (kv.IterationResult, error) {
	if maxItems <= 0 {
		maxItems = defaultPageSize
	}

	var state minioCursor
	if !cursor.IsZero() {
		if err := kv.DecodeCursor(cursor, &state); err != nil {
			return kv.IterationResult{}, err
		}
	}

	// Cancel the listing goroutine as soon as the page is full.
	listCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var keys []kv.Key
	more := false
	for obj := range s.client.ListObjects(listCtx, s.bucket, minio.ListObjectsOptions{
		Prefix:     s.prefix,
		Recursive:  true,
		StartAfter: state.After,
	}) {
		if obj.Err != nil {
			return kv.IterationResult{}, classify("weak_iter", obj.Err)
		}
		if len(keys) == maxItems {
			more = true
			break
		}
		state.After = obj.Key
		k, err := kv.NewKey(s.stripPrefix(obj.Key))
		if err != nil {
			continue // foreign object under the prefix
		}
		keys = append(keys, k)
	}

	res := kv.IterationResult{Keys: keys}
	if more {
		next, err := kv.EncodeCursor(state)
		if err != nil {
			return kv.IterationResult{}, err
		}
		res.Next = next
	}
	return res, nil
}

// classify maps a MinIO error onto the kv taxonomy.
func classify(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return kv.NewTransient(op, err)
	}

	resp := minio.ToErrorResponse(err)
	switch {
	case resp.Code == "NoSuchKey" || resp.Code == "NotFound" || resp.StatusCode == http.StatusNotFound:
		return kv.NewPermanent(op, kv.ErrNotFound)
	case resp.Code == "SlowDown" || resp.StatusCode == http.StatusTooManyRequests:
		return kv.NewTransient(op, err)
	case resp.StatusCode >= 500:
		return kv.NewTransient(op, err)
	case resp.StatusCode >= 400:
		return kv.NewPermanent(op, err)
	default:
		// Transport-level failure with no API response.
		return kv.NewTransient(op, err)
	}
}

var _ kv.WeakStore = (*Store)(nil)
