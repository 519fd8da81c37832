// Package kv defines the key/value contracts that castore backends implement.
//
// Two capability sets are provided:
//
//   - WeakStore: maximally relaxed visibility, intended for content-addressable
//     workloads where duplicate writes of the same key are harmless.
//   - Store: immediate read-after-write plus an atomic compare-and-swap
//     primitive, for workloads that need coordination (reference tables,
//     locks, manifests).
//
// A backend may implement one, the other, or both. Higher-level code should
// depend on the narrowest capability it needs.
//
// # Durability
//
// A successful put, weak or strong, means the value has been durably stored
// before the call returned. What "durable" means is backend-defined (fsync for
// a local filesystem, a replica quorum for a distributed store) and must be
// documented by the backend. Durability is independent of visibility: a value
// can be durably written and still not be visible to weak reads for a while.
//
// # Built-in backends
//
//   - MemStore: in-memory, implements both contracts (testing)
//   - local.Store: local filesystem WeakStore
//   - s3.Store, minio.Store: object-storage WeakStores
//   - ddb.Store: DynamoDB Store with conditional-write CAS
//
// Decorators (NewThrottledStore, rediscache.Cache) wrap a WeakStore without
// changing its contract.
package kv

import "context"

// WeakStore provides key/value storage with maximally relaxed semantics,
// sufficient for a content-addressable store.
//
// Writes are durable and atomic: a concurrent reader never observes truncated
// or corrupt bytes, even when the key is being overwritten. A put over an
// existing key succeeds, but whether the old or the new value is retained is
// implementation-defined; last-writer-wins is NOT guaranteed. Success of a put
// does not imply immediate visibility: a subsequent WeakGet or WeakExists may
// still miss the key for a while. Callers that need visibility should poll
// with backoff (see WaitVisible).
//
// Deletion is not atomic with respect to concurrent writers of the same key.
// This layer does not resolve the delete/write race; callers that rely on
// deletion correctness (garbage collectors) must coordinate externally.
//
// Implementations must be safe for concurrent use.
type WeakStore interface {
	// WeakGet returns the value stored under key.
	//
	// ErrNotFound means the key is absent OR durably stored but not yet
	// visible; a single miss must not be read as permanent non-existence.
	WeakGet(ctx context.Context, key Key) ([]byte, error)

	// WeakPut durably stores value under key. The store does not retain or
	// mutate the caller's slice.
	WeakPut(ctx context.Context, key Key, value []byte) error

	// WeakExists reports whether key is visible. It may return false for a
	// key that was durably stored but has not yet become visible; it
	// eventually returns true for every durably stored, non-deleted key.
	WeakExists(ctx context.Context, key Key) (bool, error)

	// WeakDelete removes the value stored under key, if any.
	WeakDelete(ctx context.Context, key Key) error

	// WeakIter returns one page of keys, resuming from cursor.
	//
	// Pass the zero Cursor to start a new iteration sequence; iterate with
	// each returned IterationResult.Next until it is zero. maxItems bounds
	// the page size only; a page may hold fewer keys (including none)
	// without the iteration being complete. maxItems <= 0 selects a
	// backend-chosen default.
	//
	// Keys written before the sequence began eventually appear in it, except
	// as limited by eventual consistency. Keys written during the sequence
	// may or may not appear. Order is implementation-defined. All sequencing
	// state lives in the cursor, so independent sequences never interfere.
	WeakIter(ctx context.Context, cursor Cursor, maxItems int) (IterationResult, error)
}

// Store provides key/value storage with strong consistency: a Get observes
// every previously completed Put or PutIf with no eventual-consistency window.
//
// PutIf is the sole coordination primitive in this layer; locks, manifests and
// generation counters are built from it by higher-level code.
//
// Implementations must be safe for concurrent use.
type Store interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key Key) ([]byte, error)

	// Put durably stores value under key, unconditionally overwriting any
	// existing value. The write is immediately visible.
	Put(ctx context.Context, key Key, value []byte) error

	// PutIf atomically replaces the value under key with value if and only
	// if the current value equals expected. A nil expected means the key
	// must be absent. On a failed comparison it returns ErrCASConflict.
	PutIf(ctx context.Context, key Key, expected, value []byte) error

	// Exists reports whether key holds a value, consistent with the most
	// recent successful Put or PutIf.
	Exists(ctx context.Context, key Key) (bool, error)
}

// IterationResult is one page of a WeakIter sequence.
type IterationResult struct {
	// Keys discovered in this page. May be empty even when the iteration is
	// not complete.
	Keys []Key

	// Next resumes the sequence. The zero Cursor signals completion; an
	// empty Keys slice alone does not.
	Next Cursor
}

// Done reports whether the iteration sequence is complete.
func (r IterationResult) Done() bool { return r.Next.IsZero() }
