// Package castore provides a content-addressable object database for Go.
//
// Castore stores immutable objects under keys derived from their content
// (SHA-256), on top of pluggable storage backends with explicit consistency
// contracts.
//
// # Quick Start
//
// In-memory:
//
//	ctx := context.Background()
//	odb := castore.NewOdb(kv.NewMemStore())
//
//	oid, _ := odb.PutObject(ctx, []byte("hello"))
//	data, _ := odb.GetObject(ctx, oid)
//
// Cloud mode:
//
//	store, _ := s3.New(ctx, "my-bucket", s3.WithPrefix("objects/"))
//	zstd, _ := codec.NewZstd()
//	odb := castore.NewOdb(store,
//	    castore.WithCodec(zstd),
//	    castore.WithVerifyOnRead(true),
//	)
//
// # Storage contracts
//
// Backends implement one of two contracts from the kv package:
//
//	// kv.WeakStore: eventually consistent bulk data.
//	// Writes are durable and atomic on success; reads, existence checks
//	// and listings may briefly lag. Backends: MemStore, local, s3, minio.
//	//
//	// kv.Store: immediately consistent coordination state with
//	// atomic compare-and-swap (PutIf). Backends: MemStore, ddb.
//
// The Odb needs only a WeakStore: content-addressed data never changes under
// its key, so lagging visibility is benign. Mutable coordination state
// (manifests, references) belongs in a kv.Store.
//
// # Decorators
//
// WeakStores compose:
//
//	cached := rediscache.New(inner, redisClient)          // read-through cache
//	limited := kv.NewThrottledStore(cached, rate.NewLimiter(...))
//
// # Errors
//
// All failures carry a Transient or Permanent classification; see
// kv.IsTransient and kv.IsPermanent. Retry loops key off the class, never
// off message text.
package castore
