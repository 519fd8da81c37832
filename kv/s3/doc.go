// Package s3 provides an Amazon S3 implementation of the kv.WeakStore
// contract.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("objects/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	odb := castore.NewOdb(store)
//
// # Contract mapping
//
//   - Durability: S3 acknowledges a PUT only after storing the object
//     redundantly, which satisfies durable-before-success.
//   - Atomicity: object PUTs are all-or-nothing; multipart uploads only
//     materialize on completion.
//   - Visibility: reads and listings may briefly lag overwrites and deletes,
//     which is exactly the slack the weak contract grants.
//   - Iteration: WeakIter pages with ListObjectsV2 continuation tokens,
//     wrapped in opaque kv.Cursor tokens that survive process restarts.
package s3
