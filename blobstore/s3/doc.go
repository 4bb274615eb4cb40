// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("run-42/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	meta, err := checkpoint.Save(ctx, store, 10, checkpoint.Iteration, arrays)
//
// # Features
//
//   - Range reads for efficient partial fetches
//   - Multipart uploads for large checkpoint archives
//   - Conditional writes (If-None-Match) for exclusive saves
//   - A DynamoDB backed CURRENT pointer via DDBCommitStore
package s3
