// Package checkpoint stores sets of named NDArrays as zip archives in a
// blobstore.BlobStore.
//
// Archives are named checkpoint_<N>_<kind>.zip, where N is the checkpoint
// number and kind is "iteration" or "epoch". Each archive contains one entry
// per array in the ndarray wire format plus a metadata entry (meta.json or
// meta.msgpack) listing the arrays and the training position.
//
// The "latest checkpoint" pointer is the CURRENT blob. Stores that need
// compare-and-swap semantics for it (S3 with concurrent writers) wrap the
// store in s3.DDBCommitStore; Save itself never deletes or rotates files.
//
//	meta, err := checkpoint.Save(ctx, store, 7, checkpoint.Iteration, arrays,
//	    checkpoint.WithPosition(7000, 3),
//	    checkpoint.WithCommit(),
//	)
//	...
//	name, err := checkpoint.Latest(ctx, store)
//	cp, err := checkpoint.Load(ctx, store, name)
//	defer cp.Release()
package checkpoint
