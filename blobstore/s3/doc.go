// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// Published datasets are read with ranged GETs: the record store only ever
// asks for one line's byte span at a time, so opening a large shard over S3
// costs one HEAD plus one sequential scan for the line index.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	store := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "datasets/cs/")
//	ds, _ := coredata.Open(ctx, coredata.Remote(store))
package s3
