// Package blobstore provides the storage abstraction datasets are read from
// and written to.
//
// A dataset is a flat namespace of blobs: one metadata file and a run of
// numbered shard files. Blobs are written once and then only read, so the
// interface favors whole-object writes and ranged reads.
//
// # Built-in Implementations
//
//   - LocalStore: a directory on the local file system
//   - MemoryStore: in-memory, for tests
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3-compatible services
package blobstore
