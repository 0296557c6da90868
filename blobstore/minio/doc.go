// Package minio provides a blobstore.BlobStore for MinIO and other
// S3-compatible object stores, using github.com/minio/minio-go/v7.
package minio
