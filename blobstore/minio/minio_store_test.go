package minio

import (
	"context"
	"io"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/require"
)

// TestMinioStore_Integration requires a running MinIO instance on localhost:9000.
func TestMinioStore_Integration(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	bucket := "test-coredata"
	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	store := NewStore(client, bucket, "it/")
	line := []byte("{\"id\":\"a\"}\n")
	require.NoError(t, store.Put(ctx, "fulltext_0.json", line))
	defer func() { _ = store.Delete(ctx, "fulltext_0.json") }()

	blob, err := store.Open(ctx, "fulltext_0.json")
	require.NoError(t, err)
	require.Equal(t, int64(len(line)), blob.Size())

	buf := make([]byte, 4)
	n, err := blob.ReadAt(ctx, buf, 2)
	require.NoError(t, err)
	require.Equal(t, `id":`, string(buf[:n]))

	rc, err := blob.ReadRange(ctx, 0, int64(len(line)))
	require.NoError(t, err)
	defer rc.Close()
	all, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.Equal(t, line, all)

	names, err := store.List(ctx, "fulltext_")
	require.NoError(t, err)
	require.Contains(t, names, "fulltext_0.json")

	_, err = store.Open(ctx, "missing.json")
	require.Error(t, err)
}
