package lineindex

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hupe1980/coredata/blobstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func build(t *testing.T, data string) (Index, blobstore.Blob) {
	t.Helper()
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(ctx, "fulltext_0.json", []byte(data)))
	b, err := store.Open(ctx, "fulltext_0.json")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	idx, err := Build(ctx, b)
	require.NoError(t, err)
	return idx, b
}

func TestBuild(t *testing.T) {
	tests := []struct {
		name string
		data string
		want Index
	}{
		{"empty", "", Index{}},
		{"single terminated", "a\n", Index{0}},
		{"single unterminated", "abc", Index{0}},
		{"several", "a\nbb\nccc\n", Index{0, 2, 5}},
		{"unterminated tail", "a\nbb\nccc", Index{0, 2, 5}},
		{"blank lines", "\n\nx\n", Index{0, 1, 2}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, _ := build(t, tt.data)
			assert.Equal(t, tt.want, idx)
		})
	}
}

func TestBuild_RoundTrip(t *testing.T) {
	lines := []string{`{"id":"1"}`, `{"id":"2","fullText":"` + strings.Repeat("x", 3*DefaultBufferSize) + `"}`, `{"id":"3"}`}
	data := strings.Join(lines, "\n") + "\n"

	idx, b := build(t, data)
	require.Equal(t, len(lines), idx.Len())

	ctx := context.Background()
	for i, want := range lines {
		off, n, ok := idx.Span(i, b.Size())
		require.True(t, ok)
		buf := make([]byte, n)
		_, err := b.ReadAt(ctx, buf, off)
		require.NoError(t, err)
		assert.Equal(t, want+"\n", string(buf))
	}

	_, _, ok := idx.Span(len(lines), b.Size())
	assert.False(t, ok)
	_, _, ok = idx.Span(-1, b.Size())
	assert.False(t, ok)
}

func TestScan_SmallBuffer(t *testing.T) {
	data := "0123456789\nabcdefghijklmnopqrstuvwxyz\n!"
	idx, n, err := Scan(context.Background(), bytes.NewReader([]byte(data)), 16)
	require.NoError(t, err)
	assert.Equal(t, int64(len(data)), n)
	assert.Equal(t, Index{0, 11, 38}, idx)
}

func TestScan_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Scan(ctx, strings.NewReader("a\nb\n"), 16)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild_LocalStore(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewLocalStore(t.TempDir())
	require.NoError(t, store.Put(ctx, "fulltext_0.json", []byte("a\nbb\n")))

	b, err := store.Open(ctx, "fulltext_0.json")
	require.NoError(t, err)
	defer b.Close()

	idx, err := Build(ctx, b)
	require.NoError(t, err)
	assert.Equal(t, Index{0, 2}, idx)
}
