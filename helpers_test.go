package coredata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coredata/internal/compress"
)

type page []map[string]any

func paper(i int) map[string]any {
	return map[string]any{
		"id":       fmt.Sprintf("r%d", i),
		"oai":      fmt.Sprintf("oai:core:%d", i),
		"title":    fmt.Sprintf("Title %d", i),
		"fullText": fmt.Sprintf("Full text of paper %d.\nSecond line.", i),
	}
}

func papers(from, to int) page {
	var p page
	for i := from; i < to; i++ {
		p = append(p, paper(i))
	}
	return p
}

// writePages stores pages as q_<i>.json in a fresh raw directory and
// returns the directory.
func writePages(t *testing.T, pages ...page) string {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "raw_query")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for i, p := range pages {
		writeFile(t, dir, fmt.Sprintf("q_%d.json", i), p, compress.None)
	}
	return dir
}

func writeFile(t *testing.T, dir, name string, p page, typ compress.Type) {
	t.Helper()
	data, err := json.Marshal(p)
	require.NoError(t, err)
	data, err = compress.EncodeAll(data, typ)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), data, 0o644))
}

// convertFixture builds the 4/4/5 dataset whose last record repeats the id
// of the first one.
func convertFixture(t *testing.T, opts ...Option) (string, ConvertResult) {
	t.Helper()
	last := papers(8, 13)
	last[4]["id"] = "r0"

	raw := writePages(t, papers(0, 4), papers(4, 8), last)
	dest := filepath.Join(t.TempDir(), "db")

	res, err := Convert(t.Context(), raw, Local(dest), append([]Option{WithLinesPerShard(5)}, opts...)...)
	require.NoError(t, err)
	return dest, res
}

func fieldString(t *testing.T, rec Record, field string) string {
	t.Helper()
	var s string
	require.NoError(t, json.Unmarshal(rec[field], &s))
	return s
}
