package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T) (cfgPath, rawDir, dbDir string) {
	t.Helper()
	dir := t.TempDir()
	rawDir = filepath.Join(dir, "raw_query")
	dbDir = filepath.Join(dir, "db")
	require.NoError(t, os.MkdirAll(rawDir, 0o755))

	var page []map[string]any
	for i := range 5 {
		page = append(page, map[string]any{
			"id":       fmt.Sprintf("r%d", i),
			"fullText": fmt.Sprintf("Text %d", i),
		})
	}
	data, err := json.Marshal(page)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(rawDir, "q_0_0.json"), data, 0o644))

	cfgPath = filepath.Join(dir, "coredata.yaml")
	cfg := fmt.Sprintf("log:\n  level: error\ndataset:\n  raw_dir: %s\n  db_dir: %s\n  lines_per_shard: 2\n", rawDir, dbDir)
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath, rawDir, dbDir
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(t.Context(), args, &env{stdout: &stdout, stderr: &stderr})
	return code, stdout.String(), stderr.String()
}

func TestRun_ConvertGetDumpStats(t *testing.T) {
	cfg, rawDir, dbDir := writeConfig(t)

	code, out, errOut := runCmd(t, "convert", "-config", cfg)
	require.Equal(t, 0, code, errOut)
	var res map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.EqualValues(t, 5, res["rows"])
	assert.EqualValues(t, 3, res["shards"])
	assert.NoDirExists(t, rawDir)
	assert.FileExists(t, filepath.Join(dbDir, "metadata.json"))

	code, out, errOut = runCmd(t, "get", "-config", cfg, "-seq", "3")
	require.Equal(t, 0, code, errOut)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "r3", rec["id"])

	code, out, errOut = runCmd(t, "get", "-config", cfg, "-seq", "3", "-extract", "fulltext")
	require.Equal(t, 0, code, errOut)
	assert.JSONEq(t, `"text *number*"`, out)

	code, out, errOut = runCmd(t, "dump", "-config", cfg, "-start", "1", "-end", "2", "-extract", "fulltext", "-raw")
	require.Equal(t, 0, code, errOut)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.JSONEq(t, `{"seq":1,"value":"Text 1"}`, lines[0])
	assert.JSONEq(t, `{"seq":2,"value":"Text 2"}`, lines[1])

	code, out, errOut = runCmd(t, "dump", "-config", cfg, "-shuffle", "-seed", "7")
	require.Equal(t, 0, code, errOut)
	assert.Len(t, strings.Split(strings.TrimSpace(out), "\n"), 5)

	code, out, errOut = runCmd(t, "stats", "-config", cfg)
	require.Equal(t, 0, code, errOut)
	var st map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &st))
	assert.EqualValues(t, 5, st["rows"])
	assert.EqualValues(t, 3, st["shards"])
}

func TestRun_Errors(t *testing.T) {
	cfg, _, _ := writeConfig(t)

	code, _, errOut := runCmd(t)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage")

	code, _, errOut = runCmd(t, "index")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "index"`)

	code, _, errOut = runCmd(t, "stats", "-config", cfg)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no dataset")

	code, _, _ = runCmd(t, "convert", "-config", cfg)
	require.Equal(t, 0, code)

	code, _, errOut = runCmd(t, "convert", "-config", cfg, "-raw", t.TempDir())
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already exists")

	code, _, errOut = runCmd(t, "get", "-config", cfg, "-seq", "99")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")

	code, _, errOut = runCmd(t, "get", "-config", cfg, "-extract", "tokens")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "unknown extractor")

	code, _, errOut = runCmd(t, "publish", "-config", cfg)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "no remote configured")

	t.Setenv("CORE_API_KEY", "")
	code, _, errOut = runCmd(t, "crawl", "-config", cfg)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "CORE_API_KEY")

	code, _, _ = runCmd(t, "get", "-bogus")
	assert.Equal(t, 1, code)
}
