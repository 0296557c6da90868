package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/coredata/crawl"
)

const sample = `
log:
  level: debug
  format: json
dataset:
  raw_dir: ./data/cs/raw_query
  db_dir: ./data/cs/db
  lines_per_shard: 5000
crawl:
  compression: zstd
  params:
    - key: repositories.id
      values: [144]
    - key: year
      values: [2016, 2017]
    - key: topics
      values: ["Computer Science - Sound"]
preprocess:
  lowercase: true
  no_punct: true
remote:
  kind: minio
  bucket: papers
  endpoint: localhost:9000
server:
  addr: ":9090"
  shutdown_timeout: 3s
`

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "coredata.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	t.Setenv(EnvAPIKey, "key-from-env")
	t.Setenv(EnvRemoteAccessKey, "ak")
	t.Setenv(EnvRemoteSecretKey, "sk")

	cfg, err := Load(path)
	require.NoError(t, err)

	level, err := cfg.LogLevel()
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	assert.Equal(t, "./data/cs/db", cfg.Dataset.DBDir)
	assert.Equal(t, 5000, cfg.Dataset.LinesPerShard)
	assert.Equal(t, "go-json", cfg.Dataset.Codec)

	assert.Equal(t, "key-from-env", cfg.Crawl.APIKey)
	assert.Equal(t, 100, cfg.Crawl.PageSize)
	require.Len(t, cfg.Crawl.Params, 3)
	assert.Equal(t, []any{2016, 2017}, cfg.Crawl.Params[1].Values)
	assert.True(t, *cfg.Crawl.FullText)

	opts, err := cfg.PreprocessOptions()
	require.NoError(t, err)
	assert.True(t, opts.Lowercase)
	assert.True(t, opts.NoPunct)
	assert.False(t, opts.NoURLs)

	assert.Equal(t, "ak", cfg.Remote.AccessKey)
	assert.Equal(t, "sk", cfg.Remote.SecretKey)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, 3*time.Second, cfg.Server.ShutdownTimeout)
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 10000, cfg.Dataset.LinesPerShard)
	assert.Equal(t, "none", cfg.Crawl.Compression)

	opts, err := cfg.PreprocessOptions()
	require.NoError(t, err)
	assert.True(t, opts.Lowercase)
	assert.False(t, opts.NoPunct)
}

func TestParse_UnknownField(t *testing.T) {
	_, err := Parse(strings.NewReader("dataset:\n  shard_size: 3\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"log level", func(c *Config) { c.Log.Level = "loud" }},
		{"log format", func(c *Config) { c.Log.Format = "xml" }},
		{"lines per shard", func(c *Config) { c.Dataset.LinesPerShard = -1 }},
		{"codec", func(c *Config) { c.Dataset.Codec = "msgpack" }},
		{"compression", func(c *Config) { c.Crawl.Compression = "gzip" }},
		{"param key", func(c *Config) { c.Crawl.Params = []crawl.Param{{Values: []any{1}}} }},
		{"param value", func(c *Config) { c.Crawl.Params = []crawl.Param{{Key: "year", Values: []any{1.5}}} }},
		{"preprocess", func(c *Config) { c.Preprocess = map[string]bool{"stem": true} }},
		{"remote kind", func(c *Config) { c.Remote.Kind = "gcs" }},
		{"remote bucket", func(c *Config) { c.Remote.Kind = RemoteS3 }},
		{"minio endpoint", func(c *Config) { c.Remote = RemoteConfig{Kind: RemoteMinIO, Bucket: "b"} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{}
			cfg.ApplyDefaults()
			require.NoError(t, cfg.Validate())

			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}
