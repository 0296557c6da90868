// Package config loads the coredata command configuration from a YAML file
// and the environment.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/hupe1980/coredata/codec"
	"github.com/hupe1980/coredata/crawl"
	"github.com/hupe1980/coredata/internal/compress"
	"github.com/hupe1980/coredata/internal/normalize"
)

// Environment variables holding secrets.
const (
	EnvAPIKey          = "CORE_API_KEY"
	EnvRemoteAccessKey = "COREDATA_REMOTE_ACCESS_KEY"
	EnvRemoteSecretKey = "COREDATA_REMOTE_SECRET_KEY"
)

// Remote kinds.
const (
	RemoteS3    = "s3"
	RemoteMinIO = "minio"
)

// ErrInvalid is wrapped by every validation error.
var ErrInvalid = errors.New("invalid config")

type Config struct {
	Log        LogConfig       `yaml:"log"`
	Dataset    DatasetConfig   `yaml:"dataset"`
	Crawl      CrawlConfig     `yaml:"crawl"`
	Preprocess map[string]bool `yaml:"preprocess"`
	Remote     RemoteConfig    `yaml:"remote"`
	Server     ServerConfig    `yaml:"server"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

type DatasetConfig struct {
	RawDir           string `yaml:"raw_dir"`
	DBDir            string `yaml:"db_dir"`
	LinesPerShard    int    `yaml:"lines_per_shard"`
	KeepRaw          bool   `yaml:"keep_raw"`
	Codec            string `yaml:"codec"`
	IndexConcurrency int    `yaml:"index_concurrency"`
	LineCacheBytes   int64  `yaml:"line_cache_bytes"`
}

type CrawlConfig struct {
	Endpoint          string        `yaml:"endpoint"`
	Method            string        `yaml:"method"`
	PageSize          int           `yaml:"page_size"`
	MaxPages          int           `yaml:"max_pages"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Timeout           time.Duration `yaml:"timeout"`
	Compression       string        `yaml:"compression"`
	FullText          *bool         `yaml:"full_text,omitempty"`
	Params            []crawl.Param `yaml:"params"`

	// APIKey is read from CORE_API_KEY only.
	APIKey string `yaml:"-"`
}

// RemoteConfig describes the object store used by publish and by serve
// with a remote dataset.
type RemoteConfig struct {
	Kind     string `yaml:"kind"` // s3 or minio; empty disables
	Bucket   string `yaml:"bucket"`
	Prefix   string `yaml:"prefix"`
	Region   string `yaml:"region"`
	Endpoint string `yaml:"endpoint"`
	UseSSL   bool   `yaml:"use_ssl"`

	AccessKey string `yaml:"-"`
	SecretKey string `yaml:"-"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxRange        int           `yaml:"max_range"`
}

// Load reads the YAML file at path, loads .env when present, fills in
// defaults and validates the result. An empty path yields the defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	cfg := &Config{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := decode(bytes.NewReader(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyEnv()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes YAML without touching the environment or the defaults.
func Parse(r io.Reader) (*Config, error) {
	cfg := &Config{}
	if err := decode(r, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(r io.Reader, cfg *Config) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// ApplyEnv copies secrets from the environment.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Crawl.APIKey = v
	}
	if v := os.Getenv(EnvRemoteAccessKey); v != "" {
		c.Remote.AccessKey = v
	}
	if v := os.Getenv(EnvRemoteSecretKey); v != "" {
		c.Remote.SecretKey = v
	}
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}

	if c.Dataset.RawDir == "" {
		c.Dataset.RawDir = "./data/raw_query"
	}
	if c.Dataset.DBDir == "" {
		c.Dataset.DBDir = "./data/db"
	}
	if c.Dataset.LinesPerShard == 0 {
		c.Dataset.LinesPerShard = 10000
	}
	if c.Dataset.Codec == "" {
		c.Dataset.Codec = "go-json"
	}
	if c.Dataset.IndexConcurrency == 0 {
		c.Dataset.IndexConcurrency = 8
	}

	if c.Crawl.Endpoint == "" {
		c.Crawl.Endpoint = crawl.DefaultEndpoint
	}
	if c.Crawl.Method == "" {
		c.Crawl.Method = crawl.SearchMethod
	}
	if c.Crawl.PageSize == 0 {
		c.Crawl.PageSize = crawl.DefaultPageSize
	}
	if c.Crawl.MaxPages == 0 {
		c.Crawl.MaxPages = crawl.DefaultMaxPages
	}
	if c.Crawl.RequestsPerSecond == 0 {
		c.Crawl.RequestsPerSecond = 1
	}
	if c.Crawl.Timeout == 0 {
		c.Crawl.Timeout = 2 * time.Minute
	}
	if c.Crawl.Compression == "" {
		c.Crawl.Compression = compress.None.String()
	}
	if c.Crawl.FullText == nil {
		on := true
		c.Crawl.FullText = &on
	}

	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 5 * time.Minute
	}
	if c.Server.ShutdownTimeout == 0 {
		c.Server.ShutdownTimeout = 10 * time.Second
	}
	if c.Server.MaxRange == 0 {
		c.Server.MaxRange = 10000
	}
}

// Validate checks the configuration. Secrets are checked by the commands
// that need them.
func (c *Config) Validate() error {
	if _, err := c.LogLevel(); err != nil {
		return fmt.Errorf("%w: log.level: %v", ErrInvalid, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log.format must be text or json, got %q", ErrInvalid, c.Log.Format)
	}

	if c.Dataset.LinesPerShard < 1 {
		return fmt.Errorf("%w: dataset.lines_per_shard must be positive, got %d", ErrInvalid, c.Dataset.LinesPerShard)
	}
	if _, ok := codec.ByName(c.Dataset.Codec); !ok {
		return fmt.Errorf("%w: dataset.codec %q is unknown", ErrInvalid, c.Dataset.Codec)
	}
	if c.Dataset.LineCacheBytes < 0 {
		return fmt.Errorf("%w: dataset.line_cache_bytes must not be negative", ErrInvalid)
	}

	if c.Crawl.PageSize < 1 || c.Crawl.MaxPages < 1 {
		return fmt.Errorf("%w: crawl.page_size and crawl.max_pages must be positive", ErrInvalid)
	}
	if c.Crawl.RequestsPerSecond < 0 {
		return fmt.Errorf("%w: crawl.requests_per_second must not be negative", ErrInvalid)
	}
	if _, err := compress.Parse(c.Crawl.Compression); err != nil {
		return fmt.Errorf("%w: crawl.compression: %v", ErrInvalid, err)
	}
	for i, p := range c.Crawl.Params {
		if p.Key == "" {
			return fmt.Errorf("%w: crawl.params[%d] has no key", ErrInvalid, i)
		}
		for _, v := range p.Values {
			if _, err := crawl.FormatValue(v); err != nil {
				return fmt.Errorf("%w: crawl.params[%d]: %v", ErrInvalid, i, err)
			}
		}
	}

	if _, err := normalize.ParseOptions(c.Preprocess); err != nil {
		return fmt.Errorf("%w: preprocess: %v", ErrInvalid, err)
	}

	switch c.Remote.Kind {
	case "":
	case RemoteS3, RemoteMinIO:
		if c.Remote.Bucket == "" {
			return fmt.Errorf("%w: remote.bucket is required", ErrInvalid)
		}
		if c.Remote.Kind == RemoteMinIO && c.Remote.Endpoint == "" {
			return fmt.Errorf("%w: remote.endpoint is required for minio", ErrInvalid)
		}
	default:
		return fmt.Errorf("%w: remote.kind must be s3 or minio, got %q", ErrInvalid, c.Remote.Kind)
	}

	if c.Server.MaxRange < 1 {
		return fmt.Errorf("%w: server.max_range must be positive", ErrInvalid)
	}
	return nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(strings.ToUpper(c.Log.Level)))
	return level, err
}

// PreprocessOptions returns the configured normalization switches, or the
// defaults when the preprocess section is empty.
func (c *Config) PreprocessOptions() (normalize.Options, error) {
	if len(c.Preprocess) == 0 {
		return normalize.DefaultOptions(), nil
	}
	return normalize.ParseOptions(c.Preprocess)
}
