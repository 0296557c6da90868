package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/hupe1980/coredata"
	"github.com/hupe1980/coredata/codec"
	"github.com/hupe1980/coredata/config"
	"github.com/hupe1980/coredata/crawl"
	"github.com/hupe1980/coredata/internal/compress"
	"github.com/hupe1980/coredata/internal/metrics"
	"github.com/hupe1980/coredata/internal/server"
)

type setup struct {
	cfg    *config.Config
	logger *coredata.Logger
}

func newFlagSet(name string, e *env) (*flag.FlagSet, *string) {
	fs := flag.NewFlagSet("coredata "+name, flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	path := fs.String("config", "", "path to the YAML config file")
	return fs, path
}

func load(e *env, fs *flag.FlagSet, path *string, args []string) (*setup, error) {
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return nil, err
	}
	level, _ := cfg.LogLevel()

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler = slog.NewTextHandler(e.stderr, opts)
	if cfg.Log.Format == "json" {
		handler = slog.NewJSONHandler(e.stderr, opts)
	}
	return &setup{cfg: cfg, logger: coredata.NewLogger(handler)}, nil
}

func (s *setup) datasetOptions(extra ...coredata.Option) []coredata.Option {
	c, _ := codec.ByName(s.cfg.Dataset.Codec)
	opts := []coredata.Option{
		coredata.WithCodec(c),
		coredata.WithLogger(s.logger),
		coredata.WithLinesPerShard(s.cfg.Dataset.LinesPerShard),
		coredata.WithKeepRaw(s.cfg.Dataset.KeepRaw),
		coredata.WithIndexConcurrency(s.cfg.Dataset.IndexConcurrency),
		coredata.WithLineCache(s.cfg.Dataset.LineCacheBytes),
	}
	return append(opts, extra...)
}

func (s *setup) location(ctx context.Context, remote bool) (coredata.Location, error) {
	if !remote {
		return coredata.Local(s.cfg.Dataset.DBDir), nil
	}
	store, err := newRemoteStore(ctx, s.cfg.Remote)
	if err != nil {
		return coredata.Location{}, err
	}
	return coredata.Remote(store), nil
}

func (s *setup) open(ctx context.Context, remote bool, extra ...coredata.Option) (*coredata.Store, error) {
	loc, err := s.location(ctx, remote)
	if err != nil {
		return nil, err
	}
	return coredata.Open(ctx, loc, s.datasetOptions(extra...)...)
}

func (s *setup) extractor(name string, raw bool) (coredata.Extractor, error) {
	var opts *coredata.PreprocessOptions
	if !raw {
		o, err := s.cfg.PreprocessOptions()
		if err != nil {
			return nil, err
		}
		opts = &o
	}
	switch name {
	case "", "record":
		return coredata.IdentityExtractor, nil
	case "fulltext":
		return coredata.FullTextExtractor(opts), nil
	case "pair":
		return coredata.MetadataFullTextPairExtractor(opts), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q (want record, fulltext or pair)", name)
	}
}

func printJSON(e *env, v any) error {
	enc := json.NewEncoder(e.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runCrawl(ctx context.Context, e *env, args []string) error {
	fs, path := newFlagSet("crawl", e)
	out := fs.String("out", "", "output directory (default dataset.raw_dir)")
	s, err := load(e, fs, path, args)
	if err != nil {
		return err
	}
	cc := s.cfg.Crawl
	if cc.APIKey == "" {
		return fmt.Errorf("%s is not set", config.EnvAPIKey)
	}
	if len(cc.Params) == 0 {
		return errors.New("crawl.params is empty")
	}

	client, err := crawl.NewClient(cc.APIKey,
		crawl.WithEndpoint(cc.Endpoint),
		crawl.WithPageSize(cc.PageSize),
		crawl.WithMaxPages(cc.MaxPages),
		crawl.WithHTTPClient(&http.Client{Timeout: cc.Timeout}),
		crawl.WithRateLimit(rate.Limit(cc.RequestsPerSecond), 1),
		crawl.WithLogger(s.logger.Logger),
	)
	if err != nil {
		return err
	}
	comp, _ := compress.Parse(cc.Compression)

	dir := s.cfg.Dataset.RawDir
	if *out != "" {
		dir = *out
	}
	res, err := crawl.NewCrawler(client,
		crawl.WithCompression(comp),
		crawl.WithFullText(*cc.FullText),
	).Run(ctx, dir, cc.Params, cc.Method)
	if err != nil {
		return err
	}
	return printJSON(e, res)
}

func runConvert(ctx context.Context, e *env, args []string) error {
	fs, path := newFlagSet("convert", e)
	raw := fs.String("raw", "", "raw query directory (default dataset.raw_dir)")
	db := fs.String("db", "", "dataset directory (default dataset.db_dir)")
	s, err := load(e, fs, path, args)
	if err != nil {
		return err
	}
	if *raw != "" {
		s.cfg.Dataset.RawDir = *raw
	}
	if *db != "" {
		s.cfg.Dataset.DBDir = *db
	}

	res, err := coredata.Convert(ctx, s.cfg.Dataset.RawDir, coredata.Local(s.cfg.Dataset.DBDir), s.datasetOptions()...)
	if err != nil {
		return err
	}
	return printJSON(e, res)
}

func runGet(ctx context.Context, e *env, args []string) error {
	fs, path := newFlagSet("get", e)
	seq := fs.Int("seq", -1, "sequence number of the record")
	extract := fs.String("extract", "record", "record, fulltext or pair")
	raw := fs.Bool("raw", false, "skip full-text preprocessing")
	remote := fs.Bool("remote", false, "read from the remote store")
	s, err := load(e, fs, path, args)
	if err != nil {
		return err
	}
	ex, err := s.extractor(*extract, *raw)
	if err != nil {
		return err
	}

	store, err := s.open(ctx, *remote)
	if err != nil {
		return err
	}
	defer store.Close()

	v, _, err := store.FetchRecord(ctx, *seq, coredata.WithExtractor(ex))
	if err != nil {
		return err
	}
	return printJSON(e, v)
}

type dumpItem struct {
	Seq   int `json:"seq"`
	Value any `json:"value"`
}

func runDump(ctx context.Context, e *env, args []string) error {
	fs, path := newFlagSet("dump", e)
	start := fs.Int("start", 0, "first sequence number")
	end := fs.Int("end", -1, "last sequence number, inclusive (-1: to the end)")
	shuffle := fs.Bool("shuffle", false, "visit records in random order")
	seed := fs.Uint64("seed", 0, "shuffle seed (0: random)")
	extract := fs.String("extract", "record", "record, fulltext or pair")
	raw := fs.Bool("raw", false, "skip full-text preprocessing")
	remote := fs.Bool("remote", false, "read from the remote store")
	s, err := load(e, fs, path, args)
	if err != nil {
		return err
	}
	ex, err := s.extractor(*extract, *raw)
	if err != nil {
		return err
	}

	store, err := s.open(ctx, *remote)
	if err != nil {
		return err
	}
	defer store.Close()

	last := *end
	if last < 0 {
		last = store.Len() - 1
	}
	opts := []coredata.ReadOption{coredata.Range(*start, last), coredata.WithExtractor(ex)}
	if *shuffle {
		opts = append(opts, coredata.Shuffle())
		if *seed != 0 {
			opts = append(opts, coredata.WithRand(rand.New(rand.NewPCG(*seed, *seed))))
		}
	}

	enc := json.NewEncoder(e.stdout)
	for seq, v := range store.Iterate(ctx, opts...) {
		if err := enc.Encode(dumpItem{Seq: seq, Value: v}); err != nil {
			return err
		}
	}
	return ctx.Err()
}

func runStats(ctx context.Context, e *env, args []string) error {
	fs, path := newFlagSet("stats", e)
	remote := fs.Bool("remote", false, "read from the remote store")
	s, err := load(e, fs, path, args)
	if err != nil {
		return err
	}

	store, err := s.open(ctx, *remote)
	if err != nil {
		return err
	}
	defer store.Close()

	return printJSON(e, store.Stats())
}

func runServe(ctx context.Context, e *env, args []string) error {
	fs, path := newFlagSet("serve", e)
	addr := fs.String("addr", "", "listen address (default server.addr)")
	remote := fs.Bool("remote", false, "serve the remote dataset")
	s, err := load(e, fs, path, args)
	if err != nil {
		return err
	}
	if *addr != "" {
		s.cfg.Server.Addr = *addr
	}
	pre, err := s.cfg.PreprocessOptions()
	if err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	prom := metrics.NewPrometheus(reg)

	store, err := s.open(ctx, *remote, coredata.WithMetricsCollector(prom))
	if err != nil {
		return err
	}
	defer store.Close()

	srv := &http.Server{
		Addr: s.cfg.Server.Addr,
		Handler: server.New(store,
			server.WithLogger(s.logger.Logger),
			server.WithObserver(prom),
			server.WithGatherer(reg),
			server.WithMaxRange(s.cfg.Server.MaxRange),
			server.WithPreprocess(pre),
		),
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.InfoContext(ctx, "serving dataset", "addr", srv.Addr, "rows", store.Len())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()
	s.logger.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func runPublish(ctx context.Context, e *env, args []string) error {
	fs, path := newFlagSet("publish", e)
	db := fs.String("db", "", "dataset directory (default dataset.db_dir)")
	s, err := load(e, fs, path, args)
	if err != nil {
		return err
	}
	if *db != "" {
		s.cfg.Dataset.DBDir = *db
	}

	dst, err := s.location(ctx, true)
	if err != nil {
		return err
	}

	res, err := coredata.Publish(ctx, coredata.Local(s.cfg.Dataset.DBDir), dst, s.datasetOptions()...)
	if err != nil {
		return err
	}
	return printJSON(e, res)
}
