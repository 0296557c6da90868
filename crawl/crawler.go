package crawl

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/hupe1980/coredata/blobstore"
	"github.com/hupe1980/coredata/internal/compress"
)

// LockExt is the extension of sub-query lock files.
const LockExt = ".lck"

// Result summarizes a Run.
type Result struct {
	RunID      string `json:"runId"`
	SubQueries int    `json:"subQueries"`
	// Skipped counts sub-queries locked by another run.
	Skipped int `json:"skipped"`
	Pages   int `json:"pages"`
	Records int `json:"records"`
}

// Crawler saves the pages of many sub-queries into a directory. Several
// crawlers may share the directory: each sub-query is claimed with a lock
// file first.
type Crawler struct {
	client      *Client
	compression compress.Type
	fullText    bool
	logger      *slog.Logger
}

// CrawlerOption configures a Crawler.
type CrawlerOption func(*Crawler)

// WithCompression compresses saved pages.
func WithCompression(t compress.Type) CrawlerOption {
	return func(c *Crawler) { c.compression = t }
}

// WithFullText controls whether pages include full texts. Default true.
func WithFullText(on bool) CrawlerOption {
	return func(c *Crawler) { c.fullText = on }
}

// WithCrawlerLogger sets the crawler's logger.
func WithCrawlerLogger(l *slog.Logger) CrawlerOption {
	return func(c *Crawler) { c.logger = l }
}

// NewCrawler creates a crawler using client.
func NewCrawler(client *Client, opts ...CrawlerOption) *Crawler {
	c := &Crawler{
		client:   client,
		fullText: true,
		logger:   client.logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// PageFileName returns the file name of page pageNum (0-based) of sub-query q.
func PageFileName(q SubQuery, pageNum int, t compress.Type) string {
	return q.BaseName() + "_" + strconv.Itoa(pageNum) + ".json" + t.Ext()
}

// Run expands params and fetches every sub-query into outDir.
//
// A sub-query whose lock file already exists is skipped. Pages without
// data are not saved. Once all sub-queries are processed, every lock file in
// outDir is removed. A failed sub-query releases its own lock and aborts the
// run.
func (c *Crawler) Run(ctx context.Context, outDir string, params []Param, method string) (Result, error) {
	res := Result{RunID: uuid.NewString()}
	logger := c.logger.With("run_id", res.RunID, "dir", outDir)

	subs, err := Expand(params)
	if err != nil {
		return res, err
	}
	res.SubQueries = len(subs)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return res, err
	}
	store := blobstore.NewLocalStore(outDir)

	logger.InfoContext(ctx, "crawl started", "sub_queries", len(subs))
	start := time.Now()

	for _, q := range subs {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		lock := filepath.Join(outDir, q.BaseName()+LockExt)
		claimed, err := claim(lock, res.RunID)
		if err != nil {
			return res, err
		}
		if !claimed {
			logger.DebugContext(ctx, "sub-query locked, skipping", "query", q.Query)
			res.Skipped++
			continue
		}

		pages, records, err := c.fetch(ctx, store, q, method)
		res.Pages += pages
		res.Records += records
		if err != nil {
			_ = os.Remove(lock)
			logger.ErrorContext(ctx, "sub-query failed", "query", q.Query, "error", err)
			return res, err
		}
	}

	if err := removeLocks(ctx, store); err != nil {
		return res, err
	}

	logger.InfoContext(ctx, "crawl finished",
		"sub_queries", res.SubQueries,
		"skipped", res.Skipped,
		"pages", res.Pages,
		"records", res.Records,
		"duration", time.Since(start),
	)
	return res, nil
}

func (c *Crawler) fetch(ctx context.Context, store blobstore.BlobStore, q SubQuery, method string) (pages, records int, err error) {
	all, err := c.client.FetchAll(ctx, method, q.Query, c.fullText)
	if err != nil {
		return 0, 0, err
	}

	for i, p := range all {
		if len(p.Data) == 0 {
			continue
		}
		data, err := json.Marshal(p.Data)
		if err != nil {
			return pages, records, fmt.Errorf("encode page %d: %w", p.Number, err)
		}
		data, err = compress.EncodeAll(data, c.compression)
		if err != nil {
			return pages, records, err
		}
		if err := store.Put(ctx, PageFileName(q, i, c.compression), data); err != nil {
			return pages, records, err
		}
		pages++
		records += len(p.Data)
	}
	return pages, records, nil
}

// claim creates the lock file exclusively. It reports false when the lock
// already exists.
func claim(path, owner string) (bool, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, err
	}
	_, werr := f.WriteString(owner)
	if cerr := f.Close(); werr == nil {
		werr = cerr
	}
	return true, werr
}

func removeLocks(ctx context.Context, store blobstore.BlobStore) error {
	names, err := store.List(ctx, "")
	if err != nil {
		return err
	}
	for _, name := range names {
		if strings.HasSuffix(name, LockExt) {
			if err := store.Delete(ctx, name); err != nil {
				return err
			}
		}
	}
	return nil
}
