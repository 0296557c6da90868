package coredata

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/hupe1980/coredata/blobstore"
	"github.com/hupe1980/coredata/internal/rawquery"
	"github.com/hupe1980/coredata/internal/shard"
	"github.com/hupe1980/coredata/internal/table"
)

// ConvertResult summarizes a conversion.
type ConvertResult struct {
	RunID string `json:"runId"`
	// Files is the number of page files read, including skipped ones.
	Files        int      `json:"files"`
	SkippedFiles []string `json:"skippedFiles,omitempty"`
	// Records counts ingested records before deduplication.
	Records int `json:"records"`
	Dropped int `json:"dropped"`
	Rows    int `json:"rows"`
	Shards  int `json:"shards"`
}

// Convert turns the page files in rawDir into a dataset at dest.
//
// Files are read in name order; each record is appended to the current
// shard and recorded in the metadata table. After all input, duplicates by
// id and then by oai are dropped (first seen wins), the final shard is
// purged of them and written, and metadata.json is written last. Unless
// WithKeepRaw is set, rawDir is removed on success.
//
// The destination must not exist: an existing directory (or, for remote
// locations, any existing blob) yields a DatasetExistsError and nothing is
// written. A page file that cannot be decoded is logged and skipped; read
// and write failures abort the conversion.
func Convert(ctx context.Context, rawDir string, dest Location, opts ...Option) (ConvertResult, error) {
	o := applyOptions(opts)

	runID := uuid.NewString()
	logger := o.logger.WithDataset(dest.String()).WithRunID(runID)

	start := time.Now()
	c := &conversion{
		rawDir: rawDir,
		dest:   dest,
		opts:   o,
		logger: logger,
		res:    ConvertResult{RunID: runID},
	}
	err := c.run(ctx)

	logger.LogConvert(ctx, c.res, time.Since(start), err)
	o.metricsCollector.RecordConvert(c.res.Records, c.res.Dropped, c.res.Shards, time.Since(start), err)

	return c.res, err
}

// conversion holds the state of one Convert call.
type conversion struct {
	rawDir string
	dest   Location
	opts   options
	logger *Logger

	writer  *shard.Writer
	builder *table.Builder
	res     ConvertResult
}

func (c *conversion) run(ctx context.Context) error {
	if c.dest.store == nil {
		return &ConfigError{Field: "location", Reason: "no blob store"}
	}

	w, err := shard.NewWriter(c.dest.store, c.opts.linesPerShard, c.opts.codec,
		shard.WithFlushHook(func(info shard.Info) {
			c.logger.LogShardFlush(ctx, info.ID, info.Lines, info.Bytes)
		}),
	)
	if err != nil {
		return translateError("convert", c.dest.String(), err)
	}
	c.writer = w
	c.builder = table.NewBuilder()

	raw := blobstore.NewLocalStore(c.rawDir)
	names, err := raw.List(ctx, "")
	if err != nil {
		return translateError("list raw queries", c.rawDir, err)
	}

	if err := createDataset(ctx, c.dest); err != nil {
		return err
	}

	for _, name := range names {
		if !rawquery.IsPageFile(name) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.ingestFile(ctx, raw, name); err != nil {
			return err
		}
	}

	dropped := c.builder.Dedup(table.DedupKeys...)
	c.res.Dropped = int(dropped.GetCardinality())
	c.builder.Relocate(c.writer.Purge(dropped))

	if err := c.writer.Flush(ctx); err != nil {
		return translateError("write shard", c.dest.String(), err)
	}
	c.res.Shards = len(c.writer.Shards())

	tbl := c.builder.Table()
	c.res.Rows = tbl.Len()

	var buf bytes.Buffer
	if _, err := tbl.WriteTo(&buf, c.opts.codec); err != nil {
		return translateError("encode metadata", table.MetadataFile, err)
	}
	if err := c.dest.store.Put(ctx, table.MetadataFile, buf.Bytes()); err != nil {
		return translateError("write metadata", table.MetadataFile, err)
	}

	if !c.opts.keepRaw {
		if err := os.RemoveAll(c.rawDir); err != nil {
			return translateError("remove raw queries", c.rawDir, err)
		}
	}
	return nil
}

func (c *conversion) ingestFile(ctx context.Context, raw blobstore.BlobStore, name string) error {
	c.res.Files++

	data, err := readBlob(ctx, raw, name)
	if err != nil {
		return translateError("read raw query", filepath.Join(c.rawDir, name), err)
	}

	recs, err := rawquery.Decode(bytes.NewReader(data), name, c.opts.codec)
	if err != nil {
		c.logger.LogSkip(ctx, "raw query file", name, err)
		c.res.SkippedFiles = append(c.res.SkippedFiles, name)
		return nil
	}

	for _, rec := range recs {
		p, err := c.writer.Append(ctx, rec)
		if err != nil {
			return translateError("write shard", shard.FileName(p.Shard), err)
		}
		c.builder.Add(p, rec)
		c.res.Records++
	}
	return nil
}

func readBlob(ctx context.Context, store blobstore.BlobStore, name string) ([]byte, error) {
	b, err := store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer b.Close()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return io.ReadAll(rc)
}

// createDataset claims the destination. A local directory must not exist
// yet; a remote location must be empty.
func createDataset(ctx context.Context, dest Location) error {
	if dest.dir != "" {
		if err := os.MkdirAll(filepath.Dir(dest.dir), 0o755); err != nil {
			return translateError("create dataset", dest.dir, err)
		}
		if err := os.Mkdir(dest.dir, 0o755); err != nil {
			if errors.Is(err, fs.ErrExist) {
				return &DatasetExistsError{Path: dest.dir}
			}
			return translateError("create dataset", dest.dir, err)
		}
		return nil
	}

	names, err := dest.store.List(ctx, "")
	if err != nil {
		return translateError("list dataset", dest.String(), err)
	}
	if len(names) > 0 {
		return &DatasetExistsError{Path: dest.String()}
	}
	return nil
}
