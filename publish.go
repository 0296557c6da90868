package coredata

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/coredata/blobstore"
	"github.com/hupe1980/coredata/internal/shard"
	"github.com/hupe1980/coredata/internal/table"
)

// PublishResult summarizes a Publish call.
type PublishResult struct {
	Files int   `json:"files"`
	Bytes int64 `json:"bytes"`
}

// Publish copies the dataset at src to dst, typically from a local
// directory to an object store. Shards are copied first, in parallel
// bounded by WithIndexConcurrency, and metadata.json last, so readers of
// dst never see metadata that references a missing shard. A dst that
// already holds metadata.json yields a DatasetExistsError.
func Publish(ctx context.Context, src, dst Location, opts ...Option) (PublishResult, error) {
	o := applyOptions(opts)
	logger := o.logger.WithDataset(dst.String())

	start := time.Now()
	res, err := publish(ctx, src, dst, o)
	if err != nil {
		logger.ErrorContext(ctx, "publish failed", "source", src.String(), "error", err)
		return res, err
	}
	logger.InfoContext(ctx, "dataset published",
		"source", src.String(),
		"files", res.Files,
		"bytes", res.Bytes,
		"duration", time.Since(start),
	)
	return res, nil
}

func publish(ctx context.Context, src, dst Location, o options) (PublishResult, error) {
	var res PublishResult

	if src.store == nil || dst.store == nil {
		return res, &ConfigError{Field: "location", Reason: "no blob store"}
	}

	if b, err := dst.store.Open(ctx, table.MetadataFile); err == nil {
		_ = b.Close()
		return res, &DatasetExistsError{Path: dst.String()}
	} else if !errors.Is(err, blobstore.ErrNotFound) {
		return res, translateError("open metadata", dst.String(), err)
	}

	b, err := src.store.Open(ctx, table.MetadataFile)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return res, &DatasetNotFoundError{Path: src.String()}
		}
		return res, translateError("open metadata", src.String(), err)
	}
	_ = b.Close()

	names, err := src.store.List(ctx, shard.FilePrefix)
	if err != nil {
		return res, translateError("list shards", src.String(), err)
	}

	var (
		files atomic.Int64
		bytes atomic.Int64
	)
	g, gctx := errgroup.WithContext(ctx)
	if o.indexConcurrency > 0 {
		g.SetLimit(o.indexConcurrency)
	}
	for _, name := range names {
		if _, ok := shard.ParseFileName(name); !ok {
			continue
		}
		g.Go(func() error {
			n, err := blobstore.Copy(gctx, dst.store, src.store, name)
			if err != nil {
				return translateError("copy shard", name, err)
			}
			files.Add(1)
			bytes.Add(n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return PublishResult{Files: int(files.Load()), Bytes: bytes.Load()}, err
	}

	n, err := blobstore.Copy(ctx, dst.store, src.store, table.MetadataFile)
	if err != nil {
		return PublishResult{Files: int(files.Load()), Bytes: bytes.Load()}, translateError("copy metadata", dst.String(), err)
	}

	return PublishResult{Files: int(files.Load()) + 1, Bytes: bytes.Load() + n}, nil
}
