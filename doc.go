// Package coredata stores CORE search results as a sharded, randomly
// accessible record collection.
//
// A dataset is a directory (or object-store prefix) holding:
//
//   - metadata.json: one JSON object per line, one line per record, with
//     every field except fullText plus the placement fields ft_file_num,
//     ft_line_num and num_record.
//   - fulltext_<n>.json: shards of at most LinesPerShard full records, one
//     JSON object per line.
//
// # Building a dataset
//
// The crawl package saves raw query pages into a directory. Convert turns
// that directory into a dataset:
//
//	ctx := context.Background()
//	res, err := coredata.Convert(ctx, "./data/cs/raw_query", coredata.Local("./data/cs/db"),
//	    coredata.WithLinesPerShard(10000),
//	    coredata.WithLogger(coredata.NewTextLogger(slog.LevelInfo)),
//	)
//
// Records are deduplicated by id and then by oai; the first occurrence
// wins. Duplicates that already went into a written shard stay in the file
// but are no longer referenced by the metadata.
//
// # Reading a dataset
//
//	store, err := coredata.Open(ctx, coredata.Local("./data/cs/db"))
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	rec, ok, err := store.FetchRecord(ctx, 0)
//
//	opts := coredata.DefaultPreprocessOptions()
//	for seq, text := range store.Iterate(ctx,
//	    coredata.Range(0, 999),
//	    coredata.Shuffle(),
//	    coredata.WithExtractor(coredata.FullTextExtractor(&opts)),
//	) {
//	    fmt.Println(seq, text)
//	}
//
// Open builds an in-memory line offset index for every shard, so each
// fetch is a single positioned read.
//
// # Cloud mode
//
// Publish copies a finished dataset into any blobstore.BlobStore, and
// Remote opens it from there using range reads:
//
//	s3Store := s3.NewStore(client, "my-bucket", "datasets/cs/")
//	_, err := coredata.Publish(ctx, coredata.Local("./data/cs/db"), coredata.Remote(s3Store))
//	store, err := coredata.Open(ctx, coredata.Remote(s3Store), coredata.WithLineCache(64<<20))
package coredata
