// Package crawl downloads CORE API search results into a raw query
// directory that coredata.Convert turns into a dataset.
//
// A crawl is described by a list of parameters, each a search field with
// the values to try. Expand builds one sub-query per combination of values,
// and Crawler.Run fetches every page of every sub-query:
//
//	client, err := crawl.NewClient(apiKey)
//	c := crawl.NewCrawler(client, crawl.WithCompression(compress.ZSTD))
//	res, err := c.Run(ctx, "./data/cs/raw_query", []crawl.Param{
//	    {Key: "repositories.id", Values: []any{144}},
//	    {Key: "year", Values: []any{2016, 2017}},
//	}, crawl.SearchMethod)
//
// Files are named <values>_<index>_<page>.json, plus .zst or .lz4 when
// compressed. While a sub-query is being fetched, a <values>_<index>.lck
// file marks it as taken, so several processes can share one directory.
package crawl
