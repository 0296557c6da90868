// Command coredata crawls the CORE API and builds, inspects, serves and
// publishes sharded record datasets.
//
// Usage:
//
//	coredata <command> [-config coredata.yaml] [flags]
//
// Commands:
//
//	crawl    fetch every sub-query of crawl.params into dataset.raw_dir
//	convert  turn dataset.raw_dir into a dataset at dataset.db_dir
//	get      print one record
//	dump     stream records as JSON lines
//	stats    print dataset statistics
//	serve    serve the dataset over HTTP
//	publish  copy dataset.db_dir to the remote store
//
// Secrets come from the environment (or a .env file): CORE_API_KEY for
// crawl, COREDATA_REMOTE_ACCESS_KEY and COREDATA_REMOTE_SECRET_KEY for the
// remote store.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, env *env, args []string) error
}

var commands = []command{
	{"crawl", "fetch CORE search pages into the raw directory", runCrawl},
	{"convert", "build a dataset from the raw directory", runConvert},
	{"get", "print one record", runGet},
	{"dump", "stream records as JSON lines", runDump},
	{"stats", "print dataset statistics", runStats},
	{"serve", "serve the dataset over HTTP", runServe},
	{"publish", "copy the dataset to the remote store", runPublish},
}

// env carries the process streams so commands can be tested.
type env struct {
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], &env{stdout: os.Stdout, stderr: os.Stderr}))
}

func run(ctx context.Context, args []string, e *env) int {
	if len(args) == 0 || args[0] == "-h" || args[0] == "help" {
		usage(e.stderr)
		return 2
	}

	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		if err := c.run(ctx, e, args[1:]); err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 2
			}
			fmt.Fprintf(e.stderr, "coredata %s: %v\n", c.name, err)
			return 1
		}
		return 0
	}

	fmt.Fprintf(e.stderr, "coredata: unknown command %q\n", args[0])
	usage(e.stderr)
	return 2
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "usage: coredata <command> [-config file] [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.summary)
	}
}
