// Command proxq builds a positional index from a corpus file and answers
// proximity queries of the form "term1 /k term2".
//
// Each result is printed on its own line as "<doc> <posA> <posB>", ordered by
// document label. With no -q flag, queries are read from stdin, one per line.
//
// Usage:
//
//	proxq -corpus Docs.txt -q "schizophrenia /2 drug" [-mode unidirectional] [-prefix Doc]
//	proxq -corpus Docs.txt -dump
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/k0kubun/pp"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/formatter"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/proximity"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/pkg/logger"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("proxq", flag.ContinueOnError)
	fs.SetOutput(stderr)
	corpusPath := fs.String("corpus", "Docs.txt", "corpus file, one document per line")
	query := fs.String("q", "", `proximity query, e.g. "schizophrenia /2 drug"`)
	mode := fs.String("mode", "bidirectional", "bidirectional or unidirectional")
	prefix := fs.String("prefix", formatter.DefaultPrefix, "label prepended to document ids")
	dump := fs.Bool("dump", false, "print the index and its statistics instead of querying")
	logLevel := fs.String("log-level", "warn", "log level (debug, info, warn, error)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	// Results own stdout; logs go to stderr.
	slog.SetDefault(logger.New(stderr, *logLevel, "text"))

	dir, err := proximity.ParseDirection(*mode)
	if err != nil {
		fmt.Fprintf(stderr, "proxq: %v\n", err)
		return 2
	}

	engine, err := indexer.NewEngine(ctx, corpus.NewFileSource(*corpusPath), config.CorpusConfig{}, nil)
	if err != nil {
		fmt.Fprintf(stderr, "proxq: %v\n", err)
		return 1
	}

	if *dump {
		snap := engine.Current()
		pp.Fprintln(stdout, snap.Stats())
		pp.Fprintln(stdout, snap.Index.Snapshot())
		return 0
	}

	exec := executor.New(engine, *prefix)
	if *query != "" {
		if err := answer(ctx, exec, *query, dir, stdout); err != nil {
			fmt.Fprintf(stderr, "proxq: %v\n", err)
			return 1
		}
		return 0
	}

	status := 0
	scanner := bufio.NewScanner(stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fmt.Fprintf(stdout, "# %s\n", line)
		if err := answer(ctx, exec, line, dir, stdout); err != nil {
			fmt.Fprintf(stderr, "proxq: %v\n", err)
			status = 1
		}
	}
	if err := scanner.Err(); err != nil {
		fmt.Fprintf(stderr, "proxq: reading queries: %v\n", err)
		return 1
	}
	return status
}

func answer(ctx context.Context, exec *executor.Executor, query string, dir proximity.Direction, w io.Writer) error {
	result, err := exec.Execute(ctx, query, dir)
	if err != nil {
		return err
	}
	for _, r := range result.Results {
		fmt.Fprintf(w, "%s %d %d\n", r.DocID, r.PosA, r.PosB)
	}
	return nil
}
