// Command loadtest drives GET /api/v1/proximity with concurrent workers and
// reports throughput, latency percentiles, cache hit rate and status codes.
//
// Usage:
//
//	go run ./cmd/loadtest -url http://localhost:8080 -concurrency 20 -duration 30s [-mode mixed] [-queries queries.txt]
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/Proximity-Search-Platform/internal/searcher/handler"
)

var defaultQueries = []string{
	"schizophrenia /2 drug",
	"drug /2 schizophrenia",
	"new /1 schizophrenia",
	"for /1 schizophrenia",
	"new /3 drug",
	"treatment /2 schizophrenia",
	"breakthrough /1 drug",
	"hopes /2 patients",
	"new /0 drug",
	"approach /4 schizophrenia",
}

type Config struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Modes       []string
	Queries     []string
}

type Stats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	cacheHits     atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func NewStats() *Stats {
	return &Stats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

// RecordRequest counts one response. A 404 means a term is not in the index
// and still counts as a served request.
func (s *Stats) RecordRequest(duration time.Duration, statusCode int, cacheHit bool, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode < 300 || statusCode == http.StatusNotFound {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
	}
	if cacheHit {
		s.cacheHits.Add(1)
	}

	s.latenciesMu.Lock()
	s.latencies = append(s.latencies, duration)
	s.latenciesMu.Unlock()

	s.statusCodesMu.Lock()
	if _, ok := s.statusCodes[statusCode]; !ok {
		s.statusCodes[statusCode] = &atomic.Int64{}
	}
	s.statusCodes[statusCode].Add(1)
	s.statusCodesMu.Unlock()
}

func main() {
	baseURL := flag.String("url", "http://localhost:8080", "base URL of the search service")
	concurrency := flag.Int("concurrency", 10, "number of concurrent workers")
	duration := flag.Duration("duration", 30*time.Second, "test duration")
	mode := flag.String("mode", "mixed", "bidirectional, unidirectional or mixed")
	queriesPath := flag.String("queries", "", "file of proximity queries, one per line (default: built-in set)")
	flag.Parse()

	modes, err := parseModes(*mode)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	queries := defaultQueries
	if *queriesPath != "" {
		f, err := os.Open(*queriesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "opening queries: %v\n", err)
			os.Exit(1)
		}
		queries, err = loadQueries(f)
		f.Close()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
	}

	cfg := Config{
		BaseURL:     strings.TrimRight(*baseURL, "/"),
		Concurrency: *concurrency,
		Duration:    *duration,
		Modes:       modes,
		Queries:     queries,
	}

	fmt.Println("=== Proximity Search Load Test ===")
	fmt.Printf("Target:      %s\n", cfg.BaseURL)
	fmt.Printf("Concurrency: %d\n", cfg.Concurrency)
	fmt.Printf("Duration:    %s\n", cfg.Duration)
	fmt.Printf("Modes:       %s\n", strings.Join(cfg.Modes, ", "))
	fmt.Printf("Queries:     %d unique\n", len(cfg.Queries))
	fmt.Println()

	stats := runLoadTest(cfg)
	if err := printReport(os.Stdout, stats, cfg.Duration); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func parseModes(mode string) ([]string, error) {
	switch mode {
	case "mixed":
		return []string{"bidirectional", "unidirectional"}, nil
	case "bidirectional", "unidirectional":
		return []string{mode}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// loadQueries reads non-blank, non-comment lines.
func loadQueries(r io.Reader) ([]string, error) {
	var queries []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		queries = append(queries, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading queries: %w", err)
	}
	if len(queries) == 0 {
		return nil, errors.New("query file holds no queries")
	}
	return queries, nil
}

func runLoadTest(cfg Config) *Stats {
	stats := NewStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        cfg.Concurrency * 2,
			MaxIdleConnsPerHost: cfg.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	fmt.Print("Running")
	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < cfg.Concurrency; w++ {
		g.Go(func() error {
			for i := w; ctx.Err() == nil; i++ {
				query := cfg.Queries[i%len(cfg.Queries)]
				mode := cfg.Modes[(i/len(cfg.Queries))%len(cfg.Modes)]
				target := fmt.Sprintf("%s/api/v1/proximity?q=%s&mode=%s",
					cfg.BaseURL, url.QueryEscape(query), mode)

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
				if err != nil {
					return fmt.Errorf("creating request: %w", err)
				}
				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)
				if err != nil {
					if ctx.Err() != nil {
						return nil
					}
					stats.RecordRequest(duration, 0, false, err)
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.RecordRequest(duration, resp.StatusCode, resp.Header.Get(handler.CacheHeader) == "HIT", nil)
			}
			return nil
		})
	}

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				fmt.Print(".")
			}
		}
	}()

	if err := g.Wait(); err != nil {
		fmt.Fprintf(os.Stderr, "\nworker failed: %v\n", err)
	}
	fmt.Println(" done!")
	fmt.Println()
	return stats
}

func printReport(w io.Writer, stats *Stats, duration time.Duration) error {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	failed := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", failed)
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(failed)/float64(total)*100)
		fmt.Fprintf(w, "Cache Hit Rate:  %.2f%%\n", float64(stats.cacheHits.Load())/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := make([]time.Duration, len(stats.latencies))
	copy(latencies, stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		sort.Slice(latencies, func(i, j int) bool {
			return latencies[i] < latencies[j]
		})
		var sum time.Duration
		for _, l := range latencies {
			sum += l
		}
		avg := sum / time.Duration(len(latencies))

		fmt.Fprintln(w)
		fmt.Fprintln(w, "=== Latency ===")
		fmt.Fprintf(w, "Min:    %s\n", latencies[0])
		fmt.Fprintf(w, "Avg:    %s\n", avg)
		fmt.Fprintf(w, "P50:    %s\n", percentile(latencies, 50))
		fmt.Fprintf(w, "P90:    %s\n", percentile(latencies, 90))
		fmt.Fprintf(w, "P95:    %s\n", percentile(latencies, 95))
		fmt.Fprintf(w, "P99:    %s\n", percentile(latencies, 99))
		fmt.Fprintf(w, "Max:    %s\n", latencies[len(latencies)-1])

		var sumSquared float64
		for _, l := range latencies {
			diff := float64(l) - float64(avg)
			sumSquared += diff * diff
		}
		fmt.Fprintf(w, "StdDev: %s\n", time.Duration(math.Sqrt(sumSquared/float64(len(latencies)))))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "=== Status Codes ===")
	stats.statusCodesMu.Lock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code].Load())
	}
	stats.statusCodesMu.Unlock()

	if total == 0 {
		return errors.New("no requests completed; is the service running?")
	}
	return nil
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
