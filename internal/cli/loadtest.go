package cli

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"
)

var (
	loadURL         string
	loadConcurrency int
	loadDuration    time.Duration
	loadLimit       int
)

var defaultLoadQueries = []string{
	"berlin",
	"new york",
	"san francisco",
	"york OR hamburg",
	"springfield",
	"frankfurt am main",
	"baden",
	"new NOT york",
	"los angeles",
	"port OR lake",
	"saint",
	"city",
}

var loadtestCmd = &cobra.Command{
	Use:   "loadtest [queries...]",
	Short: "Drive a running search service and report latency",
	Long: `Send search requests from concurrent workers for a fixed duration and
print throughput, latency percentiles and the status code histogram. Queries
given as arguments replace the built-in list.`,
	RunE: runLoadtest,
}

func init() {
	rootCmd.AddCommand(loadtestCmd)
	loadtestCmd.Flags().StringVar(&loadURL, "url", "http://localhost:8080", "base URL of the search service")
	loadtestCmd.Flags().IntVar(&loadConcurrency, "concurrency", 10, "number of concurrent workers")
	loadtestCmd.Flags().DurationVar(&loadDuration, "duration", 30*time.Second, "test duration")
	loadtestCmd.Flags().IntVar(&loadLimit, "limit", 10, "limit parameter sent with each query")
}

type loadParams struct {
	BaseURL     string
	Concurrency int
	Duration    time.Duration
	Limit       int
	Queries     []string
}

type loadStats struct {
	totalRequests atomic.Int64
	successCount  atomic.Int64
	errorCount    atomic.Int64
	latencies     []time.Duration
	latenciesMu   sync.Mutex
	statusCodes   map[int]*atomic.Int64
	statusCodesMu sync.Mutex
}

func newLoadStats() *loadStats {
	return &loadStats{
		latencies:   make([]time.Duration, 0, 100000),
		statusCodes: make(map[int]*atomic.Int64),
	}
}

func (s *loadStats) record(duration time.Duration, statusCode int, err error) {
	s.totalRequests.Add(1)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	if statusCode >= 200 && statusCode < 300 {
		s.successCount.Add(1)
	} else {
		s.errorCount.Add(1)
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

func runLoadtest(cmd *cobra.Command, args []string) error {
	lc := loadParams{
		BaseURL:     loadURL,
		Concurrency: max(loadConcurrency, 1),
		Duration:    loadDuration,
		Limit:       loadLimit,
		Queries:     defaultLoadQueries,
	}
	if len(args) > 0 {
		lc.Queries = args
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "=== City Search Load Test ===")
	fmt.Fprintf(w, "Target:      %s\n", lc.BaseURL)
	fmt.Fprintf(w, "Concurrency: %d\n", lc.Concurrency)
	fmt.Fprintf(w, "Duration:    %s\n", lc.Duration)
	fmt.Fprintf(w, "Queries:     %d unique\n\n", len(lc.Queries))

	stats := runLoad(cmd.Context(), lc)
	printLoadReport(w, stats, lc.Duration)
	if stats.totalRequests.Load() == 0 {
		return fmt.Errorf("no requests completed, is the service running?")
	}
	return nil
}

func runLoad(parent context.Context, lc loadParams) *loadStats {
	stats := newLoadStats()
	client := &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        lc.Concurrency * 2,
			MaxIdleConnsPerHost: lc.Concurrency * 2,
			IdleConnTimeout:     90 * time.Second,
		},
	}

	ctx, cancel := context.WithTimeout(parent, lc.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for worker := 0; worker < lc.Concurrency; worker++ {
		wg.Add(1)
		go func(queryIdx int) {
			defer wg.Done()
			for ctx.Err() == nil {
				query := lc.Queries[queryIdx%len(lc.Queries)]
				queryIdx++
				searchURL := fmt.Sprintf("%s/api/v1/search?q=%s&limit=%d",
					lc.BaseURL, url.QueryEscape(query), lc.Limit)

				req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
				if err != nil {
					stats.record(0, 0, err)
					return
				}
				start := time.Now()
				resp, err := client.Do(req)
				duration := time.Since(start)
				if err != nil {
					if ctx.Err() == nil {
						stats.record(duration, 0, err)
					}
					continue
				}
				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
				stats.record(duration, resp.StatusCode, nil)
			}
		}(worker)
	}
	wg.Wait()
	return stats
}

func printLoadReport(w io.Writer, stats *loadStats, duration time.Duration) {
	total := stats.totalRequests.Load()
	success := stats.successCount.Load()
	errCount := stats.errorCount.Load()

	fmt.Fprintln(w, "=== Results ===")
	fmt.Fprintf(w, "Total Requests:  %d\n", total)
	fmt.Fprintf(w, "Successful:      %d\n", success)
	fmt.Fprintf(w, "Errors:          %d\n", errCount)
	if total > 0 {
		fmt.Fprintf(w, "Error Rate:      %.2f%%\n", float64(errCount)/float64(total)*100)
		fmt.Fprintf(w, "Requests/sec:    %.2f\n", float64(total)/duration.Seconds())
	}

	stats.latenciesMu.Lock()
	latencies := slices.Clone(stats.latencies)
	stats.latenciesMu.Unlock()

	if len(latencies) > 0 {
		slices.Sort(latencies)
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
	defer stats.statusCodesMu.Unlock()
	codes := make([]int, 0, len(stats.statusCodes))
	for code := range stats.statusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		fmt.Fprintf(w, "  %d: %d\n", code, stats.statusCodes[code].Load())
	}
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100*float64(len(sorted)))) - 1
	return sorted[max(0, min(idx, len(sorted)-1))]
}
