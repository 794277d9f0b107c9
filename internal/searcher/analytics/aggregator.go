package analytics

import (
	"cmp"
	"encoding/json"
	"log/slog"
	"maps"
	"net/http"
	"slices"
	"sync"
	"time"
)

type Stats struct {
	TotalSearches     int64        `json:"total_searches"`
	Failed            int64        `json:"failed"`
	CacheHits         int64        `json:"cache_hits"`
	CacheMisses       int64        `json:"cache_misses"`
	ZeroResultCount   int64        `json:"zero_result_count"`
	AvgLatencyMs      float64      `json:"avg_latency_ms"`
	P50LatencyMs      int64        `json:"p50_latency_ms"`
	P95LatencyMs      int64        `json:"p95_latency_ms"`
	P99LatencyMs      int64        `json:"p99_latency_ms"`
	TopQueries        []QueryCount `json:"top_queries"`
	ZeroResultQueries []QueryCount `json:"zero_result_queries"`
	QueriesPerMinute  float64      `json:"queries_per_minute"`
	Since             time.Time    `json:"since"`
}

type QueryCount struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// Aggregator keeps counters and a bounded window of latency samples.
type Aggregator struct {
	mu          sync.Mutex
	topN        int
	total       int64
	failed      int64
	cacheHits   int64
	cacheMisses int64
	zeroResults int64
	latencies   []int64
	next        int
	queries     map[string]int64
	zeroQueries map[string]int64
	start       time.Time
	now         func() time.Time
}

// NewAggregator keeps the latest samples latencies and reports the topN
// most frequent queries.
func NewAggregator(topN, samples int) *Aggregator {
	if topN <= 0 {
		topN = 10
	}
	if samples <= 0 {
		samples = 10000
	}
	return &Aggregator{
		topN:        topN,
		latencies:   make([]int64, 0, samples),
		queries:     make(map[string]int64),
		zeroQueries: make(map[string]int64),
		start:       time.Now(),
		now:         time.Now,
	}
}

func (a *Aggregator) Record(e SearchEvent) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.total++
	if e.Failed {
		a.failed++
		return
	}
	switch e.Cache {
	case "hit":
		a.cacheHits++
	case "miss":
		a.cacheMisses++
	}
	key := e.key()
	a.queries[key]++
	if e.TotalHits == 0 {
		a.zeroResults++
		a.zeroQueries[key]++
	}

	if len(a.latencies) < cap(a.latencies) {
		a.latencies = append(a.latencies, e.LatencyMs)
		return
	}
	a.latencies[a.next] = e.LatencyMs
	a.next = (a.next + 1) % len(a.latencies)
}

func (a *Aggregator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	stats := Stats{
		TotalSearches:     a.total,
		Failed:            a.failed,
		CacheHits:         a.cacheHits,
		CacheMisses:       a.cacheMisses,
		ZeroResultCount:   a.zeroResults,
		TopQueries:        topN(a.queries, a.topN),
		ZeroResultQueries: topN(a.zeroQueries, a.topN),
		Since:             a.start.UTC(),
	}
	if len(a.latencies) > 0 {
		sorted := slices.Clone(a.latencies)
		slices.Sort(sorted)
		var sum int64
		for _, l := range sorted {
			sum += l
		}
		stats.AvgLatencyMs = float64(sum) / float64(len(sorted))
		stats.P50LatencyMs = percentile(sorted, 50)
		stats.P95LatencyMs = percentile(sorted, 95)
		stats.P99LatencyMs = percentile(sorted, 99)
	}
	if elapsed := a.now().Sub(a.start).Minutes(); elapsed > 0 {
		stats.QueriesPerMinute = float64(a.total) / elapsed
	}
	return stats
}

// Reset clears all counters and restarts the rate window.
func (a *Aggregator) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.total, a.failed, a.cacheHits, a.cacheMisses, a.zeroResults = 0, 0, 0, 0, 0
	a.latencies = a.latencies[:0]
	a.next = 0
	clear(a.queries)
	clear(a.zeroQueries)
	a.start = a.now()
}

// Handler serves Stats as JSON.
func (a *Aggregator) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(a.Stats()); err != nil {
			slog.Error("failed to write analytics response", "error", err)
		}
	}
}

// percentile uses the nearest-rank method on an ascending slice.
func percentile(sorted []int64, pct int) int64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := (pct*len(sorted)+99)/100 - 1
	return sorted[max(idx, 0)]
}

// topN orders by count, then query, so ties are stable across calls.
func topN(counts map[string]int64, n int) []QueryCount {
	result := make([]QueryCount, 0, len(counts))
	for _, q := range slices.Sorted(maps.Keys(counts)) {
		result = append(result, QueryCount{Query: q, Count: counts[q]})
	}
	slices.SortStableFunc(result, func(a, b QueryCount) int {
		return cmp.Compare(b.Count, a.Count)
	})
	return result[:min(n, len(result))]
}
