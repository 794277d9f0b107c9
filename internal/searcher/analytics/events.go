// Package analytics records per-query search events. An Aggregator keeps
// rolling in-memory stats and a Collector ships events to Kafka in batches.
package analytics

import (
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/parser"
)

// SearchEvent describes one completed or failed search request.
type SearchEvent struct {
	Query     string    `json:"query"`
	Terms     []string  `json:"terms"`
	Operator  string    `json:"operator"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	Cache     string    `json:"cache"`
	Failed    bool      `json:"failed,omitempty"`
	Snapshot  uint64    `json:"snapshot_version"`
	RequestID string    `json:"request_id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// NewSearchEvent fills the query fields of an event from plan.
func NewSearchEvent(plan *parser.QueryPlan, requestID string, latency time.Duration) SearchEvent {
	return SearchEvent{
		Query:     plan.RawQuery,
		Terms:     plan.Terms,
		Operator:  plan.Type.String(),
		LatencyMs: latency.Milliseconds(),
		RequestID: requestID,
		Timestamp: time.Now().UTC(),
	}
}

// key groups events by normalized terms so "Berlin" and "berlin" count once.
func (e SearchEvent) key() string {
	if len(e.Terms) == 0 {
		return e.Query
	}
	k := e.Terms[0]
	for _, t := range e.Terms[1:] {
		k += " " + e.Operator + " " + t
	}
	return k
}
