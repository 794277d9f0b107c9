// Package executor evaluates a parsed query against the published index
// snapshot and returns BM25-ranked cities.
package executor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/city"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/tracing"
)

// Hit is one ranked city.
type Hit struct {
	ID            uint32    `json:"id"`
	Score         float64   `json:"score"`
	TermFrequency int       `json:"term_frequency"`
	City          city.Info `json:"city"`
}

type SearchResult struct {
	Query           string         `json:"query"`
	TotalHits       int            `json:"total_hits"`
	Results         []Hit          `json:"results"`
	TermStats       map[string]int `json:"term_stats"`
	SnapshotVersion uint64         `json:"snapshot_version"`
}

// SnapshotProvider returns the snapshot a query runs against.
type SnapshotProvider interface {
	Current() (*indexer.Snapshot, error)
}

type Executor struct {
	snapshots SnapshotProvider
	logger    *slog.Logger
}

func New(snapshots SnapshotProvider) *Executor {
	return &Executor{
		snapshots: snapshots,
		logger:    logger.WithComponent("query-executor"),
	}
}

// Execute returns at most limit hits. AND plans need every term to be
// indexed; OR plans ignore terms the index does not know.
func (e *Executor) Execute(ctx context.Context, plan *parser.QueryPlan, limit int) (*SearchResult, error) {
	snap, err := e.snapshots.Current()
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.StartChildSpan(ctx, "execute")
	defer span.End()
	span.SetAttr("terms", len(plan.Terms))
	span.SetAttr("snapshot_version", snap.Version)

	result := &SearchResult{
		Query:           plan.RawQuery,
		Results:         []Hit{},
		TermStats:       make(map[string]int, len(plan.Terms)),
		SnapshotVersion: snap.Version,
	}
	if len(plan.Terms) == 0 {
		return result, nil
	}

	terms := make([]string, 0, len(plan.Terms))
	lists := make([]*index.InvertedList, 0, len(plan.Terms))
	for _, term := range plan.Terms {
		list, ok := snap.Index.Records(term)
		if !ok {
			result.TermStats[term] = 0
			if plan.Type == parser.QueryAND {
				e.logger.Debug("term not indexed, AND query is empty", "term", term)
				return result, nil
			}
			continue
		}
		result.TermStats[term] = list.Size()
		terms = append(terms, term)
		lists = append(lists, list)
	}

	_, mergeSpan := tracing.StartChildSpan(ctx, "merge")
	var ids []uint32
	if plan.Type == parser.QueryOR {
		ids = merger.Union(lists...)
	} else {
		ids = merger.Intersect(lists...)
	}
	ids = exclude(snap, ids, plan.ExcludeTerms)
	mergeSpan.SetAttr("candidates", len(ids))
	mergeSpan.End()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	postings, err := score(snap, terms, lists, ids)
	if err != nil {
		return nil, err
	}
	snap.Ranking.SortPostingsByRank(postings)

	result.TotalHits = len(postings)
	if limit > 0 && len(postings) > limit {
		postings = postings[:limit]
	}
	result.Results = make([]Hit, 0, len(postings))
	for _, p := range postings {
		hit := Hit{ID: p.ID, Score: p.Score, TermFrequency: p.TermFrequency}
		if c, ok := snap.Cities.City(p.ID); ok {
			hit.City = c.Info()
		}
		result.Results = append(result.Results, hit)
	}

	e.logger.Debug("query executed",
		"query", plan.RawQuery,
		"type", plan.Type.String(),
		"candidates", result.TotalHits,
		"results", len(result.Results),
	)
	return result, nil
}

func exclude(snap *indexer.Snapshot, ids []uint32, terms []string) []uint32 {
	excluded := roaring.New()
	for _, term := range terms {
		if list, ok := snap.Index.Records(term); ok {
			excluded.Or(list.Bitmap())
		}
	}
	if excluded.IsEmpty() {
		return ids
	}
	kept := ids[:0]
	for _, id := range ids {
		if !excluded.Contains(id) {
			kept = append(kept, id)
		}
	}
	return kept
}

// score builds one posting per id whose score and term frequency are summed
// over the query terms the record contains. The result is in id order.
func score(snap *indexer.Snapshot, terms []string, lists []*index.InvertedList, ids []uint32) ([]index.Posting, error) {
	postings := make([]index.Posting, 0, len(ids))
	for _, id := range ids {
		combined := index.NewScoredPosting(id, 0, 0)
		for i, list := range lists {
			p, ok := list.Posting(id)
			if !ok {
				continue
			}
			s := p.Score
			if !snap.Ranked {
				var err error
				s, err = snap.Ranking.Score(terms[i], p)
				if err != nil {
					return nil, fmt.Errorf("scoring %q for record %d: %w", terms[i], id, err)
				}
			}
			combined.SetFrequency(combined.TermFrequency + p.TermFrequency)
			combined.SetScore(combined.Score + s)
		}
		postings = append(postings, combined)
	}
	return postings, nil
}
