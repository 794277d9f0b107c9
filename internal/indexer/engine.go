// Package indexer builds immutable index snapshots from a city source and
// publishes the latest one for concurrent readers.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/city"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/record"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/ranker"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/metrics"
)

// Options controls how snapshots are built.
type Options struct {
	K             float64
	B             float64
	RankAll       bool
	RankerWorkers int
}

// DefaultOptions uses the default BM25 parameters and pre-ranks every
// posting.
func DefaultOptions() Options {
	return Options{
		K:             ranker.DefaultK,
		B:             ranker.DefaultB,
		RankAll:       true,
		RankerWorkers: 4,
	}
}

// Snapshot is one published generation of the index. It is never mutated
// after Build returns it.
type Snapshot struct {
	Index   *index.InvertedIndex[string]
	Cities  *city.Set
	Ranking *ranker.Ranking[string]
	// Ranked is true when every posting carries its BM25 score.
	Ranked  bool
	Version uint64
	BuiltAt time.Time
}

// Stats summarizes a snapshot.
type Stats struct {
	Version     uint64       `json:"version"`
	BuiltAt     time.Time    `json:"built_at"`
	Ranked      bool         `json:"ranked"`
	Keys        int          `json:"keys"`
	Postings    int          `json:"postings"`
	Occurrences int          `json:"occurrences"`
	Ranking     ranker.Stats `json:"ranking"`
}

// Engine owns the current snapshot. Builds are serialized; readers never
// block on a build in progress.
type Engine struct {
	opts    Options
	metrics *metrics.Metrics
	logger  *slog.Logger

	buildMu sync.Mutex
	version uint64

	mu          sync.RWMutex
	current     *Snapshot
	occurrences int
}

// NewEngine returns an Engine with no snapshot. m may be nil.
func NewEngine(opts Options, m *metrics.Metrics) *Engine {
	if opts.RankerWorkers < 1 {
		opts.RankerWorkers = 1
	}
	return &Engine{
		opts:    opts,
		metrics: m,
		logger:  logger.WithComponent("indexer"),
	}
}

// Build loads every city from src, indexes it, snapshots the corpus
// statistics and, when configured, writes BM25 scores into every posting.
// The new snapshot replaces the current one only if every step succeeds.
func (e *Engine) Build(ctx context.Context, src city.Source) (*Snapshot, error) {
	e.buildMu.Lock()
	defer e.buildMu.Unlock()

	start := time.Now()
	snap, occurrences, err := e.build(ctx, src)
	if err != nil {
		e.observeBuild("error", start)
		e.logger.Error("index build failed", "error", err, "duration", time.Since(start))
		return nil, err
	}

	e.mu.Lock()
	e.current = snap
	e.occurrences = occurrences
	e.mu.Unlock()

	e.observeBuild("success", start)
	if e.metrics != nil {
		e.metrics.RecordsIndexed.Set(float64(snap.Cities.Len()))
		e.metrics.VocabularySize.Set(float64(snap.Index.Len()))
	}
	e.logger.Info("index snapshot published",
		"version", snap.Version,
		"records", snap.Cities.Len(),
		"keys", snap.Index.Len(),
		"ranked", snap.Ranked,
		"duration", time.Since(start),
	)
	return snap, nil
}

func (e *Engine) build(ctx context.Context, src city.Source) (*Snapshot, int, error) {
	cities, err := src.Load(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("loading cities: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}

	x := index.NewInvertedIndex[string]()
	occurrences := record.IndexAll(x, cities)

	ranking := ranker.New[string](e.opts.K, e.opts.B)
	if err := ranking.TakeSnapshot(x, cities); err != nil {
		return nil, 0, err
	}
	if e.opts.RankAll {
		if err := ranking.ApplyToIndexConcurrently(ctx, e.opts.RankerWorkers); err != nil {
			return nil, 0, fmt.Errorf("ranking postings: %w", err)
		}
	}

	e.version++
	return &Snapshot{
		Index:   x,
		Cities:  cities,
		Ranking: ranking,
		Ranked:  e.opts.RankAll,
		Version: e.version,
		BuiltAt: time.Now().UTC(),
	}, occurrences, nil
}

// Current returns the published snapshot, or ErrNotReady before the first
// successful build.
func (e *Engine) Current() (*Snapshot, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.current == nil {
		return nil, apperrors.ErrNotReady
	}
	return e.current, nil
}

// Stats describes the published snapshot.
func (e *Engine) Stats() (Stats, error) {
	e.mu.RLock()
	snap, occurrences := e.current, e.occurrences
	e.mu.RUnlock()
	if snap == nil {
		return Stats{}, apperrors.ErrNotReady
	}
	return Stats{
		Version:     snap.Version,
		BuiltAt:     snap.BuiltAt,
		Ranked:      snap.Ranked,
		Keys:        snap.Index.Len(),
		Postings:    snap.Index.PostingCount(),
		Occurrences: occurrences,
		Ranking:     snap.Ranking.Stats(),
	}, nil
}

func (e *Engine) observeBuild(status string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.IndexBuildsTotal.WithLabelValues(status).Inc()
	e.metrics.IndexBuildDuration.Observe(time.Since(start).Seconds())
}
