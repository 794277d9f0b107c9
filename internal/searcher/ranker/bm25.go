// Package ranker scores postings with BM25 against a frozen snapshot of
// corpus statistics.
package ranker

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"math"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/logger"
)

const (
	DefaultK = 1.75
	DefaultB = 0.75
)

// Stats describes the corpus captured by the last snapshot.
type Stats struct {
	Records          int     `json:"records"`
	TotalSize        int     `json:"total_size"`
	AvgRecordSize    float64 `json:"avg_record_size"`
	Vocabulary       int     `json:"vocabulary"`
	SaturationK      float64 `json:"k"`
	NormalizationB   float64 `json:"b"`
	SnapshotAcquired bool    `json:"snapshot_acquired"`
}

// Ranking implements BM25. Call TakeSnapshot before scoring; scoring reads
// only the cached statistics, so a Ranking is safe for concurrent Score
// calls once the snapshot is taken. k saturates term frequency and b scales
// length normalization; neither is range checked.
type Ranking[K comparable] struct {
	k float64
	b float64

	index *index.InvertedIndex[K]

	recordCount   int
	totalSize     int
	recordSize    map[uint32]int
	documentFreq  map[K]int
	snapshotTaken bool

	logger *slog.Logger
}

// New returns a Ranking with the given parameters.
func New[K comparable](k, b float64) *Ranking[K] {
	return &Ranking[K]{
		k:            k,
		b:            b,
		recordSize:   make(map[uint32]int),
		documentFreq: make(map[K]int),
		logger:       logger.WithComponent("bm25-ranking"),
	}
}

// NewDefault returns a Ranking with DefaultK and DefaultB.
func NewDefault[K comparable]() *Ranking[K] {
	return New[K](DefaultK, DefaultB)
}

// Index returns the index of the current snapshot, or nil before one is taken.
func (r *Ranking[K]) Index() *index.InvertedIndex[K] { return r.index }

// TakeSnapshot discards any previous statistics and caches the record count,
// every record's size, the total size and every key's document frequency.
// An empty record set leaves the Ranking without a snapshot.
func (r *Ranking[K]) TakeSnapshot(x *index.InvertedIndex[K], records record.KeyRecordSet[K]) error {
	clear(r.recordSize)
	clear(r.documentFreq)
	r.recordCount = 0
	r.totalSize = 0
	r.snapshotTaken = false
	r.index = x

	for rec := range records.All() {
		size := rec.Size()
		r.recordSize[rec.ID()] = size
		r.totalSize += size
		r.recordCount++
	}
	if r.recordCount == 0 {
		return fmt.Errorf("taking snapshot: %w", apperrors.ErrEmptyCorpus)
	}

	for key := range x.Keys() {
		list, _ := x.Records(key)
		r.documentFreq[key] = list.Size()
	}
	r.snapshotTaken = true

	r.logger.Debug("snapshot taken",
		"records", r.recordCount,
		"total_size", r.totalSize,
		"vocabulary", len(r.documentFreq),
	)
	return nil
}

// Score returns the BM25 score of posting for key.
func (r *Ranking[K]) Score(key K, posting index.Posting) (float64, error) {
	if !r.snapshotTaken {
		return 0, apperrors.ErrNoSnapshot
	}
	df, ok := r.documentFreq[key]
	if !ok {
		return 0, fmt.Errorf("scoring key %v: %w", key, apperrors.ErrUnknownKey)
	}
	dl, ok := r.recordSize[posting.ID]
	if !ok {
		return 0, fmt.Errorf("scoring record %d: %w", posting.ID, apperrors.ErrUnknownRecord)
	}
	idf := computeIDF(r.recordCount, df)
	tfModified := computeTFNorm(
		float64(posting.TermFrequency),
		float64(dl),
		r.avgRecordSize(),
		r.k,
		r.b,
	)
	return tfModified * idf, nil
}

// ApplyToIndex writes the score of every posting in the snapshot's index.
func (r *Ranking[K]) ApplyToIndex() error {
	if !r.snapshotTaken {
		return apperrors.ErrNoSnapshot
	}
	for key := range r.index.Keys() {
		if err := r.scoreKey(key); err != nil {
			return err
		}
	}
	return nil
}

// ApplyToIndexConcurrently is ApplyToIndex spread over at most workers
// goroutines. Each goroutine owns whole keys, so no posting is written by
// two goroutines. The index must not be read while this runs.
func (r *Ranking[K]) ApplyToIndexConcurrently(ctx context.Context, workers int) error {
	if !r.snapshotTaken {
		return apperrors.ErrNoSnapshot
	}
	if workers < 1 {
		workers = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for key := range r.index.Keys() {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return r.scoreKey(key)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

// SortPostingsByRank stably sorts postings by descending score. Postings
// with equal scores keep their relative order.
func (r *Ranking[K]) SortPostingsByRank(postings []index.Posting) {
	slices.SortStableFunc(postings, func(a, b index.Posting) int {
		return cmp.Compare(b.Score, a.Score)
	})
}

// Stats reports the statistics of the current snapshot.
func (r *Ranking[K]) Stats() Stats {
	s := Stats{
		Records:          r.recordCount,
		TotalSize:        r.totalSize,
		Vocabulary:       len(r.documentFreq),
		SaturationK:      r.k,
		NormalizationB:   r.b,
		SnapshotAcquired: r.snapshotTaken,
	}
	if r.snapshotTaken {
		s.AvgRecordSize = r.avgRecordSize()
	}
	return s
}

func (r *Ranking[K]) scoreKey(key K) error {
	list, ok := r.index.Records(key)
	if !ok {
		return fmt.Errorf("scoring key %v: %w", key, apperrors.ErrUnknownKey)
	}
	return list.UpdateScores(func(p index.Posting) (float64, error) {
		return r.Score(key, p)
	})
}

func (r *Ranking[K]) avgRecordSize() float64 {
	return float64(r.totalSize) / float64(r.recordCount)
}

// computeIDF is log2(N / df).
func computeIDF(totalRecords int, docFreq int) float64 {
	return math.Log2(float64(totalRecords) / float64(docFreq))
}

func computeTFNorm(termFreq, recordSize, avgRecordSize, k, b float64) float64 {
	lengthRatio := recordSize / avgRecordSize
	denominator := k*(1-b+b*lengthRatio) + termFreq
	return termFreq * (k + 1) / denominator
}
