package benchmark

import (
	"context"
	"fmt"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/record"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/ranker"
)

// BenchmarkIndexAll measures building the inverted index from a city set.
func BenchmarkIndexAll(b *testing.B) {
	for _, n := range sizes {
		set := corpus(n)
		b.Run(sizeName(n), func(b *testing.B) {
			b.ReportAllocs()
			for b.Loop() {
				x := index.NewInvertedIndex[string]()
				record.IndexAll(x, set)
			}
		})
	}
}

// BenchmarkTakeSnapshot measures collecting corpus statistics.
func BenchmarkTakeSnapshot(b *testing.B) {
	set := corpus(10_000)
	x := index.NewInvertedIndex[string]()
	record.IndexAll(x, set)
	b.ReportAllocs()
	for b.Loop() {
		r := ranker.NewDefault[string]()
		if err := r.TakeSnapshot(x, set); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkApplyToIndex compares serial and concurrent scoring of every
// posting.
func BenchmarkApplyToIndex(b *testing.B) {
	set := corpus(50_000)
	x := index.NewInvertedIndex[string]()
	record.IndexAll(x, set)
	r := ranker.NewDefault[string]()
	if err := r.TakeSnapshot(x, set); err != nil {
		b.Fatal(err)
	}

	b.Run("serial", func(b *testing.B) {
		for b.Loop() {
			if err := r.ApplyToIndex(); err != nil {
				b.Fatal(err)
			}
		}
	})
	for _, workers := range []int{2, 4, 8} {
		b.Run(fmt.Sprintf("workers=%d", workers), func(b *testing.B) {
			for b.Loop() {
				if err := r.ApplyToIndexConcurrently(context.Background(), workers); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkEngineBuild measures a full load, index and rank cycle.
func BenchmarkEngineBuild(b *testing.B) {
	set := corpus(10_000)
	for _, rankAll := range []bool{true, false} {
		name := "lazy"
		if rankAll {
			name = "ranked"
		}
		b.Run(name, func(b *testing.B) {
			opts := indexer.DefaultOptions()
			opts.RankAll = rankAll
			e := indexer.NewEngine(opts, nil)
			b.ReportAllocs()
			for b.Loop() {
				if _, err := e.Build(context.Background(), setSource{set}); err != nil {
					b.Fatal(err)
				}
			}
		})
	}
}

// BenchmarkTerms measures splitting city names into keys.
func BenchmarkTerms(b *testing.B) {
	names := map[string]string{
		"short": "Ulm",
		"multi": "Frankfurt am Main",
		"long":  "Llanfairpwllgwyngyll-gogerychwyrndrobwll St. Mary's Church, Anglesey",
	}
	for name, text := range names {
		b.Run(name, func(b *testing.B) {
			b.ReportAllocs()
			b.SetBytes(int64(len(text)))
			for b.Loop() {
				tokenizer.Terms(text)
			}
		})
	}
}
