package indexer

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/city"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/metrics"
)

type stubSource struct {
	tsv string
	err error
}

func (s stubSource) Load(ctx context.Context) (*city.Set, error) {
	if s.err != nil {
		return nil, s.err
	}
	return city.ParseTSV(strings.NewReader(s.tsv))
}

const cities = "1\tBaden-Baden\tBW\t48.76\t8.24\t0.7\n" +
	"2\tBerlin\tBE\t52.52\t13.40\t1.0\n" +
	"3\tNew Berlin\tWI\t42.97\t-88.10\t0.2\n"

func TestEngineNotReady(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)
	if _, err := e.Current(); !errors.Is(err, apperrors.ErrNotReady) {
		t.Errorf("Current() err = %v, want ErrNotReady", err)
	}
	if _, err := e.Stats(); !errors.Is(err, apperrors.ErrNotReady) {
		t.Errorf("Stats() err = %v, want ErrNotReady", err)
	}
}

func TestEngineBuild(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	e := NewEngine(DefaultOptions(), m)

	snap, err := e.Build(context.Background(), stubSource{tsv: cities})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if snap.Version != 1 || !snap.Ranked {
		t.Errorf("snapshot version=%d ranked=%v", snap.Version, snap.Ranked)
	}
	current, err := e.Current()
	if err != nil || current != snap {
		t.Fatalf("Current() = %p, %v; want %p", current, err, snap)
	}

	list, ok := snap.Index.Records("berlin")
	if !ok || list.Size() != 2 {
		t.Fatalf("berlin postings = %v, %v", list, ok)
	}
	for p := range list.Postings() {
		want, err := snap.Ranking.Score("berlin", p)
		if err != nil {
			t.Fatal(err)
		}
		if p.Score != want {
			t.Errorf("posting %d score = %f, want %f", p.ID, p.Score, want)
		}
	}
	baden, _ := snap.Index.Records("baden")
	if p, _ := baden.Posting(1); p.TermFrequency != 2 {
		t.Errorf("baden tf = %d, want 2", p.TermFrequency)
	}

	stats, err := e.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Keys != 3 || stats.Postings != 4 || stats.Occurrences != 5 || stats.Ranking.Records != 3 {
		t.Errorf("Stats() = %+v", stats)
	}
	if got := testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("successful builds = %f", got)
	}
	if got := testutil.ToFloat64(m.RecordsIndexed); got != 3 {
		t.Errorf("records gauge = %f", got)
	}
}

func TestEngineFailedBuildKeepsSnapshot(t *testing.T) {
	m := metrics.NewWithRegisterer(prometheus.NewRegistry())
	e := NewEngine(DefaultOptions(), m)
	first, err := e.Build(context.Background(), stubSource{tsv: cities})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("source down")
	if _, err := e.Build(context.Background(), stubSource{err: boom}); !errors.Is(err, boom) {
		t.Errorf("Build err = %v, want %v", err, boom)
	}
	if _, err := e.Build(context.Background(), stubSource{tsv: "# nothing\n"}); !errors.Is(err, apperrors.ErrEmptyCorpus) {
		t.Errorf("empty source err = %v, want ErrEmptyCorpus", err)
	}
	if current, _ := e.Current(); current != first {
		t.Error("failed builds must not replace the published snapshot")
	}
	if got := testutil.ToFloat64(m.IndexBuildsTotal.WithLabelValues("error")); got != 2 {
		t.Errorf("failed builds = %f", got)
	}

	second, err := e.Build(context.Background(), stubSource{tsv: cities})
	if err != nil {
		t.Fatal(err)
	}
	if second.Version != 2 {
		t.Errorf("version = %d, want 2", second.Version)
	}
}

func TestEngineUnranked(t *testing.T) {
	opts := DefaultOptions()
	opts.RankAll = false
	e := NewEngine(opts, nil)
	snap, err := e.Build(context.Background(), stubSource{tsv: cities})
	if err != nil {
		t.Fatal(err)
	}
	if snap.Ranked {
		t.Error("snapshot should not be ranked")
	}
	list, _ := snap.Index.Records("berlin")
	for p := range list.Postings() {
		if p.Score != 0 {
			t.Errorf("posting %d score = %f, want 0", p.ID, p.Score)
		}
	}
}

func TestEngineConcurrentReaders(t *testing.T) {
	e := NewEngine(DefaultOptions(), nil)
	if _, err := e.Build(context.Background(), stubSource{tsv: cities}); err != nil {
		t.Fatal(err)
	}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				snap, err := e.Current()
				if err != nil {
					t.Error(err)
					return
				}
				if _, ok := snap.Index.Records("berlin"); !ok {
					t.Error("berlin missing")
					return
				}
			}
		}()
	}
	for i := 0; i < 3; i++ {
		if _, err := e.Build(context.Background(), stubSource{tsv: cities}); err != nil {
			t.Fatal(err)
		}
	}
	wg.Wait()
}
