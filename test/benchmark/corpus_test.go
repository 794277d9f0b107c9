// Package benchmark measures indexing, ranking, merging and query execution
// over a synthetic city corpus.
package benchmark

import (
	"context"
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/city"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer"
)

var (
	prefixes = []string{"", "", "", "New", "North", "South", "West", "East", "Port", "Saint", "Lake", "Bad"}
	stems    = []string{
		"Berlin", "Hamburg", "York", "Springfield", "Franklin", "Clinton", "Georgetown",
		"Salem", "Madison", "Fairview", "Riverside", "Greenville", "Bristol", "Dover",
		"Oxford", "Arlington", "Ashland", "Burlington", "Manchester", "Milton",
	}
	suffixes = []string{"", "", "", "", "City", "Heights", "Falls", "Springs", "am Main", "an der Oder"}
	states   = []string{"BE", "HH", "BW", "NY", "CA", "TX", "IL", "MA", "OH", "WA"}
)

// corpus returns n deterministic cities whose names mix a small vocabulary,
// so common keys get long posting lists.
func corpus(n int) *city.Set {
	rng := rand.New(rand.NewPCG(42, uint64(n)))
	cities := make([]*city.City, 0, n)
	for i := range n {
		name := stems[rng.IntN(len(stems))]
		if p := prefixes[rng.IntN(len(prefixes))]; p != "" {
			name = p + " " + name
		}
		if s := suffixes[rng.IntN(len(suffixes))]; s != "" {
			name = name + " " + s
		}
		c, err := city.New(uint32(i+1), name, states[rng.IntN(len(states))],
			rng.Float64()*180-90, rng.Float64()*360-180, rng.Float64())
		if err != nil {
			panic(err)
		}
		cities = append(cities, c)
	}
	set, err := city.NewSet(cities...)
	if err != nil {
		panic(err)
	}
	return set
}

type setSource struct{ set *city.Set }

func (s setSource) Load(context.Context) (*city.Set, error) { return s.set, nil }

func builtEngine(b *testing.B, n int, rankAll bool) *indexer.Engine {
	b.Helper()
	opts := indexer.DefaultOptions()
	opts.RankAll = rankAll
	e := indexer.NewEngine(opts, nil)
	if _, err := e.Build(context.Background(), setSource{corpus(n)}); err != nil {
		b.Fatal(err)
	}
	return e
}

var sizes = []int{1_000, 10_000, 100_000}

func sizeName(n int) string { return fmt.Sprintf("cities=%d", n) }
