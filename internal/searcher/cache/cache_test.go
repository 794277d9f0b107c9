package cache

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/resilience"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]string)}
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	v, ok := s.data[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (s *memoryStore) Set(_ context.Context, key string, value any, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	switch v := value.(type) {
	case []byte:
		s.data[key] = string(v)
	case string:
		s.data[key] = v
	}
	return nil
}

func (s *memoryStore) FlushByPattern(_ context.Context, pattern string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return 0, s.err
	}
	prefix := strings.TrimSuffix(pattern, "*")
	var n int64
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

func result(query string) *executor.SearchResult {
	return &executor.SearchResult{
		Query:     query,
		TotalHits: 1,
		Results:   []executor.Hit{{ID: 1, Score: 1.5}},
	}
}

func TestGetOrCompute(t *testing.T) {
	c := New(newMemoryStore(), time.Minute)
	ctx := context.Background()
	plan := parser.Parse("berlin")
	calls := 0
	compute := func() (*executor.SearchResult, error) {
		calls++
		return result("berlin"), nil
	}

	first, hit, err := c.GetOrCompute(ctx, plan, 10, compute)
	if err != nil || hit {
		t.Fatalf("first call: hit=%v err=%v", hit, err)
	}
	second, hit, err := c.GetOrCompute(ctx, parser.Parse("BERLIN"), 10, compute)
	if err != nil || !hit {
		t.Fatalf("second call: hit=%v err=%v", hit, err)
	}
	if calls != 1 {
		t.Errorf("compute called %d times, want 1", calls)
	}
	if second.Results[0].Score != first.Results[0].Score {
		t.Errorf("cached result differs: %+v vs %+v", second, first)
	}
	if _, hit, _ := c.GetOrCompute(ctx, plan, 5, compute); hit {
		t.Error("a different limit must not hit")
	}
	if hits, misses := c.Stats(); hits != 1 || misses != 2 {
		t.Errorf("Stats() = %d hits, %d misses", hits, misses)
	}
}

func TestGetOrComputeError(t *testing.T) {
	c := New(newMemoryStore(), time.Minute)
	boom := errors.New("boom")
	_, _, err := c.GetOrCompute(context.Background(), parser.Parse("x"), 10, func() (*executor.SearchResult, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if _, ok := c.Get(context.Background(), parser.Parse("x"), 10); ok {
		t.Error("failed computation must not be cached")
	}
}

func TestGetOrComputeCollapsesConcurrentMisses(t *testing.T) {
	c := New(newMemoryStore(), time.Minute)
	var calls atomic.Int32
	release := make(chan struct{})
	compute := func() (*executor.SearchResult, error) {
		calls.Add(1)
		<-release
		return result("berlin"), nil
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, _, err := c.GetOrCompute(context.Background(), parser.Parse("berlin"), 10, compute); err != nil {
				t.Error(err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()
	if n := calls.Load(); n != 1 {
		t.Errorf("compute called %d times, want 1", n)
	}
}

func TestUnavailableStoreFallsBackToCompute(t *testing.T) {
	store := newMemoryStore()
	store.err = errors.New("connection refused")
	c := New(store, time.Minute)
	for i := 0; i < 10; i++ {
		res, hit, err := c.GetOrCompute(context.Background(), parser.Parse("berlin"), 10, func() (*executor.SearchResult, error) {
			return result("berlin"), nil
		})
		if err != nil || hit || res == nil {
			t.Fatalf("call %d: res=%v hit=%v err=%v", i, res, hit, err)
		}
	}
	if c.Breaker().GetState() != resilience.StateOpen {
		t.Errorf("breaker state = %v, want open", c.Breaker().GetState())
	}
}

func TestInvalidate(t *testing.T) {
	store := newMemoryStore()
	store.data["other:key"] = "keep"
	c := New(store, time.Minute)
	ctx := context.Background()
	c.Set(ctx, parser.Parse("berlin"), 10, result("berlin"))
	c.Set(ctx, parser.Parse("hamburg"), 10, result("hamburg"))

	deleted, err := c.Invalidate(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if deleted != 2 {
		t.Errorf("deleted = %d, want 2", deleted)
	}
	if _, ok := c.Get(ctx, parser.Parse("berlin"), 10); ok {
		t.Error("entry survived invalidation")
	}
	if store.data["other:key"] != "keep" {
		t.Error("foreign key removed")
	}
}

func TestBuildKey(t *testing.T) {
	a := BuildKey(parser.Parse("hamburg berlin"), 10)
	b := BuildKey(parser.Parse("Berlin Hamburg"), 10)
	if a != b {
		t.Errorf("equivalent queries produced %s and %s", a, b)
	}
	if !strings.HasPrefix(a, keyPrefix) {
		t.Errorf("key %s lacks prefix", a)
	}
	if a == BuildKey(parser.Parse("berlin OR hamburg"), 10) {
		t.Error("AND and OR plans share a key")
	}
}
