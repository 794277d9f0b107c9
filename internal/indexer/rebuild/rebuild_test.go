package rebuild

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/city"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/resilience"
)

type tsvSource struct {
	tsv string
	err error
}

func (s tsvSource) Load(context.Context) (*city.Set, error) {
	if s.err != nil {
		return nil, s.err
	}
	return city.ParseTSV(strings.NewReader(s.tsv))
}

type countingInvalidator struct {
	calls int
	err   error
}

func (c *countingInvalidator) Invalidate(context.Context) (int64, error) {
	c.calls++
	return 3, c.err
}

type recordingPublisher struct {
	events []kafka.Event
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, e kafka.Event) error {
	p.events = append(p.events, e)
	return p.err
}

const data = "1\tBerlin\tBE\t52.52\t13.40\t1.0\n2\tHamburg\tHH\t53.55\t9.99\t0.9\n"

func TestRebuild(t *testing.T) {
	engine := indexer.NewEngine(indexer.DefaultOptions(), nil)
	inv := &countingInvalidator{}
	pub := &recordingPublisher{}
	svc := NewService(engine, tsvSource{tsv: data}, inv, pub)

	snap, err := svc.Rebuild(context.Background(), "test")
	if err != nil {
		t.Fatalf("Rebuild: %v", err)
	}
	if current, _ := engine.Current(); current != snap {
		t.Error("rebuilt snapshot not published")
	}
	if inv.calls != 1 {
		t.Errorf("invalidations = %d, want 1", inv.calls)
	}
	if len(pub.events) != 1 {
		t.Fatalf("events = %d, want 1", len(pub.events))
	}
	done, ok := pub.events[0].Value.(Completed)
	if !ok {
		t.Fatalf("event value %T", pub.events[0].Value)
	}
	if done.Version != 1 || done.Records != 2 || done.Keys != 2 || done.Reason != "test" {
		t.Errorf("completed = %+v", done)
	}
	if pub.events[0].Key != "snapshot-1" {
		t.Errorf("key = %q", pub.events[0].Key)
	}
}

func TestRebuildFailureSkipsSideEffects(t *testing.T) {
	engine := indexer.NewEngine(indexer.DefaultOptions(), nil)
	inv := &countingInvalidator{}
	pub := &recordingPublisher{}
	boom := errors.New("db down")
	svc := NewService(engine, tsvSource{err: boom}, inv, pub)

	if _, err := svc.Rebuild(context.Background(), "test"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
	if inv.calls != 0 || len(pub.events) != 0 {
		t.Errorf("side effects after failed build: invalidations=%d events=%d", inv.calls, len(pub.events))
	}
}

func TestRebuildToleratesSideEffectErrors(t *testing.T) {
	engine := indexer.NewEngine(indexer.DefaultOptions(), nil)
	svc := NewService(engine,
		tsvSource{tsv: data},
		&countingInvalidator{err: errors.New("redis down")},
		&recordingPublisher{err: errors.New("kafka down")},
	)
	if _, err := svc.Rebuild(context.Background(), "test"); err != nil {
		t.Errorf("Rebuild: %v", err)
	}
}

func TestHandleMessage(t *testing.T) {
	engine := indexer.NewEngine(indexer.DefaultOptions(), nil)
	pub := &recordingPublisher{}
	handle := NewService(engine, tsvSource{tsv: data}, nil, pub).HandleMessage()

	value, _ := json.Marshal(Request{Reason: "nightly"})
	if err := handle(context.Background(), []byte("k"), value); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if len(pub.events) != 1 || pub.events[0].Value.(Completed).Reason != "nightly" {
		t.Errorf("events = %+v", pub.events)
	}

	if err := handle(context.Background(), nil, []byte("{}")); err != nil {
		t.Fatal(err)
	}
	if got := pub.events[1].Value.(Completed).Reason; got != "kafka" {
		t.Errorf("default reason = %q", got)
	}

	if err := handle(context.Background(), nil, []byte("not json")); err != nil {
		t.Errorf("malformed payload should be skipped, got %v", err)
	}
	if len(pub.events) != 2 {
		t.Errorf("malformed payload triggered a rebuild")
	}
}

func TestHandleMessageBuildError(t *testing.T) {
	engine := indexer.NewEngine(indexer.DefaultOptions(), nil)
	handle := NewService(engine, tsvSource{err: errors.New("down")}, nil, nil).HandleMessage()
	if err := handle(context.Background(), nil, []byte("{}")); err == nil {
		t.Error("build failure should be returned so the consumer retries")
	}

	empty := NewService(engine, tsvSource{tsv: "# header only\n"}, nil, nil).HandleMessage()
	err := empty(context.Background(), nil, []byte("{}"))
	if !errors.Is(err, apperrors.ErrEmptyCorpus) {
		t.Fatalf("err = %v", err)
	}
	calls := 0
	resilience.Retry(context.Background(), "test", resilience.RetryConfig{MaxAttempts: 3}, func() error {
		calls++
		return err
	})
	if calls != 1 {
		t.Errorf("empty corpus retried %d times", calls)
	}
}

type stubConsumer struct{ started bool }

func (s *stubConsumer) Start(ctx context.Context) error {
	s.started = true
	<-ctx.Done()
	return nil
}

func TestListener(t *testing.T) {
	c := &stubConsumer{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewListener(c).Start(ctx); err != nil {
		t.Fatal(err)
	}
	if !c.started {
		t.Error("consumer not started")
	}
}
