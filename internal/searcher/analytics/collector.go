package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/logger"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Collector records every event into an Aggregator and, when a Publisher is
// set, forwards events in batches. Track never blocks: events that do not
// fit the buffer are counted as dropped and still aggregated.
type Collector struct {
	agg       *Aggregator
	publisher Publisher
	events    chan SearchEvent
	batchSize int
	interval  time.Duration
	logger    *slog.Logger

	mu      sync.Mutex
	dropped int64
	done    chan struct{}
}

type CollectorOptions struct {
	BufferSize    int
	BatchSize     int
	FlushInterval time.Duration
}

func NewCollector(agg *Aggregator, publisher Publisher, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 10000
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	return &Collector{
		agg:       agg,
		publisher: publisher,
		events:    make(chan SearchEvent, opts.BufferSize),
		batchSize: opts.BatchSize,
		interval:  opts.FlushInterval,
		logger:    logger.WithComponent("analytics-collector"),
		done:      make(chan struct{}),
	}
}

func (c *Collector) Aggregator() *Aggregator { return c.agg }

func (c *Collector) Track(e SearchEvent) {
	c.agg.Record(e)
	if c.publisher == nil {
		return
	}
	select {
	case c.events <- e:
	default:
		c.mu.Lock()
		c.dropped++
		c.mu.Unlock()
		c.logger.Warn("analytics event dropped, buffer full")
	}
}

func (c *Collector) Dropped() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropped
}

// Run publishes batches until ctx is cancelled, then flushes what is left
// with a short deadline. It returns immediately without a Publisher.
func (c *Collector) Run(ctx context.Context) {
	defer close(c.done)
	if c.publisher == nil {
		return
	}
	c.logger.Info("analytics collector started", "buffer_size", cap(c.events), "batch_size", c.batchSize)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	batch := make([]kafka.Event, 0, c.batchSize)
	for {
		select {
		case e := <-c.events:
			batch = append(batch, toKafka(e))
			if len(batch) >= c.batchSize {
				batch = c.flush(ctx, batch)
			}
		case <-ticker.C:
			batch = c.flush(ctx, batch)
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			for {
				select {
				case e := <-c.events:
					batch = append(batch, toKafka(e))
				default:
					c.flush(flushCtx, batch)
					return
				}
			}
		}
	}
}

// Wait blocks until Run has returned.
func (c *Collector) Wait() {
	<-c.done
}

func (c *Collector) flush(ctx context.Context, batch []kafka.Event) []kafka.Event {
	if len(batch) == 0 {
		return batch
	}
	if err := c.publisher.PublishBatch(ctx, batch); err != nil {
		c.logger.Error("analytics batch publish failed", "events", len(batch), "error", err)
	} else {
		c.logger.Debug("analytics batch published", "events", len(batch))
	}
	return batch[:0]
}

func toKafka(e SearchEvent) kafka.Event {
	return kafka.Event{Key: e.key(), Value: e}
}
