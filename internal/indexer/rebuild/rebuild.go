// Package rebuild rebuilds the index snapshot on demand. Requests arrive over
// HTTP or from a Kafka topic; each successful rebuild invalidates the query
// cache and announces the new snapshot on a completion topic.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/city"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/internal/indexer"
	apperrors "github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/lexisearch/pkg/resilience"
)

// Request is the JSON payload of a rebuild message.
type Request struct {
	Reason      string    `json:"reason"`
	RequestedAt time.Time `json:"requested_at"`
}

// Completed is published after a snapshot is built and published.
type Completed struct {
	Version  uint64    `json:"version"`
	Records  int       `json:"records"`
	Keys     int       `json:"keys"`
	Ranked   bool      `json:"ranked"`
	Reason   string    `json:"reason"`
	BuiltAt  time.Time `json:"built_at"`
	Duration string    `json:"duration"`
}

// Builder builds and publishes a snapshot.
type Builder interface {
	Build(ctx context.Context, src city.Source) (*indexer.Snapshot, error)
}

// Invalidator drops cached query results.
type Invalidator interface {
	Invalidate(ctx context.Context) (int64, error)
}

// Publisher announces completed rebuilds.
type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Service ties a builder to its source and to the optional cache and
// completion topic.
type Service struct {
	builder     Builder
	source      city.Source
	invalidator Invalidator
	publisher   Publisher
	logger      *slog.Logger
}

// NewService returns a Service. invalidator and publisher may be nil.
func NewService(builder Builder, source city.Source, invalidator Invalidator, publisher Publisher) *Service {
	return &Service{
		builder:     builder,
		source:      source,
		invalidator: invalidator,
		publisher:   publisher,
		logger:      logger.WithComponent("index-rebuild"),
	}
}

// Rebuild builds a new snapshot from the source. Cache invalidation and the
// completion event are best effort: their failures are logged and do not
// fail the rebuild.
func (s *Service) Rebuild(ctx context.Context, reason string) (*indexer.Snapshot, error) {
	start := time.Now()
	s.logger.Info("rebuild started", "reason", reason)
	snap, err := s.builder.Build(ctx, s.source)
	if err != nil {
		return nil, fmt.Errorf("rebuilding index (%s): %w", reason, err)
	}
	if s.invalidator != nil {
		if _, err := s.invalidator.Invalidate(ctx); err != nil {
			s.logger.Warn("cache invalidation after rebuild failed", "error", err)
		}
	}
	if s.publisher != nil {
		event := kafka.Event{
			Key: fmt.Sprintf("snapshot-%d", snap.Version),
			Value: Completed{
				Version:  snap.Version,
				Records:  snap.Cities.Len(),
				Keys:     snap.Index.Len(),
				Ranked:   snap.Ranked,
				Reason:   reason,
				BuiltAt:  snap.BuiltAt,
				Duration: time.Since(start).String(),
			},
		}
		if err := s.publisher.Publish(ctx, event); err != nil {
			s.logger.Warn("publishing rebuild completion failed", "error", err)
		}
	}
	return snap, nil
}

// HandleMessage returns a Kafka MessageHandler that rebuilds on every
// message. Undecodable payloads are logged and skipped. An empty source is
// reported as permanent so the consumer does not retry it.
func (s *Service) HandleMessage() kafka.MessageHandler {
	return func(ctx context.Context, key []byte, value []byte) error {
		req, err := kafka.DecodeJSON[Request](value)
		if err != nil {
			s.logger.Error("failed to decode rebuild request",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		reason := req.Reason
		if reason == "" {
			reason = "kafka"
		}
		if _, err := s.Rebuild(ctx, reason); err != nil {
			if errors.Is(err, apperrors.ErrEmptyCorpus) {
				return resilience.Permanent(err)
			}
			return err
		}
		return nil
	}
}

// MessageSource is satisfied by *kafka.Consumer.
type MessageSource interface {
	Start(ctx context.Context) error
}

// Listener runs a consumer whose handler is Service.HandleMessage.
type Listener struct {
	consumer MessageSource
	logger   *slog.Logger
}

func NewListener(consumer MessageSource) *Listener {
	return &Listener{
		consumer: consumer,
		logger:   logger.WithComponent("rebuild-listener"),
	}
}

// Start blocks until ctx is cancelled.
func (l *Listener) Start(ctx context.Context) error {
	l.logger.Info("rebuild listener starting")
	return l.consumer.Start(ctx)
}
