// Package events publishes domain events after the writes they describe have
// committed. Delivery is best effort: a failed publish is logged and counted
// by the publisher and never undoes committed state.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/helixir/editorial-workflow-service/internal/config"
	"github.com/helixir/editorial-workflow-service/internal/domain"
	"github.com/helixir/editorial-workflow-service/internal/observability"
)

// Publisher delivers domain events.
type Publisher interface {
	Publish(ctx context.Context, events ...*domain.Event) error
	Close() error
}

// messageWriter is the part of *kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Compile-time interface verification.
var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = Nop{}
)

// KafkaPublisher writes events to one Kafka topic keyed by submission id, so
// the events of a submission stay ordered within a partition.
type KafkaPublisher struct {
	writer  messageWriter
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewKafkaPublisher creates a publisher from configuration.
func NewKafkaPublisher(cfg config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		RequiredAcks: kafka.RequireAll,
	}
	return newKafkaPublisher(writer, logger, metrics)
}

func newKafkaPublisher(w messageWriter, logger zerolog.Logger, metrics *observability.Metrics) *KafkaPublisher {
	return &KafkaPublisher{
		writer:  w,
		logger:  logger.With().Str("component", "event_publisher").Logger(),
		metrics: metrics,
	}
}

// Publish writes events in one batch.
func (p *KafkaPublisher) Publish(ctx context.Context, events ...*domain.Event) error {
	if len(events) == 0 {
		return nil
	}

	msgs := make([]kafka.Message, 0, len(events))
	for _, e := range events {
		value, err := json.Marshal(e)
		if err != nil {
			p.metrics.RecordEventPublishFailure(e.EventType)
			return fmt.Errorf("marshal event %s: %w", e.EventID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(strconv.FormatInt(e.SubmissionID, 10)),
			Value: value,
			Headers: []kafka.Header{
				{Key: "event_type", Value: []byte(e.EventType)},
				{Key: "event_id", Value: []byte(e.EventID)},
			},
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		for _, e := range events {
			p.metrics.RecordEventPublishFailure(e.EventType)
			p.logger.Error().Err(err).
				Str("event_type", e.EventType).
				Str("event_id", e.EventID).
				Int64("submission_id", e.SubmissionID).
				Msg("failed to publish event")
		}
		return fmt.Errorf("write %d events: %w", len(events), err)
	}

	for _, e := range events {
		p.metrics.RecordEventPublished(e.EventType)
	}
	p.logger.Debug().Int("count", len(events)).Msg("published events")
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Nop discards events. It is used when Kafka is disabled.
type Nop struct{}

// Publish discards events.
func (Nop) Publish(context.Context, ...*domain.Event) error { return nil }

// Close does nothing.
func (Nop) Close() error { return nil }

// New returns a Kafka publisher when enabled in cfg, otherwise Nop.
func New(cfg config.KafkaConfig, logger zerolog.Logger, metrics *observability.Metrics) Publisher {
	if !cfg.Enabled || len(cfg.Brokers) == 0 {
		return Nop{}
	}
	return NewKafkaPublisher(cfg, logger, metrics)
}

// Recorder keeps published events in memory. Tests use it to assert on
// what the engines emitted.
type Recorder struct {
	Events []*domain.Event
	Err    error
}

// Publish records events and returns r.Err.
func (r *Recorder) Publish(_ context.Context, events ...*domain.Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.Events = append(r.Events, events...)
	return nil
}

// Close does nothing.
func (r *Recorder) Close() error { return nil }

// Types returns the event types recorded so far, in order.
func (r *Recorder) Types() []string {
	out := make([]string, len(r.Events))
	for i, e := range r.Events {
		out[i] = e.EventType
	}
	return out
}
