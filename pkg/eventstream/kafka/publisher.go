// Package kafka publishes turn events to a Kafka topic with segmentio/kafka-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/trickle/pkg/eventstream"
	"github.com/papercomputeco/trickle/pkg/logger"
)

// DefaultTopic is used when Config.Topic is empty.
const DefaultTopic = "trickle.turns"

// Config configures a Publisher.
type Config struct {
	Brokers []string
	Topic   string
	Logger  *slog.Logger
}

// MessageWriter is the part of *kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes each event as one JSON message keyed by the reply turn ID,
// so every event for a reply lands on the same partition.
type Publisher struct {
	writer MessageWriter
	topic  string
	logger *slog.Logger
}

// NewPublisher returns a Publisher writing to cfg.Brokers.
func NewPublisher(cfg Config) (*Publisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher requires at least one broker")
	}
	if cfg.Topic == "" {
		cfg.Topic = DefaultTopic
	}

	w := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  cfg.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}

	return NewPublisherWithWriter(w, cfg.Topic, cfg.Logger), nil
}

// NewPublisherWithWriter returns a Publisher over an existing writer.
func NewPublisherWithWriter(w MessageWriter, topic string, l *slog.Logger) *Publisher {
	if l == nil {
		l = logger.Nop()
	}
	return &Publisher{writer: w, topic: topic, logger: l}
}

// PublishTurn encodes and writes one event.
func (p *Publisher) PublishTurn(ctx context.Context, event *eventstream.TurnFinalizedEvent) error {
	if event == nil {
		return eventstream.ErrNilTurn
	}

	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding turn event: %w", err)
	}

	msg := kafkago.Message{
		Key:   []byte(event.Reply.ID),
		Value: value,
		Time:  event.EmittedAt,
		Headers: []kafkago.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "schema_version", Value: []byte(fmt.Sprint(event.SchemaVersion))},
		},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("writing turn event to %s: %w", p.topic, err)
	}

	p.logger.Debug("published turn event",
		"topic", p.topic,
		"event_id", event.EventID,
		"outcome", event.RequestMeta.Outcome,
	)
	return nil
}

// Close flushes pending messages and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}
