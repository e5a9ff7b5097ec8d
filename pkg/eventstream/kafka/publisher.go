// Package kafka publishes exchange events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/papercomputeco/chatrelay/pkg/eventstream"
	"github.com/papercomputeco/chatrelay/pkg/logger"
)

const (
	// DefaultTopic is used when no topic is configured.
	DefaultTopic = "chatrelay.exchanges"

	headerEventType     = "event_type"
	headerSchemaVersion = "schema_version"
)

// ErrNoBrokers is returned when the publisher is configured without brokers.
var ErrNoBrokers = errors.New("kafka publisher requires at least one broker")

// Config configures a Kafka publisher.
type Config struct {
	// Brokers is the list of bootstrap broker addresses, e.g. "localhost:9092".
	Brokers []string

	// Topic receives the events. Defaults to DefaultTopic.
	Topic string

	// WriteTimeout bounds a single publish. Defaults to 10 seconds.
	WriteTimeout time.Duration

	Logger *slog.Logger
}

// messageWriter is the subset of *kafkago.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes events to Kafka, keyed by exchange ID so that updates to
// one exchange land on the same partition.
type Publisher struct {
	writer       messageWriter
	topic        string
	writeTimeout time.Duration
	logger       *slog.Logger
}

// NewPublisher creates a new Kafka publisher. No connection is made until
// the first publish.
func NewPublisher(c Config) (*Publisher, error) {
	if len(c.Brokers) == 0 {
		return nil, ErrNoBrokers
	}

	if c.Topic == "" {
		c.Topic = DefaultTopic
	}

	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(c.Brokers...),
		Topic:                  c.Topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireOne,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}

	return newPublisher(writer, c), nil
}

func newPublisher(w messageWriter, c Config) *Publisher {
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 10 * time.Second
	}

	if c.Logger == nil {
		c.Logger = logger.Nop()
	}

	return &Publisher{
		writer:       w,
		topic:        c.Topic,
		writeTimeout: c.WriteTimeout,
		logger:       c.Logger,
	}
}

// PublishExchange writes event to the configured topic.
func (p *Publisher) PublishExchange(ctx context.Context, event *eventstream.ExchangeRecordedEvent) error {
	if event == nil {
		return eventstream.ErrNilExchangeEvent
	}

	msg, err := buildMessage(event)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.writeTimeout)
	defer cancel()

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publishing %s to %s: %w", event.EventType, p.topic, err)
	}

	p.logger.Debug("published exchange event",
		"topic", p.topic,
		"event_id", event.EventID,
		logger.KeyExchangeID, event.Exchange.ID,
	)

	return nil
}

// Close flushes pending writes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

func buildMessage(event *eventstream.ExchangeRecordedEvent) (kafkago.Message, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("encoding event: %w", err)
	}

	return kafkago.Message{
		Key:   []byte(event.Exchange.ID),
		Value: payload,
		Headers: []kafkago.Header{
			{Key: headerEventType, Value: []byte(event.EventType)},
			{Key: headerSchemaVersion, Value: fmt.Appendf(nil, "%d", event.SchemaVersion)},
		},
		Time: event.EmittedAt,
	}, nil
}
