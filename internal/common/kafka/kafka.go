package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kmassidik/payflow/internal/common/config"
	"github.com/kmassidik/payflow/internal/common/logger"
)

// Producer publishes JSON events to Kafka. The hash balancer routes messages
// with the same key to the same partition, which is what keeps events for one
// transfer in order.
type Producer struct {
	writer  *kafkago.Writer
	brokers []string
	logger  *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	writer := &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}

	return &Producer{
		writer:  writer,
		brokers: cfg.Brokers,
		logger:  log,
	}
}

// PublishEvent marshals the event and writes it to the topic with the given
// key. json.RawMessage payloads pass through unchanged.
func (p *Producer) PublishEvent(ctx context.Context, topic, key string, event interface{}) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafkago.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}

	p.logger.Debugf("Published event to %s (key=%s)", topic, key)
	return nil
}

// Ping verifies at least one broker is reachable.
func (p *Producer) Ping(ctx context.Context) error {
	var lastErr error
	for _, broker := range p.brokers {
		conn, err := kafkago.DialContext(ctx, "tcp", broker)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("no kafka broker reachable: %w", lastErr)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// MessageHandler processes one consumed message. Returning an error makes the
// consumer retry the same message; the offset is committed only after the
// handler succeeds, so handlers must be idempotent.
type MessageHandler func(ctx context.Context, key []byte, value []byte) error

// Consumer reads one topic within a consumer group.
type Consumer struct {
	reader     *kafkago.Reader
	topic      string
	logger     *logger.Logger
	retryDelay time.Duration
}

func NewConsumer(cfg config.KafkaConfig, topic string, log *logger.Logger) *Consumer {
	reader := kafkago.NewReader(kafkago.ReaderConfig{
		Brokers:        cfg.Brokers,
		GroupID:        cfg.GroupID,
		Topic:          topic,
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // synchronous commits
	})

	return &Consumer{
		reader:     reader,
		topic:      topic,
		logger:     log,
		retryDelay: time.Second,
	}
}

// Consume fetches messages until the context is cancelled. A failing handler
// is retried in place on the same message: offset commits are positional per
// partition, so committing a later message would implicitly commit the failed
// one and lose it. The consumer therefore never moves past a message until
// its handler succeeds.
func (c *Consumer) Consume(ctx context.Context, handler MessageHandler) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to fetch from %s: %w", c.topic, err)
		}

		if err := c.deliver(ctx, handler, msg.Key, msg.Value); err != nil {
			return nil // context ended mid-retry; offset stays uncommitted
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Errorf("Failed to commit offset for %s: %v", c.topic, err)
		}
	}
}

// deliver invokes the handler until it succeeds, pausing between attempts so
// a persistent failure does not spin hot. It returns an error only when the
// context ends first.
func (c *Consumer) deliver(ctx context.Context, handler MessageHandler, key, value []byte) error {
	for attempt := 1; ; attempt++ {
		err := handler(ctx, key, value)
		if err == nil {
			return nil
		}

		c.logger.Errorf("Handler failed for %s (key=%s, attempt=%d): %v", c.topic, string(key), attempt, err)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}

// UnmarshalEvent decodes a consumed message payload.
func UnmarshalEvent(value []byte, v interface{}) error {
	return json.Unmarshal(value, v)
}
