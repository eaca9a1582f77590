package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
)

// publishTimeout bounds a single Publish so an unreachable broker cannot
// hold up the request that emitted the event.
const publishTimeout = 2 * time.Second

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer writes JSON lifecycle events to a single topic.
type Producer struct {
	writer  messageWriter
	topic   string
	timeout time.Duration
	logger  *logrus.Logger
}

func NewProducer(broker, topic string, logger *logrus.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
		// One event per call; do not wait for a batch to fill.
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 5 * time.Second,
	}
	return &Producer{writer: writer, topic: topic, timeout: publishTimeout, logger: logger}
}

// Publish marshals event and writes it keyed by key, so events for one
// record land on one partition.
func (p *Producer) Publish(ctx context.Context, key string, event any) error {
	message, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: message,
	}
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"Function": "Publish",
		"Topic":    p.topic,
		"Key":      key,
	}).Debug("Event delivered")
	return nil
}

func (p *Producer) Close() error {
	return p.writer.Close()
}
