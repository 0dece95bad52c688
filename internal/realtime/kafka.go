package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/noah-isme/loan-query-api/internal/models"
)

// KafkaPublisher forwards events to a Kafka topic on a best-effort basis.
// Without brokers or a topic every method is a no-op.
type KafkaPublisher struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaPublisher builds the publisher.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(brokers) == 0 || topic == "" {
		return &KafkaPublisher{logger: logger}
	}
	p := &KafkaPublisher{logger: logger}
	p.writer = &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				p.logger.Warn("kafka event delivery failed", zap.Int("messages", len(messages)), zap.Error(err))
			}
		},
	}
	return p
}

// Enabled reports whether events are forwarded.
func (p *KafkaPublisher) Enabled() bool {
	return p != nil && p.writer != nil
}

// Publish writes the event keyed by query id.
func (p *KafkaPublisher) Publish(ctx context.Context, event models.Event) {
	if !p.Enabled() {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("kafka: marshal event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	msg := kafka.Message{
		Key:     []byte(event.QueryID),
		Value:   body,
		Headers: []kafka.Header{{Key: "event-type", Value: []byte(event.Type)}},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Warn("kafka: write event", zap.String("type", event.Type), zap.Error(err))
	}
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	if !p.Enabled() {
		return nil
	}
	return p.writer.Close()
}
