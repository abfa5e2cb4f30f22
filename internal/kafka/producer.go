package kafka

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// Producer relays outbox events to one topic.
type Producer struct {
	writer *kafka.Writer
}

func NewProducer(brokers []string, topic string) *Producer {
	return &Producer{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 50 * time.Millisecond,
		},
	}
}

// Publish writes one message. Messages with the same key land on the same
// partition, so events of one booking keep their order.
func (p *Producer) Publish(ctx context.Context, key, value []byte) error {
	const op = "kafka.producer.Publish"

	err := p.writer.WriteMessages(ctx, kafka.Message{
		Key:   key,
		Value: value,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (p *Producer) Close() error {
	const op = "kafka.producer.Close"

	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
