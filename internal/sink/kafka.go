package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publishes each record as JSON keyed by operation id.
type Kafka struct {
	w      MessageWriter
	topic  string
	logger *slog.Logger
}

// NewKafkaWriter builds a synchronous writer that waits for all replicas.
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchSize:    1,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: kafka.RequireAll,
	}
}

func NewKafka(w MessageWriter, topic string, logger *slog.Logger) *Kafka {
	if logger == nil {
		logger = slog.Default()
	}
	return &Kafka{w: w, topic: topic, logger: logger}
}

func (k *Kafka) Append(ctx context.Context, rec OperationRecord) error {
	value, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	msg := kafka.Message{
		Key:   []byte(rec.OperationID),
		Value: value,
		Time:  rec.Timestamp,
		Headers: []kafka.Header{
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		k.logger.Error("sink.kafka.write_failed", "topic", k.topic, "operation_id", rec.OperationID, "error", err)
		return fmt.Errorf("kafka write %s: %w", k.topic, err)
	}
	return nil
}

func (k *Kafka) Close() error {
	return k.w.Close()
}
