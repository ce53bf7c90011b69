package producer

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"voice-journal/backend/internal/telemetry"
)

const writeTimeout = 5 * time.Second

// messageWriter is the subset of *kafka.Writer used by KafkaProducer.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaProducer implements Producer using segmentio/kafka-go.
type KafkaProducer struct {
	writer messageWriter
	topic  string
	logger *zap.Logger
}

// NewKafkaProducer creates a Kafka producer that writes auth events to the given topic.
// Returns nil when brokers or topic are empty so callers can treat Kafka as optional.
func NewKafkaProducer(brokers []string, topic string, logger *zap.Logger) *KafkaProducer {
	if len(brokers) == 0 || topic == "" {
		return nil
	}
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
	}
	return newKafkaProducer(writer, topic, logger)
}

func newKafkaProducer(w messageWriter, topic string, logger *zap.Logger) *KafkaProducer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaProducer{writer: w, topic: topic, logger: logger}
}

// Emit serializes the event as JSON and writes it to the topic, keyed by user ID so one
// user's events stay ordered within a partition.
func (p *KafkaProducer) Emit(ctx context.Context, event *telemetry.Event) error {
	if p == nil || p.writer == nil || event == nil {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	msg := kafka.Message{Value: payload, Time: event.CreatedAt}
	if event.UserID != "" {
		msg.Key = []byte(event.UserID)
	}
	if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
		p.logger.Warn("telemetry: kafka emit failed", zap.String("topic", p.topic), zap.Error(err))
		return err
	}
	return nil
}

// Close closes the Kafka writer.
func (p *KafkaProducer) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
