package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.uber.org/zap"

	"github.com/spec-kit/visit-service/internal/config"
)

// recordProducer is the subset of *kgo.Client the publisher needs.
type recordProducer interface {
	Produce(ctx context.Context, r *kgo.Record, promise func(*kgo.Record, error))
	Flush(ctx context.Context) error
	Close()
}

// flushTimeout bounds how long Close waits for buffered records.
const flushTimeout = 10 * time.Second

// KafkaPublisher forwards appointment events to a Kafka topic, keyed by appointment id.
type KafkaPublisher struct {
	producer recordProducer
	topic    string
	logger   *zap.Logger
}

// NewKafkaPublisher connects a franz-go client to the configured brokers.
func NewKafkaPublisher(cfg config.KafkaConfig, logger *zap.Logger) (*KafkaPublisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.ClientID("visit-scheduling-service"),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return newKafkaPublisher(client, cfg.Topic, logger), nil
}

func newKafkaPublisher(producer recordProducer, topic string, logger *zap.Logger) *KafkaPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KafkaPublisher{producer: producer, topic: topic, logger: logger}
}

// RegisterHandlers subscribes the publisher to every appointment event.
func (p *KafkaPublisher) RegisterHandlers(dispatcher Dispatcher) {
	if dispatcher == nil {
		return
	}
	for _, eventType := range AllEventTypes {
		dispatcher.Subscribe(eventType, p.Handle)
	}
}

// Handle buffers one record for the event and returns without waiting for the broker.
// The record outlives the request context; delivery failures are logged by the promise.
func (p *KafkaPublisher) Handle(ctx context.Context, event Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event %s: %w", event.ID, err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(event.AppointmentID),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_type", Value: []byte(event.Type)},
			{Key: "event_id", Value: []byte(event.ID)},
		},
	}
	p.producer.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		fields := []zap.Field{
			zap.String("topic", r.Topic),
			zap.String("event_id", event.ID),
			zap.String("event_type", string(event.Type)),
			zap.String("appointment_id", event.AppointmentID),
		}
		if err != nil {
			p.logger.Error("kafka produce failed", append(fields, zap.Error(err))...)
			return
		}
		p.logger.Debug("event forwarded to kafka", append(fields, zap.Int64("offset", r.Offset))...)
	})
	return nil
}

// Close waits for buffered records, then closes the underlying client.
func (p *KafkaPublisher) Close() {
	if p == nil || p.producer == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), flushTimeout)
	defer cancel()
	if err := p.producer.Flush(ctx); err != nil {
		p.logger.Warn("kafka flush incomplete", zap.Error(err))
	}
	p.producer.Close()
}
