package events

import (
	"context"

	"slotify/pkg/kafka"
	otelx "slotify/pkg/otel"
)

type messageProducer interface {
	Publish(ctx context.Context, msg kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to the slot events topic. The current trace
// context travels in the message headers.
type KafkaPublisher struct {
	producer messageProducer
	source   string
}

func NewKafkaPublisher(producer *kafka.Producer, source string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, source: source}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafka.NewMessage().
		WithKey(event.Key()).
		WithEventType(string(event.Type)).
		WithSchemaVersion(SchemaVersion).
		WithSource(p.source).
		WithCorrelationID(otelx.TraceID(ctx)).
		WithValue(event).
		Build()
	if err != nil {
		return err
	}

	otelx.InjectHeaders(ctx, msg.Headers)
	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
