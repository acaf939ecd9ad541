package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaEmitter produces events asynchronously to a Kafka topic, keyed by target id.
type KafkaEmitter struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

// KafkaOption configures a KafkaEmitter.
type KafkaOption func(*KafkaEmitter)

// WithKafkaLogger sets the logger used for delivery failures.
func WithKafkaLogger(logger *slog.Logger) KafkaOption {
	return func(k *KafkaEmitter) {
		k.logger = logger
	}
}

// NewKafkaEmitter wraps a franz-go client.
func NewKafkaEmitter(client *kgo.Client, topic string, opts ...KafkaOption) *KafkaEmitter {
	k := &KafkaEmitter{client: client, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

// Emit enqueues the event and returns once it is buffered. Delivery failures are
// logged from the produce callback. The buffered record outlives ctx: callers
// bound Emit with a per-call timeout, and kgo fails records whose context is
// done before delivery.
func (k *KafkaEmitter) Emit(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode telemetry event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.Target.ID),
		Value: payload,
	}
	k.client.Produce(context.WithoutCancel(ctx), record, func(r *kgo.Record, err error) {
		if err != nil {
			k.logger.Error("telemetry delivery failed",
				"event_id", event.ID,
				"target_id", event.Target.ID,
				"topic", r.Topic,
				"error", err,
			)
		}
	})
	return nil
}

// Flush waits for buffered events to be delivered.
func (k *KafkaEmitter) Flush(ctx context.Context) error {
	return k.client.Flush(ctx)
}
