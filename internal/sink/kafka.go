package sink

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"github.com/segmentio/kafka-go"

	"github.com/sells-group/lead-enricher/internal/model"
)

// messageWriter is the subset of *kafka.Writer the sink uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink publishes one message per result. Messages are keyed by phone,
// falling back to name, so a lead's updates share a partition.
type KafkaSink struct {
	writer messageWriter
	topic  string
}

// NewKafkaSink creates a sink writing to topic on brokers.
func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			RequiredAcks: kafka.RequireAll,
			BatchTimeout: 100 * time.Millisecond,
		},
		topic: topic,
	}
}

// Name implements Sink.
func (k *KafkaSink) Name() string { return "kafka:" + k.topic }

// Write implements Sink.
func (k *KafkaSink) Write(ctx context.Context, runID string, batch *model.EnrichedBatch) error {
	if len(batch.Results) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(batch.Results))
	for _, r := range batch.Results {
		value, err := json.Marshal(r)
		if err != nil {
			return eris.Wrap(err, "sink: marshal result")
		}
		key := r.Phone
		if key == "" {
			key = r.Name
		}
		msgs = append(msgs, kafka.Message{
			Key:     []byte(key),
			Value:   value,
			Headers: []kafka.Header{{Key: "run_id", Value: []byte(runID)}},
		})
	}
	if err := k.writer.WriteMessages(ctx, msgs...); err != nil {
		return eris.Wrapf(err, "sink: publish to %s", k.topic)
	}
	return nil
}

// Close flushes and closes the writer.
func (k *KafkaSink) Close() error {
	if err := k.writer.Close(); err != nil {
		return eris.Wrap(err, "sink: close kafka writer")
	}
	return nil
}
