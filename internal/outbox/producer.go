package outbox

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
)

const producerClientID = "sports-scheduling-outbox"

// KafkaProducer publishes scheduling events through one writer shared by every topic. Records
// are keyed by activity id, so the hash balancer keeps each activity's events in order.
type KafkaProducer struct {
	writer *kafka.Writer
}

// NewKafkaProducer creates a KafkaProducer for the given brokers.
func NewKafkaProducer(brokers []string) *KafkaProducer {
	return &KafkaProducer{writer: newEventWriter(brokers)}
}

func newEventWriter(brokers []string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Snappy,
		BatchTimeout: 50 * time.Millisecond,
		Transport:    &kafka.Transport{ClientID: producerClientID},
	}
}

// WriteMessages stamps each record with the topic and writes them in one call.
func (p *KafkaProducer) WriteMessages(ctx context.Context, topic string, msgs ...kafka.Message) error {
	return p.writer.WriteMessages(ctx, withTopic(topic, msgs)...)
}

func withTopic(topic string, msgs []kafka.Message) []kafka.Message {
	out := make([]kafka.Message, len(msgs))
	for i, msg := range msgs {
		msg.Topic = topic
		out[i] = msg
	}
	return out
}

// Close flushes pending records and releases the writer.
func (p *KafkaProducer) Close() error {
	return p.writer.Close()
}
