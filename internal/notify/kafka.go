package notify

import (
	"context"
	"encoding/json"
	"fmt"

	ck "github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/segmentio/kafka-go"
)

// KafkaNotifier publishes messages keyed by RunID with the pure-Go client.
type KafkaNotifier struct {
	writer kafkaMessageWriter
}

// kafkaMessageWriter abstracts kafka.Writer for testability.
type kafkaMessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}}
}

// NewKafkaNotifierWith is only for tests to inject a fake writer.
func NewKafkaNotifierWith(w kafkaMessageWriter) *KafkaNotifier {
	return &KafkaNotifier{writer: w}
}

func (k *KafkaNotifier) Notify(ctx context.Context, msg Message) error {
	b, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:     []byte(msg.RunID),
		Value:   b,
		Headers: []kafka.Header{{Key: "kind", Value: []byte(msg.Kind)}},
	})
}

// Close releases the underlying kafka.Writer, if any.
func (k *KafkaNotifier) Close() error {
	if c, ok := k.writer.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// ConfluentNotifier publishes through an idempotent librdkafka producer and
// waits for the delivery report of each message.
type ConfluentNotifier struct {
	producer ckProducer
	topic    string
}

type ckProducer interface {
	Produce(msg *ck.Message, deliveryChan chan ck.Event) error
	Close()
}

func NewConfluentNotifier(bootstrap, topic string) (*ConfluentNotifier, error) {
	p, err := ck.NewProducer(&ck.ConfigMap{
		"bootstrap.servers":  bootstrap,
		"enable.idempotence": true,
		"acks":               "all",
	})
	if err != nil {
		return nil, fmt.Errorf("producer: %w", err)
	}
	return &ConfluentNotifier{producer: p, topic: topic}, nil
}

// NewConfluentNotifierWith is only for tests to inject a fake producer.
func NewConfluentNotifierWith(p ckProducer, topic string) *ConfluentNotifier {
	return &ConfluentNotifier{producer: p, topic: topic}
}

func (c *ConfluentNotifier) Notify(ctx context.Context, msg Message) error {
	b, err := json.Marshal(&msg)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	delivery := make(chan ck.Event, 1)
	err = c.producer.Produce(&ck.Message{
		TopicPartition: ck.TopicPartition{Topic: &c.topic, Partition: ck.PartitionAny},
		Key:            []byte(msg.RunID),
		Value:          b,
		Headers:        []ck.Header{{Key: "kind", Value: []byte(msg.Kind)}},
	}, delivery)
	if err != nil {
		return fmt.Errorf("produce: %w", err)
	}
	select {
	case ev := <-delivery:
		m, ok := ev.(*ck.Message)
		if !ok {
			return fmt.Errorf("unexpected delivery event %v", ev)
		}
		if m.TopicPartition.Error != nil {
			return fmt.Errorf("delivery: %w", m.TopicPartition.Error)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *ConfluentNotifier) Close() { c.producer.Close() }
