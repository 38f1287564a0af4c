// Package events publishes certificate lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/and161185/eventcert/internal/model"
)

// TopicIssued is the default topic for certificate.issued events.
const TopicIssued = "eventcert.certificate.issued"

// Publisher announces newly issued certificates.
type Publisher interface {
	Issued(ctx context.Context, ev model.IssuedEvent) error
	Close()
}

// Nop discards events.
type Nop struct{}

func (Nop) Issued(context.Context, model.IssuedEvent) error { return nil }
func (Nop) Close()                                          {}

type producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

// Kafka publishes JSON events keyed by registration id.
type Kafka struct {
	cl    producer
	topic string
}

// NewKafka connects a producer to brokers. A positive deliveryTimeout caps how long a
// record may be retried before it fails.
func NewKafka(brokers []string, topic string, deliveryTimeout time.Duration) (*Kafka, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka: no brokers")
	}
	if topic == "" {
		topic = TopicIssued
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.ClientID("eventcert"),
		kgo.DefaultProduceTopic(topic),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	}
	if deliveryTimeout > 0 {
		opts = append(opts, kgo.RecordDeliveryTimeout(deliveryTimeout))
	}
	cl, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("kafka: %w", err)
	}
	return &Kafka{cl: cl, topic: topic}, nil
}

// Issued produces one record and waits for the broker acknowledgement.
func (k *Kafka) Issued(ctx context.Context, ev model.IssuedEvent) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	rec := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(ev.RegistrationID.String()),
		Value: b,
		Headers: []kgo.RecordHeader{
			{Key: "type", Value: []byte("certificate.issued")},
		},
	}
	return k.cl.ProduceSync(ctx, rec).FirstErr()
}

// Close flushes and closes the client.
func (k *Kafka) Close() { k.cl.Close() }
