// Package kafka publishes audit events to a Kafka topic with franz-go.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	audit "checkin/pkg/platform/audit"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const (
	headerCategory = "audit-category"
	headerAction   = "audit-action"
)

// Store is an append-only audit sink. Records are keyed by subject so every
// event for one token lands on the same partition in order.
type Store struct {
	client *kgo.Client
	topic  string
	logger *slog.Logger
}

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) { s.logger = logger }
}

func New(client *kgo.Client, topic string, opts ...Option) *Store {
	s := &Store{client: client, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewClient builds a producer client for brokers.
func NewClient(brokers []string, opts ...kgo.Opt) (*kgo.Client, error) {
	base := []kgo.Opt{
		kgo.SeedBrokers(brokers...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
		kgo.ProducerLinger(5 * time.Millisecond),
	}
	client, err := kgo.NewClient(append(base, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return client, nil
}

// EnsureTopic creates the audit topic if it does not exist.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	admin := kadm.NewClient(client)
	resp, err := admin.CreateTopic(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %s: %w", topic, err)
	}
	if resp.Err != nil && !errors.Is(resp.Err, kerr.TopicAlreadyExists) {
		return fmt.Errorf("create topic %s: %w", topic, resp.Err)
	}
	return nil
}

// Append produces the event synchronously.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	event = audit.Normalize(event, time.Now())
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	return s.Publish(ctx, event.Subject, string(event.Category), event.Action, payload)
}

// Publish produces a pre-encoded event. The relay uses it to forward outbox
// payloads unchanged.
func (s *Store) Publish(ctx context.Context, subject, category, action string, payload []byte) error {
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(subject),
		Value: payload,
		Headers: []kgo.RecordHeader{
			{Key: headerCategory, Value: []byte(category)},
			{Key: headerAction, Value: []byte(action)},
		},
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		s.logger.ErrorContext(ctx, "audit produce failed",
			"topic", s.topic,
			"action", action,
			"token_code", subject,
			"error", err,
		)
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
