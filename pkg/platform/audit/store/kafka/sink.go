// Package kafka publishes audit events to a Kafka topic.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "persona/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client the sink needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Sink implements audit.Sink. Records are keyed by user key so a user's
// events stay ordered within a partition.
type Sink struct {
	producer Producer
	topic    string
}

func NewSink(producer Producer, topic string) *Sink {
	return &Sink{producer: producer, topic: topic}
}

type payload struct {
	ID         string    `json:"id"`
	Category   string    `json:"category"`
	Timestamp  time.Time `json:"timestamp"`
	UserKey    string    `json:"userKey,omitempty"`
	Action     string    `json:"action"`
	ProviderID string    `json:"providerId,omitempty"`
	Namespace  string    `json:"namespace,omitempty"`
	Outcome    string    `json:"outcome,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	TxHash     string    `json:"txHash,omitempty"`
	Replayed   bool      `json:"replayed,omitempty"`
	RequestID  string    `json:"requestId,omitempty"`
	ClientIP   string    `json:"clientIp,omitempty"`
	UserAgent  string    `json:"userAgent,omitempty"`
}

func (s *Sink) Append(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(payload{
		ID:         event.ID,
		Category:   string(event.Category),
		Timestamp:  event.Timestamp.UTC(),
		UserKey:    event.UserKey,
		Action:     event.Action,
		ProviderID: event.ProviderID,
		Namespace:  event.Namespace,
		Outcome:    event.Outcome,
		Reason:     event.Reason,
		TxHash:     event.TxHash,
		Replayed:   event.Replayed,
		RequestID:  event.RequestID,
		ClientIP:   event.ClientIP,
		UserAgent:  event.UserAgent,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(event.UserKey),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "action", Value: []byte(event.Action)},
			{Key: "category", Value: []byte(event.Category)},
		},
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}
