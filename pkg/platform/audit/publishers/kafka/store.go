// Package kafka streams audit events to a Kafka topic. It implements
// audit.Store so it can sit behind the async publisher.
package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"

	audit "cashdesk/pkg/platform/audit"
)

// Producer is the subset of *kgo.Client used to publish.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Store publishes each appended event as one record keyed by user id, so all
// events for a principal land on the same partition in order.
type Store struct {
	producer Producer
	topic    string
}

func New(producer Producer, topic string) *Store {
	return &Store{producer: producer, topic: topic}
}

// payload is the JSON structure published to Kafka.
type payload struct {
	ID                  string `json:"id"`
	Category            string `json:"category"`
	Timestamp           string `json:"timestamp"`
	UserID              string `json:"user_id,omitempty"`
	Action              string `json:"action"`
	Decision            string `json:"decision,omitempty"`
	Reason              string `json:"reason,omitempty"`
	AccountID           string `json:"account_id,omitempty"`
	TransactionID       string `json:"transaction_id,omitempty"`
	Channel             string `json:"channel,omitempty"`
	Amount              string `json:"amount,omitempty"`
	LocationID          string `json:"location_id,omitempty"`
	TellerID            string `json:"teller_id,omitempty"`
	DocumentFingerprint string `json:"document_fingerprint,omitempty"`
	RequestID           string `json:"request_id,omitempty"`
	ClientIP            string `json:"client_ip,omitempty"`
	DeviceClass         string `json:"device_class,omitempty"`
}

func toPayload(e audit.Event) payload {
	p := payload{
		ID:                  e.ID,
		Category:            string(e.Category),
		Timestamp:           e.Timestamp.UTC().Format(time.RFC3339Nano),
		Action:              e.Action,
		Decision:            e.Decision,
		Reason:              e.Reason,
		AccountID:           e.AccountID,
		TransactionID:       e.TransactionID,
		Channel:             e.Channel,
		Amount:              e.Amount,
		LocationID:          e.LocationID,
		TellerID:            e.TellerID,
		DocumentFingerprint: e.DocumentFingerprint,
		RequestID:           e.RequestID,
		ClientIP:            e.ClientIP,
		DeviceClass:         e.DeviceClass,
	}
	if !e.UserID.IsNil() {
		p.UserID = e.UserID.String()
	}
	return p
}

// Append produces the event synchronously and returns the broker error, if any.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	body, err := json.Marshal(toPayload(event))
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Value: body,
		Headers: []kgo.RecordHeader{
			{Key: "category", Value: []byte(event.Category)},
			{Key: "action", Value: []byte(event.Action)},
		},
	}
	if !event.UserID.IsNil() {
		record.Key = []byte(event.UserID.String())
	}
	if err := s.producer.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit event: %w", err)
	}
	return nil
}

// EnsureTopic creates the audit topic if it does not exist yet.
func EnsureTopic(ctx context.Context, client *kgo.Client, topic string, partitions int32, replication int16) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, partitions, replication, nil, topic)
	if err != nil {
		return fmt.Errorf("create audit topic: %w", err)
	}
	for _, t := range resp {
		if t.Err != nil && !errors.Is(t.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create audit topic %s: %w", t.Topic, t.Err)
		}
	}
	return nil
}
