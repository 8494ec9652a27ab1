// Package kafka streams audit records to a Kafka topic for downstream SIEM
// and compliance consumers. The durable source of truth stays in Postgres;
// this sink is fan-out only.
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

	audit "taxgate/pkg/platform/audit"
)

// Sink implements audit.Appender by producing one message per record, keyed
// by principal ID so per-principal ordering survives partitioning.
type Sink struct {
	client *kgo.Client
	topic  string
}

// New connects to the brokers and ensures the topic exists. Topic creation is
// idempotent; an existing topic is left untouched.
func New(ctx context.Context, brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}

	if err := ensureTopic(ctx, client, topic); err != nil {
		client.Close()
		return nil, err
	}

	return &Sink{client: client, topic: topic}, nil
}

func ensureTopic(ctx context.Context, client *kgo.Client, topic string) error {
	adm := kadm.NewClient(client)
	resp, err := adm.CreateTopics(ctx, -1, -1, nil, topic)
	if err != nil {
		return fmt.Errorf("create topic %q: %w", topic, err)
	}
	for _, res := range resp {
		if res.Err != nil && !errors.Is(res.Err, kerr.TopicAlreadyExists) {
			return fmt.Errorf("create topic %q: %w", topic, res.Err)
		}
	}
	return nil
}

// message is the wire shape published to the topic.
type message struct {
	ID           string `json:"id"`
	Timestamp    string `json:"timestamp"`
	PrincipalID  string `json:"principal_id,omitempty"`
	Role         string `json:"role,omitempty"`
	Action       string `json:"action"`
	ResourceType string `json:"resource_type"`
	ResourceID   string `json:"resource_id,omitempty"`
	OrgID        string `json:"org_id,omitempty"`
	Outcome      string `json:"outcome"`
	Reason       string `json:"reason,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	ClientIP     string `json:"client_ip,omitempty"`
	UserAgent    string `json:"user_agent,omitempty"`
}

// Append produces the record synchronously so the recorder's fallback path
// sees delivery failures.
func (s *Sink) Append(ctx context.Context, rec audit.Record) error {
	msg := message{
		ID:           rec.ID.String(),
		Timestamp:    rec.Timestamp.Format(time.RFC3339Nano),
		Role:         rec.Role,
		Action:       rec.Action,
		ResourceType: rec.ResourceType,
		ResourceID:   rec.ResourceID,
		Outcome:      string(rec.Outcome),
		Reason:       rec.Reason,
		RequestID:    rec.RequestID,
		ClientIP:     rec.ClientIP,
		UserAgent:    rec.UserAgent,
	}
	if !rec.PrincipalID.IsNil() {
		msg.PrincipalID = rec.PrincipalID.String()
	}
	if !rec.OrgID.IsNil() {
		msg.OrgID = rec.OrgID.String()
	}

	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal audit message: %w", err)
	}

	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(msg.PrincipalID),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("produce audit message: %w", err)
	}
	return nil
}

// Close flushes buffered messages and releases the client.
func (s *Sink) Close() {
	s.client.Close()
}
