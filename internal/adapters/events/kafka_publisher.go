package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/contracts"
	"github.com/viralforge/mesh/services/integrations/M89-partner-engine/internal/ports"
)

const DefaultDLQTopic = "partner-engine.dlq"

// KafkaPublisher writes envelopes keyed by partition key so every event of
// one partner lands on the same partition.
type KafkaPublisher struct {
	writer       *kafka.Writer
	topicByEvent map[string]string
	dlqTopic     string
}

func NewKafkaPublisher(brokers []string, topicByEvent map[string]string, dlqTopic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if dlqTopic == "" {
		dlqTopic = DefaultDLQTopic
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			RequiredAcks:           kafka.RequireAll,
			Balancer:               &kafka.Hash{},
			AllowAutoTopicCreation: true,
		},
		topicByEvent: topicByEvent,
		dlqTopic:     dlqTopic,
	}, nil
}

func (p *KafkaPublisher) topicFor(eventType string) string {
	if mapped, ok := p.topicByEvent[eventType]; ok && mapped != "" {
		return mapped
	}
	return eventType
}

func (p *KafkaPublisher) publish(ctx context.Context, topic, key string, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: payload,
		Time:  time.Now().UTC(),
	})
}

func (p *KafkaPublisher) PublishDomain(ctx context.Context, event contracts.EventEnvelope) error {
	return p.publish(ctx, p.topicFor(event.EventType), event.PartitionKey, event)
}

func (p *KafkaPublisher) PublishAnalytics(ctx context.Context, event contracts.EventEnvelope) error {
	return p.publish(ctx, p.topicFor(event.EventType), event.PartitionKey, event)
}

func (p *KafkaPublisher) PublishDLQ(ctx context.Context, record contracts.DLQRecord) error {
	topic := record.DLQTopic
	if topic == "" {
		topic = p.dlqTopic
	}
	return p.publish(ctx, topic, record.OriginalEvent.PartitionKey, record)
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

var (
	_ ports.DomainPublisher    = (*KafkaPublisher)(nil)
	_ ports.AnalyticsPublisher = (*KafkaPublisher)(nil)
	_ ports.DLQPublisher       = (*KafkaPublisher)(nil)
)
