package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"ms-voting/internal/config"
	"ms-voting/internal/logger"
)

// Producer writes voting events to kafka. The writer is asynchronous so a
// slow broker never holds up a vote; delivery failures are logged.
type Producer struct {
	writer *kafka.Writer
	topics config.TopicConfig
	logger *logger.Logger
}

func NewProducer(cfg config.KafkaConfig, log *logger.Logger) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Balancer:     &kafka.Hash{},
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				for _, m := range messages {
					log.Error("KAFKA", fmt.Sprintf("Failed to deliver to %s (key=%s): %v", m.Topic, string(m.Key), err))
				}
			}
		},
	}
	return &Producer{writer: writer, topics: cfg.Topics, logger: log}
}

func buildMessage(topic, key string, payload interface{}) (kafka.Message, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("failed to encode %s event: %w", topic, err)
	}
	return kafka.Message{
		Topic: topic,
		Key:   []byte(key),
		Value: value,
		Time:  time.Now(),
	}, nil
}

func (p *Producer) publish(ctx context.Context, topic, key string, payload interface{}) error {
	msg, err := buildMessage(topic, key, payload)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, err)
	}
	p.logger.LogKafka("PUBLISH", topic, fmt.Sprintf("key=%s", key))
	return nil
}

// PublishVoteCast is keyed by club so a club's events stay ordered.
func (p *Producer) PublishVoteCast(ctx context.Context, ev VoteCastEvent) error {
	ev.Type = EventVoteCast
	return p.publish(ctx, p.topics.VoteEvents, strconv.FormatInt(ev.ClubID, 10), ev)
}

func (p *Producer) PublishAdminEvent(ctx context.Context, ev AdminEvent) error {
	return p.publish(ctx, p.topics.AdminEvents, ev.Type, ev)
}

func (p *Producer) PublishIntegrityAlert(ctx context.Context, alert IntegrityAlert) error {
	alert.Type = EventIntegrityDetected
	return p.publish(ctx, p.topics.IntegrityAlerts, alert.Operation, alert)
}

func (p *Producer) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event. Used when kafka is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishVoteCast(context.Context, VoteCastEvent) error { return nil }
func (NoopPublisher) PublishAdminEvent(context.Context, AdminEvent) error { return nil }
func (NoopPublisher) PublishIntegrityAlert(context.Context, IntegrityAlert) error { return nil }
