package repository

import (
	"context"
	"fmt"

	"SessionPulse/internal/domain/models"
	pkgkafka "SessionPulse/pkg/kafka"
	applogger "SessionPulse/pkg/logger"
)

// KafkaPublisher implements repository.Publisher on top of a Kafka producer.
// Signals and breakouts share one topic, keyed by symbol so per-symbol
// ordering survives partitioning.
type KafkaPublisher struct {
	producer *pkgkafka.Producer
	topic    string
	l        *applogger.Logger
}

func NewKafkaPublisher(producer *pkgkafka.Producer, topic string, l *applogger.Logger) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic, l: l}
}

type envelope struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload"`
}

func (p *KafkaPublisher) PublishSignal(ctx context.Context, s *models.Signal) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(s.Symbol), envelope{Kind: "signal", Payload: s}); err != nil {
		return fmt.Errorf("publish signal %s: %w", s.ID, err)
	}
	p.l.Debug("signal published",
		applogger.String("topic", p.topic),
		applogger.String("signal", s.ID))
	return nil
}

func (p *KafkaPublisher) PublishBreakout(ctx context.Context, b *models.Breakout) error {
	if err := p.producer.Publish(ctx, p.topic, []byte(b.Symbol), envelope{Kind: "breakout", Payload: b}); err != nil {
		return fmt.Errorf("publish breakout %s: %w", b.ID, err)
	}
	p.l.Debug("breakout published",
		applogger.String("topic", p.topic),
		applogger.String("breakout", b.ID))
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}
