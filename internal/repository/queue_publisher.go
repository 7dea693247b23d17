package repository

import (
	"context"
	"fmt"

	"SessionPulse/internal/domain/models"
	"SessionPulse/pkg/queue"
)

// QueuePublisher implements repository.Publisher on the Redis job queue.
// Fallback for deployments without Kafka: downstream workers register queue
// jobs for the "signal" and "breakout" message types.
type QueuePublisher struct {
	q queue.QueueService
}

func NewQueuePublisher(q queue.QueueService) *QueuePublisher {
	return &QueuePublisher{q: q}
}

func (p *QueuePublisher) PublishSignal(ctx context.Context, s *models.Signal) error {
	if err := p.q.PublishMessage(ctx, "signal", s); err != nil {
		return fmt.Errorf("queue signal %s: %w", s.ID, err)
	}
	return nil
}

func (p *QueuePublisher) PublishBreakout(ctx context.Context, b *models.Breakout) error {
	if err := p.q.PublishMessage(ctx, "breakout", b); err != nil {
		return fmt.Errorf("queue breakout %s: %w", b.ID, err)
	}
	return nil
}

func (p *QueuePublisher) Close() error { return nil }
