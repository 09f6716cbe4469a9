package events

import (
	"context"
	"time"

	"go.uber.org/zap"

	"storefront/internal/repository"
)

const relayBatchSize = 100

// OutboxRelay переносит события из outbox в брокер. Событие помечается
// отправленным только после успешной публикации: доставка не реже одного раза.
type OutboxRelay struct {
	repo      repository.OutboxRepository
	publisher Publisher
	log       *zap.Logger
	interval  time.Duration
}

func NewOutboxRelay(repo repository.OutboxRepository, publisher Publisher, interval time.Duration, log *zap.Logger) *OutboxRelay {
	if interval <= 0 {
		interval = time.Second
	}
	return &OutboxRelay{repo: repo, publisher: publisher, log: log, interval: interval}
}

// Run опрашивает outbox до отмены ctx
func (r *OutboxRelay) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		r.Flush(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Flush отправляет накопившиеся события по порядку и возвращает число отправленных.
// На первой ошибке проход прерывается, чтобы события одного заказа не обгоняли друг друга.
func (r *OutboxRelay) Flush(ctx context.Context) int {
	pending, err := r.repo.Unpublished(ctx, relayBatchSize)
	if err != nil {
		r.log.Error("failed to fetch outbox events", zap.Error(err))
		return 0
	}

	sent := 0
	for _, e := range pending {
		if err := r.publisher.Publish(ctx, e); err != nil {
			r.log.Warn("failed to publish outbox event",
				zap.Int64("event_id", e.ID), zap.String("event_type", e.EventType), zap.Error(err))
			return sent
		}
		if err := r.repo.MarkPublished(ctx, e.ID); err != nil {
			r.log.Error("failed to mark outbox event as published", zap.Int64("event_id", e.ID), zap.Error(err))
			return sent
		}
		sent++
	}
	return sent
}
