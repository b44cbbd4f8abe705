package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/siberialabel/telegram-support-bot/internal/observability"
	"github.com/siberialabel/telegram-support-bot/internal/queue"
	"github.com/siberialabel/telegram-support-bot/internal/transport"
)

const dequeueTimeout = 2 * time.Second

// DeliveryWorker drains the directive queue and hands each directive to the
// transport's deliverer. Failures are logged and counted, never retried; the
// transport collaborator owns retry policy.
type DeliveryWorker struct {
	queue     *queue.DirectiveQueue
	deliverer transport.Deliverer
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// NewDeliveryWorker constructs the worker.
func NewDeliveryWorker(q *queue.DirectiveQueue, deliverer transport.Deliverer, metrics *observability.Metrics, logger *zap.Logger) *DeliveryWorker {
	return &DeliveryWorker{queue: q, deliverer: deliverer, metrics: metrics, logger: logger}
}

// Run blocks draining the queue until the context is cancelled.
func (w *DeliveryWorker) Run(ctx context.Context) {
	w.logger.Info("delivery worker started")
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("delivery worker stopped")
			return
		default:
		}

		d, err := w.queue.Dequeue(ctx, dequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("delivery worker stopped")
				return
			}
			w.logger.Error("dequeue directive", zap.Error(err))
			time.Sleep(time.Second)
			continue
		}
		if d == nil {
			continue
		}

		if err := w.deliverer.Deliver(ctx, *d); err != nil {
			w.metrics.DeliveryAttempt(false)
			w.logger.Error("deliver directive",
				zap.String("directive_id", d.ID),
				zap.String("kind", string(d.Kind)),
				zap.String("recipient_id", d.RecipientID),
				zap.Error(err))
			continue
		}
		w.metrics.DeliveryAttempt(true)
		w.logger.Debug("directive delivered",
			zap.String("directive_id", d.ID),
			zap.String("kind", string(d.Kind)))
	}
}
