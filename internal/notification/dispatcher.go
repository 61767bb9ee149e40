package notification

import (
	"context"

	"go.uber.org/zap"

	"github.com/kc-reserve/hut-api/pkg/jobs"
)

// Dispatcher accepts messages for background delivery. Dispatch must not
// block on transport work and never reports delivery failures to the caller.
type Dispatcher interface {
	Dispatch(ctx context.Context, msg Message)
}

// Publisher forwards messages to an external broker.
type Publisher interface {
	Publish(ctx context.Context, messageType string, v interface{}) error
}

// QueueDispatcher hands messages to an in-process worker pool.
type QueueDispatcher struct {
	queue  *jobs.Queue
	logger *zap.Logger
}

// Handler adapts a delivery function to a queue handler.
func Handler(deliver func(context.Context, Message) error) jobs.Handler {
	return func(ctx context.Context, job jobs.Job) error {
		msg, ok := job.Payload.(Message)
		if !ok {
			return nil
		}
		return deliver(ctx, msg)
	}
}

// PublishHandler returns a queue handler that forwards messages to a broker.
func PublishHandler(pub Publisher) jobs.Handler {
	return Handler(func(ctx context.Context, msg Message) error {
		return pub.Publish(ctx, string(msg.Kind), msg)
	})
}

// NewQueueDispatcher wraps a started queue.
func NewQueueDispatcher(queue *jobs.Queue, logger *zap.Logger) *QueueDispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &QueueDispatcher{queue: queue, logger: logger}
}

// Dispatch implements Dispatcher.
func (d *QueueDispatcher) Dispatch(ctx context.Context, msg Message) {
	job := jobs.Job{ID: msg.ReservationID, Type: string(msg.Kind), Payload: msg}
	if err := d.queue.Enqueue(job); err != nil {
		d.logger.Error("notification dropped",
			zap.String("kind", string(msg.Kind)),
			zap.String("reservation_id", msg.ReservationID),
			zap.Error(err),
		)
	}
}
