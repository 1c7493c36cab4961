package reminder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fieldserve/booking-api/pkg/metrics"
)

// Scheduler books and revokes delayed reminder jobs. Reminder delivery is
// best effort: callers must not fail a booking operation on a scheduler
// error.
type Scheduler interface {
	// Schedule enqueues a reminder to fire at the given time and returns
	// the job id for later cancellation.
	Schedule(ctx context.Context, payload TaskPayload, at time.Time) (string, error)
	// Cancel revokes a previously scheduled reminder. Cancelling a job
	// that already ran or was already removed is not an error.
	Cancel(ctx context.Context, jobID string) error
}

// taskDeleter is the slice of asynq.Inspector that Cancel needs.
type taskDeleter interface {
	DeleteTask(queue, id string) error
}

type asynqScheduler struct {
	client    *asynq.Client
	inspector taskDeleter
	metrics   *metrics.Metrics
}

// NewAsynqScheduler builds a Scheduler backed by an asynq Redis queue.
func NewAsynqScheduler(redisOpt asynq.RedisClientOpt, m *metrics.Metrics) Scheduler {
	return &asynqScheduler{
		client:    asynq.NewClient(redisOpt),
		inspector: asynq.NewInspector(redisOpt),
		metrics:   m,
	}
}

func (s *asynqScheduler) Schedule(ctx context.Context, payload TaskPayload, at time.Time) (string, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal reminder payload: %w", err)
	}

	task := asynq.NewTask(TypeBookingReminder, body)
	info, err := s.client.EnqueueContext(ctx, task,
		asynq.ProcessAt(at),
		asynq.Queue(Queue),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return "", fmt.Errorf("failed to schedule reminder: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RemindersScheduled.Inc()
	}
	return info.ID, nil
}

func (s *asynqScheduler) Cancel(ctx context.Context, jobID string) error {
	err := s.inspector.DeleteTask(Queue, jobID)
	if errors.Is(err, asynq.ErrTaskNotFound) {
		// Already fired or already removed; nothing to count.
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to cancel reminder: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RemindersCancelled.Inc()
	}
	return nil
}
