package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// enqueuer is the subset of *asynq.Client the scheduler uses.
type enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// ReleaseScheduler implements ports.ReleaseScheduler on asynq.
type ReleaseScheduler struct {
	client   enqueuer
	maxRetry int
	log      zerolog.Logger
}

// NewReleaseScheduler creates a scheduler enqueuing through client.
func NewReleaseScheduler(client *asynq.Client, log zerolog.Logger) *ReleaseScheduler {
	return newReleaseScheduler(client, log)
}

func newReleaseScheduler(client enqueuer, log zerolog.Logger) *ReleaseScheduler {
	return &ReleaseScheduler{client: client, maxRetry: 10, log: log}
}

// ScheduleRelease enqueues the booking's release task to run at at. A task
// already scheduled for the booking is left as is.
func (s *ReleaseScheduler) ScheduleRelease(ctx context.Context, bookingID uuid.UUID, at time.Time) error {
	task, err := NewReleaseSettlementTask(bookingID)
	if err != nil {
		return fmt.Errorf("build release task: %w", err)
	}

	info, err := s.client.EnqueueContext(ctx, task,
		asynq.TaskID(releaseTaskID(bookingID)),
		asynq.ProcessAt(at),
		asynq.Queue(QueueSettlement),
		asynq.MaxRetry(s.maxRetry),
	)
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		s.log.Debug().Str("booking_id", bookingID.String()).Msg("release already scheduled")
		return nil
	}
	if err != nil {
		return fmt.Errorf("enqueue release task: %w", err)
	}

	s.log.Info().
		Str("booking_id", bookingID.String()).
		Str("task_id", info.ID).
		Time("process_at", at).
		Msg("release scheduled")
	return nil
}
