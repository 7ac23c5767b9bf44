package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hibiken/asynq"

	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

// Enqueuer is the part of asynq.Client the dispatcher uses
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Dispatcher implements migration.Dispatcher on asynq
type Dispatcher struct {
	client       Enqueuer
	stageTimeout time.Duration
	logger       *logger.Logger
}

// NewDispatcher creates a new asynq dispatcher
func NewDispatcher(client Enqueuer, stageTimeout time.Duration, log *logger.Logger) *Dispatcher {
	if stageTimeout <= 0 {
		stageTimeout = migration.DefaultStageTimeout
	}
	return &Dispatcher{
		client:       client,
		stageTimeout: stageTimeout,
		logger:       log.WithField("component", "dispatcher"),
	}
}

// Enqueue schedules the stage. A task already queued for the same job
// version is treated as success.
func (d *Dispatcher) Enqueue(ctx context.Context, job *migration.Job, stage migration.Stage) error {
	task, err := NewStageTask(job, stage, d.stageTimeout)
	if err != nil {
		return err
	}

	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		if errors.Is(err, asynq.ErrTaskIDConflict) || errors.Is(err, asynq.ErrDuplicateTask) {
			d.logger.Warn("stage already queued", "job_id", job.ID, "stage", stage)
			return nil
		}
		return fmt.Errorf("failed to enqueue %s: %w", stage, err)
	}

	d.logger.Info("stage enqueued", "job_id", job.ID, "stage", stage, "task_id", info.ID, "queue", info.Queue)
	return nil
}
