package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
)

// Task types
const (
	TypeRunStage = "migration:run_stage"
)

// QueueLong is the queue stage tasks run on
const QueueLong = "long"

// shutdownGrace lets the runner record a timeout before asynq kills the task
const shutdownGrace = time.Minute

// StagePayload is the body of a run_stage task
type StagePayload struct {
	JobID uuid.UUID       `json:"job_id"`
	Stage migration.Stage `json:"stage"`
}

// NewStageTask builds the task for one stage run. The task ID includes the
// job version, so enqueueing the same transition twice is rejected.
func NewStageTask(job *migration.Job, stage migration.Stage, stageTimeout time.Duration) (*asynq.Task, error) {
	payload, err := json.Marshal(StagePayload{JobID: job.ID, Stage: stage})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stage payload: %w", err)
	}

	return asynq.NewTask(TypeRunStage, payload,
		asynq.Queue(QueueLong),
		asynq.MaxRetry(0),
		asynq.Timeout(stageTimeout+shutdownGrace),
		asynq.TaskID(TaskID(job, stage)),
	), nil
}

// TaskID is the deduplication ID of a stage task
func TaskID(job *migration.Job, stage migration.Stage) string {
	return fmt.Sprintf("%s:%s:%d", job.ID, stage, job.Version)
}

// ParseStagePayload decodes and validates a run_stage payload
func ParseStagePayload(data []byte) (StagePayload, error) {
	var p StagePayload
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to unmarshal stage payload: %w", err)
	}
	if p.JobID == uuid.Nil {
		return p, fmt.Errorf("%w: missing job id", migration.ErrInvalidInput)
	}
	if !p.Stage.IsValid() {
		return p, fmt.Errorf("%w: %q", migration.ErrInvalidStage, p.Stage)
	}
	return p, nil
}
