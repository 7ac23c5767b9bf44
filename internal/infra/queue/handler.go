package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
	"github.com/kislikjeka/tallymigrate/pkg/logger"
)

// StageRunner executes one stage of a job
type StageRunner interface {
	Run(ctx context.Context, id uuid.UUID, stage migration.Stage) error
}

// StageHandler runs stage tasks on the worker
type StageHandler struct {
	runner StageRunner
	logger *logger.Logger
}

// NewStageHandler creates a new stage task handler
func NewStageHandler(runner StageRunner, log *logger.Logger) *StageHandler {
	return &StageHandler{
		runner: runner,
		logger: log.WithField("component", "stage_handler"),
	}
}

// Handle processes a run_stage task. Failures are already recorded on the
// job, so no error is ever retried.
func (h *StageHandler) Handle(ctx context.Context, t *asynq.Task) error {
	payload, err := ParseStagePayload(t.Payload())
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	ctx = logger.WithJob(ctx, payload.JobID.String(), string(payload.Stage))
	log := h.logger.WithContext(ctx)

	if err := h.runner.Run(ctx, payload.JobID, payload.Stage); err != nil {
		if errors.Is(err, migration.ErrStateConflict) || errors.Is(err, migration.ErrJobNotFound) {
			log.Warn("stage task dropped", "error", err)
		}
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}
	return nil
}

// RegisterHandlers registers the migration task handlers
func RegisterHandlers(mux *asynq.ServeMux, stages *StageHandler) {
	mux.HandleFunc(TypeRunStage, stages.Handle)
}
