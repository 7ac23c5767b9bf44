package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/daybook"
	"github.com/kislikjeka/tallymigrate/internal/platform/masters"
	"github.com/kislikjeka/tallymigrate/internal/platform/tallyxml"
)

// DefaultStageTimeout bounds one stage invocation
const DefaultStageTimeout = time.Hour

// RunnerConfig holds configuration for stage execution
type RunnerConfig struct {
	// StageTimeout is the deadline of one stage invocation
	StageTimeout time.Duration
}

// Runner executes stages. It is called by the queue worker and by the CLI.
type Runner struct {
	repo      JobRepository
	artifacts ArtifactStore
	docs      DocumentStore
	dir       daybook.Directory
	notifier  Notifier
	cancel    CancelFlag
	registry  *ledger.Registry
	config    RunnerConfig
	logger    *slog.Logger
}

// NewRunner creates a stage runner. dir resolves parties and stock units
// while the day book is processed.
func NewRunner(
	repo JobRepository,
	artifacts ArtifactStore,
	docs DocumentStore,
	dir daybook.Directory,
	notifier Notifier,
	cancel CancelFlag,
	config RunnerConfig,
	logger *slog.Logger,
) *Runner {
	if config.StageTimeout <= 0 {
		config.StageTimeout = DefaultStageTimeout
	}
	return &Runner{
		repo:      repo,
		artifacts: artifacts,
		docs:      docs,
		dir:       dir,
		notifier:  notifier,
		cancel:    cancel,
		registry:  ledger.DefaultRegistry(),
		config:    config,
		logger:    logger.With("service", "migration-runner"),
	}
}

// Run executes one stage of a job that was moved into the stage's running
// state. A re-delivered task resumes from the persisted cursor.
func (r *Runner) Run(ctx context.Context, id uuid.UUID, stage Stage) error {
	if !stage.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}

	job, err := r.repo.Update(ctx, id, func(j *Job) error {
		if j.State != stage.RunningState() {
			return fmt.Errorf("%w: job is %s, %s needs %s", ErrStateConflict, j.State, stage, stage.RunningState())
		}
		j.Status = StatusRunning
		return nil
	})
	if err != nil {
		return err
	}

	log := r.logger.With("job_id", id, "stage", stage)
	log.Info("stage started", "attempt", attemptOf(job))
	started := time.Now()

	stageCtx, cancel := context.WithTimeout(ctx, r.config.StageTimeout)
	defer cancel()

	err = r.execute(stageCtx, job, stage)
	if err == nil {
		log.Info("stage finished", "duration_ms", time.Since(started).Milliseconds())
		return nil
	}
	if errors.Is(err, ErrStateConflict) {
		log.Warn("stage lost its job state", "error", err)
		return err
	}

	status := err.Error()
	switch {
	case errors.Is(err, ErrCancelled):
		status = StatusCancelled
	case errors.Is(stageCtx.Err(), context.DeadlineExceeded):
		status = StatusTimedOut
		err = fatal(stage, fmt.Errorf("%w after %s", ErrStageTimeout, r.config.StageTimeout))
	}

	// The stage context may be gone; the failure must still be recorded
	persistCtx := context.WithoutCancel(ctx)
	if _, uerr := r.repo.Update(persistCtx, id, func(j *Job) error {
		return j.fail(stage, status)
	}); uerr != nil {
		log.Error("failed to mark job failed", "error", uerr)
	}
	if cerr := r.cancel.Clear(persistCtx, id); cerr != nil {
		log.Warn("failed to clear cancel flag", "error", cerr)
	}
	r.publish(persistCtx, job, stage, StateFailed, status, -1, 1)

	log.Error("stage failed", "status", status, "error", err, "duration_ms", time.Since(started).Milliseconds())
	return err
}

func (r *Runner) execute(ctx context.Context, job *Job, stage Stage) error {
	switch stage {
	case StageProcessMasters:
		return r.processMasters(ctx, job)
	case StageProcessDaybook:
		return r.processDaybook(ctx, job)
	case StageImportMasters, StageImportDaybook:
		return r.importStage(ctx, job, stage)
	}
	return fmt.Errorf("%w: %q", ErrInvalidStage, stage)
}

func (r *Runner) processMasters(ctx context.Context, job *Job) error {
	stage := StageProcessMasters

	root, err := r.loadInput(ctx, job.ID, InputMasters, tallyxml.Load)
	if err != nil {
		return fatal(stage, err)
	}

	settings := job.Settings
	bundle, err := masters.NewProcessor(r.logger).Process(root, &settings, r.progressFunc(ctx, job, stage))
	if err != nil {
		return fatal(stage, err)
	}

	records := bundle.Records()
	if err := r.saveBundle(ctx, job.ID, ArtifactMasters, records); err != nil {
		return fatal(stage, err)
	}

	skipped, err := json.Marshal(bundle.Skipped)
	if err != nil {
		return fatal(stage, err)
	}
	if err := r.artifacts.Replace(ctx, job.ID, ArtifactSkipped, skipped); err != nil {
		return fatal(stage, fmt.Errorf("failed to store skipped accounts: %w", err))
	}

	return r.complete(ctx, job, stage, func(j *Job) {
		j.Settings = settings
		j.Status = fmt.Sprintf("%d records processed, %d orphaned, %d duplicate accounts",
			len(records), len(bundle.Skipped.Orphans), len(bundle.Skipped.Duplicates))
	})
}

func (r *Runner) processDaybook(ctx context.Context, job *Job) error {
	stage := StageProcessDaybook

	dayBook, err := r.loadInput(ctx, job.ID, InputDaybook, tallyxml.Load)
	if err != nil {
		return fatal(stage, err)
	}
	trialBalance, err := r.loadInput(ctx, job.ID, InputTrialBalance, tallyxml.LoadReport)
	if err != nil {
		return fatal(stage, err)
	}

	// Masters were imported after earlier lookups may have been cached
	if f, ok := r.dir.(interface{ Flush() }); ok {
		f.Flush()
	}

	result, err := daybook.NewProcessor(r.dir, r.logger).Process(ctx, dayBook, trialBalance, job.Settings, r.progressFunc(ctx, job, stage))
	if err != nil {
		return fatal(stage, err)
	}

	records := result.Records()
	if err := r.saveBundle(ctx, job.ID, ArtifactDaybook, records); err != nil {
		return fatal(stage, err)
	}

	invalid, err := json.Marshal(result.Invalid)
	if err != nil {
		return fatal(stage, err)
	}
	if err := r.artifacts.Replace(ctx, job.ID, ArtifactInvalid, invalid); err != nil {
		return fatal(stage, fmt.Errorf("failed to store invalid vouchers: %w", err))
	}

	return r.complete(ctx, job, stage, func(j *Job) {
		j.Status = fmt.Sprintf("%d records processed, %d invalid, %d cancelled",
			len(records), len(result.Invalid), result.Cancelled)
	})
}

func (r *Runner) loadInput(ctx context.Context, id uuid.UUID, kind InputKind, load func([]byte) (*tallyxml.Node, error)) (*tallyxml.Node, error) {
	data, err := r.artifacts.Load(ctx, id, kind.Artifact())
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", kind, err)
	}
	root, err := load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", kind, err)
	}
	return root, nil
}

func (r *Runner) saveBundle(ctx context.Context, id uuid.UUID, name string, records []ledger.Record) error {
	data, err := ledger.MarshalRecords(records)
	if err != nil {
		return err
	}
	if err := r.artifacts.Save(ctx, id, name, data); err != nil {
		return fmt.Errorf("failed to save %s: %w", name, err)
	}
	return nil
}

// complete moves the job to the stage's done state
func (r *Runner) complete(ctx context.Context, job *Job, stage Stage, fn func(j *Job)) error {
	updated, err := r.repo.Update(ctx, job.ID, func(j *Job) error {
		if err := j.transition(stage.DoneState()); err != nil {
			return fmt.Errorf("%w: %v", ErrStateConflict, err)
		}
		j.Status = StatusCompleted
		if fn != nil {
			fn(j)
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.publish(ctx, updated, stage, updated.State, updated.Status, 1, 1)
	return nil
}

func (r *Runner) progressFunc(ctx context.Context, job *Job, stage Stage) ledger.ProgressFunc {
	return func(message string, step, total int) {
		r.publish(ctx, job, stage, job.State, message, step, total)
	}
}

// publish is fire and forget: delivery failures are logged only
func (r *Runner) publish(ctx context.Context, job *Job, stage Stage, state State, message string, step, total int) {
	if r.notifier == nil {
		return
	}
	err := r.notifier.Publish(ctx, Progress{
		JobID:   job.ID,
		Stage:   stage,
		State:   state,
		Message: message,
		Step:    step,
		Total:   total,
	})
	if err != nil {
		r.logger.Warn("failed to publish progress", "job_id", job.ID, "stage", stage, "error", err)
	}
}

func attemptOf(job *Job) int {
	if job.Cursor == nil {
		return 0
	}
	return job.Cursor.Attempt
}

// InlineDispatcher runs stages synchronously in the calling process
type InlineDispatcher struct {
	Runner *Runner
}

// Enqueue runs the stage immediately
func (d InlineDispatcher) Enqueue(ctx context.Context, job *Job, stage Stage) error {
	return d.Runner.Run(ctx, job.ID, stage)
}
