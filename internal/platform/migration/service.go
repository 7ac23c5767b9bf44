package migration

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
)

// Service handles job lifecycle requests from the API
type Service struct {
	repo       JobRepository
	artifacts  ArtifactStore
	dispatcher Dispatcher
	cancel     CancelFlag
	logger     *slog.Logger
}

// NewService creates a new migration service
func NewService(repo JobRepository, artifacts ArtifactStore, dispatcher Dispatcher, cancel CancelFlag, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		artifacts:  artifacts,
		dispatcher: dispatcher,
		cancel:     cancel,
		logger:     logger.With("service", "migration"),
	}
}

// Create registers a new job with its settings
func (s *Service) Create(ctx context.Context, settings ledger.Settings) (*Job, error) {
	settings.ApplyDefaults()
	if err := settings.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	job := &Job{
		ID:        uuid.New(),
		Settings:  settings,
		State:     StateNew,
		Status:    "created",
		ErrorLog:  []ErrorEntry{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to create job: %w", err)
	}

	s.logger.Info("migration job created", "job_id", job.ID, "company", settings.Company)
	return job, nil
}

// Get retrieves a job
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*Job, error) {
	return s.repo.GetByID(ctx, id)
}

// List returns all jobs
func (s *Service) List(ctx context.Context) ([]*Job, error) {
	return s.repo.List(ctx)
}

// Errors returns the job error log in creation order
func (s *Service) Errors(ctx context.Context, id uuid.UUID) ([]ErrorEntry, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return job.ErrorLog, nil
}

// Upload stores one Tally export for the job. Inputs can be replaced until
// the stage that reads them is running.
func (s *Service) Upload(ctx context.Context, id uuid.UUID, kind InputKind, data []byte) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidInput, kind)
	}
	if len(data) == 0 {
		return ErrEmptyUpload
	}

	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if job.State.IsRunning() {
		return fmt.Errorf("%w: job is %s", ErrStateConflict, job.State)
	}

	if err := s.artifacts.Replace(ctx, id, kind.Artifact(), data); err != nil {
		return fmt.Errorf("failed to store %s: %w", kind, err)
	}

	s.logger.Info("input uploaded", "job_id", id, "kind", kind, "bytes", len(data))
	return nil
}

// StartStage moves the job into the stage's running state and enqueues it.
// The state change comes first so a second request loses the race with
// ErrInvalidTransition instead of dispatching twice.
func (s *Service) StartStage(ctx context.Context, id uuid.UUID, stage Stage) (*Job, error) {
	if !stage.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStage, stage)
	}

	job, err := s.repo.Update(ctx, id, func(job *Job) error {
		return job.start(stage)
	})
	if err != nil {
		return nil, err
	}

	if err := s.dispatcher.Enqueue(ctx, job, stage); err != nil {
		s.logger.Error("failed to enqueue stage", "job_id", id, "stage", stage, "error", err)
		failed, ferr := s.repo.Update(ctx, id, func(j *Job) error {
			if j.State != stage.RunningState() {
				// An inline dispatcher already settled the stage
				return nil
			}
			return j.fail(stage, "enqueue failed: "+err.Error())
		})
		if ferr != nil {
			s.logger.Error("failed to mark job failed", "job_id", id, "error", ferr)
			return nil, fmt.Errorf("failed to enqueue stage: %w", err)
		}
		return failed, fmt.Errorf("failed to enqueue stage: %w", err)
	}

	s.logger.Info("stage queued", "job_id", id, "stage", stage, "version", job.Version)
	return job, nil
}

// Cancel asks the running stage to stop at the next chunk boundary
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) error {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if !job.State.IsRunning() {
		return fmt.Errorf("%w: job is %s", ErrNotRunning, job.State)
	}
	if err := s.cancel.Cancel(ctx, id); err != nil {
		return fmt.Errorf("failed to set cancel flag: %w", err)
	}
	s.logger.Info("cancellation requested", "job_id", id, "state", job.State)
	return nil
}

// Bundle reads the records of a stage bundle for export
func (s *Service) Bundle(ctx context.Context, id uuid.UUID, name string) ([]ledger.Record, *Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	data, err := s.artifacts.Load(ctx, id, name)
	if err != nil {
		return nil, nil, err
	}
	records, err := ledger.UnmarshalRecords(data)
	if err != nil {
		return nil, nil, err
	}
	return records, job, nil
}

// start moves the job into the running state of stage and prepares the
// import cursor. A failed import resumes its attempt, a resolved one
// starts the next attempt over the remaining records.
func (j *Job) start(stage Stage) error {
	if !j.CanStart(stage) {
		return &TransitionError{From: j.State, To: stage.RunningState()}
	}

	resume := j.State == StateFailed && j.Cursor != nil && j.Cursor.Stage == stage
	if err := j.transition(stage.RunningState()); err != nil {
		return err
	}
	j.FailedStage = ""
	j.Status = StatusQueued

	if !stage.IsImport() || resume {
		return nil
	}
	attempt := 1
	if j.Cursor != nil && j.Cursor.Stage == stage {
		attempt = j.Cursor.Attempt + 1
	}
	j.Cursor = &Cursor{Stage: stage, Attempt: attempt}
	return nil
}

// fail moves a running job to FAILED with a status text
func (j *Job) fail(stage Stage, status string) error {
	if err := j.transition(StateFailed); err != nil {
		return err
	}
	j.FailedStage = stage
	j.Status = status
	return nil
}
