package migration

import (
	"errors"
	"fmt"
)

var (
	// Job errors
	ErrJobNotFound       = errors.New("migration job not found")
	ErrInvalidTransition = errors.New("illegal state transition")
	ErrStateConflict     = errors.New("job state changed concurrently")
	ErrInvalidStage      = errors.New("invalid stage")
	ErrInvalidInput      = errors.New("invalid input kind")
	ErrNotRunning        = errors.New("job has no running stage")

	// Artifact errors
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrArtifactConsumed = errors.New("artifact already consumed by an import")
	ErrEmptyUpload      = errors.New("uploaded file is empty")

	// Stage errors
	ErrCancelled       = errors.New("stage cancelled")
	ErrStageTimeout    = errors.New("stage timed out")
	ErrOpeningFailed   = errors.New("opening balance import failed")
	ErrPrerequisite    = errors.New("day book prerequisite failed")
	ErrNothingToImport = errors.New("artifact holds no records")
)

// FatalPipelineError aborts a stage. The job moves to FAILED for Stage.
type FatalPipelineError struct {
	Stage Stage
	Err   error
}

func (e *FatalPipelineError) Error() string {
	return fmt.Sprintf("stage %s failed: %v", e.Stage, e.Err)
}

func (e *FatalPipelineError) Unwrap() error { return e.Err }

func fatal(stage Stage, err error) error {
	var fe *FatalPipelineError
	if errors.As(err, &fe) {
		return err
	}
	return &FatalPipelineError{Stage: stage, Err: err}
}

// RecordError is a single record failing to import. It is quarantined in
// the job error log and never aborts the chunk.
type RecordError struct {
	Key string
	Err error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("record %q: %v", e.Key, e.Err)
}

func (e *RecordError) Unwrap() error { return e.Err }
