package migration

import (
	"time"

	"github.com/google/uuid"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
)

// State is the position of a job in the migration pipeline
type State string

const (
	StateNew               State = "NEW"
	StateMastersProcessing State = "MASTERS_PROCESSING"
	StateMastersProcessed  State = "MASTERS_PROCESSED"
	StateMastersImporting  State = "MASTERS_IMPORTING"
	StateMastersImported   State = "MASTERS_IMPORTED"
	StateDaybookProcessing State = "DAYBOOK_PROCESSING"
	StateDaybookProcessed  State = "DAYBOOK_PROCESSED"
	StateDaybookImporting  State = "DAYBOOK_IMPORTING"
	StateDaybookImported   State = "DAYBOOK_IMPORTED"
	StateFailed            State = "FAILED"
	StateNeedsResolution   State = "NEEDS_RESOLUTION"
)

// IsValid checks if the state is valid
func (s State) IsValid() bool {
	switch s {
	case StateNew, StateMastersProcessing, StateMastersProcessed, StateMastersImporting,
		StateMastersImported, StateDaybookProcessing, StateDaybookProcessed,
		StateDaybookImporting, StateDaybookImported, StateFailed, StateNeedsResolution:
		return true
	}
	return false
}

// IsRunning reports whether a stage is in progress in this state
func (s State) IsRunning() bool {
	_, ok := stageRunningIn(s)
	return ok
}

// Stage is one unit of pipeline work, executed as one background task
type Stage string

const (
	StageProcessMasters Stage = "process_masters"
	StageImportMasters  Stage = "import_masters"
	StageProcessDaybook Stage = "process_daybook"
	StageImportDaybook  Stage = "import_daybook"
)

// Stages lists the stages in pipeline order
var Stages = []Stage{StageProcessMasters, StageImportMasters, StageProcessDaybook, StageImportDaybook}

// IsValid checks if the stage is valid
func (s Stage) IsValid() bool {
	_, ok := stageStates[s]
	return ok
}

// IsImport reports whether the stage writes documents to the target
func (s Stage) IsImport() bool {
	return s == StageImportMasters || s == StageImportDaybook
}

// Artifact names the bundle the stage writes (processing) or reads (import)
func (s Stage) Artifact() string {
	switch s {
	case StageProcessMasters, StageImportMasters:
		return ArtifactMasters
	case StageProcessDaybook, StageImportDaybook:
		return ArtifactDaybook
	}
	return ""
}

// Artifact names
const (
	ArtifactMasters = "masters"
	ArtifactDaybook = "daybook"
	ArtifactInvalid = "daybook.invalid"
	ArtifactSkipped = "masters.skipped"
	remainingSuffix = ".remaining"
	inputPrefix     = "input."
)

// RemainingArtifact names the records an import attempt could not commit
func RemainingArtifact(name string) string {
	return name + remainingSuffix
}

// InputKind is one of the uploaded Tally exports
type InputKind string

const (
	InputMasters      InputKind = "masters"
	InputDaybook      InputKind = "daybook"
	InputTrialBalance InputKind = "trial_balance"
)

// IsValid checks if the input kind is valid
func (k InputKind) IsValid() bool {
	switch k {
	case InputMasters, InputDaybook, InputTrialBalance:
		return true
	}
	return false
}

// Artifact returns the artifact name the upload is stored under
func (k InputKind) Artifact() string {
	return inputPrefix + string(k)
}

// Job status texts
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusTimedOut  = "timed out"
)

// Cursor is the resumable position of an import stage
type Cursor struct {
	Stage   Stage  `json:"stage"`
	Attempt int    `json:"attempt"`
	Offset  int    `json:"offset"`
	LastKey string `json:"last_key,omitempty"`
}

// ErrorEntry is one quarantined record
type ErrorEntry struct {
	Stage     Stage         `json:"stage"`
	Attempt   int           `json:"attempt"`
	Key       string        `json:"key"`
	Record    ledger.Record `json:"record"`
	Error     string        `json:"error"`
	CreatedAt time.Time     `json:"created_at"`
}

// Job is one migration of one Tally company
type Job struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Settings        ledger.Settings `json:"settings" db:"settings"`
	State           State           `json:"state" db:"state"`
	FailedStage     Stage           `json:"failed_stage,omitempty" db:"failed_stage"`
	Status          string          `json:"status" db:"status"`
	Cursor          *Cursor         `json:"cursor,omitempty" db:"cursor"`
	OpeningImported bool            `json:"opening_imported" db:"opening_imported"`
	ErrorLog        []ErrorEntry    `json:"error_log" db:"error_log"`
	Version         int64           `json:"version" db:"version"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// StageErrors returns the error log entries of one stage
func (j *Job) StageErrors(stage Stage) []ErrorEntry {
	var out []ErrorEntry
	for _, e := range j.ErrorLog {
		if e.Stage == stage {
			out = append(out, e)
		}
	}
	return out
}

// clearStageErrors drops the entries of a stage that completed
func (j *Job) clearStageErrors(stage Stage) {
	kept := j.ErrorLog[:0]
	for _, e := range j.ErrorLog {
		if e.Stage != stage {
			kept = append(kept, e)
		}
	}
	j.ErrorLog = kept
}

// Progress is one realtime progress notification
type Progress struct {
	JobID   uuid.UUID `json:"job_id"`
	Stage   Stage     `json:"stage"`
	State   State     `json:"state"`
	Message string    `json:"message"`
	Step    int       `json:"step"`
	Total   int       `json:"total"`
}
