package migration

import (
	"context"

	"github.com/google/uuid"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
)

// JobRepository defines the interface for migration job persistence
type JobRepository interface {
	// Create stores a new job
	Create(ctx context.Context, job *Job) error

	// GetByID retrieves a job by ID
	GetByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// List returns all jobs, newest first
	List(ctx context.Context) ([]*Job, error)

	// Update applies fn to the job under a row lock and persists the result
	// in the same transaction. An error from fn aborts the update.
	Update(ctx context.Context, id uuid.UUID, fn func(job *Job) error) (*Job, error)
}

// ArtifactStore holds uploaded inputs and stage bundles
type ArtifactStore interface {
	// Save writes an artifact unless an import has consumed it
	Save(ctx context.Context, jobID uuid.UUID, name string, data []byte) error

	// Replace writes an artifact unconditionally
	Replace(ctx context.Context, jobID uuid.UUID, name string, data []byte) error

	// Load reads an artifact, returning ErrArtifactNotFound when absent
	Load(ctx context.Context, jobID uuid.UUID, name string) ([]byte, error)

	// MarkConsumed flags an artifact as read by an import
	MarkConsumed(ctx context.Context, jobID uuid.UUID, name string) error
}

// InsertOptions controls a document insert
type InsertOptions struct {
	// SkipValidation skips reference checks (bulk mode)
	SkipValidation bool
}

// DocumentStore is the target system the import writes into
type DocumentStore interface {
	// Insert creates and, when submittable, submits a document in one
	// transaction. A uniqueness violation returns ledger.ErrDuplicateDocument.
	Insert(ctx context.Context, doc *ledger.Document, opts InsertOptions) error

	// SetField updates one top-level field of an existing document
	SetField(ctx context.Context, doctype, name, field string, value interface{}) error
}

// Dispatcher schedules a stage for background execution
type Dispatcher interface {
	Enqueue(ctx context.Context, job *Job, stage Stage) error
}

// Notifier publishes realtime progress. Delivery is best effort.
type Notifier interface {
	Publish(ctx context.Context, progress Progress) error
}

// CancelFlag is the out-of-band cancellation signal checked between chunks
type CancelFlag interface {
	Cancel(ctx context.Context, jobID uuid.UUID) error
	IsCancelled(ctx context.Context, jobID uuid.UUID) (bool, error)
	Clear(ctx context.Context, jobID uuid.UUID) error
}
