package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
)

const jobColumns = `id, settings, state, failed_stage, status, cursor, opening_imported, error_log, version, created_at, updated_at`

// JobRepository implements migration.JobRepository using PostgreSQL
type JobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository creates a new PostgreSQL job repository
func NewJobRepository(pool *pgxpool.Pool) *JobRepository {
	return &JobRepository{pool: pool}
}

// Create stores a new job
func (r *JobRepository) Create(ctx context.Context, job *migration.Job) error {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	now := time.Now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now

	settings, cursor, errorLog, err := encodeJob(job)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO migration_jobs (` + jobColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = r.pool.Exec(ctx, query,
		job.ID,
		settings,
		string(job.State),
		string(job.FailedStage),
		job.Status,
		cursor,
		job.OpeningImported,
		errorLog,
		job.Version,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create migration job: %w", err)
	}
	return nil
}

// GetByID retrieves a job by ID
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*migration.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM migration_jobs WHERE id = $1`

	job, err := scanJob(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, migration.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get migration job: %w", err)
	}
	return job, nil
}

// List returns all jobs, newest first
func (r *JobRepository) List(ctx context.Context) ([]*migration.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM migration_jobs ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list migration jobs: %w", err)
	}
	defer rows.Close()

	jobs := []*migration.Job{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan migration job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration jobs: %w", err)
	}
	return jobs, nil
}

// Update locks the job row, applies fn and writes the result back with a
// bumped version. An error from fn rolls the transaction back untouched.
func (r *JobRepository) Update(ctx context.Context, id uuid.UUID, fn func(job *migration.Job) error) (*migration.Job, error) {
	var updated *migration.Job
	err := inTx(ctx, r.pool, func(tx pgx.Tx) error {
		query := `SELECT ` + jobColumns + ` FROM migration_jobs WHERE id = $1 FOR UPDATE`
		job, err := scanJob(tx.QueryRow(ctx, query, id))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return migration.ErrJobNotFound
			}
			return fmt.Errorf("failed to lock migration job: %w", err)
		}

		version := job.Version
		if err := fn(job); err != nil {
			return err
		}
		job.ID = id
		job.Version = version + 1
		job.UpdatedAt = time.Now().UTC()

		settings, cursor, errorLog, err := encodeJob(job)
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE migration_jobs
			SET settings = $3, state = $4, failed_stage = $5, status = $6, cursor = $7,
				opening_imported = $8, error_log = $9, version = $10, updated_at = $11
			WHERE id = $1 AND version = $2
		`,
			id,
			version,
			settings,
			string(job.State),
			string(job.FailedStage),
			job.Status,
			cursor,
			job.OpeningImported,
			errorLog,
			job.Version,
			job.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update migration job: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return migration.ErrStateConflict
		}

		updated = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func encodeJob(job *migration.Job) (settings, cursor, errorLog []byte, err error) {
	settings, err = json.Marshal(job.Settings)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal settings: %w", err)
	}
	if job.Cursor != nil {
		cursor, err = json.Marshal(job.Cursor)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("failed to marshal cursor: %w", err)
		}
	}
	entries := job.ErrorLog
	if entries == nil {
		entries = []migration.ErrorEntry{}
	}
	errorLog, err = json.Marshal(entries)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal error log: %w", err)
	}
	return settings, cursor, errorLog, nil
}

func scanJob(row pgx.Row) (*migration.Job, error) {
	var (
		job                         migration.Job
		state, failedStage          string
		settings, cursor, errorLogs []byte
	)
	err := row.Scan(
		&job.ID,
		&settings,
		&state,
		&failedStage,
		&job.Status,
		&cursor,
		&job.OpeningImported,
		&errorLogs,
		&job.Version,
		&job.CreatedAt,
		&job.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	job.State = migration.State(state)
	job.FailedStage = migration.Stage(failedStage)
	if err := json.Unmarshal(settings, &job.Settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal settings: %w", err)
	}
	if len(cursor) > 0 {
		job.Cursor = &migration.Cursor{}
		if err := json.Unmarshal(cursor, job.Cursor); err != nil {
			return nil, fmt.Errorf("failed to unmarshal cursor: %w", err)
		}
	}
	if err := json.Unmarshal(errorLogs, &job.ErrorLog); err != nil {
		return nil, fmt.Errorf("failed to unmarshal error log: %w", err)
	}
	return &job, nil
}
