package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
)

// ArtifactRepository implements migration.ArtifactStore using PostgreSQL
type ArtifactRepository struct {
	pool *pgxpool.Pool
}

// NewArtifactRepository creates a new PostgreSQL artifact repository
func NewArtifactRepository(pool *pgxpool.Pool) *ArtifactRepository {
	return &ArtifactRepository{pool: pool}
}

// Save writes an artifact unless an import has already consumed it
func (r *ArtifactRepository) Save(ctx context.Context, jobID uuid.UUID, name string, data []byte) error {
	query := `
		INSERT INTO migration_artifacts (job_id, name, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, name) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()
		WHERE migration_artifacts.consumed = FALSE
	`
	tag, err := r.pool.Exec(ctx, query, jobID, name, data)
	if err != nil {
		return fmt.Errorf("failed to save artifact %s: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", migration.ErrArtifactConsumed, name)
	}
	return nil
}

// Replace writes an artifact unconditionally, keeping its consumed flag
func (r *ArtifactRepository) Replace(ctx context.Context, jobID uuid.UUID, name string, data []byte) error {
	query := `
		INSERT INTO migration_artifacts (job_id, name, data)
		VALUES ($1, $2, $3)
		ON CONFLICT (job_id, name) DO UPDATE
		SET data = EXCLUDED.data, updated_at = NOW()
	`
	if _, err := r.pool.Exec(ctx, query, jobID, name, data); err != nil {
		return fmt.Errorf("failed to replace artifact %s: %w", name, err)
	}
	return nil
}

// Load reads an artifact
func (r *ArtifactRepository) Load(ctx context.Context, jobID uuid.UUID, name string) ([]byte, error) {
	query := `SELECT data FROM migration_artifacts WHERE job_id = $1 AND name = $2`

	var data []byte
	if err := r.pool.QueryRow(ctx, query, jobID, name).Scan(&data); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", migration.ErrArtifactNotFound, name)
		}
		return nil, fmt.Errorf("failed to load artifact %s: %w", name, err)
	}
	return data, nil
}

// MarkConsumed flags an artifact as read by an import
func (r *ArtifactRepository) MarkConsumed(ctx context.Context, jobID uuid.UUID, name string) error {
	query := `
		UPDATE migration_artifacts
		SET consumed = TRUE, updated_at = NOW()
		WHERE job_id = $1 AND name = $2
	`
	tag, err := r.pool.Exec(ctx, query, jobID, name)
	if err != nil {
		return fmt.Errorf("failed to mark artifact %s consumed: %w", name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", migration.ErrArtifactNotFound, name)
	}
	return nil
}
