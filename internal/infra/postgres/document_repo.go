package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
	"github.com/kislikjeka/tallymigrate/internal/platform/migration"
)

// Document status values
const (
	docStatusDraft     = 0
	docStatusSubmitted = 1
)

// DocumentRepository implements migration.DocumentStore using PostgreSQL.
// Documents are stored as JSONB keyed by (doctype, name).
type DocumentRepository struct {
	pool *pgxpool.Pool
}

// NewDocumentRepository creates a new PostgreSQL document repository
func NewDocumentRepository(pool *pgxpool.Pool) *DocumentRepository {
	return &DocumentRepository{pool: pool}
}

// Insert creates the document and, when submittable, submits it in the same
// transaction. Links are checked unless opts.SkipValidation is set.
func (r *DocumentRepository) Insert(ctx context.Context, doc *ledger.Document, opts migration.InsertOptions) error {
	data, err := doc.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal %s %s: %w", doc.Doctype, doc.Name, err)
	}

	return inTx(ctx, r.pool, func(tx pgx.Tx) error {
		if !opts.SkipValidation {
			if err := checkLinks(ctx, tx, doc.Links); err != nil {
				return err
			}
		}

		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO documents (id, doctype, name, company, data, docstatus)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, id, doc.Doctype, doc.Name, doc.Company, data, docStatusDraft)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s %s", ledger.ErrDuplicateDocument, doc.Doctype, doc.Name)
			}
			return fmt.Errorf("failed to insert %s %s: %w", doc.Doctype, doc.Name, err)
		}

		if doc.Submittable {
			_, err := tx.Exec(ctx, `
				UPDATE documents
				SET docstatus = $2, data = jsonb_set(data, '{docstatus}', to_jsonb($2::int), true), updated_at = NOW()
				WHERE id = $1
			`, id, docStatusSubmitted)
			if err != nil {
				return fmt.Errorf("failed to submit %s %s: %w", doc.Doctype, doc.Name, err)
			}
		}
		return nil
	})
}

// SetField updates one top-level field of an existing document
func (r *DocumentRepository) SetField(ctx context.Context, doctype, name, field string, value interface{}) error {
	encoded, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", field, err)
	}

	query := `
		UPDATE documents
		SET data = jsonb_set(data, $3::text[], $4::jsonb, true), updated_at = NOW()
		WHERE doctype = $1 AND name = $2
	`
	tag, err := r.pool.Exec(ctx, query, doctype, name, []string{field}, encoded)
	if err != nil {
		return fmt.Errorf("failed to set %s on %s %s: %w", field, doctype, name, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s %s", ledger.ErrDocumentNotFound, doctype, name)
	}
	return nil
}

// Get returns the stored body and docstatus of a document
func (r *DocumentRepository) Get(ctx context.Context, doctype, name string) (map[string]interface{}, int, error) {
	query := `SELECT data, docstatus FROM documents WHERE doctype = $1 AND name = $2`

	var (
		data      []byte
		docStatus int
	)
	if err := r.pool.QueryRow(ctx, query, doctype, name).Scan(&data, &docStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, 0, fmt.Errorf("%w: %s %s", ledger.ErrDocumentNotFound, doctype, name)
		}
		return nil, 0, fmt.Errorf("failed to get %s %s: %w", doctype, name, err)
	}

	body := make(map[string]interface{})
	if err := json.Unmarshal(data, &body); err != nil {
		return nil, 0, fmt.Errorf("failed to unmarshal %s %s: %w", doctype, name, err)
	}
	return body, docStatus, nil
}

// Count returns the number of documents of a doctype
func (r *DocumentRepository) Count(ctx context.Context, doctype string) (int, error) {
	var n int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM documents WHERE doctype = $1`, doctype).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s documents: %w", doctype, err)
	}
	return n, nil
}

func checkLinks(ctx context.Context, tx pgx.Tx, links []ledger.Link) error {
	for _, l := range links {
		var exists bool
		err := tx.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM documents WHERE doctype = $1 AND name = $2)`,
			l.Doctype, l.Name,
		).Scan(&exists)
		if err != nil {
			return fmt.Errorf("failed to check %s %s: %w", l.Doctype, l.Name, err)
		}
		if !exists {
			return fmt.Errorf("%w: %s %s", ledger.ErrMissingReference, l.Doctype, l.Name)
		}
	}
	return nil
}
