package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kislikjeka/tallymigrate/internal/ledger"
)

// Directory answers day-book master lookups from imported documents
type Directory struct {
	pool *pgxpool.Pool
}

// NewDirectory creates a document-backed directory
func NewDirectory(pool *pgxpool.Pool) *Directory {
	return &Directory{pool: pool}
}

// PartyKind reports whether name was imported as a supplier or a customer.
// Supplier wins when both exist.
func (d *Directory) PartyKind(ctx context.Context, name string) (ledger.PartyKind, bool, error) {
	query := `
		SELECT doctype FROM documents
		WHERE doctype IN ('Customer', 'Supplier') AND name = $1
		ORDER BY doctype DESC
		LIMIT 1
	`
	var doctype string
	if err := d.pool.QueryRow(ctx, query, name).Scan(&doctype); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up party %s: %w", name, err)
	}
	return ledger.PartyKind(doctype), true, nil
}

// StockUOM returns the stock unit of an imported item
func (d *Directory) StockUOM(ctx context.Context, itemCode string) (string, bool, error) {
	query := `SELECT COALESCE(data->>'stock_uom', '') FROM documents WHERE doctype = 'Item' AND name = $1`

	var uom string
	if err := d.pool.QueryRow(ctx, query, itemCode).Scan(&uom); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to look up item %s: %w", itemCode, err)
	}
	return uom, uom != "", nil
}
