// Package testdb runs a throwaway PostgreSQL for the repository
// integration tests.
package testdb

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Tables owned by the service, children first
var tables = []string{"documents", "migration_artifacts", "migration_jobs"}

// Postgres is a migrated database in a container
type Postgres struct {
	container *postgres.PostgresContainer
	Pool      *pgxpool.Pool
}

// Start launches the container with the schema from migrations/ applied
func Start(ctx context.Context) (*Postgres, error) {
	scripts, err := schemaScripts()
	if err != nil {
		return nil, err
	}

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("tallymigrate_test"),
		postgres.WithUsername("tallymigrate"),
		postgres.WithPassword("tallymigrate"),
		postgres.WithInitScripts(scripts...),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(2*time.Minute),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start postgres: %w", err)
	}

	db := &Postgres{container: container}
	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err == nil {
		db.Pool, err = pgxpool.New(ctx, dsn)
	}
	if err == nil {
		err = db.Pool.Ping(ctx)
	}
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to connect to postgres: %w", err), db.Close(ctx))
	}
	return db, nil
}

// Truncate empties every table so each test starts from a clean schema
func (db *Postgres) Truncate(ctx context.Context) error {
	stmt := "TRUNCATE TABLE "
	for i, t := range tables {
		if i > 0 {
			stmt += ", "
		}
		stmt += t
	}
	if _, err := db.Pool.Exec(ctx, stmt+" CASCADE"); err != nil {
		return fmt.Errorf("failed to truncate tables: %w", err)
	}
	return nil
}

func (db *Postgres) Close(ctx context.Context) error {
	if db.Pool != nil {
		db.Pool.Close()
	}
	return db.container.Terminate(ctx)
}

func schemaScripts() ([]string, error) {
	_, file, _, ok := runtime.Caller(0)
	if !ok {
		return nil, errors.New("cannot locate testdb source")
	}
	dir := filepath.Join(filepath.Dir(file), "..", "..", "migrations")

	scripts, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return nil, err
	}
	if len(scripts) == 0 {
		return nil, fmt.Errorf("no schema migrations in %s", dir)
	}
	sort.Strings(scripts)
	return scripts, nil
}
