package learningstore

import (
	"context"
	"embed"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrations embed.FS

// PostgresStore records pruning events in a `pruned_skills` table, used
// when an operator wants queryable, durable pruning history shared across
// daemon instances instead of a per-process JSONL file.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore connects to dsn and applies any pending goose migrations.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("set goose dialect: %w", err)
	}
	if err := goose.Up(db.DB, "migrations"); err != nil {
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// RecordPruning inserts one row into pruned_skills.
func (s *PostgresStore) RecordPruning(ctx context.Context, skillID string, prunedAt time.Time, reason string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pruned_skills (skill_id, pruned_at, reason) VALUES ($1, $2, $3)`,
		skillID, prunedAt, reason,
	)
	if err != nil {
		return fmt.Errorf("insert pruned_skills row: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
