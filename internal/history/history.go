// Package history persists an audit trail of render attempts in Postgres.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"docgen-service/internal/common/logger"
)

// Entry is one completed (or failed) render attempt.
type Entry struct {
	CorrelationID string
	TemplateID    string
	Mode          string
	OK            bool
	ErrorCode     string
	Missing       []string
	Duration      time.Duration
	CreatedAt     time.Time
}

// Store records render attempts. A nil *PostgresStore is usable and
// records nothing, so callers can skip the enabled checks.
type Store interface {
	Insert(ctx context.Context, entry *Entry) error
	Recent(ctx context.Context, limit int) ([]*Entry, error)
	Close() error
}

type PostgresStore struct {
	db     *sql.DB
	logger logger.Logger
}

const createTableSQL = `
CREATE TABLE IF NOT EXISTS render_history (
	id             BIGSERIAL PRIMARY KEY,
	correlation_id TEXT NOT NULL,
	template_id    TEXT NOT NULL,
	mode           TEXT NOT NULL,
	ok             BOOLEAN NOT NULL,
	error_code     TEXT NOT NULL DEFAULT '',
	missing        TEXT[] NOT NULL DEFAULT '{}',
	duration_ms    BIGINT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// NewPostgresStore opens the connection and ensures the history table
// exists.
func NewPostgresStore(dsn string, log logger.Logger) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening history database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging history database: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTableSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating render_history table: %w", err)
	}
	return &PostgresStore{db: db, logger: log}, nil
}

// NewPostgresStoreWithDB wraps an existing handle. Used by tests.
func NewPostgresStoreWithDB(db *sql.DB, log logger.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: log}
}

func (s *PostgresStore) Insert(ctx context.Context, entry *Entry) error {
	if s == nil {
		return nil
	}
	missing := entry.Missing
	if missing == nil {
		missing = []string{}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO render_history (correlation_id, template_id, mode, ok, error_code, missing, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.CorrelationID, entry.TemplateID, entry.Mode, entry.OK,
		entry.ErrorCode, pq.Array(missing), entry.Duration.Milliseconds())
	if err != nil {
		return fmt.Errorf("inserting render history: %w", err)
	}
	return nil
}

func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]*Entry, error) {
	if s == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT correlation_id, template_id, mode, ok, error_code, missing, duration_ms, created_at
		 FROM render_history ORDER BY id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying render history: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		var e Entry
		var missing pq.StringArray
		var durationMs int64
		if err := rows.Scan(&e.CorrelationID, &e.TemplateID, &e.Mode, &e.OK,
			&e.ErrorCode, &missing, &durationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning render history row: %w", err)
		}
		e.Missing = []string(missing)
		e.Duration = time.Duration(durationMs) * time.Millisecond
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating render history rows: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
