// Package store provides storage backends for PigeonMail.
//
// This file implements a PostgreSQL-backed submission archive.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/BTreeMap/PigeonMail/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")
	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		db.Close()
		return nil, err
	}
	slog.Debug("Postgres ping successful")

	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) AddSubmission(ctx context.Context, sub models.Submission) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, kind, user_id, handle, size, name, from_city, to_city, travel_date, date_display, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		sub.ID, sub.Kind, sub.UserID, nilIfEmpty(sub.Handle), sub.Size, sub.Name,
		sub.FromCity, sub.ToCity, sub.Date, sub.DateDisplay, sub.CreatedAt.UTC(),
	)
	if err != nil {
		slog.Error("PostgresStore AddSubmission failed", "error", err, "id", sub.ID)
		return fmt.Errorf("failed to insert submission %s: %w", sub.ID, err)
	}
	slog.Debug("PostgresStore AddSubmission succeeded", "id", sub.ID, "kind", sub.Kind)
	return nil
}

func (s *PostgresStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	query := `SELECT id, kind, user_id, handle, size, name, from_city, to_city,
		to_char(travel_date, 'YYYY-MM-DD'), date_display, created_at
		FROM submissions`
	args := []interface{}{}
	if filter.Kind != models.FlowNone {
		args = append(args, filter.Kind)
		query += fmt.Sprintf(` WHERE kind = $%d`, len(args))
	}
	args = append(args, filter.limit())
	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		slog.Error("PostgresStore ListSubmissions query failed", "error", err)
		return nil, fmt.Errorf("failed to query submissions: %w", err)
	}
	defer rows.Close()

	subs, err := scanSubmissions(rows)
	if err != nil {
		slog.Error("PostgresStore ListSubmissions scan failed", "error", err)
		return nil, err
	}
	slog.Debug("PostgresStore ListSubmissions succeeded", "count", len(subs), "kind", filter.Kind)
	return subs, nil
}

// Close closes the PostgreSQL database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing PostgreSQL database connection")
	return s.db.Close()
}
