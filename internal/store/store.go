// Package store provides the submission archive backends for PigeonMail.
//
// It includes an in-memory store for tests and SQL stores backed by SQLite or PostgreSQL.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// List limits.
const (
	DefaultListLimit = 50
	MaxListLimit     = 500
)

// SubmissionFilter narrows ListSubmissions. A zero Kind matches every kind.
type SubmissionFilter struct {
	Kind  models.FlowKind
	Limit int
}

func (f SubmissionFilter) limit() int {
	switch {
	case f.Limit <= 0:
		return DefaultListLimit
	case f.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return f.Limit
	}
}

// SubmissionStore archives completed submissions.
type SubmissionStore interface {
	AddSubmission(ctx context.Context, sub models.Submission) error
	// ListSubmissions returns the newest submissions first.
	ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error)
	Close() error
}

// Opts holds configuration options for the SQL stores.
type Opts struct {
	DSN string
}

// Option defines a configuration option for the SQL stores.
type Option func(*Opts)

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType returns "postgres" for PostgreSQL URLs and key=value strings, and
// "sqlite3" for everything else.
func DetectDSNType(dsn string) string {
	lower := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return "postgres"
	}
	for _, key := range []string{"host=", "user=", "dbname=", "sslmode=", "password="} {
		if strings.Contains(lower, key) {
			return "postgres"
		}
	}
	return "sqlite3"
}

// Open creates the SQL store matching dsn.
func Open(dsn string) (SubmissionStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("database DSN not set")
	}
	if DetectDSNType(dsn) == "postgres" {
		slog.Debug("store Open selected PostgreSQL")
		return NewPostgresStore(WithPostgresDSN(dsn))
	}
	slog.Debug("store Open selected SQLite")
	return NewSQLiteStore(WithSQLiteDSN(dsn))
}

// InMemoryStore is a SubmissionStore held in process memory.
type InMemoryStore struct {
	mu          sync.RWMutex
	submissions []models.Submission
}

// NewInMemoryStore creates an empty InMemoryStore.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) AddSubmission(ctx context.Context, sub models.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.submissions {
		if existing.ID == sub.ID {
			return fmt.Errorf("submission %s already stored", sub.ID)
		}
	}
	s.submissions = append(s.submissions, sub)
	return nil
}

func (s *InMemoryStore) ListSubmissions(ctx context.Context, filter SubmissionFilter) ([]models.Submission, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit := filter.limit()
	out := make([]models.Submission, 0, min(limit, len(s.submissions)))
	for i := len(s.submissions) - 1; i >= 0 && len(out) < limit; i-- {
		sub := s.submissions[i]
		if filter.Kind != models.FlowNone && sub.Kind != filter.Kind {
			continue
		}
		out = append(out, sub)
	}
	return out, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}
