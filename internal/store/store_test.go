package store

import (
	"context"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

func sampleSubmission(id string, kind models.FlowKind, at time.Time) models.Submission {
	return models.Submission{
		ID:          id,
		Kind:        kind,
		UserID:      "42",
		Handle:      "alice",
		Size:        models.SizeM,
		Name:        "Alice",
		FromCity:    "Berlin",
		ToCity:      "Paris",
		Date:        "2026-02-07",
		DateDisplay: "07.02.2026",
		CreatedAt:   at,
	}
}

// exerciseStore runs the shared archive contract against s.
func exerciseStore(t *testing.T, s SubmissionStore) {
	t.Helper()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	subs := []models.Submission{
		sampleSubmission("a", models.FlowSend, base),
		sampleSubmission("b", models.FlowDeliver, base.Add(time.Minute)),
		sampleSubmission("c", models.FlowSend, base.Add(2*time.Minute)),
	}
	subs[1].Handle = ""
	for _, sub := range subs {
		if err := s.AddSubmission(ctx, sub); err != nil {
			t.Fatalf("AddSubmission(%s): %v", sub.ID, err)
		}
	}
	if err := s.AddSubmission(ctx, subs[0]); err == nil {
		t.Error("expected duplicate id to be rejected")
	}

	all, err := s.ListSubmissions(ctx, SubmissionFilter{})
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(all) != 3 || all[0].ID != "c" || all[2].ID != "a" {
		t.Fatalf("expected newest first [c b a], got %+v", all)
	}
	if all[1].Handle != "" {
		t.Errorf("empty handle round-trip = %q", all[1].Handle)
	}
	if all[2] != subs[0] {
		t.Errorf("round-trip mismatch:\n got %+v\nwant %+v", all[2], subs[0])
	}

	sends, err := s.ListSubmissions(ctx, SubmissionFilter{Kind: models.FlowSend, Limit: 1})
	if err != nil {
		t.Fatalf("ListSubmissions(send): %v", err)
	}
	if len(sends) != 1 || sends[0].ID != "c" {
		t.Errorf("filtered list = %+v, want [c]", sends)
	}
}

func TestInMemoryStore(t *testing.T) {
	exerciseStore(t, NewInMemoryStore())
}

func TestSQLiteStore(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "archive.db")
	s, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	exerciseStore(t, s)
}

func TestSQLiteStoreReopen(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "archive.db")

	s1, err := NewSQLiteStore(WithSQLiteDSN(dbPath))
	if err != nil {
		t.Fatalf("NewSQLiteStore (phase 1): %v", err)
	}
	sub := sampleSubmission("keep", models.FlowDeliver, time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC))
	if err := s1.AddSubmission(ctx, sub); err != nil {
		t.Fatalf("AddSubmission: %v", err)
	}
	s1.Close()

	s2, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Open (phase 2): %v", err)
	}
	defer s2.Close()
	got, err := s2.ListSubmissions(ctx, SubmissionFilter{Kind: models.FlowDeliver})
	if err != nil {
		t.Fatalf("ListSubmissions: %v", err)
	}
	if len(got) != 1 || got[0].ID != "keep" {
		t.Errorf("expected persisted submission, got %+v", got)
	}
}

func TestSQLiteStoreRequiresDSN(t *testing.T) {
	if _, err := NewSQLiteStore(); err == nil {
		t.Error("expected error without DSN")
	}
	if _, err := Open("  "); err == nil {
		t.Error("expected Open to reject a blank DSN")
	}
}

func TestPostgresStore(t *testing.T) {
	// Requires a running PostgreSQL instance; DATABASE_URL holds the connection string.
	connStr := getenvOrSkip(t, "DATABASE_URL")
	pgStore, err := NewPostgresStore(WithPostgresDSN(connStr))
	if err != nil {
		t.Skipf("Postgres not available: %v", err)
	}
	defer pgStore.Close()
	pgStore.db.Exec("DELETE FROM submissions")
	exerciseStore(t, pgStore)
}

func TestDetectDSNType(t *testing.T) {
	tests := []struct {
		dsn  string
		want string
	}{
		{"postgres://user:pw@localhost/db", "postgres"},
		{"postgresql://localhost/db", "postgres"},
		{"host=localhost user=postgres dbname=test", "postgres"},
		{"data/pigeonmail.db", "sqlite3"},
		{"file:data/whatsmeow.db?_foreign_keys=on", "sqlite3"},
	}
	for _, tt := range tests {
		if got := DetectDSNType(tt.dsn); got != tt.want {
			t.Errorf("DetectDSNType(%q) = %q, want %q", tt.dsn, got, tt.want)
		}
	}
}

func TestSubmissionFilterLimit(t *testing.T) {
	tests := []struct{ in, want int }{
		{0, DefaultListLimit},
		{-3, DefaultListLimit},
		{10, 10},
		{MaxListLimit + 1, MaxListLimit},
	}
	for _, tt := range tests {
		if got := (SubmissionFilter{Limit: tt.in}).limit(); got != tt.want {
			t.Errorf("limit(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func getenvOrSkip(t *testing.T, key string) string {
	v := ""
	if val, ok := syscall.Getenv(key); ok {
		v = val
	}
	if v == "" {
		t.Skipf("env %s not set", key)
	}
	return v
}
