package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// Constants for the JSONL log
const (
	DefaultDirPermissions  = 0755
	DefaultFilePermissions = 0644
	utcTimestampLayout     = "2006-01-02T15:04:05Z"
)

// jsonlRecord is one line of <kind>.jsonl.
type jsonlRecord struct {
	ID           string  `json:"id"`
	Kind         string  `json:"kind"`
	UserID       string  `json:"user_id"`
	Username     *string `json:"username"`
	Name         string  `json:"name"`
	Size         string  `json:"size"`
	FromCity     string  `json:"from_city"`
	ToCity       string  `json:"to_city"`
	Date         string  `json:"date"`
	DateDisplay  string  `json:"date_display"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// JSONLSink appends one JSON object per line to a file per flow kind. Each append opens
// and closes the file, so rotated or removed logs are recreated at Path on the next record.
type JSONLSink struct {
	dir string
	mu  sync.Mutex
}

// NewJSONLSink creates dir if missing.
func NewJSONLSink(dir string) (*JSONLSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("jsonl directory is required")
	}
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create jsonl directory: %w", err)
	}
	slog.Debug("JSONLSink directory verified/created", "dir", dir)
	return &JSONLSink{dir: dir}, nil
}

func (s *JSONLSink) Name() string { return "jsonl" }

// Path returns the log file used for kind.
func (s *JSONLSink) Path(kind models.FlowKind) string {
	return filepath.Join(s.dir, string(kind)+".jsonl")
}

func (s *JSONLSink) Append(ctx context.Context, sub models.Submission) error {
	if !sub.Kind.IsValid() {
		return fmt.Errorf("unknown submission kind %q", sub.Kind)
	}
	rec := jsonlRecord{
		ID:           sub.ID,
		Kind:         string(sub.Kind),
		UserID:       sub.UserID,
		Name:         sub.Name,
		Size:         string(sub.Size),
		FromCity:     sub.FromCity,
		ToCity:       sub.ToCity,
		Date:         sub.Date,
		DateDisplay:  sub.DateDisplay,
		CreatedAtUTC: sub.CreatedAt.UTC().Format(utcTimestampLayout),
	}
	if sub.Handle != "" {
		handle := sub.Handle
		rec.Username = &handle
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	path := s.Path(sub.Kind)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rec); err != nil {
		f.Close()
		return fmt.Errorf("failed to append to %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", path, err)
	}
	slog.Debug("JSONLSink appended", "file", path, "submissionID", sub.ID)
	return nil
}
