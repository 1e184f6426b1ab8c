package sink

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/BTreeMap/PigeonMail/internal/store"
)

// Status describes the outcome of initializing one sink.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
	StatusFailed   Status = "failed"
)

// InitResult reports how one sink was initialized. Sink is set only when Status is enabled.
type InitResult struct {
	Name   string
	Status Status
	Sink   Sink
	Reason string
	Err    error
}

// SheetFactory builds the appender behind the Sheets sink.
type SheetFactory func(ctx context.Context, opts ...SheetsOption) (SheetAppender, error)

func defaultSheetFactory(ctx context.Context, opts ...SheetsOption) (SheetAppender, error) {
	return NewGoogleSheet(ctx, opts...)
}

// Config holds everything Setup needs to build the sinks.
type Config struct {
	ChannelID string
	Sender    Sender
	Markup    models.Markup

	EnableJSONL bool
	DataDir     string

	SheetID         string
	SheetTab        string
	CredentialsJSON string
	CredentialsFile string
	NewSheet        SheetFactory // defaults to NewGoogleSheet

	Archive store.SubmissionStore // nil disables the archive
}

// Setup initializes every sink. The first result is always the channel poster.
func Setup(ctx context.Context, cfg Config) []InitResult {
	return []InitResult{
		setupChannel(cfg),
		setupJSONL(cfg),
		setupSheets(ctx, cfg),
		setupArchive(cfg),
	}
}

func setupChannel(cfg Config) InitResult {
	poster, err := NewChannelPoster(cfg.Sender, cfg.ChannelID, cfg.Markup)
	if err != nil {
		return InitResult{Name: "channel", Status: StatusFailed, Reason: "CHANNEL_ID not configured", Err: err}
	}
	return InitResult{Name: "channel", Status: StatusEnabled, Sink: poster}
}

func setupJSONL(cfg Config) InitResult {
	if !cfg.EnableJSONL {
		return InitResult{Name: "jsonl", Status: StatusDisabled, Reason: "ENABLE_JSON_STORE is false"}
	}
	s, err := NewJSONLSink(cfg.DataDir)
	if err != nil {
		return InitResult{Name: "jsonl", Status: StatusFailed, Reason: "data directory unavailable", Err: err}
	}
	return InitResult{Name: "jsonl", Status: StatusEnabled, Sink: s}
}

func setupSheets(ctx context.Context, cfg Config) InitResult {
	if cfg.SheetID == "" {
		return InitResult{Name: "sheets", Status: StatusDisabled, Reason: "GOOGLE_SHEET_ID not set"}
	}
	if cfg.CredentialsJSON == "" && cfg.CredentialsFile == "" {
		return InitResult{Name: "sheets", Status: StatusDisabled, Reason: ErrSheetsCredentials.Error()}
	}
	factory := cfg.NewSheet
	if factory == nil {
		factory = defaultSheetFactory
	}
	appender, err := factory(ctx,
		WithSpreadsheet(cfg.SheetID, cfg.SheetTab),
		WithCredentialsJSON(cfg.CredentialsJSON),
		WithCredentialsFile(cfg.CredentialsFile),
	)
	if err != nil {
		return InitResult{Name: "sheets", Status: StatusFailed, Reason: "spreadsheet unavailable", Err: err}
	}
	return InitResult{Name: "sheets", Status: StatusEnabled, Sink: NewSheetsSink(appender)}
}

func setupArchive(cfg Config) InitResult {
	if cfg.Archive == nil {
		return InitResult{Name: "archive", Status: StatusDisabled, Reason: "DATABASE_DSN not set"}
	}
	return InitResult{Name: "archive", Status: StatusEnabled, Sink: NewArchiveSink(cfg.Archive)}
}

// LogDiagnostics reports each sink's initialization outcome.
func LogDiagnostics(results []InitResult) {
	for _, r := range results {
		switch r.Status {
		case StatusEnabled:
			slog.Info("Sink enabled", "sink", r.Name)
		case StatusDisabled:
			slog.Warn("Sink disabled", "sink", r.Name, "reason", r.Reason)
		default:
			slog.Error("Sink failed to initialize", "sink", r.Name, "reason", r.Reason, "error", r.Err)
		}
	}
}

// PipelineFrom builds a Pipeline from Setup results. The first result must be an enabled
// primary sink; the other enabled sinks become best-effort.
func PipelineFrom(results []InitResult, opts ...PipelineOption) (*Pipeline, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no sinks configured", ErrPrimarySink)
	}
	primary := results[0]
	if primary.Status != StatusEnabled {
		return nil, fmt.Errorf("%w: %s %s: %s", ErrPrimarySink, primary.Name, primary.Status, primary.Reason)
	}
	var rest []Sink
	for _, r := range results[1:] {
		if r.Status == StatusEnabled && r.Sink != nil {
			rest = append(rest, r.Sink)
		}
	}
	return NewPipeline(primary.Sink, rest, opts...), nil
}
