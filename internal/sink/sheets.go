package sink

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// DefaultSheetTab is used when no tab name is configured.
const DefaultSheetTab = "Sheet1"

// ErrSheetsCredentials is returned when no service account JSON is available.
var ErrSheetsCredentials = errors.New("no service account credentials")

// SheetAppender appends one row to a spreadsheet tab.
type SheetAppender interface {
	AppendRow(ctx context.Context, values []interface{}) error
}

// SheetsSink appends one row per submission to a spreadsheet.
type SheetsSink struct {
	appender SheetAppender
}

// NewSheetsSink creates a SheetsSink writing through appender.
func NewSheetsSink(appender SheetAppender) *SheetsSink {
	return &SheetsSink{appender: appender}
}

func (s *SheetsSink) Name() string { return "sheets" }

func (s *SheetsSink) Append(ctx context.Context, sub models.Submission) error {
	return s.appender.AppendRow(ctx, SheetRow(sub))
}

// SheetRow returns the row written for sub:
// timestamp, event kind, user id, handle, name, size, origin, destination, human date.
func SheetRow(sub models.Submission) []interface{} {
	return []interface{}{
		sub.CreatedAt.UTC().Format(utcTimestampLayout),
		string(sub.Kind),
		sub.UserID,
		sub.Handle,
		sub.Name,
		string(sub.Size),
		sub.FromCity,
		sub.ToCity,
		sub.DateDisplay,
	}
}

// SheetsOpts holds configuration for the Google Sheets client.
type SheetsOpts struct {
	SpreadsheetID   string
	Tab             string
	CredentialsJSON string // inline service account JSON, wins over CredentialsFile
	CredentialsFile string
}

// SheetsOption defines a function for configuring SheetsOpts.
type SheetsOption func(*SheetsOpts)

// WithSpreadsheet sets the spreadsheet id and tab name.
func WithSpreadsheet(id, tab string) SheetsOption {
	return func(o *SheetsOpts) {
		o.SpreadsheetID = id
		o.Tab = tab
	}
}

// WithCredentialsJSON sets inline service account JSON.
func WithCredentialsJSON(content string) SheetsOption {
	return func(o *SheetsOpts) { o.CredentialsJSON = content }
}

// WithCredentialsFile sets the service account JSON file path.
func WithCredentialsFile(path string) SheetsOption {
	return func(o *SheetsOpts) { o.CredentialsFile = path }
}

// credentials returns the service account JSON, preferring inline content.
func (o SheetsOpts) credentials() ([]byte, error) {
	if strings.TrimSpace(o.CredentialsJSON) != "" {
		return []byte(o.CredentialsJSON), nil
	}
	if o.CredentialsFile == "" {
		return nil, ErrSheetsCredentials
	}
	data, err := os.ReadFile(o.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read service account file: %w", err)
	}
	return data, nil
}

// GoogleSheet appends rows to one tab of a Google spreadsheet.
type GoogleSheet struct {
	svc           *sheets.Service
	spreadsheetID string
	tab           string
}

// NewGoogleSheet authenticates with a service account and checks that the tab exists.
func NewGoogleSheet(ctx context.Context, opts ...SheetsOption) (*GoogleSheet, error) {
	cfg := SheetsOpts{Tab: DefaultSheetTab}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.SpreadsheetID == "" {
		return nil, fmt.Errorf("spreadsheet id is required")
	}
	if cfg.Tab == "" {
		cfg.Tab = DefaultSheetTab
	}

	creds, err := cfg.credentials()
	if err != nil {
		return nil, err
	}
	jwtCfg, err := google.JWTConfigFromJSON(creds, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse service account JSON: %w", err)
	}
	// The HTTP client outlives ctx, which only bounds the startup check.
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(jwtCfg.Client(context.Background())))
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}

	doc, err := svc.Spreadsheets.Get(cfg.SpreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}
	found := false
	for _, sh := range doc.Sheets {
		if sh.Properties != nil && sh.Properties.Title == cfg.Tab {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("tab %q not found in spreadsheet", cfg.Tab)
	}

	slog.Info("GoogleSheet connected", "tab", cfg.Tab, "service_account", jwtCfg.Email)
	return &GoogleSheet{svc: svc, spreadsheetID: cfg.SpreadsheetID, tab: cfg.Tab}, nil
}

// AppendRow appends values after the last row of the tab.
func (g *GoogleSheet) AppendRow(ctx context.Context, values []interface{}) error {
	vr := &sheets.ValueRange{Values: [][]interface{}{values}}
	_, err := g.svc.Spreadsheets.Values.Append(g.spreadsheetID, tabRange(g.tab), vr).
		ValueInputOption("USER_ENTERED").
		InsertDataOption("INSERT_ROWS").
		Context(ctx).
		Do()
	if err != nil {
		return fmt.Errorf("failed to append sheet row: %w", err)
	}
	return nil
}

// tabRange quotes a tab name for A1 notation.
func tabRange(tab string) string {
	return "'" + strings.ReplaceAll(tab, "'", "''") + "'"
}
