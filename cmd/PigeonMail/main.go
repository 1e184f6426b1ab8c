package main

import (
	"flag"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"

	"github.com/BTreeMap/PigeonMail/internal/api"
	"github.com/BTreeMap/PigeonMail/internal/telegram"
	"github.com/BTreeMap/PigeonMail/internal/twiliowhatsapp"
	"github.com/BTreeMap/PigeonMail/internal/util"
	"github.com/BTreeMap/PigeonMail/internal/whatsapp"
)

// DefaultWhatsAppDBFileName is the whatsmeow device store created in the data directory
const DefaultWhatsAppDBFileName = "whatsmeow.db"

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()

	flags, err := parseCommandLineFlags(flag.CommandLine, os.Args[1:], config)
	if err != nil {
		slog.Error("Failed to parse flags", "error", err)
		os.Exit(2)
	}

	apiOpts := buildAPIOptions(flags)
	tgOpts := buildTelegramOptions(flags)
	waOpts := buildWhatsAppOptions(flags)
	twOpts := buildTwilioOptions()

	slog.Info("Bootstrapping PigeonMail", "transport", flags.transport, "data_dir", flags.dataDir)
	slog.Debug("Module options counts", "api", len(apiOpts), "telegram", len(tgOpts), "whatsapp", len(waOpts), "twilio", len(twOpts))
	if err := api.Run(apiOpts, tgOpts, waOpts, twOpts); err != nil {
		slog.Error("PigeonMail failed to run", "error", err)
		os.Exit(1)
	}
	slog.Info("PigeonMail exited successfully")
}

// Config holds environment configuration
type Config struct {
	BotToken            string
	ChannelID           string
	Transport           string
	EnableJSONL         bool
	DataDir             string
	GoogleSAJSON        string
	GoogleSAJSONContent string
	SheetID             string
	SheetTab            string
	DatabaseDSN         string
	WhatsAppDSN         string
	TwilioWebhookURL    string
	APIAddr             string
	AdminToken          string
}

// Flags holds the effective configuration after command line overrides
type Flags struct {
	botToken         string
	channelID        string
	transport        string
	jsonStore        bool
	dataDir          string
	googleSAJSON     string
	googleSAContent  string
	sheetID          string
	sheetTab         string
	dbDSN            string
	whatsappDSN      string
	twilioWebhookURL string
	apiAddr          string
	adminToken       string
	qrOutput         string
	numeric          bool
	telegramDebug    bool
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		BotToken:            os.Getenv("BOT_TOKEN"),
		ChannelID:           os.Getenv("CHANNEL_ID"),
		Transport:           util.EnvOrDefault("TRANSPORT", api.DefaultTransport),
		EnableJSONL:         util.ParseBoolEnv("ENABLE_JSON_STORE", true),
		DataDir:             util.EnvOrDefault("PIGEONMAIL_DATA_DIR", api.DefaultDataDir),
		GoogleSAJSON:        os.Getenv("GOOGLE_SA_JSON"),
		GoogleSAJSONContent: os.Getenv("GOOGLE_SA_JSON_CONTENT"),
		SheetID:             os.Getenv("GOOGLE_SHEET_ID"),
		SheetTab:            os.Getenv("GOOGLE_SHEET_TAB"),
		DatabaseDSN:         os.Getenv("DATABASE_DSN"),
		WhatsAppDSN:         os.Getenv("WHATSAPP_DB_DSN"),
		TwilioWebhookURL:    os.Getenv("TWILIO_WEBHOOK_URL"),
		APIAddr:             util.EnvOrDefault("API_ADDR", api.DefaultServerAddress),
		AdminToken:          os.Getenv("ADMIN_TOKEN"),
	}

	slog.Debug("environment variables loaded",
		"BOT_TOKEN_SET", config.BotToken != "",
		"CHANNEL_ID_SET", config.ChannelID != "",
		"TRANSPORT", config.Transport,
		"ENABLE_JSON_STORE", config.EnableJSONL,
		"PIGEONMAIL_DATA_DIR", config.DataDir,
		"GOOGLE_SA_JSON_SET", config.GoogleSAJSON != "",
		"GOOGLE_SA_JSON_CONTENT_SET", config.GoogleSAJSONContent != "",
		"GOOGLE_SHEET_ID_SET", config.SheetID != "",
		"DATABASE_DSN_SET", config.DatabaseDSN != "",
		"WHATSAPP_DB_DSN_SET", config.WhatsAppDSN != "",
		"TWILIO_WEBHOOK_URL_SET", config.TwilioWebhookURL != "",
		"API_ADDR", config.APIAddr,
		"ADMIN_TOKEN_SET", config.AdminToken != "")

	return config
}

// parseCommandLineFlags parses args with environment defaults
func parseCommandLineFlags(fs *flag.FlagSet, args []string, config Config) (Flags, error) {
	var f Flags
	fs.StringVar(&f.botToken, "bot-token", config.BotToken, "Telegram bot token (overrides $BOT_TOKEN)")
	fs.StringVar(&f.channelID, "channel-id", config.ChannelID, "broadcast destination (overrides $CHANNEL_ID)")
	fs.StringVar(&f.transport, "transport", config.Transport, "chat transport: telegram, whatsapp or twilio (overrides $TRANSPORT)")
	fs.BoolVar(&f.jsonStore, "json-store", config.EnableJSONL, "append submissions to local JSONL files (overrides $ENABLE_JSON_STORE)")
	fs.StringVar(&f.dataDir, "data-dir", config.DataDir, "directory for JSONL logs and the lock file (overrides $PIGEONMAIL_DATA_DIR)")
	fs.StringVar(&f.googleSAJSON, "google-sa-json", config.GoogleSAJSON, "service account JSON file (overrides $GOOGLE_SA_JSON)")
	fs.StringVar(&f.sheetID, "google-sheet-id", config.SheetID, "spreadsheet id (overrides $GOOGLE_SHEET_ID)")
	fs.StringVar(&f.sheetTab, "google-sheet-tab", config.SheetTab, "spreadsheet tab name (overrides $GOOGLE_SHEET_TAB)")
	fs.StringVar(&f.dbDSN, "db-dsn", config.DatabaseDSN, "archive DSN, postgres URL or sqlite path (overrides $DATABASE_DSN)")
	fs.StringVar(&f.whatsappDSN, "whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow device store DSN (overrides $WHATSAPP_DB_DSN)")
	fs.StringVar(&f.twilioWebhookURL, "twilio-webhook-url", config.TwilioWebhookURL, "public webhook URL for Twilio signature checks (overrides $TWILIO_WEBHOOK_URL)")
	fs.StringVar(&f.apiAddr, "api-addr", config.APIAddr, "API server address (overrides $API_ADDR)")
	fs.StringVar(&f.adminToken, "admin-token", config.AdminToken, "bearer token for /submissions; unset keeps it disabled (overrides $ADMIN_TOKEN)")
	fs.StringVar(&f.qrOutput, "qr-output", "", "path to write the WhatsApp login QR code")
	fs.BoolVar(&f.numeric, "numeric-code", false, "use numeric WhatsApp login code instead of QR code")
	fs.BoolVar(&f.telegramDebug, "telegram-debug", false, "log raw Telegram API traffic")

	if err := fs.Parse(args); err != nil {
		return Flags{}, err
	}
	f.googleSAContent = config.GoogleSAJSONContent

	// The device store follows the data directory unless set explicitly.
	if f.whatsappDSN == "" {
		f.whatsappDSN = filepath.Join(f.dataDir, DefaultWhatsAppDBFileName)
		slog.Debug("No WhatsApp DSN provided, defaulting to SQLite in data dir", "sqlite_path", f.whatsappDSN)
	}

	slog.Debug("flags parsed",
		"transport", f.transport,
		"channelID_set", f.channelID != "",
		"jsonStore", f.jsonStore,
		"dataDir", f.dataDir,
		"sheetID_set", f.sheetID != "",
		"dbDSN_set", f.dbDSN != "",
		"apiAddr", f.apiAddr,
		"adminToken_set", f.adminToken != "")
	return f, nil
}

// buildAPIOptions constructs process configuration options
func buildAPIOptions(f Flags) []api.Option {
	opts := []api.Option{
		api.WithTransport(f.transport),
		api.WithDataDir(f.dataDir),
		api.WithChannelID(f.channelID),
		api.WithJSONLStore(f.jsonStore),
	}
	if f.apiAddr != "" {
		opts = append(opts, api.WithAddr(f.apiAddr))
	}
	if f.sheetID != "" {
		opts = append(opts, api.WithSheet(f.sheetID, f.sheetTab))
	}
	if f.googleSAContent != "" || f.googleSAJSON != "" {
		opts = append(opts, api.WithGoogleCredentials(f.googleSAContent, f.googleSAJSON))
	}
	if f.dbDSN != "" {
		opts = append(opts, api.WithArchiveDSN(f.dbDSN))
	}
	if f.adminToken != "" {
		opts = append(opts, api.WithAdminToken(f.adminToken))
	}
	if f.twilioWebhookURL != "" {
		opts = append(opts, api.WithTwilioWebhook(f.twilioWebhookURL, os.Getenv("TWILIO_AUTH_TOKEN")))
	}
	return opts
}

// buildTelegramOptions constructs Telegram client options
func buildTelegramOptions(f Flags) []telegram.Option {
	var opts []telegram.Option
	if f.botToken != "" {
		opts = append(opts, telegram.WithToken(f.botToken))
	}
	if f.telegramDebug {
		opts = append(opts, telegram.WithDebug())
	}
	return opts
}

// buildWhatsAppOptions constructs WhatsApp configuration options
func buildWhatsAppOptions(f Flags) []whatsapp.Option {
	var opts []whatsapp.Option
	if f.qrOutput != "" {
		opts = append(opts, whatsapp.WithQRCodeOutput(f.qrOutput))
	}
	if f.numeric {
		opts = append(opts, whatsapp.WithNumericCode())
	}
	if f.whatsappDSN != "" {
		opts = append(opts, whatsapp.WithDBDSN(f.whatsappDSN))
	}
	return opts
}

// buildTwilioOptions constructs Twilio client options; credentials come from the environment.
func buildTwilioOptions() []twiliowhatsapp.Option {
	var opts []twiliowhatsapp.Option
	if sid := os.Getenv("TWILIO_ACCOUNT_SID"); sid != "" {
		opts = append(opts, twiliowhatsapp.WithAccountSID(sid))
	}
	if token := os.Getenv("TWILIO_AUTH_TOKEN"); token != "" {
		opts = append(opts, twiliowhatsapp.WithAuthToken(token))
	}
	if from := os.Getenv("TWILIO_FROM_NUMBER"); from != "" {
		opts = append(opts, twiliowhatsapp.WithFromWhats(from))
	}
	return opts
}
