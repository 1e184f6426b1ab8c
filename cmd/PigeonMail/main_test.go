package main

import (
	"flag"
	"io"
	"path/filepath"
	"testing"

	"github.com/BTreeMap/PigeonMail/internal/api"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"BOT_TOKEN", "CHANNEL_ID", "TRANSPORT", "ENABLE_JSON_STORE", "PIGEONMAIL_DATA_DIR",
		"GOOGLE_SA_JSON", "GOOGLE_SA_JSON_CONTENT", "GOOGLE_SHEET_ID", "GOOGLE_SHEET_TAB",
		"DATABASE_DSN", "WHATSAPP_DB_DSN", "TWILIO_WEBHOOK_URL", "API_ADDR", "ADMIN_TOKEN",
	} {
		t.Setenv(key, "")
	}
}

func newFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("pigeonmail", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func TestLoadEnvironmentConfigDefaults(t *testing.T) {
	clearEnv(t)
	config := loadEnvironmentConfig()

	if config.Transport != api.DefaultTransport {
		t.Errorf("Transport = %q, want %q", config.Transport, api.DefaultTransport)
	}
	if config.DataDir != api.DefaultDataDir {
		t.Errorf("DataDir = %q, want %q", config.DataDir, api.DefaultDataDir)
	}
	if !config.EnableJSONL {
		t.Error("EnableJSONL should default to true")
	}
	if config.APIAddr != api.DefaultServerAddress {
		t.Errorf("APIAddr = %q", config.APIAddr)
	}
}

func TestLoadEnvironmentConfigFromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("BOT_TOKEN", "123:abc")
	t.Setenv("CHANNEL_ID", "@pigeon")
	t.Setenv("TRANSPORT", "whatsapp")
	t.Setenv("ENABLE_JSON_STORE", "no")
	t.Setenv("GOOGLE_SHEET_ID", "sheet")
	t.Setenv("ADMIN_TOKEN", "admin")

	config := loadEnvironmentConfig()
	if config.BotToken != "123:abc" || config.ChannelID != "@pigeon" || config.Transport != "whatsapp" ||
		config.EnableJSONL || config.SheetID != "sheet" || config.AdminToken != "admin" {
		t.Errorf("config = %+v", config)
	}
}

func TestParseCommandLineFlagsOverrides(t *testing.T) {
	config := Config{Transport: "telegram", DataDir: "data", EnableJSONL: true, ChannelID: "@env", GoogleSAJSONContent: "{}"}
	args := []string{"-transport", "twilio", "-data-dir", "/srv/pm", "-json-store=false", "-channel-id", "@flag", "-db-dsn", "archive.db", "-admin-token", "tok"}

	f, err := parseCommandLineFlags(newFlagSet(), args, config)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.transport != "twilio" || f.dataDir != "/srv/pm" || f.jsonStore || f.channelID != "@flag" || f.dbDSN != "archive.db" || f.adminToken != "tok" {
		t.Errorf("flags = %+v", f)
	}
	if f.whatsappDSN != filepath.Join("/srv/pm", DefaultWhatsAppDBFileName) {
		t.Errorf("whatsappDSN = %q, want it inside the data dir", f.whatsappDSN)
	}
	if f.googleSAContent != "{}" {
		t.Errorf("googleSAContent = %q", f.googleSAContent)
	}
}

func TestParseCommandLineFlagsKeepsExplicitWhatsAppDSN(t *testing.T) {
	config := Config{DataDir: "data", WhatsAppDSN: "postgres://wa"}
	f, err := parseCommandLineFlags(newFlagSet(), nil, config)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.whatsappDSN != "postgres://wa" {
		t.Errorf("whatsappDSN = %q", f.whatsappDSN)
	}
	if _, err := parseCommandLineFlags(newFlagSet(), []string{"-no-such-flag"}, config); err == nil {
		t.Error("expected error for unknown flag")
	}
}

func TestBuildOptions(t *testing.T) {
	f := Flags{
		transport:       "telegram",
		dataDir:         "data",
		channelID:       "@c",
		jsonStore:       true,
		apiAddr:         ":8080",
		sheetID:         "sheet",
		googleSAContent: "{}",
		dbDSN:           "archive.db",
		adminToken:      "admin",
		botToken:        "tok",
		telegramDebug:   true,
		qrOutput:        "qr.png",
		numeric:         true,
		whatsappDSN:     "data/whatsmeow.db",
	}
	if got := len(buildAPIOptions(f)); got != 9 {
		t.Errorf("api options = %d, want 9", got)
	}
	if got := len(buildTelegramOptions(f)); got != 2 {
		t.Errorf("telegram options = %d, want 2", got)
	}
	if got := len(buildWhatsAppOptions(f)); got != 3 {
		t.Errorf("whatsapp options = %d, want 3", got)
	}

	t.Setenv("TWILIO_ACCOUNT_SID", "AC1")
	t.Setenv("TWILIO_AUTH_TOKEN", "")
	t.Setenv("TWILIO_FROM_NUMBER", "+1555")
	if got := len(buildTwilioOptions()); got != 2 {
		t.Errorf("twilio options = %d, want 2", got)
	}
}
