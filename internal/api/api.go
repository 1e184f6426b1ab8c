// Package api wires PigeonMail together and serves its HTTP endpoints.
//
// Run owns every component for the lifetime of the process: the chat transport, the sinks,
// the flow engine and the dispatcher are created at start and torn down on SIGINT/SIGTERM.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/BTreeMap/PigeonMail/internal/flow"
	"github.com/BTreeMap/PigeonMail/internal/lockfile"
	"github.com/BTreeMap/PigeonMail/internal/messaging"
	"github.com/BTreeMap/PigeonMail/internal/metrics"
	"github.com/BTreeMap/PigeonMail/internal/sink"
	"github.com/BTreeMap/PigeonMail/internal/store"
	"github.com/BTreeMap/PigeonMail/internal/telegram"
	"github.com/BTreeMap/PigeonMail/internal/twiliowhatsapp"
	"github.com/BTreeMap/PigeonMail/internal/whatsapp"
)

// Transports
const (
	TransportTelegram = "telegram"
	TransportWhatsApp = "whatsapp"
	TransportTwilio   = "twilio"
)

// Defaults
const (
	DefaultServerAddress   = ":8080"
	DefaultTransport       = TransportTelegram
	DefaultDataDir         = "data"
	DefaultShutdownTimeout = 10 * time.Second
)

// ErrUnknownTransport is returned for a transport name Run does not support.
var ErrUnknownTransport = errors.New("unknown transport")

// Opts holds configuration for the PigeonMail process.
type Opts struct {
	Addr        string
	Transport   string
	DataDir     string
	ChannelID   string
	EnableJSONL bool

	SheetID               string
	SheetTab              string
	GoogleCredentialsJSON string
	GoogleCredentialsFile string

	ArchiveDSN string

	TwilioWebhookURL string
	TwilioAuthToken  string

	AdminToken string

	ShutdownTimeout time.Duration
}

// Option defines a function for configuring Opts.
type Option func(*Opts)

// WithAddr sets the HTTP listen address.
func WithAddr(addr string) Option {
	return func(o *Opts) { o.Addr = addr }
}

// WithTransport selects telegram, whatsapp or twilio.
func WithTransport(name string) Option {
	return func(o *Opts) { o.Transport = name }
}

// WithDataDir sets the directory for JSONL logs and the lock file.
func WithDataDir(dir string) Option {
	return func(o *Opts) { o.DataDir = dir }
}

// WithChannelID sets the broadcast destination.
func WithChannelID(id string) Option {
	return func(o *Opts) { o.ChannelID = id }
}

// WithJSONLStore enables or disables the local JSONL log.
func WithJSONLStore(enabled bool) Option {
	return func(o *Opts) { o.EnableJSONL = enabled }
}

// WithSheet sets the spreadsheet id and tab for the Sheets sink.
func WithSheet(id, tab string) Option {
	return func(o *Opts) {
		o.SheetID = id
		o.SheetTab = tab
	}
}

// WithGoogleCredentials sets the service account JSON as inline content or a file path.
func WithGoogleCredentials(content, path string) Option {
	return func(o *Opts) {
		o.GoogleCredentialsJSON = content
		o.GoogleCredentialsFile = path
	}
}

// WithArchiveDSN enables the SQL archive.
func WithArchiveDSN(dsn string) Option {
	return func(o *Opts) { o.ArchiveDSN = dsn }
}

// WithTwilioWebhook enables signature checks on the Twilio webhook.
func WithTwilioWebhook(publicURL, authToken string) Option {
	return func(o *Opts) {
		o.TwilioWebhookURL = publicURL
		o.TwilioAuthToken = authToken
	}
}

// WithAdminToken exposes /submissions behind "Authorization: Bearer <token>".
func WithAdminToken(token string) Option {
	return func(o *Opts) { o.AdminToken = token }
}

// WithShutdownTimeout bounds graceful HTTP shutdown.
func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Opts) { o.ShutdownTimeout = d }
}

func defaultOpts() Opts {
	return Opts{
		Addr:            DefaultServerAddress,
		Transport:       DefaultTransport,
		DataDir:         DefaultDataDir,
		EnableJSONL:     true,
		SheetTab:        sink.DefaultSheetTab,
		ShutdownTimeout: DefaultShutdownTimeout,
	}
}

// Run starts PigeonMail and blocks until SIGINT/SIGTERM or a fatal server error.
func Run(apiOpts []Option, tgOpts []telegram.Option, waOpts []whatsapp.Option, twOpts []twiliowhatsapp.Option) error {
	cfg := defaultOpts()
	for _, opt := range apiOpts {
		opt(&cfg)
	}
	slog.Debug("API Run configuration",
		"addr", cfg.Addr,
		"transport", cfg.Transport,
		"data_dir", cfg.DataDir,
		"channel_set", cfg.ChannelID != "",
		"jsonl", cfg.EnableJSONL,
		"sheet_set", cfg.SheetID != "",
		"archive_set", cfg.ArchiveDSN != "",
		"twilio_webhook_checks", cfg.TwilioWebhookURL != "",
		"admin_api", cfg.AdminToken != "")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lock, err := lockfile.Acquire(cfg.DataDir, cfg.Transport)
	if err != nil {
		return err
	}
	defer lock.Release()

	svc, closeTransport, err := newService(ctx, cfg, tgOpts, waOpts, twOpts)
	if err != nil {
		return fmt.Errorf("failed to create %s transport: %w", cfg.Transport, err)
	}
	defer closeTransport()

	var archive store.SubmissionStore
	if cfg.ArchiveDSN != "" {
		archive, err = store.Open(cfg.ArchiveDSN)
		if err != nil {
			return fmt.Errorf("failed to open archive: %w", err)
		}
		defer func() {
			if err := archive.Close(); err != nil {
				slog.Error("API Run: failed to close archive", "error", err)
			}
		}()
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	results := sink.Setup(ctx, sink.Config{
		ChannelID:       cfg.ChannelID,
		Sender:          svc,
		Markup:          svc.Markup(),
		EnableJSONL:     cfg.EnableJSONL,
		DataDir:         cfg.DataDir,
		SheetID:         cfg.SheetID,
		SheetTab:        cfg.SheetTab,
		CredentialsJSON: cfg.GoogleCredentialsJSON,
		CredentialsFile: cfg.GoogleCredentialsFile,
		Archive:         archive,
	})
	sink.LogDiagnostics(results)
	pipeline, err := sink.PipelineFrom(results, sink.WithMetrics(m))
	if err != nil {
		closeSinks(results[1:])
		return err
	}

	states := flow.NewInMemoryStateStore()
	engine := flow.NewEngine(states, pipeline, flow.WithMetrics(m))
	disp := messaging.NewDispatcher(engine, svc, messaging.WithDispatcherMetrics(m))

	if err := svc.Start(ctx); err != nil {
		pipeline.Close()
		return fmt.Errorf("failed to start %s transport: %w", cfg.Transport, err)
	}
	// Queued events keep running after a shutdown signal; StopIntake ends the loop.
	disp.Start(context.WithoutCancel(ctx))

	server := NewServer(svc, states, pipeline, archive, reg, cfg.Transport, WithServerAdminToken(cfg.AdminToken))
	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		slog.Info("PigeonMail API listening", "addr", cfg.Addr, "transport", cfg.Transport, "sinks", pipeline.Names())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("PigeonMail shutting down")
	case err := <-serveErr:
		runErr = fmt.Errorf("http server failed: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Error("API Run: http shutdown failed", "error", err)
	}
	// Intake stops first so queued events can still publish and reply before sending ends.
	if err := svc.StopIntake(); err != nil {
		slog.Error("API Run: transport intake stop failed", "error", err)
	}
	disp.Wait()
	if err := svc.Stop(); err != nil {
		slog.Error("API Run: transport stop failed", "error", err)
	}
	if err := pipeline.Close(); err != nil {
		slog.Error("API Run: pipeline close failed", "error", err)
	}
	return runErr
}

// closeSinks closes the sinks set up for a pipeline that never started, logging failures.
func closeSinks(results []sink.InitResult) {
	for _, r := range results {
		c, ok := r.Sink.(interface{ Close() error })
		if !ok {
			continue
		}
		if err := c.Close(); err != nil {
			slog.Error("API Run: sink close failed", "sink", r.Name, "error", err)
		}
	}
}

// newService builds the configured chat transport and a cleanup func for its client.
func newService(ctx context.Context, cfg Opts, tgOpts []telegram.Option, waOpts []whatsapp.Option, twOpts []twiliowhatsapp.Option) (messaging.Service, func(), error) {
	noop := func() {}
	switch cfg.Transport {
	case TransportTelegram:
		client, err := telegram.NewClient(tgOpts...)
		if err != nil {
			return nil, noop, err
		}
		return messaging.NewTelegramService(client), client.Stop, nil
	case TransportWhatsApp:
		client, err := whatsapp.NewClient(ctx, waOpts...)
		if err != nil {
			return nil, noop, err
		}
		return messaging.NewWhatsAppService(client), client.Disconnect, nil
	case TransportTwilio:
		client, err := twiliowhatsapp.NewClient(twOpts...)
		if err != nil {
			return nil, noop, err
		}
		var opts []messaging.TwilioOption
		if cfg.TwilioWebhookURL != "" {
			token := cfg.TwilioAuthToken
			if token == "" {
				token = os.Getenv("TWILIO_AUTH_TOKEN")
			}
			opts = append(opts, messaging.WithSignatureValidation(twiliowhatsapp.NewSignatureValidator(token), cfg.TwilioWebhookURL))
		} else {
			slog.Warn("Twilio webhook signature checks disabled: TWILIO_WEBHOOK_URL not set")
		}
		return messaging.NewTwilioService(client, opts...), noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownTransport, cfg.Transport)
	}
}
