package api

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/BTreeMap/PigeonMail/internal/flow"
	"github.com/BTreeMap/PigeonMail/internal/messaging"
	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/BTreeMap/PigeonMail/internal/sink"
	"github.com/BTreeMap/PigeonMail/internal/store"
)

// Server serves the operational HTTP endpoints.
type Server struct {
	svc       messaging.Service
	states    *flow.InMemoryStateStore
	pipeline  *sink.Pipeline
	archive   store.SubmissionStore // nil when the archive is disabled
	gatherer  prometheus.Gatherer
	transport string
	started   time.Time

	adminToken string // empty leaves /submissions unmounted
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerAdminToken requires "Authorization: Bearer <token>" on /submissions.
func WithServerAdminToken(token string) ServerOption {
	return func(s *Server) { s.adminToken = token }
}

// NewServer creates a Server. archive may be nil.
func NewServer(svc messaging.Service, states *flow.InMemoryStateStore, pipeline *sink.Pipeline, archive store.SubmissionStore, gatherer prometheus.Gatherer, transport string, opts ...ServerOption) *Server {
	s := &Server{
		svc:       svc,
		states:    states,
		pipeline:  pipeline,
		archive:   archive,
		gatherer:  gatherer,
		transport: transport,
		started:   time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routes of the server. The Twilio webhook is mounted only for the
// twilio transport and /submissions only when an admin token is set.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	if s.adminToken != "" {
		mux.HandleFunc("/submissions", s.requireAdmin(s.submissionsHandler))
	}
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	if tw, ok := s.svc.(*messaging.TwilioService); ok {
		mux.HandleFunc("/twilio/webhook", tw.WebhookHandler)
	}
	return mux
}

// healthHandler handles GET /health
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	healthData := map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"transport":      s.transport,
		"uptime_seconds": int64(time.Since(s.started).Seconds()),
		"archive":        s.archive != nil,
	}
	if s.states != nil {
		healthData["active_conversations"] = s.states.ActiveCount()
	}
	if s.pipeline != nil {
		healthData["sinks"] = s.pipeline.Names()
	}
	writeJSONResponse(w, http.StatusOK, healthData)
}

// requireAdmin rejects requests without the admin bearer token.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	want := []byte("Bearer " + s.adminToken)
	return func(w http.ResponseWriter, r *http.Request) {
		got := []byte(strings.TrimSpace(r.Header.Get("Authorization")))
		if subtle.ConstantTimeCompare(got, want) != 1 {
			slog.Warn("Server: admin request rejected", "path", r.URL.Path, "remote", r.RemoteAddr)
			w.Header().Set("WWW-Authenticate", `Bearer realm="pigeonmail"`)
			writeJSONResponse(w, http.StatusUnauthorized, models.Error("Unauthorized"))
			return
		}
		next(w, r)
	}
}

// submissionsHandler handles GET /submissions?kind=&limit=
func (s *Server) submissionsHandler(w http.ResponseWriter, r *http.Request) {
	slog.Debug("Server.submissionsHandler invoked", "method", r.Method, "query", r.URL.RawQuery)
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.archive == nil {
		writeJSONResponse(w, http.StatusServiceUnavailable, models.Error("Archive not configured"))
		return
	}

	var filter store.SubmissionFilter
	q := r.URL.Query()
	if kind := q.Get("kind"); kind != "" {
		filter.Kind = models.FlowKind(kind)
		if !filter.Kind.IsValid() {
			slog.Warn("Server.submissionsHandler: invalid kind", "kind", kind)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid kind: use want_to_send or can_deliver"))
			return
		}
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			slog.Warn("Server.submissionsHandler: invalid limit", "limit", raw)
			writeJSONResponse(w, http.StatusBadRequest, models.Error("Invalid limit: must be a positive integer"))
			return
		}
		filter.Limit = limit
	}

	subs, err := s.archive.ListSubmissions(r.Context(), filter)
	if err != nil {
		slog.Error("Server.submissionsHandler: failed to list submissions", "error", err)
		writeJSONResponse(w, http.StatusInternalServerError, models.Error("Failed to list submissions"))
		return
	}
	if subs == nil {
		subs = []models.Submission{}
	}
	slog.Debug("Server.submissionsHandler returning submissions", "count", len(subs))
	writeJSONResponse(w, http.StatusOK, models.Success(subs))
}
