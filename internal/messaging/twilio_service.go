package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/BTreeMap/PigeonMail/internal/twiliowhatsapp"
)

// TwilioSignatureHeader carries the request signature of Twilio webhooks.
const TwilioSignatureHeader = "X-Twilio-Signature"

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response></Response>`

// SignatureValidator checks a Twilio webhook signature.
type SignatureValidator interface {
	Validate(url string, params map[string]string, expectedSignature string) bool
}

// TwilioOption configures a TwilioService.
type TwilioOption func(*TwilioService)

// WithSignatureValidation rejects webhooks whose signature does not match url.
func WithSignatureValidation(v SignatureValidator, url string) TwilioOption {
	return func(s *TwilioService) {
		s.validator = v
		s.webhookURL = url
	}
}

// TwilioService implements Service using the Twilio API. Inbound messages arrive through
// WebhookHandler.
type TwilioService struct {
	client     twiliowhatsapp.TwilioWhatsAppSender
	inbox      *inbox
	validator  SignatureValidator
	webhookURL string
}

// NewTwilioService creates a new TwilioService.
func NewTwilioService(client twiliowhatsapp.TwilioWhatsAppSender, opts ...TwilioOption) *TwilioService {
	s := &TwilioService{
		client: client,
		inbox:  newInbox("TwilioService"),
	}
	for _, opt := range opts {
		opt(s)
	}
	slog.Debug("TwilioService created", "signature_validation", s.validator != nil)
	return s
}

// Start is a no-op for Twilio; messages are pushed to the webhook.
func (s *TwilioService) Start(ctx context.Context) error {
	return nil
}

// StopIntake closes the Responses channel; the webhook answers 503 from then on.
func (s *TwilioService) StopIntake() error {
	slog.Info("TwilioService StopIntake invoked")
	s.inbox.closeIntake()
	return nil
}

// Stop closes the Responses channel and disables sending.
func (s *TwilioService) Stop() error {
	slog.Info("TwilioService Stop invoked")
	s.inbox.close()
	return nil
}

// SendMessage renders reply as plain text and sends it via Twilio.
func (s *TwilioService) SendMessage(ctx context.Context, to string, reply models.Reply) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	if err := s.client.SendMessage(ctx, to, RenderPlainText(reply)); err != nil {
		slog.Error("TwilioService SendMessage error", "error", err, "to", to)
		return err
	}
	return nil
}

// Responses returns the channel for incoming messages.
func (s *TwilioService) Responses() <-chan models.Response {
	return s.inbox.responses
}

// Markup reports WhatsApp's *bold* dialect.
func (s *TwilioService) Markup() models.Markup {
	return models.MarkupWhatsApp
}

// WebhookHandler handles inbound Twilio webhook requests and emits them as responses.
func (s *TwilioService) WebhookHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		slog.Error("Failed to parse Twilio webhook form", "error", err)
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if s.validator != nil {
		params := make(map[string]string, len(r.PostForm))
		for key := range r.PostForm {
			params[key] = r.PostForm.Get(key)
		}
		if !s.validator.Validate(s.webhookURL, params, r.Header.Get(TwilioSignatureHeader)) {
			slog.Warn("Twilio webhook signature rejected", "remote", r.RemoteAddr)
			http.Error(w, "invalid signature", http.StatusForbidden)
			return
		}
	}

	from := twiliowhatsapp.StripWhatsAppPrefix(r.PostForm.Get("From"))
	body := r.PostForm.Get("Body")
	if from == "" || body == "" {
		slog.Warn("Twilio webhook missing fields", "from_set", from != "", "body_set", body != "")
		http.Error(w, "Missing required fields", http.StatusBadRequest)
		return
	}

	resp := models.Response{
		From:   from,
		Handle: from,
		Body:   body,
		Time:   time.Now().Unix(),
	}
	if !s.inbox.emit(resp) {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}

	w.Header().Set("Content-Type", "text/xml")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, emptyTwiML)
}
