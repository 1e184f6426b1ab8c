package messaging

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/BTreeMap/PigeonMail/internal/twiliowhatsapp"
)

type stubValidator struct {
	ok        bool
	gotURL    string
	gotParams map[string]string
	gotSig    string
}

func (v *stubValidator) Validate(u string, params map[string]string, sig string) bool {
	v.gotURL, v.gotParams, v.gotSig = u, params, sig
	return v.ok
}

func postForm(h http.HandlerFunc, form url.Values, sig string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/twilio/webhook", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if sig != "" {
		req.Header.Set(TwilioSignatureHeader, sig)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestTwilioWebhookEmitsResponse(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())
	rec := postForm(svc.WebhookHandler, url.Values{"From": {"whatsapp:+15551234567"}, "Body": {"/send"}}, "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "<Response>") {
		t.Errorf("expected TwiML body, got %q", rec.Body.String())
	}
	select {
	case resp := <-svc.Responses():
		if resp.From != "+15551234567" || resp.Body != "/send" || resp.Handle != "+15551234567" {
			t.Errorf("unexpected response: %+v", resp)
		}
	default:
		t.Fatal("expected response on channel")
	}
}

func TestTwilioWebhookValidation(t *testing.T) {
	v := &stubValidator{ok: false}
	svc := NewTwilioService(twiliowhatsapp.NewMockClient(), WithSignatureValidation(v, "https://bot.example.com/twilio/webhook"))
	form := url.Values{"From": {"whatsapp:+1555"}, "Body": {"hi"}}

	rec := postForm(svc.WebhookHandler, form, "bad-signature")
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if v.gotURL != "https://bot.example.com/twilio/webhook" || v.gotSig != "bad-signature" || v.gotParams["Body"] != "hi" {
		t.Errorf("validator saw url=%q sig=%q params=%v", v.gotURL, v.gotSig, v.gotParams)
	}

	v.ok = true
	if rec := postForm(svc.WebhookHandler, form, "good"); rec.Code != http.StatusOK {
		t.Errorf("status with valid signature = %d, want 200", rec.Code)
	}
}

func TestTwilioWebhookRejectsBadRequests(t *testing.T) {
	svc := NewTwilioService(twiliowhatsapp.NewMockClient())

	if rec := postForm(svc.WebhookHandler, url.Values{"From": {"whatsapp:+1"}}, ""); rec.Code != http.StatusBadRequest {
		t.Errorf("missing body status = %d, want 400", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/twilio/webhook", nil)
	rec := httptest.NewRecorder()
	svc.WebhookHandler(rec, req)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("GET status = %d, want 405", rec.Code)
	}

	_ = svc.Stop()
	if rec := postForm(svc.WebhookHandler, url.Values{"From": {"whatsapp:+1"}, "Body": {"hi"}}, ""); rec.Code != http.StatusServiceUnavailable {
		t.Errorf("stopped status = %d, want 503", rec.Code)
	}
}

func TestTwilioServiceSendRendersKeyboard(t *testing.T) {
	client := twiliowhatsapp.NewMockClient()
	svc := NewTwilioService(client)

	reply := models.Reply{Text: "Choose the size", Keyboard: [][]string{{"S", "M", "L"}}}
	if err := svc.SendMessage(context.Background(), "+1555", reply); err != nil {
		t.Fatalf("SendMessage: %v", err)
	}
	msgs := client.Messages()
	if len(msgs) != 1 || msgs[0].To != "+1555" || msgs[0].Body != "Choose the size\n\nReply with: S / M / L" {
		t.Errorf("sent = %+v", msgs)
	}
	if svc.Markup() != models.MarkupWhatsApp {
		t.Errorf("Markup = %q", svc.Markup())
	}

	_ = svc.Stop()
	if err := svc.SendMessage(context.Background(), "+1555", reply); err != ErrServiceStopped {
		t.Errorf("send after stop = %v, want ErrServiceStopped", err)
	}
}
