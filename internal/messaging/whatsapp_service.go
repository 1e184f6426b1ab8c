package messaging

import (
	"context"
	"log/slog"
	"strings"

	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/BTreeMap/PigeonMail/internal/whatsapp"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
)

// WhatsAppService implements Service using the Whatsmeow-based whatsapp client.
type WhatsAppService struct {
	client    whatsapp.WhatsAppSender
	waClient  *whatsapp.Client // access to underlying client for event handling
	inbox     *inbox
	handlerID uint32
}

// NewWhatsAppService creates a new WhatsAppService wrapping the given WhatsAppSender.
func NewWhatsAppService(client whatsapp.WhatsAppSender) *WhatsAppService {
	service := &WhatsAppService{
		client: client,
		inbox:  newInbox("WhatsAppService"),
	}
	if waClient, ok := client.(*whatsapp.Client); ok {
		service.waClient = waClient
		slog.Debug("WhatsAppService created with full client for event handling")
	} else {
		slog.Debug("WhatsAppService created with interface client (likely mock)")
	}
	return service
}

// Start registers the whatsmeow event handler.
func (s *WhatsAppService) Start(ctx context.Context) error {
	if s.waClient == nil || s.waClient.GetClient() == nil {
		slog.Debug("WhatsAppService no full client available, skipping event handling (likely mock)")
		return nil
	}
	s.handlerID = s.waClient.GetClient().AddEventHandler(func(evt interface{}) {
		if msg, ok := evt.(*events.Message); ok {
			s.handleIncomingMessage(msg)
		}
	})
	slog.Debug("WhatsAppService event handler registered")
	return nil
}

// StopIntake removes the event handler and closes the Responses channel. The connection
// stays up so queued events can still be answered.
func (s *WhatsAppService) StopIntake() error {
	slog.Info("WhatsAppService StopIntake invoked")
	if s.waClient != nil && s.waClient.GetClient() != nil {
		s.waClient.GetClient().RemoveEventHandler(s.handlerID)
	}
	s.inbox.closeIntake()
	return nil
}

// Stop stops intake, disables sending and disconnects.
func (s *WhatsAppService) Stop() error {
	if err := s.StopIntake(); err != nil {
		return err
	}
	slog.Info("WhatsAppService Stop invoked")
	s.inbox.close()
	if s.waClient != nil && s.waClient.GetClient() != nil {
		s.waClient.Disconnect()
	}
	return nil
}

// SendMessage renders reply as plain WhatsApp text and sends it.
func (s *WhatsAppService) SendMessage(ctx context.Context, to string, reply models.Reply) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	slog.Debug("WhatsAppService SendMessage invoked", "to", to, "body_length", len(reply.Text))
	if err := s.client.SendMessage(ctx, to, RenderPlainText(reply)); err != nil {
		slog.Error("WhatsAppService SendMessage error", "error", err, "to", to)
		return err
	}
	return nil
}

// Responses returns a channel of incoming response events.
func (s *WhatsAppService) Responses() <-chan models.Response {
	return s.inbox.responses
}

// Markup reports WhatsApp's *bold* dialect.
func (s *WhatsAppService) Markup() models.Markup {
	return models.MarkupWhatsApp
}

// handleIncomingMessage forwards direct text messages; groups, own messages and media are ignored.
func (s *WhatsAppService) handleIncomingMessage(evt *events.Message) {
	if evt.Message == nil || evt.Info.IsFromMe || evt.Info.IsGroup {
		return
	}
	text := evt.Message.GetConversation()
	if text == "" {
		text = evt.Message.GetExtendedTextMessage().GetText()
	}
	if text == "" {
		slog.Debug("WhatsAppService ignoring non-text message", "from", evt.Info.Sender.String())
		return
	}

	phone, ok := senderPhone(evt.Info.MessageSource)
	if !ok {
		slog.Warn("WhatsAppService ignoring message without a phone number sender", "sender", evt.Info.Sender.String(), "sender_alt", evt.Info.SenderAlt.String())
		return
	}
	from := "+" + strings.TrimPrefix(phone, "+")
	s.inbox.emit(models.Response{
		From:   from,
		Handle: from,
		Body:   text,
		Time:   evt.Info.Timestamp.Unix(),
	})
}

// senderPhone returns the phone number behind a message source. Senders addressed by a
// hidden LID carry the phone number in SenderAlt when WhatsApp shares it.
func senderPhone(src types.MessageSource) (string, bool) {
	for _, jid := range []types.JID{src.Sender, src.SenderAlt} {
		if jid.Server == types.DefaultUserServer && jid.User != "" {
			return jid.User, true
		}
	}
	return "", false
}
