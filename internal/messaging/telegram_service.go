package messaging

import (
	"context"
	"log/slog"
	"sync"

	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/BTreeMap/PigeonMail/internal/telegram"
)

// TelegramService implements Service on top of the Telegram Bot API.
type TelegramService struct {
	client   telegram.TelegramSender
	tgClient *telegram.Client // nil for mocks; used for long polling
	inbox    *inbox
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewTelegramService creates a TelegramService wrapping client.
func NewTelegramService(client telegram.TelegramSender) *TelegramService {
	s := &TelegramService{
		client: client,
		inbox:  newInbox("TelegramService"),
	}
	if tg, ok := client.(*telegram.Client); ok {
		s.tgClient = tg
		slog.Debug("TelegramService created with full client for polling")
	} else {
		slog.Debug("TelegramService created with interface client (likely mock)")
	}
	return s
}

// Start begins long polling when backed by a real client.
func (s *TelegramService) Start(ctx context.Context) error {
	if s.tgClient == nil {
		slog.Debug("TelegramService no full client available, skipping polling (likely mock)")
		return nil
	}
	pollCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.tgClient.Listen(pollCtx, func(resp models.Response) { s.inbox.emit(resp) })
	}()
	slog.Info("TelegramService polling started", "bot", s.tgClient.Username())
	return nil
}

// StopIntake ends polling and closes the Responses channel; sending stays available.
func (s *TelegramService) StopIntake() error {
	slog.Info("TelegramService StopIntake invoked")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.inbox.closeIntake()
	return nil
}

// Stop ends polling and disables sending.
func (s *TelegramService) Stop() error {
	if err := s.StopIntake(); err != nil {
		return err
	}
	slog.Info("TelegramService Stop invoked")
	s.inbox.close()
	return nil
}

// SendMessage sends reply to a chat id or @channel.
func (s *TelegramService) SendMessage(ctx context.Context, to string, reply models.Reply) error {
	if s.inbox.isStopped() {
		return ErrServiceStopped
	}
	if err := s.client.SendMessage(ctx, to, reply); err != nil {
		slog.Error("TelegramService SendMessage error", "error", err, "to", to)
		return err
	}
	return nil
}

// Responses returns a channel of incoming messages.
func (s *TelegramService) Responses() <-chan models.Response {
	return s.inbox.responses
}

// Markup reports that Telegram renders HTML.
func (s *TelegramService) Markup() models.Markup {
	return models.MarkupHTML
}

// Deliver injects an inbound message as if it came from Telegram.
func (s *TelegramService) Deliver(resp models.Response) bool {
	return s.inbox.emit(resp)
}
