// Package telegram wraps the Telegram Bot API for PigeonMail.
//
// It long-polls for private text messages and sends replies with reply keyboards.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// DefaultPollTimeout is the long-poll timeout in seconds.
const DefaultPollTimeout = 30

// TelegramSender is an interface for sending Telegram messages (for production and testing).
type TelegramSender interface {
	SendMessage(ctx context.Context, chatID string, reply models.Reply) error
}

// Opts holds configuration options for the Telegram client.
type Opts struct {
	Token       string
	PollTimeout int
	Debug       bool
}

// Option defines a configuration option for the Telegram client.
type Option func(*Opts)

// WithToken sets the bot token.
func WithToken(token string) Option {
	return func(o *Opts) { o.Token = token }
}

// WithPollTimeout sets the long-poll timeout in seconds.
func WithPollTimeout(seconds int) Option {
	return func(o *Opts) { o.PollTimeout = seconds }
}

// WithDebug enables request logging inside the Bot API library.
func WithDebug() Option {
	return func(o *Opts) { o.Debug = true }
}

// Client wraps the Bot API client.
type Client struct {
	bot         *tgbotapi.BotAPI
	pollTimeout int
	stopOnce    sync.Once
}

// NewClient authenticates with the Bot API. The token falls back to BOT_TOKEN.
func NewClient(opts ...Option) (*Client, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Token == "" {
		cfg.Token = os.Getenv("BOT_TOKEN")
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultPollTimeout
	}
	slog.Debug("Telegram NewClient options set", "Token_set", cfg.Token != "", "PollTimeout", cfg.PollTimeout, "Debug", cfg.Debug)

	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token must be provided")
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		slog.Error("Failed to authenticate Telegram bot", "error", err)
		return nil, fmt.Errorf("failed to authenticate telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	slog.Info("Telegram bot authorized", "username", bot.Self.UserName)

	return &Client{bot: bot, pollTimeout: cfg.PollTimeout}, nil
}

// Username returns the bot's own username.
func (c *Client) Username() string {
	return c.bot.Self.UserName
}

// SendMessage sends reply to chatID, which is a numeric chat id or an @channel username.
func (c *Client) SendMessage(ctx context.Context, chatID string, reply models.Reply) error {
	msg, err := BuildMessage(chatID, reply)
	if err != nil {
		return err
	}
	if _, err := c.bot.Send(msg); err != nil {
		slog.Error("Failed to send Telegram message", "error", err, "chat", chatID)
		return fmt.Errorf("failed to send message to %s: %w", chatID, err)
	}
	slog.Debug("Telegram message sent", "chat", chatID, "body_length", len(reply.Text))
	return nil
}

// Listen long-polls for updates and calls handle for each private text message until ctx
// is cancelled.
func (c *Client) Listen(ctx context.Context, handle func(models.Response)) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = c.pollTimeout
	cfg.AllowedUpdates = []string{"message"}
	updates := c.bot.GetUpdatesChan(cfg)

	slog.Debug("Telegram Listen started", "timeout", c.pollTimeout)
	for {
		select {
		case <-ctx.Done():
			c.Stop()
			slog.Debug("Telegram Listen stopping due to context cancellation")
			return
		case update, ok := <-updates:
			if !ok {
				slog.Debug("Telegram updates channel closed")
				return
			}
			if resp, ok := ToResponse(update); ok {
				handle(resp)
			}
		}
	}
}

// Stop ends long polling. It is safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(c.bot.StopReceivingUpdates)
}

// ToResponse converts a private text message update into a Response.
func ToResponse(update tgbotapi.Update) (models.Response, bool) {
	msg := update.Message
	if msg == nil || msg.From == nil || msg.Chat == nil || msg.Text == "" {
		return models.Response{}, false
	}
	if !msg.Chat.IsPrivate() {
		slog.Debug("Telegram ignoring non-private message", "chat", msg.Chat.ID, "type", msg.Chat.Type)
		return models.Response{}, false
	}
	return models.Response{
		From:   strconv.FormatInt(msg.From.ID, 10),
		Handle: msg.From.UserName,
		Body:   msg.Text,
		Time:   int64(msg.Date),
	}, true
}

// BuildMessage renders reply as a Bot API message config.
func BuildMessage(chatID string, reply models.Reply) (tgbotapi.MessageConfig, error) {
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return tgbotapi.MessageConfig{}, fmt.Errorf("chat id cannot be empty")
	}
	if reply.Text == "" {
		return tgbotapi.MessageConfig{}, fmt.Errorf("message body cannot be empty")
	}

	var msg tgbotapi.MessageConfig
	if strings.HasPrefix(chatID, "@") {
		msg = tgbotapi.NewMessageToChannel(chatID, reply.Text)
	} else {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return tgbotapi.MessageConfig{}, fmt.Errorf("invalid chat id %q: %w", chatID, err)
		}
		msg = tgbotapi.NewMessage(id, reply.Text)
	}
	if reply.Markup == models.MarkupHTML {
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableWebPagePreview = true
	}

	switch {
	case len(reply.Keyboard) > 0:
		rows := make([][]tgbotapi.KeyboardButton, 0, len(reply.Keyboard))
		for _, labels := range reply.Keyboard {
			row := make([]tgbotapi.KeyboardButton, 0, len(labels))
			for _, label := range labels {
				row = append(row, tgbotapi.NewKeyboardButton(label))
			}
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
		}
		kb := tgbotapi.NewReplyKeyboard(rows...)
		kb.OneTimeKeyboard = reply.OneTimeKeyboard
		kb.InputFieldPlaceholder = reply.Placeholder
		msg.ReplyMarkup = kb
	case reply.RemoveKeyboard:
		msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(false)
	}
	return msg, nil
}

// MockClient records sent messages instead of calling the Bot API (for tests).
type MockClient struct {
	mu   sync.Mutex
	Sent []SentMessage
	Err  error
}

// SentMessage is one message captured by MockClient.
type SentMessage struct {
	ChatID string
	Reply  models.Reply
}

// NewMockClient creates an empty MockClient.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// SendMessage records the message, or returns Err when set.
func (m *MockClient) SendMessage(ctx context.Context, chatID string, reply models.Reply) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, SentMessage{ChatID: chatID, Reply: reply})
	return nil
}

// Messages returns a copy of the recorded messages.
func (m *MockClient) Messages() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentMessage(nil), m.Sent...)
}
