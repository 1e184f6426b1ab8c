package sink

import (
	"context"
	"fmt"
	"html"
	"strings"

	"github.com/BTreeMap/PigeonMail/internal/flow"
	"github.com/BTreeMap/PigeonMail/internal/models"
)

// Sender delivers a message to a chat destination. messaging.Service satisfies it.
type Sender interface {
	SendMessage(ctx context.Context, to string, reply models.Reply) error
}

// ChannelPoster posts the broadcast text of a submission to the configured channel.
type ChannelPoster struct {
	sender    Sender
	channelID string
	markup    models.Markup
}

// NewChannelPoster creates a ChannelPoster rendering in markup.
func NewChannelPoster(sender Sender, channelID string, markup models.Markup) (*ChannelPoster, error) {
	if sender == nil {
		return nil, fmt.Errorf("channel sender is required")
	}
	if strings.TrimSpace(channelID) == "" {
		return nil, fmt.Errorf("channel id is required")
	}
	return &ChannelPoster{sender: sender, channelID: channelID, markup: markup}, nil
}

func (c *ChannelPoster) Name() string { return "channel" }

func (c *ChannelPoster) Append(ctx context.Context, sub models.Submission) error {
	text, err := FormatBroadcast(sub, c.markup)
	if err != nil {
		return err
	}
	return c.sender.SendMessage(ctx, c.channelID, models.Reply{Text: text, Markup: c.markup})
}

// FormatBroadcast renders the public post for sub. User text is escaped for HTML.
func FormatBroadcast(sub models.Submission, markup models.Markup) (string, error) {
	def, err := flow.DefinitionFor(sub.Kind)
	if err != nil {
		return "", err
	}

	esc := func(s string) string { return s }
	title := def.Title
	switch markup {
	case models.MarkupHTML:
		esc = html.EscapeString
		title = "<b>" + def.Title + "</b>"
	case models.MarkupWhatsApp:
		title = "*" + def.Title + "*"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n\n", def.Emoji, title)
	fmt.Fprintf(&b, "📏 Size: %s — %s\n", sub.Size, sub.Size.Label())
	fmt.Fprintf(&b, "👤 Name: %s\n", esc(sub.Name))
	fmt.Fprintf(&b, "🗺 Route: %s → %s\n", esc(sub.FromCity), esc(sub.ToCity))
	fmt.Fprintf(&b, "📅 Date: %s\n", esc(sub.DateDisplay))
	fmt.Fprintf(&b, "🔗 Contact: %s", esc(sub.Contact()))
	return b.String(), nil
}
