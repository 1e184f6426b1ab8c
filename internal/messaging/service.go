// Package messaging connects chat transports to the flow engine.
//
// Each transport implements Service. The Dispatcher reads inbound events from a Service,
// resolves them to triggers and runs them through the engine one user at a time.
package messaging

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// Constants for service configuration
const (
	// DefaultChannelBufferSize defines the default buffer size for response channels
	DefaultChannelBufferSize = 100
	// DefaultChannelTimeout defines how long an inbound event may wait for buffer space
	DefaultChannelTimeout = 1 * time.Second
)

// ErrServiceStopped is returned when sending through a stopped service.
var ErrServiceStopped = errors.New("messaging service stopped")

// Service defines a pluggable chat transport.
type Service interface {
	// SendMessage sends a reply to a user or broadcast destination.
	SendMessage(ctx context.Context, to string, reply models.Reply) error

	// Start begins any background processing (e.g., polling for events).
	Start(ctx context.Context) error

	// StopIntake stops receiving events and closes the Responses channel. SendMessage
	// keeps working so queued events can still be answered.
	StopIntake() error

	// Stop stops intake if still running and then disables sending.
	Stop() error

	// Responses returns a channel of incoming user messages.
	Responses() <-chan models.Response

	// Markup reports the rich text dialect the transport renders.
	Markup() models.Markup
}

// inbox is the buffered response channel shared by the transports. Emitting after the
// intake is closed drops the event instead of panicking. Sending is gated separately so
// replies to already queued events still go out while the intake drains.
type inbox struct {
	name         string
	responses    chan models.Response
	done         chan struct{}
	mu           sync.RWMutex
	intakeClosed bool
	sendStopped  bool
	closeOnce    sync.Once
}

func newInbox(name string) *inbox {
	return &inbox{
		name:      name,
		responses: make(chan models.Response, DefaultChannelBufferSize),
		done:      make(chan struct{}),
	}
}

// emit queues resp and reports whether it was accepted.
func (b *inbox) emit(resp models.Response) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.intakeClosed {
		slog.Warn(b.name+" dropping inbound response (intake closed)", "from", resp.From)
		return false
	}

	select {
	case b.responses <- resp:
		slog.Debug(b.name+" emitted inbound response", "from", resp.From, "body_length", len(resp.Body))
		return true
	case <-b.done:
		return false
	case <-time.After(DefaultChannelTimeout):
		slog.Warn(b.name+" responses channel blocked, dropping message", "from", resp.From, "timeout", DefaultChannelTimeout)
		return false
	}
}

// isStopped reports whether sending has been disabled.
func (b *inbox) isStopped() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sendStopped
}

// closeIntake stops accepting events and closes the channel. It is safe to call more than once.
func (b *inbox) closeIntake() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.mu.Lock()
		b.intakeClosed = true
		close(b.responses)
		b.mu.Unlock()
	})
}

// close closes the intake and disables sending.
func (b *inbox) close() {
	b.closeIntake()
	b.mu.Lock()
	b.sendStopped = true
	b.mu.Unlock()
}

// RenderPlainText flattens a reply for transports without reply keyboards: the button
// labels are appended as a list of accepted answers.
func RenderPlainText(reply models.Reply) string {
	options := reply.Options()
	if len(options) == 0 {
		return reply.Text
	}
	return reply.Text + "\n\nReply with: " + strings.Join(options, " / ")
}
