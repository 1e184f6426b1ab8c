package messaging

import (
	"context"
	"sync"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// SentReply is one message captured by MockService.
type SentReply struct {
	To    string
	Reply models.Reply
}

// MockService is an in-memory Service for tests and local runs.
type MockService struct {
	mu      sync.Mutex
	sent    []SentReply
	inbox   *inbox
	markup  models.Markup
	SendErr error
}

// NewMockService creates a MockService reporting the given markup.
func NewMockService(markup models.Markup) *MockService {
	return &MockService{inbox: newInbox("MockService"), markup: markup}
}

func (m *MockService) SendMessage(ctx context.Context, to string, reply models.Reply) error {
	if m.inbox.isStopped() {
		return ErrServiceStopped
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return m.SendErr
	}
	m.sent = append(m.sent, SentReply{To: to, Reply: reply})
	return nil
}

func (m *MockService) Start(ctx context.Context) error { return nil }

func (m *MockService) StopIntake() error {
	m.inbox.closeIntake()
	return nil
}

func (m *MockService) Stop() error {
	m.inbox.close()
	return nil
}

func (m *MockService) Responses() <-chan models.Response { return m.inbox.responses }

func (m *MockService) Markup() models.Markup { return m.markup }

// Deliver queues an inbound message.
func (m *MockService) Deliver(resp models.Response) bool {
	return m.inbox.emit(resp)
}

// Sent returns a copy of every message sent so far.
func (m *MockService) Sent() []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentReply(nil), m.sent...)
}

// SentTo returns the messages sent to one recipient.
func (m *MockService) SentTo(to string) []SentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentReply
	for _, s := range m.sent {
		if s.To == to {
			out = append(out, s)
		}
	}
	return out
}
