package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// InMemoryStateStore implements StateStore in process memory. Contents are lost on restart.
type InMemoryStateStore struct {
	mu     sync.RWMutex
	states map[string]models.ConversationState
	now    func() time.Time
}

// NewInMemoryStateStore creates an empty store.
func NewInMemoryStateStore() *InMemoryStateStore {
	slog.Debug("Creating InMemoryStateStore")
	return &InMemoryStateStore{
		states: make(map[string]models.ConversationState),
		now:    time.Now,
	}
}

// Get returns a copy of the user's state, or an idle state when none is stored.
func (s *InMemoryStateStore) Get(ctx context.Context, userID string) (models.ConversationState, error) {
	s.mu.RLock()
	st, ok := s.states[userID]
	s.mu.RUnlock()
	if !ok {
		return models.NewConversationState(userID), nil
	}
	return st.Clone(), nil
}

// Save stores a copy of state.
func (s *InMemoryStateStore) Save(ctx context.Context, state models.ConversationState) error {
	cp := state.Clone()
	cp.UpdatedAt = s.now()

	s.mu.Lock()
	s.states[state.UserID] = cp
	s.mu.Unlock()

	slog.Debug("StateStore Save", "userID", state.UserID, "flow", state.Flow, "step", state.Step, "fields", len(cp.Fields))
	return nil
}

// Clear removes the user's state.
func (s *InMemoryStateStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	delete(s.states, userID)
	s.mu.Unlock()

	slog.Debug("StateStore Clear", "userID", userID)
	return nil
}

// ActiveCount returns how many users are mid-flow.
func (s *InMemoryStateStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, st := range s.states {
		if st.Active() {
			n++
		}
	}
	return n
}
