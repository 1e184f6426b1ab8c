// Package flow implements the intake wizard: validators, the per-user conversation state
// store and the engine that moves a user through the steps of a flow.
package flow

import (
	"context"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

// StateStore holds exactly one ConversationState per user.
type StateStore interface {
	// Get returns the user's state, or an idle state if none exists.
	Get(ctx context.Context, userID string) (models.ConversationState, error)

	// Save replaces the user's state.
	Save(ctx context.Context, state models.ConversationState) error

	// Clear drops the user's state, returning them to idle.
	Clear(ctx context.Context, userID string) error
}

// Publisher fans a completed submission out to its sinks. A returned error means the
// primary sink failed and the submission did not complete.
type Publisher interface {
	Publish(ctx context.Context, sub models.Submission) error
}
