// Package models defines state management structures for PigeonMail flows.
package models

import "time"

// User identifies the chatting party as seen by the transport.
type User struct {
	ID     string `json:"id"`
	Handle string `json:"handle,omitempty"` // public contact name, may be empty
}

// ConversationState is the per-user dialog slot. Only fields of completed steps are present.
type ConversationState struct {
	UserID    string           `json:"user_id"`
	Flow      FlowKind         `json:"flow"`
	Step      Step             `json:"step"`
	Fields    map[Field]string `json:"fields,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// NewConversationState returns an idle state for the user.
func NewConversationState(userID string) ConversationState {
	return ConversationState{
		UserID: userID,
		Flow:   FlowNone,
		Step:   StepIdle,
		Fields: make(map[Field]string),
	}
}

// Active reports whether a flow is in progress.
func (s ConversationState) Active() bool {
	return s.Flow != FlowNone && s.Step != StepIdle && s.Step != ""
}

// Clone returns a copy whose Fields map can be mutated independently.
func (s ConversationState) Clone() ConversationState {
	out := s
	out.Fields = make(map[Field]string, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	return out
}
