package models

import (
	"strings"
	"time"
)

// Size is the parcel size code offered in the size step.
type Size string

const (
	SizeS Size = "S"
	SizeM Size = "M"
	SizeL Size = "L"
)

// Sizes lists the accepted size codes in display order.
var Sizes = []Size{SizeS, SizeM, SizeL}

// Label returns the human description of the size code.
func (s Size) Label() string {
	switch s {
	case SizeS:
		return "document"
	case SizeM:
		return "single item"
	case SizeL:
		return "several items"
	default:
		return "—"
	}
}

// ContactPlaceholder is shown in broadcasts when the user has no public handle.
const ContactPlaceholder = "—"

// Submission is the immutable record produced by a completed flow.
type Submission struct {
	ID          string    `json:"id"`
	Kind        FlowKind  `json:"kind"`
	UserID      string    `json:"user_id"`
	Handle      string    `json:"username,omitempty"`
	Size        Size      `json:"size"`
	Name        string    `json:"name"`
	FromCity    string    `json:"from_city"`
	ToCity      string    `json:"to_city"`
	Date        string    `json:"date"`         // canonical YYYY-MM-DD
	DateDisplay string    `json:"date_display"` // as the user typed it
	CreatedAt   time.Time `json:"created_at"`
}

// Contact renders the public contact for broadcasts: "@handle" for usernames, phone numbers
// verbatim, the placeholder when there is none.
func (s Submission) Contact() string {
	handle := strings.TrimSpace(s.Handle)
	switch {
	case handle == "":
		return ContactPlaceholder
	case strings.HasPrefix(handle, "+"), strings.HasPrefix(handle, "@"):
		return handle
	default:
		return "@" + handle
	}
}
