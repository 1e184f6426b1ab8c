// Package models defines the core data structures for PigeonMail.
//
// It includes inbound chat events, outbound replies, submissions and the API response
// envelope, which are shared across modules.
package models

// Markup tells a transport how to render a message body.
type Markup string

const (
	// MarkupNone sends the text verbatim.
	MarkupNone Markup = ""
	// MarkupHTML enables Telegram HTML parse mode.
	MarkupHTML Markup = "html"
	// MarkupWhatsApp uses WhatsApp's *bold* style; no escaping is applied.
	MarkupWhatsApp Markup = "whatsapp"
)

// Response represents an incoming text message from a chat user.
type Response struct {
	From   string `json:"from"`
	Handle string `json:"handle,omitempty"`
	Body   string `json:"body"`
	Time   int64  `json:"time"`
}

// Reply is an outbound message together with the keyboard the transport should show.
type Reply struct {
	Text            string     `json:"text"`
	Markup          Markup     `json:"markup,omitempty"`
	Keyboard        [][]string `json:"keyboard,omitempty"`
	OneTimeKeyboard bool       `json:"one_time_keyboard,omitempty"`
	Placeholder     string     `json:"placeholder,omitempty"`
	RemoveKeyboard  bool       `json:"remove_keyboard,omitempty"`
}

// Options flattens the keyboard into a single list of button labels.
func (r Reply) Options() []string {
	var out []string
	for _, row := range r.Keyboard {
		out = append(out, row...)
	}
	return out
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}
