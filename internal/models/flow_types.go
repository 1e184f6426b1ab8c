// Package models defines flow type definitions shared by the flow engine and transports.
package models

// FlowKind identifies which wizard a conversation is running.
type FlowKind string

// Step represents a position within a flow's step sequence.
type Step string

// Field names a value collected by one step.
type Field string

// Flow kind constants. FlowNone means no wizard is active.
const (
	FlowNone    FlowKind = ""
	FlowSend    FlowKind = "want_to_send"
	FlowDeliver FlowKind = "can_deliver"
)

// Step constants, in flow order.
const (
	StepIdle             Step = "idle"
	StepAwaitingSize     Step = "awaiting_size"
	StepAwaitingName     Step = "awaiting_name"
	StepAwaitingFromCity Step = "awaiting_from_city"
	StepAwaitingToCity   Step = "awaiting_to_city"
	StepAwaitingDate     Step = "awaiting_date"
)

// Field constants.
const (
	FieldSize     Field = "size"
	FieldName     Field = "name"
	FieldFromCity Field = "from_city"
	FieldToCity   Field = "to_city"
	FieldDate     Field = "date"
)

// IsValid reports whether k names a real flow (FlowNone is not one).
func (k FlowKind) IsValid() bool {
	switch k {
	case FlowSend, FlowDeliver:
		return true
	default:
		return false
	}
}
