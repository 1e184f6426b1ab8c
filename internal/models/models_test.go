package models

import "testing"

func TestSizeLabels(t *testing.T) {
	tests := []struct {
		size Size
		want string
	}{
		{SizeS, "document"},
		{SizeM, "single item"},
		{SizeL, "several items"},
		{Size("XL"), "—"},
	}
	for _, tt := range tests {
		if got := tt.size.Label(); got != tt.want {
			t.Errorf("Size(%q).Label() = %q, want %q", tt.size, got, tt.want)
		}
	}
}

func TestSubmissionContact(t *testing.T) {
	tests := []struct {
		handle string
		want   string
	}{
		{"", ContactPlaceholder},
		{"   ", ContactPlaceholder},
		{"pigeon", "@pigeon"},
		{"@pigeon", "@pigeon"},
		{"+491701234567", "+491701234567"},
	}
	for _, tt := range tests {
		s := Submission{Handle: tt.handle}
		if got := s.Contact(); got != tt.want {
			t.Errorf("Contact() with handle %q = %q, want %q", tt.handle, got, tt.want)
		}
	}
}

func TestConversationStateActive(t *testing.T) {
	st := NewConversationState("42")
	if st.Active() {
		t.Fatal("new state should be idle")
	}
	st.Flow = FlowSend
	st.Step = StepAwaitingName
	if !st.Active() {
		t.Error("state with flow and awaiting step should be active")
	}
}

func TestConversationStateCloneIsolatesFields(t *testing.T) {
	st := NewConversationState("42")
	st.Fields[FieldName] = "Al"
	cp := st.Clone()
	cp.Fields[FieldName] = "Bo"
	if st.Fields[FieldName] != "Al" {
		t.Errorf("original mutated through clone: %q", st.Fields[FieldName])
	}
}

func TestReplyOptions(t *testing.T) {
	r := Reply{Keyboard: [][]string{{"S", "M"}, {"L"}}}
	got := r.Options()
	if len(got) != 3 || got[0] != "S" || got[2] != "L" {
		t.Errorf("Options() = %v", got)
	}
}

func TestFlowKindIsValid(t *testing.T) {
	if !FlowSend.IsValid() || !FlowDeliver.IsValid() {
		t.Error("send and deliver must be valid")
	}
	if FlowNone.IsValid() || FlowKind("other").IsValid() {
		t.Error("none and unknown kinds must be invalid")
	}
}
