package flow

import (
	"context"
	"testing"

	"github.com/BTreeMap/PigeonMail/internal/models"
)

func TestInMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStateStore()

	st, err := s.Get(ctx, "u1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if st.Active() || st.UserID != "u1" {
		t.Fatalf("expected idle state for u1, got %+v", st)
	}

	st.Flow = models.FlowSend
	st.Step = models.StepAwaitingName
	st.Fields[models.FieldSize] = "M"
	if err := s.Save(ctx, st); err != nil {
		t.Fatalf("Save: %v", err)
	}

	// Mutating the caller's copy must not leak into the store.
	st.Fields[models.FieldSize] = "L"

	got, _ := s.Get(ctx, "u1")
	if got.Fields[models.FieldSize] != "M" {
		t.Errorf("stored size = %q, want M", got.Fields[models.FieldSize])
	}
	if got.UpdatedAt.IsZero() {
		t.Error("expected UpdatedAt to be set")
	}
	if n := s.ActiveCount(); n != 1 {
		t.Errorf("ActiveCount = %d, want 1", n)
	}

	if err := s.Clear(ctx, "u1"); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, _ = s.Get(ctx, "u1")
	if got.Active() || len(got.Fields) != 0 {
		t.Errorf("expected idle state after Clear, got %+v", got)
	}
	if n := s.ActiveCount(); n != 0 {
		t.Errorf("ActiveCount = %d, want 0", n)
	}
}

func TestInMemoryStateStoreIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStateStore()

	a := models.NewConversationState("a")
	a.Flow, a.Step = models.FlowSend, models.StepAwaitingDate
	_ = s.Save(ctx, a)

	b, _ := s.Get(ctx, "b")
	if b.Active() {
		t.Error("user b should be idle")
	}
	_ = s.Clear(ctx, "b")
	if got, _ := s.Get(ctx, "a"); got.Step != models.StepAwaitingDate {
		t.Errorf("clearing b changed a: %+v", got)
	}
}
