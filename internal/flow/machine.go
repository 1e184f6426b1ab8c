package flow

import (
	"context"
	"errors"
	"fmt"

	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/looplab/fsm"
)

// Step machine events.
const (
	eventStart    = "start"
	eventAdvance  = "advance"
	eventComplete = "complete"
	eventReset    = "reset"
)

// stepMachine describes the legal step transitions. Both flow kinds share it.
type stepMachine struct {
	events fsm.Events
}

func newStepMachine() *stepMachine {
	awaiting := make([]string, 0, len(steps))
	for _, s := range steps {
		awaiting = append(awaiting, string(s.step))
	}
	idle := string(models.StepIdle)
	first, last := awaiting[0], awaiting[len(awaiting)-1]

	events := fsm.Events{
		{Name: eventStart, Src: append([]string{idle}, awaiting...), Dst: first},
		{Name: eventReset, Src: awaiting, Dst: idle},
		{Name: eventComplete, Src: []string{last}, Dst: idle},
	}
	for i := 0; i+1 < len(awaiting); i++ {
		events = append(events, fsm.EventDesc{Name: eventAdvance, Src: []string{awaiting[i]}, Dst: awaiting[i+1]})
	}
	return &stepMachine{events: events}
}

// fire applies event to a machine positioned at from and returns the resulting step.
// Re-entering the current step (start while already at the first step) is not an error.
func (m *stepMachine) fire(ctx context.Context, from models.Step, event string) (models.Step, error) {
	if from == "" {
		from = models.StepIdle
	}
	f := fsm.NewFSM(string(from), m.events, fsm.Callbacks{})
	if err := f.Event(ctx, event); err != nil {
		var noTransition fsm.NoTransitionError
		if !errors.As(err, &noTransition) {
			return from, fmt.Errorf("step transition %q from %s: %w", event, from, err)
		}
	}
	return models.Step(f.Current()), nil
}
