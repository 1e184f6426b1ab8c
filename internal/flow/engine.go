package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/PigeonMail/internal/metrics"
	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/google/uuid"
)

// Engine errors.
var (
	ErrUnknownFlow          = errors.New("unknown flow kind")
	ErrUnknownStep          = errors.New("conversation is at an unknown step")
	ErrIncompleteSubmission = errors.New("submission is missing required fields")
	ErrPublishFailed        = errors.New("submission was not published")
)

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics records rejections and submissions into m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithClock overrides the time source used for CreatedAt.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator overrides how submission ids are generated.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// Engine moves users through the steps of a flow. It holds no per-user state itself;
// callers must not run two operations for the same user concurrently.
type Engine struct {
	states    StateStore
	publisher Publisher
	machine   *stepMachine
	metrics   *metrics.Metrics
	now       func() time.Time
	newID     func() string
}

// NewEngine creates an Engine over the given state store and publisher.
func NewEngine(states StateStore, publisher Publisher, opts ...Option) *Engine {
	e := &Engine{
		states:    states,
		publisher: publisher,
		machine:   newStepMachine(),
		now:       time.Now,
		newID:     uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Active reports whether the user is mid-flow.
func (e *Engine) Active(ctx context.Context, userID string) (bool, error) {
	st, err := e.states.Get(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("load state: %w", err)
	}
	return st.Active(), nil
}

// Start enters the first step of kind, discarding whatever the user had collected before.
func (e *Engine) Start(ctx context.Context, user models.User, kind models.FlowKind) (models.Reply, error) {
	def, err := DefinitionFor(kind)
	if err != nil {
		return models.Reply{}, err
	}
	st, err := e.states.Get(ctx, user.ID)
	if err != nil {
		return models.Reply{}, fmt.Errorf("load state: %w", err)
	}
	if st.Active() {
		slog.Info("Engine Start abandoning flow", "userID", user.ID, "from_flow", st.Flow, "from_step", st.Step, "to_flow", kind)
	}

	step, err := e.machine.fire(ctx, st.Step, eventStart)
	if err != nil {
		return models.Reply{}, err
	}
	next := models.NewConversationState(user.ID)
	next.Flow = kind
	next.Step = step
	if err := e.states.Save(ctx, next); err != nil {
		return models.Reply{}, fmt.Errorf("save state: %w", err)
	}

	slog.Info("Engine Start", "userID", user.ID, "flow", kind)
	return promptFor(def, step), nil
}

// Reset abandons the current flow. Resetting while idle changes nothing.
func (e *Engine) Reset(ctx context.Context, user models.User) (models.Reply, error) {
	st, err := e.states.Get(ctx, user.ID)
	if err != nil {
		return models.Reply{}, fmt.Errorf("load state: %w", err)
	}
	if !st.Active() {
		slog.Debug("Engine Reset while idle", "userID", user.ID)
		return MainMenu(nothingToCancel), nil
	}
	if _, err := e.machine.fire(ctx, st.Step, eventReset); err != nil {
		return models.Reply{}, err
	}
	if err := e.states.Clear(ctx, user.ID); err != nil {
		return models.Reply{}, fmt.Errorf("clear state: %w", err)
	}
	slog.Info("Engine Reset", "userID", user.ID, "flow", st.Flow, "step", st.Step, "discarded_fields", len(st.Fields))
	return MainMenu(cancelledText), nil
}

// Menu shows the main menu, abandoning any flow in progress.
func (e *Engine) Menu(ctx context.Context, user models.User) (models.Reply, error) {
	st, err := e.states.Get(ctx, user.ID)
	if err != nil {
		return models.Reply{}, fmt.Errorf("load state: %w", err)
	}
	if st.Active() {
		if err := e.states.Clear(ctx, user.ID); err != nil {
			return models.Reply{}, fmt.Errorf("clear state: %w", err)
		}
		slog.Info("Engine Menu abandoned flow", "userID", user.ID, "flow", st.Flow, "step", st.Step)
	}
	return MainMenu(welcomeText), nil
}

// Input applies text to the user's current step.
func (e *Engine) Input(ctx context.Context, user models.User, text string) (models.Reply, error) {
	st, err := e.states.Get(ctx, user.ID)
	if err != nil {
		return models.Reply{}, fmt.Errorf("load state: %w", err)
	}
	if !st.Active() {
		return MainMenu(guidanceText), nil
	}
	def, err := DefinitionFor(st.Flow)
	if err != nil {
		return models.Reply{}, err
	}
	spec, ok := specFor(st.Step)
	if !ok {
		return models.Reply{}, fmt.Errorf("%w: %q", ErrUnknownStep, st.Step)
	}

	value, err := spec.parse(text)
	if err != nil {
		var verr *ValidationError
		if errors.As(err, &verr) {
			e.metrics.ObserveRejection(string(verr.Field))
			slog.Debug("Engine Input rejected", "userID", user.ID, "step", st.Step, "reason", verr.Reason)
			return rejectionFor(spec), nil
		}
		return models.Reply{}, err
	}

	if isLastStep(st.Step) {
		return e.complete(ctx, user, st, DateValue{Canonical: value, Display: strings.TrimSpace(text)})
	}

	next, err := e.machine.fire(ctx, st.Step, eventAdvance)
	if err != nil {
		return models.Reply{}, err
	}
	st.Fields[spec.field] = value
	st.Step = next
	if err := e.states.Save(ctx, st); err != nil {
		return models.Reply{}, fmt.Errorf("save state: %w", err)
	}
	slog.Debug("Engine Input accepted", "userID", user.ID, "field", spec.field, "next", next)
	return promptFor(def, next), nil
}

// complete publishes the submission built from st and the accepted date.
//
// When the primary sink fails the conversation stays at the date step with every earlier
// field intact and no acknowledgment is sent; sending the date again retries the publish.
func (e *Engine) complete(ctx context.Context, user models.User, st models.ConversationState, date DateValue) (models.Reply, error) {
	sub, err := e.buildSubmission(user, st, date)
	if err != nil {
		return models.Reply{}, err
	}
	if _, err := e.machine.fire(ctx, st.Step, eventComplete); err != nil {
		return models.Reply{}, err
	}

	if err := e.publisher.Publish(ctx, sub); err != nil {
		e.metrics.ObserveSubmission(string(sub.Kind), "failed")
		slog.Error("Engine complete publish failed", "error", err, "userID", user.ID, "submissionID", sub.ID)
		return models.Reply{Text: publishFailedText}, fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	e.metrics.ObserveSubmission(string(sub.Kind), "published")
	slog.Info("Engine complete published", "userID", user.ID, "submissionID", sub.ID, "kind", sub.Kind)

	reply := MainMenu(publishedText)
	if err := e.states.Clear(ctx, user.ID); err != nil {
		return reply, fmt.Errorf("clear state after publish: %w", err)
	}
	return reply, nil
}

func (e *Engine) buildSubmission(user models.User, st models.ConversationState, date DateValue) (models.Submission, error) {
	var missing []string
	for _, s := range steps[:len(steps)-1] {
		if strings.TrimSpace(st.Fields[s.field]) == "" {
			missing = append(missing, string(s.field))
		}
	}
	if date.Canonical == "" || date.Display == "" {
		missing = append(missing, string(models.FieldDate))
	}
	if len(missing) > 0 {
		return models.Submission{}, fmt.Errorf("%w: %s", ErrIncompleteSubmission, strings.Join(missing, ", "))
	}

	return models.Submission{
		ID:          e.newID(),
		Kind:        st.Flow,
		UserID:      user.ID,
		Handle:      user.Handle,
		Size:        models.Size(st.Fields[models.FieldSize]),
		Name:        st.Fields[models.FieldName],
		FromCity:    st.Fields[models.FieldFromCity],
		ToCity:      st.Fields[models.FieldToCity],
		Date:        date.Canonical,
		DateDisplay: date.Display,
		CreatedAt:   e.now().UTC(),
	}, nil
}
