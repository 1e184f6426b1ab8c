package messaging

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/BTreeMap/PigeonMail/internal/metrics"
	"github.com/BTreeMap/PigeonMail/internal/models"
)

// internalErrorText is sent when the engine fails without producing a reply.
const internalErrorText = "⚠️ We encountered an issue processing your message. Please try again."

// FlowEngine is the conversation logic driven by the Dispatcher.
type FlowEngine interface {
	Start(ctx context.Context, user models.User, kind models.FlowKind) (models.Reply, error)
	Reset(ctx context.Context, user models.User) (models.Reply, error)
	Menu(ctx context.Context, user models.User) (models.Reply, error)
	Input(ctx context.Context, user models.User, text string) (models.Reply, error)
	Active(ctx context.Context, userID string) (bool, error)
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithDispatcherMetrics records resolved triggers into m.
func WithDispatcherMetrics(m *metrics.Metrics) DispatcherOption {
	return func(d *Dispatcher) { d.metrics = m }
}

// Dispatcher routes inbound messages to the flow engine and sends the replies back.
// Messages from one user are handled in arrival order; different users run concurrently.
type Dispatcher struct {
	engine  FlowEngine
	svc     Service
	metrics *metrics.Metrics
	queue   *keyedQueue
	loop    sync.WaitGroup
}

// NewDispatcher creates a Dispatcher for engine replying through svc.
func NewDispatcher(engine FlowEngine, svc Service, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		engine: engine,
		svc:    svc,
		queue:  newKeyedQueue(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start begins consuming the service's responses until the channel closes or ctx is done.
func (d *Dispatcher) Start(ctx context.Context) {
	slog.Info("Dispatcher starting response processing")
	d.loop.Add(1)
	go func() {
		defer d.loop.Done()
		defer slog.Info("Dispatcher stopped response processing")
		for {
			select {
			case resp, ok := <-d.svc.Responses():
				if !ok {
					slog.Debug("Dispatcher responses channel closed")
					return
				}
				d.Submit(ctx, resp)
			case <-ctx.Done():
				slog.Debug("Dispatcher stopping due to context cancellation")
				return
			}
		}
	}()
}

// Submit queues resp behind earlier messages from the same user.
func (d *Dispatcher) Submit(ctx context.Context, resp models.Response) {
	d.queue.Enqueue(resp.From, func() {
		if err := d.ProcessResponse(ctx, resp); err != nil {
			slog.Error("Dispatcher failed to process response", "error", err, "from", resp.From)
		}
	})
}

// Wait blocks until the consume loop has exited and every queued message is handled.
func (d *Dispatcher) Wait() {
	d.loop.Wait()
	d.queue.Wait()
}

// ProcessResponse handles one message synchronously. When the engine fails the reply it
// produced, or a generic error notice, is still sent.
func (d *Dispatcher) ProcessResponse(ctx context.Context, resp models.Response) error {
	user := models.User{ID: resp.From, Handle: resp.Handle}
	trig := ResolveTrigger(resp.Body)
	d.metrics.ObserveEvent(trig.Kind.String())
	slog.Debug("Dispatcher processing response", "from", user.ID, "trigger", trig.Kind, "command", trig.Command)

	reply, err := d.route(ctx, user, trig, resp.Body)
	if err != nil {
		slog.Error("Dispatcher engine failed", "error", err, "from", user.ID, "trigger", trig.Kind)
		if reply.Text == "" {
			reply = models.Reply{Text: internalErrorText}
		}
	}
	if reply.Text == "" {
		return err
	}

	if sendErr := d.svc.SendMessage(ctx, user.ID, reply); sendErr != nil {
		slog.Error("Dispatcher failed to send reply", "error", sendErr, "to", user.ID)
		if err == nil {
			return fmt.Errorf("failed to send reply: %w", sendErr)
		}
	}
	return err
}

func (d *Dispatcher) route(ctx context.Context, user models.User, trig Trigger, text string) (models.Reply, error) {
	switch trig.Kind {
	case TriggerReset:
		return d.engine.Reset(ctx, user)
	case TriggerStart:
		return d.engine.Start(ctx, user, trig.Flow)
	case TriggerCommand:
		active, err := d.engine.Active(ctx, user.ID)
		if err != nil {
			return models.Reply{}, err
		}
		if active || menuCommands[trig.Command] {
			return d.engine.Menu(ctx, user)
		}
		return d.engine.Input(ctx, user, text)
	default:
		return d.engine.Input(ctx, user, text)
	}
}
