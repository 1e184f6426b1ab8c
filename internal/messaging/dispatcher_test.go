package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/BTreeMap/PigeonMail/internal/flow"
	"github.com/BTreeMap/PigeonMail/internal/metrics"
	"github.com/BTreeMap/PigeonMail/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

type recordingPublisher struct {
	mu   sync.Mutex
	subs []models.Submission
	err  error
}

func (p *recordingPublisher) Publish(ctx context.Context, sub models.Submission) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.subs = append(p.subs, sub)
	return nil
}

func (p *recordingPublisher) published() []models.Submission {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]models.Submission(nil), p.subs...)
}

type dispatcherFixture struct {
	svc    *MockService
	pub    *recordingPublisher
	states *flow.InMemoryStateStore
	disp   *Dispatcher
	m      *metrics.Metrics
}

func newDispatcherFixture() *dispatcherFixture {
	f := &dispatcherFixture{
		svc:    NewMockService(models.MarkupHTML),
		pub:    &recordingPublisher{},
		states: flow.NewInMemoryStateStore(),
		m:      metrics.New(prometheus.NewRegistry()),
	}
	engine := flow.NewEngine(f.states, f.pub, flow.WithMetrics(f.m))
	f.disp = NewDispatcher(engine, f.svc, WithDispatcherMetrics(f.m))
	return f
}

func (f *dispatcherFixture) say(t *testing.T, from, text string) models.Reply {
	t.Helper()
	before := len(f.svc.SentTo(from))
	_ = f.disp.ProcessResponse(context.Background(), models.Response{From: from, Handle: "h" + from, Body: text})
	sent := f.svc.SentTo(from)
	if len(sent) != before+1 {
		t.Fatalf("%q produced %d replies, want 1", text, len(sent)-before)
	}
	return sent[len(sent)-1].Reply
}

func (f *dispatcherFixture) step(from string) models.Step {
	st, _ := f.states.Get(context.Background(), from)
	return st.Step
}

func TestDispatcherFullFlowViaKeywords(t *testing.T) {
	f := newDispatcherFixture()

	f.say(t, "1", "/start")
	f.say(t, "1", "can deliver")
	for _, in := range []string{"s", "Al", "NY", "LA"} {
		f.say(t, "1", in)
	}
	reply := f.say(t, "1", "07.02.2026")
	if !strings.Contains(reply.Text, "published") {
		t.Errorf("final reply = %q, want acknowledgment", reply.Text)
	}

	subs := f.pub.published()
	if len(subs) != 1 {
		t.Fatalf("published %d, want 1", len(subs))
	}
	if subs[0].Kind != models.FlowDeliver || subs[0].Handle != "h1" || subs[0].Date != "2026-02-07" {
		t.Errorf("unexpected submission: %+v", subs[0])
	}
	if got := testutil.ToFloat64(f.m.EventsReceived.WithLabelValues("text")); got != 5 {
		t.Errorf("text events = %v, want 5", got)
	}
}

func TestDispatcherResetBeatsStateInput(t *testing.T) {
	f := newDispatcherFixture()
	f.say(t, "2", "/send")
	f.say(t, "2", "M")

	// "cancel" is also a valid name; reset must win.
	f.say(t, "2", "cancel")
	if got := f.step("2"); got != models.StepIdle {
		t.Errorf("step after cancel = %q, want idle", got)
	}
	reply := f.say(t, "2", "/cancel")
	if !strings.Contains(reply.Text, "nothing to cancel") {
		t.Errorf("second cancel = %q", reply.Text)
	}
}

func TestDispatcherStartSwitchesFlow(t *testing.T) {
	f := newDispatcherFixture()
	f.say(t, "3", "/deliver")
	f.say(t, "3", "L")
	f.say(t, "3", "want to send")

	st, _ := f.states.Get(context.Background(), "3")
	if st.Flow != models.FlowSend || st.Step != models.StepAwaitingSize || len(st.Fields) != 0 {
		t.Errorf("state after switching = %+v", st)
	}
}

func TestDispatcherCommandMidFlowShowsMenu(t *testing.T) {
	f := newDispatcherFixture()
	f.say(t, "4", "/send")
	f.say(t, "4", "S")

	reply := f.say(t, "4", "/whatever")
	if len(reply.Keyboard) != 2 {
		t.Errorf("expected main menu, got %+v", reply)
	}
	if got := f.step("4"); got != models.StepIdle {
		t.Errorf("step = %q, want idle", got)
	}
}

func TestDispatcherIdleInput(t *testing.T) {
	f := newDispatcherFixture()

	guidance := f.say(t, "5", "hello there")
	if !strings.Contains(guidance.Text, "/start") {
		t.Errorf("idle text reply = %q, want guidance", guidance.Text)
	}
	unknown := f.say(t, "5", "/unknown")
	if unknown.Text != guidance.Text {
		t.Errorf("idle unknown command = %q, want guidance", unknown.Text)
	}
	menu := f.say(t, "5", "/help")
	if len(menu.Keyboard) != 2 {
		t.Errorf("/help should show the menu, got %+v", menu)
	}
}

func TestDispatcherPrimaryFailure(t *testing.T) {
	f := newDispatcherFixture()
	f.pub.err = errors.New("channel down")

	f.say(t, "6", "/send")
	for _, in := range []string{"M", "Ann", "Oslo", "Rome"} {
		f.say(t, "6", in)
	}
	err := f.disp.ProcessResponse(context.Background(), models.Response{From: "6", Body: "1.1.2027"})
	if !errors.Is(err, flow.ErrPublishFailed) {
		t.Fatalf("error = %v, want ErrPublishFailed", err)
	}
	sent := f.svc.SentTo("6")
	last := sent[len(sent)-1].Reply.Text
	if strings.Contains(last, "published in the channel") || !strings.Contains(last, "send the date again") {
		t.Errorf("failure reply = %q", last)
	}
	if got := f.step("6"); got != models.StepAwaitingDate {
		t.Errorf("step = %q, want awaiting_date", got)
	}
}

type failingEngine struct{ *flow.Engine }

func (failingEngine) Input(ctx context.Context, user models.User, text string) (models.Reply, error) {
	return models.Reply{}, fmt.Errorf("store offline")
}

func (failingEngine) Active(ctx context.Context, userID string) (bool, error) {
	return false, nil
}

func TestDispatcherSendsNoticeWhenEngineFails(t *testing.T) {
	svc := NewMockService(models.MarkupNone)
	d := NewDispatcher(failingEngine{}, svc)

	err := d.ProcessResponse(context.Background(), models.Response{From: "7", Body: "hi"})
	if err == nil {
		t.Fatal("expected engine error")
	}
	sent := svc.SentTo("7")
	if len(sent) != 1 || sent[0].Reply.Text != internalErrorText {
		t.Errorf("sent = %+v, want error notice", sent)
	}
}

func TestDispatcherLoopSerializesUsers(t *testing.T) {
	f := newDispatcherFixture()
	ctx := context.Background()
	f.disp.Start(ctx)

	users := []string{"10", "11", "12", "13"}
	for _, u := range users {
		for _, in := range []string{"/send", "M", "Name" + u, "Oslo", "Rome", "02.02.2026"} {
			if !f.svc.Deliver(models.Response{From: u, Body: in}) {
				t.Fatalf("Deliver(%q) dropped", in)
			}
		}
	}
	_ = f.svc.StopIntake()
	f.disp.Wait()

	subs := f.pub.published()
	if len(subs) != len(users) {
		t.Fatalf("published %d, want %d", len(subs), len(users))
	}
	for _, sub := range subs {
		if sub.Name != "Name"+sub.UserID {
			t.Errorf("fields crossed between users: %+v", sub)
		}
	}
	for _, u := range users {
		if n := len(f.svc.SentTo(u)); n != 6 {
			t.Errorf("user %s got %d replies, want 6", u, n)
		}
	}
}
