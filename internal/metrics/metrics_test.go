package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveEvent("text")
	m.ObserveRejection("size")
	m.ObserveSubmission("want_to_send", "published")
	m.ObserveSink("jsonl", time.Millisecond, errors.New("boom"))
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveEvent("reset")
	m.ObserveEvent("reset")
	m.ObserveRejection("date")
	m.ObserveSubmission("can_deliver", "published")
	m.ObserveSink("sheets", 10*time.Millisecond, errors.New("unavailable"))
	m.ObserveSink("sheets", 10*time.Millisecond, nil)

	if got := testutil.ToFloat64(m.EventsReceived.WithLabelValues("reset")); got != 2 {
		t.Errorf("events reset = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.ValidationRejections.WithLabelValues("date")); got != 1 {
		t.Errorf("rejections date = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Submissions.WithLabelValues("can_deliver", "published")); got != 1 {
		t.Errorf("submissions = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.SinkErrors.WithLabelValues("sheets")); got != 1 {
		t.Errorf("sink errors = %v, want 1", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Error("expected registered metric families")
	}
}
