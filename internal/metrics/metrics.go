// Package metrics defines the Prometheus metrics exported by PigeonMail.
//
// A Metrics value is created once per process and injected into the components that
// record into it. All recording methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pigeonmail"

// Metrics groups the counters and histograms of the intake pipeline.
type Metrics struct {
	EventsReceived       *prometheus.CounterVec
	ValidationRejections *prometheus.CounterVec
	Submissions          *prometheus.CounterVec
	SinkErrors           *prometheus.CounterVec
	SinkDuration         *prometheus.HistogramVec
}

// New creates the metrics and registers them with reg. A nil reg skips registration.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		EventsReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "dispatcher",
				Name:      "events_total",
				Help:      "Incoming chat events by resolved trigger",
			},
			[]string{"trigger"},
		),
		ValidationRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "validation_rejections_total",
				Help:      "Inputs rejected by a step validator",
			},
			[]string{"field"},
		),
		Submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "flow",
				Name:      "submissions_total",
				Help:      "Completed flows by kind and publish outcome",
			},
			[]string{"kind", "outcome"},
		),
		SinkErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "errors_total",
				Help:      "Failed sink appends",
			},
			[]string{"sink"},
		),
		SinkDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "sink",
				Name:      "append_duration_seconds",
				Help:      "Duration of sink appends",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"sink"},
		),
	}
	if reg != nil {
		reg.MustRegister(m.EventsReceived, m.ValidationRejections, m.Submissions, m.SinkErrors, m.SinkDuration)
	}
	return m
}

// ObserveEvent counts one incoming event.
func (m *Metrics) ObserveEvent(trigger string) {
	if m == nil {
		return
	}
	m.EventsReceived.WithLabelValues(trigger).Inc()
}

// ObserveRejection counts one rejected input.
func (m *Metrics) ObserveRejection(field string) {
	if m == nil {
		return
	}
	m.ValidationRejections.WithLabelValues(field).Inc()
}

// ObserveSubmission counts one completed flow; outcome is "published" or "failed".
func (m *Metrics) ObserveSubmission(kind, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(kind, outcome).Inc()
}

// ObserveSink records one sink append.
func (m *Metrics) ObserveSink(sink string, took time.Duration, err error) {
	if m == nil {
		return
	}
	m.SinkDuration.WithLabelValues(sink).Observe(took.Seconds())
	if err != nil {
		m.SinkErrors.WithLabelValues(sink).Inc()
	}
}
