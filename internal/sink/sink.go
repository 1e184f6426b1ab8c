// Package sink delivers completed submissions to the broadcast channel and the durable logs.
//
// The channel poster is the primary sink: a submission is published only when it succeeds.
// Every other sink is best-effort and runs only after the primary succeeded.
package sink

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/BTreeMap/PigeonMail/internal/metrics"
	"github.com/BTreeMap/PigeonMail/internal/models"
)

// ErrPrimarySink wraps every failure of the primary sink.
var ErrPrimarySink = errors.New("primary sink failed")

// Sink performs one side effect for a finalized submission.
type Sink interface {
	Name() string
	Append(ctx context.Context, sub models.Submission) error
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline)

// WithMetrics records sink durations and failures into m.
func WithMetrics(m *metrics.Metrics) PipelineOption {
	return func(p *Pipeline) { p.metrics = m }
}

// Pipeline fans a submission out to the primary sink and then the best-effort sinks.
type Pipeline struct {
	primary    Sink
	bestEffort []Sink
	metrics    *metrics.Metrics
}

// NewPipeline creates a Pipeline. Best-effort sinks run in the given order.
func NewPipeline(primary Sink, bestEffort []Sink, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{primary: primary, bestEffort: bestEffort}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish appends sub to the primary sink and, only if that succeeded, to each best-effort
// sink. Best-effort failures are logged and never returned.
func (p *Pipeline) Publish(ctx context.Context, sub models.Submission) error {
	if p.primary == nil {
		return fmt.Errorf("%w: no primary sink configured", ErrPrimarySink)
	}
	if err := p.run(ctx, p.primary, sub); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrPrimarySink, p.primary.Name(), err)
	}

	for _, s := range p.bestEffort {
		if err := p.run(ctx, s, sub); err != nil {
			slog.Warn("Pipeline best-effort sink failed", "sink", s.Name(), "error", err, "submissionID", sub.ID)
		}
	}
	slog.Debug("Pipeline Publish done", "submissionID", sub.ID, "best_effort", len(p.bestEffort))
	return nil
}

// run calls s with panics converted to errors.
func (p *Pipeline) run(ctx context.Context, s Sink, sub models.Submission) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("sink panicked: %v", r)
		}
		p.metrics.ObserveSink(s.Name(), time.Since(start), err)
	}()
	return s.Append(ctx, sub)
}

// Names lists the sinks in call order.
func (p *Pipeline) Names() []string {
	var names []string
	if p.primary != nil {
		names = append(names, p.primary.Name())
	}
	for _, s := range p.bestEffort {
		names = append(names, s.Name())
	}
	return names
}

// Close releases sinks that hold resources.
func (p *Pipeline) Close() error {
	var errs []error
	all := append([]Sink{p.primary}, p.bestEffort...)
	for _, s := range all {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close %s: %w", s.Name(), err))
			}
		}
	}
	return errors.Join(errs...)
}
