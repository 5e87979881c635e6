package reports

import (
	"context"
	"errors"
	"fmt"
	"time"

	"carbon-scribe/mrv/mrv-backend/internal/carbon/calculation"
)

// Sink persists or forwards a finished verification report
type Sink interface {
	Name() string
	Store(ctx context.Context, report *calculation.VerificationReport) error
}

// MultiSink fans a report out to several sinks. Every sink is attempted;
// failures are joined.
type MultiSink struct {
	sinks   []Sink
	timeout time.Duration
}

// NewMultiSink creates a sink over the given sinks, skipping nil entries
func NewMultiSink(sinks ...Sink) *MultiSink {
	m := &MultiSink{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Name returns the sink name
func (m *MultiSink) Name() string {
	return "multi"
}

// WithTimeout bounds each Store call to d. Zero disables the bound.
func (m *MultiSink) WithTimeout(d time.Duration) *MultiSink {
	m.timeout = d
	return m
}

// Len returns the number of wrapped sinks
func (m *MultiSink) Len() int {
	return len(m.sinks)
}

// Store sends the report to every wrapped sink
func (m *MultiSink) Store(ctx context.Context, report *calculation.VerificationReport) error {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	var errs []error
	for _, s := range m.sinks {
		if err := s.Store(ctx, report); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
