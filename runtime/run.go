package runtime

import (
	"context"
	"time"

	"github.com/pithecene-io/crossflow/capacity"
)

// Run is one replay generation started by a Session.
type Run struct {
	// Generation is the replay generation this run owns.
	Generation uint64
	// StartedAt is when the launch began, on the session clock.
	StartedAt time.Time

	info   runInfo
	done   chan struct{}
	report *Report
}

func newRun(gen uint64, info runInfo) *Run {
	return &Run{
		Generation: gen,
		StartedAt:  info.startedAt,
		info:       info,
		done:       make(chan struct{}),
	}
}

// Estimate returns the capacity estimate evaluated before the request, or
// nil for runs started from a recording.
func (r *Run) Estimate() *capacity.Estimate {
	return r.info.estimate
}

// Done is closed once the run's report is available.
func (r *Run) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the run reaches a terminal state and its side effects
// (publish, archive) have been attempted.
func (r *Run) Wait(ctx context.Context) (*Report, error) {
	select {
	case <-r.done:
		return r.report, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// finish must be called exactly once.
func (r *Run) finish(report *Report) {
	r.report = report
	close(r.done)
}
