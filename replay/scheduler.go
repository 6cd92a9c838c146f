// Package replay drains a validated RunResult into a presenter in fixed-size
// batches at a fixed cadence, keeping cumulative metrics consistent with the
// entries emitted so far.
//
// Every tick is tagged with the generation it was scheduled under. Starting a
// new replay or cancelling bumps the active generation under the scheduler
// lock, so a tick that fires late compares its tag, finds it stale, and
// returns without touching any state. There is no cancelled flag.
package replay

import (
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/pithecene-io/crossflow/clock"
	"github.com/pithecene-io/crossflow/log"
	"github.com/pithecene-io/crossflow/metrics"
	"github.com/pithecene-io/crossflow/types"
)

// Default cadence parameters.
const (
	DefaultInterval  = 50 * time.Millisecond
	DefaultBatchSize = 4
)

// Config holds the replay cadence.
type Config struct {
	// Interval is the delay before each tick.
	Interval time.Duration
	// BatchSize is the number of entries per track emitted per tick.
	BatchSize int
}

// DefaultConfig returns the stock cadence.
func DefaultConfig() Config {
	return Config{Interval: DefaultInterval, BatchSize: DefaultBatchSize}
}

// Validate checks that the cadence is usable.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("replay interval must be > 0, got %v", c.Interval)
	}
	if c.BatchSize < 1 {
		return fmt.Errorf("replay batch size must be >= 1, got %d", c.BatchSize)
	}
	return nil
}

// Snapshot is a point-in-time view of the scheduler.
type Snapshot struct {
	Generation uint64         `json:"generation"`
	State      State          `json:"state"`
	Cursor     int            `json:"cursor"`
	Bound      int            `json:"bound"`
	Batches    int            `json:"batches"`
	Totals     metrics.Totals `json:"totals"`
}

// Scheduler is the single owner of the replay cursor and running metrics.
// All mutation flows through Start, Cancel, and ticks; each holds mu for its
// whole duration, so emissions of one generation never interleave with
// another's.
type Scheduler struct {
	clock     clock.Clock
	cfg       Config
	presenter Presenter
	logger    *log.Logger

	mu         sync.Mutex
	generation uint64 // last issued generation
	active     uint64 // generation allowed to tick; 0 when none
	state      State
	result     *types.RunResult
	bound      int
	cursor     int
	batches    int
	agg        metrics.Aggregator
	timer      clock.Timer
}

// New creates a scheduler. A nil presenter discards emissions; a nil logger
// disables logging. Invalid cadence values fall back to the defaults.
func New(clk clock.Clock, cfg Config, presenter Presenter, logger *log.Logger) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = DefaultBatchSize
	}
	if presenter == nil {
		presenter = Funcs{}
	}
	return &Scheduler{
		clock:     clk,
		cfg:       cfg,
		presenter: presenter,
		logger:    logger,
	}
}

// Start begins replaying result under a new generation and returns it.
// An active replay is cancelled first; its Finished notification is emitted
// before anything belonging to the new generation.
func (s *Scheduler) Start(result *types.RunResult) uint64 {
	if result == nil {
		result = &types.RunResult{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != 0 {
		s.cancelLocked()
	}

	s.generation++
	gen := s.generation
	s.active = gen
	s.state = StateReplaying
	s.result = result
	s.bound = result.ReplayLength()
	s.cursor = 0
	s.batches = 0
	s.agg.Reset()
	s.schedule(gen)

	s.logger.ForGeneration(gen).Debug("replay started", map[string]any{
		"bound":      s.bound,
		"truncated":  result.Truncated(),
		"batch_size": s.cfg.BatchSize,
		"interval":   s.cfg.Interval.String(),
	})
	return gen
}

// Cancel stops the active replay. It reports whether a replay was active.
func (s *Scheduler) Cancel() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active == 0 {
		return false
	}
	s.cancelLocked()
	return true
}

// Snapshot returns the current state.
func (s *Scheduler) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Generation: s.generation,
		State:      s.state,
		Cursor:     s.cursor,
		Bound:      s.bound,
		Batches:    s.batches,
		Totals:     s.agg.Totals(),
	}
}

// schedule arms the next tick for gen. Must be called with s.mu held.
func (s *Scheduler) schedule(gen uint64) {
	s.timer = s.clock.AfterFunc(s.cfg.Interval, func() { s.tick(gen) })
}

// cancelLocked must be called with s.mu held and an active generation.
func (s *Scheduler) cancelLocked() {
	gen := s.active
	s.active = 0
	s.stopTimer()
	s.state = StateCancelled

	s.logger.ForGeneration(gen).Info("replay cancelled", map[string]any{
		"cursor": s.cursor,
		"bound":  s.bound,
	})
	s.finish(gen, StateCancelled, nil)
}

func (s *Scheduler) stopTimer() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Scheduler) tick(gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Stale tick: a newer Start or a Cancel already owns the session.
	if gen != s.active {
		return
	}
	s.timer = nil

	if err := s.step(gen); err != nil {
		s.active = 0
		s.state = StateErrored
		runErr := types.NewEmissionError(err)
		s.logger.ForGeneration(gen).Error("replay errored", map[string]any{
			"cursor": s.cursor,
			"error":  err.Error(),
		})
		s.finish(gen, StateErrored, runErr)
		return
	}

	if s.cursor >= s.bound {
		s.active = 0
		s.state = StateCompleted
		s.logger.ForGeneration(gen).Debug("replay completed", map[string]any{
			"entries": s.cursor,
			"batches": s.batches,
		})
		s.finish(gen, StateCompleted, nil)
		return
	}

	s.schedule(gen)
}

// step emits the next batch. Panics from aggregation or the presenter are
// converted to errors so a bad tick terminates only its own generation.
func (s *Scheduler) step(gen uint64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(r)
		}
	}()

	if s.cursor >= s.bound {
		return nil
	}

	from := s.cursor
	to := min(from+s.cfg.BatchSize, s.bound)
	adaptive := s.result.Adaptive[from:to]
	fixed := s.result.Fixed[from:to]

	if err := s.agg.Add(adaptive, fixed); err != nil {
		return err
	}
	s.cursor = to
	s.batches++

	s.presenter.Batch(Batch{
		Generation: gen,
		From:       from,
		To:         to,
		Adaptive:   slices.Clone(adaptive),
		Fixed:      slices.Clone(fixed),
		Totals:     s.agg.Totals(),
	})
	return nil
}

// finish emits the terminal notification. A panicking presenter is logged
// and otherwise ignored; the state is already terminal.
func (s *Scheduler) finish(gen uint64, state State, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ForGeneration(gen).Error("presenter panicked on finish", map[string]any{
				"error": panicError(r).Error(),
			})
		}
	}()

	s.presenter.Finished(Terminal{
		Generation: gen,
		State:      state,
		Totals:     s.agg.Totals(),
		Cursor:     s.cursor,
		Bound:      s.bound,
		Batches:    s.batches,
		Err:        err,
	})
}

func panicError(r any) error {
	if err, ok := r.(error); ok {
		return fmt.Errorf("panic: %w", err)
	}
	return errors.New(fmt.Sprint("panic: ", r))
}
