// Package runtime owns the run session: it validates a configuration,
// performs the bounded simulation request, hands the result to the replay
// scheduler, and turns each terminal notification into a Report that is
// published and archived.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pithecene-io/crossflow/adapter"
	"github.com/pithecene-io/crossflow/capacity"
	"github.com/pithecene-io/crossflow/client"
	"github.com/pithecene-io/crossflow/clock"
	"github.com/pithecene-io/crossflow/log"
	"github.com/pithecene-io/crossflow/metrics"
	"github.com/pithecene-io/crossflow/replay"
	"github.com/pithecene-io/crossflow/types"
)

// DefaultPublishTimeout bounds a single adapter publish.
const DefaultPublishTimeout = 10 * time.Second

// ErrSessionClosed is returned by Launch and Replay after Close.
var ErrSessionClosed = errors.New("session closed")

// Requester performs one simulation request. *client.Client implements it.
type Requester interface {
	Run(ctx context.Context, cfg *types.SimConfig) (*client.Result, error)
}

// Archiver persists finished run reports.
type Archiver interface {
	Put(ctx context.Context, report *Report) error
}

// SessionConfig configures a Session.
type SessionConfig struct {
	// SessionID identifies the session in logs, events and the archive.
	// If empty, a random UUID is used.
	SessionID string
	// Requester performs simulation requests. Required for Launch only.
	Requester Requester
	// Clock drives replay timing and report timestamps. Nil means wall clock.
	Clock clock.Clock
	// Replay is the replay cadence.
	Replay replay.Config
	// Presenter receives replay emissions. May be nil.
	Presenter replay.Presenter
	// Logger may be nil.
	Logger *log.Logger
	// Collector may be nil; all Collector methods are nil-safe.
	Collector *metrics.Collector
	// Adapter publishes a completion event per run. May be nil.
	Adapter adapter.Adapter
	// Archive stores a report per run. May be nil.
	Archive Archiver
	// PublishTimeout bounds each adapter publish and archive write.
	// Zero means DefaultPublishTimeout.
	PublishTimeout time.Duration
}

// NewSessionID returns a random session identifier.
func NewSessionID() string {
	return uuid.NewString()
}

// Session holds exactly one active replay generation at a time.
//
// Terminal notifications are queued by the scheduler's presenter and
// processed on a separate goroutine, so publishing and archiving never run
// under the scheduler lock.
type Session struct {
	id             string
	requester      Requester
	clock          clock.Clock
	scheduler      *replay.Scheduler
	logger         *log.Logger
	collector      *metrics.Collector
	adapter        adapter.Adapter
	archive        Archiver
	publishTimeout time.Duration

	mu     sync.Mutex
	runs   map[uint64]*Run
	closed bool

	qmu    sync.Mutex
	queue  []replay.Terminal
	signal chan struct{}

	stop      chan struct{}
	finished  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewSession creates a session and starts its terminal processor.
// Callers must Close the session.
func NewSession(cfg SessionConfig) *Session {
	if cfg.SessionID == "" {
		cfg.SessionID = NewSessionID()
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.NewReal()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.NewNop()
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = DefaultPublishTimeout
	}

	s := &Session{
		id:             cfg.SessionID,
		requester:      cfg.Requester,
		clock:          cfg.Clock,
		logger:         cfg.Logger,
		collector:      cfg.Collector,
		adapter:        cfg.Adapter,
		archive:        cfg.Archive,
		publishTimeout: cfg.PublishTimeout,
		runs:           make(map[uint64]*Run),
		signal:         make(chan struct{}, 1),
		stop:           make(chan struct{}),
		finished:       make(chan struct{}),
	}

	// The terminal hook goes first so a failing presenter cannot starve it.
	presenter := replay.Presenters(replay.Funcs{OnFinished: s.enqueue}, cfg.Presenter)
	s.scheduler = replay.New(cfg.Clock, cfg.Replay, presenter, cfg.Logger)

	go s.process()
	return s
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Launch validates cfg, performs the simulation request and starts a replay
// of its result, superseding any active replay.
//
// On failure the classified error is returned (a *types.RunError for request
// failures, ErrInvalidConfig for rejected input) and the session is left as
// it was: an active replay keeps running.
func (s *Session) Launch(ctx context.Context, cfg *types.SimConfig) (*Run, error) {
	if s.requester == nil {
		return nil, errors.New("session has no requester")
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: nil config", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if s.isClosed() {
		return nil, ErrSessionClosed
	}

	startedAt := s.clock.Now()
	estimate := capacity.Evaluate(cfg.Capacity())
	if estimate.GridlockImminent() {
		s.logger.Warn("demand exceeds estimated capacity", map[string]any{
			"demand":   estimate.Demand,
			"capacity": estimate.Capacity,
			"ratio":    estimate.Ratio,
		})
	}

	s.logger.Info("requesting simulation", map[string]any{
		"total_cycles": cfg.TotalCycles,
		"mode":         string(cfg.Mode),
	})
	s.collector.IncRunLaunched()

	res, err := s.requester.Run(ctx, cfg)
	if err != nil {
		s.recordRequestFailure(err)
		return nil, err
	}

	s.collector.AddEntriesDropped(res.Stats.Dropped())
	if dropped := res.Stats.Dropped(); dropped > 0 {
		s.logger.Warn("dropped malformed log rows", map[string]any{
			"adaptive": res.Stats.AdaptiveDropped,
			"fixed":    res.Stats.FixedDropped,
		})
	}

	return s.start(res.Run, runInfo{
		sessionID: s.id,
		startedAt: startedAt,
		truncated: res.Run.Truncated(),
		dropped:   res.Stats.Dropped(),
		estimate:  &estimate,
	})
}

// Replay starts a replay of an already validated result, such as a
// recording, without contacting the service.
func (s *Session) Replay(result *types.RunResult) (*Run, error) {
	if result == nil {
		result = &types.RunResult{}
	}
	if s.isClosed() {
		return nil, ErrSessionClosed
	}
	s.collector.IncRunLaunched()
	return s.start(result, runInfo{
		sessionID: s.id,
		startedAt: s.clock.Now(),
		truncated: result.Truncated(),
	})
}

func (s *Session) start(result *types.RunResult, info runInfo) (*Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	// Registration happens under mu so the processor cannot see this
	// generation's terminal before the run exists.
	gen := s.scheduler.Start(result)
	run := newRun(gen, info)
	s.runs[gen] = run

	s.logger.ForGeneration(gen).Info("replay launched", map[string]any{
		"bound":     result.ReplayLength(),
		"truncated": info.truncated,
		"dropped":   info.dropped,
	})
	return run, nil
}

// Cancel stops the active replay. It reports whether one was active.
func (s *Session) Cancel() bool {
	return s.scheduler.Cancel()
}

// Snapshot returns the scheduler's current state.
func (s *Session) Snapshot() replay.Snapshot {
	return s.scheduler.Snapshot()
}

// Close cancels the active replay, waits for pending terminal notifications
// to be processed and closes the adapter.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closed = true
		s.mu.Unlock()

		s.scheduler.Cancel()
		close(s.stop)
		<-s.finished

		if s.adapter != nil {
			s.closeErr = s.adapter.Close()
		}
		_ = s.logger.Sync()
	})
	return s.closeErr
}

func (s *Session) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *Session) recordRequestFailure(err error) {
	switch {
	case errors.Is(err, types.ErrTimeout):
		s.collector.IncRequestTimeout()
	case errors.Is(err, types.ErrMalformedResponse):
		s.collector.IncMalformedResponse()
	default:
		s.collector.IncServiceError()
	}

	fields := map[string]any{
		"outcome": string(DetermineOutcome(replay.StateIdle, err)),
		"error":   err.Error(),
	}
	if cause := errors.Unwrap(err); cause != nil {
		fields["cause"] = cause.Error()
	}
	s.logger.Error("simulation request failed", fields)
}

// enqueue runs under the scheduler lock and must not block.
func (s *Session) enqueue(t replay.Terminal) {
	s.qmu.Lock()
	s.queue = append(s.queue, t)
	s.qmu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Session) process() {
	defer close(s.finished)
	for {
		select {
		case <-s.signal:
			s.drain()
		case <-s.stop:
			s.drain()
			return
		}
	}
}

func (s *Session) drain() {
	for {
		s.qmu.Lock()
		if len(s.queue) == 0 {
			s.qmu.Unlock()
			return
		}
		t := s.queue[0]
		s.queue = s.queue[1:]
		s.qmu.Unlock()

		s.complete(t)
	}
}

func (s *Session) complete(t replay.Terminal) {
	s.mu.Lock()
	run := s.runs[t.Generation]
	delete(s.runs, t.Generation)
	s.mu.Unlock()

	logger := s.logger.ForGeneration(t.Generation)
	if run == nil {
		logger.Warn("terminal notification for unknown run", map[string]any{
			"state": t.State.String(),
		})
		return
	}

	switch t.State {
	case replay.StateCompleted:
		s.collector.IncRunCompleted()
	case replay.StateCancelled:
		s.collector.IncRunCancelled()
	default:
		s.collector.IncRunErrored()
	}
	s.collector.AbsorbReplay(t.Batches, t.Cursor)

	report := buildReport(run.info, t, s.clock.Now())
	if s.collector != nil {
		snap := s.collector.Snapshot()
		report.Metrics = &snap
	}

	logger.Info("run finished", map[string]any{
		"outcome":      string(report.Outcome),
		"entries":      report.Entries,
		"gain_percent": report.GainPercent,
		"duration_ms":  report.DurationMs,
	})

	s.publish(logger, report)
	s.store(logger, report)
	run.finish(report)
}

func (s *Session) publish(logger *log.Logger, report *Report) {
	if s.adapter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	if err := s.adapter.Publish(ctx, report.Event()); err != nil {
		s.collector.IncPublishFailure()
		logger.Warn("completion event publish failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	s.collector.IncPublishSuccess()
}

func (s *Session) store(logger *log.Logger, report *Report) {
	if s.archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), s.publishTimeout)
	defer cancel()

	if err := s.archive.Put(ctx, report); err != nil {
		s.collector.IncArchiveWriteFailure()
		logger.Warn("report archive write failed", map[string]any{
			"error": err.Error(),
		})
		return
	}
	s.collector.IncArchiveWriteSuccess()
}
