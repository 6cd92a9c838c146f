// Package metrics aggregates comparison losses and collects session counters.
//
// Aggregator is the per-run reducer driven by the replay scheduler. Collector
// accumulates counters across all runs of one session. It is a leaf package
// apart from the shared types.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of the session counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Run lifecycle
	RunsLaunched  int64
	RunsCompleted int64
	RunsCancelled int64
	RunsErrored   int64

	// Request failures by kind
	RequestTimeouts   int64
	MalformedResponse int64
	ServiceErrors     int64

	// Replay
	EntriesDropped  int64
	BatchesEmitted  int64
	EntriesReplayed int64

	// Post-run side effects (per call)
	ArchiveWriteSuccess int64
	ArchiveWriteFailure int64
	PublishSuccess      int64
	PublishFailure      int64

	// Dimensions (informational, set at construction)
	SessionID   string
	Mode        string
	ServiceURL  string
	ArchiveKind string
}

// Collector accumulates counters for one session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	runsLaunched  int64
	runsCompleted int64
	runsCancelled int64
	runsErrored   int64

	requestTimeouts   int64
	malformedResponse int64
	serviceErrors     int64

	entriesDropped  int64
	batchesEmitted  int64
	entriesReplayed int64

	archiveWriteSuccess int64
	archiveWriteFailure int64
	publishSuccess      int64
	publishFailure      int64

	sessionID   string
	mode        string
	serviceURL  string
	archiveKind string
}

// NewCollector creates a Collector with dimension labels.
// archiveKind is empty when no archive is configured.
func NewCollector(sessionID, mode, serviceURL, archiveKind string) *Collector {
	return &Collector{
		sessionID:   sessionID,
		mode:        mode,
		serviceURL:  serviceURL,
		archiveKind: archiveKind,
	}
}

// add must only be called on a non-nil receiver.
func (c *Collector) add(field *int64, n int64) {
	c.mu.Lock()
	*field += n
	c.mu.Unlock()
}

// --- Run lifecycle ---

// IncRunLaunched records a replay start.
func (c *Collector) IncRunLaunched() {
	if c == nil {
		return
	}
	c.add(&c.runsLaunched, 1)
}

// IncRunCompleted records a replay that drained both tracks.
func (c *Collector) IncRunCompleted() {
	if c == nil {
		return
	}
	c.add(&c.runsCompleted, 1)
}

// IncRunCancelled records a superseded or cancelled replay.
func (c *Collector) IncRunCancelled() {
	if c == nil {
		return
	}
	c.add(&c.runsCancelled, 1)
}

// IncRunErrored records a replay aborted by an emission error.
func (c *Collector) IncRunErrored() {
	if c == nil {
		return
	}
	c.add(&c.runsErrored, 1)
}

// --- Request failures ---

// IncRequestTimeout records a request that exceeded its deadline.
func (c *Collector) IncRequestTimeout() {
	if c == nil {
		return
	}
	c.add(&c.requestTimeouts, 1)
}

// IncMalformedResponse records an unusable response body.
func (c *Collector) IncMalformedResponse() {
	if c == nil {
		return
	}
	c.add(&c.malformedResponse, 1)
}

// IncServiceError records a service-reported failure.
func (c *Collector) IncServiceError() {
	if c == nil {
		return
	}
	c.add(&c.serviceErrors, 1)
}

// --- Replay ---
// Replay counters are absorbed once per terminal notification, not per tick,
// so the scheduler lock is never held while the collector is updated.

// AddEntriesDropped records rows removed during normalization.
func (c *Collector) AddEntriesDropped(n int) {
	if c == nil || n <= 0 {
		return
	}
	c.add(&c.entriesDropped, int64(n))
}

// AbsorbReplay records the batches and per-track entries of a finished replay.
func (c *Collector) AbsorbReplay(batches, entries int) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.batchesEmitted += int64(batches)
	c.entriesReplayed += int64(entries)
	c.mu.Unlock()
}

// --- Archive / adapter ---

// IncArchiveWriteSuccess records a successful archive write.
func (c *Collector) IncArchiveWriteSuccess() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteSuccess, 1)
}

// IncArchiveWriteFailure records a failed archive write.
func (c *Collector) IncArchiveWriteFailure() {
	if c == nil {
		return
	}
	c.add(&c.archiveWriteFailure, 1)
}

// IncPublishSuccess records a delivered completion event.
func (c *Collector) IncPublishSuccess() {
	if c == nil {
		return
	}
	c.add(&c.publishSuccess, 1)
}

// IncPublishFailure records a completion event that could not be delivered.
func (c *Collector) IncPublishFailure() {
	if c == nil {
		return
	}
	c.add(&c.publishFailure, 1)
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		RunsLaunched:  c.runsLaunched,
		RunsCompleted: c.runsCompleted,
		RunsCancelled: c.runsCancelled,
		RunsErrored:   c.runsErrored,

		RequestTimeouts:   c.requestTimeouts,
		MalformedResponse: c.malformedResponse,
		ServiceErrors:     c.serviceErrors,

		EntriesDropped:  c.entriesDropped,
		BatchesEmitted:  c.batchesEmitted,
		EntriesReplayed: c.entriesReplayed,

		ArchiveWriteSuccess: c.archiveWriteSuccess,
		ArchiveWriteFailure: c.archiveWriteFailure,
		PublishSuccess:      c.publishSuccess,
		PublishFailure:      c.publishFailure,

		SessionID:   c.sessionID,
		Mode:        c.mode,
		ServiceURL:  c.serviceURL,
		ArchiveKind: c.archiveKind,
	}
}
