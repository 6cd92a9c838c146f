// Package types defines the core domain types shared by the crossflow engine.
//
//nolint:revive // types is a common Go package naming convention
package types

// Track identifies one of the two controller strategies being compared.
type Track string

const (
	// TrackAdaptive is the adaptive (queue-proportional) controller.
	TrackAdaptive Track = "adaptive"
	// TrackFixed is the fixed-timer controller.
	TrackFixed Track = "fixed"
)

// CriticalQueueThreshold is the queue length above which an entry is
// flagged as critical for display.
const CriticalQueueThreshold = 50

// Detail holds the optional named sub-scores of a cycle.
// Service versions disagree on which keys are present; missing keys are zero.
type Detail struct {
	Arrivals    int     `json:"arrivals" msgpack:"arrivals"`
	Failed      int     `json:"failed" msgpack:"failed"`
	RedTime     float64 `json:"red_time" msgpack:"red_time"`
	LossWait    float64 `json:"loss_wait" msgpack:"loss_wait"`
	LossFail    float64 `json:"loss_fail" msgpack:"loss_fail"`
	LossQueue   float64 `json:"loss_queue" msgpack:"loss_queue"`
	LossStarve  float64 `json:"loss_starve" msgpack:"loss_starve"`
	WastedGreen float64 `json:"wasted_green" msgpack:"wasted_green"`
	WaitPenalty float64 `json:"wait_penalty" msgpack:"wait_penalty"`
}

// LogEntry is one simulation cycle's outcome for one track, after
// normalization. Only Cycle and PhaseSequence are guaranteed to be set.
type LogEntry struct {
	// Cycle is the positive cycle index assigned by the service.
	Cycle int `json:"cycle" msgpack:"cycle"`
	// PhaseSequence describes which approach had green (e.g. "2. South").
	PhaseSequence string `json:"phase_sequence" msgpack:"phase_sequence"`
	// QueueLength is the number of vehicles waiting when the phase began.
	QueueLength int `json:"queue_length" msgpack:"queue_length"`
	// TimingAllocatedUsed is the opaque "allocated ➡ used" descriptor.
	TimingAllocatedUsed string `json:"timing_allocated_used" msgpack:"timing_allocated_used"`
	// CycleLoss is the non-negative inefficiency score of the cycle.
	CycleLoss float64 `json:"cycle_loss" msgpack:"cycle_loss"`
	// Events is a human-readable description of notable occurrences.
	Events string `json:"events" msgpack:"events"`
	// Detail carries the optional sub-scores.
	Detail Detail `json:"detail" msgpack:"detail"`
}

// Critical reports whether the queue exceeded CriticalQueueThreshold.
func (e LogEntry) Critical() bool {
	return e.QueueLength > CriticalQueueThreshold
}

// Starved reports whether the service attributed starvation loss to the cycle.
func (e LogEntry) Starved() bool {
	return e.Detail.LossStarve > 0
}
