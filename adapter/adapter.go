// Package adapter defines the completion notification boundary.
//
// Adapters publish a comparison summary to downstream systems after a replay
// reaches a terminal state. The session runtime owns adapter lifecycle;
// users provide configuration only. Publishing is best effort: a failed
// publish is logged by the caller and never changes the run outcome.
package adapter

import (
	"context"
	"fmt"
	"time"
)

// EventTypeComparisonCompleted is the event type of every published event.
const EventTypeComparisonCompleted = "comparison_completed"

// ComparisonCompletedEvent is the payload published when a replay finishes.
type ComparisonCompletedEvent struct {
	ContractVersion string  `json:"contract_version"`
	EventType       string  `json:"event_type"` // always "comparison_completed"
	SessionID       string  `json:"session_id"`
	Generation      uint64  `json:"generation"`
	Outcome         string  `json:"outcome"` // completed, cancelled, runtime_error
	Message         string  `json:"message,omitempty"`
	AdaptiveLoss    float64 `json:"adaptive_loss"`
	FixedLoss       float64 `json:"fixed_loss"`
	GainPercent     float64 `json:"gain_percent"`
	Entries         int     `json:"entries"`
	Truncated       int     `json:"truncated"`
	Timestamp       string  `json:"timestamp"` // RFC 3339
	DurationMs      int64   `json:"duration_ms"`
}

// Adapter publishes comparison completion events to a downstream system.
type Adapter interface {
	// Publish sends a completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *ComparisonCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

// Backoff returns the delay before retry attempt i (i >= 1): 500ms, 1s, 2s, ...
func Backoff(i int) time.Duration {
	return time.Duration(1<<uint(i-1)) * 500 * time.Millisecond
}

// Retry runs op up to 1+retries times with exponential backoff between
// attempts. It stops early when ctx is done or when permanent reports true
// for the last error. name prefixes returned errors.
func Retry(ctx context.Context, name string, retries int, op func(context.Context) error, permanent func(error) bool) error {
	var lastErr error
	attempts := 1 + retries

	for i := range attempts {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: context canceled: %w", name, err)
		}

		// No backoff before the first attempt
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: context canceled during backoff: %w", name, ctx.Err())
			case <-time.After(Backoff(i)):
			}
		}

		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if permanent != nil && permanent(lastErr) {
			return fmt.Errorf("%s: non-retriable error: %w", name, lastErr)
		}
	}

	return fmt.Errorf("%s: failed after %d attempts: %w", name, attempts, lastErr)
}
