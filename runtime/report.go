package runtime

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pithecene-io/crossflow/adapter"
	"github.com/pithecene-io/crossflow/capacity"
	"github.com/pithecene-io/crossflow/metrics"
	"github.com/pithecene-io/crossflow/replay"
	"github.com/pithecene-io/crossflow/types"
)

// Report is the structured summary of one run, written by --report,
// archived, and rendered by the CLI.
type Report struct {
	SessionID  string        `json:"session_id" yaml:"session_id"`
	Generation uint64        `json:"generation" yaml:"generation"`
	State      replay.State  `json:"state" yaml:"state"`
	Outcome    OutcomeStatus `json:"outcome" yaml:"outcome"`
	Message    string        `json:"message" yaml:"message"`
	ExitCode   int           `json:"exit_code" yaml:"exit_code"`

	AdaptiveLoss float64 `json:"adaptive_loss" yaml:"adaptive_loss"`
	FixedLoss    float64 `json:"fixed_loss" yaml:"fixed_loss"`
	GainPercent  float64 `json:"gain_percent" yaml:"gain_percent"`
	PointsSaved  float64 `json:"points_saved" yaml:"points_saved"`

	// Entries is the number of entries replayed per track.
	Entries   int `json:"entries" yaml:"entries"`
	Bound     int `json:"bound" yaml:"bound"`
	Truncated int `json:"truncated" yaml:"truncated"`
	Batches   int `json:"batches" yaml:"batches"`
	// Dropped is the number of rows the response validator discarded.
	Dropped int `json:"dropped" yaml:"dropped"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at" yaml:"finished_at"`
	DurationMs int64     `json:"duration_ms" yaml:"duration_ms"`

	Capacity *capacity.Estimate `json:"capacity,omitempty" yaml:"capacity,omitempty"`
	Metrics  *metrics.Snapshot  `json:"metrics,omitempty" yaml:"metrics,omitempty"`
}

// runInfo is what a session knows about a run beyond its terminal notification.
type runInfo struct {
	sessionID string
	startedAt time.Time
	truncated int
	dropped   int
	estimate  *capacity.Estimate
}

// buildReport composes a Report from a terminal notification.
func buildReport(info runInfo, term replay.Terminal, finishedAt time.Time) *Report {
	outcome := DetermineOutcome(term.State, term.Err)
	r := &Report{
		SessionID:    info.sessionID,
		Generation:   term.Generation,
		State:        term.State,
		Outcome:      outcome,
		Message:      terminalMessage(term),
		ExitCode:     ExitCode(outcome),
		AdaptiveLoss: term.Totals.AdaptiveLoss,
		FixedLoss:    term.Totals.FixedLoss,
		GainPercent:  term.Totals.GainPercent,
		PointsSaved:  term.Totals.PointsSaved(),
		Entries:      term.Cursor,
		Bound:        term.Bound,
		Truncated:    info.truncated,
		Batches:      term.Batches,
		Dropped:      info.dropped,
		StartedAt:    info.startedAt,
		FinishedAt:   finishedAt,
		DurationMs:   finishedAt.Sub(info.startedAt).Milliseconds(),
		Capacity:     info.estimate,
	}
	return r
}

func terminalMessage(term replay.Terminal) string {
	switch term.State {
	case replay.StateCompleted:
		return "replay completed"
	case replay.StateCancelled:
		return "replay cancelled"
	default:
		if term.Err != nil {
			return term.Err.Error()
		}
		return "replay aborted"
	}
}

// BuildFailureReport composes a Report for a launch that never reached a
// replay. The message is the operator-facing error text.
func BuildFailureReport(sessionID string, err error, startedAt, finishedAt time.Time, estimate *capacity.Estimate) *Report {
	outcome := DetermineOutcome(replay.StateIdle, err)
	message := ""
	if err != nil {
		message = err.Error()
	}
	return &Report{
		SessionID:  sessionID,
		State:      replay.StateIdle,
		Outcome:    outcome,
		Message:    message,
		ExitCode:   ExitCode(outcome),
		StartedAt:  startedAt,
		FinishedAt: finishedAt,
		DurationMs: finishedAt.Sub(startedAt).Milliseconds(),
		Capacity:   estimate,
	}
}

// Event converts the report into a completion event.
func (r *Report) Event() *adapter.ComparisonCompletedEvent {
	return &adapter.ComparisonCompletedEvent{
		ContractVersion: types.ContractVersion,
		EventType:       adapter.EventTypeComparisonCompleted,
		SessionID:       r.SessionID,
		Generation:      r.Generation,
		Outcome:         string(r.Outcome),
		Message:         r.Message,
		AdaptiveLoss:    r.AdaptiveLoss,
		FixedLoss:       r.FixedLoss,
		GainPercent:     r.GainPercent,
		Entries:         r.Entries,
		Truncated:       r.Truncated,
		Timestamp:       r.FinishedAt.UTC().Format(time.RFC3339),
		DurationMs:      r.DurationMs,
	}
}

// WriteRunReport writes the report as JSON to the specified path.
// If path is "-", writes to stderr.
func WriteRunReport(report *Report, path string) error {
	if path == "" {
		return errors.New("report path must not be empty")
	}

	if path == "-" {
		if err := writeRunReportTo(report, os.Stderr); err != nil {
			return fmt.Errorf("failed to write report to stderr: %w", err)
		}
		return nil
	}

	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write report to %s: %w", path, err)
	}
	return nil
}

// writeRunReportTo writes report JSON to any writer.
func writeRunReportTo(report *Report, w io.Writer) error {
	data, err := marshalReport(report)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func marshalReport(report *Report) ([]byte, error) {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal report: %w", err)
	}
	return append(data, '\n'), nil
}
