package replay

import "fmt"

// State is the lifecycle state of the scheduler's current generation.
type State int

const (
	// StateIdle means no replay has been started.
	StateIdle State = iota
	// StateReplaying means ticks are being emitted.
	StateReplaying
	// StateCompleted means the shorter track was fully drained.
	StateCompleted
	// StateCancelled means the replay was cancelled or superseded.
	StateCancelled
	// StateErrored means a tick failed and the replay was aborted.
	StateErrored
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateReplaying:
		return "replaying"
	case StateCompleted:
		return "completed"
	case StateCancelled:
		return "cancelled"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// IsTerminal reports whether no further emissions can occur in this state.
func (s State) IsTerminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateErrored
}

// MarshalText encodes the state by name for JSON/YAML reports.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a state name written by MarshalText.
func (s *State) UnmarshalText(text []byte) error {
	for c := StateIdle; c <= StateErrored; c++ {
		if c.String() == string(text) {
			*s = c
			return nil
		}
	}
	return fmt.Errorf("unknown replay state %q", text)
}
