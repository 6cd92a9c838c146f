package runtime

import (
	"errors"

	"github.com/pithecene-io/crossflow/replay"
	"github.com/pithecene-io/crossflow/types"
)

// OutcomeStatus is the terminal classification of a launch.
type OutcomeStatus string

// Outcome statuses. The first three come from the replay; the rest are
// request failures that never reached a replay.
const (
	OutcomeCompleted     OutcomeStatus = "completed"
	OutcomeCancelled     OutcomeStatus = "cancelled"
	OutcomeRuntimeError  OutcomeStatus = "runtime_error"
	OutcomeTimeout       OutcomeStatus = "timeout"
	OutcomeMalformed     OutcomeStatus = "malformed_response"
	OutcomeServiceError  OutcomeStatus = "service_error"
	OutcomeInvalidConfig OutcomeStatus = "invalid_config"
)

// Process exit codes.
const (
	ExitCodeCompleted     = 0
	ExitCodeServiceError  = 1
	ExitCodeTimeout       = 2
	ExitCodeMalformed     = 3
	ExitCodeRuntimeError  = 4
	ExitCodeCancelled     = 5
	ExitCodeInvalidConfig = 6
)

// ErrInvalidConfig marks a launch rejected before any request was sent.
var ErrInvalidConfig = errors.New("invalid simulation config")

// DetermineOutcome classifies a replay terminal state, or a launch error when
// err is non-nil.
func DetermineOutcome(state replay.State, err error) OutcomeStatus {
	if err != nil {
		switch {
		case errors.Is(err, types.ErrTimeout):
			return OutcomeTimeout
		case errors.Is(err, types.ErrMalformedResponse):
			return OutcomeMalformed
		case errors.Is(err, types.ErrServiceError):
			return OutcomeServiceError
		case errors.Is(err, types.ErrRuntimeEmission):
			return OutcomeRuntimeError
		case errors.Is(err, ErrInvalidConfig):
			return OutcomeInvalidConfig
		default:
			// Unclassified launch failures are transport-level problems.
			return OutcomeServiceError
		}
	}

	switch state {
	case replay.StateCompleted:
		return OutcomeCompleted
	case replay.StateErrored:
		return OutcomeRuntimeError
	default:
		return OutcomeCancelled
	}
}

// ExitCode maps an outcome to the process exit code.
func ExitCode(outcome OutcomeStatus) int {
	switch outcome {
	case OutcomeCompleted:
		return ExitCodeCompleted
	case OutcomeTimeout:
		return ExitCodeTimeout
	case OutcomeMalformed:
		return ExitCodeMalformed
	case OutcomeRuntimeError:
		return ExitCodeRuntimeError
	case OutcomeCancelled:
		return ExitCodeCancelled
	case OutcomeInvalidConfig:
		return ExitCodeInvalidConfig
	default:
		return ExitCodeServiceError
	}
}
