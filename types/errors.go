package types

import (
	"errors"
	"fmt"
)

// Run-level error kinds. Use errors.Is(err, ErrXxx) for classification.
var (
	// ErrTimeout indicates the simulation request exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	// ErrMalformedResponse indicates an unparsable body or missing track sequences.
	ErrMalformedResponse = errors.New("malformed response")

	// ErrServiceError indicates a non-success status or an explicit error field.
	ErrServiceError = errors.New("service error")

	// ErrRuntimeEmission indicates a failure while processing a replay tick.
	ErrRuntimeEmission = errors.New("runtime emission error")
)

// Operator-facing messages for kinds that do not carry a service message.
const (
	TimeoutMessage          = "⏳ Connection timed out: the configured load likely produced unbounded queues and the simulation exceeded the 15-second limit."
	MalformedMessage        = "Server returned invalid data."
	GenericServiceMessage   = "Simulation failed."
	runtimeEmissionTemplate = "Replay aborted: %v"
)

// RunError is a terminal run failure carrying a human-readable message.
// Error returns only the message; the cause is kept for logs via Unwrap.
type RunError struct {
	// Kind is the sentinel for classification (e.g. ErrTimeout).
	Kind error
	// Message is shown to the operator as-is.
	Message string
	// Err is the underlying cause, if any.
	Err error
}

func (e *RunError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *RunError) Unwrap() error {
	return e.Err
}

// Is reports whether the error matches the target kind.
func (e *RunError) Is(target error) bool {
	return errors.Is(e.Kind, target)
}

// NewTimeoutError wraps a deadline failure.
func NewTimeoutError(cause error) *RunError {
	return &RunError{Kind: ErrTimeout, Message: TimeoutMessage, Err: cause}
}

// NewMalformedError wraps a parse or shape failure. The cause never reaches
// the operator message.
func NewMalformedError(cause error) *RunError {
	return &RunError{Kind: ErrMalformedResponse, Message: MalformedMessage, Err: cause}
}

// NewServiceError builds a service failure. An empty message falls back to
// GenericServiceMessage.
func NewServiceError(message string, cause error) *RunError {
	if message == "" {
		message = GenericServiceMessage
	}
	return &RunError{Kind: ErrServiceError, Message: message, Err: cause}
}

// NewEmissionError wraps a replay tick failure.
func NewEmissionError(cause error) *RunError {
	return &RunError{
		Kind:    ErrRuntimeEmission,
		Message: fmt.Sprintf(runtimeEmissionTemplate, cause),
		Err:     cause,
	}
}

// ErrorKind returns the kind sentinel of err, or nil when err is not a
// classified run error.
func ErrorKind(err error) error {
	for _, kind := range []error{ErrTimeout, ErrMalformedResponse, ErrServiceError, ErrRuntimeEmission} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
