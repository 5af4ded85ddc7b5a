package cmdqueue

import "errors"

var (
	// ErrWriteFailed wraps a transport write failure. The connection is assumed dead.
	ErrWriteFailed = errors.New("cmdqueue: command write failed")
	// ErrCommandFailed is reported when a command got no response after every resend.
	ErrCommandFailed = errors.New("cmdqueue: command failed after maximum resends")
	// ErrEngineStarted is returned when Start is called twice.
	ErrEngineStarted = errors.New("cmdqueue: engine already started")
)

// Failure classifies a fatal engine condition reported to the FailureHandler.
type Failure int

const (
	// FailureMajorCommand means a command was abandoned after exhausting resends.
	FailureMajorCommand Failure = iota
	// FailureConnectionDisruption means writing to the transport failed.
	FailureConnectionDisruption
)

func (f Failure) String() string {
	switch f {
	case FailureMajorCommand:
		return "FAILED_MAJOR_COMMAND"
	case FailureConnectionDisruption:
		return "TERMINAL_CONNECTION_DISRUPTION"
	default:
		return "UNKNOWN_FAILURE"
	}
}

// FailureHandler receives fatal engine conditions. It is never called with the engine lock held.
type FailureHandler func(failure Failure, err error)
