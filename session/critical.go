package session

import (
	"errors"
	"slices"

	"github.com/arloliu/go-tekdaqc/cmdqueue"
)

var (
	// ErrNotConnected is returned by operations that need a connected board.
	ErrNotConnected = errors.New("session: board not connected")
	// ErrAlreadyConnected is returned by Connect on a connected or connecting session.
	ErrAlreadyConnected = errors.New("session: board already connected")
	// ErrInvalidTransition is returned by an illegal connection state change.
	ErrInvalidTransition = errors.New("session: invalid connection state transition")
	// ErrInvalidChannel is returned for a channel the board does not have.
	ErrInvalidChannel = errors.New("session: invalid channel")
	// ErrChannelInUse is returned when a digital input is active in the other mode.
	ErrChannelInUse = errors.New("session: digital input already active in another mode")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session: closed")

	errHeartbeatLost       = errors.New("session: no traffic from board after keep-alive")
	errReaderStopped       = errors.New("session: reader stopped")
	errReinitializeFailed  = errors.New("session: reinitialize task failed")
	errCleanDisconnectFail = errors.New("session: clean disconnect failed")
)

// CriticalError is a board condition that requires the owner to tear the
// connection down and possibly restore it.
type CriticalError int

const (
	// FailedToReinitialize means the channel setup queued by Restore failed.
	FailedToReinitialize CriticalError = iota
	// FailedMajorCommand means a command got no response after every resend.
	FailedMajorCommand
	// TerminalConnectionDisruption means the stream broke or the board went silent.
	TerminalConnectionDisruption
	// PartialDisconnection means the board refused the clean disconnect.
	PartialDisconnection
)

func (c CriticalError) String() string {
	switch c {
	case FailedToReinitialize:
		return "FAILED_TO_REINITIALIZE"
	case FailedMajorCommand:
		return "FAILED_MAJOR_COMMAND"
	case TerminalConnectionDisruption:
		return "TERMINAL_CONNECTION_DISRUPTION"
	case PartialDisconnection:
		return "PARTIAL_DISCONNECTION"
	default:
		return "UNKNOWN"
	}
}

// fromFailure maps a command engine failure to its critical error.
func fromFailure(f cmdqueue.Failure) CriticalError {
	if f == cmdqueue.FailureConnectionDisruption {
		return TerminalConnectionDisruption
	}

	return FailedMajorCommand
}

// CriticalErrorListener observes critical errors of a board.
//
// Callbacks run on their own goroutine, so a listener may call Disconnect or Restore.
type CriticalErrorListener interface {
	OnCriticalError(board string, critical CriticalError, err error)
}

// CriticalErrorFuncs adapts a function to CriticalErrorListener.
type CriticalErrorFuncs struct {
	Critical func(board string, critical CriticalError, err error)
}

var _ CriticalErrorListener = (*CriticalErrorFuncs)(nil)

func (f *CriticalErrorFuncs) OnCriticalError(board string, critical CriticalError, err error) {
	if f.Critical != nil {
		f.Critical(board, critical, err)
	}
}

// AddCriticalErrorListener registers l. Adding the same listener twice has no effect.
func (s *Session) AddCriticalErrorListener(l CriticalErrorListener) {
	if l == nil {
		return
	}

	s.criticalMu.Lock()
	defer s.criticalMu.Unlock()

	if !slices.Contains(s.critical, l) {
		s.critical = append(s.critical, l)
	}
}

// RemoveCriticalErrorListener unregisters l.
func (s *Session) RemoveCriticalErrorListener(l CriticalErrorListener) {
	s.criticalMu.Lock()
	defer s.criticalMu.Unlock()

	if i := slices.Index(s.critical, l); i >= 0 {
		s.critical = slices.Delete(s.critical, i, i+1)
	}
}

// raise notifies every critical error listener on a new goroutine.
func (s *Session) raise(critical CriticalError, err error) {
	s.logger.Error("critical board error", "critical", critical, "error", err)

	s.criticalMu.Lock()
	listeners := slices.Clone(s.critical)
	s.criticalMu.Unlock()

	if len(listeners) == 0 {
		return
	}

	go func() {
		for _, l := range listeners {
			s.callCritical(l, critical, err)
		}
	}()
}

// raiseTerminal raises a condition that ends the connection. Only the first
// one of a connection is reported; later ones are logged and dropped.
func (s *Session) raiseTerminal(critical CriticalError, err error) {
	if !s.terminal.CompareAndSwap(false, true) {
		s.logger.Debug("connection already reported lost", "critical", critical, "error", err)
		return
	}
	s.raise(critical, err)
}

func (s *Session) callCritical(l CriticalErrorListener, critical CriticalError, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("critical error listener panic recovered", "critical", critical, "panic", r)
		}
	}()

	l.OnCriticalError(s.serial, critical, err)
}
