package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/arloliu/go-tekdaqc/logger"
)

// ConnState represents the stages of a board connection.
type ConnState uint32

const (
	// NotConnectedState indicates that no transport is open.
	NotConnectedState ConnState = iota
	// ConnectingState indicates that the transport is being opened.
	ConnectingState
	// ConnectedState indicates that the transport is open and the command queue runs.
	ConnectedState
)

// IsNotConnected returns if the current state is not connected.
func (cs ConnState) IsNotConnected() bool { return cs == NotConnectedState }

// IsConnecting returns if the current state is connecting.
func (cs ConnState) IsConnecting() bool { return cs == ConnectingState }

// IsConnected returns if the current state is connected.
func (cs ConnState) IsConnected() bool { return cs == ConnectedState }

// String returns string representation of the current state.
func (cs ConnState) String() string {
	switch cs {
	case NotConnectedState:
		return "not-connected"
	case ConnectingState:
		return "connecting"
	case ConnectedState:
		return "connected"
	default:
		return "unknown"
	}
}

// ConnStateChangeHandler is invoked when the connection state changes.
//
// Note: the handler is invoked in a blocking mode with the state lock held.
// It must not call back into the state manager.
type ConnStateChangeHandler func(prevState ConnState, newState ConnState)

// ConnStateMgr manages the connection state of a Session.
//
// State transitions are safe for concurrent use.
type ConnStateMgr struct {
	mu       sync.Mutex
	cond     *sync.Cond
	state    atomic.Uint32
	logger   logger.Logger
	handlers []ConnStateChangeHandler
}

// NewConnStateMgr creates a ConnStateMgr in NotConnectedState.
func NewConnStateMgr(l logger.Logger, handlers ...ConnStateChangeHandler) *ConnStateMgr {
	if l == nil {
		l = logger.GetLogger()
	}

	cs := &ConnStateMgr{
		logger:   l,
		handlers: make([]ConnStateChangeHandler, 0, len(handlers)),
	}
	cs.AddHandler(handlers...)
	cs.state.Store(uint32(NotConnectedState))
	cs.cond = sync.NewCond(&cs.mu)

	return cs
}

// State returns the current connection state.
func (cs *ConnStateMgr) State() ConnState {
	return ConnState(cs.state.Load())
}

// AddHandler adds handlers invoked on state changes.
func (cs *ConnStateMgr) AddHandler(handlers ...ConnStateChangeHandler) {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	for _, h := range handlers {
		if h != nil {
			cs.handlers = append(cs.handlers, h)
		}
	}
}

// WaitState waits until the state becomes state or ctx is done.
func (cs *ConnStateMgr) WaitState(ctx context.Context, state ConnState) error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if cs.State() == state {
		return nil
	}

	stopFunc := context.AfterFunc(ctx, func() {
		cs.mu.Lock()
		cs.cond.Broadcast()
		cs.mu.Unlock()
	})
	defer stopFunc()

	for cs.State() != state {
		if err := ctx.Err(); err != nil {
			return err
		}
		cs.cond.Wait()
	}

	return nil
}

// ToNotConnected transitions to NotConnectedState from any state.
// It reports whether the state changed.
func (cs *ConnStateMgr) ToNotConnected() bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	curState := cs.State()
	if curState.IsNotConnected() {
		return false
	}

	// change state before the handlers run, so they observe the disconnection
	cs.setState(NotConnectedState)
	cs.invokeHandlers(curState, NotConnectedState)

	return true
}

// ToConnecting transitions from NotConnectedState to ConnectingState.
//
// Returns ErrInvalidTransition from any other state.
func (cs *ConnStateMgr) ToConnecting() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	curState := cs.State()
	if !curState.IsNotConnected() {
		return ErrInvalidTransition
	}

	cs.setState(ConnectingState)
	cs.invokeHandlers(curState, ConnectingState)

	return nil
}

// ToConnected transitions from ConnectingState to ConnectedState.
//
// Returns ErrInvalidTransition from any other state.
func (cs *ConnStateMgr) ToConnected() error {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	curState := cs.State()
	if curState.IsConnected() {
		return nil
	}
	if !curState.IsConnecting() {
		return ErrInvalidTransition
	}

	cs.setState(ConnectedState)
	cs.invokeHandlers(curState, ConnectedState)

	return nil
}

func (cs *ConnStateMgr) IsNotConnected() bool { return cs.State().IsNotConnected() }

func (cs *ConnStateMgr) IsConnected() bool { return cs.State().IsConnected() }

// setState stores newState and wakes every waiter. cs.mu must be held.
func (cs *ConnStateMgr) setState(newState ConnState) {
	cs.state.Store(uint32(newState))
	cs.cond.Broadcast()
}

func (cs *ConnStateMgr) invokeHandlers(prevState ConnState, newState ConnState) {
	cs.logger.Debug("connection state changed", "prev_state", prevState, "new_state", newState)

	for _, handler := range cs.handlers {
		func() {
			defer func() {
				if r := recover(); r != nil {
					cs.logger.Error("connection state handler panic recovered", "panic", r)
				}
			}()
			handler(prevState, newState)
		}()
	}
}
