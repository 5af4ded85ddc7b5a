package command

import (
	"fmt"

	"github.com/google/uuid"
)

// TaskListener is notified once a task completes or is culled after an error.
type TaskListener interface {
	OnTaskSuccess()
	OnTaskFailed()
}

// TaskFuncs adapts plain functions to TaskListener. Nil fields are skipped.
//
// Use a pointer so the listener can be removed again by identity.
type TaskFuncs struct {
	Success func()
	Failed  func()
}

var _ TaskListener = (*TaskFuncs)(nil)

func (f *TaskFuncs) OnTaskSuccess() {
	if f.Success != nil {
		f.Success()
	}
}

func (f *TaskFuncs) OnTaskFailed() {
	if f.Failed != nil {
		f.Failed()
	}
}

// Marker is a callback item in the command queue.
//
// An internal marker is queued after every single command and only delimits
// it from the next one. A task marker closes a Task and carries its listeners.
type Marker struct {
	id        string
	internal  bool
	listeners []TaskListener
}

var _ Item = (*Marker)(nil)

// NewDelimiter creates the internal marker queued after a single command.
func NewDelimiter() *Marker {
	return &Marker{id: uuid.NewString(), internal: true}
}

// NewTaskMarker creates a non-internal marker notifying listeners.
func NewTaskMarker(listeners ...TaskListener) *Marker {
	m := &Marker{id: uuid.NewString()}
	m.listeners = append(m.listeners, listeners...)

	return m
}

func (*Marker) isQueueItem() {}

func (m *Marker) ID() string {
	return m.id
}

// IsInternal reports whether m is an auto-inserted delimiter.
func (m *Marker) IsInternal() bool {
	return m.internal
}

// Success calls OnTaskSuccess on every listener. A panicking listener does not
// stop the others; the recovered panics are returned as errors.
func (m *Marker) Success() []error {
	return m.notify(TaskListener.OnTaskSuccess)
}

// Failure calls OnTaskFailed on every listener, isolated like Success.
func (m *Marker) Failure() []error {
	return m.notify(TaskListener.OnTaskFailed)
}

func (m *Marker) notify(fn func(TaskListener)) []error {
	var errs []error
	for _, l := range m.listeners {
		if err := callRecover(func() { fn(l) }); err != nil {
			errs = append(errs, err)
		}
	}

	return errs
}

func callRecover(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("command: task listener panic: %v", r)
		}
	}()
	fn()

	return nil
}
