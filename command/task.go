package command

import (
	"slices"
	"sync"

	"github.com/google/uuid"
)

// Task is an ordered bundle of commands sharing one completion callback.
//
// Commands in a task are queued without per-command delimiters, so an error
// response to any of them culls the rest of the task and fires OnTaskFailed.
type Task struct {
	id        string
	mu        sync.Mutex
	listeners []TaskListener
	commands  []*Value
}

// NewTask creates an empty task notifying the given listeners.
func NewTask(listeners ...TaskListener) *Task {
	t := &Task{id: uuid.NewString()}
	for _, l := range listeners {
		t.AddListener(l)
	}

	return t
}

func (t *Task) ID() string {
	return t.id
}

// Add appends commands to the task and returns t for chaining.
func (t *Task) Add(cmds ...*Value) *Task {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.commands = append(t.commands, cmds...)

	return t
}

// AddListener registers l. Adding the same listener twice is a no-op.
func (t *Task) AddListener(l TaskListener) {
	if l == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !slices.Contains(t.listeners, l) {
		t.listeners = append(t.listeners, l)
	}
}

// RemoveListener unregisters l.
func (t *Task) RemoveListener(l TaskListener) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.listeners = slices.DeleteFunc(t.listeners, func(v TaskListener) bool { return v == l })
}

// Commands returns a copy of the task's commands.
func (t *Task) Commands() []*Value {
	t.mu.Lock()
	defer t.mu.Unlock()

	return slices.Clone(t.commands)
}

// Len returns the number of queue items the task expands to.
func (t *Task) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	return len(t.commands) + 1
}

// Items returns the queue items of the task: its commands followed by one task marker.
func (t *Task) Items() []Item {
	t.mu.Lock()
	defer t.mu.Unlock()

	items := make([]Item, 0, len(t.commands)+1)
	for _, c := range t.commands {
		items = append(items, c)
	}

	return append(items, NewTaskMarker(t.listeners...))
}
