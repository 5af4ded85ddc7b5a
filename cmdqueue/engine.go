// Package cmdqueue implements the command queue engine of a board session.
//
// The engine owns an ordered queue of commands and callback markers and sends
// commands to the board one at a time. A command stays in flight until the
// board answers with a status or error message, or the command timeout
// expires. Timed out commands are resent ahead of the rest of the queue up to
// the configured limit, then abandoned with a FailureMajorCommand.
//
// Every command queued with EnqueueCommand is followed by an internal
// delimiter marker. A Task queues its commands verbatim followed by one task
// marker, so an error response culls the remaining commands of the task and
// fires its failure callbacks.
package cmdqueue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/arloliu/go-tekdaqc/command"
	"github.com/arloliu/go-tekdaqc/internal/pool"
	"github.com/arloliu/go-tekdaqc/internal/queue"
	"github.com/arloliu/go-tekdaqc/logger"
	"github.com/arloliu/go-tekdaqc/message"
)

// ConnectionChecker reports whether the board connection is usable.
type ConnectionChecker interface {
	IsConnected() bool
}

// dispatch is a command handed to the writer goroutine with the channel its response is signaled on.
type dispatch struct {
	value *command.Value
	ack   chan struct{}
}

// Engine is the single-writer, single-outstanding-command queue of one board.
type Engine struct {
	cfg         *Config
	boardSerial string
	w           io.Writer
	conn        ConnectionChecker
	onFailure   FailureHandler
	logger      logger.Logger
	metrics     Metrics

	// mu guards every field below.
	mu          sync.Mutex
	queue       queue.Deque[command.Item]
	executing   bool
	didTimeout  bool
	failures    int
	lastSent    *command.Value
	ack         chan struct{}
	running     bool
	cancel      context.CancelFunc
	writerDone  chan struct{}
	dispatchCh  chan dispatch
}

var _ message.QueueListener = (*Engine)(nil)

// NewEngine creates an engine writing encoded commands to w.
//
// conn gates dispatching, onFailure receives fatal conditions and may be nil.
func NewEngine(boardSerial string, w io.Writer, conn ConnectionChecker, onFailure FailureHandler, opts ...Option) (*Engine, error) {
	if w == nil {
		return nil, errors.New("cmdqueue: writer must not be nil")
	}
	if conn == nil {
		return nil, errors.New("cmdqueue: connection checker must not be nil")
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	if onFailure == nil {
		onFailure = func(Failure, error) {}
	}

	return &Engine{
		cfg:         cfg,
		boardSerial: boardSerial,
		w:           w,
		conn:        conn,
		onFailure:   onFailure,
		logger:      cfg.GetLogger().With("component", "cmdqueue", "board", boardSerial),
		queue:       queue.NewDeque[command.Item](64),
		didTimeout:  true,
		dispatchCh:  make(chan dispatch, 1),
	}, nil
}

// Start launches the writer goroutine and dispatches anything already queued.
// A stopped engine may be started again, e.g. after a reconnect.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return ErrEngineStarted
	}

	writerCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.running = true
	e.writerDone = make(chan struct{})
	e.mu.Unlock()

	go e.writeLoop(writerCtx)

	e.TryAdvance()

	return nil
}

// Stop terminates the writer goroutine and waits for it to exit.
// Queued items are kept; call Purge to drop them.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	cancel, done := e.cancel, e.writerDone
	e.mu.Unlock()

	cancel()
	<-done
}

// Metrics returns the engine counters.
func (e *Engine) Metrics() *Metrics {
	return &e.metrics
}

// EnqueueCommand appends v followed by an internal delimiter and tries to advance.
func (e *Engine) EnqueueCommand(v *command.Value) {
	if v == nil {
		return
	}

	e.mu.Lock()
	e.queue.PushBack(v, command.NewDelimiter())
	e.mu.Unlock()

	e.TryAdvance()
}

// EnqueueTask appends the task's commands and its task marker and tries to advance.
func (e *Engine) EnqueueTask(t *command.Task) {
	if t == nil {
		return
	}
	e.EnqueueItems(t.Items()...)
}

// EnqueueItems appends pre-built queue items verbatim and tries to advance.
func (e *Engine) EnqueueItems(items ...command.Item) {
	if len(items) == 0 {
		return
	}

	e.mu.Lock()
	e.queue.PushBack(items...)
	e.mu.Unlock()

	e.TryAdvance()
}

// QueuedCount returns the number of queue items not yet dispatched.
func (e *Engine) QueuedCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.queue.Length()
}

// IsExecuting reports whether a command or marker is being processed.
func (e *Engine) IsExecuting() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.executing
}

// TryAdvance dispatches the head of the queue when the engine is idle,
// started and connected. It is a no-op otherwise and safe to call from any goroutine.
func (e *Engine) TryAdvance() {
	for {
		e.mu.Lock()
		if e.executing || !e.running || e.queue.IsEmpty() || !e.conn.IsConnected() {
			e.mu.Unlock()
			return
		}

		item, _ := e.queue.PopFront()
		e.executing = true

		switch it := item.(type) {
		case *command.Marker:
			e.mu.Unlock()

			e.runMarker(it, true)

			e.mu.Lock()
			e.executing = false
			e.mu.Unlock()

		case *command.Value:
			ack := make(chan struct{}, 1)
			e.lastSent = it
			e.didTimeout = true
			e.ack = ack
			// sent under mu so Stop cannot drain the slot between the check of
			// running and the send; the slot is free while executing was unset
			select {
			case e.dispatchCh <- dispatch{value: it, ack: ack}:
			default:
				e.queue.PushFront(it)
				e.ack = nil
				e.executing = false
				e.logger.Error("dispatch slot busy, command requeued", "command", it.String())
			}
			e.mu.Unlock()

			return

		default:
			e.executing = false
			e.mu.Unlock()
			e.logger.Warn("unknown queue item dropped", "item", fmt.Sprintf("%T", item))
		}
	}
}

// Purge drops every queued item. With forShutdown the in-flight command is
// released without a resend, since the connection is being closed on purpose.
func (e *Engine) Purge(forShutdown bool) {
	e.mu.Lock()
	n := e.queue.Length()
	e.queue.Reset()
	if forShutdown {
		e.didTimeout = false
		e.signalLocked()
	}
	e.mu.Unlock()

	e.logger.Debug("command queue purged", "items", n, "shutdown", forShutdown)
}

// OnStatus resolves the in-flight command successfully.
func (e *Engine) OnStatus(_ string, msg *message.TextMessage) {
	e.mu.Lock()
	if e.ack == nil {
		e.mu.Unlock()
		e.logger.Debug("status without command in flight ignored", "text", msg.Text())

		return
	}

	e.didTimeout = false
	e.failures = 0
	e.signalLocked()
	e.mu.Unlock()

	e.metrics.incStatusRecvCount()
}

// OnError resolves the in-flight command as failed and culls the queue up to
// the next marker. A task marker found this way has its failure callbacks run.
func (e *Engine) OnError(_ string, msg *message.TextMessage) {
	e.mu.Lock()
	if e.ack == nil {
		e.mu.Unlock()
		e.logger.Debug("error without command in flight ignored", "text", msg.Text())

		return
	}

	e.didTimeout = false

	culled := 0
	var taskMarker *command.Marker
	for {
		item, ok := e.queue.PopFront()
		if !ok {
			break
		}
		if m, isMarker := item.(*command.Marker); isMarker {
			if !m.IsInternal() {
				taskMarker = m
			}

			break
		}
		culled++
	}

	e.signalLocked()
	e.mu.Unlock()

	e.metrics.incErrorRecvCount()
	e.metrics.addCulledItemCount(culled)
	e.logger.Warn("command error response", "text", msg.Text(), "culled", culled, "task", taskMarker != nil)

	if taskMarker != nil {
		e.runMarker(taskMarker, false)
	}
}

// signalLocked wakes the writer waiting on the in-flight command. e.mu must be held.
func (e *Engine) signalLocked() {
	if e.ack == nil {
		return
	}

	select {
	case e.ack <- struct{}{}:
	default:
	}
	e.ack = nil
}

func (e *Engine) runMarker(m *command.Marker, success bool) {
	var errs []error
	if success {
		errs = m.Success()
	} else {
		errs = m.Failure()
	}
	e.metrics.incMarkerRunCount()

	for _, err := range errs {
		e.logger.Error("task callback failed", "marker", m.ID(), "error", err)
	}
}

func (e *Engine) writeLoop(ctx context.Context) {
	defer close(e.writerDone)

	for {
		select {
		case <-ctx.Done():
			e.releaseOnStop()
			return
		case d := <-e.dispatchCh:
			e.execute(ctx, d)
		}
	}
}

// releaseOnStop clears the in-flight state so a restarted owner starts idle.
func (e *Engine) releaseOnStop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	select {
	case <-e.dispatchCh:
	default:
	}
	e.ack = nil
	e.executing = false
}

func (e *Engine) execute(ctx context.Context, d dispatch) {
	e.logger.Debug("write command", "command", d.value.String())

	if _, err := e.w.Write(d.value.Encode()); err != nil {
		e.metrics.incWriteErrCount()

		e.mu.Lock()
		e.ack = nil
		e.executing = false
		e.mu.Unlock()

		e.logger.Error("command write failed", "command", d.value.String(), "error", err)
		e.onFailure(FailureConnectionDisruption, fmt.Errorf("%w: %w", ErrWriteFailed, err))

		return
	}
	e.metrics.incCommandSendCount()

	pool.WaitSignal(ctx, d.ack, e.cfg.CommandTimeout())
	if ctx.Err() != nil {
		return
	}

	e.resolve()
}

// resolve finishes the in-flight command after the wait ended, either resending it or giving up.
func (e *Engine) resolve() {
	e.mu.Lock()
	e.ack = nil

	if !e.didTimeout {
		e.executing = false
		e.mu.Unlock()
		e.TryAdvance()

		return
	}

	e.metrics.incCommandTimeoutCount()

	if e.conn.IsConnected() && e.failures < e.cfg.MaxAllowedFailures() {
		e.failures++
		attempt := e.failures
		cmd := e.lastSent
		e.queue.PushFront(cmd)
		e.executing = false
		e.didTimeout = true
		e.mu.Unlock()

		e.metrics.incCommandResendCount()
		e.logger.Warn("command timed out, resending", "command", cmd.String(), "attempt", attempt)
		e.TryAdvance()

		return
	}

	cmd := e.lastSent
	failures := e.failures
	e.failures = 0
	e.executing = false
	e.mu.Unlock()

	e.metrics.incCommandAbortCount()
	e.logger.Error("command abandoned", "command", cmd.String(), "resends", failures)
	e.onFailure(FailureMajorCommand, fmt.Errorf("%w: %s after %d resends", ErrCommandFailed, cmd, failures))
}
