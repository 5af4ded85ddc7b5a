// Package session implements the Board Session: one connection to a Tekdaqc
// board, its command queue, message routing and channel metadata.
//
// A Session owns one transport, one command queue engine and a registration
// on a message broadcaster. High level calls such as ActivateAnalogInput or
// ReadAnalogInput are translated into encoded commands queued on the engine.
// Conditions that require the owner to tear the connection down are reported
// to critical error listeners instead of being returned to callers.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/arloliu/go-tekdaqc/board"
	"github.com/arloliu/go-tekdaqc/cmdqueue"
	"github.com/arloliu/go-tekdaqc/command"
	"github.com/arloliu/go-tekdaqc/internal/sched"
	"github.com/arloliu/go-tekdaqc/locator"
	"github.com/arloliu/go-tekdaqc/logger"
	"github.com/arloliu/go-tekdaqc/message"
	"github.com/arloliu/go-tekdaqc/transport"
)

// MinThrottleRate is the shortest period of throttled digital input reads.
const MinThrottleRate = 10 * time.Millisecond

// Session is the live connection to one board.
type Session struct {
	serial      string
	cfg         *Config
	board       board.Board
	transport   transport.Transport
	engine      *cmdqueue.Engine
	broadcaster *message.Broadcaster
	logger      logger.Logger
	stateMgr    *ConnStateMgr
	taskMgr     *TaskManager
	sched       *sched.Scheduler
	channels    *channelTable

	// lifecycleMu serializes Connect, Disconnect, Restore and Close.
	lifecycleMu sync.Mutex
	closed      bool

	scaleMu sync.RWMutex
	scale   board.AnalogScale

	traffic   atomic.Bool
	keepAlive atomic.Bool
	closing   atomic.Bool

	// terminal is set once a connection-ending error was raised for the current connection.
	terminal atomic.Bool

	hbMu      sync.Mutex
	heartbeat sched.Handle

	throttleMu sync.Mutex
	throttle   sched.Handle

	criticalMu sync.Mutex
	critical   []CriticalErrorListener
}

var _ cmdqueue.ConnectionChecker = (*Session)(nil)

// New creates a disconnected session for the board with the given serial number.
func New(serial string, cfg *Config) (*Session, error) {
	if serial == "" {
		return nil, errors.New("session: board serial must not be empty")
	}
	if cfg == nil {
		return nil, errors.New("session: config must not be nil")
	}

	b, err := board.ForRevision(cfg.revision)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	l := cfg.logger.With("component", "session", "board", serial)

	s := &Session{
		serial:   serial,
		cfg:      cfg,
		board:    b,
		logger:   l,
		scale:    cfg.scale,
		stateMgr: NewConnStateMgr(l),
		taskMgr:  NewTaskManager(context.Background(), l),
		sched:    sched.New(l),
		channels: newChannelTable(b),
	}

	s.transport = cfg.transport
	if s.transport == nil {
		s.transport, err = transport.NewTCP(cfg.host,
			transport.WithPort(cfg.port),
			transport.WithConnectTimeout(cfg.connectTimeout),
			transport.WithLogger(cfg.logger),
		)
		if err != nil {
			return nil, fmt.Errorf("session: %w", err)
		}
	}

	s.broadcaster = cfg.broadcaster
	if s.broadcaster == nil {
		s.broadcaster = message.NewBroadcaster(cfg.logger)
	}
	if cfg.executor != nil {
		s.broadcaster.SetCallbackExecutor(cfg.executor)
	}

	s.engine, err = cmdqueue.NewEngine(serial, s.transport, s, s.onEngineFailure,
		cmdqueue.WithCommandTimeout(cfg.commandTimeout),
		cmdqueue.WithMaxAllowedFailures(cfg.maxFailures),
		cmdqueue.WithLogger(cfg.logger),
	)
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}

	s.broadcaster.SetQueueListener(serial, s.engine)
	s.broadcaster.SetVoltageConverter(serial, s.convertVoltage)

	return s, nil
}

// FromResponse creates a session for a board found by the locator.
// The host and board revision come from resp; opts may override the rest.
func FromResponse(resp *locator.Response, opts ...Option) (*Session, error) {
	if resp == nil {
		return nil, errors.New("session: locator response must not be nil")
	}

	cfg, err := NewConfig(resp.HostIP, append([]Option{WithRevision(resp.Type)}, opts...)...)
	if err != nil {
		return nil, err
	}

	return New(resp.Serial, cfg)
}

func (s *Session) Serial() string                    { return s.serial }
func (s *Session) Board() board.Board                { return s.board }
func (s *Session) Config() *Config                   { return s.cfg }
func (s *Session) Endpoint() string                  { return s.transport.Endpoint() }
func (s *Session) Engine() *cmdqueue.Engine          { return s.engine }
func (s *Session) Broadcaster() *message.Broadcaster { return s.broadcaster }
func (s *Session) State() ConnState                  { return s.stateMgr.State() }

// AddStateHandler registers h for connection state changes.
func (s *Session) AddStateHandler(h ConnStateChangeHandler) { s.stateMgr.AddHandler(h) }

// WaitState waits until the connection reaches state or ctx is done.
func (s *Session) WaitState(ctx context.Context, state ConnState) error {
	return s.stateMgr.WaitState(ctx, state)
}

// IsConnected reports whether the session is connected and its transport is open.
func (s *Session) IsConnected() bool {
	return s.stateMgr.IsConnected() && s.transport.IsConnected()
}

// Connect opens the transport, starts the reader and the command queue, sets
// the analog scale on the board and starts the heartbeat.
func (s *Session) Connect(ctx context.Context) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	return s.connectLocked(ctx)
}

func (s *Session) connectLocked(ctx context.Context) error {
	if s.closed {
		return ErrClosed
	}

	if err := s.stateMgr.ToConnecting(); err != nil {
		return fmt.Errorf("%w: state %s", ErrAlreadyConnected, s.stateMgr.State())
	}

	if err := s.transport.Connect(ctx); err != nil {
		s.stateMgr.ToNotConnected()
		return fmt.Errorf("session: connect %s: %w", s.transport.Endpoint(), err)
	}

	s.traffic.Store(false)
	s.keepAlive.Store(false)
	s.closing.Store(false)
	s.terminal.Store(false)

	if err := s.stateMgr.ToConnected(); err != nil {
		_ = s.teardownLocked()
		return err
	}

	if err := s.engine.Start(context.WithoutCancel(ctx)); err != nil {
		_ = s.teardownLocked()
		return fmt.Errorf("session: %w", err)
	}

	reader := message.NewReader(s.transport)
	if err := s.taskMgr.Start("reader", func() bool { return s.receive(reader) }, nil); err != nil {
		_ = s.teardownLocked()
		return err
	}

	s.engine.EnqueueCommand(command.SetAnalogInputScale(s.AnalogScale()))
	s.startHeartbeat()

	s.logger.Info("board connected", "endpoint", s.transport.Endpoint())

	return nil
}

// Disconnect closes the connection without telling the board. Queued
// commands are dropped and the heartbeat and throttled reads stop.
//
// Disconnect waits for the command writer, so it must not be called from a
// task callback; start a goroutine there instead.
func (s *Session) Disconnect() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.stateMgr.IsNotConnected() {
		return nil
	}

	return s.teardownLocked()
}

func (s *Session) teardownLocked() error {
	s.stateMgr.ToNotConnected()
	s.stopHeartbeat()
	s.HaltThrottledDigitalInput()

	s.engine.Purge(true)
	s.taskMgr.Stop()

	// closing the transport first unblocks a pending read or write
	err := s.transport.Disconnect()
	s.engine.Stop()
	s.taskMgr.Wait()

	s.logger.Info("board disconnected", "endpoint", s.transport.Endpoint())

	return err
}

// DisconnectCleanly asks the board to close the connection. The session
// disconnects once the board acknowledges. A refused request raises
// PartialDisconnection.
func (s *Session) DisconnectCleanly() error {
	if !s.IsConnected() {
		return ErrNotConnected
	}

	s.stopHeartbeat()
	s.HaltThrottledDigitalInput()
	s.closing.Store(true)

	task := command.NewTask(&command.TaskFuncs{
		Success: func() {
			go func() {
				if err := s.Disconnect(); err != nil {
					s.logger.Warn("disconnect after clean disconnect failed", "error", err)
				}
			}()
		},
		Failed: func() {
			s.closing.Store(false)
			s.raise(PartialDisconnection, errCleanDisconnectFail)
		},
	})
	task.Add(command.Disconnect())
	s.engine.EnqueueTask(task)

	return nil
}

// Restore drops queued commands, reconnects and resets the board inputs.
// With reactivate the inputs active before are added again with their
// configuration, otherwise they are marked inactive. A failure of the reset
// raises FailedToReinitialize.
//
// Like Disconnect, Restore must not be called from a task callback.
func (s *Session) Restore(ctx context.Context, reactivate bool) error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	s.engine.Purge(false)

	if !s.stateMgr.IsNotConnected() {
		if err := s.teardownLocked(); err != nil {
			s.logger.Warn("close transport before restore failed", "error", err)
		}
	}

	if err := s.connectLocked(ctx); err != nil {
		return err
	}

	task := command.NewTask(&command.TaskFuncs{
		Failed: func() { s.raise(FailedToReinitialize, errReinitializeFailed) },
	})
	task.Add(command.DeactivateAllAnalogInputs(s.board)...)
	task.Add(command.DeactivateAllDigitalInputs(s.board)...)

	if reactivate {
		for _, in := range s.ActiveAnalogInputs() {
			task.Add(command.AddAnalogInput(in.Channel, in.Gain, in.Rate, in.Buffer))
		}
		for _, in := range s.channels.digitalInputs(true) {
			if in.PWM {
				task.Add(command.AddPWMInput(in.Channel))
			} else {
				task.Add(command.AddDigitalInput(in.Channel))
			}
		}
	} else {
		s.channels.deactivateAll()
	}

	s.engine.EnqueueTask(task)
	s.logger.Info("board restored", "reactivate", reactivate)

	return nil
}

// Close disconnects, stops the scheduler and drops the board's listener registrations.
func (s *Session) Close() error {
	s.lifecycleMu.Lock()
	defer s.lifecycleMu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	var err error
	if !s.stateMgr.IsNotConnected() {
		err = s.teardownLocked()
	}

	s.sched.Stop()
	s.broadcaster.RemoveBoard(s.serial)

	return err
}

// receive reads one record and routes it. It returns false when the stream ended.
func (s *Session) receive(r *message.Reader) bool {
	msg, record, err := r.ReadMessage()
	if err != nil {
		if record != "" || errors.Is(err, message.ErrRecordTooLarge) {
			s.traffic.Store(true)
			s.logger.Debug("board record dropped", "record", record, "error", err)

			return true
		}
		s.onReaderStopped(err)

		return false
	}

	s.traffic.Store(true)

	if tm, ok := msg.(*message.TextMessage); ok && tm.IsNetwork() {
		s.broadcaster.DispatchNetworkCondition(s.serial, tm)
	}
	s.broadcaster.Dispatch(s.serial, msg)

	return true
}

func (s *Session) onReaderStopped(err error) {
	if !s.stateMgr.IsConnected() {
		s.logger.Debug("reader stopped", "error", err)
		return
	}

	if s.closing.Load() {
		s.logger.Info("board closed the connection")
		go func() { _ = s.Disconnect() }()

		return
	}

	s.stopHeartbeat()
	s.raiseTerminal(TerminalConnectionDisruption, fmt.Errorf("%w: %w", errReaderStopped, err))
}

func (s *Session) onEngineFailure(f cmdqueue.Failure, err error) {
	if !s.stateMgr.IsConnected() {
		s.logger.Debug("command failure after disconnect ignored", "failure", f, "error", err)
		return
	}
	s.raiseTerminal(fromFailure(f), err)
}

func (s *Session) startHeartbeat() {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()

	s.sched.Cancel(s.heartbeat)
	s.heartbeat = s.sched.Every(s.cfg.heartbeatInterval, s.beat)
}

func (s *Session) stopHeartbeat() {
	s.hbMu.Lock()
	defer s.hbMu.Unlock()

	s.sched.Cancel(s.heartbeat)
	s.heartbeat = 0
}

// beat checks for traffic since the previous beat. The first silent period
// queues a keep-alive, the second one ends the connection.
func (s *Session) beat() {
	if s.traffic.Swap(false) {
		s.keepAlive.Store(false)
		return
	}

	if s.keepAlive.Load() {
		s.stopHeartbeat()
		s.raiseTerminal(TerminalConnectionDisruption, errHeartbeatLost)

		return
	}

	s.keepAlive.Store(true)
	s.engine.EnqueueCommand(command.None())
}

// throttleJob counts the remaining reads of one throttled schedule.
type throttleJob struct {
	handle    sched.Handle
	remaining int
}

// ReadThrottledDigitalInput reads all digital inputs once every rate, samples
// times. A negative samples reads until HaltThrottledDigitalInput. Starting a
// new throttle replaces the previous one.
func (s *Session) ReadThrottledDigitalInput(rate time.Duration, samples int) error {
	if rate < MinThrottleRate {
		return fmt.Errorf("session: throttle rate %v below %v", rate, MinThrottleRate)
	}
	if !s.IsConnected() {
		return ErrNotConnected
	}

	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()

	s.sched.Cancel(s.throttle)
	s.throttle = 0
	if samples == 0 {
		return nil
	}

	job := &throttleJob{remaining: samples}
	job.handle = s.sched.Every(rate, func() { s.throttledRead(job) })
	s.throttle = job.handle

	return nil
}

func (s *Session) throttledRead(job *throttleJob) {
	s.engine.EnqueueCommand(command.ReadAllDigitalInput(1))

	if job.remaining < 0 {
		return
	}
	job.remaining--
	if job.remaining > 0 {
		return
	}

	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()

	s.sched.Cancel(job.handle)
	if s.throttle == job.handle {
		s.throttle = 0
	}
}

// HaltThrottledDigitalInput stops throttled digital input reads.
func (s *Session) HaltThrottledDigitalInput() {
	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()

	s.sched.Cancel(s.throttle)
	s.throttle = 0
}

// IsThrottling reports whether throttled digital input reads are scheduled.
func (s *Session) IsThrottling() bool {
	s.throttleMu.Lock()
	defer s.throttleMu.Unlock()

	return s.sched.Active(s.throttle)
}

// AnalogScale returns the analog input scale of the board.
func (s *Session) AnalogScale() board.AnalogScale {
	s.scaleMu.RLock()
	defer s.scaleMu.RUnlock()

	return s.scale
}

// SetAnalogInputScale changes the analog input scale used by the board and by voltage conversion.
func (s *Session) SetAnalogInputScale(scale board.AnalogScale) error {
	if _, err := s.board.ScaleMultiplier(scale); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	s.scaleMu.Lock()
	s.scale = scale
	s.scaleMu.Unlock()

	if s.IsConnected() {
		s.engine.EnqueueCommand(command.SetAnalogInputScale(scale))
	}

	return nil
}

// convertVoltage converts a count of channel with the channel gain and the board scale.
// The temperature sensor is always sampled at the fixed reference gain on the 5V scale.
func (s *Session) convertVoltage(channel int, count int32) float64 {
	if channel == s.board.TemperatureSensorInput() {
		return s.board.Voltage(count, board.GainX4, board.Scale5V)
	}

	gain := DefaultGain
	if in, ok := s.channels.analogInput(channel); ok {
		gain = in.Gain
	}

	return s.board.Voltage(count, gain, s.AnalogScale())
}

// Temperature converts a count of the onboard temperature sensor to degrees Celsius.
func (s *Session) Temperature(count int32) float64 {
	return s.board.Temperature(count)
}
