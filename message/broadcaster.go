package message

import (
	"sync"
	"sync/atomic"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-tekdaqc/logger"
)

// boardRegistry holds every listener registered for one board.
type boardRegistry struct {
	full    listenerSet[Listener]
	network listenerSet[NetworkListener]
	count   channelRegistry[CountListener]
	voltage channelRegistry[VoltageListener]
	digital channelRegistry[DigitalListener]
	pwm     channelRegistry[PWMListener]

	mu        sync.RWMutex
	queue     QueueListener
	converter VoltageConverter
}

func newBoardRegistry() *boardRegistry {
	return &boardRegistry{
		count:   newChannelRegistry[CountListener](),
		voltage: newChannelRegistry[VoltageListener](),
		digital: newChannelRegistry[DigitalListener](),
		pwm:     newChannelRegistry[PWMListener](),
	}
}

func (r *boardRegistry) queueListener() QueueListener {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.queue
}

func (r *boardRegistry) voltageConverter() VoltageConverter {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.converter
}

type executorHolder struct {
	exec Executor
}

// Broadcaster routes parsed messages of each board to its listeners.
//
// Dispatch never runs listener code on the caller's goroutine; the work is
// submitted to the callback executor. Registrations are safe for concurrent
// use and may be changed from inside a callback.
type Broadcaster struct {
	boards   *xsync.MapOf[string, *boardRegistry]
	executor atomic.Pointer[executorHolder]
	logger   logger.Logger
}

// NewBroadcaster creates a Broadcaster using GoExecutor for dispatch.
func NewBroadcaster(l logger.Logger) *Broadcaster {
	if l == nil {
		l = logger.GetLogger()
	}

	b := &Broadcaster{
		boards: xsync.NewMapOf[string, *boardRegistry](),
		logger: l.With("component", "broadcaster"),
	}
	b.executor.Store(&executorHolder{exec: GoExecutor{}})

	return b
}

// SetCallbackExecutor replaces the executor used by Dispatch.
//
// Call it only while no dispatch is in flight, typically right after a full halt.
// Work already submitted to the previous executor keeps running there.
func (b *Broadcaster) SetCallbackExecutor(exec Executor) {
	if exec == nil {
		exec = GoExecutor{}
	}
	b.executor.Store(&executorHolder{exec: exec})
}

func (b *Broadcaster) registry(boardSerial string) *boardRegistry {
	reg, _ := b.boards.LoadOrCompute(boardSerial, newBoardRegistry)
	return reg
}

// RemoveBoard drops every registration of the board.
func (b *Broadcaster) RemoveBoard(boardSerial string) {
	b.boards.Delete(boardSerial)
}

// SetQueueListener registers the command engine of the board. nil clears it.
func (b *Broadcaster) SetQueueListener(boardSerial string, l QueueListener) {
	reg := b.registry(boardSerial)
	reg.mu.Lock()
	reg.queue = l
	reg.mu.Unlock()
}

// SetVoltageConverter registers the count to voltage conversion of the board.
func (b *Broadcaster) SetVoltageConverter(boardSerial string, conv VoltageConverter) {
	reg := b.registry(boardSerial)
	reg.mu.Lock()
	reg.converter = conv
	reg.mu.Unlock()
}

// AddMessageListener registers l for every message of the board. Adding a listener twice is a no-op.
func (b *Broadcaster) AddMessageListener(boardSerial string, l Listener) {
	b.registry(boardSerial).full.add(l)
}

// RemoveMessageListener unregisters l. Unknown boards and listeners are ignored.
func (b *Broadcaster) RemoveMessageListener(boardSerial string, l Listener) {
	if reg, ok := b.boards.Load(boardSerial); ok {
		reg.full.remove(l)
	}
}

// AddNetworkListener registers l for network condition reports. Adding a listener twice is a no-op.
func (b *Broadcaster) AddNetworkListener(boardSerial string, l NetworkListener) {
	b.registry(boardSerial).network.add(l)
}

// RemoveNetworkListener unregisters l. Unknown boards and listeners are ignored.
func (b *Broadcaster) RemoveNetworkListener(boardSerial string, l NetworkListener) {
	if reg, ok := b.boards.Load(boardSerial); ok {
		reg.network.remove(l)
	}
}

// AddCountListener registers l for raw counts of an analog channel. Adding a listener twice is a no-op.
func (b *Broadcaster) AddCountListener(boardSerial string, channel int, l CountListener) {
	b.registry(boardSerial).count.add(channel, l)
}

// RemoveCountListener unregisters l; the channel entry is dropped with its last listener.
func (b *Broadcaster) RemoveCountListener(boardSerial string, channel int, l CountListener) {
	if reg, ok := b.boards.Load(boardSerial); ok {
		reg.count.remove(channel, l)
	}
}

// AddVoltageListener registers l for converted voltages of an analog channel. Adding a listener twice is a no-op.
func (b *Broadcaster) AddVoltageListener(boardSerial string, channel int, l VoltageListener) {
	b.registry(boardSerial).voltage.add(channel, l)
}

// RemoveVoltageListener unregisters l; the channel entry is dropped with its last listener.
func (b *Broadcaster) RemoveVoltageListener(boardSerial string, channel int, l VoltageListener) {
	if reg, ok := b.boards.Load(boardSerial); ok {
		reg.voltage.remove(channel, l)
	}
}

// AddDigitalListener registers l for a digital input channel. Adding a listener twice is a no-op.
func (b *Broadcaster) AddDigitalListener(boardSerial string, channel int, l DigitalListener) {
	b.registry(boardSerial).digital.add(channel, l)
}

// RemoveDigitalListener unregisters l; the channel entry is dropped with its last listener.
func (b *Broadcaster) RemoveDigitalListener(boardSerial string, channel int, l DigitalListener) {
	if reg, ok := b.boards.Load(boardSerial); ok {
		reg.digital.remove(channel, l)
	}
}

// AddPWMListener registers l for a PWM input channel. Adding a listener twice is a no-op.
func (b *Broadcaster) AddPWMListener(boardSerial string, channel int, l PWMListener) {
	b.registry(boardSerial).pwm.add(channel, l)
}

// RemovePWMListener unregisters l; the channel entry is dropped with its last listener.
func (b *Broadcaster) RemovePWMListener(boardSerial string, channel int, l PWMListener) {
	if reg, ok := b.boards.Load(boardSerial); ok {
		reg.pwm.remove(channel, l)
	}
}

// Dispatch submits msg for delivery to the board's listeners and returns immediately.
func (b *Broadcaster) Dispatch(boardSerial string, msg Message) {
	if msg == nil {
		return
	}

	b.executor.Load().exec.Submit(func() {
		b.dispatch(boardSerial, msg)
	})
}

// DispatchNetworkCondition delivers msg to the board's network listeners only.
func (b *Broadcaster) DispatchNetworkCondition(boardSerial string, msg *TextMessage) {
	if msg == nil {
		return
	}

	b.executor.Load().exec.Submit(func() {
		reg, ok := b.boards.Load(boardSerial)
		if !ok {
			return
		}
		for _, l := range reg.network.snapshot() {
			b.call(boardSerial, msg.Kind(), func() { l.OnNetworkCondition(boardSerial, msg) })
		}
	})
}

func (b *Broadcaster) dispatch(boardSerial string, msg Message) {
	reg, ok := b.boards.Load(boardSerial)
	if !ok {
		b.logger.Debug("no listener registry for board", "board", boardSerial, "kind", msg.Kind())
		return
	}

	switch m := msg.(type) {
	case *TextMessage:
		b.dispatchText(boardSerial, reg, m)
	case *AnalogInputData:
		b.dispatchAnalog(boardSerial, reg, m)
	case *DigitalInputData:
		for _, l := range reg.full.snapshot() {
			b.call(boardSerial, m.Kind(), func() { l.OnDigitalInputData(boardSerial, m) })
		}
		for _, l := range reg.digital.snapshot(m.Channel) {
			b.call(boardSerial, m.Kind(), func() { l.OnDigitalInput(boardSerial, m) })
		}
	case *PWMInputData:
		for _, l := range reg.pwm.snapshot(m.Channel) {
			b.call(boardSerial, m.Kind(), func() { l.OnPWMInput(boardSerial, m) })
		}
	case *DigitalOutputData:
		for _, l := range reg.full.snapshot() {
			b.call(boardSerial, m.Kind(), func() { l.OnDigitalOutputData(boardSerial, m) })
		}
	default:
		b.logger.Warn("unrecognized message kind, not delivered", "board", boardSerial, "kind", msg.Kind())
	}
}

func (b *Broadcaster) dispatchText(boardSerial string, reg *boardRegistry, m *TextMessage) {
	kind := m.Kind()

	// the command engine sees status and error before anyone else
	if kind == KindStatus || kind == KindError {
		if q := reg.queueListener(); q != nil {
			b.call(boardSerial, kind, func() {
				if kind == KindStatus {
					q.OnStatus(boardSerial, m)
				} else {
					q.OnError(boardSerial, m)
				}
			})
		}
	}

	var deliver func(l Listener)
	switch kind {
	case KindStatus:
		deliver = func(l Listener) { l.OnStatus(boardSerial, m) }
	case KindError:
		deliver = func(l Listener) { l.OnError(boardSerial, m) }
	case KindDebug:
		deliver = func(l Listener) { l.OnDebug(boardSerial, m) }
	case KindCommandData:
		deliver = func(l Listener) { l.OnCommandData(boardSerial, m) }
	default:
		b.logger.Warn("unrecognized text message kind, not delivered", "board", boardSerial, "kind", kind)
		return
	}

	for _, l := range reg.full.snapshot() {
		b.call(boardSerial, kind, func() { deliver(l) })
	}
}

func (b *Broadcaster) dispatchAnalog(boardSerial string, reg *boardRegistry, m *AnalogInputData) {
	for _, l := range reg.full.snapshot() {
		b.call(boardSerial, m.Kind(), func() { l.OnAnalogData(boardSerial, m) })
	}

	for _, l := range reg.count.snapshot(m.Channel) {
		b.call(boardSerial, m.Kind(), func() { l.OnAnalogCount(boardSerial, m) })
	}

	voltageListeners := reg.voltage.snapshot(m.Channel)
	if len(voltageListeners) == 0 {
		return
	}

	conv := reg.voltageConverter()
	if conv == nil {
		b.logger.Warn("voltage listeners registered without a converter", "board", boardSerial, "channel", m.Channel)
		return
	}

	var volts float64
	ok := b.call(boardSerial, m.Kind(), func() { volts = conv(m.Channel, m.Count) })
	if !ok {
		return
	}

	for _, l := range voltageListeners {
		b.call(boardSerial, m.Kind(), func() { l.OnVoltage(boardSerial, m.Channel, m.Timestamp, volts) })
	}
}

// call runs fn, recovering and logging a panic so the remaining listeners still run.
func (b *Broadcaster) call(boardSerial string, kind Kind, fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("listener panic recovered", "board", boardSerial, "kind", kind, "panic", r)
			ok = false
		}
	}()
	fn()

	return true
}
