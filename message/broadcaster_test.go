package message

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-tekdaqc/board"
	"github.com/arloliu/go-tekdaqc/logger"
)

const testBoard = "00000000000000000000000000000012"

// syncExecutor runs dispatch inline so tests can assert without waiting.
type syncExecutor struct{}

func (syncExecutor) Submit(task func()) { task() }

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) add(ev string) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

func (r *recorder) list() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]string(nil), r.events...)
}

type queueHook struct{ rec *recorder }

func (q *queueHook) OnStatus(_ string, msg *TextMessage) { q.rec.add("queue:status:" + msg.Text()) }
func (q *queueHook) OnError(_ string, msg *TextMessage)  { q.rec.add("queue:error:" + msg.Text()) }

type countHook struct{ rec *recorder }

func (c *countHook) OnAnalogCount(_ string, d *AnalogInputData) { c.rec.add("count") }

type voltageHook struct {
	mu    sync.Mutex
	volts []float64
}

func (v *voltageHook) OnVoltage(_ string, _ int, _ int64, volts float64) {
	v.mu.Lock()
	v.volts = append(v.volts, volts)
	v.mu.Unlock()
}

type digitalHook struct{ rec *recorder }

func (d *digitalHook) OnDigitalInput(_ string, data *DigitalInputData) { d.rec.add("digital") }

type pwmHook struct{ rec *recorder }

func (p *pwmHook) OnPWMInput(_ string, data *PWMInputData) { p.rec.add("pwm") }

type networkHook struct{ rec *recorder }

func (n *networkHook) OnNetworkCondition(_ string, msg *TextMessage) { n.rec.add("network:" + msg.Text()) }

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()

	b := NewBroadcaster(logger.NewNopMockLogger())
	b.SetCallbackExecutor(syncExecutor{})

	return b
}

func channelEntry(b *Broadcaster, boardSerial string, channel int) (int, bool) {
	reg, ok := b.boards.Load(boardSerial)
	if !ok {
		return 0, false
	}

	return reg.count.count(channel)
}

func TestBroadcaster_QueueListenerFirst(t *testing.T) {
	b := newTestBroadcaster(t)
	rec := &recorder{}

	b.AddMessageListener(testBoard, &ListenerFuncs{
		Status: func(_ string, msg *TextMessage) { rec.add("full:status:" + msg.Text()) },
		Error:  func(_ string, msg *TextMessage) { rec.add("full:error:" + msg.Text()) },
	})
	b.SetQueueListener(testBoard, &queueHook{rec: rec})

	b.Dispatch(testBoard, NewTextMessage(KindStatus, "SUCCESS"))
	b.Dispatch(testBoard, NewTextMessage(KindError, "FAIL"))
	b.Dispatch(testBoard, NewTextMessage(KindDebug, "ignored by queue"))

	assert.Equal(t, []string{
		"queue:status:SUCCESS",
		"full:status:SUCCESS",
		"queue:error:FAIL",
		"full:error:FAIL",
	}, rec.list())
}

func TestBroadcaster_IdempotentChannelRegistration(t *testing.T) {
	require := require.New(t)

	b := newTestBroadcaster(t)
	rec := &recorder{}
	l := &countHook{rec: rec}

	b.AddCountListener(testBoard, 3, l)
	b.AddCountListener(testBoard, 3, l)

	n, ok := channelEntry(b, testBoard, 3)
	require.True(ok)
	require.Equal(1, n)

	b.Dispatch(testBoard, &AnalogInputData{Channel: 3, Count: 10})
	require.Len(rec.list(), 1)

	b.RemoveCountListener(testBoard, 3, l)
	_, ok = channelEntry(b, testBoard, 3)
	require.False(ok, "removing the last listener removes the channel entry")

	b.Dispatch(testBoard, &AnalogInputData{Channel: 3, Count: 10})
	require.Len(rec.list(), 1)

	// removing from an unknown channel or board is a no-op
	b.RemoveCountListener(testBoard, 9, l)
	b.RemoveCountListener("unknown", 3, l)
	_, ok = channelEntry(b, testBoard, 9)
	require.False(ok)
}

func TestBroadcaster_ChannelEntriesDroppedWithLastListener(t *testing.T) {
	require := require.New(t)

	b := newTestBroadcaster(t)
	rec := &recorder{}
	v := &voltageHook{}
	d := &digitalHook{rec: rec}
	p := &pwmHook{rec: rec}

	b.AddVoltageListener(testBoard, 1, v)
	b.AddVoltageListener(testBoard, 1, v)
	b.AddDigitalListener(testBoard, 2, d)
	b.AddDigitalListener(testBoard, 2, d)
	b.AddPWMListener(testBoard, 3, p)
	b.AddPWMListener(testBoard, 3, p)

	reg, ok := b.boards.Load(testBoard)
	require.True(ok)

	n, ok := reg.voltage.count(1)
	require.True(ok)
	require.Equal(1, n)
	n, ok = reg.digital.count(2)
	require.True(ok)
	require.Equal(1, n)
	n, ok = reg.pwm.count(3)
	require.True(ok)
	require.Equal(1, n)

	b.RemoveVoltageListener(testBoard, 1, v)
	b.RemoveDigitalListener(testBoard, 2, d)
	b.RemovePWMListener(testBoard, 3, p)

	_, ok = reg.voltage.count(1)
	require.False(ok)
	_, ok = reg.digital.count(2)
	require.False(ok)
	_, ok = reg.pwm.count(3)
	require.False(ok)

	b.Dispatch(testBoard, &DigitalInputData{Channel: 2})
	b.Dispatch(testBoard, &PWMInputData{Channel: 3})
	require.Empty(rec.list())
}

func TestBroadcaster_VoltageConversion(t *testing.T) {
	b := newTestBroadcaster(t)
	rev := board.RevD{}

	b.SetVoltageConverter(testBoard, func(channel int, count int32) float64 {
		return rev.Voltage(count, board.GainX1, board.Scale5V)
	})

	l := &voltageHook{}
	b.AddVoltageListener(testBoard, 0, l)
	b.AddVoltageListener(testBoard, 1, &voltageHook{})

	b.Dispatch(testBoard, &AnalogInputData{Channel: 0, Timestamp: 1, Count: 4194304})

	require.Len(t, l.volts, 1)
	assert.InDelta(t, rev.Voltage(4194304, board.GainX1, board.Scale5V), l.volts[0], 1e-12)
	assert.InDelta(t, 2.5, l.volts[0], 1e-6)
}

func TestBroadcaster_ChannelRouting(t *testing.T) {
	b := newTestBroadcaster(t)
	rec := &recorder{}

	b.AddDigitalListener(testBoard, 2, &digitalHook{rec: rec})
	b.AddPWMListener(testBoard, 2, &pwmHook{rec: rec})
	b.AddCountListener(testBoard, 2, &countHook{rec: rec})

	b.Dispatch(testBoard, &DigitalInputData{Channel: 2, State: true})
	b.Dispatch(testBoard, &DigitalInputData{Channel: 1, State: true})
	b.Dispatch(testBoard, &PWMInputData{Channel: 2, Percentage: 50})
	b.Dispatch(testBoard, &AnalogInputData{Channel: 2})
	b.Dispatch("other-board", &AnalogInputData{Channel: 2})

	assert.Equal(t, []string{"digital", "pwm", "count"}, rec.list())
}

func TestBroadcaster_FullListenerKinds(t *testing.T) {
	b := newTestBroadcaster(t)
	rec := &recorder{}

	l := &ListenerFuncs{
		Debug:             func(string, *TextMessage) { rec.add("debug") },
		CommandData:       func(string, *TextMessage) { rec.add("command") },
		AnalogData:        func(string, *AnalogInputData) { rec.add("analog") },
		DigitalInputData:  func(string, *DigitalInputData) { rec.add("digital") },
		DigitalOutputData: func(string, *DigitalOutputData) { rec.add("output") },
	}
	b.AddMessageListener(testBoard, l)
	b.AddMessageListener(testBoard, l)

	b.Dispatch(testBoard, NewTextMessage(KindDebug, "d"))
	b.Dispatch(testBoard, NewTextMessage(KindCommandData, "c"))
	b.Dispatch(testBoard, &AnalogInputData{})
	b.Dispatch(testBoard, &DigitalInputData{})
	b.Dispatch(testBoard, &DigitalOutputData{Outputs: make([]bool, 16)})
	b.Dispatch(testBoard, NewTextMessage(Kind(42), "?"))

	assert.Equal(t, []string{"debug", "command", "analog", "digital", "output"}, rec.list())

	b.RemoveMessageListener(testBoard, l)
	b.Dispatch(testBoard, NewTextMessage(KindDebug, "d"))
	assert.Len(t, rec.list(), 5)
}

func TestBroadcaster_ListenerPanicIsolated(t *testing.T) {
	b := newTestBroadcaster(t)
	rec := &recorder{}

	b.AddMessageListener(testBoard, &ListenerFuncs{
		Status: func(string, *TextMessage) { panic("listener failure") },
	})
	b.AddMessageListener(testBoard, &ListenerFuncs{
		Status: func(string, *TextMessage) { rec.add("second") },
	})

	require.NotPanics(t, func() {
		b.Dispatch(testBoard, NewTextMessage(KindStatus, "SUCCESS"))
	})
	assert.Equal(t, []string{"second"}, rec.list())
}

func TestBroadcaster_NetworkCondition(t *testing.T) {
	b := newTestBroadcaster(t)
	rec := &recorder{}

	n := &networkHook{rec: rec}
	b.AddNetworkListener(testBoard, n)
	b.AddMessageListener(testBoard, &ListenerFuncs{
		Error: func(string, *TextMessage) { rec.add("full") },
	})

	msg, err := Parse("Error Message\r\nMessage: [NETWORK] overflow\r\n")
	require.NoError(t, err)
	text, _ := msg.(*TextMessage)

	b.DispatchNetworkCondition(testBoard, text)
	assert.Equal(t, []string{"network:[NETWORK] overflow"}, rec.list())

	b.RemoveNetworkListener(testBoard, n)
	b.DispatchNetworkCondition(testBoard, text)
	assert.Len(t, rec.list(), 1)
}

func TestBroadcaster_AsyncDispatch(t *testing.T) {
	b := NewBroadcaster(logger.NewNopMockLogger())
	pool := NewWorkerPool(2, 8)
	defer pool.Close()
	b.SetCallbackExecutor(pool)

	done := make(chan struct{})
	release := make(chan struct{})
	b.AddMessageListener(testBoard, &ListenerFuncs{
		Status: func(string, *TextMessage) {
			<-release
			close(done)
		},
	})

	// Dispatch returns while the listener is still blocked
	b.Dispatch(testBoard, NewTextMessage(KindStatus, "SUCCESS"))
	close(release)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("listener was not invoked")
	}
}

func TestBroadcaster_RegistrationFromCallback(t *testing.T) {
	b := newTestBroadcaster(t)
	rec := &recorder{}

	var self *ListenerFuncs
	self = &ListenerFuncs{
		Status: func(string, *TextMessage) {
			rec.add("once")
			b.RemoveMessageListener(testBoard, self)
		},
	}
	b.AddMessageListener(testBoard, self)

	b.Dispatch(testBoard, NewTextMessage(KindStatus, "a"))
	b.Dispatch(testBoard, NewTextMessage(KindStatus, "b"))
	assert.Equal(t, []string{"once"}, rec.list())
}

func TestWorkerPool_Close(t *testing.T) {
	pool := NewWorkerPool(1, 1)

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 5; i++ {
		pool.Submit(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	pool.Close()
	pool.Close()
	pool.Submit(func() { t.Error("task submitted after close must not run") })

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, ran)
}
