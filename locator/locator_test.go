package locator

import (
	"context"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-tekdaqc/logger"
)

func makeDatagram(serial string, typ byte, firmware [4]byte, title string) []byte {
	data := make([]byte, ResponseSize)
	data[idxType] = typ
	copy(data[idxSerialStart:idxSerialEnd], serial)
	copy(data[idxMACStart:idxMACEnd], []byte{0x00, 0x80, 0xe1, 0x1a, 0x2b, 0x3c})
	copy(data[idxFirmwareStart:idxFirmwareEnd], firmware[:])
	copy(data[idxTitleStart:idxTitleEnd], title)

	return data
}

// fakeBoards answers every discovery request with the configured datagrams.
type fakeBoards struct {
	conn     net.PacketConn
	port     int
	requests atomic.Int32

	mu        sync.Mutex
	datagrams [][]byte
}

func newFakeBoards(t *testing.T, datagrams ...[]byte) *fakeBoards {
	t.Helper()

	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	require.NoError(t, err)

	f := &fakeBoards{conn: conn, port: conn.LocalAddr().(*net.UDPAddr).Port, datagrams: datagrams}
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buf := make([]byte, 64)
		for {
			n, from, err := conn.ReadFrom(buf)
			if err != nil {
				return
			}
			if string(buf[:n]) != DefaultMessage {
				continue
			}
			f.requests.Add(1)

			f.mu.Lock()
			datagrams := f.datagrams
			f.mu.Unlock()
			for _, d := range datagrams {
				_, _ = conn.WriteTo(d, from)
			}
		}
	}()

	return f
}

func (f *fakeBoards) set(datagrams ...[]byte) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.datagrams = datagrams
}

func newTestLocator(t *testing.T, port int, opts ...Option) *Locator {
	t.Helper()

	opts = append([]Option{
		WithAddress("127.0.0.1"),
		WithPort(port),
		WithTimeout(60 * time.Millisecond),
		WithPeriod(80 * time.Millisecond),
		WithLogger(logger.NewNopMockLogger()),
	}, opts...)
	params, err := NewParams(opts...)
	require.NoError(t, err)

	l := New(params)
	t.Cleanup(l.Close)

	return l
}

type eventRecorder struct {
	mu        sync.Mutex
	first     []string
	responses []string
	lost      []string
}

func (r *eventRecorder) listener() *ListenerFuncs {
	return &ListenerFuncs{
		FirstLocated: func(resp *Response) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.first = append(r.first, resp.Serial)
		},
		Response: func(resp *Response) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.responses = append(r.responses, resp.Serial)
		},
		NoLongerLocated: func(resp *Response) {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.lost = append(r.lost, resp.Serial)
		},
	}
}

func (r *eventRecorder) counts() (int, int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.first), len(r.responses), len(r.lost)
}

const (
	serialA = "0123456789ABCDEF0123456789ABCDEF"
	serialB = "00000000000000000000000000000B0B"
)

func TestParseResponse(t *testing.T) {
	require := require.New(t)

	data := makeDatagram(serialA, 'D', [4]byte{1, 2, 0, 7}, "Tekdaqc CE")
	resp, err := ParseResponse("192.168.1.20", data)
	require.NoError(err)
	require.Equal("192.168.1.20", resp.HostIP)
	require.Equal(byte('D'), resp.Type)
	require.Equal(serialA, resp.Serial)
	require.Equal("00:80:e1:1a:2b:3c", resp.MAC)
	require.Equal("1.2.0.7", resp.Firmware)
	require.Equal("Tekdaqc CE", resp.Title)

	b, err := resp.Board()
	require.NoError(err)
	require.Equal(32, b.AnalogInputCount())

	short := makeDatagram("short", 'D', [4]byte{1, 0, 0, 0}, "")
	resp, err = ParseResponse("10.0.0.1", short)
	require.NoError(err)
	require.Equal("short", resp.Serial)

	_, err = ParseResponse("10.0.0.1", data[:ResponseSize-1])
	require.ErrorIs(err, ErrShortResponse)
}

func TestResponse_Msgpack(t *testing.T) {
	resp, err := ParseResponse("10.0.0.2", makeDatagram(serialB, 'E', [4]byte{2, 0, 0, 1}, "lab"))
	require.NoError(t, err)

	data, err := resp.MarshalBinary()
	require.NoError(t, err)

	var decoded Response
	require.NoError(t, decoded.UnmarshalBinary(data))
	require.Equal(t, *resp, decoded)

	require.Error(t, decoded.UnmarshalBinary([]byte{0xc1}))
}

func TestParams_Accepts(t *testing.T) {
	resp := &Response{Type: 'D', Serial: serialA, Firmware: "1.0.0.0", Title: "Tekdaqc"}

	tests := []struct {
		name   string
		opts   []Option
		resp   *Response
		accept bool
	}{
		{"defaults", nil, resp, true},
		{"serial match", []Option{WithSerial(serialA)}, resp, true},
		{"serial mismatch", []Option{WithSerial(serialB)}, resp, false},
		{"title mismatch", []Option{WithTitle("other")}, resp, false},
		{"type match", []Option{WithType('D')}, resp, true},
		{"type mismatch", []Option{WithType('E')}, resp, false},
		{"firmware mismatch", []Option{WithFirmware("2.0.0.0")}, resp, false},
		{"invalid firmware", nil, &Response{Type: 'D', Serial: serialA, Firmware: "0.0.0.0"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewParams(tt.opts...)
			require.NoError(t, err)
			assert.Equal(t, tt.accept, p.Accepts(tt.resp))
		})
	}
}

func TestNewParams(t *testing.T) {
	p, err := NewParams()
	require.NoError(t, err)
	require.Equal(t, DefaultAddress, p.Address())
	require.Equal(t, DefaultPort, p.Port())
	require.Equal(t, DefaultTimeout, p.Timeout())
	require.Equal(t, DefaultPeriod, p.Period())
	require.Equal(t, DefaultMessage, p.Message())
	require.Equal(t, TypeAny, p.Type())

	for _, opt := range []Option{
		WithAddress(""), WithPort(0), WithTimeout(0), WithPeriod(-time.Second), WithMessage(""), WithLogger(nil),
	} {
		_, err := NewParams(opt)
		require.Error(t, err)
	}
}

func TestLocator_Locate(t *testing.T) {
	require := require.New(t)

	boards := newFakeBoards(t,
		makeDatagram(serialA, 'D', [4]byte{1, 0, 0, 3}, "Tekdaqc"),
		makeDatagram(serialB, 'D', [4]byte{0, 0, 0, 0}, "unflashed"),
		[]byte("garbage"),
	)
	l := newTestLocator(t, boards.port)

	rec := &eventRecorder{}
	ln := rec.listener()
	l.AddListener(ln)
	l.AddListener(ln)

	resps, err := l.Locate(context.Background())
	require.NoError(err)
	require.Len(resps, 1)
	require.Equal(serialA, resps[0].Serial)
	require.Equal("127.0.0.1", resps[0].HostIP)

	_, err = l.Locate(context.Background())
	require.NoError(err)

	first, responses, lost := rec.counts()
	require.Equal(1, first)
	require.Equal(2, responses)
	require.Equal(0, lost)

	known, ok := l.Board(serialA)
	require.True(ok)
	require.Equal("1.0.0.3", known.Firmware)
	require.Len(l.KnownBoards(), 1)

	l.RemoveListener(ln)
	_, err = l.Locate(context.Background())
	require.NoError(err)
	_, responses, _ = rec.counts()
	require.Equal(2, responses)
}

func TestLocator_SearchSweepsLostBoards(t *testing.T) {
	require := require.New(t)

	boards := newFakeBoards(t,
		makeDatagram(serialA, 'D', [4]byte{1, 0, 0, 0}, ""),
		makeDatagram(serialB, 'E', [4]byte{1, 0, 0, 0}, ""),
	)
	l := newTestLocator(t, boards.port)

	rec := &eventRecorder{}
	l.AddListener(rec.listener())
	l.Retain(serialB)

	require.NoError(l.Search(context.Background()))
	require.NoError(l.Search(context.Background()))
	require.True(l.IsActive())

	require.Eventually(func() bool { return len(l.KnownBoards()) == 2 }, 2*time.Second, 10*time.Millisecond)

	boards.set()

	require.Eventually(func() bool {
		_, _, lost := rec.counts()
		return lost == 1
	}, 2*time.Second, 10*time.Millisecond)

	_, okA := l.Board(serialA)
	_, okB := l.Board(serialB)
	require.False(okA)
	require.True(okB, "retained boards survive the sweep")

	l.Cancel()
	require.False(l.IsActive())

	requests := boards.requests.Load()
	time.Sleep(250 * time.Millisecond)
	require.LessOrEqual(boards.requests.Load()-requests, int32(1))
}

func TestLocator_SearchFor(t *testing.T) {
	boards := newFakeBoards(t, makeDatagram(serialA, 'D', [4]byte{1, 0, 0, 0}, ""))
	l := newTestLocator(t, boards.port)

	require.Error(t, l.SearchFor(context.Background(), 0))
	require.NoError(t, l.SearchFor(context.Background(), 200*time.Millisecond))
	require.True(t, l.IsActive())

	require.Eventually(t, func() bool { return !l.IsActive() }, 2*time.Second, 10*time.Millisecond)
	_, ok := l.Board(serialA)
	require.True(t, ok)
}

func TestLocator_AwaitBoards(t *testing.T) {
	require := require.New(t)

	boards := newFakeBoards(t, makeDatagram(serialA, 'D', [4]byte{1, 0, 0, 0}, ""))
	l := newTestLocator(t, boards.port)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resps, err := l.AwaitBoards(ctx, serialA)
	require.NoError(err)
	require.Len(resps, 1)
	require.False(l.IsActive(), "a search started by AwaitBoards is cancelled on return")

	// known boards return without starting a search
	resps, err = l.AwaitBoards(ctx, serialA)
	require.NoError(err)
	require.Len(resps, 1)
	require.False(l.IsActive())

	shortCtx, shortCancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer shortCancel()

	resps, err = l.AwaitBoards(shortCtx, serialA, serialB)
	require.ErrorIs(err, ErrNotLocated)
	require.Len(resps, 1)
	require.Contains(err.Error(), serialB)
}

func TestLocator_IndependentInstances(t *testing.T) {
	boardsA := newFakeBoards(t, makeDatagram(serialA, 'D', [4]byte{1, 0, 0, 0}, ""))
	boardsB := newFakeBoards(t, makeDatagram(serialB, 'D', [4]byte{1, 0, 0, 0}, ""))

	la := newTestLocator(t, boardsA.port)
	lb := newTestLocator(t, boardsB.port)

	require.NoError(t, la.Search(context.Background()))
	require.NoError(t, lb.Search(context.Background()))

	require.Eventually(t, func() bool {
		return len(la.KnownBoards()) == 1 && len(lb.KnownBoards()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	la.Cancel()
	require.False(t, la.IsActive())
	require.True(t, lb.IsActive())

	_, ok := la.Board(serialB)
	require.False(t, ok)
}
