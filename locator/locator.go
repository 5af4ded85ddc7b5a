// Package locator discovers boards on the local network.
//
// A Locator broadcasts a discovery request over UDP and collects the
// datagrams boards answer with. Locators are independent: each one owns its
// scheduler, known-board table and listeners, so several can run side by side.
package locator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	"github.com/arloliu/go-tekdaqc/internal/sched"
	"github.com/arloliu/go-tekdaqc/logger"
)

const maxDatagramSize = 1024

var ErrNotLocated = errors.New("locator: boards not located")

// Listener is notified of discovery results.
//
// Implementations must be comparable, typically pointers, so they can be removed again.
type Listener interface {
	// OnFirstLocated is called the first time a board answers.
	OnFirstLocated(resp *Response)
	// OnResponse is called for every accepted answer.
	OnResponse(resp *Response)
	// OnNoLongerLocated is called when a known board missed a search round.
	OnNoLongerLocated(resp *Response)
}

// ListenerFuncs adapts functions to a Listener. Nil fields are skipped.
type ListenerFuncs struct {
	FirstLocated    func(resp *Response)
	Response        func(resp *Response)
	NoLongerLocated func(resp *Response)
}

func (f *ListenerFuncs) OnFirstLocated(resp *Response) {
	if f.FirstLocated != nil {
		f.FirstLocated(resp)
	}
}

func (f *ListenerFuncs) OnResponse(resp *Response) {
	if f.Response != nil {
		f.Response(resp)
	}
}

func (f *ListenerFuncs) OnNoLongerLocated(resp *Response) {
	if f.NoLongerLocated != nil {
		f.NoLongerLocated(resp)
	}
}

// Locator searches for boards and tracks the ones that answer.
type Locator struct {
	params *Params
	logger logger.Logger
	sched  *sched.Scheduler

	known    *xsync.MapOf[string, *Response]
	seen     *xsync.MapOf[string, struct{}]
	retained *xsync.MapOf[string, struct{}]

	lmu       sync.RWMutex
	listeners []Listener

	// mu guards the search state below.
	mu     sync.Mutex
	handle sched.Handle
	cancel context.CancelFunc
	swept  bool

	roundBusy atomic.Bool
}

// New creates a locator with params. A nil params uses the defaults.
func New(params *Params) *Locator {
	if params == nil {
		params, _ = NewParams()
	}
	l := params.GetLogger().With("component", "locator")

	return &Locator{
		params:   params,
		logger:   l,
		sched:    sched.New(l),
		known:    xsync.NewMapOf[string, *Response](),
		seen:     xsync.NewMapOf[string, struct{}](),
		retained: xsync.NewMapOf[string, struct{}](),
	}
}

// Params returns the locator parameters.
func (l *Locator) Params() *Params {
	return l.params
}

// AddListener registers ln. Adding the same listener twice is a no-op.
func (l *Locator) AddListener(ln Listener) {
	l.lmu.Lock()
	defer l.lmu.Unlock()

	if !slices.Contains(l.listeners, ln) {
		l.listeners = append(l.listeners, ln)
	}
}

// RemoveListener unregisters ln.
func (l *Locator) RemoveListener(ln Listener) {
	l.lmu.Lock()
	defer l.lmu.Unlock()

	if i := slices.Index(l.listeners, ln); i >= 0 {
		l.listeners = slices.Delete(l.listeners, i, i+1)
	}
}

// Search starts periodic discovery rounds until ctx is done or Cancel is called.
// Calling Search while a search is active is a no-op.
func (l *Locator) Search(ctx context.Context) error {
	searchCtx, cancel := context.WithCancel(ctx)
	if !l.startSearch(searchCtx, cancel) {
		cancel()
	}

	return nil
}

// SearchFor searches for d, then cancels itself.
// An active search is restarted so the duration applies from now.
func (l *Locator) SearchFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("locator: invalid search duration %v", d)
	}

	l.Cancel()

	searchCtx, cancel := context.WithTimeout(ctx, d)
	if !l.startSearch(searchCtx, cancel) {
		cancel()
	}

	return nil
}

// IsActive reports whether a search is running.
func (l *Locator) IsActive() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	return l.handle != 0
}

// Cancel stops the running search. Known boards are kept.
func (l *Locator) Cancel() {
	l.mu.Lock()
	handle, cancel := l.handle, l.cancel
	l.handle, l.cancel = 0, nil
	l.mu.Unlock()

	if handle == 0 {
		return
	}

	l.sched.Cancel(handle)
	cancel()
	l.logger.Debug("search cancelled")
}

// Close cancels the search and stops the scheduler.
func (l *Locator) Close() {
	l.Cancel()
	l.sched.Stop()
}

// Locate runs one discovery round and returns the accepted responses.
// Listeners are notified as for a periodic round.
func (l *Locator) Locate(ctx context.Context) ([]*Response, error) {
	addrs, err := l.targets()
	if err != nil {
		return nil, err
	}

	found := make(map[string]*Response)
	var errs []error
	for _, addr := range addrs {
		resps, err := l.locate(ctx, addr)
		if err != nil {
			errs = append(errs, err)
		}
		for _, r := range resps {
			found[r.Serial] = r
		}
	}

	result := make([]*Response, 0, len(found))
	for _, r := range found {
		result = append(result, r)
	}
	sortBySerial(result)

	// a round is only failed when no target could be reached
	if len(errs) == len(addrs) && len(errs) > 0 {
		return result, errors.Join(errs...)
	}

	return result, nil
}

// AwaitBoards blocks until every serial has answered or ctx is done.
// Boards already known are returned without waiting. A search is started when
// none is active and cancelled again on return.
//
// When ctx ends first, the located subset is returned with an ErrNotLocated error.
func (l *Locator) AwaitBoards(ctx context.Context, serials ...string) ([]*Response, error) {
	found := make(map[string]*Response, len(serials))
	for _, s := range serials {
		if r, ok := l.known.Load(s); ok {
			found[s] = r
		}
	}
	if len(found) == len(serials) {
		return collect(serials, found), nil
	}

	ch := make(chan *Response)
	done := make(chan struct{})
	defer close(done)

	ln := &ListenerFuncs{Response: func(r *Response) {
		select {
		case ch <- r:
		case <-done:
		case <-ctx.Done():
		}
	}}
	l.AddListener(ln)
	defer l.RemoveListener(ln)

	if !l.IsActive() {
		if err := l.Search(ctx); err != nil {
			return nil, err
		}
		defer l.Cancel()
	}

	for {
		select {
		case r := <-ch:
			if slices.Contains(serials, r.Serial) {
				found[r.Serial] = r
			}
			if len(found) == len(serials) {
				return collect(serials, found), nil
			}

		case <-ctx.Done():
			missing := make([]string, 0, len(serials))
			for _, s := range serials {
				if _, ok := found[s]; !ok {
					missing = append(missing, s)
				}
			}

			return collect(serials, found), fmt.Errorf("%w: %s", ErrNotLocated, strings.Join(missing, ","))
		}
	}
}

// Board returns the last response of the board with serial.
func (l *Locator) Board(serial string) (*Response, bool) {
	return l.known.Load(serial)
}

// KnownBoards returns the boards currently located, ordered by serial.
func (l *Locator) KnownBoards() []*Response {
	result := make([]*Response, 0, l.known.Size())
	l.known.Range(func(_ string, r *Response) bool {
		result = append(result, r)
		return true
	})
	sortBySerial(result)

	return result
}

// Retain keeps the board with serial known even when it stops answering,
// typically while a session is connected to it.
func (l *Locator) Retain(serial string) {
	l.retained.Store(serial, struct{}{})
}

// Release undoes Retain.
func (l *Locator) Release(serial string) {
	l.retained.Delete(serial)
}

func (l *Locator) startSearch(ctx context.Context, cancel context.CancelFunc) bool {
	l.mu.Lock()
	if l.handle != 0 {
		l.mu.Unlock()
		return false
	}

	l.swept = false
	l.cancel = cancel
	l.handle = l.sched.Every(l.params.Period(), func() { l.round(ctx) })
	handle := l.handle
	l.mu.Unlock()

	l.logger.Debug("search started", "period", l.params.Period())

	go l.round(ctx)
	go func() {
		<-ctx.Done()
		l.cancelHandle(handle)
	}()

	return true
}

// cancelHandle cancels the search only when it is still the one identified by h.
func (l *Locator) cancelHandle(h sched.Handle) {
	l.mu.Lock()
	current := l.handle == h
	l.mu.Unlock()

	if current {
		l.Cancel()
	}
}

// round sweeps boards that missed the previous round, then broadcasts to every target.
func (l *Locator) round(ctx context.Context) {
	if ctx.Err() != nil || !l.roundBusy.CompareAndSwap(false, true) {
		return
	}
	defer l.roundBusy.Store(false)

	l.mu.Lock()
	sweep := l.swept
	l.swept = true
	l.mu.Unlock()

	if sweep {
		l.sweep()
	}

	addrs, err := l.targets()
	if err != nil {
		l.logger.Warn("no discovery targets", "error", err)
		return
	}

	for _, addr := range addrs {
		if _, err := l.locate(ctx, addr); err != nil && ctx.Err() == nil {
			l.logger.Debug("discovery round failed", "target", addr.String(), "error", err)
		}
	}
}

func (l *Locator) sweep() {
	l.known.Range(func(serial string, r *Response) bool {
		_, seen := l.seen.Load(serial)
		_, retained := l.retained.Load(serial)
		if !seen && !retained {
			l.known.Delete(serial)
			l.logger.Info("board no longer located", "serial", serial, "host", r.HostIP)
			l.notify(func(ln Listener) { ln.OnNoLongerLocated(r) })
		}

		return true
	})
	l.seen.Clear()
}

// locate sends one discovery request to addr and reads answers until the timeout.
func (l *Locator) locate(ctx context.Context, addr *net.UDPAddr) ([]*Response, error) {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("locator: open socket: %w", err)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	if _, err := conn.WriteToUDP([]byte(l.params.Message()), addr); err != nil {
		return nil, fmt.Errorf("locator: send request to %s: %w", addr, err)
	}

	deadline := time.Now().Add(l.params.Timeout())
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}

	var result []*Response
	buf := make([]byte, maxDatagramSize)
	for {
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				return result, nil
			}
			if ctx.Err() != nil {
				return result, ctx.Err()
			}

			return result, fmt.Errorf("locator: read response: %w", err)
		}

		resp, err := ParseResponse(from.IP.String(), buf[:n])
		if err != nil {
			l.logger.Debug("invalid discovery response", "from", from.String(), "error", err)
			continue
		}
		if !l.params.Accepts(resp) {
			l.logger.Debug("discovery response filtered", "response", resp.String())
			continue
		}

		l.accept(resp)
		result = append(result, resp)
	}
}

func (l *Locator) accept(resp *Response) {
	l.seen.Store(resp.Serial, struct{}{})

	_, loaded := l.known.LoadOrStore(resp.Serial, resp)
	if loaded {
		l.known.Store(resp.Serial, resp)
	} else {
		l.logger.Info("board located", "serial", resp.Serial, "host", resp.HostIP, "firmware", resp.Firmware)
		l.notify(func(ln Listener) { ln.OnFirstLocated(resp) })
	}

	l.notify(func(ln Listener) { ln.OnResponse(resp) })
}

func (l *Locator) notify(fn func(Listener)) {
	l.lmu.RLock()
	listeners := slices.Clone(l.listeners)
	l.lmu.RUnlock()

	for _, ln := range listeners {
		func() {
			defer func() {
				if r := recover(); r != nil {
					l.logger.Error("locator listener panicked", "panic", r)
				}
			}()
			fn(ln)
		}()
	}
}

// targets resolves the discovery destinations. The limited broadcast address
// expands to the directed broadcast address of every IPv4 interface.
func (l *Locator) targets() ([]*net.UDPAddr, error) {
	if l.params.Address() != DefaultAddress {
		addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(l.params.Address(), strconv.Itoa(l.params.Port())))
		if err != nil {
			return nil, fmt.Errorf("locator: resolve %s: %w", l.params.Address(), err)
		}

		return []*net.UDPAddr{addr}, nil
	}

	addrs := interfaceBroadcasts(l.params.Port())
	if len(addrs) == 0 {
		addrs = append(addrs, &net.UDPAddr{IP: net.IPv4bcast, Port: l.params.Port()})
	}

	return addrs, nil
}

func interfaceBroadcasts(port int) []*net.UDPAddr {
	ifaces, err := net.Interfaces()
	if err != nil {
		return nil
	}

	var result []*net.UDPAddr
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagBroadcast == 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, a := range addrs {
			ipnet, ok := a.(*net.IPNet)
			if !ok {
				continue
			}
			ip := ipnet.IP.To4()
			if ip == nil || len(ipnet.Mask) != net.IPv4len {
				continue
			}
			bcast := make(net.IP, net.IPv4len)
			for i := range ip {
				bcast[i] = ip[i] | ^ipnet.Mask[i]
			}
			result = append(result, &net.UDPAddr{IP: bcast, Port: port})
		}
	}

	return result
}

func collect(serials []string, found map[string]*Response) []*Response {
	result := make([]*Response, 0, len(found))
	for _, s := range serials {
		if r, ok := found[s]; ok {
			result = append(result, r)
		}
	}

	return result
}

func sortBySerial(rs []*Response) {
	slices.SortFunc(rs, func(a, b *Response) int { return strings.Compare(a.Serial, b.Serial) })
}
