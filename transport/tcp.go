package transport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/arloliu/go-tekdaqc/logger"
)

// TCP is the telnet transport of an ethernet attached board.
type TCP struct {
	host   string
	cfg    *Config
	logger logger.Logger

	mu   sync.RWMutex
	conn net.Conn
}

var _ Transport = (*TCP)(nil)

// NewTCP creates a TCP transport to host. It does not connect.
func NewTCP(host string, opts ...Option) (*TCP, error) {
	if host == "" {
		return nil, errors.New("transport: host must not be empty")
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	t := &TCP{host: host, cfg: cfg}
	t.logger = cfg.GetLogger().With("component", "transport", "endpoint", t.Endpoint())

	return t, nil
}

func (t *TCP) Endpoint() string {
	return net.JoinHostPort(t.host, strconv.Itoa(t.cfg.Port()))
}

func (t *TCP) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return ErrAlreadyConnected
	}

	dialer := &net.Dialer{KeepAlive: t.cfg.KeepAlive()}
	dialCtx, cancel := context.WithTimeout(ctx, t.cfg.ConnectTimeout())
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", t.Endpoint())
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", t.Endpoint(), err)
	}
	t.conn = conn

	t.logger.Debug("connected to board",
		"local_addr", conn.LocalAddr().String(),
		"remote_addr", conn.RemoteAddr().String(),
	)

	return nil
}

func (t *TCP) Disconnect() error {
	t.mu.Lock()
	conn := t.conn
	t.conn = nil
	t.mu.Unlock()

	if conn == nil {
		return nil
	}

	t.logger.Debug("close TCP connection")
	if err := conn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return fmt.Errorf("transport: close %s: %w", t.Endpoint(), err)
	}

	return nil
}

func (t *TCP) Read(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, ErrNotConnected
	}

	return conn.Read(p)
}

func (t *TCP) Write(p []byte) (int, error) {
	conn := t.current()
	if conn == nil {
		return 0, ErrNotConnected
	}

	if err := conn.SetWriteDeadline(time.Now().Add(t.cfg.WriteTimeout())); err != nil {
		return 0, err
	}

	return conn.Write(p)
}

func (t *TCP) IsConnected() bool {
	return t.current() != nil
}

func (t *TCP) current() net.Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.conn
}
