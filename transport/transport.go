// Package transport provides the byte stream between the host and a board.
//
// A Transport is connected once, then read by a single reader goroutine and
// written by the single command writer. Disconnect unblocks a pending Read.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-tekdaqc/logger"
)

const (
	// DefaultPort is the telnet port of the board command interface.
	DefaultPort = 9801
	// DefaultConnectTimeout bounds dialing or opening the device.
	DefaultConnectTimeout = 5 * time.Second
	// DefaultKeepAlive is the TCP keep-alive period.
	DefaultKeepAlive = 5 * time.Minute
	// DefaultWriteTimeout bounds a single command write.
	DefaultWriteTimeout = 3 * time.Second
	// DefaultBaud is the serial line speed.
	DefaultBaud = 115200

	MinTimeout = 10 * time.Millisecond
	MaxTimeout = 10 * time.Minute
)

var (
	ErrNotConnected     = errors.New("transport: not connected")
	ErrAlreadyConnected = errors.New("transport: already connected")
)

// Transport is an ordered, reliable byte stream to one board.
type Transport interface {
	// Connect opens the stream. It fails with ErrAlreadyConnected when already open.
	Connect(ctx context.Context) error
	// Disconnect closes the stream. Closing a closed transport is a no-op.
	Disconnect() error
	// Read reads from the stream, returning ErrNotConnected when closed.
	Read(p []byte) (int, error)
	// Write writes to the stream, returning ErrNotConnected when closed.
	Write(p []byte) (int, error)
	// IsConnected reports whether the stream is open.
	IsConnected() bool
	// Endpoint describes the remote end, e.g. "10.0.0.5:9801" or "/dev/ttyACM0".
	Endpoint() string
}

// Config holds the settings shared by the transport implementations.
type Config struct {
	port           int
	baud           int
	connectTimeout time.Duration
	writeTimeout   time.Duration
	keepAlive      time.Duration
	logger         logger.Logger
}

// NewConfig creates a transport configuration. opts are applied in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		port:           DefaultPort,
		baud:           DefaultBaud,
		connectTimeout: DefaultConnectTimeout,
		writeTimeout:   DefaultWriteTimeout,
		keepAlive:      DefaultKeepAlive,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func (cfg *Config) Port() int                     { return cfg.port }
func (cfg *Config) Baud() int                     { return cfg.baud }
func (cfg *Config) ConnectTimeout() time.Duration { return cfg.connectTimeout }
func (cfg *Config) WriteTimeout() time.Duration   { return cfg.writeTimeout }
func (cfg *Config) KeepAlive() time.Duration      { return cfg.keepAlive }
func (cfg *Config) GetLogger() logger.Logger      { return cfg.logger }

// Option is a functional option for configuring a transport.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithPort sets the TCP port.
func WithPort(port int) Option {
	return optFunc(func(cfg *Config) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("transport: invalid port %d", port)
		}
		cfg.port = port

		return nil
	})
}

// WithBaud sets the serial line speed.
func WithBaud(baud int) Option {
	return optFunc(func(cfg *Config) error {
		if baud <= 0 {
			return fmt.Errorf("transport: invalid baud rate %d", baud)
		}
		cfg.baud = baud

		return nil
	})
}

// WithConnectTimeout sets the dial timeout.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("connect", d); err != nil {
			return err
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithWriteTimeout sets the deadline of a single write on TCP transports.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("write", d); err != nil {
			return err
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithKeepAlive sets the TCP keep-alive period.
func WithKeepAlive(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if err := checkTimeout("keep-alive", d); err != nil {
			return err
		}
		cfg.keepAlive = d

		return nil
	})
}

// WithLogger sets the transport logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("transport: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

func checkTimeout(name string, d time.Duration) error {
	if d < MinTimeout || d > MaxTimeout {
		return fmt.Errorf("transport: %s timeout %v out of range [%v, %v]", name, d, MinTimeout, MaxTimeout)
	}

	return nil
}
