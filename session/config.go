package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-tekdaqc/board"
	"github.com/arloliu/go-tekdaqc/cmdqueue"
	"github.com/arloliu/go-tekdaqc/logger"
	"github.com/arloliu/go-tekdaqc/message"
	"github.com/arloliu/go-tekdaqc/transport"
)

const (
	// DefaultHeartbeatInterval is the period of the keep-alive check.
	DefaultHeartbeatInterval = 5 * time.Second
	// DefaultRevision is the board revision assumed when none is configured.
	DefaultRevision = 'D'
	// DefaultAnalogScale is the analog input scale set on connect.
	DefaultAnalogScale = board.Scale5V

	MinHeartbeatInterval = 10 * time.Millisecond
	MaxHeartbeatInterval = 10 * time.Minute
)

// Config holds the settings of a Session.
type Config struct {
	host              string
	port              int
	connectTimeout    time.Duration
	heartbeatInterval time.Duration
	commandTimeout    time.Duration
	maxFailures       int
	scale             board.AnalogScale
	revision          byte
	executor          message.Executor
	broadcaster       *message.Broadcaster
	transport         transport.Transport
	logger            logger.Logger
}

// NewConfig creates a session configuration for the board at host.
//
// host may be empty when a transport is supplied with WithTransport.
func NewConfig(host string, opts ...Option) (*Config, error) {
	cfg := &Config{
		host:              host,
		port:              transport.DefaultPort,
		connectTimeout:    transport.DefaultConnectTimeout,
		heartbeatInterval: DefaultHeartbeatInterval,
		commandTimeout:    cmdqueue.DefaultCommandTimeout,
		maxFailures:       cmdqueue.DefaultMaxAllowedFailures,
		scale:             DefaultAnalogScale,
		revision:          DefaultRevision,
		logger:            logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.host == "" && cfg.transport == nil {
		return nil, errors.New("session: host must not be empty")
	}

	return cfg, nil
}

func (cfg *Config) Host() string                     { return cfg.host }
func (cfg *Config) Port() int                        { return cfg.port }
func (cfg *Config) ConnectTimeout() time.Duration    { return cfg.connectTimeout }
func (cfg *Config) HeartbeatInterval() time.Duration { return cfg.heartbeatInterval }
func (cfg *Config) CommandTimeout() time.Duration    { return cfg.commandTimeout }
func (cfg *Config) MaxAllowedFailures() int          { return cfg.maxFailures }
func (cfg *Config) AnalogScale() board.AnalogScale   { return cfg.scale }
func (cfg *Config) Revision() byte                   { return cfg.revision }
func (cfg *Config) GetLogger() logger.Logger         { return cfg.logger }

// Option is a functional option for configuring a Session.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithPort sets the telnet port of the board.
func WithPort(port int) Option {
	return optFunc(func(cfg *Config) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("session: invalid port %d", port)
		}
		cfg.port = port

		return nil
	})
}

// WithConnectTimeout bounds the dial of Connect.
func WithConnectTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < transport.MinTimeout || d > transport.MaxTimeout {
			return fmt.Errorf("session: connect timeout %v out of range [%v, %v]", d, transport.MinTimeout, transport.MaxTimeout)
		}
		cfg.connectTimeout = d

		return nil
	})
}

// WithHeartbeatInterval sets the period of the keep-alive check.
func WithHeartbeatInterval(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinHeartbeatInterval || d > MaxHeartbeatInterval {
			return fmt.Errorf("session: heartbeat interval %v out of range [%v, %v]", d, MinHeartbeatInterval, MaxHeartbeatInterval)
		}
		cfg.heartbeatInterval = d

		return nil
	})
}

// WithCommandTimeout sets the wait for a command response.
func WithCommandTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < cmdqueue.MinCommandTimeout || d > cmdqueue.MaxCommandTimeout {
			return fmt.Errorf("session: command timeout %v out of range [%v, %v]", d, cmdqueue.MinCommandTimeout, cmdqueue.MaxCommandTimeout)
		}
		cfg.commandTimeout = d

		return nil
	})
}

// WithMaxAllowedFailures sets how many times a timed out command is resent.
func WithMaxAllowedFailures(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > cmdqueue.MaxAllowedFailuresLimit {
			return fmt.Errorf("session: max allowed failures %d out of range [0, %d]", n, cmdqueue.MaxAllowedFailuresLimit)
		}
		cfg.maxFailures = n

		return nil
	})
}

// WithAnalogScale sets the analog input scale applied on connect.
func WithAnalogScale(scale board.AnalogScale) Option {
	return optFunc(func(cfg *Config) error {
		if _, err := board.ParseScale(string(scale)); err != nil {
			return fmt.Errorf("session: %w", err)
		}
		cfg.scale = scale

		return nil
	})
}

// WithRevision sets the board revision letter, as reported by discovery.
func WithRevision(rev byte) Option {
	return optFunc(func(cfg *Config) error {
		if _, err := board.ForRevision(rev); err != nil {
			return fmt.Errorf("session: %w", err)
		}
		cfg.revision = rev

		return nil
	})
}

// WithCallbackExecutor sets the executor running listener callbacks.
//
// The executor belongs to the broadcaster, so it applies to every board sharing it.
func WithCallbackExecutor(exec message.Executor) Option {
	return optFunc(func(cfg *Config) error {
		if exec == nil {
			return errors.New("session: callback executor must not be nil")
		}
		cfg.executor = exec

		return nil
	})
}

// WithBroadcaster shares b between sessions instead of creating one per session.
func WithBroadcaster(b *message.Broadcaster) Option {
	return optFunc(func(cfg *Config) error {
		if b == nil {
			return errors.New("session: broadcaster must not be nil")
		}
		cfg.broadcaster = b

		return nil
	})
}

// WithTransport replaces the default TCP transport, e.g. with a serial one.
func WithTransport(t transport.Transport) Option {
	return optFunc(func(cfg *Config) error {
		if t == nil {
			return errors.New("session: transport must not be nil")
		}
		cfg.transport = t

		return nil
	})
}

// WithLogger sets the session logger. It is passed down to the engine and transport.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("session: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
