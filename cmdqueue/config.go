package cmdqueue

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-tekdaqc/logger"
)

const (
	// DefaultCommandTimeout is how long a dispatched command waits for a status or error.
	DefaultCommandTimeout = 3 * time.Second
	// DefaultMaxAllowedFailures is the number of resends before a command is abandoned.
	DefaultMaxAllowedFailures = 3

	MinCommandTimeout = 10 * time.Millisecond
	MaxCommandTimeout = 5 * time.Minute

	MaxAllowedFailuresLimit = 31
)

// Config holds the Engine configuration.
type Config struct {
	commandTimeout time.Duration
	maxFailures    int
	logger         logger.Logger
}

// NewConfig creates an engine configuration. opts are applied in order.
func NewConfig(opts ...Option) (*Config, error) {
	cfg := &Config{
		commandTimeout: DefaultCommandTimeout,
		maxFailures:    DefaultMaxAllowedFailures,
		logger:         logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// CommandTimeout returns the bounded wait for a command response.
func (cfg *Config) CommandTimeout() time.Duration { return cfg.commandTimeout }

// MaxAllowedFailures returns the number of resends allowed per command.
func (cfg *Config) MaxAllowedFailures() int { return cfg.maxFailures }

// GetLogger returns the configured logger.
func (cfg *Config) GetLogger() logger.Logger { return cfg.logger }

// Option is a functional option for configuring an Engine.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithCommandTimeout sets the wait for a status or error after a command is written.
func WithCommandTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinCommandTimeout || d > MaxCommandTimeout {
			return fmt.Errorf("cmdqueue: command timeout %v out of range [%v, %v]", d, MinCommandTimeout, MaxCommandTimeout)
		}
		cfg.commandTimeout = d

		return nil
	})
}

// WithMaxAllowedFailures sets how many times a timed out command is resent.
func WithMaxAllowedFailures(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > MaxAllowedFailuresLimit {
			return fmt.Errorf("cmdqueue: max allowed failures %d out of range [0, %d]", n, MaxAllowedFailuresLimit)
		}
		cfg.maxFailures = n

		return nil
	})
}

// WithLogger sets the engine logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		if l == nil {
			return errors.New("cmdqueue: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
