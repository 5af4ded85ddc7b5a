package locator

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-tekdaqc/logger"
)

const (
	// DefaultAddress is the limited broadcast address. It expands to the
	// broadcast address of every IPv4 interface when searching.
	DefaultAddress = "255.255.255.255"
	// DefaultPort is the UDP discovery port of the board.
	DefaultPort = 9800
	// DefaultTimeout is how long a discovery round waits for responses.
	DefaultTimeout = 500 * time.Millisecond
	// DefaultPeriod is the interval between discovery rounds while searching.
	DefaultPeriod = 500 * time.Millisecond
	// DefaultMessage is the discovery request payload.
	DefaultMessage = "TEKDAQC CONNECT"

	// TypeAny disables filtering on the board type.
	TypeAny byte = 0

	invalidFirmware = "0.0.0.0"
)

// Params configures a Locator. The zero value is not usable; call NewParams.
type Params struct {
	address  string
	port     int
	timeout  time.Duration
	period   time.Duration
	message  string
	serial   string
	title    string
	firmware string
	typ      byte
	logger   logger.Logger
}

// NewParams creates locator parameters. opts are applied in order.
func NewParams(opts ...Option) (*Params, error) {
	p := &Params{
		address: DefaultAddress,
		port:    DefaultPort,
		timeout: DefaultTimeout,
		period:  DefaultPeriod,
		message: DefaultMessage,
		typ:     TypeAny,
		logger:  logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(p); err != nil {
			return nil, err
		}
	}

	return p, nil
}

func (p *Params) Address() string          { return p.address }
func (p *Params) Port() int                { return p.port }
func (p *Params) Timeout() time.Duration   { return p.timeout }
func (p *Params) Period() time.Duration    { return p.period }
func (p *Params) Message() string          { return p.message }
func (p *Params) Serial() string           { return p.serial }
func (p *Params) Title() string            { return p.title }
func (p *Params) Firmware() string         { return p.firmware }
func (p *Params) Type() byte               { return p.typ }
func (p *Params) GetLogger() logger.Logger { return p.logger }

// Accepts reports whether resp passes the configured filters.
// A response without a firmware version is never accepted.
func (p *Params) Accepts(resp *Response) bool {
	switch {
	case p.title != "" && p.title != resp.Title:
		return false
	case p.serial != "" && p.serial != resp.Serial:
		return false
	case p.typ != TypeAny && p.typ != resp.Type:
		return false
	case p.firmware != "" && p.firmware != resp.Firmware:
		return false
	case resp.Firmware == invalidFirmware:
		return false
	}

	return true
}

// Option is a functional option for configuring Params.
type Option interface {
	apply(*Params) error
}

type optFunc func(*Params) error

func (f optFunc) apply(p *Params) error { return f(p) }

// WithAddress sets the address discovery requests are sent to.
func WithAddress(addr string) Option {
	return optFunc(func(p *Params) error {
		if addr == "" {
			return errors.New("locator: address must not be empty")
		}
		p.address = addr

		return nil
	})
}

// WithPort sets the UDP port discovery requests are sent to.
func WithPort(port int) Option {
	return optFunc(func(p *Params) error {
		if port < 1 || port > 65535 {
			return fmt.Errorf("locator: invalid port %d", port)
		}
		p.port = port

		return nil
	})
}

// WithTimeout sets how long a round waits for responses.
func WithTimeout(d time.Duration) Option {
	return optFunc(func(p *Params) error {
		if d <= 0 {
			return fmt.Errorf("locator: invalid timeout %v", d)
		}
		p.timeout = d

		return nil
	})
}

// WithPeriod sets the interval between rounds while searching.
func WithPeriod(d time.Duration) Option {
	return optFunc(func(p *Params) error {
		if d <= 0 {
			return fmt.Errorf("locator: invalid period %v", d)
		}
		p.period = d

		return nil
	})
}

// WithMessage sets the discovery request payload.
func WithMessage(msg string) Option {
	return optFunc(func(p *Params) error {
		if msg == "" {
			return errors.New("locator: message must not be empty")
		}
		p.message = msg

		return nil
	})
}

// WithSerial only accepts responses of the board with this serial number.
func WithSerial(serial string) Option {
	return optFunc(func(p *Params) error {
		p.serial = serial
		return nil
	})
}

// WithTitle only accepts responses with this application title.
func WithTitle(title string) Option {
	return optFunc(func(p *Params) error {
		p.title = title
		return nil
	})
}

// WithFirmware only accepts responses with this dotted firmware version.
func WithFirmware(version string) Option {
	return optFunc(func(p *Params) error {
		p.firmware = version
		return nil
	})
}

// WithType only accepts responses of this board type, e.g. 'D'.
func WithType(typ byte) Option {
	return optFunc(func(p *Params) error {
		p.typ = typ
		return nil
	})
}

// WithLogger sets the locator logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(p *Params) error {
		if l == nil {
			return errors.New("locator: logger must not be nil")
		}
		p.logger = l

		return nil
	})
}
