package transport

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tarm/serial"

	"github.com/arloliu/go-tekdaqc/logger"
)

// Serial is the transport of a board attached by its USB serial port.
type Serial struct {
	name   string
	cfg    *Config
	logger logger.Logger

	mu   sync.RWMutex
	port *serial.Port
}

var _ Transport = (*Serial)(nil)

// NewSerial creates a serial transport on the device name, e.g. "/dev/ttyACM0" or "COM3".
func NewSerial(name string, opts ...Option) (*Serial, error) {
	if name == "" {
		return nil, errors.New("transport: serial port name must not be empty")
	}

	cfg, err := NewConfig(opts...)
	if err != nil {
		return nil, err
	}

	return &Serial{
		name:   name,
		cfg:    cfg,
		logger: cfg.GetLogger().With("component", "transport", "endpoint", name),
	}, nil
}

func (s *Serial) Endpoint() string { return s.name }

// Connect opens the serial device. Opening a local device does not block,
// so ctx is only checked before the attempt.
func (s *Serial) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return ErrAlreadyConnected
	}

	port, err := serial.OpenPort(&serial.Config{
		Name:   s.name,
		Baud:   s.cfg.Baud(),
		Parity: serial.ParityNone,
	})
	if err != nil {
		return fmt.Errorf("transport: open %s: %w", s.name, err)
	}
	s.port = port

	s.logger.Debug("serial port opened", "baud", s.cfg.Baud())

	return nil
}

func (s *Serial) Disconnect() error {
	s.mu.Lock()
	port := s.port
	s.port = nil
	s.mu.Unlock()

	if port == nil {
		return nil
	}

	s.logger.Debug("close serial port")
	if err := port.Close(); err != nil {
		return fmt.Errorf("transport: close %s: %w", s.name, err)
	}

	return nil
}

func (s *Serial) Read(p []byte) (int, error) {
	port := s.current()
	if port == nil {
		return 0, ErrNotConnected
	}

	return port.Read(p)
}

func (s *Serial) Write(p []byte) (int, error) {
	port := s.current()
	if port == nil {
		return 0, ErrNotConnected
	}

	return port.Write(p)
}

func (s *Serial) IsConnected() bool {
	return s.current() != nil
}

func (s *Serial) current() *serial.Port {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.port
}
