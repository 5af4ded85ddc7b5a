// Package board describes the capabilities of a Tekdaqc board revision:
// channel counts, valid analog configurations and count conversions.
package board

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownRevision is returned by ForRevision for unsupported revisions.
	ErrUnknownRevision = errors.New("board: unknown board revision")
	// ErrInvalidGain is returned when a gain value is not supported.
	ErrInvalidGain = errors.New("board: invalid gain")
	// ErrInvalidRate is returned when a sample rate is not supported.
	ErrInvalidRate = errors.New("board: invalid rate")
	// ErrInvalidScale is returned when an analog scale is not supported.
	ErrInvalidScale = errors.New("board: invalid analog scale")
	// ErrInvalidHex is returned when a digital output hex string cannot be decoded.
	ErrInvalidHex = errors.New("board: invalid digital output hex")
	// ErrInvalidBinary is returned when a digital output binary string cannot be encoded.
	ErrInvalidBinary = errors.New("board: invalid digital output binary string")
)

// Board is implemented by each supported board revision.
type Board interface {
	// Revision returns the revision letter, e.g. 'D'.
	Revision() byte
	// AnalogInputCount returns the number of physical analog inputs.
	AnalogInputCount() int
	// DigitalInputCount returns the number of physical digital inputs.
	DigitalInputCount() int
	// DigitalOutputCount returns the number of physical digital outputs.
	DigitalOutputCount() int
	// TemperatureSensorInput returns the channel of the onboard temperature sensor.
	TemperatureSensorInput() int
	// ColdJunctionInput returns the channel of the onboard cold junction sensor.
	ColdJunctionInput() int

	ValidGains() []Gain
	ValidRates() []Rate
	ValidBufferStates() []BufferState
	ValidScales() []AnalogScale

	// ScaleMultiplier returns the voltage multiplier of the given scale.
	ScaleMultiplier(scale AnalogScale) (float64, error)
	// Voltage converts a raw ADC count sampled with gain under scale into volts.
	Voltage(count int32, gain Gain, scale AnalogScale) float64
	// Temperature converts a raw count of the temperature sensor into degrees Celsius.
	Temperature(count int32) float64
}

// ForRevision returns the Board implementation for the revision letter reported by discovery.
func ForRevision(rev byte) (Board, error) {
	switch rev {
	case 'D', 'd', 'E', 'e':
		return RevD{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRevision, rev)
	}
}
