package board

import "fmt"

// Revision D hardware constants. Revision E boards share them.
const (
	RevDAnalogInputCount   = 32
	RevDTemperatureSensor  = 36
	RevDColdJunctionInput  = 36
	RevDDigitalInputCount  = 24
	RevDDigitalOutputCount = 16

	revDReferenceVoltage  = 2.5
	revDMultiplier5V      = 1.0
	revDMultiplier400V    = 80.0
	revDFullScaleCount    = 8388607.0
	revDTempSensorVoltsPC = 0.010 // LM35, 10mV per degree C
)

// revDTemperatureGain is the fixed gain of the temperature reference input.
const revDTemperatureGain = GainX4

var (
	revDGains   = []Gain{GainX1, GainX2, GainX4, GainX8, GainX16, GainX32, GainX64}
	revDRates   = []Rate{Rate2_5, Rate5, Rate10, Rate15, Rate25, Rate30, Rate50, Rate60, Rate100, Rate500, Rate1000, Rate2000, Rate3750, Rate7500}
	revDBuffers = []BufferState{BufferEnabled, BufferDisabled}
	revDScales  = []AnalogScale{Scale5V, Scale400V}
)

// RevD is the Board implementation for revision D and E hardware.
type RevD struct{}

var _ Board = RevD{}

func (RevD) Revision() byte { return 'D' }

func (RevD) AnalogInputCount() int { return RevDAnalogInputCount }

func (RevD) DigitalInputCount() int { return RevDDigitalInputCount }

func (RevD) DigitalOutputCount() int { return RevDDigitalOutputCount }

func (RevD) TemperatureSensorInput() int { return RevDTemperatureSensor }

func (RevD) ColdJunctionInput() int { return RevDColdJunctionInput }

func (RevD) ValidGains() []Gain { return cloneOf(revDGains) }

func (RevD) ValidRates() []Rate { return cloneOf(revDRates) }

func (RevD) ValidBufferStates() []BufferState { return cloneOf(revDBuffers) }

func (RevD) ValidScales() []AnalogScale { return cloneOf(revDScales) }

func (RevD) ScaleMultiplier(scale AnalogScale) (float64, error) {
	switch scale {
	case Scale5V:
		return revDMultiplier5V, nil
	case Scale400V:
		return revDMultiplier400V, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidScale, scale)
	}
}

// Voltage converts count to volts. An unknown scale falls back to the 5V multiplier.
func (b RevD) Voltage(count int32, gain Gain, scale AnalogScale) float64 {
	mult, err := b.ScaleMultiplier(scale)
	if err != nil {
		mult = revDMultiplier5V
	}
	if gain <= 0 {
		gain = GainX1
	}

	ratio := float64(count) / revDFullScaleCount
	gainDivisor := 1.0 / float64(gain)

	return 2.0 * revDReferenceVoltage * ratio * gainDivisor * mult
}

func (b RevD) Temperature(count int32) float64 {
	return b.Voltage(count, revDTemperatureGain, Scale5V) / revDTempSensorVoltsPC
}

// IsValidRate reports whether r is accepted by revision D analog inputs.
func (RevD) IsValidRate(r Rate) bool {
	for _, v := range revDRates {
		if v == r {
			return true
		}
	}

	return false
}

func cloneOf[T any](s []T) []T {
	out := make([]T, len(s))
	copy(out, s)

	return out
}
