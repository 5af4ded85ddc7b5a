package board

import (
	"fmt"
	"strconv"
)

// Gain is the programmable amplifier gain of an analog input.
type Gain int

const (
	GainX1  Gain = 1
	GainX2  Gain = 2
	GainX4  Gain = 4
	GainX8  Gain = 8
	GainX16 Gain = 16
	GainX32 Gain = 32
	GainX64 Gain = 64
)

// ParseGain returns the Gain for a numeric gain value.
func ParseGain(v int) (Gain, error) {
	switch g := Gain(v); g {
	case GainX1, GainX2, GainX4, GainX8, GainX16, GainX32, GainX64:
		return g, nil
	default:
		return 0, fmt.Errorf("%w: %d", ErrInvalidGain, v)
	}
}

// String returns the wire representation of the gain.
func (g Gain) String() string {
	return strconv.Itoa(int(g))
}

// Rate is the sample rate of an analog input, in samples per second.
type Rate string

const (
	Rate30000 Rate = "30000"
	Rate15000 Rate = "15000"
	Rate7500  Rate = "7500"
	Rate3750  Rate = "3750"
	Rate2000  Rate = "2000"
	Rate1000  Rate = "1000"
	Rate500   Rate = "500"
	Rate100   Rate = "100"
	Rate60    Rate = "60"
	Rate50    Rate = "50"
	Rate30    Rate = "30"
	Rate25    Rate = "25"
	Rate15    Rate = "15"
	Rate10    Rate = "10"
	Rate5     Rate = "5"
	Rate2_5   Rate = "2.5"
)

var allRates = []Rate{
	Rate30000, Rate15000, Rate7500, Rate3750, Rate2000, Rate1000, Rate500, Rate100,
	Rate60, Rate50, Rate30, Rate25, Rate15, Rate10, Rate5, Rate2_5,
}

// ParseRate returns the Rate matching its wire representation.
func ParseRate(s string) (Rate, error) {
	for _, r := range allRates {
		if string(r) == s {
			return r, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrInvalidRate, s)
}

func (r Rate) String() string {
	return string(r)
}

// BufferState is the analog input buffer setting.
type BufferState string

const (
	BufferEnabled  BufferState = "ENABLED"
	BufferDisabled BufferState = "DISABLED"
)

func (b BufferState) String() string {
	return string(b)
}

// AnalogScale is the board-wide analog input range.
type AnalogScale string

const (
	Scale5V   AnalogScale = "ANALOG_SCALE_5V"
	Scale400V AnalogScale = "ANALOG_SCALE_400V"
)

// ParseScale returns the AnalogScale matching its wire representation.
func ParseScale(s string) (AnalogScale, error) {
	switch sc := AnalogScale(s); sc {
	case Scale5V, Scale400V:
		return sc, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidScale, s)
	}
}

func (s AnalogScale) String() string {
	return string(s)
}
