package board

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestForRevision(t *testing.T) {
	require := require.New(t)

	for _, rev := range []byte{'D', 'E', 'd'} {
		b, err := ForRevision(rev)
		require.NoError(err)
		require.Equal(byte('D'), b.Revision())
		require.Equal(32, b.AnalogInputCount())
		require.Equal(24, b.DigitalInputCount())
		require.Equal(16, b.DigitalOutputCount())
		require.Equal(36, b.TemperatureSensorInput())
	}

	_, err := ForRevision('A')
	require.ErrorIs(err, ErrUnknownRevision)
}

func TestRevD_Voltage(t *testing.T) {
	b := RevD{}

	tests := []struct {
		desc     string
		count    int32
		gain     Gain
		scale    AnalogScale
		expected float64
	}{
		{"full scale, gain 1, 5V", 8388607, GainX1, Scale5V, 5.0},
		{"zero", 0, GainX1, Scale5V, 0},
		{"half scale, gain 1, 5V", 4194304, GainX1, Scale5V, 2.0 * 2.5 * (4194304 / 8388607.0)},
		{"full scale, gain 4", 8388607, GainX4, Scale5V, 1.25},
		{"negative, gain 1", -512, GainX1, Scale5V, 5.0 * (-512 / 8388607.0)},
		{"full scale, 400V", 8388607, GainX1, Scale400V, 400.0},
		{"full scale, gain 64, 400V", 8388607, GainX64, Scale400V, 6.25},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.InDelta(t, tt.expected, b.Voltage(tt.count, tt.gain, tt.scale), 1e-9)
		})
	}
}

func TestRevD_Temperature(t *testing.T) {
	b := RevD{}
	// 25 C -> 0.25V at gain 4 -> count = 0.25 * 4 / 5 * 8388607, truncated
	count := int32(1677721)
	assert.InDelta(t, 25.0, b.Temperature(count), 0.001)
}

func TestRevD_ScaleMultiplier(t *testing.T) {
	b := RevD{}

	m, err := b.ScaleMultiplier(Scale400V)
	require.NoError(t, err)
	assert.Equal(t, 80.0, m)

	_, err = b.ScaleMultiplier(AnalogScale("ANALOG_SCALE_12V"))
	assert.ErrorIs(t, err, ErrInvalidScale)
}

func TestRevD_ValidRates(t *testing.T) {
	b := RevD{}
	rates := b.ValidRates()
	assert.Len(t, rates, 14)
	assert.NotContains(t, rates, Rate30000)
	assert.True(t, b.IsValidRate(Rate2_5))
	assert.False(t, b.IsValidRate(Rate15000))

	// returned slices are copies
	rates[0] = Rate30000
	assert.Equal(t, Rate2_5, b.ValidRates()[0])
}

func TestParse(t *testing.T) {
	g, err := ParseGain(16)
	require.NoError(t, err)
	assert.Equal(t, GainX16, g)
	assert.Equal(t, "16", g.String())

	_, err = ParseGain(3)
	assert.ErrorIs(t, err, ErrInvalidGain)

	r, err := ParseRate("2.5")
	require.NoError(t, err)
	assert.Equal(t, Rate2_5, r)

	_, err = ParseRate("7")
	assert.ErrorIs(t, err, ErrInvalidRate)

	s, err := ParseScale("ANALOG_SCALE_400V")
	require.NoError(t, err)
	assert.Equal(t, Scale400V, s)
}

func TestDigitalOutputHex(t *testing.T) {
	require := require.New(t)

	h, err := BinaryToHex("0011001100110011")
	require.NoError(err)
	require.Equal("3333", h)

	h, err = BinaryToHex("111111111111")
	require.NoError(err)
	require.Equal("FFF", h)

	h, err = BinaryToHex("11")
	require.NoError(err)
	require.Equal("3", h)

	_, err = BinaryToHex("10201")
	require.ErrorIs(err, ErrInvalidBinary)

	states := make([]bool, 16)
	states[0], states[15] = true, true
	h, err = OutputsToHex(states)
	require.NoError(err)
	require.Equal("8001", h)

	decoded, err := HexToOutputs("8001")
	require.NoError(err)
	require.Equal(states, decoded)

	_, err = HexToOutputs("XYZ")
	require.ErrorIs(err, ErrInvalidHex)

	require.Equal("00FF", IntToHex(255))
	require.Equal("FFFF", IntToHex(0xFFFF))
}
