package command

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/arloliu/go-tekdaqc/board"
)

func TestCommandCatalog(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("DISCONNECT", CmdDisconnect.String())
	assert.Equal(uint8(8), uint8(CmdNone))
	assert.Equal(uint8(11), uint8(CmdReadAnalogInput))
	assert.Equal("LIST_PWM_INPUTS", CmdListPWMInputs.String())
	assert.Equal("Command(200)", Command(200).String())
	assert.Equal("DUTYCYCLE", ParamDutyCycle.String())

	c, err := ParseCommand("SET_ANALOG_INPUT_SCALE")
	require.NoError(t, err)
	assert.Equal(CmdSetAnalogInputScale, c)

	_, err = ParseCommand("FLY")
	assert.ErrorIs(err, ErrUnknownCommand)

	_, err = ParseParam("SPEED")
	assert.ErrorIs(err, ErrUnknownParam)
}

func TestValue_Encode(t *testing.T) {
	tests := []struct {
		desc     string
		value    *Value
		expected string
	}{
		{"no params", None(), "NONE\r"},
		{"read analog", ReadAnalogInput(0, 10), "READ_ANALOG_INPUT --INPUT=0 --NUMBER=10\r"},
		{"read analog range", ReadAnalogInputRange(0, 7, 1), "READ_ANALOG_INPUT --INPUT=0-7 --NUMBER=1\r"},
		{"read all digital", ReadAllDigitalInput(1), "READ_DIGITAL_INPUT --INPUT=ALL --NUMBER=1\r"},
		{
			"add analog",
			AddAnalogInput(3, board.GainX16, board.Rate2_5, board.BufferEnabled),
			"ADD_ANALOG_INPUT --INPUT=3 --GAIN=16 --RATE=2.5 --BUFFER=ENABLED\r",
		},
		{"set scale", SetAnalogInputScale(board.Scale400V), "SET_ANALOG_INPUT_SCALE --SCALE=ANALOG_SCALE_400V\r"},
		{"sample", Sample(0), "SAMPLE --NUMBER=0\r"},
		{"set rtc", SetRTC(1700000000000), "SET_RTC --VALUE=1700000000000\r"},
		{"serial number", WriteSerialNumber("00000012"), "SET_BOARD_SERIAL_NUM --VALUE=00000012\r"},
		{"calibration temp", WriteCalibrationTemperature(25.5, 2), "WRITE_CALIBRATION_TEMP --TEMPERATURE=25.5 --INDEX=2\r"},
		{
			"gain calibration value",
			WriteGainCalibrationValue(1.25, board.GainX1, board.Rate10, board.BufferDisabled, board.Scale5V, 3),
			"WRITE_GAIN_CALIBRATION_VALUE --TEMPERATURE=3 --VALUE=1.25 --BUFFER=DISABLED --RATE=10 --GAIN=1 --SCALE=ANALOG_SCALE_5V\r",
		},
		{"read pwm", ReadPWMInput(4, 2), "READ_PWM_INPUT --INPUT=4 --NUMBER=2\r"},
	}

	for _, tt := range tests {
		t.Run(tt.desc, func(t *testing.T) {
			assert.Equal(t, tt.expected, string(tt.value.Encode()))
		})
	}
}

func TestValue_DecodeRoundTrip(t *testing.T) {
	require := require.New(t)

	values := []*Value{
		None(),
		ReadAnalogInput(5, 10),
		AddAnalogInput(31, board.GainX64, board.Rate7500, board.BufferDisabled),
		SetDigitalOutputByHex("00FF"),
	}
	for _, v := range values {
		decoded, err := Decode(string(v.Encode()))
		require.NoError(err)
		require.Equal(v.String(), decoded.String())
		require.Equal(v.Command(), decoded.Command())
		require.Equal(v.Args(), decoded.Args())
	}

	_, err := Decode("READ_ANALOG_INPUT INPUT=0\r")
	require.ErrorIs(err, ErrUnknownParam)

	_, err = Decode("")
	require.ErrorIs(err, ErrUnknownCommand)
}

func TestValue_Immutable(t *testing.T) {
	args := []Arg{A(ParamInput, 1)}
	v := NewValue(CmdAddDigitalInput, args...)
	args[0].Value = "9"

	got := v.Args()
	got[0].Value = "7"

	in, ok := v.Arg(ParamInput)
	assert.True(t, ok)
	assert.Equal(t, "1", in)
}

func TestValue_Msgpack(t *testing.T) {
	require := require.New(t)

	in := []*Value{ReadAnalogInput(0, 10), Halt()}
	data, err := Marshal(in...)
	require.NoError(err)

	out, err := Unmarshal(data)
	require.NoError(err)
	require.Len(out, 2)
	require.Equal("READ_ANALOG_INPUT --INPUT=0 --NUMBER=10", out[0].String())
	require.Equal(CmdHalt, out[1].Command())

	bad, err := msgpack.Marshal([]any{[]any{uint8(250)}})
	require.NoError(err)
	_, err = Unmarshal(bad)
	require.ErrorIs(err, ErrUnknownCommand)
}

func TestBuilder_Validation(t *testing.T) {
	assert := assert.New(t)

	v, err := SetDigitalOutputPWM("FFFF", 50)
	require.NoError(t, err)
	assert.Equal("SET_PWM_OUTPUT --OUTPUT=FFFF --DUTYCYCLE=50\r", string(v.Encode()))

	_, err = SetDigitalOutputPWM("FFFF", 101)
	assert.ErrorIs(err, ErrInvalidArgument)
	_, err = SetDigitalOutputPWM("FFFF", -1)
	assert.ErrorIs(err, ErrInvalidArgument)

	v, err = ReadAnalogInputSet([]int{1, 3, 5}, 2)
	require.NoError(t, err)
	assert.Equal("READ_ANALOG_INPUT --INPUT=1,3,5 --NUMBER=2", v.String())

	_, err = ReadDigitalInputSet(nil, 1)
	assert.ErrorIs(err, ErrInvalidArgument)

	v, err = SetDigitalOutputByBinaryString("0011001100110011")
	require.NoError(t, err)
	assert.Equal("SET_DIGITAL_OUTPUT --OUTPUT=3333", v.String())

	states := make([]bool, 16)
	states[15] = true
	v, err = SetDigitalOutput(states)
	require.NoError(t, err)
	assert.Equal("SET_DIGITAL_OUTPUT --OUTPUT=0001", v.String())
}

func TestBuilder_DeactivateAll(t *testing.T) {
	analog := DeactivateAllAnalogInputs(board.RevD{})
	require.Len(t, analog, 32)
	assert.Equal(t, "REMOVE_ANALOG_INPUT --INPUT=31", analog[31].String())

	digital := DeactivateAllDigitalInputs(board.RevD{})
	require.Len(t, digital, 24)
	assert.Equal(t, "REMOVE_DIGITAL_INPUT --INPUT=0", digital[0].String())
}
