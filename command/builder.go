package command

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-tekdaqc/board"
)

// AllInputs selects every input of a kind in read commands.
const AllInputs = "ALL"

// ReadAnalogInput reads input number times. A number of 0 samples until halted.
func ReadAnalogInput(input, number int) *Value {
	return NewValue(CmdReadAnalogInput, A(ParamInput, input), A(ParamNumber, number))
}

// ReadAnalogInputRange reads the inclusive range of inputs start..end.
func ReadAnalogInputRange(start, end, number int) *Value {
	return NewValue(CmdReadAnalogInput, A(ParamInput, inputRange(start, end)), A(ParamNumber, number))
}

// ReadAnalogInputSet reads the given inputs.
func ReadAnalogInputSet(inputs []int, number int) (*Value, error) {
	set, err := inputSet(inputs)
	if err != nil {
		return nil, err
	}

	return NewValue(CmdReadAnalogInput, A(ParamInput, set), A(ParamNumber, number)), nil
}

func ReadAllAnalogInput(number int) *Value {
	return NewValue(CmdReadAnalogInput, A(ParamInput, AllInputs), A(ParamNumber, number))
}

func ReadDigitalInput(input, number int) *Value {
	return NewValue(CmdReadDigitalInput, A(ParamInput, input), A(ParamNumber, number))
}

func ReadDigitalInputRange(start, end, number int) *Value {
	return NewValue(CmdReadDigitalInput, A(ParamInput, inputRange(start, end)), A(ParamNumber, number))
}

func ReadDigitalInputSet(inputs []int, number int) (*Value, error) {
	set, err := inputSet(inputs)
	if err != nil {
		return nil, err
	}

	return NewValue(CmdReadDigitalInput, A(ParamInput, set), A(ParamNumber, number)), nil
}

func ReadAllDigitalInput(number int) *Value {
	return NewValue(CmdReadDigitalInput, A(ParamInput, AllInputs), A(ParamNumber, number))
}

// AddAnalogInput activates an analog input with its sampling configuration.
func AddAnalogInput(input int, gain board.Gain, rate board.Rate, buffer board.BufferState) *Value {
	return NewValue(CmdAddAnalogInput,
		A(ParamInput, input),
		A(ParamGain, gain),
		A(ParamRate, rate),
		A(ParamBuffer, buffer))
}

func RemoveAnalogInput(input int) *Value {
	return NewValue(CmdRemoveAnalogInput, A(ParamInput, input))
}

// RemoveAnalogInputs returns one REMOVE_ANALOG_INPUT per input.
func RemoveAnalogInputs(inputs []int) []*Value {
	out := make([]*Value, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, RemoveAnalogInput(in))
	}

	return out
}

// DeactivateAllAnalogInputs removes every physical analog input of b.
func DeactivateAllAnalogInputs(b board.Board) []*Value {
	return RemoveAnalogInputs(sequence(b.AnalogInputCount()))
}

func AddDigitalInput(input int) *Value {
	return NewValue(CmdAddDigitalInput, A(ParamInput, input))
}

func RemoveDigitalInput(input int) *Value {
	return NewValue(CmdRemoveDigitalInput, A(ParamInput, input))
}

func RemoveDigitalInputs(inputs []int) []*Value {
	out := make([]*Value, 0, len(inputs))
	for _, in := range inputs {
		out = append(out, RemoveDigitalInput(in))
	}

	return out
}

// DeactivateAllDigitalInputs removes every physical digital input of b.
func DeactivateAllDigitalInputs(b board.Board) []*Value {
	return RemoveDigitalInputs(sequence(b.DigitalInputCount()))
}

// SetDigitalOutputByHex sets all outputs from a hex mask, e.g. "FFFF".
func SetDigitalOutputByHex(hex string) *Value {
	return NewValue(CmdSetDigitalOutput, A(ParamOutput, hex))
}

// SetDigitalOutputByBinaryString sets all outputs from a binary mask, e.g. "0011001100110011".
func SetDigitalOutputByBinaryString(binary string) (*Value, error) {
	hex, err := board.BinaryToHex(binary)
	if err != nil {
		return nil, err
	}

	return SetDigitalOutputByHex(hex), nil
}

// SetDigitalOutput sets all outputs from their states, output 0 first.
func SetDigitalOutput(states []bool) (*Value, error) {
	hex, err := board.OutputsToHex(states)
	if err != nil {
		return nil, err
	}

	return SetDigitalOutputByHex(hex), nil
}

// SetDigitalOutputPWM drives the outputs in the hex mask with a duty cycle in 0..100.
func SetDigitalOutputPWM(hex string, dutyCycle int) (*Value, error) {
	if dutyCycle < 0 || dutyCycle > 100 {
		return nil, fmt.Errorf("%w: duty cycle %d not in 0..100", ErrInvalidArgument, dutyCycle)
	}

	return NewValue(CmdSetPWMOutput, A(ParamOutput, hex), A(ParamDutyCycle, dutyCycle)), nil
}

// SetPWMOutputTimer sets the PWM output timer period.
func SetPWMOutputTimer(timer int64) *Value {
	return NewValue(CmdSetPWMOutputTimer, A(ParamValue, timer))
}

func ReadDigitalOutput() *Value {
	return NewValue(CmdReadDigitalOutput)
}

func SetAnalogInputScale(scale board.AnalogScale) *Value {
	return NewValue(CmdSetAnalogInputScale, A(ParamScale, scale))
}

func GetAnalogInputScale() *Value {
	return NewValue(CmdGetAnalogInputScale)
}

func AddPWMInput(input int) *Value {
	return NewValue(CmdAddPWMInput, A(ParamInput, input))
}

func RemovePWMInput(input int) *Value {
	return NewValue(CmdRemovePWMInput, A(ParamInput, input))
}

func ReadPWMInput(input, number int) *Value {
	return NewValue(CmdReadPWMInput, A(ParamInput, input), A(ParamNumber, number))
}

func ListPWMInputs() *Value {
	return NewValue(CmdListPWMInputs)
}

func ListAnalogInputs() *Value {
	return NewValue(CmdListAnalogInputs)
}

// Sample reads every active input number times.
func Sample(number int) *Value {
	return NewValue(CmdSample, A(ParamNumber, number))
}

func Halt() *Value {
	return NewValue(CmdHalt)
}

func Identify() *Value {
	return NewValue(CmdIdentify)
}

func Upgrade() *Value {
	return NewValue(CmdUpgrade)
}

// None is the no-op command used as a keep-alive.
func None() *Value {
	return NewValue(CmdNone)
}

func Disconnect() *Value {
	return NewValue(CmdDisconnect)
}

// SetRTC sets the board real time clock to timestamp.
func SetRTC(timestamp int64) *Value {
	return NewValue(CmdSetRTC, A(ParamValue, timestamp))
}

func ReadADCRegisters() *Value {
	return NewValue(CmdReadADCRegisters)
}

// Calibration commands. Improper calibration makes analog readings unreliable.

func SystemGainCalibrate(input int) *Value {
	return NewValue(CmdSystemGCal, A(ParamInput, input))
}

func SystemCalibrate() *Value {
	return NewValue(CmdSystemCal)
}

func ReadSystemGainCalibration() *Value {
	return NewValue(CmdReadSystemGCal)
}

func ReadSelfGainCalibration(gain board.Gain, rate board.Rate, buffer board.BufferState) *Value {
	return NewValue(CmdReadSelfGCal, A(ParamGain, gain), A(ParamRate, rate), A(ParamBuffer, buffer))
}

func GetCalibrationStatus() *Value {
	return NewValue(CmdGetCalibrationStatus)
}

func EnterCalibrationMode() *Value {
	return NewValue(CmdEnterCalibrationMode)
}

func ExitCalibrationMode() *Value {
	return NewValue(CmdExitCalibrationMode)
}

func WriteCalibrationTemperature(temp float64, index int) *Value {
	return NewValue(CmdWriteCalibrationTemp,
		A(ParamTemperature, strconv.FormatFloat(temp, 'f', -1, 64)),
		A(ParamIndex, index))
}

func WriteGainCalibrationValue(value float32, gain board.Gain, rate board.Rate, buffer board.BufferState, scale board.AnalogScale, temp int) *Value {
	return NewValue(CmdWriteGainCalibrationValue,
		A(ParamTemperature, temp),
		A(ParamValue, strconv.FormatFloat(float64(value), 'f', -1, 32)),
		A(ParamBuffer, buffer),
		A(ParamRate, rate),
		A(ParamGain, gain),
		A(ParamScale, scale))
}

func WriteCalibrationValid() *Value {
	return NewValue(CmdWriteCalibrationValid)
}

func WriteSerialNumber(serial string) *Value {
	return NewValue(CmdSetBoardSerialNum, A(ParamValue, serial))
}

func WriteFactoryMACAddress(mac int64) *Value {
	return NewValue(CmdSetFactoryMACAddr, A(ParamValue, mac))
}

func inputRange(start, end int) string {
	return strconv.Itoa(start) + "-" + strconv.Itoa(end)
}

func inputSet(inputs []int) (string, error) {
	if len(inputs) == 0 {
		return "", fmt.Errorf("%w: empty input set", ErrInvalidArgument)
	}

	parts := make([]string, len(inputs))
	for i, in := range inputs {
		parts[i] = strconv.Itoa(in)
	}

	return strings.Join(parts, ","), nil
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}

	return out
}
