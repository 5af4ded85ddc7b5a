// Package command defines the Tekdaqc command catalog, the queue items handled
// by the command engine and the line encoding sent to the board.
package command

import (
	"errors"
	"fmt"
)

// Wire format tokens of an encoded command line.
const (
	Delimiter    = " "
	ParamFlag    = "--"
	KeyValueSep  = "="
	EndOfCommand = '\r'
)

var (
	// ErrUnknownCommand is returned when a command name or ordinal is not in the catalog.
	ErrUnknownCommand = errors.New("command: unknown command")
	// ErrUnknownParam is returned when a parameter name or ordinal is not in the catalog.
	ErrUnknownParam = errors.New("command: unknown parameter")
	// ErrInvalidArgument is returned by builders when an argument is out of range.
	ErrInvalidArgument = errors.New("command: invalid argument")
)

// Command is a firmware command. The ordinal order matches the firmware table.
type Command uint8

const (
	CmdDisconnect Command = iota
	CmdUpgrade
	CmdIdentify
	CmdSample
	CmdHalt
	CmdSetRTC
	CmdSetUserMAC
	CmdSetStaticIP
	CmdNone
	CmdListAnalogInputs
	CmdReadADCRegisters
	CmdReadAnalogInput
	CmdAddAnalogInput
	CmdRemoveAnalogInput
	CmdCheckAnalogInput
	CmdSetAnalogInputScale
	CmdGetAnalogInputScale
	CmdListDigitalInputs
	CmdReadDigitalInput
	CmdAddDigitalInput
	CmdRemoveDigitalInput
	CmdListDigitalOutputs
	CmdSetDigitalOutput
	CmdSetPWMOutput
	CmdSetPWMOutputTimer
	CmdReadDigitalOutput
	CmdAddDigitalOutput
	CmdRemoveDigitalOutput
	CmdClearDigitalOutputFault
	CmdSystemGCal
	CmdSystemCal
	CmdReadSystemGCal
	CmdGetCalibrationStatus
	CmdEnterCalibrationMode
	CmdWriteGainCalibrationValue
	CmdWriteCalibrationTemp
	CmdWriteCalibrationValid
	CmdExitCalibrationMode
	CmdSetBoardSerialNum
	CmdSetFactoryMACAddr
	CmdReadSelfGCal
	CmdAddPWMInput
	CmdRemovePWMInput
	CmdReadPWMInput
	CmdListPWMInputs
)

var commandNames = [...]string{
	"DISCONNECT",
	"UPGRADE",
	"IDENTIFY",
	"SAMPLE",
	"HALT",
	"SET_RTC",
	"SET_USER_MAC",
	"SET_STATIC_IP",
	"NONE",
	"LIST_ANALOG_INPUTS",
	"READ_ADC_REGISTERS",
	"READ_ANALOG_INPUT",
	"ADD_ANALOG_INPUT",
	"REMOVE_ANALOG_INPUT",
	"CHECK_ANALOG_INPUT",
	"SET_ANALOG_INPUT_SCALE",
	"GET_ANALOG_INPUT_SCALE",
	"LIST_DIGITAL_INPUTS",
	"READ_DIGITAL_INPUT",
	"ADD_DIGITAL_INPUT",
	"REMOVE_DIGITAL_INPUT",
	"LIST_DIGITAL_OUTPUTS",
	"SET_DIGITAL_OUTPUT",
	"SET_PWM_OUTPUT",
	"SET_PWM_OUTPUT_TIMER",
	"READ_DIGITAL_OUTPUT",
	"ADD_DIGITAL_OUTPUT",
	"REMOVE_DIGITAL_OUTPUT",
	"CLEAR_DIGITAL_OUTPUT_FAULT",
	"SYSTEM_GCAL",
	"SYSTEM_CAL",
	"READ_SYSTEM_GCAL",
	"GET_CALIBRATION_STATUS",
	"ENTER_CALIBRATION_MODE",
	"WRITE_GAIN_CALIBRATION_VALUE",
	"WRITE_CALIBRATION_TEMP",
	"WRITE_CALIBRATION_VALID",
	"EXIT_CALIBRATION_MODE",
	"SET_BOARD_SERIAL_NUM",
	"SET_FACTORY_MAC_ADDR",
	"READ_SELF_GCAL",
	"ADD_PWM_INPUT",
	"REMOVE_PWM_INPUT",
	"READ_PWM_INPUT",
	"LIST_PWM_INPUTS",
}

// String returns the wire name of the command.
func (c Command) String() string {
	if !c.IsValid() {
		return fmt.Sprintf("Command(%d)", uint8(c))
	}

	return commandNames[c]
}

// IsValid reports whether c is in the catalog.
func (c Command) IsValid() bool {
	return int(c) < len(commandNames)
}

// ParseCommand returns the Command with the given wire name.
func ParseCommand(name string) (Command, error) {
	for i, n := range commandNames {
		if n == name {
			return Command(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownCommand, name)
}

// Param is a command parameter name.
type Param uint8

const (
	ParamInput Param = iota
	ParamRate
	ParamGain
	ParamBuffer
	ParamNumber
	ParamName
	ParamOutput
	ParamState
	ParamValue
	ParamScale
	ParamTemperature
	ParamIndex
	ParamAll
	ParamDutyCycle
)

var paramNames = [...]string{
	"INPUT",
	"RATE",
	"GAIN",
	"BUFFER",
	"NUMBER",
	"NAME",
	"OUTPUT",
	"STATE",
	"VALUE",
	"SCALE",
	"TEMPERATURE",
	"INDEX",
	"ALL",
	"DUTYCYCLE",
}

func (p Param) String() string {
	if !p.IsValid() {
		return fmt.Sprintf("Param(%d)", uint8(p))
	}

	return paramNames[p]
}

func (p Param) IsValid() bool {
	return int(p) < len(paramNames)
}

// ParseParam returns the Param with the given wire name.
func ParseParam(name string) (Param, error) {
	for i, n := range paramNames {
		if n == name {
			return Param(i), nil
		}
	}

	return 0, fmt.Errorf("%w: %q", ErrUnknownParam, name)
}
