// Package message parses the ASCII records streamed by a Tekdaqc board and
// fans the resulting messages out to registered listeners.
package message

import (
	"fmt"
	"strconv"
)

// Kind identifies the type of a protocol message.
type Kind int

const (
	KindStatus Kind = iota
	KindError
	KindDebug
	KindCommandData
	KindAnalogData
	KindDigitalData
	KindDigitalOutputData
	KindPWMData
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "STATUS"
	case KindError:
		return "ERROR"
	case KindDebug:
		return "DEBUG"
	case KindCommandData:
		return "COMMAND_DATA"
	case KindAnalogData:
		return "ANALOG_DATA"
	case KindDigitalData:
		return "DIGITAL_DATA"
	case KindDigitalOutputData:
		return "DIGITAL_OUTPUT_DATA"
	case KindPWMData:
		return "PWM_DATA"
	default:
		return "Kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Message is a parsed protocol message. Messages are never mutated after parsing.
type Message interface {
	Kind() Kind
	// Raw returns the record the message was parsed from.
	Raw() string
}

// TextMessage is a status, error, debug or command data message.
type TextMessage struct {
	kind    Kind
	raw     string
	text    string
	network bool
}

var _ Message = (*TextMessage)(nil)

// NewTextMessage creates a text message of the given kind. It is mainly used by tests and fakes.
func NewTextMessage(kind Kind, text string) *TextMessage {
	return &TextMessage{kind: kind, text: text, raw: text}
}

func (m *TextMessage) Kind() Kind  { return m.kind }
func (m *TextMessage) Raw() string { return m.raw }

// Text returns the human readable part of the message.
func (m *TextMessage) Text() string { return m.text }

// IsNetwork reports whether an error message reports a network condition.
func (m *TextMessage) IsNetwork() bool { return m.network }

func (m *TextMessage) String() string {
	return fmt.Sprintf("%s: %s", m.kind, m.text)
}

// AnalogInputData is one raw ADC sample of an analog input.
type AnalogInputData struct {
	Channel   int
	Timestamp int64
	Count     int32
	raw       string
}

var _ Message = (*AnalogInputData)(nil)

func (*AnalogInputData) Kind() Kind    { return KindAnalogData }
func (d *AnalogInputData) Raw() string { return d.raw }

func (d *AnalogInputData) String() string {
	return fmt.Sprintf("ANALOG_DATA (%d): input %d count %d", d.Timestamp, d.Channel, d.Count)
}

// DigitalInputData is one sample of a digital input; State is true when high.
type DigitalInputData struct {
	Channel   int
	Timestamp int64
	State     bool
	raw       string
}

var _ Message = (*DigitalInputData)(nil)

func (*DigitalInputData) Kind() Kind    { return KindDigitalData }
func (d *DigitalInputData) Raw() string { return d.raw }

func (d *DigitalInputData) String() string {
	return fmt.Sprintf("DIGITAL_DATA (%d): input %d state %t", d.Timestamp, d.Channel, d.State)
}

// PWMInputData is one PWM measurement of a digital input.
type PWMInputData struct {
	Channel     int
	Timestamp   int64
	Transitions int
	Percentage  float64
	raw         string
}

var _ Message = (*PWMInputData)(nil)

func (*PWMInputData) Kind() Kind    { return KindPWMData }
func (d *PWMInputData) Raw() string { return d.raw }

// DigitalOutputData reports the state of every digital output.
type DigitalOutputData struct {
	Outputs []bool
	raw     string
}

var _ Message = (*DigitalOutputData)(nil)

func (*DigitalOutputData) Kind() Kind    { return KindDigitalOutputData }
func (d *DigitalOutputData) Raw() string { return d.raw }
