package message

// Listener receives every message of a board, one callback per message kind.
//
// Implementations must be comparable, typically pointers, so they can be removed again.
type Listener interface {
	OnStatus(board string, msg *TextMessage)
	OnError(board string, msg *TextMessage)
	OnDebug(board string, msg *TextMessage)
	OnCommandData(board string, msg *TextMessage)
	OnAnalogData(board string, data *AnalogInputData)
	OnDigitalInputData(board string, data *DigitalInputData)
	OnDigitalOutputData(board string, data *DigitalOutputData)
}

// QueueListener is the command engine hook. It receives status and error
// messages before any other listener of the board.
type QueueListener interface {
	OnStatus(board string, msg *TextMessage)
	OnError(board string, msg *TextMessage)
}

// NetworkListener is notified of network condition reports only.
type NetworkListener interface {
	OnNetworkCondition(board string, msg *TextMessage)
}

// CountListener receives raw ADC counts of one analog channel.
type CountListener interface {
	OnAnalogCount(board string, data *AnalogInputData)
}

// VoltageListener receives converted readings of one analog channel.
type VoltageListener interface {
	OnVoltage(board string, channel int, timestamp int64, volts float64)
}

// DigitalListener receives samples of one digital input.
type DigitalListener interface {
	OnDigitalInput(board string, data *DigitalInputData)
}

// PWMListener receives PWM measurements of one digital input.
type PWMListener interface {
	OnPWMInput(board string, data *PWMInputData)
}

// VoltageConverter converts a raw count of channel to volts.
type VoltageConverter func(channel int, count int32) float64

// ListenerFuncs adapts functions to Listener. Nil fields are skipped.
type ListenerFuncs struct {
	Status            func(board string, msg *TextMessage)
	Error             func(board string, msg *TextMessage)
	Debug             func(board string, msg *TextMessage)
	CommandData       func(board string, msg *TextMessage)
	AnalogData        func(board string, data *AnalogInputData)
	DigitalInputData  func(board string, data *DigitalInputData)
	DigitalOutputData func(board string, data *DigitalOutputData)
}

var _ Listener = (*ListenerFuncs)(nil)

func (f *ListenerFuncs) OnStatus(board string, msg *TextMessage) {
	if f.Status != nil {
		f.Status(board, msg)
	}
}

func (f *ListenerFuncs) OnError(board string, msg *TextMessage) {
	if f.Error != nil {
		f.Error(board, msg)
	}
}

func (f *ListenerFuncs) OnDebug(board string, msg *TextMessage) {
	if f.Debug != nil {
		f.Debug(board, msg)
	}
}

func (f *ListenerFuncs) OnCommandData(board string, msg *TextMessage) {
	if f.CommandData != nil {
		f.CommandData(board, msg)
	}
}

func (f *ListenerFuncs) OnAnalogData(board string, data *AnalogInputData) {
	if f.AnalogData != nil {
		f.AnalogData(board, data)
	}
}

func (f *ListenerFuncs) OnDigitalInputData(board string, data *DigitalInputData) {
	if f.DigitalInputData != nil {
		f.DigitalInputData(board, data)
	}
}

func (f *ListenerFuncs) OnDigitalOutputData(board string, data *DigitalOutputData) {
	if f.DigitalOutputData != nil {
		f.DigitalOutputData(board, data)
	}
}
