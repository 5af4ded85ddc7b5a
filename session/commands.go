package session

import (
	"fmt"
	"time"

	"github.com/arloliu/go-tekdaqc/board"
	"github.com/arloliu/go-tekdaqc/command"
	"github.com/arloliu/go-tekdaqc/message"
)

// QueueCommand queues a single command. It is sent once the session is connected.
func (s *Session) QueueCommand(v *command.Value) {
	s.engine.EnqueueCommand(v)
}

// QueueTask queues the commands of t followed by its completion marker.
func (s *Session) QueueTask(t *command.Task) {
	s.engine.EnqueueTask(t)
}

// QueuedCount returns the number of queue items not yet sent.
func (s *Session) QueuedCount() int {
	return s.engine.QueuedCount()
}

// ReadAnalogInput samples analog input ch number times.
func (s *Session) ReadAnalogInput(ch, number int) error {
	if err := s.checkAnalogInput(ch); err != nil {
		return err
	}

	return s.send(command.ReadAnalogInput(ch, number))
}

// ReadAnalogInputRange samples analog inputs start through end number times.
func (s *Session) ReadAnalogInputRange(start, end, number int) error {
	if err := s.checkAnalogRange(start, end); err != nil {
		return err
	}

	return s.send(command.ReadAnalogInputRange(start, end, number))
}

// ReadAnalogInputSet samples the given analog inputs number times.
func (s *Session) ReadAnalogInputSet(inputs []int, number int) error {
	for _, ch := range inputs {
		if err := s.checkAnalogInput(ch); err != nil {
			return err
		}
	}

	v, err := command.ReadAnalogInputSet(inputs, number)
	if err != nil {
		return err
	}

	return s.send(v)
}

// ReadAllAnalogInput samples every active analog input number times.
func (s *Session) ReadAllAnalogInput(number int) error {
	return s.send(command.ReadAllAnalogInput(number))
}

// ReadDigitalInput samples digital input ch number times. Throttled reads are halted first.
func (s *Session) ReadDigitalInput(ch, number int) error {
	if err := s.checkDigitalInput(ch); err != nil {
		return err
	}
	s.HaltThrottledDigitalInput()

	return s.send(command.ReadDigitalInput(ch, number))
}

// ReadDigitalInputRange samples digital inputs start through end number times.
func (s *Session) ReadDigitalInputRange(start, end, number int) error {
	if err := s.checkDigitalInput(start); err != nil {
		return err
	}
	if err := s.checkDigitalInput(end); err != nil {
		return err
	}
	if start > end {
		return fmt.Errorf("%w: digital range %d-%d", ErrInvalidChannel, start, end)
	}
	s.HaltThrottledDigitalInput()

	return s.send(command.ReadDigitalInputRange(start, end, number))
}

// ReadDigitalInputSet samples the given digital inputs number times.
func (s *Session) ReadDigitalInputSet(inputs []int, number int) error {
	for _, ch := range inputs {
		if err := s.checkDigitalInput(ch); err != nil {
			return err
		}
	}

	v, err := command.ReadDigitalInputSet(inputs, number)
	if err != nil {
		return err
	}
	s.HaltThrottledDigitalInput()

	return s.send(v)
}

// ReadAllDigitalInput samples every active digital input number times.
func (s *Session) ReadAllDigitalInput(number int) error {
	s.HaltThrottledDigitalInput()

	return s.send(command.ReadAllDigitalInput(number))
}

// ReadPWMInput measures PWM input ch number times.
func (s *Session) ReadPWMInput(ch, number int) error {
	if err := s.checkDigitalInput(ch); err != nil {
		return err
	}

	return s.send(command.ReadPWMInput(ch, number))
}

func (s *Session) ReadDigitalOutput() error    { return s.send(command.ReadDigitalOutput()) }
func (s *Session) ListAnalogInputs() error     { return s.send(command.ListAnalogInputs()) }
func (s *Session) ListPWMInputs() error        { return s.send(command.ListPWMInputs()) }
func (s *Session) GetAnalogInputScale() error  { return s.send(command.GetAnalogInputScale()) }
func (s *Session) Identify() error             { return s.send(command.Identify()) }
func (s *Session) Upgrade() error              { return s.send(command.Upgrade()) }
func (s *Session) None() error                 { return s.send(command.None()) }
func (s *Session) ReadADCRegisters() error     { return s.send(command.ReadADCRegisters()) }
func (s *Session) SystemCalibrate() error      { return s.send(command.SystemCalibrate()) }
func (s *Session) GetCalibrationStatus() error { return s.send(command.GetCalibrationStatus()) }
func (s *Session) EnterCalibrationMode() error { return s.send(command.EnterCalibrationMode()) }
func (s *Session) ExitCalibrationMode() error  { return s.send(command.ExitCalibrationMode()) }
func (s *Session) WriteCalibrationValid() error {
	return s.send(command.WriteCalibrationValid())
}

// Sample reads every active input number times.
func (s *Session) Sample(number int) error {
	return s.send(command.Sample(number))
}

// Halt stops any sampling on the board, including throttled digital reads.
func (s *Session) Halt() error {
	s.HaltThrottledDigitalInput()

	return s.send(command.Halt())
}

// SetRTC sets the board clock to t.
func (s *Session) SetRTC(t time.Time) error {
	return s.send(command.SetRTC(t.UnixMilli()))
}

// SetPWMOutputTimer sets the period of the PWM output timer.
func (s *Session) SetPWMOutputTimer(timer int64) error {
	return s.send(command.SetPWMOutputTimer(timer))
}

// SystemGainCalibrate runs a system gain calibration against analog input ch.
func (s *Session) SystemGainCalibrate(ch int) error {
	if err := s.checkAnalogInput(ch); err != nil {
		return err
	}

	return s.send(command.SystemGainCalibrate(ch))
}

func (s *Session) ReadSystemGainCalibration() error {
	return s.send(command.ReadSystemGainCalibration())
}

// ReadSelfGainCalibration reads the self calibration value of one configuration.
func (s *Session) ReadSelfGainCalibration(gain board.Gain, rate board.Rate, buffer board.BufferState) error {
	if err := s.validateAnalog(gain, rate, buffer); err != nil {
		return err
	}

	return s.send(command.ReadSelfGainCalibration(gain, rate, buffer))
}

// WriteCalibrationTemperature writes the calibration temperature at index.
// The board must be in calibration mode.
func (s *Session) WriteCalibrationTemperature(temp float64, index int) error {
	return s.send(command.WriteCalibrationTemperature(temp, index))
}

// WriteGainCalibrationValue writes one gain calibration value.
// The board must be in calibration mode.
func (s *Session) WriteGainCalibrationValue(value float32, gain board.Gain, rate board.Rate, buffer board.BufferState, scale board.AnalogScale, temp int) error {
	if err := s.validateAnalog(gain, rate, buffer); err != nil {
		return err
	}
	if _, err := s.board.ScaleMultiplier(scale); err != nil {
		return fmt.Errorf("session: %w", err)
	}

	return s.send(command.WriteGainCalibrationValue(value, gain, rate, buffer, scale, temp))
}

// WriteSerialNumber programs the board serial number. Factory use only.
func (s *Session) WriteSerialNumber(serial string) error {
	return s.send(command.WriteSerialNumber(serial))
}

// WriteFactoryMACAddress programs the board MAC address. Factory use only.
func (s *Session) WriteFactoryMACAddress(mac int64) error {
	return s.send(command.WriteFactoryMACAddress(mac))
}

// send queues v on a connected session.
func (s *Session) send(v *command.Value) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}
	s.engine.EnqueueCommand(v)

	return nil
}

func (s *Session) checkAnalogRange(start, end int) error {
	if start < 0 || end >= s.board.AnalogInputCount() || start > end {
		return fmt.Errorf("%w: analog range %d-%d", ErrInvalidChannel, start, end)
	}

	return nil
}

func (s *Session) AddMessageListener(l message.Listener) {
	s.broadcaster.AddMessageListener(s.serial, l)
}

func (s *Session) RemoveMessageListener(l message.Listener) {
	s.broadcaster.RemoveMessageListener(s.serial, l)
}

func (s *Session) AddNetworkListener(l message.NetworkListener) {
	s.broadcaster.AddNetworkListener(s.serial, l)
}

func (s *Session) RemoveNetworkListener(l message.NetworkListener) {
	s.broadcaster.RemoveNetworkListener(s.serial, l)
}

// AddCountListener registers l for raw counts of analog input ch.
func (s *Session) AddCountListener(ch int, l message.CountListener) error {
	if err := s.checkAnalogInput(ch); err != nil {
		return err
	}
	s.broadcaster.AddCountListener(s.serial, ch, l)

	return nil
}

func (s *Session) RemoveCountListener(ch int, l message.CountListener) {
	s.broadcaster.RemoveCountListener(s.serial, ch, l)
}

// AddVoltageListener registers l for converted readings of analog input ch.
func (s *Session) AddVoltageListener(ch int, l message.VoltageListener) error {
	if err := s.checkAnalogInput(ch); err != nil {
		return err
	}
	s.broadcaster.AddVoltageListener(s.serial, ch, l)

	return nil
}

func (s *Session) RemoveVoltageListener(ch int, l message.VoltageListener) {
	s.broadcaster.RemoveVoltageListener(s.serial, ch, l)
}

// AddDigitalListener registers l for samples of digital input ch.
func (s *Session) AddDigitalListener(ch int, l message.DigitalListener) error {
	if err := s.checkDigitalInput(ch); err != nil {
		return err
	}
	s.broadcaster.AddDigitalListener(s.serial, ch, l)

	return nil
}

func (s *Session) RemoveDigitalListener(ch int, l message.DigitalListener) {
	s.broadcaster.RemoveDigitalListener(s.serial, ch, l)
}

// AddPWMListener registers l for PWM measurements of digital input ch.
func (s *Session) AddPWMListener(ch int, l message.PWMListener) error {
	if err := s.checkDigitalInput(ch); err != nil {
		return err
	}
	s.broadcaster.AddPWMListener(s.serial, ch, l)

	return nil
}

func (s *Session) RemovePWMListener(ch int, l message.PWMListener) {
	s.broadcaster.RemovePWMListener(s.serial, ch, l)
}
