package session

import (
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/arloliu/go-tekdaqc/board"
	"github.com/arloliu/go-tekdaqc/command"
)

// Defaults of an analog input that was never configured.
const (
	DefaultGain   = board.GainX4
	DefaultRate   = board.Rate10
	DefaultBuffer = board.BufferEnabled
)

// AnalogInput is the host-side configuration of one analog input.
type AnalogInput struct {
	Channel int
	Gain    board.Gain
	Rate    board.Rate
	Buffer  board.BufferState
	Active  bool
}

// DigitalInput is the host-side state of one digital input.
// PWM is set when the input is active as a PWM input.
type DigitalInput struct {
	Channel int
	Active  bool
	PWM     bool
}

// DigitalOutput is the last state set on one digital output.
type DigitalOutput struct {
	Channel   int
	On        bool
	DutyCycle int
}

// channelTable keeps the channel metadata of a board.
type channelTable struct {
	mu      sync.RWMutex
	analog  map[int]*AnalogInput
	digital []DigitalInput
	outputs []DigitalOutput
}

func newChannelTable(b board.Board) *channelTable {
	t := &channelTable{
		analog:  make(map[int]*AnalogInput, b.AnalogInputCount()+1),
		digital: make([]DigitalInput, b.DigitalInputCount()),
		outputs: make([]DigitalOutput, b.DigitalOutputCount()),
	}

	newAnalog := func(ch int) *AnalogInput {
		return &AnalogInput{Channel: ch, Gain: DefaultGain, Rate: DefaultRate, Buffer: DefaultBuffer}
	}
	for ch := range b.AnalogInputCount() {
		t.analog[ch] = newAnalog(ch)
	}
	t.analog[b.TemperatureSensorInput()] = newAnalog(b.TemperatureSensorInput())

	for i := range t.digital {
		t.digital[i].Channel = i
	}
	for i := range t.outputs {
		t.outputs[i].Channel = i
	}

	return t
}

func (t *channelTable) analogInput(ch int) (AnalogInput, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	in, ok := t.analog[ch]
	if !ok {
		return AnalogInput{}, false
	}

	return *in, true
}

func (t *channelTable) analogInputs(activeOnly bool) []AnalogInput {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]AnalogInput, 0, len(t.analog))
	for _, ch := range slices.Sorted(maps.Keys(t.analog)) {
		if in := t.analog[ch]; !activeOnly || in.Active {
			out = append(out, *in)
		}
	}

	return out
}

func (t *channelTable) digitalInputs(activeOnly bool) []DigitalInput {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]DigitalInput, 0, len(t.digital))
	for _, in := range t.digital {
		if !activeOnly || in.Active {
			out = append(out, in)
		}
	}

	return out
}

func (t *channelTable) digitalOutputs() []DigitalOutput {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return slices.Clone(t.outputs)
}

func (t *channelTable) outputStates() []bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	states := make([]bool, len(t.outputs))
	for i, o := range t.outputs {
		states[i] = o.On
	}

	return states
}

// setOutputStates records states, output 0 first. Missing outputs are switched off.
func (t *channelTable) setOutputStates(states []bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range t.outputs {
		t.outputs[i].On = i < len(states) && states[i]
		if !t.outputs[i].On {
			t.outputs[i].DutyCycle = 0
		}
	}
}

// deactivateAll marks every input inactive and returns the ones that were active.
func (t *channelTable) deactivateAll() ([]int, []DigitalInput) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var analog []int
	for _, ch := range slices.Sorted(maps.Keys(t.analog)) {
		if in := t.analog[ch]; in.Active {
			analog = append(analog, ch)
			in.Active = false
		}
	}

	var digital []DigitalInput
	for i := range t.digital {
		if t.digital[i].Active {
			digital = append(digital, t.digital[i])
			t.digital[i].Active = false
			t.digital[i].PWM = false
		}
	}

	return analog, digital
}

// AnalogInput returns the configuration of analog channel ch.
func (s *Session) AnalogInput(ch int) (AnalogInput, error) {
	in, ok := s.channels.analogInput(ch)
	if !ok {
		return AnalogInput{}, fmt.Errorf("%w: analog input %d", ErrInvalidChannel, ch)
	}

	return in, nil
}

// AnalogInputs returns every analog input ordered by channel.
func (s *Session) AnalogInputs() []AnalogInput {
	return s.channels.analogInputs(false)
}

// ActiveAnalogInputs returns the active analog inputs ordered by channel.
func (s *Session) ActiveAnalogInputs() []AnalogInput {
	return s.channels.analogInputs(true)
}

// ConfigureAnalogInput sets the sampling configuration of channel ch.
// An active input is removed and added again with the new configuration.
func (s *Session) ConfigureAnalogInput(ch int, gain board.Gain, rate board.Rate, buffer board.BufferState) error {
	if err := s.validateAnalog(gain, rate, buffer); err != nil {
		return err
	}

	s.channels.mu.Lock()
	in, ok := s.channels.analog[ch]
	if !ok {
		s.channels.mu.Unlock()
		return fmt.Errorf("%w: analog input %d", ErrInvalidChannel, ch)
	}
	in.Gain, in.Rate, in.Buffer = gain, rate, buffer
	active := in.Active
	s.channels.mu.Unlock()

	if active && s.IsConnected() {
		s.engine.EnqueueCommand(command.RemoveAnalogInput(ch))
		s.engine.EnqueueCommand(command.AddAnalogInput(ch, gain, rate, buffer))
	}

	return nil
}

// ActivateAnalogInput adds channel ch on the board with its current configuration.
func (s *Session) ActivateAnalogInput(ch int) error {
	if !s.IsConnected() {
		return ErrNotConnected
	}

	s.channels.mu.Lock()
	in, ok := s.channels.analog[ch]
	if !ok {
		s.channels.mu.Unlock()
		return fmt.Errorf("%w: analog input %d", ErrInvalidChannel, ch)
	}
	in.Active = true
	cfg := *in
	s.channels.mu.Unlock()

	s.engine.EnqueueCommand(command.AddAnalogInput(ch, cfg.Gain, cfg.Rate, cfg.Buffer))

	return nil
}

// DeactivateAnalogInput removes channel ch from the board.
func (s *Session) DeactivateAnalogInput(ch int) error {
	s.channels.mu.Lock()
	in, ok := s.channels.analog[ch]
	if !ok {
		s.channels.mu.Unlock()
		return fmt.Errorf("%w: analog input %d", ErrInvalidChannel, ch)
	}
	in.Active = false
	s.channels.mu.Unlock()

	if s.IsConnected() {
		s.engine.EnqueueCommand(command.RemoveAnalogInput(ch))
	}

	return nil
}

// DeactivateAllAddedAnalogInputs removes only the analog inputs activated through this session.
func (s *Session) DeactivateAllAddedAnalogInputs() {
	s.channels.mu.Lock()
	var removed []int
	for _, ch := range slices.Sorted(maps.Keys(s.channels.analog)) {
		if in := s.channels.analog[ch]; in.Active {
			in.Active = false
			removed = append(removed, ch)
		}
	}
	s.channels.mu.Unlock()

	if s.IsConnected() {
		for _, v := range command.RemoveAnalogInputs(removed) {
			s.engine.EnqueueCommand(v)
		}
	}
}

// DeactivateAllAnalogInputs removes every physical analog input from the board.
func (s *Session) DeactivateAllAnalogInputs() {
	s.channels.mu.Lock()
	for _, in := range s.channels.analog {
		in.Active = false
	}
	s.channels.mu.Unlock()

	if s.IsConnected() {
		s.engine.EnqueueTask(command.NewTask().Add(command.DeactivateAllAnalogInputs(s.board)...))
	}
}

// DigitalInput returns the state of digital input ch.
func (s *Session) DigitalInput(ch int) (DigitalInput, error) {
	if err := s.checkDigitalInput(ch); err != nil {
		return DigitalInput{}, err
	}

	s.channels.mu.RLock()
	defer s.channels.mu.RUnlock()

	return s.channels.digital[ch], nil
}

// DigitalInputs returns every digital input ordered by channel.
func (s *Session) DigitalInputs() []DigitalInput {
	return s.channels.digitalInputs(false)
}

// ActivateDigitalInput adds ch as a plain digital input.
func (s *Session) ActivateDigitalInput(ch int) error {
	return s.activateDigital(ch, false)
}

// ActivatePWMInput adds ch as a PWM input.
func (s *Session) ActivatePWMInput(ch int) error {
	return s.activateDigital(ch, true)
}

func (s *Session) activateDigital(ch int, pwm bool) error {
	if err := s.checkDigitalInput(ch); err != nil {
		return err
	}
	if !s.IsConnected() {
		return ErrNotConnected
	}

	s.channels.mu.Lock()
	in := &s.channels.digital[ch]
	if in.Active && in.PWM != pwm {
		s.channels.mu.Unlock()
		return fmt.Errorf("%w: digital input %d", ErrChannelInUse, ch)
	}
	in.Active, in.PWM = true, pwm
	s.channels.mu.Unlock()

	if pwm {
		s.engine.EnqueueCommand(command.AddPWMInput(ch))
	} else {
		s.engine.EnqueueCommand(command.AddDigitalInput(ch))
	}

	return nil
}

// DeactivateDigitalInput removes ch from the board in whichever mode it is active.
func (s *Session) DeactivateDigitalInput(ch int) error {
	if err := s.checkDigitalInput(ch); err != nil {
		return err
	}

	s.channels.mu.Lock()
	in := &s.channels.digital[ch]
	wasPWM := in.Active && in.PWM
	in.Active, in.PWM = false, false
	s.channels.mu.Unlock()

	if !s.IsConnected() {
		return nil
	}
	if wasPWM {
		s.engine.EnqueueCommand(command.RemovePWMInput(ch))
	} else {
		s.engine.EnqueueCommand(command.RemoveDigitalInput(ch))
	}

	return nil
}

// DeactivateAllAddedDigitalInputs removes only the digital inputs activated through this session.
func (s *Session) DeactivateAllAddedDigitalInputs() {
	s.channels.mu.Lock()
	var removed []*command.Value
	for i := range s.channels.digital {
		in := &s.channels.digital[i]
		if !in.Active {
			continue
		}
		if in.PWM {
			removed = append(removed, command.RemovePWMInput(i))
		} else {
			removed = append(removed, command.RemoveDigitalInput(i))
		}
		in.Active, in.PWM = false, false
	}
	s.channels.mu.Unlock()

	if s.IsConnected() {
		for _, v := range removed {
			s.engine.EnqueueCommand(v)
		}
	}
}

// DeactivateAllDigitalInputs removes every physical digital input from the board.
func (s *Session) DeactivateAllDigitalInputs() {
	s.channels.mu.Lock()
	for i := range s.channels.digital {
		s.channels.digital[i].Active = false
		s.channels.digital[i].PWM = false
	}
	s.channels.mu.Unlock()

	if s.IsConnected() {
		s.engine.EnqueueTask(command.NewTask().Add(command.DeactivateAllDigitalInputs(s.board)...))
	}
}

// DigitalOutputs returns the last state set on every digital output.
func (s *Session) DigitalOutputs() []DigitalOutput {
	return s.channels.digitalOutputs()
}

// ToggleDigitalOutput switches output ch and sends the state of all outputs.
func (s *Session) ToggleDigitalOutput(ch int, on bool) error {
	if ch < 0 || ch >= s.board.DigitalOutputCount() {
		return fmt.Errorf("%w: digital output %d", ErrInvalidChannel, ch)
	}
	if !s.IsConnected() {
		return ErrNotConnected
	}

	states := s.channels.outputStates()
	states[ch] = on

	return s.SetDigitalOutput(states)
}

// SetDigitalOutput sets every digital output, output 0 first.
func (s *Session) SetDigitalOutput(states []bool) error {
	if len(states) != s.board.DigitalOutputCount() {
		return fmt.Errorf("%w: %d output states for %d outputs", ErrInvalidChannel, len(states), s.board.DigitalOutputCount())
	}
	if !s.IsConnected() {
		return ErrNotConnected
	}

	v, err := command.SetDigitalOutput(states)
	if err != nil {
		return err
	}

	s.channels.setOutputStates(states)
	s.engine.EnqueueCommand(v)

	return nil
}

// SetDigitalOutputByBinaryString sets every digital output from a mask such as "0000000000000101".
func (s *Session) SetDigitalOutputByBinaryString(binary string) error {
	hex, err := board.BinaryToHex(binary)
	if err != nil {
		return err
	}

	return s.SetDigitalOutputByHex(hex)
}

// SetDigitalOutputByHex sets every digital output from a hex mask such as "0005".
func (s *Session) SetDigitalOutputByHex(hex string) error {
	padded := hex
	if len(padded)%2 != 0 {
		padded = "0" + padded
	}
	states, err := board.HexToOutputs(padded)
	if err != nil {
		return err
	}
	if !s.IsConnected() {
		return ErrNotConnected
	}

	s.channels.setOutputStates(alignOutputs(states, s.board.DigitalOutputCount()))
	s.engine.EnqueueCommand(command.SetDigitalOutputByHex(hex))

	return nil
}

// SetDigitalOutputDutyCycle drives output ch with a PWM duty cycle in 0..100.
func (s *Session) SetDigitalOutputDutyCycle(ch int, dutyCycle int) error {
	count := s.board.DigitalOutputCount()
	if ch < 0 || ch >= count {
		return fmt.Errorf("%w: digital output %d", ErrInvalidChannel, ch)
	}
	if !s.IsConnected() {
		return ErrNotConnected
	}

	mask := make([]bool, count)
	mask[ch] = true
	hex, err := board.OutputsToHex(mask)
	if err != nil {
		return err
	}

	v, err := command.SetDigitalOutputPWM(hex, dutyCycle)
	if err != nil {
		return err
	}

	s.channels.mu.Lock()
	s.channels.outputs[ch].On = dutyCycle > 0
	s.channels.outputs[ch].DutyCycle = dutyCycle
	s.channels.mu.Unlock()

	s.engine.EnqueueCommand(v)

	return nil
}

func (s *Session) checkDigitalInput(ch int) error {
	if ch < 0 || ch >= s.board.DigitalInputCount() {
		return fmt.Errorf("%w: digital input %d", ErrInvalidChannel, ch)
	}

	return nil
}

func (s *Session) checkAnalogInput(ch int) error {
	if _, ok := s.channels.analogInput(ch); !ok {
		return fmt.Errorf("%w: analog input %d", ErrInvalidChannel, ch)
	}

	return nil
}

func (s *Session) validateAnalog(gain board.Gain, rate board.Rate, buffer board.BufferState) error {
	if !slices.Contains(s.board.ValidGains(), gain) {
		return fmt.Errorf("session: %w: %d", board.ErrInvalidGain, gain)
	}
	if !slices.Contains(s.board.ValidRates(), rate) {
		return fmt.Errorf("session: %w: %s", board.ErrInvalidRate, rate)
	}
	if !slices.Contains(s.board.ValidBufferStates(), buffer) {
		return fmt.Errorf("session: invalid buffer state %q", buffer)
	}

	return nil
}

// alignOutputs right-aligns decoded hex states to count outputs, the way the
// board pads a short mask with leading zeros.
func alignOutputs(states []bool, count int) []bool {
	if len(states) >= count {
		return states[len(states)-count:]
	}

	out := make([]bool, count)
	copy(out[count-len(states):], states)

	return out
}
