package command

import (
	"fmt"
	"strings"

	"github.com/arloliu/go-tekdaqc/internal/util"
)

// Item is a unit of work in the command queue: a *Value or a *Marker.
type Item interface {
	isQueueItem()
}

// Arg is a single parameter of a command, with its value already stringified.
type Arg struct {
	Param Param
	Value string
}

// A builds an Arg, formatting v with its default text representation.
func A(p Param, v any) Arg {
	switch val := v.(type) {
	case string:
		return Arg{Param: p, Value: val}
	case fmt.Stringer:
		return Arg{Param: p, Value: val.String()}
	default:
		return Arg{Param: p, Value: fmt.Sprint(v)}
	}
}

// Value is an immutable command with its ordered parameters.
type Value struct {
	cmd  Command
	args []Arg
}

var _ Item = (*Value)(nil)

// NewValue creates a command value. Parameters are encoded in the given order.
func NewValue(cmd Command, args ...Arg) *Value {
	v := &Value{cmd: cmd}
	if len(args) > 0 {
		v.args = util.CloneSlice(args, 0)
	}

	return v
}

func (*Value) isQueueItem() {}

// Command returns the command code.
func (v *Value) Command() Command {
	return v.cmd
}

// Args returns a copy of the parameters.
func (v *Value) Args() []Arg {
	return util.CloneSlice(v.args, 0)
}

// Arg returns the value of the first parameter p.
func (v *Value) Arg(p Param) (string, bool) {
	for _, a := range v.args {
		if a.Param == p {
			return a.Value, true
		}
	}

	return "", false
}

// String returns the command line without the end-of-command marker.
func (v *Value) String() string {
	var sb strings.Builder
	v.writeTo(&sb)

	return sb.String()
}

// Encode returns the bytes sent to the board:
//
//	NAME[ --PARAM=value]*\r
func (v *Value) Encode() []byte {
	var sb strings.Builder
	v.writeTo(&sb)
	sb.WriteByte(EndOfCommand)

	return []byte(sb.String())
}

func (v *Value) writeTo(sb *strings.Builder) {
	sb.WriteString(v.cmd.String())
	for _, a := range v.args {
		sb.WriteString(Delimiter)
		sb.WriteString(ParamFlag)
		sb.WriteString(a.Param.String())
		sb.WriteString(KeyValueSep)
		sb.WriteString(a.Value)
	}
}

// Decode parses an encoded command line, with or without the trailing
// end-of-command marker, back into a Value.
func Decode(line string) (*Value, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Split(line, Delimiter)
	if len(fields) == 0 || fields[0] == "" {
		return nil, fmt.Errorf("%w: empty command line", ErrUnknownCommand)
	}

	cmd, err := ParseCommand(fields[0])
	if err != nil {
		return nil, err
	}

	args := make([]Arg, 0, len(fields)-1)
	for _, f := range fields[1:] {
		kv, ok := strings.CutPrefix(f, ParamFlag)
		if !ok {
			return nil, fmt.Errorf("%w: malformed parameter %q", ErrUnknownParam, f)
		}
		name, val, _ := strings.Cut(kv, KeyValueSep)
		p, err := ParseParam(name)
		if err != nil {
			return nil, err
		}
		args = append(args, Arg{Param: p, Value: val})
	}

	return NewValue(cmd, args...), nil
}
