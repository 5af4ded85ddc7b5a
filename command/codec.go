package command

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

var (
	_ msgpack.CustomEncoder = (*Value)(nil)
	_ msgpack.CustomDecoder = (*Value)(nil)
)

// EncodeMsgpack writes v as a flat array: command ordinal, then param ordinal
// and value string pairs.
func (v *Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if err := enc.EncodeArrayLen(1 + 2*len(v.args)); err != nil {
		return err
	}
	if err := enc.EncodeUint8(uint8(v.cmd)); err != nil {
		return err
	}
	for _, a := range v.args {
		if err := enc.EncodeUint8(uint8(a.Param)); err != nil {
			return err
		}
		if err := enc.EncodeString(a.Value); err != nil {
			return err
		}
	}

	return nil
}

func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	n, err := dec.DecodeArrayLen()
	if err != nil {
		return err
	}
	if n < 1 || n%2 != 1 {
		return fmt.Errorf("command: malformed msgpack value with %d elements", n)
	}

	cmd, err := dec.DecodeUint8()
	if err != nil {
		return err
	}
	if !Command(cmd).IsValid() {
		return fmt.Errorf("%w: ordinal %d", ErrUnknownCommand, cmd)
	}

	args := make([]Arg, 0, (n-1)/2)
	for i := 1; i < n; i += 2 {
		p, err := dec.DecodeUint8()
		if err != nil {
			return err
		}
		if !Param(p).IsValid() {
			return fmt.Errorf("%w: ordinal %d", ErrUnknownParam, p)
		}
		s, err := dec.DecodeString()
		if err != nil {
			return err
		}
		args = append(args, Arg{Param: Param(p), Value: s})
	}

	v.cmd = Command(cmd)
	v.args = args

	return nil
}

// Marshal serializes a list of command values.
func Marshal(values ...*Value) ([]byte, error) {
	return msgpack.Marshal(values)
}

// Unmarshal deserializes command values written by Marshal.
func Unmarshal(data []byte) ([]*Value, error) {
	var values []*Value
	if err := msgpack.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("command: unmarshal: %w", err)
	}

	return values, nil
}
