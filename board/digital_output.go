package board

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// OutputsToHex encodes the digital output states as the hex string expected
// by SET_DIGITAL_OUTPUT. states[0] is the most significant bit.
func OutputsToHex(states []bool) (string, error) {
	var sb strings.Builder
	sb.Grow(len(states))
	for _, on := range states {
		if on {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}

	return BinaryToHex(sb.String())
}

// BinaryToHex converts a string of '0'/'1' into upper-case hex, one digit per
// 4 bits. The string is left padded with zeros to a multiple of 4.
func BinaryToHex(binary string) (string, error) {
	if binary == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidBinary)
	}
	if pad := len(binary) % 4; pad != 0 {
		binary = strings.Repeat("0", 4-pad) + binary
	}

	var sb strings.Builder
	for i := 0; i < len(binary); i += 4 {
		v, err := strconv.ParseUint(binary[i:i+4], 2, 8)
		if err != nil {
			return "", fmt.Errorf("%w: %q", ErrInvalidBinary, binary)
		}
		sb.WriteString(strings.ToUpper(strconv.FormatUint(v, 16)))
	}

	return sb.String(), nil
}

// IntToHex formats num as a 4 digit upper-case hex string.
func IntToHex(num int) string {
	return fmt.Sprintf("%04X", num&0xFFFFF)
}

// HexToOutputs decodes a digital output hex string into per-output states,
// 8 outputs per byte with the most significant bit first.
func HexToOutputs(s string) ([]bool, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrInvalidHex, s)
	}

	states := make([]bool, 0, len(raw)*8)
	for _, b := range raw {
		for bit := 7; bit >= 0; bit-- {
			states = append(states, b&(1<<bit) != 0)
		}
	}

	return states, nil
}
