package message

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/arloliu/go-tekdaqc/board"
)

// RecordSeparator terminates every record sent by the board.
const RecordSeparator byte = 0x1E

const (
	analogHeader        = "?A"
	digitalHeader       = "?D"
	pwmHeader           = "?P"
	legacyAnalogHeader  = "Analog Input"
	legacyDigitalHeader = "Digital Input"
	digitalOutputHeader = "Digital Output"
	debugHeader         = "Debug Message"
	statusHeader        = "Status Message"
	errorHeader         = "Error Message"
	commandHeader       = "Command Data Message"

	networkErrorFlag = "[NETWORK]"
	messageTag       = "Message: "
	valueTag         = "Value: "
	highMarker       = "H"
)

var (
	// ErrUnrecognized is returned for records without a known header.
	ErrUnrecognized = errors.New("message: unrecognized record")
	// ErrMalformed is returned when a recognized record cannot be decoded.
	ErrMalformed = errors.New("message: malformed record")
	// ErrLegacyFirmware is returned for data records of the version 1 firmware format.
	ErrLegacyFirmware = errors.New("message: legacy firmware data format, update the board firmware")
)

// Parse decodes a single record, without its record separator, into a Message.
func Parse(record string) (Message, error) {
	switch {
	case strings.Contains(record, debugHeader):
		return parseText(KindDebug, record), nil
	case strings.Contains(record, statusHeader):
		return parseText(KindStatus, record), nil
	case strings.Contains(record, errorHeader):
		m := parseText(KindError, record)
		m.network = strings.Contains(record, networkErrorFlag)
		return m, nil
	case strings.Contains(record, commandHeader):
		return parseText(KindCommandData, record), nil
	case strings.Contains(record, analogHeader):
		return parseAnalog(record)
	case strings.Contains(record, legacyAnalogHeader):
		return nil, ErrLegacyFirmware
	case strings.Contains(record, digitalHeader):
		return parseDigital(record)
	case strings.Contains(record, legacyDigitalHeader):
		return nil, ErrLegacyFirmware
	case strings.Contains(record, digitalOutputHeader):
		return parseDigitalOutput(record)
	case strings.Contains(record, pwmHeader):
		return parsePWM(record)
	default:
		return nil, ErrUnrecognized
	}
}

// parseText extracts the text following "Message: " up to the end of that line.
// A record without the tag keeps its whole trimmed content as text.
func parseText(kind Kind, record string) *TextMessage {
	m := &TextMessage{kind: kind, raw: record}

	start := strings.Index(record, messageTag)
	if start < 0 {
		m.text = strings.TrimSpace(record)
		return m
	}

	text := record[start+len(messageTag):]
	if end := strings.IndexByte(text, '\n'); end >= 0 {
		text = text[:end]
	}
	m.text = strings.TrimSuffix(text, "\r")

	return m
}

// dataFields splits "<header><ch>\r\n<body>" into the channel and the body.
func dataFields(record, header string) (int, string, error) {
	start := strings.Index(record, header)
	rest := record[start+len(header):]

	end := strings.IndexByte(rest, '\n')
	if end < 0 {
		return 0, "", fmt.Errorf("%w: missing newline in %q", ErrMalformed, record)
	}

	ch, err := strconv.Atoi(strings.TrimSpace(rest[:end]))
	if err != nil {
		return 0, "", fmt.Errorf("%w: channel in %q", ErrMalformed, record)
	}

	return ch, rest[end+1:], nil
}

func parseTimestamp(s string) (int64, error) {
	ts, err := strconv.ParseInt(strings.Join(strings.Fields(s), ""), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: timestamp %q", ErrMalformed, s)
	}

	return ts, nil
}

func parseAnalog(record string) (*AnalogInputData, error) {
	ch, body, err := dataFields(record, analogHeader)
	if err != nil {
		return nil, err
	}

	tsStr, countStr, ok := strings.Cut(body, ",")
	if !ok {
		return nil, fmt.Errorf("%w: analog reading %q", ErrMalformed, record)
	}

	ts, err := parseTimestamp(tsStr)
	if err != nil {
		return nil, err
	}

	count, err := strconv.ParseInt(strings.TrimSpace(countStr), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("%w: analog count %q", ErrMalformed, countStr)
	}

	return &AnalogInputData{Channel: ch, Timestamp: ts, Count: int32(count), raw: record}, nil
}

func parseDigital(record string) (*DigitalInputData, error) {
	ch, body, err := dataFields(record, digitalHeader)
	if err != nil {
		return nil, err
	}

	tsStr, state, ok := strings.Cut(body, ",")
	if !ok {
		return nil, fmt.Errorf("%w: digital reading %q", ErrMalformed, record)
	}

	ts, err := parseTimestamp(tsStr)
	if err != nil {
		return nil, err
	}

	return &DigitalInputData{
		Channel:   ch,
		Timestamp: ts,
		State:     strings.Contains(state, highMarker),
		raw:       record,
	}, nil
}

// parsePWM decodes "?P<ch>\r\n<transitions>,<percent>\n<timestamp>".
func parsePWM(record string) (*PWMInputData, error) {
	ch, body, err := dataFields(record, pwmHeader)
	if err != nil {
		return nil, err
	}

	line, tsStr, ok := strings.Cut(body, "\n")
	if !ok {
		return nil, fmt.Errorf("%w: pwm timestamp %q", ErrMalformed, record)
	}

	transStr, pctStr, ok := strings.Cut(line, ",")
	if !ok {
		return nil, fmt.Errorf("%w: pwm reading %q", ErrMalformed, record)
	}

	transitions, err := strconv.Atoi(strings.TrimSpace(transStr))
	if err != nil {
		return nil, fmt.Errorf("%w: pwm transitions %q", ErrMalformed, transStr)
	}

	pct, err := strconv.ParseFloat(strings.TrimSpace(pctStr), 64)
	if err != nil {
		return nil, fmt.Errorf("%w: pwm percentage %q", ErrMalformed, pctStr)
	}

	ts, err := parseTimestamp(tsStr)
	if err != nil {
		return nil, err
	}

	return &PWMInputData{Channel: ch, Timestamp: ts, Transitions: transitions, Percentage: pct, raw: record}, nil
}

func parseDigitalOutput(record string) (*DigitalOutputData, error) {
	start := strings.Index(record, valueTag)
	if start < 0 {
		return nil, fmt.Errorf("%w: digital output value %q", ErrMalformed, record)
	}

	hex := record[start+len(valueTag):]
	if end := strings.IndexByte(hex, '\n'); end >= 0 {
		hex = hex[:end]
	}

	states, err := board.HexToOutputs(strings.TrimSpace(hex))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}

	outputs := make([]bool, board.RevDDigitalOutputCount)
	copy(outputs, states)

	return &DigitalOutputData{Outputs: outputs, raw: record}, nil
}
