package message

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// MaxRecordSize bounds a single record; longer input is discarded up to the next separator.
const MaxRecordSize = 64 * 1024

// ErrRecordTooLarge is returned when a record exceeds MaxRecordSize.
var ErrRecordTooLarge = errors.New("message: record exceeds maximum size")

// Reader splits the board byte stream into records.
//
// Reader is NOT goroutine-safe. A session runs exactly one reader loop.
type Reader struct {
	br  *bufio.Reader
	buf []byte
}

// NewReader creates a Reader on top of r.
func NewReader(r io.Reader) *Reader {
	return &Reader{br: bufio.NewReaderSize(r, 4096)}
}

// ReadRecord returns the next non-empty record without its separator.
//
// It returns ErrRecordTooLarge for an oversized record, after skipping it, so
// the caller may keep reading. Any other error comes from the underlying reader.
func (r *Reader) ReadRecord() (string, error) {
	for {
		record, err := r.readRaw()
		if err != nil {
			return "", err
		}

		if strings.TrimSpace(record) == "" {
			continue
		}

		return record, nil
	}
}

// ReadMessage reads and parses the next record.
//
// On a parse error the raw record is still returned for logging, and the
// error wraps ErrUnrecognized, ErrMalformed or ErrLegacyFirmware.
func (r *Reader) ReadMessage() (Message, string, error) {
	record, err := r.ReadRecord()
	if err != nil {
		return nil, "", err
	}

	msg, err := Parse(record)
	if err != nil {
		return nil, record, fmt.Errorf("parse record: %w", err)
	}

	return msg, record, nil
}

func (r *Reader) readRaw() (string, error) {
	r.buf = r.buf[:0]
	tooLarge := false

	for {
		chunk, err := r.br.ReadSlice(RecordSeparator)
		switch {
		case err == nil:
			if tooLarge {
				return "", ErrRecordTooLarge
			}
			r.buf = append(r.buf, chunk[:len(chunk)-1]...)
			if len(r.buf) > MaxRecordSize {
				return "", ErrRecordTooLarge
			}

			return string(r.buf), nil
		case errors.Is(err, bufio.ErrBufferFull):
			if !tooLarge {
				r.buf = append(r.buf, chunk...)
				if len(r.buf) > MaxRecordSize {
					tooLarge = true
					r.buf = r.buf[:0]
				}
			}
		default:
			return "", fmt.Errorf("read record: %w", err)
		}
	}
}
