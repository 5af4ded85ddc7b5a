package message

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReader_ReadRecord(t *testing.T) {
	require := require.New(t)

	stream := "?A0\r\n1,2\x1e\x1e\r\n\x1eStatus Message\r\nMessage: SUCCESS\r\n\x1epartial"
	r := NewReader(strings.NewReader(stream))

	rec, err := r.ReadRecord()
	require.NoError(err)
	require.Equal("?A0\r\n1,2", rec)

	rec, err = r.ReadRecord()
	require.NoError(err)
	require.Equal("Status Message\r\nMessage: SUCCESS\r\n", rec)

	_, err = r.ReadRecord()
	require.ErrorIs(err, io.EOF)
}

func TestReader_ReadMessage(t *testing.T) {
	require := require.New(t)

	r := NewReader(strings.NewReader("bogus\x1e?D3\r\n10,H\x1e"))

	msg, raw, err := r.ReadMessage()
	require.ErrorIs(err, ErrUnrecognized)
	require.Nil(msg)
	require.Equal("bogus", raw)

	msg, _, err = r.ReadMessage()
	require.NoError(err)
	require.Equal(KindDigitalData, msg.Kind())
}

func TestReader_RecordTooLarge(t *testing.T) {
	require := require.New(t)

	var buf bytes.Buffer
	buf.WriteString(strings.Repeat("x", MaxRecordSize+10))
	buf.WriteByte(RecordSeparator)
	buf.WriteString("Status Message\r\nMessage: SUCCESS\r\n")
	buf.WriteByte(RecordSeparator)

	r := NewReader(&buf)
	_, err := r.ReadRecord()
	require.True(errors.Is(err, ErrRecordTooLarge))

	rec, err := r.ReadRecord()
	require.NoError(err)
	require.Contains(rec, "SUCCESS")
}
