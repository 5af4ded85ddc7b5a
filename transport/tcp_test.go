package transport

import (
	"context"
	"io"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/arloliu/go-tekdaqc/logger"
)

func listenBoard(t *testing.T) (net.Listener, int) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	_, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	return ln, port
}

func TestTCP_ReadWrite(t *testing.T) {
	require := require.New(t)

	ln, port := listenBoard(t)

	accepted := make(chan net.Conn, 1)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			accepted <- conn
		}
	}()

	tr, err := NewTCP("127.0.0.1", WithPort(port), WithConnectTimeout(time.Second), WithLogger(logger.NewNopMockLogger()))
	require.NoError(err)
	require.False(tr.IsConnected())
	require.Equal("127.0.0.1:"+strconv.Itoa(port), tr.Endpoint())

	require.NoError(tr.Connect(context.Background()))
	require.True(tr.IsConnected())
	require.ErrorIs(tr.Connect(context.Background()), ErrAlreadyConnected)

	var remote net.Conn
	select {
	case remote = <-accepted:
	case <-time.After(time.Second):
		t.Fatal("connection not accepted")
	}
	defer remote.Close()

	_, err = tr.Write([]byte("IDENTIFY\r"))
	require.NoError(err)

	buf := make([]byte, 9)
	_, err = io.ReadFull(remote, buf)
	require.NoError(err)
	require.Equal("IDENTIFY\r", string(buf))

	_, err = remote.Write([]byte("Status Message\x1e"))
	require.NoError(err)

	buf = make([]byte, 15)
	_, err = io.ReadFull(tr, buf)
	require.NoError(err)
	require.Equal("Status Message\x1e", string(buf))
}

func TestTCP_DisconnectUnblocksRead(t *testing.T) {
	require := require.New(t)

	ln, port := listenBoard(t)
	go func() {
		conn, err := ln.Accept()
		if err == nil {
			defer conn.Close()
			time.Sleep(time.Second)
		}
	}()

	tr, err := NewTCP("127.0.0.1", WithPort(port), WithLogger(logger.NewNopMockLogger()))
	require.NoError(err)
	require.NoError(tr.Connect(context.Background()))

	readErr := make(chan error, 1)
	go func() {
		_, err := tr.Read(make([]byte, 16))
		readErr <- err
	}()

	time.Sleep(20 * time.Millisecond)
	require.NoError(tr.Disconnect())
	require.NoError(tr.Disconnect())
	require.False(tr.IsConnected())

	select {
	case err := <-readErr:
		require.Error(err)
	case <-time.After(time.Second):
		t.Fatal("read not unblocked by disconnect")
	}

	_, err = tr.Write([]byte("HALT\r"))
	require.ErrorIs(err, ErrNotConnected)
	_, err = tr.Read(make([]byte, 1))
	require.ErrorIs(err, ErrNotConnected)
}

func TestTCP_ConnectRefused(t *testing.T) {
	ln, port := listenBoard(t)
	require.NoError(t, ln.Close())

	tr, err := NewTCP("127.0.0.1", WithPort(port), WithConnectTimeout(200*time.Millisecond), WithLogger(logger.NewNopMockLogger()))
	require.NoError(t, err)
	require.Error(t, tr.Connect(context.Background()))
	require.False(t, tr.IsConnected())
}

func TestNewConfig_Validation(t *testing.T) {
	cfg, err := NewConfig()
	require.NoError(t, err)
	require.Equal(t, DefaultPort, cfg.Port())
	require.Equal(t, DefaultConnectTimeout, cfg.ConnectTimeout())
	require.Equal(t, DefaultBaud, cfg.Baud())

	for _, opt := range []Option{
		WithPort(0),
		WithPort(70000),
		WithBaud(0),
		WithConnectTimeout(time.Nanosecond),
		WithWriteTimeout(time.Hour),
		WithKeepAlive(0),
		WithLogger(nil),
	} {
		_, err := NewConfig(opt)
		require.Error(t, err)
	}

	_, err = NewTCP("")
	require.Error(t, err)
}

func TestSerial_OpenMissingDevice(t *testing.T) {
	_, err := NewSerial("")
	require.Error(t, err)

	s, err := NewSerial("/dev/tekdaqc-does-not-exist", WithBaud(9600), WithLogger(logger.NewNopMockLogger()))
	require.NoError(t, err)
	require.Equal(t, "/dev/tekdaqc-does-not-exist", s.Endpoint())
	require.Error(t, s.Connect(context.Background()))
	require.False(t, s.IsConnected())
	require.NoError(t, s.Disconnect())

	_, err = s.Write([]byte("HALT\r"))
	require.ErrorIs(t, err, ErrNotConnected)
}
