package transport

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/taskio/api"
)

func TestClassifyKnownKinds(t *testing.T) {
	cases := []struct {
		err  error
		want api.Kind
	}{
		{io.EOF, api.EndOfFile},
		{os.NewSyscallError("connect", syscall.ECONNREFUSED), api.ConnectionRefused},
		{os.NewSyscallError("read", syscall.ECONNRESET), api.ConnectionReset},
		{os.NewSyscallError("write", syscall.EPIPE), api.BrokenPipe},
		{os.NewSyscallError("bind", syscall.EACCES), api.PermissionDenied},
		{os.NewSyscallError("bind", syscall.EPERM), api.PermissionDenied},
		{os.NewSyscallError("bind", syscall.EADDRINUSE), api.AddrInUse},
		{os.NewSyscallError("send", syscall.ENOTCONN), api.NotConnected},
		{fmt.Errorf("wrapped: %w", syscall.ECONNRESET), api.ConnectionReset},
		{fmt.Errorf("no category"), api.OtherIOError},
	}
	for _, c := range cases {
		if got := classify(c.err); got != c.want {
			t.Errorf("classify(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

func TestNetFactoryRoundTrip(t *testing.T) {
	f := NewNetFactory()

	ln, ioerr := f.TCPBind(netip.MustParseAddrPort("127.0.0.1:0"))
	require.Nil(t, ioerr)
	defer ln.Close()
	require.NotZero(t, ln.Addr().Port(), "bind on port 0 must report the OS-chosen port")

	done := make(chan *api.IOError, 1)
	go func() {
		peer, aerr := ln.Accept()
		if aerr != nil {
			done <- aerr
			return
		}
		defer peer.Close()
		buf := make([]byte, 16)
		n, rerr := peer.Read(buf)
		if rerr != nil {
			done <- rerr
			return
		}
		done <- peer.Write(buf[:n])
	}()

	conn, ioerr := f.TCPConnect(ln.Addr())
	require.Nil(t, ioerr)
	defer conn.Close()

	require.Nil(t, conn.Write([]byte("ping")))
	buf := make([]byte, 16)
	n, rerr := conn.Read(buf)
	require.Nil(t, rerr)
	require.Equal(t, "ping", string(buf[:n]))

	require.Nil(t, <-done)

	// Peer closed after echoing; EOF now, and again after that.
	for i := 0; i < 2; i++ {
		n, rerr = conn.Read(buf)
		require.Zero(t, n)
		require.NotNil(t, rerr)
		require.Equal(t, api.EndOfFile, rerr.Kind)
	}
}

func TestNetFactoryConnectRefusedKind(t *testing.T) {
	f := NewNetFactory()

	ln, ioerr := f.TCPBind(netip.MustParseAddrPort("127.0.0.1:0"))
	require.Nil(t, ioerr)
	addr := ln.Addr()
	require.NoError(t, ln.Close())

	conn, ioerr := f.TCPConnect(addr)
	require.Nil(t, conn)
	require.NotNil(t, ioerr)
	require.Equal(t, api.ConnectionRefused, ioerr.Kind)
}

func TestNetFactoryBindInUseKind(t *testing.T) {
	f := NewNetFactory()

	ln, ioerr := f.TCPBind(netip.MustParseAddrPort("127.0.0.1:0"))
	require.Nil(t, ioerr)
	defer ln.Close()

	second, ioerr := f.TCPBind(ln.Addr())
	require.Nil(t, second)
	require.NotNil(t, ioerr)
	require.Equal(t, api.AddrInUse, ioerr.Kind)
}

func TestNetListenerCloseIdempotent(t *testing.T) {
	f := NewNetFactory()
	ln, ioerr := f.TCPBind(netip.MustParseAddrPort("127.0.0.1:0"))
	require.Nil(t, ioerr)
	require.NoError(t, ln.Close())
	require.NoError(t, ln.Close())
}
