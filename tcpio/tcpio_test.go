package tcpio_test

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/momentics/taskio/api"
	"github.com/momentics/taskio/task"
	"github.com/momentics/taskio/tcpio"
	"github.com/momentics/taskio/transport"
)

var loopback = netip.MustParseAddrPort("127.0.0.1:0")

// bindLoopback binds a fresh listener on a loopback port chosen by the OS
// and fails the test on any bind-time condition.
func bindLoopback(t *testing.T, io *tcpio.IO) *tcpio.Listener {
	t.Helper()
	var bindErr *api.IOError
	var ln *tcpio.Listener
	io.IOError.Trap(func(e *api.IOError) { bindErr = e }).In(func() {
		ln = io.Bind(loopback)
	})
	require.Nil(t, bindErr, "bind on loopback failed")
	require.NotNil(t, ln)
	return ln
}

func TestRoundTripSingleByte(t *testing.T) {
	factory := transport.NewNetFactory()

	sio := tcpio.New(factory)
	ln := bindLoopback(t, sio)
	defer ln.Close()
	addr := ln.Addr()

	type readResult struct {
		n  int
		ok bool
		b  byte
	}
	results := make(chan readResult, 1)

	server := task.Spawn(func() {
		conn := ln.Accept()
		defer conn.Close()
		buf := make([]byte, 1)
		n, ok := conn.Read(buf)
		results <- readResult{n: n, ok: ok, b: buf[0]}
	})

	client := task.Spawn(func() {
		cio := tcpio.New(factory)
		conn := cio.Connect(addr)
		defer conn.Close()
		conn.Write([]byte{99})
	})

	require.NoError(t, server.Wait())
	require.NoError(t, client.Wait())

	got := <-results
	require.True(t, got.ok, "read reported the empty sentinel")
	require.Equal(t, 1, got.n)
	require.Equal(t, byte(99), got.b)
}

func TestReadEOFIsStickyAndSilent(t *testing.T) {
	factory := transport.NewNetFactory()

	sio := tcpio.New(factory)
	ln := bindLoopback(t, sio)
	defer ln.Close()
	addr := ln.Addr()

	type eofResult struct {
		firstOK, secondOK bool
		raised            int
	}
	results := make(chan eofResult, 1)

	server := task.Spawn(func() {
		conn := ln.Accept()
		defer conn.Close()
		var res eofResult
		buf := make([]byte, 1)
		sio.ReadError.Trap(func(e *api.IOError) { res.raised++ }).In(func() {
			_, res.firstOK = conn.Read(buf)
			_, res.secondOK = conn.Read(buf)
		})
		results <- res
	})

	client := task.Spawn(func() {
		cio := tcpio.New(factory)
		conn := cio.Connect(addr)
		conn.Close()
	})

	require.NoError(t, server.Wait())
	require.NoError(t, client.Wait())

	got := <-results
	require.False(t, got.firstOK, "first read after peer close must be empty")
	require.False(t, got.secondOK, "EOF must stay sticky on the second read")
	require.Zero(t, got.raised, "EOF must not raise a read_error condition")
}

func TestConnectRefusedRaisesOnce(t *testing.T) {
	factory := transport.NewNetFactory()
	io := tcpio.New(factory)

	// Bind then immediately release a port so nothing listens on it.
	ln := bindLoopback(t, io)
	addr := ln.Addr()
	require.NoError(t, ln.Close())

	var calls int
	var kind api.Kind
	var conn *tcpio.Stream
	io.IOError.Trap(func(e *api.IOError) {
		calls++
		kind = e.Kind
	}).In(func() {
		conn = io.Connect(addr)
	})

	require.Nil(t, conn, "failed connect must return the empty sentinel")
	require.Equal(t, 1, calls, "handler must be invoked exactly once")
	require.Equal(t, api.ConnectionRefused, kind)
}

func TestBindTakenAddressRaisesOnce(t *testing.T) {
	factory := transport.NewNetFactory()
	io := tcpio.New(factory)

	ln := bindLoopback(t, io)
	defer ln.Close()

	var calls int
	var kind api.Kind
	var second *tcpio.Listener
	io.IOError.Trap(func(e *api.IOError) {
		calls++
		kind = e.Kind
	}).In(func() {
		second = io.Bind(ln.Addr())
	})

	require.Nil(t, second, "failed bind must return the empty sentinel")
	require.Equal(t, 1, calls)
	require.Equal(t, api.AddrInUse, kind)
}

func TestWriteAfterPeerCloseRaisesResetOrPipe(t *testing.T) {
	factory := transport.NewNetFactory()

	sio := tcpio.New(factory)
	ln := bindLoopback(t, sio)
	defer ln.Close()
	addr := ln.Addr()

	server := task.Spawn(func() {
		conn := ln.Accept()
		conn.Close()
	})

	kinds := make(chan api.Kind, 1)
	client := task.Spawn(func() {
		cio := tcpio.New(factory)
		conn := cio.Connect(addr)
		defer conn.Close()

		buf := make([]byte, 4096)
		var raised *api.IOError
		for i := 0; i < 100000 && raised == nil; i++ {
			cio.IOError.Trap(func(e *api.IOError) {
				raised = e
			}).In(func() {
				conn.Write(buf)
			})
		}
		if raised != nil {
			kinds <- raised.Kind
		}
		close(kinds)
	})

	require.NoError(t, server.Wait())
	require.NoError(t, client.Wait())

	kind, ok := <-kinds
	require.True(t, ok, "writes to a closed peer never failed")
	// ECONNRESET on Linux, EPIPE elsewhere; both are acceptable.
	require.Contains(t, []api.Kind{api.ConnectionReset, api.BrokenPipe}, kind)
}

func TestMultipleConnectSerial(t *testing.T) {
	const max = 10
	factory := transport.NewNetFactory()

	sio := tcpio.New(factory)
	ln := bindLoopback(t, sio)
	defer ln.Close()
	addr := ln.Addr()

	order := make(chan byte, max)
	server := task.Spawn(func() {
		for i := 0; i < max; i++ {
			conn := ln.Accept()
			buf := make([]byte, 1)
			if n, ok := conn.Read(buf); ok && n == 1 {
				order <- buf[0]
			}
			conn.Close()
		}
		close(order)
	})

	client := task.Spawn(func() {
		cio := tcpio.New(factory)
		for i := 0; i < max; i++ {
			conn := cio.Connect(addr)
			conn.Write([]byte{byte(i)})
			conn.Close()
		}
	})

	require.NoError(t, server.Wait())
	require.NoError(t, client.Wait())

	// One task issuing connect+write serially fixes the completion
	// order, so accepts observe the bytes in sequence.
	var got []byte
	for b := range order {
		got = append(got, b)
	}
	require.Len(t, got, max)
	for i, b := range got {
		require.Equal(t, byte(i), b)
	}
}

func TestMultipleConnectInterleaved(t *testing.T) {
	const max = 10
	factory := transport.NewNetFactory()

	sio := tcpio.New(factory)
	ln := bindLoopback(t, sio)
	defer ln.Close()
	addr := ln.Addr()

	reads := make(chan byte, max)
	server := task.Spawn(func() {
		var handlers task.Group
		for i := 0; i < max; i++ {
			conn := ln.Accept()
			handlers.Spawn(func() {
				hio := tcpio.New(factory)
				conn.Transfer(hio)
				defer conn.Close()
				buf := make([]byte, 1)
				if n, ok := conn.Read(buf); ok && n == 1 {
					reads <- buf[0]
				}
			})
		}
		// A failed handler shows up as a missing byte below.
		_ = handlers.Wait()
		close(reads)
	})

	var clients task.Group
	for i := 0; i < max; i++ {
		clients.Spawn(func() {
			cio := tcpio.New(factory)
			conn := cio.Connect(addr)
			defer conn.Close()
			conn.Write([]byte{byte(i)})
		})
	}

	require.NoError(t, clients.Wait())
	require.NoError(t, server.Wait())

	// Every connection delivers exactly the byte its own writer sent:
	// the multiset of reads is 0..max-1 with no duplicates.
	seen := make(map[byte]int)
	for b := range reads {
		seen[b]++
	}
	require.Len(t, seen, max)
	for i := 0; i < max; i++ {
		require.Equal(t, 1, seen[byte(i)], "byte %d delivered wrong number of times", i)
	}
}
