// Package api
// Author: momentics <momentics@gmail.com>
//
// Backend (I/O factory) contracts consumed by the tcpio adaptation layer.
// A factory performs the actual non-blocking system calls and reports
// completion; from the caller's side every method simply returns late,
// suspending the calling task rather than its worker.

package api

import "net/netip"

// IOFactory is the per-task entry point into an I/O backend.
//
// Every method returns exactly one of its results: a handle on success or
// an IOError otherwise, never both.
type IOFactory interface {
	// TCPConnect opens a TCP connection to addr.
	TCPConnect(addr netip.AddrPort) (StreamHandle, *IOError)

	// TCPBind binds a listening socket on addr.
	TCPBind(addr netip.AddrPort) (ListenerHandle, *IOError)
}

// StreamHandle is one backend connection, exclusively owned by the stream
// wrapping it.
type StreamHandle interface {
	// Read fills buf and returns the byte count. End of stream is
	// reported as an IOError of kind EndOfFile on this call and every
	// call after it, not as a short read.
	Read(buf []byte) (int, *IOError)

	// Write sends all of buf or reports why it could not.
	Write(buf []byte) *IOError

	// Close releases the connection. Calling it again is a no-op.
	Close() error
}

// ListenerHandle is one backend listening socket.
type ListenerHandle interface {
	// Accept blocks the calling task until a connection arrives.
	Accept() (StreamHandle, *IOError)

	// Addr reports the bound address, with the OS-chosen port when the
	// bind requested port 0.
	Addr() netip.AddrPort

	// Close releases the bound address. Calling it again is a no-op.
	Close() error
}
