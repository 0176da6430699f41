// Package tcpio
// Author: momentics <momentics@gmail.com>

package tcpio

import (
	"net/netip"

	"github.com/momentics/taskio/api"
)

// Listener is a bound TCP listening socket owning exactly one backend
// handle. It produces fresh, independently owned Streams; the listener
// itself never becomes one.
type Listener struct {
	io *IO
	h  api.ListenerHandle
}

// Accept suspends the calling task until a connection arrives and wraps it
// in a fresh Stream bound to this listener's IO context. Failure raises
// the IOError condition and returns nil. Accept may be called repeatedly
// to serve connections serially, or from several tasks at once if the
// backend supports it; each connection is delivered to exactly one winning
// call, and this layer imposes no mutual exclusion of its own.
func (l *Listener) Accept() *Stream {
	h, ioerr := l.h.Accept()
	if ioerr != nil {
		l.io.log.WithError(ioerr).Debug("accept failed")
		l.io.IOError.Raise(ioerr)
		return nil
	}
	return newStream(l.io, h)
}

// Addr reports the bound address; after binding port 0 it carries the
// OS-chosen port.
func (l *Listener) Addr() netip.AddrPort {
	return l.h.Addr()
}

// Close releases the bound address. Safe to call more than once.
func (l *Listener) Close() error {
	return l.h.Close()
}
