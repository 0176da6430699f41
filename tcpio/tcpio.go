// Package tcpio
// Author: momentics <momentics@gmail.com>
//
// Per-task IO context: pairs the task's backend factory with the ambient
// condition categories callers may trap.

package tcpio

import (
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/momentics/taskio/api"
	"github.com/momentics/taskio/cond"
)

// IO is the per-task context through which streams and listeners are
// created. Replaces the ambient "current backend" lookup of the classic
// design: the factory is bound once, at construction, and passed by
// reference wherever the task does I/O.
type IO struct {
	factory api.IOFactory

	// IOError is raised by Connect, Bind, Accept and Write failures.
	IOError *cond.Condition
	// ReadError is raised by Read failures other than end of stream.
	ReadError *cond.Condition

	log *logrus.Entry
}

// New builds an IO context over factory. The context, its conditions and
// everything created through it belong to one task at a time.
func New(factory api.IOFactory) *IO {
	return &IO{
		factory:   factory,
		IOError:   cond.New("io_error"),
		ReadError: cond.New("read_error"),
		log:       logrus.WithField("component", "tcpio"),
	}
}

// Connect opens a TCP connection to addr, suspending the calling task
// until the backend completes. On success the returned stream owns the new
// connection. On failure the IOError condition is raised with the backend
// error and Connect returns nil; a handler that returns normally does not
// substitute a connection.
func (io *IO) Connect(addr netip.AddrPort) *Stream {
	io.log.WithField("addr", addr).Debug("connecting")
	h, ioerr := io.factory.TCPConnect(addr)
	if ioerr != nil {
		io.log.WithField("addr", addr).WithError(ioerr).Debug("connect failed")
		io.IOError.Raise(ioerr)
		return nil
	}
	return newStream(io, h)
}

// Bind opens a listening socket on addr. On failure the IOError condition
// is raised with the backend error and Bind returns nil.
func (io *IO) Bind(addr netip.AddrPort) *Listener {
	io.log.WithField("addr", addr).Debug("binding")
	h, ioerr := io.factory.TCPBind(addr)
	if ioerr != nil {
		io.log.WithField("addr", addr).WithError(ioerr).Debug("bind failed")
		io.IOError.Raise(ioerr)
		return nil
	}
	return &Listener{io: io, h: h}
}
