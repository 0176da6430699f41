// Package transport
// Author: momentics <momentics@gmail.com>
//
// Portable backend over the net package.

package transport

import (
	"io"
	"net"
	"net/netip"
	"sync"

	"github.com/momentics/taskio/api"
)

type netFactory struct{}

// NewNetFactory returns the default backend, implemented over the net
// package. It is stateless and may back any number of IO contexts.
func NewNetFactory() api.IOFactory {
	return netFactory{}
}

// TCPConnect implements api.IOFactory.
func (netFactory) TCPConnect(addr netip.AddrPort) (api.StreamHandle, *api.IOError) {
	conn, err := net.DialTCP("tcp", nil, net.TCPAddrFromAddrPort(addr))
	if err != nil {
		return nil, wrap(err)
	}
	return &netStream{conn: conn}, nil
}

// TCPBind implements api.IOFactory.
func (netFactory) TCPBind(addr netip.AddrPort) (api.ListenerHandle, *api.IOError) {
	ln, err := net.ListenTCP("tcp", net.TCPAddrFromAddrPort(addr))
	if err != nil {
		return nil, wrap(err)
	}
	return &netListener{ln: ln}, nil
}

// netStream adapts a *net.TCPConn to the StreamHandle contract.
type netStream struct {
	conn *net.TCPConn
	eof  bool

	closeOnce sync.Once
	closeErr  error
}

// Read reports end of stream as kind EndOfFile and keeps reporting it on
// every later call, regardless of what the connection object would say
// once closed.
func (s *netStream) Read(buf []byte) (int, *api.IOError) {
	if s.eof {
		return 0, api.NewIOError(api.EndOfFile, io.EOF)
	}
	n, err := s.conn.Read(buf)
	if n > 0 {
		// Deliver the bytes now; a trailing EOF resurfaces on the
		// next call.
		return n, nil
	}
	if err != nil {
		ioerr := wrap(err)
		if ioerr.Kind == api.EndOfFile {
			s.eof = true
		}
		return 0, ioerr
	}
	return 0, nil
}

func (s *netStream) Write(buf []byte) *api.IOError {
	if _, err := s.conn.Write(buf); err != nil {
		return wrap(err)
	}
	return nil
}

func (s *netStream) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.conn.Close()
	})
	return s.closeErr
}

// netListener adapts a *net.TCPListener to the ListenerHandle contract.
type netListener struct {
	ln *net.TCPListener

	closeOnce sync.Once
	closeErr  error
}

func (l *netListener) Accept() (api.StreamHandle, *api.IOError) {
	conn, err := l.ln.AcceptTCP()
	if err != nil {
		return nil, wrap(err)
	}
	return &netStream{conn: conn}, nil
}

func (l *netListener) Addr() netip.AddrPort {
	return l.ln.Addr().(*net.TCPAddr).AddrPort()
}

func (l *netListener) Close() error {
	l.closeOnce.Do(func() {
		l.closeErr = l.ln.Close()
	})
	return l.closeErr
}
