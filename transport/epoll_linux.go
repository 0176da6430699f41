//go:build linux

// Package transport
// Author: momentics <momentics@gmail.com>
//
// Linux backend over raw non-blocking sockets and the epoll reactor.
// Every syscall that would block returns EAGAIN instead, and the caller
// parks on a readiness channel topped up by the reactor; the parked
// goroutine is the suspended task, the reactor thread never blocks on any
// one descriptor.

package transport

import (
	"fmt"
	"io"
	"net/netip"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/momentics/taskio/api"
	"github.com/momentics/taskio/reactor"
)

const listenBacklog = 128

// EpollFactory is an api.IOFactory doing its own non-blocking socket I/O.
type EpollFactory struct {
	r   reactor.Reactor
	log *logrus.Entry
}

// NewEpollFactory starts a reactor and returns the factory over it.
func NewEpollFactory() (*EpollFactory, error) {
	r, err := reactor.New()
	if err != nil {
		return nil, err
	}
	return &EpollFactory{
		r:   r,
		log: logrus.WithField("component", "epoll-transport"),
	}, nil
}

// Close stops the reactor. Streams and listeners created by the factory
// must be closed first.
func (f *EpollFactory) Close() error {
	return f.r.Close()
}

// TCPConnect implements api.IOFactory.
func (f *EpollFactory) TCPConnect(addr netip.AddrPort) (api.StreamHandle, *api.IOError) {
	family, sa := sockaddrOf(addr)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, wrap(os.NewSyscallError("socket", err))
	}
	p, perr := newPollFD(fd, f.r)
	if perr != nil {
		unix.Close(fd)
		return nil, api.NewIOError(api.OtherIOError, perr)
	}

	switch err := unix.Connect(fd, sa); err {
	case nil:
	case unix.EINPROGRESS:
		for {
			p.waitWrite()
			soerr, gerr := unix.GetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_ERROR)
			if gerr != nil {
				p.close()
				return nil, wrap(os.NewSyscallError("getsockopt", gerr))
			}
			if soerr != 0 {
				p.close()
				return nil, wrap(os.NewSyscallError("connect", unix.Errno(soerr)))
			}
			// SO_ERROR is also 0 while the connect is still in
			// flight; a stale pre-connect writability token can
			// get us here early. Getpeername settles it.
			if _, err := unix.Getpeername(fd); err == nil {
				break
			}
		}
	default:
		p.close()
		return nil, wrap(os.NewSyscallError("connect", err))
	}

	_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
	f.log.WithField("addr", addr).Debug("connected")
	return &epollStream{p: p}, nil
}

// TCPBind implements api.IOFactory.
func (f *EpollFactory) TCPBind(addr netip.AddrPort) (api.ListenerHandle, *api.IOError) {
	family, sa := sockaddrOf(addr)
	fd, err := unix.Socket(family, unix.SOCK_STREAM|unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC, unix.IPPROTO_TCP)
	if err != nil {
		return nil, wrap(os.NewSyscallError("socket", err))
	}
	_ = unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	if err := unix.Bind(fd, sa); err != nil {
		unix.Close(fd)
		return nil, wrap(os.NewSyscallError("bind", err))
	}
	if err := unix.Listen(fd, listenBacklog); err != nil {
		unix.Close(fd)
		return nil, wrap(os.NewSyscallError("listen", err))
	}
	p, perr := newPollFD(fd, f.r)
	if perr != nil {
		unix.Close(fd)
		return nil, api.NewIOError(api.OtherIOError, perr)
	}
	f.log.WithField("addr", addr).Debug("listening")
	return &epollListener{p: p, r: f.r}, nil
}

// pollFD couples one non-blocking descriptor with its readiness wakeups.
// Readiness channels hold one token each: the reactor callback tops them
// up, waiters drain them. A stale token only causes one spurious retry of
// the EAGAIN loop around it.
type pollFD struct {
	fd int
	r  reactor.Reactor

	readable chan struct{}
	writable chan struct{}

	closeOnce sync.Once
	closeErr  error
}

func newPollFD(fd int, r reactor.Reactor) (*pollFD, error) {
	p := &pollFD{
		fd:       fd,
		r:        r,
		readable: make(chan struct{}, 1),
		writable: make(chan struct{}, 1),
	}
	if err := r.Register(fd, p.onReady); err != nil {
		return nil, fmt.Errorf("register fd %d: %w", fd, err)
	}
	return p, nil
}

func (p *pollFD) onReady(ev reactor.EventType) {
	if ev&(reactor.EventRead|reactor.EventError) != 0 {
		select {
		case p.readable <- struct{}{}:
		default:
		}
	}
	if ev&(reactor.EventWrite|reactor.EventError) != 0 {
		select {
		case p.writable <- struct{}{}:
		default:
		}
	}
}

func (p *pollFD) waitRead()  { <-p.readable }
func (p *pollFD) waitWrite() { <-p.writable }

func (p *pollFD) close() error {
	p.closeOnce.Do(func() {
		_ = p.r.Unregister(p.fd)
		p.closeErr = unix.Close(p.fd)
	})
	return p.closeErr
}

// epollStream implements api.StreamHandle over a connected descriptor.
type epollStream struct {
	p   *pollFD
	eof bool
}

func (s *epollStream) Read(buf []byte) (int, *api.IOError) {
	if s.eof {
		return 0, api.NewIOError(api.EndOfFile, io.EOF)
	}
	if len(buf) == 0 {
		return 0, nil
	}
	for {
		n, err := unix.Read(s.p.fd, buf)
		switch {
		case err == nil && n == 0:
			s.eof = true
			return 0, api.NewIOError(api.EndOfFile, io.EOF)
		case err == nil:
			return n, nil
		case err == unix.EAGAIN:
			s.p.waitRead()
		case err == unix.EINTR:
			// retry
		default:
			return 0, wrap(os.NewSyscallError("read", err))
		}
	}
}

func (s *epollStream) Write(buf []byte) *api.IOError {
	for len(buf) > 0 {
		n, err := unix.Write(s.p.fd, buf)
		switch {
		case err == nil:
			buf = buf[n:]
		case err == unix.EAGAIN:
			s.p.waitWrite()
		case err == unix.EINTR:
			// retry
		default:
			return wrap(os.NewSyscallError("write", err))
		}
	}
	return nil
}

func (s *epollStream) Close() error {
	return s.p.close()
}

// epollListener implements api.ListenerHandle over a listening descriptor.
type epollListener struct {
	p *pollFD
	r reactor.Reactor
}

func (l *epollListener) Accept() (api.StreamHandle, *api.IOError) {
	for {
		fd, _, err := unix.Accept4(l.p.fd, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
		switch {
		case err == nil:
			_ = unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
			p, perr := newPollFD(fd, l.r)
			if perr != nil {
				unix.Close(fd)
				return nil, api.NewIOError(api.OtherIOError, perr)
			}
			return &epollStream{p: p}, nil
		case err == unix.EAGAIN:
			l.p.waitRead()
		case err == unix.EINTR, err == unix.ECONNABORTED:
			// retry
		default:
			return nil, wrap(os.NewSyscallError("accept", err))
		}
	}
}

func (l *epollListener) Addr() netip.AddrPort {
	sa, err := unix.Getsockname(l.p.fd)
	if err != nil {
		return netip.AddrPort{}
	}
	return addrPortOf(sa)
}

func (l *epollListener) Close() error {
	return l.p.close()
}

func sockaddrOf(addr netip.AddrPort) (int, unix.Sockaddr) {
	ip := addr.Addr()
	if ip.Is4() || ip.Is4In6() {
		sa := &unix.SockaddrInet4{Port: int(addr.Port())}
		a := ip.Unmap().As4()
		copy(sa.Addr[:], a[:])
		return unix.AF_INET, sa
	}
	sa := &unix.SockaddrInet6{Port: int(addr.Port())}
	a := ip.As16()
	copy(sa.Addr[:], a[:])
	return unix.AF_INET6, sa
}

func addrPortOf(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port))
	default:
		return netip.AddrPort{}
	}
}
