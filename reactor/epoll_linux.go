//go:build linux

// Package reactor - Linux epoll implementation.
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// epollReactor runs one poll goroutine over an epoll set. A self-pipe
// registered in the set wakes the loop for shutdown.
type epollReactor struct {
	epfd  int
	wakeR int
	wakeW int

	mu        sync.Mutex
	callbacks map[int]Callback

	closeOnce sync.Once
	closeErr  error
	done      chan struct{}
}

func newReactor() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	var p [2]int
	if err := unix.Pipe2(p[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("wake pipe: %w", err)
	}
	r := &epollReactor{
		epfd:      epfd,
		wakeR:     p[0],
		wakeW:     p[1],
		callbacks: make(map[int]Callback),
		done:      make(chan struct{}),
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(r.wakeR)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, r.wakeR, &ev); err != nil {
		unix.Close(r.wakeR)
		unix.Close(r.wakeW)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll ctl add wake pipe: %w", err)
	}
	go r.loop()
	return r, nil
}

// Register adds fd edge-triggered for read, write and peer-close events.
func (r *epollReactor) Register(fd int, cb Callback) error {
	r.mu.Lock()
	r.callbacks[fd] = cb
	r.mu.Unlock()

	ev := unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT | unix.EPOLLRDHUP | unix.EPOLLET,
		Fd:     int32(fd),
	}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		r.mu.Lock()
		delete(r.callbacks, fd)
		r.mu.Unlock()
		return fmt.Errorf("epoll ctl add: %w", err)
	}
	return nil
}

// Unregister removes fd from the set. Callbacks run under the reactor
// lock, so none for fd is in flight once Unregister returns.
func (r *epollReactor) Unregister(fd int) error {
	err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
	r.mu.Lock()
	delete(r.callbacks, fd)
	r.mu.Unlock()
	if err != nil {
		return fmt.Errorf("epoll ctl del: %w", err)
	}
	return nil
}

func (r *epollReactor) loop() {
	defer close(r.done)
	events := make([]unix.EpollEvent, 128)
	for {
		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return
		}
		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			if fd == r.wakeR {
				return
			}

			var t EventType
			if ev.Events&(unix.EPOLLIN|unix.EPOLLRDHUP) != 0 {
				t |= EventRead
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				t |= EventWrite
			}
			if ev.Events&(unix.EPOLLERR|unix.EPOLLHUP) != 0 {
				t |= EventError
			}

			r.mu.Lock()
			if cb := r.callbacks[fd]; cb != nil {
				cb(t)
			}
			r.mu.Unlock()
		}
	}
}

// Close wakes the poll loop via the self-pipe, waits for it to stop, then
// releases the epoll and pipe descriptors.
func (r *epollReactor) Close() error {
	r.closeOnce.Do(func() {
		if err := unix.Close(r.wakeW); err != nil {
			r.closeErr = err
		}
		<-r.done
		unix.Close(r.wakeR)
		if err := unix.Close(r.epfd); err != nil && r.closeErr == nil {
			r.closeErr = err
		}
	})
	return r.closeErr
}
