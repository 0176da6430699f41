// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import (
	"net/netip"
	"sync"

	"github.com/eapache/queue"

	"github.com/momentics/taskio/api"
)

// Listener queues connections delivered by dialers until Accept takes
// them, in arrival order.
type Listener struct {
	f    *Factory
	addr netip.AddrPort

	mu        sync.Mutex
	wakeup    *sync.Cond
	pending   *queue.Queue // of *Stream
	acceptErr *api.IOError
	closed    bool
}

func newListener(f *Factory, addr netip.AddrPort) *Listener {
	l := &Listener{
		f:       f,
		addr:    addr,
		pending: queue.New(),
	}
	l.wakeup = sync.NewCond(&l.mu)
	return l
}

// SetAcceptError makes every Accept fail with err until reset to nil.
// Accepts already parked wake up and fail too.
func (l *Listener) SetAcceptError(err *api.IOError) {
	l.mu.Lock()
	l.acceptErr = err
	l.wakeup.Broadcast()
	l.mu.Unlock()
}

func (l *Listener) deliver(s *Stream) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return false
	}
	l.pending.Add(s)
	l.wakeup.Signal()
	return true
}

// Accept implements api.ListenerHandle. It blocks until a connection is
// pending; concurrent accepts each win at most one connection.
func (l *Listener) Accept() (api.StreamHandle, *api.IOError) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for {
		if l.acceptErr != nil {
			return nil, l.acceptErr
		}
		if l.pending.Length() > 0 {
			return l.pending.Remove().(*Stream), nil
		}
		if l.closed {
			return nil, api.NewIOError(api.OtherIOError, errClosed)
		}
		l.wakeup.Wait()
	}
}

// Addr implements api.ListenerHandle.
func (l *Listener) Addr() netip.AddrPort {
	return l.addr
}

// Close implements api.ListenerHandle. Pending, not-yet-accepted
// connections are dropped.
func (l *Listener) Close() error {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		l.wakeup.Broadcast()
		l.f.release(l.addr)
	}
	l.mu.Unlock()
	return nil
}
