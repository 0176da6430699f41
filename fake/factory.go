// Package fake
// Author: momentics <momentics@gmail.com>
//
// Controllable in-memory backend for tests and development. Failures are
// scripted with SetXxxError injectors, so error-kind behavior can be
// exercised without privileged ports or a peer that misbehaves on cue.

package fake

import (
	"errors"
	"net/netip"
	"sync"

	"github.com/momentics/taskio/api"
)

var (
	errRefused = errors.New("no listener at address")
	errInUse   = errors.New("address already bound")
	errClosed  = errors.New("listener closed")
)

// Factory is an in-memory api.IOFactory. Connections are delivered to
// listeners registered under the exact address the dialer used.
type Factory struct {
	mu         sync.Mutex
	listeners  map[netip.AddrPort]*Listener
	connectErr *api.IOError
	bindErr    *api.IOError
	nextPort   uint16
}

// NewFactory returns an empty in-memory backend.
func NewFactory() *Factory {
	return &Factory{
		listeners: make(map[netip.AddrPort]*Listener),
		nextPort:  40000,
	}
}

// SetConnectError makes every TCPConnect fail with err until reset to nil.
func (f *Factory) SetConnectError(err *api.IOError) {
	f.mu.Lock()
	f.connectErr = err
	f.mu.Unlock()
}

// SetBindError makes every TCPBind fail with err until reset to nil.
func (f *Factory) SetBindError(err *api.IOError) {
	f.mu.Lock()
	f.bindErr = err
	f.mu.Unlock()
}

// Listener returns the listener bound at addr, or nil. Lets tests reach
// injectors on a listener created behind the tcpio layer.
func (f *Factory) Listener(addr netip.AddrPort) *Listener {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.listeners[addr]
}

// TCPConnect implements api.IOFactory. Dialing an address nobody listens
// on reports ConnectionRefused, like the real thing.
func (f *Factory) TCPConnect(addr netip.AddrPort) (api.StreamHandle, *api.IOError) {
	f.mu.Lock()
	if f.connectErr != nil {
		err := f.connectErr
		f.mu.Unlock()
		return nil, err
	}
	l := f.listeners[addr]
	f.mu.Unlock()

	if l == nil {
		return nil, api.NewIOError(api.ConnectionRefused, errRefused)
	}
	local, remote := newPair()
	if !l.deliver(remote) {
		return nil, api.NewIOError(api.ConnectionRefused, errRefused)
	}
	return local, nil
}

// TCPBind implements api.IOFactory. Binding port 0 allocates a fresh fake
// port; binding a taken address reports AddrInUse.
func (f *Factory) TCPBind(addr netip.AddrPort) (api.ListenerHandle, *api.IOError) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.bindErr != nil {
		return nil, f.bindErr
	}
	if addr.Port() == 0 {
		addr = netip.AddrPortFrom(addr.Addr(), f.nextPort)
		f.nextPort++
	}
	if _, taken := f.listeners[addr]; taken {
		return nil, api.NewIOError(api.AddrInUse, errInUse)
	}
	l := newListener(f, addr)
	f.listeners[addr] = l
	return l, nil
}

func (f *Factory) release(addr netip.AddrPort) {
	f.mu.Lock()
	delete(f.listeners, addr)
	f.mu.Unlock()
}
