// Package reactor
// Author: momentics <momentics@gmail.com>
//
// Platform readiness reactor used by the epoll backend: watches raw
// descriptors and fans readiness out to per-descriptor callbacks.

package reactor

// EventType is a bitmask of readiness kinds delivered to a callback.
type EventType uint32

const (
	EventRead EventType = 1 << iota
	EventWrite
	EventError
)

// Callback receives readiness for one registered descriptor. Callbacks run
// on the reactor's poll goroutine and must not block.
type Callback func(ev EventType)

// Reactor watches descriptors and dispatches readiness callbacks.
type Reactor interface {
	// Register adds fd to the watch set, edge-triggered for both read
	// and write readiness.
	Register(fd int, cb Callback) error

	// Unregister removes fd from the watch set. No callback for fd runs
	// after Unregister returns.
	Unregister(fd int) error

	// Close stops the poll loop and releases the reactor's descriptors.
	Close() error
}

// New returns the platform reactor.
func New() (Reactor, error) {
	return newReactor()
}
