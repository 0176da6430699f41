//go:build !linux

// Package reactor - stub for platforms without an implementation.
// Author: momentics <momentics@gmail.com>

package reactor

import "errors"

func newReactor() (Reactor, error) {
	return nil, errors.New("reactor: not implemented on this platform")
}
