// Package transport
// Author: momentics <momentics@gmail.com>
//
// Mapping of OS-level errors onto portable api.Kind categories.

package transport

import (
	"errors"
	"io"
	"syscall"

	"github.com/momentics/taskio/api"
)

// classify maps an OS-level error to its portable kind. Anything without a
// portable category folds into OtherIOError.
func classify(err error) api.Kind {
	switch {
	case errors.Is(err, io.EOF):
		return api.EndOfFile
	case errors.Is(err, syscall.ECONNREFUSED):
		return api.ConnectionRefused
	case errors.Is(err, syscall.ECONNRESET):
		return api.ConnectionReset
	case errors.Is(err, syscall.EPIPE):
		return api.BrokenPipe
	case errors.Is(err, syscall.EACCES), errors.Is(err, syscall.EPERM):
		return api.PermissionDenied
	case errors.Is(err, syscall.EADDRINUSE):
		return api.AddrInUse
	case errors.Is(err, syscall.ENOTCONN):
		return api.NotConnected
	default:
		return api.OtherIOError
	}
}

// wrap tags err with its classified kind.
func wrap(err error) *api.IOError {
	return api.NewIOError(classify(err), err)
}
