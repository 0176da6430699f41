// Package api
// Author: momentics <momentics@gmail.com>
//
// Kind-tagged I/O error values shared between backends and the tcpio layer.

package api

import "fmt"

// Kind classifies a backend failure into a portable category. The set is
// open ended: backends may only produce kinds listed here, folding anything
// unrecognized into OtherIOError.
type Kind int

const (
	// OtherIOError covers backend failures with no portable category.
	OtherIOError Kind = iota

	// EndOfFile marks ordinary end of stream. It is never raised as a
	// condition; the tcpio layer converts it into the empty read result.
	EndOfFile

	PermissionDenied
	ConnectionRefused
	ConnectionReset
	BrokenPipe
	AddrInUse
	NotConnected
)

var kindNames = map[Kind]string{
	OtherIOError:      "other I/O error",
	EndOfFile:         "end of file",
	PermissionDenied:  "permission denied",
	ConnectionRefused: "connection refused",
	ConnectionReset:   "connection reset",
	BrokenPipe:        "broken pipe",
	AddrInUse:         "address in use",
	NotConnected:      "not connected",
}

// String implements fmt.Stringer.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// IOError is a backend failure tagged with its Kind. The adaptation layer
// never stores one: each IOError is either consumed by a condition handler
// or dropped when the raising call returns its empty sentinel.
type IOError struct {
	Kind Kind
	Err  error // backend-specific detail, may be nil
}

// NewIOError wraps err under the given kind.
func NewIOError(kind Kind, err error) *IOError {
	return &IOError{Kind: kind, Err: err}
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.Err == nil {
		return e.Kind.String()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the backend detail to errors.Is/As chains.
func (e *IOError) Unwrap() error { return e.Err }
