// Package cond
// Author: momentics <momentics@gmail.com>
//
// Resumable error signaling for the tcpio layer. A condition is raised by
// the producer at the point of failure and observed, if at all, by whatever
// handler the caller installed around the enclosing region; with no handler
// installed a raise is fatal to the current task.
//
// The dynamic scoping of the classic condition system is rendered as an
// explicit handler stack owned by a single task: Trap stages a handler, In
// installs it for the extent of a body, and nested regions shadow outer
// ones the way nested scopes would. Nothing here is safe for concurrent
// use; a Condition belongs to one task at a time.

package cond

import (
	"fmt"

	"github.com/momentics/taskio/api"
)

// Handler observes a raised IOError. Returning normally resumes the raising
// call, which then yields its empty sentinel; handlers do recovery
// bookkeeping, they do not manufacture results.
type Handler func(err *api.IOError)

// Condition is one named signal category, e.g. "io_error".
type Condition struct {
	name     string
	handlers []Handler
}

// New returns a named condition with no handlers installed.
func New(name string) *Condition {
	return &Condition{name: name}
}

// Name returns the category name.
func (c *Condition) Name() string { return c.name }

// Trapped is a handler staged by Trap, waiting for its region.
type Trapped struct {
	c *Condition
	h Handler
}

// Trap stages h for installation; it becomes active only inside the body
// passed to In.
func (c *Condition) Trap(h Handler) Trapped {
	return Trapped{c: c, h: h}
}

// In runs body with the staged handler installed innermost. The handler is
// removed on every exit path, including an unwind out of body.
func (t Trapped) In(body func()) {
	t.c.handlers = append(t.c.handlers, t.h)
	defer func() {
		t.c.handlers = t.c.handlers[:len(t.c.handlers)-1]
	}()
	body()
}

// Raise delivers err to the innermost installed handler and returns,
// letting the raising call produce its sentinel. The handler runs with
// itself uninstalled, so a raise from inside a handler reaches the next
// one out. With no handler installed, Raise panics with *Unhandled; the
// task runtime recovers it at the task boundary, so the failure terminates
// the current task only.
func (c *Condition) Raise(err *api.IOError) {
	n := len(c.handlers)
	if n == 0 {
		panic(&Unhandled{Cond: c.name, Err: err})
	}
	h := c.handlers[n-1]
	c.handlers = c.handlers[:n-1]
	defer func() {
		c.handlers = append(c.handlers, h)
	}()
	h(err)
}

// Unhandled is the panic value carried out of a Raise that found no
// handler.
type Unhandled struct {
	Cond string
	Err  *api.IOError
}

// Error implements the error interface.
func (u *Unhandled) Error() string {
	return fmt.Sprintf("unhandled %s condition: %v", u.Cond, u.Err)
}

// Unwrap exposes the raised IOError.
func (u *Unhandled) Unwrap() error { return u.Err }
