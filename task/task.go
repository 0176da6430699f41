// Package task
// Author: momentics <momentics@gmail.com>
//
// Thin task runtime assumed by the tcpio layer: goroutine-backed tasks
// whose failures stay their own. An unhandled condition terminates the
// raising task; sibling tasks and the process continue. Deferred cleanup
// inside a task body runs before the failure is captured, so owned
// streams and listeners are released on every exit path.

package task

import (
	"fmt"
	"runtime/debug"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/momentics/taskio/cond"
)

// Task is one spawned unit of execution.
type Task struct {
	done chan struct{}
	err  error
}

// Spawn runs fn on its own task and returns immediately.
func Spawn(fn func()) *Task {
	t := &Task{done: make(chan struct{})}
	go func() {
		defer close(t.done)
		t.err = run(fn)
	}()
	return t
}

// Wait blocks until the task finishes and returns its failure, if any. An
// unhandled condition surfaces as the *cond.Unhandled that killed the
// task; any other panic surfaces as a *Panicked carrying the stack.
func (t *Task) Wait() error {
	<-t.done
	return t.err
}

// Group runs a set of tasks and collects the first failure.
type Group struct {
	g errgroup.Group
}

// Spawn adds fn to the group.
func (g *Group) Spawn(fn func()) {
	g.g.Go(func() error {
		return run(fn)
	})
}

// Wait blocks until every spawned task has finished and returns the first
// failure observed, if any.
func (g *Group) Wait() error {
	return g.g.Wait()
}

// Panicked is the failure recorded for a task that panicked with something
// other than an unhandled condition.
type Panicked struct {
	Value any
	Stack []byte
}

// Error implements the error interface.
func (p *Panicked) Error() string {
	return fmt.Sprintf("task panic: %v", p.Value)
}

func run(fn func()) (err error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		if u, ok := v.(*cond.Unhandled); ok {
			logrus.WithError(u).Warn("task terminated by unhandled condition")
			err = u
			return
		}
		p := &Panicked{Value: v, Stack: debug.Stack()}
		logrus.WithField("panic", v).Warn("task terminated by panic")
		err = p
	}()
	fn()
	return nil
}
