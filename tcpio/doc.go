// Package tcpio
// Author: momentics <momentics@gmail.com>
//
// Blocking-style TCP streams and listeners over a pluggable non-blocking
// I/O backend. Connect, Accept, Read and Write look like ordinary blocking
// calls; each one may suspend the calling task (never its worker) until
// the backend completes the operation.
//
// Failures are not returned as error values. Every non-EOF backend failure
// is raised exactly once, at its origin call, through one of two condition
// categories on the owning IO context: IOError for connect, bind, accept
// and write failures, ReadError for read failures. A caller that traps the
// condition observes the failure and the raising call then returns its
// empty sentinel (a nil stream or listener, or a false read flag); an
// untrapped failure is fatal to the current task only. End of stream never
// raises anything: Read reports it as the empty sentinel, and keeps doing
// so on every later call.
//
// An IO context and the streams and listeners created through it belong to
// one task at a time. This layer holds no locks; callers serialize any
// concurrent access to a single stream or listener themselves. Handing a
// stream to another task between operations is legal via Transfer. There
// is no retry logic anywhere in this layer; retry policy belongs to the
// caller, trapping and looping.

package tcpio
