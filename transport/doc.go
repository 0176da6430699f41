// Package transport
// Author: momentics <momentics@gmail.com>
//
// Backend implementations of the api.IOFactory contract.
//
// NewNetFactory is the portable default, built on the net package: each
// call blocks its goroutine, which under the Go scheduler is exactly the
// suspend-the-task-not-the-worker behavior the tcpio layer assumes.
//
// NewEpollFactory (Linux only) performs its own non-blocking socket calls
// and parks callers on epoll readiness instead of kernel blocking.

package transport
