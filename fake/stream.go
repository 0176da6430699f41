// Package fake
// Author: momentics <momentics@gmail.com>

package fake

import (
	"errors"
	"io"
	"sync"

	"github.com/momentics/taskio/api"
)

var (
	errPipe  = errors.New("peer endpoint closed")
	errReset = errors.New("connection reset by fake peer")
)

// Stream is one endpoint of an in-memory connection pair.
type Stream struct {
	in  *pipe // bytes the peer wrote to us
	out *pipe // bytes we write to the peer

	mu       sync.Mutex
	readErr  *api.IOError
	writeErr *api.IOError
}

// newPair builds two connected endpoints sharing a pipe per direction.
func newPair() (*Stream, *Stream) {
	ab, ba := newPipe(), newPipe()
	a := &Stream{in: ba, out: ab}
	b := &Stream{in: ab, out: ba}
	return a, b
}

// SetReadError makes every Read fail with err until reset to nil.
func (s *Stream) SetReadError(err *api.IOError) {
	s.mu.Lock()
	s.readErr = err
	s.mu.Unlock()
}

// SetWriteError makes every Write fail with err until reset to nil.
func (s *Stream) SetWriteError(err *api.IOError) {
	s.mu.Lock()
	s.writeErr = err
	s.mu.Unlock()
}

// Reset marks both directions failed with ConnectionReset, as an aborted
// peer would. The other endpoint sees the reset on its next Read or Write.
func (s *Stream) Reset() {
	reset := api.NewIOError(api.ConnectionReset, errReset)
	s.in.fail(reset)
	s.out.fail(reset)
}

// Read implements api.StreamHandle. Once the peer closes and the buffered
// bytes drain, every call reports EndOfFile.
func (s *Stream) Read(buf []byte) (int, *api.IOError) {
	s.mu.Lock()
	injected := s.readErr
	s.mu.Unlock()
	if injected != nil {
		return 0, injected
	}
	return s.in.read(buf)
}

// Write implements api.StreamHandle. Writing after the peer closed its
// endpoint reports BrokenPipe.
func (s *Stream) Write(buf []byte) *api.IOError {
	s.mu.Lock()
	injected := s.writeErr
	s.mu.Unlock()
	if injected != nil {
		return injected
	}
	return s.out.write(buf)
}

// Close implements api.StreamHandle. It ends the peer's reads with EOF
// once drained, and its writes with BrokenPipe.
func (s *Stream) Close() error {
	s.in.close()
	s.out.close()
	return nil
}

// pipe is one buffered direction of a fake connection.
type pipe struct {
	mu     sync.Mutex
	wakeup *sync.Cond
	buf    []byte
	closed bool
	broken *api.IOError // set by fail; trumps EOF and buffered data
}

func newPipe() *pipe {
	p := &pipe{}
	p.wakeup = sync.NewCond(&p.mu)
	return p
}

func (p *pipe) read(buf []byte) (int, *api.IOError) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		if p.broken != nil {
			return 0, p.broken
		}
		if len(p.buf) > 0 {
			n := copy(buf, p.buf)
			p.buf = p.buf[n:]
			return n, nil
		}
		if p.closed {
			return 0, api.NewIOError(api.EndOfFile, io.EOF)
		}
		p.wakeup.Wait()
	}
}

func (p *pipe) write(buf []byte) *api.IOError {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broken != nil {
		return p.broken
	}
	if p.closed {
		return api.NewIOError(api.BrokenPipe, errPipe)
	}
	p.buf = append(p.buf, buf...)
	p.wakeup.Signal()
	return nil
}

func (p *pipe) close() {
	p.mu.Lock()
	p.closed = true
	p.wakeup.Broadcast()
	p.mu.Unlock()
}

func (p *pipe) fail(err *api.IOError) {
	p.mu.Lock()
	p.broken = err
	p.wakeup.Broadcast()
	p.mu.Unlock()
}
