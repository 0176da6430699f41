// Package tcpio
// Author: momentics <momentics@gmail.com>

package tcpio

import "github.com/momentics/taskio/api"

// Stream is a connected TCP stream owning exactly one backend handle.
// Streams are constructed only inside this package, by Connect and Accept;
// construction and failure are mutually exclusive outcomes of both.
type Stream struct {
	io *IO
	h  api.StreamHandle
}

func newStream(io *IO, h api.StreamHandle) *Stream {
	return &Stream{io: io, h: h}
}

// Read fills buf and reports (n, true) on success, with buf[:n] mutated.
// End of stream reports (0, false) without raising anything, on this call
// and every call after it. Any other backend failure raises the ReadError
// condition and then reports (0, false).
func (s *Stream) Read(buf []byte) (int, bool) {
	n, ioerr := s.h.Read(buf)
	if ioerr != nil {
		if ioerr.Kind != api.EndOfFile {
			s.io.ReadError.Raise(ioerr)
		}
		return 0, false
	}
	return n, true
}

// Write sends all of buf. Success is silent. Failure raises the IOError
// condition; once the peer has closed, the raised kind is ConnectionReset
// or BrokenPipe depending on platform, and handlers must accept either.
func (s *Stream) Write(buf []byte) {
	if ioerr := s.h.Write(buf); ioerr != nil {
		s.io.IOError.Raise(ioerr)
	}
}

// Transfer rebinds the stream to another task's IO context. Call it
// between operations when handing the stream across tasks; conditions
// raised afterwards go to the new context's handlers.
func (s *Stream) Transfer(io *IO) {
	s.io = io
}

// Close releases the backend connection. Safe after a failure and safe to
// call more than once.
func (s *Stream) Close() error {
	return s.h.Close()
}
