package rpcclient

import (
	"io"
	"net"
	"sync"

	"github.com/vgp7758/bitrpc/rpcproto"
	"github.com/vgp7758/bitrpc/typeregistry"
	"github.com/vgp7758/bitrpc/wire"
)

// StreamReader is the user-visible server-streaming consumer (§7):
// read_next/has_more/close/has_error/error_message, named here as their
// Go-exported equivalents.
type StreamReader struct {
	conn    net.Conn
	reg     *typeregistry.Registry
	release func()

	mu   sync.Mutex
	done bool
	err  error
}

// ReadNext blocks for the next item. It returns io.EOF once the
// end-of-stream marker (§4.4.3) has been observed - callers should
// stop calling ReadNext at that point, as HasMore will also report
// false from then on.
func (s *StreamReader) ReadNext() (any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}

	payload, end, err := rpcproto.ReadStreamFrame(s.conn)
	if err != nil {
		s.finishLocked(&StreamError{Err: err})
		return nil, s.err
	}
	if end {
		s.finishLocked(nil)
		return nil, io.EOF
	}

	v, err := typeregistry.ReadObject(wire.NewReader(payload), s.reg)
	if err != nil {
		s.finishLocked(&StreamError{Err: err})
		return nil, s.err
	}
	return v, nil
}

func (s *StreamReader) finishLocked(err error) {
	if s.done {
		return
	}
	s.done = true
	s.err = err
	s.release()
}

// HasMore reports whether ReadNext may still return an item.
func (s *StreamReader) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.done
}

// HasError reports whether the stream ended abnormally.
func (s *StreamReader) HasError() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err != nil
}

// ErrorMessage returns the abnormal-termination error's text, or "" if
// the stream hasn't errored.
func (s *StreamReader) ErrorMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err == nil {
		return ""
	}
	return s.err.Error()
}

// Close releases the underlying connection for reuse if the stream
// already reached its end marker. Otherwise - per §5, the only
// cancellation mechanism is closing the TCP connection - it closes the
// connection outright: this format has no multiplexing, so abandoning
// a stream mid-flight without closing the socket would leave
// undrained data frames to corrupt the next call on the same
// connection.
func (s *StreamReader) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done {
		return nil
	}
	s.done = true
	if s.err == nil {
		s.err = &StreamError{Err: io.ErrClosedPipe}
	}
	s.release()
	return s.conn.Close()
}
