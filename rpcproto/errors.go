// Package rpcproto implements the wire framing described in §4.4: it
// knows how to split a TCP byte stream into length-prefixed frames and
// how to pull a method name out of a request frame, but it has no idea
// what a TypeRegistry is. Callers (rpcserver, rpcclient) hand it opaque
// already-encoded object bytes (the output of typeregistry.WriteObject)
// and get opaque bytes back - mirroring the source repository's split
// between its protocol package (framing only) and its codec/server/
// client/transport packages (type-aware).
package rpcproto

import (
	"errors"
	"fmt"
)

// ErrConnectionClosed distinguishes an orderly EOF from other I/O
// failures (§7 "TransportError ... includes ConnectionClosed as a
// distinct variant").
var ErrConnectionClosed = errors.New("rpcproto: connection closed")

// TransportError wraps a socket I/O failure with the operation that
// failed, per §7's TransportError kind.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("rpcproto: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// FrameError reports a malformed frame that cannot be recovered from -
// per §4.4.5, a decode error at this layer always means the connection
// must be closed, since frame boundaries are now unrecoverable.
type FrameError struct {
	Reason string
}

func (e *FrameError) Error() string { return "rpcproto: " + e.Reason }
