// Package rpcclient implements the client side of the TCP RPC runtime
// (§4.4, §5, §7): a Transport owning one TCP connection with the
// strict FIFO call discipline the wire format requires (there is no
// sequence number in a BitRPC frame, so unlike the teacher's
// multiplexed transport.ClientTransport, at most one call may be in
// flight per connection at a time), and a Client layering service
// discovery and load balancing on top of a pool of Transports.
package rpcclient

import "fmt"

// StreamError is surfaced to a streaming consumer on abnormal
// termination (§7): a transport failure, a decode error, or the
// connection closing before the end-of-stream marker was observed.
type StreamError struct {
	Err error
}

func (e *StreamError) Error() string { return fmt.Sprintf("rpcclient: stream error: %v", e.Err) }
func (e *StreamError) Unwrap() error  { return e.Err }

// DispatchError is what a client-side Call sees when the server's
// §4.4.4 step 3 fallback fires: the server doesn't know the requested
// service or operation and answered with a length-0 unary frame
// instead (§7: "on the client results in an empty-response decode
// failure").
type DispatchError struct {
	Service   string
	Operation string
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("rpcclient: %s.%s: server returned an empty response (unknown service or operation)", e.Service, e.Operation)
}
