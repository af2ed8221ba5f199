package rpcproto

import (
	"encoding/binary"
	"errors"
	"io"
	"strings"

	"github.com/vgp7758/bitrpc/wire"
)

// streamPrefix marks a streaming call's method name (§4.4.1). Servers
// must accept method names with and without it; clients should always
// send it.
const streamPrefix = "STREAM:"

func writeFrame(w io.Writer, payload []byte) error {
	header := make([]byte, 4)
	binary.LittleEndian.PutUint32(header, uint32(len(payload)))
	if _, err := w.Write(header); err != nil {
		return &TransportError{Op: "write frame header", Err: err}
	}
	if len(payload) == 0 {
		return nil
	}
	if _, err := w.Write(payload); err != nil {
		return &TransportError{Op: "write frame payload", Err: err}
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	header := make([]byte, 4)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrConnectionClosed
		}
		return nil, &TransportError{Op: "read frame header", Err: err}
	}
	n := binary.LittleEndian.Uint32(header)
	if n == 0 {
		return nil, nil
	}
	payload := make([]byte, n)
	if _, err := io.ReadFull(r, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, ErrConnectionClosed
		}
		return nil, &TransportError{Op: "read frame payload", Err: err}
	}
	return payload, nil
}

func isPrintableASCII(b []byte) bool {
	for _, c := range b {
		if c < 0x20 || c > 0x7E {
			return false
		}
	}
	return true
}

// parseMethodAndRest implements the §4.4.1 / §9 detection heuristic:
// try the legacy [u32 method_len][ascii][u32 req_len][req_bytes] form
// first (accepted only when req_len covers exactly the rest of the
// payload), falling back to the codec-string form (i32 len | utf-8
// bytes) used by every other string on the wire (§4.3.1).
func parseMethodAndRest(payload []byte) (method string, rest []byte, err error) {
	if len(payload) >= 4 {
		m := int32(binary.LittleEndian.Uint32(payload[0:4]))
		if m >= 0 && 4+int(m)+4 <= len(payload) && isPrintableASCII(payload[4:4+int(m)]) {
			offset := 4 + int(m)
			reqLen := int32(binary.LittleEndian.Uint32(payload[offset : offset+4]))
			offset += 4
			if reqLen >= 0 && offset+int(reqLen) == len(payload) {
				return string(payload[4 : 4+int(m)]), payload[offset:], nil
			}
		}
	}

	reader := wire.NewReader(payload)
	s, err := reader.ReadString()
	if err != nil {
		return "", nil, &FrameError{Reason: "malformed method name: " + err.Error()}
	}
	return s, payload[reader.Pos():], nil
}

// WriteRequestFrame writes a request frame in the canonical codec-
// string form (§9: legacy ASCII form is accept-only, never emitted by
// new implementations). stream selects the "STREAM:" method prefix.
func WriteRequestFrame(w io.Writer, service, operation string, stream bool, reqObjectBytes []byte) error {
	full := service + "." + operation
	if stream {
		full = streamPrefix + full
	}
	payload := wire.NewWriter()
	payload.WriteString(full)
	payload.WriteRaw(reqObjectBytes)
	return writeFrame(w, payload.Bytes())
}

// ReadRequestFrame reads and parses a request frame, splitting the
// method name into service/operation and reporting whether the
// streaming prefix was present.
func ReadRequestFrame(r io.Reader) (service, operation string, stream bool, reqObjectBytes []byte, err error) {
	payload, err := readFrame(r)
	if err != nil {
		return "", "", false, nil, err
	}
	full, rest, err := parseMethodAndRest(payload)
	if err != nil {
		return "", "", false, nil, err
	}
	if strings.HasPrefix(full, streamPrefix) {
		stream = true
		full = full[len(streamPrefix):]
	}
	parts := strings.SplitN(full, ".", 2)
	if len(parts) != 2 {
		return "", "", false, nil, &FrameError{Reason: "method name missing '.' separator: " + full}
	}
	return parts[0], parts[1], stream, rest, nil
}

// WriteUnaryResponseFrame writes a §4.4.2 unary response frame.
func WriteUnaryResponseFrame(w io.Writer, respObjectBytes []byte) error {
	return writeFrame(w, respObjectBytes)
}

// ReadUnaryResponseFrame reads a §4.4.2 unary response frame.
func ReadUnaryResponseFrame(r io.Reader) ([]byte, error) {
	return readFrame(r)
}

// WriteStreamFrame writes one §4.4.3 data frame. itemObjectBytes must
// be non-empty (write_object always emits at least a 4-byte hash tag),
// since a zero-length frame is reserved for end-of-stream.
func WriteStreamFrame(w io.Writer, itemObjectBytes []byte) error {
	if len(itemObjectBytes) == 0 {
		return &FrameError{Reason: "stream item encoded to zero bytes, would be misread as end-of-stream"}
	}
	return writeFrame(w, itemObjectBytes)
}

// WriteStreamEnd writes the §4.4.3 zero-length end-of-stream marker.
func WriteStreamEnd(w io.Writer) error {
	return writeFrame(w, nil)
}

// ReadStreamFrame reads one §4.4.3 frame. end is true when the caller
// has reached the end-of-stream marker and must stop reading for this
// call.
func ReadStreamFrame(r io.Reader) (itemBytes []byte, end bool, err error) {
	payload, err := readFrame(r)
	if err != nil {
		return nil, false, err
	}
	if len(payload) == 0 {
		return nil, true, nil
	}
	return payload, false, nil
}
