// Package wire implements the bitmask presence-coded serialization
// format (§4.3): the StreamWriter/StreamReader primitives, the nine
// built-in wire type encodings, and the bitmask-group body layout that
// every generated message serializer and the generic reflective codec
// in package typeregistry both build on.
//
// All multi-byte integers are written little-endian, matching the
// wire's assumed little-endian peers (§4.3, §9 "Endianness").
package wire

import (
	"encoding/binary"
	"math"
)

// Vector3 is the wire Vector3 type: three packed float32 components.
type Vector3 struct {
	X, Y, Z float32
}

// IsZero reports whether v is the wire default for Vector3 (§4.3.4).
func (v Vector3) IsZero() bool { return v.X == 0 && v.Y == 0 && v.Z == 0 }

// Writer is an append-only byte buffer, the wire format's StreamWriter.
type Writer struct {
	buf []byte
}

// NewWriter returns an empty Writer.
func NewWriter() *Writer { return &Writer{} }

// Bytes returns the buffer written so far. The returned slice aliases
// the Writer's internal storage and must not be mutated by the caller.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of bytes written so far.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) grow(n int) []byte {
	start := len(w.buf)
	w.buf = append(w.buf, make([]byte, n)...)
	return w.buf[start : start+n]
}

// WriteRaw appends raw bytes verbatim (used for already-encoded bytes,
// e.g. the request object rpcproto appends after the method name).
func (w *Writer) WriteRaw(b []byte) { w.buf = append(w.buf, b...) }

// WriteU32 writes a little-endian uint32 (used for framing lengths and
// bitmask groups, in addition to the i32/u32 wire type).
func (w *Writer) WriteU32(v uint32) { binary.LittleEndian.PutUint32(w.grow(4), v) }

// WriteI32 writes the i32/u32 wire type (§4.3.1): 4 bytes, little-endian
// two's complement.
func (w *Writer) WriteI32(v int32) { w.WriteU32(uint32(v)) }

// WriteI64 writes the i64 wire type: 8 bytes, little-endian two's
// complement.
func (w *Writer) WriteI64(v int64) { binary.LittleEndian.PutUint64(w.grow(8), uint64(v)) }

// WriteF32 writes the f32 wire type: IEEE-754, little-endian.
func (w *Writer) WriteF32(v float32) { w.WriteU32(math.Float32bits(v)) }

// WriteF64 writes the f64 wire type: IEEE-754, little-endian.
func (w *Writer) WriteF64(v float64) {
	binary.LittleEndian.PutUint64(w.grow(8), math.Float64bits(v))
}

// WriteBool writes the bool wire type: encoded as i32, 0=false,
// nonzero=true (§4.3.1).
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteI32(1)
	} else {
		w.WriteI32(0)
	}
}

// WriteString writes the string wire type: i32 length then UTF-8 bytes
// (§4.3.1). Empty strings are written with length 0, not -1 - the -1
// encoding exists for readers to accept, not for writers to produce
// (§4.3.4, §8 property 4).
func (w *Writer) WriteString(s string) {
	w.WriteI32(int32(len(s)))
	w.buf = append(w.buf, s...)
}

// WriteBytes writes the bytes wire type: i32 length then raw bytes.
func (w *Writer) WriteBytes(b []byte) {
	w.WriteI32(int32(len(b)))
	w.buf = append(w.buf, b...)
}

// WriteDateTime writes the datetime wire type: i64 Unix seconds.
func (w *Writer) WriteDateTime(unixSeconds int64) { w.WriteI64(unixSeconds) }

// WriteVector3 writes the vector3 wire type: three packed f32 (x, y, z).
func (w *Writer) WriteVector3(v Vector3) {
	w.WriteF32(v.X)
	w.WriteF32(v.Y)
	w.WriteF32(v.Z)
}
