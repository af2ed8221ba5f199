package wire

import (
	"encoding/binary"
	"math"
	"unicode/utf8"
)

// Reader is a position-tracked view over a byte slice, the wire format's
// StreamReader. It never allocates on read beyond what the caller's
// data requires (string/bytes copies).
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps b for reading. b is not copied; the caller must not
// mutate it while the Reader is in use.
func NewReader(b []byte) *Reader { return &Reader{buf: b} }

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Pos returns the current read offset.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, ErrUnexpectedEnd
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// ReadRaw reads exactly n raw bytes.
func (r *Reader) ReadRaw(n int) ([]byte, error) { return r.take(n) }

// ReadU32 reads a little-endian uint32.
func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadI32 reads the i32/u32 wire type.
func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

// ReadI64 reads the i64 wire type.
func (r *Reader) ReadI64() (int64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.LittleEndian.Uint64(b)), nil
}

// ReadF32 reads the f32 wire type.
func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// ReadF64 reads the f64 wire type.
func (r *Reader) ReadF64() (float64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(b)), nil
}

// ReadBool reads the bool wire type (i32, 0=false, nonzero=true).
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadI32()
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// ReadString reads the string wire type. A length of -1 and a length of
// 0 both decode to "" (§4.3.1, §8 property 4: the null/empty merge is
// intentional, not a bug).
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadI32()
	if err != nil {
		return "", err
	}
	if n <= 0 {
		return "", nil
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// ReadBytes reads the bytes wire type.
func (r *Reader) ReadBytes() ([]byte, error) {
	n, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	if n <= 0 {
		return []byte{}, nil
	}
	b, err := r.take(int(n))
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out, nil
}

// ReadDateTime reads the datetime wire type: i64 Unix seconds.
func (r *Reader) ReadDateTime() (int64, error) { return r.ReadI64() }

// ReadVector3 reads the vector3 wire type.
func (r *Reader) ReadVector3() (Vector3, error) {
	x, err := r.ReadF32()
	if err != nil {
		return Vector3{}, err
	}
	y, err := r.ReadF32()
	if err != nil {
		return Vector3{}, err
	}
	z, err := r.ReadF32()
	if err != nil {
		return Vector3{}, err
	}
	return Vector3{X: x, Y: y, Z: z}, nil
}
