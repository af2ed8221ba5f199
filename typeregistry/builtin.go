package typeregistry

import (
	"reflect"
	"time"

	"github.com/vgp7758/bitrpc/wire"
)

func registerBuiltins(r *Registry) {
	r.MustRegister(i32Handler{})
	r.MustRegister(i64Handler{})
	r.MustRegister(f32Handler{})
	r.MustRegister(f64Handler{})
	r.MustRegister(boolHandler{})
	r.MustRegister(stringHandler{})
	r.MustRegister(bytesHandler{})
	r.MustRegister(dateTimeHandler{})
	r.MustRegister(vector3Handler{})
}

var (
	typeOfInt32     = reflect.TypeOf(int32(0))
	typeOfInt64     = reflect.TypeOf(int64(0))
	typeOfFloat32   = reflect.TypeOf(float32(0))
	typeOfFloat64   = reflect.TypeOf(float64(0))
	typeOfBool      = reflect.TypeOf(false)
	typeOfString    = reflect.TypeOf("")
	typeOfBytes     = reflect.TypeOf([]byte(nil))
	typeOfTime      = reflect.TypeOf(time.Time{})
	typeOfVector3   = reflect.TypeOf(wire.Vector3{})
)

type i32Handler struct{}

func (i32Handler) HashCode() int32          { return HashI32 }
func (i32Handler) GoType() reflect.Type     { return typeOfInt32 }
func (i32Handler) IsDefault(v any) bool     { return v.(int32) == 0 }
func (i32Handler) Write(w *wire.Writer, v any) error {
	w.WriteI32(v.(int32))
	return nil
}
func (i32Handler) Read(r *wire.Reader) (any, error) { return r.ReadI32() }

type i64Handler struct{}

func (i64Handler) HashCode() int32      { return HashI64 }
func (i64Handler) GoType() reflect.Type { return typeOfInt64 }
func (i64Handler) IsDefault(v any) bool { return v.(int64) == 0 }
func (i64Handler) Write(w *wire.Writer, v any) error {
	w.WriteI64(v.(int64))
	return nil
}
func (i64Handler) Read(r *wire.Reader) (any, error) { return r.ReadI64() }

type f32Handler struct{}

func (f32Handler) HashCode() int32      { return HashF32 }
func (f32Handler) GoType() reflect.Type { return typeOfFloat32 }
func (f32Handler) IsDefault(v any) bool { return v.(float32) == 0 }
func (f32Handler) Write(w *wire.Writer, v any) error {
	w.WriteF32(v.(float32))
	return nil
}
func (f32Handler) Read(r *wire.Reader) (any, error) { return r.ReadF32() }

type f64Handler struct{}

func (f64Handler) HashCode() int32      { return HashF64 }
func (f64Handler) GoType() reflect.Type { return typeOfFloat64 }
func (f64Handler) IsDefault(v any) bool { return v.(float64) == 0 }
func (f64Handler) Write(w *wire.Writer, v any) error {
	w.WriteF64(v.(float64))
	return nil
}
func (f64Handler) Read(r *wire.Reader) (any, error) { return r.ReadF64() }

type boolHandler struct{}

func (boolHandler) HashCode() int32      { return HashBool }
func (boolHandler) GoType() reflect.Type { return typeOfBool }
func (boolHandler) IsDefault(v any) bool { return v.(bool) == false }
func (boolHandler) Write(w *wire.Writer, v any) error {
	w.WriteBool(v.(bool))
	return nil
}
func (boolHandler) Read(r *wire.Reader) (any, error) { return r.ReadBool() }

type stringHandler struct{}

func (stringHandler) HashCode() int32      { return HashString }
func (stringHandler) GoType() reflect.Type { return typeOfString }
func (stringHandler) IsDefault(v any) bool { return len(v.(string)) == 0 }
func (stringHandler) Write(w *wire.Writer, v any) error {
	w.WriteString(v.(string))
	return nil
}
func (stringHandler) Read(r *wire.Reader) (any, error) { return r.ReadString() }

type bytesHandler struct{}

func (bytesHandler) HashCode() int32      { return HashBytes }
func (bytesHandler) GoType() reflect.Type { return typeOfBytes }
func (bytesHandler) IsDefault(v any) bool { return len(v.([]byte)) == 0 }
func (bytesHandler) Write(w *wire.Writer, v any) error {
	w.WriteBytes(v.([]byte))
	return nil
}
func (bytesHandler) Read(r *wire.Reader) (any, error) { return r.ReadBytes() }

// dateTimeHandler represents DateTime as time.Time in Go, encoded on the
// wire as i64 Unix seconds (§4.3.1). The wire default is epoch zero
// (§4.3.4), checked via Unix()==0 rather than time.Time's own IsZero
// (the Go zero Time is year 1, not the Unix epoch).
type dateTimeHandler struct{}

func (dateTimeHandler) HashCode() int32      { return HashDateTime }
func (dateTimeHandler) GoType() reflect.Type { return typeOfTime }
func (dateTimeHandler) IsDefault(v any) bool { return v.(time.Time).Unix() == 0 }
func (dateTimeHandler) Write(w *wire.Writer, v any) error {
	w.WriteDateTime(v.(time.Time).Unix())
	return nil
}
func (dateTimeHandler) Read(r *wire.Reader) (any, error) {
	sec, err := r.ReadDateTime()
	if err != nil {
		return nil, err
	}
	return time.Unix(sec, 0).UTC(), nil
}

type vector3Handler struct{}

func (vector3Handler) HashCode() int32      { return HashVector3 }
func (vector3Handler) GoType() reflect.Type { return typeOfVector3 }
func (vector3Handler) IsDefault(v any) bool { return v.(wire.Vector3).IsZero() }
func (vector3Handler) Write(w *wire.Writer, v any) error {
	w.WriteVector3(v.(wire.Vector3))
	return nil
}
func (vector3Handler) Read(r *wire.Reader) (any, error) { return r.ReadVector3() }
