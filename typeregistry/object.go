package typeregistry

import (
	"reflect"

	"github.com/vgp7758/bitrpc/wire"
)

// WriteObject implements §4.3.2's tagged object encoding: a null value
// (nil, or a nil pointer/interface) is written as hash_code = -1;
// otherwise the value's handler is looked up by its Go runtime type,
// its hash_code is written, and its body follows.
func WriteObject(w *wire.Writer, reg *Registry, v any) error {
	if isNil(v) {
		w.WriteI32(-1)
		return nil
	}
	h, ok := reg.LookupByType(reflect.TypeOf(v))
	if !ok {
		return &RegistryError{Reason: "no handler registered for type " + reflect.TypeOf(v).String()}
	}
	w.WriteI32(h.HashCode())
	return h.Write(w, v)
}

// ReadObject implements §4.3.2's mirror read. hash_code = -1 decodes to
// a nil value. An unrecognized hash_code returns *wire.UnknownTypeError
// (§4.3.6); callers that want to treat an unknown type as null rather
// than an error may do so explicitly at the call site (§4.3.6 "readers
// may return null if the caller opts in").
func ReadObject(r *wire.Reader, reg *Registry) (any, error) {
	hash, err := r.ReadI32()
	if err != nil {
		return nil, err
	}
	if hash == -1 {
		return nil, nil
	}
	h, ok := reg.LookupByHash(hash)
	if !ok {
		return nil, &wire.UnknownTypeError{Hash: hash}
	}
	return h.Read(r)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Slice, reflect.Map, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
