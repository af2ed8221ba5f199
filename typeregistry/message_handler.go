package typeregistry

import (
	"fmt"
	"reflect"
	"sort"
	"time"

	"github.com/vgp7758/bitrpc/schema"
	"github.com/vgp7758/bitrpc/wire"
)

// MessageHandler is a schema-driven, reflection-based implementation of
// the §4.3.3 bitmask body algorithm for an arbitrary Go struct. It plays
// the same role as the generated per-message serializer the target
// emitter produces (§4.5) - both ultimately call the same wire.Writer/
// wire.Reader primitives and the same default predicates, so a
// MessageHandler-backed runtime and a generated-code-backed one are
// byte-compatible (see codegen's templates and DESIGN.md).
//
// Struct fields are looked up by schema.GoFieldName(field.Name). Struct-
// ref fields are Go value types (not pointers); a struct-ref field is
// "absent" purely by being at its recursive default (§4.3.4) - there is
// no separate null representation below the top-level write_object tag
// (§9 "String/null ambiguity" generalizes to structs too).
type MessageHandler struct {
	desc     *schema.Message
	typ      reflect.Type // struct type (not pointer)
	reg      *Registry
	hash     int32
	sorted   []schema.Field // desc.Fields sorted ascending by ID
	groups   int
}

// NewMessageHandler builds a MessageHandler for typ (must be a struct
// type) against desc, resolving struct-ref nested handlers lazily
// through reg at Write/Read time - this is what lets messages reference
// each other cyclically (§9): by the time any message is actually
// encoded, every message type's handler has been registered.
func NewMessageHandler(desc *schema.Message, typ reflect.Type, reg *Registry) (*MessageHandler, error) {
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("typeregistry: %s must be backed by a struct type, got %s", desc.Name, typ.Kind())
	}
	if err := desc.Validate(); err != nil {
		return nil, err
	}
	sorted := make([]schema.Field, len(desc.Fields))
	copy(sorted, desc.Fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	return &MessageHandler{
		desc:   desc,
		typ:    typ,
		reg:    reg,
		hash:   FNV1a(desc.Name),
		sorted: sorted,
		groups: desc.GroupCount(),
	}, nil
}

func (h *MessageHandler) HashCode() int32      { return h.hash }
func (h *MessageHandler) GoType() reflect.Type { return h.typ }

func (h *MessageHandler) structValue(v any) (reflect.Value, error) {
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Type() != h.typ {
		return reflect.Value{}, fmt.Errorf("typeregistry: expected %v, got %T", h.typ, v)
	}
	return rv, nil
}

// IsDefault reports whether every field of v is at its wire default
// (§4.3.4's struct-ref rule, also used directly when v is itself a
// top-level value being checked for §8 property 2).
func (h *MessageHandler) IsDefault(v any) bool {
	rv, err := h.structValue(v)
	if err != nil {
		return false
	}
	for _, f := range h.sorted {
		fv := rv.FieldByName(schema.GoFieldName(f.Name))
		if !h.fieldIsDefault(f, fv) {
			return false
		}
	}
	return true
}

func (h *MessageHandler) fieldIsDefault(f schema.Field, fv reflect.Value) bool {
	if f.Repeated {
		return fv.Len() == 0
	}
	if f.Type == schema.TypeStruct {
		nested, ok := h.reg.LookupByType(fv.Type())
		if !ok {
			return false
		}
		return nested.IsDefault(fv.Interface())
	}
	return isPrimitiveDefault(f.Type, fv)
}

func isPrimitiveDefault(ft schema.FieldType, fv reflect.Value) bool {
	switch ft {
	case schema.TypeI32:
		return fv.Int() == 0
	case schema.TypeI64:
		return fv.Int() == 0
	case schema.TypeF32, schema.TypeF64:
		return fv.Float() == 0
	case schema.TypeBool:
		return !fv.Bool()
	case schema.TypeString:
		return fv.Len() == 0
	case schema.TypeBytes:
		return fv.Len() == 0
	case schema.TypeDateTime:
		return fv.Interface().(time.Time).Unix() == 0
	case schema.TypeVector3:
		return fv.Interface().(wire.Vector3).IsZero()
	default:
		return false
	}
}

// Write implements the §4.3.3 body encoding: compute and write G
// bitmask groups, then write each present field in id-ascending order.
func (h *MessageHandler) Write(w *wire.Writer, v any) error {
	rv, err := h.structValue(v)
	if err != nil {
		return err
	}

	masks := make([]uint32, h.groups)
	for _, f := range h.sorted {
		fv := rv.FieldByName(schema.GoFieldName(f.Name))
		if !h.fieldIsDefault(f, fv) {
			wire.SetBit(masks, f.WireIndex())
		}
	}
	w.WriteGroups(masks)

	for _, f := range h.sorted {
		if !wire.TestBit(masks, f.WireIndex()) {
			continue
		}
		fv := rv.FieldByName(schema.GoFieldName(f.Name))
		if err := h.writeFieldValue(w, f, fv); err != nil {
			return fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return nil
}

func (h *MessageHandler) writeFieldValue(w *wire.Writer, f schema.Field, fv reflect.Value) error {
	if f.Repeated {
		n := fv.Len()
		w.WriteI32(int32(n))
		for i := 0; i < n; i++ {
			if err := h.writeScalar(w, f, fv.Index(i)); err != nil {
				return err
			}
		}
		return nil
	}
	return h.writeScalar(w, f, fv)
}

func (h *MessageHandler) writeScalar(w *wire.Writer, f schema.Field, fv reflect.Value) error {
	if f.Type == schema.TypeStruct {
		nested, ok := h.reg.LookupByType(fv.Type())
		if !ok {
			return &RegistryError{Reason: "no handler registered for struct-ref type " + fv.Type().String()}
		}
		return nested.Write(w, fv.Interface())
	}
	return writePrimitive(w, f.Type, fv)
}

func writePrimitive(w *wire.Writer, ft schema.FieldType, fv reflect.Value) error {
	switch ft {
	case schema.TypeI32:
		w.WriteI32(int32(fv.Int()))
	case schema.TypeI64:
		w.WriteI64(fv.Int())
	case schema.TypeF32:
		w.WriteF32(float32(fv.Float()))
	case schema.TypeF64:
		w.WriteF64(fv.Float())
	case schema.TypeBool:
		w.WriteBool(fv.Bool())
	case schema.TypeString:
		w.WriteString(fv.String())
	case schema.TypeBytes:
		w.WriteBytes(fv.Bytes())
	case schema.TypeDateTime:
		w.WriteDateTime(fv.Interface().(time.Time).Unix())
	case schema.TypeVector3:
		w.WriteVector3(fv.Interface().(wire.Vector3))
	default:
		return fmt.Errorf("typeregistry: unsupported field type %v", ft)
	}
	return nil
}

// Read implements the §4.3.3 mirror read: read G masks, then for each
// field in id order, read and fill it if its bit is set, leaving it at
// its Go zero value (which is also the wire default) otherwise.
func (h *MessageHandler) Read(r *wire.Reader) (any, error) {
	out := reflect.New(h.typ).Elem()

	masks, err := r.ReadGroups(h.groups)
	if err != nil {
		return nil, err
	}

	for _, f := range h.sorted {
		if !wire.TestBit(masks, f.WireIndex()) {
			continue
		}
		fv := out.FieldByName(schema.GoFieldName(f.Name))
		if err := h.readFieldValue(r, f, fv); err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
	}
	return out.Interface(), nil
}

func (h *MessageHandler) readFieldValue(r *wire.Reader, f schema.Field, fv reflect.Value) error {
	if f.Repeated {
		count, err := r.ReadI32()
		if err != nil {
			return err
		}
		slice := reflect.MakeSlice(fv.Type(), int(count), int(count))
		for i := 0; i < int(count); i++ {
			if err := h.readScalar(r, f, slice.Index(i)); err != nil {
				return err
			}
		}
		fv.Set(slice)
		return nil
	}
	return h.readScalar(r, f, fv)
}

func (h *MessageHandler) readScalar(r *wire.Reader, f schema.Field, fv reflect.Value) error {
	if f.Type == schema.TypeStruct {
		nested, ok := h.reg.LookupByType(fv.Type())
		if !ok {
			return &RegistryError{Reason: "no handler registered for struct-ref type " + fv.Type().String()}
		}
		val, err := nested.Read(r)
		if err != nil {
			return err
		}
		fv.Set(reflect.ValueOf(val))
		return nil
	}
	val, err := readPrimitive(r, f.Type)
	if err != nil {
		return err
	}
	fv.Set(reflect.ValueOf(val))
	return nil
}

func readPrimitive(r *wire.Reader, ft schema.FieldType) (any, error) {
	switch ft {
	case schema.TypeI32:
		return r.ReadI32()
	case schema.TypeI64:
		return r.ReadI64()
	case schema.TypeF32:
		return r.ReadF32()
	case schema.TypeF64:
		return r.ReadF64()
	case schema.TypeBool:
		return r.ReadBool()
	case schema.TypeString:
		return r.ReadString()
	case schema.TypeBytes:
		return r.ReadBytes()
	case schema.TypeDateTime:
		sec, err := r.ReadDateTime()
		if err != nil {
			return nil, err
		}
		return time.Unix(sec, 0).UTC(), nil
	case schema.TypeVector3:
		return r.ReadVector3()
	default:
		return nil, fmt.Errorf("typeregistry: unsupported field type %v", ft)
	}
}
