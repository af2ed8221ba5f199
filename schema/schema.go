// Package schema defines the language-neutral AST produced by the PDL
// parser and consumed by the type registry and the target emitter.
//
// A ProtocolDefinition is immutable once the parser returns it: nothing
// downstream mutates a Message, Field, Service, or Method in place.
package schema

import (
	"fmt"
	"strings"
)

// FieldType enumerates the wire types a Field can carry (§4.3.1).
type FieldType int

const (
	TypeI32 FieldType = iota
	TypeI64
	TypeF32
	TypeF64
	TypeBool
	TypeString
	TypeBytes
	TypeDateTime
	TypeVector3
	TypeStruct // struct-ref; CustomType names the referenced message
)

func (t FieldType) String() string {
	switch t {
	case TypeI32:
		return "int32"
	case TypeI64:
		return "int64"
	case TypeF32:
		return "float"
	case TypeF64:
		return "double"
	case TypeBool:
		return "bool"
	case TypeString:
		return "string"
	case TypeBytes:
		return "bytes"
	case TypeDateTime:
		return "DateTime"
	case TypeVector3:
		return "Vector3"
	case TypeStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Field is one declared field of a Message.
type Field struct {
	Name       string
	ID         int // positive; wire index = ID-1
	Type       FieldType
	CustomType string // set when Type == TypeStruct
	Repeated   bool
}

// WireIndex returns the zero-based wire index used for bitmask placement.
func (f Field) WireIndex() int { return f.ID - 1 }

// Message is an ordered list of fields under a name.
type Message struct {
	Name   string
	Fields []Field
}

// FieldByID returns the field with the given id, or nil.
func (m *Message) FieldByID(id int) *Field {
	for i := range m.Fields {
		if m.Fields[i].ID == id {
			return &m.Fields[i]
		}
	}
	return nil
}

// MaxWireIndex returns the largest wire index among this message's fields,
// or -1 for a message with no fields.
func (m *Message) MaxWireIndex() int {
	max := -1
	for _, f := range m.Fields {
		if idx := f.WireIndex(); idx > max {
			max = idx
		}
	}
	return max
}

// GroupCount returns G, the number of u32 bitmask groups the wire body
// needs (§4.3.3). It is derived from the highest wire index rather than
// the raw field count, so sparse-but-bounded field ids (§3: max(id) <=
// 1024) never produce a mask too small to address every field's bit —
// see DESIGN.md, "Open Question resolutions", #4.
func (m *Message) GroupCount() int {
	maxIdx := m.MaxWireIndex()
	if maxIdx < 0 {
		return 0
	}
	return maxIdx/32 + 1
}

// Validate checks the invariants from spec §3: every field id is
// positive, at most 1024, and unique within the message. "repeated
// repeated" is rejected by the parser only; a Field's single Repeated
// flag cannot express it, so Validate does not check it.
func (m *Message) Validate() error {
	seen := make(map[int]string, len(m.Fields))
	for _, f := range m.Fields {
		if f.ID <= 0 {
			return fmt.Errorf("message %s: field %s has non-positive id %d", m.Name, f.Name, f.ID)
		}
		if f.ID > 1024 {
			return fmt.Errorf("message %s: field %s id %d exceeds maximum of 1024", m.Name, f.Name, f.ID)
		}
		if other, ok := seen[f.ID]; ok {
			return fmt.Errorf("message %s: duplicate field id %d (%s and %s)", m.Name, f.ID, other, f.Name)
		}
		seen[f.ID] = f.Name
	}
	return nil
}

// Method is one RPC operation of a Service.
type Method struct {
	Name            string
	RequestType     string
	ResponseType    string
	ResponseStream  bool
}

// Service is an ordered list of methods under a name.
type Service struct {
	Name    string
	Methods []Method
}

// ProtocolDefinition is the root AST node produced by the parser.
type ProtocolDefinition struct {
	Namespace string
	Messages  []Message
	Services  []Service
	Options   map[string]string
}

// MessageByName looks up a message by name, or returns nil.
func (p *ProtocolDefinition) MessageByName(name string) *Message {
	for i := range p.Messages {
		if p.Messages[i].Name == name {
			return &p.Messages[i]
		}
	}
	return nil
}

// ServiceByName looks up a service by name, or returns nil.
func (p *ProtocolDefinition) ServiceByName(name string) *Service {
	for i := range p.Services {
		if p.Services[i].Name == name {
			return &p.Services[i]
		}
	}
	return nil
}

// GoFieldName converts a PDL field or message name (snake_case or
// already CamelCase) into the exported Go struct field name the emitter
// gives it - e.g. "server_time" -> "ServerTime". Both the codegen
// templates and the reflective runtime codec in package typeregistry
// use this so a hand-written struct and an emitted one agree on field
// names.
func GoFieldName(name string) string {
	parts := strings.Split(name, "_")
	var sb strings.Builder
	for _, p := range parts {
		if p == "" {
			continue
		}
		sb.WriteString(strings.ToUpper(p[:1]))
		sb.WriteString(p[1:])
	}
	return sb.String()
}
