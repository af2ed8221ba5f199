// Package codegen implements the §4.5 target emitter for the Go
// target: given a schema.ProtocolDefinition, it produces Go source
// files with one value type, a hand-unrolled per-field serializer
// pair (MarshalBody/UnmarshalBody/IsDefault/HashCode), a client stub
// per service, and a registration helper wiring each method into the
// three rpcserver.Service method tables (§4.4.4).
//
// Unlike typeregistry.MessageHandler (the reflective runtime path used
// when a .pdl schema has no matching generated Go type), the code
// produced here never uses reflect: every field access and every
// wire.Writer/wire.Reader call is emitted directly, so the generated
// serializer and the reflective one are byte-compatible by
// construction (both ultimately call the same wire package primitives
// - see typeregistry/message_handler.go) while the generated path pays
// no reflection cost.
package codegen

import (
	"fmt"
	"sort"

	"github.com/vgp7758/bitrpc/schema"
	"github.com/vgp7758/bitrpc/typeregistry"
)

// fieldModel is one field's generated-code shape: its Go type, its
// (group, bit) bitmask position, and the three code snippets
// (default-test expression, write statement, read statement) the
// message template splices in verbatim.
type fieldModel struct {
	SchemaName string
	GoName     string
	GoType     string
	Group      int
	Bit        uint

	DefaultExpr string   // boolean expression, true iff the field is at its wire default
	WriteStmts  []string // statements writing the field's present-value encoding
	ReadStmts   []string // statements reading the field's present-value encoding into the struct
}

// WriteBlock joins this field's write statements for splicing directly
// into the MarshalBody template.
func (f fieldModel) WriteBlock() string { return joinLines(f.WriteStmts) }

// ReadBlock joins this field's read statements for splicing directly
// into the UnmarshalBody template.
func (f fieldModel) ReadBlock() string { return joinLines(f.ReadStmts) }

func joinLines(stmts []string) string {
	out := ""
	for i, s := range stmts {
		if i > 0 {
			out += "\n"
		}
		out += s
	}
	return out
}

// messageModel is the template data for one message's section of the
// generated types.go.
type messageModel struct {
	Name        string
	Fields      []fieldModel
	Groups      int
	Hash        int32
	NeedsTime   bool
	NeedsVector bool
}

// methodModel is one service method's template data.
type methodModel struct {
	Name           string
	RequestType    string
	ResponseType   string
	ResponseStream bool
}

// serviceModel is the template data for one service's generated file.
type serviceModel struct {
	Name    string
	Methods []methodModel
}

// buildMessageModel computes the full code-generation plan for one
// message: Go field types, bitmask (group, bit) positions (§4.3.3),
// and the default/write/read snippets per field (§4.3.4/§4.3.5).
func buildMessageModel(pd *schema.ProtocolDefinition, msg *schema.Message) (*messageModel, error) {
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	sorted := make([]schema.Field, len(msg.Fields))
	copy(sorted, msg.Fields)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	mm := &messageModel{
		Name:   msg.Name,
		Groups: msg.GroupCount(),
		Hash:   typeregistry.FNV1a(msg.Name),
	}

	for _, f := range sorted {
		fm, err := buildFieldModel(pd, f)
		if err != nil {
			return nil, fmt.Errorf("message %s: %w", msg.Name, err)
		}
		if f.Type == schema.TypeDateTime {
			mm.NeedsTime = true
		}
		if f.Type == schema.TypeVector3 {
			mm.NeedsVector = true
		}
		mm.Fields = append(mm.Fields, *fm)
	}
	return mm, nil
}

func buildServiceModel(svc *schema.Service) *serviceModel {
	sm := &serviceModel{Name: svc.Name}
	for _, m := range svc.Methods {
		sm.Methods = append(sm.Methods, methodModel{
			Name:           m.Name,
			RequestType:    m.RequestType,
			ResponseType:   m.ResponseType,
			ResponseStream: m.ResponseStream,
		})
	}
	return sm
}
