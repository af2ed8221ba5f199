// Package pdl implements the Protocol Definition Language parser (§4.1).
//
// Parse reads a PDL schema and produces a schema.ProtocolDefinition. The
// parser has no error recovery: it stops at the first SchemaError.
//
// Struct-ref fields and method request/response types may reference a
// message declared later in the file (or, in principle, form a cycle -
// spec.md §9 notes the grammar doesn't forbid this even though schemas
// in practice form a DAG). To support forward references the parser
// runs in two passes: first it collects every message/service skeleton
// by name, then it resolves type references against that name table.
package pdl

import (
	"fmt"

	"github.com/vgp7758/bitrpc/schema"
)

type parser struct {
	file string
	lex  *lexer
	tok  token
}

// Parse parses PDL source text into a ProtocolDefinition. file is used
// only to annotate error positions; pass "" if there is no path.
func Parse(file, src string) (*schema.ProtocolDefinition, error) {
	p := &parser{file: file, lex: newLexer(file, src)}
	if err := p.bump(); err != nil {
		return nil, err
	}

	def := &schema.ProtocolDefinition{Options: make(map[string]string)}

	for p.tok.kind != tokEOF {
		switch {
		case p.isKeyword("namespace"):
			ns, err := p.parseNamespace()
			if err != nil {
				return nil, err
			}
			def.Namespace = ns
		case p.isKeyword("message"):
			msg, err := p.parseMessage()
			if err != nil {
				return nil, err
			}
			if def.MessageByName(msg.Name) != nil {
				return nil, p.errorf("duplicate message name %q", msg.Name)
			}
			def.Messages = append(def.Messages, *msg)
		case p.isKeyword("service"):
			svc, err := p.parseService()
			if err != nil {
				return nil, err
			}
			def.Services = append(def.Services, *svc)
		case p.isKeyword("option"):
			name, val, err := p.parseOption()
			if err != nil {
				return nil, err
			}
			def.Options[name] = val
		default:
			return nil, p.errorf("unexpected token %q", p.tok.text)
		}
	}

	if err := resolve(def); err != nil {
		return nil, err
	}
	return def, nil
}

func (p *parser) bump() error {
	t, err := p.lex.next()
	if err != nil {
		return err
	}
	p.tok = t
	return nil
}

func (p *parser) errorf(format string, args ...any) *SchemaError {
	return newErr(p.file, p.tok.line, p.tok.col, format, args...)
}

func (p *parser) isKeyword(kw string) bool {
	return p.tok.kind == tokIdent && p.tok.text == kw
}

func (p *parser) expectIdent() (string, error) {
	if p.tok.kind != tokIdent {
		return "", p.errorf("expected identifier, got %q", p.tok.text)
	}
	name := p.tok.text
	if err := p.bump(); err != nil {
		return "", err
	}
	return name, nil
}

func (p *parser) expectPunct(s string) error {
	if p.tok.kind != tokPunct || p.tok.text != s {
		return p.errorf("expected %q, got %q", s, p.tok.text)
	}
	return p.bump()
}

func (p *parser) parseNamespace() (string, error) {
	if err := p.bump(); err != nil { // consume "namespace"
		return "", err
	}
	first, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	name := first
	for p.tok.kind == tokPunct && p.tok.text == "." {
		if err := p.bump(); err != nil {
			return "", err
		}
		part, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		name += "." + part
	}
	return name, nil
}

func (p *parser) parseOption() (string, string, error) {
	if err := p.bump(); err != nil { // consume "option"
		return "", "", err
	}
	name, err := p.expectIdent()
	if err != nil {
		return "", "", err
	}
	if err := p.expectPunct("="); err != nil {
		return "", "", err
	}
	var val string
	switch p.tok.kind {
	case tokString:
		val = p.tok.text
	case tokInt:
		val = fmt.Sprintf("%d", p.tok.intVal)
	case tokBool:
		val = fmt.Sprintf("%v", p.tok.boolVal)
	default:
		return "", "", p.errorf("expected option value, got %q", p.tok.text)
	}
	if err := p.bump(); err != nil {
		return "", "", err
	}
	if p.tok.kind == tokPunct && p.tok.text == ";" {
		if err := p.bump(); err != nil {
			return "", "", err
		}
	}
	return name, val, nil
}

var primitiveTypes = map[string]schema.FieldType{
	"int32":    schema.TypeI32,
	"int64":    schema.TypeI64,
	"float":    schema.TypeF32,
	"double":   schema.TypeF64,
	"bool":     schema.TypeBool,
	"string":   schema.TypeString,
	"bytes":    schema.TypeBytes,
	"DateTime": schema.TypeDateTime,
	"Vector3":  schema.TypeVector3,
}

func (p *parser) parseMessage() (*schema.Message, error) {
	if err := p.bump(); err != nil { // consume "message"
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	msg := &schema.Message{Name: name}
	seenIDs := make(map[int]string)

	for !(p.tok.kind == tokPunct && p.tok.text == "}") {
		if p.tok.kind == tokEOF {
			return nil, p.errorf("unexpected end of file in message %q", name)
		}
		field, err := p.parseField()
		if err != nil {
			return nil, err
		}
		if other, ok := seenIDs[field.ID]; ok {
			return nil, p.errorf("duplicate field id %d in message %q (fields %q and %q)", field.ID, name, other, field.Name)
		}
		seenIDs[field.ID] = field.Name
		msg.Fields = append(msg.Fields, *field)
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return msg, nil
}

func (p *parser) parseField() (*schema.Field, error) {
	field := &schema.Field{}

	if p.isKeyword("repeated") {
		field.Repeated = true
		if err := p.bump(); err != nil {
			return nil, err
		}
		if p.isKeyword("repeated") {
			return nil, p.errorf("repeated repeated is not permitted")
		}
	}

	typeName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if ft, ok := primitiveTypes[typeName]; ok {
		field.Type = ft
	} else {
		field.Type = schema.TypeStruct
		field.CustomType = typeName
	}

	fieldName, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	field.Name = fieldName

	if err := p.expectPunct("="); err != nil {
		return nil, err
	}
	if p.tok.kind != tokInt {
		return nil, p.errorf("expected field id, got %q", p.tok.text)
	}
	field.ID = p.tok.intVal
	if field.ID <= 0 {
		return nil, p.errorf("field id must be positive, got %d", field.ID)
	}
	if field.ID > 1024 {
		return nil, p.errorf("field id %d exceeds maximum of 1024", field.ID)
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return field, nil
}

func (p *parser) parseService() (*schema.Service, error) {
	if err := p.bump(); err != nil { // consume "service"
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}

	svc := &schema.Service{Name: name}
	for !(p.tok.kind == tokPunct && p.tok.text == "}") {
		if p.tok.kind == tokEOF {
			return nil, p.errorf("unexpected end of file in service %q", name)
		}
		method, err := p.parseMethod()
		if err != nil {
			return nil, err
		}
		svc.Methods = append(svc.Methods, *method)
	}
	if err := p.expectPunct("}"); err != nil {
		return nil, err
	}
	return svc, nil
}

func (p *parser) parseMethod() (*schema.Method, error) {
	if !p.isKeyword("rpc") {
		return nil, p.errorf("expected \"rpc\", got %q", p.tok.text)
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	reqType, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if !p.isKeyword("returns") {
		return nil, p.errorf("expected \"returns\", got %q", p.tok.text)
	}
	if err := p.bump(); err != nil {
		return nil, err
	}
	if err := p.expectPunct("("); err != nil {
		return nil, err
	}
	stream := false
	if p.isKeyword("stream") {
		stream = true
		if err := p.bump(); err != nil {
			return nil, err
		}
	}
	respType, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return &schema.Method{Name: name, RequestType: reqType, ResponseType: respType, ResponseStream: stream}, nil
}

// resolve performs the second pass: validating that every struct-ref
// field and every method request/response type names a message that
// was actually declared somewhere in the file (§4.1 error list).
func resolve(def *schema.ProtocolDefinition) error {
	for i := range def.Messages {
		msg := &def.Messages[i]
		if err := msg.Validate(); err != nil {
			return &SchemaError{Reason: err.Error()}
		}
		for _, f := range msg.Fields {
			if f.Type == schema.TypeStruct {
				if def.MessageByName(f.CustomType) == nil {
					return &SchemaError{Reason: fmt.Sprintf("message %s: field %s references unknown type %q", msg.Name, f.Name, f.CustomType)}
				}
			}
		}
	}
	for _, svc := range def.Services {
		for _, m := range svc.Methods {
			if def.MessageByName(m.RequestType) == nil {
				return &SchemaError{Reason: fmt.Sprintf("service %s: method %s references unknown request message %q", svc.Name, m.Name, m.RequestType)}
			}
			if def.MessageByName(m.ResponseType) == nil {
				return &SchemaError{Reason: fmt.Sprintf("service %s: method %s references unknown response message %q", svc.Name, m.Name, m.ResponseType)}
			}
		}
	}
	return nil
}
