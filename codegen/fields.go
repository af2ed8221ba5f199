package codegen

import (
	"fmt"

	"github.com/vgp7758/bitrpc/schema"
)

// buildFieldModel computes one field's Go type, bitmask position, and
// the three snippets (default-test, write, read) its message's
// MarshalBody/UnmarshalBody template blocks splice in directly.
//
// Struct-ref fields call the referenced type's own generated
// MarshalBody/UnmarshalBody methods rather than going through a
// typeregistry.Registry lookup: the referenced Go type is known
// statically at generation time, so there is no need to pay a runtime
// lookup the way the reflective MessageHandler must (it only learns a
// nested field's concrete type at Write/Read time).
func buildFieldModel(pd *schema.ProtocolDefinition, f schema.Field) (*fieldModel, error) {
	idx := f.WireIndex()
	fm := &fieldModel{
		SchemaName: f.Name,
		GoName:     schema.GoFieldName(f.Name),
		Group:      idx / 32,
		Bit:        uint(idx % 32),
	}

	elemType, err := goElemType(pd, f)
	if err != nil {
		return nil, err
	}
	if f.Repeated {
		fm.GoType = "[]" + elemType
	} else {
		fm.GoType = elemType
	}

	target := "m." + fm.GoName
	if f.Repeated {
		fm.DefaultExpr = fmt.Sprintf("len(%s) == 0", target)
		fm.WriteStmts = repeatedWriteStmts(f, target)
		fm.ReadStmts = repeatedReadStmts(f, elemType, target)
	} else {
		fm.DefaultExpr = scalarDefaultExpr(f, target)
		fm.WriteStmts = []string{scalarWriteStmt(f, target)}
		fm.ReadStmts = scalarReadStmts(f, target)
	}
	return fm, nil
}

func goElemType(pd *schema.ProtocolDefinition, f schema.Field) (string, error) {
	switch f.Type {
	case schema.TypeI32:
		return "int32", nil
	case schema.TypeI64:
		return "int64", nil
	case schema.TypeF32:
		return "float32", nil
	case schema.TypeF64:
		return "float64", nil
	case schema.TypeBool:
		return "bool", nil
	case schema.TypeString:
		return "string", nil
	case schema.TypeBytes:
		return "[]byte", nil
	case schema.TypeDateTime:
		return "time.Time", nil
	case schema.TypeVector3:
		return "wire.Vector3", nil
	case schema.TypeStruct:
		if pd.MessageByName(f.CustomType) == nil {
			return "", fmt.Errorf("field %s: struct-ref %s is not a defined message", f.Name, f.CustomType)
		}
		return f.CustomType, nil
	default:
		return "", fmt.Errorf("field %s: unsupported field type %v", f.Name, f.Type)
	}
}

func scalarDefaultExpr(f schema.Field, target string) string {
	if f.Type == schema.TypeStruct {
		return target + ".IsDefault()"
	}
	switch f.Type {
	case schema.TypeI32, schema.TypeI64, schema.TypeF32, schema.TypeF64:
		return target + " == 0"
	case schema.TypeBool:
		return "!" + target
	case schema.TypeString, schema.TypeBytes:
		return "len(" + target + ") == 0"
	case schema.TypeDateTime:
		return target + ".Unix() == 0"
	case schema.TypeVector3:
		return target + ".IsZero()"
	default:
		return "false"
	}
}

func scalarWriteStmt(f schema.Field, target string) string {
	if f.Type == schema.TypeStruct {
		return fmt.Sprintf("\t\tif err := %s.MarshalBody(w); err != nil {\n\t\t\treturn err\n\t\t}", target)
	}
	switch f.Type {
	case schema.TypeI32:
		return fmt.Sprintf("\t\tw.WriteI32(%s)", target)
	case schema.TypeI64:
		return fmt.Sprintf("\t\tw.WriteI64(%s)", target)
	case schema.TypeF32:
		return fmt.Sprintf("\t\tw.WriteF32(%s)", target)
	case schema.TypeF64:
		return fmt.Sprintf("\t\tw.WriteF64(%s)", target)
	case schema.TypeBool:
		return fmt.Sprintf("\t\tw.WriteBool(%s)", target)
	case schema.TypeString:
		return fmt.Sprintf("\t\tw.WriteString(%s)", target)
	case schema.TypeBytes:
		return fmt.Sprintf("\t\tw.WriteBytes(%s)", target)
	case schema.TypeDateTime:
		return fmt.Sprintf("\t\tw.WriteDateTime(%s.Unix())", target)
	case schema.TypeVector3:
		return fmt.Sprintf("\t\tw.WriteVector3(%s)", target)
	default:
		return "\t\t// unsupported field type"
	}
}

func scalarReadStmts(f schema.Field, target string) []string {
	if f.Type == schema.TypeStruct {
		return []string{fmt.Sprintf(
			"\t\tif err := %s.UnmarshalBody(r); err != nil {\n\t\t\treturn err\n\t\t}", target)}
	}
	var call string
	switch f.Type {
	case schema.TypeI32:
		call = "r.ReadI32()"
	case schema.TypeI64:
		call = "r.ReadI64()"
	case schema.TypeF32:
		call = "r.ReadF32()"
	case schema.TypeF64:
		call = "r.ReadF64()"
	case schema.TypeBool:
		call = "r.ReadBool()"
	case schema.TypeString:
		call = "r.ReadString()"
	case schema.TypeBytes:
		call = "r.ReadBytes()"
	case schema.TypeVector3:
		call = "r.ReadVector3()"
	case schema.TypeDateTime:
		return []string{fmt.Sprintf(
			"\t\t{\n\t\t\tsec, err := r.ReadDateTime()\n\t\t\tif err != nil {\n\t\t\t\treturn err\n\t\t\t}\n\t\t\t%s = time.Unix(sec, 0).UTC()\n\t\t}", target)}
	default:
		return []string{"\t\t// unsupported field type"}
	}
	return []string{fmt.Sprintf(
		"\t\t{\n\t\t\tv, err := %s\n\t\t\tif err != nil {\n\t\t\t\treturn err\n\t\t\t}\n\t\t\t%s = v\n\t\t}", call, target)}
}

func repeatedWriteStmts(f schema.Field, target string) []string {
	header := fmt.Sprintf("\t\tw.WriteI32(int32(len(%s)))", target)
	if f.Type == schema.TypeStruct {
		body := fmt.Sprintf(
			"\t\tfor i := range %s {\n\t\t\tif err := %s[i].MarshalBody(w); err != nil {\n\t\t\t\treturn err\n\t\t\t}\n\t\t}", target, target)
		return []string{header, body}
	}
	elemStmt := scalarWriteStmt(stripRepeated(f), "v")
	body := fmt.Sprintf("\t\tfor _, v := range %s {\n%s\n\t\t}", target, elemStmt)
	return []string{header, body}
}

func repeatedReadStmts(f schema.Field, elemType, target string) []string {
	count := fmt.Sprintf(
		"\t\tn, err := r.ReadI32()\n\t\tif err != nil {\n\t\t\treturn err\n\t\t}\n\t\t%s = make([]%s, n)", target, elemType)
	if f.Type == schema.TypeStruct {
		body := fmt.Sprintf(
			"\t\tfor i := range %s {\n\t\t\tif err := %s[i].UnmarshalBody(r); err != nil {\n\t\t\t\treturn err\n\t\t\t}\n\t\t}", target, target)
		return []string{count, body}
	}
	body := fmt.Sprintf(
		"\t\tfor i := range %s {\n%s\n\t\t}", target, indexedAssign(f, target))
	return []string{count, body}
}

// stripRepeated returns a copy of f with Repeated cleared, used when
// delegating to the scalar write/read helpers for one element.
func stripRepeated(f schema.Field) schema.Field {
	f.Repeated = false
	return f
}

// indexedAssign builds the read statements for one element of a
// repeated scalar field, assigning the decoded value to target[i]. It
// is used by repeatedReadStmts inside its per-element loop and builds
// the read call from readCallExpr (DateTime gets its own block).
func indexedAssign(f schema.Field, target string) string {
	elemTarget := target + "[i]"
	switch f.Type {
	case schema.TypeDateTime:
		return fmt.Sprintf(
			"\t\t\tsec, err := r.ReadDateTime()\n\t\t\tif err != nil {\n\t\t\t\treturn err\n\t\t\t}\n\t\t\t%s = time.Unix(sec, 0).UTC()", elemTarget)
	default:
		call := readCallExpr(f)
		return fmt.Sprintf(
			"\t\t\tv, err := %s\n\t\t\tif err != nil {\n\t\t\t\treturn err\n\t\t\t}\n\t\t\t%s = v", call, elemTarget)
	}
}

func readCallExpr(f schema.Field) string {
	switch f.Type {
	case schema.TypeI32:
		return "r.ReadI32()"
	case schema.TypeI64:
		return "r.ReadI64()"
	case schema.TypeF32:
		return "r.ReadF32()"
	case schema.TypeF64:
		return "r.ReadF64()"
	case schema.TypeBool:
		return "r.ReadBool()"
	case schema.TypeString:
		return "r.ReadString()"
	case schema.TypeBytes:
		return "r.ReadBytes()"
	case schema.TypeVector3:
		return "r.ReadVector3()"
	default:
		return "nil, nil"
	}
}
