package codegen

import (
	"bytes"
	"embed"
	"fmt"
	"text/template"

	"github.com/vgp7758/bitrpc/schema"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

// typesFileData is the template data for templates/types.go.tmpl.
type typesFileData struct {
	Package     string
	Messages    []*messageModel
	NeedsTime   bool
}

// serviceFileData is the template data for templates/service.go.tmpl.
type serviceFileData struct {
	Package string
	*serviceModel
}

// Files is the set of Go source files one Generate call produces,
// keyed by filename (e.g. "types.go", "service_echo.go").
type Files map[string][]byte

// Generate renders pd into a Go package named goPackage: one types.go
// holding every message's value type and TypeHandler shim, plus one
// service_<name>.go per declared service holding its server interface,
// dispatch-registration helper, and client stub (§4.5).
func Generate(pd *schema.ProtocolDefinition, goPackage string) (Files, error) {
	if goPackage == "" {
		goPackage = pd.Namespace
	}
	if goPackage == "" {
		return nil, fmt.Errorf("codegen: no Go package name given and protocol has no namespace")
	}

	files := make(Files)

	data := typesFileData{Package: goPackage}
	for i := range pd.Messages {
		mm, err := buildMessageModel(pd, &pd.Messages[i])
		if err != nil {
			return nil, err
		}
		data.Messages = append(data.Messages, mm)
		if mm.NeedsTime {
			data.NeedsTime = true
		}
	}
	var typesBuf bytes.Buffer
	if err := templates.ExecuteTemplate(&typesBuf, "types.go.tmpl", data); err != nil {
		return nil, fmt.Errorf("codegen: render types.go: %w", err)
	}
	files["types.go"] = typesBuf.Bytes()

	for i := range pd.Services {
		svc := &pd.Services[i]
		sm := buildServiceModel(svc)
		sd := serviceFileData{Package: goPackage, serviceModel: sm}
		var buf bytes.Buffer
		if err := templates.ExecuteTemplate(&buf, "service.go.tmpl", sd); err != nil {
			return nil, fmt.Errorf("codegen: render service %s: %w", svc.Name, err)
		}
		files[fmt.Sprintf("service_%s.go", lowerFirst(svc.Name))] = buf.Bytes()
	}

	return files, nil
}

func lowerFirst(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'A' && b[0] <= 'Z' {
		b[0] += 'a' - 'A'
	}
	return string(b)
}
