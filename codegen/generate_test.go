package codegen

import (
	"strings"
	"testing"

	"github.com/vgp7758/bitrpc/schema"
)

func samplePD() *schema.ProtocolDefinition {
	return &schema.ProtocolDefinition{
		Namespace: "echopb",
		Messages: []schema.Message{
			{
				Name: "Point",
				Fields: []schema.Field{
					{Name: "x", ID: 1, Type: schema.TypeF32},
					{Name: "y", ID: 2, Type: schema.TypeF32},
				},
			},
			{
				Name: "EchoRequest",
				Fields: []schema.Field{
					{Name: "message", ID: 1, Type: schema.TypeString},
					{Name: "timestamp", ID: 2, Type: schema.TypeI32},
					{Name: "waypoints", ID: 3, Type: schema.TypeStruct, CustomType: "Point", Repeated: true},
					{Name: "created_at", ID: 4, Type: schema.TypeDateTime},
				},
			},
			{
				Name: "EchoResponse",
				Fields: []schema.Field{
					{Name: "message", ID: 1, Type: schema.TypeString},
					{Name: "timestamp", ID: 2, Type: schema.TypeI32},
				},
			},
		},
		Services: []schema.Service{
			{
				Name: "Echo",
				Methods: []schema.Method{
					{Name: "Echo", RequestType: "EchoRequest", ResponseType: "EchoResponse"},
					{Name: "Count", RequestType: "EchoRequest", ResponseType: "EchoResponse", ResponseStream: true},
				},
			},
		},
	}
}

func TestGenerateProducesExpectedFiles(t *testing.T) {
	files, err := Generate(samplePD(), "echopb")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if _, ok := files["types.go"]; !ok {
		t.Fatalf("expected types.go in output, got %v", keysOf(files))
	}
	if _, ok := files["service_echo.go"]; !ok {
		t.Fatalf("expected service_echo.go in output, got %v", keysOf(files))
	}
}

func TestGenerateTypesFileContent(t *testing.T) {
	files, err := Generate(samplePD(), "echopb")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	src := string(files["types.go"])

	for _, want := range []string{
		"package echopb",
		"type EchoRequest struct",
		"Message string",
		"Timestamp int32",
		"Waypoints []Point",
		"CreatedAt time.Time",
		"func (m EchoRequest) MarshalBody(w *wire.Writer) error",
		"func (m *EchoRequest) UnmarshalBody(r *wire.Reader) error",
		"func RegisterTypes(reg *typeregistry.Registry) error",
		"reg.Register(EchoRequestTypeHandler{})",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("types.go missing %q\n--- generated ---\n%s", want, src)
		}
	}
}

func TestGenerateServiceFileContent(t *testing.T) {
	files, err := Generate(samplePD(), "echopb")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	src := string(files["service_echo.go"])

	for _, want := range []string{
		"type EchoServer interface",
		"Echo(ctx context.Context, req EchoRequest) (EchoResponse, error)",
		"Count(ctx context.Context, req EchoRequest, send func(EchoResponse) error) error",
		"func RegisterEchoHandlers(mgr *rpcserver.ServiceManager, impl EchoServer) error",
		"svc.RegisterStream(\"Count\"",
		"svc.RegisterUnarySync(\"Echo\"",
		"type EchoClient struct",
		"func NewEchoClient(c *rpcclient.Client) *EchoClient",
		"func (c *EchoClient) Count(req EchoRequest) (*rpcclient.StreamReader, error)",
	} {
		if !strings.Contains(src, want) {
			t.Errorf("service_echo.go missing %q\n--- generated ---\n%s", want, src)
		}
	}
}

func TestGenerateRejectsUnknownStructRef(t *testing.T) {
	pd := &schema.ProtocolDefinition{
		Namespace: "bad",
		Messages: []schema.Message{
			{Name: "M", Fields: []schema.Field{
				{Name: "ref", ID: 1, Type: schema.TypeStruct, CustomType: "DoesNotExist"},
			}},
		},
	}
	if _, err := Generate(pd, "bad"); err == nil {
		t.Fatalf("expected an error for an undefined struct-ref type")
	}
}

func TestGenerateRequiresAPackageName(t *testing.T) {
	pd := &schema.ProtocolDefinition{Messages: []schema.Message{{Name: "M"}}}
	if _, err := Generate(pd, ""); err == nil {
		t.Fatalf("expected an error when neither goPackage nor the protocol namespace is set")
	}
}

func keysOf(files Files) []string {
	out := make([]string, 0, len(files))
	for k := range files {
		out = append(out, k)
	}
	return out
}
