package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const echoProtocol = `
namespace bitrpc.echo

message EchoRequest {
    string message = 1;
    int32 timestamp = 2;
}

message EchoResponse {
    string message = 1;
    int32 timestamp = 2;
    string server_time = 3;
}

service EchoService {
    rpc Echo(EchoRequest) returns (EchoResponse);
}
`

func writeProtocol(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "echo.pdl")
	if err := os.WriteFile(path, []byte(echoProtocol), 0o644); err != nil {
		t.Fatalf("write protocol file: %v", err)
	}
	return path
}

func writeConfig(t *testing.T, dir string, cfg Config) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestRunValidateAcceptsWellFormedProtocol(t *testing.T) {
	dir := t.TempDir()
	protocolPath := writeProtocol(t, dir)
	configPath := writeConfig(t, dir, Config{ProtocolFile: protocolPath})

	if err := runValidate(configPath); err != nil {
		t.Fatalf("runValidate: %v", err)
	}
}

func TestRunGenerateEmitsGoTarget(t *testing.T) {
	dir := t.TempDir()
	protocolPath := writeProtocol(t, dir)
	outDir := filepath.Join(dir, "out")
	configPath := writeConfig(t, dir, Config{
		ProtocolFile: protocolPath,
		Targets: []TargetConfig{
			{Language: "go", Enabled: true, Namespace: "echopb", OutputDir: outDir},
			{Language: "csharp", Enabled: false, Namespace: "Bitrpc.Echo", OutputDir: filepath.Join(dir, "cs")},
		},
	})

	if err := runGenerate(configPath); err != nil {
		t.Fatalf("runGenerate: %v", err)
	}

	types, err := os.ReadFile(filepath.Join(outDir, "types.go"))
	if err != nil {
		t.Fatalf("expected types.go to be written: %v", err)
	}
	if !strings.Contains(string(types), "package echopb") {
		t.Errorf("types.go missing expected package clause:\n%s", types)
	}
	if _, err := os.Stat(filepath.Join(outDir, "service_echoService.go")); err != nil {
		t.Errorf("expected service_echoService.go to be written: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "cs")); err == nil {
		t.Errorf("disabled target must not produce output")
	}
}

func TestRunGenerateRejectsUnknownTarget(t *testing.T) {
	dir := t.TempDir()
	protocolPath := writeProtocol(t, dir)
	configPath := writeConfig(t, dir, Config{
		ProtocolFile: protocolPath,
		Targets: []TargetConfig{
			{Language: "rust", Enabled: true, OutputDir: filepath.Join(dir, "rust")},
		},
	})

	if err := runGenerate(configPath); err == nil {
		t.Fatalf("expected an error for an unknown target language")
	}
}

func TestLoadConfigRequiresProtocolFile(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, dir, Config{})
	if _, err := loadConfig(configPath); err == nil {
		t.Fatalf("expected an error when protocol_file is missing")
	}
}
