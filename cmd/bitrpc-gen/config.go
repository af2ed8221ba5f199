package main

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config is the generator CLI's JSON input (§6.5): a protocol file and a
// list of target languages, each independently enabled or disabled.
type Config struct {
	ProtocolFile string          `json:"protocol_file"`
	Targets      []TargetConfig  `json:"targets"`
}

// TargetConfig describes one emission target.
type TargetConfig struct {
	Language      string            `json:"language"`
	Enabled       bool              `json:"enabled"`
	Namespace     string            `json:"namespace"`
	OutputDir     string            `json:"output_dir"`
	RuntimeSource string            `json:"runtime_source"`
	Options       map[string]string `json:"options"`
}

// loadConfig reads and parses the JSON config at path.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.ProtocolFile == "" {
		return nil, fmt.Errorf("config %s: protocol_file is required", path)
	}
	return &cfg, nil
}
