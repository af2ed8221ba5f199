package main

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vgp7758/bitrpc/codegen"
	"github.com/vgp7758/bitrpc/pdl"
	"github.com/vgp7758/bitrpc/schema"
)

func generateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Parse the protocol file and emit bindings for every enabled target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(*configPath)
		},
	}
}

func runGenerate(configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	src, err := os.ReadFile(cfg.ProtocolFile)
	if err != nil {
		return fmt.Errorf("read protocol file %s: %w", cfg.ProtocolFile, err)
	}
	pd, err := pdl.Parse(cfg.ProtocolFile, string(src))
	if err != nil {
		return fmt.Errorf("parse protocol: %w", err)
	}

	for _, t := range cfg.Targets {
		if !t.Enabled {
			continue
		}
		if err := emitTarget(pd, t); err != nil {
			return fmt.Errorf("target %s: %w", t.Language, err)
		}
	}
	return nil
}

func emitTarget(pd *schema.ProtocolDefinition, t TargetConfig) error {
	switch t.Language {
	case "go":
		return emitGoTarget(pd, t)
	default:
		return fmt.Errorf("unknown target language %q", t.Language)
	}
}

func emitGoTarget(pd *schema.ProtocolDefinition, t TargetConfig) error {
	files, err := codegen.Generate(pd, t.Namespace)
	if err != nil {
		return fmt.Errorf("codegen: %w", err)
	}
	if err := os.MkdirAll(t.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir %s: %w", t.OutputDir, err)
	}
	for name, content := range files {
		path := filepath.Join(t.OutputDir, name)
		if err := os.WriteFile(path, content, 0o644); err != nil {
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	if t.RuntimeSource != "" {
		if err := copyRuntime(t.RuntimeSource, filepath.Join(t.OutputDir, "runtime")); err != nil {
			return fmt.Errorf("copy runtime: %w", err)
		}
	}
	return nil
}

// copyRuntime copies the target language's hand-written runtime support
// files (§6.5's "runtime source path to copy") into dst, preserving the
// source tree's structure.
func copyRuntime(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	_, err = io.Copy(out, in)
	return err
}
