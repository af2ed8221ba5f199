package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vgp7758/bitrpc/pdl"
)

func validateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Parse and typecheck the protocol file without emitting any target",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(*configPath)
		},
	}
}

func runValidate(configPath string) error {
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
	for _, msg := range pd.Messages {
		if err := msg.Validate(); err != nil {
			return fmt.Errorf("validate: %w", err)
		}
	}

	fmt.Printf("%s: ok (%d messages, %d services)\n", cfg.ProtocolFile, len(pd.Messages), len(pd.Services))
	return nil
}
