// Command bitrpc-gen drives the §4.5 target emitter from a JSON config
// (§6.5): parse a .pdl protocol file, emit one target's Go source per
// enabled entry, and copy that target's runtime alongside it.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "bitrpc-gen",
		Short: "Generate target-language bindings from a BitRPC protocol definition",
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the generator JSON config (required)")
	root.MarkPersistentFlagRequired("config")

	root.AddCommand(generateCmd(&configPath))
	root.AddCommand(validateCmd(&configPath))
	return root
}
