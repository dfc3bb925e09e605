//go:build !wasm

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ormc",
	Short: "lazyorm code generator and row scanner",
	Long: `ormc generates lazyorm model code for the structs of model.go / models.go
files, and streams JSONL files through a lazyorm cursor.

Examples:
  ormc generate
  ormc generate --root ./internal
  ormc scan users.jsonl --offset 10 --limit 5
  ormc scan users.jsonl --list --format spew`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(scanCmd)
}

// stderrLog is the SetLog target of every command.
func stderrLog(messages ...any) {
	fmt.Fprintln(os.Stderr, messages...)
}
