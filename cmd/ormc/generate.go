//go:build !wasm

package main

import (
	"github.com/spf13/cobra"
	"github.com/tinywasm/lazyorm"
)

var generateRoot string

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate <file>_orm.go next to every model.go / models.go",
	Args:  cobra.NoArgs,
	RunE:  runGenerate,
}

func init() {
	generateCmd.Flags().StringVar(&generateRoot, "root", ".", "Directory to scan for model files")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	o := lazyorm.NewOrmc()
	o.SetLog(stderrLog)
	o.SetRootDir(generateRoot)
	return o.Run()
}
