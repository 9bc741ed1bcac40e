package main

import (
	"fmt"
	"os"

	"github.com/pictool/pictool/pkg/disasm"
	"github.com/pictool/pictool/pkg/object"
	"github.com/spf13/cobra"
)

var (
	stripOutputPath  string
	stripKeepLines   bool
	stripKeepDebug   bool
)

var stripCmd = &cobra.Command{
	Use:   "strip <input.o>",
	Short: "Remove debug-only symbols, line numbers and aux records from an object",
	Args:  cobra.ExactArgs(1),
	RunE:  runStrip,
}

func init() {
	stripCmd.Flags().StringVarP(&stripOutputPath, "output", "o", "", "output path (default: overwrite input)")
	stripCmd.Flags().BoolVar(&stripKeepLines, "keep-lines", false, "keep line-number tables")
	stripCmd.Flags().BoolVar(&stripKeepDebug, "keep-debug", false, "keep DEBUG aux records")
}

func runStrip(cmd *cobra.Command, args []string) error {
	inPath := args[0]
	f, err := os.Open(inPath)
	if err != nil {
		return err
	}
	obj, err := object.Read(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("reading object %s: %w", inPath, err)
	}

	disasm.Strip(obj, disasm.StripOptions{
		RemoveFileSymbols: true,
		RemoveLineNumbers: !stripKeepLines,
		RemoveDebugAux:    !stripKeepDebug,
	})

	outPath := stripOutputPath
	if outPath == "" {
		outPath = inPath
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()
	return object.Write(out, obj)
}
