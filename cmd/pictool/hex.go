package main

import (
	"fmt"
	"os"

	"github.com/pictool/pictool/pkg/hexfmt"
	"github.com/pictool/pictool/pkg/object"
	"github.com/spf13/cobra"
)

var (
	hexFormat  string
	hexOutput  string
	hexNewline string
)

var hexCmd = &cobra.Command{
	Use:   "hex <input.o>",
	Short: "Convert a linked object's ROM image to an Intel-hex-derived format",
	Args:  cobra.ExactArgs(1),
	RunE:  runHex,
}

func init() {
	hexCmd.Flags().StringVarP(&hexFormat, "format", "f", "inhx32", "hex format: inhx8m, inhx16, inhx32")
	hexCmd.Flags().StringVarP(&hexOutput, "output", "o", "", "output hex path (default: input with .hex suffix)")
	hexCmd.Flags().StringVar(&hexNewline, "newline", "crlf", "line terminator: lf, crlf")
}

func runHex(cmd *cobra.Command, args []string) error {
	format, err := hexfmt.Lookup(hexFormat)
	if err != nil {
		return err
	}
	nl := hexfmt.LF
	if hexNewline == "crlf" {
		nl = hexfmt.CRLF
	}

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	obj, err := object.Read(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("reading object %s: %w", args[0], err)
	}

	mem := romImage(obj)

	outPath := hexOutput
	if outPath == "" {
		outPath = args[0] + ".hex"
	}
	out, err := os.Create(outPath)
	if err != nil {
		return err
	}
	defer out.Close()

	return hexfmt.Write(out, mem, format, nl)
}
