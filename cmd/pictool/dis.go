package main

import (
	"bufio"
	"fmt"
	"os"

	"github.com/pictool/pictool/pkg/disasm"
	"github.com/pictool/pictool/pkg/object"
	"github.com/pictool/pictool/pkg/proc"
	"github.com/spf13/cobra"
)

var (
	disProcessor string
	disStrict    bool
	disOutput    string
)

var disCmd = &cobra.Command{
	Use:   "dis <input.o>",
	Short: "Disassemble an object file into a printable instruction listing",
	Args:  cobra.ExactArgs(1),
	RunE:  runDis,
}

func init() {
	disCmd.Flags().StringVarP(&disProcessor, "processor", "p", "PIC16F84A", "target processor")
	disCmd.Flags().BoolVar(&disStrict, "strict", false, "rewrite consecutive RETLW data tables as dt pseudo-ops")
	disCmd.Flags().StringVarP(&disOutput, "output", "o", "", "output listing path (default stdout)")
}

func runDis(cmd *cobra.Command, args []string) error {
	desc, err := proc.Lookup(disProcessor)
	if err != nil {
		return fmt.Errorf("unknown processor %q: %w", disProcessor, err)
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
	programWords := highestROMOrg(obj, desc)

	lines := disasm.Disassemble(mem, disasm.Options{Processor: desc, Strict: disStrict}, programWords)

	out := os.Stdout
	if disOutput != "" {
		f, err := os.Create(disOutput)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	w := bufio.NewWriter(out)
	defer w.Flush()
	for _, line := range lines {
		fmt.Fprintf(w, "0x%04X\t%s\n", line.Address, line.Text)
	}
	return nil
}

func highestROMOrg(obj *object.Object, desc proc.Descriptor) uint32 {
	var highest uint32
	for _, sec := range obj.Sections {
		if !sec.Flags.Has(object.SectionROMArea) {
			continue
		}
		end := (sec.Address + sec.Size) / desc.BytesPerWord()
		if end > highest {
			highest = end
		}
	}
	return highest
}
