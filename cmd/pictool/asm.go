package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pictool/pictool/pkg/asm"
	"github.com/pictool/pictool/pkg/diag"
	"github.com/pictool/pictool/pkg/object"
	"github.com/pictool/pictool/pkg/proc"
	"github.com/spf13/cobra"
)

var (
	asmProcessor    string
	asmOutputPath   string
	asmRelocatable  bool
	asmExtended     bool
	asmDefines      []string
	asmWarnAsError  int
	asmWarnPromote  int
)

// jsonStatement is the CLI-facing shape of asm.Statement: tokenizing
// real PIC assembly source is the lexer/parser external collaborator
// named in §6, out of this binary's scope, so the asm subcommand
// accepts the driver's own input contract serialized as JSON instead
// of source text.
type jsonStatement struct {
	File          string          `json:"file"`
	Line          int             `json:"line"`
	Label         string          `json:"label"`
	Mnemonic      string          `json:"mnemonic"`
	Operands      []jsonOperand   `json:"operands"`
	Directive     string          `json:"directive"`
	DirectiveName string          `json:"directiveName"`
	Value         int64           `json:"value"`
	Index         int             `json:"index"`
	RawBytes      []byte          `json:"rawBytes"`
}

type jsonOperand struct {
	Kind  string `json:"kind"`
	Value int64  `json:"value"`
	Name  string `json:"name"`
}

var asmCmd = &cobra.Command{
	Use:   "asm <statements.json>",
	Short: "Assemble a pre-parsed statement stream into an object file",
	Args:  cobra.ExactArgs(1),
	RunE:  runAsm,
}

func init() {
	asmCmd.Flags().StringVarP(&asmProcessor, "processor", "p", "PIC16F84A", "target processor")
	asmCmd.Flags().StringVarP(&asmOutputPath, "output", "o", "a.o", "output object path")
	asmCmd.Flags().BoolVar(&asmRelocatable, "relocatable", false, "emit relocations instead of resolving absolutely")
	asmCmd.Flags().BoolVar(&asmExtended, "extended", false, "target the extended PIC18 instruction set")
	asmCmd.Flags().StringArrayVarP(&asmDefines, "define", "D", nil, "NAME=VALUE command-line define")
	asmCmd.Flags().IntVar(&asmWarnAsError, "strict", 0, "upgrade diagnostics whose code is at or above this value to errors (0 disables)")
	asmCmd.Flags().IntVar(&asmWarnPromote, "warning-level", 0, "suppress diagnostics whose code is below this value (0 disables)")
}

func runAsm(cmd *cobra.Command, args []string) error {
	desc, err := proc.Lookup(asmProcessor)
	if err != nil {
		return fmt.Errorf("unknown processor %q: %w", asmProcessor, err)
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	var jstmts []jsonStatement
	if err := json.Unmarshal(raw, &jstmts); err != nil {
		return fmt.Errorf("parsing statement stream: %w", err)
	}

	defines, err := parseDefines(asmDefines)
	if err != nil {
		return err
	}

	mode := asm.ModeAbsolute
	if asmRelocatable {
		mode = asm.ModeRelocatable
	}

	sink := diag.NewSink(os.Stderr, asmWarnAsError, asmWarnPromote)
	driver := asm.New(asm.Options{Processor: desc, Mode: mode, Defines: defines, Extended: asmExtended}, sink)

	obj, err := driver.Assemble(toStatements(jstmts))
	if err != nil {
		return err
	}

	out, err := os.Create(asmOutputPath)
	if err != nil {
		return err
	}
	defer out.Close()
	return object.Write(out, obj)
}

func parseDefines(raw []string) (map[string]int64, error) {
	out := make(map[string]int64, len(raw))
	for _, d := range raw {
		name, value, ok := splitDefine(d)
		if !ok {
			return nil, fmt.Errorf("malformed -D define %q, expected NAME=VALUE", d)
		}
		out[name] = value
	}
	return out, nil
}

func splitDefine(d string) (string, int64, bool) {
	for i := 0; i < len(d); i++ {
		if d[i] == '=' {
			var value int64
			if _, err := fmt.Sscanf(d[i+1:], "%v", &value); err != nil {
				return "", 0, false
			}
			return d[:i], value, true
		}
	}
	return "", 0, false
}

var directiveKinds = map[string]asm.DirectiveKind{
	"processor": asm.DirProcessor,
	"config":    asm.DirConfig,
	"idlocs":    asm.DirIDLocs,
	"org":       asm.DirOrg,
	"section":   asm.DirSection,
	"end":       asm.DirEnd,
	"equ":       asm.DirEqu,
	"db":        asm.DirDB,
	"dw":        asm.DirDW,
}

var operandKinds = map[string]asm.OperandKind{
	"immediate": asm.OperandImmediate,
	"symbol":    asm.OperandSymbol,
	"filereg":   asm.OperandFileReg,
	"bit":       asm.OperandBitNumber,
	"wf":        asm.OperandWFBit,
}

func toStatements(in []jsonStatement) []asm.Statement {
	out := make([]asm.Statement, 0, len(in))
	for _, j := range in {
		s := asm.Statement{
			Pos:   asm.Position{File: j.File, Line: j.Line},
			Label: j.Label,
		}
		if j.Mnemonic != "" {
			s.IsInstruction = true
			s.Mnemonic = j.Mnemonic
			for _, op := range j.Operands {
				s.Operands = append(s.Operands, asm.Operand{
					Kind:  operandKinds[op.Kind],
					Value: op.Value,
					Name:  op.Name,
				})
			}
		}
		if j.Directive != "" {
			s.IsDirective = true
			s.Directive = asm.Directive{
				Kind:     directiveKinds[j.Directive],
				Name:     j.DirectiveName,
				Value:    j.Value,
				Index:    j.Index,
				RawBytes: j.RawBytes,
			}
		}
		out = append(out, s)
	}
	return out
}
