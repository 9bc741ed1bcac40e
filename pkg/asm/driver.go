package asm

import (
	"fmt"

	"github.com/pictool/pictool/internal/xerrors"
	"github.com/pictool/pictool/pkg/codec"
	"github.com/pictool/pictool/pkg/diag"
	"github.com/pictool/pictool/pkg/object"
	"github.com/pictool/pictool/pkg/proc"
	"github.com/pictool/pictool/pkg/symtab"
)

// Mode selects how branches to external symbols are handled.
type Mode int

const (
	ModeAbsolute Mode = iota
	ModeRelocatable
)

// Options configures one assembly run.
type Options struct {
	Processor proc.Descriptor
	Mode      Mode
	Defines   map[string]int64 // command-line -D defines, seeded into stDefines each pass
	Extended  bool             // F_EXTENDED18
}

// Driver runs the two-pass assembler over a fixed statement stream.
// Per the driver's ordering guarantees, pass 1 only builds symbol
// tables; pass 2 performs all emission, so every forward reference
// resolves correctly without a third pass.
type Driver struct {
	opts Options
	cat  *codec.Catalog
	sink *diag.Sink

	stBuiltin *symtab.Table
	stTop     *symtab.Table
	stGlobal  *symtab.Table
	stDefines *symtab.Table

	obj *object.Object

	curSection int // index into obj.Sections, -1 if none active
	org        uint32

	cinitFound  bool
	configFound bool
	idlocsFound bool
	endFound    bool
}

// New creates a driver targeting opts.Processor, reporting diagnostics
// to sink.
func New(opts Options, sink *diag.Sink) *Driver {
	cat := codec.PIC14Catalog()
	if opts.Processor.Class == proc.ClassPIC16 || opts.Processor.Class == proc.ClassPIC16E {
		cat = codec.PIC16Catalog()
	}
	return &Driver{opts: opts, cat: cat, sink: sink}
}

// Assemble runs both passes over stmts and returns the resulting
// object. Errors are reported to the sink; whenever any error
// diagnostic was reported, Assemble also returns a non-nil error,
// together with the object as built.
func (d *Driver) Assemble(stmts []Statement) (*object.Object, error) {
	d.stBuiltin = symtab.New(true) // directives/opcodes are case-insensitive
	d.seedBuiltins()

	d.obj = object.New(d.opts.Processor.Name, d.opts.Processor.Class.String())
	d.obj.ROMWidth = d.opts.Processor.BytesPerWord()
	d.obj.RAMWidth = 1

	d.pass1(stmts)
	d.stDefines = symtab.New(false)
	for name, v := range d.opts.Defines {
		d.stDefines.Insert(name, v, nil)
	}
	d.stTop = symtab.New(false)
	d.curSection = -1
	d.org = 0
	d.cinitFound, d.configFound, d.idlocsFound, d.endFound = false, false, false, false

	d.pass2(stmts)

	if d.opts.Extended {
		d.obj.Flags |= object.FlagExtended18
	}
	if d.opts.Mode == ModeAbsolute {
		d.obj.Flags |= object.FlagAbsolute
	}

	if d.sink.HasErrors() {
		return d.obj, fmt.Errorf("assembly failed with %d error(s)", mustCount(d.sink))
	}
	return d.obj, nil
}

func mustCount(sink *diag.Sink) int {
	errs, _ := sink.Counts()
	return errs
}

// seedBuiltins registers every catalog mnemonic and the supported
// directive names into stBuiltin, case-insensitively, per pass 1's
// seeding contract.
func (d *Driver) seedBuiltins() {
	for _, m := range d.cat.Mnemonics() {
		d.stBuiltin.Insert(m, 0, "mnemonic")
	}
	for _, directive := range []string{"processor", "config", "__config", "idlocs", "__idlocs", "org", "end", "equ", "db", "dw", "section"} {
		d.stBuiltin.Insert(directive, 0, "directive")
	}
}

// pass1 walks the statement stream once, recording every label's word
// address (advanced by each instruction's word count and reset by org
// directives) into stGlobal. Macro and while bodies are not captured.
// Forward references resolve because pass 2 runs after this table is
// complete.
func (d *Driver) pass1(stmts []Statement) {
	// org tracks the word address (not byte address) a label would be
	// assigned, to match the unit pass 2's stTop entries use (see
	// defineLabel): the instruction codec's operands are themselves
	// word addresses (org), never byte addresses.
	st := symtab.New(false)
	org := uint32(0)
	for _, s := range stmts {
		if s.Label != "" {
			st.Insert(s.Label, int64(org), nil)
		}
		if s.IsInstruction {
			org += uint32(d.wordsFor(s.Mnemonic))
		}
		if s.IsDirective && s.Directive.Kind == DirOrg {
			org = uint32(s.Directive.Value)
		}
	}
	d.stGlobal = st
}

func (d *Driver) wordsFor(mnemonic string) int {
	if e, ok := d.cat.Lookup(mnemonic); ok {
		return e.WordsEmitted
	}
	return 1
}

// pass2 resets all pass-1-only state and re-walks the statements,
// this time emitting into the active section: instructions are
// encoded via the codec and relocations recorded for any symbol
// operand (when Mode is ModeRelocatable) or resolved immediately and
// folded into the instruction word (when ModeAbsolute).
func (d *Driver) pass2(stmts []Statement) {
	for _, s := range stmts {
		if s.Label != "" {
			d.defineLabel(s.Label, s.Pos)
		}
		switch {
		case s.IsInstruction:
			d.emitInstruction(s)
		case s.IsDirective:
			d.emitDirective(s)
		}
	}

	if !d.endFound {
		d.report(diag.SeverityWarning, s0Pos(stmts), "missing END directive")
	}
}

func s0Pos(stmts []Statement) Position {
	if len(stmts) == 0 {
		return Position{}
	}
	return stmts[len(stmts)-1].Pos
}

func (d *Driver) defineLabel(name string, pos Position) {
	if d.curSection < 0 {
		d.report(diag.SeverityError, pos, fmt.Sprintf("label %q defined outside any section", name))
		return
	}
	d.obj.AddSymbol(object.Symbol{
		Name:    name,
		Value:   int64(d.org),
		Class:   object.ClassLabel,
		Section: d.curSection,
	})
	d.stTop.Insert(name, int64(d.org), nil)
}

func (d *Driver) report(sev diag.Severity, pos Position, msg string) {
	d.sink.Report(diag.Diagnostic{
		Severity: sev,
		Kind:     diag.KindSource,
		Pos:      xerrors.Position{File: pos.File, Line: pos.Line},
		Message:  msg,
	})
}
