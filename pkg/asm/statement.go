// Package asm implements the two-pass assembler driver: given a
// stream of already-parsed statements (the parser itself is an
// external collaborator per the driver's contract; tokenizing PIC
// assembly syntax is out of this package's scope), it builds an
// object.Object with sections, symbols and relocations.
package asm

import "github.com/pictool/pictool/pkg/object"

// OperandKind distinguishes how an operand's value must be
// interpreted and, when it names a symbol, what relocation (if any) it
// requires once the target is known.
type OperandKind int

const (
	OperandImmediate OperandKind = iota
	OperandSymbol
	OperandFileReg
	OperandBitNumber
	OperandWFBit // destination W/F selector
)

// Operand is one parsed instruction or directive argument.
type Operand struct {
	Kind  OperandKind
	Value int64  // meaningful for OperandImmediate/OperandFileReg/OperandBitNumber/OperandWFBit
	Name  string // meaningful for OperandSymbol
}

// DirectiveKind names one of the supplemented assembler directives
// (§ SUPPLEMENTED FEATURES): device selection, configuration words,
// ID locations, section switches and termination.
type DirectiveKind int

const (
	DirProcessor DirectiveKind = iota
	DirConfig
	DirIDLocs
	DirOrg
	DirSection
	DirEnd
	DirEqu
	DirDB
	DirDW
)

// Directive is one parsed assembler directive.
type Directive struct {
	Kind     DirectiveKind
	Name     string // section name for DirSection, symbol name for DirEqu
	Value    int64  // config word / idloc index value / org address / equ value
	Index    int    // which config/idloc word, for DirConfig/DirIDLocs
	RawBytes []byte // literal bytes for DirDB/DirDW
}

// Statement is one line of parsed source: a label definition (if any),
// optionally followed by either an instruction or a directive.
type Statement struct {
	Pos   Position
	Label string // "" if no label on this line

	IsInstruction bool
	Mnemonic      string
	Operands      []Operand

	IsDirective bool
	Directive   Directive

	IsMacroCall bool
	MacroName   string
}

// Position locates a statement in its source file.
type Position struct {
	File string
	Line int
}

// sectionFlagsFor maps a section name to its default flags using the
// conventional suffixes the teacher's sample programs and gputils both
// use: ".text"/code sections are ROM+executable, ".data"/".bss" are
// RAM, "idata" sections are ROM-resident shadows of initialized RAM
// (see the cinit builder in pkg/link).
func sectionFlagsFor(name string) object.SectionFlags {
	switch {
	case len(name) >= 5 && name[:5] == ".bss.":
		return object.SectionBSS | object.SectionRAMArea
	case name == ".bss":
		return object.SectionBSS | object.SectionRAMArea
	case name == ".data":
		return object.SectionData | object.SectionRAMArea
	case name == ".idata":
		return object.SectionDataROM | object.SectionROMArea
	default:
		return object.SectionText | object.SectionROMArea
	}
}
