package asm_test

import (
	"bytes"
	"testing"

	"github.com/pictool/pictool/pkg/asm"
	"github.com/pictool/pictool/pkg/diag"
	"github.com/pictool/pictool/pkg/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pic14() proc.Descriptor {
	d, err := proc.Lookup("PIC16F84A")
	if err != nil {
		panic(err)
	}
	return d
}

func TestAssembleSimpleProgram(t *testing.T) {
	var out bytes.Buffer
	sink := diag.NewSink(&out, 0, 0)
	d := asm.New(asm.Options{Processor: pic14(), Mode: asm.ModeAbsolute}, sink)

	stmts := []asm.Statement{
		{Pos: asm.Position{File: "t.asm", Line: 1}, IsDirective: true, Directive: asm.Directive{Kind: asm.DirSection, Name: ".text"}},
		{Pos: asm.Position{File: "t.asm", Line: 2}, IsInstruction: true, Mnemonic: "MOVLW", Operands: []asm.Operand{{Kind: asm.OperandImmediate, Value: 0x2A}}},
		{Pos: asm.Position{File: "t.asm", Line: 3}, Label: "loop", IsInstruction: true, Mnemonic: "GOTO", Operands: []asm.Operand{{Kind: asm.OperandSymbol, Name: "loop"}}},
		{Pos: asm.Position{File: "t.asm", Line: 4}, IsDirective: true, Directive: asm.Directive{Kind: asm.DirEnd}},
	}

	obj, err := d.Assemble(stmts)
	require.NoError(t, err)
	require.Len(t, obj.Sections, 1)
	assert.Equal(t, uint32(4), obj.Sections[0].Size)
	assert.False(t, sink.HasErrors())
}

func TestAssembleReportsUnknownMnemonic(t *testing.T) {
	var out bytes.Buffer
	sink := diag.NewSink(&out, 0, 0)
	d := asm.New(asm.Options{Processor: pic14(), Mode: asm.ModeAbsolute}, sink)

	stmts := []asm.Statement{
		{Pos: asm.Position{File: "t.asm", Line: 1}, IsDirective: true, Directive: asm.Directive{Kind: asm.DirSection, Name: ".text"}},
		{Pos: asm.Position{File: "t.asm", Line: 2}, IsInstruction: true, Mnemonic: "FROBNICATE"},
	}

	_, err := d.Assemble(stmts)
	assert.Error(t, err)
	errs, _ := sink.Counts()
	assert.Equal(t, 1, errs)
}

func TestAssembleRecordsConfigWord(t *testing.T) {
	var out bytes.Buffer
	sink := diag.NewSink(&out, 0, 0)
	d := asm.New(asm.Options{Processor: pic14(), Mode: asm.ModeAbsolute}, sink)

	stmts := []asm.Statement{
		{Pos: asm.Position{File: "t.asm", Line: 1}, IsDirective: true, Directive: asm.Directive{Kind: asm.DirConfig, Value: 0x3F32}},
		{Pos: asm.Position{File: "t.asm", Line: 2}, IsDirective: true, Directive: asm.Directive{Kind: asm.DirEnd}},
	}

	obj, err := d.Assemble(stmts)
	require.NoError(t, err)
	require.Len(t, obj.ConfigWords, 1)
	assert.Equal(t, uint16(0x3F32), obj.ConfigWords[0])
}

func TestAssembleRelocatableModeRecordsRelocationForForwardReference(t *testing.T) {
	var out bytes.Buffer
	sink := diag.NewSink(&out, 0, 0)
	d := asm.New(asm.Options{Processor: pic14(), Mode: asm.ModeRelocatable}, sink)

	stmts := []asm.Statement{
		{Pos: asm.Position{File: "t.asm", Line: 1}, IsDirective: true, Directive: asm.Directive{Kind: asm.DirSection, Name: ".text"}},
		{Pos: asm.Position{File: "t.asm", Line: 2}, IsInstruction: true, Mnemonic: "CALL", Operands: []asm.Operand{{Kind: asm.OperandSymbol, Name: "external_fn"}}},
		{Pos: asm.Position{File: "t.asm", Line: 3}, IsDirective: true, Directive: asm.Directive{Kind: asm.DirEnd}},
	}

	obj, err := d.Assemble(stmts)
	require.NoError(t, err)
	require.Len(t, obj.Sections[0].Relocations, 1)
	assert.Equal(t, "external_fn", obj.Symbols[obj.Sections[0].Relocations[0].Symbol].Name)
}
