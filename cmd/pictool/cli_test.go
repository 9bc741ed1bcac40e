package main

import (
	"testing"

	"github.com/pictool/pictool/pkg/asm"
	"github.com/pictool/pictool/pkg/object"
	"github.com/pictool/pictool/pkg/proc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustProc(t *testing.T, name string) proc.Descriptor {
	t.Helper()
	desc, err := proc.Lookup(name)
	require.NoError(t, err)
	return desc
}

func TestToStatementsTranslatesInstructionAndDirective(t *testing.T) {
	in := []jsonStatement{
		{
			File: "main.asm", Line: 3, Label: "loop",
			Mnemonic: "MOVLW",
			Operands: []jsonOperand{{Kind: "immediate", Value: 42}},
		},
		{
			File: "main.asm", Line: 4,
			Directive: "org", Value: 0x100,
		},
	}

	out := toStatements(in)
	require.Len(t, out, 2)

	assert.True(t, out[0].IsInstruction)
	assert.Equal(t, "loop", out[0].Label)
	assert.Equal(t, "MOVLW", out[0].Mnemonic)
	require.Len(t, out[0].Operands, 1)
	assert.Equal(t, asm.OperandImmediate, out[0].Operands[0].Kind)
	assert.EqualValues(t, 42, out[0].Operands[0].Value)

	assert.True(t, out[1].IsDirective)
	assert.Equal(t, asm.DirOrg, out[1].Directive.Kind)
	assert.EqualValues(t, 0x100, out[1].Directive.Value)
}

func TestParseDefinesRejectsMalformedEntries(t *testing.T) {
	defs, err := parseDefines([]string{"DEBUG=1", "WIDTH=16"})
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"DEBUG": 1, "WIDTH": 16}, defs)

	_, err = parseDefines([]string{"NOVALUE"})
	assert.Error(t, err)
}

func TestIsArchivePath(t *testing.T) {
	assert.True(t, isArchivePath("libc.a"))
	assert.False(t, isArchivePath("main.o"))
	assert.False(t, isArchivePath("a"))
}

func TestRomImageCollectsOnlyROMAreaSections(t *testing.T) {
	obj := object.New("PIC16F84A", "")
	obj.Sections = append(obj.Sections,
		object.Section{Name: ".text", Address: 0, Flags: object.SectionROMArea, Data: []byte{0x30, 0x2A}},
		object.Section{Name: ".data", Address: 0x20, Flags: 0, Data: []byte{0xFF}},
	)

	mem := romImage(obj)
	b, used, _ := mem.Get(0)
	assert.True(t, used)
	assert.EqualValues(t, 0x30, b)

	_, used, _ = mem.Get(0x20)
	assert.False(t, used)
}

func TestHighestROMOrgUsesBytesPerWord(t *testing.T) {
	desc := mustProc(t, "PIC16F84A")
	obj := object.New(desc.Name, "")
	obj.Sections = append(obj.Sections, object.Section{
		Name: ".text", Address: 0, Size: 4, Flags: object.SectionROMArea,
	})

	assert.EqualValues(t, 2, highestROMOrg(obj, desc))
}
