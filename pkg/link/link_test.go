package link_test

import (
	"testing"

	"github.com/pictool/pictool/pkg/archive"
	"github.com/pictool/pictool/pkg/link"
	"github.com/pictool/pictool/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func simpleScript() *link.Script {
	return &link.Script{
		Regions: []link.Region{
			{Name: "CODEPAGE0", Kind: link.RegionROM, Start: 0, End: 0x800},
			{Name: "gprs", Kind: link.RegionRAM, Start: 0x20, End: 0x80},
		},
	}
}

func objectWithTextSection(name string, define bool, callTarget string) *object.Object {
	o := object.New("pic16f84a", "PIC14")
	secIdx := o.AddSection(object.Section{
		Name:  ".text_" + name,
		Size:  4,
		Data:  []byte{0x00, 0x20, 0x00, 0x00}, // CALL 0 (placeholder, patched by reloc)
		Flags: object.SectionText | object.SectionROMArea,
	})
	o.Sections[secIdx].Symbol = -1

	if define {
		symIdx := o.AddSymbol(object.Symbol{Name: callTarget, Class: object.ClassExt, Section: secIdx, Value: 0})
		_ = symIdx
	} else {
		symIdx := o.AddSymbol(object.Symbol{Name: callTarget, Class: object.ClassExt, Section: -1})
		o.AddRelocation(secIdx, object.Relocation{Offset: 0, Symbol: symIdx, Type: object.RelocCall})
	}
	return o
}

func TestAllocatorPlacesUnassignedSectionsFirstFit(t *testing.T) {
	script := simpleScript()
	ctx := link.NewContext(script)

	a := objectWithTextSection("a", true, "main")
	b := objectWithTextSection("b", true, "helper")
	ctx.AddObject("a.o", a)
	ctx.AddObject("b.o", b)

	require.NoError(t, ctx.Resolve())
	require.NoError(t, ctx.Allocate())

	assert.Equal(t, uint32(0), a.Sections[0].Address)
	assert.Equal(t, uint32(4), b.Sections[0].Address)
}

func TestResolveFailsOnUndefinedSymbol(t *testing.T) {
	script := simpleScript()
	ctx := link.NewContext(script)
	ctx.AddObject("a.o", objectWithTextSection("a", false, "missing_fn"))

	err := ctx.Resolve()
	assert.Error(t, err)
}

func TestArchivePullInResolvesMissingSymbol(t *testing.T) {
	script := simpleScript()
	ctx := link.NewContext(script)

	caller := objectWithTextSection("caller", false, "lib_fn")
	ctx.AddObject("caller.o", caller)

	libObj := objectWithTextSection("lib", true, "lib_fn")
	a := archive.New()
	var buf []byte
	buf = mustEncode(t, libObj)
	a.AddMember("lib.o", buf)
	require.NoError(t, a.BuildIndex(nil))
	ctx.AddArchive(a)

	require.NoError(t, ctx.Resolve())
	assert.Empty(t, ctx.Warnings()) // index was pre-built, no scan warning
}

func mustEncode(t *testing.T, o *object.Object) []byte {
	t.Helper()
	var buf fakeWriter
	require.NoError(t, object.Write(&buf, o))
	return buf.data
}

type fakeWriter struct{ data []byte }

func (w *fakeWriter) Write(p []byte) (int, error) {
	w.data = append(w.data, p...)
	return len(p), nil
}

func TestLinkRemovesRedundantPageselAndPatchesShiftedCall(t *testing.T) {
	script := simpleScript()
	ctx := link.NewContext(script)

	o := object.New("PIC16F876A", "PIC14E")
	secIdx := o.AddSection(object.Section{
		Name:  ".text",
		Size:  6,
		Data:  make([]byte, 6),
		Flags: object.SectionText | object.SectionROMArea,
	})
	targetSym := o.AddSymbol(object.Symbol{Name: "target", Class: object.ClassLabel, Section: secIdx, Value: 4})
	o.AddRelocation(secIdx, object.Relocation{Offset: 0, Symbol: targetSym, Type: object.RelocPagesel})
	o.AddRelocation(secIdx, object.Relocation{Offset: 2, Symbol: targetSym, Type: object.RelocCall})

	ctx.AddObject("a.o", o)
	require.NoError(t, ctx.Link())

	sec := o.Sections[secIdx]
	assert.Equal(t, uint32(4), sec.Size)
	require.Len(t, sec.Relocations, 1)
	assert.Equal(t, uint32(0), sec.Relocations[0].Offset)
	assert.Equal(t, []byte{0x01, 0x00, 0x00, 0x00}, sec.Data)
}

func TestLinkWithNoneAlgorithmLeavesRedundantPageselInPlace(t *testing.T) {
	script := simpleScript()
	ctx := link.NewContext(script)
	ctx.Algorithm = link.AlgorithmNone

	o := object.New("PIC16F876A", "PIC14E")
	secIdx := o.AddSection(object.Section{
		Name:  ".text",
		Size:  6,
		Data:  make([]byte, 6),
		Flags: object.SectionText | object.SectionROMArea,
	})
	targetSym := o.AddSymbol(object.Symbol{Name: "target", Class: object.ClassLabel, Section: secIdx, Value: 4})
	o.AddRelocation(secIdx, object.Relocation{Offset: 0, Symbol: targetSym, Type: object.RelocPagesel})
	o.AddRelocation(secIdx, object.Relocation{Offset: 2, Symbol: targetSym, Type: object.RelocCall})

	ctx.AddObject("a.o", o)
	require.NoError(t, ctx.Link())

	assert.Equal(t, uint32(6), o.Sections[secIdx].Size)
	assert.Len(t, o.Sections[secIdx].Relocations, 2)
}

func TestMemoryReportComputesCorrectPercentage(t *testing.T) {
	script := simpleScript()
	ctx := link.NewContext(script)
	ctx.AddObject("a.o", objectWithTextSection("a", true, "main"))
	require.NoError(t, ctx.Resolve())
	require.NoError(t, ctx.Allocate())

	report := ctx.MemoryReport()
	var rom link.RegionUsage
	for _, r := range report {
		if r.Region == "CODEPAGE0" {
			rom = r
		}
	}
	assert.Equal(t, uint32(4), rom.Used)
	assert.Equal(t, uint32(0x800), rom.Total)
	assert.InDelta(t, 4*100.0/float64(0x800), rom.PercentUsed, 0.0001)
}
