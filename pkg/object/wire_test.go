package object_test

import (
	"bytes"
	"testing"

	"github.com/pictool/pictool/pkg/object"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleObject(v2 bool) *object.Object {
	o := object.New("PIC16F84A", "PIC14")
	o.IsNew = v2
	o.Flags = object.FlagAbsolute
	o.Timestamp = 12345
	o.ROMWidth = 14
	o.RAMWidth = 8

	fooIdx := o.AddSymbol(object.Symbol{
		Name: "foo", Value: 0, Class: object.ClassFile, Section: 0, SectionNumber: 1,
		Aux: []object.Aux{{Kind: object.AuxFile, FileName: "a-long-enough-filename.asm", IncludeLine: 3}},
	})

	sec := object.Section{
		Name:    ".text",
		Address: 0,
		Size:    4,
		Flags:   object.SectionText | object.SectionROMArea,
		Data:    []byte{0x30, 0x3F, 0x34, 0x00},
		Symbol:  -1,
	}
	secIdx := o.AddSection(sec)
	o.AddRelocation(secIdx, object.Relocation{Offset: 0, Symbol: fooIdx, Addend: 0, Type: object.RelocGoto})
	o.Sections[secIdx].Lines = append(o.Sections[secIdx].Lines, object.LineNumber{Address: 0, Line: 1, FileSym: fooIdx})

	return o
}

func TestWriteReadRoundTripV2(t *testing.T) {
	o := sampleObject(true)
	var buf bytes.Buffer
	require.NoError(t, object.Write(&buf, o))

	got, err := object.Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)

	assert.True(t, got.IsNew)
	assert.Equal(t, o.Flags, got.Flags)
	assert.Equal(t, o.Timestamp, got.Timestamp)
	require.Len(t, got.Sections, 1)
	assert.Equal(t, ".text", got.Sections[0].Name)
	assert.Equal(t, o.Sections[0].Data, got.Sections[0].Data)
	require.Len(t, got.Sections[0].Relocations, 1)
	assert.Equal(t, object.RelocGoto, got.Sections[0].Relocations[0].Type)
	require.Len(t, got.Symbols, 1)
	assert.Equal(t, "foo", got.Symbols[0].Name)
	require.Len(t, got.Symbols[0].Aux, 1)
	assert.Equal(t, "a-long-enough-filename.asm", got.Symbols[0].Aux[0].FileName)
}

func TestWriteReadRoundTripV1(t *testing.T) {
	o := sampleObject(false)
	var buf bytes.Buffer
	require.NoError(t, object.Write(&buf, o))

	got, err := object.Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.False(t, got.IsNew)
	assert.Equal(t, o.Sections[0].Data, got.Sections[0].Data)
}

func TestSectionFlagsMaskWritable(t *testing.T) {
	f := object.SectionText | object.SectionReloc | object.SectionBPack
	masked := f.MaskWritable()
	assert.True(t, masked.Has(object.SectionText))
	assert.False(t, masked.Has(object.SectionReloc))
	assert.False(t, masked.Has(object.SectionBPack))
}

func TestWriteReadRoundTripPreservesConfigAndIDLocs(t *testing.T) {
	o := sampleObject(true)
	o.ConfigWords = []uint16{0x3F32, 0x3FFF}
	o.IDLocs = []uint16{0x11, 0x22, 0x33, 0x44}
	o.DeviceID = 0x0560

	var buf bytes.Buffer
	require.NoError(t, object.Write(&buf, o))

	got, err := object.Read(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, o.ConfigWords, got.ConfigWords)
	assert.Equal(t, o.IDLocs, got.IDLocs)
	assert.Equal(t, o.DeviceID, got.DeviceID)
}

func TestReadRejectsUnknownMagic(t *testing.T) {
	buf := make([]byte, 64)
	_, err := object.Read(bytes.NewReader(buf))
	assert.Error(t, err)
}

func TestReserveSectionKeepsDataAccessible(t *testing.T) {
	o := sampleObject(true)
	reserved := o.Sections[0]
	o.ReserveSection(0)
	assert.Empty(t, o.Sections)
	require.Len(t, o.ReservedSections, 1)
	assert.Equal(t, reserved.Name, o.ReservedSections[0].Name)
}
