package object

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// Magic numbers distinguishing the two wire format versions.
const (
	MagicV1 uint16 = 0x1983
	MagicV2 uint16 = 0x1984
)

const (
	sectionHeaderSize = 8 + 4 + 4 + 4 + 4 + 4 + 4 + 2 + 2 + 4
	relocSize         = 4 + 4 + 2 + 2
	lineNumSize       = 4 + 4 + 4
	symbolSize        = 8 + 4 + 1 + 1 + 2 + 1 + 3
	nameFieldSize     = 8
)

func auxSize(v2 bool) int {
	if v2 {
		return 18
	}
	return 16
}

var order = binary.LittleEndian

// stringTable accumulates long names for the writer and deduplicates
// them; offsets are relative to the first byte after the table's own
// 4-byte length prefix.
type stringTable struct {
	buf     bytes.Buffer
	offsets map[string]uint32
}

func newStringTable() *stringTable {
	return &stringTable{offsets: make(map[string]uint32)}
}

func (st *stringTable) intern(s string) uint32 {
	if off, ok := st.offsets[s]; ok {
		return off
	}
	off := uint32(st.buf.Len())
	st.buf.WriteString(s)
	st.buf.WriteByte(0)
	st.offsets[s] = off
	return off
}

func (st *stringTable) bytes() []byte {
	var out bytes.Buffer
	var lenField [4]byte
	order.PutUint32(lenField[:], uint32(st.buf.Len()+4))
	out.Write(lenField[:])
	out.Write(st.buf.Bytes())
	return out.Bytes()
}

func readName(field [nameFieldSize]byte, strtab []byte) (string, error) {
	if field[0] != 0 {
		end := bytes.IndexByte(field[:], 0)
		if end < 0 {
			end = nameFieldSize
		}
		return string(field[:end]), nil
	}
	// zero-prefixed: first 4 bytes are zero (unless the name is empty
	// and entirely zero, handled the same way), next 4 are the offset.
	off := order.Uint32(field[4:])
	if int(off) >= len(strtab) {
		return "", fmt.Errorf("string table offset %d out of range", off)
	}
	end := bytes.IndexByte(strtab[off:], 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated string at offset %d", off)
	}
	return string(strtab[off : off+uint32(end)]), nil
}

// Write serializes o in its selected wire version (o.IsNew selects v2).
func Write(w io.Writer, o *Object) error {
	v2 := o.IsNew
	st := newStringTable()

	var sectionHeaders bytes.Buffer
	var sectionData bytes.Buffer
	var relocData bytes.Buffer
	var lineData bytes.Buffer

	type pending struct {
		dataOff, relocOff, lineOff uint32
	}
	offsets := make([]pending, len(o.Sections))

	// First pass: serialize per-section payloads to compute sizes; real
	// offsets are assigned once the preceding regions' total size is
	// known (file header + opt header + section headers come first).
	for i, s := range o.Sections {
		offsets[i].dataOff = uint32(sectionData.Len())
		sectionData.Write(s.Data)

		offsets[i].relocOff = uint32(relocData.Len())
		for _, r := range s.Relocations {
			var b [relocSize]byte
			order.PutUint32(b[0:4], r.Offset)
			order.PutUint32(b[4:8], uint32(r.Symbol))
			order.PutUint16(b[8:10], uint16(r.Addend))
			order.PutUint16(b[10:12], uint16(r.Type))
			relocData.Write(b[:])
		}

		offsets[i].lineOff = uint32(lineData.Len())
		for _, ln := range s.Lines {
			var b [lineNumSize]byte
			order.PutUint32(b[0:4], ln.Address)
			order.PutUint32(b[4:8], ln.Line)
			order.PutUint32(b[8:12], uint32(ln.FileSym))
			lineData.Write(b[:])
		}
	}

	fileHeaderSize := 2 + 2 + 4 + 4 + 4 + 2 + 2
	optHeaderVersionSize := 4
	if !v2 {
		optHeaderVersionSize = 2
	}
	optHeaderSize := 2 + optHeaderVersionSize + 4 + 4 + 4 + 2 + 2 + 2 + len(o.ConfigWords)*2 + len(o.IDLocs)*2

	base := uint32(fileHeaderSize) + uint32(optHeaderSize) + uint32(len(o.Sections))*sectionHeaderSize

	for i, s := range o.Sections {
		name := s.Name
		var nameField [nameFieldSize]byte
		if len(name) <= nameFieldSize {
			copy(nameField[:], name)
		} else {
			off := st.intern(name)
			order.PutUint32(nameField[4:], off)
		}

		var b bytes.Buffer
		b.Write(nameField[:])

		var addr [4]byte
		order.PutUint32(addr[:], s.Address)
		b.Write(addr[:]) // physical address
		b.Write(addr[:]) // virtual address (same copy; no relocation-time shadowing modeled)

		var sz [4]byte
		order.PutUint32(sz[:], s.Size)
		b.Write(sz[:])

		writeU32 := func(v uint32) {
			var f [4]byte
			order.PutUint32(f[:], v)
			b.Write(f[:])
		}
		if len(s.Data) > 0 {
			writeU32(base + offsets[i].dataOff)
		} else {
			writeU32(0)
		}
		if len(s.Relocations) > 0 {
			writeU32(base + uint32(sectionData.Len()) + offsets[i].relocOff)
		} else {
			writeU32(0)
		}
		if len(s.Lines) > 0 {
			writeU32(base + uint32(sectionData.Len()) + uint32(relocData.Len()) + offsets[i].lineOff)
		} else {
			writeU32(0)
		}

		var relocCount, lineCount [2]byte
		order.PutUint16(relocCount[:], uint16(len(s.Relocations)))
		order.PutUint16(lineCount[:], uint16(len(s.Lines)))
		b.Write(relocCount[:])
		b.Write(lineCount[:])

		var flags [4]byte
		order.PutUint32(flags[:], uint32(s.Flags.MaskWritable()))
		b.Write(flags[:])

		if b.Len() != sectionHeaderSize {
			return fmt.Errorf("internal error: section header size mismatch (%d != %d)", b.Len(), sectionHeaderSize)
		}
		sectionHeaders.Write(b.Bytes())
	}

	// Symbol + aux records.
	var symbolData bytes.Buffer
	as := auxSize(v2)
	for _, sym := range o.Symbols {
		var nameField [nameFieldSize]byte
		if len(sym.Name) <= nameFieldSize {
			copy(nameField[:], sym.Name)
		} else {
			off := st.intern(sym.Name)
			order.PutUint32(nameField[4:], off)
		}
		symbolData.Write(nameField[:])

		var value [4]byte
		order.PutUint32(value[:], uint32(int32(sym.Value)))
		symbolData.Write(value[:])

		symbolData.WriteByte(sym.DerivedType)
		symbolData.WriteByte(byte(sym.Class))

		var secNum [2]byte
		order.PutUint16(secNum[:], uint16(sym.SectionNumber))
		symbolData.Write(secNum[:])

		symbolData.WriteByte(byte(len(sym.Aux)))
		symbolData.Write(make([]byte, 3))

		for _, aux := range sym.Aux {
			payload := make([]byte, as)
			encodeAux(payload, aux, sym.Class, st)
			symbolData.Write(payload)
		}
	}

	strtab := st.bytes()

	symtabOffset := base + uint32(sectionData.Len()) + uint32(relocData.Len()) + uint32(lineData.Len())

	var fh bytes.Buffer
	writeU16 := func(buf *bytes.Buffer, v uint16) {
		var f [2]byte
		order.PutUint16(f[:], v)
		buf.Write(f[:])
	}
	writeU32 := func(buf *bytes.Buffer, v uint32) {
		var f [4]byte
		order.PutUint32(f[:], v)
		buf.Write(f[:])
	}

	magic := MagicV1
	if v2 {
		magic = MagicV2
	}
	writeU16(&fh, magic)
	writeU16(&fh, uint16(len(o.Sections)))
	writeU32(&fh, o.Timestamp)
	writeU32(&fh, symtabOffset)
	writeU32(&fh, uint32(len(o.Symbols)))
	writeU16(&fh, uint16(optHeaderSize))
	writeU16(&fh, uint16(o.Flags))

	var oh bytes.Buffer
	writeU16(&oh, magic)
	if v2 {
		writeU32(&oh, 2)
	} else {
		writeU16(&oh, 1)
	}
	writeU32(&oh, procCode(o.Processor))
	writeU32(&oh, o.ROMWidth)
	writeU32(&oh, o.RAMWidth)
	writeU16(&oh, uint16(len(o.ConfigWords)))
	writeU16(&oh, uint16(len(o.IDLocs)))
	writeU16(&oh, o.DeviceID)
	for _, w := range o.ConfigWords {
		writeU16(&oh, w)
	}
	for _, w := range o.IDLocs {
		writeU16(&oh, w)
	}

	for _, chunk := range [][]byte{
		fh.Bytes(), oh.Bytes(), sectionHeaders.Bytes(),
		sectionData.Bytes(), relocData.Bytes(), lineData.Bytes(),
		symbolData.Bytes(), strtab,
	} {
		if _, err := w.Write(chunk); err != nil {
			return err
		}
	}
	return nil
}

// procCode derives a stable numeric code for a processor name, used
// only as the optional header's processor-type field; the name itself
// travels separately via the caller's own bookkeeping (the core object
// model does not require round-tripping the exact vendor numeric code,
// only a consistent one).
func procCode(name string) uint32 {
	var h uint32 = 2166136261
	for i := 0; i < len(name); i++ {
		h ^= uint32(name[i])
		h *= 16777619
	}
	return h
}

func encodeAux(payload []byte, aux Aux, class StorageClass, st *stringTable) {
	switch class {
	case ClassFile:
		var nameField [nameFieldSize]byte
		if len(aux.FileName) <= nameFieldSize {
			copy(nameField[:], aux.FileName)
		} else {
			off := st.intern(aux.FileName)
			order.PutUint32(nameField[4:], off)
		}
		copy(payload, nameField[:])
		order.PutUint32(payload[8:12], aux.IncludeLine)
		order.PutUint16(payload[12:14], aux.FileFlags)
	case ClassSection:
		order.PutUint32(payload[0:4], aux.SectionLength)
		order.PutUint32(payload[4:8], aux.RelocCount)
		order.PutUint32(payload[8:12], aux.LineCount)
	case ClassDebug:
		payload[0] = aux.DirectCmd
		var nameField [nameFieldSize]byte
		if len(aux.DirectValue) <= nameFieldSize {
			copy(nameField[:], aux.DirectValue)
		} else {
			off := st.intern(aux.DirectValue)
			order.PutUint32(nameField[4:], off)
		}
		copy(payload[1:], nameField[:])
	default:
		if len(aux.Raw) > 0 {
			copy(payload, aux.Raw)
		} else {
			var nameField [nameFieldSize]byte
			if len(aux.Ident) <= nameFieldSize {
				copy(nameField[:], aux.Ident)
			} else {
				off := st.intern(aux.Ident)
				order.PutUint32(nameField[4:], off)
			}
			copy(payload, nameField[:])
		}
	}
}

func decodeAux(payload []byte, class StorageClass, strtab []byte) (Aux, error) {
	switch class {
	case ClassFile:
		var nameField [nameFieldSize]byte
		copy(nameField[:], payload[:8])
		name, err := readName(nameField, strtab)
		if err != nil {
			return Aux{}, err
		}
		return Aux{
			Kind:        AuxFile,
			FileName:    name,
			IncludeLine: order.Uint32(payload[8:12]),
			FileFlags:   order.Uint16(payload[12:14]),
		}, nil
	case ClassSection:
		return Aux{
			Kind:          AuxSection,
			SectionLength: order.Uint32(payload[0:4]),
			RelocCount:    order.Uint32(payload[4:8]),
			LineCount:     order.Uint32(payload[8:12]),
		}, nil
	case ClassDebug:
		var nameField [nameFieldSize]byte
		copy(nameField[:], payload[1:9])
		val, err := readName(nameField, strtab)
		if err != nil {
			return Aux{}, err
		}
		return Aux{Kind: AuxDirect, DirectCmd: payload[0], DirectValue: val}, nil
	default:
		var nameField [nameFieldSize]byte
		copy(nameField[:], payload[:8])
		if ident, err := readName(nameField, strtab); err == nil {
			return Aux{Kind: AuxIdent, Ident: ident}, nil
		}
		raw := make([]byte, len(payload))
		copy(raw, payload)
		return Aux{Kind: AuxRaw, Raw: raw}, nil
	}
}

// Read parses an object from r, detecting v1 vs v2 from the magic
// number in the file header.
func Read(r io.ReaderAt) (*Object, error) {
	// Layout: magic(2) sectionCount(2) timestamp(4) symtabOffset(4)
	// symbolCount(4) optHdrSize(2) objFlags(2) = 20 bytes, matching Write.
	const fileHeaderSize = 20
	var hdr [fileHeaderSize]byte
	if _, err := r.ReadAt(hdr[:], 0); err != nil {
		return nil, fmt.Errorf("reading file header: %w", err)
	}
	magic := order.Uint16(hdr[0:2])
	var v2 bool
	switch magic {
	case MagicV1:
		v2 = false
	case MagicV2:
		v2 = true
	default:
		return nil, fmt.Errorf("unrecognized object magic 0x%04X", magic)
	}

	sectionCount := order.Uint16(hdr[2:4])
	timestamp := order.Uint32(hdr[4:8])
	symtabOffsetReal := order.Uint32(hdr[8:12])
	symbolCountReal := order.Uint32(hdr[12:16])
	optHdrSize := order.Uint16(hdr[16:18])
	objFlags := order.Uint16(hdr[18:20])

	ohBuf := make([]byte, optHdrSize)
	if _, err := r.ReadAt(ohBuf, int64(fileHeaderSize)); err != nil {
		return nil, fmt.Errorf("reading optional header: %w", err)
	}
	versionSize := 4
	if !v2 {
		versionSize = 2
	}
	procType := order.Uint32(ohBuf[2+versionSize : 2+versionSize+4])
	fixedEnd := 2 + versionSize + 4 + 4 + 4
	romWidth := order.Uint32(ohBuf[2+versionSize+4 : 2+versionSize+8])
	ramWidth := order.Uint32(ohBuf[2+versionSize+8 : 2+versionSize+12])
	_ = procType

	var configWords, idlocs []uint16
	var deviceID uint16
	if len(ohBuf) >= fixedEnd+6 {
		configCount := order.Uint16(ohBuf[fixedEnd : fixedEnd+2])
		idlocsCount := order.Uint16(ohBuf[fixedEnd+2 : fixedEnd+4])
		deviceID = order.Uint16(ohBuf[fixedEnd+4 : fixedEnd+6])
		pos := fixedEnd + 6
		for i := 0; i < int(configCount); i++ {
			configWords = append(configWords, order.Uint16(ohBuf[pos:pos+2]))
			pos += 2
		}
		for i := 0; i < int(idlocsCount); i++ {
			idlocs = append(idlocs, order.Uint16(ohBuf[pos:pos+2]))
			pos += 2
		}
	}

	base := fileHeaderSize + int(optHdrSize)

	sectionHeadersBuf := make([]byte, int(sectionCount)*sectionHeaderSize)
	if _, err := r.ReadAt(sectionHeadersBuf, int64(base)); err != nil {
		return nil, fmt.Errorf("reading section headers: %w", err)
	}

	// Locate the string table: it immediately follows the symbol
	// records, whose region ends at symtabOffset + symbolCount*symbolSize
	// plus the aux records each symbol carries. Since aux counts vary,
	// the writer always places the string table right after the last
	// byte it wrote; we recover its bounds by reading to EOF via a
	// bounded reader.
	tail, err := readAllAt(r, int64(symtabOffsetReal))
	if err != nil {
		return nil, fmt.Errorf("reading symbol table: %w", err)
	}

	as := auxSize(v2)
	type symRaw struct {
		nameField [nameFieldSize]byte
		value     int32
		derived   byte
		class     StorageClass
		secNum    int16
		auxCount  byte
		auxRaw    [][]byte
	}
	symbols := make([]symRaw, 0, symbolCountReal)
	pos := 0
	for i := uint32(0); i < symbolCountReal; i++ {
		if pos+symbolSize > len(tail) {
			return nil, fmt.Errorf("truncated symbol record %d", i)
		}
		var sr symRaw
		copy(sr.nameField[:], tail[pos:pos+8])
		sr.value = int32(order.Uint32(tail[pos+8 : pos+12]))
		sr.derived = tail[pos+12]
		sr.class = StorageClass(tail[pos+13])
		sr.secNum = int16(order.Uint16(tail[pos+14 : pos+16]))
		sr.auxCount = tail[pos+16]
		pos += symbolSize
		for a := 0; a < int(sr.auxCount); a++ {
			if pos+as > len(tail) {
				return nil, fmt.Errorf("truncated aux record for symbol %d", i)
			}
			sr.auxRaw = append(sr.auxRaw, tail[pos:pos+as])
			pos += as
		}
		symbols = append(symbols, sr)
	}

	if pos+4 > len(tail) {
		return nil, fmt.Errorf("missing string table length prefix")
	}
	strtabLen := order.Uint32(tail[pos : pos+4])
	strtabStart := pos + 4
	strtabEnd := pos + int(strtabLen)
	if strtabEnd > len(tail) || strtabLen < 4 {
		return nil, fmt.Errorf("invalid string table length %d", strtabLen)
	}
	strtab := tail[strtabStart:strtabEnd]

	o := &Object{
		Timestamp:   timestamp,
		IsNew:       v2,
		Flags:       Flags(objFlags),
		ROMWidth:    romWidth,
		RAMWidth:    ramWidth,
		ConfigWords: configWords,
		IDLocs:      idlocs,
		DeviceID:    deviceID,
	}

	o.Symbols = make([]Symbol, len(symbols))
	for i, sr := range symbols {
		name, err := readName(sr.nameField, strtab)
		if err != nil {
			return nil, fmt.Errorf("symbol %d: %w", i, err)
		}
		sym := Symbol{
			Name:          name,
			Value:         int64(sr.value),
			DerivedType:   sr.derived,
			Class:         sr.class,
			Section:       -1,
			SectionNumber: sr.secNum,
		}
		for _, raw := range sr.auxRaw {
			aux, err := decodeAux(raw, sr.class, strtab)
			if err != nil {
				return nil, fmt.Errorf("symbol %d aux: %w", i, err)
			}
			sym.Aux = append(sym.Aux, aux)
		}
		o.Symbols[i] = sym
	}

	o.Sections = make([]Section, sectionCount)
	for i := 0; i < int(sectionCount); i++ {
		hb := sectionHeadersBuf[i*sectionHeaderSize : (i+1)*sectionHeaderSize]
		var nameField [nameFieldSize]byte
		copy(nameField[:], hb[0:8])
		name, err := readName(nameField, strtab)
		if err != nil {
			return nil, fmt.Errorf("section %d: %w", i, err)
		}
		addr := order.Uint32(hb[8:12])
		size := order.Uint32(hb[16:20])
		dataPtr := order.Uint32(hb[20:24])
		relocPtr := order.Uint32(hb[24:28])
		linePtr := order.Uint32(hb[28:32])
		relocCount := order.Uint16(hb[32:34])
		lineCount := order.Uint16(hb[34:36])
		flags := SectionFlags(order.Uint32(hb[36:40]))

		sec := Section{Name: name, Address: addr, Size: size, Flags: flags, Symbol: -1}

		if dataPtr != 0 && size > 0 {
			buf := make([]byte, size)
			if _, err := r.ReadAt(buf, int64(dataPtr)); err != nil {
				return nil, fmt.Errorf("section %s data: %w", name, err)
			}
			sec.Data = buf
		}

		if relocPtr != 0 && relocCount > 0 {
			buf := make([]byte, int(relocCount)*relocSize)
			if _, err := r.ReadAt(buf, int64(relocPtr)); err != nil {
				return nil, fmt.Errorf("section %s relocations: %w", name, err)
			}
			sec.Relocations = make([]Relocation, relocCount)
			for j := 0; j < int(relocCount); j++ {
				b := buf[j*relocSize : (j+1)*relocSize]
				sec.Relocations[j] = Relocation{
					Offset: order.Uint32(b[0:4]),
					Symbol: int(order.Uint32(b[4:8])),
					Addend: int16(order.Uint16(b[8:10])),
					Type:   RelocType(order.Uint16(b[10:12])),
				}
			}
		}

		if linePtr != 0 && lineCount > 0 {
			buf := make([]byte, int(lineCount)*lineNumSize)
			if _, err := r.ReadAt(buf, int64(linePtr)); err != nil {
				return nil, fmt.Errorf("section %s line numbers: %w", name, err)
			}
			sec.Lines = make([]LineNumber, lineCount)
			for j := 0; j < int(lineCount); j++ {
				b := buf[j*lineNumSize : (j+1)*lineNumSize]
				sec.Lines[j] = LineNumber{
					Address: order.Uint32(b[0:4]),
					Line:    order.Uint32(b[4:8]),
					FileSym: int(order.Uint32(b[8:12])),
				}
			}
		}

		o.Sections[i] = sec
	}

	return o, nil
}

func readAllAt(r io.ReaderAt, offset int64) ([]byte, error) {
	const chunkSize = 1 << 16
	var out bytes.Buffer
	buf := make([]byte, chunkSize)
	pos := offset
	for {
		n, err := r.ReadAt(buf, pos)
		if n > 0 {
			out.Write(buf[:n])
			pos += int64(n)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
	}
	return out.Bytes(), nil
}
