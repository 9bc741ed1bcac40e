// Package memmap implements the sparse byte-addressable store used to
// hold program and data images during assembly, linking and
// disassembly: a byte-addressable map partitioned into 64KiB pages so
// that lookups against clustered writes stay O(1).
package memmap

import "sort"

const pageSize = 1 << 16 // 64KiB

// AddrType classifies a byte's role in the control-flow dataflow the
// disassembler's labelling pass builds.
type AddrType int

const (
	AddrTypeNone AddrType = iota
	AddrTypeBranchSrc
	AddrTypeLabel
	AddrTypeFunc
)

// Annotations are the owned, per-byte metadata carried alongside a
// stored byte: the section and symbol name it belongs to, its address
// type, and whether it is the second word of a two-word instruction.
type Annotations struct {
	Used           bool
	Listed         bool
	SecondWord     bool
	AddrType       AddrType
	Section        string
	Symbol         string
}

type cell struct {
	value byte
	ann   Annotations
}

type page struct {
	cells [pageSize]cell
}

// Map is a sparse byte store over a 32-bit address space.
type Map struct {
	pages map[uint32]*page
}

// New creates an empty memory map.
func New() *Map {
	return &Map{pages: make(map[uint32]*page)}
}

func pageIndexOffset(addr uint32) (uint32, uint32) {
	return addr / pageSize, addr % pageSize
}

func (m *Map) pageFor(addr uint32, create bool) *page {
	idx, _ := pageIndexOffset(addr)
	p, ok := m.pages[idx]
	if !ok {
		if !create {
			return nil
		}
		p = &page{}
		m.pages[idx] = p
	}
	return p
}

// Get returns the byte at addr, whether it has been written, and its
// annotations. An unused byte reads as zero with empty annotations.
func (m *Map) Get(addr uint32) (byte, bool, Annotations) {
	p := m.pageFor(addr, false)
	if p == nil {
		return 0, false, Annotations{}
	}
	_, off := pageIndexOffset(addr)
	c := p.cells[off]
	return c.value, c.ann.Used, c.ann
}

// Put writes value at addr, marking it used and recording the owning
// section and symbol name (either may be empty).
func (m *Map) Put(addr uint32, value byte, section, symbol string) {
	p := m.pageFor(addr, true)
	_, off := pageIndexOffset(addr)
	p.cells[off].value = value
	p.cells[off].ann.Used = true
	p.cells[off].ann.Section = section
	p.cells[off].ann.Symbol = symbol
}

// Clear resets addr to unused, zero, with empty annotations.
func (m *Map) Clear(addr uint32) {
	p := m.pageFor(addr, false)
	if p == nil {
		return
	}
	_, off := pageIndexOffset(addr)
	p.cells[off] = cell{}
}

// SetFlag updates the listed/second-word/addr-type flags of an
// already-written byte. It is a no-op on an unused byte.
func (m *Map) SetFlag(addr uint32, listed, secondWord bool, at AddrType) {
	p := m.pageFor(addr, false)
	if p == nil {
		return
	}
	_, off := pageIndexOffset(addr)
	c := &p.cells[off]
	if !c.ann.Used {
		return
	}
	c.ann.Listed = listed || c.ann.Listed
	c.ann.SecondWord = secondWord || c.ann.SecondWord
	if at != AddrTypeNone {
		c.ann.AddrType = at
	}
}

// GetAddrType returns the dataflow address-type annotation for addr.
func (m *Map) GetAddrType(addr uint32) AddrType {
	_, _, ann := m.Get(addr)
	return ann.AddrType
}

// GetLE16 reads two consecutive bytes in little-endian order. The
// result is used if either byte was used.
func (m *Map) GetLE16(addr uint32) (uint16, bool) {
	lo, usedLo, _ := m.Get(addr)
	hi, usedHi, _ := m.Get(addr + 1)
	return uint16(lo) | uint16(hi)<<8, usedLo || usedHi
}

// GetBE16 reads two consecutive bytes in big-endian order.
func (m *Map) GetBE16(addr uint32) (uint16, bool) {
	hi, usedHi, _ := m.Get(addr)
	lo, usedLo, _ := m.Get(addr + 1)
	return uint16(lo) | uint16(hi)<<8, usedLo || usedHi
}

// PutLE16 writes a 16-bit value as two little-endian bytes.
func (m *Map) PutLE16(addr uint32, value uint16, section, symbol string) {
	m.Put(addr, byte(value), section, symbol)
	m.Put(addr+1, byte(value>>8), section, symbol)
}

// PutBE16 writes a 16-bit value as two big-endian bytes.
func (m *Map) PutBE16(addr uint32, value uint16, section, symbol string) {
	m.Put(addr, byte(value>>8), section, symbol)
	m.Put(addr+1, byte(value), section, symbol)
}

// Move relocates a run of len bytes starting at from to start at to,
// preserving each byte's flags and annotations exactly. Ranges may
// overlap; the copy direction is chosen to make that safe.
func (m *Map) Move(from, to uint32, length uint32) {
	if from == to || length == 0 {
		return
	}
	if to > from {
		for i := int64(length) - 1; i >= 0; i-- {
			m.copyByte(from+uint32(i), to+uint32(i))
		}
	} else {
		for i := uint32(0); i < length; i++ {
			m.copyByte(from+i, to+i)
		}
	}
}

func (m *Map) copyByte(from, to uint32) {
	v, used, ann := m.Get(from)
	if !used {
		m.Clear(to)
		return
	}
	p := m.pageFor(to, true)
	_, off := pageIndexOffset(to)
	p.cells[off] = cell{value: v, ann: ann}
}

// DeleteArea removes length bytes at from, shifting every later byte
// of the image down by length and clearing the tail that opens up.
// Flags and annotations move with their bytes.
func (m *Map) DeleteArea(from uint32, length uint32) {
	if length == 0 {
		return
	}
	hi := m.highestUsed()
	if hi < from {
		return
	}
	for addr := from + length; addr <= hi+length; addr++ {
		v, used, ann := m.Get(addr)
		dest := addr - length
		if !used {
			m.Clear(dest)
			continue
		}
		p := m.pageFor(dest, true)
		_, off := pageIndexOffset(dest)
		p.cells[off] = cell{value: v, ann: ann}
	}
	for addr := hi - length + 1; addr <= hi; addr++ {
		if addr >= from {
			m.Clear(addr)
		}
	}
}

func (m *Map) highestUsed() uint32 {
	var hi uint32
	var found bool
	for idx, p := range m.pages {
		for off := pageSize - 1; off >= 0; off-- {
			if p.cells[off].ann.Used {
				addr := idx*pageSize + uint32(off)
				if !found || addr > hi {
					hi = addr
					found = true
				}
				break
			}
		}
	}
	return hi
}

// Range is a contiguous run of used bytes.
type Range struct {
	Start, End uint32 // End is exclusive
}

// UsedRanges returns the maximal contiguous runs of used bytes, in
// ascending address order.
func (m *Map) UsedRanges() []Range {
	addrs := make([]uint32, 0)
	for idx, p := range m.pages {
		for off := 0; off < pageSize; off++ {
			if p.cells[off].ann.Used {
				addrs = append(addrs, idx*pageSize+uint32(off))
			}
		}
	}
	sort.Slice(addrs, func(i, j int) bool { return addrs[i] < addrs[j] })

	var ranges []Range
	for _, a := range addrs {
		if n := len(ranges); n > 0 && ranges[n-1].End == a {
			ranges[n-1].End = a + 1
		} else {
			ranges = append(ranges, Range{Start: a, End: a + 1})
		}
	}
	return ranges
}

// CountUsed returns the number of used bytes in [from, from+length).
func (m *Map) CountUsed(from, length uint32) int {
	count := 0
	for addr := from; addr < from+length; addr++ {
		if _, used, _ := m.Get(addr); used {
			count++
		}
	}
	return count
}
