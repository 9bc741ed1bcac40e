package link

import (
	"encoding/binary"

	"github.com/pictool/pictool/pkg/object"
)

// CinitEntry is one (address, length, bytes) triple describing a
// chunk of RAM that must be copied from ROM at startup, the model
// used by runtime startup code to initialize non-zero globals.
type CinitEntry struct {
	RAMAddress uint32
	Data       []byte
}

// BuildCinitTable scans every linked unit's DataROM-flagged sections
// (ROM-resident shadow copies of initialized RAM data) and returns the
// ordered list of copy entries. EncodeCinitTable serializes such a list
// as (address, length, bytes) records followed by a zero-length
// terminator, with no count prefix.
func (c *Context) BuildCinitTable() []CinitEntry {
	var entries []CinitEntry
	for _, u := range c.res.units {
		for _, sec := range u.obj.Sections {
			if !sec.Flags.Has(object.SectionDataROM) {
				continue
			}
			entries = append(entries, CinitEntry{RAMAddress: sec.Address, Data: append([]byte(nil), sec.Data...)})
		}
	}
	return entries
}

// EncodeCinitTable serializes entries in the (addr16, len16, data...)
// x N, then a terminating zero-length record, convention.
func EncodeCinitTable(entries []CinitEntry) []byte {
	var buf []byte
	var hdr [4]byte
	for _, e := range entries {
		binary.LittleEndian.PutUint16(hdr[0:2], uint16(e.RAMAddress))
		binary.LittleEndian.PutUint16(hdr[2:4], uint16(len(e.Data)))
		buf = append(buf, hdr[:]...)
		buf = append(buf, e.Data...)
	}
	binary.LittleEndian.PutUint16(hdr[0:2], 0)
	binary.LittleEndian.PutUint16(hdr[2:4], 0)
	buf = append(buf, hdr[:]...)
	return buf
}
