package main

import (
	"github.com/pictool/pictool/pkg/memmap"
	"github.com/pictool/pictool/pkg/object"
)

// romImage lays every ROM-area section of obj into a fresh memmap at
// its linked address, for the disassembler and hex writer, both of
// which operate on the byte-addressable image rather than the object
// model directly.
func romImage(obj *object.Object) *memmap.Map {
	mem := memmap.New()
	for _, sec := range obj.Sections {
		if !sec.Flags.Has(object.SectionROMArea) {
			continue
		}
		for i, b := range sec.Data {
			mem.Put(sec.Address+uint32(i), b, sec.Name, "")
		}
	}
	return mem
}
