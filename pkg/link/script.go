// Package link implements the linker: symbol resolution across input
// objects and archives, a linker-script-driven section allocator,
// relocation patching, and the cinit table builder.
package link

import (
	"fmt"

	"github.com/pictool/pictool/pkg/object"
	"gopkg.in/yaml.v3"
)

// RegionKind distinguishes the two memory spaces a Script carves up.
type RegionKind int

const (
	RegionROM RegionKind = iota
	RegionRAM
)

// UnmarshalYAML lets a linker script document spell a region's kind as
// "rom"/"ram" rather than the bare numeric enum, since a hand-written
// script file is the common case for pictool link --script.
func (k *RegionKind) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	switch s {
	case "rom", "ROM":
		*k = RegionROM
	case "ram", "RAM":
		*k = RegionRAM
	default:
		return fmt.Errorf("unknown region kind %q", s)
	}
	return nil
}

// MarshalYAML renders a region's kind back as "rom"/"ram" text, so
// --script-dump produces a document that round-trips through
// UnmarshalYAML instead of a bare numeric enum.
func (k RegionKind) MarshalYAML() (any, error) {
	if k == RegionRAM {
		return "ram", nil
	}
	return "rom", nil
}

// Region is one named, bounded span of address space (e.g. CODEPAGE0,
// gprs) that sections can be assigned into or allocated from.
type Region struct {
	Name      string `yaml:"name"`
	Kind      RegionKind `yaml:"kind"`
	Start     uint32 `yaml:"start"`
	End       uint32 `yaml:"end"` // exclusive
	Fill      uint16 `yaml:"fill"` // fill value for unused ROM space; ignored for RAM
	Protected bool   `yaml:"protected"` // PROTECTED regions are skipped by the first-fit allocator
}

// Size returns the region's byte length.
func (r Region) Size() uint32 { return r.End - r.Start }

// Assignment binds a named section to a specific region, optionally
// pinning it to a fixed address within that region.
type Assignment struct {
	SectionName string `yaml:"section"`
	RegionName  string `yaml:"region"`
	FixedAddr   uint32 `yaml:"at"`
	HasFixed    bool   `yaml:"fixed"`
}

// SymbolDefine names a symbol and the value or layout-derived
// expression a script gives it. The script carries Defines as parsed;
// neither Allocate nor Link applies them.
type SymbolDefine struct {
	Name  string `yaml:"name"`
	Value uint32 `yaml:"value"`
	// Expr, when non-empty, names a layout-derived quantity (e.g.
	// "_stack_end", "__end_of_.data") in place of Value; nothing in the
	// linker evaluates it.
	Expr string `yaml:"expr"`
}

// StackDecl declares the runtime stack's size and growth region.
type StackDecl struct {
	RegionName string `yaml:"region"`
	Size       uint32 `yaml:"size"`
}

// Script is the linker script: memory regions, explicit section
// assignments, symbol defines and the stack declaration. Sections not
// named by an Assignment fall through to unassigned first-fit
// allocation into the first region whose Kind matches the section's
// ROM/RAM classification.
type Script struct {
	Regions     []Region       `yaml:"regions"`
	Assignments []Assignment   `yaml:"assignments"`
	Defines     []SymbolDefine `yaml:"defines"`
	Stack       StackDecl      `yaml:"stack"`
}

// RegionByName looks up a region by name.
func (s *Script) RegionByName(name string) (*Region, bool) {
	for i := range s.Regions {
		if s.Regions[i].Name == name {
			return &s.Regions[i], true
		}
	}
	return nil, false
}

// AssignmentFor returns the explicit assignment for a section name, if
// the script names one.
func (s *Script) AssignmentFor(sectionName string) (Assignment, bool) {
	for _, a := range s.Assignments {
		if a.SectionName == sectionName {
			return a, true
		}
	}
	return Assignment{}, false
}

// RegionsOfKind returns every region of the given kind, in script
// order (the order the first-fit allocator tries them).
func (s *Script) RegionsOfKind(kind RegionKind) []Region {
	var out []Region
	for _, r := range s.Regions {
		if r.Kind == kind {
			out = append(out, r)
		}
	}
	return out
}

func regionKindFor(flags object.SectionFlags) RegionKind {
	if flags.IsROM() {
		return RegionROM
	}
	return RegionRAM
}
