package link

import (
	"github.com/pictool/pictool/pkg/object"
	"github.com/pictool/pictool/pkg/peephole"
	"github.com/pictool/pictool/pkg/proc"
)

// OptimizeAlgorithm selects which of the two peephole passes Optimize
// runs; the zero value is AlgorithmClassical.
type OptimizeAlgorithm int

const (
	AlgorithmClassical OptimizeAlgorithm = iota
	AlgorithmFixedPoint
	AlgorithmNone
)

// Optimize runs the peephole optimizer over every linked unit, per
// §4.6's three routines: the selected bank/page-selection eliminator,
// then the PCALLW stub remover. It must run after Allocate (it needs
// final section addresses to compute each section's page) and before
// PatchRelocations (a removed relocation must never reach the
// patcher). Disabled entirely when Algorithm is AlgorithmNone.
func (c *Context) Optimize() error {
	if c.Algorithm == AlgorithmNone {
		return nil
	}

	d, err := c.targetDescriptor()
	if err != nil {
		return err
	}
	width := d.BytesPerWord()

	for ui, u := range c.res.units {
		obj := u.obj
		classified := c.classifyForPeephole(ui, obj, d)

		var removable map[int]map[int]bool
		switch c.Algorithm {
		case AlgorithmFixedPoint:
			result := peephole.RunFixedPoint(classified, sectionPageFunc(obj, d), width, d.PageSize)
			removable = result.Removable
			for si, failed := range result.RepageFailed {
				if failed {
					c.warn("section " + obj.Sections[si].Name + " hit REPAGE_FAILED: a removal would straddle a page boundary and was left in place")
				}
			}
		default:
			removable = peephole.RunClassical(classified, protectedFunc(obj, width))
		}

		if len(removable) > 0 {
			peephole.ApplyRemovals(obj, removable, width)
		}
		peephole.StripPCALLWStubs(obj, width)
	}

	return nil
}

// targetDescriptor resolves the processor descriptor shared by every
// linked unit, from the first unit's recorded processor name; the
// other units' processor names are not checked.
func (c *Context) targetDescriptor() (proc.Descriptor, error) {
	if len(c.res.units) == 0 {
		return proc.Descriptor{}, nil
	}
	return proc.Lookup(c.res.units[0].obj.Processor)
}

// classifyForPeephole builds a page/bank-relevant-relocations-only
// clone of obj whose Addend for every absolute-branch, page-select and
// bank-select relocation is overwritten with the page/bank the
// relocation's already-resolved target symbol actually lives on — the
// precomputed value RunClassical and RunFixedPoint read Addend as
// (their own doc comments: "Addend carries the page it selects" /
// "the page its target resides on"). The real object's relocations
// are left untouched: PatchRelocations still needs their original
// Addend, an arithmetic offset folded into the target address, not a
// page number.
func (c *Context) classifyForPeephole(unitIdx int, obj *object.Object, d proc.Descriptor) *object.Object {
	clone := *obj
	clone.Sections = make([]object.Section, len(obj.Sections))
	for si, sec := range obj.Sections {
		sec.Relocations = append([]object.Relocation(nil), sec.Relocations...)
		for ri := range sec.Relocations {
			r := &sec.Relocations[ri]
			if !r.Type.IsAbsoluteBranch() && !r.Type.IsPageSelect() && !r.Type.IsBankSelect() {
				continue
			}
			target, err := c.symbolAddress(unitIdx, r.Symbol)
			if err != nil {
				continue
			}
			if r.Type.IsBankSelect() {
				r.Addend = int16(d.BankOf(target))
			} else {
				r.Addend = int16(d.PageOf(d.ByteToOrg(target)))
			}
		}
		clone.Sections[si] = sec
	}
	return &clone
}

// sectionPageFunc returns the final page each of obj's sections lives
// on, derived from its allocated byte address, for RunFixedPoint's
// section-entry state.
func sectionPageFunc(obj *object.Object, d proc.Descriptor) func(secIdx int) int {
	return func(secIdx int) int {
		sec := &obj.Sections[secIdx]
		return int(d.PageOf(d.ByteToOrg(sec.Address)))
	}
}

// protectedFunc protects, for RunClassical, every bank/page-selection
// relocation immediately followed by a label that is itself the
// target of some branch: control can reach that label directly,
// bypassing the selection instruction, so removing it as "redundant
// from the preceding instruction's state" would be unsound for that
// other arrival.
func protectedFunc(obj *object.Object, width uint32) func(secIdx, relocIdx int) bool {
	return func(secIdx, relocIdx int) bool {
		sec := &obj.Sections[secIdx]
		r := sec.Relocations[relocIdx]
		if !r.Type.IsPageSelect() && !r.Type.IsBankSelect() {
			return false
		}
		next := r.Offset + width
		for i := range obj.Symbols {
			sym := &obj.Symbols[i]
			if sym.Class == object.ClassLabel && sym.Section == secIdx &&
				uint32(sym.Value) == next && sym.NumRelocRefs > 0 {
				return true
			}
		}
		return false
	}
}
