// Package peephole implements the two redundant bank/page-selection
// eliminators: a classical fixed-window shift-register pass, and an
// experimental fixed-point state-propagation pass, plus the PCALLW
// stub remover shared by both.
package peephole

import "github.com/pictool/pictool/pkg/object"

// taggedReloc is one relocation together with the page/bank it
// selects (when it is a selection primitive) and its section/offset
// context, the unit the classical pass's shift register slides over.
type taggedReloc struct {
	secIdx    int
	relocIdx  int
	reloc     object.Relocation
	page      int // -1 if not a page-select
	bank      int // -1 if not a bank-select
	protected bool
}

// RunClassical slides a conceptual 4-entry window over each section's
// bank/page-selection relocations, in source order, marking entries
// redundant per the fixed windows named in the optimizer design:
// PAGESEL immediately preceding a same-page branch, a PAGESEL
// sandwiched between two same-page CALLs, a duplicate BANKSEL with no
// intervening control-flow join, and a trailing PAGESEL before RETURN.
//
// RunClassical executes the classical pass over every section of obj,
// returning the set of relocation indices (by section) marked
// redundant. protected identifies relocations that must never be
// removed: the first bank-selection of each section, and any
// selection adjoining a label that is a branch target from elsewhere.
func RunClassical(obj *object.Object, protected func(secIdx, relocIdx int) bool) map[int]map[int]bool {
	out := make(map[int]map[int]bool)

	for si, sec := range obj.Sections {
		var chain []taggedReloc
		for ri, r := range sec.Relocations {
			tr := taggedReloc{secIdx: si, relocIdx: ri, reloc: r, page: -1, bank: -1}
			if r.Type.IsPageSelect() || r.Type.IsAbsoluteBranch() {
				// For a page-select, Addend carries the page it selects.
				// For an absolute branch, Addend carries the page its
				// target resides on (precomputed by the caller from the
				// symbol's already-known section/address, since this pass
				// runs on locally addressed objects before final linking).
				tr.page = int(r.Addend)
			}
			if r.Type.IsBankSelect() {
				tr.bank = int(r.Addend)
			}
			if protected != nil && protected(si, ri) {
				tr.protected = true
			}
			chain = append(chain, tr)
		}

		removed := make(map[int]bool)
		// First bank-selection of a section is always protected, per
		// the optimizer's design note, regardless of the caller's
		// protected callback.
		for i := range chain {
			if chain[i].bank >= 0 {
				chain[i].protected = true
				break
			}
		}

		for i := 0; i < len(chain); i++ {
			cur := &chain[i]
			if cur.protected || removed[cur.relocIdx] {
				continue
			}

			switch {
			case cur.page >= 0 && i+1 < len(chain) && isAbsoluteBranch(chain[i+1].reloc.Type) && chain[i+1].page == cur.page:
				removed[cur.relocIdx] = true

			case cur.page >= 0 && i > 0 && i+1 < len(chain) &&
				isAbsoluteBranch(chain[i-1].reloc.Type) && isAbsoluteBranch(chain[i+1].reloc.Type) &&
				chain[i-1].page == cur.page && chain[i+1].page == cur.page:
				removed[cur.relocIdx] = true

			case cur.bank >= 0:
				if j := precedingSameBank(chain, i); j >= 0 && !removed[chain[j].relocIdx] {
					removed[cur.relocIdx] = true
				}

			case cur.page >= 0 && i+1 < len(chain) && chain[i+1].reloc.Type == object.RelocScnend:
				// Trailing PAGESEL before section end stands in for
				// "PAGESEL; RETURN" when RETURN carries no relocation of
				// its own to chain against.
				removed[cur.relocIdx] = true
			}
		}

		if len(removed) > 0 {
			out[si] = removed
		}
	}

	return out
}

func isAbsoluteBranch(t object.RelocType) bool { return t.IsAbsoluteBranch() }

// precedingSameBank finds the closest earlier entry selecting the same
// bank as chain[i] with no control-flow-joining entry between them
// (here: no entry of a different bank in between counts as a join).
func precedingSameBank(chain []taggedReloc, i int) int {
	for j := i - 1; j >= 0; j-- {
		if chain[j].bank < 0 {
			continue
		}
		if chain[j].bank == chain[i].bank {
			return j
		}
		return -1
	}
	return -1
}
