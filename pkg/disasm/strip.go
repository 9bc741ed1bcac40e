package disasm

import "github.com/pictool/pictool/pkg/object"

// StripOptions controls which debug content Strip removes.
type StripOptions struct {
	RemoveFileSymbols bool // drop C_FILE symbols and their AuxFile records
	RemoveLineNumbers bool // drop every section's LineNumber table
	RemoveDebugAux    bool // drop AuxKind debug aux records other than AuxFile
}

// Strip removes debug-only content from obj in place, mirroring
// gpstrip.c's treatment of symbol/line-number tables as optional,
// purely-diagnostic content that a shipped object need not carry.
func Strip(obj *object.Object, opts StripOptions) {
	if opts.RemoveLineNumbers {
		for i := range obj.Sections {
			obj.Sections[i].Lines = nil
		}
	}

	if !opts.RemoveFileSymbols && !opts.RemoveDebugAux {
		return
	}

	kept := make([]object.Symbol, 0, len(obj.Symbols))
	remap := make([]int, len(obj.Symbols))
	for i := range remap {
		remap[i] = -1
	}

	for i, sym := range obj.Symbols {
		if opts.RemoveFileSymbols && sym.Class == object.ClassFile {
			continue
		}
		if opts.RemoveDebugAux {
			sym.Aux = filterDebugAux(sym.Aux)
		}
		remap[i] = len(kept)
		kept = append(kept, sym)
	}

	obj.Symbols = kept
	renumberSymbolRefs(obj, remap)
}

func filterDebugAux(aux []object.Aux) []object.Aux {
	var out []object.Aux
	for _, a := range aux {
		if a.Kind == object.AuxFile {
			out = append(out, a)
			continue
		}
	}
	return out
}

// renumberSymbolRefs fixes up every symbol-table index recorded
// elsewhere in obj (relocation targets, section-defining symbols, line
// number file references) after Strip has removed and reindexed
// symbols. A reference to a removed symbol is cleared to -1; callers
// that still need the removed name should run Strip before linking,
// not after.
func renumberSymbolRefs(obj *object.Object, remap []int) {
	for i := range obj.Sections {
		sec := &obj.Sections[i]
		if sec.Symbol >= 0 && sec.Symbol < len(remap) {
			sec.Symbol = remap[sec.Symbol]
		}
		for j := range sec.Relocations {
			r := &sec.Relocations[j]
			if r.Symbol >= 0 && r.Symbol < len(remap) {
				r.Symbol = remap[r.Symbol]
			}
		}
		for j := range sec.Lines {
			l := &sec.Lines[j]
			if l.FileSym >= 0 && l.FileSym < len(remap) {
				l.FileSym = remap[l.FileSym]
			}
		}
	}
}
