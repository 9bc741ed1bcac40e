package link

import (
	"fmt"

	"github.com/pictool/pictool/pkg/archive"
	"github.com/pictool/pictool/pkg/object"
	"github.com/pictool/pictool/pkg/utils"
)

// unit is one input translation unit: either a plain object or an
// archive member pulled in to satisfy a reference. originArchive is
// nil for a plain object input.
type unit struct {
	obj           *object.Object
	name          string
	originArchive *archive.Archive
	memberIndex   int
}

// resolver implements the linker's three-table bookkeeping: symbols
// defined globally (externGlobal), symbols defined with file scope
// only (local, keyed by unit index), and symbols referenced but not
// yet defined (missing). Archive pull-in repeatedly scans missing
// against every loaded archive until a fixed point.
type resolver struct {
	units []unit

	externGlobal map[string]int // symbol name -> owning unit index
	local        map[int]map[string]int
	missing      map[string]bool

	archives []*archive.Archive
}

func newResolver() *resolver {
	return &resolver{
		externGlobal: make(map[string]int),
		local:        make(map[int]map[string]int),
		missing:      make(map[string]bool),
	}
}

// AddObject registers a plain input object, recording its defined
// symbols (global externs into externGlobal, everything else as
// file-local) and its undefined external references into missing.
func (r *resolver) AddObject(name string, obj *object.Object) int {
	idx := len(r.units)
	r.units = append(r.units, unit{obj: obj, name: name})
	r.index(idx, obj)
	return idx
}

// AddArchive registers an archive as a pull-in candidate; none of its
// members are linked until a missing symbol selects them.
func (r *resolver) AddArchive(a *archive.Archive) {
	r.archives = append(r.archives, a)
}

func (r *resolver) index(idx int, obj *object.Object) {
	localSyms := make(map[string]int)
	for _, sym := range obj.Symbols {
		switch {
		case sym.Class == object.ClassExt && sym.IsDefined():
			if _, exists := r.externGlobal[sym.Name]; !exists {
				r.externGlobal[sym.Name] = idx
			}
			delete(r.missing, sym.Name)
		case sym.Class == object.ClassExt && !sym.IsDefined():
			if _, defined := r.externGlobal[sym.Name]; !defined {
				r.missing[sym.Name] = true
			}
		case sym.Class == object.ClassStat || sym.Class == object.ClassLabel:
			localSyms[sym.Name] = idx
		}
	}
	r.local[idx] = localSyms
}

// PullIn runs the archive pull-in algorithm to a fixed point: for
// every name in missing, search each registered archive's index (or a
// synthesized scan, via archive.BuildIndex, if the archive lacks one)
// for a defining member, load and index that member as a new unit, and
// repeat until a full pass adds nothing.
func (r *resolver) PullIn(warn func(string)) error {
	for {
		progressed := false

		for _, a := range r.archives {
			if !a.HasIndex() {
				if err := a.BuildIndex(warn); err != nil {
					return fmt.Errorf("building archive index: %w", err)
				}
			}
		}

		for name := range r.missing {
			if _, ok := r.externGlobal[name]; ok {
				delete(r.missing, name)
				progressed = true
				continue
			}
			for _, a := range r.archives {
				memberIdx, ok := a.Lookup(name)
				if !ok {
					continue
				}
				obj, err := a.Object(memberIdx)
				if err != nil {
					return fmt.Errorf("loading archive member for %q: %w", name, err)
				}
				idx := len(r.units)
				r.units = append(r.units, unit{obj: obj, name: name, originArchive: a, memberIndex: memberIdx})
				r.index(idx, obj)
				progressed = true
				break
			}
		}

		if !progressed {
			break
		}
	}
	return nil
}

// Unresolved returns the names still missing after PullIn converges.
func (r *resolver) Unresolved() []string {
	return utils.Keys(r.missing)
}
