package link

import (
	"errors"

	"github.com/pictool/pictool/internal/xerrors"
	"github.com/pictool/pictool/pkg/archive"
	"github.com/pictool/pictool/pkg/object"
	"github.com/pictool/pictool/pkg/utils"
)

var errUndefinedSymbols = errors.New("undefined symbols")

// Context drives one complete link: it owns the symbol resolver, the
// linker script, and (once Allocate has run) the section allocator,
// exposing the pipeline the pictool link subcommand calls end to end.
type Context struct {
	Script *Script

	// Algorithm selects the peephole pass Link runs between Allocate
	// and PatchRelocations. Defaults to AlgorithmClassical.
	Algorithm OptimizeAlgorithm

	res   *resolver
	alloc *allocator

	warnings []string
}

// NewContext creates a link driven by script.
func NewContext(script *Script) *Context {
	return &Context{Script: script, res: newResolver()}
}

// AddObject registers one input object by name.
func (c *Context) AddObject(name string, obj *object.Object) {
	c.res.AddObject(name, obj)
}

// AddArchive registers one input archive as a pull-in candidate.
func (c *Context) AddArchive(a *archive.Archive) {
	c.res.AddArchive(a)
}

// warn records a non-fatal diagnostic, surfaced via Warnings.
func (c *Context) warn(msg string) {
	c.warnings = append(c.warnings, msg)
}

// Warnings returns every warning accumulated so far.
func (c *Context) Warnings() []string { return c.warnings }

// Resolve runs archive pull-in to a fixed point and reports any
// symbols still undefined afterward.
func (c *Context) Resolve() error {
	if err := c.res.PullIn(c.warn); err != nil {
		return err
	}
	if unresolved := c.res.Unresolved(); len(unresolved) > 0 {
		return xerrors.Wrap(errUndefinedSymbols, utils.FormatSlice(unresolved, ", "))
	}
	return nil
}

// Units returns every linked translation unit's object, in load order
// (plain inputs first, then archive members pulled in to satisfy
// references), each carrying final section addresses and fully
// patched relocations once Link has run.
func (c *Context) Units() []*object.Object {
	out := make([]*object.Object, len(c.res.units))
	for i, u := range c.res.units {
		out[i] = u.obj
	}
	return out
}

// Allocate runs the three-phase section allocator over every linked
// unit's sections.
func (c *Context) Allocate() error {
	c.alloc = newAllocator(c.Script, c.res)
	return c.alloc.Allocate()
}

// Link runs the full pipeline: resolve, allocate, peephole-optimize,
// patch relocations — per spec.md §2's control-flow ordering. On
// success, every unit's sections carry their final, optimized address
// and fully patched instruction words.
func (c *Context) Link() error {
	if err := c.Resolve(); err != nil {
		return err
	}
	if err := c.Allocate(); err != nil {
		return err
	}
	if err := c.Optimize(); err != nil {
		return err
	}
	if err := c.PatchRelocations(); err != nil {
		return err
	}
	return nil
}

// RegionUsage reports one memory region's occupancy after Allocate
// has run.
type RegionUsage struct {
	Region     string
	Used       uint32
	Total      uint32
	PercentUsed float64
}

// MemoryReport returns per-region usage across the whole script. The
// percentage is computed as used*100/total (the mathematically
// correct direction); total is the region's full byte span regardless
// of PROTECTED status, since a protected region still consumes
// address space a user may want visibility into.
func (c *Context) MemoryReport() []RegionUsage {
	var out []RegionUsage
	for _, region := range c.Script.Regions {
		var used uint32
		for _, r := range c.alloc.used[region.Name] {
			used += r.Size()
		}
		total := region.Size()
		var pct float64
		if total > 0 {
			pct = float64(used) * 100 / float64(total)
		}
		out = append(out, RegionUsage{Region: region.Name, Used: used, Total: total, PercentUsed: pct})
	}
	return out
}
