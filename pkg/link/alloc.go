package link

import (
	"fmt"
	"sort"

	"github.com/pictool/pictool/pkg/object"
)

// placedSection identifies one section instance across all linked
// units, so the allocator and patcher can refer back to it.
type placedSection struct {
	unitIdx int
	secIdx  int
}

func (p placedSection) section(r *resolver) *object.Section {
	return &r.units[p.unitIdx].obj.Sections[p.secIdx]
}

// allocator assigns a final address to every section across every
// linked unit, region by region, in three phases per spec §4.5:
// absolute sections first (they are fixed and must not overlap),
// then sections the script explicitly assigns (in script order),
// then everything else by first-fit into the first region of the
// right kind with room.
type allocator struct {
	script *Script
	r      *resolver

	// used tracks occupied byte ranges per region name, kept sorted by
	// start, for the first-fit scan and overlap detection.
	used map[string][]Region
}

func newAllocator(script *Script, r *resolver) *allocator {
	return &allocator{script: script, r: r, used: make(map[string][]Region)}
}

// Allocate runs the three phases over every section of every unit and
// sets each Section.Address in place.
func (a *allocator) Allocate() error {
	var all []placedSection
	for ui, u := range a.r.units {
		for si := range u.obj.Sections {
			all = append(all, placedSection{unitIdx: ui, secIdx: si})
		}
	}

	// Phase 1: absolute sections keep their already-set address; just
	// reserve the space so later phases don't collide with them.
	var assigned, unassigned []placedSection
	for _, p := range all {
		sec := p.section(a.r)
		if sec.Flags.Has(object.SectionAbs) {
			region := a.regionContaining(sec.Address, regionKindFor(sec.Flags))
			if region == "" {
				return fmt.Errorf("section %q: absolute address 0x%X is outside every region", sec.Name, sec.Address)
			}
			if err := a.reserve(region, sec.Address, sec.Size); err != nil {
				return fmt.Errorf("section %q: %w", sec.Name, err)
			}
			continue
		}
		if _, ok := a.script.AssignmentFor(sec.Name); ok {
			assigned = append(assigned, p)
		} else {
			unassigned = append(unassigned, p)
		}
	}

	// Phase 2: script-assigned sections, in script order.
	for _, asgn := range a.script.Assignments {
		for _, p := range assigned {
			sec := p.section(a.r)
			if sec.Name != asgn.SectionName {
				continue
			}
			if asgn.HasFixed {
				if err := a.reserve(asgn.RegionName, asgn.FixedAddr, sec.Size); err != nil {
					return fmt.Errorf("section %q: %w", sec.Name, err)
				}
				sec.Address = asgn.FixedAddr
				continue
			}
			addr, err := a.firstFit(asgn.RegionName, sec.Size)
			if err != nil {
				return fmt.Errorf("section %q: %w", sec.Name, err)
			}
			sec.Address = addr
		}
	}

	// Phase 3: unassigned sections, first-fit into the first region of
	// matching ROM/RAM kind with room, trying regions in script order.
	for _, p := range unassigned {
		sec := p.section(a.r)
		kind := regionKindFor(sec.Flags)
		placed := false
		for _, region := range a.script.RegionsOfKind(kind) {
			if region.Protected {
				continue
			}
			addr, err := a.firstFit(region.Name, sec.Size)
			if err != nil {
				continue
			}
			sec.Address = addr
			placed = true
			break
		}
		if !placed {
			return fmt.Errorf("section %q: no region of matching kind has room for %d bytes", sec.Name, sec.Size)
		}
	}

	return nil
}

func (a *allocator) regionContaining(addr uint32, kind RegionKind) string {
	for _, region := range a.script.RegionsOfKind(kind) {
		if addr >= region.Start && addr < region.End {
			return region.Name
		}
	}
	return ""
}

// reserve marks [addr, addr+size) as occupied within region, failing
// if it overlaps an already-reserved range or falls outside bounds.
func (a *allocator) reserve(regionName string, addr, size uint32) error {
	region, ok := a.script.RegionByName(regionName)
	if !ok {
		return fmt.Errorf("unknown region %q", regionName)
	}
	if addr < region.Start || addr+size > region.End {
		return fmt.Errorf("range [0x%X,0x%X) does not fit in region %q", addr, addr+size, regionName)
	}
	for _, r := range a.used[regionName] {
		if addr < r.End && r.Start < addr+size {
			return fmt.Errorf("range [0x%X,0x%X) overlaps existing allocation [0x%X,0x%X) in region %q", addr, addr+size, r.Start, r.End, regionName)
		}
	}
	a.used[regionName] = append(a.used[regionName], Region{Start: addr, End: addr + size})
	sort.Slice(a.used[regionName], func(i, j int) bool { return a.used[regionName][i].Start < a.used[regionName][j].Start })
	return nil
}

// firstFit finds the lowest address in region with size bytes free,
// reserves it, and returns it.
func (a *allocator) firstFit(regionName string, size uint32) (uint32, error) {
	region, ok := a.script.RegionByName(regionName)
	if !ok {
		return 0, fmt.Errorf("unknown region %q", regionName)
	}
	if size == 0 {
		size = 1 // zero-length sections still occupy a placement point
	}

	cursor := region.Start
	for _, r := range a.used[regionName] {
		if cursor+size <= r.Start {
			break
		}
		if cursor < r.End {
			cursor = r.End
		}
	}
	if cursor+size > region.End {
		return 0, fmt.Errorf("region %q is full", regionName)
	}
	if err := a.reserve(regionName, cursor, size); err != nil {
		return 0, err
	}
	return cursor, nil
}
