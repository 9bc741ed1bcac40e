package asm

import (
	"fmt"

	"github.com/pictool/pictool/pkg/diag"
)

// emitConfig handles a `__CONFIG`/`config` directive: the directive's
// Index selects which config word (processors with extended families
// carry more than one) and Value is the word itself. Config words are
// optional-header data, not section bytes, per gpcoffopt.c's
// treatment of them as a processor-specific address range rather than
// ordinary data.
func (d *Driver) emitConfig(s Statement) {
	idx := s.Directive.Index
	if idx < 0 {
		d.report(diag.SeverityError, s.Pos, "config word index must be non-negative")
		return
	}
	for len(d.obj.ConfigWords) <= idx {
		d.obj.ConfigWords = append(d.obj.ConfigWords, 0xFFFF)
	}
	if d.configFound && idx == 0 {
		d.report(diag.SeverityWarning, s.Pos, "duplicate __CONFIG directive")
	}
	d.obj.ConfigWords[idx] = uint16(s.Directive.Value)
	d.configFound = true
}

// emitIDLocs handles an `__IDLOCS`/`idlocs` directive: Value packs
// every ID-location nibble the directive specifies (the assembler's
// front end is responsible for unpacking the source's single
// combined-hex-literal form before building the Statement).
func (d *Driver) emitIDLocs(s Statement) {
	idx := s.Directive.Index
	for len(d.obj.IDLocs) <= idx {
		d.obj.IDLocs = append(d.obj.IDLocs, 0)
	}
	if d.idlocsFound && idx == 0 {
		d.report(diag.SeverityWarning, s.Pos, fmt.Sprintf("duplicate __IDLOCS directive at %s", s.Pos.File))
	}
	d.obj.IDLocs[idx] = uint16(s.Directive.Value)
	d.idlocsFound = true
}
