package asm

import (
	"encoding/binary"
	"fmt"

	"github.com/pictool/pictool/pkg/codec"
	"github.com/pictool/pictool/pkg/diag"
	"github.com/pictool/pictool/pkg/object"
)

// emitInstruction encodes one instruction statement into the active
// section, resolving any symbol operand against stTop/stGlobal first.
// In ModeRelocatable, an unresolved symbol (or, per the spec's
// relocation-mode contract, any external branch target) records a
// relocation instead of failing; in ModeAbsolute, an unresolved symbol
// is a hard error.
func (d *Driver) emitInstruction(s Statement) {
	entry, ok := d.cat.Lookup(s.Mnemonic)
	if !ok {
		d.report(diag.SeverityError, s.Pos, fmt.Sprintf("unknown mnemonic %q", s.Mnemonic))
		return
	}
	if d.curSection < 0 {
		d.report(diag.SeverityError, s.Pos, fmt.Sprintf("instruction %q outside any section", s.Mnemonic))
		return
	}

	var relocSym string
	operands := make([]codec.Operand, 0, len(s.Operands))
	for _, op := range s.Operands {
		if op.Kind == OperandSymbol {
			val, resolved := d.resolveSymbol(op.Name)
			if !resolved {
				if d.opts.Mode == ModeAbsolute {
					d.report(diag.SeverityError, s.Pos, fmt.Sprintf("undefined symbol %q", op.Name))
					operands = append(operands, codec.Operand{Value: 0})
					continue
				}
				relocSym = op.Name
				operands = append(operands, codec.Operand{Value: 0})
				continue
			}
			operands = append(operands, codec.Operand{Value: val})
			continue
		}
		operands = append(operands, codec.Operand{Value: op.Value})
	}

	res, err := codec.Encode(entry, operands, d.org)
	if err != nil {
		d.report(diag.SeverityError, s.Pos, err.Error())
		return
	}

	sec := &d.obj.Sections[d.curSection]
	offset := uint32(len(sec.Data))
	for _, w := range res.Words {
		var b [2]byte
		binary.LittleEndian.PutUint16(b[:], w)
		sec.Data = append(sec.Data, b[:]...)
	}
	sec.Size += uint32(len(res.Words)) * d.obj.ROMWidth

	if relocSym != "" {
		symIdx := d.obj.FindSymbol(relocSym)
		if symIdx < 0 {
			symIdx = d.obj.AddSymbol(object.Symbol{Name: relocSym, Class: object.ClassExt, Section: -1})
		}
		d.obj.AddRelocation(d.curSection, object.Relocation{
			Offset: offset,
			Symbol: symIdx,
			Type:   relocTypeFor(entry.Icode),
		})
		sec.Flags |= object.SectionReloc
	}

	d.org += uint32(len(res.Words))
}

func relocTypeFor(icode codec.Icode) object.RelocType {
	switch icode {
	case codec.IcodeCALL:
		return object.RelocCall
	case codec.IcodeGOTO:
		return object.RelocGoto
	default:
		return object.RelocGoto
	}
}

func (d *Driver) resolveSymbol(name string) (int64, bool) {
	if e, ok := d.stTop.Lookup(name); ok {
		return e.Value, true
	}
	if e, ok := d.stGlobal.Lookup(name); ok {
		return e.Value, true
	}
	if e, ok := d.stDefines.Lookup(name); ok {
		return e.Value, true
	}
	return 0, false
}

// emitDirective dispatches a directive statement, including the
// supplemented CONFIG/IDLOCS/device-id handling.
func (d *Driver) emitDirective(s Statement) {
	switch s.Directive.Kind {
	case DirProcessor:
		// Processor selection is fixed by Options at driver construction;
		// a `processor` directive in the source is validated, not acted
		// on, so a mismatched source/command-line processor is reported.
		if s.Directive.Name != "" && s.Directive.Name != d.opts.Processor.Name {
			d.report(diag.SeverityWarning, s.Pos, fmt.Sprintf("source selects processor %q, assembling for %q", s.Directive.Name, d.opts.Processor.Name))
		}

	case DirConfig:
		d.emitConfig(s)

	case DirIDLocs:
		d.emitIDLocs(s)

	case DirOrg:
		d.org = uint32(s.Directive.Value)

	case DirSection:
		d.switchSection(s.Directive.Name)

	case DirEqu:
		d.stTop.Insert(s.Directive.Name, s.Directive.Value, nil)

	case DirDB, DirDW:
		d.emitRaw(s)

	case DirEnd:
		d.endFound = true
	}
}

func (d *Driver) switchSection(name string) {
	for i, sec := range d.obj.Sections {
		if sec.Name == name {
			d.curSection = i
			d.org = sec.Address / d.obj.ROMWidth
			return
		}
	}
	idx := d.obj.AddSection(object.Section{Name: name, Flags: sectionFlagsFor(name), Symbol: -1})
	d.curSection = idx
	d.org = 0
}

func (d *Driver) emitRaw(s Statement) {
	if d.curSection < 0 {
		d.report(diag.SeverityError, s.Pos, "data directive outside any section")
		return
	}
	sec := &d.obj.Sections[d.curSection]
	sec.Data = append(sec.Data, s.Directive.RawBytes...)
	sec.Size += uint32(len(s.Directive.RawBytes))
}
