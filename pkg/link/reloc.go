package link

import (
	"encoding/binary"
	"fmt"

	"github.com/pictool/pictool/internal/bitutil"
	"github.com/pictool/pictool/pkg/object"
)

// symbolAddress resolves a relocation's target symbol to its final
// linked address: the symbol's owning section's allocated Address
// plus the symbol's section-relative Value.
func (c *Context) symbolAddress(unitIdx, symIdx int) (uint32, error) {
	u := c.res.units[unitIdx]
	if symIdx < 0 || symIdx >= len(u.obj.Symbols) {
		return 0, fmt.Errorf("relocation references out-of-range symbol %d", symIdx)
	}
	sym := &u.obj.Symbols[symIdx]
	if sym.Section < 0 {
		// Symbol must have been resolved to a defining unit elsewhere
		// (extern global); look it up there.
		ownerIdx, ok := c.res.externGlobal[sym.Name]
		if !ok {
			return 0, fmt.Errorf("symbol %q is undefined", sym.Name)
		}
		owner := c.res.units[ownerIdx]
		defSymIdx := owner.obj.FindSymbol(sym.Name)
		if defSymIdx < 0 {
			return 0, fmt.Errorf("symbol %q missing from its own defining unit", sym.Name)
		}
		defSym := &owner.obj.Symbols[defSymIdx]
		return uint32(defSym.Value) + owner.obj.Sections[defSym.Section].Address, nil
	}
	return uint32(sym.Value) + u.obj.Sections[sym.Section].Address, nil
}

// PatchRelocations walks every section of every linked unit and
// resolves its relocations in place, per the relocation taxonomy in
// the object model: absolute branches, relative branches, bank/page
// selection primitives, arithmetic byte-slices, and section-size
// relocs. Successfully patched sections have SectionReloc cleared.
func (c *Context) PatchRelocations() error {
	for ui, u := range c.res.units {
		for si := range u.obj.Sections {
			sec := &u.obj.Sections[si]
			for _, reloc := range sec.Relocations {
				if err := c.patchOne(ui, sec, reloc); err != nil {
					return fmt.Errorf("section %q: %w", sec.Name, err)
				}
			}
			sec.Flags &^= object.SectionReloc
		}
	}
	return nil
}

func (c *Context) patchOne(unitIdx int, sec *object.Section, reloc object.Relocation) error {
	target, err := c.symbolAddress(unitIdx, reloc.Symbol)
	if err != nil {
		return err
	}
	value := target + uint32(reloc.Addend)

	if int(reloc.Offset)+2 > len(sec.Data) {
		return fmt.Errorf("relocation offset 0x%X out of bounds", reloc.Offset)
	}
	word := binary.LittleEndian.Uint16(sec.Data[reloc.Offset:])
	view := bitutil.CreateBitView(&word)

	switch reloc.Type {
	case object.RelocGoto, object.RelocCall:
		view.Put(uint16(value/2), 0, 11)

	case object.RelocGoto2:
		if int(reloc.Offset)+4 > len(sec.Data) {
			return fmt.Errorf("GOTO2 relocation needs two words at offset 0x%X", reloc.Offset)
		}
		org := value / 2
		view.Put(uint16(org), 0, 8)
		word2 := binary.LittleEndian.Uint16(sec.Data[reloc.Offset+2:])
		view2 := bitutil.CreateBitView(&word2)
		view2.Put(uint16(org>>8), 0, 12)
		binary.LittleEndian.PutUint16(sec.Data[reloc.Offset+2:], word2)

	case object.RelocBra, object.RelocRCall:
		pc := sec.Address + reloc.Offset
		disp := (int64(value) - int64(pc) - 2) / 2
		if !bitutil.FitsSigned(disp, 11) {
			return fmt.Errorf("relative branch displacement %d out of range at 0x%X", disp, reloc.Offset)
		}
		view.Put(uint16(disp)&0x7FF, 0, 11)

	case object.RelocCondBra:
		pc := sec.Address + reloc.Offset
		disp := (int64(value) - int64(pc) - 2) / 2
		if !bitutil.FitsSigned(disp, 9) {
			return fmt.Errorf("conditional branch displacement %d out of range at 0x%X", disp, reloc.Offset)
		}
		view.Put(uint16(disp)&0x1FF, 0, 9)

	case object.RelocLow:
		view.Put(uint16(value&0xFF), 0, 8)

	case object.RelocHigh:
		view.Put(uint16((value>>8)&0xFF), 0, 8)

	case object.RelocUpper:
		view.Put(uint16((value>>16)&0xFF), 0, 8)

	case object.RelocF:
		view.Put(uint16(value&0x7F), 0, 7)

	case object.RelocBanksel, object.RelocIBanksel:
		// The bank number the instruction's operand field must select;
		// the caller is expected to have reserved BANKSEL's full
		// instruction sequence at assembly time. Here we only patch the
		// literal field carrying the bank index.
		view.Put(uint16(value&0xFF), 0, 8)

	case object.RelocMovlb:
		view.Put(uint16(value&0xFF), 0, 8)

	case object.RelocPageselWreg, object.RelocPageselBits, object.RelocPageselMovlp, object.RelocPagesel:
		view.Put(uint16(value&0xFF), 0, 8)

	case object.RelocScnszLow:
		view.Put(uint16(sec.Size&0xFF), 0, 8)
	case object.RelocScnszHigh:
		view.Put(uint16((sec.Size>>8)&0xFF), 0, 8)
	case object.RelocScnszUpper:
		view.Put(uint16((sec.Size>>16)&0xFF), 0, 8)
	case object.RelocScnend:
		view.Put(uint16((sec.Address+sec.Size)&0xFFFF), 0, 16)

	default:
		// Tris/Tris3Bit/Movlr/FF1/FF2/LFSR1/LFSR2/Access/P primitives
		// share the low-byte literal convention used above.
		view.Put(uint16(value&0xFF), 0, 8)
	}

	binary.LittleEndian.PutUint16(sec.Data[reloc.Offset:], word)
	return nil
}
