package codec

import (
	"fmt"

	"github.com/pictool/pictool/pkg/memmap"
)

// Decoded is the result of decoding one instruction word (or word
// pair) at an address.
type Decoded struct {
	Mnemonic  string
	Text      string // full printable form, e.g. "MOVLW 0x3F" or "dw 0xFFFF"
	WordCount int
	Icode     Icode
}

// Decode inspects the word at addr and produces a printable form. It
// does not itself run the labelling pass (see Label); a decoder used
// standalone prints raw numeric operands.
func Decode(mem *memmap.Map, cat *Catalog, addr uint32) Decoded {
	lo, _, ann := mem.Get(addr)
	hi, _, _ := mem.Get(addr + 1)
	word := uint16(lo) | uint16(hi)<<8

	if ann.SecondWord {
		return Decoded{Mnemonic: "dw", Text: fmt.Sprintf("dw 0x%04X", word), WordCount: 1}
	}

	entry, ok := cat.ByOpcode(word)
	if !ok {
		return Decoded{Mnemonic: "dw", Text: fmt.Sprintf("dw 0x%04X", word), WordCount: 1}
	}

	text, words := printForm(entry, word)
	return Decoded{Mnemonic: entry.Mnemonic, Text: text, WordCount: words, Icode: entry.Icode}
}

func printForm(e Entry, word uint16) (string, int) {
	switch e.Class {
	case ClassInherent:
		return e.Mnemonic, 1
	case ClassOPWF5:
		file := word & 0x1F
		dest := (word >> 5) & 1
		destStr := "W"
		if dest == 1 {
			destStr = "F"
		}
		return fmt.Sprintf("%s 0x%02X,%s", e.Mnemonic, file, destStr), 1
	case ClassBitOp:
		file := word & 0x1F
		bit := (word >> 5) & 0x7
		return fmt.Sprintf("%s 0x%02X,%d", e.Mnemonic, file, bit), 1
	case ClassLIT8:
		lit := word & 0xFF
		return fmt.Sprintf("%s 0x%02X", e.Mnemonic, lit), 1
	case ClassLIT11:
		target := word & 0x7FF
		return fmt.Sprintf("%s 0x%04X", e.Mnemonic, target), 1
	case ClassRBRA8:
		disp := int16(word&0x7FF) << 5 >> 5 // sign-extend 11 bits
		return fmt.Sprintf("%s %d", e.Mnemonic, disp), 1
	case ClassGoto2, ClassFF, ClassLFSR, ClassMovSF, ClassMovSS:
		return fmt.Sprintf("%s <needs second word>", e.Mnemonic), 2
	default:
		return fmt.Sprintf("dw 0x%04X", word), 1
	}
}

// DecodeSymbolic decodes the word at addr like Decode, but resolves
// file-register operands to SFR names using state's tracked bank, and
// GOTO/CALL targets to the symbolic tag Label already attached to the
// destination address, instead of printing raw hex for either. It
// returns the state advanced past this instruction so the caller can
// thread it into the next DecodeSymbolic call in program order; pass
// AtBranchDestination() for the first instruction of a section or any
// address Label marked as a branch destination, since no predecessor
// state can be trusted to carry across a control-flow join.
func DecodeSymbolic(mem *memmap.Map, cat *Catalog, addr uint32, state State) (Decoded, State) {
	d := Decode(mem, cat, addr)

	word := wordAt(mem, addr)
	entry, ok := cat.ByOpcode(word)
	if !ok {
		return d, state
	}

	switch entry.Class {
	case ClassOPWF5:
		file := uint32(word & 0x1F)
		destStr := "W"
		if (word>>5)&1 == 1 {
			destStr = "F"
		}
		if name, ok := sfrName(state.Bank, file); ok {
			d.Text = fmt.Sprintf("%s %s,%s", entry.Mnemonic, name, destStr)
		}
	case ClassBitOp:
		file := uint32(word & 0x1F)
		bit := (word >> 5) & 0x7
		if name, ok := sfrName(state.Bank, file); ok {
			d.Text = fmt.Sprintf("%s %s,%d", entry.Mnemonic, name, bit)
		}
	case ClassLIT11:
		if entry.Icode == IcodeCALL || entry.Icode == IcodeGOTO {
			destOrg := uint32(word & 0x7FF)
			if label := branchLabel(mem, destOrg*2); label != "" {
				d.Text = fmt.Sprintf("%s %s", entry.Mnemonic, label)
			}
		}
	}

	return d, stepState(state, entry, word)
}

func wordAt(mem *memmap.Map, addr uint32) uint16 {
	lo, _, _ := mem.Get(addr)
	hi, _, _ := mem.Get(addr + 1)
	return uint16(lo) | uint16(hi)<<8
}

// branchLabel returns the symbolic tag Label attached to destAddr, or
// "" if Label never marked it as a branch destination (a computed or
// out-of-range target leaves it AddrTypeNone).
func branchLabel(mem *memmap.Map, destAddr uint32) string {
	switch mem.GetAddrType(destAddr) {
	case memmap.AddrTypeFunc:
		return fmt.Sprintf("F_0x%04X", destAddr)
	case memmap.AddrTypeLabel:
		return fmt.Sprintf("L_0x%04X", destAddr)
	default:
		return ""
	}
}

// stepState advances state by the decoded entry, feeding Step the
// icodes whose destination register is fixed by convention (MOVLW's
// literal into WREG, CLRW's zero into WREG, MOVLB's/MOVLP's literal
// into Bank/PCLATH, BSF/BCF only when the addressed file is PCLATH, per
// Step's own caller-gates-applicability contract, and CALL, after which
// Step resets every register to unknown). Every other icode leaves
// state untouched rather than guess at an ungated destination register.
func stepState(state State, entry Entry, word uint16) State {
	switch entry.Icode {
	case IcodeMOVLW:
		return Step(state, entry.Icode, word&0xFF, 0)
	case IcodeMOVLB, IcodeMOVLP:
		return Step(state, entry.Icode, word&0xFF, 0)
	case IcodeCLRW:
		return Step(state, entry.Icode, 0, 0)
	case IcodeBSF, IcodeBCF:
		if file := word & 0x1F; file == 0x0A { // PCLATH
			bit := uint16(1) << ((word >> 5) & 0x7)
			return Step(state, entry.Icode, 0, bit)
		}
	case IcodeCALL, IcodeGOTO:
		return Step(state, entry.Icode, 0, 0)
	}
	return state
}

// Label runs the two-pass labelling walk over the image: the first
// pass marks second-word bytes so the second pass can correctly skip
// them while marking every branch source and destination, per the
// decoder's labelling-pass contract.
func Label(mem *memmap.Map, cat *Catalog, programWords uint32) {
	// Pass 1: mark second words.
	for org := uint32(0); org < programWords; {
		addr := org * 2
		lo, used, _ := mem.Get(addr)
		hi, _, _ := mem.Get(addr + 1)
		if !used {
			org++
			continue
		}
		word := uint16(lo) | uint16(hi)<<8
		entry, ok := cat.ByOpcode(word)
		if ok && entry.WordsEmitted == 2 {
			mem.SetFlag(addr+2, false, true, memmap.AddrTypeNone)
			mem.SetFlag(addr+3, false, true, memmap.AddrTypeNone)
			org += 2
			continue
		}
		org++
	}

	// Pass 2: mark branch sources and destinations.
	for org := uint32(0); org < programWords; org++ {
		addr := org * 2
		_, _, ann := mem.Get(addr)
		if ann.SecondWord {
			continue
		}
		lo, used, _ := mem.Get(addr)
		hi, _, _ := mem.Get(addr + 1)
		if !used {
			continue
		}
		word := uint16(lo) | uint16(hi)<<8
		entry, ok := cat.ByOpcode(word)
		if !ok {
			continue
		}

		var destOrg uint32
		var isFunc bool
		switch entry.Icode {
		case IcodeCALL:
			destOrg = uint32(word & 0x7FF)
			isFunc = true
		case IcodeGOTO:
			destOrg = uint32(word & 0x7FF)
			isFunc = false
		default:
			continue
		}

		mem.SetFlag(addr, false, false, memmap.AddrTypeBranchSrc)

		destAddr := destOrg * 2
		if destOrg < programWords {
			if isFunc {
				mem.SetFlag(destAddr, false, false, memmap.AddrTypeFunc)
			} else {
				mem.SetFlag(destAddr, false, false, memmap.AddrTypeLabel)
			}
		}
	}
}
