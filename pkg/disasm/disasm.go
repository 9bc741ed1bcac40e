// Package disasm implements the disassembler: instruction-boundary
// identification, branch marking, and printable listing generation
// over a memmap.Map, plus the Stripper operation that removes
// debug-only object content.
package disasm

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pictool/pictool/pkg/codec"
	"github.com/pictool/pictool/pkg/memmap"
	"github.com/pictool/pictool/pkg/proc"
)

// Options configures one disassembly run.
type Options struct {
	Processor proc.Descriptor
	Strict    bool // rewrite RETLW sequences to "dt" pseudo-ops
}

// Line is one printable output line.
type Line struct {
	Address uint32
	Text    string
}

// Disassemble runs the full pipeline over mem: instruction-boundary
// identification (via codec.Label), then emission, honoring
// config/id-location address ranges (emit dw, never db, instead of decoding)
// and strict-mode RETLW→dt rewriting.
func Disassemble(mem *memmap.Map, opts Options, programWords uint32) []Line {
	cat := catalogFor(opts.Processor)
	codec.Label(mem, cat, programWords)

	var lines []Line
	var retlwRun []uint32 // addresses of a contiguous RETLW run, for strict-mode rewriting

	flushRetlw := func() {
		if len(retlwRun) == 0 {
			return
		}
		if opts.Strict && len(retlwRun) > 1 {
			var vals []string
			for _, addr := range retlwRun {
				d := codec.Decode(mem, cat, addr)
				vals = append(vals, literalFromRetlw(d.Text))
			}
			lines = append(lines, Line{Address: retlwRun[0], Text: "dt " + strings.Join(vals, ", ")})
		} else {
			for _, addr := range retlwRun {
				d := codec.Decode(mem, cat, addr)
				lines = append(lines, Line{Address: addr, Text: d.Text})
			}
		}
		retlwRun = nil
	}

	// state is the running WREG/PCLATH/bank dataflow snapshot threaded
	// across consecutive instructions via codec.DecodeSymbolic, so a
	// file-register operand can be printed as its SFR name once a
	// MOVLB/MOVLP/BSF-PCLATH has pinned the relevant bit down. It resets
	// to Unknown at the start of a section and at every address Label
	// marked as a branch destination, since no single predecessor state
	// can be trusted across a control-flow join.
	state := codec.AtBranchDestination()
	sawGap := true

	for org := uint32(0); org < programWords; {
		addr := org * 2
		_, used, ann := mem.Get(addr)
		if !used {
			org++
			sawGap = true
			continue
		}
		if ann.SecondWord {
			org++
			continue
		}

		if sawGap || ann.AddrType == memmap.AddrTypeFunc || ann.AddrType == memmap.AddrTypeLabel {
			state = codec.AtBranchDestination()
		}
		sawGap = false

		if inRange(opts.Processor.ConfigWords, org) || inRange(opts.Processor.IDLocs, org) {
			flushRetlw()
			lo, _, _ := mem.Get(addr)
			hi, _, _ := mem.Get(addr + 1)
			word := uint16(lo) | uint16(hi)<<8
			lines = append(lines, Line{Address: addr, Text: fmt.Sprintf("dw 0x%04X", word)})
			org++
			continue
		}

		d, next := codec.DecodeSymbolic(mem, cat, addr, state)
		state = next
		if d.Icode == codec.IcodeRETLW {
			retlwRun = append(retlwRun, addr)
			org += uint32(d.WordCount)
			continue
		}
		flushRetlw()
		lines = append(lines, Line{Address: addr, Text: d.Text})
		org += uint32(d.WordCount)
	}
	flushRetlw()

	sort.Slice(lines, func(i, j int) bool { return lines[i].Address < lines[j].Address })
	return lines
}

func inRange(r proc.AddrRange, org uint32) bool {
	if r.Start == 0 && r.End == 0 {
		return false
	}
	return r.Contains(org)
}

func literalFromRetlw(text string) string {
	// text is of the form "RETLW 0xNN"; extract the literal.
	parts := strings.Fields(text)
	if len(parts) != 2 {
		return "0x00"
	}
	return parts[1]
}

func catalogFor(d proc.Descriptor) *codec.Catalog {
	if d.Class == proc.ClassPIC16 || d.Class == proc.ClassPIC16E {
		return codec.PIC16Catalog()
	}
	return codec.PIC14Catalog()
}
