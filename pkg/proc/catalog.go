package proc

import (
	_ "embed"
	"fmt"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type rawRange struct {
	Start uint32 `yaml:"start"`
	End   uint32 `yaml:"end"`
}

type rawDescriptor struct {
	Name           string   `yaml:"name"`
	Class          string   `yaml:"class"`
	Banks          int      `yaml:"banks"`
	Pages          int      `yaml:"pages"`
	BankSize       uint32   `yaml:"bankSize"`
	PageSize       uint32   `yaml:"pageSize"`
	ProgramSize    uint32   `yaml:"programSize"`
	ConfigWords    rawRange `yaml:"configWords"`
	IDLocs         rawRange `yaml:"idLocs"`
	EEPROM         rawRange `yaml:"eeprom"`
	OrgToByteShift uint     `yaml:"orgToByteShift"`
	Flags          []string `yaml:"flags"`
}

type rawCatalog struct {
	Processors []rawDescriptor `yaml:"processors"`
}

var classByName = map[string]Class{
	"PIC12":    ClassPIC12,
	"PIC12E":   ClassPIC12E,
	"PIC12I":   ClassPIC12I,
	"SX":       ClassSX,
	"PIC14":    ClassPIC14,
	"PIC14E":   ClassPIC14E,
	"PIC14EX":  ClassPIC14EX,
	"PIC16":    ClassPIC16,
	"PIC16E":   ClassPIC16E,
	"EEPROM8":  ClassEEPROM8,
	"EEPROM16": ClassEEPROM16,
	"GENERIC":  ClassGeneric,
}

var flagByName = map[string]CPUFlags{
	"HAS_EXT_INST": HasExtInst,
	"IS_18FJ":      IsJ,
	"NO_OPTION":    NoOption,
}

var (
	once     sync.Once
	catalog  map[string]Descriptor
	loadErr  error
)

func load() {
	var raw rawCatalog
	if err := yaml.Unmarshal(catalogYAML, &raw); err != nil {
		loadErr = fmt.Errorf("parsing processor catalog: %w", err)
		return
	}

	catalog = make(map[string]Descriptor, len(raw.Processors))
	for _, rd := range raw.Processors {
		class, ok := classByName[rd.Class]
		if !ok {
			loadErr = fmt.Errorf("processor %s: unknown class %q", rd.Name, rd.Class)
			return
		}

		var flags CPUFlags
		for _, f := range rd.Flags {
			bit, ok := flagByName[f]
			if !ok {
				loadErr = fmt.Errorf("processor %s: unknown flag %q", rd.Name, f)
				return
			}
			flags |= bit
		}

		d := Descriptor{
			Name:           rd.Name,
			Class:          class,
			Flags:          flags,
			Banks:          rd.Banks,
			Pages:          rd.Pages,
			BankSize:       rd.BankSize,
			PageSize:       rd.PageSize,
			ProgramSize:    rd.ProgramSize,
			ConfigWords:    AddrRange{Start: rd.ConfigWords.Start, End: rd.ConfigWords.End},
			IDLocs:         AddrRange{Start: rd.IDLocs.Start, End: rd.IDLocs.End},
			EEPROM:         AddrRange{Start: rd.EEPROM.Start, End: rd.EEPROM.End},
			OrgToByteShift: rd.OrgToByteShift,
		}
		d.SelectBank = bankSelectorFor(class, d)
		d.SelectPage = pageSelectorFor(class, d)
		catalog[rd.Name] = d
	}
}

// Lookup returns the descriptor for the named device.
func Lookup(name string) (Descriptor, error) {
	once.Do(load)
	if loadErr != nil {
		return Descriptor{}, loadErr
	}
	d, ok := catalog[name]
	if !ok {
		return Descriptor{}, fmt.Errorf("unknown processor %q", name)
	}
	return d, nil
}

// Names returns the sorted list of known processor names.
func Names() ([]string, error) {
	once.Do(load)
	if loadErr != nil {
		return nil, loadErr
	}
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// bankSelectorFor returns the opcode-emitting function appropriate for
// a class's bank-selection idiom. Classic 14-bit devices use a pair of
// STATUS<RP1:RP0> bit instructions; extended-14-bit and 16-bit devices
// use a single MOVLB; unbanked classes never need to select.
func bankSelectorFor(class Class, d Descriptor) BankSelector {
	switch class {
	case ClassPIC14:
		return func(target uint32) []uint16 {
			bank := d.BankOf(target)
			const bcfSTATUSRP0, bsfSTATUSRP0 = 0x1283, 0x1683
			const bcfSTATUSRP1, bsfSTATUSRP1 = 0x1303, 0x1703
			var words []uint16
			if bank&1 != 0 {
				words = append(words, bsfSTATUSRP0)
			} else {
				words = append(words, bcfSTATUSRP0)
			}
			if d.Banks > 2 {
				if bank&2 != 0 {
					words = append(words, bsfSTATUSRP1)
				} else {
					words = append(words, bcfSTATUSRP1)
				}
			}
			return words
		}
	case ClassPIC14E, ClassPIC16, ClassPIC16E:
		return func(target uint32) []uint16 {
			const movlb = 0x2000 // family-specific base opcode for MOVLB k
			return []uint16{movlb | uint16(d.BankOf(target)&0x1F)}
		}
	default:
		return func(uint32) []uint16 { return nil }
	}
}

// pageSelectorFor returns the opcode-emitting function for a class's
// page-selection idiom: classic 14-bit devices set PCLATH<4:3> via
// bit instructions; extended families use MOVLP.
func pageSelectorFor(class Class, d Descriptor) PageSelector {
	switch class {
	case ClassPIC14:
		return func(target uint32) []uint16 {
			page := d.PageOf(target)
			const bcfPCLATH3, bsfPCLATH3 = 0x1283 ^ 0x0100, 0x1683 ^ 0x0100
			const bcfPCLATH4, bsfPCLATH4 = 0x1283 ^ 0x0180, 0x1683 ^ 0x0180
			var words []uint16
			if page&1 != 0 {
				words = append(words, bsfPCLATH3)
			} else {
				words = append(words, bcfPCLATH3)
			}
			if d.Pages > 2 {
				if page&2 != 0 {
					words = append(words, bsfPCLATH4)
				} else {
					words = append(words, bcfPCLATH4)
				}
			}
			return words
		}
	case ClassPIC14E:
		return func(target uint32) []uint16 {
			const movlp = 0x3180
			return []uint16{movlp | uint16(d.PageOf(target)&0x7F)}
		}
	default:
		return func(uint32) []uint16 { return nil }
	}
}
