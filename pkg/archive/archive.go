// Package archive implements the archive model: an ordered collection
// of member objects with an optional symbol-name to member-index
// index, used by the linker's pull-in algorithm to resolve references
// against a library without linking every member unconditionally.
package archive

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/pictool/pictool/pkg/object"
)

// indexMemberName is the distinguished member name whose presence
// signals that the archive carries a prebuilt symbol index.
const indexMemberName = "__.SYMDEF"

// Member is one named raw-byte entry of an archive.
type Member struct {
	Name string
	Data []byte
}

// Archive is an ordered list of members plus an optional symbol index
// mapping an exported symbol name to the index of the member that
// defines it.
type Archive struct {
	Members []Member
	Index   map[string]int // symbol name -> member index, nil if absent
}

// New creates an empty archive.
func New() *Archive {
	return &Archive{}
}

// AddMember appends a member.
func (a *Archive) AddMember(name string, data []byte) {
	a.Members = append(a.Members, Member{Name: name, Data: data})
}

// HasIndex reports whether the archive carries a prebuilt symbol
// index member.
func (a *Archive) HasIndex() bool {
	return a.Index != nil
}

// BuildIndex scans every member, parsing it as an object and recording
// each of its exported (extern, defined) symbols. This is how a
// missing index is synthesized on load, with a caller-supplied warning
// callback invoked once.
func (a *Archive) BuildIndex(warn func(string)) error {
	if a.HasIndex() {
		return nil
	}
	if warn != nil {
		warn(fmt.Sprintf("archive has no symbol index; scanning %d members", len(a.Members)))
	}
	idx := make(map[string]int)
	for i, m := range a.Members {
		obj, err := object.Read(bytes.NewReader(m.Data))
		if err != nil {
			// Non-object members (e.g. the index itself, or text
			// members) are skipped rather than treated as fatal.
			continue
		}
		for _, sym := range obj.Symbols {
			if sym.Class == object.ClassExt && sym.IsDefined() {
				if _, exists := idx[sym.Name]; !exists {
					idx[sym.Name] = i
				}
			}
		}
	}
	a.Index = idx
	return nil
}

// Lookup returns the member index defining symbol name, if the index
// (built or loaded) knows about it.
func (a *Archive) Lookup(name string) (int, bool) {
	if a.Index == nil {
		return 0, false
	}
	i, ok := a.Index[name]
	return i, ok
}

// Object parses member i as an object.
func (a *Archive) Object(i int) (*object.Object, error) {
	return object.Read(bytes.NewReader(a.Members[i].Data))
}

// Write serializes the archive as a concatenation of (name header,
// size, bytes) tuples, per §6's external archive format.
func Write(w io.Writer, a *Archive) error {
	for _, m := range a.Members {
		var nameLen [2]byte
		binary.LittleEndian.PutUint16(nameLen[:], uint16(len(m.Name)))
		if _, err := w.Write(nameLen[:]); err != nil {
			return err
		}
		if _, err := io.WriteString(w, m.Name); err != nil {
			return err
		}
		var size [4]byte
		binary.LittleEndian.PutUint32(size[:], uint32(len(m.Data)))
		if _, err := w.Write(size[:]); err != nil {
			return err
		}
		if _, err := w.Write(m.Data); err != nil {
			return err
		}
	}
	return nil
}

// Read parses a concatenation of (name header, size, bytes) tuples
// produced by Write. A member named indexMemberName is recognized as
// a pre-built symbol index and decoded into a.Index rather than kept
// as an ordinary member.
func Read(r io.Reader) (*Archive, error) {
	a := New()
	for {
		var nameLen [2]byte
		_, err := io.ReadFull(r, nameLen[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading member name length: %w", err)
		}
		nameBuf := make([]byte, binary.LittleEndian.Uint16(nameLen[:]))
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, fmt.Errorf("reading member name: %w", err)
		}
		var size [4]byte
		if _, err := io.ReadFull(r, size[:]); err != nil {
			return nil, fmt.Errorf("reading member size: %w", err)
		}
		data := make([]byte, binary.LittleEndian.Uint32(size[:]))
		if _, err := io.ReadFull(r, data); err != nil {
			return nil, fmt.Errorf("reading member data: %w", err)
		}

		name := string(nameBuf)
		if name == indexMemberName {
			idx, err := decodeIndex(data)
			if err != nil {
				return nil, fmt.Errorf("decoding symbol index: %w", err)
			}
			a.Index = idx
			continue
		}
		a.AddMember(name, data)
	}
	return a, nil
}

// WriteIndex serializes the archive's in-memory symbol index (if any)
// as a member named indexMemberName, so a subsequent Read can detect
// and reuse it instead of rescanning every member.
func WriteIndex(w io.Writer, a *Archive) error {
	if !a.HasIndex() {
		return nil
	}
	var body bytes.Buffer
	for name, member := range a.Index {
		var nameLen [2]byte
		binary.LittleEndian.PutUint16(nameLen[:], uint16(len(name)))
		body.Write(nameLen[:])
		body.WriteString(name)
		var idx [4]byte
		binary.LittleEndian.PutUint32(idx[:], uint32(member))
		body.Write(idx[:])
	}

	var nameLen [2]byte
	binary.LittleEndian.PutUint16(nameLen[:], uint16(len(indexMemberName)))
	if _, err := w.Write(nameLen[:]); err != nil {
		return err
	}
	if _, err := io.WriteString(w, indexMemberName); err != nil {
		return err
	}
	var size [4]byte
	binary.LittleEndian.PutUint32(size[:], uint32(body.Len()))
	if _, err := w.Write(size[:]); err != nil {
		return err
	}
	_, err := w.Write(body.Bytes())
	return err
}

func decodeIndex(data []byte) (map[string]int, error) {
	idx := make(map[string]int)
	r := bytes.NewReader(data)
	for r.Len() > 0 {
		var nameLen [2]byte
		if _, err := io.ReadFull(r, nameLen[:]); err != nil {
			return nil, err
		}
		nameBuf := make([]byte, binary.LittleEndian.Uint16(nameLen[:]))
		if _, err := io.ReadFull(r, nameBuf); err != nil {
			return nil, err
		}
		var member [4]byte
		if _, err := io.ReadFull(r, member[:]); err != nil {
			return nil, err
		}
		idx[string(nameBuf)] = int(binary.LittleEndian.Uint32(member[:]))
	}
	return idx, nil
}
