// Package xerrors provides the small set of error helpers shared across
// the assembler, linker and disassembler: wrapping with extra context and
// attaching a source position to a plain error.
package xerrors

import "fmt"

// Wrap builds a new error that wraps err, adding a formatted detail
// message. The original error remains reachable through errors.Is/As.
func Wrap(err error, detail string, args ...any) error {
	return fmt.Errorf("%w: "+detail, append([]any{err}, args...)...)
}

// Position identifies a location in a source file, used to annotate
// diagnostics raised while assembling or linking.
type Position struct {
	File   string
	Line   int
	Column int
}

func (p Position) String() string {
	if p.File == "" {
		return "<unknown>"
	}
	if p.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
	}
	if p.Line > 0 {
		return fmt.Sprintf("%s:%d", p.File, p.Line)
	}
	return p.File
}

// IsValid reports whether the position carries any location information.
func (p Position) IsValid() bool {
	return p.File != "" || p.Line != 0
}

// Located wraps err with a source position, so diagnostic printers can
// point at the offending line without parsing the error string.
type Located struct {
	Pos Position
	Err error
}

func At(pos Position, err error) error {
	if err == nil {
		return nil
	}
	return &Located{Pos: pos, Err: err}
}

func (l *Located) Error() string {
	if !l.Pos.IsValid() {
		return l.Err.Error()
	}
	return fmt.Sprintf("%s: %s", l.Pos, l.Err)
}

func (l *Located) Unwrap() error {
	return l.Err
}

// PositionOf extracts the Position carried by err, if any.
func PositionOf(err error) (Position, bool) {
	var l *Located
	for err != nil {
		if located, ok := err.(*Located); ok {
			l = located
			break
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			break
		}
		err = u.Unwrap()
	}
	if l == nil {
		return Position{}, false
	}
	return l.Pos, true
}
