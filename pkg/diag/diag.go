// Package diag implements the diagnostic classification and collection
// described by the error handling design: usage/config, source, link
// and internal errors, each carrying a numeric code from one of three
// disjoint ranges, accumulated by a Sink that drives the exit-code and
// golden-file rules.
package diag

import (
	"fmt"
	"io"
	"sort"

	"github.com/fatih/color"
	"github.com/pictool/pictool/internal/xerrors"
)

// Kind classifies where a diagnostic came from.
type Kind int

const (
	KindUsage Kind = iota
	KindSource
	KindLink
	KindInternal
)

// Severity is the upgraded/suppressed classification of a message,
// independent of its Kind.
type Severity int

const (
	SeverityMessage Severity = iota
	SeverityWarning
	SeverityError
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return "message"
	}
}

// Code ranges, mirroring the three disjoint numeric ranges named in
// §7: errors, warnings, and plain messages, each with room for
// extension codes in its upper half.
const (
	ErrorCodeBase    = 1000
	WarningCodeBase  = 2000
	MessageCodeBase  = 3000
	ExtensionOffset  = 500
)

// Diagnostic is one reported problem.
type Diagnostic struct {
	Code     int
	Severity Severity
	Kind     Kind
	Pos      xerrors.Position
	Message  string
}

func (d Diagnostic) String() string {
	if d.Pos.IsValid() {
		return fmt.Sprintf("%s: %s %d: %s", d.Pos, d.Severity, d.Code, d.Message)
	}
	return fmt.Sprintf("%s %d: %s", d.Severity, d.Code, d.Message)
}

// Sink accumulates diagnostics for one program invocation, rendering
// them through a colorized writer the way the teacher's syntax
// highlighter colorized source text.
type Sink struct {
	w                     io.Writer
	strictThreshold       int // messages >= this code are upgraded to errors
	warningThreshold      int // messages below this code are suppressed
	diagnostics           []Diagnostic
	errorCount, warnCount int

	errColor  *color.Color
	warnColor *color.Color
	noteColor *color.Color
}

// NewSink creates a diagnostic sink writing to w. A strictThreshold of
// 0 disables upgrading; a warningThreshold of 0 disables suppression.
func NewSink(w io.Writer, strictThreshold, warningThreshold int) *Sink {
	return &Sink{
		w:                w,
		strictThreshold:  strictThreshold,
		warningThreshold: warningThreshold,
		errColor:         color.New(color.FgRed, color.Bold),
		warnColor:        color.New(color.FgYellow),
		noteColor:        color.New(color.FgCyan),
	}
}

// Report classifies, accumulates and prints one diagnostic, applying
// the strict/warning threshold rules before counting it.
func (s *Sink) Report(d Diagnostic) {
	if d.Kind != KindInternal {
		if s.warningThreshold > 0 && d.Code < s.warningThreshold {
			return
		}
		if s.strictThreshold > 0 && d.Code >= s.strictThreshold && d.Severity != SeverityError {
			d.Severity = SeverityError
		}
	}

	s.diagnostics = append(s.diagnostics, d)
	switch d.Severity {
	case SeverityError:
		s.errorCount++
	case SeverityWarning:
		s.warnCount++
	}

	s.print(d)
}

func (s *Sink) print(d Diagnostic) {
	if s.w == nil {
		return
	}
	var c *color.Color
	switch d.Severity {
	case SeverityError:
		c = s.errColor
	case SeverityWarning:
		c = s.warnColor
	default:
		c = s.noteColor
	}
	c.Fprintln(s.w, d.String())
}

// Counts returns the accumulated error and warning counts.
func (s *Sink) Counts() (errors, warnings int) {
	return s.errorCount, s.warnCount
}

// HasErrors reports whether any error-severity diagnostic has been
// reported, the condition under which the golden rule requires output
// files to be suppressed or unlinked.
func (s *Sink) HasErrors() bool {
	return s.errorCount > 0
}

// ExitCode implements §7's exit-code convention: 0 on success, 1 on a
// usage error, and the clamped error count otherwise.
func (s *Sink) ExitCode() int {
	for _, d := range s.diagnostics {
		if d.Kind == KindUsage && d.Severity == SeverityError {
			return 1
		}
	}
	if s.errorCount == 0 {
		return 0
	}
	if s.errorCount > 255 {
		return 255
	}
	return s.errorCount
}

// Diagnostics returns every accumulated diagnostic in report order.
func (s *Sink) Diagnostics() []Diagnostic {
	return s.diagnostics
}

// SortedByPosition returns the accumulated diagnostics ordered by
// source file then line, for a final listing pass; diagnostics without
// a position sort last.
func (s *Sink) SortedByPosition() []Diagnostic {
	out := make([]Diagnostic, len(s.diagnostics))
	copy(out, s.diagnostics)
	sort.SliceStable(out, func(i, j int) bool {
		pi, oki := out[i].Pos, out[i].Pos.IsValid()
		pj, okj := out[j].Pos, out[j].Pos.IsValid()
		if oki != okj {
			return oki
		}
		if !oki {
			return false
		}
		if pi.File != pj.File {
			return pi.File < pj.File
		}
		return pi.Line < pj.Line
	})
	return out
}
