package diag_test

import (
	"bytes"
	"testing"

	"github.com/pictool/pictool/internal/xerrors"
	"github.com/pictool/pictool/pkg/diag"
	"github.com/stretchr/testify/assert"
)

func TestReportCountsErrorsAndWarnings(t *testing.T) {
	var buf bytes.Buffer
	s := diag.NewSink(&buf, 0, 0)
	s.Report(diag.Diagnostic{Code: 1, Severity: diag.SeverityError, Kind: diag.KindSource, Message: "bad thing"})
	s.Report(diag.Diagnostic{Code: 2, Severity: diag.SeverityWarning, Kind: diag.KindSource, Message: "minor thing"})

	errs, warns := s.Counts()
	assert.Equal(t, 1, errs)
	assert.Equal(t, 1, warns)
	assert.Contains(t, buf.String(), "bad thing")
}

func TestWarningThresholdSuppressesLowCodes(t *testing.T) {
	var buf bytes.Buffer
	s := diag.NewSink(&buf, 0, 100)
	s.Report(diag.Diagnostic{Code: 50, Severity: diag.SeverityWarning, Kind: diag.KindSource, Message: "suppressed"})
	errs, warns := s.Counts()
	assert.Equal(t, 0, errs)
	assert.Equal(t, 0, warns)
}

func TestStrictThresholdUpgradesToError(t *testing.T) {
	s := diag.NewSink(nil, 100, 0)
	s.Report(diag.Diagnostic{Code: 150, Severity: diag.SeverityWarning, Kind: diag.KindSource, Message: "upgraded"})
	errs, warns := s.Counts()
	assert.Equal(t, 1, errs)
	assert.Equal(t, 0, warns)
}

func TestExitCodeUsageErrorIsOne(t *testing.T) {
	s := diag.NewSink(nil, 0, 0)
	s.Report(diag.Diagnostic{Code: 1, Severity: diag.SeverityError, Kind: diag.KindUsage, Message: "bad flag"})
	assert.Equal(t, 1, s.ExitCode())
}

func TestExitCodeClampsErrorCount(t *testing.T) {
	s := diag.NewSink(nil, 0, 0)
	for i := 0; i < 300; i++ {
		s.Report(diag.Diagnostic{Code: i, Severity: diag.SeverityError, Kind: diag.KindSource, Message: "e"})
	}
	assert.Equal(t, 255, s.ExitCode())
}

func TestExitCodeZeroOnSuccess(t *testing.T) {
	s := diag.NewSink(nil, 0, 0)
	assert.Equal(t, 0, s.ExitCode())
}

func TestDiagnosticStringIncludesPosition(t *testing.T) {
	d := diag.Diagnostic{
		Code: 7, Severity: diag.SeverityError, Kind: diag.KindSource,
		Pos:     xerrors.Position{File: "a.asm", Line: 3},
		Message: "undefined symbol",
	}
	assert.Contains(t, d.String(), "a.asm:3")
}

func TestSortedByPositionOrdersByFileThenLine(t *testing.T) {
	s := diag.NewSink(nil, 0, 0)
	s.Report(diag.Diagnostic{Pos: xerrors.Position{File: "b.asm", Line: 1}, Message: "b1"})
	s.Report(diag.Diagnostic{Pos: xerrors.Position{File: "a.asm", Line: 5}, Message: "a5"})
	s.Report(diag.Diagnostic{Pos: xerrors.Position{File: "a.asm", Line: 1}, Message: "a1"})

	sorted := s.SortedByPosition()
	assert.Equal(t, "a1", sorted[0].Message)
	assert.Equal(t, "a5", sorted[1].Message)
	assert.Equal(t, "b1", sorted[2].Message)
}
