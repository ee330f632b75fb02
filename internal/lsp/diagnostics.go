package lsp

import (
	"fmt"
	"strconv"
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"attributor/internal/diag"
)

// ConvertParseError transforms a failed irtext.Parse/ParseWithIndex into an
// LSP diagnostic (one protocol.Diagnostic per reported error, 0-based
// line/column), but this grammar reports failures as a single
// diag.Diagnostic carrying a "file:line:col" location string rather than
// separate ParseError/ScanError types, so there is only one conversion path
// here instead of two.
func ConvertParseError(err error) []protocol.Diagnostic {
	d, ok := err.(diag.Diagnostic)
	if !ok {
		return []protocol.Diagnostic{{
			Range:    protocol.Range{},
			Severity: ptrSeverity(protocol.DiagnosticSeverityError),
			Source:   ptrString("attributor"),
			Message:  err.Error(),
		}}
	}

	line, col := 0, 0
	if len(d.Locations) > 0 {
		line, col = parseLocation(d.Locations[0])
	}

	severity := protocol.DiagnosticSeverityError
	if d.Level == diag.Degraded {
		severity = protocol.DiagnosticSeverityWarning
	}

	return []protocol.Diagnostic{{
		Range: protocol.Range{
			Start: protocol.Position{Line: uint32(line), Character: uint32(col)},
			End:   protocol.Position{Line: uint32(line), Character: uint32(col + 1)},
		},
		Severity: ptrSeverity(severity),
		Source:   ptrString("attributor"),
		Message:  fmt.Sprintf("[%s] %s", d.Code, d.Message),
	}}
}

// parseLocation splits a "file:line:col" diag.Diagnostic location back into
// 0-based (line, col) for protocol.Position.
func parseLocation(loc string) (line, col int) {
	parts := strings.Split(loc, ":")
	if len(parts) < 2 {
		return 0, 0
	}
	l, err := strconv.Atoi(parts[len(parts)-2])
	if err != nil {
		return 0, 0
	}
	c, err := strconv.Atoi(parts[len(parts)-1])
	if err != nil {
		return l - 1, 0
	}
	return l - 1, c - 1
}

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity {
	return &s
}

func ptrString(s string) *string {
	return &s
}
