// Package diag implements the error taxonomy of spec.md §7: convergence
// failure, invariant violation, unsupported construct, and missing
// analysis. Reporting style is a colorized, leveled message keyed off
// position.Position locations rather than source line/column, since this
// system has no source text of its own, only IR.
package diag

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Level distinguishes fatal diagnostics (spec §7: convergence failure with
// verify-max-iterations set, or an internal invariant violation) from
// degraded ones (every other case in §7 is a safety collapse: a pessimistic
// fixpoint, always sound, never surfaced as an error).
type Level string

const (
	Fatal    Level = "fatal"
	Degraded Level = "degraded"
)

// Code enumerates spec §7's four failure categories.
type Code string

const (
	ConvergenceFailure  Code = "E-CONVERGENCE"
	InvariantViolation  Code = "E-INVARIANT"
	UnsupportedConstruct Code = "E-UNSUPPORTED"
	MissingAnalysis     Code = "E-MISSING-ANALYSIS"
)

// Diagnostic is one reported event.
type Diagnostic struct {
	Level   Level
	Code    Code
	Message string
	// Locations names the records/positions involved, e.g. the names still
	// unsettled at the iteration cap for a convergence failure.
	Locations []string
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("[%s] %s: %s", d.Code, d.Level, d.Message)
}

// Reporter formats diagnostics for the CLI (spec §10), in the same
// color.Green/color.Red banner style as its success/failure output.
type Reporter struct {
	out *strings.Builder
}

func NewReporter() *Reporter { return &Reporter{out: &strings.Builder{}} }

// Format renders d as a colored level header, a list of involved
// locations, and the message.
func (r *Reporter) Format(d Diagnostic) string {
	var b strings.Builder
	levelColor := color.New(color.FgRed, color.Bold).SprintFunc()
	if d.Level == Degraded {
		levelColor = color.New(color.FgYellow, color.Bold).SprintFunc()
	}
	bold := color.New(color.Bold).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()

	fmt.Fprintf(&b, "%s[%s]: %s\n", levelColor(string(d.Level)), d.Code, d.Message)
	if len(d.Locations) > 0 {
		fmt.Fprintf(&b, "  %s %s\n", dim("-->"), bold(strings.Join(d.Locations, ", ")))
	}
	return b.String()
}

// Print formats and accumulates d for later retrieval via String().
func (r *Reporter) Print(d Diagnostic) {
	r.out.WriteString(r.Format(d))
}

func (r *Reporter) String() string { return r.out.String() }

// ConvergenceFailureDiag builds the diagnostic the engine reports when the
// iteration cap is hit with VerifyMaxIterations set (spec §7).
func ConvergenceFailureDiag(unsettled []string) Diagnostic {
	return Diagnostic{
		Level:     Fatal,
		Code:      ConvergenceFailure,
		Message:   fmt.Sprintf("fixpoint did not converge within the iteration cap (%d records still unsettled)", len(unsettled)),
		Locations: unsettled,
	}
}

// InvariantViolationDiag builds the diagnostic for a detected non-monotone
// state transition or other internal consistency bug (spec §7).
func InvariantViolationDiag(where, detail string) Diagnostic {
	return Diagnostic{
		Level:     Fatal,
		Code:      InvariantViolation,
		Message:   detail,
		Locations: []string{where},
	}
}
