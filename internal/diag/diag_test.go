package diag_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"attributor/internal/diag"
)

func TestConvergenceFailureDiag(t *testing.T) {
	d := diag.ConvergenceFailureDiag([]string{"AANonNull@arg(0, @f)", "AANoFree@fn(@g)"})
	assert.Equal(t, diag.Fatal, d.Level)
	assert.Equal(t, diag.ConvergenceFailure, d.Code)
	assert.Contains(t, d.Message, "2 records")
	assert.Len(t, d.Locations, 2)
}

func TestInvariantViolationDiag(t *testing.T) {
	d := diag.InvariantViolationDiag("AANoUnwind@fn(@f)", "assumed state grew after being fixed")
	assert.Equal(t, diag.Fatal, d.Level)
	assert.Equal(t, diag.InvariantViolation, d.Code)
	assert.Equal(t, "assumed state grew after being fixed", d.Message)
}

func TestReporterFormatsLevelAndLocation(t *testing.T) {
	r := diag.NewReporter()
	r.Print(diag.ConvergenceFailureDiag([]string{"AANonNull@arg(0, @f)"}))
	out := r.String()
	assert.Contains(t, out, "E-CONVERGENCE")
	assert.Contains(t, out, "AANonNull@arg(0, @f)")
}

func TestDiagnosticErrorString(t *testing.T) {
	d := diag.Diagnostic{Level: diag.Degraded, Code: diag.MissingAnalysis, Message: "no must-be-executed-context available"}
	assert.Contains(t, d.Error(), "E-MISSING-ANALYSIS")
	assert.Contains(t, d.Error(), "degraded")
}
