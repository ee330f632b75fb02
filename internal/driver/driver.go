// Package driver is the library-level concretization of spec.md §6.5's
// run-on-functions: it parses nothing itself and owns no IR of its own,
// it only wires an already-built *ir.Module into an *engine.Engine and
// runs it to fixpoint.
package driver

import (
	"attributor/internal/analysis"
	"attributor/internal/attr"
	"attributor/internal/callgraph"
	"attributor/internal/config"
	"attributor/internal/diag"
	"attributor/internal/engine"
	"attributor/internal/ir"
)

// Result is everything a caller needs after a run: the engine (for
// inspecting surviving records, e.g. from cmd/attributor-lsp's hover
// handler), the diagnostics collected along the way, and the iteration
// count the fixpoint loop settled at.
type Result struct {
	Engine      *engine.Engine
	Diagnostics *diag.Reporter
	Iterations  int
}

// RunOnFunctions builds the analysis cache and call graph for m, seeds
// every non-external function's initial record set (attr.Seed; declare-only
// functions are skipped), and runs the engine to
// fixpoint (or until cfg.IterationCap), manifesting every settled record's
// edits back into m.
func RunOnFunctions(m *ir.Module, cfg config.Config) *Result {
	cache := analysis.NewCache(m)
	cg := callgraph.NewGraph()
	cg.Initialize(m)

	eng := engine.New(m, cache, cg, cfg)

	for _, fn := range m.Functions {
		if fn.External {
			continue
		}
		attr.Seed(eng, fn, cg)
	}

	eng.Run()

	return &Result{
		Engine:      eng,
		Diagnostics: eng.Diag,
		Iterations:  eng.Iterations(),
	}
}
