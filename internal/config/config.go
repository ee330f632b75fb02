// Package config holds the flat configuration record of spec.md §6.4.
package config

// Config is the small flat configuration record the engine is constructed
// with (spec §6.4).
type Config struct {
	// IterationCap bounds the fixpoint loop (spec §4.2 step 2).
	IterationCap int
	// DependencyRecomputeInterval discards and rebuilds the dependency
	// graph every N iterations; 0 disables recomputation.
	DependencyRecomputeInterval int
	// HeapToStackSizeCap bounds the constant allocation size heap-to-stack
	// (spec §4.4) will convert to a stack allocation.
	HeapToStackSizeCap int64
	// EnableShallowWrappers allows the rewriter to synthesize a tail-calling
	// wrapper instead of rewriting a non-IPO-amendable function in place
	// (spec §4.6).
	EnableShallowWrappers bool
	// AnnotateDeclarationCallSites allows manifest to annotate call sites of
	// external declarations (whose body the engine never saw) when the
	// seeded assumptions alone are enough to manifest a fact.
	AnnotateDeclarationCallSites bool
	// HeapToStackEnabled gates the whole heap-to-stack attribute.
	HeapToStackEnabled bool
	// VerifyMaxIterations, if true, makes hitting IterationCap with records
	// still unsettled print a fatal convergence-failure diagnostic (spec §7);
	// the unsettled records are finalized the same way with or without it.
	VerifyMaxIterations bool
}

// Default returns the engine's documented defaults (spec §6.4).
func Default() Config {
	return Config{
		IterationCap:                 32,
		DependencyRecomputeInterval:  4,
		HeapToStackSizeCap:           128,
		EnableShallowWrappers:        true,
		AnnotateDeclarationCallSites: false,
		HeapToStackEnabled:           true,
		VerifyMaxIterations:          false,
	}
}
