// Package lattice implements the reusable monotone lattice kit of spec.md
// §3.2/§C2: every concrete abstract attribute built on top of these types
// inherits the same known/assumed vocabulary (intersect-assumed, add-known,
// indicate-optimistic-fixpoint, indicate-pessimistic-fixpoint) so the engine
// can reason about monotonicity and fixpoint-ness without caring which
// concrete lattice a given attribute uses.
package lattice

// State is implemented by every concrete lattice type in this package. It
// captures the three cross-cutting lifecycle questions the engine (spec
// §4.2) needs answered regardless of which concrete lattice an attribute
// record carries.
type State interface {
	// IsValidState reports whether known ⊑ assumed still holds; false means
	// the state has collapsed to bottom (spec §3.2 "invalid").
	IsValidState() bool
	// IsAtFixpoint reports whether no further update can change the state.
	IsAtFixpoint() bool
	// IndicateOptimisticFixpoint freezes the state at its current assumed
	// value (assumed becomes known).
	IndicateOptimisticFixpoint()
	// IndicatePessimisticFixpoint collapses the state to its worst (bottom)
	// value and marks it invalid.
	IndicatePessimisticFixpoint()
}
