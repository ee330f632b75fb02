package attr

import (
	"fmt"

	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/lattice"
	"attributor/internal/position"
)

// BoolFn is the shared record shape for every boolean function-level
// attribute in the catalogue (no-unwind, no-sync, no-free, no-recurse,
// will-return, no-return): a Boolean lattice state at a position, an
// update strategy, and an optional manifest strategy. Factoring the
// plumbing out this way mirrors how the catalogue entries in spec §4.4
// genuinely share one shape and differ only in their update rule.
type BoolFn struct {
	kind     Kind
	pos      position.Position
	state    *lattice.Boolean
	update   func(b *BoolFn, eng *engine.Engine) engine.ChangeStatus
	manifest func(b *BoolFn, eng *engine.Engine)
}

func newBoolFn(kind Kind, pos position.Position, seed bool, update func(*BoolFn, *engine.Engine) engine.ChangeStatus, manifest func(*BoolFn, *engine.Engine)) *BoolFn {
	return &BoolFn{kind: kind, pos: pos, state: lattice.NewBoolean(seed), update: update, manifest: manifest}
}

func (b *BoolFn) Kind() string               { return string(b.kind) }
func (b *BoolFn) Position() position.Position { return b.pos }
func (b *BoolFn) Initialize(eng *engine.Engine) {}
func (b *BoolFn) Update(eng *engine.Engine) engine.ChangeStatus {
	if b.update == nil {
		b.state.IndicateOptimisticFixpoint()
		return engine.Unchanged
	}
	return b.update(b, eng)
}
func (b *BoolFn) Manifest(eng *engine.Engine) {
	if b.manifest != nil {
		b.manifest(b, eng)
	}
}
func (b *BoolFn) IsValidState() bool           { return b.state.IsValidState() }
func (b *BoolFn) IsAtFixpoint() bool           { return b.state.IsAtFixpoint() }
func (b *BoolFn) IndicatePessimisticFixpoint() { b.state.IndicatePessimisticFixpoint() }
func (b *BoolFn) IndicateOptimisticFixpoint()  { b.state.IndicateOptimisticFixpoint() }
func (b *BoolFn) String() string              { return fmt.Sprintf("%s@%s", b.kind, b.pos.String()) }
func (b *BoolFn) Holds() bool                  { return b.state.Assumed() }

// getOrCreateBool fetches (or creates) a same-kind BoolFn record at pos,
// seeding new instances optimistically (true) — the standard "assume the
// best until proven otherwise" seed every boolean attribute in §4.4 uses.
func getOrCreateBool(e *engine.Engine, kind Kind, pos position.Position, class engine.DepClass, mk func() *BoolFn) *BoolFn {
	return e.GetOrCreate(string(kind), pos, class, func() engine.Record { return mk() }).(*BoolFn)
}

// calleeBoolOrPessimize resolves the boolean record of `kind` at callee's
// function position; an unresolved (indirect) callee pessimizes the caller
// per the catalogue's consistent "unresolved call site forces pessimism"
// rule.
func calleeBoolOrPessimize(e *engine.Engine, kind Kind, call ir.CallLike, mk func(position.Position) *BoolFn) (bool, bool) {
	callee := call.CalleeFunc()
	if callee == nil {
		return false, false
	}
	calleePos := position.ForFunction(callee)
	rec := getOrCreateBool(e, kind, calleePos, engine.Required, func() *BoolFn { return mk(calleePos) })
	return rec.Holds(), true
}
