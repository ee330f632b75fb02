package attr

import (
	"attributor/internal/analysis"
	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/position"
)

// The four generic deduction combinators of spec §4.3 (component C4),
// implemented against BoolFn so every boolean attribute in the catalogue
// (non-null, no-alias, no-unwind, ...) can reuse the same propagation shape
// at its Returned/Argument/CallSiteReturned mirrors instead of
// reimplementing the walk.

// ReturnedFromReturnedValuesBool metes the current state with the AA-state
// at each returned IR value's position; an unresolved returned call
// pessimizes (spec §4.3 "If any returned call cannot be resolved,
// pessimize").
func ReturnedFromReturnedValuesBool(e *engine.Engine, fn *ir.Function, kind Kind, mk func(position.Position) *BoolFn) (holds bool, resolved bool) {
	vals := fn.ReturnValues()
	if len(vals) == 0 {
		return true, true
	}
	holds = true
	for _, v := range vals {
		pos, ok := positionOfValue(v)
		if !ok {
			return false, false
		}
		rec := getOrCreateBool(e, kind, pos, engine.Required, func() *BoolFn { return mk(pos) })
		if !rec.Holds() {
			holds = false
		}
	}
	return holds, true
}

// ArgumentFromCallSiteArgumentsBool iterates every call site of fn, meeting
// with the AA-state of the corresponding call-site-argument position.
// Positions that cannot be mapped (a callback invocation with no matching
// operand) force pessimism.
func ArgumentFromCallSiteArgumentsBool(e *engine.Engine, fn *ir.Function, argIdx int, sites []ir.CallLike, kind Kind, mk func(position.Position) *BoolFn) (holds bool, resolved bool) {
	if len(sites) == 0 {
		return true, true
	}
	holds = true
	for _, call := range sites {
		if call.CalleeFunc() != fn {
			continue
		}
		if argIdx >= len(call.Args()) {
			return false, false
		}
		pos := position.ForCallSiteArgument(call, argIdx)
		rec := getOrCreateBool(e, kind, pos, engine.Required, func() *BoolFn { return mk(pos) })
		if !rec.Holds() {
			holds = false
		}
	}
	return holds, true
}

// CallSiteReturnedFromReturnedBool copies the callee's return-position
// AA-state into a call-site-return position.
func CallSiteReturnedFromReturnedBool(e *engine.Engine, call ir.CallLike, kind Kind, mk func(position.Position) *BoolFn) (holds bool, resolved bool) {
	callee := call.CalleeFunc()
	if callee == nil {
		return false, false
	}
	pos := position.ForReturned(callee)
	rec := getOrCreateBool(e, kind, pos, engine.Required, func() *BoolFn { return mk(pos) })
	return rec.Holds(), true
}

// MustExecuteImplies walks forward from ctx along must-execute edges (spec
// §4.3 FromMustBeExecutedContext) and reports whether any instruction the
// walk reaches satisfies predicate — the shape every must-execute-context
// consumer in §4.4 (non-null, dereferenceable, alignment) needs: "a use
// that would X implies Y".
func MustExecuteImplies(mec *analysis.MustExecContext, ctx ir.Instruction, predicate func(ir.Instruction) bool) bool {
	for _, inst := range mec.MustExecuteAfter(ctx) {
		if predicate(inst) {
			return true
		}
	}
	return false
}

// positionOfValue maps an SSA value back to the Position it's the
// AssociatedValue of: a parameter maps to its Argument position, anything
// else maps to a Float position. Used by combinators that need to look up
// another attribute at "the position of this value".
func positionOfValue(v *ir.Value) (position.Position, bool) {
	if v == nil {
		return position.Position{}, false
	}
	if v.IsParam {
		return position.ForArgument(v.ParamFunc, v.ParamIdx), true
	}
	return position.ForFloat(v), true
}
