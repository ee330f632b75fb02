package attr

import (
	"fmt"

	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/lattice"
	"attributor/internal/position"
)

// ValueSimplify is spec §4.4's "value-simplify": an optional single value
// per position (absent = not simplified yet, present-nil = proven it
// cannot be simplified, present-non-nil = replace with this value).
type ValueSimplify struct {
	pos position.Position
	opt *lattice.OptionalValue
}

func NewValueSimplify(pos position.Position) *ValueSimplify {
	return &ValueSimplify{pos: pos, opt: lattice.NewOptionalValue()}
}

func getOrCreateValueSimplify(e *engine.Engine, pos position.Position, _ *ir.Value) *ValueSimplify {
	return e.GetOrCreate(string(KindValueSimplify), pos, engine.Required, func() engine.Record {
		return NewValueSimplify(pos)
	}).(*ValueSimplify)
}

func (v *ValueSimplify) Kind() string               { return string(KindValueSimplify) }
func (v *ValueSimplify) Position() position.Position { return v.pos }
func (v *ValueSimplify) Initialize(eng *engine.Engine) {}

func (v *ValueSimplify) Update(eng *engine.Engine) engine.ChangeStatus {
	_, beforeOk := v.opt.SimplifiedValue()
	beforeUnsimpl := v.opt.IsUnsimplifiable()

	switch v.pos.Kind() {
	case position.Float:
		v.updateFloat(eng)
	case position.Argument:
		v.updateArgument(eng)
	case position.Returned:
		v.updateReturned(eng)
	case position.CallSiteArgument:
		v.updateMirror(eng, v.pos.AssociatedValue())
	case position.CallSiteReturned:
		v.updateCallSiteReturned(eng)
	}

	_, afterOk := v.opt.SimplifiedValue()
	afterUnsimpl := v.opt.IsUnsimplifiable()
	if afterOk != beforeOk || afterUnsimpl != beforeUnsimpl {
		return engine.Changed
	}
	return engine.Unchanged
}

func (v *ValueSimplify) updateFloat(eng *engine.Engine) {
	val := v.pos.AssociatedValue()
	if val == nil {
		v.opt.MarkUnsimplifiable()
		return
	}
	switch def := val.Def.(type) {
	case *ir.ConstantInst:
		v.opt.Propose(val, simplifyEq)
		v.IndicateOptimisticFixpoint()
	case *ir.CastInst:
		v.updateMirror(eng, def.Val)
	case *ir.SelectInst:
		tPos, _ := positionOfValue(def.True)
		fPos, _ := positionOfValue(def.False)
		tv := getOrCreateValueSimplify(eng, tPos, def.True)
		fv := getOrCreateValueSimplify(eng, fPos, def.False)
		tVal, tOk := tv.opt.SimplifiedValue()
		fVal, fOk := fv.opt.SimplifiedValue()
		if tOk && fOk {
			v.opt.Propose(tVal, simplifyEq)
			v.opt.Propose(fVal, simplifyEq)
		}
	case *ir.PhiInst:
		allResolved := true
		for _, inc := range def.Vals {
			incPos, _ := positionOfValue(inc)
			incRec := getOrCreateValueSimplify(eng, incPos, inc)
			incVal, ok := incRec.opt.SimplifiedValue()
			if !ok {
				if incRec.opt.IsUnsimplifiable() {
					v.opt.MarkUnsimplifiable()
					return
				}
				allResolved = false
				continue
			}
			v.opt.Propose(incVal, simplifyEq)
		}
		_ = allResolved
	default:
		// Not a value-simplify-recognized shape; nothing further can ever
		// resolve it, so leave it permanently unresolved (a safe "no
		// simplification available" default, not a pessimistic failure).
	}
}

// updateMirror copies whatever `src`'s own Float-position record resolves
// to, the shape call-site-argument and cast positions both need.
func (v *ValueSimplify) updateMirror(eng *engine.Engine, src *ir.Value) {
	if src == nil {
		v.opt.MarkUnsimplifiable()
		return
	}
	srcPos, ok := positionOfValue(src)
	if !ok {
		v.opt.MarkUnsimplifiable()
		return
	}
	rec := getOrCreateValueSimplify(eng, srcPos, src)
	if val, ok := rec.opt.SimplifiedValue(); ok {
		v.opt.Propose(val, simplifyEq)
	} else if rec.opt.IsUnsimplifiable() {
		v.opt.MarkUnsimplifiable()
	}
}

func (v *ValueSimplify) updateArgument(eng *engine.Engine) {
	fn := v.pos.EnclosingFunction()
	idx := v.pos.ArgIdx()
	sites := eng.CG.CallSitesOf(fn)
	any := false
	for _, call := range sites {
		if idx >= len(call.Args()) {
			continue
		}
		any = true
		arg := call.Args()[idx]
		if call.IsCallbackArg(idx) {
			// Thread-dependent constants cannot propagate across a callback
			// boundary (spec §4.4 value-simplify).
			v.opt.MarkUnsimplifiable()
			return
		}
		v.updateMirror(eng, arg)
	}
	if !any {
		v.opt.MarkUnsimplifiable()
	}
}

func (v *ValueSimplify) updateReturned(eng *engine.Engine) {
	fn := v.pos.EnclosingFunction()
	vals := fn.ReturnValues()
	if len(vals) == 0 {
		v.opt.MarkUnsimplifiable()
		return
	}
	for _, rv := range vals {
		v.updateMirror(eng, rv)
	}
}

func (v *ValueSimplify) updateCallSiteReturned(eng *engine.Engine) {
	call := v.pos.Call()
	callee := call.CalleeFunc()
	if callee == nil {
		v.opt.MarkUnsimplifiable()
		return
	}
	retPos := position.ForReturned(callee)
	rec := getOrCreateValueSimplify(eng, retPos, nil)
	if val, ok := rec.opt.SimplifiedValue(); ok {
		v.opt.Propose(val, simplifyEq)
	} else if rec.opt.IsUnsimplifiable() {
		v.opt.MarkUnsimplifiable()
	}
}

func (v *ValueSimplify) Manifest(eng *engine.Engine) {
	val, ok := v.opt.SimplifiedValue()
	if !ok {
		return
	}
	simplified := val.(*ir.Value)
	switch v.pos.Kind() {
	case position.Float, position.Argument:
		if assoc := v.pos.AssociatedValue(); assoc != nil && assoc != simplified {
			eng.Edits.ReplaceUses(assoc, simplified)
		}
	}
}

func (v *ValueSimplify) Simplified() (*ir.Value, bool) {
	val, ok := v.opt.SimplifiedValue()
	if !ok {
		return nil, false
	}
	return val.(*ir.Value), true
}

func (v *ValueSimplify) IsValidState() bool           { return v.opt.IsValidState() }
func (v *ValueSimplify) IsAtFixpoint() bool           { return v.opt.IsAtFixpoint() }
func (v *ValueSimplify) IndicatePessimisticFixpoint() { v.opt.IndicatePessimisticFixpoint() }
func (v *ValueSimplify) IndicateOptimisticFixpoint()  { v.opt.IndicateOptimisticFixpoint() }
func (v *ValueSimplify) String() string               { return fmt.Sprintf("value-simplify@%s", v.pos.String()) }

func simplifyEq(a, b any) bool {
	av, aok := a.(*ir.Value)
	bv, bok := b.(*ir.Value)
	if !aok || !bok {
		return false
	}
	if av == bv {
		return true
	}
	ac, aok2 := av.Def.(*ir.ConstantInst)
	bc, bok2 := bv.Def.(*ir.ConstantInst)
	return aok2 && bok2 && ac.Lit == bc.Lit && ac.Ty.Equal(bc.Ty)
}

// ReturnedValues is spec §4.4's "returned-values": it rides ValueSimplify@
// Returned to find a unique returned value, then manifests the two
// narrower facts that follow from it — marking an argument `returned`, or
// replacing every call-site-returned use with a resolved constant.
type ReturnedValues struct {
	fn  *ir.Function
	pos position.Position
}

func NewReturnedValues(fn *ir.Function) *ReturnedValues {
	return &ReturnedValues{fn: fn, pos: position.ForReturned(fn)}
}

func (r *ReturnedValues) Kind() string               { return string(KindReturnedValues) }
func (r *ReturnedValues) Position() position.Position { return r.pos }
func (r *ReturnedValues) Initialize(eng *engine.Engine) {}
func (r *ReturnedValues) Update(eng *engine.Engine) engine.ChangeStatus {
	getOrCreateValueSimplify(eng, r.pos, nil)
	return engine.Unchanged
}
func (r *ReturnedValues) Manifest(eng *engine.Engine) {
	vs, ok := eng.Lookup(string(KindValueSimplify), r.pos).(*ValueSimplify)
	if !ok {
		return
	}
	val, resolved := vs.Simplified()
	if !resolved {
		return
	}
	if val.IsParam {
		r.fn.ParamAttrs(val.ParamIdx).Add(ir.AttrReturned, 1)
		return
	}
	if _, isConst := val.Def.(*ir.ConstantInst); isConst {
		for _, call := range eng.CG.CallSitesOf(r.fn) {
			if res := call.Result(); res != nil {
				eng.Edits.ReplaceUses(res, val)
			}
		}
	}
}
func (r *ReturnedValues) IsValidState() bool           { return true }
func (r *ReturnedValues) IsAtFixpoint() bool           { return true }
func (r *ReturnedValues) IndicatePessimisticFixpoint() {}
func (r *ReturnedValues) IndicateOptimisticFixpoint()  {}
func (r *ReturnedValues) String() string               { return fmt.Sprintf("returned-values@%s", r.pos.String()) }
