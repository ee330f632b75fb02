package attr

import (
	"fmt"

	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/lattice"
	"attributor/internal/position"
)

// ValueRange is spec §4.4's "value-range": a half-open integer interval per
// Float/Argument/Returned/CallSiteArgument/CallSiteReturned position,
// seeded from constants and scalar-evolution affine recurrences, joined
// across phis, call-site arguments and returned values, with an icmp whose
// operand ranges settle its predicate folded to a constant boolean range
// (updateICmp). A comparison is not used to narrow the ranges of other
// uses of its operands.
type ValueRange struct {
	pos   position.Position
	state *lattice.IntRangeState
}

func NewValueRange(pos position.Position) *ValueRange {
	return &ValueRange{pos: pos, state: lattice.NewIntRangeState()}
}

func (v *ValueRange) Kind() string               { return string(KindValueRange) }
func (v *ValueRange) Position() position.Position { return v.pos }
func (v *ValueRange) Initialize(eng *engine.Engine) {}
func (v *ValueRange) Update(eng *engine.Engine) engine.ChangeStatus {
	before := v.state.Assumed()
	switch v.pos.Kind() {
	case position.Float:
		v.updateFloat(eng)
	case position.Argument:
		v.updateArgument(eng)
	case position.Returned:
		v.updateReturned(eng)
	case position.CallSiteArgument, position.CallSiteReturned:
		v.updateMirror(eng)
	}
	if !v.state.Assumed().Equal(before) {
		return engine.Changed
	}
	return engine.Unchanged
}

func (v *ValueRange) updateFloat(eng *engine.Engine) {
	val := v.pos.AssociatedValue()
	if val == nil {
		return
	}
	switch def := val.Def.(type) {
	case *ir.ConstantInst:
		v.state.AddKnown(lattice.Single(def.Lit))
		v.IndicateOptimisticFixpoint()
	case *ir.ICmpInst:
		v.updateICmp(eng, def)
	case *ir.PhiInst:
		for _, inc := range def.Vals {
			if pos, ok := positionOfValue(inc); ok {
				rec := getOrCreateValueRange(eng, pos)
				v.state.AddKnown(rec.state.Assumed())
			}
		}
	default:
		fn := funcOfValue(val)
		if fn == nil {
			return
		}
		loops := eng.Cache.LoopInfo(fn)
		scev := eng.Cache.ScalarEvolution(fn)
		if loops == nil || scev == nil {
			return
		}
		if rec, ok := scev.Recurrence(val); ok {
			lo := rec.Start
			hi := rec.Start + rec.Step*64 // conservative bound absent a known trip count
			if hi < lo {
				lo, hi = hi, lo
			}
			v.state.AddKnown(lattice.Range(lo, hi+1))
		}
	}
}

// updateICmp folds a comparison into a known-boolean range when both
// operands' own ranges are narrow enough to settle the predicate for every
// value pair they could take — the toy-IR analogue of LLVM's
// ConstantRange::icmp.
func (v *ValueRange) updateICmp(eng *engine.Engine, cmp *ir.ICmpInst) {
	l, lok := rangeOfOperand(eng, cmp.Left)
	r, rok := rangeOfOperand(eng, cmp.Right)
	if !lok || !rok {
		return
	}
	if result, definite := evalICmpRange(cmp.Pred, l, r); definite {
		v.state.AddKnown(lattice.Single(result))
		v.IndicateOptimisticFixpoint()
	}
}

func rangeOfOperand(eng *engine.Engine, val *ir.Value) (lattice.IntRange, bool) {
	pos, ok := positionOfValue(val)
	if !ok {
		return lattice.IntRange{}, false
	}
	r := getOrCreateValueRange(eng, pos).state.Assumed()
	if r.Full || r.Empty {
		return r, false
	}
	return r, true
}

// evalICmpRange reports the predicate's result (0 or 1) when it holds for
// every pair drawn from l and r, treating both ranges as bounds on
// non-negative magnitudes (this IR has no separate signed/unsigned
// representation, so the u/s predicate spellings share one evaluation).
func evalICmpRange(pred string, l, r lattice.IntRange) (result int64, definite bool) {
	lLo, lHi := l.Lo, l.Hi-1
	rLo, rHi := r.Lo, r.Hi-1
	switch pred {
	case "ult", "slt":
		if lHi < rLo {
			return 1, true
		}
		if lLo >= rHi {
			return 0, true
		}
	case "ule", "sle":
		if lHi <= rLo {
			return 1, true
		}
		if lLo > rHi {
			return 0, true
		}
	case "ugt", "sgt":
		if lLo > rHi {
			return 1, true
		}
		if lHi <= rLo {
			return 0, true
		}
	case "uge", "sge":
		if lLo >= rHi {
			return 1, true
		}
		if lHi < rLo {
			return 0, true
		}
	case "eq":
		if lLo == lHi && rLo == rHi && lLo == rLo {
			return 1, true
		}
		if lHi < rLo || rHi < lLo {
			return 0, true
		}
	case "ne":
		if lHi < rLo || rHi < lLo {
			return 1, true
		}
		if lLo == lHi && rLo == rHi && lLo == rLo {
			return 0, true
		}
	}
	return 0, false
}

func (v *ValueRange) updateArgument(eng *engine.Engine) {
	fn := v.pos.EnclosingFunction()
	idx := v.pos.ArgIdx()
	for _, call := range eng.CG.CallSitesOf(fn) {
		if idx >= len(call.Args()) {
			continue
		}
		rec := getOrCreateValueRange(eng, position.ForCallSiteArgument(call, idx))
		v.state.AddKnown(rec.state.Assumed())
	}
}

func (v *ValueRange) updateReturned(eng *engine.Engine) {
	fn := v.pos.EnclosingFunction()
	for _, rv := range fn.ReturnValues() {
		if pos, ok := positionOfValue(rv); ok {
			rec := getOrCreateValueRange(eng, pos)
			v.state.AddKnown(rec.state.Assumed())
		}
	}
}

func (v *ValueRange) updateMirror(eng *engine.Engine) {
	switch v.pos.Kind() {
	case position.CallSiteArgument:
		args := v.pos.Call().Args()
		idx := v.pos.ArgIdx()
		if idx >= len(args) {
			return
		}
		if pos, ok := positionOfValue(args[idx]); ok {
			rec := getOrCreateValueRange(eng, pos)
			v.state.AddKnown(rec.state.Assumed())
		}
	case position.CallSiteReturned:
		callee := v.pos.Call().CalleeFunc()
		if callee == nil {
			return
		}
		rec := getOrCreateValueRange(eng, position.ForReturned(callee))
		v.state.AddKnown(rec.state.Assumed())
	}
}

func getOrCreateValueRange(eng *engine.Engine, pos position.Position) *ValueRange {
	return eng.GetOrCreate(string(KindValueRange), pos, engine.Required, func() engine.Record {
		return NewValueRange(pos)
	}).(*ValueRange)
}

func (v *ValueRange) Manifest(eng *engine.Engine) {
	attrs := v.pos.OwnAttrs()
	r := v.state.Assumed()
	if attrs == nil || r.Full || r.Empty {
		return
	}
	attrs.Range = ir.RangeMeta{Lo: r.Lo, Hi: r.Hi, Valid: true}
}
func (v *ValueRange) IsValidState() bool           { return v.state.IsValidState() }
func (v *ValueRange) IsAtFixpoint() bool           { return v.state.IsAtFixpoint() }
func (v *ValueRange) IndicatePessimisticFixpoint() { v.state.IndicatePessimisticFixpoint() }
func (v *ValueRange) IndicateOptimisticFixpoint()  { v.state.IndicateOptimisticFixpoint() }
func (v *ValueRange) String() string               { return fmt.Sprintf("value-range@%s", v.pos.String()) }
