package attr

import (
	"fmt"

	"attributor/internal/analysis"
	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/position"
)

// HeapToStack is spec §4.4's "heap-to-stack": a per-function set of malloc
// call sites proven safe to rewrite into stack allocations. A malloc call
// is safe when it is recognized, its size is a known-constant below the
// configured cap, every use of its result matches a known-safe pattern,
// and it is freed at most once, in its own must-execute context.
type HeapToStack struct {
	fn     *ir.Function
	pos    position.Position
	safe   map[ir.CallLike]bool
	freeOf map[ir.CallLike]ir.CallLike
	fixed  bool
}

func NewHeapToStack(fn *ir.Function) *HeapToStack {
	return &HeapToStack{fn: fn, pos: position.ForFunction(fn), safe: map[ir.CallLike]bool{}, freeOf: map[ir.CallLike]ir.CallLike{}}
}

func (h *HeapToStack) Kind() string               { return string(KindHeapToStack) }
func (h *HeapToStack) Position() position.Position { return h.pos }
func (h *HeapToStack) Initialize(eng *engine.Engine) {}

func (h *HeapToStack) Update(eng *engine.Engine) engine.ChangeStatus {
	if !eng.Config.HeapToStackEnabled {
		h.fixed = true
		return engine.Unchanged
	}
	mec := eng.Cache.MustBeExecutedContextExplorer(h.fn)
	tli := eng.Cache.TargetLibraryInfo()
	changed := false
	for _, call := range h.fn.CallSites() {
		name := call.CalleeName()
		if !tli.IsMallocLike(name) && !tli.IsCallocLike(name) {
			continue
		}
		res := call.Result()
		if res == nil {
			continue
		}
		sz, szKnown := mallocConstSize(eng, call)
		safe := false
		var freeCall ir.CallLike
		if szKnown && sz <= eng.Config.HeapToStackSizeCap {
			safe, freeCall = isHeapToStackSafe(eng, mec, tli, call, res)
		}
		if cur, seen := h.safe[call]; !seen || cur != safe {
			changed = true
		}
		h.safe[call] = safe
		h.freeOf[call] = freeCall
	}
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}

// mallocConstSize resolves a malloc-like call's size argument (first
// operand by convention) via value-simplify.
func mallocConstSize(eng *engine.Engine, call ir.CallLike) (int64, bool) {
	args := call.Args()
	if len(args) == 0 {
		return 0, false
	}
	pos, ok := positionOfValue(args[0])
	if !ok {
		return 0, false
	}
	vs := getOrCreateValueSimplify(eng, pos, args[0])
	v, ok := vs.Simplified()
	if !ok {
		return 0, false
	}
	c, ok := v.Def.(*ir.ConstantInst)
	if !ok {
		return 0, false
	}
	return c.Lit, true
}

// isHeapToStackSafe walks every use of a malloc's result, requiring each
// non-free use to be a load, a store that doesn't capture the pointer
// itself, a call argument this package can prove doesn't free or capture
// it, or a pure propagation (GEP/select/phi, or a cast other than ptrtoint,
// which counts as an escape); at most one free call is allowed, and it must
// lie in the malloc's must-execute context.
//
// Every use is required to independently pass its own check (a
// conjunction), not "any use passing is enough" (a disjunction one
// upstream reading of this admission predicate would suggest). A
// disjunction would accept a malloc that both escapes through one use and
// is freed safely through another — which a stack-converted allocation
// cannot tolerate, since the escaping use would then read/write a
// dangling stack slot once the function returns. Conjunction is the only
// reading that keeps the rewrite sound, so that's what's implemented here.
func isHeapToStackSafe(eng *engine.Engine, mec *analysis.MustExecContext, tli *analysis.TargetLibraryInfo, call ir.CallLike, res *ir.Value) (bool, ir.CallLike) {
	var freeCall ir.CallLike
	for _, use := range res.Uses {
		switch user := use.User.(type) {
		case *ir.LoadInst:
			// reading through the pointer is always safe
		case *ir.StoreInst:
			if user.Val == res {
				return false, nil // storing the pointer itself escapes it
			}
		case ir.CallLike:
			if tli.IsFreeLike(user.CalleeName()) {
				if freeCall != nil {
					return false, nil // more than one free
				}
				if mec == nil || !MustExecuteImplies(mec, call, func(inst ir.Instruction) bool { return inst == user }) {
					return false, nil
				}
				freeCall = user
				continue
			}
			idx := indexOfArg(user, res)
			if idx < 0 || user.IsCallbackArg(idx) {
				return false, nil
			}
			noCap := getOrCreateNoCapture(eng, position.ForCallSiteArgument(user, idx))
			noFreeHolds, noFreeResolved := calleeBoolOrPessimize(eng, KindNoFree, user, func(p position.Position) *BoolFn {
				return NewNoFree(p, user.CalleeFunc())
			})
			const fullyNotCaptured = NotCapturedInMem | NotCapturedInInt | NotCapturedInRet
			if noCap.state.Assumed() != fullyNotCaptured || !noFreeResolved || !noFreeHolds {
				return false, nil
			}
		case *ir.CastInst:
			if user.Op == "ptrtoint" {
				return false, nil // escapes as an integer, same as no-capture's check
			}
		case *ir.GEPInst, *ir.SelectInst, *ir.PhiInst:
			// pure propagation; nothing further to check here
		default:
			return false, nil
		}
	}
	return true, freeCall
}

func getOrCreateNoCapture(eng *engine.Engine, pos position.Position) *NoCapture {
	return eng.GetOrCreate(string(KindNoCapture), pos, engine.Required, func() engine.Record {
		return NewNoCapture(pos)
	}).(*NoCapture)
}

func indexOfArg(call ir.CallLike, v *ir.Value) int {
	for i, a := range call.Args() {
		if a == v {
			return i
		}
	}
	return -1
}

func (h *HeapToStack) Manifest(eng *engine.Engine) {
	for call, safe := range h.safe {
		if !safe {
			continue
		}
		sz, ok := mallocConstSize(eng, call)
		if !ok {
			continue
		}
		eng.Edits.RequestHeapToStack(call, sz, h.freeOf[call])
	}
}
func (h *HeapToStack) IsValidState() bool           { return true }
func (h *HeapToStack) IsAtFixpoint() bool           { return h.fixed }
func (h *HeapToStack) IndicatePessimisticFixpoint() { h.fixed = true; h.safe = map[ir.CallLike]bool{} }
func (h *HeapToStack) IndicateOptimisticFixpoint()  { h.fixed = true }
func (h *HeapToStack) String() string               { return fmt.Sprintf("heap-to-stack@fn(@%s)", h.fn.Name) }
