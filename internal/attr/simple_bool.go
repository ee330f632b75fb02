package attr

import (
	"attributor/internal/analysis"
	"attributor/internal/callgraph"
	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/position"
)

// NewNoUnwind: pessimistic if any instruction in the function may throw and
// isn't a call whose callee is assumed no-unwind (spec §4.4 "no-unwind").
func NewNoUnwind(pos position.Position, fn *ir.Function) *BoolFn {
	return newBoolFn(KindNoUnwind, pos, true, updateNoUnwind, nil)
}

func updateNoUnwind(b *BoolFn, eng *engine.Engine) engine.ChangeStatus {
	fn := b.pos.EnclosingFunction()
	if fn == nil {
		b.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	liveRec := getOrCreateLiveness(eng, fn)
	allOk := eng.CheckForAllInstructions(fn, func(inst ir.Instruction) bool {
		if !mayThrow(inst) {
			return true
		}
		call, ok := inst.(ir.CallLike)
		if !ok {
			return false
		}
		holds, resolved := calleeBoolOrPessimize(eng, KindNoUnwind, call, func(p position.Position) *BoolFn {
			return NewNoUnwind(p, call.CalleeFunc())
		})
		return resolved && holds
	})
	if !allOk {
		b.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	if !liveRec.IsAtFixpoint() {
		// Some dead-looking blocks may still turn out alive as liveness
		// keeps exploring; don't lock in success until it's settled.
		return engine.Unchanged
	}
	changed := !b.state.IsAtFixpoint()
	b.state.IndicateOptimisticFixpoint()
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}

// getOrCreateLiveness fetches fn's function-form liveness record as an
// Optional dependency (updateNoReturn, by contrast, takes it as Required),
// so CheckForAllInstructions/CheckForAllCallSites callers get re-examined
// once liveness discovers more of the function.
func getOrCreateLiveness(eng *engine.Engine, fn *ir.Function) *LivenessFunction {
	return eng.GetOrCreate(string(KindLivenessFunction), position.ForFunction(fn), engine.Optional, func() engine.Record {
		return NewLivenessFunction(fn)
	}).(*LivenessFunction)
}

func mayThrow(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.CallInst, *ir.InvokeInst, *ir.UnwindTerm:
		return true
	default:
		return false
	}
}

// NewNoSync: the IR has no atomics/volatiles of its own, so no-sync
// degenerates to "every call-like instruction targets an assumed no-sync
// callee" (a deliberate simplification).
func NewNoSync(pos position.Position, fn *ir.Function) *BoolFn {
	return newBoolFn(KindNoSync, pos, true, updateNoSync, nil)
}

func updateNoSync(b *BoolFn, eng *engine.Engine) engine.ChangeStatus {
	fn := b.pos.EnclosingFunction()
	if fn == nil {
		b.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	liveRec := getOrCreateLiveness(eng, fn)
	allOk := eng.CheckForAllCallSites(fn, func(call ir.CallLike) bool {
		holds, resolved := calleeBoolOrPessimize(eng, KindNoSync, call, func(p position.Position) *BoolFn {
			return NewNoSync(p, call.CalleeFunc())
		})
		return resolved && holds
	})
	if !allOk {
		b.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	if !liveRec.IsAtFixpoint() {
		return engine.Unchanged
	}
	changed := !b.state.IsAtFixpoint()
	b.state.IndicateOptimisticFixpoint()
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}

// NewNoFree: pessimistic if any call-like instruction in the function calls
// a free-like library function or targets a callee not assumed no-free.
func NewNoFree(pos position.Position, fn *ir.Function) *BoolFn {
	return newBoolFn(KindNoFree, pos, true, updateNoFree, nil)
}

func updateNoFree(b *BoolFn, eng *engine.Engine) engine.ChangeStatus {
	fn := b.pos.EnclosingFunction()
	if fn == nil {
		b.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	liveRec := getOrCreateLiveness(eng, fn)
	tli := eng.Cache.TargetLibraryInfo()
	allOk := eng.CheckForAllCallSites(fn, func(call ir.CallLike) bool {
		if tli.IsFreeLike(call.CalleeName()) {
			return false
		}
		holds, resolved := calleeBoolOrPessimize(eng, KindNoFree, call, func(p position.Position) *BoolFn {
			return NewNoFree(p, call.CalleeFunc())
		})
		return resolved && holds
	})
	if !allOk {
		b.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	if !liveRec.IsAtFixpoint() {
		return engine.Unchanged
	}
	changed := !b.state.IsAtFixpoint()
	b.state.IndicateOptimisticFixpoint()
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}

// NewNoRecurse: initialized pessimistic if the function is part of a
// non-trivial SCC (found by searching the call graph for a path back to
// itself); updates by checking every call-like instruction in the function
// targets a different, no-recurse callee.
func NewNoRecurse(pos position.Position, fn *ir.Function, cg *callgraph.Graph) *BoolFn {
	seed := !inNontrivialSCC(fn)
	return newBoolFn(KindNoRecurse, pos, seed, updateNoRecurse, nil)
}

func inNontrivialSCC(fn *ir.Function) bool {
	visited := map[*ir.Function]bool{}
	var reaches func(cur *ir.Function) bool
	stack := map[*ir.Function]bool{}
	reaches = func(cur *ir.Function) bool {
		if cur == fn && stack[fn] {
			return true
		}
		if visited[cur] {
			return false
		}
		visited[cur] = true
		stack[cur] = true
		for _, call := range cur.CallSites() {
			if callee := call.CalleeFunc(); callee != nil {
				if callee == fn || reaches(callee) {
					stack[cur] = false
					return true
				}
			}
		}
		stack[cur] = false
		return false
	}
	for _, call := range fn.CallSites() {
		if callee := call.CalleeFunc(); callee != nil && reaches(callee) {
			return true
		}
	}
	return false
}

func updateNoRecurse(b *BoolFn, eng *engine.Engine) engine.ChangeStatus {
	fn := b.pos.EnclosingFunction()
	if fn == nil {
		return engine.Unchanged
	}
	for _, call := range fn.CallSites() {
		callee := call.CalleeFunc()
		if callee == nil || callee == fn {
			b.state.IndicatePessimisticFixpoint()
			return engine.Changed
		}
		holds, resolved := calleeBoolOrPessimize(eng, KindNoRecurse, call, func(p position.Position) *BoolFn {
			return NewNoRecurse(p, callee, nil)
		})
		if !resolved || !holds {
			b.state.IndicatePessimisticFixpoint()
			return engine.Changed
		}
	}
	changed := !b.state.IsAtFixpoint()
	b.state.IndicateOptimisticFixpoint()
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}

// NewWillReturn: pessimistic if the function contains a loop without a
// recognized constant trip count (an unbounded cycle); otherwise holds if
// every call-like instruction targets a callee that is either known
// will-return, or assumed will-return and assumed no-recurse (spec §4.4
// "will-return": a possibly-recursive-but-terminating callee still needs
// no-recurse to rule out infinite mutual recursion).
func NewWillReturn(pos position.Position, fn *ir.Function, loops *analysis.Loops) *BoolFn {
	seed := true
	if loops != nil {
		for _, l := range loops.All() {
			if !l.TripCountKnown {
				seed = false
				break
			}
		}
	}
	return newBoolFn(KindWillReturn, pos, seed, updateWillReturn, nil)
}

func updateWillReturn(b *BoolFn, eng *engine.Engine) engine.ChangeStatus {
	if !b.state.Assumed() {
		return engine.Unchanged
	}
	fn := b.pos.EnclosingFunction()
	if fn == nil {
		return engine.Unchanged
	}
	for _, call := range fn.CallSites() {
		callee := call.CalleeFunc()
		if callee == nil {
			b.state.IndicatePessimisticFixpoint()
			return engine.Changed
		}
		wr := getOrCreateBool(eng, KindWillReturn, position.ForFunction(callee), engine.Required, func() *BoolFn {
			return NewWillReturn(position.ForFunction(callee), callee, nil)
		})
		if wr.Holds() && wr.IsAtFixpoint() {
			continue
		}
		if !wr.Holds() {
			b.state.IndicatePessimisticFixpoint()
			return engine.Changed
		}
		nr := getOrCreateBool(eng, KindNoRecurse, position.ForFunction(callee), engine.Required, func() *BoolFn {
			return NewNoRecurse(position.ForFunction(callee), callee, nil)
		})
		if !nr.Holds() {
			b.state.IndicatePessimisticFixpoint()
			return engine.Changed
		}
	}
	changed := !b.state.IsAtFixpoint()
	b.state.IndicateOptimisticFixpoint()
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}

// NewNoReturn: pessimistic if any return instruction is reachable; derived
// as a Required consumer of the function's liveness record (spec §4.4
// "no-return").
func NewNoReturn(pos position.Position, fn *ir.Function) *BoolFn {
	return newBoolFn(KindNoReturn, pos, true, updateNoReturn, nil)
}

func updateNoReturn(b *BoolFn, eng *engine.Engine) engine.ChangeStatus {
	fn := b.pos.EnclosingFunction()
	if fn == nil {
		b.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	liveRec := eng.GetOrCreate(string(KindLivenessFunction), position.ForFunction(fn), engine.Required, func() engine.Record {
		return NewLivenessFunction(fn)
	}).(*LivenessFunction)
	for _, blk := range fn.Blocks {
		if _, ok := blk.Term.(*ir.RetTerm); !ok {
			continue
		}
		if !liveRec.IsBlockAlive(blk) {
			continue
		}
		// A dead end (a call to a no-return callee) earlier in the block
		// keeps control from ever reaching its ret.
		reached := true
		for _, inst := range blk.Instructions {
			if liveRec.state.IsDeadEnd(inst) {
				reached = false
				break
			}
		}
		if reached {
			b.state.IndicatePessimisticFixpoint()
			return engine.Changed
		}
	}
	if !liveRec.IsAtFixpoint() {
		return engine.Unchanged
	}
	changed := !b.state.IsAtFixpoint()
	b.state.IndicateOptimisticFixpoint()
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}
