package analysis

import "attributor/internal/ir"

// AliasResult is a conservative may-alias oracle over a function's pointer
// values: two pointers alias unless both are proven to originate from
// distinct allocations (distinct AllocaInsts, whether or not they escape, or distinct
// by-value parameters each individually marked noalias). This is
// deliberately the simplest sound approximation — no points-to set, no
// field sensitivity — consulted by no-alias's call-site-argument
// combination (spec §4.4 "no-alias").
type AliasResult struct {
	origin map[*ir.Value]*ir.Value // value -> its distinguishing origin, nil if unknown
}

func ComputeAliasAnalysis(fn *ir.Function) *AliasResult {
	a := &AliasResult{origin: map[*ir.Value]*ir.Value{}}
	for _, b := range fn.Blocks {
		for _, inst := range b.Instructions {
			switch ai := inst.(type) {
			case *ir.AllocaInst:
				a.origin[ai.Result()] = ai.Result()
			case *ir.GEPInst:
				if o := a.origin[ai.Base]; o != nil {
					a.origin[ai.Result()] = o
				}
			case *ir.CastInst:
				if o := a.origin[ai.Val]; o != nil {
					a.origin[ai.Result()] = o
				}
			}
		}
	}
	for _, p := range fn.Params {
		if p.Val != nil && p.Val.Attrs != nil && p.Val.Attrs.Has(ir.AttrNoAlias) {
			a.origin[p.Val] = p.Val
		}
	}
	return a
}

// MayAlias reports whether two pointer values might refer to overlapping
// memory. The conservative default is true; it becomes false only when
// both have a known, distinct origin.
func (a *AliasResult) MayAlias(v1, v2 *ir.Value) bool {
	if v1 == v2 {
		return true
	}
	o1, ok1 := a.origin[v1]
	o2, ok2 := a.origin[v2]
	if !ok1 || !ok2 || o1 == nil || o2 == nil {
		return true
	}
	return o1 == o2
}
