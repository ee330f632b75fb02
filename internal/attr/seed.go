package attr

import (
	"attributor/internal/callgraph"
	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/position"
)

// Seed admits fn's initial record set to eng, per spec §4.5: the
// function-level catalogue entries every function gets, the return-side
// entries when fn isn't void (and the extra pointer-only entries when its
// return type is a pointer), the per-argument entries (and their
// pointer-only extras), and per-call-site/per-call-site-argument entries
// for every call-like instruction in fn's body.
func Seed(eng *engine.Engine, fn *ir.Function, cg *callgraph.Graph) {
	fnPos := position.ForFunction(fn)

	create(eng, func() engine.Record { return NewLivenessFunction(fn) })
	create(eng, func() engine.Record { return NewWillReturn(fnPos, fn, eng.Cache.LoopInfo(fn)) })
	create(eng, func() engine.Record { return NewUndefinedBehavior(fn) })
	create(eng, func() engine.Record { return NewNoUnwind(fnPos, fn) })
	create(eng, func() engine.Record { return NewNoSync(fnPos, fn) })
	create(eng, func() engine.Record { return NewNoFree(fnPos, fn) })
	create(eng, func() engine.Record { return NewNoReturn(fnPos, fn) })
	create(eng, func() engine.Record { return NewNoRecurse(fnPos, fn, cg) })
	create(eng, func() engine.Record { return NewMemoryBehavior(fnPos) })
	create(eng, func() engine.Record { return NewMemoryLocation(fnPos) })
	create(eng, func() engine.Record { return NewHeapToStack(fn) })

	if _, void := fn.ReturnType.(*ir.VoidType); !void {
		retPos := position.ForReturned(fn)
		create(eng, func() engine.Record { return NewReturnedValues(fn) })
		create(eng, func() engine.Record { return NewValueSimplify(retPos) })
		if _, isPtr := fn.ReturnType.(*ir.PointerType); isPtr {
			create(eng, func() engine.Record { return NewAlignment(retPos) })
			create(eng, func() engine.Record { return NewNonNull(retPos, fn) })
			create(eng, func() engine.Record { return NewNoAlias(retPos, fn) })
			create(eng, func() engine.Record { return NewDereferenceable(retPos) })
		}
	}

	for idx, param := range fn.Params {
		argPos := position.ForArgument(fn, idx)
		create(eng, func() engine.Record { return NewValueSimplify(argPos) })
		create(eng, func() engine.Record { return NewLivenessValue(param.Val) })
		if _, isPtr := param.Ty.(*ir.PointerType); isPtr {
			create(eng, func() engine.Record { return NewNonNull(argPos, fn) })
			create(eng, func() engine.Record { return NewNoAlias(argPos, fn) })
			create(eng, func() engine.Record { return NewDereferenceable(argPos) })
			create(eng, func() engine.Record { return NewAlignment(argPos) })
			create(eng, func() engine.Record { return NewNoCapture(argPos) })
			create(eng, func() engine.Record { return NewMemoryBehavior(argPos) })
			create(eng, func() engine.Record { return NewNoFree(argPos, fn) })
			create(eng, func() engine.Record { return NewPrivatizablePointer(fn, idx) })
		}
	}

	for _, call := range fn.CallSites() {
		seedCallSite(eng, call)
	}
}

func seedCallSite(eng *engine.Engine, call ir.CallLike) {
	if res := call.Result(); res != nil {
		retPos := position.ForCallSiteReturned(call)
		create(eng, func() engine.Record { return NewValueSimplify(retPos) })
		create(eng, func() engine.Record { return NewNonNull(retPos, nil) })
		create(eng, func() engine.Record { return NewNoAlias(retPos, nil) })
		create(eng, func() engine.Record { return NewDereferenceable(retPos) })
	}
	for idx, arg := range call.Args() {
		argPos := position.ForCallSiteArgument(call, idx)
		create(eng, func() engine.Record { return NewValueSimplify(argPos) })
		if _, isPtr := arg.Ty.(*ir.PointerType); isPtr {
			create(eng, func() engine.Record { return NewNonNull(argPos, nil) })
			create(eng, func() engine.Record { return NewDereferenceable(argPos) })
			create(eng, func() engine.Record { return NewAlignment(argPos) })
			create(eng, func() engine.Record { return NewNoCapture(argPos) })
		}
	}
}

// create admits r's own Kind/Position-keyed slot into the engine's interning
// cache without forcing any particular dependency class on the caller (the
// seeding pass is the one place records are installed with no incoming
// query yet, so the class argument is irrelevant — nothing depends on a
// record before it exists).
func create(eng *engine.Engine, mk func() engine.Record) {
	r := mk()
	eng.GetOrCreate(r.Kind(), r.Position(), engine.Optional, func() engine.Record { return r })
}
