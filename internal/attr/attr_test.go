package attr_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attributor/internal/analysis"
	"attributor/internal/attr"
	"attributor/internal/callgraph"
	"attributor/internal/config"
	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/position"
)

// newTestEngine wires a fresh module/cache/call-graph/engine quadruple, the
// same construction every package along the pipeline (engine, rewrite,
// callgraph) uses in its own tests.
func newTestEngine(m *ir.Module) *engine.Engine {
	cache := analysis.NewCache(m)
	cg := callgraph.NewGraph()
	cg.Initialize(m)
	return engine.New(m, cache, cg, config.Default())
}

// admit installs r into eng's record cache the way seed.go's own `create`
// helper does, without forcing the test to depend on an unexported function.
func admit(eng *engine.Engine, r engine.Record) engine.Record {
	return eng.GetOrCreate(r.Kind(), r.Position(), engine.Optional, func() engine.Record { return r })
}

func TestNoUnwindHoldsWithNoThrowingInstructions(t *testing.T) {
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	c := b.Constant("%c", ir.I32, 1)
	b.Ret(c)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	pos := position.ForFunction(f)
	rec := admit(eng, attr.NewNoUnwind(pos, f)).(*attr.BoolFn)
	eng.Run()

	assert.True(t, rec.IsAtFixpoint())
	assert.True(t, rec.Holds())
}

func TestNoUnwindPessimizesOnUnresolvedIndirectCall(t *testing.T) {
	f := ir.NewFunction("f", nil, &ir.VoidType{})
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	b.Call("", nil, nil, "indirect_target", nil)
	b.Ret(nil)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	pos := position.ForFunction(f)
	rec := admit(eng, attr.NewNoUnwind(pos, f)).(*attr.BoolFn)
	eng.Run()

	assert.True(t, rec.IsAtFixpoint())
	assert.False(t, rec.Holds())
}

func TestNoUnwindSkipsUnresolvedIndirectCallInDeadBlock(t *testing.T) {
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	eb := ir.NewBuilder(f, entry)
	c := eb.Constant("%c", ir.I32, 1)
	eb.Ret(c)

	orphan := f.NewBlock("orphan")
	ob := ir.NewBuilder(f, orphan)
	ob.Call("", nil, nil, "indirect_target", nil)
	ob.Ret(nil)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	pos := position.ForFunction(f)
	rec := admit(eng, attr.NewNoUnwind(pos, f)).(*attr.BoolFn)
	admit(eng, attr.NewLivenessFunction(f))
	eng.Run()

	assert.True(t, rec.IsAtFixpoint())
	assert.True(t, rec.Holds(), "an unresolved indirect call reachable only through a dead block must not force no-unwind pessimistic")
}

func TestNoFreePessimizesOnFreeLikeCall(t *testing.T) {
	f := ir.NewFunction("f", nil, &ir.VoidType{})
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	p := b.Constant("%p", &ir.PointerType{Elem: ir.I8}, 0)
	b.Call("", nil, nil, "free", []*ir.Value{p})
	b.Ret(nil)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	pos := position.ForFunction(f)
	rec := admit(eng, attr.NewNoFree(pos, f)).(*attr.BoolFn)
	eng.Run()

	assert.False(t, rec.Holds())
}

func TestNoRecurseSeedsPessimisticForSelfCall(t *testing.T) {
	f := ir.NewFunction("f", nil, &ir.VoidType{})
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	b.Call("", nil, f, "f", nil)
	b.Ret(nil)

	m := ir.NewModule("test")
	m.AddFunction(f)
	cg := callgraph.NewGraph()
	cg.Initialize(m)

	pos := position.ForFunction(f)
	rec := attr.NewNoRecurse(pos, f, cg)
	assert.False(t, rec.Holds(), "a function that calls itself must seed pessimistic")
}

func TestNonNullHoldsForAllocaResult(t *testing.T) {
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	p := b.Alloca("%p", ir.I32, nil)
	v := b.Load("%v", ir.I32, p)
	b.Ret(v)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	pos := position.ForFloat(p)
	rec := admit(eng, attr.NewNonNull(pos, f)).(*attr.BoolFn)
	eng.Run()

	assert.True(t, rec.Holds())
}

func TestDereferenceableGrowsFromAllocaSize(t *testing.T) {
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	p := b.Alloca("%p", ir.I32, nil)
	v := b.Load("%v", ir.I32, p)
	b.Ret(v)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	pos := position.ForFloat(p)
	admit(eng, attr.NewDereferenceable(pos))
	eng.Run()

	n, ok := p.Attrs.Get(ir.AttrDereferenceable)
	require.True(t, ok)
	assert.Equal(t, int64(4), n)
}

func TestUndefinedBehaviorFlagsLoadThroughNullPointer(t *testing.T) {
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	null := b.Constant("%null", &ir.PointerType{Elem: ir.I32}, 0)
	v := b.Load("%v", ir.I32, null)
	b.Ret(v)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	admit(eng, attr.NewUndefinedBehavior(f))
	eng.Run()

	require.Len(t, entry.Instructions, 3, "an unreachable marker should be spliced in ahead of the bad load")
	assert.IsType(t, &ir.ConstantInst{}, entry.Instructions[0])
	assert.IsType(t, &ir.UnreachableInst{}, entry.Instructions[1])
	assert.IsType(t, &ir.LoadInst{}, entry.Instructions[2])
}

func TestHeapToStackConvertsSingleUseMallocWithMatchedFree(t *testing.T) {
	f := ir.NewFunction("f", nil, &ir.VoidType{})
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	size := b.Constant("%sz", ir.I64, 8)
	p := b.Call("%p", &ir.PointerType{Elem: ir.I8}, nil, "malloc", []*ir.Value{size})
	b.Load("%v", ir.I8, p)
	b.Call("", nil, nil, "free", []*ir.Value{p})
	b.Ret(nil)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	admit(eng, attr.NewHeapToStack(f))
	eng.Run()

	require.IsType(t, &ir.AllocaInst{}, p.Def)
	alloca := p.Def.(*ir.AllocaInst)
	assert.Equal(t, &ir.ArrayType{Elem: ir.I8, Len: 8}, alloca.AllocTy)

	for _, inst := range entry.Instructions {
		if call, ok := inst.(ir.CallLike); ok {
			assert.NotEqual(t, "free", call.CalleeName(), "the matched free call should have been deleted")
		}
	}
}

func TestHeapToStackLeavesEscapingMallocAlone(t *testing.T) {
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	size := b.Constant("%sz", ir.I64, 8)
	p := b.Call("%p", &ir.PointerType{Elem: ir.I8}, nil, "malloc", []*ir.Value{size})
	asInt := b.Cast("%i", "ptrtoint", ir.I32, p)
	b.Ret(asInt)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	admit(eng, attr.NewHeapToStack(f))
	eng.Run()

	require.IsType(t, &ir.CallInst{}, p.Def, "escaping via ptrtoint must not be converted")
}

func TestPrivatizablePointerResolvesByvalImmediately(t *testing.T) {
	structTy := &ir.StructType{Name: "Pair", Fields: []ir.Type{ir.I32, ir.I32}}
	params := []*ir.Param{{Name: "p", Ty: &ir.PointerType{Elem: structTy}}}
	f := ir.NewFunction("f", params, &ir.VoidType{})
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	b.Ret(nil)

	m := ir.NewModule("test")
	m.AddFunction(f)
	eng := newTestEngine(m)

	rec := attr.NewPrivatizablePointer(f, 0)
	admit(eng, rec)
	eng.Run()

	assert.True(t, rec.IsAtFixpoint())
	rewritten := m.Lookup("f")
	require.NotNil(t, rewritten)
	assert.Len(t, rewritten.Params, 2, "a byval struct-pointer argument should flatten into one param per field")
}

func TestPrivatizablePointerResolvesFromCallSiteConsensusAndRewrites(t *testing.T) {
	structTy := &ir.StructType{Name: "Point", Fields: []ir.Type{ir.I32, ir.I32}}
	params := []*ir.Param{{Name: "p", Ty: &ir.PointerType{Elem: ir.I8}}}
	g := ir.NewFunction("g", params, &ir.VoidType{})
	gEntry := g.NewBlock("entry")
	gb := ir.NewBuilder(g, gEntry)
	gb.Ret(nil)

	h := ir.NewFunction("h", nil, &ir.VoidType{})
	hEntry := h.NewBlock("entry")
	hb := ir.NewBuilder(h, hEntry)
	alloc := hb.Alloca("%s", structTy, nil)
	hb.Call("", nil, g, "g", []*ir.Value{alloc})
	hb.Ret(nil)

	m := ir.NewModule("test")
	m.AddFunction(g)
	m.AddFunction(h)
	eng := newTestEngine(m)

	rec := attr.NewPrivatizablePointer(g, 0)
	admit(eng, rec)
	eng.Run()

	require.True(t, rec.IsAtFixpoint())

	rewritten := m.Lookup("g")
	require.NotNil(t, rewritten)
	assert.Len(t, rewritten.Params, 2, "the aggregate parameter should flatten into one param per field")

	for _, inst := range hEntry.Instructions {
		if call, ok := inst.(ir.CallLike); ok && call.CalleeName() == "g" {
			assert.Len(t, call.Args(), 2, "the call site's single struct operand should split into field loads")
		}
	}
}

func TestSeedAdmitsCatalogueForSimpleFunction(t *testing.T) {
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	c := b.Constant("%c", ir.I32, 1)
	b.Ret(c)

	m := ir.NewModule("test")
	m.AddFunction(f)
	cache := analysis.NewCache(m)
	cg := callgraph.NewGraph()
	cg.Initialize(m)
	eng := engine.New(m, cache, cg, config.Default())

	attr.Seed(eng, f, cg)
	eng.Run()

	assert.NotNil(t, eng.Lookup(string(attr.KindLivenessFunction), position.ForFunction(f)))
	assert.NotNil(t, eng.Lookup(string(attr.KindWillReturn), position.ForFunction(f)))
	assert.NotNil(t, eng.Lookup(string(attr.KindHeapToStack), position.ForFunction(f)))
	assert.NotNil(t, eng.Lookup(string(attr.KindReturnedValues), position.ForFunction(f)))
}

func TestSeedAdmitsPointerArgumentCatalogue(t *testing.T) {
	params := []*ir.Param{{Name: "p", Ty: &ir.PointerType{Elem: ir.I32}}}
	f := ir.NewFunction("f", params, &ir.VoidType{})
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	b.Ret(nil)

	m := ir.NewModule("test")
	m.AddFunction(f)
	cache := analysis.NewCache(m)
	cg := callgraph.NewGraph()
	cg.Initialize(m)
	eng := engine.New(m, cache, cg, config.Default())

	attr.Seed(eng, f, cg)
	eng.Run()

	argPos := position.ForArgument(f, 0)
	assert.NotNil(t, eng.Lookup(string(attr.KindNonNull), argPos))
	assert.NotNil(t, eng.Lookup(string(attr.KindNoCapture), argPos))
	assert.NotNil(t, eng.Lookup(string(attr.KindPrivatizablePointer), argPos))
}
