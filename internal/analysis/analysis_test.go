package analysis_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attributor/internal/analysis"
	"attributor/internal/ir"
)

// buildDiamond builds:
//
//	define i32 @f(i32 %x) {
//	entry: %c = icmp slt %x, 0; br %c, neg, pos
//	neg:   jump join
//	pos:   jump join
//	join:  %p = phi [%nv, neg], [%pv, pos]; ret %p
//	}
func buildDiamond(t *testing.T) (*ir.Function, *ir.BasicBlock, *ir.BasicBlock, *ir.BasicBlock, *ir.BasicBlock) {
	t.Helper()
	f := ir.NewFunction("f", []*ir.Param{{Name: "%x", Ty: ir.I32}}, ir.I32)
	entry := f.NewBlock("entry")
	neg := f.NewBlock("neg")
	pos := f.NewBlock("pos")
	join := f.NewBlock("join")

	b := ir.NewBuilder(f, entry)
	zero := b.Constant("%zero", ir.I32, 0)
	cond := b.ICmp("%c", "slt", f.Params[0].Val, zero)
	b.Br(cond, neg, pos)

	b.SetBlock(neg)
	nv := b.Constant("%nv", ir.I32, -1)
	b.Jump(join)

	b.SetBlock(pos)
	pv := b.Constant("%pv", ir.I32, 1)
	b.Jump(join)

	b.SetBlock(join)
	phi := b.Phi("%p", ir.I32)
	phi.AddIncoming(neg, nv)
	phi.AddIncoming(pos, pv)
	b.Ret(phi.Result())

	return f, entry, neg, pos, join
}

func TestDominatorsDiamond(t *testing.T) {
	f, entry, neg, pos, join := buildDiamond(t)
	dom := analysis.ComputeDominators(f)

	assert.True(t, dom.Dominates(entry, neg))
	assert.True(t, dom.Dominates(entry, pos))
	assert.True(t, dom.Dominates(entry, join))
	assert.False(t, dom.Dominates(neg, pos))
	assert.False(t, dom.Dominates(pos, neg))
	assert.Equal(t, entry, dom.ImmediateDominator(join))
}

// buildCountingLoop builds a simple "for i := 0; i < 10; i++ {}" shaped
// function to exercise loop discovery and trip-count recognition.
func buildCountingLoop(t *testing.T) *ir.Function {
	t.Helper()
	f := ir.NewFunction("loop", nil, ir.VoidType{})
	entry := f.NewBlock("entry")
	header := f.NewBlock("header")
	body := f.NewBlock("body")
	exit := f.NewBlock("exit")

	b := ir.NewBuilder(f, entry)
	start := b.Constant("%start", ir.I32, 0)
	b.Jump(header)

	b.SetBlock(header)
	iv := b.Phi("%i", ir.I32)
	bound := b.Constant("%bound", ir.I32, 10)
	cond := b.ICmp("%cond", "slt", iv.Result(), bound)
	b.Br(cond, body, exit)

	b.SetBlock(body)
	one := b.Constant("%one", ir.I32, 1)
	next := b.Binary("%next", "add", ir.I32, iv.Result(), one)
	b.Jump(header)
	iv.AddIncoming(entry, start)
	iv.AddIncoming(body, next)

	b.SetBlock(exit)
	b.Ret(nil)

	return f
}

func TestLoopDiscoveryAndTripCount(t *testing.T) {
	f := buildCountingLoop(t)
	dom := analysis.ComputeDominators(f)
	loops := analysis.FindLoops(f, dom)
	require.Len(t, loops.All(), 1)

	l := loops.All()[0]
	assert.Equal(t, "header", l.Header.Label)
	assert.True(t, l.TripCountKnown)
	assert.Equal(t, int64(10), l.TripCount)
}

func TestMustExecuteAfterStopsAtBranch(t *testing.T) {
	f, entry, _, _, _ := buildDiamond(t)
	dom := analysis.ComputeDominators(f)
	mec := analysis.NewMustExecContext(f, dom)

	zeroInst := entry.Instructions[0]
	after := mec.MustExecuteAfter(zeroInst)
	// Only the icmp must run next; the branch forks, so nothing beyond it
	// is reported.
	require.Len(t, after, 1)
	assert.Equal(t, entry.Instructions[1], after[0])
}

func TestAliasAnalysisDistinctAllocasDontAlias(t *testing.T) {
	f := ir.NewFunction("allocs", nil, ir.VoidType{})
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	a1 := b.Alloca("%a1", ir.I32, nil)
	a2 := b.Alloca("%a2", ir.I32, nil)
	b.Ret(nil)

	alias := analysis.ComputeAliasAnalysis(f)
	assert.False(t, alias.MayAlias(a1, a2))
	assert.True(t, alias.MayAlias(a1, a1))
}

func TestCacheMemoizesAndInvalidates(t *testing.T) {
	f, _, _, _, _ := buildDiamond(t)
	m := ir.NewModule("test")
	m.AddFunction(f)
	c := analysis.NewCache(m)

	d1 := c.DominatorTree(f)
	d2 := c.DominatorTree(f)
	assert.Same(t, d1, d2)

	c.Invalidate(f)
	d3 := c.DominatorTree(f)
	assert.NotSame(t, d1, d3)
}
