package ir_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attributor/internal/ir"
)

// buildFG builds spec.md scenario 1:
//
//	define i32 @f() { ret i32 42 }
//	define i32 @g(i32 %x) { %r = call i32 @f(); ret i32 %r }
func buildFG(t *testing.T) *ir.Module {
	t.Helper()
	m := ir.NewModule("test")

	f := ir.NewFunction("f", nil, ir.I32)
	fEntry := f.NewBlock("entry")
	fb := ir.NewBuilder(f, fEntry)
	c := fb.Constant("%c", ir.I32, 42)
	fb.Ret(c)
	m.AddFunction(f)

	g := ir.NewFunction("g", []*ir.Param{{Name: "%x", Ty: ir.I32}}, ir.I32)
	gEntry := g.NewBlock("entry")
	gb := ir.NewBuilder(g, gEntry)
	r := gb.Call("%r", ir.I32, f, "f", nil)
	gb.Ret(r)
	m.AddFunction(g)

	return m
}

func TestBuildAndPrint(t *testing.T) {
	m := buildFG(t)
	require.Len(t, m.Functions, 2)

	out := ir.Print(m)
	assert.Contains(t, out, "define i32 @f()")
	assert.Contains(t, out, "ret i32 %c")
	assert.Contains(t, out, "call @f()")
}

func TestReplaceAllUsesWith(t *testing.T) {
	m := buildFG(t)
	g := m.Lookup("g")
	call := g.Blocks[0].Instructions[0]
	r := call.Result()
	require.NotNil(t, r)

	f := m.Lookup("f")
	constVal := f.Blocks[0].Instructions[0].Result()

	ir.ReplaceAllUsesWith(r, constVal)
	ret := g.Blocks[0].Term.(*ir.RetTerm)
	assert.Equal(t, constVal, ret.Val)
	assert.Empty(t, r.Uses)
}

func TestAttrSetMonotoneKnown(t *testing.T) {
	s := ir.NewAttrSet()
	s.Add(ir.AttrDereferenceable, 8)
	s.Add(ir.AttrDereferenceable, 4) // must not shrink a known fact
	v, ok := s.Get(ir.AttrDereferenceable)
	require.True(t, ok)
	assert.Equal(t, int64(8), v)

	s.Add(ir.AttrDereferenceable, 16)
	v, _ = s.Get(ir.AttrDereferenceable)
	assert.Equal(t, int64(16), v)
}
