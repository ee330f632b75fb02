package irtext_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attributor/internal/ir"
	"attributor/internal/irtext"
)

// TestParseScenario1 parses spec.md §8 scenario 1's fixture: a constant-
// returning function and a caller of it.
func TestParseScenario1(t *testing.T) {
	src := `
define i32 @f() {
entry:
  ret i32 42
}
define i32 @g(i32 %x) {
entry:
  %r = call i32 @f()
  ret i32 %r
}
`
	m, err := irtext.Parse("scenario1.air", src)
	require.NoError(t, err)
	require.Len(t, m.Functions, 2)

	f := m.Lookup("f")
	require.NotNil(t, f)
	require.Len(t, f.Blocks, 1)
	require.IsType(t, &ir.ConstantInst{}, f.Blocks[0].Instructions[0])
	ret, ok := f.Blocks[0].Term.(*ir.RetTerm)
	require.True(t, ok)
	assert.Equal(t, int64(42), ret.Val.Def.(*ir.ConstantInst).Lit)

	g := m.Lookup("g")
	require.NotNil(t, g)
	call, ok := g.Blocks[0].Instructions[0].(*ir.CallInst)
	require.True(t, ok)
	assert.Equal(t, f, call.CalleeFunc())
}

// TestParseScenario2 parses spec.md §8 scenario 2's fixture: a pointer
// parameter carrying input nonnull/dereferenceable facts, offset by a
// constant getelementptr.
func TestParseScenario2(t *testing.T) {
	src := `
define i8* @h(i8* nonnull dereferenceable(16) %p) {
entry:
  %q = getelementptr i8, i8* %p, i64 4
  ret i8* %q
}
`
	m, err := irtext.Parse("scenario2.air", src)
	require.NoError(t, err)

	h := m.Lookup("h")
	require.NotNil(t, h)
	require.Len(t, h.Params, 1)
	n, ok := h.ParamAttrs(0).Get(ir.AttrDereferenceable)
	require.True(t, ok)
	assert.Equal(t, int64(16), n)
	assert.True(t, h.ParamAttrs(0).Has(ir.AttrNonNull))

	// Instructions[0] is the ConstantInst the literal index 4 parses into.
	gep, ok := h.Blocks[0].Instructions[1].(*ir.GEPInst)
	require.True(t, ok)
	assert.Equal(t, int64(4), gep.Const)
}

// TestParseScenario3 parses spec.md §8 scenario 3's fixture: a malloc/
// store/free sequence heap-to-stack is meant to convert.
func TestParseScenario3(t *testing.T) {
	src := `
declare i8* @malloc(i64 %n)
declare void @free(i8* %p)
define void @k() {
entry:
  %m = call i8* @malloc(i64 32)
  store i8 0, i8* %m
  call void @free(i8* %m)
  ret void
}
`
	m, err := irtext.Parse("scenario3.air", src)
	require.NoError(t, err)

	mallocDecl := m.Lookup("malloc")
	require.NotNil(t, mallocDecl)
	assert.True(t, mallocDecl.External)

	k := m.Lookup("k")
	require.NotNil(t, k)
	// The literals 32 and 0 each parse into a ConstantInst placed just
	// before the instruction that uses it.
	require.Len(t, k.Blocks[0].Instructions, 5)
	mallocCall, ok := k.Blocks[0].Instructions[1].(*ir.CallInst)
	require.True(t, ok)
	assert.Equal(t, "malloc", mallocCall.CalleeName())
	assert.True(t, m.Recognizers.IsMallocLikeFn(mallocCall.CalleeName()))
}

func TestParseRejectsMalformedInput(t *testing.T) {
	_, err := irtext.Parse("bad.air", `define i32 @f( { ret i32 0 }`)
	assert.Error(t, err)
}
