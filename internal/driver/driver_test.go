package driver_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attributor/internal/attr"
	"attributor/internal/config"
	"attributor/internal/driver"
	"attributor/internal/ir"
	"attributor/internal/irtext"
	"attributor/internal/position"
)

// TestRunOnFunctionsInfersNoUnwind runs the default catalogue over spec.md
// §8 scenario 1's fixture and checks the simplest function-level record
// (every instruction here is trivially no-unwind) reaches its optimistic
// fixpoint.
func TestRunOnFunctionsInfersNoUnwind(t *testing.T) {
	m, err := irtext.Parse("scenario1.air", `
define i32 @f() {
entry:
  ret i32 42
}
define i32 @g(i32 %x) {
entry:
  %r = call i32 @f()
  ret i32 %r
}
`)
	require.NoError(t, err)

	res := driver.RunOnFunctions(m, config.Default())

	f := m.Lookup("f")
	rec := res.Engine.Lookup(string(attr.KindNoUnwind), position.ForFunction(f))
	require.NotNil(t, rec)
	assert.True(t, rec.IsValidState())
}

// TestRunOnFunctionsInfersNonNullFromInputAttribute checks that a parameter
// already carrying an input nonnull fact (spec.md §8 scenario 2) survives
// the run as a settled NonNull record.
func TestRunOnFunctionsInfersNonNullFromInputAttribute(t *testing.T) {
	m, err := irtext.Parse("scenario2.air", `
define i8* @h(i8* nonnull dereferenceable(16) %p) {
entry:
  %q = getelementptr i8, i8* %p, i64 4
  ret i8* %q
}
`)
	require.NoError(t, err)

	res := driver.RunOnFunctions(m, config.Default())

	h := m.Lookup("h")
	argPos := position.ForArgument(h, 0)
	rec := res.Engine.Lookup(string(attr.KindNonNull), argPos)
	require.NotNil(t, rec)
	assert.True(t, rec.IsValidState())
}

// TestRunOnFunctionsSkipsExternalDeclarations checks that a declare-only
// function (an opaque callee with no body) gets no seeded records of its
// own, since there is nothing for the engine to deduce about it.
func TestRunOnFunctionsSkipsExternalDeclarations(t *testing.T) {
	m, err := irtext.Parse("scenario3.air", `
declare i8* @malloc(i64 %n)
declare void @free(i8* %p)
define void @k() {
entry:
  %m = call i8* @malloc(i64 32)
  store i8 0, i8* %m
  call void @free(i8* %m)
  ret void
}
`)
	require.NoError(t, err)

	res := driver.RunOnFunctions(m, config.Default())

	mallocFn := m.Lookup("malloc")
	rec := res.Engine.Lookup(string(attr.KindNoUnwind), position.ForFunction(mallocFn))
	assert.Nil(t, rec)
	assert.GreaterOrEqual(t, res.Iterations, 0)
}

// TestRunOnFunctionsNarrowsArgumentRangeFromCallers exercises spec.md §8
// scenario 4: every real caller of @cmp passes a value in [0,5], so %x's
// argument range narrows accordingly, the icmp against the literal 10
// settles to a known-constant boolean, and that fact reaches the call-site
// return position of each caller's call.
func TestRunOnFunctionsNarrowsArgumentRangeFromCallers(t *testing.T) {
	m, err := irtext.Parse("scenario4.air", `
define i1 @cmp(i32 %x) {
entry:
  %c = icmp ult i32 %x, 10
  ret i1 %c
}
define i1 @caller_a() {
entry:
  %r = call i1 @cmp(i32 0)
  ret i1 %r
}
define i1 @caller_b() {
entry:
  %r = call i1 @cmp(i32 5)
  ret i1 %r
}
`)
	require.NoError(t, err)

	res := driver.RunOnFunctions(m, config.Default())
	assert.GreaterOrEqual(t, res.Iterations, 0)

	cmp := m.Lookup("cmp")
	argAttrs := position.ForArgument(cmp, 0).OwnAttrs()
	require.NotNil(t, argAttrs)
	assert.True(t, argAttrs.Range.Valid)
	assert.Equal(t, int64(0), argAttrs.Range.Lo)
	assert.Equal(t, int64(6), argAttrs.Range.Hi)

	callerA := m.Lookup("caller_a")
	call := callerA.CallSites()[0]
	retAttrs := position.ForCallSiteReturned(call).OwnAttrs()
	require.NotNil(t, retAttrs)
	assert.True(t, retAttrs.Range.Valid)
	assert.Equal(t, int64(1), retAttrs.Range.Lo)
	assert.Equal(t, int64(2), retAttrs.Range.Hi)
}

// TestRunOnFunctionsRecordsRecursiveNoReturnAndDeletesDeadRet exercises
// spec.md §8 scenario 5 verbatim: a function whose only path is an
// unconditional call to itself can never return, so it settles no-return,
// and liveness then proves the trailing ret unreachable and deletes it.
func TestRunOnFunctionsRecordsRecursiveNoReturnAndDeletesDeadRet(t *testing.T) {
	m, err := irtext.Parse("scenario5.air", `
define void @rec() {
entry:
  call void @rec()
  ret void
}
`)
	require.NoError(t, err)

	res := driver.RunOnFunctions(m, config.Default())

	rec := m.Lookup("rec")
	noReturn := res.Engine.Lookup(string(attr.KindNoReturn), position.ForFunction(rec))
	require.NotNil(t, noReturn)
	assert.True(t, noReturn.IsValidState())
	boolRec, ok := noReturn.(*attr.BoolFn)
	require.True(t, ok)
	assert.True(t, boolRec.Holds())

	printed := ir.Print(m)
	assert.NotContains(t, printed, "ret void")
	assert.Contains(t, printed, "unreachable")
}
