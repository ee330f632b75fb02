package rewrite_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attributor/internal/callgraph"
	"attributor/internal/ir"
	"attributor/internal/rewrite"
)

func TestReplayUseReplacement(t *testing.T) {
	m := ir.NewModule("test")
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	c1 := b.Constant("%c1", ir.I32, 1)
	c2 := b.Constant("%c2", ir.I32, 2)
	b.Ret(c1)
	m.AddFunction(f)

	q := rewrite.NewQueue()
	q.ReplaceUses(c1, c2)
	q.Replay(m, callgraph.NewGraph())

	ret := entry.Term.(*ir.RetTerm)
	assert.Equal(t, c2, ret.Val)
}

func TestReplayBranchFoldDropsDeadPhiOperand(t *testing.T) {
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	trueBB := f.NewBlock("t")
	falseBB := f.NewBlock("f")
	join := f.NewBlock("join")

	b := ir.NewBuilder(f, entry)
	cond := b.Constant("%c", ir.I1, 1)
	b.Br(cond, trueBB, falseBB)

	b.SetBlock(trueBB)
	tv := b.Constant("%tv", ir.I32, 1)
	b.Jump(join)

	b.SetBlock(falseBB)
	fv := b.Constant("%fv", ir.I32, 0)
	b.Jump(join)

	b.SetBlock(join)
	phi := b.Phi("%p", ir.I32)
	phi.AddIncoming(trueBB, tv)
	phi.AddIncoming(falseBB, fv)
	b.Ret(phi.Result())

	br := entry.Term.(*ir.BrTerm)
	q := rewrite.NewQueue()
	q.FoldBranch(br, true)
	// The fold leaves falseBB unreachable; deleting it (as liveness does for
	// every dead block) is what drops its operand from the join phi.
	q.DeleteBlock(falseBB)

	m := ir.NewModule("test")
	m.AddFunction(f)
	q.Replay(m, callgraph.NewGraph())

	jt, ok := entry.Term.(*ir.JumpTerm)
	require.True(t, ok)
	assert.Equal(t, trueBB, jt.Target)
	require.Len(t, phi.Incoming, 1)
	assert.Equal(t, trueBB, phi.Incoming[0])
}

func TestReplayFunctionDeletionNotifiesCallGraph(t *testing.T) {
	m := ir.NewModule("test")
	f := ir.NewFunction("dead", nil, ir.I32)
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	c := b.Constant("%c", ir.I32, 0)
	b.Ret(c)
	m.AddFunction(f)

	cg := callgraph.NewGraph()
	cg.Initialize(m)

	q := rewrite.NewQueue()
	q.DeleteFunction(f)
	q.Replay(m, cg)

	assert.Nil(t, m.Lookup("dead"))
	assert.Nil(t, cg.Node("dead"))
}
