package callgraph_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attributor/internal/callgraph"
	"attributor/internal/ir"
)

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

func TestInitializeBuildsEdges(t *testing.T) {
	m := buildFG(t)
	graph := callgraph.NewGraph()
	graph.Initialize(m)

	g := m.Lookup("g")
	f := m.Lookup("f")
	node := graph.Node("g")
	require.Len(t, node.Outgoing, 1)
	assert.Equal(t, f, node.Outgoing[0].Callee)
	assert.Equal(t, g, node.Outgoing[0].Caller)

	callers := graph.CallersOf(f)
	require.Len(t, callers, 1)
	assert.Equal(t, g, callers[0].Caller)
}

func TestReplaceFunctionWithRetargetsIncoming(t *testing.T) {
	m := buildFG(t)
	graph := callgraph.NewGraph()
	graph.Initialize(m)

	f := m.Lookup("f")
	newF := ir.NewFunction("f.wrapped", nil, ir.I32)
	graph.ReplaceFunctionWith(f, newF)

	callers := graph.CallersOf(newF)
	require.Len(t, callers, 1)
	assert.Equal(t, newF, callers[0].Callee)
	assert.Empty(t, graph.CallersOf(f))
}

func TestRemoveFunctionDropsOutgoingEdges(t *testing.T) {
	m := buildFG(t)
	graph := callgraph.NewGraph()
	graph.Initialize(m)

	f := m.Lookup("f")
	graph.RemoveFunction(f)

	assert.Nil(t, graph.Node("f"))
	gNode := graph.Node("g")
	assert.Empty(t, gNode.Outgoing)
}
