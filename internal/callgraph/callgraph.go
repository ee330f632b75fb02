// Package callgraph implements the call-graph updater interface consumed
// by the engine (spec §6.3): the engine notifies it of the IR changes the
// rewriter (spec §4.6) staged during manifest, and it keeps a coherent
// caller/callee edge set without the engine ever touching graph structure
// directly. Uses a name-keyed symbol-table-style registry (a map with a
// Define/Lookup API), generalized from lexical symbols to call edges
// between *ir.Function values.
package callgraph

import "attributor/internal/ir"

// Edge is one call site's caller->callee relationship.
type Edge struct {
	Caller *ir.Function
	Callee *ir.Function // nil for an edge to an unresolved/indirect callee
	Site   ir.CallLike
}

// Node is a call graph vertex: one function and the edges leaving it.
type Node struct {
	Fn       *ir.Function
	Outgoing []*Edge
}

// Graph is the in-memory call graph, keyed by function name.
type Graph struct {
	nodes    map[string]*Node
	incoming map[string][]*Edge
}

func NewGraph() *Graph {
	return &Graph{nodes: map[string]*Node{}, incoming: map[string][]*Edge{}}
}

// Initialize populates the graph from every function in m, scanning each
// function's call sites for its outgoing edges (spec §6.3 "initialize(graph,
// scc)" — SCC partitioning itself is the outer pass manager's concern, out
// of scope here per spec §1; this builds the flat edge set it would
// partition).
func (g *Graph) Initialize(m *ir.Module) {
	for _, fn := range m.Functions {
		g.nodes[fn.Name] = &Node{Fn: fn}
	}
	for _, fn := range m.Functions {
		for _, site := range fn.CallSites() {
			g.addEdge(fn, site)
		}
	}
}

func (g *Graph) addEdge(caller *ir.Function, site ir.CallLike) {
	e := &Edge{Caller: caller, Callee: site.CalleeFunc(), Site: site}
	node := g.nodes[caller.Name]
	node.Outgoing = append(node.Outgoing, e)
	if e.Callee != nil {
		g.incoming[e.Callee.Name] = append(g.incoming[e.Callee.Name], e)
	}
}

func (g *Graph) Node(name string) *Node { return g.nodes[name] }

func (g *Graph) CallersOf(fn *ir.Function) []*Edge { return g.incoming[fn.Name] }

// CallSitesOf returns just the call-site instructions of CallersOf(fn), the
// shape a signature rewrite's call-site repair needs without pulling in the
// rest of Edge.
func (g *Graph) CallSitesOf(fn *ir.Function) []ir.CallLike {
	edges := g.incoming[fn.Name]
	sites := make([]ir.CallLike, len(edges))
	for i, e := range edges {
		sites[i] = e.Site
	}
	return sites
}

// ReplaceCallSite updates the graph when the rewriter redirects a call
// site's callee (e.g. devirtualizing an indirect call once no-alias or
// value-simplify resolved it, or splicing in a shallow wrapper — spec §4.6).
func (g *Graph) ReplaceCallSite(caller *ir.Function, site ir.CallLike, newCallee *ir.Function) {
	node := g.nodes[caller.Name]
	for _, e := range node.Outgoing {
		if e.Site == site {
			g.removeIncoming(e)
			e.Callee = newCallee
			if newCallee != nil {
				g.incoming[newCallee.Name] = append(g.incoming[newCallee.Name], e)
			}
			return
		}
	}
}

// ReplaceFunctionWith retargets every edge pointing at old to point at
// replacement instead — used when a shallow wrapper (spec §4.6) takes
// over a non-IPO-amendable function's name, or a function is cloned with a
// rewritten signature.
func (g *Graph) ReplaceFunctionWith(old, replacement *ir.Function) {
	for _, e := range g.incoming[old.Name] {
		e.Callee = replacement
	}
	g.incoming[replacement.Name] = append(g.incoming[replacement.Name], g.incoming[old.Name]...)
	delete(g.incoming, old.Name)
	if node, ok := g.nodes[old.Name]; ok {
		node.Fn = replacement
		g.nodes[replacement.Name] = node
		delete(g.nodes, old.Name)
	}
}

// RemoveFunction drops fn from the graph entirely (spec §4.6 "function
// deletion" manifest op, for functions proven dead/unreachable).
func (g *Graph) RemoveFunction(fn *ir.Function) {
	delete(g.nodes, fn.Name)
	delete(g.incoming, fn.Name)
	for _, n := range g.nodes {
		kept := n.Outgoing[:0]
		for _, e := range n.Outgoing {
			if e.Callee != fn {
				kept = append(kept, e)
			}
		}
		n.Outgoing = kept
	}
}

// ReanalyzeFunction is a no-op marker hook: the engine calls it once a
// function's body has been rewritten so an outer pass manager (out of
// scope per spec §1) knows to re-run its own analyses; the call graph
// itself needs no extra bookkeeping beyond what ReplaceCallSite already
// performed.
func (g *Graph) ReanalyzeFunction(fn *ir.Function) {}

// Finalize is called once after the engine's run completes (spec §6.3);
// nothing needs flushing in this in-memory implementation, but the hook is
// kept so callers don't need to special-case "no final step".
func (g *Graph) Finalize() {}

func (g *Graph) removeIncoming(e *Edge) {
	if e.Callee == nil {
		return
	}
	list := g.incoming[e.Callee.Name]
	for i, cand := range list {
		if cand == e {
			g.incoming[e.Callee.Name] = append(list[:i], list[i+1:]...)
			return
		}
	}
}
