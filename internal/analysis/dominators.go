// Package analysis implements the lazy per-function analysis cache of
// spec.md §6.2: dominator tree, loop info, a must-be-executed-context
// explorer, alias analysis, a scalar-evolution stand-in, and trivial
// target-info stand-ins. Reachability tracking is generalized from a
// source-language flow analyzer's reachability pass to the ir package's
// control-flow graph, plus the block-copy and block-indexing idiom from
// Uber's nilaway preprocess.CFG/copyGraph.
package analysis

import "attributor/internal/ir"

// Dominators is the iterative dominator tree of a function's basic blocks,
// computed with the Cooper-Harvey-Kennedy algorithm (reverse postorder,
// iterate to fixpoint intersecting idom candidates) rather than
// Lengauer-Tarjan since CFGs here are small and the iterative version is
// far simpler to get right without a toolchain to check it against.
type Dominators struct {
	fn      *ir.Function
	idom    map[*ir.BasicBlock]*ir.BasicBlock
	rpoIdx  map[*ir.BasicBlock]int
	order   []*ir.BasicBlock
}

// ComputeDominators builds the dominator tree of fn. Unreachable blocks (no
// path from fn.Entry) are omitted, matching liveness's notion of aliveness.
func ComputeDominators(fn *ir.Function) *Dominators {
	d := &Dominators{fn: fn, idom: map[*ir.BasicBlock]*ir.BasicBlock{}, rpoIdx: map[*ir.BasicBlock]int{}}
	if fn.Entry == nil {
		return d
	}
	d.order = reversePostorder(fn.Entry)
	for i, b := range d.order {
		d.rpoIdx[b] = i
	}
	if len(d.order) == 0 {
		return d
	}
	entry := d.order[0]
	d.idom[entry] = entry

	changed := true
	for changed {
		changed = false
		for _, b := range d.order[1:] {
			var newIdom *ir.BasicBlock
			for _, p := range b.Preds {
				if _, ok := d.idom[p]; !ok {
					continue
				}
				if newIdom == nil {
					newIdom = p
					continue
				}
				newIdom = d.intersect(newIdom, p)
			}
			if newIdom != nil && d.idom[b] != newIdom {
				d.idom[b] = newIdom
				changed = true
			}
		}
	}
	return d
}

func (d *Dominators) intersect(a, b *ir.BasicBlock) *ir.BasicBlock {
	for a != b {
		for d.rpoIdx[a] > d.rpoIdx[b] {
			a = d.idom[a]
		}
		for d.rpoIdx[b] > d.rpoIdx[a] {
			b = d.idom[b]
		}
	}
	return a
}

// Dominates reports whether a dominates b (every path from the entry to b
// passes through a). A block dominates itself.
func (d *Dominators) Dominates(a, b *ir.BasicBlock) bool {
	if a == b {
		return true
	}
	cur, ok := d.idom[b]
	if !ok {
		return false
	}
	for cur != d.idom[cur] {
		if cur == a {
			return true
		}
		cur = d.idom[cur]
	}
	return cur == a
}

// ImmediateDominator returns b's immediate dominator, or nil for the entry
// block or an unreachable block.
func (d *Dominators) ImmediateDominator(b *ir.BasicBlock) *ir.BasicBlock {
	idom, ok := d.idom[b]
	if !ok || idom == b {
		return nil
	}
	return idom
}

func reversePostorder(entry *ir.BasicBlock) []*ir.BasicBlock {
	var post []*ir.BasicBlock
	visited := map[*ir.BasicBlock]bool{}
	var visit func(b *ir.BasicBlock)
	visit = func(b *ir.BasicBlock) {
		if visited[b] {
			return
		}
		visited[b] = true
		for _, s := range b.Succs {
			visit(s)
		}
		post = append(post, b)
	}
	visit(entry)
	// reverse
	out := make([]*ir.BasicBlock, len(post))
	for i, b := range post {
		out[len(post)-1-i] = b
	}
	return out
}
