package analysis

import "attributor/internal/ir"

// Cache is the per-module lazy analysis cache of spec §6.2: each accessor
// computes its result on first request per function and memoizes it for
// the remainder of a fixpoint run. The engine (spec §4) invalidates a
// function's entries only when the rewriter (spec §4.6) actually changes
// that function's IR, never on every iteration — recomputing a dominator
// tree is not free and nothing about a stable abstract-attribute update
// changes the underlying control-flow graph.
type Cache struct {
	module *ir.Module
	dom    map[*ir.Function]*Dominators
	loops  map[*ir.Function]*Loops
	mec    map[*ir.Function]*MustExecContext
	alias  map[*ir.Function]*AliasResult
	scev   map[*ir.Function]*ScevInfo
	tli    *TargetLibraryInfo
	tii    *TargetIRInfo
}

func NewCache(m *ir.Module) *Cache {
	return &Cache{
		module: m,
		dom:    map[*ir.Function]*Dominators{},
		loops:  map[*ir.Function]*Loops{},
		mec:    map[*ir.Function]*MustExecContext{},
		alias:  map[*ir.Function]*AliasResult{},
		scev:   map[*ir.Function]*ScevInfo{},
		tli:    NewTargetLibraryInfo(m),
		tii:    NewTargetIRInfo(),
	}
}

func (c *Cache) DominatorTree(fn *ir.Function) *Dominators {
	if d, ok := c.dom[fn]; ok {
		return d
	}
	d := ComputeDominators(fn)
	c.dom[fn] = d
	return d
}

func (c *Cache) LoopInfo(fn *ir.Function) *Loops {
	if l, ok := c.loops[fn]; ok {
		return l
	}
	l := FindLoops(fn, c.DominatorTree(fn))
	c.loops[fn] = l
	return l
}

func (c *Cache) MustBeExecutedContextExplorer(fn *ir.Function) *MustExecContext {
	if m, ok := c.mec[fn]; ok {
		return m
	}
	m := NewMustExecContext(fn, c.DominatorTree(fn))
	c.mec[fn] = m
	return m
}

func (c *Cache) AliasAnalysis(fn *ir.Function) *AliasResult {
	if a, ok := c.alias[fn]; ok {
		return a
	}
	a := ComputeAliasAnalysis(fn)
	c.alias[fn] = a
	return a
}

func (c *Cache) ScalarEvolution(fn *ir.Function) *ScevInfo {
	if s, ok := c.scev[fn]; ok {
		return s
	}
	s := ComputeScalarEvolution(fn, c.LoopInfo(fn))
	c.scev[fn] = s
	return s
}

func (c *Cache) TargetLibraryInfo() *TargetLibraryInfo { return c.tli }
func (c *Cache) TargetIRInfo() *TargetIRInfo           { return c.tii }

// Invalidate drops every memoized analysis for fn, forcing the next
// accessor call to recompute from the (presumably just-rewritten) IR.
func (c *Cache) Invalidate(fn *ir.Function) {
	delete(c.dom, fn)
	delete(c.loops, fn)
	delete(c.mec, fn)
	delete(c.alias, fn)
	delete(c.scev, fn)
}
