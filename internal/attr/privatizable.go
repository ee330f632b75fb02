package attr

import (
	"fmt"

	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/position"
	"attributor/internal/rewrite"
)

// PrivatizablePointer is spec §4.4's "privatizable-pointer": an optional
// type, resolved either immediately (the argument's own type already names
// a struct pointee — the byval case) or once every direct call site's
// operand is proven to be a single-element stack allocation of one common
// struct type. Any disagreement, any operand this package can't trace to
// an alloca, or any callback call site pessimizes the whole position: once
// one call site can't be split, none can.
type PrivatizablePointer struct {
	fn      *ir.Function
	argIdx  int
	pos     position.Position
	oldVal  *ir.Value
	ty      *ir.StructType
	resolved bool
	fixed   bool
}

func NewPrivatizablePointer(fn *ir.Function, argIdx int) *PrivatizablePointer {
	pos := position.ForArgument(fn, argIdx)
	return &PrivatizablePointer{fn: fn, argIdx: argIdx, pos: pos, oldVal: fn.Params[argIdx].Val}
}

func (p *PrivatizablePointer) Kind() string               { return string(KindPrivatizablePointer) }
func (p *PrivatizablePointer) Position() position.Position { return p.pos }
func (p *PrivatizablePointer) Initialize(eng *engine.Engine) {}

func (p *PrivatizablePointer) Update(eng *engine.Engine) engine.ChangeStatus {
	if p.fixed {
		return engine.Unchanged
	}
	if p.argIdx >= len(p.fn.Params) {
		p.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	if pt, ok := p.fn.Params[p.argIdx].Ty.(*ir.PointerType); ok {
		if st, ok := pt.Elem.(*ir.StructType); ok {
			p.ty = st
			p.resolved = true
			p.fixed = true
			return engine.Changed
		}
	}

	var common *ir.StructType
	sawSite := false
	for _, call := range eng.CG.CallSitesOf(p.fn) {
		if p.argIdx >= len(call.Args()) || call.IsCallbackArg(p.argIdx) {
			p.IndicatePessimisticFixpoint()
			return engine.Changed
		}
		sawSite = true
		operand := call.Args()[p.argIdx]
		alloca, ok := operand.Def.(*ir.AllocaInst)
		if !ok || alloca.Count != nil {
			p.IndicatePessimisticFixpoint()
			return engine.Changed
		}
		st, ok := alloca.AllocTy.(*ir.StructType)
		if !ok {
			p.IndicatePessimisticFixpoint()
			return engine.Changed
		}
		if common == nil {
			common = st
		} else if !common.Equal(st) {
			p.IndicatePessimisticFixpoint()
			return engine.Changed
		}
	}
	if sawSite && common != nil {
		p.ty = common
		p.resolved = true
		p.fixed = true
		return engine.Changed
	}
	return engine.Unchanged
}

// calleeRepair inserts a scratch allocation of the flattened struct type at
// the rewritten function's entry, stores each new flattened parameter into
// its field slot, and redirects every remaining use of the old aggregate
// parameter at that allocation (spec §4.6 "inserts a scratch allocation
// plus initializing stores in the callee entry").
func (p *PrivatizablePointer) calleeRepair(newFn *ir.Function, newParamVals []*ir.Value) {
	scratch := &ir.BasicBlock{}
	b := ir.NewBuilder(newFn, scratch)
	base := b.Alloca(p.oldVal.Name+".priv", p.ty, nil)
	for i, fv := range newParamVals {
		addr := base
		if i > 0 {
			addr = b.GEPConst(fmt.Sprintf("%s.priv.field%d", p.oldVal.Name, i), base, int64(i))
		}
		b.Store(addr, fv)
	}
	prependInstructions(newFn.Entry, scratch.Instructions)
	ir.ReplaceAllUsesWith(p.oldVal, base)
}

// callSiteRepair loads each field back out of the call site's stack
// allocation, producing the flattened per-call-site operand list (spec
// §4.6 "loads at each call site").
func (p *PrivatizablePointer) callSiteRepair(site ir.CallLike, oldOperand *ir.Value) []*ir.Value {
	blk := site.Block()
	scratch := &ir.BasicBlock{}
	b := ir.NewBuilder(blk.Func, scratch)
	fields := make([]*ir.Value, len(p.ty.Fields))
	for i, ft := range p.ty.Fields {
		addr := oldOperand
		if i > 0 {
			addr = b.GEPConst(fmt.Sprintf("%s.field%d.addr", oldOperand.Name, i), oldOperand, int64(i))
		}
		fields[i] = b.Load(fmt.Sprintf("%s.field%d", oldOperand.Name, i), ft, addr)
	}
	spliceBeforeInstruction(blk, site, scratch.Instructions)
	return fields
}

// prependInstructions inserts insts (built against a detached scratch
// block) at the front of blk, fixing up their block pointer.
func prependInstructions(blk *ir.BasicBlock, insts []ir.Instruction) {
	for _, inst := range insts {
		inst.SetBlock(blk)
	}
	blk.Instructions = append(append([]ir.Instruction{}, insts...), blk.Instructions...)
}

// spliceBeforeInstruction inserts insts immediately before anchor in blk,
// or at the end if anchor is blk's terminator (an invoke call site).
func spliceBeforeInstruction(blk *ir.BasicBlock, anchor ir.Instruction, insts []ir.Instruction) {
	for _, inst := range insts {
		inst.SetBlock(blk)
	}
	idx := -1
	for i, cand := range blk.Instructions {
		if cand == anchor {
			idx = i
			break
		}
	}
	if idx < 0 {
		blk.Instructions = append(blk.Instructions, insts...)
		return
	}
	rest := append([]ir.Instruction{}, blk.Instructions[idx:]...)
	blk.Instructions = append(blk.Instructions[:idx], append(insts, rest...)...)
}

func (p *PrivatizablePointer) Manifest(eng *engine.Engine) {
	if !p.resolved {
		return
	}
	eng.Edits.RewriteSignature(rewrite.SignatureRewrite{
		Fn:               p.fn,
		OldArgIdx:        p.argIdx,
		ReplacementTypes: p.ty.Fields,
		CalleeRepair:     p.calleeRepair,
		CallSiteRepair:   p.callSiteRepair,
	})
}
func (p *PrivatizablePointer) IsValidState() bool           { return true }
func (p *PrivatizablePointer) IsAtFixpoint() bool           { return p.fixed }
func (p *PrivatizablePointer) IndicatePessimisticFixpoint() { p.fixed = true; p.resolved = false; p.ty = nil }
func (p *PrivatizablePointer) IndicateOptimisticFixpoint()  { p.fixed = true }
func (p *PrivatizablePointer) String() string {
	return fmt.Sprintf("privatizable-pointer@%s", p.pos.String())
}
