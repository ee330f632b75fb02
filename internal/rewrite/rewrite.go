// Package rewrite implements the IR rewriter of spec.md §4.6 (component
// C6): every edit a manifest hook enqueues is deferred until the fixpoint
// loop is done, then replayed in the fixed order spec §4.2 step 5 names —
// use-replacements, unreachable insertions, branch-folding, dead-instruction
// deletion, block deletion, signature rewriting, function deletion — so
// that no attribute's manifest step observes a partially-rewritten module.
//
// Structured as a named, ordered sequence of Apply(program) bool stages,
// the same optimization-pipeline shape generalized here to a fixed
// generic-IR replay order instead of a target-specific peephole pipeline.
package rewrite

import (
	"strconv"

	"attributor/internal/ir"
)

// UseReplacement replaces every use of From with To (spec §4.4
// value-simplify, returned-values, heap-to-stack's pointer rewiring).
type UseReplacement struct {
	From, To *ir.Value
}

// UnreachableInsertion marks that inst (known-UB, or a branch condition
// resolved to undef) must be followed by an unreachable terminator/marker.
type UnreachableInsertion struct {
	Block *ir.BasicBlock
	After ir.Instruction // nil to insert at block start
}

// BranchFold records that br's condition is known constant cond, so one
// successor edge is provably never taken (spec §4.4 liveness "a known
// constant condition prunes the non-taken edges").
type BranchFold struct {
	Br        *ir.BrTerm
	Cond      bool
	DeadBlock *ir.BasicBlock
}

// DeadInstrDeletion marks an instruction dead: either a side-effect-free,
// unused value (value-form liveness) or a block's terminator proven
// unreachable (function-form liveness, once a no-return call mid-block
// shadows everything after it).
type DeadInstrDeletion struct {
	Inst ir.Instruction
}

// BlockDeletion marks b as unreachable (function-form liveness manifest).
type BlockDeletion struct {
	Block *ir.BasicBlock
}

// SignatureRewrite describes a function-signature change (spec §4.6
// privatizable-pointer): OldArgIdx is flattened into ReplacementTypes,
// CalleeRepair inserts the reinitializing allocation/stores at the new
// entry, and CallSiteRepair produces the new per-call-site operand list.
type SignatureRewrite struct {
	Fn                *ir.Function
	OldArgIdx         int
	ReplacementTypes  []ir.Type
	CalleeRepair      func(newFn *ir.Function, newParamVals []*ir.Value)
	CallSiteRepair    func(site ir.CallLike, oldOperand *ir.Value) []*ir.Value
}

// FunctionDeletion marks fn for removal from the module (proven dead/
// unreachable with no remaining callers).
type FunctionDeletion struct {
	Fn *ir.Function
}

// ShallowWrapper requests a tail-calling wrapper around Fn with Fn itself
// renamed/demoted to internal linkage (spec §4.6 "Shallow wrappers"),
// enabled only when config.EnableShallowWrappers is set.
type ShallowWrapper struct {
	Fn *ir.Function
}

// HeapToStackConversion requests that a proven-safe malloc call be rewritten
// into a Size-byte stack allocation, and its matched free call (if any)
// deleted (spec §4.4 heap-to-stack manifest).
type HeapToStackConversion struct {
	Call  ir.CallLike
	Size  int64
	Free  ir.CallLike // nil if the allocation was never freed
}

// Queue accumulates every deferred edit across a fixpoint run. Manifest
// hooks only ever append to it; nothing is applied until Replay.
type Queue struct {
	UseReplacements       []UseReplacement
	UnreachableInsertions []UnreachableInsertion
	BranchFolds           []BranchFold
	DeadInstrDeletions    []DeadInstrDeletion
	BlockDeletions        []BlockDeletion
	SignatureRewrites     []SignatureRewrite
	ShallowWrappers       []ShallowWrapper
	FunctionDeletions     []FunctionDeletion
	HeapToStackConversions []HeapToStackConversion
}

func NewQueue() *Queue { return &Queue{} }

func (q *Queue) ReplaceUses(from, to *ir.Value) {
	q.UseReplacements = append(q.UseReplacements, UseReplacement{From: from, To: to})
}

func (q *Queue) InsertUnreachable(b *ir.BasicBlock, after ir.Instruction) {
	q.UnreachableInsertions = append(q.UnreachableInsertions, UnreachableInsertion{Block: b, After: after})
}

func (q *Queue) FoldBranch(br *ir.BrTerm, cond bool) {
	dead := br.FalseBB
	if !cond {
		dead = br.TrueBB
	}
	q.BranchFolds = append(q.BranchFolds, BranchFold{Br: br, Cond: cond, DeadBlock: dead})
}

func (q *Queue) DeleteDeadInstruction(inst ir.Instruction) {
	q.DeadInstrDeletions = append(q.DeadInstrDeletions, DeadInstrDeletion{Inst: inst})
}

func (q *Queue) DeleteBlock(b *ir.BasicBlock) {
	q.BlockDeletions = append(q.BlockDeletions, BlockDeletion{Block: b})
}

func (q *Queue) RewriteSignature(sr SignatureRewrite) {
	q.SignatureRewrites = append(q.SignatureRewrites, sr)
}

func (q *Queue) RequestShallowWrapper(fn *ir.Function) {
	q.ShallowWrappers = append(q.ShallowWrappers, ShallowWrapper{Fn: fn})
}

func (q *Queue) DeleteFunction(fn *ir.Function) {
	q.FunctionDeletions = append(q.FunctionDeletions, FunctionDeletion{Fn: fn})
}

func (q *Queue) RequestHeapToStack(call ir.CallLike, size int64, free ir.CallLike) {
	q.HeapToStackConversions = append(q.HeapToStackConversions, HeapToStackConversion{Call: call, Size: size, Free: free})
}

// cgUpdater is the narrow slice of callgraph.Graph the replay needs,
// declared locally so this package doesn't have to import callgraph just
// for a concrete type (spec §4.6 "a call-graph updater interface is
// notified").
type cgUpdater interface {
	ReplaceFunctionWith(old, replacement *ir.Function)
	RemoveFunction(fn *ir.Function)
	ReanalyzeFunction(fn *ir.Function)
	CallSitesOf(fn *ir.Function) []ir.CallLike
}

// Replay applies every queued edit to m, in the fixed order spec §4.2 step
// 5 specifies, notifying cg of each structural change as it happens.
func (q *Queue) Replay(m *ir.Module, cg cgUpdater) {
	for _, u := range q.UseReplacements {
		ir.ReplaceAllUsesWith(u.From, u.To)
	}
	for _, u := range q.UnreachableInsertions {
		applyUnreachableInsertion(u)
	}
	for _, f := range q.BranchFolds {
		applyBranchFold(f)
	}
	for _, d := range q.DeadInstrDeletions {
		applyDeadInstrDeletion(d)
	}
	for _, d := range q.BlockDeletions {
		applyBlockDeletion(d)
	}
	for _, h := range q.HeapToStackConversions {
		applyHeapToStackConversion(h)
	}
	for _, sr := range q.SignatureRewrites {
		applySignatureRewrite(m, sr, cg)
	}
	for _, w := range q.ShallowWrappers {
		applyShallowWrapper(m, w, cg)
	}
	for _, d := range q.FunctionDeletions {
		m.RemoveFunction(d.Fn)
		if cg != nil {
			cg.RemoveFunction(d.Fn)
		}
	}
}

func applyUnreachableInsertion(u UnreachableInsertion) {
	inst := &ir.UnreachableInst{}
	insertAfter(u.Block, u.After, inst)
}

// insertAfter splices inst into b's straight-line instruction list right
// after `after` (or at the front if after is nil), without disturbing the
// block's terminator.
func insertAfter(b *ir.BasicBlock, after ir.Instruction, inst ir.Instruction) {
	idx := len(b.Instructions)
	if after != nil {
		for i, existing := range b.Instructions {
			if existing == after {
				idx = i + 1
				break
			}
		}
	} else {
		idx = 0
	}
	inst.SetBlock(b)
	b.Instructions = append(b.Instructions, nil)
	copy(b.Instructions[idx+1:], b.Instructions[idx:])
	b.Instructions[idx] = inst
}

// applyBranchFold rewrites a two-way branch proven constant into an
// unconditional jump to the live successor; the dead successor's incoming
// phi operand from this block is dropped (spec §4.6 "incoming phi operands
// in successors are removed").
func applyBranchFold(f BranchFold) {
	blk := f.Br.Block()
	live := f.Br.TrueBB
	if !f.Cond {
		live = f.Br.FalseBB
	}
	removeIncomingFrom(f.DeadBlock, blk)
	blk.SetTerminator(&ir.JumpTerm{Target: live})
}

func removeIncomingFrom(b *ir.BasicBlock, pred *ir.BasicBlock) {
	for _, inst := range b.Instructions {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			continue
		}
		for i, incBlock := range phi.Incoming {
			if incBlock == pred {
				phi.Incoming = append(phi.Incoming[:i], phi.Incoming[i+1:]...)
				phi.Vals = append(phi.Vals[:i], phi.Vals[i+1:]...)
				break
			}
		}
	}
}

func applyDeadInstrDeletion(d DeadInstrDeletion) {
	b := d.Inst.Block()
	if b == nil {
		return
	}
	if b.Term == d.Inst {
		b.Term = nil
		return
	}
	for i, existing := range b.Instructions {
		if existing == d.Inst {
			b.Instructions = append(b.Instructions[:i], b.Instructions[i+1:]...)
			return
		}
	}
}

// applyBlockDeletion detaches a dead block: rewrites its terminator to
// nothing, unlinks it from every successor's predecessor list (dropping
// phi operands along the way), and marks it Detached (spec §4.6 "dead basic
// blocks are detached in batch").
func applyBlockDeletion(d BlockDeletion) {
	b := d.Block
	if b.Term != nil {
		for _, s := range b.Term.Successors() {
			if s != nil {
				removeIncomingFrom(s, b)
			}
		}
	}
	b.Term = nil
	b.Instructions = nil
	b.Detached = true
	fn := b.Func
	for i, cand := range fn.Blocks {
		if cand == b {
			fn.Blocks = append(fn.Blocks[:i], fn.Blocks[i+1:]...)
			break
		}
	}
}

// applyHeapToStackConversion rewrites call in place into a stack allocation
// and drops its matched free call, if any (spec §4.4 heap-to-stack
// manifest).
func applyHeapToStackConversion(h HeapToStackConversion) {
	ir.ConvertMallocToAlloca(h.Call, h.Size)
	if h.Free != nil {
		applyDeadInstrDeletion(DeadInstrDeletion{Inst: h.Free})
	}
}

// applySignatureRewrite constructs a new function with the flattened
// argument list, splices the old body in, and repairs call sites (spec
// §4.6 "Signature rewrites").
func applySignatureRewrite(m *ir.Module, sr SignatureRewrite, cg cgUpdater) {
	old := sr.Fn
	newParams := make([]*ir.Param, 0, len(old.Params)-1+len(sr.ReplacementTypes))
	for i, p := range old.Params {
		if i == sr.OldArgIdx {
			for j, t := range sr.ReplacementTypes {
				newParams = append(newParams, &ir.Param{Name: p.Name + ".flat" + strconv.Itoa(j), Ty: t})
			}
			continue
		}
		newParams = append(newParams, &ir.Param{Name: p.Name, Ty: p.Ty})
	}
	newFn := ir.NewFunction(old.Name, newParams, old.ReturnType)
	newFn.Blocks = old.Blocks
	newFn.Entry = old.Entry
	newFn.Attrs = old.Attrs
	newFn.RetAttrs = old.RetAttrs
	newFn.Internal = old.Internal
	newFn.Variadic = old.Variadic

	if sr.CalleeRepair != nil {
		flatVals := make([]*ir.Value, len(sr.ReplacementTypes))
		base := 0
		for i := range old.Params {
			if i == sr.OldArgIdx {
				for j := range sr.ReplacementTypes {
					flatVals[j] = newFn.Params[base+j].Val
				}
				break
			}
			base++
		}
		sr.CalleeRepair(newFn, flatVals)
	}

	if sr.CallSiteRepair != nil && cg != nil {
		for _, site := range cg.CallSitesOf(old) {
			oldArgs := site.Args()
			if sr.OldArgIdx >= len(oldArgs) {
				continue
			}
			newArgs := sr.CallSiteRepair(site, oldArgs[sr.OldArgIdx])
			ir.SpliceCallArgs(site, sr.OldArgIdx, newArgs)
		}
	}

	m.ReplaceFunction(old, newFn)
	if cg != nil {
		cg.ReplaceFunctionWith(old, newFn)
		cg.ReanalyzeFunction(newFn)
	}
}

// applyShallowWrapper synthesizes an identically-typed wrapper that
// tail-calls fn (now renamed and demoted to internal linkage), per spec
// §4.6 "Shallow wrappers".
func applyShallowWrapper(m *ir.Module, w ShallowWrapper, cg cgUpdater) {
	fn := w.Fn
	originalName := fn.Name
	fn.Name = originalName + ".impl"
	fn.Internal = true

	paramTypes := make([]*ir.Param, len(fn.Params))
	for i, p := range fn.Params {
		paramTypes[i] = &ir.Param{Name: p.Name, Ty: p.Ty}
	}
	wrapper := ir.NewFunction(originalName, paramTypes, fn.ReturnType)
	entry := wrapper.NewBlock("entry")
	b := ir.NewBuilder(wrapper, entry)
	args := make([]*ir.Value, len(wrapper.Params))
	for i, p := range wrapper.Params {
		args[i] = p.Val
	}
	var retTy ir.Type = fn.ReturnType
	if _, void := retTy.(*ir.VoidType); void {
		b.Call("", nil, fn, fn.Name, args)
		b.Ret(nil)
	} else {
		r := b.Call(".wret", retTy, fn, fn.Name, args)
		b.Ret(r)
	}

	m.AddFunction(wrapper)
	if cg != nil {
		cg.ReplaceFunctionWith(fn, wrapper)
	}
}

