package attr

import (
	"fmt"

	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/lattice"
	"attributor/internal/position"
)

// LivenessFunction is the function-form liveness record of spec §4.4
// "liveness (is-dead)": seeded with the entry block alive, it drains a
// worklist of instructions, marking successor blocks alive unless a call's
// callee is assumed no-return or a branch's condition is known constant
// (which prunes the non-taken edge).
type LivenessFunction struct {
	fn    *ir.Function
	pos   position.Position
	state *lattice.Liveness
}

func NewLivenessFunction(fn *ir.Function) *LivenessFunction {
	return &LivenessFunction{fn: fn, pos: position.ForFunction(fn), state: lattice.NewLiveness(fn.Entry)}
}

func (l *LivenessFunction) Kind() string               { return string(KindLivenessFunction) }
func (l *LivenessFunction) Position() position.Position { return l.pos }
func (l *LivenessFunction) Initialize(eng *engine.Engine) {}

func (l *LivenessFunction) Update(eng *engine.Engine) engine.ChangeStatus {
	changed := engine.Unchanged
	for l.state.HasWork() {
		inst := l.state.Pop()
		blk := inst.Block()
		if blk == nil {
			continue
		}
		if l.state.MarkBlockAlive(blk) {
			changed = engine.Changed
		}
		insts := blk.AllInstructions()
		idx := -1
		for i, cand := range insts {
			if cand == inst {
				idx = i
				break
			}
		}
		if idx >= 0 && idx+1 < len(insts) {
			if call, ok := inst.(ir.CallLike); ok && l.calleeIsNoReturn(eng, call) {
				l.state.MarkDeadEnd(inst)
				continue
			}
			l.state.Enqueue(insts[idx+1])
			continue
		}

		switch term := blk.Term.(type) {
		case *ir.RetTerm, nil:
			// end of path
		case *ir.JumpTerm:
			if len(term.Target.Instructions) > 0 {
				l.state.Enqueue(term.Target.Instructions[0])
			} else if term.Target.Term != nil {
				l.state.Enqueue(term.Target.Term)
			}
		case *ir.BrTerm:
			if cond, known := l.constBoolOperand(eng, term.Cond); known {
				target := term.FalseBB
				if cond {
					target = term.TrueBB
				}
				l.enqueueBlockStart(target)
			} else {
				l.enqueueBlockStart(term.TrueBB)
				l.enqueueBlockStart(term.FalseBB)
			}
		case *ir.InvokeInst:
			if !l.calleeIsNoReturn(eng, term) {
				l.enqueueBlockStart(term.NormalBB)
			} else {
				l.state.MarkDeadEnd(term)
			}
		}
	}
	return changed
}

// calleeIsNoReturn consults call's callee's no-return record, the same
// Optional dependency the InvokeInst terminator case and the generic
// mid-block CallLike case both need.
func (l *LivenessFunction) calleeIsNoReturn(eng *engine.Engine, call ir.CallLike) bool {
	callee := call.CalleeFunc()
	if callee == nil {
		return false
	}
	rec := getOrCreateBool(eng, KindNoReturn, position.ForFunction(callee), engine.Optional, func() *BoolFn {
		return NewNoReturn(position.ForFunction(callee), callee)
	})
	return rec.Holds()
}

func (l *LivenessFunction) enqueueBlockStart(b *ir.BasicBlock) {
	if b == nil {
		return
	}
	if len(b.Instructions) > 0 {
		l.state.Enqueue(b.Instructions[0])
	} else if b.Term != nil {
		l.state.Enqueue(b.Term)
	}
}

// constBoolOperand consults value-simplify at cond's position to see if the
// branch condition is already known constant.
func (l *LivenessFunction) constBoolOperand(eng *engine.Engine, cond *ir.Value) (bool, bool) {
	pos, ok := positionOfValue(cond)
	if !ok {
		return false, false
	}
	vs := getOrCreateValueSimplify(eng, pos, cond)
	if v, ok := vs.Simplified(); ok {
		if c, ok := v.Def.(*ir.ConstantInst); ok {
			return c.Lit != 0, true
		}
	}
	return false, false
}

func (l *LivenessFunction) Manifest(eng *engine.Engine) {
	for _, b := range l.fn.Blocks {
		if !l.state.IsBlockAlive(b) {
			eng.Edits.DeleteBlock(b)
		}
	}
	for deadEnd := range deadEndsOf(l.state) {
		switch inst := deadEnd.(type) {
		case *ir.InvokeInst:
			eng.Edits.InsertUnreachable(inst.NormalBB, nil)
		default:
			l.manifestDeadEndTail(eng, inst)
		}
	}
}

// manifestDeadEndTail handles a dead end marked on a non-terminator
// instruction: a mid-block call proven to reach a no-return callee still
// executes itself, but everything physically after it in the same block —
// remaining straight-line instructions and the terminator — never runs.
// An unreachable marker is spliced in right after the call, and the dead
// tail (including the now-dead terminator) is queued for deletion.
func (l *LivenessFunction) manifestDeadEndTail(eng *engine.Engine, inst ir.Instruction) {
	blk := inst.Block()
	if blk == nil || !l.state.IsBlockAlive(blk) {
		return
	}
	idx := -1
	for i, cand := range blk.Instructions {
		if cand == inst {
			idx = i
			break
		}
	}
	if idx < 0 {
		return
	}
	eng.Edits.InsertUnreachable(blk, inst)
	for _, tail := range blk.Instructions[idx+1:] {
		eng.Edits.DeleteDeadInstruction(tail)
	}
	if blk.Term != nil {
		eng.Edits.DeleteDeadInstruction(blk.Term)
	}
}

// deadEndsOf is a tiny accessor shim: Liveness keeps its dead-end set
// unexported, so record manifest only needs to range over the ones this
// package itself marked, whether on an InvokeInst terminator or a mid-block
// CallLike instruction.
func deadEndsOf(l *lattice.Liveness) map[ir.Instruction]bool {
	out := map[ir.Instruction]bool{}
	for _, b := range l.AliveBlocks() {
		for _, inst := range b.AllInstructions() {
			if l.IsDeadEnd(inst) {
				out[inst] = true
			}
		}
	}
	return out
}

func (l *LivenessFunction) IsValidState() bool           { return l.state.IsValidState() }
func (l *LivenessFunction) IsAtFixpoint() bool           { return l.state.IsAtFixpoint() && !l.state.HasWork() }
func (l *LivenessFunction) IndicatePessimisticFixpoint() { l.state.IndicatePessimisticFixpoint() }
func (l *LivenessFunction) IndicateOptimisticFixpoint()  { l.state.IndicateOptimisticFixpoint() }
func (l *LivenessFunction) String() string               { return fmt.Sprintf("liveness@fn(@%s)", l.fn.Name) }

func (l *LivenessFunction) IsBlockAlive(b *ir.BasicBlock) bool { return l.state.IsBlockAlive(b) }

// LivenessValue is the value-form liveness record: a side-effect-free value
// with no surviving users is dead and can be replaced with an undef token
// (spec §4.4 "liveness (is-dead)", value form).
type LivenessValue struct {
	val   *ir.Value
	pos   position.Position
	dead  bool
	fixed bool
}

func NewLivenessValue(v *ir.Value) *LivenessValue {
	pos, _ := positionOfValue(v)
	return &LivenessValue{val: v, pos: pos}
}

func (l *LivenessValue) Kind() string               { return string(KindLivenessValue) }
func (l *LivenessValue) Position() position.Position { return l.pos }
func (l *LivenessValue) Initialize(eng *engine.Engine) {}
func (l *LivenessValue) Update(eng *engine.Engine) engine.ChangeStatus {
	if isSideEffectFree(l.val.Def) && len(l.val.Uses) == 0 {
		if !l.dead {
			l.dead = true
			l.fixed = true
			return engine.Changed
		}
	} else {
		l.fixed = true
	}
	return engine.Unchanged
}
func (l *LivenessValue) Manifest(eng *engine.Engine) {
	if l.dead {
		eng.Edits.DeleteDeadInstruction(l.val.Def)
	}
}
func (l *LivenessValue) IsValidState() bool           { return true }
func (l *LivenessValue) IsAtFixpoint() bool           { return l.fixed }
func (l *LivenessValue) IndicatePessimisticFixpoint() { l.fixed = true; l.dead = false }
func (l *LivenessValue) IndicateOptimisticFixpoint()  { l.fixed = true }
func (l *LivenessValue) String() string               { return fmt.Sprintf("liveness@%s", l.pos.String()) }

func isSideEffectFree(inst ir.Instruction) bool {
	switch inst.(type) {
	case *ir.StoreInst, *ir.CallInst, *ir.InvokeInst, *ir.UnreachableInst:
		return false
	default:
		return inst != nil
	}
}
