package analysis

import "attributor/internal/ir"

// MustExecContext answers "is instruction b guaranteed to execute whenever
// instruction a does" by walking forward along must-execute edges: the
// straight-line successor instruction, or the single successor block when a
// block ends without a conditional branch. This is the explorer §4.3's
// FromMustBeExecutedContext combinator rides to hoist or lower a fact
// without inspecting the intervening straight-line code at all. Grounded on
// the forward single-block-at-a-time walk in the nilaway CFG preprocessor's
// restructureOnNoReturnCall, generalized from "does this call end the
// block" to "what must run next".
type MustExecContext struct {
	fn  *ir.Function
	dom *Dominators
}

func NewMustExecContext(fn *ir.Function, dom *Dominators) *MustExecContext {
	return &MustExecContext{fn: fn, dom: dom}
}

// MustExecuteAfter returns, in order, every instruction guaranteed to
// execute after a on any path that reaches a, stopping at the first
// terminator that is neither a jump nor an invoke (a conditional branch, a
// return, or an unwind). Calls inside a block are walked past; whether the
// callee returns is not checked.
func (m *MustExecContext) MustExecuteAfter(a ir.Instruction) []ir.Instruction {
	var out []ir.Instruction
	blk := a.Block()
	if blk == nil {
		return out
	}
	idx := indexOf(blk.Instructions, a)
	cur := blk
	pos := idx + 1
	for {
		if pos < len(cur.Instructions) {
			out = append(out, cur.Instructions[pos])
			pos++
			continue
		}
		// Reached the terminator's position: only a Jump's target or an
		// Invoke's normal destination is "must execute"; any other
		// terminator, including every Br, ends the walk.
		switch t := cur.Term.(type) {
		case *ir.JumpTerm:
			cur = t.Target
			pos = 0
		case *ir.InvokeInst:
			cur = t.NormalBB
			pos = 0
		default:
			return out
		}
	}
}

func indexOf(insts []ir.Instruction, target ir.Instruction) int {
	for i, inst := range insts {
		if inst == target {
			return i
		}
	}
	return -1
}

// Dominates reports whether a is guaranteed to execute before b by
// dominance (a coarser, block-level answer used when MustExecuteAfter's
// straight-line walk doesn't directly connect the two instructions).
func (m *MustExecContext) Dominates(a, b ir.Instruction) bool {
	if a.Block() == nil || b.Block() == nil {
		return false
	}
	return m.dom.Dominates(a.Block(), b.Block())
}
