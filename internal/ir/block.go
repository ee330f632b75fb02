package ir

// BasicBlock is a maximal straight-line instruction sequence ending in a
// Terminator: a label, an instruction list, and predecessor/successor
// edges, with no target-specific LiveIn/LiveOut slots of its own —
// liveness here is computed and owned by the engine's liveness
// attribute (spec §4.4), not baked into the façade.
type BasicBlock struct {
	Label        string
	Func         *Function
	Instructions []Instruction
	Term         Terminator
	Preds        []*BasicBlock
	Succs        []*BasicBlock

	// Detached is set by the rewriter (spec §4.6) once a block has been
	// removed from its function's block list but before its memory is
	// dropped; kept so dangling references fail loudly rather than silently
	// operating on stale state.
	Detached bool
}

// Append adds an instruction to the block's straight-line body.
func (b *BasicBlock) Append(inst Instruction) {
	inst.SetBlock(b)
	b.Instructions = append(b.Instructions, inst)
}

// SetTerminator installs t as the block's terminator and recomputes the
// block's successor edges from it.
func (b *BasicBlock) SetTerminator(t Terminator) {
	t.SetBlock(b)
	b.Term = t
	b.relinkSuccessors()
}

func (b *BasicBlock) relinkSuccessors() {
	for _, s := range b.Succs {
		s.removePred(b)
	}
	b.Succs = nil
	if b.Term == nil {
		return
	}
	for _, s := range b.Term.Successors() {
		if s == nil {
			continue
		}
		b.Succs = append(b.Succs, s)
		s.addPred(b)
	}
}

func (b *BasicBlock) addPred(p *BasicBlock) {
	for _, e := range b.Preds {
		if e == p {
			return
		}
	}
	b.Preds = append(b.Preds, p)
}

func (b *BasicBlock) removePred(p *BasicBlock) {
	for i, e := range b.Preds {
		if e == p {
			b.Preds = append(b.Preds[:i], b.Preds[i+1:]...)
			return
		}
	}
}

// AllInstructions yields the straight-line instructions followed by the
// terminator, the iteration order spec §4.2's check-for-all-X helpers walk.
func (b *BasicBlock) AllInstructions() []Instruction {
	all := make([]Instruction, 0, len(b.Instructions)+1)
	all = append(all, b.Instructions...)
	if b.Term != nil {
		all = append(all, b.Term)
	}
	return all
}
