package analysis

import "attributor/internal/ir"

// Loop is one natural loop: a header dominating every block in the loop,
// discovered from a back edge n -> header where header dominates n.
type Loop struct {
	Header *ir.BasicBlock
	Blocks map[*ir.BasicBlock]bool
	// TripCountKnown and TripCount are set when the induction variable's
	// bound and step are both constant (will-return's unbounded-cycle
	// check, spec §4.4 "will-return").
	TripCountKnown bool
	TripCount      int64
}

// Loops is the per-function loop-nest summary.
type Loops struct {
	byHeader map[*ir.BasicBlock]*Loop
	all      []*Loop
}

// FindLoops discovers every natural loop in fn using dom to recognize back
// edges, then grows each loop backward from the back edge's source to its
// header along predecessor edges (standard natural-loop construction).
func FindLoops(fn *ir.Function, dom *Dominators) *Loops {
	ls := &Loops{byHeader: map[*ir.BasicBlock]*Loop{}}
	for _, b := range fn.Blocks {
		for _, succ := range b.Succs {
			if dom.Dominates(succ, b) {
				loop := ls.byHeader[succ]
				if loop == nil {
					loop = &Loop{Header: succ, Blocks: map[*ir.BasicBlock]bool{succ: true}}
					ls.byHeader[succ] = loop
					ls.all = append(ls.all, loop)
				}
				growLoop(loop, b)
			}
		}
	}
	for _, l := range ls.all {
		l.TripCountKnown, l.TripCount = recognizeConstantTripCount(l)
	}
	return ls
}

func growLoop(l *Loop, latch *ir.BasicBlock) {
	if l.Blocks[latch] {
		return
	}
	worklist := []*ir.BasicBlock{latch}
	for len(worklist) > 0 {
		b := worklist[len(worklist)-1]
		worklist = worklist[:len(worklist)-1]
		if l.Blocks[b] {
			continue
		}
		l.Blocks[b] = true
		worklist = append(worklist, b.Preds...)
	}
}

// recognizeConstantTripCount looks for the simplest affine-induction shape:
// a phi at the header with one incoming constant from outside the loop and
// one incoming BinaryInst "add by constant" from inside, compared against a
// constant bound by the header's terminator condition. Anything else
// reports unknown (spec §7 "missing analysis" degrades rather than errors).
func recognizeConstantTripCount(l *Loop) (bool, int64) {
	for _, inst := range l.Header.Instructions {
		phi, ok := inst.(*ir.PhiInst)
		if !ok {
			continue
		}
		var start, step *int64
		for j, incBlock := range phi.Incoming {
			v := phi.Vals[j]
			if c, ok := v.Def.(*ir.ConstantInst); ok && !l.Blocks[incBlock] {
				lit := c.Lit
				start = &lit
			}
			if bin, ok := v.Def.(*ir.BinaryInst); ok && l.Blocks[incBlock] && bin.Op == "add" {
				if c, ok := bin.Right.Def.(*ir.ConstantInst); ok {
					lit := c.Lit
					step = &lit
				}
			}
		}
		if start == nil || step == nil || *step == 0 {
			continue
		}
		brTerm, ok := l.Header.Term.(*ir.BrTerm)
		if !ok {
			continue
		}
		cond, ok := brTerm.Cond.Def.(*ir.ICmpInst)
		if !ok {
			continue
		}
		bound, ok := cond.Right.Def.(*ir.ConstantInst)
		if !ok {
			continue
		}
		count := (bound.Lit - *start) / *step
		if count >= 0 {
			return true, count
		}
	}
	return false, 0
}

func (ls *Loops) HeaderOf(b *ir.BasicBlock) *Loop { return ls.byHeader[b] }
func (ls *Loops) All() []*Loop                    { return ls.all }
