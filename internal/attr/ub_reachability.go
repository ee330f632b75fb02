package attr

import (
	"fmt"

	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/position"
)

// UndefinedBehavior is spec §4.4's "undefined-behavior": a per-function set
// of instructions proven to be UB, grown (never shrunk) as loads/stores
// through a value-simplified-to-null pointer are found. Address 0 is
// treated as never a valid target — this IR has no "address space that
// defines address 0" concept.
type UndefinedBehavior struct {
	fn    *ir.Function
	pos   position.Position
	known map[ir.Instruction]bool
	fixed bool
}

func NewUndefinedBehavior(fn *ir.Function) *UndefinedBehavior {
	return &UndefinedBehavior{fn: fn, pos: position.ForFunction(fn), known: map[ir.Instruction]bool{}}
}

func (u *UndefinedBehavior) Kind() string               { return string(KindUndefinedBehavior) }
func (u *UndefinedBehavior) Position() position.Position { return u.pos }
func (u *UndefinedBehavior) Initialize(eng *engine.Engine) {}

func (u *UndefinedBehavior) Update(eng *engine.Engine) engine.ChangeStatus {
	changed := false
	for _, blk := range u.fn.Blocks {
		for _, inst := range blk.AllInstructions() {
			if u.known[inst] {
				continue
			}
			var addr *ir.Value
			switch d := inst.(type) {
			case *ir.LoadInst:
				addr = d.Address
			case *ir.StoreInst:
				addr = d.Address
			}
			if addr == nil {
				continue
			}
			if isNullPointer(eng, addr) {
				u.known[inst] = true
				changed = true
			}
		}
		if br, ok := blk.Term.(*ir.BrTerm); ok && !u.known[br] {
			if isUndefCondition(eng, br.Cond) {
				u.known[br] = true
				changed = true
			}
		}
	}
	return boolOf(changed)
}

// isNullPointer consults value-simplify at addr's position, reporting true
// only when it has simplified all the way to the literal-zero constant.
func isNullPointer(eng *engine.Engine, addr *ir.Value) bool {
	pos, ok := positionOfValue(addr)
	if !ok {
		return false
	}
	vs := getOrCreateValueSimplify(eng, pos, addr)
	v, ok := vs.Simplified()
	if !ok {
		return false
	}
	c, ok := v.Def.(*ir.ConstantInst)
	return ok && c.Lit == 0
}

// isUndefCondition reports whether cond's value-simplify record has gone to
// pessimistic fixpoint with no resolved value at all — this catalogue's
// stand-in for "the condition is an LLVM undef", since this IR has no
// separate undef literal.
func isUndefCondition(eng *engine.Engine, cond *ir.Value) bool {
	if cond == nil {
		return false
	}
	pos, ok := positionOfValue(cond)
	if !ok {
		return false
	}
	vs := getOrCreateValueSimplify(eng, pos, cond)
	_, resolved := vs.Simplified()
	return vs.IsAtFixpoint() && !resolved
}

func (u *UndefinedBehavior) Manifest(eng *engine.Engine) {
	for inst := range u.known {
		eng.Edits.InsertUnreachable(instBlock(inst), instBefore(inst))
	}
}

// instBlock/instBefore locate the anchor the unreachable insertion needs:
// the instruction's own block, and the preceding instruction it must
// follow (nil means "insert at block start", i.e. inst is first).
func instBlock(inst ir.Instruction) *ir.BasicBlock { return inst.Block() }
func instBefore(inst ir.Instruction) ir.Instruction {
	blk := inst.Block()
	if blk == nil {
		return nil
	}
	for i, cand := range blk.Instructions {
		if cand == inst {
			if i == 0 {
				return nil
			}
			return blk.Instructions[i-1]
		}
	}
	return nil
}

func (u *UndefinedBehavior) IsValidState() bool           { return true }
func (u *UndefinedBehavior) IsAtFixpoint() bool           { return u.fixed }
func (u *UndefinedBehavior) IndicatePessimisticFixpoint() { u.fixed = true }
func (u *UndefinedBehavior) IndicateOptimisticFixpoint()  { u.fixed = true }
func (u *UndefinedBehavior) String() string               { return fmt.Sprintf("undefined-behavior@fn(@%s)", u.fn.Name) }

// Reachability is spec §4.4's "reachability": explicitly a stub, kept only
// as an interface point other attributes could consult — it never resolves
// to anything but pessimistic.
type Reachability struct {
	pos position.Position
}

func NewReachability(pos position.Position) *Reachability { return &Reachability{pos: pos} }

func (r *Reachability) Kind() string                    { return string(KindReachability) }
func (r *Reachability) Position() position.Position      { return r.pos }
func (r *Reachability) Initialize(eng *engine.Engine)    {}
func (r *Reachability) Update(eng *engine.Engine) engine.ChangeStatus {
	return engine.Unchanged
}
func (r *Reachability) Manifest(eng *engine.Engine)      {}
func (r *Reachability) IsValidState() bool               { return true }
func (r *Reachability) IsAtFixpoint() bool               { return true }
func (r *Reachability) IndicatePessimisticFixpoint()      {}
func (r *Reachability) IndicateOptimisticFixpoint()       {}
func (r *Reachability) String() string                   { return fmt.Sprintf("reachability@%s", r.pos.String()) }
