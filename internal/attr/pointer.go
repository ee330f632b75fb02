package attr

import (
	"fmt"

	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/lattice"
	"attributor/internal/position"
)

// NewNonNull builds the non-null BoolFn (spec §4.4 "non-null"): at a Float
// position it holds if the value is an alloca result, or if the
// must-be-executed context after its definition dereferences it (a load or
// store through the pointer implies it was non-null); at a CallSiteArgument
// position it applies that same Float rule to the passed value; at
// Argument/Returned/CallSiteReturned positions it defers to the generic
// combinators of spec §4.3.
func NewNonNull(pos position.Position, fn *ir.Function) *BoolFn {
	return newBoolFn(KindNonNull, pos, true, updateNonNull, nil)
}

func updateNonNull(b *BoolFn, eng *engine.Engine) engine.ChangeStatus {
	var holds, resolved bool
	switch b.pos.Kind() {
	case position.Float:
		holds, resolved = nonNullFloat(eng, b.pos)
	case position.Argument:
		fn := b.pos.EnclosingFunction()
		holds, resolved = ArgumentFromCallSiteArgumentsBool(eng, fn, b.pos.ArgIdx(), eng.CG.CallSitesOf(fn), KindNonNull, func(p position.Position) *BoolFn { return NewNonNull(p, fn) })
	case position.Returned:
		fn := b.pos.EnclosingFunction()
		holds, resolved = ReturnedFromReturnedValuesBool(eng, fn, KindNonNull, func(p position.Position) *BoolFn { return NewNonNull(p, nil) })
	case position.CallSiteReturned:
		holds, resolved = CallSiteReturnedFromReturnedBool(eng, b.pos.Call(), KindNonNull, func(p position.Position) *BoolFn { return NewNonNull(p, nil) })
	case position.CallSiteArgument:
		holds, resolved = nonNullFloat(eng, b.pos)
	default:
		holds, resolved = true, true
	}
	if !resolved {
		b.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	if !holds {
		b.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	changed := !b.state.IsAtFixpoint()
	b.state.IndicateOptimisticFixpoint()
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}

func nonNullFloat(eng *engine.Engine, pos position.Position) (bool, bool) {
	val := pos.AssociatedValue()
	if val == nil {
		return false, false
	}
	if alloca, ok := val.Def.(*ir.AllocaInst); ok && alloca != nil {
		return true, true
	}
	mec := eng.Cache.MustBeExecutedContextExplorer(funcOfValue(val))
	if mec != nil {
		holds := MustExecuteImplies(mec, val.Def, func(inst ir.Instruction) bool {
			switch d := inst.(type) {
			case *ir.LoadInst:
				return d.Address == val
			case *ir.StoreInst:
				return d.Address == val
			}
			return false
		})
		if holds {
			return true, true
		}
	}
	return false, true
}

func funcOfValue(v *ir.Value) *ir.Function {
	if v.IsParam {
		return v.ParamFunc
	}
	if v.Def != nil && v.Def.Block() != nil {
		return v.Def.Block().Func
	}
	return nil
}

// NewDereferenceable builds the Deref-state record of spec §4.4
// "dereferenceable": the known-minimum byte count is the static size of an
// alloca with no count whose allocated type is an integer, a pointer, or an
// array of either. Load/store widths and callee positions are not
// consulted, so nothing else grows the known minimum and the assumed
// maximum is never narrowed.
type Dereferenceable struct {
	pos   position.Position
	state *lattice.Deref
}

func NewDereferenceable(pos position.Position) *Dereferenceable {
	return &Dereferenceable{pos: pos, state: lattice.NewDeref()}
}

func (d *Dereferenceable) Kind() string               { return string(KindDereferenceable) }
func (d *Dereferenceable) Position() position.Position { return d.pos }
func (d *Dereferenceable) Initialize(eng *engine.Engine) {}
func (d *Dereferenceable) Update(eng *engine.Engine) engine.ChangeStatus {
	before := d.state.KnownMinimum()
	val := d.pos.AssociatedValue()
	if val == nil {
		d.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	if alloca, ok := val.Def.(*ir.AllocaInst); ok {
		if sz, ok := allocaStaticSize(eng, alloca); ok {
			d.state.TakeKnownMinimum(sz)
		}
	}
	return boolOf(d.state.KnownMinimum() != before)
}
func (d *Dereferenceable) Manifest(eng *engine.Engine) {
	if n := d.state.KnownMinimum(); n > 0 {
		if attrs := d.pos.OwnAttrs(); attrs != nil {
			attrs.Add(ir.AttrDereferenceable, n)
		}
	}
}
func (d *Dereferenceable) IsValidState() bool           { return d.state.IsValidState() }
func (d *Dereferenceable) IsAtFixpoint() bool           { return d.state.IsAtFixpoint() }
func (d *Dereferenceable) IndicatePessimisticFixpoint() { d.state.IndicatePessimisticFixpoint() }
func (d *Dereferenceable) IndicateOptimisticFixpoint()  { d.state.IndicateOptimisticFixpoint() }
func (d *Dereferenceable) String() string               { return fmt.Sprintf("dereferenceable@%s", d.pos.String()) }

func allocaStaticSize(eng *engine.Engine, alloca *ir.AllocaInst) (int64, bool) {
	if alloca.Count != nil {
		return 0, false
	}
	tii := eng.Cache.TargetIRInfo()
	n, elem := int64(1), alloca.AllocTy
	if arr, ok := elem.(*ir.ArrayType); ok {
		n, elem = arr.Len, arr.Elem
	}
	switch ty := elem.(type) {
	case *ir.IntType:
		return n * int64((ty.Bits+7)/8), true
	case *ir.PointerType:
		return n * tii.PointerSizeBytes(), true
	}
	return 0, false
}

func boolOf(changed bool) engine.ChangeStatus {
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}

// NewAlignment mirrors Dereferenceable but tracks byte alignment, seeded
// from the pointer's natural alignment when the associated value is an
// alloca.
type Alignment struct {
	pos   position.Position
	state *lattice.Deref
}

func NewAlignment(pos position.Position) *Alignment {
	return &Alignment{pos: pos, state: lattice.NewDeref()}
}

func (a *Alignment) Kind() string               { return string(KindAlignment) }
func (a *Alignment) Position() position.Position { return a.pos }
func (a *Alignment) Initialize(eng *engine.Engine) {}
func (a *Alignment) Update(eng *engine.Engine) engine.ChangeStatus {
	before := a.state.KnownMinimum()
	val := a.pos.AssociatedValue()
	if val == nil {
		a.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	if _, ok := val.Def.(*ir.AllocaInst); ok {
		a.state.TakeKnownMinimum(eng.Cache.TargetIRInfo().PointerAlignBytes())
	}
	return boolOf(a.state.KnownMinimum() != before)
}
func (a *Alignment) Manifest(eng *engine.Engine) {
	if n := a.state.KnownMinimum(); n > 0 {
		if attrs := a.pos.OwnAttrs(); attrs != nil {
			attrs.Add(ir.AttrAlign, n)
		}
	}
}
func (a *Alignment) IsValidState() bool           { return a.state.IsValidState() }
func (a *Alignment) IsAtFixpoint() bool           { return a.state.IsAtFixpoint() }
func (a *Alignment) IndicatePessimisticFixpoint() { a.state.IndicatePessimisticFixpoint() }
func (a *Alignment) IndicateOptimisticFixpoint()  { a.state.IndicateOptimisticFixpoint() }
func (a *Alignment) String() string               { return fmt.Sprintf("alignment@%s", a.pos.String()) }

// NewNoAlias is boolean, seeded optimistic; it holds at a pointer-argument
// position when the caller never passes an alias of the pointer in
// elsewhere (approximated via the module's alias analysis: a parameter with
// no observed aliasing operation), and propagates through the generic
// combinators at Returned/CallSiteReturned positions.
func NewNoAlias(pos position.Position, fn *ir.Function) *BoolFn {
	return newBoolFn(KindNoAlias, pos, true, updateNoAlias, nil)
}

func updateNoAlias(b *BoolFn, eng *engine.Engine) engine.ChangeStatus {
	switch b.pos.Kind() {
	case position.Argument:
		fn := b.pos.EnclosingFunction()
		aa := eng.Cache.AliasAnalysis(fn)
		val := b.pos.AssociatedValue()
		for _, blk := range fn.Blocks {
			for _, inst := range blk.AllInstructions() {
				for _, op := range inst.Operands() {
					if op == val {
						continue
					}
					if aa != nil && aa.MayAlias(val, op) {
						b.state.IndicatePessimisticFixpoint()
						return engine.Changed
					}
				}
			}
		}
	case position.Returned:
		fn := b.pos.EnclosingFunction()
		holds, resolved := ReturnedFromReturnedValuesBool(eng, fn, KindNoAlias, func(p position.Position) *BoolFn { return NewNoAlias(p, nil) })
		if !resolved || !holds {
			b.state.IndicatePessimisticFixpoint()
			return engine.Changed
		}
	case position.CallSiteReturned:
		holds, resolved := CallSiteReturnedFromReturnedBool(eng, b.pos.Call(), KindNoAlias, func(p position.Position) *BoolFn { return NewNoAlias(p, nil) })
		if !resolved || !holds {
			b.state.IndicatePessimisticFixpoint()
			return engine.Changed
		}
	}
	changed := !b.state.IsAtFixpoint()
	b.state.IndicateOptimisticFixpoint()
	if changed {
		return engine.Changed
	}
	return engine.Unchanged
}

// NoCapture bits (spec §4.4 "no-capture"): a pointer argument is
// non-captured along a dimension unless some instruction stores it into
// memory, casts it to an integer, or lets it escape through the return
// value.
const (
	NotCapturedInMem uint64 = 1 << iota
	NotCapturedInInt
	NotCapturedInRet
)

type NoCapture struct {
	pos   position.Position
	state *lattice.BitSet
}

func NewNoCapture(pos position.Position) *NoCapture {
	full := NotCapturedInMem | NotCapturedInInt | NotCapturedInRet
	return &NoCapture{pos: pos, state: lattice.NewBitSet(full)}
}

func (n *NoCapture) Kind() string               { return string(KindNoCapture) }
func (n *NoCapture) Position() position.Position { return n.pos }
func (n *NoCapture) Initialize(eng *engine.Engine) {}
func (n *NoCapture) Update(eng *engine.Engine) engine.ChangeStatus {
	before := n.state.Assumed()
	val := n.pos.AssociatedValue()
	fn := n.pos.EnclosingFunction()
	if val == nil || fn == nil {
		n.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	for _, blk := range fn.Blocks {
		for _, inst := range blk.AllInstructions() {
			switch d := inst.(type) {
			case *ir.StoreInst:
				if d.Val == val {
					n.state.IntersectAssumed(^NotCapturedInMem)
				}
			case *ir.CastInst:
				if d.Val == val && d.Op == "ptrtoint" {
					n.state.IntersectAssumed(^NotCapturedInInt)
				}
			}
		}
		if ret, ok := blk.Term.(*ir.RetTerm); ok && ret.Val == val {
			n.state.IntersectAssumed(^NotCapturedInRet)
		}
	}
	return boolOf(n.state.Assumed() != before)
}
func (n *NoCapture) Manifest(eng *engine.Engine) {
	if n.state.Assumed() == (NotCapturedInMem|NotCapturedInInt|NotCapturedInRet) {
		if attrs := n.pos.OwnAttrs(); attrs != nil {
			attrs.Add(ir.AttrNoCapture, 0)
		}
	}
}
func (n *NoCapture) IsValidState() bool           { return n.state.IsValidState() }
func (n *NoCapture) IsAtFixpoint() bool           { return n.state.IsAtFixpoint() }
func (n *NoCapture) IndicatePessimisticFixpoint() { n.state.IndicatePessimisticFixpoint() }
func (n *NoCapture) IndicateOptimisticFixpoint()  { n.state.IndicateOptimisticFixpoint() }
func (n *NoCapture) String() string               { return fmt.Sprintf("no-capture@%s", n.pos.String()) }
