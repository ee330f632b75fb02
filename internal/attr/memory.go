package attr

import (
	"fmt"

	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/lattice"
	"attributor/internal/position"
)

// Memory-behavior bits (spec §4.4 "memory-behavior"): a function is assumed
// NoReads/NoWrites until a load/store (or an unresolved/may-read-write
// callee) proves otherwise.
const (
	MemNoReads uint64 = 1 << iota
	MemNoWrites
)

type MemoryBehavior struct {
	pos   position.Position
	state *lattice.BitSet
}

func NewMemoryBehavior(pos position.Position) *MemoryBehavior {
	return &MemoryBehavior{pos: pos, state: lattice.NewBitSet(MemNoReads | MemNoWrites)}
}

func (m *MemoryBehavior) Kind() string               { return string(KindMemoryBehavior) }
func (m *MemoryBehavior) Position() position.Position { return m.pos }
func (m *MemoryBehavior) Initialize(eng *engine.Engine) {}
func (m *MemoryBehavior) Update(eng *engine.Engine) engine.ChangeStatus {
	before := m.state.Assumed()
	fn := m.pos.EnclosingFunction()
	if fn == nil {
		m.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	for _, blk := range fn.Blocks {
		for _, inst := range blk.AllInstructions() {
			switch inst.(type) {
			case *ir.LoadInst:
				m.state.IntersectAssumed(^MemNoReads)
			case *ir.StoreInst:
				m.state.IntersectAssumed(^MemNoWrites)
			case ir.CallLike:
				call := inst.(ir.CallLike)
				rec := getOrCreateMemoryBehavior(eng, call)
				if rec == nil {
					m.state.IntersectAssumed(^(MemNoReads | MemNoWrites))
					continue
				}
				m.state.IntersectAssumed(rec.state.Assumed() | ^(MemNoReads | MemNoWrites))
			}
		}
	}
	return boolOf(m.state.Assumed() != before)
}

func getOrCreateMemoryBehavior(eng *engine.Engine, call ir.CallLike) *MemoryBehavior {
	callee := call.CalleeFunc()
	if callee == nil {
		return nil
	}
	pos := position.ForFunction(callee)
	return eng.GetOrCreate(string(KindMemoryBehavior), pos, engine.Required, func() engine.Record {
		return NewMemoryBehavior(pos)
	}).(*MemoryBehavior)
}

func (m *MemoryBehavior) Manifest(eng *engine.Engine) {
	attrs := m.pos.OwnAttrs()
	if attrs == nil {
		return
	}
	switch m.state.Assumed() {
	case MemNoReads | MemNoWrites:
		attrs.Add(ir.AttrReadNone, 0)
	case MemNoWrites:
		attrs.Add(ir.AttrReadOnly, 0)
	case MemNoReads:
		attrs.Add(ir.AttrWriteOnly, 0)
	}
}
func (m *MemoryBehavior) IsValidState() bool           { return m.state.IsValidState() }
func (m *MemoryBehavior) IsAtFixpoint() bool           { return m.state.IsAtFixpoint() }
func (m *MemoryBehavior) IndicatePessimisticFixpoint() { m.state.IndicatePessimisticFixpoint() }
func (m *MemoryBehavior) IndicateOptimisticFixpoint()  { m.state.IndicateOptimisticFixpoint() }
func (m *MemoryBehavior) String() string               { return fmt.Sprintf("memory-behavior@%s", m.pos.String()) }

// Memory-location bits (spec §4.4 "memory-location"): one bit per origin
// class an access instruction's pointer operand can trace back to. Assumed
// starts empty (no location touched yet) and grows — through AddKnown,
// since every class ever observed is permanently true for this function —
// as accesses are classified.
const (
	MemLocationLocal uint64 = 1 << iota
	MemLocationConst
	MemLocationGlobalInternal
	MemLocationGlobalExternal
	MemLocationArgument
	MemLocationInaccessible
	MemLocationMalloced
	MemLocationUnknown
)

type MemoryLocation struct {
	pos   position.Position
	state *lattice.BitSet
}

func NewMemoryLocation(pos position.Position) *MemoryLocation {
	return &MemoryLocation{pos: pos, state: lattice.NewBitSet(0)}
}

func (m *MemoryLocation) Kind() string               { return string(KindMemoryLocation) }
func (m *MemoryLocation) Position() position.Position { return m.pos }
func (m *MemoryLocation) Initialize(eng *engine.Engine) {}
func (m *MemoryLocation) Update(eng *engine.Engine) engine.ChangeStatus {
	before := m.state.Known()
	fn := m.pos.EnclosingFunction()
	if fn == nil {
		m.state.IndicatePessimisticFixpoint()
		return engine.Changed
	}
	for _, blk := range fn.Blocks {
		for _, inst := range blk.AllInstructions() {
			var addr *ir.Value
			switch d := inst.(type) {
			case *ir.LoadInst:
				addr = d.Address
			case *ir.StoreInst:
				addr = d.Address
			case ir.CallLike:
				call := inst.(ir.CallLike)
				if callee := call.CalleeFunc(); callee != nil {
					rec := getOrCreateMemoryLocation(eng, callee)
					m.state.AddKnown(rec.state.Known())
				}
				continue
			default:
				continue
			}
			m.state.AddKnown(classifyOrigin(eng, fn, addr))
		}
	}
	return boolOf(m.state.Known() != before)
}

func getOrCreateMemoryLocation(eng *engine.Engine, fn *ir.Function) *MemoryLocation {
	pos := position.ForFunction(fn)
	return eng.GetOrCreate(string(KindMemoryLocation), pos, engine.Optional, func() engine.Record {
		return NewMemoryLocation(pos)
	}).(*MemoryLocation)
}

// classifyOrigin traces addr's pointer operand back to the coarse class
// spec §4.4 enumerates, defaulting to Unknown when tracing bottoms out
// somewhere that isn't recognizably local, argument-derived, or malloced.
func classifyOrigin(eng *engine.Engine, fn *ir.Function, addr *ir.Value) uint64 {
	if addr == nil {
		return MemLocationUnknown
	}
	if addr.IsParam {
		return MemLocationArgument
	}
	switch def := addr.Def.(type) {
	case *ir.AllocaInst:
		return MemLocationLocal
	case *ir.GEPInst:
		return classifyOrigin(eng, fn, def.Base)
	case *ir.CastInst:
		return classifyOrigin(eng, fn, def.Val)
	case *ir.CallInst:
		if def.Callee != nil {
			tli := eng.Cache.TargetLibraryInfo()
			if tli.IsMallocLike(def.CalleeName()) || tli.IsCallocLike(def.CalleeName()) {
				return MemLocationMalloced
			}
		}
	}
	return MemLocationUnknown
}

func (m *MemoryLocation) Manifest(eng *engine.Engine) {}
func (m *MemoryLocation) IsValidState() bool           { return m.state.IsValidState() }
func (m *MemoryLocation) IsAtFixpoint() bool           { return m.state.IsAtFixpoint() }
func (m *MemoryLocation) IndicatePessimisticFixpoint() { m.state.IndicatePessimisticFixpoint() }
func (m *MemoryLocation) IndicateOptimisticFixpoint()  { m.state.IndicateOptimisticFixpoint() }
func (m *MemoryLocation) String() string               { return fmt.Sprintf("memory-location@%s", m.pos.String()) }
