package engine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"attributor/internal/analysis"
	"attributor/internal/callgraph"
	"attributor/internal/config"
	"attributor/internal/engine"
	"attributor/internal/ir"
	"attributor/internal/lattice"
	"attributor/internal/position"
)

// boolRecord is a minimal test double standing in for a concrete attribute
// (spec §3.3): a boolean lattice state at a position, whose Update consults
// another record by name when present, exercising the engine's dependency
// tracking and invalidation cascade without needing the full attribute
// catalogue.
type boolRecord struct {
	kind     string
	pos      position.Position
	state    *lattice.Boolean
	dependsOn string // kind of another record at the same position to query, or ""
}

func newBoolRecord(kind string, pos position.Position, seed bool, dependsOn string) *boolRecord {
	return &boolRecord{kind: kind, pos: pos, state: lattice.NewBoolean(seed), dependsOn: dependsOn}
}

func (r *boolRecord) Kind() string               { return r.kind }
func (r *boolRecord) Position() position.Position { return r.pos }
func (r *boolRecord) Initialize(eng *engine.Engine) {}
func (r *boolRecord) Update(eng *engine.Engine) engine.ChangeStatus {
	before := r.state.Assumed()
	if r.dependsOn != "" {
		dep := eng.GetOrCreate(r.dependsOn, r.pos, engine.Required, func() engine.Record {
			return newBoolRecord(r.dependsOn, r.pos, true, "")
		}).(*boolRecord)
		if !dep.state.Assumed() {
			r.state.IntersectAssumed(false)
		}
		if dep.IsAtFixpoint() {
			r.state.IndicateOptimisticFixpoint()
		}
	} else {
		r.state.IndicateOptimisticFixpoint()
	}
	if r.state.Assumed() != before {
		return engine.Changed
	}
	return engine.Unchanged
}
func (r *boolRecord) Manifest(eng *engine.Engine)       {}
func (r *boolRecord) IsValidState() bool                { return r.state.IsValidState() }
func (r *boolRecord) IsAtFixpoint() bool                { return r.state.IsAtFixpoint() }
func (r *boolRecord) IndicatePessimisticFixpoint()      { r.state.IndicatePessimisticFixpoint() }
func (r *boolRecord) IndicateOptimisticFixpoint()       { r.state.IndicateOptimisticFixpoint() }
func (r *boolRecord) String() string                    { return r.kind }

func newTestEngine(t *testing.T) (*engine.Engine, *ir.Function) {
	t.Helper()
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	b := ir.NewBuilder(f, entry)
	c := b.Constant("%c", ir.I32, 1)
	b.Ret(c)

	m := ir.NewModule("test")
	m.AddFunction(f)
	cache := analysis.NewCache(m)
	cg := callgraph.NewGraph()
	cg.Initialize(m)
	return engine.New(m, cache, cg, config.Default()), f
}

func TestGetOrCreateDeduplicates(t *testing.T) {
	eng, f := newTestEngine(t)
	pos := position.ForFunction(f)

	r1 := eng.GetOrCreate("demo", pos, engine.Required, func() engine.Record {
		return newBoolRecord("demo", pos, true, "")
	})
	r2 := eng.GetOrCreate("demo", pos, engine.Required, func() engine.Record {
		t.Fatal("construct should not run twice")
		return nil
	})
	assert.Same(t, r1, r2)
}

func TestRunPropagatesDependencyToFixpoint(t *testing.T) {
	eng, f := newTestEngine(t)
	pos := position.ForFunction(f)

	top := eng.GetOrCreate("top", pos, engine.Required, func() engine.Record {
		return newBoolRecord("top", pos, true, "base")
	})

	eng.Run()

	assert.True(t, top.IsAtFixpoint())
	assert.True(t, top.(*boolRecord).state.Assumed())
}

func TestLookupReturnsNilBeforeCreate(t *testing.T) {
	eng, f := newTestEngine(t)
	pos := position.ForFunction(f)
	require.Nil(t, eng.Lookup("never-created", pos))
}

// fakeLiveness is a minimal stand-in for internal/attr's LivenessFunction,
// used to exercise IsAssumedDead/CheckForAllInstructions without an
// engine->attr import (which would be cyclic): it implements exactly the
// Record interface plus the single IsBlockAlive method the engine consults
// structurally, keyed under the same "liveness-function" kind string
// attr.KindLivenessFunction resolves to.
type fakeLiveness struct {
	pos   position.Position
	alive map[*ir.BasicBlock]bool
}

func (f *fakeLiveness) Kind() string                { return "liveness-function" }
func (f *fakeLiveness) Position() position.Position { return f.pos }
func (f *fakeLiveness) Initialize(eng *engine.Engine) {}
func (f *fakeLiveness) Update(eng *engine.Engine) engine.ChangeStatus { return engine.Unchanged }
func (f *fakeLiveness) Manifest(eng *engine.Engine)       {}
func (f *fakeLiveness) IsValidState() bool                { return true }
func (f *fakeLiveness) IsAtFixpoint() bool                { return true }
func (f *fakeLiveness) IndicatePessimisticFixpoint()      {}
func (f *fakeLiveness) IndicateOptimisticFixpoint()       {}
func (f *fakeLiveness) String() string                    { return "liveness-function@fake" }
func (f *fakeLiveness) IsBlockAlive(b *ir.BasicBlock) bool { return f.alive[b] }

func TestIsAssumedDeadReflectsLivenessRecord(t *testing.T) {
	f := ir.NewFunction("f", nil, &ir.VoidType{})
	entry := f.NewBlock("entry")
	dead := f.NewBlock("dead")

	m := ir.NewModule("test")
	m.AddFunction(f)
	cache := analysis.NewCache(m)
	cg := callgraph.NewGraph()
	cg.Initialize(m)
	eng := engine.New(m, cache, cg, config.Default())

	pos := position.ForFunction(f)
	live := &fakeLiveness{pos: pos, alive: map[*ir.BasicBlock]bool{entry: true}}
	eng.GetOrCreate(live.Kind(), pos, engine.Optional, func() engine.Record { return live })

	assert.False(t, eng.IsAssumedDead(entry))
	assert.True(t, eng.IsAssumedDead(dead))
}

func TestIsAssumedDeadDefaultsFalseWithoutLivenessRecord(t *testing.T) {
	eng, f := newTestEngine(t)
	assert.False(t, eng.IsAssumedDead(f.Blocks[0]))
	assert.False(t, eng.IsAssumedDead(nil))
}

func TestCheckForAllInstructionsSkipsDeadBlocks(t *testing.T) {
	f := ir.NewFunction("f", nil, ir.I32)
	entry := f.NewBlock("entry")
	eb := ir.NewBuilder(f, entry)
	c := eb.Constant("%c", ir.I32, 1)
	eb.Ret(c)

	dead := f.NewBlock("dead")
	db := ir.NewBuilder(f, dead)
	db.Call("", nil, nil, "indirect_target", nil)
	db.Ret(nil)

	m := ir.NewModule("test")
	m.AddFunction(f)
	cache := analysis.NewCache(m)
	cg := callgraph.NewGraph()
	cg.Initialize(m)
	eng := engine.New(m, cache, cg, config.Default())

	pos := position.ForFunction(f)
	live := &fakeLiveness{pos: pos, alive: map[*ir.BasicBlock]bool{entry: true}}
	eng.GetOrCreate(live.Kind(), pos, engine.Optional, func() engine.Record { return live })

	seenCalls := 0
	ok := eng.CheckForAllInstructions(f, func(inst ir.Instruction) bool {
		if _, isCall := inst.(ir.CallLike); isCall {
			seenCalls++
		}
		return true
	})

	assert.True(t, ok)
	assert.Equal(t, 0, seenCalls, "the indirect call in the dead block must never be visited")
}
