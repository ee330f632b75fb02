// Package engine implements the fixpoint loop of spec.md §4.2 (component
// C5): the worklist, the dependency graph with its invalidation cascade,
// the iteration cap, and the manifest/replay phase. The attribute catalogue
// itself (component C3) and the combinators it's built from (C4) live in
// internal/attr, which depends on this package — not the other way around,
// so the engine stays a generic host any analysis record can plug into.
//
// Scheduling is cooperative and single-goroutine (one analysis driver
// owning its own worklists, no concurrency), and the record lifecycle is
// arena-owned and creation-ordered, the way a symbol-table registry is
// generalized here from lexical symbols to analysis records.
package engine

import (
	"attributor/internal/analysis"
	"attributor/internal/callgraph"
	"attributor/internal/config"
	"attributor/internal/diag"
	"attributor/internal/ir"
	"attributor/internal/position"
	"attributor/internal/rewrite"
)

// ChangeStatus is the result of a Record's Update call (spec §4.2 step 2c).
type ChangeStatus int

const (
	Unchanged ChangeStatus = iota
	Changed
)

// DepClass distinguishes required edges (cascade invalidation) from
// optional ones (re-enqueue only), per spec §3.4.
type DepClass int

const (
	Required DepClass = iota
	Optional
)

// Record is the uniform interface every concrete abstract attribute (spec
// §3.3) implements. Kind + Position together form its identity for
// get-or-create deduplication.
type Record interface {
	Kind() string
	Position() position.Position
	Initialize(eng *Engine)
	// Update runs the record's deduction step, querying other records via
	// eng.GetOrCreate (which records a dependency edge automatically).
	Update(eng *Engine) ChangeStatus
	// Manifest enqueues IR edits once the record is valid and settled.
	Manifest(eng *Engine)
	IsValidState() bool
	IsAtFixpoint() bool
	IndicatePessimisticFixpoint()
	IndicateOptimisticFixpoint()
	String() string
}

type recordKey struct {
	kind string
	pos  position.Position
}

type depEdge struct {
	to    Record
	class DepClass
}

// Engine owns the arena of records, the worklist, the dependency graph, and
// the deferred edit queues, and drives the fixpoint loop of spec §4.2.
type Engine struct {
	Module  *ir.Module
	Cache   *analysis.Cache
	CG      *callgraph.Graph
	Config  config.Config
	Diag    *diag.Reporter

	records    map[recordKey]Record
	order      []Record // creation order, for deterministic destroy/debug iteration
	worklist   []Record
	enqueued   map[Record]bool
	invalidSet []Record
	deps       map[Record][]depEdge // from -> [(to, class)]
	revDeps    map[Record][]depEdge // to -> [(from, class)]

	current Record // the record presently inside Update, for auto dependency recording
	queried bool    // did `current` query any non-fixed record this update?

	Edits *rewrite.Queue

	iterations int
}

func New(m *ir.Module, cache *analysis.Cache, cg *callgraph.Graph, cfg config.Config) *Engine {
	return &Engine{
		Module:   m,
		Cache:    cache,
		CG:       cg,
		Config:   cfg,
		Diag:     diag.NewReporter(),
		records:  map[recordKey]Record{},
		enqueued: map[Record]bool{},
		deps:     map[Record][]depEdge{},
		revDeps:  map[Record][]depEdge{},
		Edits:    rewrite.NewQueue(),
	}
}

// GetOrCreate returns the unique record of kind `kind` at `pos`, building it
// with `construct` on first lookup (spec §3.6 "Create", §4.2
// get-or-create<AA>). If called from within another record's Update, a
// dependency edge (the given class) from that record to the returned one is
// recorded automatically, and if the returned record is not yet at fixpoint
// the caller is marked as having queried a non-fixed record.
func (e *Engine) GetOrCreate(kind string, pos position.Position, class DepClass, construct func() Record) Record {
	key := recordKey{kind: kind, pos: pos}
	r, ok := e.records[key]
	if !ok {
		r = construct()
		e.records[key] = r
		e.order = append(e.order, r)
		r.Initialize(e)
		e.enqueue(r)
	}
	if e.current != nil && e.current != r {
		e.addDependence(e.current, r, class)
		if !r.IsAtFixpoint() {
			e.queried = true
		}
	}
	return r
}

// Lookup returns the record at (kind, pos) if one already exists, else nil
// (spec §4.2 lookup<AA>, never creates).
func (e *Engine) Lookup(kind string, pos position.Position) Record {
	return e.records[recordKey{kind: kind, pos: pos}]
}

// RecordDependence records an explicit edge (spec §4.2 record-dependence).
func (e *Engine) RecordDependence(from, to Record, class DepClass) {
	e.addDependence(from, to, class)
}

func (e *Engine) addDependence(from, to Record, class DepClass) {
	for _, d := range e.deps[from] {
		if d.to == to {
			if class == Required && d.class == Optional {
				break // upgrade below
			}
			return
		}
	}
	e.deps[from] = append(e.deps[from], depEdge{to: to, class: class})
	e.revDeps[to] = append(e.revDeps[to], depEdge{to: from, class: class})
}

func (e *Engine) enqueue(r Record) {
	if e.enqueued[r] {
		return
	}
	e.enqueued[r] = true
	e.worklist = append(e.worklist, r)
}

// invalidate marks r invalid and cascades per spec §4.2 step 2a: required
// dependents are forced pessimistic (and, if that makes them invalid,
// cascade further); optional dependents are merely re-enqueued.
func (e *Engine) invalidate(r Record) {
	for _, e2 := range e.revDeps[r] {
		dependent := e2.to
		if e2.class == Required {
			if dependent.IsValidState() {
				dependent.IndicatePessimisticFixpoint()
				e.enqueue(dependent)
				if !dependent.IsValidState() {
					e.invalidate(dependent)
				}
			}
		} else {
			e.enqueue(dependent)
		}
	}
}

// recomputeDependencies discards the dependency graph and re-enqueues every
// record (spec §4.2 step 2b), run every Config.DependencyRecomputeInterval
// iterations when that's nonzero.
func (e *Engine) recomputeDependencies() {
	e.deps = map[Record][]depEdge{}
	e.revDeps = map[Record][]depEdge{}
	for _, r := range e.order {
		if !r.IsAtFixpoint() {
			e.enqueue(r)
		}
	}
}

// Run drives the main loop (spec §4.2 "Fixpoint loop").
func (e *Engine) Run() {
	cap := e.Config.IterationCap
	if cap <= 0 {
		cap = 1
	}
	for e.iterations = 1; len(e.worklist) > 0 && e.iterations <= cap; e.iterations++ {
		if e.Config.DependencyRecomputeInterval > 0 && e.iterations%e.Config.DependencyRecomputeInterval == 0 {
			e.recomputeDependencies()
		}

		batch := e.worklist
		e.worklist = nil
		for _, r := range batch {
			e.enqueued[r] = false
		}
		for _, r := range batch {
			if r.IsAtFixpoint() {
				continue
			}
			if pos := r.Position(); pos.IsValid() {
				if fn := pos.EnclosingFunction(); fn != nil {
					if e.isFunctionDeadForRecord(r) {
						continue
					}
				}
			}
			e.current = r
			e.queried = false
			status := r.Update(e)
			e.current = nil

			if !r.IsValidState() {
				e.invalidate(r)
				continue
			}
			if status == Changed {
				for _, d := range e.revDeps[r] {
					e.enqueue(d.to)
				}
			} else if !e.queried {
				// Safe optimistic fixpoint: nothing non-fixed was consulted,
				// so nothing can ever change this record's state again.
				r.IndicateOptimisticFixpoint()
			}
		}
	}

	e.finalizeUnsettled(cap)
	e.manifest()
	e.Edits.Replay(e.Module, e.CG)
}

// livenessFunctionKind mirrors attr.KindLivenessFunction's string value.
// engine can't import attr (attr depends on engine, not the reverse), so
// is-assumed-dead and check-for-all-X address the function-form liveness
// record structurally, by kind string and the narrow method set they need,
// rather than by concrete type.
const livenessFunctionKind = "liveness-function"

// livenessAware is the structural shape is-assumed-dead needs from a
// function's liveness record.
type livenessAware interface {
	Record
	IsBlockAlive(b *ir.BasicBlock) bool
}

// IsAssumedDead is spec §4.2's "is-assumed-dead" query: true once blk's
// enclosing function has a liveness record and that record has proven blk
// unreachable. Returns false (not dead) if no liveness record exists yet,
// or blk is nil — the conservative default before liveness has had a
// chance to run. If called from within another record's Update, this
// records an Optional dependency on the liveness record (mirroring
// GetOrCreate), so that record is correctly re-examined once liveness
// discovers more of the function.
func (e *Engine) IsAssumedDead(blk *ir.BasicBlock) bool {
	if blk == nil || blk.Func == nil {
		return false
	}
	key := recordKey{kind: livenessFunctionKind, pos: position.ForFunction(blk.Func)}
	rec, ok := e.records[key]
	if !ok {
		return false
	}
	if e.current != nil && e.current != rec {
		e.addDependence(e.current, rec, Optional)
		if !rec.IsAtFixpoint() {
			e.queried = true
		}
	}
	lr, ok := rec.(livenessAware)
	if !ok {
		return false
	}
	return !lr.IsBlockAlive(blk)
}

// CheckForAllInstructions is the spec §4.2 "check-for-all-X" family member
// scoped to every instruction in fn's body: it runs pred over each one,
// skipping any sitting in a block already proven dead, and reports whether
// every live instruction it visited satisfied pred.
func (e *Engine) CheckForAllInstructions(fn *ir.Function, pred func(ir.Instruction) bool) bool {
	for _, blk := range fn.Blocks {
		if e.IsAssumedDead(blk) {
			continue
		}
		for _, inst := range blk.AllInstructions() {
			if !pred(inst) {
				return false
			}
		}
	}
	return true
}

// CheckForAllCallSites is the check-for-all-X family member scoped to the
// call-like instructions fn itself makes, skipping any in a dead block.
func (e *Engine) CheckForAllCallSites(fn *ir.Function, pred func(ir.CallLike) bool) bool {
	for _, call := range fn.CallSites() {
		if e.IsAssumedDead(call.Block()) {
			continue
		}
		if !pred(call) {
			return false
		}
	}
	return true
}

// isFunctionDeadForRecord skips updating a record anchored at a specific
// IR location (Float, call-site-argument, call-site-returned) once that
// location sits in a block already proven dead, per spec §4.2 step 2c "not
// in a dead block". Records with no single IR location to check
// (Function/Argument/Returned positions, and liveness itself) are never
// skipped this way.
func (e *Engine) isFunctionDeadForRecord(r Record) bool {
	if r.Kind() == livenessFunctionKind || r.Kind() == "liveness-value" {
		return false
	}
	pos := r.Position()
	switch pos.Kind() {
	case position.CallSiteArgument, position.CallSiteReturned:
		if call := pos.Call(); call != nil {
			return e.IsAssumedDead(call.Block())
		}
		return false
	case position.Float:
		anchor := pos.AnchorValue()
		if anchor == nil || anchor.Def == nil {
			return false
		}
		return e.IsAssumedDead(anchor.Def.Block())
	default:
		return false
	}
}

// finalizeUnsettled implements spec §4.2 step 3: every record not yet at
// fixpoint is promoted to optimistic fixpoint if its state is still valid,
// and forced to pessimistic fixpoint otherwise (required dependents of an
// invalid record were already pessimized by invalidate's cascade during the
// loop). If VerifyMaxIterations is set and the cap was actually reached
// with unsettled records, a fatal diagnostic naming them is printed first
// (spec §7); the records are settled the same way in either case.
func (e *Engine) finalizeUnsettled(cap int) {
	var unsettled []string
	for _, r := range e.order {
		if !r.IsAtFixpoint() {
			unsettled = append(unsettled, r.String())
		}
	}
	if len(unsettled) > 0 && e.Config.VerifyMaxIterations && e.iterations > cap {
		e.Diag.Print(diag.ConvergenceFailureDiag(unsettled))
	}
	for _, r := range e.order {
		if !r.IsAtFixpoint() {
			if r.IsValidState() {
				r.IndicateOptimisticFixpoint()
			} else {
				r.IndicatePessimisticFixpoint()
			}
		}
	}
}

// manifest runs spec §4.2 step 4: every valid record gets a chance to
// enqueue IR edits.
func (e *Engine) manifest() {
	for _, r := range e.order {
		if r.IsValidState() {
			r.Manifest(e)
		}
	}
}

// Iterations reports how many worklist-drain rounds the last Run performed,
// for tests and diagnostics.
func (e *Engine) Iterations() int {
	// Run's loop leaves the counter one past the last round it performed.
	if e.iterations == 0 {
		return 0
	}
	return e.iterations - 1
}

// Records returns every record ever created, in creation order, for
// callers that want to inspect the whole settled catalogue (cmd/attributor-
// cli's -dump-attrs, cmd/attributor-lsp's hover handler).
func (e *Engine) Records() []Record { return e.order }
