// Package attr implements the catalogue of concrete abstract attributes
// (spec.md §4.4, component C3) and the generic deduction combinators they're
// built from (§4.3, component C4). Every type here implements
// engine.Record; Seed (seed.go) is the entry point that admits a function's
// initial record set per §4.5.
package attr

// Kind names a catalogue entry for engine.Record.Kind()/get-or-create
// deduplication. Using the position's own Kind() as part of the
// get-or-create key (via position.Position's equality) means the same Kind
// string at a Function position and at a CallSite position are naturally
// distinct records.
type Kind string

const (
	KindNoUnwind            Kind = "no-unwind"
	KindNoSync              Kind = "no-sync"
	KindNoFree              Kind = "no-free"
	KindNoRecurse           Kind = "no-recurse"
	KindWillReturn          Kind = "will-return"
	KindNoReturn            Kind = "no-return"
	KindReturnedValues      Kind = "returned-values"
	KindNoAlias             Kind = "no-alias"
	KindNonNull             Kind = "non-null"
	KindDereferenceable     Kind = "dereferenceable"
	KindAlignment           Kind = "alignment"
	KindNoCapture           Kind = "no-capture"
	KindValueSimplify       Kind = "value-simplify"
	KindHeapToStack         Kind = "heap-to-stack"
	KindPrivatizablePointer Kind = "privatizable-pointer"
	KindMemoryBehavior      Kind = "memory-behavior"
	KindMemoryLocation      Kind = "memory-location"
	KindValueRange          Kind = "value-range"
	KindLivenessValue       Kind = "liveness-value"
	KindLivenessFunction    Kind = "liveness-function"
	KindUndefinedBehavior   Kind = "undefined-behavior"
	KindReachability        Kind = "reachability"
)

func (k Kind) String() string { return string(k) }
