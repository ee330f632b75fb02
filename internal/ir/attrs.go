package ir

// AttrKind enumerates the IR-level fact annotations the engine can read
// (seeding, spec §4.5) and write (manifest, spec §4.2 step 4). These are the
// "IR-level attributes" referred to throughout spec.md §4.1 and §4.4 — not
// to be confused with the engine's in-flight abstract-attribute records.
type AttrKind int

const (
	AttrNonNull AttrKind = iota
	AttrDereferenceable
	AttrDereferenceableOrNull
	AttrAlign
	AttrReturned
	AttrNoAlias
	AttrNoCapture
	AttrNoUnwind
	AttrNoSync
	AttrNoFree
	AttrNoRecurse
	AttrWillReturn
	AttrNoReturn
	AttrReadNone
	AttrReadOnly
	AttrWriteOnly
)

func (k AttrKind) String() string {
	switch k {
	case AttrNonNull:
		return "nonnull"
	case AttrDereferenceable:
		return "dereferenceable"
	case AttrDereferenceableOrNull:
		return "dereferenceable_or_null"
	case AttrAlign:
		return "align"
	case AttrReturned:
		return "returned"
	case AttrNoAlias:
		return "noalias"
	case AttrNoCapture:
		return "nocapture"
	case AttrNoUnwind:
		return "nounwind"
	case AttrNoSync:
		return "nosync"
	case AttrNoFree:
		return "nofree"
	case AttrNoRecurse:
		return "norecurse"
	case AttrWillReturn:
		return "willreturn"
	case AttrNoReturn:
		return "noreturn"
	case AttrReadNone:
		return "readnone"
	case AttrReadOnly:
		return "readonly"
	case AttrWriteOnly:
		return "writeonly"
	default:
		return "unknown"
	}
}

// AttrSet holds a (possibly value-carrying) set of IR attributes. Boolean
// attributes store a value of 0; Align/Dereferenceable store their byte
// count.
type AttrSet struct {
	vals map[AttrKind]int64
}

// NewAttrSet returns an empty attribute set.
func NewAttrSet() *AttrSet { return &AttrSet{vals: map[AttrKind]int64{}} }

// Has reports whether kind is present.
func (s *AttrSet) Has(kind AttrKind) bool {
	if s == nil {
		return false
	}
	_, ok := s.vals[kind]
	return ok
}

// Get returns the associated value (0 for boolean attributes) and whether
// kind is present.
func (s *AttrSet) Get(kind AttrKind) (int64, bool) {
	if s == nil {
		return 0, false
	}
	v, ok := s.vals[kind]
	return v, ok
}

// Add installs kind with the given associated value, growing the known
// value if kind is already present and mergeable (Dereferenceable/Align
// keep the max, matching the monotone-known semantics of spec §3.2).
func (s *AttrSet) Add(kind AttrKind, value int64) {
	if s.vals == nil {
		s.vals = map[AttrKind]int64{}
	}
	if cur, ok := s.vals[kind]; ok && cur > value {
		return
	}
	s.vals[kind] = value
}

// Remove deletes kind, used when IR rewriting invalidates a previously
// manifested fact (e.g. a pointer that is rewritten to no longer be the
// same value).
func (s *AttrSet) Remove(kind AttrKind) {
	if s.vals != nil {
		delete(s.vals, kind)
	}
}

// RangeMeta is the "range" metadata slot referenced by spec §6.1; value-range
// (spec §4.4) both reads it (seeding) and writes it (manifest).
type RangeMeta struct {
	Lo, Hi int64 // half-open [Lo, Hi); Lo >= Hi means wrap-around, mirroring LLVM's ConstantRange
	Valid  bool
}
