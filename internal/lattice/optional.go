package lattice

// OptionalValue is the optional-known/assumed scalar lattice of spec §3.2,
// used by value-simplify (spec §4.4): absent means "not simplified yet",
// present-but-nil means "proven it cannot be simplified", and
// present-and-non-nil carries the single value every contributing site
// agreed on. It is generic over `any` so it can hold either an *ir.Value
// (value-simplify) or other per-attribute payloads without this package
// depending on ir.
type OptionalValue struct {
	resolved       bool
	unsimplifiable bool
	value          any
	fixed          bool
}

func NewOptionalValue() *OptionalValue { return &OptionalValue{} }

func (o *OptionalValue) IsUnresolved() bool { return !o.resolved && !o.unsimplifiable }

func (o *OptionalValue) IsUnsimplifiable() bool { return o.unsimplifiable }

// SimplifiedValue returns the agreed value and true once one has been
// proposed consistently by every contributor.
func (o *OptionalValue) SimplifiedValue() (any, bool) {
	if o.resolved {
		return o.value, true
	}
	return nil, false
}

// Propose merges in a candidate replacement value found at one contributing
// site (e.g. one call-site argument, one returned value). eq compares two
// payloads for equality (identity comparison is usually right for *ir.Value
// payloads, but callers may compare by underlying constant instead).
func (o *OptionalValue) Propose(v any, eq func(a, b any) bool) {
	if o.fixed || o.unsimplifiable {
		return
	}
	switch {
	case !o.resolved:
		o.resolved = true
		o.value = v
	case !eq(o.value, v):
		o.MarkUnsimplifiable()
	}
}

// MarkUnsimplifiable forces the pessimistic "cannot simplify" state, e.g.
// when a call site can't be mapped to a position or a thread-dependent
// constant tries to cross a callback boundary (spec §4.4 value-simplify).
func (o *OptionalValue) MarkUnsimplifiable() {
	if o.fixed {
		return
	}
	o.unsimplifiable = true
	o.resolved = false
	o.value = nil
}

func (o *OptionalValue) IsValidState() bool { return true }
func (o *OptionalValue) IsAtFixpoint() bool { return o.fixed }

func (o *OptionalValue) IndicateOptimisticFixpoint() { o.fixed = true }

func (o *OptionalValue) IndicatePessimisticFixpoint() {
	o.fixed = true
	o.MarkUnsimplifiable()
}
