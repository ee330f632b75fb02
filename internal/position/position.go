// Package position implements the Position type of spec.md §3.1/§4.1: a
// value-typed, hashable, totally ordered tagged union naming the IR location
// at which an abstract attribute may hold.
package position

import (
	"fmt"

	"attributor/internal/ir"
)

// Kind discriminates the Position variants named in spec §3.1.
type Kind int

const (
	Invalid Kind = iota
	Float
	FunctionKind
	Returned
	CallSite
	CallSiteReturned
	Argument
	CallSiteArgument
)

func (k Kind) String() string {
	switch k {
	case Float:
		return "float"
	case FunctionKind:
		return "fn"
	case Returned:
		return "returned"
	case CallSite:
		return "cs"
	case CallSiteReturned:
		return "cs-returned"
	case Argument:
		return "arg"
	case CallSiteArgument:
		return "cs-arg"
	default:
		return "invalid"
	}
}

// Position names a location at which a fact may apply. It is comparable
// (usable as a map key) since every field is a comparable Go type — pointers
// and ints — satisfying spec §3.1's "value-typed, hashable, totally ordered".
type Position struct {
	kind   Kind
	fn     *ir.Function
	call   ir.CallLike
	val    *ir.Value
	argIdx int
}

// Invalid is the bottom/uninitialized position.
var InvalidPosition = Position{}

func ForFunction(fn *ir.Function) Position   { return Position{kind: FunctionKind, fn: fn} }
func ForReturned(fn *ir.Function) Position   { return Position{kind: Returned, fn: fn} }
func ForArgument(fn *ir.Function, idx int) Position {
	return Position{kind: Argument, fn: fn, argIdx: idx}
}
func ForCallSite(call ir.CallLike) Position { return Position{kind: CallSite, call: call} }
func ForCallSiteReturned(call ir.CallLike) Position {
	return Position{kind: CallSiteReturned, call: call}
}
func ForCallSiteArgument(call ir.CallLike, idx int) Position {
	return Position{kind: CallSiteArgument, call: call, argIdx: idx}
}
func ForFloat(v *ir.Value) Position { return Position{kind: Float, val: v} }

func (p Position) Kind() Kind { return p.kind }
func (p Position) IsValid() bool { return p.kind != Invalid }

// EnclosingFunction returns the function this position names a location
// within (the callee for call-site positions), or nil for Float/Invalid.
func (p Position) EnclosingFunction() *ir.Function {
	switch p.kind {
	case FunctionKind, Returned, Argument:
		return p.fn
	case CallSite, CallSiteReturned, CallSiteArgument:
		return p.call.CalleeFunc()
	default:
		return nil
	}
}

// ArgIdx returns the argument index for Argument/CallSiteArgument positions.
func (p Position) ArgIdx() int { return p.argIdx }

// Call returns the call-like instruction for call-site positions.
func (p Position) Call() ir.CallLike { return p.call }

// AnchorValue returns the value whose IR location this position is defined
// relative to. Every position kind, Argument included, returns the same
// value as AssociatedValue: for Argument that is the parameter's own value,
// not the enclosing function (the function is available through
// EnclosingFunction). Function and Returned positions return nil.
func (p Position) AnchorValue() *ir.Value {
	switch p.kind {
	case Float:
		return p.val
	case CallSiteReturned:
		return p.call.Result()
	case CallSiteArgument:
		args := p.call.Args()
		if p.argIdx < len(args) {
			return args[p.argIdx]
		}
	case Argument:
		if p.fn != nil && p.argIdx < len(p.fn.Params) {
			return p.fn.Params[p.argIdx].Val
		}
	}
	return nil
}

// AssociatedValue returns the value this position's facts describe.
// Coincides with AnchorValue for every position kind (see above).
func (p Position) AssociatedValue() *ir.Value {
	if p.kind == Argument && p.fn != nil && p.argIdx < len(p.fn.Params) {
		return p.fn.Params[p.argIdx].Val
	}
	return p.AnchorValue()
}

// OwnAttrs returns the IR-level attribute set directly attached at this
// position (the set seeding and manifest read from / write to), or nil if
// this position kind carries none of its own (e.g. an unresolved call site).
func (p Position) OwnAttrs() *ir.AttrSet {
	switch p.kind {
	case FunctionKind:
		return p.fn.Attrs
	case Returned:
		return p.fn.RetAttrs
	case Argument:
		return p.fn.ParamAttrs(p.argIdx)
	case Float:
		return p.val.Attrs
	case CallSiteReturned:
		if r := p.call.Result(); r != nil {
			return r.Attrs
		}
	case CallSiteArgument:
		args := p.call.Args()
		if p.argIdx < len(args) {
			return args[p.argIdx].Attrs
		}
	}
	return nil
}

// Subsuming returns the canonical sequence of coarser positions implied by
// p, used by both attribute lookup (attrsAt) and query propagation (spec
// §3.1, §4.1).
func (p Position) Subsuming() []Position {
	switch p.kind {
	case Argument, Returned:
		if p.fn == nil {
			return nil
		}
		return []Position{ForFunction(p.fn)}
	case CallSite:
		if callee := p.call.CalleeFunc(); callee != nil {
			return []Position{ForFunction(callee)}
		}
	case CallSiteArgument:
		if callee := p.call.CalleeFunc(); callee != nil {
			return []Position{ForArgument(callee, p.argIdx)}
		}
	case CallSiteReturned:
		callee := p.call.CalleeFunc()
		if callee == nil {
			return nil
		}
		subs := []Position{ForReturned(callee), ForFunction(callee)}
		args := p.call.Args()
		for i, attrs := range callee.ArgAttrs {
			if attrs.Has(ir.AttrReturned) && i < len(args) {
				subs = append(subs, ForCallSiteArgument(p.call, i))
			}
		}
		return subs
	}
	return nil
}

// AttrsAt walks the subsuming sequence (starting at p itself) and returns
// every IR-level attribute of the requested kinds found along the way,
// keyed by the kind found first (closest position wins, matching "nearest
// fact" lookup semantics).
func (p Position) AttrsAt(kinds ...ir.AttrKind) map[ir.AttrKind]int64 {
	found := map[ir.AttrKind]int64{}
	frontier := []Position{p}
	visited := map[Position]bool{}
	for len(frontier) > 0 {
		cur := frontier[0]
		frontier = frontier[1:]
		if visited[cur] {
			continue
		}
		visited[cur] = true
		if attrs := cur.OwnAttrs(); attrs != nil {
			for _, k := range kinds {
				if _, ok := found[k]; ok {
					continue
				}
				if v, ok := attrs.Get(k); ok {
					found[k] = v
				}
			}
		}
		frontier = append(frontier, cur.Subsuming()...)
	}
	return found
}

func (p Position) String() string {
	switch p.kind {
	case Invalid:
		return "<invalid>"
	case Float:
		return fmt.Sprintf("float(%s)", p.val.Name)
	case FunctionKind:
		return fmt.Sprintf("fn(@%s)", p.fn.Name)
	case Returned:
		return fmt.Sprintf("returned(@%s)", p.fn.Name)
	case Argument:
		return fmt.Sprintf("arg(@%s, %d)", p.fn.Name, p.argIdx)
	case CallSite:
		return fmt.Sprintf("cs(%s)", p.call.String())
	case CallSiteReturned:
		return fmt.Sprintf("cs-returned(%s)", p.call.String())
	case CallSiteArgument:
		return fmt.Sprintf("cs-arg(%s, %d)", p.call.String(), p.argIdx)
	default:
		return "?"
	}
}

// Less gives Position a total order, used so the engine's worklist and
// dependency-graph diagnostics produce deterministic output (spec §8
// idempotence).
func (p Position) Less(o Position) bool {
	if p.kind != o.kind {
		return p.kind < o.kind
	}
	ps, os := p.String(), o.String()
	return ps < os
}
