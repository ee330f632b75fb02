package ir

// Param is a function formal parameter.
type Param struct {
	Name string
	Ty   Type
	Val  *Value
}

// Signature describes a function's calling shape, used by the rewriter's
// signature-rewrite descriptors (spec §4.6) when privatizable-pointer
// flattens a struct argument into its fields.
type Signature struct {
	ParamTypes []Type
	ReturnType Type
	Variadic   bool
}

// Function is a defined or declared function in a Module.
type Function struct {
	Name       string
	Params     []*Param
	ReturnType Type
	Variadic   bool
	External   bool // true for a declaration with no body (an opaque callee)

	Entry  *BasicBlock
	Blocks []*BasicBlock

	Attrs    *AttrSet
	RetAttrs *AttrSet
	ArgAttrs []*AttrSet // parallel to Params

	// Non-IPO-amendable functions (spec §4.6 "shallow wrappers") cannot have
	// their own signature rewritten in place; a wrapper is synthesized
	// instead and this flag records that the original was renamed/demoted.
	Internal bool

	valueCounter int
}

func NewFunction(name string, params []*Param, ret Type) *Function {
	f := &Function{
		Name:       name,
		Params:     params,
		ReturnType: ret,
		Attrs:      NewAttrSet(),
		RetAttrs:   NewAttrSet(),
	}
	f.ArgAttrs = make([]*AttrSet, len(params))
	for i, p := range params {
		f.ArgAttrs[i] = NewAttrSet()
		p.Val = &Value{ID: f.nextValueID(), Name: p.Name, Ty: p.Ty, IsParam: true, ParamFunc: f, ParamIdx: i, Attrs: f.ArgAttrs[i]}
	}
	return f
}

func (f *Function) nextValueID() int {
	f.valueCounter++
	return f.valueCounter
}

// NewValueID hands out a fresh SSA value id unique within this function,
// used by builder helpers when constructing instruction results.
func (f *Function) NewValueID() int { return f.nextValueID() }

// NewBlock creates and appends a basic block to the function.
func (f *Function) NewBlock(label string) *BasicBlock {
	b := &BasicBlock{Label: label, Func: f}
	f.Blocks = append(f.Blocks, b)
	if f.Entry == nil {
		f.Entry = b
	}
	return b
}

// ParamAttrs returns the attribute set for the idx'th parameter.
func (f *Function) ParamAttrs(idx int) *AttrSet {
	if idx < 0 || idx >= len(f.ArgAttrs) {
		return nil
	}
	return f.ArgAttrs[idx]
}

// AllInstructions iterates every instruction across every block, in block
// order, the iteration the engine's seeding pass (spec §4.5) walks.
func (f *Function) AllInstructions() []Instruction {
	var all []Instruction
	for _, b := range f.Blocks {
		all = append(all, b.AllInstructions()...)
	}
	return all
}

// ReturnValues collects every operand of a RetTerm across the function,
// the set returned-values (spec §4.4) seeds from.
func (f *Function) ReturnValues() []*Value {
	var vals []*Value
	for _, b := range f.Blocks {
		if rt, ok := b.Term.(*RetTerm); ok && rt.Val != nil {
			vals = append(vals, rt.Val)
		}
	}
	return vals
}

// CallSites returns every call-like instruction (CallInst or InvokeInst) in
// the function.
func (f *Function) CallSites() []CallLike {
	var sites []CallLike
	for _, b := range f.Blocks {
		for _, inst := range b.Instructions {
			if cl, ok := inst.(CallLike); ok {
				sites = append(sites, cl)
			}
		}
		if cl, ok := b.Term.(CallLike); ok {
			sites = append(sites, cl)
		}
	}
	return sites
}
