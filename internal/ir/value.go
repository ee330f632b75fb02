package ir

// Value is an SSA value: the result of an instruction, or a function
// parameter. Each Value has exactly one definition (§3.2's "known ⊑ assumed"
// invariant on attribute state reads attributes off values of this type).
type Value struct {
	ID   int
	Name string
	Ty   Type

	Def Instruction // nil for parameters

	IsParam   bool
	ParamFunc *Function
	ParamIdx  int

	Attrs *AttrSet
	Range RangeMeta

	Uses []*Use
}

// Use records one operand position at which a Value is read.
type Use struct {
	Value *Value
	User  Instruction
	Index int
}

func newValue(id int, name string, ty Type) *Value {
	return &Value{ID: id, Name: name, Ty: ty, Attrs: NewAttrSet()}
}

// addUse records that operand at index idx of user reads v.
func addUse(v *Value, user Instruction, idx int) {
	if v == nil {
		return
	}
	v.Uses = append(v.Uses, &Use{Value: v, User: user, Index: idx})
}

// ReplaceAllUsesWith rewrites every use of v to read repl instead, the core
// primitive behind value-simplify's and returned-values' manifest (spec
// §4.4, §6.1 "replace-all-uses-with").
func ReplaceAllUsesWith(v, repl *Value) {
	if v == repl {
		return
	}
	uses := v.Uses
	v.Uses = nil
	for _, u := range uses {
		u.User.SetOperand(u.Index, repl)
		u.Value = repl
		repl.Uses = append(repl.Uses, u)
	}
}

// RemoveUse drops a single use, e.g. when an instruction using v is deleted.
func RemoveUse(v *Value, user Instruction, idx int) {
	if v == nil {
		return
	}
	for i, u := range v.Uses {
		if u.User == user && u.Index == idx {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
			return
		}
	}
}
