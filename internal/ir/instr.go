package ir

import (
	"fmt"
	"strings"
)

// Instruction is the common interface implemented by every IR instruction
// (ID/Result/Operands/Block/IsTerminator/String) plus the mutators the
// rewriter (spec §4.6) needs: SetOperand (use-replacement) and SetBlock
// (splicing during signature rewrites and block splitting).
type Instruction interface {
	ID() int
	Result() *Value
	Operands() []*Value
	SetOperand(i int, v *Value)
	Block() *BasicBlock
	SetBlock(b *BasicBlock)
	IsTerminator() bool
	String() string
}

// Terminator is a block-ending instruction.
type Terminator interface {
	Instruction
	Successors() []*BasicBlock
}

// CallLike is implemented by both CallInst and InvokeInst so attribute
// seeding (spec §4.5 "for each call-like instruction") can treat direct and
// invoking calls uniformly.
type CallLike interface {
	Instruction
	CalleeFunc() *Function
	CalleeName() string
	Args() []*Value
	IsCallbackArg(i int) bool
}

func effectsOperand(inst Instruction, idx int) *Value {
	ops := inst.Operands()
	if idx < 0 || idx >= len(ops) {
		return nil
	}
	return ops[idx]
}

// --- AllocaInst ---

type AllocaInst struct {
	id       int
	res      *Value
	blk      *BasicBlock
	AllocTy  Type
	Count    *Value // nil for a single-element alloca
	FromHeap bool   // true once heap-to-stack has rewritten a malloc into this
}

func (i *AllocaInst) ID() int        { return i.id }
func (i *AllocaInst) Result() *Value { return i.res }
func (i *AllocaInst) Operands() []*Value {
	if i.Count != nil {
		return []*Value{i.Count}
	}
	return nil
}
func (i *AllocaInst) SetOperand(idx int, v *Value) {
	if idx == 0 {
		i.Count = v
	}
}
func (i *AllocaInst) Block() *BasicBlock   { return i.blk }
func (i *AllocaInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *AllocaInst) IsTerminator() bool   { return false }
func (i *AllocaInst) String() string {
	return fmt.Sprintf("%s = alloca %s", i.res.Name, i.AllocTy.String())
}

// --- LoadInst ---

type LoadInst struct {
	id      int
	res     *Value
	blk     *BasicBlock
	Address *Value
}

func (i *LoadInst) ID() int            { return i.id }
func (i *LoadInst) Result() *Value     { return i.res }
func (i *LoadInst) Operands() []*Value { return []*Value{i.Address} }
func (i *LoadInst) SetOperand(idx int, v *Value) {
	if idx == 0 {
		i.Address = v
	}
}
func (i *LoadInst) Block() *BasicBlock   { return i.blk }
func (i *LoadInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *LoadInst) IsTerminator() bool   { return false }
func (i *LoadInst) String() string {
	return fmt.Sprintf("%s = load %s, %s", i.res.Name, i.res.Ty.String(), i.Address.Name)
}

// --- StoreInst ---

type StoreInst struct {
	id      int
	blk     *BasicBlock
	Address *Value
	Val     *Value
}

func (i *StoreInst) ID() int            { return i.id }
func (i *StoreInst) Result() *Value     { return nil }
func (i *StoreInst) Operands() []*Value { return []*Value{i.Address, i.Val} }
func (i *StoreInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		i.Address = v
	case 1:
		i.Val = v
	}
}
func (i *StoreInst) Block() *BasicBlock   { return i.blk }
func (i *StoreInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *StoreInst) IsTerminator() bool   { return false }
func (i *StoreInst) String() string {
	return fmt.Sprintf("store %s, %s", i.Val.Name, i.Address.Name)
}

// --- BinaryInst ---

type BinaryInst struct {
	id          int
	res         *Value
	blk         *BasicBlock
	Op          string // "add", "sub", "mul", "udiv", ...
	Left, Right *Value
}

func (i *BinaryInst) ID() int            { return i.id }
func (i *BinaryInst) Result() *Value     { return i.res }
func (i *BinaryInst) Operands() []*Value { return []*Value{i.Left, i.Right} }
func (i *BinaryInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		i.Left = v
	case 1:
		i.Right = v
	}
}
func (i *BinaryInst) Block() *BasicBlock   { return i.blk }
func (i *BinaryInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *BinaryInst) IsTerminator() bool   { return false }
func (i *BinaryInst) String() string {
	return fmt.Sprintf("%s = %s %s, %s", i.res.Name, i.Op, i.Left.Name, i.Right.Name)
}

// --- ICmpInst ---

type ICmpInst struct {
	id          int
	res         *Value
	blk         *BasicBlock
	Pred        string // "eq","ne","ult","ule","ugt","uge","slt","sle","sgt","sge"
	Left, Right *Value
}

func (i *ICmpInst) ID() int            { return i.id }
func (i *ICmpInst) Result() *Value     { return i.res }
func (i *ICmpInst) Operands() []*Value { return []*Value{i.Left, i.Right} }
func (i *ICmpInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		i.Left = v
	case 1:
		i.Right = v
	}
}
func (i *ICmpInst) Block() *BasicBlock   { return i.blk }
func (i *ICmpInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *ICmpInst) IsTerminator() bool   { return false }
func (i *ICmpInst) String() string {
	return fmt.Sprintf("%s = icmp %s %s, %s", i.res.Name, i.Pred, i.Left.Name, i.Right.Name)
}

// --- CallInst ---

type CallInst struct {
	id       int
	res      *Value
	blk      *BasicBlock
	Callee   *Function // nil if indirect
	calleeNm string
	args     []*Value
	callback []bool // per-argument: does this operand flow to an indirect callback?
}

func (i *CallInst) ID() int            { return i.id }
func (i *CallInst) Result() *Value     { return i.res }
func (i *CallInst) Operands() []*Value { return i.args }
func (i *CallInst) SetOperand(idx int, v *Value) {
	if idx >= 0 && idx < len(i.args) {
		i.args[idx] = v
	}
}
func (i *CallInst) Block() *BasicBlock   { return i.blk }
func (i *CallInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *CallInst) IsTerminator() bool   { return false }
func (i *CallInst) CalleeFunc() *Function { return i.Callee }
func (i *CallInst) CalleeName() string {
	if i.Callee != nil {
		return i.Callee.Name
	}
	return i.calleeNm
}
func (i *CallInst) Args() []*Value { return i.args }
func (i *CallInst) IsCallbackArg(idx int) bool {
	return idx >= 0 && idx < len(i.callback) && i.callback[idx]
}
func (i *CallInst) String() string {
	parts := make([]string, len(i.args))
	for j, a := range i.args {
		parts[j] = a.Name
	}
	prefix := ""
	if i.res != nil {
		prefix = i.res.Name + " = "
	}
	return fmt.Sprintf("%scall @%s(%s)", prefix, i.CalleeName(), strings.Join(parts, ", "))
}

// --- GEPInst (pointer arithmetic by constant or variable offset) ---

type GEPInst struct {
	id     int
	res    *Value
	blk    *BasicBlock
	Base   *Value
	Offset *Value // nil when ConstOffset is used
	Const  int64
}

func (i *GEPInst) ID() int            { return i.id }
func (i *GEPInst) Result() *Value     { return i.res }
func (i *GEPInst) Operands() []*Value {
	if i.Offset != nil {
		return []*Value{i.Base, i.Offset}
	}
	return []*Value{i.Base}
}
func (i *GEPInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		i.Base = v
	case 1:
		i.Offset = v
	}
}
func (i *GEPInst) Block() *BasicBlock   { return i.blk }
func (i *GEPInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *GEPInst) IsTerminator() bool   { return false }
func (i *GEPInst) String() string {
	if i.Offset != nil {
		return fmt.Sprintf("%s = getelementptr %s, %s", i.res.Name, i.Base.Name, i.Offset.Name)
	}
	return fmt.Sprintf("%s = getelementptr %s, %d", i.res.Name, i.Base.Name, i.Const)
}

// --- CastInst ---

type CastInst struct {
	id  int
	res *Value
	blk *BasicBlock
	Op  string // "bitcast", "inttoptr", "ptrtoint", "trunc", "zext", "sext"
	Val *Value
}

func (i *CastInst) ID() int            { return i.id }
func (i *CastInst) Result() *Value     { return i.res }
func (i *CastInst) Operands() []*Value { return []*Value{i.Val} }
func (i *CastInst) SetOperand(idx int, v *Value) {
	if idx == 0 {
		i.Val = v
	}
}
func (i *CastInst) Block() *BasicBlock   { return i.blk }
func (i *CastInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *CastInst) IsTerminator() bool   { return false }
func (i *CastInst) String() string {
	return fmt.Sprintf("%s = %s %s to %s", i.res.Name, i.Op, i.Val.Name, i.res.Ty.String())
}

// --- PhiInst ---

type PhiInst struct {
	id      int
	res     *Value
	blk     *BasicBlock
	Incoming []*BasicBlock
	Vals     []*Value
}

func (i *PhiInst) ID() int        { return i.id }
func (i *PhiInst) Result() *Value { return i.res }
func (i *PhiInst) Operands() []*Value {
	return append([]*Value(nil), i.Vals...)
}
func (i *PhiInst) SetOperand(idx int, v *Value) {
	if idx >= 0 && idx < len(i.Vals) {
		i.Vals[idx] = v
	}
}
func (i *PhiInst) Block() *BasicBlock   { return i.blk }
func (i *PhiInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *PhiInst) IsTerminator() bool   { return false }
func (i *PhiInst) String() string {
	parts := make([]string, len(i.Vals))
	for j := range i.Vals {
		parts[j] = fmt.Sprintf("[%s, %%%s]", i.Vals[j].Name, i.Incoming[j].Label)
	}
	return fmt.Sprintf("%s = phi %s", i.res.Name, strings.Join(parts, ", "))
}

// --- SelectInst ---

type SelectInst struct {
	id               int
	res              *Value
	blk              *BasicBlock
	Cond, True, False *Value
}

func (i *SelectInst) ID() int        { return i.id }
func (i *SelectInst) Result() *Value { return i.res }
func (i *SelectInst) Operands() []*Value {
	return []*Value{i.Cond, i.True, i.False}
}
func (i *SelectInst) SetOperand(idx int, v *Value) {
	switch idx {
	case 0:
		i.Cond = v
	case 1:
		i.True = v
	case 2:
		i.False = v
	}
}
func (i *SelectInst) Block() *BasicBlock   { return i.blk }
func (i *SelectInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *SelectInst) IsTerminator() bool   { return false }
func (i *SelectInst) String() string {
	return fmt.Sprintf("%s = select %s, %s, %s", i.res.Name, i.Cond.Name, i.True.Name, i.False.Name)
}

// --- ConstantInst ---

type ConstantInst struct {
	id  int
	res *Value
	blk *BasicBlock
	Lit int64
	Ty  Type
}

func (i *ConstantInst) ID() int            { return i.id }
func (i *ConstantInst) Result() *Value     { return i.res }
func (i *ConstantInst) Operands() []*Value { return nil }
func (i *ConstantInst) SetOperand(int, *Value) {}
func (i *ConstantInst) Block() *BasicBlock   { return i.blk }
func (i *ConstantInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *ConstantInst) IsTerminator() bool   { return false }
func (i *ConstantInst) String() string {
	return fmt.Sprintf("%s = %s %d", i.res.Name, i.Ty.String(), i.Lit)
}

// --- UnreachableInst ---

type UnreachableInst struct {
	id  int
	blk *BasicBlock
}

func (i *UnreachableInst) ID() int              { return i.id }
func (i *UnreachableInst) Result() *Value       { return nil }
func (i *UnreachableInst) Operands() []*Value   { return nil }
func (i *UnreachableInst) SetOperand(int, *Value) {}
func (i *UnreachableInst) Block() *BasicBlock   { return i.blk }
func (i *UnreachableInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *UnreachableInst) IsTerminator() bool   { return false }
func (i *UnreachableInst) String() string       { return "unreachable" }

// --- Terminators ---

type RetTerm struct {
	id  int
	blk *BasicBlock
	Val *Value // nil for a void return
}

func (i *RetTerm) ID() int        { return i.id }
func (i *RetTerm) Result() *Value { return nil }
func (i *RetTerm) Operands() []*Value {
	if i.Val != nil {
		return []*Value{i.Val}
	}
	return nil
}
func (i *RetTerm) SetOperand(idx int, v *Value) {
	if idx == 0 {
		i.Val = v
	}
}
func (i *RetTerm) Block() *BasicBlock       { return i.blk }
func (i *RetTerm) SetBlock(b *BasicBlock)   { i.blk = b }
func (i *RetTerm) IsTerminator() bool       { return true }
func (i *RetTerm) Successors() []*BasicBlock { return nil }
func (i *RetTerm) String() string {
	if i.Val != nil {
		return fmt.Sprintf("ret %s %s", i.Val.Ty.String(), i.Val.Name)
	}
	return "ret void"
}

type BrTerm struct {
	id               int
	blk              *BasicBlock
	Cond             *Value
	TrueBB, FalseBB  *BasicBlock
}

func (i *BrTerm) ID() int            { return i.id }
func (i *BrTerm) Result() *Value     { return nil }
func (i *BrTerm) Operands() []*Value { return []*Value{i.Cond} }
func (i *BrTerm) SetOperand(idx int, v *Value) {
	if idx == 0 {
		i.Cond = v
	}
}
func (i *BrTerm) Block() *BasicBlock     { return i.blk }
func (i *BrTerm) SetBlock(b *BasicBlock) { i.blk = b }
func (i *BrTerm) IsTerminator() bool     { return true }
func (i *BrTerm) Successors() []*BasicBlock {
	return []*BasicBlock{i.TrueBB, i.FalseBB}
}
func (i *BrTerm) String() string {
	return fmt.Sprintf("br %s, label %%%s, label %%%s", i.Cond.Name, i.TrueBB.Label, i.FalseBB.Label)
}

type JumpTerm struct {
	id     int
	blk    *BasicBlock
	Target *BasicBlock
}

func (i *JumpTerm) ID() int            { return i.id }
func (i *JumpTerm) Result() *Value     { return nil }
func (i *JumpTerm) Operands() []*Value { return nil }
func (i *JumpTerm) SetOperand(int, *Value) {}
func (i *JumpTerm) Block() *BasicBlock     { return i.blk }
func (i *JumpTerm) SetBlock(b *BasicBlock) { i.blk = b }
func (i *JumpTerm) IsTerminator() bool     { return true }
func (i *JumpTerm) Successors() []*BasicBlock {
	return []*BasicBlock{i.Target}
}
func (i *JumpTerm) String() string { return fmt.Sprintf("jump label %%%s", i.Target.Label) }

// InvokeInst is a call-like terminator: normal control flow continues at
// NormalBB, exceptional unwinding (spec §4.4 no-unwind) continues at
// UnwindBB.
type InvokeInst struct {
	id       int
	res      *Value
	blk      *BasicBlock
	Callee   *Function
	calleeNm string
	args     []*Value
	NormalBB *BasicBlock
	UnwindBB *BasicBlock
}

func (i *InvokeInst) ID() int            { return i.id }
func (i *InvokeInst) Result() *Value     { return i.res }
func (i *InvokeInst) Operands() []*Value { return i.args }
func (i *InvokeInst) SetOperand(idx int, v *Value) {
	if idx >= 0 && idx < len(i.args) {
		i.args[idx] = v
	}
}
func (i *InvokeInst) Block() *BasicBlock     { return i.blk }
func (i *InvokeInst) SetBlock(b *BasicBlock) { i.blk = b }
func (i *InvokeInst) IsTerminator() bool     { return true }
func (i *InvokeInst) Successors() []*BasicBlock {
	return []*BasicBlock{i.NormalBB, i.UnwindBB}
}
func (i *InvokeInst) CalleeFunc() *Function { return i.Callee }
func (i *InvokeInst) CalleeName() string {
	if i.Callee != nil {
		return i.Callee.Name
	}
	return i.calleeNm
}
func (i *InvokeInst) Args() []*Value             { return i.args }
func (i *InvokeInst) IsCallbackArg(int) bool     { return false }
func (i *InvokeInst) String() string {
	parts := make([]string, len(i.args))
	for j, a := range i.args {
		parts[j] = a.Name
	}
	prefix := ""
	if i.res != nil {
		prefix = i.res.Name + " = "
	}
	return fmt.Sprintf("%sinvoke @%s(%s) to label %%%s unwind label %%%s",
		prefix, i.CalleeName(), strings.Join(parts, ", "), i.NormalBB.Label, i.UnwindBB.Label)
}

// UnwindTerm marks a block that always unwinds (a rethrow with no invoke
// landing pad); used sparingly by no-unwind's pessimistic paths in tests.
type UnwindTerm struct {
	id  int
	blk *BasicBlock
}

func (i *UnwindTerm) ID() int              { return i.id }
func (i *UnwindTerm) Result() *Value       { return nil }
func (i *UnwindTerm) Operands() []*Value   { return nil }
func (i *UnwindTerm) SetOperand(int, *Value) {}
func (i *UnwindTerm) Block() *BasicBlock       { return i.blk }
func (i *UnwindTerm) SetBlock(b *BasicBlock)   { i.blk = b }
func (i *UnwindTerm) IsTerminator() bool       { return true }
func (i *UnwindTerm) Successors() []*BasicBlock { return nil }
func (i *UnwindTerm) String() string           { return "unwind" }

// ConvertMallocToAlloca rewrites a recognized, size-bounded malloc call in
// place into a stack allocation of size bytes (spec §4.4 heap-to-stack
// manifest: "rewrites the malloc into a stack allocation"). The call's
// result value keeps its identity (and therefore all its existing uses);
// only its defining instruction changes.
func ConvertMallocToAlloca(call CallLike, size int64) *AllocaInst {
	blk := call.Block()
	res := call.Result()
	alloca := &AllocaInst{id: call.ID(), res: res, blk: blk, AllocTy: &ArrayType{Elem: I8, Len: size}, FromHeap: true}
	if res != nil {
		res.Def = alloca
	}
	for i, inst := range blk.Instructions {
		if inst == call {
			blk.Instructions[i] = alloca
			break
		}
	}
	return alloca
}

// SpliceCallArgs replaces the operand at idx of a call-like instruction with
// replacements, splicing the argument list rather than just overwriting one
// slot (spec §4.6 "call-site repair produces the new per-call-site operand
// list" — the privatizable-pointer manifest's way of turning the single
// aggregate operand a call used to pass into its flattened field values).
func SpliceCallArgs(call CallLike, idx int, replacements []*Value) {
	switch c := call.(type) {
	case *CallInst:
		c.args = spliceValues(c.args, idx, replacements)
		c.callback = spliceBools(c.callback, idx, len(replacements))
	case *InvokeInst:
		c.args = spliceValues(c.args, idx, replacements)
	}
}

func spliceValues(vals []*Value, idx int, replacements []*Value) []*Value {
	out := make([]*Value, 0, len(vals)-1+len(replacements))
	out = append(out, vals[:idx]...)
	out = append(out, replacements...)
	out = append(out, vals[idx+1:]...)
	return out
}

func spliceBools(bs []bool, idx int, n int) []bool {
	if bs == nil {
		return nil
	}
	out := make([]bool, 0, len(bs)-1+n)
	out = append(out, bs[:idx]...)
	for i := 0; i < n; i++ {
		out = append(out, false)
	}
	out = append(out, bs[idx+1:]...)
	return out
}
