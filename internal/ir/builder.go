package ir

// Builder provides an imperative construction API for a single function's
// body: an instruction-ID counter (value IDs come from the function's
// NewValueID), one current block at a time, emitting the generic
// instruction set of SPEC_FULL.md §9.1.
// internal/irtext's parser drives this API; tests construct small functions
// through it directly rather than hand-building instruction structs.
type Builder struct {
	fn        *Function
	block     *BasicBlock
	instCount int
}

// NewBuilder starts building instructions into fn, appending to cur (the
// block subsequent instruction-building calls target).
func NewBuilder(fn *Function, cur *BasicBlock) *Builder {
	return &Builder{fn: fn, block: cur}
}

// SetBlock retargets subsequent instruction-building calls at bb.
func (b *Builder) SetBlock(bb *BasicBlock) { b.block = bb }

func (b *Builder) nextID() int {
	b.instCount++
	return b.instCount
}

func (b *Builder) value(name string, ty Type) *Value {
	return newValue(b.fn.NewValueID(), name, ty)
}

func (b *Builder) Alloca(name string, ty Type, count *Value) *Value {
	res := b.value(name, &PointerType{Elem: ty})
	inst := &AllocaInst{id: b.nextID(), res: res, AllocTy: ty, Count: count}
	res.Def = inst
	if count != nil {
		addUse(count, inst, 0)
	}
	b.block.Append(inst)
	return res
}

func (b *Builder) Load(name string, ty Type, addr *Value) *Value {
	res := b.value(name, ty)
	inst := &LoadInst{id: b.nextID(), res: res, Address: addr}
	res.Def = inst
	addUse(addr, inst, 0)
	b.block.Append(inst)
	return res
}

func (b *Builder) Store(addr, val *Value) *StoreInst {
	inst := &StoreInst{id: b.nextID(), Address: addr, Val: val}
	addUse(addr, inst, 0)
	addUse(val, inst, 1)
	b.block.Append(inst)
	return inst
}

func (b *Builder) Binary(name, op string, ty Type, l, r *Value) *Value {
	res := b.value(name, ty)
	inst := &BinaryInst{id: b.nextID(), res: res, Op: op, Left: l, Right: r}
	res.Def = inst
	addUse(l, inst, 0)
	addUse(r, inst, 1)
	b.block.Append(inst)
	return res
}

func (b *Builder) ICmp(name, pred string, l, r *Value) *Value {
	res := b.value(name, I1)
	inst := &ICmpInst{id: b.nextID(), res: res, Pred: pred, Left: l, Right: r}
	res.Def = inst
	addUse(l, inst, 0)
	addUse(r, inst, 1)
	b.block.Append(inst)
	return res
}

// Call emits a call to callee (nil for an indirect/unresolved call named by
// calleeName) with args. If ty is nil the call is void.
func (b *Builder) Call(name string, ty Type, callee *Function, calleeName string, args []*Value) *Value {
	var res *Value
	if ty != nil {
		res = b.value(name, ty)
	}
	inst := &CallInst{id: b.nextID(), res: res, Callee: callee, calleeNm: calleeName, args: append([]*Value(nil), args...)}
	if res != nil {
		res.Def = inst
	}
	for idx, a := range args {
		addUse(a, inst, idx)
	}
	b.block.Append(inst)
	return res
}

func (b *Builder) GEPConst(name string, base *Value, offset int64) *Value {
	res := b.value(name, base.Ty)
	inst := &GEPInst{id: b.nextID(), res: res, Base: base, Const: offset}
	res.Def = inst
	addUse(base, inst, 0)
	b.block.Append(inst)
	return res
}

func (b *Builder) Cast(name, op string, ty Type, v *Value) *Value {
	res := b.value(name, ty)
	inst := &CastInst{id: b.nextID(), res: res, Op: op, Val: v}
	res.Def = inst
	addUse(v, inst, 0)
	b.block.Append(inst)
	return res
}

func (b *Builder) Phi(name string, ty Type) *PhiInst {
	res := b.value(name, ty)
	inst := &PhiInst{id: b.nextID(), res: res}
	res.Def = inst
	b.block.Append(inst)
	return inst
}

func (p *PhiInst) AddIncoming(from *BasicBlock, v *Value) {
	p.Incoming = append(p.Incoming, from)
	p.Vals = append(p.Vals, v)
	addUse(v, p, len(p.Vals)-1)
}

func (b *Builder) Select(name string, cond, t, f *Value) *Value {
	res := b.value(name, t.Ty)
	inst := &SelectInst{id: b.nextID(), res: res, Cond: cond, True: t, False: f}
	res.Def = inst
	addUse(cond, inst, 0)
	addUse(t, inst, 1)
	addUse(f, inst, 2)
	b.block.Append(inst)
	return res
}

func (b *Builder) Constant(name string, ty Type, lit int64) *Value {
	res := b.value(name, ty)
	inst := &ConstantInst{id: b.nextID(), res: res, Lit: lit, Ty: ty}
	res.Def = inst
	b.block.Append(inst)
	return res
}

func (b *Builder) Unreachable() {
	b.block.Append(&UnreachableInst{id: b.nextID()})
}

func (b *Builder) Ret(v *Value) {
	t := &RetTerm{id: b.nextID(), Val: v}
	if v != nil {
		addUse(v, t, 0)
	}
	b.block.SetTerminator(t)
}

func (b *Builder) Br(cond *Value, trueBB, falseBB *BasicBlock) {
	t := &BrTerm{id: b.nextID(), Cond: cond, TrueBB: trueBB, FalseBB: falseBB}
	addUse(cond, t, 0)
	b.block.SetTerminator(t)
}

func (b *Builder) Jump(target *BasicBlock) {
	t := &JumpTerm{id: b.nextID(), Target: target}
	b.block.SetTerminator(t)
}

func (b *Builder) Invoke(name string, ty Type, callee *Function, calleeName string, args []*Value, normal, unwind *BasicBlock) *Value {
	var res *Value
	if ty != nil {
		res = b.value(name, ty)
	}
	inst := &InvokeInst{id: b.nextID(), res: res, Callee: callee, calleeNm: calleeName, args: append([]*Value(nil), args...), NormalBB: normal, UnwindBB: unwind}
	if res != nil {
		res.Def = inst
	}
	for idx, a := range args {
		addUse(a, inst, idx)
	}
	b.block.SetTerminator(inst)
	return res
}
