package irtext

import (
	"fmt"

	"attributor/internal/ir"
	"attributor/internal/position"
)

// Build walks a parsed Program into an *ir.Module using a two-pass
// registration style (declarations registered before bodies are checked,
// so forward references resolve): pass one creates every ir.Function (so
// callees resolve regardless of declaration order), pass two builds each
// function's blocks and instructions.
func Build(prog *Program) (*ir.Module, error) {
	m, _, err := buildAll(prog, false)
	return m, err
}

// BuildIndexed is Build plus a *LineIndex mapping source spans back to the
// position.Position the engine seeded for them, for cmd/attributor-lsp's
// hover handler.
func BuildIndexed(prog *Program) (*ir.Module, *LineIndex, error) {
	return buildAll(prog, true)
}

func buildAll(prog *Program, withIndex bool) (*ir.Module, *LineIndex, error) {
	m := ir.NewModule("irtext")
	decls := map[string]*FunctionDecl{}
	var idx *LineIndex
	if withIndex {
		idx = &LineIndex{}
	}

	for _, fd := range prog.Functions {
		params := make([]*ir.Param, len(fd.Params))
		for i, p := range fd.Params {
			params[i] = &ir.Param{Name: "%" + p.Name, Ty: p.Ty.Resolve()}
		}
		fn := ir.NewFunction(fd.Name, params, fd.RetTy.Resolve())
		fn.External = fd.Declare
		for i, p := range fd.Params {
			applyParamAttrs(fn.ParamAttrs(i), p.Attrs)
		}
		m.AddFunction(fn)
		decls[fd.Name] = fd

		if idx != nil {
			idx.add(fd.Pos, fd.EndPos, position.ForFunction(fn))
			for i, p := range fd.Params {
				idx.add(p.Pos, p.EndPos, position.ForArgument(fn, i))
			}
		}
	}

	for name, fd := range decls {
		if fd.Declare {
			continue
		}
		if err := buildBody(m, m.Lookup(name), fd, idx); err != nil {
			return nil, nil, err
		}
	}
	return m, idx, nil
}

func (t *Type) Resolve() ir.Type {
	var base ir.Type
	switch t.Name {
	case "void":
		base = &ir.VoidType{}
	case "i1":
		base = &ir.IntType{Bits: 1}
	case "i8":
		base = &ir.IntType{Bits: 8}
	case "i64":
		base = &ir.IntType{Bits: 64}
	default:
		base = &ir.IntType{Bits: 32}
	}
	for range t.Stars {
		base = &ir.PointerType{Elem: base}
	}
	return base
}

func applyParamAttrs(set *ir.AttrSet, attrs []*ParamAttr) {
	for _, a := range attrs {
		switch {
		case a.Simple != nil:
			switch *a.Simple {
			case "nonnull":
				set.Add(ir.AttrNonNull, 0)
			case "noalias":
				set.Add(ir.AttrNoAlias, 0)
			case "returned":
				set.Add(ir.AttrReturned, 0)
			}
		case a.Sized != nil:
			switch a.Sized.Name {
			case "dereferenceable":
				set.Add(ir.AttrDereferenceable, a.Sized.N)
			case "align":
				set.Add(ir.AttrAlign, a.Sized.N)
			}
		}
	}
}

// fnBuilder threads the per-function state build.go's two-pass instruction
// walk needs: a %name -> *ir.Value symbol table, the label -> *ir.BasicBlock
// map (populated before any instruction is built, so a forward branch/phi
// target always resolves), a counter for synthesizing names for literal
// operands, and the list of phi placeholders whose incoming edges are
// filled only after every block's straight-line values exist (the only
// legitimate forward reference in this grammar: a loop-header phi naming a
// value defined in the loop body, later in the text).
type fnBuilder struct {
	m          *ir.Module
	fn         *ir.Function
	b          *ir.Builder
	vals       map[string]*ir.Value
	blocks     map[string]*ir.BasicBlock
	litCount   int
	pendingPhi []pendingPhi
	idx        *LineIndex
	curBlock   *ir.BasicBlock
}

// indexInstruction records where parsed appears in idx, naming the
// position the engine seeded for whatever ir.Instruction it built: the
// call-site-returned position for a call with a result, the call-site
// position for a void call, or a general float position for every other
// value-producing instruction. Terminators and stores seed no position of
// their own, so they are left unindexed.
func (fb *fnBuilder) indexInstruction(parsed *Instruction) {
	if fb.idx == nil || len(fb.curBlock.Instructions) == 0 {
		return
	}
	last := fb.curBlock.Instructions[len(fb.curBlock.Instructions)-1]
	var pos position.Position
	if call, ok := last.(ir.CallLike); ok {
		if last.Result() != nil {
			pos = position.ForCallSiteReturned(call)
		} else {
			pos = position.ForCallSite(call)
		}
	} else if v := last.Result(); v != nil {
		pos = position.ForFloat(v)
	} else {
		return
	}
	fb.idx.add(parsed.Pos, parsed.EndPos, pos)
}

type pendingPhi struct {
	inst     *ir.PhiInst
	ty       ir.Type
	incoming []*PhiIncoming
}

func buildBody(m *ir.Module, fn *ir.Function, fd *FunctionDecl, idx *LineIndex) error {
	fb := &fnBuilder{m: m, fn: fn, vals: map[string]*ir.Value{}, blocks: map[string]*ir.BasicBlock{}, idx: idx}
	for i, p := range fd.Params {
		fb.vals[p.Name] = fn.Params[i].Val
	}
	for _, blk := range fd.Blocks {
		fb.blocks[blk.Label] = fn.NewBlock(blk.Label)
	}
	fb.b = ir.NewBuilder(fn, fn.Entry)

	for _, blk := range fd.Blocks {
		bb := fb.blocks[blk.Label]
		fb.curBlock = bb
		fb.b.SetBlock(bb)
		for _, inst := range blk.Instructions {
			if err := fb.build(inst); err != nil {
				return fmt.Errorf("%s: %w", fn.Name, err)
			}
			fb.indexInstruction(inst)
		}
	}
	for _, pp := range fb.pendingPhi {
		for _, inc := range pp.incoming {
			target, ok := fb.blocks[inc.Label]
			if !ok {
				return fmt.Errorf("%s: phi refers to unknown block %%%s", fn.Name, inc.Label)
			}
			v, err := fb.operand(inc.Val, pp.ty)
			if err != nil {
				return err
			}
			pp.inst.AddIncoming(target, v)
		}
	}
	return nil
}

func (fb *fnBuilder) operand(op *Operand, ty ir.Type) (*ir.Value, error) {
	if op.Lit != nil {
		fb.litCount++
		return fb.b.Constant(fmt.Sprintf("%%lit%d", fb.litCount), ty, *op.Lit), nil
	}
	v, ok := fb.vals[*op.Var]
	if !ok {
		return nil, fmt.Errorf("undefined value %%%s", *op.Var)
	}
	return v, nil
}

func (fb *fnBuilder) build(inst *Instruction) error {
	if inst.Assign != nil {
		v, err := fb.rhs(inst.Assign.Name, inst.Assign.Rhs)
		if err != nil {
			return err
		}
		fb.vals[inst.Assign.Name] = v
		return nil
	}
	return fb.void(inst.Void)
}

func (fb *fnBuilder) rhs(bareName string, r *Rhs) (*ir.Value, error) {
	name := "%" + bareName
	switch {
	case r.Alloca != nil:
		var count *ir.Value
		if r.Alloca.Count != nil {
			fb.litCount++
			count = fb.b.Constant(fmt.Sprintf("%%lit%d", fb.litCount), ir.I64, *r.Alloca.Count)
		}
		return fb.b.Alloca(name, r.Alloca.Ty.Resolve(), count), nil
	case r.Load != nil:
		addr, err := fb.operand(r.Load.Addr, r.Load.PtrTy.Resolve())
		if err != nil {
			return nil, err
		}
		return fb.b.Load(name, r.Load.Ty.Resolve(), addr), nil
	case r.Call != nil:
		return fb.call(name, r.Call)
	case r.GEP != nil:
		base, err := fb.operand(r.GEP.Base, r.GEP.PtrTy.Resolve())
		if err != nil {
			return nil, err
		}
		idx, err := fb.operand(r.GEP.Index, r.GEP.IdxTy.Resolve())
		if err != nil {
			return nil, err
		}
		lit, ok := constLit(idx)
		if !ok {
			lit = 0
		}
		return fb.b.GEPConst(name, base, lit), nil
	case r.ICmp != nil:
		ty := r.ICmp.Ty.Resolve()
		l, err := fb.operand(r.ICmp.L, ty)
		if err != nil {
			return nil, err
		}
		rr, err := fb.operand(r.ICmp.R, ty)
		if err != nil {
			return nil, err
		}
		return fb.b.ICmp(name, r.ICmp.Pred, l, rr), nil
	case r.Binary != nil:
		ty := r.Binary.Ty.Resolve()
		l, err := fb.operand(r.Binary.L, ty)
		if err != nil {
			return nil, err
		}
		rr, err := fb.operand(r.Binary.R, ty)
		if err != nil {
			return nil, err
		}
		return fb.b.Binary(name, r.Binary.Op, ty, l, rr), nil
	case r.Cast != nil:
		v, err := fb.operand(r.Cast.Val, r.Cast.FromTy.Resolve())
		if err != nil {
			return nil, err
		}
		return fb.b.Cast(name, r.Cast.Op, r.Cast.ToTy.Resolve(), v), nil
	case r.Select != nil:
		ty := r.Select.Ty.Resolve()
		cond, err := fb.operand(r.Select.Cond, r.Select.CondTy.Resolve())
		if err != nil {
			return nil, err
		}
		t, err := fb.operand(r.Select.True, ty)
		if err != nil {
			return nil, err
		}
		f, err := fb.operand(r.Select.False, ty)
		if err != nil {
			return nil, err
		}
		return fb.b.Select(name, cond, t, f), nil
	case r.Phi != nil:
		ty := r.Phi.Ty.Resolve()
		p := fb.b.Phi(name, ty)
		fb.pendingPhi = append(fb.pendingPhi, pendingPhi{inst: p, ty: ty, incoming: r.Phi.Incoming})
		return p.Result(), nil
	case r.Constant != nil:
		return fb.b.Constant(name, r.Constant.Ty.Resolve(), r.Constant.Lit), nil
	}
	return nil, fmt.Errorf("unrecognized instruction for %%%s", name)
}

func (fb *fnBuilder) void(v *Void) error {
	switch {
	case v.Store != nil:
		ty := v.Store.Ty.Resolve()
		val, err := fb.operand(v.Store.Val, ty)
		if err != nil {
			return err
		}
		addr, err := fb.operand(v.Store.Addr, v.Store.PtrTy.Resolve())
		if err != nil {
			return err
		}
		fb.b.Store(addr, val)
		return nil
	case v.Call != nil:
		_, err := fb.call("", v.Call)
		return err
	case v.Br != nil:
		return fb.br(v.Br)
	case v.Ret != nil:
		return fb.ret(v.Ret)
	case v.Unreachable != nil:
		fb.b.Unreachable()
		return nil
	}
	return fmt.Errorf("unrecognized terminator/void instruction")
}

func (fb *fnBuilder) call(name string, c *CallI) (*ir.Value, error) {
	callee := fb.m.Lookup(c.Callee)
	var ty ir.Type
	if c.Ty != nil {
		ty = c.Ty.Resolve()
	}
	var isVoid bool
	if _, ok := ty.(*ir.VoidType); ok || ty == nil {
		isVoid = true
	}
	args := make([]*ir.Value, len(c.Args))
	for i, a := range c.Args {
		v, err := fb.operand(a.Val, a.Ty.Resolve())
		if err != nil {
			return nil, err
		}
		args[i] = v
	}
	if isVoid {
		fb.b.Call("", nil, callee, c.Callee, args)
		return nil, nil
	}
	return fb.b.Call(name, ty, callee, c.Callee, args), nil
}

func (fb *fnBuilder) br(br *BrI) error {
	if br.Target != "" {
		target, ok := fb.blocks[br.Target]
		if !ok {
			return fmt.Errorf("branch to unknown block %%%s", br.Target)
		}
		fb.b.Jump(target)
		return nil
	}
	cond, err := fb.operand(br.Cond, br.CondTy.Resolve())
	if err != nil {
		return err
	}
	t, ok := fb.blocks[br.True]
	if !ok {
		return fmt.Errorf("branch to unknown block %%%s", br.True)
	}
	f, ok := fb.blocks[br.False]
	if !ok {
		return fmt.Errorf("branch to unknown block %%%s", br.False)
	}
	fb.b.Br(cond, t, f)
	return nil
}

func (fb *fnBuilder) ret(r *RetI) error {
	if r.Void || r.Val == nil {
		fb.b.Ret(nil)
		return nil
	}
	v, err := fb.operand(r.Val, r.Ty.Resolve())
	if err != nil {
		return err
	}
	fb.b.Ret(v)
	return nil
}

func constLit(v *ir.Value) (int64, bool) {
	c, ok := v.Def.(*ir.ConstantInst)
	if !ok {
		return 0, false
	}
	return c.Lit, true
}
