package back

import (
	"github.com/slowlang/slowc/compiler/asm/amd64"
	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/tp"
)

var conds = map[ir.Op]amd64.Cond{
	ir.Eq: amd64.CondE,
	ir.Ne: amd64.CondNE,
	ir.Lt: amd64.CondL,
	ir.Gt: amd64.CondG,
	ir.Le: amd64.CondLE,
	ir.Ge: amd64.CondGE,
}

// expr lowers x. A register result is owned by the caller and must be released.
// Memory and immediate results are used in place.
func (g *gen) expr(x ir.Expr) amd64.Operand {
	g.depth++
	defer func() { g.depth-- }()

	if g.depth > g.maxDepth {
		panic(amd64.Faultf("expression nested deeper than %d", g.maxDepth))
	}

	switch x := x.(type) {
	case *ir.Int:
		return amd64.Imm(x.Value, x.T)
	case *ir.Float:
		return g.e.Float(x.Value, x.T)
	case *ir.Var:
		return g.variable(x.Index)
	case *ir.Call:
		return g.call(x, true)
	case *ir.Deref:
		return g.deref(x)
	case *ir.Operation:
		return g.operation(x)
	case *ir.SelfOperation:
		return g.selfOperation(x)
	case *ir.TypeCast:
		return g.cast(x)
	}

	panic(amd64.Faultf("unsupported expression %T", x))
}

func (g *gen) variable(idx int) amd64.Operand {
	v := &g.f.Locals[idx]

	return amd64.M(amd64.RBP, v.Location, v.Type)
}

// alloc takes a pool register or fails the compilation.
func (g *gen) alloc(t tp.Type) amd64.Operand {
	r, ok := g.ra.Alloc(t)
	if !ok {
		panic(amd64.Faultf("register pool exhausted for %v", t))
	}

	return amd64.R(r, t)
}

// own makes sure x is in a register owned by the caller.
func (g *gen) own(x amd64.Operand) amd64.Operand {
	if x.IsReg() {
		return x
	}

	r := g.alloc(x.Type)
	g.e.Mov(r, x)

	return r
}

func (g *gen) release(x amd64.Operand) {
	if x.IsReg() {
		g.ra.Free(x.Reg)
	}
}

// lvalue returns the memory of x and the register holding its address, if any.
func (g *gen) lvalue(x ir.Lvalue) (m, base amd64.Operand) {
	switch x := x.(type) {
	case *ir.Var:
		return g.variable(x.Index), amd64.None
	case *ir.Deref:
		p := g.own(g.variable(x.Var))

		for i := 1; i < x.Count; i++ {
			g.e.Mov(p, amd64.M(p.Reg, 0, p.Type))
		}

		return amd64.M(p.Reg, 0, x.T), p
	}

	panic(amd64.Faultf("not an lvalue: %T", x))
}

func (g *gen) deref(x *ir.Deref) amd64.Operand {
	p := g.own(g.variable(x.Var))

	for i := 1; i < x.Count; i++ {
		g.e.Mov(p, amd64.M(p.Reg, 0, p.Type))
	}

	return g.load(p, x.T)
}

// load reads t through the owned pointer register p, reusing p where it can.
func (g *gen) load(p amd64.Operand, t tp.Type) amd64.Operand {
	m := amd64.M(p.Reg, 0, t)

	if t.IsFloat() {
		r := g.alloc(t)
		g.e.Mov(r, m)
		g.release(p)

		return r
	}

	r := p.As(t)
	g.e.Mov(r, m)

	return r
}

func (g *gen) operation(x *ir.Operation) amd64.Operand {
	lt := x.L.Type()

	l := g.own(g.expr(x.L))

	spilled := g.spill(l, x.R)

	r := g.expr(x.R)

	if spilled {
		l = g.unspill(l)
	}

	switch {
	case lt.IsPointer() && (x.Op == ir.Add || x.Op == ir.Sub):
		r = g.scale(r, lt.Pointee().Size())
		r = r.As(lt)
	case lt.IsPointer() && !x.Op.IsComparison():
		panic(amd64.Faultf("pointer operation %v", x.Op))
	}

	res := l

	switch x.Op {
	case ir.Add:
		g.e.Add(l, r)
	case ir.Sub:
		g.e.Sub(l, r)
	case ir.Mul:
		g.e.Mul(l, r)
	case ir.Div:
		g.e.Div(l, r, false)
	case ir.Mod:
		g.e.Div(l, r, true)
	case ir.BitAnd:
		g.e.And(l, r)
	case ir.BitOr:
		g.e.Or(l, r)
	case ir.BitXor:
		g.e.Xor(l, r)
	case ir.Shl:
		g.e.Shl(l, r)
	case ir.Shr:
		g.e.Shr(l, r)
	case ir.BoolAnd, ir.BoolOr:
		r = g.own(r)
		res = g.logic(x.Op, l, r)
	default:
		c, ok := conds[x.Op]
		if !ok {
			panic(amd64.Faultf("unsupported operator %v", x.Op))
		}

		res = g.boolDst(l)
		g.e.Compare(res, l, r, c)

		if !l.IsVector() {
			break
		}

		g.release(l)
	}

	g.release(r)

	return res
}

// boolDst picks the byte register receiving a comparison of l.
// Integer comparisons reuse the low byte of l.
func (g *gen) boolDst(l amd64.Operand) amd64.Operand {
	if l.IsVector() {
		return g.alloc(tp.Bool)
	}

	return amd64.R(l.Reg.Sized(1), tp.Bool)
}

// logic is non short-circuit: both owned sides are already evaluated.
func (g *gen) logic(op ir.Op, l, r amd64.Operand) amd64.Operand {
	lb := g.truth(l)
	rb := g.truth(r)

	if op == ir.BoolAnd {
		g.e.And(lb, rb)
	} else {
		g.e.Or(lb, rb)
	}

	return lb
}

// truth normalizes an owned integer register to 0 or 1 in its low byte.
func (g *gen) truth(x amd64.Operand) amd64.Operand {
	if x.IsVector() {
		panic(amd64.Faultf("boolean operand of type %v", x.Type))
	}

	b := amd64.R(x.Reg.Sized(1), tp.Bool)

	g.e.Test(x, x)
	g.e.Set(amd64.CondNZ, b)

	return b
}

// scale multiplies an integer offset by the pointee size as a 64-bit value.
func (g *gen) scale(r amd64.Operand, size int) amd64.Operand {
	r = g.widen(r, tp.TI64)

	g.e.Mul(r, amd64.Imm(uint64(size), tp.TI64))

	return r
}

// widen brings an integer operand into an owned register of type into.
func (g *gen) widen(x amd64.Operand, into tp.Type) amd64.Operand {
	if x.IsImm() {
		return g.own(amd64.Imm(uint64(x.Signed()), into))
	}

	if x.Size() == into.Size() {
		return g.own(x.As(into))
	}

	return g.extend(x, into, x.Type.IsSigned())
}

// spill pushes an owned lhs out of the pool when the rhs needs registers that are short.
func (g *gen) spill(l amd64.Operand, rhs ir.Expr) bool {
	switch rhs.(type) {
	case *ir.Int, *ir.Float, *ir.Var:
		return false
	}

	if g.ra.Available(l.Type) >= spillReserve {
		return false
	}

	g.e.Push(amd64.R(l.Reg.Bank().Reg(amd64.W64), wordType(l.Type)))
	g.ra.Free(l.Reg)

	return true
}

func (g *gen) unspill(l amd64.Operand) amd64.Operand {
	w := g.alloc(wordType(l.Type))

	g.e.Pop(w)

	if l.IsVector() {
		return w.As(l.Type)
	}

	if l.Reg.IsHigh8() {
		g.e.Shr(w, amd64.Imm(8, tp.TU8))
	}

	return amd64.R(w.Reg.Sized(l.Size()), l.Type)
}

func wordType(t tp.Type) tp.Type {
	if t.IsFloat() {
		return tp.TF64
	}

	return tp.TU64
}

func (g *gen) selfOperation(x *ir.SelfOperation) amd64.Operand {
	switch x.Op {
	case ir.AddrOf:
		lv, ok := x.X.(ir.Lvalue)
		if !ok {
			panic(amd64.Faultf("address of %T", x.X))
		}

		m, base := g.lvalue(lv)

		r := base
		if !r.IsReg() {
			r = g.alloc(x.T)
		}

		r = amd64.R(r.Reg.Sized(8), x.T)
		g.e.Lea(r, m)

		return r
	case ir.DerefOp:
		p := g.own(g.expr(x.X))

		return g.load(p, x.T)
	case ir.BitNot:
		v := g.own(g.expr(x.X))
		g.e.Not(v)

		return v.As(x.T)
	case ir.BoolNot:
		v := g.own(g.expr(x.X))

		if v.IsVector() {
			panic(amd64.Faultf("boolean not of %v", v.Type))
		}

		b := amd64.R(v.Reg.Sized(1), tp.Bool)

		g.e.Test(v, v)
		g.e.Set(amd64.CondZ, b)

		return b.As(x.T)
	}

	panic(amd64.Faultf("unsupported self operation %v", x.Op))
}
