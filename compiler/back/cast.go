package back

import (
	"github.com/slowlang/slowc/compiler/asm/amd64"
	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/tp"
)

func (g *gen) cast(x *ir.TypeCast) amd64.Operand {
	from, into := x.From, x.Into

	v := g.expr(x.X)

	switch {
	case from == into:
		return v
	case from.IsFloat() && into.IsFloat():
		return g.floatResize(v, into)
	case from.IsFloat():
		return g.floatToInt(v, into)
	case into.IsFloat():
		return g.intToFloat(v, from, into)
	case into.Size() <= from.Size():
		// narrowing is a relabel to the smaller view
		return v.As(into)
	}

	return g.extend(v, into, into.IsSigned())
}

// extend widens an integer into an owned register of type into,
// in place when the bank of v allows it.
func (g *gen) extend(v amd64.Operand, into tp.Type, signed bool) (dst amd64.Operand) {
	if v.IsImm() {
		v = g.own(v)
	}

	if v.IsReg() {
		if r, ok := g.ra.Resize(v.Reg, into.Size()); ok {
			dst = amd64.R(r, into)
		}
	}

	if dst.Kind == amd64.KindNone {
		dst = g.alloc(into)
		defer g.release(v)
	}

	if signed {
		g.e.Movsx(dst, v)
	} else {
		g.e.Movzx(dst, v)
	}

	return dst
}

func (g *gen) floatResize(v amd64.Operand, into tp.Type) amd64.Operand {
	dst := g.alloc(into)

	g.e.Cvtf2f(dst, v)
	g.release(v)

	return dst
}

// floatToInt truncates toward zero. u32 goes through a 64-bit conversion
// to keep the values above the i32 range.
func (g *gen) floatToInt(v amd64.Operand, into tp.Type) amd64.Operand {
	wt := tp.TI32
	if into.Size() == 8 || into.Kind == tp.U32 {
		wt = tp.TI64
	}

	r := g.alloc(wt)

	g.e.Cvttf2si(r, v)
	g.release(v)

	return amd64.R(r.Reg.Sized(into.Size()), into)
}

func (g *gen) intToFloat(v amd64.Operand, from, into tp.Type) amd64.Operand {
	var src amd64.Operand

	switch {
	case from.Size() < 4:
		src = g.extend(v, tp.TI32, from.IsSigned())
	case from.Kind == tp.U32:
		src = g.extend(v, tp.TI64, false)
	case from.Size() == 8 && !from.IsSigned():
		return g.u64ToFloat(v, into)
	default:
		src = v
	}

	if src.IsImm() {
		src = g.own(src)
	}

	dst := g.alloc(into)

	g.e.Cvtsi2f(dst, src)
	g.release(src)

	return dst
}

// u64ToFloat halves values with the top bit set keeping the low bit for rounding,
// converts them as signed and doubles the result.
func (g *gen) u64ToFloat(v amd64.Operand, into tp.Type) amd64.Operand {
	s := g.own(v.As(tp.TU64))
	dst := g.alloc(into)

	big, done := g.e.NewLabel(), g.e.NewLabel()

	g.e.Test(s, s)
	g.e.Jcc(amd64.CondS, big)
	g.e.Cvtsi2f(dst, s)
	g.e.Jmp(done)

	g.e.Label(big)

	t := g.alloc(tp.TU64)

	g.e.Mov(t, s)
	g.e.And(t, amd64.Imm(1, tp.TU64))
	g.e.Shr(s, amd64.Imm(1, tp.TU8))
	g.e.Or(s, t)

	g.release(t)

	g.e.Cvtsi2f(dst, s)
	g.e.Add(dst, dst)

	g.e.Label(done)

	g.release(s)

	return dst
}
