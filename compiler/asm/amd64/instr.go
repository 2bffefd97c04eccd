package amd64

import (
	"fmt"

	"github.com/slowlang/slowc/compiler/tp"
)

type Cond string

const (
	CondE  Cond = "e"
	CondNE Cond = "ne"
	CondL  Cond = "l"
	CondG  Cond = "g"
	CondLE Cond = "le"
	CondGE Cond = "ge"
	CondB  Cond = "b"
	CondA  Cond = "a"
	CondBE Cond = "be"
	CondAE Cond = "ae"
	CondZ  Cond = "z"
	CondNZ Cond = "nz"
	CondS  Cond = "s"
)

// Unsigned maps a signed condition to its carry-flag twin.
func (c Cond) Unsigned() Cond {
	switch c {
	case CondL:
		return CondB
	case CondG:
		return CondA
	case CondLE:
		return CondBE
	case CondGE:
		return CondAE
	}

	return c
}

func (e *Emitter) Mov(dst, src Operand) {
	if dst.Equal(src) {
		return
	}

	if src.IsImm() {
		src = src.As(dst.Type)
	}

	switch {
	case dst.IsVector() || src.IsVector():
		e.movVec(dst, src)
	case dst.IsMem() && (src.IsMem() || !src.FitsImm32()):
		t := e.scratch(dst.Type, banksOf(nil, dst, src)...)

		e.op2("mov", t, src)
		e.op2("mov", dst, t)

		e.free(t)
	default:
		e.op2("mov", dst, src)
	}
}

func (e *Emitter) movVec(dst, src Operand) {
	mn := floatMnemonic(dst.Type, "movss", "movsd")

	switch {
	case dst.IsMem() && src.IsMem():
		t := e.scratch(dst.Type, banksOf(nil, dst, src)...)

		e.ins(mn, t, src)
		e.ins(mn, dst, t)

		e.free(t)
	case dst.IsReg() && src.IsReg() && dst.Reg.IsVector() != src.Reg.IsVector():
		// raw bits between register classes
		mn = "movq"
		if dst.Size() == 4 {
			mn = "movd"
		}

		if !dst.Reg.IsVector() {
			dst = R(dst.Reg.Sized(src.Size()), dst.Type)
		} else {
			src = R(src.Reg.Sized(dst.Size()), src.Type)
		}

		e.ins(mn, dst, src)
	case src.IsImm():
		panic(Faultf("float immediate %v", src))
	default:
		e.ins(mn, dst, src)
	}
}

// Movzx zero extends src into the wider register dst.
func (e *Emitter) Movzx(dst, src Operand) {
	switch {
	case !dst.IsReg() || src.Size() >= dst.Size():
		panic(Faultf("movzx %v <- %v", dst.Type, src.Type))
	case src.Size() == 4:
		// 32-bit writes clear the upper half, even onto itself
		e.op2("mov", R(dst.Reg.Sized(4), src.Type), src)
	default:
		e.op2("movzx", dst, src)
	}
}

// Movsx sign extends src into the wider register dst.
func (e *Emitter) Movsx(dst, src Operand) {
	switch {
	case !dst.IsReg() || src.Size() >= dst.Size():
		panic(Faultf("movsx %v <- %v", dst.Type, src.Type))
	case dst.Reg == RAX && src.IsReg() && src.Reg == EAX:
		e.ins("cdqe")
	case src.Size() == 4:
		e.op2("movsxd", dst, src)
	default:
		e.op2("movsx", dst, src)
	}
}

func (e *Emitter) Lea(dst, src Operand) {
	if !dst.IsReg() || !src.IsMem() {
		panic(Faultf("lea %v <- %v", dst, src))
	}

	e.text = fmt.Appendf(e.text, "\tlea %v, %v\n", dst.Reg, src.Mem)
}

func (e *Emitter) Add(dst, src Operand) { e.arith("add", "addss", "addsd", dst, src) }
func (e *Emitter) Sub(dst, src Operand) { e.arith("sub", "subss", "subsd", dst, src) }
func (e *Emitter) And(dst, src Operand) { e.arith("and", "", "", dst, src) }
func (e *Emitter) Or(dst, src Operand)  { e.arith("or", "", "", dst, src) }
func (e *Emitter) Xor(dst, src Operand) { e.arith("xor", "", "", dst, src) }

func (e *Emitter) arith(mn, ss, sd string, dst, src Operand) {
	if dst.Type.IsFloat() {
		if ss == "" || !dst.IsReg() {
			panic(Faultf("%v on %v %v", mn, dst.Type, dst))
		}

		e.ins(floatMnemonic(dst.Type, ss, sd), dst, src)

		return
	}

	src, staged := e.legalSrc(dst, src)

	e.op2(mn, dst, src)

	if staged {
		e.free(src)
	}
}

// Mul multiplies dst by src in place.
func (e *Emitter) Mul(dst, src Operand) {
	t := dst.Type

	switch {
	case t.IsFloat():
		e.arith("mul", "mulss", "mulsd", dst, src)
	case t.IsSigned() && t.Size() > 1 && dst.IsReg():
		src, staged := e.legalSrc(dst, src)

		e.op2("imul", dst, src)

		if staged {
			e.free(src)
		}
	case t.IsSigned():
		e.accumulate("imul", dst, src, false, false)
	default:
		e.accumulate("mul", dst, src, false, false)
	}
}

// Div divides dst by src in place leaving the quotient, or the remainder if rem is set.
func (e *Emitter) Div(dst, src Operand, rem bool) {
	t := dst.Type

	switch {
	case t.IsFloat() && rem:
		panic(Faultf("float remainder"))
	case t.IsFloat():
		e.arith("div", "divss", "divsd", dst, src)
	case t.IsSigned():
		e.accumulate("idiv", dst, src, true, rem)
	default:
		e.accumulate("div", dst, src, true, rem)
	}
}

// accumulate runs a one operand multiply or divide on the rax:rdx pair.
func (e *Emitter) accumulate(mn string, dst, src Operand, div, rem bool) {
	if !dst.IsReg() {
		panic(Faultf("%v into %v", mn, dst))
	}

	if dst.InBank(BankRAX) || dst.InBank(BankRDX) {
		t := e.scratch(dst.Type, banksOf([]Bank{BankRAX, BankRDX}, dst, src)...)

		e.Mov(t, dst)
		e.accumulate(mn, t, src, div, rem)
		e.Mov(dst, t)

		e.free(t)

		return
	}

	if src.IsImm() || src.InBank(BankRAX) || src.InBank(BankRDX) {
		t := e.scratch(src.Type, banksOf([]Bank{BankRAX, BankRDX}, dst, src)...)

		e.Mov(t, src)
		e.accumulate(mn, dst, t, div, rem)

		e.free(t)

		return
	}

	signed := dst.Type.IsSigned()
	n := dst.Size()

	if n == 1 {
		al := R(AL, dst.Type)

		e.ra.Force(AX)

		e.Mov(al, dst)

		if div && signed {
			e.ins("cbw")
		} else if div {
			e.ins("movzx", R(AX, tp.TU16), R(AL, tp.TU8))
		}

		e.ins(mn, src)

		if rem {
			e.ins("mov", al, R(AH, dst.Type))
		}

		e.Mov(dst, al)

		e.ra.Free(AX)

		return
	}

	a := R(BankRAX.Sized(n), dst.Type)
	d := R(BankRDX.Sized(n), dst.Type)

	e.ra.Force(a.Reg)
	e.ra.Force(d.Reg)

	e.Mov(a, dst)

	switch {
	case div && signed:
		e.Extend(n)
	case div:
		z := d
		if n == 8 {
			z = R(EDX, tp.TU32)
		}

		e.ins("xor", z, z)
	}

	e.ins(mn, src)

	res := a
	if rem {
		res = d
	}

	e.Mov(dst, res)

	e.ra.Free(d.Reg)
	e.ra.Free(a.Reg)
}

// Extend sign extends the accumulator of size n into its upper half.
func (e *Emitter) Extend(n int) {
	switch n {
	case 1:
		e.ins("cbw")
	case 2:
		e.ins("cwd")
	case 4:
		e.ins("cdq")
	case 8:
		e.Cqo()
	default:
		panic(Faultf("extend %d bytes", n))
	}
}

func (e *Emitter) Cqo() { e.ins("cqo") }

func (e *Emitter) Shl(dst, src Operand) { e.shift("shl", dst, src) }

// Shr is arithmetic for signed dst.
func (e *Emitter) Shr(dst, src Operand) {
	if dst.Type.IsSigned() {
		e.shift("sar", dst, src)
	} else {
		e.shift("shr", dst, src)
	}
}

// shift takes a variable count in cl.
func (e *Emitter) shift(mn string, dst, src Operand) {
	switch {
	case src.IsImm():
		e.ins(mn, dst, src.As(tp.TU8))
		return
	case dst.InBank(BankRCX):
		t := e.scratch(dst.Type, banksOf([]Bank{BankRCX}, dst, src)...)

		e.Mov(t, dst)
		e.shift(mn, t, src)
		e.Mov(dst, t)

		e.free(t)

		return
	case src.InBank(BankRCX) && !src.Reg.IsHigh8():
		e.ins(mn, dst, R(CL, tp.TU8))
		return
	}

	cl := R(CL, tp.TU8)

	e.ra.Force(CL)
	e.Mov(cl, src.As(tp.TU8))
	e.op2(mn, dst, cl)
	e.ra.Free(CL)
}

func (e *Emitter) Not(dst Operand) { e.ins("not", dst) }
func (e *Emitter) Neg(dst Operand) { e.ins("neg", dst) }

// Cmp sets flags from a - b.
func (e *Emitter) Cmp(a, b Operand) {
	if a.Type.IsFloat() {
		mn := floatMnemonic(a.Type, "ucomiss", "ucomisd")

		if !a.IsReg() {
			t := e.scratch(a.Type, banksOf(nil, a, b)...)
			e.Mov(t, a)
			e.ins(mn, t, b)
			e.free(t)

			return
		}

		e.ins(mn, a, b)

		return
	}

	if a.IsImm() {
		t := e.scratch(a.Type, banksOf(nil, a, b)...)
		e.Mov(t, a)
		e.Cmp(t, b)
		e.free(t)

		return
	}

	b, staged := e.legalSrc(a, b)

	e.op2("cmp", a, b)

	if staged {
		e.free(b)
	}
}

func (e *Emitter) Test(a, b Operand) { e.op2("test", a, b) }

func (e *Emitter) Set(c Cond, dst Operand) {
	if dst.Size() != 1 {
		panic(Faultf("set%v into %v", c, dst))
	}

	e.ins("set" + string(c), dst)
}

// Compare compares a with b and stores the 0/1 result into dst.
// Signed conditions become unsigned for unsigned integers, pointers and floats.
func (e *Emitter) Compare(dst, a, b Operand, c Cond) {
	e.Cmp(a, b)

	if !a.Type.IsSigned() || a.Type.IsFloat() {
		c = c.Unsigned()
	}

	e.Set(c, dst)
}

func (e *Emitter) Jmp(label string) {
	e.text = fmt.Appendf(e.text, "\tjmp %s\n", label)
}

func (e *Emitter) Jcc(c Cond, label string) {
	e.text = fmt.Appendf(e.text, "\tj%s %s\n", c, label)
}

func (e *Emitter) Call(name string) {
	e.text = fmt.Appendf(e.text, "\tcall %s\n", name)
}

func (e *Emitter) Ret() { e.ins("ret") }

// Push pushes a whole register. Vector registers go through [rsp].
func (e *Emitter) Push(x Operand) {
	if x.IsReg() && x.Reg.IsVector() {
		e.Reserve(8)
		e.ins("movsd", M(RSP, 0, tp.TF64), x)

		return
	}

	e.ins("push", x)
	e.depth += 8
}

func (e *Emitter) Pop(x Operand) {
	if x.IsReg() && x.Reg.IsVector() {
		e.ins("movsd", x, M(RSP, 0, tp.TF64))
		e.Release(8)

		return
	}

	e.ins("pop", x)
	e.depth -= 8
}

// Cvtsi2f converts a 32 or 64-bit integer into a float register.
func (e *Emitter) Cvtsi2f(dst, src Operand) {
	e.ins(floatMnemonic(dst.Type, "cvtsi2ss", "cvtsi2sd"), dst, src)
}

// Cvttf2si truncates a float into a 32 or 64-bit integer register.
func (e *Emitter) Cvttf2si(dst, src Operand) {
	e.ins(floatMnemonic(src.Type, "cvttss2si", "cvttsd2si"), dst, src)
}

// Cvtf2f changes float width.
func (e *Emitter) Cvtf2f(dst, src Operand) {
	e.ins(floatMnemonic(src.Type, "cvtss2sd", "cvtsd2ss"), dst, src)
}

// Prologue sets up the frame with size bytes of locals.
func (e *Emitter) Prologue(size int) {
	e.ins("push", R(RBP, tp.TU64))
	e.ins("mov", R(RBP, tp.TU64), R(RSP, tp.TU64))

	if size != 0 {
		e.ins("sub", R(RSP, tp.TU64), Imm(uint64(size), tp.TU64))
	}

	e.depth = 0

	e.fr.size = size
	e.fr.save = len(e.text)
}

// Epilogue tears the frame down and returns. Depth is kept for the code that follows.
func (e *Emitter) Epilogue() {
	e.fr.epilogues = append(e.fr.epilogues, len(e.text))

	e.ins("mov", R(RSP, tp.TU64), R(RBP, tp.TU64))
	e.ins("pop", R(RBP, tp.TU64))
	e.Ret()
}

func floatMnemonic(t tp.Type, ss, sd string) string {
	if t.Kind == tp.F32 {
		return ss
	}

	return sd
}
