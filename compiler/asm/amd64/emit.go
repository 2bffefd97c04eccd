package amd64

import (
	"fmt"
	"math"
	"slices"

	"github.com/slowlang/slowc/compiler/tp"
)

type (
	// Emitter accumulates the attribute, data and text segments of one program.
	Emitter struct {
		ra *RegAlloc

		attr []byte
		data []byte
		text []byte

		nextData  int
		nextLabel int

		// depth is the number of bytes pushed below the fixed frame.
		depth int

		fr frame
	}

	// frame remembers where the current function saves and restores
	// callee-saved registers. The code is spliced in by FinishFunc.
	frame struct {
		size      int
		save      int
		epilogues []int
	}
)

func NewEmitter() *Emitter {
	e := &Emitter{}
	e.ra = NewRegAlloc(e)

	return e
}

func (e *Emitter) Regs() *RegAlloc { return e.ra }

func (e *Emitter) Global(name string) {
	e.attr = fmt.Appendf(e.attr, "global %s\n", name)
}

func (e *Emitter) Extern(name string) {
	e.attr = fmt.Appendf(e.attr, "extern %s\n", name)
}

// Float puts a constant into the data segment and returns its location.
func (e *Emitter) Float(v float64, t tp.Type) Operand {
	l := fmt.Sprintf("LD%d", e.nextData)
	e.nextData++

	if t.Kind == tp.F32 {
		e.data = fmt.Appendf(e.data, "%s: dd 0x%08x\n", l, math.Float32bits(float32(v)))
	} else {
		e.data = fmt.Appendf(e.data, "%s: dq 0x%016x\n", l, math.Float64bits(v))
	}

	return L(l, t)
}

// NewLabel returns a fresh control flow label. Labels are never reused.
func (e *Emitter) NewLabel() string {
	l := fmt.Sprintf("LT%d", e.nextLabel)
	e.nextLabel++

	return l
}

func (e *Emitter) Label(name string) {
	e.text = fmt.Appendf(e.text, "%s:\n", name)
}

// Func starts a function body.
func (e *Emitter) Func(name string) {
	if len(e.text) != 0 {
		e.text = append(e.text, '\n')
	}

	e.Label(name)
	e.depth = 0

	e.fr = frame{}
	e.ra.ResetTouched()
}

// FinishFunc saves the callee-saved banks the function used and restores
// them before every epilogue. The save area lies below extent, the deepest
// frame byte variables use, and is padded to 16 bytes so Depth based
// alignment still holds.
func (e *Emitter) FinishFunc(extent int) {
	fr := e.fr
	e.fr = frame{}

	var save []Bank

	for _, b := range CalleeSaved {
		if e.ra.Touched().IsSet(b) {
			save = append(save, b)
		}
	}

	if len(save) == 0 {
		return
	}

	extent = max(extent, fr.size)

	push := e.render(func() {
		if extent > fr.size {
			e.ins("sub", R(RSP, tp.TU64), Imm(uint64(extent-fr.size), tp.TU64))
		}

		for _, b := range save {
			e.ins("push", bankOperand(b))
		}

		if len(save)%2 != 0 {
			e.ins("sub", R(RSP, tp.TU64), Imm(8, tp.TU64))
		}
	})

	pop := e.render(func() {
		e.Lea(R(RSP, tp.TU64), M(RBP, -(extent+8*len(save)), tp.TU64))

		for i := len(save) - 1; i >= 0; i-- {
			e.ins("pop", bankOperand(save[i]))
		}
	})

	text := make([]byte, 0, len(e.text)+len(push)+len(pop)*len(fr.epilogues))
	text = append(text, e.text[:fr.save]...)
	text = append(text, push...)

	last := fr.save

	for _, at := range fr.epilogues {
		text = append(text, e.text[last:at]...)
		text = append(text, pop...)
		last = at
	}

	e.text = append(text, e.text[last:]...)
}

// render returns the text f emits without keeping it.
func (e *Emitter) render(f func()) []byte {
	keep := e.text
	e.text = nil

	f()

	b := e.text
	e.text = keep

	return b
}

// Depth is the number of bytes currently pushed or reserved below the frame.
func (e *Emitter) Depth() int { return e.depth }

// Reserve moves rsp down by n bytes.
func (e *Emitter) Reserve(n int) {
	if n == 0 {
		return
	}

	e.ins("sub", R(RSP, tp.TU64), Imm(uint64(n), tp.TU64))
	e.depth += n
}

// Release undoes Reserve.
func (e *Emitter) Release(n int) {
	if n == 0 {
		return
	}

	e.ins("add", R(RSP, tp.TU64), Imm(uint64(n), tp.TU64))
	e.depth -= n
}

func (e *Emitter) Bytes() []byte {
	return e.AppendTo(nil)
}

func (e *Emitter) AppendTo(b []byte) []byte {
	b = append(b, e.attr...)

	b = append(b, "\nsegment .data\n"...)
	b = append(b, e.data...)

	b = append(b, "\nsegment .text\n"...)
	b = append(b, e.text...)

	return b
}

// Text returns the text segment written so far.
func (e *Emitter) Text() []byte { return e.text }

func (e *Emitter) ins(mn string, args ...Operand) {
	e.text = append(e.text, '\t')
	e.text = append(e.text, mn...)

	for i, a := range args {
		if i == 0 {
			e.text = append(e.text, ' ')
		} else {
			e.text = append(e.text, ", "...)
		}

		e.text = append(e.text, a.String()...)
	}

	e.text = append(e.text, '\n')
}

// op2 emits a two operand instruction, staging a high-8 register
// that shares the instruction with a REX-only operand.
func (e *Emitter) op2(mn string, dst, src Operand) {
	if !high8Conflict(dst, src) {
		e.ins(mn, dst, src)
		return
	}

	if dst.IsReg() && dst.Reg.IsHigh8() {
		t := e.scratch(dst.Type, banksOf(nil, dst, src)...)

		e.ins("mov", t, dst)
		e.op2(mn, t, src)
		e.ins("mov", dst, t)

		e.free(t)

		return
	}

	t := e.scratch(src.Type, banksOf(nil, dst, src)...)

	e.ins("mov", t, src)
	e.ins(mn, dst, t)

	e.free(t)
}

func high8Conflict(ops ...Operand) (hi bool) {
	rex := false

	for _, o := range ops {
		switch o.Kind {
		case KindReg:
			if o.Reg.IsHigh8() {
				hi = true
			} else if o.Reg.NeedsREX() {
				rex = true
			}
		case KindMem:
			if b := o.Mem.Base; b != NoReg && b.Bank() >= BankR8 {
				rex = true
			}
		}
	}

	return hi && rex
}

// scratch takes a temporary register for t outside the avoided banks.
// One byte scratches are always legacy low-8 registers.
// When the pool is exhausted a register is forced and spilled,
// preferring banks not already spilled by an outer scratch.
func (e *Emitter) scratch(t tp.Type, avoid ...Bank) Operand {
	skip := func(b Bank) bool { return slices.Contains(avoid, b) }

	if t.Size() == 1 && !t.IsFloat() {
		for _, b := range []Bank{BankRBX, BankRCX, BankRDX} {
			if !skip(b) && e.ra.takeView(b, W8) {
				return R(b.Reg(W8), t)
			}
		}
	} else if r, ok := e.ra.alloc(t, skip); ok {
		return R(r, t)
	}

	fallback := []Bank{BankRAX, BankRBX, BankRCX, BankRDX}
	if t.IsFloat() {
		fallback = []Bank{BankXMM0, BankXMM15}
	}

	for _, spilled := range []bool{false, true} {
		for _, b := range fallback {
			if skip(b) || (e.ra.spills[b] != 0) != spilled {
				continue
			}

			r := b.Sized(t.Size())
			e.ra.Force(r)

			return R(r, t)
		}
	}

	panic(Faultf("no scratch register for %v", t))
}

// banksOf appends the banks ops read or write, memory bases included.
func banksOf(avoid []Bank, ops ...Operand) []Bank {
	for _, o := range ops {
		switch {
		case o.IsReg():
			avoid = append(avoid, o.Reg.Bank())
		case o.IsMem() && o.Mem.Base != NoReg:
			avoid = append(avoid, o.Mem.Base.Bank())
		}
	}

	return avoid
}

func (e *Emitter) free(x Operand) {
	e.ra.Free(x.Reg)
}

// legalSrc stages src in a register if it can't be encoded together with dst.
func (e *Emitter) legalSrc(dst, src Operand) (_ Operand, staged bool) {
	if src.IsImm() && !src.FitsImm32() || src.IsMem() && dst.IsMem() {
		t := e.scratch(src.Type, banksOf(nil, dst, src)...)
		e.Mov(t, src)

		return t, true
	}

	return src, false
}
