package amd64

import (
	"fmt"
	"math"
	"strconv"

	"github.com/slowlang/slowc/compiler/tp"
)

type (
	OpKind uint8

	// Mem is a memory location: [Base+Disp] or [rel Label].
	Mem struct {
		Base  Reg
		Label string
		Disp  int
	}

	// Operand is a typed placeholder for a register, a memory location or an immediate.
	Operand struct {
		Kind OpKind
		Type tp.Type

		Reg Reg
		Mem Mem

		// Imm is the bit pattern of the immediate.
		Imm uint64
	}
)

const (
	KindNone OpKind = iota
	KindReg
	KindMem
	KindImm
)

var None Operand

func R(r Reg, t tp.Type) Operand {
	return Operand{Kind: KindReg, Type: t, Reg: r}
}

// M is [base+disp].
func M(base Reg, disp int, t tp.Type) Operand {
	return Operand{Kind: KindMem, Type: t, Mem: Mem{Base: base, Disp: disp}}
}

// L is [rel label].
func L(label string, t tp.Type) Operand {
	return Operand{Kind: KindMem, Type: t, Mem: Mem{Label: label}}
}

func Imm(v uint64, t tp.Type) Operand {
	return Operand{Kind: KindImm, Type: t, Imm: v}
}

func (o Operand) IsReg() bool { return o.Kind == KindReg }
func (o Operand) IsMem() bool { return o.Kind == KindMem }
func (o Operand) IsImm() bool { return o.Kind == KindImm }

func (o Operand) Size() int { return o.Type.Size() }

// IsVector reports operands living in or destined for vector registers.
func (o Operand) IsVector() bool {
	if o.Kind == KindReg {
		return o.Reg.IsVector()
	}

	return o.Type.IsFloat()
}

// InBank reports whether o is a register view of bank b.
func (o Operand) InBank(b Bank) bool {
	return o.Kind == KindReg && o.Reg.Bank() == b
}

// As relabels o with type t. Registers switch to the view of t's size,
// immediates are truncated. Nothing is emitted.
func (o Operand) As(t tp.Type) Operand {
	o.Type = t

	switch o.Kind {
	case KindReg:
		if !o.Reg.IsVector() {
			o.Reg = o.Reg.Sized(t.Size())
		}
	case KindImm:
		o.Imm = truncate(o.Imm, t.Size())
	}

	return o
}

// Equal compares locations, ignoring types.
func (o Operand) Equal(x Operand) bool {
	return o.Kind == x.Kind && o.Reg == x.Reg && o.Mem == x.Mem && o.Imm == x.Imm
}

// Signed returns the immediate sign or zero extended from its size.
func (o Operand) Signed() int64 {
	n := o.Size()
	if n == 0 || n == 8 {
		return int64(o.Imm)
	}

	sh := 64 - 8*n

	if o.Type.IsSigned() {
		return int64(o.Imm<<sh) >> sh
	}

	return int64(truncate(o.Imm, n))
}

// FitsImm32 reports immediates encodable as a sign-extended 32-bit field.
func (o Operand) FitsImm32() bool {
	if o.Kind != KindImm || o.Size() < 8 {
		return true
	}

	if !o.Type.IsSigned() {
		return o.Imm <= math.MaxInt32
	}

	v := int64(o.Imm)

	return v >= math.MinInt32 && v <= math.MaxInt32
}

// String formats the address without a size keyword, as lea wants it.
func (m Mem) String() string {
	if m.Label != "" {
		return "[rel " + m.Label + "]"
	}

	switch {
	case m.Disp > 0:
		return fmt.Sprintf("[%v+%d]", m.Base, m.Disp)
	case m.Disp < 0:
		return fmt.Sprintf("[%v-%d]", m.Base, -m.Disp)
	}

	return "[" + m.Base.String() + "]"
}

func (o Operand) String() string {
	switch o.Kind {
	case KindReg:
		return o.Reg.String()
	case KindMem:
		return sizeKeyword(o.Size()) + " " + o.Mem.String()
	case KindImm:
		if o.Type.IsSigned() || o.Size() < 8 {
			return strconv.FormatInt(o.Signed(), 10)
		}

		return strconv.FormatUint(o.Imm, 10)
	}

	return "<none>"
}

func sizeKeyword(n int) string {
	switch n {
	case 1:
		return "byte"
	case 2:
		return "word"
	case 4:
		return "dword"
	case 8:
		return "qword"
	}

	panic(n)
}

func truncate(v uint64, size int) uint64 {
	if size <= 0 || size >= 8 {
		return v
	}

	return v & (1<<(8*size) - 1)
}
