package back

import (
	"tlog.app/go/errors"

	"github.com/slowlang/slowc/compiler/asm/amd64"
	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/tp"
)

type (
	// argLoc is where one argument travels: a register or a stack slot
	// at Slot bytes above rsp at the call instruction.
	argLoc struct {
		Reg  amd64.Reg
		Slot int
	}

	layout struct {
		f *ir.Function
	}
)

// ParamBase is the offset of the first stack parameter from the frame base:
// saved rbp and the return address lie below it.
const ParamBase = 16

// sysvArgs classifies argument types by the System V rules:
// six integer registers, eight vector registers, then 8-byte stack slots.
func sysvArgs(types []tp.Type) (locs []argLoc, stack int) {
	var ints, vecs int

	locs = make([]argLoc, len(types))

	for i, t := range types {
		switch {
		case t.IsFloat() && vecs < len(amd64.FloatArgs):
			locs[i].Reg = amd64.FloatArgs[vecs].Sized(t.Size())
			vecs++
		case !t.IsFloat() && ints < len(amd64.IntArgs):
			locs[i].Reg = amd64.IntArgs[ints].Sized(t.Size())
			ints++
		default:
			locs[i].Slot = stack
			stack += 8
		}
	}

	return locs, stack
}

// ClassifySysV assigns every variable of f its frame location and
// computes the stack sizes of the function, its scopes and loops.
//
// Register parameters and body locals share the fixed frame.
// Nested scopes and loops reserve their own regions below it when entered,
// so siblings reuse the same bytes.
func ClassifySysV(f *ir.Function) error {
	types := make([]tp.Type, f.Params)

	for i, v := range f.ParamVars() {
		if v.Type.IsVoid() {
			return errors.New("param %v: void type", v.Name)
		}

		types[i] = v.Type
	}

	locs, stack := sysvArgs(types)

	f.ParamStackSize = stack

	l := layout{f: f}

	var off int

	for i := range f.ParamVars() {
		v := &f.Locals[i]
		v.Attr |= ir.Param | ir.SysV

		if locs[i].Reg == amd64.NoReg {
			v.Attr |= ir.StackParam
			v.Location = ParamBase + locs[i].Slot

			continue
		}

		off = l.place(v, 0, off)
	}

	if f.Body == nil {
		f.StackSize = 0
		f.FrameSize = 0
		return nil
	}

	for _, idx := range f.Body.Locals {
		off = l.place(&f.Locals[idx], 0, off)
	}

	f.StackSize = align(off, 16)
	f.FrameSize = f.StackSize
	f.Body.StackSize = 0

	for _, s := range f.Body.Stmts {
		l.stmt(s, f.StackSize)
	}

	return nil
}

func (l *layout) stmt(s ir.Stmt, base int) {
	switch s := s.(type) {
	case *ir.Scope:
		off := 0

		for _, idx := range s.Locals {
			off = l.place(&l.f.Locals[idx], base, off)
		}

		s.StackSize = align(off, 16)
		l.extend(base + s.StackSize)

		for _, x := range s.Stmts {
			l.stmt(x, base+s.StackSize)
		}
	case *ir.If:
		l.stmt(s.Then, base)
		l.stmt(s.Else, base)
	case *ir.For:
		off := 0

		for _, idx := range s.Locals {
			off = l.place(&l.f.Locals[idx], base, off)
		}

		// the body scope shares the loop reservation
		body, ok := s.Body.(*ir.Scope)
		if ok {
			for _, idx := range body.Locals {
				off = l.place(&l.f.Locals[idx], base, off)
			}

			body.StackSize = 0
		}

		s.StackSize = align(off, 16)
		inner := base + s.StackSize

		l.extend(inner)

		l.stmt(s.Init, inner)
		l.stmt(s.Update, inner)

		if ok {
			for _, x := range body.Stmts {
				l.stmt(x, inner)
			}
		} else {
			l.stmt(s.Body, inner)
		}
	}
}

func (l *layout) extend(depth int) {
	l.f.FrameSize = max(l.f.FrameSize, depth)
}

// place puts v below base+off, naturally aligned, and returns the new off.
func (l *layout) place(v *ir.Variable, base, off int) int {
	size := v.Type.Size()

	off = align(off+size, size)
	v.Location = -(base + off)

	return off
}

func align(x, a int) int {
	if a <= 1 {
		return x
	}

	return (x + a - 1) / a * a
}
