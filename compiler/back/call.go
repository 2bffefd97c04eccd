package back

import (
	"github.com/slowlang/slowc/compiler/asm/amd64"
	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/tp"
)

// call lowers a call. Busy registers are saved around it, stack arguments
// are written into a reserved area keeping rsp 16-byte aligned at the call.
// If value is set the result is returned in an owned register.
func (g *gen) call(x *ir.Call, value bool) (res amd64.Operand) {
	if x.Callee < 0 || x.Callee >= len(g.root.Funcs) {
		panic(amd64.Faultf("call of unknown function %d", x.Callee))
	}

	f := g.root.Funcs[x.Callee]

	types := make([]tp.Type, len(x.Args))
	for i, a := range x.Args {
		types[i] = a.Type()
	}

	locs, stack := sysvArgs(types)

	g.ra.SaveUsed()

	reserve := stack
	if pad := (g.e.Depth() + reserve) % 16; pad != 0 {
		reserve += 16 - pad
	}

	g.e.Reserve(reserve)

	base := g.e.Depth()

	var forced []amd64.Reg

	for i, a := range x.Args {
		v := g.expr(a)
		t := types[i]

		if r := locs[i].Reg; r != amd64.NoReg {
			if v.IsReg() && v.Reg == r {
				forced = append(forced, r)
				continue
			}

			g.ra.Force(r)
			g.e.Mov(amd64.R(r, t), v)
			g.release(v)

			forced = append(forced, r)

			continue
		}

		// pushes made while evaluating the argument are already undone
		disp := locs[i].Slot + g.e.Depth() - base

		g.e.Mov(amd64.M(amd64.RSP, disp, t), v)
		g.release(v)
	}

	g.e.Call(f.Name)

	for i := len(forced) - 1; i >= 0; i-- {
		g.ra.Free(forced[i])
	}

	if value && !f.Return.IsVoid() {
		r, ok := g.ra.AllocOutsideSave(f.Return)
		if !ok {
			panic(amd64.Faultf("no register for the result of %v", f.Name))
		}

		res = amd64.R(r, f.Return)

		g.e.Mov(res, amd64.R(returnReg(f.Return), f.Return))
	}

	g.e.Release(reserve)
	g.ra.RestoreUsed()

	return res
}

// returnReg is the register a value of type t is returned in.
func returnReg(t tp.Type) amd64.Reg {
	if t.IsFloat() {
		return amd64.XMM0
	}

	return amd64.BankRAX.Sized(t.Size())
}
