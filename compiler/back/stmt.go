package back

import (
	"github.com/slowlang/slowc/compiler/asm/amd64"
	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/tp"
)

// storeParams copies register parameters into their frame slots.
func (g *gen) storeParams(f *ir.Function) {
	params := f.ParamVars()

	types := make([]tp.Type, len(params))
	for i, v := range params {
		types[i] = v.Type
	}

	locs, _ := sysvArgs(types)

	for i, v := range params {
		if locs[i].Reg == amd64.NoReg {
			continue
		}

		g.e.Mov(amd64.M(amd64.RBP, v.Location, v.Type), amd64.R(locs[i].Reg, v.Type))
	}
}

func (g *gen) scope(s *ir.Scope) {
	g.e.Reserve(s.StackSize)

	for _, x := range s.Stmts {
		g.stmt(x)
	}

	g.e.Release(s.StackSize)
}

func (g *gen) stmt(s ir.Stmt) {
	switch s := s.(type) {
	case nil:
	case *ir.Scope:
		g.scope(s)
	case *ir.Assign:
		g.assign(s)
	case *ir.Return:
		g.ret(s)
	case *ir.Call:
		g.call(s, false)
	case *ir.If:
		g.ifStmt(s)
	case *ir.For:
		g.forStmt(s)
	default:
		panic(amd64.Faultf("unsupported statement %T", s))
	}
}

func (g *gen) assign(s *ir.Assign) {
	v := g.expr(s.Src)

	m, base := g.lvalue(s.Dst)

	g.e.Mov(m, v)

	g.release(base)
	g.release(v)
}

func (g *gen) ret(s *ir.Return) {
	if s.X != nil {
		t := s.X.Type()
		v := g.expr(s.X)

		r := returnReg(t)

		g.ra.Force(r)
		g.e.Mov(amd64.R(r, t), v)
		g.release(v)
		g.ra.Free(r)
	}

	g.e.Epilogue()
}

func (g *gen) ifStmt(s *ir.If) {
	els := g.e.NewLabel()

	g.branch(s.Cond, amd64.CondZ, els)
	g.stmt(s.Then)

	if s.Else == nil {
		g.e.Label(els)
		return
	}

	end := g.e.NewLabel()

	g.e.Jmp(end)
	g.e.Label(els)
	g.stmt(s.Else)
	g.e.Label(end)
}

// forStmt tests the condition before the first iteration.
func (g *gen) forStmt(s *ir.For) {
	g.e.Reserve(s.StackSize)

	g.stmt(s.Init)

	body := g.e.NewLabel()

	// without a condition the loop falls through into its body
	if s.Cond == nil {
		g.e.Label(body)

		g.stmt(s.Body)
		g.stmt(s.Update)

		g.e.Jmp(body)
		g.e.Release(s.StackSize)

		return
	}

	cond := g.e.NewLabel()

	g.e.Jmp(cond)
	g.e.Label(body)

	g.stmt(s.Body)
	g.stmt(s.Update)

	g.e.Label(cond)
	g.branch(s.Cond, amd64.CondNZ, body)

	g.e.Release(s.StackSize)
}

// branch jumps to label if the truth of x satisfies c.
func (g *gen) branch(x ir.Expr, c amd64.Cond, label string) {
	v := g.own(g.expr(x))

	if v.IsVector() {
		panic(amd64.Faultf("condition of type %v", v.Type))
	}

	g.e.Test(v, v)
	g.release(v)
	g.e.Jcc(c, label)
}
