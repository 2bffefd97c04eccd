package back

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slowc/compiler/asm/amd64"
	"github.com/slowlang/slowc/compiler/ir"
)

type (
	Compiler struct {
		// MaxExprDepth bounds expression nesting. Zero means DefaultMaxExprDepth.
		MaxExprDepth int
	}

	// Fault is an internal invariant violation.
	Fault = amd64.Fault

	gen struct {
		e  *amd64.Emitter
		ra *amd64.RegAlloc

		root *ir.Root
		f    *ir.Function

		depth    int
		maxDepth int
	}
)

const DefaultMaxExprDepth = 256

// spillReserve is the number of free registers an operation
// wants before it evaluates a non-trivial right operand.
const spillReserve = 4

func New() *Compiler { return &Compiler{} }

// CompileRoot classifies and lowers every function and appends the program text to b.
// Nothing is appended if any function fails.
func (c *Compiler) CompileRoot(ctx context.Context, b []byte, root *ir.Root) (_ []byte, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "back: compile root", "funcs", len(root.Funcs))
	defer tr.Finish("err", &err)

	for _, f := range root.Funcs {
		err = ClassifySysV(f)
		if err != nil {
			return nil, errors.Wrap(err, "classify %v", f.Name)
		}
	}

	g := &gen{
		e:        amd64.NewEmitter(),
		root:     root,
		maxDepth: c.MaxExprDepth,
	}

	g.ra = g.e.Regs()

	if g.maxDepth == 0 {
		g.maxDepth = DefaultMaxExprDepth
	}

	for _, f := range root.Funcs {
		err = g.function(ctx, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	if tr.If("dump_asm") {
		tr.Printw("assembly", "text", g.e.Bytes())
	}

	return g.e.AppendTo(b), nil
}

func (g *gen) function(ctx context.Context, f *ir.Function) (err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "back: compile func", "name", f.Name, "stack", f.StackSize, "params", f.Params)
	defer tr.Finish("err", &err)

	defer func() {
		p := recover()
		if p == nil {
			return
		}

		ft, ok := p.(*Fault)
		if !ok {
			panic(p)
		}

		err = ft
	}()

	if f.Attr.Has(ir.Extern) || f.Body == nil {
		g.e.Extern(f.Name)
		return nil
	}

	if f.Attr.Has(ir.Global) {
		g.e.Global(f.Name)
	}

	g.f = f

	g.e.Func(f.Name)
	g.e.Prologue(f.StackSize)

	g.storeParams(f)

	g.scope(f.Body)

	if !endsWithReturn(f.Body) {
		g.e.Epilogue()
	}

	g.e.FinishFunc(f.FrameSize)

	if tr.If("dump_func") {
		tr.Printw("function text", "text", g.e.Text())
	}

	return g.ra.CheckLeaks()
}

func endsWithReturn(s *ir.Scope) bool {
	if len(s.Stmts) == 0 {
		return false
	}

	_, ok := s.Stmts[len(s.Stmts)-1].(*ir.Return)

	return ok
}
