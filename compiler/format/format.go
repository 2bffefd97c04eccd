package format

import (
	"context"

	"github.com/nikandfor/hacked/hfmt"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slowc/compiler/ir"
)

type printer struct {
	root *ir.Root
	f    *ir.Function
}

// Format appends the text form of the IR node x to b.
// Expressions are fully parenthesized and literals carry their type.
func Format(ctx context.Context, b []byte, x any) (_ []byte, err error) {
	tr, _ := tlog.SpawnFromContextAndWrap(ctx, "format")
	defer tr.Finish("err", &err)

	switch x := x.(type) {
	case *ir.Root:
		p := &printer{root: x}

		return p.formatRoot(b)
	default:
		return nil, errors.New("unsupported type: %T", x)
	}
}

func (p *printer) formatRoot(b []byte) (_ []byte, err error) {
	for i, f := range p.root.Funcs {
		if i != 0 {
			b = append(b, '\n')
		}

		b, err = p.formatFunc(b, f)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", f.Name)
		}
	}

	return b, nil
}

func (p *printer) formatFunc(b []byte, f *ir.Function) (_ []byte, err error) {
	p.f = f

	b = append(b, "func "...)

	if a := f.Attr &^ (ir.Param | ir.StackParam); a != 0 {
		b = app(b, 0, "%v ", a)
	}

	b = app(b, 0, "%s(", f.Name)

	for i, v := range f.ParamVars() {
		if i != 0 {
			b = append(b, ", "...)
		}

		b = app(b, 0, "%s %v", v.Name, v.Type)
	}

	b = app(b, 0, ") -> %v", f.Return)

	if f.Body == nil {
		return append(b, ";\n"...), nil
	}

	b = append(b, ' ')

	b, err = p.formatScope(b, f.Body, 0)
	if err != nil {
		return nil, errors.Wrap(err, "body")
	}

	return append(b, '\n'), nil
}

func (p *printer) formatScope(b []byte, s *ir.Scope, d int) (_ []byte, err error) {
	b = append(b, "{\n"...)

	b = p.formatLocals(b, s.Locals, d+1)

	for _, st := range s.Stmts {
		b, err = p.formatStmt(b, st, d+1)
		if err != nil {
			return nil, err
		}
	}

	return app(b, d, "}"), nil
}

func (p *printer) formatLocals(b []byte, locals []int, d int) []byte {
	for _, idx := range locals {
		v := p.f.Locals[idx]

		b = app(b, d, "var %s %v", v.Name, v.Type)

		if v.Location != 0 {
			b = app(b, 0, " @%d", v.Location)
		}

		b = append(b, '\n')
	}

	return b
}

func (p *printer) formatStmt(b []byte, s ir.Stmt, d int) (_ []byte, err error) {
	switch s := s.(type) {
	case *ir.Scope:
		b = app(b, d, "")

		b, err = p.formatScope(b, s, d)
		if err != nil {
			return nil, err
		}
	case *ir.Assign:
		b = app(b, d, "")
		b = p.formatExpr(b, s.Dst)
		b = append(b, " = "...)
		b = p.formatExpr(b, s.Src)
	case *ir.Return:
		b = app(b, d, "return")

		if s.X != nil {
			b = append(b, ' ')
			b = p.formatExpr(b, s.X)
		}
	case *ir.Call:
		b = app(b, d, "")
		b = p.formatExpr(b, s)
	case *ir.If:
		b = app(b, d, "if ")
		b = p.formatExpr(b, s.Cond)
		b = append(b, ' ')

		b, err = p.formatBranch(b, s.Then, d)
		if err != nil {
			return nil, errors.Wrap(err, "then")
		}

		if s.Else != nil {
			b = append(b, " else "...)

			b, err = p.formatBranch(b, s.Else, d)
			if err != nil {
				return nil, errors.Wrap(err, "else")
			}
		}
	case *ir.For:
		b = app(b, d, "for {\n")
		b = p.formatLocals(b, s.Locals, d+1)

		if s.Init != nil {
			b, err = p.formatStmt(b, s.Init, d+1)
			if err != nil {
				return nil, errors.Wrap(err, "init")
			}
		}

		b = app(b, d+1, "while ")

		if s.Cond != nil {
			b = p.formatExpr(b, s.Cond)
		} else {
			b = append(b, "true"...)
		}

		b = append(b, ' ')

		b, err = p.formatBranch(b, s.Body, d+1)
		if err != nil {
			return nil, errors.Wrap(err, "body")
		}

		if s.Update != nil {
			b = append(b, " then "...)

			b, err = p.formatBranch(b, s.Update, d+1)
			if err != nil {
				return nil, errors.Wrap(err, "update")
			}
		}

		b = append(b, '\n')
		b = app(b, d, "}")
	default:
		return nil, errors.New("unsupported stmt: %T", s)
	}

	return append(b, '\n'), nil
}

// formatBranch prints s as a block on the current line.
func (p *printer) formatBranch(b []byte, s ir.Stmt, d int) (_ []byte, err error) {
	if sc, ok := s.(*ir.Scope); ok {
		return p.formatScope(b, sc, d)
	}

	b = append(b, "{\n"...)

	b, err = p.formatStmt(b, s, d+1)
	if err != nil {
		return nil, err
	}

	return app(b, d, "}"), nil
}

func (p *printer) formatExpr(b []byte, x ir.Expr) []byte {
	switch x := x.(type) {
	case *ir.Int:
		if x.T.IsSigned() {
			return app(b, 0, "%d:%v", signExtend(x.Value, x.T.Size()), x.T)
		}

		return app(b, 0, "%d:%v", x.Value, x.T)
	case *ir.Float:
		return app(b, 0, "%v:%v", x.Value, x.T)
	case *ir.Var:
		return append(b, p.f.Locals[x.Index].Name...)
	case *ir.Deref:
		for i := 0; i < x.Count; i++ {
			b = append(b, '*')
		}

		return append(b, p.f.Locals[x.Var].Name...)
	case *ir.Operation:
		b = append(b, '(')
		b = p.formatExpr(b, x.L)
		b = app(b, 0, " %v ", x.Op)
		b = p.formatExpr(b, x.R)

		return append(b, ')')
	case *ir.SelfOperation:
		b = app(b, 0, "%v", x.Op)

		return p.formatExpr(b, x.X)
	case *ir.TypeCast:
		b = append(b, '(')
		b = p.formatExpr(b, x.X)

		return app(b, 0, " as %v)", x.Into)
	case *ir.Call:
		b = app(b, 0, "%s(", p.root.Funcs[x.Callee].Name)

		for i, a := range x.Args {
			if i != 0 {
				b = append(b, ", "...)
			}

			b = p.formatExpr(b, a)
		}

		return append(b, ')')
	}

	return app(b, 0, "<%T>", x)
}

func signExtend(v uint64, size int) int64 {
	if size >= 8 {
		return int64(v)
	}

	sh := 64 - 8*size

	return int64(v<<sh) >> sh
}

func app(b []byte, d int, f string, args ...any) []byte {
	const tabs = "\t\t\t\t\t\t\t\t\t\t\t\t\t\t\t"
	b = append(b, tabs[:min(d, len(tabs))]...)
	b = hfmt.Appendf(b, f, args...)
	return b
}
