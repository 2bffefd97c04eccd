package analyze

import (
	"github.com/slowlang/slowc/compiler/ast"
	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/parse"
	"github.com/slowlang/slowc/compiler/tp"
)

func (s *state) stmts(sc *ir.Scope, list []ast.Node) error {
	for _, x := range list {
		st, err := s.stmt(x)
		if err != nil {
			return err
		}

		if st != nil {
			sc.Stmts = append(sc.Stmts, st)
		}
	}

	return nil
}

// stmt returns nil for declarations without a value.
func (s *state) stmt(x ast.Node) (ir.Stmt, error) {
	switch x := x.(type) {
	case *ast.Block:
		sc := &ir.Scope{}

		s.push(&sc.Locals)
		defer s.pop()

		err := s.stmts(sc, x.Stmts)
		if err != nil {
			return nil, err
		}

		return sc, nil
	case *ast.Let:
		return s.let(x)
	case *ast.Assign:
		return s.assign(x)
	case *ast.Return:
		return s.ret(x)
	case *ast.If:
		return s.ifStmt(x)
	case *ast.For:
		return s.forStmt(x)
	case *ast.ExprStmt:
		c, ok := x.X.(*ast.Call)
		if !ok {
			return nil, parse.NewError(parse.Syntax, x.Pos, "expression is not a statement")
		}

		return s.call(c, false)
	}

	return nil, parse.NewError(parse.Syntax, x.Span().Pos, "unexpected statement %T", x)
}

// nested analyzes a branch or a loop body in its own scope.
func (s *state) nested(x ast.Node) (ir.Stmt, error) {
	if _, ok := x.(*ast.Block); ok {
		return s.stmt(x)
	}

	sc := &ir.Scope{}

	s.push(&sc.Locals)
	defer s.pop()

	st, err := s.stmt(x)
	if err != nil {
		return nil, err
	}

	if len(sc.Locals) == 0 {
		return st, nil
	}

	if st != nil {
		sc.Stmts = append(sc.Stmts, st)
	}

	return sc, nil
}

func (s *state) let(x *ast.Let) (st ir.Stmt, err error) {
	var t tp.Type

	if x.Type != nil {
		t, err = s.typ(x.Type)
		if err != nil {
			return nil, err
		}

		if t.IsVoid() {
			return nil, parse.NewError(parse.TypeMismatch, x.Type.Pos, "variable %v of type void", x.Name.Name)
		}
	}

	var val ir.Expr

	if x.Value != nil {
		val, err = s.expr(x.Value, t)
		if err != nil {
			return nil, err
		}

		if x.Type == nil {
			t = val.Type()
		}

		if t.IsVoid() {
			return nil, parse.NewError(parse.TypeMismatch, x.Value.Span().Pos, "void value assigned to %v", x.Name.Name)
		}

		if val.Type() != t {
			return nil, mismatch(x.Value, "cannot assign %v to %v of type %v", val.Type(), x.Name.Name, t)
		}
	}

	// the name is visible after its initializer
	idx, err := s.local(x.Name, t)
	if err != nil {
		return nil, err
	}

	if val == nil {
		return nil, nil
	}

	return &ir.Assign{Dst: &ir.Var{Index: idx, T: t}, Src: val}, nil
}

func (s *state) assign(x *ast.Assign) (st ir.Stmt, err error) {
	dst, err := s.lvalue(x.Dst)
	if err != nil {
		return nil, err
	}

	src := x.Src
	if x.Op != "" {
		src = &ast.Binary{Base: x.Base, Op: x.Op, Left: x.Dst, Right: x.Src}
	}

	val, err := s.expr(src, dst.Type())
	if err != nil {
		return nil, err
	}

	if val.Type() != dst.Type() {
		return nil, mismatch(x.Src, "cannot assign %v to %v", val.Type(), dst.Type())
	}

	return &ir.Assign{Dst: dst, Src: val}, nil
}

func (s *state) ret(x *ast.Return) (st ir.Stmt, err error) {
	want := s.f.Return

	if x.Value == nil {
		if !want.IsVoid() {
			return nil, parse.NewError(parse.TypeMismatch, x.Pos, "missing return value of type %v", want)
		}

		return &ir.Return{}, nil
	}

	if want.IsVoid() {
		return nil, parse.NewError(parse.TypeMismatch, x.Value.Span().Pos, "return value in void function %v", s.f.Name)
	}

	val, err := s.expr(x.Value, want)
	if err != nil {
		return nil, err
	}

	if val.Type() != want {
		return nil, mismatch(x.Value, "cannot return %v from function returning %v", val.Type(), want)
	}

	return &ir.Return{X: val}, nil
}

func (s *state) ifStmt(x *ast.If) (st ir.Stmt, err error) {
	r := &ir.If{}

	r.Cond, err = s.cond(x.Cond)
	if err != nil {
		return nil, err
	}

	r.Then, err = s.nested(x.Then)
	if err != nil {
		return nil, err
	}

	if x.Else != nil {
		r.Else, err = s.nested(x.Else)
		if err != nil {
			return nil, err
		}
	}

	return r, nil
}

func (s *state) forStmt(x *ast.For) (st ir.Stmt, err error) {
	r := &ir.For{}

	s.push(&r.Locals)
	defer s.pop()

	if x.Init != nil {
		r.Init, err = s.stmt(x.Init)
		if err != nil {
			return nil, err
		}
	}

	if x.Cond != nil {
		r.Cond, err = s.cond(x.Cond)
		if err != nil {
			return nil, err
		}
	}

	if x.Update != nil {
		r.Update, err = s.stmt(x.Update)
		if err != nil {
			return nil, err
		}
	}

	r.Body, err = s.nested(x.Body)
	if err != nil {
		return nil, err
	}

	return r, nil
}

func (s *state) cond(x ast.Node) (ir.Expr, error) {
	c, err := s.expr(x, tp.TVoid)
	if err != nil {
		return nil, err
	}

	if !c.Type().IsInteger() {
		return nil, mismatch(x, "condition of type %v", c.Type())
	}

	return c, nil
}

func (s *state) lvalue(x ast.Node) (ir.Lvalue, error) {
	switch x := x.(type) {
	case *ast.Ident:
		return s.variable(x)
	case *ast.Unary:
		if x.Op != "*" {
			break
		}

		if d, ok, err := s.derefVar(x); ok || err != nil {
			return d, err
		}
	}

	return nil, parse.NewError(parse.Syntax, x.Span().Pos, "cannot assign to expression")
}

func (s *state) variable(x *ast.Ident) (*ir.Var, error) {
	idx, ok := s.lookup(x.Name)
	if !ok {
		return nil, parse.NewError(parse.UnknownIdent, x.Pos, "%v", x.Name)
	}

	return &ir.Var{Index: idx, T: s.f.Locals[idx].Type}, nil
}

// derefVar turns a chain of dereferences of a variable into a single Deref.
func (s *state) derefVar(x *ast.Unary) (d *ir.Deref, ok bool, err error) {
	cnt := 0
	var n ast.Node = x

	for {
		u, isu := n.(*ast.Unary)
		if !isu || u.Op != "*" {
			break
		}

		cnt++
		n = u.X
	}

	id, isid := n.(*ast.Ident)
	if !isid {
		return nil, false, nil
	}

	v, err := s.variable(id)
	if err != nil {
		return nil, false, err
	}

	t, err := v.T.Deref(cnt)
	if err != nil {
		return nil, false, parse.NewError(parse.TypeMismatch, x.Pos, "dereference of %v of type %v", id.Name, v.T)
	}

	if t.IsVoid() {
		return nil, false, parse.NewError(parse.TypeMismatch, x.Pos, "dereference of void pointer %v", id.Name)
	}

	return &ir.Deref{Var: v.Index, Count: cnt, T: t}, true, nil
}

func mismatch(x ast.Node, format string, args ...any) *parse.Error {
	return parse.NewError(parse.TypeMismatch, x.Span().Pos, format, args...)
}
