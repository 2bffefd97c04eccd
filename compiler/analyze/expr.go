package analyze

import (
	"github.com/slowlang/slowc/compiler/ast"
	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/parse"
	"github.com/slowlang/slowc/compiler/tp"
)

var binOps = map[string]ir.Op{
	"+":  ir.Add,
	"-":  ir.Sub,
	"*":  ir.Mul,
	"/":  ir.Div,
	"%":  ir.Mod,
	"&":  ir.BitAnd,
	"|":  ir.BitOr,
	"^":  ir.BitXor,
	"<<": ir.Shl,
	">>": ir.Shr,
	"&&": ir.BoolAnd,
	"||": ir.BoolOr,
	"==": ir.Eq,
	"!=": ir.Ne,
	">":  ir.Gt,
	"<":  ir.Lt,
	">=": ir.Ge,
	"<=": ir.Le,
}

// expr types x. want is the type expected by the context,
// it only gives literals their type. TVoid means no expectation.
func (s *state) expr(x ast.Node, want tp.Type) (ir.Expr, error) {
	switch x := x.(type) {
	case *ast.Int:
		return s.intLit(x, want, false)
	case *ast.Float:
		return floatLit(x.Value, want), nil
	case *ast.Ident:
		return s.variable(x)
	case *ast.Call:
		return s.call(x, true)
	case *ast.Unary:
		return s.unary(x, want)
	case *ast.Binary:
		return s.binary(x, want)
	case *ast.Cast:
		return s.cast(x)
	}

	return nil, parse.NewError(parse.Syntax, x.Span().Pos, "unexpected expression %T", x)
}

func (s *state) intLit(x *ast.Int, want tp.Type, neg bool) (ir.Expr, error) {
	v := x.Value

	if want.IsFloat() {
		f := float64(v)
		if neg {
			f = -f
		}

		return &ir.Float{Value: f, T: want}, nil
	}

	t := want
	if !t.IsInteger() || t.IsPointer() {
		t = tp.TI32
	}

	bits := 8 * t.Size()

	limit := uint64(1)<<(bits-1) - 1
	if !t.IsSigned() && bits < 64 {
		limit = uint64(1)<<bits - 1
	} else if !t.IsSigned() {
		limit = ^uint64(0)
	} else if neg {
		limit++
	}

	if v > limit || neg && !t.IsSigned() && v != 0 {
		return nil, parse.NewError(parse.TypeMismatch, x.Pos, "constant %d overflows %v", x.Value, t)
	}

	if neg {
		v = -v
	}

	if bits < 64 {
		v &= uint64(1)<<bits - 1
	}

	return &ir.Int{Value: v, T: t}, nil
}

func floatLit(v float64, want tp.Type) *ir.Float {
	t := want
	if !t.IsFloat() {
		t = tp.TF64
	}

	return &ir.Float{Value: v, T: t}
}

// literal reports whether x has no type of its own.
func literal(x ast.Node) bool {
	switch x := x.(type) {
	case *ast.Int, *ast.Float:
		return true
	case *ast.Unary:
		return (x.Op == "-" || x.Op == "~") && literal(x.X)
	case *ast.Binary:
		op := binOps[x.Op]

		return !op.IsBoolean() && op != ir.Shl && op != ir.Shr && literal(x.Left) && literal(x.Right)
	}

	return false
}

func (s *state) unary(x *ast.Unary, want tp.Type) (ir.Expr, error) {
	switch x.Op {
	case "-":
		switch l := x.X.(type) {
		case *ast.Int:
			return s.intLit(l, want, true)
		case *ast.Float:
			return floatLit(-l.Value, want), nil
		}

		v, err := s.expr(x.X, want)
		if err != nil {
			return nil, err
		}

		t := v.Type()

		if !t.IsFloat() && (!t.IsInteger() || t.IsPointer()) {
			return nil, mismatch(x, "negation of %v", t)
		}

		var zero ir.Expr = &ir.Int{T: t}
		if t.IsFloat() {
			zero = &ir.Float{T: t}
		}

		return &ir.Operation{Op: ir.Sub, L: zero, R: v}, nil
	case "~":
		v, err := s.expr(x.X, want)
		if err != nil {
			return nil, err
		}

		t := v.Type()

		if !t.IsInteger() || t.IsPointer() {
			return nil, mismatch(x, "bitwise not of %v", t)
		}

		return &ir.SelfOperation{Op: ir.BitNot, X: v, T: t}, nil
	case "!":
		v, err := s.cond(x.X)
		if err != nil {
			return nil, err
		}

		return &ir.SelfOperation{Op: ir.BoolNot, X: v, T: tp.Bool}, nil
	case "&":
		v, err := s.lvalue(x.X)
		if e, ok := err.(*parse.Error); ok && e.Kind == parse.Syntax {
			return nil, parse.NewError(parse.Syntax, x.Pos, "cannot take address of expression")
		}
		if err != nil {
			return nil, err
		}

		return &ir.SelfOperation{Op: ir.AddrOf, X: v, T: tp.PointerTo(v.Type())}, nil
	case "*":
		if d, ok, err := s.derefVar(x); ok || err != nil {
			return d, err
		}

		v, err := s.expr(x.X, tp.TVoid)
		if err != nil {
			return nil, err
		}

		t := v.Type()

		if !t.IsPointer() {
			return nil, mismatch(x, "dereference of %v", t)
		}

		if t.Pointee().IsVoid() {
			return nil, mismatch(x, "dereference of void pointer")
		}

		return &ir.SelfOperation{Op: ir.DerefOp, X: v, T: t.Pointee()}, nil
	}

	return nil, parse.NewError(parse.NoSuchOperator, x.Pos, "no such operator %q", x.Op)
}

func (s *state) binary(x *ast.Binary, want tp.Type) (ir.Expr, error) {
	op, ok := binOps[x.Op]
	if !ok {
		return nil, parse.NewError(parse.NoSuchOperator, x.Pos, "no such operator %q", x.Op)
	}

	switch {
	case op.IsBoolean() && !op.IsComparison():
		l, err := s.cond(x.Left)
		if err != nil {
			return nil, err
		}

		r, err := s.cond(x.Right)
		if err != nil {
			return nil, err
		}

		return &ir.Operation{Op: op, L: l, R: r}, nil
	case op == ir.Shl || op == ir.Shr:
		l, err := s.expr(x.Left, want)
		if err != nil {
			return nil, err
		}

		r, err := s.expr(x.Right, tp.TVoid)
		if err != nil {
			return nil, err
		}

		for _, t := range []tp.Type{l.Type(), r.Type()} {
			if !t.IsInteger() || t.IsPointer() {
				return nil, mismatch(x, "shift of %v by %v", l.Type(), r.Type())
			}
		}

		return &ir.Operation{Op: op, L: l, R: r}, nil
	}

	if op.IsComparison() {
		want = tp.TVoid
	}

	l, r, err := s.pair(x.Left, x.Right, want)
	if err != nil {
		return nil, err
	}

	lt, rt := l.Type(), r.Type()

	if lt.IsPointer() && !op.IsComparison() {
		if op != ir.Add && op != ir.Sub || !rt.IsInteger() || rt.IsPointer() {
			return nil, mismatch(x, "invalid pointer arithmetic: %v %v %v", lt, x.Op, rt)
		}

		if lt.Pointee().IsVoid() {
			return nil, mismatch(x, "arithmetic on void pointer")
		}

		return &ir.Operation{Op: op, L: l, R: r}, nil
	}

	if lt != rt {
		return nil, mismatch(x, "operands of %v: %v and %v", x.Op, lt, rt)
	}

	if lt.IsVoid() {
		return nil, mismatch(x, "void operands of %v", x.Op)
	}

	if lt.IsFloat() && (op == ir.Mod || op == ir.BitAnd || op == ir.BitOr || op == ir.BitXor) {
		return nil, mismatch(x, "operator %v on %v", x.Op, lt)
	}

	return &ir.Operation{Op: op, L: l, R: r}, nil
}

// pair types both operands so that a literal takes the type of the other side.
func (s *state) pair(lx, rx ast.Node, want tp.Type) (l, r ir.Expr, err error) {
	if literal(lx) && !literal(rx) {
		r, err = s.expr(rx, want)
		if err != nil {
			return nil, nil, err
		}

		l, err = s.expr(lx, hint(r.Type()))

		return l, r, err
	}

	l, err = s.expr(lx, want)
	if err != nil {
		return nil, nil, err
	}

	r, err = s.expr(rx, hint(l.Type()))

	return l, r, err
}

// hint is the literal type expected next to an operand of type t.
func hint(t tp.Type) tp.Type {
	if t.IsPointer() {
		return tp.TI64
	}

	return t
}

func (s *state) cast(x *ast.Cast) (ir.Expr, error) {
	into, err := s.typ(x.Type)
	if err != nil {
		return nil, err
	}

	v, err := s.expr(x.X, tp.TVoid)
	if err != nil {
		return nil, err
	}

	from := v.Type()

	switch {
	case from.IsVoid() || into.IsVoid():
		return nil, mismatch(x, "cast from %v to %v", from, into)
	case from.IsPointer() && into.IsFloat(), from.IsFloat() && into.IsPointer():
		return nil, mismatch(x, "cast from %v to %v", from, into)
	case from == into:
		s.warn(x.Type.Pos, "redundant cast to %v", into)
	}

	return &ir.TypeCast{From: from, Into: into, X: v}, nil
}

func (s *state) call(x *ast.Call, value bool) (*ir.Call, error) {
	idx, ok := s.funcs[x.Name.Name]
	if !ok {
		return nil, parse.NewError(parse.UnknownIdent, x.Name.Pos, "function %v", x.Name.Name)
	}

	f := s.root.Funcs[idx]

	if len(x.Args) != f.Params {
		return nil, parse.NewError(parse.ArgCount, x.Pos, "%v takes %d arguments, got %d", f.Name, f.Params, len(x.Args))
	}

	if value && f.Return.IsVoid() {
		return nil, parse.NewError(parse.TypeMismatch, x.Pos, "%v returns no value", f.Name)
	}

	c := &ir.Call{Callee: idx, T: f.Return}

	for i, a := range x.Args {
		want := f.Locals[i].Type

		v, err := s.expr(a, want)
		if err != nil {
			return nil, err
		}

		if v.Type() != want {
			return nil, mismatch(a, "argument %d of %v: cannot use %v as %v", i+1, f.Name, v.Type(), want)
		}

		c.Args = append(c.Args, v)
	}

	return c, nil
}
