package analyze

import (
	"context"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slowc/compiler/ast"
	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/parse"
	"github.com/slowlang/slowc/compiler/tp"
)

type (
	Analyzer struct {
		st *parse.State

		Warnings []Warning
	}

	Warning struct {
		Pos int
		Msg string
	}

	state struct {
		*Analyzer

		ctx context.Context

		root  *ir.Root
		funcs map[string]int

		f      *ir.Function
		scopes []scope
	}

	scope struct {
		names  map[string]int
		locals *[]int
	}
)

func New(st *parse.State) *Analyzer {
	return &Analyzer{st: st}
}

// Analyze resolves names and types of x and builds the typed IR.
func (a *Analyzer) Analyze(ctx context.Context, x *ast.File) (root *ir.Root, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "analyze", "funcs", len(x.Funcs))
	defer tr.Finish("err", &err)

	s := &state{
		Analyzer: a,
		ctx:      ctx,
		root:     &ir.Root{},
		funcs:    map[string]int{},
	}

	bodies := make([]*ast.Func, 0, len(x.Funcs))

	for _, fn := range x.Funcs {
		idx, err := s.declare(fn)
		if err != nil {
			return nil, err
		}

		for len(bodies) <= idx {
			bodies = append(bodies, nil)
		}

		if fn.Body != nil {
			bodies[idx] = fn
		}
	}

	for i, fn := range bodies {
		if fn == nil {
			continue
		}

		err = s.function(s.root.Funcs[i], fn)
		if err != nil {
			return nil, errors.Wrap(err, "func %v", fn.Name.Name)
		}
	}

	if tr.If("dump_ir") {
		tr.Printw("ir", "funcs", len(s.root.Funcs), "warnings", len(a.Warnings))
	}

	return s.root, nil
}

// declare adds the signature of fn. A declaration may precede
// the definition if the signatures match.
func (s *state) declare(fn *ast.Func) (idx int, err error) {
	f := &ir.Function{
		Name: fn.Name.Name,
	}

	for _, at := range fn.Attrs {
		switch at.Name {
		case "global":
			f.Attr |= ir.Global
		case "extern":
			f.Attr |= ir.Extern
		}
	}

	f.Return, err = s.typ(fn.Ret)
	if err != nil {
		return 0, err
	}

	for _, p := range fn.Params {
		t, err := s.typ(p.Type)
		if err != nil {
			return 0, err
		}

		if t.IsVoid() {
			return 0, parse.NewError(parse.TypeMismatch, p.Type.Pos, "parameter %v of type void", p.Name.Name)
		}

		for _, v := range f.Locals {
			if v.Name == p.Name.Name {
				return 0, parse.NewError(parse.Syntax, p.Name.Pos, "parameter %v redeclared", p.Name.Name)
			}
		}

		f.Locals = append(f.Locals, ir.Variable{
			Name:  p.Name.Name,
			Type:  t,
			Attr:  ir.Param,
			Index: len(f.Locals),
		})
	}

	f.Params = len(f.Locals)

	if fn.Body != nil {
		f.Body = &ir.Scope{}
	}

	idx, ok := s.funcs[f.Name]
	if !ok {
		idx = len(s.root.Funcs)

		s.funcs[f.Name] = idx
		s.root.Funcs = append(s.root.Funcs, f)

		return idx, nil
	}

	prev := s.root.Funcs[idx]

	if prev.Body != nil && f.Body != nil || !sameSignature(prev, f) {
		return 0, parse.NewError(parse.Syntax, fn.Name.Pos, "function %v redeclared", f.Name)
	}

	if f.Body == nil {
		prev.Attr |= f.Attr

		return idx, nil
	}

	// the definition replaces the declaration
	f.Attr |= prev.Attr
	s.root.Funcs[idx] = f

	return idx, nil
}

func sameSignature(a, b *ir.Function) bool {
	if a.Return != b.Return || a.Params != b.Params {
		return false
	}

	for i := 0; i < a.Params; i++ {
		if a.Locals[i].Type != b.Locals[i].Type {
			return false
		}
	}

	return true
}

func (s *state) function(f *ir.Function, fn *ast.Func) (err error) {
	tr := tlog.SpanFromContext(s.ctx)

	s.f = f
	f.Attr &^= ir.Extern
	f.Body = &ir.Scope{}

	s.push(&f.Body.Locals)
	defer s.pop()

	for i := 0; i < f.Params; i++ {
		s.scopes[0].names[f.Locals[i].Name] = i
	}

	err = s.stmts(f.Body, fn.Body.Stmts)
	if err != nil {
		return err
	}

	if tr.If("dump_func") {
		tr.Printw("function", "name", f.Name, "locals", len(f.Locals), "stmts", len(f.Body.Stmts))
	}

	return nil
}

func (s *state) typ(x *ast.Type) (t tp.Type, err error) {
	t, ok := tp.Parse(x.Name)
	if !ok {
		return t, parse.NewError(parse.Syntax, x.Pos, "unknown type %v", x.Name)
	}

	for i := 0; i < x.Depth; i++ {
		t = tp.PointerTo(t)
	}

	return t, nil
}

func (s *state) push(locals *[]int) {
	s.scopes = append(s.scopes, scope{
		names:  map[string]int{},
		locals: locals,
	})
}

func (s *state) pop() {
	s.scopes = s.scopes[:len(s.scopes)-1]
}

func (s *state) lookup(name string) (int, bool) {
	for i := len(s.scopes) - 1; i >= 0; i-- {
		if idx, ok := s.scopes[i].names[name]; ok {
			return idx, true
		}
	}

	return 0, false
}

// local declares a variable in the innermost scope.
func (s *state) local(id *ast.Ident, t tp.Type) (int, error) {
	sc := s.scopes[len(s.scopes)-1]

	if _, ok := sc.names[id.Name]; ok {
		return 0, parse.NewError(parse.Syntax, id.Pos, "variable %v redeclared", id.Name)
	}

	idx := len(s.f.Locals)

	s.f.Locals = append(s.f.Locals, ir.Variable{
		Name:  id.Name,
		Type:  t,
		Index: idx,
	})

	sc.names[id.Name] = idx
	*sc.locals = append(*sc.locals, idx)

	return idx, nil
}

func (s *state) warn(pos int, format string, args ...any) {
	w := Warning{Pos: pos, Msg: parse.NewError(0, pos, format, args...).Msg}

	s.Warnings = append(s.Warnings, w)

	var line int
	if s.st != nil {
		_, line, _ = s.st.Position(pos)
	}

	tlog.SpanFromContext(s.ctx).Printw("warning", "msg", w.Msg, "line", line)
}
