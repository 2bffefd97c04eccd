package analyze

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/parse"
	"github.com/slowlang/slowc/compiler/tp"
)

func analyze(t *testing.T, src string) (*ir.Root, *Analyzer, error) {
	t.Helper()

	ctx := context.Background()

	st := parse.New()
	st.AddFile("a.slow", []byte(src))

	x, err := st.Parse(ctx)
	require.NoError(t, err)

	a := New(st)

	root, err := a.Analyze(ctx, x)

	return root, a, err
}

func errKind(t *testing.T, err error) parse.Kind {
	t.Helper()

	var e *parse.Error
	require.ErrorAs(t, err, &e)

	return e.Kind
}

func TestAnalyzeAdd(t *testing.T) {
	root, _, err := analyze(t, `func global add(a i32, b i32) -> i32 { return a + b; }`)
	require.NoError(t, err)
	require.Len(t, root.Funcs, 1)

	f := root.Funcs[0]
	assert.Equal(t, "add", f.Name)
	assert.True(t, f.Attr.Has(ir.Global))
	assert.Equal(t, 2, f.Params)
	assert.Equal(t, tp.TI32, f.Return)

	require.Len(t, f.Body.Stmts, 1)

	r := f.Body.Stmts[0].(*ir.Return)
	assert.Equal(t, &ir.Operation{
		Op: ir.Add,
		L:  &ir.Var{Index: 0, T: tp.TI32},
		R:  &ir.Var{Index: 1, T: tp.TI32},
	}, r.X)
}

func TestAnalyzeLiteralTyping(t *testing.T) {
	root, _, err := analyze(t, `func f(x u8, d f64) -> void {
	let a = 1;
	let b i64 = 2;
	let c = x + 3;
	let e = 4 + x;
	let g = d * 2;
	let h = -5;
}`)
	require.NoError(t, err)

	f := root.Funcs[0]

	types := map[string]tp.Type{}
	for _, v := range f.Locals {
		types[v.Name] = v.Type
	}

	assert.Equal(t, map[string]tp.Type{
		"x": tp.TU8,
		"d": tp.TF64,
		"a": tp.TI32,
		"b": tp.TI64,
		"c": tp.TU8,
		"e": tp.TU8,
		"g": tp.TF64,
		"h": tp.TI32,
	}, types)

	g := f.Body.Stmts[4].(*ir.Assign).Src.(*ir.Operation)
	assert.Equal(t, &ir.Float{Value: 2, T: tp.TF64}, g.R)

	h := f.Body.Stmts[5].(*ir.Assign).Src
	assert.Equal(t, &ir.Int{Value: 0xfffffffb, T: tp.TI32}, h)
}

func TestAnalyzeConstantOverflow(t *testing.T) {
	_, _, err := analyze(t, `func f() -> void { let a u8 = 256; }`)
	assert.Equal(t, parse.TypeMismatch, errKind(t, err))

	_, _, err = analyze(t, `func f() -> void { let a i8 = -128; let b u8 = 255; }`)
	assert.NoError(t, err)

	_, _, err = analyze(t, `func f() -> void { let a i8 = 128; }`)
	assert.Equal(t, parse.TypeMismatch, errKind(t, err))
}

func TestAnalyzeTypeMismatch(t *testing.T) {
	for _, src := range []string{
		`func f(a i32, b i64) -> i32 { return a + b; }`,
		`func f(a i32) -> i64 { return a; }`,
		`func f(a f64) -> f64 { return a % a; }`,
		`func f(a f32) -> f32 { return a << 1; }`,
		`func f(p *i32, q *i32) -> *i32 { return p + q; }`,
		`func f(p *i32) -> *i32 { return p * 2; }`,
		`func f(p *void) -> void { let x = *p; }`,
		`func f(a i32) -> void { let x = *a; }`,
		`func f(a f64) -> void { if (a) { return; } }`,
		`func f() -> void { return 1; }`,
		`func f() -> i32 { return; }`,
		`func g() -> void; func f() -> i32 { return g(); }`,
		`func f(p *i32) -> f64 { return p as f64; }`,
		`func f(a i32) -> void { let x void = a; }`,
	} {
		_, _, err := analyze(t, src)
		assert.Equal(t, parse.TypeMismatch, errKind(t, err), "%s", src)
	}
}

func TestAnalyzeUnknownIdent(t *testing.T) {
	_, _, err := analyze(t, `func f() -> i32 { return x; }`)
	assert.Equal(t, parse.UnknownIdent, errKind(t, err))

	_, _, err = analyze(t, `func f() -> i32 { return g(); }`)
	assert.Equal(t, parse.UnknownIdent, errKind(t, err))

	// a block scope ends with the block
	_, _, err = analyze(t, `func f() -> i32 { { let a = 1; } return a; }`)
	assert.Equal(t, parse.UnknownIdent, errKind(t, err))

	// the name is not visible in its own initializer
	_, _, err = analyze(t, `func f() -> i32 { let a = a; return a; }`)
	assert.Equal(t, parse.UnknownIdent, errKind(t, err))
}

func TestAnalyzeArgCount(t *testing.T) {
	_, _, err := analyze(t, `func g(a i32) -> i32 { return a; } func f() -> i32 { return g(1, 2); }`)
	assert.Equal(t, parse.ArgCount, errKind(t, err))
}

func TestAnalyzeCallsLaterFunction(t *testing.T) {
	root, _, err := analyze(t, `
func f() -> i64 { return g(1, 2.5); }
func g(a i64, b f32) -> i64 { return a; }
`)
	require.NoError(t, err)

	c := root.Funcs[0].Body.Stmts[0].(*ir.Return).X.(*ir.Call)
	assert.Equal(t, 1, c.Callee)
	assert.Equal(t, []ir.Expr{
		&ir.Int{Value: 1, T: tp.TI64},
		&ir.Float{Value: 2.5, T: tp.TF32},
	}, c.Args)
}

func TestAnalyzeDeclarationThenDefinition(t *testing.T) {
	root, _, err := analyze(t, `
func g(a i32) -> i32;
func f() -> i32 { return g(1); }
func global g(a i32) -> i32 { return a; }
func extern puts(s *u8) -> i32;
`)
	require.NoError(t, err)
	require.Len(t, root.Funcs, 3)

	assert.NotNil(t, root.Funcs[0].Body)
	assert.True(t, root.Funcs[0].Attr.Has(ir.Global))
	assert.True(t, root.Funcs[2].Attr.Has(ir.Extern))
	assert.Nil(t, root.Funcs[2].Body)

	_, _, err = analyze(t, `func g(a i32) -> i32; func g(a i64) -> i32 { return 0; }`)
	assert.Equal(t, parse.Syntax, errKind(t, err))

	_, _, err = analyze(t, `func g() -> void {} func g() -> void {}`)
	assert.Equal(t, parse.Syntax, errKind(t, err))
}

func TestAnalyzeDeref(t *testing.T) {
	root, _, err := analyze(t, `func f(p **i64) -> i64 {
	**p = 3;
	let q = &p;
	return **p + *(*p + 1);
}`)
	require.NoError(t, err)

	f := root.Funcs[0]

	a := f.Body.Stmts[0].(*ir.Assign)
	assert.Equal(t, &ir.Deref{Var: 0, Count: 2, T: tp.TI64}, a.Dst)
	assert.Equal(t, &ir.Int{Value: 3, T: tp.TI64}, a.Src)

	q := f.Body.Stmts[1].(*ir.Assign)
	assert.Equal(t, tp.Type{Kind: tp.Pointer, Elem: tp.I64, Depth: 3}, q.Src.Type())

	r := f.Body.Stmts[2].(*ir.Return).X.(*ir.Operation)
	assert.Equal(t, &ir.Deref{Var: 0, Count: 2, T: tp.TI64}, r.L)

	d := r.R.(*ir.SelfOperation)
	assert.Equal(t, ir.DerefOp, d.Op)
	assert.Equal(t, tp.TI64, d.T)

	ptr := d.X.(*ir.Operation)
	assert.Equal(t, &ir.Int{Value: 1, T: tp.TI64}, ptr.R)
}

func TestAnalyzeCompoundAssign(t *testing.T) {
	root, _, err := analyze(t, `func f(a u16) -> u16 { a <<= 2; a += 1; return a; }`)
	require.NoError(t, err)

	st := root.Funcs[0].Body.Stmts

	shl := st[0].(*ir.Assign)
	assert.Equal(t, &ir.Var{Index: 0, T: tp.TU16}, shl.Dst)
	assert.Equal(t, ir.Shl, shl.Src.(*ir.Operation).Op)

	add := st[1].(*ir.Assign)
	assert.Equal(t, &ir.Operation{
		Op: ir.Add,
		L:  &ir.Var{Index: 0, T: tp.TU16},
		R:  &ir.Int{Value: 1, T: tp.TU16},
	}, add.Src)
}

func TestAnalyzeScopes(t *testing.T) {
	root, _, err := analyze(t, `func f(n i32) -> i32 {
	let s = 0;
	for (let i = 0; i < n; i += 1) {
		let t = i;
		s += t;
	}
	if (s > 10) {
		let u = s;
		return u;
	}
	return s;
}`)
	require.NoError(t, err)

	f := root.Funcs[0]

	assert.Equal(t, []int{1}, f.Body.Locals)

	loop := f.Body.Stmts[1].(*ir.For)
	assert.Equal(t, []int{2}, loop.Locals)
	assert.Equal(t, []int{3}, loop.Body.(*ir.Scope).Locals)
	assert.Equal(t, tp.Bool, loop.Cond.Type())

	br := f.Body.Stmts[2].(*ir.If)
	assert.Equal(t, []int{4}, br.Then.(*ir.Scope).Locals)
	assert.Nil(t, br.Else)

	require.Len(t, f.Locals, 5)
}

func TestAnalyzeShadowing(t *testing.T) {
	root, _, err := analyze(t, `func f(a i32) -> i64 { { let a i64 = 1; return a; } }`)
	require.NoError(t, err)

	in := root.Funcs[0].Body.Stmts[0].(*ir.Scope)
	r := in.Stmts[1].(*ir.Return)
	assert.Equal(t, &ir.Var{Index: 1, T: tp.TI64}, r.X)

	_, _, err = analyze(t, `func f() -> void { let a = 1; let a = 2; }`)
	assert.Equal(t, parse.Syntax, errKind(t, err))
}

func TestAnalyzeUnaryAndLogic(t *testing.T) {
	root, _, err := analyze(t, `func f(a i32, b i64) -> u8 { return !a && b || ~a == -a; }`)
	require.NoError(t, err)

	r := root.Funcs[0].Body.Stmts[0].(*ir.Return).X.(*ir.Operation)
	assert.Equal(t, ir.BoolOr, r.Op)
	assert.Equal(t, tp.Bool, r.Type())

	and := r.L.(*ir.Operation)
	assert.Equal(t, ir.BoolAnd, and.Op)
	assert.Equal(t, &ir.SelfOperation{Op: ir.BoolNot, X: &ir.Var{Index: 0, T: tp.TI32}, T: tp.Bool}, and.L)

	eq := r.R.(*ir.Operation)
	assert.Equal(t, ir.Eq, eq.Op)
	assert.Equal(t, &ir.Operation{Op: ir.Sub, L: &ir.Int{T: tp.TI32}, R: &ir.Var{Index: 0, T: tp.TI32}}, eq.R)
}

func TestAnalyzeCasts(t *testing.T) {
	root, a, err := analyze(t, `func f(a i32) -> f32 { let b = a as i32; return (a as i64) as f32; }`)
	require.NoError(t, err)

	require.Len(t, a.Warnings, 1)
	assert.Contains(t, a.Warnings[0].Msg, "redundant cast")

	r := root.Funcs[0].Body.Stmts[1].(*ir.Return).X.(*ir.TypeCast)
	assert.Equal(t, tp.TI64, r.From)
	assert.Equal(t, tp.TF32, r.Into)

	_, _, err = analyze(t, `func f(a i32) -> void { let b = a as void; }`)
	assert.Equal(t, parse.TypeMismatch, errKind(t, err))
}

func TestAnalyzeBadStatements(t *testing.T) {
	_, _, err := analyze(t, `func f(a i32) -> void { a + 1 = 2; }`)
	assert.Equal(t, parse.Syntax, errKind(t, err))

	_, _, err = analyze(t, `func f(a i32) -> void { let p = &(a + 1); }`)
	assert.Equal(t, parse.Syntax, errKind(t, err))

	_, _, err = analyze(t, `func f(a void) -> void { }`)
	assert.Equal(t, parse.TypeMismatch, errKind(t, err))
}
