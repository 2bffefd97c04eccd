package parse

import (
	"context"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/slowlang/slowc/compiler/ast"
)

func parse(t *testing.T, src string) (*State, *ast.File, error) {
	t.Helper()

	s := New()
	s.AddFile("main.slow", []byte(src))

	x, err := s.Parse(context.Background())

	return s, x, err
}

func kind(t *testing.T, err error) Kind {
	t.Helper()

	var e *Error
	require.ErrorAs(t, err, &e)

	return e.Kind
}

func TestParseFunc(t *testing.T) {
	_, x, err := parse(t, `// comment
func global main(argc i32, argv **u8) -> i32 {
	return 0;
}

func extern puts(s *u8) -> i32;
`)
	require.NoError(t, err)
	require.Len(t, x.Funcs, 2)

	f := x.Funcs[0]
	assert.Equal(t, "main", f.Name.Name)
	require.Len(t, f.Attrs, 1)
	assert.Equal(t, "global", f.Attrs[0].Name)

	require.Len(t, f.Params, 2)
	assert.Equal(t, "argv", f.Params[1].Name.Name)
	assert.Equal(t, "u8", f.Params[1].Type.Name)
	assert.Equal(t, 2, f.Params[1].Type.Depth)
	assert.Equal(t, "i32", f.Ret.Name)

	require.NotNil(t, f.Body)
	require.Len(t, f.Body.Stmts, 1)
	assert.Equal(t, &ast.Int{Base: ast.Base{Pos: 66, End: 67}, Value: 0}, f.Body.Stmts[0].(*ast.Return).Value)

	assert.Nil(t, x.Funcs[1].Body)
	assert.Equal(t, "extern", x.Funcs[1].Attrs[0].Name)
}

func TestParsePrecedence(t *testing.T) {
	_, x, err := parse(t, `func f() -> void { let a = 1 + 2 * 3 << 1 < 4 == 1 && 2 || 3; }`)
	require.NoError(t, err)

	v := x.Funcs[0].Body.Stmts[0].(*ast.Let).Value

	or := v.(*ast.Binary)
	assert.Equal(t, "||", or.Op)

	and := or.Left.(*ast.Binary)
	assert.Equal(t, "&&", and.Op)

	eq := and.Left.(*ast.Binary)
	assert.Equal(t, "==", eq.Op)

	lt := eq.Left.(*ast.Binary)
	assert.Equal(t, "<", lt.Op)

	shl := lt.Left.(*ast.Binary)
	assert.Equal(t, "<<", shl.Op)

	add := shl.Left.(*ast.Binary)
	assert.Equal(t, "+", add.Op)

	mul := add.Right.(*ast.Binary)
	assert.Equal(t, "*", mul.Op)
}

func TestParseLeftAssociative(t *testing.T) {
	_, x, err := parse(t, `func f() -> void { let a = 10 - 3 - 2; }`)
	require.NoError(t, err)

	sub := x.Funcs[0].Body.Stmts[0].(*ast.Let).Value.(*ast.Binary)
	assert.Equal(t, "-", sub.Op)
	assert.Equal(t, uint64(2), sub.Right.(*ast.Int).Value)

	in := sub.Left.(*ast.Binary)
	assert.Equal(t, uint64(10), in.Left.(*ast.Int).Value)
	assert.Equal(t, uint64(3), in.Right.(*ast.Int).Value)
}

func TestParseUnaryAndCast(t *testing.T) {
	_, x, err := parse(t, `func f(p *i32) -> void { let a = -*p as i64 as f32; }`)
	require.NoError(t, err)

	neg := x.Funcs[0].Body.Stmts[0].(*ast.Let).Value.(*ast.Unary)
	assert.Equal(t, "-", neg.Op)

	outer := neg.X.(*ast.Unary)
	assert.Equal(t, "*", outer.Op)

	c := outer.X.(*ast.Cast)
	assert.Equal(t, "f32", c.Type.Name)

	in := c.X.(*ast.Cast)
	assert.Equal(t, "i64", in.Type.Name)
	assert.Equal(t, "p", in.X.(*ast.Ident).Name)
}

func TestParseNumbers(t *testing.T) {
	_, x, err := parse(t, `func f() -> void { g(0x1f, 0b101, 0o17, 1_000, 1.5, 2e3, .25); }`)
	require.NoError(t, err)

	args := x.Funcs[0].Body.Stmts[0].(*ast.ExprStmt).X.(*ast.Call).Args

	var got []any
	for _, a := range args {
		switch a := a.(type) {
		case *ast.Int:
			got = append(got, a.Value)
		case *ast.Float:
			got = append(got, a.Value)
		}
	}

	assert.Equal(t, []any{uint64(31), uint64(5), uint64(15), uint64(1000), 1.5, 2000.0, 0.25}, got)
}

func TestParseStatements(t *testing.T) {
	_, x, err := parse(t, `func f(n i32) -> void {
	let s i32;
	for (let i = 0; i < n; i += 1) s += i;
	for (;;) { return; }
	if (n) { s = 1; } else if (s) s = 2; else { s = 3; }
	*&s = 4;
	g();
}`)
	require.NoError(t, err)

	st := x.Funcs[0].Body.Stmts
	require.Len(t, st, 6)

	l := st[0].(*ast.Let)
	assert.Nil(t, l.Value)
	assert.Equal(t, "i32", l.Type.Name)

	loop := st[1].(*ast.For)
	assert.IsType(t, &ast.Let{}, loop.Init)
	assert.IsType(t, &ast.Binary{}, loop.Cond)
	assert.Equal(t, "+", loop.Update.(*ast.Assign).Op)
	assert.Equal(t, "+", loop.Body.(*ast.Assign).Op)

	inf := st[2].(*ast.For)
	assert.Nil(t, inf.Init)
	assert.Nil(t, inf.Cond)
	assert.Nil(t, inf.Update)

	br := st[3].(*ast.If)
	assert.IsType(t, &ast.If{}, br.Else)
	assert.IsType(t, &ast.Block{}, br.Else.(*ast.If).Else)

	a := st[4].(*ast.Assign)
	assert.Equal(t, "", a.Op)
	assert.IsType(t, &ast.Unary{}, a.Dst)

	assert.IsType(t, &ast.ExprStmt{}, st[5])
}

func TestParseErrors(t *testing.T) {
	for _, tc := range []struct {
		src  string
		kind Kind
		pos  int
	}{
		{`func f() -> void {`, UnexpectedEOF, 18},
		{`func f() -> void { return 1 }`, Syntax, 28},
		{`func f() -> void { let a = 1 @ 2; }`, NoSuchOperator, 29},
		{`func f() -> void { let a = 1 $$ 2; }`, NoSuchOperator, 29},
		{`func f() -> void { a + 1; }`, Syntax, 19},
		{`func f() -> i33 {}`, Syntax, 12},
		{`func let() -> void {}`, Syntax, 5},
		{`fn f() -> void {}`, Syntax, 0},
		{`func f(a i32 -> void {}`, Syntax, 13},
		{`func f() -> void { let a; }`, Syntax, 24},
		{`func f() -> void { let a = 0x; }`, Syntax, 27},
	} {
		_, _, err := parse(t, tc.src)

		var e *Error
		if assert.ErrorAs(t, err, &e, "%s", tc.src) {
			assert.Equal(t, tc.kind, e.Kind, "%s: %v", tc.src, e)
			assert.Equal(t, tc.pos, e.Pos, "%s: %v", tc.src, e)
		}
	}
}

func TestIncludeOnce(t *testing.T) {
	files := map[string]string{
		"lib/a.slow": "#include \"b.slow\"\nfunc a() -> i32 { return b(); }\n",
		"lib/b.slow": "func b() -> i32 { return 1; }\n",
	}

	reads := 0

	s := New()
	s.ReadFile = func(name string) ([]byte, error) {
		reads++

		text, ok := files[name]
		if !ok {
			return nil, fs.ErrNotExist
		}

		return []byte(text), nil
	}

	s.AddFile("main.slow", []byte(`#include "lib/a.slow"
#include "lib/b.slow"
#include "lib/a.slow"
func main() -> i32 { return a(); }
`))

	x, err := s.Parse(context.Background())
	require.NoError(t, err)

	var names []string
	for _, f := range x.Funcs {
		names = append(names, f.Name.Name)
	}

	assert.Equal(t, []string{"b", "a", "main"}, names)
	assert.Equal(t, 2, reads)

	name, line, col := s.Position(x.Funcs[1].Pos)
	assert.Equal(t, "lib/a.slow", name)
	assert.Equal(t, 2, line)
	assert.Equal(t, 1, col)

	name, line, _ = s.Position(x.Funcs[2].Pos)
	assert.Equal(t, "main.slow", name)
	assert.Equal(t, 4, line)
	assert.Equal(t, "func main() -> i32 { return a(); }", string(s.Line(x.Funcs[2].Name.Pos)))
}

func TestIncludeErrors(t *testing.T) {
	s := New()
	s.ReadFile = func(string) ([]byte, error) { return nil, fs.ErrNotExist }
	s.AddFile("main.slow", []byte(`#include "missing.slow"`))

	_, err := s.Parse(context.Background())
	assert.Equal(t, NoSuchFile, kind(t, err))

	_, _, err = parse(t, `#define X 1`)
	assert.Equal(t, BadInclude, kind(t, err))

	_, _, err = parse(t, `#include "unterminated`)
	assert.Equal(t, BadInclude, kind(t, err))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1+int(Syntax), ExitCode(NewError(Syntax, 0, "x")))
	assert.Equal(t, 1+int(NoSuchFile), ExitCode(NewError(NoSuchFile, 0, "x")))
	assert.Equal(t, 1, ExitCode(assert.AnError))
}
