package parse

import (
	"context"
	"slices"

	"github.com/slowlang/slowc/compiler/ast"
)

// levels of binary operators from the loosest binding.
var levels = [][]string{
	{"||"},
	{"&&"},
	{"|"},
	{"^"},
	{"&"},
	{"==", "!="},
	{"<", ">", "<=", ">="},
	{"<<", ">>"},
	{"+", "-"},
	{"*", "/", "%"},
}

var unaryOps = []string{"-", "~", "!", "&", "*"}

func (s *State) parseExpr(ctx context.Context, st int) (x ast.Node, i int, err error) {
	return s.parseBinary(ctx, st, 0)
}

// parseBinary is left associative within a level.
func (s *State) parseBinary(ctx context.Context, st, lvl int) (x ast.Node, i int, err error) {
	if lvl == len(levels) {
		return s.parseUnary(ctx, st)
	}

	x, i, err = s.parseBinary(ctx, st, lvl+1)
	if err != nil {
		return nil, i, err
	}

	for {
		o, j := s.op(i)
		if !slices.Contains(levels[lvl], o) {
			return x, i, nil
		}

		var r ast.Node

		r, i, err = s.parseBinary(ctx, j, lvl+1)
		if err != nil {
			return nil, i, err
		}

		x = &ast.Binary{
			Base:  ast.Base{Pos: x.Span().Pos, End: i},
			Op:    o,
			Left:  x,
			Right: r,
		}
	}
}

func (s *State) parseUnary(ctx context.Context, st int) (x ast.Node, i int, err error) {
	o, j := s.op(st)

	if slices.Contains(unaryOps, o) {
		pos := j - len(o)

		x, i, err = s.parseUnary(ctx, j)
		if err != nil {
			return nil, i, err
		}

		return &ast.Unary{Base: ast.Base{Pos: pos, End: i}, Op: o, X: x}, i, nil
	}

	x, i, err = s.parsePrimary(ctx, st)
	if err != nil {
		return nil, i, err
	}

	for {
		j, ok := s.word(i, "as")
		if !ok {
			return x, i, nil
		}

		var t *ast.Type

		t, i, err = s.parseType(j)
		if err != nil {
			return nil, i, err
		}

		x = &ast.Cast{Base: ast.Base{Pos: x.Span().Pos, End: i}, X: x, Type: t}
	}
}

func (s *State) parsePrimary(ctx context.Context, st int) (x ast.Node, i int, err error) {
	i = s.skip(st)

	if i >= s.end {
		return nil, i, NewError(UnexpectedEOF, i, "expression expected")
	}

	if c := s.b[i]; c >= '0' && c <= '9' || c == '.' && i+1 < s.end && s.b[i+1] >= '0' && s.b[i+1] <= '9' {
		return s.number(i)
	}

	if j, ok := s.is(i, "("); ok {
		x, i, err = s.parseExpr(ctx, j)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(i, ")")

		return x, i, err
	}

	id, i, err := s.ident(i)
	if err != nil {
		return nil, i, err
	}

	j, ok := s.is(i, "(")
	if !ok {
		return id, i, nil
	}

	c := &ast.Call{Base: ast.Base{Pos: id.Pos}, Name: id}

	c.Args, i, err = s.parseArgs(ctx, j)
	if err != nil {
		return nil, i, err
	}

	c.End = i

	return c, i, nil
}

func (s *State) parseArgs(ctx context.Context, st int) (args []ast.Node, i int, err error) {
	if j, ok := s.is(st, ")"); ok {
		return nil, j, nil
	}

	i = st

	for {
		var a ast.Node

		a, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, err
		}

		args = append(args, a)

		if j, ok := s.is(i, ","); ok {
			i = j
			continue
		}

		i, err = s.expect(i, ")")

		return args, i, err
	}
}
