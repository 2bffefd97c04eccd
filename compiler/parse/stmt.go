package parse

import (
	"context"
	"strings"

	"github.com/slowlang/slowc/compiler/ast"
)

var assignOps = map[string]struct{}{
	"=": {}, "+=": {}, "-=": {}, "*=": {}, "/=": {}, "%=": {},
	"&=": {}, "|=": {}, "^=": {}, "<<=": {}, ">>=": {},
}

func (s *State) parseBlock(ctx context.Context, st int) (x *ast.Block, i int, err error) {
	i, err = s.expect(st, "{")
	if err != nil {
		return nil, st, err
	}

	x = &ast.Block{Base: ast.Base{Pos: i - 1}}

	for {
		if j, ok := s.is(i, "}"); ok {
			x.End = j

			return x, j, nil
		}

		if s.skip(i) >= s.end {
			return nil, i, NewError(UnexpectedEOF, s.skip(i), "block is not closed")
		}

		var stmt ast.Node

		stmt, i, err = s.parseStmt(ctx, i)
		if err != nil {
			return nil, i, err
		}

		x.Stmts = append(x.Stmts, stmt)
	}
}

func (s *State) parseStmt(ctx context.Context, st int) (x ast.Node, i int, err error) {
	i = s.skip(st)
	pos := i

	if _, ok := s.is(i, "{"); ok {
		return s.parseBlock(ctx, i)
	}

	if j, ok := s.word(i, "return"); ok {
		r := &ast.Return{Base: ast.Base{Pos: pos}}

		if k, ok := s.is(j, ";"); ok {
			r.End = k
			return r, k, nil
		}

		r.Value, i, err = s.parseExpr(ctx, j)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(i, ";")
		r.End = i

		return r, i, err
	}

	if j, ok := s.word(i, "if"); ok {
		return s.parseIf(ctx, pos, j)
	}

	if j, ok := s.word(i, "for"); ok {
		return s.parseFor(ctx, pos, j)
	}

	x, i, err = s.parseSimple(ctx, i)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(i, ";")

	return x, i, err
}

func (s *State) parseIf(ctx context.Context, pos, st int) (x ast.Node, i int, err error) {
	r := &ast.If{Base: ast.Base{Pos: pos}}

	i, err = s.expect(st, "(")
	if err != nil {
		return nil, i, err
	}

	r.Cond, i, err = s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(i, ")")
	if err != nil {
		return nil, i, err
	}

	r.Then, i, err = s.parseStmt(ctx, i)
	if err != nil {
		return nil, i, err
	}

	if j, ok := s.word(i, "else"); ok {
		r.Else, i, err = s.parseStmt(ctx, j)
		if err != nil {
			return nil, i, err
		}
	}

	r.End = i

	return r, i, nil
}

func (s *State) parseFor(ctx context.Context, pos, st int) (x ast.Node, i int, err error) {
	r := &ast.For{Base: ast.Base{Pos: pos}}

	i, err = s.expect(st, "(")
	if err != nil {
		return nil, i, err
	}

	if j, ok := s.is(i, ";"); ok {
		i = j
	} else {
		r.Init, i, err = s.parseSimple(ctx, i)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(i, ";")
		if err != nil {
			return nil, i, err
		}
	}

	if j, ok := s.is(i, ";"); ok {
		i = j
	} else {
		r.Cond, i, err = s.parseExpr(ctx, i)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(i, ";")
		if err != nil {
			return nil, i, err
		}
	}

	if j, ok := s.is(i, ")"); ok {
		i = j
	} else {
		r.Update, i, err = s.parseSimple(ctx, i)
		if err != nil {
			return nil, i, err
		}

		i, err = s.expect(i, ")")
		if err != nil {
			return nil, i, err
		}
	}

	r.Body, i, err = s.parseStmt(ctx, i)
	if err != nil {
		return nil, i, err
	}

	r.End = i

	return r, i, nil
}

// parseSimple parses a declaration, an assignment or a call without the trailing semicolon.
func (s *State) parseSimple(ctx context.Context, st int) (x ast.Node, i int, err error) {
	i = s.skip(st)
	pos := i

	if j, ok := s.word(i, "let"); ok {
		return s.parseLet(ctx, pos, j)
	}

	x, i, err = s.parseExpr(ctx, i)
	if err != nil {
		return nil, i, err
	}

	if o, j := s.op(i); o != "" {
		if _, ok := assignOps[o]; ok {
			a := &ast.Assign{Base: ast.Base{Pos: pos}, Op: strings.TrimSuffix(o, "="), Dst: x}

			a.Src, i, err = s.parseExpr(ctx, j)
			if err != nil {
				return nil, i, err
			}

			a.End = i

			return a, i, nil
		}
	}

	if _, ok := x.(*ast.Call); !ok {
		return nil, pos, NewError(Syntax, pos, "expression is not a statement")
	}

	return &ast.ExprStmt{Base: x.Span(), X: x}, i, nil
}

func (s *State) parseLet(ctx context.Context, pos, st int) (x ast.Node, i int, err error) {
	l := &ast.Let{Base: ast.Base{Pos: pos}}

	l.Name, i, err = s.ident(st)
	if err != nil {
		return nil, i, err
	}

	if s.isType(i) {
		l.Type, i, err = s.parseType(i)
		if err != nil {
			return nil, i, err
		}
	}

	if j, ok := s.is(i, "="); ok {
		l.Value, i, err = s.parseExpr(ctx, j)
		if err != nil {
			return nil, i, err
		}
	}

	if l.Type == nil && l.Value == nil {
		return nil, i, s.unexpected(i, "type or value expected for %v", l.Name.Name)
	}

	l.End = i

	return l, i, nil
}
