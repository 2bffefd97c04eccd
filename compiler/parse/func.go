package parse

import (
	"context"

	"github.com/slowlang/slowc/compiler/ast"
	"github.com/slowlang/slowc/compiler/tp"
)

var funcAttrs = []string{"global", "extern"}

func (s *State) parseFunc(ctx context.Context, st int) (fn *ast.Func, i int, err error) {
	i, ok := s.word(st, "func")
	if !ok {
		return nil, st, s.unexpected(st, "func expected")
	}

	fn = &ast.Func{Base: ast.Base{Pos: s.skip(st)}}

attrs:
	for {
		for _, a := range funcAttrs {
			if j, ok := s.word(i, a); ok {
				fn.Attrs = append(fn.Attrs, &ast.Ident{Base: ast.Base{Pos: j - len(a), End: j}, Name: a})
				i = j

				continue attrs
			}
		}

		break
	}

	fn.Name, i, err = s.ident(i)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(i, "(")
	if err != nil {
		return nil, i, err
	}

	fn.Params, i, err = s.parseParams(ctx, i)
	if err != nil {
		return nil, i, err
	}

	i, err = s.expect(i, "->")
	if err != nil {
		return nil, i, err
	}

	fn.Ret, i, err = s.parseType(i)
	if err != nil {
		return nil, i, err
	}

	if j, ok := s.is(i, ";"); ok {
		fn.End = j

		return fn, j, nil
	}

	fn.Body, i, err = s.parseBlock(ctx, i)
	if err != nil {
		return nil, i, err
	}

	fn.End = i

	return fn, i, nil
}

func (s *State) parseParams(ctx context.Context, st int) (ps []*ast.Param, i int, err error) {
	i = st

	if j, ok := s.is(i, ")"); ok {
		return nil, j, nil
	}

	for {
		p := &ast.Param{}

		p.Name, i, err = s.ident(i)
		if err != nil {
			return nil, i, err
		}

		p.Type, i, err = s.parseType(i)
		if err != nil {
			return nil, i, err
		}

		p.Base = ast.Base{Pos: p.Name.Pos, End: p.Type.End}

		ps = append(ps, p)

		if j, ok := s.is(i, ","); ok {
			i = j
			continue
		}

		i, err = s.expect(i, ")")
		if err != nil {
			return nil, i, err
		}

		return ps, i, nil
	}
}

// parseType parses `{*} scalar`.
func (s *State) parseType(st int) (x *ast.Type, i int, err error) {
	i = s.skip(st)

	x = &ast.Type{Base: ast.Base{Pos: i}}

	for {
		j, ok := s.is(i, "*")
		if !ok {
			break
		}

		x.Depth++
		i = j
	}

	i = s.skip(i)

	for _, n := range typeNames {
		if j, ok := s.word(i, n); ok {
			x.Name = n
			x.End = j

			return x, j, nil
		}
	}

	return nil, st, s.unexpected(i, "type expected")
}

// isType reports whether a type starts at st.
func (s *State) isType(st int) bool {
	if _, ok := s.is(st, "*"); ok {
		return true
	}

	for _, n := range typeNames {
		if _, ok := s.word(st, n); ok {
			return true
		}
	}

	return false
}

var typeNames = func() (l []string) {
	for k := tp.Void; k < tp.Pointer; k++ {
		l = append(l, k.String())
	}

	return l
}()
