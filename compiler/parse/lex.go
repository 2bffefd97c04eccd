package parse

import (
	"strconv"

	"github.com/slowlang/slowc/compiler/ast"
)

type Spaces uint64

var SpaceAll = NewSpaces(' ', '\t', '\r', '\n')

// ops are matched longest first.
var ops = []string{
	"<<=", ">>=",
	"&&", "||", "==", "!=", "<=", ">=", "<<", ">>", "->",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"+", "-", "*", "/", "%", "&", "|", "^", "~", "!", "<", ">", "=",
	"(", ")", "{", "}", ",", ";",
}

var keywords = map[string]struct{}{
	"func": {}, "let": {}, "return": {}, "global": {}, "extern": {},
	"if": {}, "else": {}, "for": {}, "as": {},
	"void": {}, "i8": {}, "u8": {}, "i16": {}, "u16": {}, "i32": {}, "u32": {}, "i64": {}, "u64": {}, "f32": {}, "f64": {},
}

func NewSpaces(skip ...byte) (ss Spaces) {
	for _, q := range skip {
		if q >= 64 {
			panic("too high char code")
		}

		ss |= 1 << q
	}

	return
}

func (s Spaces) Skip(b []byte, st int) (i int) {
	i = st

	for i < len(b) && b[i] < 64 && s&(1<<b[i]) != 0 {
		i++
	}

	return
}

// skip moves over spaces and line comments.
func (s *State) skip(i int) int {
	for {
		i = SpaceAll.Skip(s.b[:s.end], i)

		if i+1 < s.end && s.b[i] == '/' && s.b[i+1] == '/' {
			for i < s.end && s.b[i] != '\n' {
				i++
			}

			continue
		}

		return i
	}
}

// op returns the operator or punctuation at i after spaces.
func (s *State) op(st int) (op string, i int) {
	i = s.skip(st)

	for _, o := range ops {
		if i+len(o) <= s.end && string(s.b[i:i+len(o)]) == o {
			return o, i + len(o)
		}
	}

	return "", i
}

// is reports whether the operator o is next and returns its end.
func (s *State) is(st int, o string) (int, bool) {
	got, i := s.op(st)
	if got != o {
		return st, false
	}

	return i, true
}

func (s *State) expect(st int, o string) (int, error) {
	i, ok := s.is(st, o)
	if ok {
		return i, nil
	}

	return st, s.unexpected(st, "%q expected", o)
}

// word matches keyword w not followed by an identifier character.
func (s *State) word(st int, w string) (int, bool) {
	i := s.skip(st)

	if i+len(w) > s.end || string(s.b[i:i+len(w)]) != w {
		return st, false
	}

	if e := i + len(w); e < s.end && isIdentChar(s.b[e]) {
		return st, false
	}

	return i + len(w), true
}

func (s *State) ident(st int) (x *ast.Ident, i int, err error) {
	i = s.skip(st)
	pos := i

	if i >= s.end {
		return nil, st, NewError(UnexpectedEOF, i, "identifier expected")
	}

	if c := s.b[i]; !(c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_') {
		return nil, st, s.unexpected(i, "identifier expected")
	}

	for i < s.end && isIdentChar(s.b[i]) {
		i++
	}

	name := string(s.b[pos:i])

	if _, ok := keywords[name]; ok {
		return nil, st, NewError(Syntax, pos, "identifier expected, got keyword %q", name)
	}

	return &ast.Ident{Base: ast.Base{Pos: pos, End: i}, Name: name}, i, nil
}

func (s *State) number(st int) (x ast.Node, i int, err error) {
	i = s.skip(st)
	pos := i

	hex := i+1 < s.end && s.b[i] == '0' && (s.b[i+1] == 'x' || s.b[i+1] == 'X')

	dot, exp := false, false

loop:
	for ; i < s.end; i++ {
		c := s.b[i]

		switch {
		case c >= '0' && c <= '9' || c == '_':
		case hex && (c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F' || c == 'x' || c == 'X'):
		case !hex && i > pos && (c == 'x' || c == 'X' || c == 'b' || c == 'B' || c == 'o' || c == 'O'):
		case !hex && !dot && !exp && c == '.':
			dot = true
		case !hex && !exp && (c == 'e' || c == 'E'):
			exp = true

			if i+1 < s.end && (s.b[i+1] == '-' || s.b[i+1] == '+') {
				i++
			}
		default:
			break loop
		}
	}

	text := string(s.b[pos:i])
	base := ast.Base{Pos: pos, End: i}

	if dot || exp {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return nil, st, NewError(Syntax, pos, "bad float literal %q", text)
		}

		return &ast.Float{Base: base, Value: v}, i, nil
	}

	v, err := strconv.ParseUint(text, 0, 64)
	if err != nil {
		return nil, st, NewError(Syntax, pos, "bad integer literal %q", text)
	}

	return &ast.Int{Base: base, Value: v}, i, nil
}

// unexpected reports what is found at i.
func (s *State) unexpected(st int, format string, args ...any) *Error {
	i := s.skip(st)

	if i >= s.end {
		return NewError(UnexpectedEOF, i, format, args...)
	}

	if o, _ := s.op(i); o == "" && !isIdentChar(s.b[i]) {
		j := i + 1
		for j < s.end && isOpChar(s.b[j]) {
			j++
		}

		return NewError(NoSuchOperator, i, "no such operator %q", s.b[i:j])
	}

	e := NewError(Syntax, i, format, args...)
	e.Msg += ", got " + strconv.Quote(string(s.b[i:tokenEnd(s.b[:s.end], i)]))

	return e
}

func tokenEnd(b []byte, i int) int {
	if i < len(b) && isIdentChar(b[i]) {
		for i < len(b) && isIdentChar(b[i]) {
			i++
		}

		return i
	}

	return min(i+1, len(b))
}

func isIdentChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c == '_'
}

func isOpChar(c byte) bool {
	return !isIdentChar(c) && c > ' ' && c < 0x7f && c != '"' && c != '\''
}
