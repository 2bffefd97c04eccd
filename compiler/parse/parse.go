package parse

import (
	"bytes"
	"context"
	"os"
	"path/filepath"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slowc/compiler/ast"
)

type (
	State struct {
		b []byte // all files concatenated

		// ReadFile loads included files. Defaults to os.ReadFile.
		ReadFile func(name string) ([]byte, error)

		files    []file
		included map[string]struct{}

		// end of the file being parsed
		end int
	}

	file struct {
		base int
		size int
		name string
	}
)

func ParseFile(ctx context.Context, name string) (*State, *ast.File, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, nil, NewError(NoSuchFile, -1, "%v", name)
	}

	s := New()

	s.AddFile(name, data)

	x, err := s.Parse(ctx)

	return s, x, err
}

func New() *State {
	return &State{
		ReadFile: os.ReadFile,
		included: map[string]struct{}{},
	}
}

// AddFile appends a root file. Files are parsed in the order they were added.
func (s *State) AddFile(name string, text []byte) {
	s.addFile(name, text)
}

func (s *State) addFile(name string, text []byte) int {
	f := file{
		name: name,
		base: len(s.b),
		size: len(text),
	}

	s.b = append(s.b, text...)
	s.files = append(s.files, f)

	s.included[filepath.Clean(name)] = struct{}{}

	return len(s.files) - 1
}

func (s *State) Parse(ctx context.Context) (x *ast.File, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "parse", "files", len(s.files))
	defer tr.Finish("err", &err)

	x = &ast.File{Base: ast.Base{Pos: 0}}

	roots := len(s.files)

	for fi := 0; fi < roots; fi++ {
		err = s.parseFile(ctx, fi, x)
		if err != nil {
			return nil, err
		}
	}

	x.End = len(s.b)

	if tr.If("dump_ast") {
		tr.Printw("ast", "funcs", len(x.Funcs), "files", len(s.files))
	}

	return x, nil
}

func (s *State) parseFile(ctx context.Context, fi int, x *ast.File) (err error) {
	f := s.files[fi]

	defer func(end int) { s.end = end }(s.end)

	s.end = f.base + f.size

	tlog.SpanFromContext(ctx).Printw("parse file", "name", f.name, "size", f.size)

	for i := s.skip(f.base); i < s.end; i = s.skip(i) {
		if s.b[i] == '#' {
			i, err = s.include(ctx, i, fi, x)
			if err != nil {
				return err
			}

			continue
		}

		var fn *ast.Func

		fn, i, err = s.parseFunc(ctx, i)
		if err != nil {
			return err
		}

		x.Funcs = append(x.Funcs, fn)
	}

	return nil
}

// include handles `#include "path"`. The file is spliced in place
// and every file is included at most once.
func (s *State) include(ctx context.Context, st, fi int, x *ast.File) (i int, err error) {
	i, ok := s.word(st+1, "include")
	if !ok {
		return st, NewError(BadInclude, st, "unknown preprocessor command")
	}

	i = s.skip(i)

	if i >= s.end || s.b[i] != '"' {
		return st, NewError(BadInclude, i, "include path expected")
	}

	q := bytes.IndexByte(s.b[i+1:s.end], '"')
	if q < 0 {
		return st, NewError(BadInclude, i, "unterminated include path")
	}

	path := string(s.b[i+1 : i+1+q])
	i += q + 2

	name := filepath.Join(filepath.Dir(s.files[fi].name), path)
	name = filepath.Clean(name)

	if _, ok := s.included[name]; ok {
		return i, nil
	}

	text, err := s.ReadFile(name)
	if err != nil {
		return st, NewError(NoSuchFile, st, "%v", name)
	}

	nfi := s.addFile(name, text)

	err = s.parseFile(ctx, nfi, x)
	if err != nil {
		return st, errors.Wrap(err, "include %v", path)
	}

	return i, nil
}

func (s *State) Text(pos, end int) []byte {
	return s.b[pos:end]
}

// Position resolves pos to the file name and one-based line and column.
func (s *State) Position(pos int) (name string, line, col int) {
	f, ok := s.fileAt(pos)
	if !ok {
		return "", 0, 0
	}

	text := s.b[f.base:pos]

	line = 1 + bytes.Count(text, []byte{'\n'})
	col = pos - f.base - bytes.LastIndexByte(text, '\n')

	return f.name, line, col
}

// Line returns the full text of the line containing pos.
func (s *State) Line(pos int) []byte {
	f, ok := s.fileAt(pos)
	if !ok {
		return nil
	}

	end := f.base + f.size

	st := bytes.LastIndexByte(s.b[f.base:pos], '\n') + 1 + f.base

	e := bytes.IndexByte(s.b[pos:end], '\n')
	if e < 0 {
		e = end
	} else {
		e += pos
	}

	return s.b[st:e]
}

func (s *State) fileAt(pos int) (file, bool) {
	for _, f := range s.files {
		if pos >= f.base && pos < f.base+f.size {
			return f, true
		}
	}

	for _, f := range s.files {
		if pos == f.base+f.size {
			return f, true
		}
	}

	return file{}, false
}
