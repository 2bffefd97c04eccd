package compiler

import (
	"context"
	"os"
	"strconv"

	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slowc/compiler/analyze"
	"github.com/slowlang/slowc/compiler/ast"
	"github.com/slowlang/slowc/compiler/back"
	"github.com/slowlang/slowc/compiler/format"
	"github.com/slowlang/slowc/compiler/ir"
	"github.com/slowlang/slowc/compiler/parse"
	"github.com/slowlang/slowc/compiler/toolchain"
)

type (
	// Unit is one source file with everything it includes, through the pipeline stages.
	Unit struct {
		Name string

		State *parse.State
		AST   *ast.File
		IR    *ir.Root

		Warnings []analyze.Warning
	}

	Options struct {
		MaxExprDepth int
	}
)

func ReadFile(ctx context.Context, name string) (u *Unit, err error) {
	text, err := os.ReadFile(name)
	if err != nil {
		return &Unit{Name: name}, parse.NewError(parse.NoSuchFile, -1, "%v", name)
	}

	tlog.SpanFromContext(ctx).Printw("read file", "size", len(text), "name", name)

	return Front(ctx, name, text)
}

// Front parses and type checks text. The returned Unit is not nil
// even on error so positions in diagnostics can be resolved.
func Front(ctx context.Context, name string, text []byte) (u *Unit, err error) {
	u = &Unit{
		Name:  name,
		State: parse.New(),
	}

	u.State.AddFile(name, text)

	u.AST, err = u.State.Parse(ctx)
	if err != nil {
		return u, errors.Wrap(err, "parse")
	}

	a := analyze.New(u.State)

	u.IR, err = a.Analyze(ctx, u.AST)
	u.Warnings = a.Warnings
	if err != nil {
		return u, errors.Wrap(err, "analyze")
	}

	return u, nil
}

// Compile lowers the unit to NASM assembly text appended to b.
func (u *Unit) Compile(ctx context.Context, b []byte, opts Options) (_ []byte, err error) {
	c := back.New()
	c.MaxExprDepth = opts.MaxExprDepth

	b, err = c.CompileRoot(ctx, b, u.IR)
	if err != nil {
		return nil, errors.Wrap(err, "compile")
	}

	return b, nil
}

// FormatIR appends the text form of the unit IR to b.
func (u *Unit) FormatIR(ctx context.Context, b []byte) ([]byte, error) {
	return format.Format(ctx, b, u.IR)
}

func CompileFile(ctx context.Context, name string, opts Options) (u *Unit, asm []byte, err error) {
	u, err = ReadFile(ctx, name)
	if err != nil {
		return u, nil, err
	}

	asm, err = u.Compile(ctx, nil, opts)
	if err != nil {
		return u, nil, err
	}

	return u, asm, nil
}

// Build compiles name, assembles the result and links it unless link is false.
func Build(ctx context.Context, name string, tc *toolchain.Toolchain, link bool, opts Options) (u *Unit, err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, "build", "name", name, "output", tc.Output, "link", link)
	defer tr.Finish("err", &err)

	u, asm, err := CompileFile(ctx, name, opts)
	if err != nil {
		return u, err
	}

	err = tc.WriteAsm(ctx, asm)
	if err != nil {
		return u, err
	}

	err = tc.Assemble(ctx)
	if err != nil {
		return u, errors.Wrap(err, "assemble")
	}

	if !link {
		return u, nil
	}

	err = tc.Link(ctx)
	if err != nil {
		return u, errors.Wrap(err, "link")
	}

	return u, nil
}

// Diagnose renders err the way the driver reports it, with the offending line if known.
func (u *Unit) Diagnose(b []byte, err error) []byte {
	b = append(b, "slowc: error - "...)

	var e *parse.Error
	if !errors.As(err, &e) {
		b = append(b, err.Error()...)

		return append(b, '\n')
	}

	b = append(b, e.Error()...)
	b = append(b, '\n')

	if u == nil || u.State == nil || e.Pos < 0 {
		return b
	}

	name, line, col := u.State.Position(e.Pos)
	if line == 0 {
		return b
	}

	prefix := "On line " + strconv.Itoa(line)
	if name != u.Name {
		prefix += " of " + name
	}

	prefix += ": "

	text := u.State.Line(e.Pos)

	b = append(b, '\t')
	b = append(b, prefix...)
	b = append(b, text...)
	b = append(b, "\n\t"...)

	for i := 0; i < len(prefix); i++ {
		b = append(b, ' ')
	}

	for i := 0; i < col-1 && i < len(text); i++ {
		if text[i] == '\t' {
			b = append(b, '\t')
		} else {
			b = append(b, ' ')
		}
	}

	return append(b, "^\n"...)
}

// Warn renders analyzer warnings.
func (u *Unit) Warn(b []byte) []byte {
	for _, w := range u.Warnings {
		b = append(b, "slowc: warning - "...)
		b = append(b, w.Msg...)

		if _, line, _ := u.State.Position(w.Pos); line != 0 {
			b = append(b, " (line "...)
			b = strconv.AppendInt(b, int64(line), 10)
			b = append(b, ')')
		}

		b = append(b, '\n')
	}

	return b
}
