package main

import (
	"context"
	"io"
	"os"

	"nikand.dev/go/cli"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"

	"github.com/slowlang/slowc/compiler"
	"github.com/slowlang/slowc/compiler/parse"
	"github.com/slowlang/slowc/compiler/toolchain"
)

func main() {
	outFlags := []*cli.Flag{
		cli.NewFlag("output,o", "", "output file"),
		cli.NewFlag("max-expr-depth", 0, "expression nesting limit (0 is the default)"),
	}

	compileFlags := append([]*cli.Flag{
		cli.NewFlag("asm", "", "intermediate assembly file (default "+toolchain.DefaultAsmPath+")"),
		cli.NewFlag("obj", "", "intermediate object file (default "+toolchain.DefaultObjPath+")"),
		cli.NewFlag("config", "", "toolchain config (yaml)"),
		cli.NewFlag("no-link", false, "stop after assembling"),
	}, outFlags...)

	compileCmd := &cli.Command{
		Name:        "compile",
		Description: "compile, assemble and link a program",
		Action:      compileAct,
		Args:        cli.Args{},
		Flags:       compileFlags,
	}

	asmCmd := &cli.Command{
		Name:        "asm",
		Description: "print the generated assembly",
		Action:      asmAct,
		Args:        cli.Args{},
		Flags:       outFlags,
	}

	irCmd := &cli.Command{
		Name:        "ir",
		Description: "print the typed intermediate representation",
		Action:      irAct,
		Args:        cli.Args{},
		Flags:       outFlags,
	}

	app := &cli.Command{
		Name:        "slowc",
		Description: "slowc compiles slow source code to x86-64",
		Before:      before,
		Action:      compileAct,
		Args:        cli.Args{},
		Flags: append([]*cli.Flag{
			cli.NewFlag("log", "stderr", "log output file (or stderr)"),
			cli.NewFlag("verbosity,v", "", "logger verbosity topics"),
			cli.HelpFlag,
		}, compileFlags...),
		Commands: []*cli.Command{
			compileCmd,
			asmCmd,
			irCmd,
		},
	}

	cli.RunAndExit(app, os.Args, os.Environ())
}

func before(c *cli.Command) (err error) {
	var w io.Writer = os.Stderr

	if name := c.String("log"); name != "" && name != "stderr" {
		f, err := os.Create(name)
		if err != nil {
			return errors.Wrap(err, "open log file")
		}

		w = f
	}

	tlog.DefaultLogger = tlog.New(tlog.NewConsoleWriter(w, tlog.LstdFlags))

	tlog.SetVerbosity(c.String("verbosity"))

	return nil
}

func newContext() context.Context {
	ctx := context.Background()

	return tlog.ContextWithSpan(ctx, tlog.Root())
}

func opts(c *cli.Command) compiler.Options {
	return compiler.Options{
		MaxExprDepth: c.Int("max-expr-depth"),
	}
}

// source returns the single input file or exits with the usage status.
func source(c *cli.Command) string {
	if len(c.Args) != 1 {
		fail(nil, parse.NewError(parse.Usage, -1, "correct usage: slowc [compile|asm|ir] <FILE.slw>"))
	}

	return c.Args[0]
}

func compileAct(c *cli.Command) (err error) {
	ctx := newContext()
	name := source(c)

	cfg := toolchain.Default()

	if p := c.String("config"); p != "" {
		cfg, err = toolchain.Load(p)
		if err != nil {
			fail(nil, err)
		}
	}

	if p := c.String("asm"); p != "" {
		cfg.AsmPath = p
	}

	if p := c.String("obj"); p != "" {
		cfg.ObjPath = p
	}

	if p := c.String("output"); p != "" {
		cfg.Output = p
	}

	tc := toolchain.New(cfg)

	u, err := compiler.Build(ctx, name, tc, !c.Bool("no-link"), opts(c))
	report(u)

	if err != nil {
		fail(u, err)
	}

	return nil
}

func asmAct(c *cli.Command) (err error) {
	ctx := newContext()

	u, asm, err := compiler.CompileFile(ctx, source(c), opts(c))
	report(u)

	if err != nil {
		fail(u, err)
	}

	return write(c, asm)
}

func irAct(c *cli.Command) (err error) {
	ctx := newContext()

	u, err := compiler.ReadFile(ctx, source(c))
	report(u)

	if err != nil {
		fail(u, err)
	}

	b, err := u.FormatIR(ctx, nil)
	if err != nil {
		fail(u, err)
	}

	return write(c, b)
}

func write(c *cli.Command, b []byte) error {
	name := c.String("output")
	if name == "" || name == "-" {
		_, err := os.Stdout.Write(b)
		return err
	}

	err := os.WriteFile(name, b, 0o644)
	if err != nil {
		return errors.Wrap(err, "write output")
	}

	return nil
}

func report(u *compiler.Unit) {
	if u == nil || u.State == nil {
		return
	}

	_, _ = os.Stderr.Write(u.Warn(nil))
}

func fail(u *compiler.Unit, err error) {
	_, _ = os.Stderr.Write(u.Diagnose(nil, err))

	os.Exit(parse.ExitCode(err))
}
