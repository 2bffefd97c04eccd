package toolchain

import (
	"bytes"
	"context"
	"io"
	"os"
	"os/exec"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
	"tlog.app/go/tlog"
)

type (
	// Config describes the external programs turning assembly text into an executable.
	Config struct {
		Assembler     string   `yaml:"assembler"`
		AssemblerArgs []string `yaml:"assembler_args"`

		Linker     string   `yaml:"linker"`
		LinkerArgs []string `yaml:"linker_args"`

		AsmPath string `yaml:"asm"`
		ObjPath string `yaml:"obj"`
		Output  string `yaml:"output"`
	}

	Toolchain struct {
		Config

		// Exec runs an external command and returns its combined output.
		Exec func(ctx context.Context, name string, args ...string) ([]byte, error)
	}
)

const (
	DefaultAsmPath = "/tmp/slowc_compiled.asm"
	DefaultObjPath = "/tmp/slowc_compiled.obj"
	DefaultOutput  = "a.out"
)

func Default() Config {
	return Config{
		Assembler:     "nasm",
		AssemblerArgs: []string{"-f", "elf64"},
		Linker:        "cc",
		LinkerArgs:    []string{"-no-pie"},
		AsmPath:       DefaultAsmPath,
		ObjPath:       DefaultObjPath,
		Output:        DefaultOutput,
	}
}

// Load reads a YAML config. Fields missing in the file keep their defaults.
func Load(name string) (c Config, err error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return c, errors.Wrap(err, "read config")
	}

	c, err = Parse(data)
	if err != nil {
		return c, errors.Wrap(err, "config %v", name)
	}

	return c, nil
}

func Parse(data []byte) (c Config, err error) {
	c = Default()

	d := yaml.NewDecoder(bytes.NewReader(data))
	d.KnownFields(true)

	err = d.Decode(&c)
	if errors.Is(err, io.EOF) {
		return c, nil
	}
	if err != nil {
		return c, errors.Wrap(err, "decode yaml")
	}

	return c, nil
}

func New(c Config) *Toolchain {
	return &Toolchain{
		Config: c,
		Exec:   run,
	}
}

func (c Config) AssembleArgs() []string {
	args := append([]string{}, c.AssemblerArgs...)

	return append(args, "-o", c.ObjPath, c.AsmPath)
}

func (c Config) LinkArgs() []string {
	args := append([]string{}, c.LinkerArgs...)

	return append(args, "-o", c.Output, c.ObjPath)
}

// WriteAsm stores the assembly text at AsmPath.
func (t *Toolchain) WriteAsm(ctx context.Context, text []byte) (err error) {
	tlog.SpanFromContext(ctx).Printw("write assembly", "path", t.AsmPath, "size", len(text))

	err = os.WriteFile(t.AsmPath, text, 0o644)
	if err != nil {
		return errors.Wrap(err, "write asm")
	}

	return nil
}

func (t *Toolchain) Assemble(ctx context.Context) (err error) {
	return t.exec(ctx, "assemble", t.Assembler, t.AssembleArgs())
}

func (t *Toolchain) Link(ctx context.Context) (err error) {
	return t.exec(ctx, "link", t.Linker, t.LinkArgs())
}

func (t *Toolchain) exec(ctx context.Context, stage, name string, args []string) (err error) {
	tr, ctx := tlog.SpawnFromContextAndWrap(ctx, stage, "cmd", name, "args", args)
	defer tr.Finish("err", &err)

	out, err := t.Exec(ctx, name, args...)
	if len(out) != 0 {
		tr.Printw("output", "text", out)
	}
	if err != nil {
		return errors.Wrap(err, "%v: %s", name, bytes.TrimSpace(out))
	}

	return nil
}

func run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}
