package compiler

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/txtar"
	"tlog.app/go/errors"

	"github.com/slowlang/slowc/compiler/parse"
	"github.com/slowlang/slowc/compiler/toolchain"
)

func TestGolden(t *testing.T) {
	files, err := filepath.Glob("testdata/*.txtar")
	require.NoError(t, err)
	require.NotEmpty(t, files)

	for _, name := range files {
		name := name

		t.Run(strings.TrimSuffix(filepath.Base(name), ".txtar"), func(t *testing.T) {
			ar, err := txtar.ParseFile(name)
			require.NoError(t, err)

			dir := t.TempDir()

			var wantAsm, wantErr string

			for _, f := range ar.Files {
				switch f.Name {
				case "asm":
					wantAsm = string(f.Data)
				case "error":
					wantErr = strings.TrimSpace(string(f.Data))
				default:
					err = os.WriteFile(filepath.Join(dir, f.Name), f.Data, 0o644)
					require.NoError(t, err)
				}
			}

			u, asm, err := CompileFile(context.Background(), filepath.Join(dir, "main.slw"), Options{})

			if wantErr != "" {
				checkError(t, u, err, wantErr)
				return
			}

			require.NoError(t, err)

			assertInOrder(t, string(asm), wantAsm)
		})
	}
}

func checkError(t *testing.T, u *Unit, err error, want string) {
	t.Helper()

	var e *parse.Error
	require.ErrorAs(t, err, &e)

	sp := strings.LastIndexByte(want, ' ')
	line, perr := strconv.Atoi(want[sp+1:])
	require.NoError(t, perr)

	assert.Equal(t, want[:sp], e.Kind.String())

	_, got, _ := u.State.Position(e.Pos)
	assert.Equal(t, line, got, "%v", e)
}

// assertInOrder checks that every line of want appears in text in the same order.
func assertInOrder(t *testing.T, text, want string) {
	t.Helper()

	var got []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			got = append(got, l)
		}
	}

	i := 0

	for _, w := range strings.Split(strings.TrimSpace(want), "\n") {
		for i < len(got) && got[i] != w {
			i++
		}

		if !assert.Less(t, i, len(got), "line %q not found in order\n%s", w, text) {
			return
		}

		i++
	}
}

func TestDiagnose(t *testing.T) {
	u, err := Front(context.Background(), "main.slw", []byte("func f() -> i32 {\n\treturn y;\n}\n"))
	require.Error(t, err)

	b := u.Diagnose(nil, err)

	assert.Equal(t, "slowc: error - unknown identifier: y\n"+
		"\tOn line 2: \treturn y;\n"+
		"\t           \t       ^\n", string(b))

	assert.Equal(t, 1+int(parse.UnknownIdent), parse.ExitCode(err))

	b = (*Unit)(nil).Diagnose(nil, errors.New("assemble: nasm: not found"))
	assert.Equal(t, "slowc: error - assemble: nasm: not found\n", string(b))
}

func TestWarnings(t *testing.T) {
	u, err := Front(context.Background(), "main.slw", []byte("func f(a i32) -> i32 {\n\treturn a as i32;\n}\n"))
	require.NoError(t, err)

	assert.Equal(t, "slowc: warning - redundant cast to i32 (line 2)\n", string(u.Warn(nil)))
}

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "main.slw")

	err := os.WriteFile(src, []byte("func global main() -> i32 { return 0; }\n"), 0o644)
	require.NoError(t, err)

	c := toolchain.Default()
	c.AsmPath = filepath.Join(dir, "main.asm")
	c.ObjPath = filepath.Join(dir, "main.o")
	c.Output = filepath.Join(dir, "main")

	var cmds []string

	tc := toolchain.New(c)
	tc.Exec = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		cmds = append(cmds, name)
		return nil, nil
	}

	_, err = Build(context.Background(), src, tc, true, Options{})
	require.NoError(t, err)

	assert.Equal(t, []string{"nasm", "cc"}, cmds)

	text, err := os.ReadFile(c.AsmPath)
	require.NoError(t, err)
	assert.Contains(t, string(text), "global main\n")

	cmds = nil

	_, err = Build(context.Background(), src, tc, false, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"nasm"}, cmds)
}

func TestFormatIR(t *testing.T) {
	u, err := Front(context.Background(), "main.slw", []byte("func global f(a i32) -> i32 { return a * 2; }\n"))
	require.NoError(t, err)

	b, err := u.FormatIR(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, "func global f(a i32) -> i32 {\n\treturn (a * 2:i32)\n}\n", string(b))
}
