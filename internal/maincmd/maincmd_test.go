package maincmd

import (
	"bytes"
	"context"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/loxlang/golox/internal/filetest"
	"github.com/mna/mainer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUpdateScriptTests = flag.Bool("test.update-script-tests", false, "If set, replace expected script test results with actual results.")

func TestScripts(t *testing.T) {
	ctx := context.Background()
	srcDir, resultDir := filepath.Join("testdata", "in"), filepath.Join("testdata", "out")

	for _, fi := range filetest.SourceFiles(t, srcDir, ".lox") {
		t.Run(fi.Name(), func(t *testing.T) {
			var buf, ebuf bytes.Buffer
			stdio := mainer.Stdio{
				Stdout: &buf,
				Stderr: &ebuf,
			}

			// error is ignored, we just want the output and errors printed
			var c Cmd
			_ = c.Run(ctx, stdio, []string{filepath.Join(srcDir, fi.Name())})
			filetest.DiffOutput(t, fi, buf.String(), resultDir, testUpdateScriptTests)
			filetest.DiffErrors(t, fi, ebuf.String(), resultDir, testUpdateScriptTests)
		})
	}
}

func TestValidate(t *testing.T) {
	cases := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"no args is the repl", nil, ""},
		{"single path runs", []string{"x.lox"}, ""},
		{"two paths", []string{"a.lox", "b.lox"}, "expected a single script path"},
		{"tokenize needs files", []string{"tokenize"}, "at least one file"},
		{"disasm needs files", []string{"disasm"}, "at least one file"},
		{"tokenize with file", []string{"tokenize", "x.lox"}, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := &Cmd{args: tc.args}
			err := c.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.NotNil(t, c.cmdFn)
				return
			}
			require.ErrorContains(t, err, tc.wantErr)
		})
	}
}

func TestMainExitCodes(t *testing.T) {
	dir := t.TempDir()
	write := func(name, src string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(src), 0600))
		return path
	}

	good := write("good.lox", `print 1 + 1;`)
	badCompile := write("bad_compile.lox", `print 1 +;`)
	badRuntime := write("bad_runtime.lox", `nil();`)

	cases := []struct {
		name string
		path string
		want mainer.ExitCode
	}{
		{"success", good, mainer.Success},
		{"compile error", badCompile, exitCompile},
		{"runtime error", badRuntime, exitRuntime},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf, ebuf bytes.Buffer
			stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}
			var c Cmd
			got := c.Main([]string{binName, tc.path}, stdio)
			assert.Equal(t, tc.want, got, "stderr: %s", ebuf.String())
		})
	}
}

func TestRepl(t *testing.T) {
	lines := strings.Join([]string{
		`var a = 1;`,
		`fun next() { a = a + 1; return a; }`,
		`print next();`,
		`print nope;`, // runtime error, the session continues
		`print next() + a;`,
		`var b = ;`, // compile error, the session continues
		`print "done";`,
	}, "\n")

	var buf, ebuf bytes.Buffer
	stdio := mainer.Stdio{
		Stdin:  strings.NewReader(lines),
		Stdout: &buf,
		Stderr: &ebuf,
	}

	var c Cmd
	require.NoError(t, c.Repl(context.Background(), stdio, nil))

	// globals and the heap persist across lines
	assert.Equal(t, "2\n6\ndone\n", buf.String())
	assert.Contains(t, ebuf.String(), "Undefined variable 'nope'.")
	assert.Contains(t, ebuf.String(), "Expect expression.")
}

func TestTokenizeCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "t.lox")
	require.NoError(t, os.WriteFile(path, []byte("var x = 1;"), 0600))

	var buf, ebuf bytes.Buffer
	stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}
	var c Cmd
	require.NoError(t, c.Tokenize(context.Background(), stdio, []string{path}))

	assert.Equal(t, `1:1: var
1:5: identifier "x"
1:7: =
1:9: number literal "1"
1:10: ;
1:11: end of file
`, buf.String())
	assert.Empty(t, ebuf.String())
}

func TestDisasmCommand(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "d.lox")
	require.NoError(t, os.WriteFile(path, []byte("fun f() { return 1; }\nprint f();"), 0600))

	var buf, ebuf bytes.Buffer
	stdio := mainer.Stdio{Stdout: &buf, Stderr: &ebuf}
	var c Cmd
	require.NoError(t, c.Disasm(context.Background(), stdio, []string{path}))

	out := buf.String()
	assert.Contains(t, out, "== <script> ==")
	assert.Contains(t, out, "== <fn f> ==")
	assert.Contains(t, out, "closure")
	assert.Contains(t, out, "call")
	assert.Contains(t, out, "return")
}
