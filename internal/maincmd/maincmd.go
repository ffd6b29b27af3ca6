// Package maincmd implements the command-line interface: running a script
// file, the interactive prompt, and the tokenize/disasm debugging commands.
package maincmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"

	"github.com/loxlang/golox/lang/compiler"
	"github.com/loxlang/golox/lang/machine"
	"github.com/mna/mainer"
)

const binName = "golox"

// sysexits-style codes, so scripts can tell a bad program from a bad run
const (
	exitCompile mainer.ExitCode = 65
	exitRuntime mainer.ExitCode = 70
)

var (
	shortUsage = fmt.Sprintf(`
usage: %s [<option>...] [<command>] [<path>]
Run '%[1]s --help' for details.
`, binName)

	longUsage = fmt.Sprintf(`usage: %s [<option>...] [<path>]
       %[1]s [<option>...] <command> <path>...
       %[1]s -h|--help
       %[1]s -v|--version

Interpreter and all-in-one tool for the %[1]s programming language.

With no argument, %[1]s starts an interactive prompt that reads and
executes one statement per line; globals persist across lines. With a
<path> argument, it runs that script and exits with code 0 on success,
%[2]d if the script failed to compile and %[3]d if it failed at runtime.

The <command> can be one of:
       tokenize                  Print the token stream of the source
                                 files.
       disasm                    Compile the source files and print the
                                 disassembled bytecode.

Valid flag options are:
       -h --help                 Show this help and exit.
       -v --version              Print version and exit.

The GOLOX_TRACE, GOLOX_GC_STRESS, GOLOX_GC_LOG, GOLOX_GC_NEXT and
GOLOX_MAX_FRAMES environment variables tune the machine, see the
machine package documentation.
`, binName, exitCompile, exitRuntime)
)

type Cmd struct {
	BuildVersion string
	BuildDate    string

	Help    bool `flag:"h,help"`
	Version bool `flag:"v,version"`

	args  []string
	flags map[string]bool
	cmdFn func(context.Context, mainer.Stdio, []string) error
}

func (c *Cmd) SetArgs(args []string) {
	c.args = args
}

func (c *Cmd) SetFlags(flags map[string]bool) {
	c.flags = flags
}

func (c *Cmd) Validate() error {
	if c.Help || c.Version {
		return nil
	}

	commands := buildCmds(c)

	if len(c.args) == 0 {
		c.cmdFn = commands["repl"]
		return nil
	}

	if fn, ok := commands[c.args[0]]; ok && c.args[0] != "run" && c.args[0] != "repl" {
		if len(c.args[1:]) == 0 {
			return fmt.Errorf("%s: at least one file must be provided", c.args[0])
		}
		c.cmdFn = fn
		c.args = c.args[1:]
		return nil
	}

	// anything else is a script path for the run command
	if len(c.args) > 1 {
		return fmt.Errorf("expected a single script path, got %d arguments", len(c.args))
	}
	c.cmdFn = commands["run"]
	return nil
}

func (c *Cmd) Main(args []string, stdio mainer.Stdio) mainer.ExitCode {
	p := mainer.Parser{
		EnvVars:   false,
		EnvPrefix: binName + "_",
	}
	if err := p.Parse(args, c); err != nil {
		fmt.Fprintf(stdio.Stderr, "invalid arguments: %s\n%s", err, shortUsage)
		return mainer.InvalidArgs
	}

	switch {
	case c.Help:
		fmt.Fprint(stdio.Stdout, longUsage)
		return mainer.Success

	case c.Version:
		fmt.Fprintf(stdio.Stdout, "%s %s %s\n", binName, c.BuildVersion, c.BuildDate)
		return mainer.Success
	}

	ctx := mainer.CancelOnSignal(context.Background(), os.Interrupt)
	if err := c.cmdFn(ctx, stdio, c.args); err != nil {
		// each command takes care of printing its errors, just map the kind
		// of failure to an exit code
		var rerr *machine.RuntimeError
		switch {
		case errors.As(err, &rerr):
			return exitRuntime
		case errors.Is(err, compiler.ErrCompile):
			return exitCompile
		}
		return mainer.Failure
	}
	return mainer.Success
}

// valid commands are those that take a mainer.Stdio and a slice of strings as
// input, and return an error as output.
func buildCmds(v interface{}) map[string]func(context.Context, mainer.Stdio, []string) error {
	cmds := make(map[string]func(context.Context, mainer.Stdio, []string) error)

	vv := reflect.ValueOf(v)
	vt := vv.Type()
	for i := 0; i < vt.NumMethod(); i++ {
		m := vt.Method(i)
		mt := m.Type

		// must take 4 parameters (including receiver) and return 1
		if mt.NumIn() != 4 || mt.NumOut() != 1 {
			continue
		}

		if rt := mt.Out(0); rt.Kind() != reflect.Interface || rt.Name() != "error" {
			continue
		}
		if p0 := mt.In(0); p0.Kind() != reflect.Ptr || p0.Elem().Name() != "Cmd" {
			continue
		}
		if p1 := mt.In(1); p1.Kind() != reflect.Interface || p1.Name() != "Context" {
			continue
		}
		if p2 := mt.In(2); p2.Kind() != reflect.Struct || p2.Name() != "Stdio" {
			continue
		}
		if p3 := mt.In(3); p3.Kind() != reflect.Slice || p3.Elem().Name() != "string" {
			continue
		}
		cmds[strings.ToLower(m.Name)] = vv.Method(i).Interface().(func(context.Context, mainer.Stdio, []string) error)
	}
	return cmds
}
