package maincmd

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/loxlang/golox/lang/compiler"
	"github.com/loxlang/golox/lang/machine"
	"github.com/mattn/go-isatty"
	"github.com/mna/mainer"
)

func newInterp(stdio mainer.Stdio) (*machine.Interp, error) {
	cfg, err := machine.ConfigFromEnv()
	if err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return machine.New(cfg, stdio.Stdout, stdio.Stderr), nil
}

// Run compiles and executes a single script file.
func (c *Cmd) Run(ctx context.Context, stdio mainer.Stdio, args []string) error {
	b, err := os.ReadFile(args[0])
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}

	interp, err := newInterp(stdio)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}
	fn, err := compiler.Compile(b, interp.Heap(), stdio.Stderr)
	if err != nil {
		return err
	}
	// on runtime error the machine already printed the trace
	return interp.Run(fn)
}

// Repl reads and executes one line at a time. Each line compiles as a fresh
// top-level script on the same machine, so globals, interned strings and the
// heap persist across lines; erroneous lines are reported and skipped.
func (c *Cmd) Repl(ctx context.Context, stdio mainer.Stdio, args []string) error {
	interp, err := newInterp(stdio)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}

	// only prompt humans
	interactive := false
	if f, ok := stdio.Stdin.(*os.File); ok {
		interactive = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	}

	sc := bufio.NewScanner(stdio.Stdin)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if interactive {
			fmt.Fprint(stdio.Stdout, "> ")
		}
		if !sc.Scan() {
			if interactive {
				fmt.Fprintln(stdio.Stdout)
			}
			return sc.Err()
		}

		fn, err := compiler.Compile(sc.Bytes(), interp.Heap(), stdio.Stderr)
		if err != nil {
			continue
		}
		_ = interp.Run(fn) // already reported, the machine stays usable
	}
}
