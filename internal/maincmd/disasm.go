package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/loxlang/golox/lang/compiler"
	"github.com/loxlang/golox/lang/machine"
	"github.com/mna/mainer"
)

// Disasm compiles each file and prints the disassembled bytecode of the
// top-level script and, recursively, of every function it contains.
func (c *Cmd) Disasm(ctx context.Context, stdio mainer.Stdio, args []string) error {
	interp, err := newInterp(stdio)
	if err != nil {
		fmt.Fprintf(stdio.Stderr, "%s\n", err)
		return err
	}

	for _, file := range args {
		b, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s\n", err)
			return err
		}
		fn, err := compiler.Compile(b, interp.Heap(), stdio.Stderr)
		if err != nil {
			return err
		}
		dumpFunc(stdio, fn)
	}
	return nil
}

func dumpFunc(stdio mainer.Stdio, fn *machine.Function) {
	machine.Disassemble(stdio.Stdout, &fn.Chunk, fn.String())
	for _, v := range fn.Chunk.Constants {
		if nested, ok := v.(*machine.Function); ok {
			dumpFunc(stdio, nested)
		}
	}
}
