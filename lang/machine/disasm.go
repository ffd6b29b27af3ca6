package machine

import (
	"fmt"
	"io"
)

// Disassemble writes a human-readable listing of the chunk to w: offset,
// source line (or | when unchanged), mnemonic and operands, with constant
// operands rendered. Functions referenced by CLOSURE are not recursed into;
// callers list each function's chunk separately.
func Disassemble(w io.Writer, c *Chunk, name string) {
	fmt.Fprintf(w, "== %s ==\n", name)
	for offset := 0; offset < len(c.Code); {
		offset = disasmInstruction(w, c, offset)
	}
}

func disasmInstruction(w io.Writer, c *Chunk, offset int) int {
	fmt.Fprintf(w, "%04d ", offset)
	if offset > 0 && c.Lines[offset] == c.Lines[offset-1] {
		fmt.Fprint(w, "   | ")
	} else {
		fmt.Fprintf(w, "%4d ", c.Lines[offset])
	}

	op := Opcode(c.Code[offset])
	switch op {
	case CONSTANT, GETGLOBAL, DEFINEGLOBAL, SETGLOBAL, GETPROP, SETPROP,
		GETSUPER, CLASS, METHOD:
		return constantInstruction(w, c, op, offset)

	case GETLOCAL, SETLOCAL, GETUPVALUE, SETUPVALUE, CALL:
		idx := c.Code[offset+1]
		fmt.Fprintf(w, "%-16s %4d\n", op, idx)
		return offset + 2

	case JMP, JMPFALSE:
		return jumpInstruction(w, c, op, 1, offset)

	case LOOP:
		return jumpInstruction(w, c, op, -1, offset)

	case INVOKE, SUPERINVOKE:
		idx := c.Code[offset+1]
		argc := c.Code[offset+2]
		fmt.Fprintf(w, "%-16s (%d args) %4d '%s'\n", op, argc, idx, c.Constants[idx])
		return offset + 3

	case CLOSURE:
		idx := c.Code[offset+1]
		fn := c.Constants[idx].(*Function)
		fmt.Fprintf(w, "%-16s %4d %s\n", op, idx, fn)
		offset += 2
		for k := 0; k < fn.UpvalueCount; k++ {
			kind := "upvalue"
			if c.Code[offset] == 1 {
				kind = "local"
			}
			fmt.Fprintf(w, "%04d    |                     %s %d\n", offset, kind, c.Code[offset+1])
			offset += 2
		}
		return offset

	default:
		fmt.Fprintf(w, "%s\n", op)
		return offset + 1
	}
}

func constantInstruction(w io.Writer, c *Chunk, op Opcode, offset int) int {
	idx := c.Code[offset+1]
	fmt.Fprintf(w, "%-16s %4d '%s'\n", op, idx, c.Constants[idx])
	return offset + 2
}

func jumpInstruction(w io.Writer, c *Chunk, op Opcode, sign int, offset int) int {
	jump := int(c.Code[offset+1])<<8 | int(c.Code[offset+2])
	fmt.Fprintf(w, "%-16s %4d -> %d\n", op, offset, offset+3+sign*jump)
	return offset + 3
}
