package machine

import "fmt"

// Opcode is a one-byte bytecode instruction. Operands, when present, follow
// the opcode in the instruction stream.
type Opcode uint8

// "x ADD y" is a "stack picture" that describes the state of the stack before
// and after execution of the instruction.
//
// OP<index> indicates an immediate operand that is an index into the
// specified table: constants, locals (frame slots), or upvalues. Name indexes
// always refer to an interned string in the constant pool.
const ( //nolint:revive
	CONSTANT Opcode = iota //             - CONSTANT<const>  value

	// literals
	NIL   //                              - NIL              nil
	TRUE  //                              - TRUE             true
	FALSE //                              - FALSE            false

	POP //                                x POP              -

	// variable access
	GETLOCAL     //                       - GETLOCAL<slot>     value
	SETLOCAL     //                   value SETLOCAL<slot>     value
	GETGLOBAL    //                       - GETGLOBAL<name>    value
	DEFINEGLOBAL //                   value DEFINEGLOBAL<name> -
	SETGLOBAL    //                   value SETGLOBAL<name>    value
	GETUPVALUE   //                       - GETUPVALUE<upval>  value
	SETUPVALUE   //                   value SETUPVALUE<upval>  value
	GETPROP      //                    inst GETPROP<name>      value
	SETPROP      //              inst value SETPROP<name>      value
	GETSUPER     //              recv super GETSUPER<name>     method

	// binary comparisons
	EQ //                               x y EQ               bool
	GT //                               x y GT               bool
	LT //                               x y LT               bool

	// binary arithmetic; ADD doubles as string concatenation
	ADD //                              x y ADD              x+y
	SUB //                              x y SUB              x-y
	MUL //                              x y MUL              x*y
	DIV //                              x y DIV              x/y

	// unary operators
	NOT //                                x NOT              bool
	NEG //                                x NEG              -x

	PRINT //                              x PRINT            -

	// control flow; JMP and JMPFALSE take a 16-bit forward offset, LOOP a
	// 16-bit backward offset. JMPFALSE does not pop the condition.
	JMP      //                           - JMP<offset>      -
	JMPFALSE //                        cond JMPFALSE<offset>  cond
	LOOP     //                           - LOOP<offset>     -

	// calls; callee sits below its arguments on the stack
	CALL        //           fn a1 .. an CALL<n>              result
	INVOKE      //         inst a1 .. an INVOKE<name><n>      result
	SUPERINVOKE // recv a1 .. an super SUPERINVOKE<name><n>   result

	// CLOSURE is followed by two bytes per upvalue: isLocal flag, index
	CLOSURE      //                       - CLOSURE<func>    closure
	CLOSEUPVALUE //                       x CLOSEUPVALUE     -

	RETURN //                         value RETURN           -

	// classes
	CLASS   //                            - CLASS<name>      class
	INHERIT //                  super class INHERIT          super
	METHOD  //                class closure METHOD<name>     class

	opcodeMax = METHOD
)

var opcodeNames = [...]string{
	ADD:          "add",
	CALL:         "call",
	CLASS:        "class",
	CLOSEUPVALUE: "closeupvalue",
	CLOSURE:      "closure",
	CONSTANT:     "constant",
	DEFINEGLOBAL: "defineglobal",
	DIV:          "div",
	EQ:           "eq",
	FALSE:        "false",
	GETGLOBAL:    "getglobal",
	GETLOCAL:     "getlocal",
	GETPROP:      "getprop",
	GETSUPER:     "getsuper",
	GETUPVALUE:   "getupvalue",
	GT:           "gt",
	INHERIT:      "inherit",
	INVOKE:       "invoke",
	JMP:          "jmp",
	JMPFALSE:     "jmpfalse",
	LOOP:         "loop",
	LT:           "lt",
	METHOD:       "method",
	MUL:          "mul",
	NEG:          "neg",
	NIL:          "nil",
	NOT:          "not",
	POP:          "pop",
	PRINT:        "print",
	RETURN:       "return",
	SETGLOBAL:    "setglobal",
	SETLOCAL:     "setlocal",
	SETPROP:      "setprop",
	SUB:          "sub",
	SUPERINVOKE:  "superinvoke",
	TRUE:         "true",
	SETUPVALUE:   "setupvalue",
}

func (op Opcode) String() string {
	if op <= opcodeMax {
		if name := opcodeNames[op]; name != "" {
			return name
		}
	}
	return fmt.Sprintf("illegal op (%d)", op)
}
