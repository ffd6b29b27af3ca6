// Parts of the machine package are adapted from the Starlark source code:
// https://github.com/google/starlark-go/tree/ee8ed142361c69d52fe8e9fb5e311d2a0a7c02de
//
// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package machine

import (
	"fmt"
	"io"
)

// each call frame may address up to 256 stack slots
const stackPerFrame = 256

// A frame records a call in progress: the closure being executed, the
// instruction pointer into its chunk, and the stack slot of the frame's
// slot 0 (the receiver for methods, the callee for ordinary calls).
type frame struct {
	closure *Closure
	ip      int
	base    int
}

// An Interp is the virtual machine: operand stack, call-frame stack, global
// table, open-upvalue list and heap. It is reusable: Run may be called
// repeatedly (the REPL does), and globals, interned strings and the heap
// persist across runs.
type Interp struct {
	cfg    Config
	heap   *Heap
	stdout io.Writer
	stderr io.Writer

	stack []Value
	sp    int

	frames []frame
	nf     int

	globals      Table
	openUpvalues *Upvalue // sorted by descending slot
	initString   *Str     // interned "init", used for class construction
}

var _ Rooter = (*Interp)(nil)

// New creates a machine writing program output to stdout and diagnostics
// (runtime errors, traces, collector logs) to stderr.
func New(cfg Config, stdout, stderr io.Writer) *Interp {
	if cfg.MaxFrames <= 0 {
		cfg.MaxFrames = DefaultConfig().MaxFrames
	}
	i := &Interp{
		cfg:    cfg,
		stdout: stdout,
		stderr: stderr,
		stack:  make([]Value, cfg.MaxFrames*stackPerFrame),
		frames: make([]frame, cfg.MaxFrames),
	}
	i.heap = NewHeap(cfg, stderr)
	i.heap.AddRoot(i)
	i.initString = i.heap.NewString("init")
	i.DefineNative("clock", 0, clockNative)
	return i
}

// Heap returns the machine's heap, for the compiler to allocate functions and
// interned strings on.
func (i *Interp) Heap() *Heap { return i.heap }

// MarkRoots implements Rooter: everything on the operand stack, every
// frame's closure, every open upvalue, the globals table and the cached
// "init" string.
func (i *Interp) MarkRoots(h *Heap) {
	for _, v := range i.stack[:i.sp] {
		h.MarkValue(v)
	}
	for k := 0; k < i.nf; k++ {
		h.MarkObject(i.frames[k].closure)
	}
	for uv := i.openUpvalues; uv != nil; uv = uv.next {
		h.MarkObject(uv)
	}
	h.markTable(&i.globals)
	h.MarkObject(i.initString)
}

// DefineNative exposes a Go function to scripts under the given global name.
// An arity of -1 accepts any number of arguments.
func (i *Interp) DefineNative(name string, arity int, fn NativeFn) {
	// keep both objects on the stack until published in the globals table, a
	// collection may run during either allocation
	s := i.heap.NewString(name)
	i.push(s)
	n := i.heap.NewNative(name, arity, fn)
	i.push(n)
	i.globals.Set(s, n)
	i.pop()
	i.pop()
}

// A RuntimeError is returned by Run when execution failed; the message and
// stack trace have already been written to the machine's stderr.
type RuntimeError struct {
	Msg string
}

func (e *RuntimeError) Error() string { return "runtime error: " + e.Msg }

// Run executes a compiled top-level function. On runtime error the stacks are
// reset so the machine remains usable, and a *RuntimeError is returned.
func (i *Interp) Run(fn *Function) error {
	i.push(fn)
	cl := i.heap.NewClosure(fn)
	i.pop()
	i.push(cl)
	if err := i.call(cl, 0); err != nil {
		i.reportRuntimeError(err)
		return &RuntimeError{Msg: err.Error()}
	}
	return i.run()
}

func (i *Interp) push(v Value) {
	i.stack[i.sp] = v
	i.sp++
}

func (i *Interp) pop() Value {
	i.sp--
	return i.stack[i.sp]
}

func (i *Interp) peek(depth int) Value {
	return i.stack[i.sp-1-depth]
}

func (i *Interp) resetStack() {
	i.sp = 0
	i.nf = 0
	i.openUpvalues = nil
}

func (i *Interp) readByte(fr *frame) byte {
	b := fr.closure.Fn.Chunk.Code[fr.ip]
	fr.ip++
	return b
}

func (i *Interp) readShort(fr *frame) int {
	c := fr.closure.Fn.Chunk.Code
	v := int(c[fr.ip])<<8 | int(c[fr.ip+1])
	fr.ip += 2
	return v
}

func (i *Interp) readConstant(fr *frame) Value {
	return fr.closure.Fn.Chunk.Constants[i.readByte(fr)]
}

func (i *Interp) readString(fr *frame) *Str {
	return i.readConstant(fr).(*Str) // name operands are always interned strings
}

// run is the dispatch loop. It executes until the top-level frame returns or
// a runtime error unwinds everything.
func (i *Interp) run() error {
	fr := &i.frames[i.nf-1]
	var inFlightErr error

loop:
	for {
		if i.cfg.Trace {
			i.traceInstruction(fr)
		}

		op := Opcode(i.readByte(fr))
		switch op {
		case CONSTANT:
			i.push(i.readConstant(fr))

		case NIL:
			i.push(Nil)

		case TRUE:
			i.push(True)

		case FALSE:
			i.push(False)

		case POP:
			i.pop()

		case GETLOCAL:
			slot := int(i.readByte(fr))
			i.push(i.stack[fr.base+slot])

		case SETLOCAL:
			slot := int(i.readByte(fr))
			i.stack[fr.base+slot] = i.peek(0)

		case GETGLOBAL:
			name := i.readString(fr)
			v, ok := i.globals.Get(name)
			if !ok {
				inFlightErr = fmt.Errorf("Undefined variable '%s'.", name)
				break loop
			}
			i.push(v)

		case DEFINEGLOBAL:
			name := i.readString(fr)
			i.globals.Set(name, i.peek(0))
			i.pop()

		case SETGLOBAL:
			name := i.readString(fr)
			if i.globals.Set(name, i.peek(0)) {
				// assignment to a name never defined: undo and fail
				i.globals.Delete(name)
				inFlightErr = fmt.Errorf("Undefined variable '%s'.", name)
				break loop
			}

		case GETUPVALUE:
			uv := fr.closure.Upvalues[i.readByte(fr)]
			if uv.slot >= 0 {
				i.push(i.stack[uv.slot])
			} else {
				i.push(uv.closed)
			}

		case SETUPVALUE:
			uv := fr.closure.Upvalues[i.readByte(fr)]
			if uv.slot >= 0 {
				i.stack[uv.slot] = i.peek(0)
			} else {
				uv.closed = i.peek(0)
			}

		case GETPROP:
			inst, ok := i.peek(0).(*Instance)
			if !ok {
				inFlightErr = fmt.Errorf("Only instances have properties.")
				break loop
			}
			name := i.readString(fr)
			if v, ok := inst.Fields.Get(name); ok {
				i.pop()
				i.push(v)
				break
			}
			if inFlightErr = i.bindMethod(inst.Class, name); inFlightErr != nil {
				break loop
			}

		case SETPROP:
			inst, ok := i.peek(1).(*Instance)
			if !ok {
				inFlightErr = fmt.Errorf("Only instances have fields.")
				break loop
			}
			name := i.readString(fr)
			inst.Fields.Set(name, i.peek(0))
			v := i.pop()
			i.pop()
			i.push(v)

		case GETSUPER:
			name := i.readString(fr)
			super := i.pop().(*Class) // compiler guarantees the "super" slot
			if inFlightErr = i.bindMethod(super, name); inFlightErr != nil {
				break loop
			}

		case EQ:
			y := i.pop()
			x := i.pop()
			i.push(Bool(Equal(x, y)))

		case GT, LT:
			yn, yok := i.peek(0).(Number)
			xn, xok := i.peek(1).(Number)
			if !xok || !yok {
				inFlightErr = fmt.Errorf("Operands must be numbers.")
				break loop
			}
			i.pop()
			i.pop()
			if op == GT {
				i.push(Bool(xn > yn))
			} else {
				i.push(Bool(xn < yn))
			}

		case ADD:
			if xs, ok := i.peek(1).(*Str); ok {
				ys, ok := i.peek(0).(*Str)
				if !ok {
					inFlightErr = fmt.Errorf("Operands must be two numbers or two strings.")
					break loop
				}
				// both operands stay on the stack while the result is
				// allocated, a collection may run during NewString
				z := i.heap.NewString(xs.s + ys.s)
				i.pop()
				i.pop()
				i.push(z)
				break
			}
			xn, xok := i.peek(1).(Number)
			yn, yok := i.peek(0).(Number)
			if !xok || !yok {
				inFlightErr = fmt.Errorf("Operands must be two numbers or two strings.")
				break loop
			}
			i.pop()
			i.pop()
			i.push(xn + yn)

		case SUB, MUL, DIV:
			yn, yok := i.peek(0).(Number)
			xn, xok := i.peek(1).(Number)
			if !xok || !yok {
				inFlightErr = fmt.Errorf("Operands must be numbers.")
				break loop
			}
			i.pop()
			i.pop()
			switch op {
			case SUB:
				i.push(xn - yn)
			case MUL:
				i.push(xn * yn)
			case DIV:
				i.push(xn / yn)
			}

		case NOT:
			i.push(!Truth(i.pop()))

		case NEG:
			n, ok := i.peek(0).(Number)
			if !ok {
				inFlightErr = fmt.Errorf("Operand must be a number.")
				break loop
			}
			i.pop()
			i.push(-n)

		case PRINT:
			fmt.Fprintln(i.stdout, i.pop().String())

		case JMP:
			off := i.readShort(fr)
			fr.ip += off

		case JMPFALSE:
			off := i.readShort(fr)
			if !Truth(i.peek(0)) {
				fr.ip += off
			}

		case LOOP:
			off := i.readShort(fr)
			fr.ip -= off

		case CALL:
			argc := int(i.readByte(fr))
			if inFlightErr = i.callValue(i.peek(argc), argc); inFlightErr != nil {
				break loop
			}
			fr = &i.frames[i.nf-1]

		case INVOKE:
			name := i.readString(fr)
			argc := int(i.readByte(fr))
			if inFlightErr = i.invoke(name, argc); inFlightErr != nil {
				break loop
			}
			fr = &i.frames[i.nf-1]

		case SUPERINVOKE:
			name := i.readString(fr)
			argc := int(i.readByte(fr))
			super := i.pop().(*Class)
			if inFlightErr = i.invokeFromClass(super, name, argc); inFlightErr != nil {
				break loop
			}
			fr = &i.frames[i.nf-1]

		case CLOSURE:
			fn := i.readConstant(fr).(*Function)
			cl := i.heap.NewClosure(fn)
			// push before capturing: captureUpvalue allocates and the closure
			// must be reachable
			i.push(cl)
			for k := 0; k < fn.UpvalueCount; k++ {
				isLocal := i.readByte(fr)
				index := int(i.readByte(fr))
				if isLocal == 1 {
					cl.Upvalues[k] = i.captureUpvalue(fr.base + index)
				} else {
					cl.Upvalues[k] = fr.closure.Upvalues[index]
				}
			}

		case CLOSEUPVALUE:
			i.closeUpvalues(i.sp - 1)
			i.pop()

		case RETURN:
			result := i.pop()
			i.closeUpvalues(fr.base)
			i.nf--
			if i.nf == 0 {
				i.pop()
				break loop
			}
			i.sp = fr.base
			i.push(result)
			fr = &i.frames[i.nf-1]

		case CLASS:
			i.push(i.heap.NewClass(i.readString(fr)))

		case INHERIT:
			super, ok := i.peek(1).(*Class)
			if !ok {
				inFlightErr = fmt.Errorf("Superclass must be a class.")
				break loop
			}
			sub := i.peek(0).(*Class)
			sub.Methods.AddAll(&super.Methods)
			i.pop() // the subclass; the superclass stays as the "super" local

		case METHOD:
			name := i.readString(fr)
			method := i.peek(0).(*Closure)
			class := i.peek(1).(*Class)
			class.Methods.Set(name, method)
			i.pop()

		default:
			panic(fmt.Sprintf("unimplemented: %s", op))
		}
	}

	if inFlightErr != nil {
		i.reportRuntimeError(inFlightErr)
		return &RuntimeError{Msg: inFlightErr.Error()}
	}
	return nil
}

// callValue dispatches a call on any value: closures, natives, classes
// (construction) and bound methods are callable, everything else fails.
func (i *Interp) callValue(callee Value, argc int) error {
	switch callee := callee.(type) {
	case *Closure:
		return i.call(callee, argc)

	case *Native:
		if callee.Arity >= 0 && argc != callee.Arity {
			return fmt.Errorf("Expected %d arguments but got %d.", callee.Arity, argc)
		}
		res, err := callee.Fn(i.stack[i.sp-argc : i.sp])
		if err != nil {
			return err
		}
		i.sp -= argc + 1
		i.push(res)
		return nil

	case *Class:
		// construction: the instance takes the callee slot so the
		// initializer's slot 0 is the receiver
		inst := i.heap.NewInstance(callee)
		i.stack[i.sp-argc-1] = inst
		if init, ok := callee.Methods.Get(i.initString); ok {
			return i.call(init.(*Closure), argc)
		}
		if argc != 0 {
			return fmt.Errorf("Expected 0 arguments but got %d.", argc)
		}
		return nil

	case *BoundMethod:
		i.stack[i.sp-argc-1] = callee.Receiver
		return i.call(callee.Method, argc)

	default:
		return fmt.Errorf("Can only call functions and classes.")
	}
}

func (i *Interp) call(cl *Closure, argc int) error {
	if argc != cl.Fn.Arity {
		return fmt.Errorf("Expected %d arguments but got %d.", cl.Fn.Arity, argc)
	}
	if i.nf == len(i.frames) {
		return fmt.Errorf("Stack overflow.")
	}
	i.frames[i.nf] = frame{closure: cl, base: i.sp - argc - 1}
	i.nf++
	return nil
}

// invoke is the property-call fast path: fields are checked before methods so
// a field holding a callable shadows a same-named method, then the method is
// called directly without allocating a bound method.
func (i *Interp) invoke(name *Str, argc int) error {
	inst, ok := i.peek(argc).(*Instance)
	if !ok {
		return fmt.Errorf("Only instances have methods.")
	}
	if field, ok := inst.Fields.Get(name); ok {
		i.stack[i.sp-argc-1] = field
		return i.callValue(field, argc)
	}
	return i.invokeFromClass(inst.Class, name, argc)
}

func (i *Interp) invokeFromClass(class *Class, name *Str, argc int) error {
	m, ok := class.Methods.Get(name)
	if !ok {
		return fmt.Errorf("Undefined property '%s'.", name)
	}
	return i.call(m.(*Closure), argc)
}

// bindMethod looks name up in class and pushes a bound method pairing it with
// the receiver at top of stack, replacing the receiver.
func (i *Interp) bindMethod(class *Class, name *Str) error {
	m, ok := class.Methods.Get(name)
	if !ok {
		return fmt.Errorf("Undefined property '%s'.", name)
	}
	bound := i.heap.NewBoundMethod(i.peek(0), m.(*Closure))
	i.pop()
	i.push(bound)
	return nil
}

// captureUpvalue returns the open upvalue for the given stack slot, creating
// and inserting it in the sorted list if no closure captured that slot yet.
// Capturing is idempotent: sibling closures share the upvalue.
func (i *Interp) captureUpvalue(slot int) *Upvalue {
	var prev *Upvalue
	uv := i.openUpvalues
	for uv != nil && uv.slot > slot {
		prev = uv
		uv = uv.next
	}
	if uv != nil && uv.slot == slot {
		return uv
	}

	created := i.heap.NewUpvalue(slot)
	created.next = uv
	if prev == nil {
		i.openUpvalues = created
	} else {
		prev.next = created
	}
	return created
}

// closeUpvalues closes every open upvalue at or above the given stack slot:
// the captured value moves from the stack into the upvalue's owned cell.
func (i *Interp) closeUpvalues(last int) {
	for i.openUpvalues != nil && i.openUpvalues.slot >= last {
		uv := i.openUpvalues
		uv.closed = i.stack[uv.slot]
		uv.slot = -1
		i.openUpvalues = uv.next
		uv.next = nil
	}
}

// reportRuntimeError prints the message and a stack trace from innermost to
// outermost frame, then resets the stacks so the machine remains usable.
func (i *Interp) reportRuntimeError(err error) {
	fmt.Fprintln(i.stderr, err)
	for k := i.nf - 1; k >= 0; k-- {
		fr := &i.frames[k]
		fn := fr.closure.Fn
		line := 0
		if fr.ip > 0 && fr.ip <= len(fn.Chunk.Lines) {
			line = fn.Chunk.Lines[fr.ip-1]
		}
		if fn.Name == nil {
			fmt.Fprintf(i.stderr, "[line %d] in script\n", line)
		} else {
			fmt.Fprintf(i.stderr, "[line %d] in %s()\n", line, fn.Name)
		}
	}
	i.resetStack()
}

func (i *Interp) traceInstruction(fr *frame) {
	fmt.Fprint(i.stderr, "          ")
	for _, v := range i.stack[:i.sp] {
		fmt.Fprintf(i.stderr, "[ %s ]", v)
	}
	fmt.Fprintln(i.stderr)
	disasmInstruction(i.stderr, &fr.closure.Fn.Chunk, fr.ip)
}
