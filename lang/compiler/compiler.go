// Parts of the compiler package are adapted from the Starlark source code:
// https://github.com/google/starlark-go/tree/ee8ed142361c69d52fe8e9fb5e311d2a0a7c02de
//
// Copyright 2017 The Bazel Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package compiler translates source text directly to bytecode in a single
// pass: a Pratt parser whose handlers emit instructions as they consume
// tokens, with no intermediate tree. Variable resolution (locals, upvalues,
// globals) happens inline during parsing.
package compiler

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/dolthub/swiss"
	"github.com/loxlang/golox/lang/machine"
	"github.com/loxlang/golox/lang/scanner"
	"github.com/loxlang/golox/lang/token"
)

// ErrCompile is returned by Compile when the source had errors; the
// individual errors were already printed as they were found.
var ErrCompile = errors.New("compile failed")

const (
	maxLocals    = 256
	maxUpvalues  = 256
	maxConstants = 256
	maxArity     = 255
)

// funcKind discriminates the kinds of function bodies being compiled; it
// drives the implicit return, the meaning of slot 0 and the legality of
// 'this' and 'return'.
type funcKind int

const (
	kindScript funcKind = iota
	kindFunction
	kindMethod
	kindInitializer
)

type local struct {
	name       string
	depth      int // -1 while declared but not yet defined
	isCaptured bool
}

type upvalue struct {
	index   uint8
	isLocal bool
}

// A funcCompiler holds the per-function compilation state. Nested function
// declarations push a new one, linked through enclosing; the chain is also
// what the collector walks to root in-progress functions.
type funcCompiler struct {
	enclosing *funcCompiler
	fn        *machine.Function
	kind      funcKind

	locals  [maxLocals]local
	nlocals int

	upvalues [maxUpvalues]upvalue
	depth    int // current lexical scope depth, 0 is global

	// dedup cache for number and interned-string constants, so repeated
	// literals and names share one pool slot
	consts *swiss.Map[machine.Value, uint8]
}

// A classCompiler tracks the innermost class declaration being compiled, and
// whether it declared a superclass; 'this' and 'super' are legal only when
// one is active.
type classCompiler struct {
	enclosing     *classCompiler
	hasSuperclass bool
}

// A compiler holds the parser state shared by all nested function
// compilations of one compile call.
type compiler struct {
	sc   scanner.Scanner
	heap *machine.Heap
	errw io.Writer

	cur, prev       token.Token
	curVal, prevVal token.Value

	hadError  bool
	panicMode bool

	fcomp *funcCompiler
	ccomp *classCompiler
}

var _ machine.Rooter = (*compiler)(nil)

// Compile compiles source text to a top-level function on the given heap.
// Compile errors are printed to errw as they are found; if any occurred the
// function is discarded and an error is returned.
func Compile(src []byte, h *machine.Heap, errw io.Writer) (*machine.Function, error) {
	c := &compiler{heap: h, errw: errw}

	// the chain of in-progress functions must be reachable for the collector
	h.AddRoot(c)
	defer h.RemoveRoot(c)

	c.sc.Init(src, c.scanError)
	c.beginFunc("", kindScript)

	c.advance()
	for !c.match(token.EOF) {
		c.declaration()
	}
	fn := c.endFunc()

	if c.hadError {
		return nil, ErrCompile
	}
	return fn, nil
}

// MarkRoots implements machine.Rooter for the chain of functions being
// compiled; everything they reference (names, constants, nested functions)
// is reached through them.
func (c *compiler) MarkRoots(h *machine.Heap) {
	for fc := c.fcomp; fc != nil; fc = fc.enclosing {
		if fc.fn != nil {
			h.MarkObject(fc.fn)
		}
	}
}

// beginFunc pushes a new function compilation context. Slot 0 is reserved:
// methods and initializers use it for the receiver under the name "this",
// other functions keep it unnameable.
func (c *compiler) beginFunc(name string, kind funcKind) {
	fc := &funcCompiler{
		enclosing: c.fcomp,
		kind:      kind,
		consts:    swiss.NewMap[machine.Value, uint8](16),
	}
	c.fcomp = fc
	fc.fn = c.heap.NewFunction()
	if kind != kindScript {
		fc.fn.Name = c.heap.NewString(name)
	}

	slot0 := &fc.locals[0]
	fc.nlocals = 1
	slot0.depth = 0
	if kind == kindMethod || kind == kindInitializer {
		slot0.name = "this"
	}
}

// endFunc emits the implicit return and pops the current context, returning
// the finished function.
func (c *compiler) endFunc() *machine.Function {
	c.emitReturn()
	fn := c.fcomp.fn
	c.fcomp = c.fcomp.enclosing
	return fn
}

func (c *compiler) beginScope() {
	c.fcomp.depth++
}

func (c *compiler) endScope() {
	fc := c.fcomp
	fc.depth--
	for fc.nlocals > 0 && fc.locals[fc.nlocals-1].depth > fc.depth {
		if fc.locals[fc.nlocals-1].isCaptured {
			c.emitOp(machine.CLOSEUPVALUE)
		} else {
			c.emitOp(machine.POP)
		}
		fc.nlocals--
	}
}

// parsing primitives

// advance moves to the next token. ILLEGAL tokens were already reported by
// the scanner's error handler, so they are skipped here and the parser only
// ever sees well-formed tokens.
func (c *compiler) advance() {
	c.prev, c.prevVal = c.cur, c.curVal
	for {
		c.cur = c.sc.Scan(&c.curVal)
		if c.cur != token.ILLEGAL {
			return
		}
	}
}

func (c *compiler) check(tok token.Token) bool {
	return c.cur == tok
}

func (c *compiler) match(tok token.Token) bool {
	if !c.check(tok) {
		return false
	}
	c.advance()
	return true
}

func (c *compiler) consume(tok token.Token, msg string) {
	if c.cur == tok {
		c.advance()
		return
	}
	c.errorAtCurrent(msg)
}

// error reporting; panic mode suppresses cascades until the parser
// resynchronizes at a statement boundary

func (c *compiler) scanError(pos token.Pos, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	fmt.Fprintf(c.errw, "[line %d] Error: %s\n", pos.Line(), msg)
}

func (c *compiler) errorAt(tok token.Token, val token.Value, msg string) {
	if c.panicMode {
		return
	}
	c.panicMode = true
	c.hadError = true
	if tok == token.EOF {
		fmt.Fprintf(c.errw, "[line %d] Error at end: %s\n", val.Pos.Line(), msg)
		return
	}
	fmt.Fprintf(c.errw, "[line %d] Error at '%s': %s\n", val.Pos.Line(), val.Raw, msg)
}

func (c *compiler) error(msg string) {
	c.errorAt(c.prev, c.prevVal, msg)
}

func (c *compiler) errorAtCurrent(msg string) {
	c.errorAt(c.cur, c.curVal, msg)
}

// synchronize discards tokens until a statement boundary: just past a
// semicolon, or just before a statement-start keyword.
func (c *compiler) synchronize() {
	c.panicMode = false
	for c.cur != token.EOF {
		if c.prev == token.SEMI {
			return
		}
		switch c.cur {
		case token.CLASS, token.FUN, token.VAR, token.FOR,
			token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		c.advance()
	}
}

// emission

func (c *compiler) chunk() *machine.Chunk {
	return &c.fcomp.fn.Chunk
}

func (c *compiler) emit(bs ...byte) {
	line := c.prevVal.Pos.Line()
	for _, b := range bs {
		c.chunk().Write(b, line)
	}
}

func (c *compiler) emitOp(op machine.Opcode) {
	c.emit(byte(op))
}

// emitJump emits op with a placeholder 16-bit offset and returns the offset's
// position for patchJump.
func (c *compiler) emitJump(op machine.Opcode) int {
	c.emitOp(op)
	c.emit(0xff, 0xff)
	return len(c.chunk().Code) - 2
}

func (c *compiler) patchJump(offset int) {
	// -2 for the offset bytes themselves
	jump := len(c.chunk().Code) - offset - 2
	if jump > math.MaxUint16 {
		c.error("Too much code to jump over.")
	}
	c.chunk().Code[offset] = byte(jump >> 8)
	c.chunk().Code[offset+1] = byte(jump)
}

// emitLoop emits a backward jump to loopStart.
func (c *compiler) emitLoop(loopStart int) {
	c.emitOp(machine.LOOP)
	offset := len(c.chunk().Code) - loopStart + 2
	if offset > math.MaxUint16 {
		c.error("Loop body too large.")
	}
	c.emit(byte(offset>>8), byte(offset))
}

// emitReturn emits the implicit return: an initializer yields its receiver,
// everything else nil.
func (c *compiler) emitReturn() {
	if c.fcomp.kind == kindInitializer {
		c.emitOp(machine.GETLOCAL)
		c.emit(0)
	} else {
		c.emitOp(machine.NIL)
	}
	c.emitOp(machine.RETURN)
}

// makeConstant adds v to the constant pool and returns its one-byte index.
// Numbers and interned strings are deduplicated through the cache.
func (c *compiler) makeConstant(v machine.Value) uint8 {
	fc := c.fcomp
	dedup := false
	switch v.(type) {
	case machine.Number, *machine.Str:
		dedup = true
		if idx, ok := fc.consts.Get(v); ok {
			return idx
		}
	}
	if len(c.chunk().Constants) >= maxConstants {
		c.error("Too many constants in one chunk.")
		return 0
	}
	idx := uint8(c.chunk().AddConstant(v))
	if dedup {
		fc.consts.Put(v, idx)
	}
	return idx
}

func (c *compiler) emitConstant(v machine.Value) {
	c.emitOp(machine.CONSTANT)
	c.emit(c.makeConstant(v))
}

// identifierConstant interns name and returns its constant-pool index.
func (c *compiler) identifierConstant(name string) uint8 {
	return c.makeConstant(c.heap.NewString(name))
}

// resolution

// resolveLocal returns the frame slot of name in fc, or -1. Reading a local
// inside its own initializing expression is an error.
func (c *compiler) resolveLocal(fc *funcCompiler, name string) int {
	for i := fc.nlocals - 1; i >= 0; i-- {
		l := &fc.locals[i]
		if l.name == name {
			if l.depth == -1 {
				c.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// resolveUpvalue resolves name in the enclosing compilers: a hit on an
// enclosing local marks it captured and records a local upvalue here; deeper
// hits chain through intermediate upvalue entries.
func (c *compiler) resolveUpvalue(fc *funcCompiler, name string) int {
	if fc.enclosing == nil {
		return -1
	}
	if slot := c.resolveLocal(fc.enclosing, name); slot != -1 {
		fc.enclosing.locals[slot].isCaptured = true
		return c.addUpvalue(fc, uint8(slot), true)
	}
	if up := c.resolveUpvalue(fc.enclosing, name); up != -1 {
		return c.addUpvalue(fc, uint8(up), false)
	}
	return -1
}

func (c *compiler) addUpvalue(fc *funcCompiler, index uint8, isLocal bool) int {
	n := fc.fn.UpvalueCount
	for i := 0; i < n; i++ {
		uv := &fc.upvalues[i]
		if uv.index == index && uv.isLocal == isLocal {
			return i
		}
	}
	if n == maxUpvalues {
		c.error("Too many closure variables in function.")
		return 0
	}
	fc.upvalues[n] = upvalue{index: index, isLocal: isLocal}
	fc.fn.UpvalueCount++
	return n
}

// declareVariable records a new local in the current scope; at scope 0
// globals are late-bound by name and need no declaration.
func (c *compiler) declareVariable() {
	fc := c.fcomp
	if fc.depth == 0 {
		return
	}
	name := c.prevVal.Raw
	for i := fc.nlocals - 1; i >= 0; i-- {
		l := &fc.locals[i]
		if l.depth != -1 && l.depth < fc.depth {
			break
		}
		if l.name == name {
			c.error("Already a variable with this name in this scope.")
		}
	}
	c.addLocal(name)
}

func (c *compiler) addLocal(name string) {
	fc := c.fcomp
	if fc.nlocals == maxLocals {
		c.error("Too many local variables in function.")
		return
	}
	fc.locals[fc.nlocals] = local{name: name, depth: -1}
	fc.nlocals++
}

// markInitialized completes a local declaration, making the name resolvable.
func (c *compiler) markInitialized() {
	fc := c.fcomp
	if fc.depth == 0 {
		return
	}
	fc.locals[fc.nlocals-1].depth = fc.depth
}

// parseVariable consumes a variable name and declares it; the returned
// constant index is meaningful only at global scope.
func (c *compiler) parseVariable(errMsg string) uint8 {
	c.consume(token.IDENT, errMsg)
	c.declareVariable()
	if c.fcomp.depth > 0 {
		return 0
	}
	return c.identifierConstant(c.prevVal.Raw)
}

func (c *compiler) defineVariable(global uint8) {
	if c.fcomp.depth > 0 {
		c.markInitialized()
		return
	}
	c.emitOp(machine.DEFINEGLOBAL)
	c.emit(global)
}

// namedVariable compiles a read of name, or an assignment when followed by
// '=' in assignment position: locals and upvalues resolve to slots at
// compile time, everything else falls through to a late-bound global.
func (c *compiler) namedVariable(name string, canAssign bool) {
	var getOp, setOp machine.Opcode
	arg := c.resolveLocal(c.fcomp, name)
	switch {
	case arg != -1:
		getOp, setOp = machine.GETLOCAL, machine.SETLOCAL
	default:
		if arg = c.resolveUpvalue(c.fcomp, name); arg != -1 {
			getOp, setOp = machine.GETUPVALUE, machine.SETUPVALUE
			break
		}
		arg = int(c.identifierConstant(name))
		getOp, setOp = machine.GETGLOBAL, machine.SETGLOBAL
	}

	if canAssign && c.match(token.EQ) {
		c.expression()
		c.emitOp(setOp)
		c.emit(byte(arg))
		return
	}
	c.emitOp(getOp)
	c.emit(byte(arg))
}
