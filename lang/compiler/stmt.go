package compiler

import (
	"github.com/loxlang/golox/lang/machine"
	"github.com/loxlang/golox/lang/token"
)

func (c *compiler) declaration() {
	switch {
	case c.match(token.CLASS):
		c.classDeclaration()
	case c.match(token.FUN):
		c.funDeclaration()
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.statement()
	}

	if c.panicMode {
		c.synchronize()
	}
}

func (c *compiler) statement() {
	switch {
	case c.match(token.PRINT):
		c.printStatement()
	case c.match(token.IF):
		c.ifStatement()
	case c.match(token.RETURN):
		c.returnStatement()
	case c.match(token.WHILE):
		c.whileStatement()
	case c.match(token.FOR):
		c.forStatement()
	case c.match(token.LBRACE):
		c.beginScope()
		c.block()
		c.endScope()
	default:
		c.expressionStatement()
	}
}

func (c *compiler) block() {
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.declaration()
	}
	c.consume(token.RBRACE, "Expect '}' after block.")
}

func (c *compiler) varDeclaration() {
	global := c.parseVariable("Expect variable name.")
	if c.match(token.EQ) {
		c.expression()
	} else {
		c.emitOp(machine.NIL)
	}
	c.consume(token.SEMI, "Expect ';' after variable declaration.")
	c.defineVariable(global)
}

func (c *compiler) funDeclaration() {
	global := c.parseVariable("Expect function name.")
	// a function may refer to itself, so its name is usable immediately
	c.markInitialized()
	c.function(kindFunction)
	c.defineVariable(global)
}

// function compiles a parameter list and body in a fresh context, then emits
// the CLOSURE instruction with one (isLocal, index) pair per upvalue. The
// name must be the previously consumed identifier.
func (c *compiler) function(kind funcKind) {
	c.beginFunc(c.prevVal.Raw, kind)
	c.beginScope()

	c.consume(token.LPAREN, "Expect '(' after function name.")
	if !c.check(token.RPAREN) {
		for {
			c.fcomp.fn.Arity++
			if c.fcomp.fn.Arity > maxArity {
				c.errorAtCurrent("Can't have more than 255 parameters.")
			}
			idx := c.parseVariable("Expect parameter name.")
			c.defineVariable(idx)
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after parameters.")
	c.consume(token.LBRACE, "Expect '{' before function body.")
	c.block()

	// capture the context before popping it, the upvalue directives belong
	// to the finished function
	fc := c.fcomp
	fn := c.endFunc()
	c.emitOp(machine.CLOSURE)
	c.emit(c.makeConstant(fn))
	for i := 0; i < fn.UpvalueCount; i++ {
		isLocal := byte(0)
		if fc.upvalues[i].isLocal {
			isLocal = 1
		}
		c.emit(isLocal, fc.upvalues[i].index)
	}
}

func (c *compiler) classDeclaration() {
	c.consume(token.IDENT, "Expect class name.")
	className := c.prevVal.Raw
	nameConst := c.identifierConstant(className)
	c.declareVariable()

	c.emitOp(machine.CLASS)
	c.emit(nameConst)
	c.defineVariable(nameConst)

	cc := &classCompiler{enclosing: c.ccomp}
	c.ccomp = cc

	if c.match(token.LT) {
		c.consume(token.IDENT, "Expect superclass name.")
		c.variable(false)
		if c.prevVal.Raw == className {
			c.error("A class can't inherit from itself.")
		}

		// the superclass stays on the stack for the whole class body as a
		// local named "super", so methods can capture it
		c.beginScope()
		c.addLocal("super")
		c.defineVariable(0)

		c.namedVariable(className, false)
		c.emitOp(machine.INHERIT)
		cc.hasSuperclass = true
	}

	c.namedVariable(className, false)
	c.consume(token.LBRACE, "Expect '{' before class body.")
	for !c.check(token.RBRACE) && !c.check(token.EOF) {
		c.method()
	}
	c.consume(token.RBRACE, "Expect '}' after class body.")
	c.emitOp(machine.POP)

	if cc.hasSuperclass {
		c.endScope()
	}
	c.ccomp = cc.enclosing
}

func (c *compiler) method() {
	c.consume(token.IDENT, "Expect method name.")
	name := c.identifierConstant(c.prevVal.Raw)
	kind := kindMethod
	if c.prevVal.Raw == "init" {
		kind = kindInitializer
	}
	c.function(kind)
	c.emitOp(machine.METHOD)
	c.emit(name)
}

func (c *compiler) printStatement() {
	c.expression()
	c.consume(token.SEMI, "Expect ';' after value.")
	c.emitOp(machine.PRINT)
}

func (c *compiler) expressionStatement() {
	c.expression()
	c.consume(token.SEMI, "Expect ';' after expression.")
	c.emitOp(machine.POP)
}

func (c *compiler) ifStatement() {
	c.consume(token.LPAREN, "Expect '(' after 'if'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	thenJump := c.emitJump(machine.JMPFALSE)
	c.emitOp(machine.POP)
	c.statement()
	elseJump := c.emitJump(machine.JMP)

	c.patchJump(thenJump)
	c.emitOp(machine.POP)
	if c.match(token.ELSE) {
		c.statement()
	}
	c.patchJump(elseJump)
}

func (c *compiler) whileStatement() {
	loopStart := len(c.chunk().Code)
	c.consume(token.LPAREN, "Expect '(' after 'while'.")
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after condition.")

	exitJump := c.emitJump(machine.JMPFALSE)
	c.emitOp(machine.POP)
	c.statement()
	c.emitLoop(loopStart)

	c.patchJump(exitJump)
	c.emitOp(machine.POP)
}

// forStatement desugars to a scope wrapping the initializer, a conditional
// loop, and an increment section the body's backward jump routes through.
// The condition's POP is emitted on both exit paths only when a condition
// clause exists, keeping the stack balanced when it is omitted.
func (c *compiler) forStatement() {
	c.beginScope()
	c.consume(token.LPAREN, "Expect '(' after 'for'.")
	switch {
	case c.match(token.SEMI):
		// no initializer
	case c.match(token.VAR):
		c.varDeclaration()
	default:
		c.expressionStatement()
	}

	loopStart := len(c.chunk().Code)
	exitJump := -1
	if !c.match(token.SEMI) {
		c.expression()
		c.consume(token.SEMI, "Expect ';' after loop condition.")
		exitJump = c.emitJump(machine.JMPFALSE)
		c.emitOp(machine.POP)
	}

	if !c.match(token.RPAREN) {
		bodyJump := c.emitJump(machine.JMP)
		incrStart := len(c.chunk().Code)
		c.expression()
		c.emitOp(machine.POP)
		c.consume(token.RPAREN, "Expect ')' after for clauses.")

		c.emitLoop(loopStart)
		loopStart = incrStart
		c.patchJump(bodyJump)
	}

	c.statement()
	c.emitLoop(loopStart)

	if exitJump != -1 {
		c.patchJump(exitJump)
		c.emitOp(machine.POP)
	}
	c.endScope()
}

func (c *compiler) returnStatement() {
	if c.fcomp.kind == kindScript {
		c.error("Can't return from top-level code.")
	}
	if c.match(token.SEMI) {
		c.emitReturn()
		return
	}
	if c.fcomp.kind == kindInitializer {
		c.error("Can't return a value from an initializer.")
	}
	c.expression()
	c.consume(token.SEMI, "Expect ';' after return value.")
	c.emitOp(machine.RETURN)
}
