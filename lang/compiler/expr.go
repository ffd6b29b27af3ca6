package compiler

import (
	"github.com/loxlang/golox/lang/machine"
	"github.com/loxlang/golox/lang/token"
)

// precedence levels, lowest binding first
type precedence int

const (
	precNone       precedence = iota
	precAssignment            // =
	precOr                    // or
	precAnd                   // and
	precEquality              // == !=
	precComparison            // < > <= >=
	precTerm                  // + -
	precFactor                // * /
	precUnary                 // ! -
	precCall                  // . ()
	precPrimary
)

type parseFn func(c *compiler, canAssign bool)

// a parseRule gives a token its optional prefix and infix handlers and its
// infix binding power
type parseRule struct {
	prefix parseFn
	infix  parseFn
	prec   precedence
}

var rules [token.NumTokens]parseRule

// the table references handlers that recurse through parsePrecedence back
// into the table, so it cannot be a package-level composite literal
func init() {
	rules = [token.NumTokens]parseRule{
		token.LPAREN: {(*compiler).grouping, (*compiler).call, precCall},
		token.DOT:    {nil, (*compiler).dot, precCall},
		token.MINUS:  {(*compiler).unary, (*compiler).binary, precTerm},
		token.PLUS:   {nil, (*compiler).binary, precTerm},
		token.SLASH:  {nil, (*compiler).binary, precFactor},
		token.STAR:   {nil, (*compiler).binary, precFactor},
		token.BANG:   {(*compiler).unary, nil, precNone},
		token.BANGEQ: {nil, (*compiler).binary, precEquality},
		token.EQEQ:   {nil, (*compiler).binary, precEquality},
		token.GT:     {nil, (*compiler).binary, precComparison},
		token.GE:     {nil, (*compiler).binary, precComparison},
		token.LT:     {nil, (*compiler).binary, precComparison},
		token.LE:     {nil, (*compiler).binary, precComparison},
		token.IDENT:  {(*compiler).variable, nil, precNone},
		token.STRING: {(*compiler).str, nil, precNone},
		token.NUMBER: {(*compiler).number, nil, precNone},
		token.AND:    {nil, (*compiler).and, precAnd},
		token.OR:     {nil, (*compiler).or, precOr},
		token.FALSE:  {(*compiler).literal, nil, precNone},
		token.NIL:    {(*compiler).literal, nil, precNone},
		token.TRUE:   {(*compiler).literal, nil, precNone},
		token.SUPER:  {(*compiler).super, nil, precNone},
		token.THIS:   {(*compiler).this, nil, precNone},
	}
}

// parsePrecedence parses an expression at the given precedence or tighter:
// the previous token's prefix handler runs first (with canAssign true only
// at assignment level or looser), then infix handlers consume operators of
// at least the requested precedence. An unconsumed '=' afterwards means the
// prefix parsed something that is not an assignment target.
func (c *compiler) parsePrecedence(p precedence) {
	c.advance()
	prefix := rules[c.prev].prefix
	if prefix == nil {
		c.error("Expect expression.")
		return
	}
	canAssign := p <= precAssignment
	prefix(c, canAssign)

	for p <= rules[c.cur].prec {
		c.advance()
		rules[c.prev].infix(c, canAssign)
	}

	if canAssign && c.match(token.EQ) {
		c.error("Invalid assignment target.")
	}
}

func (c *compiler) expression() {
	c.parsePrecedence(precAssignment)
}

func (c *compiler) number(canAssign bool) {
	c.emitConstant(machine.Number(c.prevVal.Number))
}

func (c *compiler) str(canAssign bool) {
	c.emitConstant(c.heap.NewString(c.prevVal.String))
}

func (c *compiler) literal(canAssign bool) {
	switch c.prev {
	case token.FALSE:
		c.emitOp(machine.FALSE)
	case token.NIL:
		c.emitOp(machine.NIL)
	case token.TRUE:
		c.emitOp(machine.TRUE)
	}
}

func (c *compiler) grouping(canAssign bool) {
	c.expression()
	c.consume(token.RPAREN, "Expect ')' after expression.")
}

func (c *compiler) unary(canAssign bool) {
	op := c.prev
	c.parsePrecedence(precUnary)
	switch op {
	case token.BANG:
		c.emitOp(machine.NOT)
	case token.MINUS:
		c.emitOp(machine.NEG)
	}
}

func (c *compiler) binary(canAssign bool) {
	op := c.prev
	c.parsePrecedence(rules[op].prec + 1)
	switch op {
	case token.BANGEQ:
		c.emitOp(machine.EQ)
		c.emitOp(machine.NOT)
	case token.EQEQ:
		c.emitOp(machine.EQ)
	case token.GT:
		c.emitOp(machine.GT)
	case token.GE:
		c.emitOp(machine.LT)
		c.emitOp(machine.NOT)
	case token.LT:
		c.emitOp(machine.LT)
	case token.LE:
		c.emitOp(machine.GT)
		c.emitOp(machine.NOT)
	case token.PLUS:
		c.emitOp(machine.ADD)
	case token.MINUS:
		c.emitOp(machine.SUB)
	case token.STAR:
		c.emitOp(machine.MUL)
	case token.SLASH:
		c.emitOp(machine.DIV)
	}
}

// and short-circuits: the right operand is evaluated only when the left is
// truthy, and the leftmost falsey value is the result.
func (c *compiler) and(canAssign bool) {
	end := c.emitJump(machine.JMPFALSE)
	c.emitOp(machine.POP)
	c.parsePrecedence(precAnd)
	c.patchJump(end)
}

// or short-circuits: the right operand is evaluated only when the left is
// falsey, and the leftmost truthy value is the result.
func (c *compiler) or(canAssign bool) {
	elseJump := c.emitJump(machine.JMPFALSE)
	endJump := c.emitJump(machine.JMP)
	c.patchJump(elseJump)
	c.emitOp(machine.POP)
	c.parsePrecedence(precOr)
	c.patchJump(endJump)
}

func (c *compiler) variable(canAssign bool) {
	c.namedVariable(c.prevVal.Raw, canAssign)
}

func (c *compiler) call(canAssign bool) {
	argc := c.argumentList()
	c.emitOp(machine.CALL)
	c.emit(argc)
}

func (c *compiler) argumentList() uint8 {
	var argc int
	if !c.check(token.RPAREN) {
		for {
			c.expression()
			if argc == maxArity {
				c.error("Can't have more than 255 arguments.")
			}
			argc++
			if !c.match(token.COMMA) {
				break
			}
		}
	}
	c.consume(token.RPAREN, "Expect ')' after arguments.")
	return uint8(argc)
}

// dot compiles property access: a plain read, an assignment in assignment
// position, or the call fast path when immediately invoked.
func (c *compiler) dot(canAssign bool) {
	c.consume(token.IDENT, "Expect property name after '.'.")
	name := c.identifierConstant(c.prevVal.Raw)

	switch {
	case canAssign && c.match(token.EQ):
		c.expression()
		c.emitOp(machine.SETPROP)
		c.emit(name)
	case c.match(token.LPAREN):
		argc := c.argumentList()
		c.emitOp(machine.INVOKE)
		c.emit(name, argc)
	default:
		c.emitOp(machine.GETPROP)
		c.emit(name)
	}
}

// this compiles as a read of the method's receiver slot.
func (c *compiler) this(canAssign bool) {
	if c.ccomp == nil {
		c.error("Can't use 'this' outside of a class.")
		return
	}
	c.namedVariable("this", false)
}

// super loads the receiver and the "super" binding, then either binds the
// superclass method or invokes it directly when immediately called.
func (c *compiler) super(canAssign bool) {
	if c.ccomp == nil {
		c.error("Can't use 'super' outside of a class.")
	} else if !c.ccomp.hasSuperclass {
		c.error("Can't use 'super' in a class with no superclass.")
	}

	c.consume(token.DOT, "Expect '.' after 'super'.")
	c.consume(token.IDENT, "Expect superclass method name.")
	name := c.identifierConstant(c.prevVal.Raw)

	c.namedVariable("this", false)
	if c.match(token.LPAREN) {
		argc := c.argumentList()
		c.namedVariable("super", false)
		c.emitOp(machine.SUPERINVOKE)
		c.emit(name, argc)
		return
	}
	c.namedVariable("super", false)
	c.emitOp(machine.GETSUPER)
	c.emit(name)
}
