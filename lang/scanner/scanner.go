// Some of the scanner package is adapted from the Go source code:
// https://cs.opensource.google/go/go/+/refs/tags/go1.22.1:src/go/scanner/scanner.go
//
// Copyright 2009 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package scanner tokenizes source text for the compiler to consume. Tokens
// are produced on demand, one call to Scan at a time, so the compiler drives
// the scanner as it parses.
package scanner

import (
	"fmt"
	"strconv"

	"github.com/loxlang/golox/lang/token"
)

// Scanner tokenizes a source buffer for the compiler to consume. The source
// is expected to be 7-bit ASCII; bytes outside that range are reported as
// illegal characters.
type Scanner struct {
	// immutable state after Init
	src []byte
	err func(pos token.Pos, msg string)

	// mutable scanning state
	cur       rune // current character, -1 means end of source
	off       int  // offset in bytes of cur
	roff      int  // reading offset in bytes (position after cur)
	line, col int  // 1-based position of cur
}

// Init initializes the scanner to tokenize a new source buffer. The errHandler
// is called for each lexical error encountered; it may be nil.
func (s *Scanner) Init(src []byte, errHandler func(token.Pos, string)) {
	s.src = src
	s.err = errHandler

	s.cur = ' '
	s.off = 0
	s.roff = 0
	s.line = 1
	s.col = 0
	s.advance()
}

// peek returns the byte following the most recently read character without
// advancing the scanner. If the scanner is at the end of the source, peek
// returns 0.
func (s *Scanner) peek() byte {
	if s.roff < len(s.src) {
		return s.src[s.roff]
	}
	return 0
}

// read the next character into s.cur; s.cur < 0 means end of source.
func (s *Scanner) advance() {
	if s.cur == '\n' {
		s.line++
		s.col = 0
	}
	if s.roff >= len(s.src) {
		s.off = len(s.src)
		if s.cur != -1 {
			s.col++
		}
		s.cur = -1
		return
	}

	s.off = s.roff
	s.cur = rune(s.src[s.roff])
	s.roff++
	s.col++
}

// advance only if the current char matches the specified one.
func (s *Scanner) advanceIf(match byte) bool {
	if s.cur == rune(match) {
		s.advance()
		return true
	}
	return false
}

func (s *Scanner) error(pos token.Pos, msg string) {
	if s.err != nil {
		s.err(pos, msg)
	}
}

// Scan returns the next token in the source. Lexical errors are reported to
// the error handler and yield an ILLEGAL token, so the caller always makes
// progress.
func (s *Scanner) Scan(tokVal *token.Value) (tok token.Token) {
	s.skipWhitespace()

	// current token start
	pos := token.MakePos(s.line, s.col)
	start := s.off

	switch cur := s.cur; {
	case isLetter(cur):
		// keywords and identifiers
		lit := s.ident()
		tok = token.IDENT
		if len(lit) > 1 {
			// keywords are longer than one letter - avoid lookup otherwise
			tok = token.LookupKw(lit)
		}
		*tokVal = token.Value{Raw: lit, Pos: pos}

	case isDigit(cur):
		lit := s.number()
		tok = token.NUMBER
		// the scanned form is always a valid Go float literal
		v, _ := strconv.ParseFloat(lit, 64)
		*tokVal = token.Value{Raw: lit, Pos: pos, Number: v}

	default:
		// keywords, identifiers and numbers are done

		s.advance() // always make progress
		switch cur {
		case '(', ')', '{', '}', ',', '.', '-', '+', ';', '/', '*':
			// unambiguous single-char punctuation; comments were consumed by
			// skipWhitespace so a slash here is the division operator.
			tok = lookupPunct[cur]
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '!', '=', '<', '>':
			// single-char operators that can be followed by '=' and nothing else
			tok = lookupPunct[cur]
			if s.advanceIf('=') {
				tok++ // the combined form follows the single-char one
			}
			*tokVal = token.Value{Raw: tok.String(), Pos: pos}

		case '"':
			var terminated bool
			tok = token.STRING
			for {
				if s.cur == -1 {
					break
				}
				if s.cur == '"' {
					s.advance()
					terminated = true
					break
				}
				s.advance()
			}
			raw := string(s.src[start:s.off])
			if !terminated {
				s.error(pos, "unterminated string")
				tok = token.ILLEGAL
				*tokVal = token.Value{Raw: raw, Pos: pos}
				break
			}
			*tokVal = token.Value{Raw: raw, Pos: pos, String: raw[1 : len(raw)-1]}

		case -1:
			tok = token.EOF
			*tokVal = token.Value{Raw: "", Pos: pos}

		default:
			s.error(pos, fmt.Sprintf("unexpected character %q", cur))
			tok = token.ILLEGAL
			*tokVal = token.Value{Raw: string(cur), Pos: pos}
		}
	}
	return tok
}

func (s *Scanner) ident() string {
	start := s.off
	for isLetter(s.cur) || isDigit(s.cur) {
		s.advance()
	}
	return string(s.src[start:s.off])
}

func (s *Scanner) number() string {
	start := s.off
	for isDigit(s.cur) {
		s.advance()
	}
	// a fractional part requires at least one digit after the dot
	if s.cur == '.' && isDigit(rune(s.peek())) {
		s.advance()
		for isDigit(s.cur) {
			s.advance()
		}
	}
	return string(s.src[start:s.off])
}

func (s *Scanner) skipWhitespace() {
	for {
		if isWhitespace(s.cur) {
			s.advance()
			continue
		}
		if s.cur == '/' && s.peek() == '/' {
			// line comment, runs to the end of the line
			for s.cur != '\n' && s.cur != -1 {
				s.advance()
			}
			continue
		}
		return
	}
}

var lookupPunct = map[rune]token.Token{
	'(': token.LPAREN,
	')': token.RPAREN,
	'{': token.LBRACE,
	'}': token.RBRACE,
	',': token.COMMA,
	'.': token.DOT,
	'-': token.MINUS,
	'+': token.PLUS,
	';': token.SEMI,
	'/': token.SLASH,
	'*': token.STAR,
	'!': token.BANG,
	'=': token.EQ,
	'<': token.LT,
	'>': token.GT,
}

func isWhitespace(rn rune) bool {
	return rn == ' ' || rn == '\t' || rn == '\n' || rn == '\r'
}

func isLetter(rn rune) bool {
	return 'a' <= rn && rn <= 'z' ||
		'A' <= rn && rn <= 'Z' ||
		rn == '_'
}

func isDigit(rn rune) bool {
	return '0' <= rn && rn <= '9'
}
