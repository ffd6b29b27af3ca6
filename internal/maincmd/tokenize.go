package maincmd

import (
	"context"
	"fmt"
	"os"

	"github.com/loxlang/golox/lang/scanner"
	"github.com/loxlang/golox/lang/token"
	"github.com/mna/mainer"
)

func (c *Cmd) Tokenize(ctx context.Context, stdio mainer.Stdio, args []string) error {
	return TokenizeFiles(ctx, stdio, args...)
}

// TokenizeFiles prints the token stream of each file, one token per line as
// "line:col: kind" with the raw text appended for valued tokens. Lexical
// errors go to stderr and make the command fail after all files printed.
func TokenizeFiles(ctx context.Context, stdio mainer.Stdio, files ...string) error {
	var nerrs int
	for _, file := range files {
		b, err := os.ReadFile(file)
		if err != nil {
			fmt.Fprintf(stdio.Stderr, "%s\n", err)
			nerrs++
			continue
		}

		var s scanner.Scanner
		s.Init(b, func(pos token.Pos, msg string) {
			l, c := pos.LineCol()
			fmt.Fprintf(stdio.Stderr, "%s:%d:%d: %s\n", file, l, c, msg)
			nerrs++
		})

		var tv token.Value
		for {
			tok := s.Scan(&tv)
			l, c := tv.Pos.LineCol()
			fmt.Fprintf(stdio.Stdout, "%d:%d: %s", l, c, tok)
			switch tok {
			case token.IDENT, token.NUMBER, token.STRING, token.ILLEGAL:
				fmt.Fprintf(stdio.Stdout, " %q", tv.Raw)
			}
			fmt.Fprintln(stdio.Stdout)
			if tok == token.EOF {
				break
			}
		}
	}
	if nerrs > 0 {
		return fmt.Errorf("%d errors", nerrs)
	}
	return nil
}
