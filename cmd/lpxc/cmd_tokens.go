package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lightplayer/lpxc/internal/lexer"
	"github.com/lightplayer/lpxc/internal/source"
)

func cmdTokens(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: lpxc tokens <file>")
		os.Exit(1)
	}
	file := filepath.Clean(args[0])

	var diags source.DiagnosticSet
	tokens := lexer.Tokenize(file, readSource(file), &diags)
	for _, tok := range tokens {
		if tok.Lexeme != "" {
			fmt.Printf("%d:%d\t%v\t%s\n", tok.Loc.Line, tok.Loc.Column, tok.Kind, tok.Lexeme)
		} else {
			fmt.Printf("%d:%d\t%v\n", tok.Loc.Line, tok.Loc.Column, tok.Kind)
		}
	}
	if !diags.Empty() {
		reportDiags(&diags)
	}
}
