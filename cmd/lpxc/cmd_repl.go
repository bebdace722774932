package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/config"
	"github.com/lightplayer/lpxc/internal/fgen"
	"github.com/lightplayer/lpxc/internal/parser"
	"github.com/lightplayer/lpxc/internal/q32"
	"github.com/lightplayer/lpxc/internal/rvgen"
	"github.com/lightplayer/lpxc/internal/sema"
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/testsuite"
)

// cmdRepl evaluates one expression per line by wrapping it in a
// single-function shader, compiling it through the whole pipeline, and
// running it in the emulator -- the same path real shaders take, so what
// the REPL prints is what a fixture would compute.
func cmdRepl(opts config.Options) {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("lpxc repl: enter a GLSL expression, :quit to exit")
	for {
		text, err := line.Prompt("q32> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return
			}
			fmt.Fprintln(os.Stderr, err)
			return
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		if text == ":quit" || text == ":q" {
			return
		}
		line.AppendHistory(text)
		evalLine(text, opts)
	}
}

// evalLine tries the expression as float-valued first, then int-valued;
// GLSL's implicit promotions make float cover most inputs.
func evalLine(text string, opts config.Options) {
	if val, ok := evalAs("float", text, opts); ok {
		fmt.Printf("= %g (q32 %#08x)\n", builtins.Q32(val).Decode(), val)
		return
	}
	if val, ok := evalAs("int", text, opts); ok {
		fmt.Printf("= %d\n", int32(val))
		return
	}
	if val, ok := evalAs("bool", text, opts); ok {
		fmt.Printf("= %t\n", val != 0)
		return
	}
	// Re-run the float form with diagnostics shown.
	src := fmt.Sprintf("float __repl() { return (%s); }", text)
	var diags source.DiagnosticSet
	file := parser.Parse("<repl>", []byte(src), &diags)
	sema.Analyze(file, &diags)
	for _, d := range diags.All() {
		fmt.Fprintln(os.Stderr, d.Error())
	}
}

func evalAs(retType, text string, opts config.Options) (uint32, bool) {
	src := fmt.Sprintf("%s __repl() { return (%s); }", retType, text)
	var diags source.DiagnosticSet
	file := parser.Parse("<repl>", []byte(src), &diags)
	tmod := sema.Analyze(file, &diags)
	if !diags.Empty() {
		return 0, false
	}
	mod, err := fgen.Lower(tmod)
	if err != nil {
		return 0, false
	}
	if err := q32.Lower(mod); err != nil {
		return 0, false
	}
	img, err := rvgen.JITLink(mod, rvgen.JITOptions{Base: opts.LoadBase})
	if err != nil {
		return 0, false
	}
	regs, trap, err := testsuite.Execute(img, "__repl", nil, opts)
	if err != nil || trap != nil {
		return 0, false
	}
	return regs[0], true
}
