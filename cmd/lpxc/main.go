// Command lpxc is the shader compiler driver: it exposes each stage of
// the pipeline (tokens, ast, ir), compiles and runs shaders in the
// RV32IMAC emulator, emits and links relocatable objects, and drives the
// directive-based file test harness.
package main

import (
	"fmt"
	"log/slog"
	"os"

	getopt "github.com/pborman/getopt/v2"

	"github.com/lightplayer/lpxc/internal/config"
	"github.com/lightplayer/lpxc/internal/fgen"
	"github.com/lightplayer/lpxc/internal/logging"
	"github.com/lightplayer/lpxc/internal/parser"
	"github.com/lightplayer/lpxc/internal/sema"
	"github.com/lightplayer/lpxc/internal/source"
	"github.com/lightplayer/lpxc/internal/ssa"
	"github.com/lightplayer/lpxc/internal/tir"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: lpxc [options] <command> [args]

commands:
  tokens <file>              Dump the GLSL token stream
  ast <file>                 Dump the parsed syntax tree
  ir [-stage s] <file>       Dump IR (stage: tir, ssa, q32; default q32)
  run <file> <entry> [args]  Compile and execute <entry> in the emulator
  build -o <out.o> <file>    Emit a relocatable RV32 ELF object
  link -o <out.bin> <objs>   Link objects into a flat loadable image
  disasm <file.o>            Disassemble an object's .text section
  test <files-or-dirs>       Run the directive-based file test harness
  repl                       Evaluate expressions interactively

options:`)
	getopt.PrintUsage(os.Stderr)
	os.Exit(1)
}

func main() {
	optDebug := getopt.BoolLong("debug", 'd', "Verbose logging and emulator tracing")
	optMemOpt := getopt.BoolLong("memory-optimised", 'm', "Drop IR after codegen")
	optLimit := getopt.IntLong("instr-limit", 'l', 0, "Emulator instruction-count limit")
	getopt.SetParameters("<command> [args]")
	getopt.Parse()

	logger, level := logging.New(nil)
	slog.SetDefault(logger)
	if *optDebug {
		level.Set(slog.LevelDebug)
	}

	opts := config.Default()
	opts.Debug = *optDebug
	opts.MemoryOptimised = *optMemOpt
	if *optLimit > 0 {
		opts.InstrLimit = uint64(*optLimit)
	}

	args := getopt.Args()
	if len(args) < 1 {
		usage()
	}

	switch args[0] {
	case "tokens":
		cmdTokens(args[1:])
	case "ast":
		cmdAST(args[1:])
	case "ir":
		cmdIR(args[1:])
	case "run":
		cmdRun(args[1:], opts)
	case "build":
		cmdBuild(args[1:], opts)
	case "link":
		cmdLink(args[1:], opts)
	case "disasm":
		cmdDisasm(args[1:])
	case "test":
		cmdTest(args[1:], opts)
	case "repl":
		cmdRepl(opts)
	default:
		usage()
	}
}

func readSource(file string) []byte {
	src, err := os.ReadFile(file)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return src
}

// reportDiags prints collected diagnostics in the canonical
// file:line:col: error[E####]: message form and exits non-zero.
func reportDiags(diags *source.DiagnosticSet) {
	for _, d := range diags.All() {
		fmt.Fprintln(os.Stderr, d.Error())
	}
	os.Exit(1)
}

// analyzeFile runs the front half of the pipeline, exiting with printed
// diagnostics on any error.
func analyzeFile(file string) *tir.Module {
	var diags source.DiagnosticSet
	ast := parser.Parse(file, readSource(file), &diags)
	mod := sema.Analyze(ast, &diags)
	if !diags.Empty() {
		reportDiags(&diags)
	}
	return mod
}

// lowerFile continues through front-end codegen to the pre-Q32 SSA.
func lowerFile(file string) *ssa.Module {
	mod, err := fgen.Lower(analyzeFile(file))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	return mod
}
