package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/config"
	"github.com/lightplayer/lpxc/internal/q32"
	"github.com/lightplayer/lpxc/internal/rvgen"
	"github.com/lightplayer/lpxc/internal/testsuite"
)

func cmdRun(args []string, opts config.Options) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: lpxc run <file> <entry> [args...]")
		os.Exit(1)
	}
	file := filepath.Clean(args[0])
	entry := args[1]

	var callArgs []uint32
	for _, a := range args[2:] {
		callArgs = append(callArgs, parseRunArg(a))
	}

	mod := lowerFile(file)
	if err := q32.Lower(mod); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	img, err := rvgen.JITLink(mod, rvgen.JITOptions{Base: opts.LoadBase})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	regs, trap, err := testsuite.Execute(img, entry, callArgs, opts)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if trap != nil {
		fmt.Fprintln(os.Stderr, trap.Error())
		os.Exit(1)
	}

	// The Q32 lowering erases the distinction between int and fixed-point
	// results, so print a0 both ways.
	fmt.Printf("a0 = %d (q32 %g)\n", int32(regs[0]), builtins.Q32(regs[0]).Decode())
}

// parseRunArg turns a command-line argument into its register encoding: a
// literal with a decimal point or an exponent is Q32-encoded, anything else
// is an int32.
func parseRunArg(a string) uint32 {
	if strings.ContainsAny(a, ".eE") {
		f, err := strconv.ParseFloat(a, 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "malformed argument %q\n", a)
			os.Exit(1)
		}
		return uint32(builtins.Encode(f))
	}
	i, err := strconv.ParseInt(a, 0, 64)
	if err != nil {
		fmt.Fprintf(os.Stderr, "malformed argument %q\n", a)
		os.Exit(1)
	}
	return uint32(int32(i))
}
