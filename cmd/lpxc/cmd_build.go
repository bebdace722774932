package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lightplayer/lpxc/internal/config"
	"github.com/lightplayer/lpxc/internal/objfile"
	"github.com/lightplayer/lpxc/internal/q32"
	"github.com/lightplayer/lpxc/internal/rvgen"
)

func cmdBuild(args []string, opts config.Options) {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	out := fs.String("o", "", "output object file")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: lpxc build -o <out.o> <file>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	fs.Parse(args)
	if fs.NArg() != 1 || *out == "" {
		fs.Usage()
	}
	file := filepath.Clean(fs.Arg(0))

	mod := lowerFile(file)
	if err := q32.Lower(mod); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	compile := rvgen.Compile
	if opts.MemoryOptimised {
		compile = rvgen.CompileMemoryOptimised
	}
	obj := compile(mod)
	if err := os.WriteFile(*out, objfile.Write(obj), 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	fmt.Printf("built %s -> %s\n", file, *out)
}
