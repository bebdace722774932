package main

import (
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/lightplayer/lpxc/internal/builtins"
	"github.com/lightplayer/lpxc/internal/config"
	"github.com/lightplayer/lpxc/internal/linker"
	"github.com/lightplayer/lpxc/internal/objfile"
)

func cmdLink(args []string, opts config.Options) {
	fs := flag.NewFlagSet("link", flag.ExitOnError)
	out := fs.String("o", "", "output image file")
	withBuiltins := fs.Bool("builtins", true, "link against the builtins object")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: lpxc link -o <out.bin> <objects...>")
		fs.PrintDefaults()
		os.Exit(1)
	}
	fs.Parse(args)
	if fs.NArg() == 0 || *out == "" {
		fs.Usage()
	}

	l := linker.NewLinker(opts.LoadBase, 4)
	for _, path := range fs.Args() {
		data, err := os.ReadFile(path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		obj, err := objfile.Read(data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			os.Exit(1)
		}
		l.AddObject(obj)
	}
	if *withBuiltins {
		l.AddObject(builtins.BuildObject())
	}

	img, err := l.Link()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, img.Data, 0o644); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	names := make([]string, 0, len(img.Symbols))
	for name := range img.Symbols {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("%08x %s\n", img.Symbols[name], name)
	}
}
