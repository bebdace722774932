package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/lightplayer/lpxc/internal/config"
	"github.com/lightplayer/lpxc/internal/testsuite"
)

func cmdTest(args []string, opts config.Options) {
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, "usage: lpxc test <files-or-dirs...>")
		os.Exit(1)
	}

	var files []string
	for _, a := range args {
		info, err := os.Stat(a)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if !info.IsDir() {
			files = append(files, a)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(a, "*.glsl"))
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		files = append(files, matches...)
	}

	passed, failed := 0, 0
	for _, f := range files {
		results, err := testsuite.RunFile(f, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", f, err)
			failed++
			continue
		}
		for _, r := range results {
			if r.Pass {
				fmt.Printf("PASS %s\n", r.Desc)
				passed++
			} else {
				fmt.Printf("FAIL %s: %s\n", r.Desc, r.Msg)
				failed++
			}
		}
	}

	fmt.Printf("%d passed, %d failed\n", passed, failed)
	if failed > 0 {
		os.Exit(1)
	}
}
