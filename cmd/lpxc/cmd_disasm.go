package main

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/lightplayer/lpxc/internal/objfile"
	"github.com/lightplayer/lpxc/internal/riscv"
)

func cmdDisasm(args []string) {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "usage: lpxc disasm <file.o>")
		os.Exit(1)
	}
	path := filepath.Clean(args[0])
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

	var text *objfile.Section
	for _, s := range obj.Sections {
		if s.Name == ".text" {
			text = s
		}
	}
	if text == nil {
		fmt.Fprintf(os.Stderr, "%s: no .text section\n", path)
		os.Exit(1)
	}

	// One label line per symbol defined at an offset.
	labels := make(map[uint32]string)
	for _, sym := range obj.Symbols {
		if sym.Defined && sym.Section == ".text" {
			labels[sym.Value] = sym.Name
		}
	}

	for off := uint32(0); off+4 <= uint32(len(text.Data)); off += 4 {
		if name, ok := labels[off]; ok {
			fmt.Printf("%s:\n", name)
		}
		word := binary.LittleEndian.Uint32(text.Data[off:])
		dec, err := riscv.Decode(word)
		if err != nil {
			fmt.Printf("  %06x: %08x  .word\n", off, word)
			continue
		}
		fmt.Printf("  %06x: %08x  %s\n", off, word, dec)
	}
}
